package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"supportdesk/internal/interfaces"
)

// Handler decodes raw JSON arguments and always answers with a Result.
type Handler func(ctx context.Context, args json.RawMessage) Result

// Tool is a named operation the agent (or an API client) can invoke.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema of the arguments object
	Handle      Handler
}

type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.tools[t.Name] = t
}

// Tools returns the registered tools sorted by name.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Call runs a tool by name. Panics inside handlers are converted into a
// failed result so nothing escapes the tool boundary.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (res Result) {
	t, ok := r.tools[name]
	if !ok {
		return Fail(KindNotFound, msgUnknownTool)
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("tool", name).Interface("panic", rec).Msg("tool handler panicked")
			res = Fail(KindUpstream, msgInternal)
		}
	}()
	start := time.Now()
	res = t.Handle(ctx, args)
	log.Debug().Str("tool", name).Bool("success", res.Success).Dur("took", time.Since(start)).Msg("tool call")
	return res
}

// Toolset holds the collaborators shared by the tool handlers.
type Toolset struct {
	commerce   interfaces.Commerce
	returns    interfaces.ReturnStore
	promotions interfaces.PromotionStore
	categories map[string]int64
	now        func() time.Time
	validate   *validator.Validate
}

type Option func(*Toolset)

func WithReturnStore(s interfaces.ReturnStore) Option {
	return func(t *Toolset) { t.returns = s }
}

func WithPromotionStore(s interfaces.PromotionStore) Option {
	return func(t *Toolset) { t.promotions = s }
}

// WithCategories sets the category name -> WooCommerce id lookup table.
func WithCategories(c map[string]int64) Option {
	return func(t *Toolset) {
		for name, id := range c {
			t.categories[strings.ToLower(strings.TrimSpace(name))] = id
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(t *Toolset) { t.now = now }
}

func NewToolset(commerce interfaces.Commerce, opts ...Option) *Toolset {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	t := &Toolset{
		commerce:   commerce,
		categories: make(map[string]int64),
		now:        time.Now,
		validate:   v,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Registry builds a registry with every support tool.
func (t *Toolset) Registry() *Registry {
	r := NewRegistry()
	r.Register(Tool{
		Name:        "search_products",
		Description: "Busca productos disponibles en la tienda por texto libre, con filtro opcional de categoría y precio máximo.",
		Parameters: objectSchema(map[string]any{
			"query":     stringProp("Texto a buscar, por ejemplo 'zapatillas running'"),
			"category":  stringProp("Nombre de la categoría (opcional)"),
			"max_price": numberProp("Precio máximo (opcional)"),
			"limit":     integerProp("Cantidad máxima de resultados, hasta 10"),
		}, "query"),
		Handle: bind(t, t.SearchProducts),
	})
	r.Register(Tool{
		Name:        "check_stock",
		Description: "Consulta el stock de un producto, con detalle por talla para productos con variaciones.",
		Parameters: objectSchema(map[string]any{
			"product_id": integerProp("ID del producto"),
		}, "product_id"),
		Handle: bind(t, t.CheckStock),
	})
	r.Register(Tool{
		Name:        "get_product_details",
		Description: "Obtiene la ficha completa de un producto y sus reseñas aprobadas.",
		Parameters: objectSchema(map[string]any{
			"product_id": integerProp("ID del producto"),
		}, "product_id"),
		Handle: bind(t, t.GetProductDetails),
	})
	r.Register(Tool{
		Name:        "get_customer_orders",
		Description: "Lista los pedidos del cliente identificado por su correo electrónico.",
		Parameters: objectSchema(map[string]any{
			"email":  stringProp("Correo electrónico del cliente"),
			"status": stringProp("Estado del pedido (opcional): pending, processing, on-hold, completed, cancelled, refunded, failed"),
			"limit":  integerProp("Cantidad máxima de pedidos, hasta 20"),
		}, "email"),
		Handle: bind(t, t.GetCustomerOrders),
	})
	r.Register(Tool{
		Name:        "get_order_details",
		Description: "Obtiene el detalle de un pedido. Requiere el correo con el que se hizo la compra.",
		Parameters:  orderSchema(nil),
		Handle:      bind(t, t.GetOrderDetails),
	})
	r.Register(Tool{
		Name:        "get_tracking_info",
		Description: "Obtiene el número y enlace de seguimiento del envío de un pedido.",
		Parameters:  orderSchema(nil),
		Handle:      bind(t, t.GetTrackingInfo),
	})
	r.Register(Tool{
		Name:        "create_return_request",
		Description: "Registra una solicitud de devolución para un pedido de los últimos 30 días.",
		Parameters: orderSchema(map[string]any{
			"reason":      stringProp("Motivo de la devolución"),
			"description": stringProp("Descripción del problema"),
			"has_photos":  map[string]any{"type": "boolean", "description": "Si el cliente tiene fotos del producto"},
		}, "reason", "description"),
		Handle: bind(t, t.CreateReturnRequest),
	})
	r.Register(Tool{
		Name:        "update_shipping_address",
		Description: "Cambia la dirección de envío de un pedido que aún no fue despachado.",
		Parameters: orderSchema(map[string]any{
			"new_address": objectSchema(map[string]any{
				"first_name": stringProp("Nombre"),
				"last_name":  stringProp("Apellido"),
				"address_1":  stringProp("Calle y número"),
				"address_2":  stringProp("Departamento, piso, referencia"),
				"city":       stringProp("Ciudad"),
				"state":      stringProp("Provincia o región"),
				"postcode":   stringProp("Código postal"),
				"country":    stringProp("Código de país ISO, por ejemplo AR"),
				"phone":      stringProp("Teléfono de contacto"),
			}, "address_1", "city"),
		}, "new_address"),
		Handle: bind(t, t.UpdateShippingAddress),
	})
	r.Register(Tool{
		Name:        "check_vip_status",
		Description: "Calcula el nivel de fidelidad del cliente según sus pedidos completados.",
		Parameters: objectSchema(map[string]any{
			"email": stringProp("Correo electrónico del cliente"),
		}, "email"),
		Handle: bind(t, t.CheckVIPStatus),
	})
	r.Register(Tool{
		Name:        "get_active_promotions",
		Description: "Lista los cupones y promociones vigentes.",
		Parameters:  objectSchema(map[string]any{}),
		Handle:      bind(t, t.GetActivePromotions),
	})
	return r
}

// bind adapts a typed handler: decode, validate, run.
func bind[T any](t *Toolset, fn func(context.Context, T) Result) Handler {
	return func(ctx context.Context, args json.RawMessage) Result {
		var in T
		if trimmed := bytes.TrimSpace(args); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			if err := json.Unmarshal(trimmed, &in); err != nil {
				return Fail(KindValidation, fmt.Sprintf(msgInvalidInput, "formato JSON inválido"))
			}
		}
		if err := t.validate.Struct(in); err != nil {
			return Fail(KindValidation, fmt.Sprintf(msgInvalidInput, describeValidation(err)))
		}
		return fn(ctx, in)
	}
}

func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("falta el campo %s", fe.Field()))
		case "email":
			parts = append(parts, fmt.Sprintf("%s no es un correo válido", fe.Field()))
		default:
			parts = append(parts, fmt.Sprintf("%s no es válido", fe.Field()))
		}
	}
	return strings.Join(parts, "; ")
}

// FlexInt accepts both JSON numbers and numeric strings; models often
// quote identifiers.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	s = strings.TrimPrefix(s, "#")
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*f = FlexInt(n)
	return nil
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// orderSchema is the common {order_id, email} shape plus extra fields.
func orderSchema(extra map[string]any, required ...string) map[string]any {
	props := map[string]any{
		"order_id": integerProp("Número de pedido"),
		"email":    stringProp("Correo electrónico usado en la compra"),
	}
	for k, v := range extra {
		props[k] = v
	}
	return objectSchema(props, append([]string{"order_id", "email"}, required...)...)
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func numberProp(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func integerProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func (t *Toolset) upstream(tool string, err error) Result {
	log.Error().Err(err).Str("tool", tool).Msg("commerce call failed")
	return Fail(KindUpstream, msgUpstream)
}
