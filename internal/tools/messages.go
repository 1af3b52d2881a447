package tools

// User-facing error strings. The agent reads these back to the customer.
const (
	msgInvalidInput    = "Los datos proporcionados no son válidos: %s"
	msgUnknownTool     = "La herramienta solicitada no existe."
	msgUpstream        = "Lo siento, hubo un problema al consultar la tienda. Por favor intenta de nuevo en unos minutos."
	msgProductNotFound = "No encontré un producto con el ID %d."
	msgOrderNotFound   = "No encontré un pedido con el número %d."
	msgOwnership       = "El correo electrónico no coincide con el del pedido. Por seguridad no puedo mostrar ni modificar esta información."
	msgNoProducts      = "No encontré productos disponibles que coincidan con tu búsqueda."
	msgReturnStatus    = "El pedido #%d está en estado \"%s\" y no admite devoluciones."
	msgReturnTooOld    = "El pedido #%d fue realizado hace %d días. Solo aceptamos devoluciones dentro de los %d días posteriores a la compra."
	msgAddressLocked   = "El pedido #%d está en estado \"%s\". Solo se puede cambiar la dirección de pedidos pendientes, en proceso o en espera."
	msgNoTracking      = "El pedido #%d aún no tiene información de seguimiento."
	msgInternal        = "Ocurrió un error inesperado. Por favor intenta de nuevo."
)
