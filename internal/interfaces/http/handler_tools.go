package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"supportdesk/internal/tools"
)

type ToolsHandler struct {
	registry *tools.Registry
}

func NewToolsHandler(registry *tools.Registry) *ToolsHandler {
	return &ToolsHandler{registry: registry}
}

type toolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func (h *ToolsHandler) List(c *gin.Context) {
	defs := []toolDefinition{}
	for _, t := range h.registry.Tools() {
		defs = append(defs, toolDefinition{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	c.JSON(http.StatusOK, gin.H{"tools": defs})
}

// Call runs one tool; the body is the tool input object.
func (h *ToolsHandler) Call(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, tools.Fail(tools.KindValidation, "No se pudo leer la solicitud."))
		return
	}
	res := h.registry.Call(c.Request.Context(), c.Param("name"), json.RawMessage(body))
	c.JSON(res.HTTPStatus(), res)
}
