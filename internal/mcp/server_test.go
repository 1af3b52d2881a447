package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/tools"
)

func testRegistry() *tools.Registry {
	r := tools.NewRegistry()
	r.Register(tools.Tool{
		Name:        "check_stock",
		Description: "stock by size",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"product_id": map[string]any{"type": "integer"}},
			"required":   []string{"product_id"},
		},
		Handle: func(_ context.Context, args json.RawMessage) tools.Result {
			var in struct {
				ProductID int64 `json:"product_id"`
			}
			if err := json.Unmarshal(args, &in); err != nil || in.ProductID == 0 {
				return tools.Fail(tools.KindValidation, "product_id es obligatorio")
			}
			return tools.OK(map[string]any{"product_id": in.ProductID, "in_stock": true})
		},
	})
	return r
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestNewServerRegistersTools(t *testing.T) {
	s, err := NewServer(testRegistry())
	require.NoError(t, err)
	assert.NotNil(t, s.mcp)
}

func TestHandlerSuccess(t *testing.T) {
	s, err := NewServer(testRegistry())
	require.NoError(t, err)

	req := mcp.CallToolRequest{}
	req.Params.Name = "check_stock"
	req.Params.Arguments = map[string]any{"product_id": 42}

	res, err := s.handler("check_stock")(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.JSONEq(t, `{"success":true,"product_id":42,"in_stock":true}`, textOf(t, res))
}

func TestHandlerValidationFailure(t *testing.T) {
	s, err := NewServer(testRegistry())
	require.NoError(t, err)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{}

	res, err := s.handler("check_stock")(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res), "product_id es obligatorio")
}

func TestHandlerUnknownTool(t *testing.T) {
	s, err := NewServer(testRegistry())
	require.NoError(t, err)

	res, err := s.handler("nope")(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
