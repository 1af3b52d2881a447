package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"supportdesk/internal/usecases"
)

type ChatHandler struct {
	chat *usecases.ChatUsecase
}

func NewChatHandler(chat *usecases.ChatUsecase) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Chat serves the web widget.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req usecases.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.Message = SanitizeString(TruncateString(req.Message, MaxMessageLength))

	resp, err := h.chat.Chat(c.Request.Context(), req)
	switch {
	case errors.Is(err, usecases.ErrMissingText), errors.Is(err, usecases.ErrMissingEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, usecases.ErrAgentUnavailable) && resp != nil:
		c.JSON(http.StatusInternalServerError, resp)
	case err != nil:
		log.Error().Err(err).Msg("chat request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "message": usecases.ApologyText})
	default:
		c.JSON(http.StatusOK, resp)
	}
}
