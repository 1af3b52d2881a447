package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"supportdesk/internal/entities"
	"supportdesk/internal/interfaces"
	"supportdesk/internal/usecases"
)

type DashboardHandler struct {
	dashboard *usecases.DashboardUsecase
}

func NewDashboardHandler(dashboard *usecases.DashboardUsecase) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

func paramInt(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return v, true
}

func (h *DashboardHandler) ListConversations(c *gin.Context) {
	convs, err := h.dashboard.ListConversations(c.Request.Context(), interfaces.ConversationFilter{
		Status:  entities.ConversationStatus(c.Query("status")),
		Channel: entities.Channel(c.Query("channel")),
		Limit:   queryInt(c, "limit", 50),
		Offset:  queryInt(c, "offset", 0),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

func (h *DashboardHandler) ConversationMessages(c *gin.Context) {
	msgs, err := h.dashboard.ConversationMessages(c.Request.Context(), c.Param("id"), queryInt(c, "limit", 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *DashboardHandler) UpdateConversationStatus(c *gin.Context) {
	var req struct {
		Status entities.ConversationStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := h.dashboard.UpdateConversationStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

// Reply sends a human operator message into a conversation.
func (h *DashboardHandler) Reply(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	text := SanitizeString(TruncateString(req.Text, MaxReplyLength))
	operator, _ := c.Get("username")
	name, _ := operator.(string)

	msg, err := h.dashboard.HumanReply(c.Request.Context(), c.Param("id"), text, name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *DashboardHandler) ListReturns(c *gin.Context) {
	returns, err := h.dashboard.ListReturns(c.Request.Context(), entities.ReturnStatus(c.Query("status")), queryInt(c, "limit", 50))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, returns)
}

func (h *DashboardHandler) TransitionReturn(c *gin.Context) {
	var req struct {
		Status entities.ReturnStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	rma, err := h.dashboard.TransitionReturn(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rma)
}

func (h *DashboardHandler) ListPromotions(c *gin.Context) {
	promos, err := h.dashboard.ListPromotions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, promos)
}

type promotionRequest struct {
	Code        string     `json:"code"`
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Discount    string     `json:"discount"`
	ValidUntil  *time.Time `json:"valid_until"`
	Active      *bool      `json:"active"`
}

func (r promotionRequest) promotion(id int) *entities.Promotion {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &entities.Promotion{
		ID:          id,
		Code:        r.Code,
		Title:       SanitizeString(r.Title),
		Description: SanitizeString(r.Description),
		Discount:    r.Discount,
		ValidUntil:  r.ValidUntil,
		Active:      active,
	}
}

func (h *DashboardHandler) CreatePromotion(c *gin.Context) {
	var req promotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	p := req.promotion(0)
	if err := h.dashboard.SavePromotion(c.Request.Context(), p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *DashboardHandler) UpdatePromotion(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	var req promotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	p := req.promotion(id)
	if err := h.dashboard.SavePromotion(c.Request.Context(), p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *DashboardHandler) DeletePromotion(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.dashboard.DeletePromotion(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DashboardHandler) ListDeadLetters(c *gin.Context) {
	dls, err := h.dashboard.ListDeadLetters(c.Request.Context(), queryInt(c, "limit", 50))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dls)
}

func (h *DashboardHandler) ReplayDeadLetter(c *gin.Context) {
	id, ok := paramInt(c, "id")
	if !ok {
		return
	}
	if err := h.dashboard.ReplayDeadLetter(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "requeued"})
}

func (h *DashboardHandler) GetAllConfigs(c *gin.Context) {
	configs, err := h.dashboard.Configs(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, configs)
}

func (h *DashboardHandler) SetConfig(c *gin.Context) {
	var req struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !ValidConfigKey(req.Key) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid config key"})
		return
	}
	if len(req.Value) > MaxConfigValLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Config value too long"})
		return
	}
	if err := h.dashboard.SetConfig(c.Request.Context(), req.Key, SanitizeString(req.Value)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *DashboardHandler) Usage(c *gin.Context) {
	usage, err := h.dashboard.UsageHistory(c.Request.Context(), queryInt(c, "days", 30))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}
