package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck probes one subsystem. A nil Check means the subsystem is not
// configured and is reported as disabled.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
	// Optional subsystems never fail the overall status.
	Optional bool
}

type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
}

func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 3 * time.Second}
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	healthy := true
	services := make(map[string]subsystemStatus, len(h.checks))
	for _, chk := range h.checks {
		if chk.Check == nil {
			services[chk.Name] = subsystemStatus{Status: "disabled"}
			if !chk.Optional {
				healthy = false
			}
			continue
		}
		if err := chk.Check(ctx); err != nil {
			services[chk.Name] = subsystemStatus{Status: "unhealthy", Error: err.Error()}
			if !chk.Optional {
				healthy = false
			}
			continue
		}
		services[chk.Name] = subsystemStatus{Status: "healthy"}
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"services":  services,
		"timestamp": time.Now().UTC(),
	})
}
