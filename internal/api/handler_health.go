package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// HealthCheck is one subsystem's health verdict.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Checks  map[string]HealthCheck `json:"checks"`
	Running int                    `json:"running"`
	Queued  int                    `json:"queued"`
}

// healthHandler handles GET /health: unauthenticated, minimal, and checks
// only this process's own state (store reachability, kill-switch state),
// never the chat platform or child scripts.
func (s *Server) healthHandler(c *gin.Context) {
	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if _, err := s.store.LastRuns(c.Request.Context(), "", 1); err != nil {
		status = healthStatusUnhealthy
		checks["store"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["store"] = HealthCheck{Status: healthStatusHealthy}
	}

	if s.cp.KillSwitch() {
		status = healthStatusDegraded
		checks["kill_switch"] = HealthCheck{Status: healthStatusDegraded, Message: "kill switch active"}
	} else {
		checks["kill_switch"] = HealthCheck{Status: healthStatusHealthy}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:  status,
		Checks:  checks,
		Running: s.eng.RunningCount(),
		Queued:  s.eng.QueueDepth(),
	})
}
