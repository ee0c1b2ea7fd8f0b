package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type controlToggleBody struct {
	On     bool   `json:"on"`
	Reason string `json:"reason"`
}

// setKillSwitchHandler handles POST /control/kill-switch.
func (s *Server) setKillSwitchHandler(c *gin.Context) {
	var body controlToggleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.cp.SetKillSwitch(body.On, body.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	_ = s.store.AppendAudit(c.Request.Context(), actorID(c), "set_kill_switch", "", body.Reason)
	c.JSON(http.StatusOK, gin.H{"kill_switch": body.On})
}

// setMaintenanceHandler handles POST /control/maintenance.
func (s *Server) setMaintenanceHandler(c *gin.Context) {
	var body controlToggleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.cp.SetMaintenance(body.On, body.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	_ = s.store.AppendAudit(c.Request.Context(), actorID(c), "set_maintenance", "", body.Reason)
	c.JSON(http.StatusOK, gin.H{"maintenance": body.On})
}
