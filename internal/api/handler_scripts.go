package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/notifier"
)

type startScriptBody struct {
	RequesterTag string            `json:"requesterTag"`
	ChannelID    string            `json:"channelId"`
	BypassLimits bool              `json:"bypassLimits"`
	Priority     int               `json:"priority"`
	TargetLabel  string            `json:"targetLabel"`
	CommandArgs  []string          `json:"commandArgs"`
	ExtraEnv     map[string]string `json:"extraEnv"`
}

// startScriptHandler handles POST /scripts/:key/start. Every request routed
// through the admin API is operator-originated (PublicRequest=false): the
// public principal's admission path is the Notifier collaborator, not HTTP.
func (s *Server) startScriptHandler(c *gin.Context) {
	var body startScriptBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	req := notifier.StartRequest{
		ScriptKey:     c.Param("key"),
		RequesterID:   actorID(c),
		RequesterTag:  body.RequesterTag,
		ChannelID:     body.ChannelID,
		PublicRequest: false,
		BypassLimits:  body.BypassLimits,
		Priority:      body.Priority,
		TargetLabel:   body.TargetLabel,
		CommandArgs:   body.CommandArgs,
		ExtraEnv:      body.ExtraEnv,
	}

	result := s.eng.OnStartRequest(c.Request.Context(), req)
	if result.State == "rejected" {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// stopScriptHandler handles POST /scripts/:key/stop.
func (s *Server) stopScriptHandler(c *gin.Context) {
	key := c.Param("key")
	ok := s.eng.OnStopRequest(c.Request.Context(), key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not running", "scriptKey": key})
		return
	}
	_ = s.store.AppendAudit(c.Request.Context(), actorID(c), "stop_script", key, "")
	c.JSON(http.StatusOK, gin.H{"scriptKey": key, "stopped": true})
}
