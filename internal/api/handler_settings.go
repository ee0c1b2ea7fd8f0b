package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/Les-dev-de-bot-vikidiens/MuffyBot/internal/controlplane"
)

func actorID(c *gin.Context) string {
	if id := c.GetHeader("X-Actor-Id"); id != "" {
		return id
	}
	return "admin-api"
}

// listSettingsHandler handles GET /settings: every known setting key with
// its current effective value (Store override or built-in default).
func (s *Server) listSettingsHandler(c *gin.Context) {
	defaults := controlplane.Defaults()
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = s.cp.Get(k)
	}
	c.JSON(http.StatusOK, gin.H{"settings": out})
}

type updateSettingBody struct {
	Value string `json:"value" binding:"required"`
}

// updateSettingHandler handles PUT /settings/:key.
func (s *Server) updateSettingHandler(c *gin.Context) {
	key := c.Param("key")
	if _, known := controlplane.Defaults()[key]; !known {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown setting"})
		return
	}

	var body updateSettingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.cp.Set(key, body.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	_ = s.store.AppendAudit(c.Request.Context(), actorID(c), "set_setting", key, "value="+body.Value)
	c.JSON(http.StatusOK, gin.H{"key": key, "value": body.Value})
}
