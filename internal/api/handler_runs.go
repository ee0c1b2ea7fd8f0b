package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// statusHandler handles GET /status: a point-in-time view of every running
// and queued script.
func (s *Server) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": s.eng.Status()})
}

// listRunsHandler handles GET /runs?scriptKey=&status=&limit=&offset=.
func (s *Server) listRunsHandler(c *gin.Context) {
	limit := queryInt(c, "limit", 50, 1, 500)
	offset := queryInt(c, "offset", 0, 0, 1<<30)

	runs, total, err := s.store.FilteredRuns(c.Request.Context(),
		c.Query("scriptKey"), c.Query("status"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": total, "limit": limit, "offset": offset})
}

// exportRunsHandler handles GET /runs/export?days=7, returning a CSV
// download of runs from the last N days with secrets redacted from notes.
func (s *Server) exportRunsHandler(c *gin.Context) {
	days := queryInt(c, "days", 7, 1, 365)

	data, err := s.store.ExportRunsCSV(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=runs_export.csv")
	c.Data(http.StatusOK, "text/csv", data)
}

func queryInt(c *gin.Context, key string, fallback, min, max int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
