package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type reloadReq struct {
	SeedDir       string `json:"seed_dir"`       // directory with module schema YAML
	DashboardsDir string `json:"dashboards_dir"` // directory with dashboard config YAML
}

// POST /api/admin/reload
//
// Re-reads the seed directories and upserts what they define. Schemas with
// blocking lint issues are rejected before anything is written.
func AdminReloadHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reloadReq
		if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		res, err := s.Reload(c.Request.Context(), strings.TrimSpace(req.SeedDir), strings.TrimSpace(req.DashboardsDir))
		var lint *LintError
		if errors.As(err, &lint) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "schema has blocking issues",
				"issues": lint.Issues,
				"hint":   "fix the seed files and retry",
			})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Seed load error", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "result": res})
	}
}
