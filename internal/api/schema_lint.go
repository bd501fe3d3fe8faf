package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tabula/internal/schema"
)

// GET /api/admin/lint?entity=[&branch=]
//
// Reports cross-module problems in the registered schemas: missing target
// modules or columns and formulas that do not parse.
func AdminLintHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := strings.TrimSpace(c.Query("entity"))
		if entity == "" {
			c.JSON(http.StatusBadRequest, gin.H{"errors": []FieldError{ferr(ErrRequired, "entity", "Query parameter 'entity' is required")}})
			return
		}
		mods, err := s.Registry.GetAllSchemas(c.Request.Context(), entity, c.Query("branch"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		issues := schema.Lint(mods)
		if issues == nil {
			issues = []schema.Issue{}
		}
		c.JSON(http.StatusOK, gin.H{"entity": entity, "modules": len(mods), "issues": issues})
	}
}
