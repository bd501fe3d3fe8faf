package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tabula/internal/relation"
	"tabula/internal/schema"
)

// ===== META HANDLERS =====

// GET /api/meta/:entity/modules[?branch=]
func MetaListHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		mods, err := s.Registry.GetAllSchemas(c.Request.Context(), c.Param("entity"), c.Query("branch"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, mods)
	}
}

// GET /api/meta/:entity/modules/:module[?branch=]
func MetaModuleHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, err := s.Registry.GetSchema(c.Request.Context(), c.Param("entity"), c.Param("module"), c.Query("branch"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

type upsertModuleReq struct {
	Columns []schema.ColumnDefinition `json:"columns"`
}

// PUT /api/meta/:entity/modules/:module[?branch=]
//
// Columns without a key get one derived from the label; existing keys are
// kept, so relabelling never orphans stored values.
func MetaUpsertHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req upsertModuleReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		m, err := s.Registry.UpsertSchema(c.Request.Context(), c.Param("entity"), c.Param("module"), req.Columns, c.Query("branch"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// DELETE /api/meta/:entity/modules/:module[?branch=]
func MetaDeleteHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Registry.DeleteModule(c.Request.Context(), c.Param("entity"), c.Param("module"), c.Query("branch")); err != nil {
			s.writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// GET /api/meta/:entity/modules/:module/columns/:column/options[?branch=]
//
// Lists the selectable values of a lookup column, sorted by label.
func LookupOptionsHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctl := s.loadGrid(c)
		if ctl == nil {
			return
		}
		opts, err := ctl.LookupOptions(c.Param("column"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		relation.SortOptions(opts)
		if opts == nil {
			opts = []relation.Option{}
		}
		c.JSON(http.StatusOK, opts)
	}
}
