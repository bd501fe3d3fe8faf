package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tabula/internal/table"
)

// GET /api/:entity/:module/_views
func ListViewsHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := s.Views.ListViews(c.Request.Context(), c.Param("entity"), c.Param("module"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		if names == nil {
			names = []string{}
		}
		c.JSON(http.StatusOK, names)
	}
}

// GET /api/:entity/:module/_views/:name
func GetViewHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := s.Views.GetView(c.Request.Context(), c.Param("entity"), c.Param("module"), c.Param("name"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

// PUT /api/:entity/:module/_views/:name
//
// The layout is applied to the module first, so unknown column keys are
// dropped before it is stored.
func PutViewHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var v table.View
		if err := c.ShouldBindJSON(&v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		if err := v.Validate(); err != nil {
			s.writeError(c, err)
			return
		}
		ctl := s.loadGrid(c)
		if ctl == nil {
			return
		}
		ctl.ApplyView(v)
		clean := ctl.CurrentView()
		if err := s.Views.PutView(c.Request.Context(), ctl.Entity, ctl.ModuleName, c.Param("name"), clean); err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, clean)
	}
}
