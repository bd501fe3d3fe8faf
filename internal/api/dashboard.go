package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tabula/internal/aggregate"
	"tabula/internal/dashboard"
	"tabula/internal/value"
)

// GET /api/dashboard/:entity[?branch=&from=&to=]
//
// from and to bound metrics that declare a date column; either may be
// omitted for an open end.
func DashboardHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var opts dashboard.Options
		from, to := strings.TrimSpace(c.Query("from")), strings.TrimSpace(c.Query("to"))
		if from != "" || to != "" {
			r := &aggregate.DateRange{}
			if from != "" {
				t, err := value.ParseDate(from)
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"errors": []FieldError{ferr(ErrTypeMismatch, "from", "from is not a date")}})
					return
				}
				r.From = t
			}
			if to != "" {
				t, err := value.ParseDate(to)
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"errors": []FieldError{ferr(ErrTypeMismatch, "to", "to is not a date")}})
					return
				}
				r.To = t
			}
			opts.Range = r
		}

		v, err := s.dashboards().Build(c.Request.Context(), c.Param("entity"), c.Query("branch"), opts)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

// GET /api/dashboard/:entity/config[?branch=]
func GetDashboardConfigHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := s.Configs.GetConfig(c.Request.Context(), c.Param("entity"), c.Query("branch"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

// PUT /api/dashboard/:entity/config[?branch=]
//
// Metrics without an id get one; the stored config is returned.
func PutDashboardConfigHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		var cfg dashboard.Config
		if err := c.ShouldBindJSON(&cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		saved, err := s.Configs.PutConfig(c.Request.Context(), c.Param("entity"), c.Query("branch"), cfg)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, saved)
	}
}

// DELETE /api/dashboard/:entity/config[?branch=]
func DeleteDashboardConfigHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Configs.DeleteConfig(c.Request.Context(), c.Param("entity"), c.Query("branch")); err != nil {
			s.writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
