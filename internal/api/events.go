package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tabula/internal/record"
)

// GET /api/:entity/:module/_events
//
// Streams row changes of the module and of every module its derived columns
// read from, as server-sent events named insert, update or delete. A
// "ready" event is sent once the subscription is live.
func EventsHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity := c.Param("entity")
		m, err := s.Registry.GetSchema(c.Request.Context(), entity, c.Param("module"), c.Query("branch"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		watch := map[string]bool{m.ModuleName: true}
		for _, t := range m.Targets() {
			watch[t] = true
		}

		events, stop := s.Hub.Subscribe()
		defer stop()

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
		c.SSEvent("ready", gin.H{"entity": entity, "module": m.ModuleName})
		c.Writer.Flush()

		ctx := c.Request.Context()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case ev, ok := <-events:
				if !ok {
					return false
				}
				if relevant(ev, entity, watch) {
					c.SSEvent(string(ev.Type), ev)
				}
				return true
			}
		})
	}
}

func relevant(ev record.Event, entity string, modules map[string]bool) bool {
	return ev.Record.Entity == entity && modules[ev.Record.ModuleName]
}
