package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"tabula/internal/record"
	"tabula/internal/table"
	"tabula/internal/value"
)

// loadGrid resolves :entity/:module (and ?branch=) into a loaded controller.
// It writes the error response itself and returns nil on failure.
func (s *Storage) loadGrid(c *gin.Context) *table.Controller {
	ctl, err := s.controller(c.Request.Context(), c.Param("entity"), c.Param("module"), c.Query("branch"))
	if err != nil {
		s.writeError(c, err)
		return nil
	}
	return ctl
}

// GET /api/:entity/:module
func GridHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctl := s.loadGrid(c)
		if ctl == nil {
			return
		}
		if err := parseGridParams(c.Request.URL.Query()).apply(c.Request.Context(), s.Views, ctl); err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, buildGrid(ctl))
	}
}

// GET /api/:entity/:module/:id
func GetOneHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctl := s.loadGrid(c)
		if ctl == nil {
			return
		}
		r, ok := ctl.Row(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
			return
		}
		out := flatten(r.Record)
		for k, v := range r.Values {
			out[k] = v
		}
		c.JSON(http.StatusOK, out)
	}
}

// POST /api/:entity/:module
func CreateHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctl := s.loadGrid(c)
		if ctl == nil {
			return
		}
		var obj map[string]interface{}
		if err := c.ShouldBindJSON(&obj); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		rec, err := ctl.Create(c.Request.Context(), obj)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, flatten(rec))
	}
}

// POST /api/:entity/:module/_bulk
//
// The batch is all-or-nothing: one invalid item rejects every item.
func BulkCreateHandler(s *Storage) gin.HandlerFunc {
	type itemResult struct {
		Index  int          `json:"index"`
		Errors []FieldError `json:"errors"`
	}
	return func(c *gin.Context) {
		ctl := s.loadGrid(c)
		if ctl == nil {
			return
		}
		var items []map[string]any
		if err := c.ShouldBindJSON(&items); err != nil || len(items) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON array"})
			return
		}

		n, bad, err := ctl.CreateBulk(c.Request.Context(), items)
		if len(bad) > 0 {
			idx := make([]int, 0, len(bad))
			for i := range bad {
				idx = append(idx, i)
			}
			sort.Ints(idx)
			results := make([]itemResult, 0, len(idx))
			for _, i := range idx {
				results = append(results, itemResult{Index: i, Errors: itemErrors(bad[i])})
			}
			countBulk("create", 0, len(items))
			c.JSON(http.StatusBadRequest, gin.H{"items": results})
			return
		}
		if err != nil {
			countBulk("create", 0, len(items))
			s.writeError(c, err)
			return
		}
		countBulk("create", n, 0)
		c.JSON(http.StatusCreated, gin.H{"inserted": n})
	}
}

// PATCH /api/:entity/:module/:id
//
// The body maps column keys to input, parsed exactly like a cell edit.
// Keys are committed in order; the first failure stops the update.
func UpdatePartialHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctl := s.loadGrid(c)
		if ctl == nil {
			return
		}
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil || len(body) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		id := c.Param("id")
		keys := make([]string, 0, len(body))
		for k := range body {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if err := ctl.BeginEdit(id, k); err != nil {
				if errors.Is(err, table.ErrUnknownColumn) || errors.Is(err, table.ErrNotEditable) {
					c.JSON(http.StatusBadRequest, gin.H{"errors": []FieldError{ferr(editCode(err), k, err.Error())}})
					return
				}
				s.writeError(c, err)
				return
			}
			if err := ctl.Commit(c.Request.Context(), value.String(body[k])); err != nil {
				s.writeError(c, err)
				return
			}
		}

		r, _ := ctl.Row(id)
		out := flatten(r.Record)
		for k, v := range r.Values {
			out[k] = v
		}
		c.JSON(http.StatusOK, out)
	}
}

func editCode(err error) string {
	if errors.Is(err, table.ErrNotEditable) {
		return ErrReadOnly
	}
	return ErrUnknownColumn
}

// DELETE /api/:entity/:module/:id
func DeleteHandler(s *Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Records.DeleteRecord(c.Request.Context(), c.Param("id")); err != nil {
			s.writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/:entity/:module/_bulk_delete
func BulkDeleteHandler(s *Storage) gin.HandlerFunc {
	type req struct {
		IDs []string `json:"ids"`
	}
	type res struct {
		ID     string       `json:"id"`
		Errors []FieldError `json:"errors,omitempty"`
	}
	return func(c *gin.Context) {
		ctl := s.loadGrid(c)
		if ctl == nil {
			return
		}
		var body req
		if err := c.ShouldBindJSON(&body); err != nil || len(body.IDs) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON: expected {ids:[]}"})
			return
		}

		unknown := make(map[string]bool)
		for _, id := range body.IDs {
			if err := ctl.Select(id); err != nil {
				unknown[id] = true
			}
		}

		rep := ctl.DeleteSelected(c.Request.Context())
		failed := make(map[string]error, len(rep.Errors))
		for _, err := range rep.Errors {
			var se *record.StoreError
			if errors.As(err, &se) {
				failed[se.ID] = err
			}
		}

		results := make([]res, 0, len(body.IDs))
		for _, id := range body.IDs {
			switch {
			case unknown[id]:
				results = append(results, res{ID: id, Errors: []FieldError{ferr(ErrNotFound, "id", "Record not found")}})
			case failed[id] != nil:
				results = append(results, res{ID: id, Errors: itemErrors(failed[id])})
			default:
				results = append(results, res{ID: id})
			}
		}
		countBulk("delete", rep.Deleted, rep.Failed+len(unknown))
		c.JSON(http.StatusMultiStatus, gin.H{
			"deleted": rep.Deleted,
			"failed":  rep.Failed + len(unknown),
			"items":   results,
		})
	}
}

// POST /api/:entity/:module/_batch
//
// Edits are staged like pending cell edits, then saved one at a time. A
// failed item never stops the rest.
func BatchHandler(s *Storage) gin.HandlerFunc {
	type edit struct {
		RowID string `json:"row_id"`
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
	type req struct {
		Edits []edit `json:"edits"`
	}
	type res struct {
		RowID  string       `json:"row_id"`
		Key    string       `json:"key,omitempty"`
		Errors []FieldError `json:"errors"`
	}
	return func(c *gin.Context) {
		ctl := s.loadGrid(c)
		if ctl == nil {
			return
		}
		var body req
		if err := c.ShouldBindJSON(&body); err != nil || len(body.Edits) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON: expected {edits:[]}"})
			return
		}

		var failures []res
		for _, e := range body.Edits {
			if err := ctl.StageEdit(e.RowID, e.Key, value.String(e.Value)); err != nil {
				failures = append(failures, res{RowID: e.RowID, Key: e.Key, Errors: itemErrors(err)})
			}
		}
		rep := ctl.SaveAll(c.Request.Context())
		for _, err := range rep.Errors {
			var se *record.StoreError
			id := ""
			if errors.As(err, &se) {
				id = se.ID
			}
			failures = append(failures, res{RowID: id, Errors: itemErrors(err)})
		}
		if failures == nil {
			failures = []res{}
		}
		countBulk("batch", rep.Saved, len(failures))
		c.JSON(http.StatusMultiStatus, gin.H{
			"saved":  rep.Saved,
			"failed": len(failures),
			"items":  failures,
		})
	}
}
