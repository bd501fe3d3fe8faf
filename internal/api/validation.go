package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"tabula/internal/dashboard"
	"tabula/internal/record"
	"tabula/internal/schema"
	"tabula/internal/table"
	"tabula/internal/value"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	ErrRequired      = "required"
	ErrTypeMismatch  = "type_mismatch"
	ErrInvalid       = "invalid"
	ErrNotFound      = "not_found"
	ErrReadOnly      = "readonly_field"
	ErrUnknownColumn = "unknown_column"
	ErrFilterTooWide = "filter_unavailable"
	ErrInvalidPage   = "invalid_page_size"
	ErrDuplicate     = "duplicate"
	ErrStoreFailure  = "store_failure"
)

func ferr(code, field, msg string) FieldError {
	return FieldError{Code: code, Field: field, Message: msg}
}

// fieldErrors flattens err into the envelope entries it maps to. The second
// result is false for errors that are not the caller's fault.
func fieldErrors(err error) ([]FieldError, bool) {
	var (
		inputs table.InputErrors
		ve     *value.ValidationError
		verrs  validation.Errors
		vobj   validation.Error
		lint   *LintError
	)
	switch {
	case errors.As(err, &inputs):
		out := make([]FieldError, 0, len(inputs))
		for _, e := range inputs {
			out = append(out, validationFieldError(e))
		}
		return out, true
	case errors.As(err, &ve):
		return []FieldError{validationFieldError(ve)}, true
	case errors.As(err, &verrs):
		keys := make([]string, 0, len(verrs))
		for k := range verrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]FieldError, 0, len(keys))
		for _, k := range keys {
			out = append(out, ferr(ErrInvalid, k, verrs[k].Error()))
		}
		return out, true
	case errors.As(err, &vobj):
		return []FieldError{ferr(vobj.Code(), "", err.Error())}, true
	case errors.As(err, &lint):
		out := make([]FieldError, 0, len(lint.Issues))
		for _, it := range lint.Issues {
			out = append(out, ferr(it.Code, it.Module+"."+it.Column, it.Message))
		}
		return out, true
	case errors.Is(err, table.ErrUnknownColumn):
		return []FieldError{ferr(ErrUnknownColumn, "", err.Error())}, true
	case errors.Is(err, table.ErrNotEditable):
		return []FieldError{ferr(ErrReadOnly, "", err.Error())}, true
	case errors.Is(err, table.ErrFilterUnavailable):
		return []FieldError{ferr(ErrFilterTooWide, "", err.Error())}, true
	case errors.Is(err, table.ErrInvalidPageSize):
		return []FieldError{ferr(ErrInvalidPage, "page_size", err.Error())}, true
	case errors.Is(err, schema.ErrDuplicateKey), errors.Is(err, dashboard.ErrDuplicateLabel):
		return []FieldError{ferr(ErrDuplicate, "", err.Error())}, true
	}
	return nil, false
}

func validationFieldError(e *value.ValidationError) FieldError {
	code := ErrTypeMismatch
	if e.Reason == "is required" {
		code = ErrRequired
	}
	return ferr(code, e.Field, e.Error())
}

func isNotFound(err error) bool {
	return errors.Is(err, schema.ErrModuleNotFound) ||
		errors.Is(err, record.ErrNotFound) ||
		errors.Is(err, table.ErrUnknownRow) ||
		errors.Is(err, table.ErrViewNotFound) ||
		errors.Is(err, dashboard.ErrConfigNotFound)
}

// writeError maps err to the response envelope: client errors get a
// FieldError list, missing resources 404, anything else 500.
func (s *Storage) writeError(c *gin.Context, err error) {
	if isNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if errs, ok := fieldErrors(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}
	s.Log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// itemErrors is the per-item error list of a bulk response.
func itemErrors(err error) []FieldError {
	if errs, ok := fieldErrors(err); ok {
		return errs
	}
	if isNotFound(err) {
		return []FieldError{ferr(ErrNotFound, "id", err.Error())}
	}
	return []FieldError{ferr(ErrStoreFailure, "", err.Error())}
}
