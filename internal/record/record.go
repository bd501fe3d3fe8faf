// Package record defines the record accessor the rest of the system reads
// and mutates rows through, plus an in-process implementation.
package record

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Record is one row of a module. Data is an open key/value payload: keys of
// removed columns may linger and readers must tolerate them.
type Record struct {
	ID         string         `json:"id"`
	Entity     string         `json:"entity"`
	ModuleName string         `json:"module_name"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Get returns the payload value under key.
func (r Record) Get(key string) any {
	if r.Data == nil {
		return nil
	}
	return r.Data[key]
}

// Clone copies the record including its payload map.
func (r Record) Clone() Record {
	cp := r
	cp.Data = make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		cp.Data[k] = v
	}
	return cp
}

// Reader is the read half of the accessor; every derived computation only
// needs this.
type Reader interface {
	GetRecords(ctx context.Context, entity, module string) ([]Record, error)
}

// Accessor is the record store consumed by the table and dashboard controllers.
type Accessor interface {
	Reader
	AddRecord(ctx context.Context, entity, module string, data map[string]any) (Record, error)
	AddRecordsBulk(ctx context.Context, entity, module string, data []map[string]any) (int, error)
	UpdateRecordField(ctx context.Context, id, field string, value any) error
	DeleteRecord(ctx context.Context, id string) error
}

// ErrNotFound is matched by StoreErrors for unknown record ids.
var ErrNotFound = errors.New("record: not found")

// StoreError reports a mutation the store rejected.
type StoreError struct {
	Op  string
	ID  string
	Err error
}

func (e *StoreError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("record: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("record: %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err as a StoreError for op.
func NewStoreError(op, id string, err error) *StoreError {
	return &StoreError{Op: op, ID: id, Err: err}
}

// IsStoreError reports whether err (or anything it wraps) is a StoreError.
func IsStoreError(err error) bool {
	if err == nil {
		return false
	}
	var e *StoreError
	return errors.As(err, &e)
}
