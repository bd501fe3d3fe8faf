package table

import (
	"context"
	"sort"
	"strings"

	"tabula/internal/record"
	"tabula/internal/relation"
	"tabula/internal/schema"
	"tabula/internal/value"
)

// Editable reports whether a column accepts input. Lookups are edited
// through their foreign key, never through the label.
func Editable(col schema.ColumnDefinition) bool {
	return !col.Type.IsDerived() || col.Type == schema.TypeLookup
}

// storeKey is the payload key an edit of col writes to.
func storeKey(col schema.ColumnDefinition) string {
	if col.Type == schema.TypeLookup {
		return col.SourceKey()
	}
	return col.Key
}

// LookupOptions lists the selectable foreign keys of a lookup column.
func (c *Controller) LookupOptions(key string) ([]relation.Option, error) {
	col, ok := c.column(key)
	if !ok {
		return nil, ErrUnknownColumn
	}
	if col.Type != schema.TypeLookup || col.Relationship == nil {
		return nil, ErrNotEditable
	}
	return relation.Options(c.snap.Target(col.Relationship.TargetModule), *col.Relationship), nil
}

// ParseCell converts operator input into the payload value for col.
// Number and currency accept locale formats, dates DD/MM/YYYY or ISO (stored
// as ISO), lookups one of the target keys. Blank input clears the cell
// unless the column is required.
func (c *Controller) ParseCell(col schema.ColumnDefinition, input string) (any, error) {
	if col.Type == schema.TypeLookup {
		in := strings.TrimSpace(input)
		if in == "" {
			if col.Required {
				return nil, value.NewValidationError(col.Key, input, "is required")
			}
			return nil, nil
		}
		opts, _ := c.LookupOptions(col.Key)
		for _, o := range opts {
			if o.Value == in {
				return in, nil
			}
		}
		return nil, value.NewValidationError(col.Key, input, "is not a valid option")
	}
	v, err := value.ParseInput(col.Type.Kind(), col.Key, input)
	if err != nil {
		return nil, err
	}
	if v.IsEmpty() && col.Required {
		return nil, value.NewValidationError(col.Key, input, "is required")
	}
	return v.Interface(), nil
}

// BeginEdit puts a cell in edit mode.
func (c *Controller) BeginEdit(rowID, key string) error {
	if c.rowIndex(rowID) < 0 {
		return ErrUnknownRow
	}
	col, ok := c.column(key)
	if !ok {
		return ErrUnknownColumn
	}
	if !Editable(col) {
		return ErrNotEditable
	}
	c.editing = &Cell{RowID: rowID, Key: key}
	return nil
}

// Editing returns the cell in edit mode.
func (c *Controller) Editing() (Cell, bool) {
	if c.editing == nil {
		return Cell{}, false
	}
	return *c.editing, true
}

// EditValue is the raw value an editor starts from: the stored value, or the
// foreign key for lookups.
func (c *Controller) EditValue(cell Cell) string {
	r, ok := c.Row(cell.RowID)
	col, ok2 := c.column(cell.Key)
	if !ok || !ok2 {
		return ""
	}
	return value.String(r.Record.Get(storeKey(col)))
}

// Cancel leaves edit mode without saving.
func (c *Controller) Cancel() {
	c.editing = nil
}

// Commit validates input and sends it to the store. A ValidationError keeps
// the cell in edit mode; a StoreError ends editing and raises a notice.
func (c *Controller) Commit(ctx context.Context, input string) error {
	if c.editing == nil {
		return ErrNotEditing
	}
	cell := *c.editing
	col, ok := c.column(cell.Key)
	if !ok {
		c.editing = nil
		return ErrUnknownColumn
	}
	v, err := c.ParseCell(col, input)
	if err != nil {
		return err
	}
	c.editing = nil
	if err := c.save(ctx, cell.RowID, storeKey(col), v); err != nil {
		return err
	}
	c.recordsChanged()
	return nil
}

func (c *Controller) save(ctx context.Context, id, field string, v any) error {
	if err := c.records.UpdateRecordField(ctx, id, field, v); err != nil {
		if !record.IsStoreError(err) {
			err = record.NewStoreError("update", id, err)
		}
		c.notify("save failed", err)
		return err
	}
	c.patchLocal(id, field, v)
	return nil
}

func (c *Controller) patchLocal(id, field string, v any) {
	for i := range c.snap.Rows {
		if c.snap.Rows[i].ID != id {
			continue
		}
		if c.snap.Rows[i].Data == nil {
			c.snap.Rows[i].Data = make(map[string]any)
		}
		if v == nil {
			delete(c.snap.Rows[i].Data, field)
		} else {
			c.snap.Rows[i].Data[field] = v
		}
		return
	}
}

// Advance commits the cell in edit mode and opens the next stored cell in
// row-major order over the filtered, sorted grid, wrapping to the first row.
// The page follows the new cell.
func (c *Controller) Advance(ctx context.Context, input string) (Cell, error) {
	if c.editing == nil {
		return Cell{}, ErrNotEditing
	}
	from := *c.editing
	rows := c.Filtered()
	cols := c.Columns()

	if err := c.Commit(ctx, input); err != nil {
		return Cell{}, err
	}

	ri, ci := -1, -1
	for i := range rows {
		if rows[i].ID == from.RowID {
			ri = i
			break
		}
	}
	for i := range cols {
		if cols[i].Key == from.Key {
			ci = i
			break
		}
	}
	if ri < 0 || len(cols) == 0 {
		return Cell{}, nil
	}

	total := len(rows) * len(cols)
	pos := ri*len(cols) + ci
	for step := 1; step <= total; step++ {
		p := (pos + step) % total
		r, col := rows[p/len(cols)], cols[p%len(cols)]
		if col.Type.IsDerived() || c.rowIndex(r.ID) < 0 {
			continue
		}
		next := Cell{RowID: r.ID, Key: col.Key}
		c.editing = &next
		c.page = (p / len(cols)) / c.pageSize
		return next, nil
	}
	return Cell{}, nil
}

// StageEdit records a pending batch edit without touching the store.
func (c *Controller) StageEdit(rowID, key, input string) error {
	if c.rowIndex(rowID) < 0 {
		return ErrUnknownRow
	}
	col, ok := c.column(key)
	if !ok {
		return ErrUnknownColumn
	}
	if !Editable(col) {
		return ErrNotEditable
	}
	v, err := c.ParseCell(col, input)
	if err != nil {
		return err
	}
	cell := Cell{RowID: rowID, Key: key}
	if _, dup := c.pending[cell]; !dup {
		c.staged = append(c.staged, cell)
	}
	c.pending[cell] = v
	return nil
}

// Pending returns the staged value of a cell.
func (c *Controller) Pending(rowID, key string) (any, bool) {
	v, ok := c.pending[Cell{RowID: rowID, Key: key}]
	return v, ok
}

func (c *Controller) PendingCount() int { return len(c.staged) }

// CancelBatch discards every staged edit.
func (c *Controller) CancelBatch() {
	c.pending = make(map[Cell]any)
	c.staged = nil
}

// BatchReport counts the outcome of SaveAll.
type BatchReport struct {
	Saved  int     `json:"saved"`
	Failed int     `json:"failed"`
	Errors []error `json:"-"`
}

// SaveAll flushes staged edits one at a time in staging order. A failure is
// counted and never stops the remaining saves.
func (c *Controller) SaveAll(ctx context.Context) BatchReport {
	var rep BatchReport
	for _, cell := range c.staged {
		col, ok := c.column(cell.Key)
		if !ok {
			rep.Failed++
			rep.Errors = append(rep.Errors, ErrUnknownColumn)
			continue
		}
		if err := c.save(ctx, cell.RowID, storeKey(col), c.pending[cell]); err != nil {
			rep.Failed++
			rep.Errors = append(rep.Errors, err)
			continue
		}
		rep.Saved++
	}
	c.CancelBatch()
	if rep.Saved > 0 {
		c.recordsChanged()
	}
	c.log.Debug().Int("saved", rep.Saved).Int("failed", rep.Failed).Msg("batch saved")
	return rep
}

func (c *Controller) Select(id string) error {
	if c.rowIndex(id) < 0 {
		return ErrUnknownRow
	}
	c.selected[id] = struct{}{}
	return nil
}

func (c *Controller) Deselect(id string) {
	delete(c.selected, id)
}

// SelectAll selects every row of the filtered set.
func (c *Controller) SelectAll() {
	for _, r := range c.Filtered() {
		c.selected[r.ID] = struct{}{}
	}
}

func (c *Controller) ClearSelection() {
	c.selected = make(map[string]struct{})
}

func (c *Controller) Selected() []string {
	out := make([]string, 0, len(c.selected))
	for id := range c.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// BulkReport counts the outcome of DeleteSelected.
type BulkReport struct {
	Deleted int     `json:"deleted"`
	Failed  int     `json:"failed"`
	Errors  []error `json:"-"`
}

// DeleteSelected deletes each selected row independently. Rows that failed
// stay selected.
func (c *Controller) DeleteSelected(ctx context.Context) BulkReport {
	var rep BulkReport
	for _, id := range c.Selected() {
		if err := c.records.DeleteRecord(ctx, id); err != nil {
			if !record.IsStoreError(err) {
				err = record.NewStoreError("delete", id, err)
			}
			rep.Failed++
			rep.Errors = append(rep.Errors, err)
			c.notify("delete failed", err)
			continue
		}
		rep.Deleted++
		delete(c.selected, id)
		for i := range c.snap.Rows {
			if c.snap.Rows[i].ID == id {
				c.snap.Rows = append(c.snap.Rows[:i], c.snap.Rows[i+1:]...)
				break
			}
		}
	}
	if rep.Deleted > 0 {
		c.recordsChanged()
	}
	return rep
}

// InputErrors collects per-field validation failures of a new row.
type InputErrors []*value.ValidationError

func (e InputErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, v := range e {
		parts = append(parts, v.Error())
	}
	return strings.Join(parts, "; ")
}

// PrepareData validates and converts a new row's payload: strings are parsed
// like cell input, defaults are applied, required columns are enforced and
// derived keys are dropped. Keys outside the schema pass through.
func (c *Controller) PrepareData(data map[string]any) (map[string]any, error) {
	m := c.snap.Module
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	m.ApplyDefaults(out)

	var errs InputErrors
	for _, col := range m.Columns {
		if !Editable(col) {
			continue
		}
		key := storeKey(col)
		raw, present := out[key]
		var (
			v   any
			err error
		)
		switch t := raw.(type) {
		case nil:
			if col.Required {
				err = value.NewValidationError(col.Key, "", "is required")
			}
		case string:
			v, err = c.ParseCell(col, t)
		default:
			v, err = coerceTyped(col, raw)
		}
		if err != nil {
			if ve, ok := err.(*value.ValidationError); ok {
				errs = append(errs, ve)
			}
			continue
		}
		if v == nil {
			if present {
				delete(out, key)
			}
			continue
		}
		out[key] = v
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return m.StoredData(out), nil
}

func coerceTyped(col schema.ColumnDefinition, raw any) (any, error) {
	switch col.Type.Kind() {
	case value.KindNumber, value.KindCurrency:
		f, ok := value.ToFloat(raw)
		if !ok {
			return nil, value.NewValidationError(col.Key, value.String(raw), "is not a number")
		}
		return f, nil
	case value.KindDate:
		d, ok := value.ToDate(raw)
		if !ok {
			return nil, value.NewValidationError(col.Key, value.String(raw), "is not a date (DD/MM/YYYY)")
		}
		return d.Format(value.DateLayout), nil
	}
	return value.String(raw), nil
}

// Create validates data, inserts it and appends the new row locally.
func (c *Controller) Create(ctx context.Context, data map[string]any) (record.Record, error) {
	payload, err := c.PrepareData(data)
	if err != nil {
		return record.Record{}, err
	}
	rec, err := c.records.AddRecord(ctx, c.Entity, c.snap.Module.ModuleName, payload)
	if err != nil {
		if !record.IsStoreError(err) {
			err = record.NewStoreError("insert", "", err)
		}
		c.notify("insert failed", err)
		return record.Record{}, err
	}
	c.snap.Rows = append(c.snap.Rows, rec)
	c.recordsChanged()
	return rec, nil
}

// CreateBulk validates every row first and inserts none if any is invalid;
// the returned map holds the error of each failing input index.
func (c *Controller) CreateBulk(ctx context.Context, data []map[string]any) (int, map[int]error, error) {
	payloads := make([]map[string]any, 0, len(data))
	bad := make(map[int]error)
	for i, d := range data {
		p, err := c.PrepareData(d)
		if err != nil {
			bad[i] = err
			continue
		}
		payloads = append(payloads, p)
	}
	if len(bad) > 0 {
		return 0, bad, nil
	}
	n, err := c.records.AddRecordsBulk(ctx, c.Entity, c.snap.Module.ModuleName, payloads)
	if err != nil {
		if !record.IsStoreError(err) {
			err = record.NewStoreError("bulk insert", "", err)
		}
		c.notify("bulk insert failed", err)
		return 0, nil, err
	}
	if n > 0 {
		if err := c.Reload(ctx); err != nil {
			return n, nil, err
		}
		if c.OnRecordUpdate != nil {
			c.OnRecordUpdate()
		}
	}
	return n, nil, nil
}
