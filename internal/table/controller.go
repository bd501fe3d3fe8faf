package table

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tabula/internal/record"
	"tabula/internal/schema"
	"tabula/internal/value"
)

// PageSizes are the selectable page sizes.
var PageSizes = []int{10, 20, 50, 100}

const (
	DefaultPageSize = 20
	// MaxFilterOptions is the largest distinct value set a column may have
	// and still offer an exact-value filter.
	MaxFilterOptions = 20
)

var (
	ErrInvalidPageSize   = errors.New("table: invalid page size")
	ErrFilterUnavailable = errors.New("table: column has too many distinct values to filter")
	ErrUnknownColumn     = errors.New("table: unknown column")
	ErrUnknownRow        = errors.New("table: unknown row")
	ErrNotEditable       = errors.New("table: column is not editable")
	ErrNotEditing        = errors.New("table: no cell in edit mode")
)

// Notice is a transient message for the operator, such as a rejected save.
type Notice struct {
	Message string
	Err     error
	At      time.Time
}

// Controller is the per-session state of one module grid. It is not safe for
// concurrent use.
type Controller struct {
	Entity     string
	ModuleName string
	Branch     string

	// OnRecordUpdate fires after any mutation reached the store.
	OnRecordUpdate func()
	// OnViewConfigChange fires when visibility, order, filters or sort change.
	OnViewConfigChange func(View)
	// OnNotice fires for every transient notice.
	OnNotice func(Notice)

	registry schema.Registry
	records  record.Accessor
	log      zerolog.Logger

	snap Snapshot
	rows []Row

	search   string
	filters  map[string]string
	sortBy   string
	sortDir  Direction
	visible  map[string]bool
	order    []string
	page     int
	pageSize int

	editing  *Cell
	pending  map[Cell]any
	staged   []Cell
	selected map[string]struct{}
	notices  []Notice
}

// Cell addresses one value of the grid by row id and column key.
type Cell struct {
	RowID string `json:"row_id"`
	Key   string `json:"key"`
}

func NewController(reg schema.Registry, rec record.Accessor, entity, module, branch string) *Controller {
	return &Controller{
		Entity:     entity,
		ModuleName: module,
		Branch:     branch,
		registry:   reg,
		records:    rec,
		log:        zerolog.Nop(),
		filters:    make(map[string]string),
		sortDir:    Asc,
		pageSize:   DefaultPageSize,
		pending:    make(map[Cell]any),
		selected:   make(map[string]struct{}),
	}
}

func (c *Controller) WithLogger(log zerolog.Logger) *Controller {
	c.log = log.With().Str("entity", c.Entity).Str("module", c.ModuleName).Logger()
	return c
}

// Reload fetches the schema, the module rows and every target module, then
// recomputes the grid.
func (c *Controller) Reload(ctx context.Context) error {
	s, err := LoadSnapshot(ctx, c.registry, c.records, c.Entity, c.ModuleName, c.Branch)
	if err != nil {
		return err
	}
	c.Load(s)
	return nil
}

// Load replaces the snapshot without fetching.
func (c *Controller) Load(s Snapshot) {
	c.snap = s
	c.ModuleName = s.Module.ModuleName
	c.derive()
	c.page = 0
}

func (c *Controller) derive() {
	c.rows = Derive(c.snap)
	if c.editing != nil && c.rowIndex(c.editing.RowID) < 0 {
		c.editing = nil
	}
}

func (c *Controller) Module() schema.Module { return c.snap.Module }

func (c *Controller) Snapshot() Snapshot { return c.snap }

// Rows returns every derived row in store order.
func (c *Controller) Rows() []Row { return c.rows }

func (c *Controller) Row(id string) (Row, bool) {
	if i := c.rowIndex(id); i >= 0 {
		return c.rows[i], true
	}
	return Row{}, false
}

func (c *Controller) rowIndex(id string) int {
	for i := range c.rows {
		if c.rows[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) column(key string) (schema.ColumnDefinition, bool) {
	return c.snap.Module.Column(key)
}

// Columns returns the visible columns in display order.
func (c *Controller) Columns() []schema.ColumnDefinition {
	cols := c.snap.Module.Columns
	out := make([]schema.ColumnDefinition, 0, len(cols))
	seen := make(map[string]bool, len(cols))
	for _, k := range c.order {
		if col, ok := c.column(k); ok && !seen[k] {
			seen[k] = true
			if c.isVisible(k) {
				out = append(out, col)
			}
		}
	}
	for _, col := range cols {
		if !seen[col.Key] && c.isVisible(col.Key) {
			out = append(out, col)
		}
	}
	return out
}

func (c *Controller) isVisible(key string) bool {
	if c.visible == nil {
		return true
	}
	return c.visible[key]
}

// SetColumnVisible shows or hides a column.
func (c *Controller) SetColumnVisible(key string, visible bool) error {
	if _, ok := c.column(key); !ok {
		return ErrUnknownColumn
	}
	if c.visible == nil {
		c.visible = make(map[string]bool, len(c.snap.Module.Columns))
		for _, col := range c.snap.Module.Columns {
			c.visible[col.Key] = true
		}
	}
	c.visible[key] = visible
	c.viewChanged()
	return nil
}

// SetColumnOrder reorders columns; keys not listed keep their schema order
// after the listed ones.
func (c *Controller) SetColumnOrder(keys []string) error {
	for _, k := range keys {
		if _, ok := c.column(k); !ok {
			return ErrUnknownColumn
		}
	}
	c.order = append([]string(nil), keys...)
	c.viewChanged()
	return nil
}

// ToggleSort sorts by key ascending, or flips the direction when already
// sorted by key.
func (c *Controller) ToggleSort(key string) error {
	if _, ok := c.column(key); !ok {
		return ErrUnknownColumn
	}
	if c.sortBy == key {
		if c.sortDir == Asc {
			c.sortDir = Desc
		} else {
			c.sortDir = Asc
		}
	} else {
		c.sortBy, c.sortDir = key, Asc
	}
	c.page = 0
	c.viewChanged()
	return nil
}

func (c *Controller) SetSort(key string, dir Direction) error {
	if key != "" {
		if _, ok := c.column(key); !ok {
			return ErrUnknownColumn
		}
	}
	if dir != Desc {
		dir = Asc
	}
	c.sortBy, c.sortDir = key, dir
	c.page = 0
	c.viewChanged()
	return nil
}

func (c *Controller) Sort() (string, Direction) { return c.sortBy, c.sortDir }

// SetSearch sets the free-text filter matched across visible columns.
func (c *Controller) SetSearch(q string) {
	c.search = strings.TrimSpace(q)
	c.page = 0
}

// SetColumnFilter sets an exact-value filter; an empty value clears it.
func (c *Controller) SetColumnFilter(key, v string) error {
	if _, ok := c.column(key); !ok {
		return ErrUnknownColumn
	}
	if v == "" {
		delete(c.filters, key)
	} else {
		if c.FilterOptions(key) == nil {
			return ErrFilterUnavailable
		}
		c.filters[key] = v
	}
	c.page = 0
	c.viewChanged()
	return nil
}

// FilterOptions lists the distinct displayed values of a column, sorted.
// It returns nil when the column has more than MaxFilterOptions values.
func (c *Controller) FilterOptions(key string) []string {
	seen := make(map[string]struct{})
	for _, r := range c.rows {
		d := r.Display(key)
		if d == "" {
			continue
		}
		seen[d] = struct{}{}
		if len(seen) > MaxFilterOptions {
			return nil
		}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (c *Controller) matches(r Row, cols []schema.ColumnDefinition, filters map[string]string) bool {
	for k, want := range filters {
		if r.Display(k) != want {
			return false
		}
	}
	if c.search == "" {
		return true
	}
	q := strings.ToLower(c.search)
	for _, col := range cols {
		if strings.Contains(strings.ToLower(r.Display(col.Key)), q) {
			return true
		}
	}
	return false
}

// Filtered returns the rows matching search and column filters, sorted.
func (c *Controller) Filtered() []Row {
	cols := c.Columns()
	// A filter restored for a column that has since grown past
	// MaxFilterOptions values is suppressed.
	active := make(map[string]string, len(c.filters))
	for k, v := range c.filters {
		if c.FilterOptions(k) != nil {
			active[k] = v
		}
	}
	out := make([]Row, 0, len(c.rows))
	for _, r := range c.rows {
		if c.matches(r, cols, active) {
			out = append(out, r)
		}
	}
	if c.sortBy != "" {
		col, _ := c.column(c.sortBy)
		sortRows(out, col, c.sortDir)
	}
	return out
}

// SetPageSize changes the page size and returns to the first page.
func (c *Controller) SetPageSize(n int) error {
	for _, s := range PageSizes {
		if s == n {
			c.pageSize = n
			c.page = 0
			return nil
		}
	}
	return ErrInvalidPageSize
}

// SetPage moves to page p (0-based), clamped to the available pages.
func (c *Controller) SetPage(p int) {
	last := pageCount(len(c.Filtered()), c.pageSize) - 1
	if p > last {
		p = last
	}
	if p < 0 {
		p = 0
	}
	c.page = p
}

// Page is one page of the filtered grid.
type Page struct {
	Rows      []Row `json:"-"`
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	PageCount int   `json:"page_count"`
	Total     int   `json:"total"`
}

func pageCount(n, size int) int {
	if n == 0 {
		return 1
	}
	return (n + size - 1) / size
}

func (c *Controller) Page() Page {
	rows := c.Filtered()
	start := c.page * c.pageSize
	if start > len(rows) {
		start = len(rows)
	}
	end := start + c.pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return Page{
		Rows:      rows[start:end],
		Page:      c.page,
		PageSize:  c.pageSize,
		PageCount: pageCount(len(rows), c.pageSize),
		Total:     len(rows),
	}
}

// Totals of a numeric column over the whole filtered set.
type Totals struct {
	Sum     float64 `json:"sum"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Totals returns sum and average per numeric column.
func (c *Controller) Totals() map[string]Totals {
	rows := c.Filtered()
	out := make(map[string]Totals)
	for _, col := range c.snap.Module.Columns {
		if !col.Type.IsNumeric() {
			continue
		}
		var t Totals
		sum := decimal.Zero
		for _, r := range rows {
			if d, ok := value.ToDecimal(r.Values[col.Key]); ok {
				sum = sum.Add(d)
				t.Count++
			}
		}
		t.Sum = sum.InexactFloat64()
		if t.Count > 0 {
			t.Average = sum.InexactFloat64() / float64(t.Count)
		}
		out[col.Key] = t
	}
	return out
}

// CurrentView captures the layout for persistence.
func (c *Controller) CurrentView() View {
	v := View{
		ColumnOrder: make([]string, 0, len(c.snap.Module.Columns)),
		Filters:     make(map[string]string, len(c.filters)),
		SortBy:      c.sortBy,
	}
	for _, col := range c.columnsInOrder() {
		v.ColumnOrder = append(v.ColumnOrder, col.Key)
	}
	for _, col := range c.Columns() {
		v.VisibleColumns = append(v.VisibleColumns, col.Key)
	}
	if v.VisibleColumns == nil {
		v.VisibleColumns = []string{}
	}
	if c.sortBy != "" {
		v.SortDirection = c.sortDir
	}
	for k, f := range c.filters {
		v.Filters[k] = f
	}
	return v
}

func (c *Controller) columnsInOrder() []schema.ColumnDefinition {
	saved := c.visible
	c.visible = nil
	cols := c.Columns()
	c.visible = saved
	return cols
}

// ApplyView restores a persisted layout. Unknown keys are ignored.
func (c *Controller) ApplyView(v View) {
	c.order = nil
	for _, k := range v.ColumnOrder {
		if _, ok := c.column(k); ok {
			c.order = append(c.order, k)
		}
	}
	c.visible = nil
	if len(v.VisibleColumns) > 0 {
		c.visible = make(map[string]bool, len(v.VisibleColumns))
		for _, k := range v.VisibleColumns {
			c.visible[k] = true
		}
	}
	c.filters = make(map[string]string, len(v.Filters))
	for k, f := range v.Filters {
		if _, ok := c.column(k); ok && f != "" {
			c.filters[k] = f
		}
	}
	c.sortBy, c.sortDir = "", Asc
	if _, ok := c.column(v.SortBy); ok {
		c.sortBy = v.SortBy
		if v.SortDirection == Desc {
			c.sortDir = Desc
		}
	}
	c.page = 0
}

func (c *Controller) viewChanged() {
	if c.OnViewConfigChange != nil {
		c.OnViewConfigChange(c.CurrentView())
	}
}

func (c *Controller) recordsChanged() {
	c.derive()
	c.page = 0
	if c.OnRecordUpdate != nil {
		c.OnRecordUpdate()
	}
}

func (c *Controller) notify(msg string, err error) {
	n := Notice{Message: msg, Err: err, At: time.Now().UTC()}
	c.notices = append(c.notices, n)
	c.log.Warn().Err(err).Msg(msg)
	if c.OnNotice != nil {
		c.OnNotice(n)
	}
}

// TakeNotices returns and clears pending notices.
func (c *Controller) TakeNotices() []Notice {
	out := c.notices
	c.notices = nil
	return out
}

// ApplyEvent patches local rows from a pushed change. Events for another
// entity, or for a module the grid neither shows nor reads, are discarded.
func (c *Controller) ApplyEvent(ev record.Event) bool {
	if ev.Record.Entity != c.Entity {
		return false
	}
	name := ev.Record.ModuleName
	if name == c.snap.Module.ModuleName {
		rows, ok := patch(c.snap.Rows, ev)
		if !ok {
			return false
		}
		c.snap.Rows = rows
		if ev.Type == record.EventDelete {
			delete(c.selected, ev.Record.ID)
		}
	} else {
		t, known := c.snap.Targets[name]
		if !known {
			return false
		}
		rows, ok := patch(t, ev)
		if !ok {
			return false
		}
		c.snap.Targets[name] = rows
	}
	c.derive()
	c.page = 0
	return true
}

func patch(rows []record.Record, ev record.Event) ([]record.Record, bool) {
	i := -1
	for j := range rows {
		if rows[j].ID == ev.Record.ID {
			i = j
			break
		}
	}
	switch ev.Type {
	case record.EventInsert, record.EventUpdate:
		if i >= 0 {
			rows[i] = ev.Record.Clone()
			return rows, true
		}
		return append(rows, ev.Record.Clone()), true
	case record.EventDelete:
		if i < 0 {
			return rows, false
		}
		return append(rows[:i], rows[i+1:]...), true
	}
	return rows, false
}
