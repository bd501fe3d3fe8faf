package schema

import (
	"strings"
	"time"

	"tabula/internal/value"
)

// ColumnType is the declared type of a module column.
type ColumnType string

const (
	TypeText       ColumnType = "text"
	TypeNumber     ColumnType = "number"
	TypeCurrency   ColumnType = "currency"
	TypeDate       ColumnType = "date"
	TypeFormula    ColumnType = "formula"
	TypeReference  ColumnType = "reference"
	TypeCalculated ColumnType = "calculated"
	TypeLookup     ColumnType = "lookup"
)

var columnTypes = []interface{}{
	TypeText, TypeNumber, TypeCurrency, TypeDate,
	TypeFormula, TypeReference, TypeCalculated, TypeLookup,
}

// IsDerived reports types whose displayed value is computed on read.
func (t ColumnType) IsDerived() bool {
	switch t {
	case TypeFormula, TypeReference, TypeCalculated, TypeLookup:
		return true
	}
	return false
}

// IsAggregate reports types backed by the aggregation engine.
func (t ColumnType) IsAggregate() bool {
	return t == TypeFormula || t == TypeReference
}

// IsNumeric reports types whose displayed value is a number.
func (t ColumnType) IsNumeric() bool {
	switch t {
	case TypeNumber, TypeCurrency, TypeFormula, TypeReference, TypeCalculated:
		return true
	}
	return false
}

// Kind maps a stored column type onto the edit-boundary value kind.
func (t ColumnType) Kind() value.Kind {
	switch t {
	case TypeNumber:
		return value.KindNumber
	case TypeCurrency:
		return value.KindCurrency
	case TypeDate:
		return value.KindDate
	default:
		return value.KindText
	}
}

// Operation is an aggregate reduction.
type Operation string

const (
	OpSum     Operation = "SUM"
	OpAverage Operation = "AVERAGE"
	OpCount   Operation = "COUNT"
	OpMin     Operation = "MIN"
	OpMax     Operation = "MAX"
)

// ParseOperation accepts any case and the AVG alias.
func ParseOperation(s string) (Operation, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUM":
		return OpSum, true
	case "AVERAGE", "AVG":
		return OpAverage, true
	case "COUNT":
		return OpCount, true
	case "MIN":
		return OpMin, true
	case "MAX":
		return OpMax, true
	}
	return "", false
}

// Condition operators.
const (
	CondEquals      = "equals"
	CondNotEquals   = "not_equals"
	CondGreaterThan = "greater_than"
	CondLessThan    = "less_than"
	CondContains    = "contains"
	CondNotEmpty    = "not_empty"
	CondIsEmpty     = "is_empty"
)

// Condition is the single row filter an aggregate may carry.
type Condition struct {
	Column   string `json:"column" yaml:"column"`
	Operator string `json:"operator" yaml:"operator"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
}

// FormulaMetadata configures formula/reference columns (aggregate form) and
// calculated columns (Expression only).
type FormulaMetadata struct {
	TargetModule  string     `json:"target_module,omitempty" yaml:"target_module,omitempty"`
	ValueColumn   string     `json:"value_column,omitempty" yaml:"value_column,omitempty"`
	GroupByColumn string     `json:"group_by_column,omitempty" yaml:"group_by_column,omitempty"`
	Operation     Operation  `json:"operation,omitempty" yaml:"operation,omitempty"`
	DateColumn    string     `json:"date_column,omitempty" yaml:"date_column,omitempty"`
	Condition     *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
	// SourceKeyColumn is the column of the current row holding the group key.
	// Empty means GroupByColumn.
	SourceKeyColumn string `json:"source_key_column,omitempty" yaml:"source_key_column,omitempty"`

	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// SourceKey returns the current-row column supplying the group key.
func (f FormulaMetadata) SourceKey() string {
	if f.SourceKeyColumn != "" {
		return f.SourceKeyColumn
	}
	return f.GroupByColumn
}

// RelationshipMetadata configures a lookup column.
type RelationshipMetadata struct {
	TargetModule        string `json:"target_module" yaml:"target_module"`
	TargetKeyColumn     string `json:"target_key_column" yaml:"target_key_column"`
	TargetDisplayColumn string `json:"target_display_column,omitempty" yaml:"target_display_column,omitempty"`
	SourceColumnKey     string `json:"source_column_key,omitempty" yaml:"source_column_key,omitempty"`
}

// Conditional formatting conditions.
const (
	FormatGT       = "gt"
	FormatLT       = "lt"
	FormatGTE      = "gte"
	FormatLTE      = "lte"
	FormatEQ       = "eq"
	FormatContains = "contains"
)

type Style struct {
	Color      string `json:"color,omitempty" yaml:"color,omitempty"`
	Background string `json:"background,omitempty" yaml:"background,omitempty"`
	Bold       bool   `json:"bold,omitempty" yaml:"bold,omitempty"`
}

// FormatRule is one conditional formatting rule; the first match wins.
type FormatRule struct {
	Condition string `json:"condition" yaml:"condition"`
	Value     string `json:"value" yaml:"value"`
	Style     Style  `json:"style" yaml:"style"`
}

// ColumnDefinition describes one column of a module.
type ColumnDefinition struct {
	Key                   string                `json:"key" yaml:"key"`
	Label                 string                `json:"label" yaml:"label"`
	Type                  ColumnType            `json:"type" yaml:"type"`
	Required              bool                  `json:"required,omitempty" yaml:"required,omitempty"`
	Default               any                   `json:"default,omitempty" yaml:"default,omitempty"`
	Formula               *FormulaMetadata      `json:"formula,omitempty" yaml:"formula,omitempty"`
	Relationship          *RelationshipMetadata `json:"relationship,omitempty" yaml:"relationship,omitempty"`
	ConditionalFormatting []FormatRule          `json:"conditional_formatting,omitempty" yaml:"conditional_formatting,omitempty"`
}

// SourceKey is the payload key a lookup column reads its foreign key from.
func (c ColumnDefinition) SourceKey() string {
	if c.Relationship != nil && c.Relationship.SourceColumnKey != "" {
		return c.Relationship.SourceColumnKey
	}
	return c.Key
}

// Persisted reports whether a value may be written under this column's key.
// A lookup without its own source column stores the raw foreign key under
// its own key; the resolved label is never written.
func (c ColumnDefinition) Persisted() bool {
	if c.Type == TypeLookup {
		return c.SourceKey() == c.Key
	}
	return !c.Type.IsDerived()
}

// Module is a named table of an entity, optionally inside a branch.
type Module struct {
	Entity     string             `json:"entity" yaml:"entity"`
	Branch     string             `json:"branch,omitempty" yaml:"branch,omitempty"`
	ModuleName string             `json:"module_name" yaml:"module_name"`
	Columns    []ColumnDefinition `json:"columns" yaml:"columns"`
	UpdatedAt  time.Time          `json:"updated_at" yaml:"-"`
}

// Column returns the column with the given key.
func (m *Module) Column(key string) (ColumnDefinition, bool) {
	for _, c := range m.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return ColumnDefinition{}, false
}

// StoredData drops every key belonging to a derived column. Unknown keys are
// kept: payloads may carry keys of removed columns.
func (m *Module) StoredData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	for _, c := range m.Columns {
		if !c.Persisted() {
			delete(out, c.Key)
		}
	}
	return out
}

// ApplyDefaults fills missing stored columns from their defaults.
func (m *Module) ApplyDefaults(data map[string]any) {
	for _, c := range m.Columns {
		if c.Type.IsDerived() || c.Default == nil {
			continue
		}
		if _, ok := data[c.Key]; !ok {
			data[c.Key] = c.Default
		}
	}
}

// Targets lists the other modules this module derives values from.
func (m *Module) Targets() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(name string) {
		if name == "" || name == m.ModuleName {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, c := range m.Columns {
		if c.Type.IsAggregate() && c.Formula != nil {
			add(c.Formula.TargetModule)
		}
		if c.Type == TypeLookup && c.Relationship != nil {
			add(c.Relationship.TargetModule)
		}
	}
	return out
}
