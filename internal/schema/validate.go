package schema

import (
	"errors"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var keyRe = regexp.MustCompile(`^[a-z0-9_]+$`)

var (
	conditionOperators = []interface{}{
		CondEquals, CondNotEquals, CondGreaterThan, CondLessThan,
		CondContains, CondNotEmpty, CondIsEmpty,
	}
	formatConditions = []interface{}{
		FormatGT, FormatLT, FormatGTE, FormatLTE, FormatEQ, FormatContains,
	}
)

func (c Condition) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Column, validation.Required),
		validation.Field(&c.Operator, validation.Required, validation.In(conditionOperators...)),
	)
}

func (r RelationshipMetadata) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TargetModule, validation.Required),
		validation.Field(&r.TargetKeyColumn, validation.Required),
	)
}

func (r FormatRule) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Condition, validation.Required, validation.In(formatConditions...)),
	)
}

// Validate checks a single column: aggregate columns need target module,
// value column, group column and operation; calculated columns need an
// expression; lookups need a relationship.
func (c ColumnDefinition) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Key, validation.Required, validation.Match(keyRe)),
		validation.Field(&c.Label, validation.Required),
		validation.Field(&c.Type, validation.Required, validation.In(columnTypes...)),
		validation.Field(&c.Formula,
			validation.When(c.Type.IsAggregate() || c.Type == TypeCalculated,
				validation.Required, validation.By(c.checkFormula))),
		validation.Field(&c.Relationship, validation.When(c.Type == TypeLookup, validation.Required)),
		validation.Field(&c.ConditionalFormatting),
	)
}

func (c ColumnDefinition) checkFormula(v interface{}) error {
	f, _ := v.(*FormulaMetadata)
	if f == nil {
		return nil
	}
	if c.Type == TypeCalculated {
		return validation.ValidateStruct(f,
			validation.Field(&f.Expression, validation.Required),
		)
	}
	return validation.ValidateStruct(f,
		validation.Field(&f.TargetModule, validation.Required),
		validation.Field(&f.ValueColumn, validation.Required),
		validation.Field(&f.GroupByColumn, validation.Required),
		validation.Field(&f.Operation, validation.Required, validation.By(checkOperation)),
		validation.Field(&f.Condition),
	)
}

func checkOperation(v interface{}) error {
	op, _ := v.(Operation)
	if _, ok := ParseOperation(string(op)); !ok {
		return fmt.Errorf("unknown operation %q", op)
	}
	return nil
}

// ValidateColumns validates every column and rejects duplicate keys.
func ValidateColumns(columns []ColumnDefinition) error {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := seen[c.Key]; dup {
			return fmt.Errorf("column %s: %w", c.Key, ErrDuplicateKey)
		}
		seen[c.Key] = struct{}{}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("column %s: %w", c.Key, err)
		}
	}
	return nil
}

// PrepareColumns assigns keys, normalizes operations and validates. It is
// the single entry point used by every Registry implementation on upsert.
func PrepareColumns(columns []ColumnDefinition) ([]ColumnDefinition, error) {
	out := AssignKeys(columns)
	for i := range out {
		if f := out[i].Formula; f != nil && f.Operation != "" {
			if op, ok := ParseOperation(string(f.Operation)); ok {
				cp := *f
				cp.Operation = op
				out[i].Formula = &cp
			}
		}
	}
	if err := ValidateColumns(out); err != nil {
		return nil, err
	}
	return out, nil
}

var (
	ErrModuleNotFound = errors.New("schema: module not found")
	ErrColumnNotFound = errors.New("schema: column not found")
	ErrDuplicateKey   = errors.New("schema: duplicate column key")
)
