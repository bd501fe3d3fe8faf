// Package dashboard builds the per-branch summary of an entity: either a
// configured grid of metrics over a primary module, or an automatic summary
// of every numeric column when no configuration exists.
package dashboard

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"tabula/internal/expr"
	"tabula/internal/schema"
)

type MetricType string

const (
	MetricStandard   MetricType = "standard"
	MetricCalculated MetricType = "calculated"
)

// Metric is one dashboard column. Standard metrics aggregate a target module
// grouped by the primary key; calculated metrics combine other metrics
// through [Label] placeholders.
type Metric struct {
	ID    string     `json:"id" yaml:"id"`
	Label string     `json:"label" yaml:"label"`
	Type  MetricType `json:"type" yaml:"type"`

	TargetModule  string            `json:"target_module,omitempty" yaml:"target_module,omitempty"`
	ValueColumn   string            `json:"value_column,omitempty" yaml:"value_column,omitempty"`
	GroupByColumn string            `json:"group_by_column,omitempty" yaml:"group_by_column,omitempty"`
	Operation     schema.Operation  `json:"operation,omitempty" yaml:"operation,omitempty"`
	DateColumn    string            `json:"date_column,omitempty" yaml:"date_column,omitempty"`
	Condition     *schema.Condition `json:"condition,omitempty" yaml:"condition,omitempty"`

	Formula string `json:"formula,omitempty" yaml:"formula,omitempty"`
}

// Config is the dashboard of one (entity, branch).
type Config struct {
	PrimaryModule        string   `json:"primary_module" yaml:"primary_module"`
	PrimaryKeyColumn     string   `json:"primary_key_column" yaml:"primary_key_column"`
	PrimaryDisplayColumn string   `json:"primary_display_column" yaml:"primary_display_column"`
	Metrics              []Metric `json:"metrics" yaml:"metrics"`
}

var ErrDuplicateLabel = errors.New("dashboard: duplicate metric label")

func (m Metric) Validate() error {
	standard := m.Type == MetricStandard
	return validation.ValidateStruct(&m,
		validation.Field(&m.Label, validation.Required),
		validation.Field(&m.Type, validation.Required, validation.In(MetricStandard, MetricCalculated)),
		validation.Field(&m.TargetModule, validation.When(standard, validation.Required)),
		validation.Field(&m.ValueColumn, validation.When(standard, validation.Required)),
		validation.Field(&m.GroupByColumn, validation.When(standard, validation.Required)),
		validation.Field(&m.Operation, validation.When(standard, validation.Required, validation.By(checkOperation))),
		validation.Field(&m.Condition),
		validation.Field(&m.Formula, validation.When(m.Type == MetricCalculated, validation.Required, validation.By(checkFormula))),
	)
}

func checkOperation(v interface{}) error {
	op, _ := v.(schema.Operation)
	if _, ok := schema.ParseOperation(string(op)); !ok {
		return fmt.Errorf("unknown operation %q", op)
	}
	return nil
}

func checkFormula(v interface{}) error {
	s, _ := v.(string)
	if _, err := expr.Compile(s); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.PrimaryModule, validation.Required),
		validation.Field(&c.PrimaryKeyColumn, validation.Required),
		validation.Field(&c.Metrics),
	); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Metrics))
	for _, m := range c.Metrics {
		l := strings.ToLower(strings.TrimSpace(m.Label))
		if _, dup := seen[l]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateLabel, m.Label)
		}
		seen[l] = struct{}{}
	}
	return nil
}

// Normalize fills metric ids and canonical operations, then validates.
func Normalize(c Config) (Config, error) {
	out := c
	out.Metrics = make([]Metric, len(c.Metrics))
	for i, m := range c.Metrics {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		m.Label = strings.TrimSpace(m.Label)
		if op, ok := schema.ParseOperation(string(m.Operation)); ok && m.Operation != "" {
			m.Operation = op
		}
		out.Metrics[i] = m
	}
	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

// Modules lists the primary module followed by every metric target.
func (c Config) Modules() []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(n string) {
		if _, ok := seen[n]; ok || n == "" {
			return
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	add(c.PrimaryModule)
	for _, m := range c.Metrics {
		if m.Type == MetricStandard {
			add(m.TargetModule)
		}
	}
	return out
}
