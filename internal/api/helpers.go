package api

import (
	"time"

	"tabula/internal/record"
	"tabula/internal/schema"
	"tabula/internal/table"
)

func flatten(rec record.Record) map[string]interface{} {
	out := map[string]interface{}{
		"id":         rec.ID,
		"created_at": rec.CreatedAt.Format(time.RFC3339),
		"updated_at": rec.UpdatedAt.Format(time.RFC3339),
	}
	for k, v := range rec.Data {
		// payload keys never shadow the metadata
		if _, clash := out[k]; clash {
			out["data."+k] = v
			continue
		}
		out[k] = v
	}
	return out
}

type gridColumn struct {
	Key        string                  `json:"key"`
	Label      string                  `json:"label"`
	Type       schema.ColumnType       `json:"type"`
	Required   bool                    `json:"required,omitempty"`
	Editable   bool                    `json:"editable"`
	Filterable bool                    `json:"filterable"`
	Formula    *schema.FormulaMetadata `json:"formula,omitempty"`
}

type gridRow struct {
	ID     string                   `json:"id"`
	Values map[string]any           `json:"values"`
	Styles map[string]*schema.Style `json:"styles,omitempty"`
}

type gridResponse struct {
	Entity  string                  `json:"entity"`
	Module  string                  `json:"module"`
	Branch  string                  `json:"branch,omitempty"`
	Columns []gridColumn            `json:"columns"`
	Rows    []gridRow               `json:"rows"`
	Page    table.Page              `json:"page"`
	Totals  map[string]table.Totals `json:"totals"`
	View    table.View              `json:"view"`
}

func buildGrid(ctl *table.Controller) gridResponse {
	cols := ctl.Columns()
	out := gridResponse{
		Entity:  ctl.Entity,
		Module:  ctl.ModuleName,
		Branch:  ctl.Module().Branch,
		Columns: make([]gridColumn, 0, len(cols)),
		Totals:  ctl.Totals(),
		View:    ctl.CurrentView(),
	}
	for _, col := range cols {
		out.Columns = append(out.Columns, gridColumn{
			Key:        col.Key,
			Label:      col.Label,
			Type:       col.Type,
			Required:   col.Required,
			Editable:   table.Editable(col),
			Filterable: ctl.FilterOptions(col.Key) != nil,
			Formula:    col.Formula,
		})
	}

	page := ctl.Page()
	out.Page = page
	out.Page.Page++ // 1-based on the wire
	out.Rows = make([]gridRow, 0, len(page.Rows))
	for _, r := range page.Rows {
		gr := gridRow{ID: r.ID, Values: make(map[string]any, len(cols))}
		for _, col := range cols {
			gr.Values[col.Key] = r.Values[col.Key]
			if st := ctl.CellStyle(r, col.Key); st != nil {
				if gr.Styles == nil {
					gr.Styles = make(map[string]*schema.Style)
				}
				gr.Styles[col.Key] = st
			}
		}
		out.Rows = append(out.Rows, gr)
	}
	return out
}
