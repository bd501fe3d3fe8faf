package api

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"tabula/internal/table"
)

// filterPrefix marks column filter parameters: f.<key>=<displayed value>.
const filterPrefix = "f."

// GridParams are the grid query parameters. Page is 1-based on the wire.
type GridParams struct {
	View     string
	Q        string
	Sort     string
	Dir      table.Direction
	Page     int
	PageSize int
	Filters  map[string]string
}

func parseGridParams(q url.Values) GridParams {
	p := GridParams{
		View:    strings.TrimSpace(q.Get("view")),
		Q:       strings.TrimSpace(q.Get("q")),
		Sort:    strings.TrimSpace(q.Get("sort")),
		Dir:     table.Asc,
		Filters: make(map[string]string),
	}
	if strings.EqualFold(strings.TrimSpace(q.Get("dir")), string(table.Desc)) {
		p.Dir = table.Desc
	}
	// "-key" is shorthand for descending
	if strings.HasPrefix(p.Sort, "-") {
		p.Sort, p.Dir = strings.TrimPrefix(p.Sort, "-"), table.Desc
	}
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		p.Page = n
	}
	if n, err := strconv.Atoi(q.Get("page_size")); err == nil {
		p.PageSize = n
	}
	for key, vals := range q {
		if !strings.HasPrefix(key, filterPrefix) || len(vals) == 0 {
			continue
		}
		if col := strings.TrimPrefix(key, filterPrefix); col != "" {
			p.Filters[col] = vals[0]
		}
	}
	return p
}

// apply restores the named view first, then layers the explicit parameters
// on top. The page is set last since every other setting resets it.
func (p GridParams) apply(ctx context.Context, views table.ViewStore, ctl *table.Controller) error {
	if p.View != "" {
		v, err := views.GetView(ctx, ctl.Entity, ctl.ModuleName, p.View)
		if err != nil {
			return err
		}
		ctl.ApplyView(v)
	}
	if p.PageSize != 0 {
		if err := ctl.SetPageSize(p.PageSize); err != nil {
			return err
		}
	}
	if p.Sort != "" {
		if err := ctl.SetSort(p.Sort, p.Dir); err != nil {
			return err
		}
	}
	if p.Q != "" {
		ctl.SetSearch(p.Q)
	}
	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := ctl.SetColumnFilter(k, p.Filters[k]); err != nil {
			return err
		}
	}
	if p.Page > 0 {
		ctl.SetPage(p.Page - 1)
	}
	return nil
}
