// Package query implements the list-endpoint query contract: comparison
// filters (price[gte]=500), comma-separated sort keys with a leading '-'
// for descending, field projection lists, and page/limit pagination.
//
// Filters are explicit, composable values applied at the repository
// boundary; nothing rewrites queries behind the caller's back.
package query

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/wanderpeak/tours-api/internal/apperr"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Reserved parameter names that never become filters.
var reserved = map[string]bool{
	"page":   true,
	"limit":  true,
	"sort":   true,
	"fields": true,
}

var operatorKey = regexp.MustCompile(`^([a-z_]+)\[(gte|gt|lte|lt|ne)\]$`)

var sqlOps = map[string]string{
	"":    "=",
	"gte": ">=",
	"gt":  ">",
	"lte": "<=",
	"lt":  "<",
	"ne":  "<>",
}

type Condition struct {
	Column string
	Op     string // gte, gt, lte, lt, ne, or "" for equality
	Value  any
}

type SortKey struct {
	Column string
	Desc   bool
}

type Options struct {
	Conditions []Condition
	Sort       []SortKey
	Fields     []string
	Exclude    bool // Fields is an exclusion list when prefixed with '-'
	Page       int
	Limit      int
}

// Parse builds Options from URL query values. Column names are checked
// against the allowlist so they can be interpolated into SQL safely;
// unknown filter or sort columns are a validation error.
func Parse(values url.Values, allowed map[string]bool) (*Options, error) {
	opts := &Options{Page: 1, Limit: DefaultLimit}

	for key, vals := range values {
		if reserved[key] || len(vals) == 0 {
			continue
		}
		column, op := key, ""
		if m := operatorKey.FindStringSubmatch(key); m != nil {
			column, op = m[1], m[2]
		}
		if !allowed[column] {
			return nil, apperr.Validation(fmt.Sprintf("Cannot filter on field %q", column))
		}
		// Only the first value counts; repeating a parameter does not
		// widen the filter (parameter-pollution guard).
		opts.Conditions = append(opts.Conditions, Condition{
			Column: column,
			Op:     op,
			Value:  typedValue(vals[0]),
		})
	}

	for _, key := range splitList(values.Get("sort")) {
		desc := strings.HasPrefix(key, "-")
		column := strings.TrimPrefix(key, "-")
		if !allowed[column] {
			return nil, apperr.Validation(fmt.Sprintf("Cannot sort on field %q", column))
		}
		opts.Sort = append(opts.Sort, SortKey{Column: column, Desc: desc})
	}

	if fields := splitList(values.Get("fields")); len(fields) > 0 {
		opts.Exclude = strings.HasPrefix(fields[0], "-")
		for _, f := range fields {
			opts.Fields = append(opts.Fields, strings.TrimPrefix(f, "-"))
		}
	}

	if v := values.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Page = n
		}
	}
	if v := values.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = min(n, MaxLimit)
		}
	}

	return opts, nil
}

// WhereClause renders the conditions as "a >= $1 AND b = $2" with
// placeholders starting at startIdx. Empty when there are no conditions.
func (o *Options) WhereClause(startIdx int) (string, []any) {
	if len(o.Conditions) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(o.Conditions))
	args := make([]any, 0, len(o.Conditions))
	for i, c := range o.Conditions {
		parts = append(parts, fmt.Sprintf("%s %s $%d", c.Column, sqlOps[c.Op], startIdx+i))
		args = append(args, c.Value)
	}
	return strings.Join(parts, " AND "), args
}

// OrderBy renders the sort keys, falling back to the given default so
// pagination stays deterministic.
func (o *Options) OrderBy(defaultOrder string) string {
	if len(o.Sort) == 0 {
		return defaultOrder
	}
	parts := make([]string, 0, len(o.Sort))
	for _, s := range o.Sort {
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, s.Column+" "+dir)
	}
	return strings.Join(parts, ", ")
}

func (o *Options) Offset() int {
	return (o.Page - 1) * o.Limit
}

// Project filters one marshaled object down to the requested fields.
// Identifier fields survive inclusion lists so responses stay linkable.
func (o *Options) Project(obj map[string]any) map[string]any {
	if len(o.Fields) == 0 {
		return obj
	}
	requested := make(map[string]bool, len(o.Fields))
	for _, f := range o.Fields {
		requested[f] = true
	}

	out := make(map[string]any, len(obj))
	for k, v := range obj {
		keep := requested[k] != o.Exclude || (!o.Exclude && k == "id")
		if keep {
			out[k] = v
		}
	}
	return out
}

func typedValue(raw string) any {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
