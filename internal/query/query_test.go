package query_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/wanderpeak/tours-api/internal/apperr"
	"github.com/wanderpeak/tours-api/internal/query"
)

var allowed = map[string]bool{
	"price":           true,
	"duration":        true,
	"difficulty":      true,
	"ratings_average": true,
}

func parse(t *testing.T, raw string) *query.Options {
	t.Helper()
	values, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	opts, err := query.Parse(values, allowed)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return opts
}

func TestParseConditions(t *testing.T) {
	opts := parse(t, "duration[gte]=5&difficulty=easy&price[lt]=1500")

	if len(opts.Conditions) != 3 {
		t.Fatalf("expected 3 conditions, got %d", len(opts.Conditions))
	}
	byColumn := map[string]query.Condition{}
	for _, c := range opts.Conditions {
		byColumn[c.Column] = c
	}
	if c := byColumn["duration"]; c.Op != "gte" || c.Value != 5.0 {
		t.Errorf("duration condition = %+v", c)
	}
	if c := byColumn["difficulty"]; c.Op != "" || c.Value != "easy" {
		t.Errorf("difficulty condition = %+v", c)
	}
	if c := byColumn["price"]; c.Op != "lt" || c.Value != 1500.0 {
		t.Errorf("price condition = %+v", c)
	}
}

func TestParseUnknownFilterColumn(t *testing.T) {
	values, _ := url.ParseQuery("password_hash=x")
	_, err := query.Parse(values, allowed)
	if err == nil {
		t.Fatal("expected error for unknown column")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestParseUnknownSortColumn(t *testing.T) {
	values, _ := url.ParseQuery("sort=-secret_tour")
	if _, err := query.Parse(values, allowed); err == nil {
		t.Fatal("expected error for unknown sort column")
	}
}

// Repeating a parameter must not widen the filter.
func TestParameterPollution(t *testing.T) {
	opts := parse(t, "difficulty=easy&difficulty=difficult")

	if len(opts.Conditions) != 1 {
		t.Fatalf("expected 1 condition, got %d", len(opts.Conditions))
	}
	if opts.Conditions[0].Value != "easy" {
		t.Errorf("expected first value to win, got %v", opts.Conditions[0].Value)
	}
}

func TestParseSort(t *testing.T) {
	opts := parse(t, "sort=-ratings_average,price")

	if len(opts.Sort) != 2 {
		t.Fatalf("expected 2 sort keys, got %d", len(opts.Sort))
	}
	if opts.Sort[0].Column != "ratings_average" || !opts.Sort[0].Desc {
		t.Errorf("first sort key = %+v", opts.Sort[0])
	}
	if opts.Sort[1].Column != "price" || opts.Sort[1].Desc {
		t.Errorf("second sort key = %+v", opts.Sort[1])
	}
	if got := opts.OrderBy("id ASC"); got != "ratings_average DESC, price ASC" {
		t.Errorf("OrderBy = %q", got)
	}
}

// Unsorted lists fall back to the repository default, newest first.
func TestOrderByDefault(t *testing.T) {
	opts := parse(t, "")
	if got := opts.OrderBy("created_at DESC"); got != "created_at DESC" {
		t.Errorf("OrderBy default = %q", got)
	}
}

func TestPagination(t *testing.T) {
	opts := parse(t, "page=3&limit=20")
	if opts.Page != 3 || opts.Limit != 20 {
		t.Errorf("page/limit = %d/%d", opts.Page, opts.Limit)
	}
	if opts.Offset() != 40 {
		t.Errorf("Offset = %d", opts.Offset())
	}

	capped := parse(t, "limit=99999")
	if capped.Limit != query.MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", query.MaxLimit, capped.Limit)
	}

	bogus := parse(t, "page=-1&limit=abc")
	if bogus.Page != 1 || bogus.Limit != query.DefaultLimit {
		t.Errorf("bogus page/limit = %d/%d", bogus.Page, bogus.Limit)
	}
}

func TestWhereClause(t *testing.T) {
	opts := &query.Options{Conditions: []query.Condition{
		{Column: "price", Op: "gte", Value: 500.0},
		{Column: "difficulty", Op: "", Value: "easy"},
	}}

	clause, args := opts.WhereClause(2)
	if clause != "price >= $2 AND difficulty = $3" {
		t.Errorf("clause = %q", clause)
	}
	if len(args) != 2 || args[0] != 500.0 || args[1] != "easy" {
		t.Errorf("args = %v", args)
	}
}

func TestProjectInclusion(t *testing.T) {
	opts := parse(t, "fields=name,price")
	obj := map[string]any{"id": 1, "name": "x", "price": 2.0, "summary": "s"}

	got := opts.Project(obj)
	if len(got) != 3 {
		t.Fatalf("expected id+name+price, got %v", got)
	}
	if _, ok := got["summary"]; ok {
		t.Error("summary should be projected away")
	}
	if _, ok := got["id"]; !ok {
		t.Error("id should survive inclusion lists")
	}
}

func TestProjectExclusion(t *testing.T) {
	opts := parse(t, "fields=-summary")
	obj := map[string]any{"id": 1, "name": "x", "summary": "s"}

	got := opts.Project(obj)
	if _, ok := got["summary"]; ok {
		t.Error("summary should be excluded")
	}
	if len(got) != 2 {
		t.Errorf("expected 2 fields, got %v", got)
	}
}
