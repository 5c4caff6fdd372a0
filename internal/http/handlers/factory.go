// Package handlers wires the HTTP surface: a generic CRUD resource plus
// the auth, profile, payment, and page endpoints that don't fit the mold.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wanderpeak/tours-api/internal/apperr"
	"github.com/wanderpeak/tours-api/internal/http/response"
	"github.com/wanderpeak/tours-api/internal/query"
	"github.com/wanderpeak/tours-api/pkg/logger"
)

type Validator interface {
	Validate() error
}

// Resource is the shared CRUD pipeline: list with filter/sort/project/
// paginate, get, create, update, delete. Endpoints a resource doesn't
// support leave the corresponding func nil. AfterWrite runs synchronously
// after every successful create, update, or delete, carrying the written
// entity; review aggregation hangs off it.
type Resource[T any, C any, U any] struct {
	Name    string // singular resource name, used in not-found messages
	Allowed map[string]bool
	DevMode bool

	ListFn     func(ctx context.Context, opts *query.Options) ([]T, error)
	GetFn      func(ctx context.Context, id int64) (*T, error)
	CreateFn   func(ctx context.Context, req *C) (*T, error)
	UpdateFn   func(ctx context.Context, id int64, req *U) (*T, error)
	DeleteFn   func(ctx context.Context, id int64) (*T, error)
	AfterWrite func(ctx context.Context, entity *T)
}

func (res *Resource[T, C, U]) List(w http.ResponseWriter, r *http.Request) {
	opts, err := query.Parse(r.URL.Query(), res.Allowed)
	if err != nil {
		response.Error(w, r, err, res.DevMode)
		return
	}

	items, err := res.ListFn(r.Context(), opts)
	if err != nil {
		response.Error(w, r, err, res.DevMode)
		return
	}

	data, err := projectItems(opts, items)
	if err != nil {
		response.Error(w, r, err, res.DevMode)
		return
	}
	response.WriteList(w, http.StatusOK, len(items), data)
}

func (res *Resource[T, C, U]) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, err, res.DevMode)
		return
	}

	item, err := res.GetFn(r.Context(), id)
	if err != nil {
		response.Error(w, r, err, res.DevMode)
		return
	}
	if item == nil {
		response.Error(w, r, res.notFound(), res.DevMode)
		return
	}
	response.WriteJSON(w, http.StatusOK, item)
}

func (res *Resource[T, C, U]) Create(w http.ResponseWriter, r *http.Request) {
	var req C
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err, res.DevMode)
		return
	}
	if err := validate(&req); err != nil {
		response.Error(w, r, err, res.DevMode)
		return
	}

	item, err := res.CreateFn(r.Context(), &req)
	if err != nil {
		response.Error(w, r, err, res.DevMode)
		return
	}
	if res.AfterWrite != nil {
		res.AfterWrite(r.Context(), item)
	}
	response.WriteJSON(w, http.StatusCreated, item)
}

func (res *Resource[T, C, U]) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, err, res.DevMode)
		return
	}

	var req U
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, r, err, res.DevMode)
		return
	}
	if err := validate(&req); err != nil {
		response.Error(w, r, err, res.DevMode)
		return
	}

	item, err := res.UpdateFn(r.Context(), id, &req)
	if err != nil {
		response.Error(w, r, err, res.DevMode)
		return
	}
	if item == nil {
		response.Error(w, r, res.notFound(), res.DevMode)
		return
	}
	if res.AfterWrite != nil {
		res.AfterWrite(r.Context(), item)
	}
	response.WriteJSON(w, http.StatusOK, item)
}

func (res *Resource[T, C, U]) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		response.Error(w, r, err, res.DevMode)
		return
	}

	item, err := res.DeleteFn(r.Context(), id)
	if err != nil {
		response.Error(w, r, err, res.DevMode)
		return
	}
	if item == nil {
		response.Error(w, r, res.notFound(), res.DevMode)
		return
	}
	if res.AfterWrite != nil {
		res.AfterWrite(r.Context(), item)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (res *Resource[T, C, U]) notFound() error {
	return apperr.NotFound("No " + res.Name + " found with that ID")
}

// projectItems applies a field projection by re-marshaling through maps.
// Without a fields parameter the items pass through untouched.
func projectItems[T any](opts *query.Options, items []T) (any, error) {
	if len(opts.Fields) == 0 {
		if items == nil {
			return []T{}, nil
		}
		return items, nil
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	var objs []map[string]any
	if err := json.Unmarshal(raw, &objs); err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(objs))
	for _, obj := range objs {
		out = append(out, opts.Project(obj))
	}
	return out, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		raw = chi.URLParam(r, "tourID")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("Invalid ID: " + raw)
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperr.Validation("Request body too large")
	}
	logger.DebugContext(r.Context(), "Bad request body", "error", err)
	return apperr.Validation("Invalid request body")
}

// decodeBoth decodes one body into a raw key map and a typed request, so
// handlers can reject keys the typed form would silently drop.
func decodeBoth(r *http.Request, raw *map[string]any, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation("Request body too large")
		}
		return apperr.Validation("Invalid request body")
	}
	if err := json.Unmarshal(body, raw); err != nil {
		return apperr.Validation("Invalid request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Validation("Invalid request body")
	}
	return nil
}

func validate(v any) error {
	if val, ok := v.(Validator); ok {
		return val.Validate()
	}
	return nil
}
