package utils

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// UintParam parses a numeric chi URL parameter.
func UintParam(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an unsigned integer, got %q", name, raw)
	}
	return v, nil
}

// Descending reports whether the request asked for ?order=desc.
func Descending(r *http.Request) bool {
	return r.URL.Query().Get("order") == "desc"
}
