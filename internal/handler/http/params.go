package http

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/catalog/pkg/httputil"
)

// Query parameters accepted by the list and search endpoints.
const (
	paramSortBy = "sort-by"
	paramOrder  = "order"
)

// pathParam returns the decoded URL parameter name. chi matches on the raw
// path when the request carries one, in which case the value is still
// escaped. It writes a 400 and returns false when the value is empty or
// malformed.
func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := chi.URLParam(r, name)
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(v)
		if err != nil {
			v = ""
		} else {
			v = unescaped
		}
	}
	if v == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "invalid " + name},
		})
		return "", false
	}
	return v, true
}

func sortParams(r *http.Request) (sortBy, order string) {
	q := r.URL.Query()
	return q.Get(paramSortBy), q.Get(paramOrder)
}
