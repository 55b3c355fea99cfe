package engine

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
)

func TestRouterHandle(t *testing.T) {
	router := NewRouter()

	router.Handle("GET", "/test", func(r *http.Request, ps httprouter.Params) Response {
		return JSON(map[string]string{"ok": "true"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"ok":"true"`)

	// Path parameters
	router.Handle("GET", "/users/:id", func(r *http.Request, ps httprouter.Params) Response {
		return JSON(map[string]string{"id": ps.ByName("id")})
	})

	req = httptest.NewRequest("GET", "/users/123", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"id":"123"`)
}

func TestRouterResponses(t *testing.T) {
	router := NewRouter()
	router.Handle("GET", "/client-error", func(r *http.Request, ps httprouter.Params) Response {
		return ClientErrorf("bad input: %s", "oops")
	})
	router.Handle("GET", "/missing", func(r *http.Request, ps httprouter.Params) Response {
		return NotFoundf("nothing here")
	})
	router.Handle("GET", "/boom", func(r *http.Request, ps httprouter.Params) Response {
		return Error(errors.New("database exploded"))
	})
	router.Handle("DELETE", "/gone", func(r *http.Request, ps httprouter.Params) Response {
		return Empty()
	})
	router.Handle("GET", "/conflict", func(r *http.Request, ps httprouter.Params) Response {
		return JSONStatus(http.StatusConflict, map[string]string{"message": "overlap"})
	})

	cases := []struct {
		method, path string
		status       int
		body         string
	}{
		{"GET", "/client-error", http.StatusBadRequest, "bad input: oops"},
		{"GET", "/missing", http.StatusNotFound, "nothing here"},
		{"GET", "/boom", http.StatusInternalServerError, "Internal error"},
		{"DELETE", "/gone", http.StatusNoContent, ""},
		{"GET", "/conflict", http.StatusConflict, `"message":"overlap"`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, "%s %s", tc.method, tc.path)
		if tc.body != "" {
			assert.Contains(t, w.Body.String(), tc.body, "%s %s", tc.method, tc.path)
		}
	}

	// Internal error details must not leak to the client
	req := httptest.NewRequest("GET", "/boom", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotContains(t, w.Body.String(), "database exploded")
}
