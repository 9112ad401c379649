package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverer(t *testing.T) {
	serve := func(h http.HandlerFunc) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		recoverer(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/notes/foo", nil))
		return rec
	}
	t.Run("panic before responding", func(t *testing.T) {
		rec := serve(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Server error", rec.Body.String())
	})
	t.Run("panic after responding", func(t *testing.T) {
		rec := serve(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("partial"))
			panic("boom")
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "partial", rec.Body.String())
	})
	t.Run("aborted handlers keep panicking", func(t *testing.T) {
		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			serve(func(http.ResponseWriter, *http.Request) {
				panic(http.ErrAbortHandler)
			})
		})
	})
}
