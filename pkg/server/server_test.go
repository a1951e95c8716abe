package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/adfharrison1/go-docdb/pkg/storage"
)

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestServer_RoutesToAPI(t *testing.T) {
	s := NewServer(storage.NewEngine())

	w := serve(s, "POST", "/databases/shop/collections/orders/documents", `{"_id": 1, "total": 5}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(s, "GET", "/databases/shop/collections/orders/documents/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":5`)

	w = serve(s, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_NotFound(t *testing.T) {
	s := NewServer(storage.NewEngine())
	w := serve(s, "GET", "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "no route for GET /nope")
}

func TestServer_RequestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewServer(storage.NewEngine(), WithLogger(zap.New(core).Sugar()))

	serve(s, "POST", "/databases/shop/collections/orders/find", `{"filter": {"$bad": 1}}`)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/databases/shop/collections/orders/find", fields["path"])
	assert.Equal(t, int64(http.StatusBadRequest), fields["status"])
}

func TestServer_Metrics(t *testing.T) {
	tests := []struct {
		name     string
		options  []Option
		expected int
	}{
		{"disabled", nil, http.StatusNotFound},
		{"enabled", []Option{WithMetrics()}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(storage.NewEngine(), tt.options...)
			serve(s, "POST", "/databases/shop/collections/orders/documents", `{"_id": 1}`)

			w := serve(s, "GET", "/metrics", "")
			require.Equal(t, tt.expected, w.Code)
			if tt.expected != http.StatusOK {
				return
			}
			body := w.Body.String()
			assert.Contains(t, body, `docdb_http_requests_total{method="POST",route="/databases/{db}/collections/{coll}/documents",status="201"} 1`)
			assert.Contains(t, body, "docdb_documents 1")
			assert.Contains(t, body, "docdb_collections 1")
		})
	}
}
