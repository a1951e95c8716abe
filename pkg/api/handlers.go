// Package api exposes the collection commands over HTTP. Request and response
// bodies are MongoDB Extended JSON so numeric widths, dates and binary data
// survive the round trip.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-docdb/pkg/codec"
	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/storage"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 16 << 20

// Handler provides HTTP handlers for the database API.
type Handler struct {
	engine  *storage.Engine
	logger  *zap.SugaredLogger
	decoder *schema.Decoder
}

// NewHandler creates a handler serving engine.
func NewHandler(engine *storage.Engine, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &Handler{
		engine:  engine,
		logger:  logger,
		decoder: decoder,
	}
}

// outputParams are the query parameters every document-returning route accepts.
type outputParams struct {
	Canonical bool `schema:"canonical"`
}

// collection resolves the {db} and {coll} route variables.
func (h *Handler) collection(r *http.Request) (*storage.Collection, error) {
	vars := mux.Vars(r)
	db, err := h.engine.Database(vars["db"])
	if err != nil {
		return nil, err
	}
	return db.Collection(vars["coll"])
}

// params decodes the URL query into dst.
func (h *Handler) params(r *http.Request, dst interface{}) error {
	if err := h.decoder.Decode(dst, r.URL.Query()); err != nil {
		return domain.Errorf(domain.ErrInvalidOptions, "", "invalid query parameters: %v", err)
	}
	return nil
}

// readBody parses the Extended JSON request body. An empty body is an empty
// document.
func readBody(r *http.Request) (*domain.Document, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > maxBodyBytes {
		return nil, domain.Errorf(domain.ErrInvalidOptions, "", "request body exceeds %d bytes", maxBodyBytes)
	}
	if len(data) == 0 {
		return domain.NewDocument(), nil
	}
	doc, err := codec.UnmarshalExtJSON(data)
	if err != nil {
		return nil, domain.Errorf(domain.ErrInvalidOptions, "", "invalid request body: %v", err)
	}
	return doc, nil
}

// subDocument returns body[key] as a document, or nil when the key is absent
// or null.
func subDocument(body *domain.Document, key string) (*domain.Document, error) {
	v, ok := body.Get(key)
	if !ok || v.IsNull() {
		return nil, nil
	}
	doc, ok := v.DocumentValue()
	if !ok {
		return nil, domain.Errorf(domain.ErrInvalidOptions, key, "must be a document")
	}
	return doc, nil
}

// subArray returns body[key] as an array, or nil when the key is absent.
func subArray(body *domain.Document, key string) ([]domain.Value, error) {
	v, ok := body.Get(key)
	if !ok || v.IsNull() {
		return nil, nil
	}
	elems, ok := v.ArrayValue()
	if !ok {
		return nil, domain.Errorf(domain.ErrInvalidOptions, key, "must be an array")
	}
	return elems, nil
}

// flag returns body[key] as a bool, false when absent.
func flag(body *domain.Document, key string) (bool, error) {
	v, ok := body.Get(key)
	if !ok {
		return false, nil
	}
	b, ok := v.BoolValue()
	if !ok {
		return false, domain.Errorf(domain.ErrInvalidOptions, key, "must be a boolean")
	}
	return b, nil
}

// extJSON renders doc, or JSON null for a nil doc.
func extJSON(doc *domain.Document, canonical bool) (json.RawMessage, error) {
	if doc == nil {
		return json.RawMessage("null"), nil
	}
	data, err := codec.MarshalExtJSON(doc, canonical)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// extJSONValue renders a single value by wrapping it in a one-field document.
func extJSONValue(v domain.Value, canonical bool) (json.RawMessage, error) {
	wrapped, err := codec.MarshalExtJSON(domain.D(domain.E{Key: "v", Value: v}), canonical)
	if err != nil {
		return nil, err
	}
	var holder struct {
		V json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(wrapped, &holder); err != nil {
		return nil, err
	}
	return holder.V, nil
}

func extJSONDocuments(docs []*domain.Document, canonical bool) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(docs))
	for i, doc := range docs {
		raw, err := extJSON(doc, canonical)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

// writeJSON writes v as JSON with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warnw("failed to write response", "error", err)
	}
}
