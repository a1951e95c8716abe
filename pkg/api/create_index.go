package api

import (
	"net/http"
	"time"

	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/indexing"
	"github.com/adfharrison1/go-docdb/pkg/storage"
)

// CreateIndexResponse is returned by HandleCreateIndex.
type CreateIndexResponse struct {
	Name       string `json:"name"`
	Collection string `json:"collection"`
}

// indexOptions reads the optional name, unique and expireAfterSeconds keys.
func indexOptions(body *domain.Document) (*storage.IndexOptions, error) {
	opts := &storage.IndexOptions{}
	if v, ok := body.Get("name"); ok {
		name, ok := v.StringValue()
		if !ok {
			return nil, domain.Errorf(domain.ErrInvalidIndex, "name", "must be a string")
		}
		opts.Name = name
	}
	unique, err := flag(body, "unique")
	if err != nil {
		return nil, err
	}
	opts.Unique = unique
	if v, ok := body.Get("expireAfterSeconds"); ok {
		secs, ok := v.Int64()
		if !ok || secs < 0 {
			return nil, domain.Errorf(domain.ErrInvalidIndex, "expireAfterSeconds", "must be a non-negative integer")
		}
		opts.ExpireAfter = time.Duration(secs) * time.Second
	}
	return opts, nil
}

// HandleCreateIndex handles POST requests with {"keys": {"field": 1, ...},
// "name", "unique", "expireAfterSeconds"}.
func (h *Handler) HandleCreateIndex(w http.ResponseWriter, r *http.Request) {
	coll, err := h.collection(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body, err := readBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	keysDoc, err := subDocument(body, "keys")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if keysDoc == nil {
		h.writeError(w, r, domain.Errorf(domain.ErrInvalidIndex, "keys", "index keys are required"))
		return
	}
	keys, err := indexing.ParseKeys(keysDoc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	opts, err := indexOptions(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	name, err := coll.CreateIndex(keys, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, CreateIndexResponse{Name: name, Collection: coll.Name()})
}
