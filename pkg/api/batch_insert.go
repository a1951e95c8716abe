package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/storage"
)

// maxBatchSize caps the number of documents or operations in one request.
const maxBatchSize = 1000

// writeParams are the query parameters of the bulk routes.
type writeParams struct {
	Ordered   *bool `schema:"ordered"`
	Canonical bool  `schema:"canonical"`
}

func (p writeParams) bulkOptions() *storage.BulkOptions {
	return &storage.BulkOptions{Unordered: p.Ordered != nil && !*p.Ordered}
}

// WriteErrorResponse describes one failed operation of a batch.
type WriteErrorResponse struct {
	Index   int    `json:"index"`
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// BatchInsertResponse is returned by HandleBatchInsert.
type BatchInsertResponse struct {
	InsertedCount int                  `json:"insertedCount"`
	InsertedIDs   []json.RawMessage    `json:"insertedIds"`
	WriteErrors   []WriteErrorResponse `json:"writeErrors,omitempty"`
}

// writeErrors splits a bulk failure into per-operation entries and picks the
// response status from the first one. Any other error yields no entries.
func writeErrors(err error) ([]WriteErrorResponse, int) {
	var bulkErr *storage.BulkWriteError
	if !errors.As(err, &bulkErr) {
		return nil, StatusFor(err)
	}
	out := make([]WriteErrorResponse, len(bulkErr.WriteErrors))
	for i, we := range bulkErr.WriteErrors {
		out[i] = WriteErrorResponse{
			Index:   we.Index,
			Code:    StatusFor(we.Err),
			Kind:    kindOf(we.Err),
			Path:    domain.PathOf(we.Err),
			Message: we.Err.Error(),
		}
	}
	return out, out[0].Code
}

// HandleBatchInsert handles POST requests inserting {"documents": [...]}.
// Inserts are ordered unless ?ordered=false.
func (h *Handler) HandleBatchInsert(w http.ResponseWriter, r *http.Request) {
	var params writeParams
	if err := h.params(r, &params); err != nil {
		h.writeError(w, r, err)
		return
	}
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
	values, err := subArray(body, "documents")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(values) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "No documents provided")
		return
	}
	if len(values) > maxBatchSize {
		WriteJSONError(w, http.StatusBadRequest, "Maximum 1000 documents allowed per batch")
		return
	}
	docs := make([]*domain.Document, len(values))
	for i, v := range values {
		doc, ok := v.DocumentValue()
		if !ok {
			h.writeError(w, r, domain.Errorf(domain.ErrInvalidOptions, "documents", "element %d is not a document", i))
			return
		}
		docs[i] = doc
	}

	res, insertErr := coll.InsertMany(docs, params.bulkOptions())
	response := BatchInsertResponse{InsertedCount: len(res.InsertedIDs)}
	response.InsertedIDs = make([]json.RawMessage, len(res.InsertedIDs))
	for i, id := range res.InsertedIDs {
		raw, err := extJSONValue(id, params.Canonical)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		response.InsertedIDs[i] = raw
	}

	status := http.StatusCreated
	if insertErr != nil {
		var failed []WriteErrorResponse
		failed, status = writeErrors(insertErr)
		if failed == nil {
			h.writeError(w, r, insertErr)
			return
		}
		response.WriteErrors = failed
	}
	h.logger.Debugw("batch insert", "collection", coll.Name(), "inserted", response.InsertedCount, "failed", len(response.WriteErrors))
	h.writeJSON(w, status, response)
}
