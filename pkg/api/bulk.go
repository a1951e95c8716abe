package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/storage"
)

// BulkWriteResponse is returned by HandleBulkWrite.
type BulkWriteResponse struct {
	InsertedCount int64                      `json:"insertedCount"`
	MatchedCount  int64                      `json:"matchedCount"`
	ModifiedCount int64                      `json:"modifiedCount"`
	DeletedCount  int64                      `json:"deletedCount"`
	InsertedIDs   map[string]json.RawMessage `json:"insertedIds"`
	WriteErrors   []WriteErrorResponse       `json:"writeErrors,omitempty"`
}

// parseWriteModel converts {"insertOne": {"document": {...}}},
// {"updateOne": {"filter": {...}, "update": {...}}} and the like.
func parseWriteModel(i int, v domain.Value) (storage.WriteModel, error) {
	doc, ok := v.DocumentValue()
	if !ok || doc.Len() != 1 {
		return nil, domain.Errorf(domain.ErrInvalidOptions, "operations", "operation %d must be a document with exactly one command", i)
	}
	e := doc.Elements()[0]
	args, ok := e.Value.DocumentValue()
	if !ok {
		return nil, domain.Errorf(domain.ErrInvalidOptions, e.Key, "operation %d arguments must be a document", i)
	}

	switch e.Key {
	case "insertOne":
		d, err := subDocument(args, "document")
		if err != nil {
			return nil, err
		}
		if d == nil {
			return nil, domain.Errorf(domain.ErrInvalidOptions, "document", "operation %d has no document", i)
		}
		return storage.InsertOneModel{Document: d}, nil
	case "deleteOne", "deleteMany":
		f, err := parseFilter(args)
		if err != nil {
			return nil, err
		}
		if e.Key == "deleteOne" {
			return storage.DeleteOneModel{Filter: f}, nil
		}
		return storage.DeleteManyModel{Filter: f}, nil
	case "updateOne", "updateMany":
		f, err := parseFilter(args)
		if err != nil {
			return nil, err
		}
		u, err := parseUpdate(args)
		if err != nil {
			return nil, err
		}
		if e.Key == "updateOne" {
			return storage.UpdateOneModel{Filter: f, Update: u}, nil
		}
		return storage.UpdateManyModel{Filter: f, Update: u}, nil
	}
	return nil, domain.Errorf(domain.ErrInvalidOptions, e.Key, "unknown bulk operation")
}

// HandleBulkWrite handles POST requests with {"operations": [...]}.
// Operations run ordered unless ?ordered=false.
func (h *Handler) HandleBulkWrite(w http.ResponseWriter, r *http.Request) {
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
	ops, err := subArray(body, "operations")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(ops) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "No operations provided")
		return
	}
	if len(ops) > maxBatchSize {
		WriteJSONError(w, http.StatusBadRequest, "Maximum 1000 operations allowed per batch")
		return
	}
	models := make([]storage.WriteModel, len(ops))
	for i, op := range ops {
		model, err := parseWriteModel(i, op)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		models[i] = model
	}

	res, bulkErr := coll.BulkWrite(models, params.bulkOptions())
	response := BulkWriteResponse{
		InsertedCount: res.InsertedCount,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		DeletedCount:  res.DeletedCount,
		InsertedIDs:   make(map[string]json.RawMessage, len(res.InsertedIDs)),
	}
	indexes := make([]int, 0, len(res.InsertedIDs))
	for i := range res.InsertedIDs {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	for _, i := range indexes {
		raw, err := extJSONValue(res.InsertedIDs[i], params.Canonical)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		response.InsertedIDs[strconv.Itoa(i)] = raw
	}

	status := http.StatusOK
	if bulkErr != nil {
		var failed []WriteErrorResponse
		failed, status = writeErrors(bulkErr)
		if failed == nil {
			h.writeError(w, r, bulkErr)
			return
		}
		response.WriteErrors = failed
	}
	h.writeJSON(w, status, response)
}
