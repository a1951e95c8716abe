package api

import (
	"encoding/json"
	"net/http"
)

// InsertOneResponse is returned by HandleInsert.
type InsertOneResponse struct {
	InsertedID json.RawMessage `json:"insertedId"`
}

// HandleInsert handles POST requests inserting one document. The body is the
// document itself.
func (h *Handler) HandleInsert(w http.ResponseWriter, r *http.Request) {
	var params outputParams
	if err := h.params(r, &params); err != nil {
		h.writeError(w, r, err)
		return
	}
	coll, err := h.collection(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	doc, err := readBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := coll.InsertOne(doc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := extJSONValue(res.InsertedID, params.Canonical)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Debugw("inserted document", "collection", coll.Name())
	h.writeJSON(w, http.StatusCreated, InsertOneResponse{InsertedID: id})
}
