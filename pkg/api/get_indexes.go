package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-docdb/pkg/indexing"
)

// IndexesResponse is returned by HandleGetIndexes.
type IndexesResponse struct {
	Collection string               `json:"collection"`
	Indexes    []indexing.IndexSpec `json:"indexes"`
	IndexCount int                  `json:"index_count"`
}

// HandleGetIndexes handles GET requests listing a collection's indexes.
func (h *Handler) HandleGetIndexes(w http.ResponseWriter, r *http.Request) {
	coll, err := h.collection(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	indexes, err := coll.Indexes()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, IndexesResponse{
		Collection: coll.Name(),
		Indexes:    indexes,
		IndexCount: len(indexes),
	})
}

// HandleDropIndex handles DELETE requests removing the index named in the path.
func (h *Handler) HandleDropIndex(w http.ResponseWriter, r *http.Request) {
	coll, err := h.collection(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := coll.DropIndex(mux.Vars(r)["name"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
