package api

import (
	"net/http"

	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/query"
)

// HandleDeleteById handles DELETE requests removing a document by _id.
func (h *Handler) HandleDeleteById(w http.ResponseWriter, r *http.Request) {
	coll, err := h.collection(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id := idFromPath(r)
	res, err := coll.DeleteOne(query.Eq(domain.IDField, id))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.DeletedCount == 0 {
		h.writeError(w, r, domain.Errorf(domain.ErrNotFound, domain.IDField, "no document with _id %s", id))
		return
	}
	h.logger.Debugw("deleted document", "collection", coll.Name(), "id", id.String())
	w.WriteHeader(http.StatusNoContent)
}
