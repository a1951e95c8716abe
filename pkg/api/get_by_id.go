package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/query"
)

// idFromPath interprets the {id} route variable: an ObjectID string becomes an
// ObjectID, an integer becomes Int32 or Int64, anything else stays a string.
func idFromPath(r *http.Request) domain.Value {
	raw := mux.Vars(r)["id"]
	if oid, err := domain.ParseObjectID(raw); err == nil {
		return domain.OID(oid)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n >= -1<<31 && n < 1<<31 {
			return domain.Int32(int32(n))
		}
		return domain.Int64(n)
	}
	return domain.String(raw)
}

// HandleGetById handles GET requests to retrieve a document by _id.
func (h *Handler) HandleGetById(w http.ResponseWriter, r *http.Request) {
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
	doc, err := coll.FindOne(query.Eq(domain.IDField, idFromPath(r)), nil)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	raw, err := extJSON(doc, params.Canonical)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, raw)
}
