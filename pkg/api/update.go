package api

import (
	"net/http"

	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/storage"
	"github.com/adfharrison1/go-docdb/pkg/update"
)

// UpdateResponse is returned by HandleUpdate.
type UpdateResponse struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// DeleteResponse is returned by HandleDelete.
type DeleteResponse struct {
	DeletedCount int64 `json:"deletedCount"`
}

// parseUpdate reads the required body["update"].
func parseUpdate(body *domain.Document) (update.Update, error) {
	doc, err := subDocument(body, "update")
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.Errorf(domain.ErrInvalidUpdate, "update", "update document is required")
	}
	return update.Parse(doc)
}

// HandleUpdate handles POST requests with {"filter": {...}, "update": {...},
// "multi": bool}. Without multi only the first match is updated.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
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
	filter, err := parseFilter(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	upd, err := parseUpdate(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	multi, err := flag(body, "multi")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var res storage.UpdateResult
	if multi {
		res, err = coll.UpdateMany(filter, upd)
	} else {
		res, err = coll.UpdateOne(filter, upd)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, UpdateResponse{MatchedCount: res.MatchedCount, ModifiedCount: res.ModifiedCount})
}

// HandleDelete handles POST requests with {"filter": {...}, "multi": bool}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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
	filter, err := parseFilter(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	multi, err := flag(body, "multi")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var res storage.DeleteResult
	if multi {
		res, err = coll.DeleteMany(filter)
	} else {
		res, err = coll.DeleteOne(filter)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, DeleteResponse{DeletedCount: res.DeletedCount})
}
