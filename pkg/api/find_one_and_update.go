package api

import (
	"net/http"

	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/storage"
)

// HandleFindOneAndUpdate handles POST requests with {"filter", "update",
// "sort", "projection", "returnDocument": "before"|"after"}. The response body
// is the selected document.
func (h *Handler) HandleFindOneAndUpdate(w http.ResponseWriter, r *http.Request) {
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
	sort, err := parseSort(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	projection, err := parseProjection(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	returnAfter := false
	if v, ok := body.Get("returnDocument"); ok {
		s, _ := v.StringValue()
		switch s {
		case "before":
		case "after":
			returnAfter = true
		default:
			h.writeError(w, r, domain.Errorf(domain.ErrInvalidOptions, "returnDocument", "must be \"before\" or \"after\""))
			return
		}
	}

	doc, err := coll.FindOneAndUpdate(filter, upd, &storage.FindOneAndUpdateOptions{
		Sort:        sort,
		ReturnAfter: returnAfter,
		Projection:  projection,
	})
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
