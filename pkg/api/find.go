package api

import (
	"encoding/json"
	"net/http"

	"github.com/adfharrison1/go-docdb/pkg/domain"
	"github.com/adfharrison1/go-docdb/pkg/query"
	"github.com/adfharrison1/go-docdb/pkg/storage"
)

// findParams are the query parameters of HandleFind.
type findParams struct {
	Skip      int64 `schema:"skip"`
	Limit     int64 `schema:"limit"`
	Canonical bool  `schema:"canonical"`
}

// FindResponse is returned by HandleFind and HandleAggregate.
type FindResponse struct {
	Documents []json.RawMessage `json:"documents"`
	Count     int               `json:"count"`
}

// CountResponse is returned by HandleCount.
type CountResponse struct {
	Count int64 `json:"count"`
}

// parseFilter reads body["filter"]; absent means every document.
func parseFilter(body *domain.Document) (query.Filter, error) {
	doc, err := subDocument(body, "filter")
	if err != nil || doc == nil {
		return nil, err
	}
	return query.ParseFilter(doc)
}

func parseSort(body *domain.Document) (query.Sort, error) {
	doc, err := subDocument(body, "sort")
	if err != nil || doc == nil {
		return nil, err
	}
	return query.ParseSort(doc)
}

func parseProjection(body *domain.Document) (query.Projection, error) {
	doc, err := subDocument(body, "projection")
	if err != nil || doc == nil {
		return query.Projection{}, err
	}
	return query.ParseProjection(doc)
}

// HandleFind handles POST requests with a body of
// {"filter": {...}, "sort": {...}, "projection": {...}} and optional
// ?skip= and ?limit= parameters.
func (h *Handler) HandleFind(w http.ResponseWriter, r *http.Request) {
	var params findParams
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

	cur, err := coll.Find(filter, &storage.FindOptions{
		Sort:       sort,
		Skip:       params.Skip,
		Limit:      params.Limit,
		Projection: projection,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCursor(w, r, cur, params.Canonical)
}

// writeCursor drains cur into a FindResponse.
func (h *Handler) writeCursor(w http.ResponseWriter, r *http.Request, cur *storage.Cursor, canonical bool) {
	docs, err := cur.All()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	raw, err := extJSONDocuments(docs, canonical)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Debugw("returning documents", "path", r.URL.Path, "count", len(raw))
	h.writeJSON(w, http.StatusOK, FindResponse{Documents: raw, Count: len(raw)})
}

// HandleCount handles POST requests counting the documents matching
// {"filter": {...}}.
func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
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
	n, err := coll.CountDocuments(filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, CountResponse{Count: n})
}
