package api

import (
	"net/http"

	"github.com/adfharrison1/go-docdb/pkg/aggregation"
	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// HandleAggregate handles POST requests with {"pipeline": [stage, ...]}.
func (h *Handler) HandleAggregate(w http.ResponseWriter, r *http.Request) {
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
	if !body.Has("pipeline") {
		h.writeError(w, r, domain.Errorf(domain.ErrInvalidPipeline, "pipeline", "pipeline is required"))
		return
	}
	stages, err := subArray(body, "pipeline")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pipeline, err := aggregation.Parse(stages)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cur, err := coll.Aggregate(pipeline)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCursor(w, r, cur, params.Canonical)
}
