package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adfharrison1/go-docdb/pkg/storage"
)

// NamesResponse lists database or collection names.
type NamesResponse struct {
	Names []string `json:"names"`
}

// collectionParams are the query parameters of HandleCreateCollection.
type collectionParams struct {
	Capped       bool  `schema:"capped"`
	MaxDocuments int64 `schema:"maxDocuments"`
	SizeInBytes  int64 `schema:"sizeInBytes"`
}

// HandleListDatabases handles GET /databases.
func (h *Handler) HandleListDatabases(w http.ResponseWriter, r *http.Request) {
	names := h.engine.DatabaseNames()
	if names == nil {
		names = []string{}
	}
	h.writeJSON(w, http.StatusOK, NamesResponse{Names: names})
}

// HandleListCollections handles GET /databases/{db}/collections.
func (h *Handler) HandleListCollections(w http.ResponseWriter, r *http.Request) {
	db, err := h.engine.Database(mux.Vars(r)["db"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, NamesResponse{Names: db.ListCollectionNames()})
}

// HandleCreateCollection handles PUT /databases/{db}/collections/{coll}, with
// capped options in the query string.
func (h *Handler) HandleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var params collectionParams
	if err := h.params(r, &params); err != nil {
		h.writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	db, err := h.engine.Database(vars["db"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	coll, err := db.CreateCollection(vars["coll"], storage.CollectionOptions{
		Capped:       params.Capped,
		MaxDocuments: params.MaxDocuments,
		SizeInBytes:  params.SizeInBytes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Infow("created collection", "database", db.Name(), "collection", coll.Name(), "capped", params.Capped)
	h.writeJSON(w, http.StatusCreated, coll.Options())
}

// HandleDropCollection handles DELETE /databases/{db}/collections/{coll}.
func (h *Handler) HandleDropCollection(w http.ResponseWriter, r *http.Request) {
	coll, err := h.collection(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := coll.Drop(); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Infow("dropped collection", "database", coll.Database().Name(), "collection", coll.Name())
	w.WriteHeader(http.StatusNoContent)
}

// HandleDropDatabase handles DELETE /databases/{db}.
func (h *Handler) HandleDropDatabase(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["db"]
	if err := h.engine.DropDatabase(name); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Infow("dropped database", "database", name)
	w.WriteHeader(http.StatusNoContent)
}
