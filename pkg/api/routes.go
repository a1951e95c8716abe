package api

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API routes with the given router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HandleHealth).Methods("GET")

	// Databases and collections
	router.HandleFunc("/databases", h.HandleListDatabases).Methods("GET")
	router.HandleFunc("/databases/{db}", h.HandleDropDatabase).Methods("DELETE")
	router.HandleFunc("/databases/{db}/collections", h.HandleListCollections).Methods("GET")

	router.HandleFunc("/databases/{db}/collections/{coll}", h.HandleCreateCollection).Methods("PUT")
	router.HandleFunc("/databases/{db}/collections/{coll}", h.HandleDropCollection).Methods("DELETE")

	coll := router.PathPrefix("/databases/{db}/collections/{coll}").Subrouter()

	// Document writes
	coll.HandleFunc("/documents", h.HandleInsert).Methods("POST")
	coll.HandleFunc("/documents/batch", h.HandleBatchInsert).Methods("POST")
	coll.HandleFunc("/documents/{id}", h.HandleGetById).Methods("GET")
	coll.HandleFunc("/documents/{id}", h.HandleDeleteById).Methods("DELETE")
	coll.HandleFunc("/update", h.HandleUpdate).Methods("POST")
	coll.HandleFunc("/delete", h.HandleDelete).Methods("POST")
	coll.HandleFunc("/findOneAndUpdate", h.HandleFindOneAndUpdate).Methods("POST")
	coll.HandleFunc("/bulk", h.HandleBulkWrite).Methods("POST")

	// Reads
	coll.HandleFunc("/find", h.HandleFind).Methods("POST")
	coll.HandleFunc("/count", h.HandleCount).Methods("POST")
	coll.HandleFunc("/aggregate", h.HandleAggregate).Methods("POST")

	// Index operations
	coll.HandleFunc("/indexes", h.HandleCreateIndex).Methods("POST")
	coll.HandleFunc("/indexes", h.HandleGetIndexes).Methods("GET")
	coll.HandleFunc("/indexes/{name}", h.HandleDropIndex).Methods("DELETE")
}
