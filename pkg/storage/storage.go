// Package storage is the in-memory document store: an Engine holds named
// Databases, which hold named Collections of documents.
package storage

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/adfharrison1/go-docdb/pkg/domain"
)

// Engine is the root of the store. It is safe for concurrent use.
type Engine struct {
	mu        sync.RWMutex
	databases map[string]*Database

	logger      *zap.SugaredLogger
	newID       func() domain.ObjectID
	defaultOpts CollectionOptions
}

// NewEngine creates an empty engine.
func NewEngine(options ...Option) *Engine {
	engine := &Engine{
		databases: make(map[string]*Database),
		logger:    zap.NewNop().Sugar(),
		newID:     domain.NewObjectID,
	}
	for _, option := range options {
		option(engine)
	}
	return engine
}

// Database returns the named database, creating it on first reference.
func (e *Engine) Database(name string) (*Database, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	e.mu.RLock()
	if db, exists := e.databases[name]; exists {
		e.mu.RUnlock()
		return db, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if db, exists := e.databases[name]; exists {
		return db, nil
	}
	db := &Database{
		name:        name,
		engine:      e,
		collections: make(map[string]*Collection),
	}
	e.databases[name] = db
	return db, nil
}

// DatabaseNames lists the databases holding at least one collection, sorted.
func (e *Engine) DatabaseNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var names []string
	for name, db := range e.databases {
		if len(db.ListCollectionNames()) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// DropDatabase removes every collection of the named database.
func (e *Engine) DropDatabase(name string) error {
	db, err := e.Database(name)
	if err != nil {
		return err
	}
	return db.Drop()
}

// Logger returns the engine logger.
func (e *Engine) Logger() *zap.SugaredLogger {
	return e.logger
}

// Database is a named set of collections.
type Database struct {
	name   string
	engine *Engine

	mu          sync.RWMutex
	collections map[string]*Collection
}

// Name returns the database name.
func (d *Database) Name() string { return d.name }

// Collection returns the named collection, creating it with the engine's
// default options on first reference.
func (d *Database) Collection(name string) (*Collection, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	d.mu.RLock()
	if coll, exists := d.collections[name]; exists {
		d.mu.RUnlock()
		return coll, nil
	}
	d.mu.RUnlock()

	opts, err := d.engine.defaultOpts.normalize()
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if coll, exists := d.collections[name]; exists {
		return coll, nil
	}
	return d.createLocked(name, opts), nil
}

// CreateCollection explicitly creates a collection with opts. It fails with
// ErrInvalidOptions if the collection already exists.
func (d *Database) CreateCollection(name string, opts CollectionOptions) (*Collection, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.collections[name]; exists {
		return nil, domain.Errorf(domain.ErrInvalidOptions, name, "collection already exists")
	}
	return d.createLocked(name, opts), nil
}

func (d *Database) createLocked(name string, opts CollectionOptions) *Collection {
	coll := newCollection(d, name, opts)
	d.collections[name] = coll
	d.engine.logger.Debugw("created collection", "database", d.name, "collection", name, "capped", opts.Capped)
	return coll
}

// ListCollectionNames returns the collection names, sorted.
func (d *Database) ListCollectionNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.collections))
	for name := range d.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Drop removes every collection. Handles to the dropped collections return
// ErrCollectionDropped; the database itself stays usable.
func (d *Database) Drop() error {
	d.mu.Lock()
	colls := d.collections
	d.collections = make(map[string]*Collection)
	d.mu.Unlock()

	for _, coll := range colls {
		coll.markDropped()
	}
	d.engine.logger.Debugw("dropped database", "database", d.name, "collections", len(colls))
	return nil
}

// detach removes coll from the database if it is still the registered
// collection under its name.
func (d *Database) detach(coll *Collection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.collections[coll.name] == coll {
		delete(d.collections, coll.name)
	}
}

func validateName(name string) error {
	if name == "" {
		return domain.Errorf(domain.ErrInvalidOptions, "", "name cannot be empty")
	}
	if strings.ContainsAny(name, "$\x00/") {
		return domain.Errorf(domain.ErrInvalidOptions, name, "name contains an illegal character")
	}
	return nil
}
