package dataset

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the loaded databases of one analysis by name, so pipeline
// code can wire annotation sources without threading each *Database through
// every call site.
type Registry struct {
	mu  sync.RWMutex
	dbs map[string]*Database
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{dbs: make(map[string]*Database)}
}

// Register adds a database under its own name. Re-registering a name fails;
// a database is loaded once per analysis.
func (r *Registry) Register(db *Database) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.dbs[db.Name()]; ok {
		return fmt.Errorf("database %q already registered", db.Name())
	}
	r.dbs[db.Name()] = db
	return nil
}

// Get returns the named database.
func (r *Registry) Get(name string) (*Database, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	db, ok := r.dbs[name]
	if !ok {
		return nil, fmt.Errorf("database %q not registered", name)
	}
	return db, nil
}

// Names returns the registered database names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.dbs))
	for n := range r.dbs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
