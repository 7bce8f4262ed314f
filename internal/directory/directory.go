package directory

import (
	"fmt"

	"github.com/cuongbtq/visit-metrics/internal/domain"
)

// Source names accepted by the directory configuration
const (
	SourceBuiltin  = "builtin"
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Directory is a read-only store master, populated once at startup
type Directory struct {
	stores map[string]domain.StoreRecord
}

// New builds a Directory from records. Empty or duplicate store ids are rejected.
func New(records []domain.StoreRecord) (*Directory, error) {
	stores := make(map[string]domain.StoreRecord, len(records))
	for _, rec := range records {
		if rec.StoreID == "" {
			return nil, fmt.Errorf("store record with empty store_id")
		}
		if _, dup := stores[rec.StoreID]; dup {
			return nil, fmt.Errorf("duplicate store_id %q", rec.StoreID)
		}
		stores[rec.StoreID] = rec
	}

	return &Directory{stores: stores}, nil
}

// Builtin returns the directory shipped with the service
func Builtin() *Directory {
	d, _ := New(builtinStores)
	return d
}

var builtinStores = []domain.StoreRecord{
	{StoreID: "S00339218", StoreName: "Retail Hub A", AreaCode: "1001"},
	{StoreID: "S01408764", StoreName: "Retail Hub B", AreaCode: "2002"},
}

// Lookup returns the store for storeID. A missing store is not an error.
func (d *Directory) Lookup(storeID string) (domain.StoreRecord, bool) {
	rec, ok := d.stores[storeID]
	return rec, ok
}

// Len returns the number of known stores
func (d *Directory) Len() int {
	return len(d.stores)
}
