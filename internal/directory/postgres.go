package directory

import (
	"context"
	"fmt"

	"github.com/cuongbtq/visit-metrics/internal/domain"
)

const selectStoresQuery = `
	SELECT store_id, store_name, area_code
	FROM stores
	ORDER BY store_id
`

// Selector is the query capability the Postgres loader needs
type Selector interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// LoadPostgres reads the whole stores table once
func LoadPostgres(ctx context.Context, db Selector) (*Directory, error) {
	var records []domain.StoreRecord
	if err := db.SelectContext(ctx, &records, selectStoresQuery); err != nil {
		return nil, fmt.Errorf("failed to load stores: %w", err)
	}

	d, err := New(records)
	if err != nil {
		return nil, fmt.Errorf("invalid stores table: %w", err)
	}

	return d, nil
}
