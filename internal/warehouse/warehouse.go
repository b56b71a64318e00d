// Package warehouse provides read access to the analytics warehouse.
package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

var (
	ErrUnsupportedDriver = errors.New("unsupported warehouse driver")
)

// New creates a warehouse based on configuration.
func New(ctx context.Context, cfg domain.WarehouseConfig) (domain.Warehouse, error) {
	switch cfg.Driver {
	case "bigquery":
		w, err := NewBigQuery(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return w, nil
	case "sqlite", "postgres":
		w, err := NewSQL(cfg)
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}
}
