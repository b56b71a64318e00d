package warehouse

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/opensource-finance/lavandowski/internal/domain"
	"github.com/opensource-finance/lavandowski/internal/normalize"
)

// BigQueryWarehouse implements domain.Warehouse on BigQuery.
type BigQueryWarehouse struct {
	client   *bigquery.Client
	project  string
	location string
}

// NewBigQuery creates a BigQuery client from the warehouse config.
func NewBigQuery(ctx context.Context, cfg domain.WarehouseConfig) (*BigQueryWarehouse, error) {
	var opts []option.ClientOption

	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	} else if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	client, err := bigquery.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	return &BigQueryWarehouse{
		client:   client,
		project:  cfg.Project,
		location: cfg.Location,
	}, nil
}

// Query runs a standard-SQL query with positional parameters.
func (w *BigQueryWarehouse) Query(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	q := w.client.Query(query)
	for _, arg := range args {
		q.Parameters = append(q.Parameters, bigquery.QueryParameter{Value: arg})
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	var raw []map[string]any
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		raw = append(raw, bigQueryRow(row))
	}

	return normalize.Records(raw), nil
}

// Ping tests the BigQuery connection.
func (w *BigQueryWarehouse) Ping(ctx context.Context) error {
	it := w.client.Datasets(ctx)
	_, err := it.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Close closes the BigQuery client.
func (w *BigQueryWarehouse) Close() error {
	return w.client.Close()
}

func bigQueryRow(row map[string]bigquery.Value) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = bigQueryValue(v)
	}
	return out
}

// bigQueryValue unwraps repeated and record fields.
func bigQueryValue(v bigquery.Value) any {
	switch val := v.(type) {
	case []bigquery.Value:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = bigQueryValue(item)
		}
		return out
	case map[string]bigquery.Value:
		return bigQueryRow(val)
	default:
		return val
	}
}
