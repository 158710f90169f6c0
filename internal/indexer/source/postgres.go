package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/record"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/config"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/postgres"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/resilience"
)

// Postgres reads collections from tables of the form
//
//	CREATE TABLE rooms (
//	    id   BIGINT PRIMARY KEY,
//	    data JSONB NOT NULL
//	);
//
// Each row becomes one record; the id column fills the record's "id" when
// the document does not carry one.
type Postgres struct {
	client *postgres.Client
	logger *slog.Logger
}

// NewPostgres creates a Postgres source.
func NewPostgres(client *postgres.Client) *Postgres {
	return &Postgres{
		client: client,
		logger: slog.Default().With("component", "postgres-source"),
	}
}

// undefinedTable is the SQLSTATE for a missing relation.
const undefinedTable pq.ErrorCode = "42P01"

// Load selects every row of col.Table ordered by id inside a read-only
// snapshot. A missing table is reported as a permanent error so callers
// do not retry it.
func (p *Postgres) Load(ctx context.Context, col config.CollectionConfig) ([]record.Map, error) {
	table := col.Table
	if table == "" {
		table = col.Name
	}
	query := fmt.Sprintf("SELECT id::text, data FROM %s ORDER BY id", pq.QuoteIdentifier(table))

	var records []record.Map
	err := p.client.Snapshot(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			var data []byte
			if err := rows.Scan(&id, &data); err != nil {
				return fmt.Errorf("scanning row: %w", err)
			}
			rec, err := decodeRow(id, data)
			if err != nil {
				p.logger.Warn("skipping undecodable row", "table", table, "id", id, "error", err)
				continue
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
			return nil, resilience.Permanent(fmt.Errorf("loading %s: %w", table, err))
		}
		return nil, fmt.Errorf("loading %s: %w", table, err)
	}
	p.logger.Debug("collection loaded", "table", table, "records", len(records))
	return records, nil
}

func decodeRow(id string, data []byte) (record.Map, error) {
	rec, err := record.FromJSON(data)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = record.Map{}
	}
	if _, ok := rec["id"]; !ok {
		rec["id"] = id
	}
	return rec, nil
}
