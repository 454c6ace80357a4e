package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// PostgresConfig configures the shared-database backend for deployments where
// several operators work against the same conversation history.
type PostgresConfig struct {
	DSN       string `envconfig:"DSN" split_words:"true" required:"true"`
	Retention int    `envconfig:"RETENTION" split_words:"true" default:"200"`
}

type turnRow struct {
	bun.BaseModel `bun:"table:turns"`

	SessionID   string   `bun:"session_id,pk"`
	Seq         int64    `bun:"seq,pk"`
	Query       string   `bun:"query,notnull"`
	Response    string   `bun:"response,notnull"`
	CustomerIDs []string `bun:"customer_ids,array"`
	CreatedAt   int64    `bun:"created_at,notnull"`
}

// PostgresBackend persists turns through bun over pgdriver.
type PostgresBackend struct {
	db        *bun.DB
	retention int
}

func NewPostgresBackend(ctx context.Context, cfg PostgresConfig) (*PostgresBackend, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.NewCreateTable().
		Model((*turnRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("create turns table: %w", err)
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &PostgresBackend{db: db, retention: retention}, nil
}

func (p *PostgresBackend) Append(ctx context.Context, sessionID string, turn Turn) error {
	return p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var next int64
		err := tx.NewSelect().
			Model((*turnRow)(nil)).
			ColumnExpr("COALESCE(MAX(seq), 0) + 1").
			Where("session_id = ?", sessionID).
			Scan(ctx, &next)
		if err != nil {
			return fmt.Errorf("next seq: %w", err)
		}

		row := &turnRow{
			SessionID:   sessionID,
			Seq:         next,
			Query:       turn.Query,
			Response:    turn.Response,
			CustomerIDs: turn.CustomerIDs,
			CreatedAt:   turn.CreatedAt.UTC().Unix(),
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}

		_, err = tx.NewDelete().
			Model((*turnRow)(nil)).
			Where("session_id = ?", sessionID).
			Where("seq <= ?", next-int64(p.retention)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("trim turns: %w", err)
		}
		return nil
	})
}

func (p *PostgresBackend) List(ctx context.Context, sessionID string) ([]Turn, error) {
	var rows []turnRow
	err := p.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}

	turns := make([]Turn, 0, len(rows))
	for _, row := range rows {
		turns = append(turns, row.toTurn())
	}
	return turns, nil
}

func (p *PostgresBackend) Clear(ctx context.Context, sessionID string) error {
	_, err := p.db.NewDelete().
		Model((*turnRow)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Close() error {
	return p.db.Close()
}

func (r turnRow) toTurn() Turn {
	return Turn{
		Seq:         r.Seq,
		Query:       r.Query,
		Response:    r.Response,
		CustomerIDs: r.CustomerIDs,
		CreatedAt:   unixUTC(r.CreatedAt),
	}
}

func unixUTC(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}
