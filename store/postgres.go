package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfactory-lab/ic-solana/rpc"
)

// Postgres persists gateway state in three tables: providers, grants, and
// counters. Records are stored as JSONB so the Go structs stay the single
// source of truth for their shape.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = &Postgres{}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS providers (
	id     TEXT PRIMARY KEY,
	record JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS grants (
	principal    TEXT PRIMARY KEY,
	capabilities JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS counters (
	name  TEXT PRIMARY KEY,
	value BIGINT NOT NULL
);
`

// OpenPostgres connects to the database and ensures the schema exists.
func OpenPostgres(ctx context.Context, uri string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure postgres schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) LoadProviders(ctx context.Context) ([]rpc.Provider, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM providers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	var out []rpc.Provider
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, err
		}
		var p rpc.Provider
		if err := json.Unmarshal(record, &p); err != nil {
			return nil, fmt.Errorf("decode provider record: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) SaveProvider(ctx context.Context, p rpc.Provider) error {
	record, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO providers (id, record) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET record = EXCLUDED.record`,
		p.ID, record)
	return err
}

func (s *Postgres) DeleteProvider(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM providers WHERE id = $1`, id)
	return err
}

func (s *Postgres) LoadGrants(ctx context.Context) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT principal, capabilities FROM grants`)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var principal string
		var capsJSON []byte
		if err := rows.Scan(&principal, &capsJSON); err != nil {
			return nil, err
		}
		var caps []string
		if err := json.Unmarshal(capsJSON, &caps); err != nil {
			return nil, fmt.Errorf("decode grant record: %w", err)
		}
		out[principal] = caps
	}
	return out, rows.Err()
}

func (s *Postgres) SaveGrants(ctx context.Context, principal string, capabilities []string) error {
	if len(capabilities) == 0 {
		_, err := s.pool.Exec(ctx, `DELETE FROM grants WHERE principal = $1`, principal)
		return err
	}
	capsJSON, err := json.Marshal(capabilities)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO grants (principal, capabilities) VALUES ($1, $2)
		 ON CONFLICT (principal) DO UPDATE SET capabilities = EXCLUDED.capabilities`,
		principal, capsJSON)
	return err
}

func (s *Postgres) LoadCounters(ctx context.Context) (map[string]uint64, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, value FROM counters`)
	if err != nil {
		return nil, fmt.Errorf("query counters: %w", err)
	}
	defer rows.Close()

	out := make(map[string]uint64)
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = uint64(value)
	}
	return out, rows.Err()
}

func (s *Postgres) AddCounter(ctx context.Context, name string, delta uint64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO counters (name, value) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET value = counters.value + EXCLUDED.value`,
		name, int64(delta))
	return err
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close(context.Context) error {
	s.pool.Close()
	return nil
}
