package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/avolkov/webtracker/internal/domain"
	"github.com/avolkov/webtracker/internal/repo"
)

var _ repo.ResourceStore = (*Store)(nil)
var _ repo.LogStore = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the schema when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS resources (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	url        TEXT NOT NULL,
	type       TEXT NOT NULL,
	interval   INT  NOT NULL,
	user_id    TEXT NOT NULL,
	headers    JSONB,
	frequency  INT,
	period     TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS logs (
	id          BIGSERIAL PRIMARY KEY,
	resource_id BIGINT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
	status      TEXT NOT NULL,
	response    TEXT NOT NULL,
	endpoint    TEXT NOT NULL,
	duration_ms BIGINT NOT NULL,
	result      BOOLEAN NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS logs_resource_created_idx ON logs (resource_id, created_at DESC);`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ---- ResourceStore ----

func (s *Store) Create(ctx context.Context, r *domain.Resource) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	headers, err := marshalHeaders(r.Headers)
	if err != nil {
		return err
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO resources (name, url, type, interval, user_id, headers, frequency, period, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING id`,
		r.Name, r.URL, string(r.Type), r.Interval, r.UserID, headers, r.Frequency, nullableString(r.Period), r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*domain.Resource, error) {
	return s.getOne(ctx, `WHERE id = $1`, id)
}

func (s *Store) GetByName(ctx context.Context, name string) (*domain.Resource, error) {
	return s.getOne(ctx, `WHERE name = $1`, name)
}

func (s *Store) getOne(ctx context.Context, where string, arg any) (*domain.Resource, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, url, type, interval, user_id, headers, frequency, period, created_at
		   FROM resources `+where, arg)
	r, err := scanResource(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	return r, nil
}

func (s *Store) ListAll(ctx context.Context) ([]domain.Resource, error) {
	return s.list(ctx,
		`SELECT id, name, url, type, interval, user_id, headers, frequency, period, created_at
		   FROM resources ORDER BY id`)
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]domain.Resource, error) {
	return s.list(ctx,
		`SELECT id, name, url, type, interval, user_id, headers, frequency, period, created_at
		   FROM resources WHERE user_id = $1 ORDER BY id`, userID)
}

func (s *Store) list(ctx context.Context, q string, args ...any) ([]domain.Resource, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var out []domain.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) Update(ctx context.Context, r *domain.Resource) error {
	headers, err := marshalHeaders(r.Headers)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE resources
		    SET name=$2, url=$3, type=$4, interval=$5, user_id=$6, headers=$7, frequency=$8, period=$9
		  WHERE id=$1`,
		r.ID, r.Name, r.URL, string(r.Type), r.Interval, r.UserID, headers, r.Frequency, nullableString(r.Period),
	)
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM resources WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return nil
}

// ---- LogStore ----

func (s *Store) Append(ctx context.Context, l *domain.Log) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO logs (resource_id, status, response, endpoint, duration_ms, result, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 RETURNING id`,
		l.ResourceID, l.Status, l.Response, l.Endpoint, l.DurationMS, l.Result, l.CreatedAt,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

func (s *Store) ListByResource(ctx context.Context, resourceID int64, limit int) ([]domain.Log, error) {
	q := `SELECT id, resource_id, status, response, endpoint, duration_ms, result, created_at
	        FROM logs
	       WHERE resource_id = $1
	       ORDER BY created_at DESC, id DESC`
	args := []any{resourceID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var out []domain.Log
	for rows.Next() {
		var l domain.Log
		if err := rows.Scan(&l.ID, &l.ResourceID, &l.Status, &l.Response, &l.Endpoint, &l.DurationMS, &l.Result, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) DeleteByResource(ctx context.Context, resourceID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM logs WHERE resource_id=$1`, resourceID); err != nil {
		return fmt.Errorf("delete logs: %w", err)
	}
	return nil
}

// ---- helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*domain.Resource, error) {
	var (
		r         domain.Resource
		typ       string
		headers   []byte
		frequency *int
		period    *string
	)
	if err := row.Scan(&r.ID, &r.Name, &r.URL, &typ, &r.Interval, &r.UserID, &headers, &frequency, &period, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Type = domain.ProbeType(typ)
	r.Frequency = frequency
	if period != nil {
		r.Period = *period
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &r.Headers); err != nil {
			return nil, fmt.Errorf("decode headers: %w", err)
		}
	}
	return &r, nil
}

func marshalHeaders(h map[string]string) ([]byte, error) {
	if len(h) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encode headers: %w", err)
	}
	return b, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
