package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"FacilityScanner/internal/domain"
	"FacilityScanner/internal/ports"
)

// PostgresRepository persists run provenance and exported facility codes.
type PostgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.RunRepository = (*PostgresRepository)(nil)

// Open connects to Postgres and pings it.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// ExportedCodes returns which of the given codes were exported before.
func (r *PostgresRepository) ExportedCodes(ctx context.Context, codes []string) (map[string]bool, error) {
	if r.db == nil || len(codes) == 0 {
		return map[string]bool{}, nil
	}

	query, args, err := r.sb.
		Select("code").
		From("exported_facilities").
		Where(sq.Eq{"code": codes}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build exported query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exported: %w", err)
	}
	defer rows.Close()

	result := make(map[string]bool)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		result[code] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// SaveExported upserts the codes included in the latest export.
func (r *PostgresRepository) SaveExported(ctx context.Context, codes []string) error {
	if r.db == nil || len(codes) == 0 {
		return nil
	}

	insert := r.sb.
		Insert("exported_facilities").
		Columns("code", "exported_at")
	for _, code := range codes {
		insert = insert.Values(code, sq.Expr("NOW()"))
	}
	query, args, err := insert.
		Suffix("ON CONFLICT (code) DO UPDATE SET exported_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build exported insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert exported: %w", err)
	}
	return nil
}

// SaveRun records the outcome of one pipeline run.
func (r *PostgresRepository) SaveRun(ctx context.Context, run domain.RunRecord) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.sb.
		Insert("catalog_runs").
		Columns("started_at", "finished_at", "discovered", "fetched", "failed", "exported", "matched", "summary").
		Values(run.StartedAt, run.FinishedAt, run.Discovered, run.Fetched, run.Failed, run.Exported, run.Matched, run.Summary).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}
