package main

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const reportColumns = `
		id,
		category,
		title,
		description,
		photo_data_url,
		location_lat,
		location_lon,
		status,
		created_at_ms
`

const reportSelectColumns = `SELECT` + reportColumns + `FROM reports`

// postgresReportRepository stores one row per report. Storage order is the
// insertion sequence, so Load returns reports the way they were added.
type postgresReportRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func openPostgresReportRepository(ctx context.Context, databaseURL string, logger *slog.Logger) (*postgresReportRepository, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}

	repo := &postgresReportRepository{db: db, log: logger}
	if err := repo.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *postgresReportRepository) Close() error {
	return r.db.Close()
}

func (r *postgresReportRepository) runMigrations(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return err
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, file).Scan(&exists); err != nil {
			return err
		}
		if exists {
			continue
		}

		content, err := migrationFiles.ReadFile("migrations/" + file)
		if err != nil {
			return err
		}

		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, file); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		r.log.Info("applied migration", "file", file)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(scanner rowScanner) (Report, error) {
	var report Report
	var lat, lon sql.NullFloat64
	if err := scanner.Scan(
		&report.ID,
		&report.Category,
		&report.Title,
		&report.Description,
		&report.PhotoDataURL,
		&lat,
		&lon,
		&report.Status,
		&report.CreatedAt,
	); err != nil {
		return Report{}, err
	}
	if lat.Valid && lon.Valid {
		report.Location = &ReportLocation{Lat: lat.Float64, Lon: lon.Float64}
	}
	return report, nil
}

func locationColumns(location *ReportLocation) (sql.NullFloat64, sql.NullFloat64) {
	if location == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: location.Lat, Valid: true}, sql.NullFloat64{Float64: location.Lon, Valid: true}
}

func (r *postgresReportRepository) Load(ctx context.Context) ([]Report, error) {
	rows, err := r.db.QueryContext(ctx, reportSelectColumns+` ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func (r *postgresReportRepository) Save(ctx context.Context, reports []Report) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reports`); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, report := range reports {
		if err := insertReportTx(ctx, tx, report); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func insertReportTx(ctx context.Context, tx *sql.Tx, report Report) error {
	lat, lon := locationColumns(report.Location)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reports (id, category, title, description, photo_data_url, location_lat, location_lon, status, created_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, report.ID, report.Category, report.Title, report.Description, report.PhotoDataURL, lat, lon, report.Status, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", report.ID, err)
	}
	return nil
}

func (r *postgresReportRepository) Upsert(ctx context.Context, report Report) error {
	lat, lon := locationColumns(report.Location)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reports (id, category, title, description, photo_data_url, location_lat, location_lon, status, created_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			photo_data_url = EXCLUDED.photo_data_url,
			location_lat = EXCLUDED.location_lat,
			location_lon = EXCLUDED.location_lon,
			status = EXCLUDED.status,
			created_at_ms = EXCLUDED.created_at_ms
	`, report.ID, report.Category, report.Title, report.Description, report.PhotoDataURL, lat, lon, report.Status, report.CreatedAt)
	return err
}

// statusesAllowing lists the stored status values from which next may be
// reached. An empty stored status counts as Open.
func statusesAllowing(next string) []string {
	out := []string{}
	for _, from := range []string{StatusOpen, StatusAssigned, StatusClosed} {
		if canTransitionStatus(from, next) {
			out = append(out, from)
			if from == StatusOpen {
				out = append(out, "")
			}
		}
	}
	return out
}

func (r *postgresReportRepository) UpdateStatus(ctx context.Context, id, next string) (Report, string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Report{}, "", err
	}
	defer func() { _ = tx.Rollback() }()

	var stored string
	err = tx.QueryRowContext(ctx, `SELECT status FROM reports WHERE id = $1 FOR UPDATE`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, "", errReportNotFound
	}
	if err != nil {
		return Report{}, "", err
	}
	current := Report{Status: stored}.EffectiveStatus()

	report, err := scanReport(tx.QueryRowContext(ctx, `
		UPDATE reports SET status = $1
		WHERE id = $2 AND status = ANY($3)
		RETURNING`+reportColumns, next, id, statusesAllowing(next)))
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, current, &statusTransitionError{From: current, To: next}
	}
	if err != nil {
		return Report{}, current, err
	}
	if err := tx.Commit(); err != nil {
		return Report{}, current, err
	}
	return report, current, nil
}

func (r *postgresReportRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *postgresReportRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reports`)
	return err
}
