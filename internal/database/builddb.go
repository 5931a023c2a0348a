package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitegen/internal/model"
)

// FileName is the database file created inside the database directory.
const FileName = "sitegen.db"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var (
	// ErrBuildNotFound is returned when no build matches an ID or prefix.
	ErrBuildNotFound = errors.New("build not found")

	// ErrAmbiguousBuildID is returned when an ID prefix matches several builds.
	ErrAmbiguousBuildID = errors.New("ambiguous build id")
)

// BuildDB provides SQLite-based storage for build reports.
type BuildDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures BuildDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so `history` can read while a
	// build is being recorded.
	EnableWAL bool
}

const busyTimeoutMillis = 5000

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a BuildDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*BuildDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	dsn := dbPath + "?mode=rwc"
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run sitegen build first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		dsn = dbPath + "?mode=rw"
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Concurrent builds and history commands share one file.
	dsn += "&_pragma=busy_timeout(" + strconv.Itoa(busyTimeoutMillis) + ")"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	bdb := &BuildDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := bdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return bdb, nil
}

// Path returns the database file path.
func (bdb *BuildDB) Path() string {
	return bdb.dbPath
}

// Close closes the database connection.
func (bdb *BuildDB) Close() error {
	return bdb.db.Close()
}

func (bdb *BuildDB) createTables() error {
	schema := `
	-- One row per finished build; report_json holds the full report
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		site TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL,
		root TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		rendered INTEGER NOT NULL DEFAULT 0,
		redirects INTEGER NOT NULL DEFAULT 0,
		broken INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		bytes INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_builds_site ON builds(site, started_at);

	-- Written pages of each build
	CREATE TABLE IF NOT EXISTS pages (
		build_id TEXT NOT NULL REFERENCES builds(id),
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		status INTEGER NOT NULL,
		digest TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (build_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	`

	_, err := bdb.db.ExecContext(context.Background(), schema)
	return err
}

// BuildSummary is the metadata of a stored build, without its pages.
type BuildSummary struct {
	ID         string
	Site       string
	Mode       model.Mode
	Root       string
	StartedAt  time.Time
	FinishedAt time.Time
	Counts     model.Counts
	Error      string
}

// Duration returns how long the build took.
func (s BuildSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Failed reports whether the build ended with an error.
func (s BuildSummary) Failed() bool {
	return s.Error != ""
}

// SaveBuild stores a finished build and its pages in one transaction.
// Saving the same build twice replaces the earlier record.
func (bdb *BuildDB) SaveBuild(ctx context.Context, report *model.BuildReport) (err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	counts := report.Counts()

	tx, err := bdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM pages WHERE build_id = ?`, report.ID); err != nil {
		return fmt.Errorf("failed to replace build %s: %w", report.ID, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM builds WHERE id = ?`, report.ID); err != nil {
		return fmt.Errorf("failed to replace build %s: %w", report.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO builds (id, site, mode, root, started_at, finished_at,
		rendered, redirects, broken, skipped, bytes, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		report.Site,
		string(report.Mode),
		report.Root,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		counts.Rendered,
		counts.Redirects,
		counts.Broken,
		counts.Skipped,
		counts.Bytes,
		report.ErrorMessage,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert build %s: %w", report.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (build_id, url, path, status, digest, size)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range report.Pages {
		if _, err = stmt.ExecContext(ctx, report.ID, p.URL, p.Path, p.Status, p.Digest, p.Size); err != nil {
			return fmt.Errorf("failed to insert page %s: %w", p.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit build %s: %w", report.ID, err)
	}
	return nil
}

// GetBuild retrieves a build by its ID or a unique ID prefix.
func (bdb *BuildDB) GetBuild(ctx context.Context, idOrPrefix string) (*model.BuildReport, error) {
	id, err := bdb.resolveID(ctx, idOrPrefix)
	if err != nil {
		return nil, err
	}

	var reportJSON string
	err = bdb.db.QueryRowContext(ctx, `SELECT report_json FROM builds WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrBuildNotFound, idOrPrefix)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build: %w", err)
	}
	return decodeReport(reportJSON)
}

// resolveID expands a prefix to a full build ID.
func (bdb *BuildDB) resolveID(ctx context.Context, idOrPrefix string) (string, error) {
	if idOrPrefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrBuildNotFound)
	}

	rows, err := bdb.db.QueryContext(ctx,
		`SELECT id FROM builds WHERE substr(id, 1, ?) = ? LIMIT 2`, len(idOrPrefix), idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("failed to look up build: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan build id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrBuildNotFound, idOrPrefix)
	case 1:
		return ids[0], nil
	default:
		for _, id := range ids {
			if id == idOrPrefix {
				return id, nil
			}
		}
		return "", fmt.Errorf("%w: %s", ErrAmbiguousBuildID, idOrPrefix)
	}
}

// LatestBuild returns the most recent build of site, or ErrBuildNotFound.
func (bdb *BuildDB) LatestBuild(ctx context.Context, site string) (*model.BuildReport, error) {
	var reportJSON string
	err := bdb.db.QueryRowContext(ctx, `
	SELECT report_json FROM builds
	WHERE site = ?
	ORDER BY started_at DESC
	LIMIT 1
	`, site).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no builds for site %q", ErrBuildNotFound, site)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest build: %w", err)
	}
	return decodeReport(reportJSON)
}

// ListBuilds returns build summaries of site, newest first.
// limit <= 0 returns all builds.
func (bdb *BuildDB) ListBuilds(ctx context.Context, site string, limit int) ([]BuildSummary, error) {
	query := `
	SELECT id, site, mode, root, started_at, finished_at,
		rendered, redirects, broken, skipped, bytes, error
	FROM builds
	WHERE site = ?
	ORDER BY started_at DESC
	`
	args := []any{site}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := bdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	defer rows.Close()

	var results []BuildSummary
	for rows.Next() {
		var s BuildSummary
		var mode, started, finished string
		err := rows.Scan(
			&s.ID, &s.Site, &mode, &s.Root, &started, &finished,
			&s.Counts.Rendered, &s.Counts.Redirects, &s.Counts.Broken,
			&s.Counts.Skipped, &s.Counts.Bytes, &s.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		s.Mode = model.Mode(mode)
		s.StartedAt = parseTimestamp(started)
		s.FinishedAt = parseTimestamp(finished)
		results = append(results, s)
	}
	return results, rows.Err()
}

// ListSites returns the names of all sites with recorded builds.
// Builds without a site name are listed as "".
func (bdb *BuildDB) ListSites(ctx context.Context) ([]string, error) {
	rows, err := bdb.db.QueryContext(ctx, `SELECT DISTINCT site FROM builds ORDER BY site`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// PageVersion is one recorded rendering of a URL.
type PageVersion struct {
	BuildID   string
	StartedAt time.Time
	Status    int
	Digest    string
	Size      int
}

// PageHistory returns every recorded version of url within site, newest first.
func (bdb *BuildDB) PageHistory(ctx context.Context, site, url string) ([]PageVersion, error) {
	rows, err := bdb.db.QueryContext(ctx, `
	SELECT p.build_id, b.started_at, p.status, p.digest, p.size
	FROM pages p
	JOIN builds b ON b.id = p.build_id
	WHERE b.site = ? AND p.url = ?
	ORDER BY b.started_at DESC
	`, site, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get page history: %w", err)
	}
	defer rows.Close()

	var versions []PageVersion
	for rows.Next() {
		var v PageVersion
		var started string
		if err := rows.Scan(&v.BuildID, &started, &v.Status, &v.Digest, &v.Size); err != nil {
			return nil, fmt.Errorf("failed to scan page version: %w", err)
		}
		v.StartedAt = parseTimestamp(started)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// DeleteOldBuilds keeps the newest keep builds of site and deletes the rest
// together with their pages. It returns the number of deleted builds.
func (bdb *BuildDB) DeleteOldBuilds(ctx context.Context, site string, keep int) (n int64, err error) {
	if keep < 0 {
		keep = 0
	}

	tx, err := bdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const stale = `
	SELECT id FROM builds WHERE site = ? AND id NOT IN (
		SELECT id FROM builds WHERE site = ? ORDER BY started_at DESC LIMIT ?
	)`
	if _, err = tx.ExecContext(ctx, `DELETE FROM pages WHERE build_id IN (`+stale+`)`, site, site, keep); err != nil {
		return 0, fmt.Errorf("failed to delete old pages: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM builds WHERE id IN (`+stale+`)`, site, site, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old builds: %w", err)
	}
	if n, err = result.RowsAffected(); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return n, nil
}

func decodeReport(reportJSON string) (*model.BuildReport, error) {
	var report model.BuildReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats parseTimestamp accepts.
// Rows written by formatTimestamp use the first one.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// parseTimestamp returns the zero time when s matches no known format.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
