package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"iaptool/internal/config"
	"iaptool/internal/flash"
)

// Entry is one recorded flash attempt.
type Entry struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Series     string    `json:"series"`
	Product    string    `json:"product"`
	Firmware   string    `json:"firmware"`
	Version    string    `json:"version"`
	ChipFamily string    `json:"chip_family,omitempty"`
	ChipType   string    `json:"chip_type,omitempty"`
	FWPath     string    `json:"fw_path,omitempty"`
	FWSHA256   string    `json:"fw_sha256,omitempty"`
	Format     string    `json:"format,omitempty"`
	Probe      string    `json:"probe,omitempty"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
}

// Duration returns the wall time of the attempt.
func (e Entry) Duration() time.Duration {
	if e.FinishedAt.Before(e.StartedAt) {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// EntryFromResult builds the journal row for a finished attempt.
func EntryFromResult(series, product string, req flash.Request, res flash.Result) Entry {
	format := string(res.Format)
	if format == "" {
		format = string(req.Format)
	}
	return Entry{
		RunID:      res.RunID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Series:     series,
		Product:    product,
		Firmware:   req.Image.Name,
		Version:    req.Image.Version,
		ChipFamily: req.Image.ChipFamily,
		ChipType:   req.Image.ChipType,
		FWPath:     req.Image.FWPath,
		Format:     format,
		Probe:      req.Probe.Selector(),
		Outcome:    string(res.Outcome),
		Error:      res.ErrorText(),
	}
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Limit   int
	Outcome string
	Series  string
	Product string
}

// Store is the SQLite backed journal.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.ensureJournal(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts entry and returns its row id.
func (s *Store) Record(ctx context.Context, entry Entry) (int64, error) {
	if strings.TrimSpace(entry.RunID) == "" {
		return 0, errors.New("run id is required")
	}
	if strings.TrimSpace(entry.Outcome) == "" {
		return 0, errors.New("outcome is required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO flash_runs (
            run_id, started_at, finished_at, series, product, firmware, version,
            chip_family, chip_type, fw_path, fw_sha256, format, probe, outcome, error
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		formatTime(entry.StartedAt),
		formatTime(entry.FinishedAt),
		entry.Series,
		entry.Product,
		entry.Firmware,
		entry.Version,
		nullableString(entry.ChipFamily),
		nullableString(entry.ChipType),
		nullableString(entry.FWPath),
		nullableString(entry.FWSHA256),
		nullableString(entry.Format),
		nullableString(entry.Probe),
		entry.Outcome,
		nullableString(entry.Error),
	)
	if err != nil {
		return 0, fmt.Errorf("insert flash run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

const entryColumns = `id, run_id, started_at, finished_at, series, product, firmware, version,
    chip_family, chip_type, fw_path, fw_sha256, format, probe, outcome, error`

// List returns entries newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)
	if v := strings.TrimSpace(filter.Outcome); v != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.Series); v != "" {
		clauses = append(clauses, "series = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.Product); v != "" {
		clauses = append(clauses, "product = ?")
		args = append(args, v)
	}

	query := `SELECT ` + entryColumns + ` FROM flash_runs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list flash runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flash runs: %w", err)
	}
	return entries, nil
}

// GetByRunID fetches one entry, returning nil when no run matches.
func (s *Store) GetByRunID(ctx context.Context, runID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM flash_runs WHERE run_id = ?`, runID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Clear deletes every entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flash_runs`)
	if err != nil {
		return 0, fmt.Errorf("clear flash runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry                                Entry
		startedAt, finishedAt                string
		chipFamily, chipType, fwPath, format sql.NullString
		fwSHA256, probeSel, errText          sql.NullString
	)
	if err := row.Scan(
		&entry.ID, &entry.RunID, &startedAt, &finishedAt,
		&entry.Series, &entry.Product, &entry.Firmware, &entry.Version,
		&chipFamily, &chipType, &fwPath, &fwSHA256, &format, &probeSel,
		&entry.Outcome, &errText,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan flash run: %w", err)
	}
	var err error
	if entry.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return Entry{}, fmt.Errorf("parse started_at: %w", err)
	}
	if entry.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
		return Entry{}, fmt.Errorf("parse finished_at: %w", err)
	}
	entry.ChipFamily = chipFamily.String
	entry.ChipType = chipType.String
	entry.FWPath = fwPath.String
	entry.FWSHA256 = fwSHA256.String
	entry.Format = format.String
	entry.Probe = probeSel.String
	entry.Error = errText.String
	return entry, nil
}

// timeLayout keeps a fixed fraction width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	if value.IsZero() {
		value = time.Now()
	}
	return value.UTC().Format(timeLayout)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
