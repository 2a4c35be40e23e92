// Package ledger is the durable, append-mostly store of application
// records. It owns idempotency checks, status transitions and aggregate
// statistics; no other component mutates records directly.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Statuses an application record can carry.
const (
	StatusApplied   = "Applied"
	StatusInterview = "Interview"
	StatusRejected  = "Rejected"
	StatusOffer     = "Offer"
	StatusPending   = "Pending"
)

// Fallbacks applied when an optional record field is missing.
const (
	defaultExperience = "0-1 years"
	defaultJobType    = "Internship"
	defaultSalary     = "Not specified"
	defaultMethod     = "Automated"
	defaultUnknown    = "Unknown"
)

// Application ids look like LIN-20250828T141530: the first three letters of
// the source, uppercased, plus a second-resolution timestamp.
const idTimestampLayout = "20060102T150405"

// ErrClosed is returned by mutating operations after Close.
var ErrClosed = errors.New("ledger is closed")

// Record is the durable unit: proof that one application was submitted.
// The (company, title, source) triple identifies a logical application for
// dedup purposes, case-insensitively. ApplicationID is unique and immutable
// once assigned.
type Record struct {
	ApplicationID string
	AppliedAt     time.Time
	Source        string
	Company       string
	Title         string
	Location      string
	URL           string
	Status        string
	Experience    string
	JobType       string
	SalaryRange   string
	Skills        string
	Method        string
	LastUpdated   time.Time
	Notes         string
}

// Stats aggregates the record population by status.
type Stats struct {
	Total     int
	Applied   int
	Interview int
	Rejected  int
	Pending   int
}

// Ledger wraps a sqlite file. The orchestrator runs a single writer, but
// all mutations are serialized anyway so that the dedup-scan-then-append
// invariant holds for any caller.
type Ledger struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
	closed bool
}

const schema = `
CREATE TABLE IF NOT EXISTS applications (
	application_id TEXT PRIMARY KEY,
	applied_at DATETIME NOT NULL,
	source TEXT NOT NULL,
	company TEXT NOT NULL,
	title TEXT NOT NULL,
	location TEXT,
	url TEXT,
	status TEXT NOT NULL DEFAULT 'Applied',
	experience_required TEXT,
	job_type TEXT,
	salary_range TEXT,
	key_skills TEXT,
	application_method TEXT,
	last_updated DATETIME NOT NULL,
	notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_applications_dedup ON applications(company, title, source);
CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(status);
`

// Open creates or loads the ledger file and runs the schema migration.
func Open(path string, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger schema: %w", err)
	}

	logger.Debug("ledger opened", zap.String("path", path))

	return &Ledger{
		db:     db,
		logger: logger,
		now:    time.Now,
	}, nil
}

// AlreadyApplied reports whether a record with the same (company, title,
// source) triple exists, compared case-insensitively. It sees every record
// committed earlier in the same run.
func (l *Ledger) AlreadyApplied(company, title, source string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false, ErrClosed
	}
	return l.alreadyAppliedLocked(company, title, source)
}

func (l *Ledger) alreadyAppliedLocked(company, title, source string) (bool, error) {
	var count int
	err := l.db.QueryRow(
		`SELECT COUNT(*) FROM applications
		 WHERE lower(company) = lower(?) AND lower(title) = lower(?) AND lower(source) = lower(?)`,
		company, title, source,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("dedup scan: %w", err)
	}
	return count > 0, nil
}

// RecordApplication assigns an application id, fills defaulted fields and
// appends the record. The insert is atomic: on failure nothing is written
// and the ledger stays usable.
func (l *Ledger) RecordApplication(rec Record) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return "", ErrClosed
	}

	now := l.now()
	applyDefaults(&rec, now)

	id, err := l.nextIDLocked(rec.Source, now)
	if err != nil {
		return "", err
	}
	rec.ApplicationID = id

	_, err = l.db.Exec(
		`INSERT INTO applications (
			application_id, applied_at, source, company, title, location, url,
			status, experience_required, job_type, salary_range, key_skills,
			application_method, last_updated, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ApplicationID, rec.AppliedAt, rec.Source, rec.Company, rec.Title,
		rec.Location, rec.URL, rec.Status, rec.Experience, rec.JobType,
		rec.SalaryRange, rec.Skills, rec.Method, rec.LastUpdated, rec.Notes,
	)
	if err != nil {
		return "", fmt.Errorf("append application record: %w", err)
	}

	l.logger.Info("application recorded",
		zap.String("application_id", rec.ApplicationID),
		zap.String("title", rec.Title),
		zap.String("company", rec.Company),
	)
	return rec.ApplicationID, nil
}

// nextIDLocked derives the id from source and timestamp. Timestamp
// resolution is seconds, so a numeric suffix disambiguates records
// committed within the same second.
func (l *Ledger) nextIDLocked(source string, now time.Time) (string, error) {
	prefix := []rune(strings.ToUpper(strings.TrimSpace(source)))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	if len(prefix) == 0 {
		prefix = []rune("UNK")
	}

	base := fmt.Sprintf("%s-%s", string(prefix), now.Format(idTimestampLayout))
	id := base
	for n := 2; ; n++ {
		var count int
		if err := l.db.QueryRow(`SELECT COUNT(*) FROM applications WHERE application_id = ?`, id).Scan(&count); err != nil {
			return "", fmt.Errorf("application id lookup: %w", err)
		}
		if count == 0 {
			return id, nil
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

// UpdateStatus sets the status of the record with the given id, refreshes
// its last-updated timestamp and appends the note, prefixed with the update
// date, to the notes log. A missing id is not an error: it returns
// (false, nil) and leaves all records unchanged.
func (l *Ledger) UpdateStatus(applicationID, status, note string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false, ErrClosed
	}

	var notes sql.NullString
	err := l.db.QueryRow(`SELECT notes FROM applications WHERE application_id = ?`, applicationID).Scan(&notes)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("locate application %s: %w", applicationID, err)
	}

	now := l.now()
	updated := notes.String
	if note != "" {
		line := fmt.Sprintf("%s: %s", now.Format("2006-01-02"), note)
		if updated != "" {
			updated += "\n"
		}
		updated += line
	}

	_, err = l.db.Exec(
		`UPDATE applications SET status = ?, last_updated = ?, notes = ? WHERE application_id = ?`,
		status, now, updated, applicationID,
	)
	if err != nil {
		return false, fmt.Errorf("update application %s: %w", applicationID, err)
	}

	l.logger.Info("application status updated",
		zap.String("application_id", applicationID),
		zap.String("status", status),
	)
	return true, nil
}

// Get returns the record with the given id, or nil when absent.
func (l *Ledger) Get(applicationID string) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	rec := &Record{}
	err := l.db.QueryRow(
		`SELECT application_id, applied_at, source, company, title, location, url,
			status, experience_required, job_type, salary_range, key_skills,
			application_method, last_updated, notes
		 FROM applications WHERE application_id = ?`,
		applicationID,
	).Scan(
		&rec.ApplicationID, &rec.AppliedAt, &rec.Source, &rec.Company, &rec.Title,
		&rec.Location, &rec.URL, &rec.Status, &rec.Experience, &rec.JobType,
		&rec.SalaryRange, &rec.Skills, &rec.Method, &rec.LastUpdated, &rec.Notes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load application %s: %w", applicationID, err)
	}
	return rec, nil
}

// Stats classifies every record by substring match on its status and
// returns the counts. It always reflects the records at the time of the
// call; nothing is cached across mutations.
func (l *Ledger) Stats() (*Stats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	rows, err := l.db.Query(`SELECT status FROM applications`)
	if err != nil {
		return nil, fmt.Errorf("scan application statuses: %w", err)
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return nil, fmt.Errorf("scan application status: %w", err)
		}
		stats.Total++

		status = strings.ToLower(status)
		switch {
		case strings.Contains(status, "applied"):
			stats.Applied++
		case strings.Contains(status, "interview") || strings.Contains(status, "shortlist"):
			stats.Interview++
		case strings.Contains(status, "reject"):
			stats.Rejected++
		default:
			stats.Pending++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan application statuses: %w", err)
	}
	return stats, nil
}

// Close flushes and releases the store. Safe to call more than once.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	return nil
}

func applyDefaults(rec *Record, now time.Time) {
	if rec.Source == "" {
		rec.Source = defaultUnknown
	}
	if rec.Company == "" {
		rec.Company = defaultUnknown
	}
	if rec.Title == "" {
		rec.Title = defaultUnknown
	}
	if rec.Location == "" {
		rec.Location = defaultUnknown
	}
	if rec.Status == "" {
		rec.Status = StatusApplied
	}
	if rec.Experience == "" {
		rec.Experience = defaultExperience
	}
	if rec.JobType == "" {
		rec.JobType = defaultJobType
	}
	if rec.SalaryRange == "" {
		rec.SalaryRange = defaultSalary
	}
	if rec.Method == "" {
		rec.Method = defaultMethod
	}
	rec.AppliedAt = now
	rec.LastUpdated = now
}
