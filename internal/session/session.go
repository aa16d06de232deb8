// Package session manages analysis session directories and the run index.
// Each run gets its own directory holding the persisted state file; a small
// sqlite index makes past runs discoverable, which powers resuming a
// business overview into a frameworks-only run.
package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"bizlens/internal/logging"
	"bizlens/internal/types"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Session describes one analysis run on disk.
type Session struct {
	ID        string    `json:"id"`
	Company   string    `json:"company"`
	Mode      string    `json:"mode"`
	Dir       string    `json:"dir"`
	StatePath string    `json:"state_path"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager owns the session base directory and the run index.
type Manager struct {
	baseDir string
	db      *sql.DB
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// DefaultBaseDir returns the per-user session root.
func DefaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bizlens"
	}
	return filepath.Join(home, ".bizlens")
}

// Open creates (if needed) the base directory and the run index.
func Open(baseDir string) (*Manager, error) {
	if baseDir == "" {
		baseDir = DefaultBaseDir()
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "sessions"), 0o755); err != nil {
		return nil, fmt.Errorf("create sessions directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(baseDir, "sessions.db"))
	if err != nil {
		return nil, fmt.Errorf("open session index: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		company TEXT NOT NULL,
		mode TEXT NOT NULL,
		dir TEXT NOT NULL,
		state_path TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init session index: %w", err)
	}

	return &Manager{baseDir: baseDir, db: db}, nil
}

// Close releases the index handle.
func (m *Manager) Close() error {
	return m.db.Close()
}

// Create allocates a session directory for a new run and records it in the
// index.
func (m *Manager) Create(company string, mode types.RunMode) (*Session, error) {
	id := uuid.New().String()[:8]
	now := time.Now()
	name := fmt.Sprintf("%s_%s_%s", now.Format("20060102_150405"), slugify(company), id)
	dir := filepath.Join(m.baseDir, "sessions", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	s := &Session{
		ID:        id,
		Company:   company,
		Mode:      string(mode),
		Dir:       dir,
		StatePath: filepath.Join(dir, "state.json"),
		CreatedAt: now,
	}

	_, err := m.db.Exec(
		`INSERT INTO runs (id, company, mode, dir, state_path, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Company, s.Mode, s.Dir, s.StatePath, s.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("index session: %w", err)
	}

	logging.Session("Session created: %s (%s)", s.ID, dir)
	return s, nil
}

// List returns the most recent sessions, newest first.
func (m *Manager) List(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := m.db.Query(
		`SELECT id, company, mode, dir, state_path, created_at FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

// LatestFor finds the most recent session for a company whose state file
// still exists.
func (m *Manager) LatestFor(company string) (*Session, bool, error) {
	rows, err := m.db.Query(
		`SELECT id, company, mode, dir, state_path, created_at FROM runs WHERE company = ? ORDER BY created_at DESC`, company)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, false, err
	}
	for i := range sessions {
		if _, err := os.Stat(sessions[i].StatePath); err == nil {
			return &sessions[i], true, nil
		}
	}
	return nil, false, nil
}

func scanSessions(rows *sql.Rows) ([]Session, error) {
	var sessions []Session
	for rows.Next() {
		var s Session
		var createdAt string
		if err := rows.Scan(&s.ID, &s.Company, &s.Mode, &s.Dir, &s.StatePath, &createdAt); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			s.CreatedAt = ts
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func slugify(s string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "company"
	}
	if len(slug) > 40 {
		slug = slug[:40]
	}
	return slug
}
