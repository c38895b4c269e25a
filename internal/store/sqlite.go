package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"hermes/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.PreferenceStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set connection pool (single connection for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS preferences (
		workspace   TEXT NOT NULL,
		user        TEXT NOT NULL,
		language    TEXT NOT NULL,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (workspace, user)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get returns the explicit preference for one user, or "" when no record
// exists. The workspace default is not applied here.
func (s *SQLiteStore) Get(ctx context.Context, workspace, userID string) (string, error) {
	var lang string
	err := s.db.QueryRowContext(ctx,
		`SELECT language FROM preferences WHERE workspace = ? AND user = ?`,
		workspace, userID,
	).Scan(&lang)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return lang, nil
}

// BatchGet resolves preferences for all given users in one query, fetching
// the workspace default row alongside. Users without an explicit record get
// the default; the default row itself is never returned as a member entry.
func (s *SQLiteStore) BatchGet(ctx context.Context, workspace string, userIDs []string) ([]domain.Preference, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(userIDs)+2)
	args = append(args, workspace)
	placeholders := make([]string, 0, len(userIDs)+1)
	for _, id := range userIDs {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	placeholders = append(placeholders, "?")
	args = append(args, domain.DefaultUserKey)

	rows, err := s.db.QueryContext(ctx,
		`SELECT user, language FROM preferences
		 WHERE workspace = ? AND user IN (`+strings.Join(placeholders, ", ")+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	defaultLang := domain.DefaultLanguage
	found := make(map[string]string, len(userIDs))
	for rows.Next() {
		var user, lang string
		if err := rows.Scan(&user, &lang); err != nil {
			return nil, err
		}
		if user == domain.DefaultUserKey {
			defaultLang = lang
			continue
		}
		found[user] = lang
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prefs := make([]domain.Preference, 0, len(userIDs))
	for _, id := range userIDs {
		lang, ok := found[id]
		if !ok {
			lang = defaultLang
		}
		prefs = append(prefs, domain.Preference{Workspace: workspace, UserID: id, Language: lang})
	}
	return prefs, nil
}

// Set creates or overwrites a user's preference.
func (s *SQLiteStore) Set(ctx context.Context, workspace, userID, language string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (workspace, user, language) VALUES (?, ?, ?)
		 ON CONFLICT (workspace, user) DO UPDATE SET language = excluded.language, updated_at = CURRENT_TIMESTAMP`,
		workspace, userID, language,
	)
	return err
}

// AddWorkspace writes the workspace default record.
func (s *SQLiteStore) AddWorkspace(ctx context.Context, workspace, defaultLanguage string) error {
	return s.Set(ctx, workspace, domain.DefaultUserKey, defaultLanguage)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
