// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides alias/login persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS server_aliases (
			user_id    TEXT NOT NULL,
			alias      TEXT NOT NULL,
			server_url TEXT NOT NULL,
			PRIMARY KEY (user_id, alias)
		);

		CREATE TABLE IF NOT EXISTS server_logins (
			user_id    TEXT NOT NULL,
			server_url TEXT NOT NULL,
			api_token  TEXT NOT NULL,
			PRIMARY KEY (user_id, server_url)
		);

		CREATE TABLE IF NOT EXISTS repo_aliases (
			user_id    TEXT NOT NULL,
			alias      TEXT NOT NULL,
			repository TEXT NOT NULL,
			PRIMARY KEY (user_id, alias)
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// AddServerAlias inserts a server alias for the user.
// Returns ErrDuplicate if the user already has an alias with that name.
func (s *SQLiteStore) AddServerAlias(ctx context.Context, userID, serverURL, alias string) error {
	query := `INSERT INTO server_aliases (user_id, alias, server_url) VALUES (?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, userID, alias, serverURL)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting server alias: %w", err)
	}

	s.logger.Debug("added server alias", "user_id", userID, "alias", alias, "server", serverURL)
	return nil
}

// HasServerAlias reports whether the user has a server alias with that name.
func (s *SQLiteStore) HasServerAlias(ctx context.Context, userID, alias string) (bool, error) {
	query := `SELECT 1 FROM server_aliases WHERE user_id = ? AND alias = ?`

	var one int
	err := s.db.QueryRowContext(ctx, query, userID, alias).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying server alias: %w", err)
	}
	return true, nil
}

// GetServerAlias returns the server URL behind an alias.
// Returns ErrNotFound if the user has no alias with that name.
func (s *SQLiteStore) GetServerAlias(ctx context.Context, userID, alias string) (string, error) {
	query := `SELECT server_url FROM server_aliases WHERE user_id = ? AND alias = ?`

	var serverURL string
	err := s.db.QueryRowContext(ctx, query, userID, alias).Scan(&serverURL)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying server alias: %w", err)
	}
	return serverURL, nil
}

// GetServerAliases returns all server aliases owned by the user.
func (s *SQLiteStore) GetServerAliases(ctx context.Context, userID string) ([]*ServerAlias, error) {
	query := `SELECT user_id, alias, server_url FROM server_aliases WHERE user_id = ?`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying server aliases: %w", err)
	}
	defer rows.Close()

	var aliases []*ServerAlias
	for rows.Next() {
		var a ServerAlias
		if err := rows.Scan(&a.UserID, &a.Alias, &a.Server); err != nil {
			return nil, fmt.Errorf("scanning server alias row: %w", err)
		}
		aliases = append(aliases, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating server alias rows: %w", err)
	}
	return aliases, nil
}

// RemoveServerAlias deletes a server alias.
// Returns ErrNotFound if the user has no alias with that name.
func (s *SQLiteStore) RemoveServerAlias(ctx context.Context, userID, alias string) error {
	query := `DELETE FROM server_aliases WHERE user_id = ? AND alias = ?`

	result, err := s.db.ExecContext(ctx, query, userID, alias)
	if err != nil {
		return fmt.Errorf("deleting server alias: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("removed server alias", "user_id", userID, "alias", alias)
	return nil
}

// AddLogin stores an API token for the user and server.
// Returns ErrDuplicate if the user already has a token for that server;
// rotation is an explicit RemoveLogin followed by AddLogin.
func (s *SQLiteStore) AddLogin(ctx context.Context, userID, serverURL, apiToken string) error {
	query := `INSERT INTO server_logins (user_id, server_url, api_token) VALUES (?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, userID, serverURL, apiToken)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting login: %w", err)
	}

	s.logger.Debug("added login", "user_id", userID, "server", serverURL)
	return nil
}

// GetLogin returns the stored credentials for the user and server.
// Returns ErrNotFound if the user has no login for that server.
func (s *SQLiteStore) GetLogin(ctx context.Context, userID, serverURL string) (*AuthInfo, error) {
	query := `SELECT server_url, api_token FROM server_logins WHERE user_id = ? AND server_url = ?`

	var info AuthInfo
	err := s.db.QueryRowContext(ctx, query, userID, serverURL).Scan(&info.Server, &info.APIToken)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying login: %w", err)
	}
	return &info, nil
}

// GetServers returns the server URLs the user has stored credentials for.
func (s *SQLiteStore) GetServers(ctx context.Context, userID string) ([]string, error) {
	query := `SELECT server_url FROM server_logins WHERE user_id = ?`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying servers: %w", err)
	}
	defer rows.Close()

	var servers []string
	for rows.Next() {
		var serverURL string
		if err := rows.Scan(&serverURL); err != nil {
			return nil, fmt.Errorf("scanning server row: %w", err)
		}
		servers = append(servers, serverURL)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating server rows: %w", err)
	}
	return servers, nil
}

// RemoveLogin deletes the stored token for the user and server.
// Returns ErrNotFound if the user has no login for that server.
func (s *SQLiteStore) RemoveLogin(ctx context.Context, userID, serverURL string) error {
	query := `DELETE FROM server_logins WHERE user_id = ? AND server_url = ?`

	result, err := s.db.ExecContext(ctx, query, userID, serverURL)
	if err != nil {
		return fmt.Errorf("deleting login: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("removed login", "user_id", userID, "server", serverURL)
	return nil
}

// AddRepoAlias inserts a repository alias for the user.
// Returns ErrDuplicate if the user already has an alias with that name.
func (s *SQLiteStore) AddRepoAlias(ctx context.Context, userID, repo, alias string) error {
	query := `INSERT INTO repo_aliases (user_id, alias, repository) VALUES (?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query, userID, alias, repo)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting repo alias: %w", err)
	}

	s.logger.Debug("added repo alias", "user_id", userID, "alias", alias, "repo", repo)
	return nil
}

// HasRepoAlias reports whether the user has a repository alias with that name.
func (s *SQLiteStore) HasRepoAlias(ctx context.Context, userID, alias string) (bool, error) {
	query := `SELECT 1 FROM repo_aliases WHERE user_id = ? AND alias = ?`

	var one int
	err := s.db.QueryRowContext(ctx, query, userID, alias).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying repo alias: %w", err)
	}
	return true, nil
}

// GetRepoAlias returns the repository behind an alias.
// Returns ErrNotFound if the user has no alias with that name.
func (s *SQLiteStore) GetRepoAlias(ctx context.Context, userID, alias string) (string, error) {
	query := `SELECT repository FROM repo_aliases WHERE user_id = ? AND alias = ?`

	var repo string
	err := s.db.QueryRowContext(ctx, query, userID, alias).Scan(&repo)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying repo alias: %w", err)
	}
	return repo, nil
}

// GetRepoAliases returns all repository aliases owned by the user.
func (s *SQLiteStore) GetRepoAliases(ctx context.Context, userID string) ([]*RepoAlias, error) {
	query := `SELECT user_id, alias, repository FROM repo_aliases WHERE user_id = ?`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying repo aliases: %w", err)
	}
	defer rows.Close()

	var aliases []*RepoAlias
	for rows.Next() {
		var a RepoAlias
		if err := rows.Scan(&a.UserID, &a.Alias, &a.Repo); err != nil {
			return nil, fmt.Errorf("scanning repo alias row: %w", err)
		}
		aliases = append(aliases, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating repo alias rows: %w", err)
	}
	return aliases, nil
}

// RemoveRepoAlias deletes a repository alias.
// Returns ErrNotFound if the user has no alias with that name.
func (s *SQLiteStore) RemoveRepoAlias(ctx context.Context, userID, alias string) error {
	query := `DELETE FROM repo_aliases WHERE user_id = ? AND alias = ?`

	result, err := s.db.ExecContext(ctx, query, userID, alias)
	if err != nil {
		return fmt.Errorf("deleting repo alias: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("removed repo alias", "user_id", userID, "alias", alias)
	return nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
