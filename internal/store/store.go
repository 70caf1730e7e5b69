// ABOUTME: Store interface and data types for gitea-matrix persistence
// ABOUTME: Defines alias/login records and the Store interface for database operations

package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when inserting an alias or login that already exists
var ErrDuplicate = errors.New("already exists")

// ServerAlias maps a user-chosen alias to a Gitea server URL
type ServerAlias struct {
	UserID string
	Alias  string
	Server string
}

// RepoAlias maps a user-chosen alias to a repository identifier (owner/name)
type RepoAlias struct {
	UserID string
	Alias  string
	Repo   string
}

// AuthInfo is a resolved login: the server URL plus the stored API token.
// It is derived from a stored login row and never persisted on its own.
// The token is a secret and must not be logged.
type AuthInfo struct {
	Server   string
	APIToken string
}

// Store defines the interface for alias and login persistence.
// All operations are keyed by the Matrix user ID of the owner.
type Store interface {
	// Server aliases
	AddServerAlias(ctx context.Context, userID, serverURL, alias string) error
	HasServerAlias(ctx context.Context, userID, alias string) (bool, error)
	GetServerAlias(ctx context.Context, userID, alias string) (string, error)
	GetServerAliases(ctx context.Context, userID string) ([]*ServerAlias, error)
	RemoveServerAlias(ctx context.Context, userID, alias string) error

	// Logins (at most one token per user/server pair)
	AddLogin(ctx context.Context, userID, serverURL, apiToken string) error
	GetLogin(ctx context.Context, userID, serverURL string) (*AuthInfo, error)
	GetServers(ctx context.Context, userID string) ([]string, error)
	RemoveLogin(ctx context.Context, userID, serverURL string) error

	// Repository aliases
	AddRepoAlias(ctx context.Context, userID, repo, alias string) error
	HasRepoAlias(ctx context.Context, userID, alias string) (bool, error)
	GetRepoAlias(ctx context.Context, userID, alias string) (string, error)
	GetRepoAliases(ctx context.Context, userID string) ([]*RepoAlias, error)
	RemoveRepoAlias(ctx context.Context, userID, alias string) error

	// Close releases any resources held by the store
	Close() error
}
