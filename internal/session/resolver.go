// ABOUTME: Resolves alias-or-URL tokens and builds authenticated Gitea sessions
// ABOUTME: Replaces the decorator-style session injection with an explicit two-step call

package session

import (
	"context"
	"log/slog"

	"github.com/2389/gitea-matrix/internal/store"
)

// Resolver turns user-supplied alias-or-URL tokens into concrete server
// URLs and stored credentials. It is the only place credentials cross from
// storage into a request-ready form.
type Resolver struct {
	store  store.Store
	logger *slog.Logger
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(s store.Store, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  s,
		logger: logger.With("component", "session"),
	}
}

// ResolveServer resolves an alias-or-URL token to a server URL. If the
// token matches a server alias stored by the user, the aliased URL is
// returned; otherwise the token is returned unchanged and treated as a
// literal URL. A miss is not an error.
func (r *Resolver) ResolveServer(ctx context.Context, userID, token string) string {
	serverURL, err := r.store.GetServerAlias(ctx, userID, token)
	if err != nil {
		return token
	}
	return serverURL
}

// ResolveRepo resolves an alias-or-repository token the same way against
// the user's repository aliases.
func (r *Resolver) ResolveRepo(ctx context.Context, userID, token string) string {
	repo, err := r.store.GetRepoAlias(ctx, userID, token)
	if err != nil {
		return token
	}
	return repo
}

// BuildSession resolves urlOrAlias and returns the stored credentials for
// the resolved server. Returns store.ErrNotFound if the user has no login
// for that server. The returned token is a secret; callers must not log it.
func (r *Resolver) BuildSession(ctx context.Context, userID, urlOrAlias string) (*store.AuthInfo, error) {
	serverURL := r.ResolveServer(ctx, userID, urlOrAlias)
	info, err := r.store.GetLogin(ctx, userID, serverURL)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("built session", "user_id", userID, "server", serverURL)
	return info, nil
}
