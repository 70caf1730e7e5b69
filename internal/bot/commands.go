// ABOUTME: Chat command surface binding !gitea subcommands to store and resolver
// ABOUTME: Every command returns a reply string; errors become replies, never crashes

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/2389/gitea-matrix/internal/gitea"
	"github.com/2389/gitea-matrix/internal/session"
	"github.com/2389/gitea-matrix/internal/store"
)

// giteaClient is the slice of the Gitea API the commands use.
// Narrowed to an interface so tests can inject a fake.
type giteaClient interface {
	CurrentUser(ctx context.Context) (*gitea.User, error)
}

// defaultClientFactory builds an API client for a resolved session.
var defaultClientFactory = func(serverURL, token string) giteaClient {
	return gitea.NewClient(serverURL, token)
}

// Commands dispatches !gitea chat commands. All state access goes through
// the store and resolver; replies are plain markdown strings.
type Commands struct {
	store     store.Store
	resolver  *session.Resolver
	logger    *slog.Logger
	newClient func(serverURL, token string) giteaClient
}

// NewCommands creates the command dispatcher.
func NewCommands(s store.Store, resolver *session.Resolver, logger *slog.Logger) *Commands {
	return &Commands{
		store:     s,
		resolver:  resolver,
		logger:    logger.With("component", "commands"),
		newClient: defaultClientFactory,
	}
}

const usage = "Usage: `!gitea <ping|whoami|alias|server|ralias> ...`"

// Handle runs one command line (with the !gitea prefix already stripped)
// for the given sender and returns the reply text.
func (c *Commands) Handle(ctx context.Context, sender, line string) string {
	args := strings.Fields(line)
	if len(args) == 0 {
		return usage
	}

	switch args[0] {
	case "ping", "p":
		return "Pong"
	case "whoami":
		return c.whoami(ctx, sender, args[1:])
	case "alias", "a":
		return c.serverAlias(ctx, sender, args[1:])
	case "server", "s":
		return c.server(ctx, sender, args[1:])
	case "ralias", "r":
		return c.repoAlias(ctx, sender, args[1:])
	default:
		return usage
	}
}

// whoami reports which Gitea account the sender's stored token belongs to.
func (c *Commands) whoami(ctx context.Context, sender string, args []string) string {
	if len(args) != 1 {
		return "Usage: `!gitea whoami <server URL or alias>`"
	}

	info, err := c.resolver.BuildSession(ctx, sender, args[0])
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("You are not logged in to %s.", args[0])
	}
	if err != nil {
		c.logger.Error("failed to build session", "user_id", sender, "error", err)
		return "Error.\n\n" + err.Error()
	}

	user, err := c.newClient(info.Server, info.APIToken).CurrentUser(ctx)
	if err != nil {
		// Collaborator errors go back to the user verbatim
		return "Api Error.\n\n" + err.Error()
	}

	return fmt.Sprintf("You're logged into %s as %s", hostOf(info.Server), user.Login)
}

// serverAlias handles the `alias add/list/remove` subcommands.
func (c *Commands) serverAlias(ctx context.Context, sender string, args []string) string {
	if len(args) == 0 {
		return "Usage: `!gitea alias <add|list|remove> ...`"
	}

	switch args[0] {
	case "add", "a":
		if len(args) != 3 {
			return "Usage: `!gitea alias add <url> <alias>`"
		}
		serverURL, alias := args[1], args[2]
		has, err := c.store.HasServerAlias(ctx, sender, alias)
		if err != nil {
			return c.internalError("checking server alias", sender, err)
		}
		if has {
			return "Server alias already in use."
		}
		if err := c.store.AddServerAlias(ctx, sender, serverURL, alias); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return "Server alias already in use."
			}
			return c.internalError("adding server alias", sender, err)
		}
		return fmt.Sprintf("Added alias %s to server %s", alias, serverURL)

	case "list", "ls", "l":
		aliases, err := c.store.GetServerAliases(ctx, sender)
		if err != nil {
			return c.internalError("listing server aliases", sender, err)
		}
		if len(aliases) == 0 {
			return "You don't have any server aliases."
		}
		var b strings.Builder
		b.WriteString("You have the following server aliases:\n\n")
		for _, a := range aliases {
			fmt.Fprintf(&b, "+ %s → %s\n", a.Alias, a.Server)
		}
		return strings.TrimRight(b.String(), "\n")

	case "remove", "rm", "r", "d", "del", "delete":
		if len(args) != 2 {
			return "Usage: `!gitea alias remove <alias>`"
		}
		if err := c.store.RemoveServerAlias(ctx, sender, args[1]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Sprintf("You don't have an alias named %s.", args[1])
			}
			return c.internalError("removing server alias", sender, err)
		}
		return fmt.Sprintf("Removed alias %s.", args[1])

	default:
		return "Usage: `!gitea alias <add|list|remove> ...`"
	}
}

// server handles the `server login/logout/list` subcommands.
func (c *Commands) server(ctx context.Context, sender string, args []string) string {
	if len(args) == 0 {
		return "Usage: `!gitea server <login|logout|list> ...`"
	}

	switch args[0] {
	case "login", "l":
		if len(args) != 3 {
			return "Usage: `!gitea server login <url-or-alias> <token>`"
		}
		serverURL := c.resolver.ResolveServer(ctx, sender, args[1])
		token := args[2]
		if err := c.store.AddLogin(ctx, sender, serverURL, token); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Sprintf("You already have a token for %s. Run `!gitea server logout %s` first to replace it.", serverURL, args[1])
			}
			return c.internalError("adding login", sender, err)
		}
		return fmt.Sprintf("Added token for %s.", serverURL)

	case "logout", "rm":
		if len(args) != 2 {
			return "Usage: `!gitea server logout <url-or-alias>`"
		}
		serverURL := c.resolver.ResolveServer(ctx, sender, args[1])
		if err := c.store.RemoveLogin(ctx, sender, serverURL); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Sprintf("You are not logged in to %s.", serverURL)
			}
			return c.internalError("removing login", sender, err)
		}
		return fmt.Sprintf("Removed %s from the database.", serverURL)

	case "list", "ls":
		servers, err := c.store.GetServers(ctx, sender)
		if err != nil {
			return c.internalError("listing servers", sender, err)
		}
		if len(servers) == 0 {
			return "You are not logged in to any server."
		}
		var b strings.Builder
		b.WriteString("You are logged in to the following servers:\n\n")
		for _, s := range servers {
			fmt.Fprintf(&b, "* %s\n", s)
		}
		return strings.TrimRight(b.String(), "\n")

	default:
		return "Usage: `!gitea server <login|logout|list> ...`"
	}
}

// repoAlias handles the `ralias add/list/remove` subcommands.
func (c *Commands) repoAlias(ctx context.Context, sender string, args []string) string {
	if len(args) == 0 {
		return "Usage: `!gitea ralias <add|list|remove> ...`"
	}

	switch args[0] {
	case "add", "a":
		if len(args) != 3 {
			return "Usage: `!gitea ralias add <repository> <alias>`"
		}
		repo, alias := args[1], args[2]
		has, err := c.store.HasRepoAlias(ctx, sender, alias)
		if err != nil {
			return c.internalError("checking repo alias", sender, err)
		}
		if has {
			return "Repository alias already in use."
		}
		if err := c.store.AddRepoAlias(ctx, sender, repo, alias); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return "Repository alias already in use."
			}
			return c.internalError("adding repo alias", sender, err)
		}
		return fmt.Sprintf("Added alias %s to repository %s", alias, repo)

	case "list", "ls", "l":
		aliases, err := c.store.GetRepoAliases(ctx, sender)
		if err != nil {
			return c.internalError("listing repo aliases", sender, err)
		}
		if len(aliases) == 0 {
			return "You don't have any repository aliases."
		}
		var b strings.Builder
		b.WriteString("You have the following repository aliases:\n\n")
		for _, a := range aliases {
			fmt.Fprintf(&b, "+ %s → %s\n", a.Alias, a.Repo)
		}
		return strings.TrimRight(b.String(), "\n")

	case "remove", "rm", "r", "d", "del", "delete":
		if len(args) != 2 {
			return "Usage: `!gitea ralias remove <alias>`"
		}
		if err := c.store.RemoveRepoAlias(ctx, sender, args[1]); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Sprintf("You don't have an alias named %s.", args[1])
			}
			return c.internalError("removing repo alias", sender, err)
		}
		return fmt.Sprintf("Removed alias %s.", args[1])

	default:
		return "Usage: `!gitea ralias <add|list|remove> ...`"
	}
}

// internalError logs a store failure and returns a generic reply.
func (c *Commands) internalError(action, sender string, err error) string {
	c.logger.Error("command failed", "action", action, "user_id", sender, "error", err)
	return "Error.\n\n" + err.Error()
}

// hostOf returns the hostname portion of a server URL, falling back to the
// raw string when it does not parse.
func hostOf(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil || u.Hostname() == "" {
		return serverURL
	}
	return u.Hostname()
}
