// ABOUTME: Pure formatter mapping Gitea webhook payloads to chat message text
// ABOUTME: Handles push, create, and delete events; everything else is unhandled

package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// ErrUnhandledEvent is returned for event types the formatter has no
// message for. The caller logs and drops the event.
var ErrUnhandledEvent = errors.New("unhandled event type")

// ErrEmptyPush is returned for push events carrying no commits.
var ErrEmptyPush = errors.New("push event with no commits")

// ParseError reports a webhook payload the formatter could not interpret:
// invalid JSON or a handled event type missing an expected field.
type ParseError struct {
	EventType string
	Field     string
	Err       error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parsing %s event: missing field %s", e.EventType, e.Field)
	}
	return fmt.Sprintf("parsing %s event: %v", e.EventType, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Account is the login carried in pusher/sender fields.
type Account struct {
	Login string `json:"login"`
}

// Repository identifies the repository a hook fired for.
type Repository struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
}

// Payload is the subset of a Gitea webhook body the formatter reads.
// Secret is checked by the webhook task, not here.
type Payload struct {
	Secret     string            `json:"secret"`
	Pusher     *Account          `json:"pusher"`
	Sender     *Account          `json:"sender"`
	Repository *Repository       `json:"repository"`
	Commits    []json.RawMessage `json:"commits"`
}

// Parse decodes a webhook body into a Payload.
func Parse(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &ParseError{Err: err}
	}
	return &p, nil
}

// Format maps an event type and payload to the message text to send.
// It is pure: no side effects, no state. Returns ErrUnhandledEvent for
// event types without a message, ErrEmptyPush for commit-less pushes, and
// *ParseError when a handled event is missing expected fields.
func Format(eventType string, p *Payload) (string, error) {
	switch eventType {
	case "push":
		return formatPush(p)
	case "create":
		return formatRef(eventType, p, "created")
	case "delete":
		return formatRef(eventType, p, "deleted")
	default:
		return "", ErrUnhandledEvent
	}
}

func formatPush(p *Payload) (string, error) {
	if p.Pusher == nil || p.Pusher.Login == "" {
		return "", &ParseError{EventType: "push", Field: "pusher.login"}
	}
	host, err := repoHost("push", p)
	if err != nil {
		return "", err
	}
	if len(p.Commits) == 0 {
		return "", ErrEmptyPush
	}
	return fmt.Sprintf("user '%s' pushed %d commit(s) to '%s' at '%s'.",
		p.Pusher.Login, len(p.Commits), p.Repository.FullName, host), nil
}

func formatRef(eventType string, p *Payload, verb string) (string, error) {
	if p.Sender == nil || p.Sender.Login == "" {
		return "", &ParseError{EventType: eventType, Field: "sender.login"}
	}
	host, err := repoHost(eventType, p)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("user '%s' %s a tag or branch in '%s' at '%s'.",
		p.Sender.Login, verb, p.Repository.FullName, host), nil
}

// repoHost extracts the hostname of the repository's web URL.
func repoHost(eventType string, p *Payload) (string, error) {
	if p.Repository == nil || p.Repository.FullName == "" {
		return "", &ParseError{EventType: eventType, Field: "repository.full_name"}
	}
	u, err := url.Parse(p.Repository.HTMLURL)
	if err != nil || u.Hostname() == "" {
		return "", &ParseError{EventType: eventType, Field: "repository.html_url", Err: err}
	}
	return u.Hostname(), nil
}
