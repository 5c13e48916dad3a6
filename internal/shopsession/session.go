// Package shopsession stores the long-lived offline API session for
// each shop that has installed the app. The order history endpoint is
// stateless per request; this store is the only shared state it reads.
package shopsession

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a shop has no stored session. Callers
// treat it as "the shop must re-authenticate", not as a transient
// failure.
var ErrNotFound = errors.New("no session for shop")

// Session is one shop's offline access grant.
type Session struct {
	Shop        string    `json:"shop"`
	AccessToken string    `json:"access_token"`
	Scope       string    `json:"scope"`
	InstalledAt time.Time `json:"installed_at"`
}

// Store persists offline sessions keyed by shop domain.
type Store interface {
	Load(ctx context.Context, shop string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, shop string) error
	Close() error
}

func cloneSession(session *Session) *Session {
	if session == nil {
		return nil
	}
	cloned := *session
	return &cloned
}
