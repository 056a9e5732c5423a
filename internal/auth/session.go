package auth

import (
	"context"
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"

	"parkalot/internal/model"
)

const (
	sessionName = "parkalot"
	userIDKey   = "user_id"
)

// Flash is a one-shot notification shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
}

func init() {
	gob.Register(Flash{})
}

// SessionOptions configures the session cookie.
type SessionOptions struct {
	// MaxAge is the cookie lifetime in seconds.
	MaxAge int
	Secure bool
}

// Sessions keeps the logged-in user and pending flashes in a signed cookie.
type Sessions struct {
	store *sessions.CookieStore
}

// NewSessions returns Sessions signing cookies with key.
func NewSessions(key []byte, opts SessionOptions) *Sessions {
	cs := sessions.NewCookieStore(key)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   opts.MaxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	cs.MaxAge(opts.MaxAge)
	return &Sessions{store: cs}
}

// session never fails: a cookie that doesn't decode yields an empty session.
func (s *Sessions) session(r *http.Request) *sessions.Session {
	sess, _ := s.store.Get(r, sessionName)
	if sess == nil {
		sess = sessions.NewSession(s.store, sessionName)
		opts := *s.store.Options
		sess.Options = &opts
	}
	return sess
}

// Login records userID in the session.
func (s *Sessions) Login(w http.ResponseWriter, r *http.Request, userID int64) error {
	sess := s.session(r)
	sess.Values[userIDKey] = userID
	return sess.Save(r, w)
}

// Logout drops the session cookie.
func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) error {
	sess := s.session(r)
	delete(sess.Values, userIDKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// UserID returns the logged-in user id, if any.
func (s *Sessions) UserID(r *http.Request) (int64, bool) {
	id, ok := s.session(r).Values[userIDKey].(int64)
	return id, ok && id != 0
}

// AddFlash queues a notification for the next page.
func (s *Sessions) AddFlash(w http.ResponseWriter, r *http.Request, kind, message string) error {
	sess := s.session(r)
	sess.AddFlash(Flash{Kind: kind, Message: message})
	return sess.Save(r, w)
}

// Flashes pops the queued notifications.
func (s *Sessions) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	sess := s.session(r)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	_ = sess.Save(r, w)

	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out
}

type ctxKey struct{}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFrom returns the user stored by WithUser.
func UserFrom(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*model.User)
	return u, ok && u != nil
}
