package web

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/tuanvumaihuynh/storefront/internal/config"
)

const (
	sessionName = "storefront_session"

	keyToken   = "token"
	keySubject = "subject"
	keyEmail   = "email"
	keyExpires = "expires"
)

// Session is the browser's authentication state. Handlers receive it
// explicitly instead of reading ambient globals.
type Session struct {
	Token   string
	Subject string
	Email   string
	Expires time.Time
}

func (s Session) Authenticated() bool {
	return s.Token != ""
}

// SessionStore keeps the Session in an encrypted, signed cookie.
type SessionStore struct {
	store *sessions.CookieStore
	now   func() time.Time
}

// NewSessionStore derives the cookie keys from cfg.SessionKey. Without a key
// random ones are generated, so sessions do not survive a restart.
func NewSessionStore(cfg config.Web) *SessionStore {
	var hashKey, blockKey []byte
	if cfg.SessionKey != "" {
		hashKey = []byte(cfg.SessionKey)
		sum := sha256.Sum256([]byte(cfg.SessionKey))
		blockKey = sum[:]
	} else {
		hashKey = securecookie.GenerateRandomKey(64)
		blockKey = securecookie.GenerateRandomKey(32)
	}

	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((72 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}

	return &SessionStore{store: store, now: time.Now}
}

// Load returns the session of the request. A missing, tampered or expired
// cookie yields an anonymous session.
func (s *SessionStore) Load(r *http.Request) Session {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		return Session{}
	}

	token, _ := sess.Values[keyToken].(string)
	if token == "" {
		return Session{}
	}

	out := Session{Token: token}
	out.Subject, _ = sess.Values[keySubject].(string)
	out.Email, _ = sess.Values[keyEmail].(string)
	if unix, ok := sess.Values[keyExpires].(int64); ok && unix > 0 {
		out.Expires = time.Unix(unix, 0)
		if !s.now().Before(out.Expires) {
			return Session{}
		}
	}

	return out
}

// Login stores token in the session. Subject, email and expiry are read from
// the token claims for display only; the API verifies the token on every call.
func (s *SessionStore) Login(w http.ResponseWriter, r *http.Request, token string) (Session, error) {
	out, err := sessionFromToken(token)
	if err != nil {
		return Session{}, err
	}

	sess, _ := s.store.Get(r, sessionName)
	sess.Values[keyToken] = out.Token
	sess.Values[keySubject] = out.Subject
	sess.Values[keyEmail] = out.Email
	sess.Values[keyExpires] = out.Expires.Unix()

	if err := sess.Save(r, w); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}

	return out, nil
}

// Logout deletes the session cookie.
func (s *SessionStore) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values = map[any]any{}
	sess.Options.MaxAge = -1

	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// AddFlash queues a message for the next rendered page.
func (s *SessionStore) AddFlash(w http.ResponseWriter, r *http.Request, msg string) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.AddFlash(msg)

	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// PopFlashes returns and clears the queued messages.
func (s *SessionStore) PopFlashes(w http.ResponseWriter, r *http.Request) []string {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		return nil
	}

	flashes := sess.Flashes()
	if len(flashes) == 0 {
		return nil
	}

	//nolint:errcheck
	sess.Save(r, w)

	out := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func sessionFromToken(token string) (Session, error) {
	var c tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return Session{}, fmt.Errorf("parse token claims: %w", err)
	}

	out := Session{
		Token:   token,
		Subject: c.Subject,
		Email:   c.Email,
	}
	if c.ExpiresAt != nil {
		out.Expires = c.ExpiresAt.Time
	}

	return out, nil
}
