package transport

import (
	"errors"
	"net/http"

	"github.com/ppsai/chatgate/config"
	"go.uber.org/zap"
)

// Authenticator checks and maintains the session cookie. The cookie value is
// an opaque token derived from the configured access code; authentication is
// a plain equality check, no per-user state.
type Authenticator struct {
	config config.IConfig
	logger *zap.Logger
}

func NewAuthenticator(cfg config.IConfig, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{config: cfg, logger: logger.Named("auth")}
}

// Authenticate reports whether the request carries a valid session cookie.
// An unconfigured access code rejects everything.
func (a *Authenticator) Authenticate(r *http.Request) (bool, error) {
	code, err := a.config.AccessCode()
	if err != nil {
		return false, err
	}
	if code == "" {
		return false, nil
	}
	name, err := a.config.CookieName()
	if err != nil {
		return false, err
	}
	cookie, err := r.Cookie(name)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return false, nil
		}
		return false, err
	}
	return cookie.Value != "" && cookie.Value == config.SessionToken(code), nil
}

// Issue sets a fresh session cookie. Called on login and on every successful
// authenticated request, giving the session its sliding expiry.
func (a *Authenticator) Issue(w http.ResponseWriter) error {
	code, err := a.config.AccessCode()
	if err != nil {
		return err
	}
	name, err := a.config.CookieName()
	if err != nil {
		return err
	}
	ttl, err := a.config.SessionTTL()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    config.SessionToken(code),
		MaxAge:   int(ttl.Seconds()),
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie immediately.
func (a *Authenticator) Clear(w http.ResponseWriter) error {
	name, err := a.config.CookieName()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
