package api

import (
	"net/http"
	"time"
)

// defaultRenewalCookiePath scopes the renewal cookie to the refresh route
// so it never accompanies other requests.
const defaultRenewalCookiePath = "/api/v1/auth/refresh"

func (s *Server) renewalCookieName() string {
	if s.secCfg.Cookie.Name == "" {
		return "neogend_renewal"
	}
	return s.secCfg.Cookie.Name
}

func (s *Server) renewalCookiePath() string {
	if s.secCfg.Cookie.Path == "" {
		return defaultRenewalCookiePath
	}
	return s.secCfg.Cookie.Path
}

// setRenewalCookie delivers the renewal token. It is the only way the
// token leaves the server.
func (s *Server) setRenewalCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.renewalCookieName(),
		Value:    token,
		Path:     s.renewalCookiePath(),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secCfg.Cookie.Secure,
		SameSite: s.secCfg.Cookie.SameSiteMode(),
	})
}

func (s *Server) clearRenewalCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.renewalCookieName(),
		Value:    "",
		Path:     s.renewalCookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secCfg.Cookie.Secure,
		SameSite: s.secCfg.Cookie.SameSiteMode(),
	})
}

// renewalArtifact returns the renewal cookie value, or "" when absent.
func (s *Server) renewalArtifact(r *http.Request) string {
	c, err := r.Cookie(s.renewalCookieName())
	if err != nil {
		return ""
	}
	return c.Value
}
