package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/neogend-core/internal/audit"
	"github.com/nerrad567/neogend-core/internal/auth"
	"github.com/nerrad567/neogend-core/internal/infrastructure/influxdb"
)

const (
	// ticketTTL is how long a WebSocket ticket is valid.
	ticketTTL = 60 * time.Second

	minPasswordLength = 8
)

type loginRequest struct {
	Nipol    string `json:"nipol"`
	Password string `json:"password"`
}

// tokenResponse carries an access token. The renewal token travels in the
// cookie only.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	TempPassword bool   `json:"temp_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) accessResponse(token string, acct *auth.Account) tokenResponse {
	return tokenResponse{
		AccessToken:  token,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.issuer.AccessTTL().Seconds()),
		TempPassword: acct.TempPassword,
	}
}

// handleLogin checks nipol and password and issues a token pair. Unknown
// nipols and wrong passwords get the same 401.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Nipol == "" || req.Password == "" {
		writeBadRequest(w, "nipol and password are required")
		return
	}

	acct, pair, err := s.authn.Login(r.Context(), req.Nipol, req.Password)
	if err != nil {
		if isUnauthenticated(err) {
			s.recordAuthMetric(influxdb.OutcomeLoginFailed, 0)
			s.recordAudit(r.Context(), audit.ActionLoginFailed, 0, 0, map[string]any{"nipol": req.Nipol})
		}
		s.writeAuthError(w, r, err, "failed to log in")
		return
	}

	s.recordAuthMetric(influxdb.OutcomeLogin, acct.Rank)
	s.recordAudit(r.Context(), audit.ActionLogin, acct.ID, acct.ID, nil)

	s.setRenewalCookie(w, pair.RenewalToken, pair.RenewalTTL)
	writeJSON(w, http.StatusOK, s.accessResponse(pair.AccessToken, acct))
}

// handleRefresh exchanges the renewal cookie for a new access token. The
// cookie itself is left as is.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	access, acct, err := s.renewer.Renew(r.Context(), s.renewalArtifact(r))
	if err != nil {
		if isUnauthenticated(err) {
			s.recordAuthMetric(influxdb.OutcomeRejected, 0)
		}
		s.writeAuthError(w, r, err, "failed to renew session")
		return
	}

	s.recordAuthMetric(influxdb.OutcomeRenewal, acct.Rank)
	writeJSON(w, http.StatusOK, s.accessResponse(access, acct))
}

// handleLogout clears the renewal cookie. When the session policy asks for
// it and a valid bearer is presented, every credential of the caller is
// revoked as well.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearRenewalCookie(w)

	if s.secCfg.Sessions.LogoutBumpsVersion {
		if token := bearerToken(r); token != "" {
			acct, err := s.verifier.Verify(r.Context(), token)
			switch {
			case err == nil:
				if _, err := s.ledger.Bump(r.Context(), acct.ID, auth.ReasonLogout, acct.ID); err != nil {
					s.writeAuthError(w, r, err, "failed to revoke sessions")
					return
				}
			case !isUnauthenticated(err):
				s.writeAuthError(w, r, err, "failed to verify session")
				return
			}
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRevokeOwnSessions is "discard all sessions": the caller's version
// moves so every outstanding credential, this one included, stops working.
func (s *Server) handleRevokeOwnSessions(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())

	if _, err := s.ledger.Bump(r.Context(), acct.ID, auth.ReasonDiscardSessions, acct.ID); err != nil {
		s.writeAuthError(w, r, err, "failed to revoke sessions")
		return
	}

	s.clearRenewalCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "sessions_revoked"})
}

// handleChangePassword replaces the caller's password. The new hash and the
// version bump are written together, then a fresh pair is issued so the
// current client stays signed in.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	acct := accountFromContext(r.Context())

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeBadRequest(w, "new_password must be at least 8 characters")
		return
	}

	if err := s.authn.CheckPassword(acct, req.CurrentPassword); err != nil {
		s.writeAuthError(w, r, err, "failed to change password")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to change password")
		return
	}

	if _, err := s.ledger.ChangePassword(r.Context(), acct.ID, hash, false, auth.ReasonPasswordChange, acct.ID); err != nil {
		s.writeAuthError(w, r, err, "failed to change password")
		return
	}

	updated, err := s.store.GetByID(r.Context(), acct.ID)
	if err != nil {
		s.writeAuthError(w, r, err, "failed to change password")
		return
	}
	pair, err := s.issuer.Issue(updated)
	if err != nil {
		s.logger.Error("issue tokens after password change failed", "account_id", acct.ID, "error", err)
		writeInternalError(w, "failed to change password")
		return
	}

	s.logger.Info("password changed", "account_id", acct.ID, "version", updated.Version)
	s.setRenewalCookie(w, pair.RenewalToken, pair.RenewalTTL)
	writeJSON(w, http.StatusOK, s.accessResponse(pair.AccessToken, updated))
}

// handleMe returns the verified caller.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, accountFromContext(r.Context()))
}

// handleWSTicket issues a single-use ticket bound to the caller's account
// and current version, so the JWT never appears in a WebSocket URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	ticket := s.tickets.issue(accountFromContext(r.Context()), time.Now())

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// recordAudit writes an API audit entry when auditing is configured.
func (s *Server) recordAudit(ctx context.Context, action string, actorID, targetID int64, details map[string]any) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, action, actorID, targetID, details)
}

// ticketStore holds pending WebSocket tickets. Tickets are single-use and
// expire after ticketTTL.
type ticketStore struct {
	mu      sync.Mutex
	tickets map[string]ticketEntry
}

type ticketEntry struct {
	accountID int64
	nipol     string
	version   int64
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry)}
}

func (ts *ticketStore) issue(acct *auth.Account, now time.Time) string {
	ticket := generateTicket()
	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{
		accountID: acct.ID,
		nipol:     acct.Nipol,
		version:   acct.Version,
		expiresAt: now.Add(ticketTTL),
	}
	ts.mu.Unlock()
	return ticket
}

// consume removes the ticket and reports whether it was still valid.
func (ts *ticketStore) consume(ticket string, now time.Time) (ticketEntry, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}
	delete(ts.tickets, ticket)
	return entry, now.Before(entry.expiresAt)
}

func (ts *ticketStore) cleanExpired(now time.Time) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for ticket, entry := range ts.tickets {
		if now.After(entry.expiresAt) {
			delete(ts.tickets, ticket)
		}
	}
}

// Len returns the number of pending tickets.
func (ts *ticketStore) Len() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.tickets)
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// cleanTicketsLoop drops expired tickets until the context is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tickets.cleanExpired(now)
		}
	}
}
