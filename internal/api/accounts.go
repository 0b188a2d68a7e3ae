package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/neogend-core/internal/audit"
	"github.com/nerrad567/neogend-core/internal/auth"
)

type createAccountRequest struct {
	Nipol string `json:"nipol"`
	auth.Profile
	Privilege string `json:"privilege,omitempty"`
}

type changePrivilegeRequest struct {
	Privilege string `json:"privilege"`
}

type temporaryPasswordResponse struct {
	Account           *auth.Account `json:"account"`
	TemporaryPassword string        `json:"temporary_password"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.List(r.Context())
	if err != nil {
		s.writeAuthError(w, r, err, "failed to list accounts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	target, ok := s.loadTarget(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, target)
}

// handleCreateAccount registers an account with a temporary password. New
// accounts wait in the pending inscription state.
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	actor := accountFromContext(r.Context())

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !auth.IsValidNipol(req.Nipol) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "nipol must be 1-64 letters, digits, '.', '_' or '-'")
		return
	}

	rank := auth.RankPlayer
	if req.Privilege != "" {
		parsed, err := auth.ParseRank(req.Privilege)
		if err != nil {
			s.writeAuthError(w, r, err, "failed to create account")
			return
		}
		rank = parsed
	}
	if err := s.guard.AuthorizeCreate(actor, rank); err != nil {
		s.writeAuthError(w, r, err, "failed to create account")
		return
	}

	password, err := auth.GenerateTemporaryPassword()
	if err != nil {
		s.logger.Error("generate temporary password failed", "error", err)
		writeInternalError(w, "failed to create account")
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to create account")
		return
	}

	acct := &auth.Account{
		Nipol:             req.Nipol,
		Profile:           req.Profile,
		Rank:              rank,
		InscriptionStatus: auth.InscriptionPending,
		TempPassword:      true,
		PasswordHash:      hash,
	}
	if err := s.store.Create(r.Context(), acct); err != nil {
		s.writeAuthError(w, r, err, "failed to create account")
		return
	}

	s.logger.Info("account created", "account_id", acct.ID, "nipol", acct.Nipol, "privilege", rank, "created_by", actor.ID)
	s.recordAudit(r.Context(), audit.ActionAccountCreate, actor.ID, acct.ID, map[string]any{
		"nipol":     acct.Nipol,
		"privilege": rank.String(),
	})

	writeJSON(w, http.StatusCreated, temporaryPasswordResponse{Account: acct, TemporaryPassword: password})
}

// handleChangePrivilege moves the target to a new rank. The rank change and
// the version bump land in one statement.
func (s *Server) handleChangePrivilege(w http.ResponseWriter, r *http.Request) {
	actor := accountFromContext(r.Context())
	target, ok := s.loadTarget(w, r)
	if !ok {
		return
	}

	var req changePrivilegeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	rank, err := auth.ParseRank(req.Privilege)
	if err != nil {
		s.writeAuthError(w, r, err, "failed to change privilege")
		return
	}
	if err := s.guard.AuthorizeRankAssignment(actor, target, rank); err != nil {
		s.writeAuthError(w, r, err, "failed to change privilege")
		return
	}

	if _, err := s.ledger.ChangeRank(r.Context(), target.ID, rank, actor.ID); err != nil {
		s.writeAuthError(w, r, err, "failed to change privilege")
		return
	}
	updated, err := s.store.GetByID(r.Context(), target.ID)
	if err != nil {
		s.writeAuthError(w, r, err, "failed to change privilege")
		return
	}

	s.recordAudit(r.Context(), audit.ActionRankChange, actor.ID, target.ID, map[string]any{
		"from": target.Rank.String(),
		"to":   rank.String(),
	})
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	actor := accountFromContext(r.Context())
	target, ok := s.loadTarget(w, r)
	if !ok {
		return
	}
	if err := s.guard.Authorize(actor, target, auth.ActionDelete); err != nil {
		s.writeAuthError(w, r, err, "failed to delete account")
		return
	}

	if err := s.store.Delete(r.Context(), target.ID); err != nil {
		s.writeAuthError(w, r, err, "failed to delete account")
		return
	}
	// Credentials of a deleted account already fail lookup; open channels
	// are closed here since no version bump announces it.
	s.hub.DisconnectAccount(target.ID, "account_deleted")

	s.logger.Info("account deleted", "account_id", target.ID, "nipol", target.Nipol, "deleted_by", actor.ID)
	s.recordAudit(r.Context(), audit.ActionAccountDelete, actor.ID, target.ID, map[string]any{
		"nipol": target.Nipol,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleDisconnectAccount ends every session of the target.
func (s *Server) handleDisconnectAccount(w http.ResponseWriter, r *http.Request) {
	actor := accountFromContext(r.Context())
	target, ok := s.loadTarget(w, r)
	if !ok {
		return
	}
	if err := s.guard.Authorize(actor, target, auth.ActionForceDisconnect); err != nil {
		s.writeAuthError(w, r, err, "failed to disconnect account")
		return
	}

	if _, err := s.ledger.Bump(r.Context(), target.ID, auth.ReasonForcedDisconnect, actor.ID); err != nil {
		s.writeAuthError(w, r, err, "failed to disconnect account")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// handleResetPassword assigns a new temporary password. The temporary
// password is returned once and never stored in clear.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	actor := accountFromContext(r.Context())
	target, ok := s.loadTarget(w, r)
	if !ok {
		return
	}
	if err := s.guard.Authorize(actor, target, auth.ActionResetPassword); err != nil {
		s.writeAuthError(w, r, err, "failed to reset password")
		return
	}

	password, err := auth.GenerateTemporaryPassword()
	if err != nil {
		s.logger.Error("generate temporary password failed", "error", err)
		writeInternalError(w, "failed to reset password")
		return
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to reset password")
		return
	}

	if _, err := s.ledger.ChangePassword(r.Context(), target.ID, hash, true, auth.ReasonPasswordReset, actor.ID); err != nil {
		s.writeAuthError(w, r, err, "failed to reset password")
		return
	}
	updated, err := s.store.GetByID(r.Context(), target.ID)
	if err != nil {
		s.writeAuthError(w, r, err, "failed to reset password")
		return
	}

	s.recordAudit(r.Context(), audit.ActionPasswordReset, actor.ID, target.ID, nil)
	writeJSON(w, http.StatusOK, temporaryPasswordResponse{Account: updated, TemporaryPassword: password})
}

// handleDisconnectAll bumps every account at once. Owner only.
func (s *Server) handleDisconnectAll(w http.ResponseWriter, r *http.Request) {
	actor := accountFromContext(r.Context())
	if err := s.guard.AuthorizeOwnerOnly(actor); err != nil {
		s.writeAuthError(w, r, err, "failed to disconnect all sessions")
		return
	}

	affected, err := s.ledger.BumpAll(r.Context(), auth.ReasonForcedDisconnectAll, actor.ID)
	if err != nil {
		s.writeAuthError(w, r, err, "failed to disconnect all sessions")
		return
	}

	s.clearRenewalCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "disconnected",
		"affected": affected,
	})
}

// loadTarget resolves the {id} URL parameter. It writes the error response
// itself and reports false when the handler should stop.
func (s *Server) loadTarget(w http.ResponseWriter, r *http.Request) (*auth.Account, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid account id")
		return nil, false
	}

	target, err := s.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeAuthError(w, r, err, "failed to load account")
		return nil, false
	}
	return target, true
}
