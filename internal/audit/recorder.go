package audit

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/nerrad567/neogend-core/internal/auth"
)

// Sources written to the source column.
const (
	SourceLedger = "ledger"
	SourceAPI    = "api"
)

// Recorder writes audit entries on behalf of the authority. It implements
// auth.EventSink so every committed version bump lands in the trail.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
}

// NewRecorder creates a Recorder over repo.
func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// SessionRevoked records a version bump.
func (r *Recorder) SessionRevoked(ctx context.Context, ev auth.SessionEvent) error {
	details := map[string]any{
		"reason":   string(ev.Reason),
		"affected": ev.Affected,
	}
	if !ev.Global() {
		details["new_version"] = ev.NewVersion
	}
	return r.repo.Create(ctx, &AuditLog{
		Action:     ActionSessionRevoked,
		EntityType: EntityAccount,
		EntityID:   idString(ev.AccountID),
		UserID:     idString(ev.ActorID),
		Source:     SourceLedger,
		Details:    details,
		CreatedAt:  ev.At,
	})
}

// Record writes an API-originated entry. Failures are logged, never
// returned: the audited action has already happened.
func (r *Recorder) Record(ctx context.Context, action string, actorID, targetID int64, details map[string]any) {
	err := r.repo.Create(ctx, &AuditLog{
		Action:     action,
		EntityType: EntityAccount,
		EntityID:   idString(targetID),
		UserID:     idString(actorID),
		Source:     SourceAPI,
		Details:    details,
	})
	if err != nil {
		r.logger.Warn("audit write failed", "action", action, "target_id", targetID, "error", err)
	}
}

// List exposes the underlying repository query.
func (r *Recorder) List(ctx context.Context, filter Filter) (*ListResult, error) {
	return r.repo.List(ctx, filter)
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
