package sessions

import (
	"context"
	"fmt"
	"strings"

	"github.com/anuragrao04/qr-attendance/database"
	"github.com/anuragrao04/qr-attendance/models"
)

// Finalize applies the presenter's keep list to an ENDED session and
// freezes it. Every unfinalized record is first marked removed, then the
// records of keepIDs are restored and finalized, all in one transaction.
// An empty keepIDs is valid and keeps nobody.
//
// Finalizing twice fails with ErrAlreadyFinalized and changes nothing.
// It returns how many records were kept.
func (e *Engine) Finalize(ctx context.Context, sessionID, requesterID string, keepIDs []string) (int, error) {
	ent, ok := e.registry.lookup(sessionID)
	if !ok {
		return 0, e.missingSession(ctx, sessionID, ErrAlreadyFinalized, ErrUnknownSession)
	}

	keep := normalizeIDs(keepIDs)

	ent.mu.Lock()
	switch {
	case ent.session.OwnerID != requesterID:
		ent.mu.Unlock()
		return 0, ErrNotOwner
	case ent.session.Status == models.StatusActive:
		ent.mu.Unlock()
		return 0, ErrNotEnded
	case ent.session.Status == models.StatusFinalized:
		ent.mu.Unlock()
		return 0, ErrAlreadyFinalized
	}

	updates := []database.FlagUpdate{{Removed: true, Finalized: false}}
	if len(keep) > 0 {
		updates = append(updates, database.FlagUpdate{
			Filter:    database.AttendanceFilter{Students: keep},
			Removed:   false,
			Finalized: true,
		})
	}
	res, err := e.store.UpdateAttendanceFlags(ctx, sessionID, updates...)
	if err != nil {
		ent.mu.Unlock()
		e.logger.Error("failed to apply finalize flags", "session_id", sessionID, "error", err)
		return 0, fmt.Errorf("finalize session: %w", err)
	}
	// A failure here leaves the session ENDED. Retrying is safe because
	// finalized rows are frozen.
	if err := e.store.UpdateSessionStatus(ctx, sessionID, models.StatusFinalized, nil); err != nil {
		ent.mu.Unlock()
		e.logger.Error("failed to finalize session", "session_id", sessionID, "error", err)
		return 0, fmt.Errorf("finalize session: %w", err)
	}
	ent.session.Status = models.StatusFinalized
	e.registry.evict(sessionID)
	ent.mu.Unlock()

	e.issuer.Forget(sessionID)
	kept := int(res.Kept)

	e.logger.Info("session finalized", "session_id", sessionID, "kept", kept)
	e.notify(models.EventSessionFinalized, sessionID, models.SessionFinalized{Kept: keep})
	return kept, nil
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
