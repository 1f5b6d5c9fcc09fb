package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/notekeeper/internal/common"
)

// Refresh replaces local state with the server's notes. While changes are
// queued it does nothing and reports false; the sync engine reconciles
// after replaying them.
func (s *noteService) Refresh(ctx context.Context) (bool, error) {
	if !s.online() {
		return false, common.ErrRequiresConnection
	}
	if s.store.Ready() {
		n, err := s.queue.Count(ctx)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, nil
		}
	}
	owner, err := s.owner(ctx)
	if err != nil {
		return false, err
	}
	list, err := s.remote.ListNotes(ctx, owner)
	if err != nil {
		return false, fmt.Errorf("list notes: %w", err)
	}
	s.ReplaceAll(ctx, list)
	s.logger.Debug(ctx, "notes refreshed from server", "count", len(list))
	return true, nil
}
