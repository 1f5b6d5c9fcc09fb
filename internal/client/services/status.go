package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/common"
)

// Status feeds the connectivity indicator.
type Status struct {
	Online     bool
	Pending    int
	CacheReady bool
	LastSync   time.Time
}

func (s *noteService) Status(ctx context.Context) Status {
	st := Status{Online: s.online(), CacheReady: s.store.Ready()}
	if !st.CacheReady {
		return st
	}
	if n, err := s.queue.Count(ctx); err == nil {
		st.Pending = n
	}
	if repo, err := s.store.Metadata(); err == nil {
		if t, err := repo.GetTime(ctx, common.MetadataLastSyncAt); err == nil {
			st.LastSync = t
		}
	}
	return st
}

// Reset drops every queued operation. Local notes are kept; the next
// sync replaces them with the server's copy.
func (s *noteService) Reset(ctx context.Context) error {
	if err := s.queue.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info(ctx, "pending operations cleared by user")
	return nil
}
