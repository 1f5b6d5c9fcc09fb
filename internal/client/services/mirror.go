package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
)

// ReplaceAll swaps the in-memory collection and schedules a debounced
// write of the collection to the local store. A newer call supersedes a
// pending one.
func (s *noteService) ReplaceAll(ctx context.Context, all []models.Note) {
	next := make(map[string]models.Note, len(all))
	for _, n := range all {
		next[n.ID] = n.Clone()
	}

	s.mu.Lock()
	s.notes = next
	s.mu.Unlock()

	s.mirrorMu.Lock()
	defer s.mirrorMu.Unlock()
	s.mirrorGen++
	s.mirrorDue = true
	s.scheduleLocked(s.mirrorGen)
}

func (s *noteService) scheduleLocked(gen uint64) {
	if s.mirrorTimer != nil {
		s.mirrorTimer.Stop()
	}
	s.mirrorTimer = time.AfterFunc(s.mirrorDelay, func() {
		s.runMirror(context.Background(), gen)
	})
}

// runMirror writes the collection unless the request was superseded.
// While a direct mutation is running the write is pushed back by another
// delay.
func (s *noteService) runMirror(ctx context.Context, gen uint64) {
	s.mirrorMu.Lock()
	if gen != s.mirrorGen || !s.mirrorDue {
		s.mirrorMu.Unlock()
		return
	}
	if !s.mutating.TryLock() {
		s.scheduleLocked(gen)
		s.mirrorMu.Unlock()
		return
	}
	s.mirrorDue = false
	s.mirrorMu.Unlock()

	defer s.mutating.Unlock()
	s.writeMirror(ctx)
}

// writeMirror stores what is in memory at the time of the write, so
// direct mutations that finished after the ReplaceAll are not undone.
// Callers hold mutating exclusively.
func (s *noteService) writeMirror(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	repo, err := s.store.Notes()
	if err != nil {
		s.logger.Debug(ctx, "mirror skipped, local store unavailable")
		return
	}

	batch := s.Snapshot()
	if err := repo.PutNotes(ctx, batch); err != nil {
		s.logger.Warn(ctx, "mirror write incomplete", "count", len(batch), "error", err)
	}
	ids := make([]string, 0, len(batch))
	for _, n := range batch {
		ids = append(ids, n.ID)
	}
	if err := repo.DeleteExcept(ctx, ids); err != nil {
		s.logger.Warn(ctx, "mirror prune failed", "error", err)
	}
	s.logger.Debug(ctx, "mirror written", "count", len(batch))
}

// Flush cancels the debounce timer and writes a pending mirror now,
// waiting for running direct mutations first.
func (s *noteService) Flush(ctx context.Context) {
	s.mirrorMu.Lock()
	if s.mirrorTimer != nil {
		s.mirrorTimer.Stop()
	}
	due := s.mirrorDue
	s.mirrorDue = false
	s.mirrorGen++
	s.mirrorMu.Unlock()

	if !due {
		return
	}
	s.mutating.Lock()
	defer s.mutating.Unlock()
	s.writeMirror(ctx)
}
