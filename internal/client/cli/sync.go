package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/client/session"
	"github.com/dmitrijs2005/notekeeper/internal/client/syncer"
)

// getSecret is a test seam for GetSecret.
var getSecret = GetSecret

func (a *App) Sync(ctx context.Context, args []string) error {
	rep, err := a.engine.Trigger(ctx)
	switch {
	case errors.Is(err, syncer.ErrInProgress):
		fmt.Fprintln(a.out, "Sync already running")
		return nil
	case err != nil:
		return err
	case rep.Err != nil:
		return rep.Err
	}
	if !rep.StartedAt.IsZero() {
		// the report callback already printed the summary
		return nil
	}
	if _, err := a.notes.Refresh(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Up to date")
	return nil
}

func (a *App) Status(ctx context.Context, args []string) error {
	st := a.notes.Status(ctx)
	mode := "offline"
	if st.Online {
		mode = "online"
	}
	fmt.Fprintf(a.out, "Connection:  %s\n", mode)
	if a.engine.Running() {
		fmt.Fprintln(a.out, "Sync:        running")
	} else {
		fmt.Fprintln(a.out, "Sync:        idle")
	}
	if !st.CacheReady {
		fmt.Fprintln(a.out, "Local cache: unavailable")
		return nil
	}
	fmt.Fprintf(a.out, "Pending:     %d\n", st.Pending)
	if st.LastSync.IsZero() {
		fmt.Fprintln(a.out, "Last sync:   never")
	} else {
		fmt.Fprintf(a.out, "Last sync:   %s\n", st.LastSync.Local().Format(time.DateTime))
	}
	if r, ok := a.engine.LastReport(); ok {
		fmt.Fprintf(a.out, "Last report: %d applied, %d failed, %d pending\n", r.Succeeded, r.Failed, r.Remaining)
		if r.Unremoved > 0 {
			fmt.Fprintf(a.out, "             %d applied but still queued\n", r.Unremoved)
		}
	}
	return nil
}

func (a *App) Reset(ctx context.Context, args []string) error {
	if !Confirm(a.reader, "Discard all pending changes?", a.out) {
		return nil
	}
	if err := a.notes.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Pending changes discarded")
	return nil
}

// Login takes the token from args or prompts for it without echo.
func (a *App) Login(ctx context.Context, args []string) error {
	var token string
	if len(args) > 0 {
		token = args[0]
	} else {
		t, err := getSecret(a.out, "Session token")
		if err != nil {
			return err
		}
		token = t
	}
	if err := a.useToken(ctx, token); err != nil {
		return err
	}
	owner, _ := a.owner(ctx)
	fmt.Fprintln(a.out, "Signed in as", owner)
	return nil
}

func (a *App) Logout(ctx context.Context, args []string) error {
	if err := a.sessions.Clear(ctx); err != nil {
		return err
	}
	a.setSession(session.Session{})
	fmt.Fprintln(a.out, "Signed out")
	return nil
}
