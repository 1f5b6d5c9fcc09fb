package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/filex"
)

// maxUpload caps files read for covers and attachments.
const maxUpload = 50 << 20

// readFile is a test seam.
var readFile = func(path string) ([]byte, error) {
	return filex.ReadLimited(path, maxUpload)
}

func (a *App) Cover(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("cover <id> <file>")
	}
	data, err := readFile(args[1])
	if err != nil {
		return err
	}
	n, err := a.notes.SetCover(ctx, args[0], filepath.Base(args[1]), data)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Cover set:", n.Cover())
	return nil
}

func (a *App) Attach(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("attach <id> <file>")
	}
	data, err := readFile(args[1])
	if err != nil {
		return err
	}
	at, err := a.notes.AddAttachment(ctx, args[0], filepath.Base(args[1]), "", data)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Attached %s (%s)\n", at.ID, at.MimeType)
	return nil
}

func (a *App) Detach(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("detach <id> <attachmentId>")
	}
	if err := a.notes.RemoveAttachment(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Attachment removed")
	return nil
}

// Image shows where the cover of a note would be rendered from.
func (a *App) Image(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("image <id>")
	}
	n, ok := a.notes.Get(args[0])
	if !ok {
		return fmt.Errorf("note %s not found", args[0])
	}
	img := a.assets.Load(ctx, n.Cover())
	if img.Err != nil {
		return fmt.Errorf("image %s: %w", img.State, img.Err)
	}
	fmt.Fprintf(a.out, "%s %s\n", img.State, img.Src)
	return nil
}

func (a *App) Evict(ctx context.Context, args []string) error {
	retention := a.cfg.AssetRetention
	if len(args) == 1 {
		days, err := strconv.Atoi(args[0])
		if err != nil || days < 0 {
			return usage("evict [days]")
		}
		retention = time.Duration(days) * 24 * time.Hour
	} else if len(args) > 1 {
		return usage("evict [days]")
	}
	n, err := a.assets.EvictOlderThan(ctx, retention)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Evicted %d cached images\n", n)
	return nil
}
