package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/notekeeper/internal/client/models"
)

var errUsage = errors.New("wrong arguments")

func usage(format string) error {
	return fmt.Errorf("%w, usage: %s", errUsage, format)
}

func (a *App) List(ctx context.Context, args []string) error {
	list := a.notes.List()
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No notes")
		return nil
	}
	for _, n := range list {
		fmt.Fprintln(a.out, formatLine(n))
	}
	return nil
}

func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("show <id>")
	}
	n, ok := a.notes.Get(args[0])
	if !ok {
		return fmt.Errorf("note %s not found", args[0])
	}
	fmt.Fprint(a.out, formatNote(n))
	return nil
}

func (a *App) New(ctx context.Context, args []string) error {
	title, err := GetSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	content, err := GetMultiline(a.reader, "Content", a.out)
	if err != nil {
		return err
	}
	color, err := GetSimpleText(a.reader, "Color (empty for default)", a.out)
	if err != nil {
		return err
	}

	n, err := a.notes.Create(ctx, models.NoteFields{Title: title, Content: content, Color: color})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Created %s%s\n", n.ID, offlineSuffix(n.ID))
	return nil
}

// Edit prompts for each field; an empty answer keeps the current value.
func (a *App) Edit(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("edit <id>")
	}
	current, ok := a.notes.Get(args[0])
	if !ok {
		return fmt.Errorf("note %s not found", args[0])
	}

	var u models.NoteUpdate
	title, err := GetSimpleText(a.reader, fmt.Sprintf("Title [%s]", current.Title), a.out)
	if err != nil {
		return err
	}
	if title != "" && title != current.Title {
		u.Title = &title
	}
	content, err := GetMultiline(a.reader, "Content (empty keeps current)", a.out)
	if err != nil {
		return err
	}
	if content != "" && content != current.Content {
		u.Content = &content
	}
	color, err := GetSimpleText(a.reader, fmt.Sprintf("Color [%s]", current.Color), a.out)
	if err != nil {
		return err
	}
	if color != "" && color != current.Color {
		u.Color = &color
	}

	if u.IsEmpty() {
		fmt.Fprintln(a.out, "Nothing changed")
		return nil
	}
	n, err := a.notes.Save(ctx, current.ID, u)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %s%s\n", n.ID, offlineSuffix(n.ID))
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("delete <id>")
	}
	if !Confirm(a.reader, fmt.Sprintf("Delete note %s?", args[0]), a.out) {
		return nil
	}
	if err := a.notes.Remove(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted")
	return nil
}

func (a *App) Pin(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("pin <id>")
	}
	n, err := a.notes.TogglePin(ctx, args[0])
	if err != nil {
		return err
	}
	if n.IsPinned {
		fmt.Fprintln(a.out, "Pinned")
	} else {
		fmt.Fprintln(a.out, "Unpinned")
	}
	return nil
}

func offlineSuffix(id string) string {
	if models.IsTempID(id) {
		return " (offline, will sync when connected)"
	}
	return ""
}

func formatLine(n models.Note) string {
	mark := " "
	if n.IsPinned {
		mark = "*"
	}
	title := n.Title
	if title == "" {
		title = firstLine(n.Content)
	}
	return fmt.Sprintf("%s %-40s %s  %s", mark, n.ID, n.UpdatedAt.Local().Format(time.DateTime), title)
}

func formatNote(n models.Note) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID:       %s%s\n", n.ID, offlineSuffix(n.ID))
	fmt.Fprintf(&b, "Title:    %s\n", n.Title)
	fmt.Fprintf(&b, "Color:    %s\n", n.Color)
	fmt.Fprintf(&b, "Pinned:   %t\n", n.IsPinned)
	fmt.Fprintf(&b, "Created:  %s\n", n.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(&b, "Updated:  %s\n", n.UpdatedAt.Local().Format(time.DateTime))
	if c := n.Cover(); c != "" {
		fmt.Fprintf(&b, "Cover:    %s\n", c)
	}
	for _, at := range n.Attachments {
		fmt.Fprintf(&b, "Attached: %s  %s (%s, %d bytes)\n", at.ID, at.Name, at.MimeType, at.SizeBytes)
	}
	fmt.Fprintf(&b, "\n%s\n", n.Content)
	return b.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	if len(line) > 60 {
		line = line[:60] + "..."
	}
	return line
}
