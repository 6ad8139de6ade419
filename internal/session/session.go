// Package session runs the two user interactions of tj: writing one entry
// and viewing the journal.
package session

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/Tiliavir/trivial-journal/internal/display"
	"github.com/Tiliavir/trivial-journal/internal/editor"
	"github.com/Tiliavir/trivial-journal/internal/model"
)

// Appender persists one entry and returns where it was stored.
type Appender interface {
	Append(ctx context.Context, e model.Entry) (string, error)
}

// Lister produces the journal in chronological order. Errors that are
// *model.Warning values are non-fatal.
type Lister interface {
	List(ctx context.Context, match func(date string) bool) iter.Seq2[model.Entry, error]
}

// Outcome tells what a write session did.
type Outcome int

const (
	// Saved means one entry was appended.
	Saved Outcome = iota
	// EmptyDraft means the draft held only whitespace and was discarded.
	EmptyDraft
	// Aborted means the editor returned without a draft.
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Saved:
		return "saved"
	case EmptyDraft:
		return "empty draft"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// WriteResult describes a finished write session.
type WriteResult struct {
	Outcome Outcome
	Entry   model.Entry
	Path    string
}

// Writer turns one editor interaction into at most one stored entry.
type Writer struct {
	Editor editor.Editor
	Store  Appender
	// Now stamps the entry; nil means time.Now.
	Now func() time.Time
	Log *slog.Logger
}

// Run obtains a draft, trims it and appends it. Empty drafts and aborted
// edits are not errors and leave the store untouched. Store errors are
// returned as they are.
func (w *Writer) Run(ctx context.Context) (WriteResult, error) {
	log := w.Log
	if log == nil {
		log = slog.Default()
	}

	text, err := w.Editor.Edit(ctx, editor.Template)
	if errors.Is(err, editor.ErrAborted) {
		log.Debug("editor returned without changes")
		return WriteResult{Outcome: Aborted}, nil
	}
	if err != nil {
		return WriteResult{}, err
	}

	body := strings.TrimSpace(text)
	if body == "" {
		log.Debug("discarding empty draft")
		return WriteResult{Outcome: EmptyDraft}, nil
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	e := model.Entry{Timestamp: now().Truncate(time.Second), Body: body}
	path, err := w.Store.Append(ctx, e)
	if err != nil {
		return WriteResult{}, err
	}
	log.Debug("entry saved", "path", path)
	return WriteResult{Outcome: Saved, Entry: e, Path: path}, nil
}

// View forwards the entries of every bucket accepted by match (all when nil)
// to d in order. Bucket warnings become warning items. A fatal listing error
// ends the listing and is returned once d has finished.
func View(ctx context.Context, l Lister, d display.Display, match func(date string) bool) error {
	var fatal error
	items := func(yield func(display.Item) bool) {
		for e, err := range l.List(ctx, match) {
			if w, ok := model.AsWarning(err); ok {
				if !yield(display.Item{Warning: w}) {
					return
				}
				continue
			}
			if err != nil {
				fatal = err
				return
			}
			if !yield(display.Item{Entry: &e}) {
				return
			}
		}
	}

	renderErr := d.Render(ctx, items)
	if fatal != nil {
		return fatal
	}
	return renderErr
}
