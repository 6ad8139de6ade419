package session_test

import (
	"context"
	"errors"
	"iter"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/trivial-journal/internal/display"
	"github.com/Tiliavir/trivial-journal/internal/editor"
	"github.com/Tiliavir/trivial-journal/internal/model"
	"github.com/Tiliavir/trivial-journal/internal/session"
	"github.com/Tiliavir/trivial-journal/internal/storage"
)

var fixedNow = time.Date(2024, 1, 2, 8, 0, 30, 500, time.FixedZone("CET", 3600))

type editorFunc func(ctx context.Context, initial string) (string, error)

func (f editorFunc) Edit(ctx context.Context, initial string) (string, error) {
	return f(ctx, initial)
}

type fakeStore struct {
	appended []model.Entry
	err      error
}

func (s *fakeStore) Append(_ context.Context, e model.Entry) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.appended = append(s.appended, e)
	return "/journal/" + e.Date() + ".log", nil
}

func newWriter(ed editor.Editor, store session.Appender) *session.Writer {
	return &session.Writer{Editor: ed, Store: store, Now: func() time.Time { return fixedNow }}
}

func TestWriteSavesTrimmedDraft(t *testing.T) {
	store := &fakeStore{}
	var seen string
	ed := editorFunc(func(_ context.Context, initial string) (string, error) {
		seen = initial
		return "\n  new year plans \n\n", nil
	})

	res, err := newWriter(ed, store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, editor.Template, seen)
	assert.Equal(t, session.Saved, res.Outcome)
	assert.Equal(t, "/journal/2024-01-02.log", res.Path)
	require.Len(t, store.appended, 1)
	assert.Equal(t, "new year plans", store.appended[0].Body)
	assert.True(t, store.appended[0].Timestamp.Equal(fixedNow.Truncate(time.Second)))
	assert.True(t, store.appended[0].Equal(res.Entry))
}

func TestWriteDiscardsEmptyDraft(t *testing.T) {
	for _, draft := range []string{"", "   ", "\n\t\n"} {
		store := &fakeStore{}
		res, err := newWriter(editor.Static(draft), store).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, session.EmptyDraft, res.Outcome)
		assert.Empty(t, store.appended)
	}
}

func TestWriteAborted(t *testing.T) {
	store := &fakeStore{}
	ed := editorFunc(func(context.Context, string) (string, error) {
		return "", editor.ErrAborted
	})
	res, err := newWriter(ed, store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.Aborted, res.Outcome)
	assert.Empty(t, store.appended)
}

func TestWriteEditorFailure(t *testing.T) {
	store := &fakeStore{}
	boom := errors.New("editor exited with status 2")
	ed := editorFunc(func(context.Context, string) (string, error) {
		return "", boom
	})
	_, err := newWriter(ed, store).Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.appended)
}

func TestWritePropagatesStoreError(t *testing.T) {
	ioErr := &storage.IOError{Op: "renaming staging file", Path: "/journal/2024-01-02.log", Err: os.ErrPermission}
	store := &fakeStore{err: ioErr}

	_, err := newWriter(editor.Static("hello"), store).Run(context.Background())
	require.Error(t, err)
	assert.Same(t, ioErr, err)
}

func TestWriteWithRealStore(t *testing.T) {
	s, err := storage.Open(t.TempDir())
	require.NoError(t, err)

	res, err := newWriter(editor.Static("   "), s).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.EmptyDraft, res.Outcome)
	assert.NoFileExists(t, s.BucketPath(fixedNow))

	res, err = newWriter(editor.Static("first words"), s).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s.BucketPath(fixedNow), res.Path)

	entries, warnings, err := s.Day(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, entries, 1)
	assert.Equal(t, "first words", entries[0].Body)
}

// recorder is a display that keeps every item it is given.
type recorder struct {
	items []display.Item
	limit int
}

func (r *recorder) Render(_ context.Context, items iter.Seq[display.Item]) error {
	for it := range items {
		r.items = append(r.items, it)
		if r.limit > 0 && len(r.items) == r.limit {
			break
		}
	}
	return nil
}

type listFunc func(yield func(model.Entry, error) bool)

func (f listFunc) List(context.Context, func(string) bool) iter.Seq2[model.Entry, error] {
	return iter.Seq2[model.Entry, error](f)
}

func TestViewForwardsEntriesAndWarnings(t *testing.T) {
	s, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local)
	for i, body := range []string{"slept well", "long day"} {
		_, err := s.Append(ctx, model.Entry{Timestamp: day.Add(time.Duration(i) * time.Hour), Body: body})
		require.NoError(t, err)
	}
	f, err := os.OpenFile(s.BucketPath(day), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.Write([]byte("---"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r := &recorder{}
	require.NoError(t, session.View(ctx, s, r, nil))
	require.Len(t, r.items, 3)
	assert.Equal(t, "slept well", r.items[0].Entry.Body)
	assert.Equal(t, "long day", r.items[1].Entry.Body)
	require.NotNil(t, r.items[2].Warning)
	assert.Equal(t, model.TruncatedTail, r.items[2].Warning.Kind)
}

func TestViewEmptyJournal(t *testing.T) {
	s, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	r := &recorder{}
	require.NoError(t, session.View(context.Background(), s, r, nil))
	assert.Empty(t, r.items)
}

func TestViewReturnsFatalErrorAfterRender(t *testing.T) {
	fatal := &storage.IOError{Op: "reading bucket", Path: "2024-01-02.log", Err: os.ErrPermission}
	l := listFunc(func(yield func(model.Entry, error) bool) {
		if !yield(model.Entry{Timestamp: fixedNow, Body: "before"}, nil) {
			return
		}
		yield(model.Entry{}, fatal)
	})

	r := &recorder{}
	err := session.View(context.Background(), l, r, nil)
	assert.ErrorIs(t, err, os.ErrPermission)
	require.Len(t, r.items, 1)
	assert.Equal(t, "before", r.items[0].Entry.Body)
}

func TestViewStopsWhenDisplayStops(t *testing.T) {
	pulled := 0
	l := listFunc(func(yield func(model.Entry, error) bool) {
		for i := 0; i < 100; i++ {
			pulled++
			if !yield(model.Entry{Timestamp: fixedNow, Body: "x"}, nil) {
				return
			}
		}
	})
	r := &recorder{limit: 3}
	require.NoError(t, session.View(context.Background(), l, r, nil))
	assert.Equal(t, 3, pulled)
}
