package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tiliavir/trivial-journal/internal/codec"
	"github.com/Tiliavir/trivial-journal/internal/model"
	"github.com/Tiliavir/trivial-journal/internal/timecalc"
)

const (
	bucketExt    = ".log"
	stagingExt   = ".tmp"
	discardedExt = ".discarded"

	// maxZoneOffset bounds how far an entry's instant can lie from the UTC
	// midnight of its bucket date.
	maxZoneOffset = 24 * time.Hour
)

// ErrInvalidEntry is returned by Append for an entry that cannot be stored.
var ErrInvalidEntry = errors.New("invalid entry")

// IOError reports that the journal directory or one of its files could not be
// read or written. It is always fatal for the current operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("storage error %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Store owns the day buckets below a root directory. Each bucket is a file
// named YYYY-MM-DD.log holding the records appended on that date.
//
// Appends are serialised within one process and, where the platform supports
// advisory locks, across processes through a lock on the journal directory.
// Every append replaces the bucket with a single rename, so a reader only
// ever sees the old or the new contents.
type Store struct {
	root string
	log  *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for recovery and integrity messages.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// Open returns a Store rooted at root, creating the directory if needed.
func Open(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, errors.New("storage: empty journal directory")
	}
	s := &Store{
		root:  filepath.Clean(root),
		log:   slog.Default(),
		locks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(s.root, 0o700); err != nil {
		return nil, &IOError{Op: "creating journal directory", Path: s.root, Err: err}
	}
	return s, nil
}

// Root returns the journal directory.
func (s *Store) Root() string {
	return s.root
}

// BucketPath returns the file backing the given calendar date.
func (s *Store) BucketPath(day time.Time) string {
	return s.bucketPath(timecalc.BucketName(day))
}

func (s *Store) bucketPath(date string) string {
	return filepath.Join(s.root, date+bucketExt)
}

// lockBucket acquires the in-process lock of one bucket and returns its release.
func (s *Store) lockBucket(date string) func() {
	s.mu.Lock()
	l, ok := s.locks[date]
	if !ok {
		l = &sync.Mutex{}
		s.locks[date] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Append durably adds e to the bucket of its timestamp's date and returns the
// bucket path. It returns only after the new bucket contents have been synced
// and renamed into place. On any error the bucket is left unchanged.
//
// An incomplete trailing record left by an interrupted write is moved to a
// ".<date>.log.<uuid>.discarded" file next to the bucket before the bucket is
// rewritten without it. A bucket whose records cannot be framed, or whose
// trailing record overruns further records, is not touched and the codec
// error is returned.
func (s *Store) Append(ctx context.Context, e model.Entry) (string, error) {
	rec, err := codec.Encode(e)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}

	date := e.Date()
	unlock := s.lockBucket(date)
	defer unlock()
	release, err := lockDir(s.root)
	if err != nil {
		return "", &IOError{Op: "locking journal directory", Path: s.root, Err: err}
	}
	defer release()

	path := s.bucketPath(date)
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", &IOError{Op: "reading bucket", Path: path, Err: err}
	}

	prefix := existing
	var tail []byte
	if len(existing) > 0 {
		d, derr := codec.Decode(existing)
		if d.Halted {
			return "", fmt.Errorf("refusing to append to %s: %w", path, derr)
		}
		if oerr := d.Overrun(existing); oerr != nil {
			return "", fmt.Errorf("refusing to append to %s: %w", path, oerr)
		}
		if d.Truncated() {
			prefix, tail = existing[:d.Consumed], existing[d.Consumed:]
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(tail) > 0 {
		kept := filepath.Join(s.root, "."+date+bucketExt+"."+uuid.NewString()+discardedExt)
		if err := commit(kept, tail); err != nil {
			return "", err
		}
		s.log.Warn("moved incomplete trailing record aside before append",
			"bucket", date, "discarded_bytes", len(tail), "kept_in", kept)
	}
	if err := commit(path, prefix, rec); err != nil {
		return "", err
	}
	s.log.Debug("appended entry", "bucket", date, "bytes", len(rec))
	return path, nil
}

// commit writes parts to a staging file next to path, syncs it and renames it
// over path. The staging file is removed on every failure path.
func commit(path string, parts ...[]byte) error {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+stagingExt)

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return &IOError{Op: "creating staging file", Path: tmpPath, Err: err}
	}
	closed, renamed := false, false
	defer func() {
		if !closed {
			_ = f.Close()
		}
		if !renamed {
			_ = os.Remove(tmpPath)
		}
	}()

	for _, p := range parts {
		if _, err := f.Write(p); err != nil {
			return &IOError{Op: "writing staging file", Path: tmpPath, Err: err}
		}
	}
	if err := f.Sync(); err != nil {
		return &IOError{Op: "syncing staging file", Path: tmpPath, Err: err}
	}
	closed = true
	if err := f.Close(); err != nil {
		return &IOError{Op: "closing staging file", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &IOError{Op: "renaming staging file", Path: path, Err: err}
	}
	renamed = true

	if err := syncDir(dir); err != nil {
		return &IOError{Op: "syncing journal directory", Path: dir, Err: err}
	}
	return nil
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// Dates returns the names of all day buckets in ascending date order. Files
// that are not named like a bucket, including staging files, are ignored.
func (s *Store) Dates(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	des, err := os.ReadDir(s.root)
	if err != nil {
		return nil, &IOError{Op: "listing journal directory", Path: s.root, Err: err}
	}
	var dates []string
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, bucketExt) {
			continue
		}
		date := strings.TrimSuffix(name, bucketExt)
		if _, ok := timecalc.ParseBucketName(date); ok {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

// Day returns the entries stored for one calendar date together with any
// warnings about the bucket. A missing bucket yields no entries.
func (s *Store) Day(ctx context.Context, day time.Time) ([]model.Entry, []*model.Warning, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return s.readBucket(timecalc.BucketName(day))
}

// ListAll returns every entry of the journal in chronological order.
// See List.
func (s *Store) ListAll(ctx context.Context) iter.Seq2[model.Entry, error] {
	return s.List(ctx, nil)
}

// List returns a lazy sequence over the entries of every bucket whose date
// satisfies match (all buckets when match is nil).
//
// Entries come out ordered by instant, ties kept in bucket then append order.
// Buckets are read one at a time in ascending date order; because a bucket is
// named after the local date of its entries, entries written under different
// zone offsets can interleave with the next buckets, so entries are held back
// until no later bucket can precede them. Each bucket's warnings are yielded
// as *model.Warning errors once its last entry has been yielded; they never end
// the sequence. Any other error is fatal and is the last value yielded. The
// sequence holds no state and can be ranged over again.
func (s *Store) List(ctx context.Context, match func(date string) bool) iter.Seq2[model.Entry, error] {
	return func(yield func(model.Entry, error) bool) {
		dates, err := s.Dates(ctx)
		if err != nil {
			yield(model.Entry{}, err)
			return
		}
		if match != nil {
			dates = slices.DeleteFunc(dates, func(d string) bool { return !match(d) })
		}

		var m merger
		for i, date := range dates {
			if err := ctx.Err(); err != nil {
				yield(model.Entry{}, err)
				return
			}
			entries, warnings, err := s.readBucket(date)
			if err != nil {
				yield(model.Entry{}, err)
				return
			}
			m.add(i, entries, warnings)

			var until time.Time
			last := i+1 == len(dates)
			if !last {
				next, err := time.Parse(model.DateLayout, dates[i+1])
				if err != nil {
					yield(model.Entry{}, err)
					return
				}
				until = next.Add(-maxZoneOffset)
			}
			if !m.flush(until, last, yield) {
				return
			}
		}
	}
}

type pendingEntry struct {
	entry  model.Entry
	bucket int
}

// merger holds back entries of recently read buckets until they are known to
// precede everything still unread.
type merger struct {
	pending  []pendingEntry
	left     map[int]int
	warnings map[int][]*model.Warning
}

func (m *merger) add(bucket int, entries []model.Entry, warnings []*model.Warning) {
	if m.left == nil {
		m.left = make(map[int]int)
		m.warnings = make(map[int][]*model.Warning)
	}
	for _, e := range entries {
		m.pending = append(m.pending, pendingEntry{entry: e, bucket: bucket})
	}
	m.left[bucket] = len(entries)
	m.warnings[bucket] = warnings
	slices.SortStableFunc(m.pending, func(a, b pendingEntry) int {
		return a.entry.Timestamp.Compare(b.entry.Timestamp)
	})
}

// flush yields the pending entries before until, or all of them when all is
// set. A bucket's warnings follow its last entry; those of buckets without
// entries come at the end.
func (m *merger) flush(until time.Time, all bool, yield func(model.Entry, error) bool) bool {
	n := 0
	for _, p := range m.pending {
		if !all && !p.entry.Timestamp.Before(until) {
			break
		}
		if !yield(p.entry, nil) {
			return false
		}
		n++
		m.left[p.bucket]--
		if m.left[p.bucket] == 0 && !m.yieldWarnings(p.bucket, yield) {
			return false
		}
	}
	m.pending = m.pending[n:]

	var empty []int
	for b, left := range m.left {
		if left == 0 {
			empty = append(empty, b)
		}
	}
	slices.Sort(empty)
	for _, b := range empty {
		if !m.yieldWarnings(b, yield) {
			return false
		}
	}
	return true
}

func (m *merger) yieldWarnings(bucket int, yield func(model.Entry, error) bool) bool {
	ws := m.warnings[bucket]
	delete(m.left, bucket)
	delete(m.warnings, bucket)
	for _, w := range ws {
		if !yield(model.Entry{}, w) {
			return false
		}
	}
	return true
}

func (s *Store) readBucket(date string) ([]model.Entry, []*model.Warning, error) {
	path := s.bucketPath(date)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, &IOError{Op: "reading bucket", Path: path, Err: err}
	}

	d, _ := codec.Decode(data)
	var warnings []*model.Warning
	for _, c := range d.Corrupt {
		detail := c.Error()
		if d.Halted && c == d.Corrupt[len(d.Corrupt)-1] {
			detail = fmt.Sprintf("%s; %d bytes after it were not read", detail, len(data)-d.Consumed)
		}
		s.log.Warn("corrupt record in bucket", "bucket", date, "offset", c.Offset, "reason", c.Reason)
		warnings = append(warnings, &model.Warning{Bucket: date, Kind: model.CorruptRecord, Detail: detail})
	}
	if oerr := d.Overrun(data); oerr != nil {
		s.log.Warn("corrupt record in bucket", "bucket", date, "offset", oerr.Offset, "reason", oerr.Reason)
		warnings = append(warnings, &model.Warning{Bucket: date, Kind: model.CorruptRecord, Detail: oerr.Error()})
	} else if d.Truncated() {
		s.log.Info("ignoring incomplete trailing record", "bucket", date, "discarded_bytes", d.Discarded)
		warnings = append(warnings, &model.Warning{Bucket: date, Kind: model.TruncatedTail, Discarded: d.Discarded})
	}

	entries := d.Entries
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, warnings, nil
}

// Stats summarises the journal.
type Stats struct {
	Days     int
	Entries  int
	Warnings int
	First    string
	Last     string
}

// Stats walks the whole journal and counts buckets, entries and warnings.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	days := make(map[string]bool)
	for e, err := range s.ListAll(ctx) {
		if _, ok := model.AsWarning(err); ok {
			st.Warnings++
			continue
		}
		if err != nil {
			return Stats{}, err
		}
		st.Entries++
		date := e.Date()
		if days[date] {
			continue
		}
		days[date] = true
		st.Days++
		if st.First == "" || date < st.First {
			st.First = date
		}
		if date > st.Last {
			st.Last = date
		}
	}
	return st, nil
}
