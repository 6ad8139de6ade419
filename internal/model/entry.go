package model

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the layout of a day bucket name. Lexicographic order of
// names formatted with it equals chronological order.
const DateLayout = "2006-01-02"

// Entry is a single journal record. Timestamp keeps the zone offset that was
// in effect when the entry was written.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Body      string    `json:"body"`
}

// Date returns the name of the day bucket the entry belongs to.
func (e Entry) Date() string {
	return e.Timestamp.Format(DateLayout)
}

// Equal reports whether two entries describe the same instant and text.
func (e Entry) Equal(o Entry) bool {
	return e.Timestamp.Equal(o.Timestamp) && e.Body == o.Body
}

// WarningKind classifies a non-fatal problem found in a day bucket.
type WarningKind string

const (
	// TruncatedTail marks an incomplete trailing record left by an interrupted write.
	TruncatedTail WarningKind = "truncated-tail"
	// CorruptRecord marks a complete-looking record whose content could not be parsed.
	CorruptRecord WarningKind = "corrupt-record"
)

// Warning is attached to a day bucket whose bytes could not be decoded in full.
// It implements error so it can travel next to entries in a sequence, but it
// never ends a listing.
type Warning struct {
	Bucket    string      `json:"bucket"`
	Kind      WarningKind `json:"kind"`
	Detail    string      `json:"detail,omitempty"`
	Discarded int         `json:"discarded_bytes,omitempty"`
}

func (w *Warning) Error() string {
	switch w.Kind {
	case TruncatedTail:
		return fmt.Sprintf("%s: discarded %d bytes of an incomplete trailing record", w.Bucket, w.Discarded)
	default:
		return fmt.Sprintf("%s: %s: %s", w.Bucket, w.Kind, w.Detail)
	}
}

// AsWarning reports whether err is a bucket Warning rather than a failure.
func AsWarning(err error) (*Warning, bool) {
	var w *Warning
	if errors.As(err, &w) {
		return w, true
	}
	return nil, false
}
