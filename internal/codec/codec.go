// Package codec converts journal entries to and from the self-delimiting
// records stored in a day bucket.
//
// A record is a header line followed by the body and a terminating newline:
//
//	--- 2024-01-02T08:00:00+01:00 14 dc984ceb
//	new year plans
//
// The header carries the timestamp, the body length in bytes and the CRC-32
// (IEEE) of the body. Records are concatenated without separators.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"time"

	"github.com/Tiliavir/trivial-journal/internal/model"
)

const (
	recordPrefix    = "---"
	timestampLayout = time.RFC3339Nano

	// MaxBodySize bounds the body length accepted by Encode and Decode.
	MaxBodySize = 8 << 20
)

var (
	// ErrCorruptRecord is matched by every CorruptRecordError.
	ErrCorruptRecord = errors.New("corrupt record")
	// ErrEmptyBody is returned by Encode for an entry without text.
	ErrEmptyBody = errors.New("entry body is empty")
	// ErrBodyTooLarge is returned by Encode for a body above MaxBodySize.
	ErrBodyTooLarge = errors.New("entry body too large")
)

// CorruptRecordError describes a record whose framing was complete but whose
// content could not be parsed.
type CorruptRecordError struct {
	Offset int
	Reason string
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt record at offset %d: %s", e.Offset, e.Reason)
}

func (e *CorruptRecordError) Is(target error) bool {
	return target == ErrCorruptRecord
}

// Encode renders an entry as one record. Equal entries produce identical bytes.
func Encode(e model.Entry) ([]byte, error) {
	if len(e.Body) == 0 {
		return nil, ErrEmptyBody
	}
	if len(e.Body) > MaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(e.Body))
	}
	if y := e.Timestamp.Year(); y < 0 || y > 9999 {
		return nil, fmt.Errorf("timestamp year %d out of range", y)
	}

	body := []byte(e.Body)
	var b bytes.Buffer
	b.Grow(len(body) + 64)
	fmt.Fprintf(&b, "%s %s %d %08x\n", recordPrefix, e.Timestamp.Format(timestampLayout), len(body), crc32.ChecksumIEEE(body))
	b.Write(body)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Decoded is the outcome of decoding a whole day bucket.
type Decoded struct {
	// Entries holds every record that decoded cleanly, in stored order.
	Entries []model.Entry
	// Consumed is the length of the prefix made of complete records, including
	// skipped corrupt ones. Appending after Consumed never merges with a
	// damaged record.
	Consumed int
	// Discarded counts the bytes of an incomplete trailing record.
	Discarded int
	// Halted is set when a record header could not be framed. Bytes from
	// Consumed onwards were not decoded.
	Halted bool
	// Corrupt lists every record that was skipped or that halted decoding.
	Corrupt []*CorruptRecordError
}

// Truncated reports whether an incomplete trailing record was dropped.
func (d Decoded) Truncated() bool {
	return d.Discarded > 0
}

// Decode parses the full contents of a day bucket.
//
// An incomplete trailing record is dropped and reported through Discarded,
// not as an error. A record with a complete frame but unparseable content is
// skipped, and a header that cannot be framed stops decoding; both are
// reported in Corrupt and the first of them is returned as the error. The
// entries decoded so far are returned in every case.
func Decode(data []byte) (Decoded, error) {
	var d Decoded
	off := 0
	for off < len(data) {
		nl := bytes.IndexByte(data[off:], '\n')
		if nl < 0 {
			d.Discarded = len(data) - off
			break
		}
		h, err := parseHeader(data[off : off+nl])
		if err != nil {
			d.Corrupt = append(d.Corrupt, &CorruptRecordError{Offset: off, Reason: err.Error()})
			d.Halted = true
			break
		}

		bodyStart := off + nl + 1
		if len(data)-bodyStart < h.size+1 {
			d.Discarded = len(data) - off
			break
		}
		bodyEnd := bodyStart + h.size
		if data[bodyEnd] != '\n' {
			d.Corrupt = append(d.Corrupt, &CorruptRecordError{Offset: off, Reason: "record is not terminated by a newline"})
			d.Halted = true
			break
		}

		body := data[bodyStart:bodyEnd]
		if reason := h.validate(body); reason != "" {
			d.Corrupt = append(d.Corrupt, &CorruptRecordError{Offset: off, Reason: reason})
		} else {
			d.Entries = append(d.Entries, model.Entry{Timestamp: h.timestamp, Body: string(body)})
		}
		off = bodyEnd + 1
		d.Consumed = off
	}

	if len(d.Corrupt) > 0 {
		return d, d.Corrupt[0]
	}
	return d, nil
}

// Overrun returns an error when the incomplete trailing record of data is not
// the remains of an interrupted write: its header claims more bytes than the
// bucket holds while the bytes after it contain further record headers. This
// is what a damaged length field looks like. It returns nil otherwise.
func (d Decoded) Overrun(data []byte) *CorruptRecordError {
	if !d.Truncated() || d.Consumed+d.Discarded != len(data) {
		return nil
	}
	tail := data[d.Consumed:]
	if !bytes.Contains(tail, []byte("\n"+recordPrefix+" ")) {
		return nil
	}
	return &CorruptRecordError{
		Offset: d.Consumed,
		Reason: fmt.Sprintf("record length runs past the end of the bucket; the %d bytes from here hold further records", len(tail)),
	}
}

type header struct {
	rawTimestamp string
	timestamp    time.Time
	size         int
	sum          uint32
}

// parseHeader checks the framing fields of a header line. The timestamp is
// only checked by validate so a bad timestamp does not lose the frame.
func parseHeader(line []byte) (header, error) {
	fields := bytes.Split(line, []byte(" "))
	if len(fields) != 4 || string(fields[0]) != recordPrefix {
		return header{}, fmt.Errorf("malformed header %q", truncate(line, 64))
	}
	size, err := strconv.Atoi(string(fields[2]))
	if err != nil || size < 0 || size > MaxBodySize {
		return header{}, fmt.Errorf("invalid body length %q", truncate(fields[2], 16))
	}
	if len(fields[3]) != 8 {
		return header{}, fmt.Errorf("invalid checksum %q", truncate(fields[3], 16))
	}
	sum, err := strconv.ParseUint(string(fields[3]), 16, 32)
	if err != nil {
		return header{}, fmt.Errorf("invalid checksum %q", fields[3])
	}
	return header{rawTimestamp: string(fields[1]), size: size, sum: uint32(sum)}, nil
}

func (h *header) validate(body []byte) string {
	ts, err := time.Parse(timestampLayout, h.rawTimestamp)
	if err != nil {
		return fmt.Sprintf("invalid timestamp %q", h.rawTimestamp)
	}
	if len(body) == 0 {
		return "empty body"
	}
	if got := crc32.ChecksumIEEE(body); got != h.sum {
		return fmt.Sprintf("checksum mismatch: stored %08x, computed %08x", h.sum, got)
	}
	h.timestamp = ts
	return ""
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
