// Package trace writes a session's notifications to an append-only JSONL
// file. Each line carries the SHA-256 of the previous line so a tampered or
// truncated trail is detectable with Verify.
package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ormasoftchile/labguide/pkg/guide/events"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Genesis is the PrevHash of the first record.
var Genesis = strings.Repeat("0", 64)

// Record is one JSONL line.
type Record struct {
	Seq       int    `json:"seq"`
	SessionID string `json:"session_id"`
	PrevHash  string `json:"prev_hash"`
	events.Event
}

// Writer appends records. It implements events.Listener.
type Writer struct {
	mu        sync.Mutex
	w         io.Writer
	closer    io.Closer
	sessionID string
	seq       int
	prevHash  string
}

// NewWriter creates a trace writer on w.
func NewWriter(w io.Writer, sessionID string) *Writer {
	return &Writer{w: w, sessionID: sessionID, prevHash: Genesis}
}

// NewFileWriter creates (or truncates) a JSONL trace file.
func NewFileWriter(path, sessionID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open trace file")
	}
	tw := NewWriter(f, sessionID)
	tw.closer = f
	return tw, nil
}

// Emit writes one event.
func (tw *Writer) Emit(e events.Event) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	tw.seq++
	rec := Record{Seq: tw.seq, SessionID: tw.sessionID, PrevHash: tw.prevHash, Event: e}
	line, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "encode trace record")
	}
	h := sha256.Sum256(line)
	tw.prevHash = hex.EncodeToString(h[:])

	if _, err := tw.w.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "write trace record")
	}
	return nil
}

// HandleEvent implements events.Listener. Write failures are logged.
func (tw *Writer) HandleEvent(e events.Event) {
	if err := tw.Emit(e); err != nil {
		log.Warn().Err(err).Str("kind", string(e.Kind)).Msg("trace write failed")
	}
}

// Close closes the underlying file, if the writer owns one.
func (tw *Writer) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.closer == nil {
		return nil
	}
	err := tw.closer.Close()
	tw.closer = nil
	return err
}
