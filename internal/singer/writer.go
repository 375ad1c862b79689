// Package singer reads and writes Singer documents: the JSON-lines message
// stream on stdout, and the catalog and state files.
package singer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/naka-gawa/tap-mssql/internal/domain"
)

// Writer serializes messages as one JSON document per line. It is safe for
// concurrent use.
type Writer struct {
	mu  sync.Mutex
	out *bufio.Writer
	buf bytes.Buffer
	enc *json.Encoder
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	wr := &Writer{out: bufio.NewWriter(w)}
	wr.enc = json.NewEncoder(&wr.buf)
	wr.enc.SetEscapeHTML(false)
	return wr
}

// WriteMessage encodes msg followed by a newline and returns the number of
// bytes written. STATE and BATCH messages flush the output so a target sees
// them without delay.
func (w *Writer) WriteMessage(msg any) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Reset()
	if err := w.enc.Encode(msg); err != nil {
		return 0, fmt.Errorf("failed to encode message: %w", err)
	}
	n, err := w.out.Write(w.buf.Bytes())
	if err != nil {
		return n, fmt.Errorf("failed to write message: %w", err)
	}
	switch msg.(type) {
	case *domain.StateMessage, *domain.BatchMessage:
		if err := w.out.Flush(); err != nil {
			return n, fmt.Errorf("failed to flush messages: %w", err)
		}
	}
	return n, nil
}

// Flush writes any buffered messages.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Flush()
}

// WriteDocument prints v as indented JSON, as done for --discover and --about.
func WriteDocument(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// ReadCatalog loads a catalog file.
func ReadCatalog(path string) (*domain.Catalog, error) {
	var catalog domain.Catalog
	if err := readJSON("singer.read_catalog", path, &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// ReadState loads a state file. An empty file is an empty state.
func ReadState(path string) (*domain.State, error) {
	state := domain.NewState()
	if err := readJSON("singer.read_state", path, state); err != nil {
		return nil, err
	}
	return state, nil
}

func readJSON(op, path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return &domain.OpError{Op: op, Kind: domain.KindNotFound, Err: err}
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return &domain.OpError{Op: op, Kind: domain.KindInvalidConfig, Err: fmt.Errorf("%s: %w", path, err)}
	}
	return nil
}
