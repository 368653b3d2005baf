package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"example.com/riskpipeline/internal/safepath"
)

// ErrInputNotFound is returned when the input log does not exist.
var ErrInputNotFound = errors.New("input not found")

// Loader reads raw event logs from inside a base data directory.
type Loader struct {
	baseDir string
	log     *zap.Logger
}

func NewLoader(baseDir string, log *zap.Logger) *Loader {
	return &Loader{baseDir: baseDir, log: log.With(zap.String("component", "ingest"))}
}

// Load resolves path inside the data directory and returns one raw JSON
// value per record. Records are not validated here.
func (l *Loader) Load(ctx context.Context, path string) ([]json.RawMessage, string, error) {
	resolved, err := safepath.Resolve(l.baseDir, path)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, resolved, fmt.Errorf("%w: %s", ErrInputNotFound, resolved)
		}
		return nil, resolved, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, resolved, fmt.Errorf("stat input: %w", err)
	}
	if info.IsDir() {
		return nil, resolved, fmt.Errorf("%w: %s is a directory", ErrInputNotFound, resolved)
	}

	records, err := Decode(ctx, f)
	if err != nil {
		return nil, resolved, fmt.Errorf("decode %s: %w", resolved, err)
	}
	l.log.Info("input loaded", zap.String("path", resolved), zap.Int("records", len(records)), zap.Int64("bytes", info.Size()))
	return records, resolved, nil
}

// Decode accepts either a JSON array of records or a stream of
// whitespace/newline separated JSON values.
func Decode(ctx context.Context, r io.Reader) ([]json.RawMessage, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	if first == '[' {
		var records []json.RawMessage
		if err := dec.Decode(&records); err != nil {
			return nil, err
		}
		if _, err := dec.Token(); err != io.EOF {
			return nil, errors.New("unexpected data after top-level array")
		}
		return records, nil
	}

	var records []json.RawMessage
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec json.RawMessage
		err := dec.Decode(&rec)
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
