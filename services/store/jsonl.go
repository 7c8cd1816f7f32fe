package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"

	"zephuris/divarworker/internal/ad"
	"zephuris/divarworker/logger"
	scrapeerrors "zephuris/divarworker/pkg/errors"
)

// JSONLStore keeps one JSON object per line, UTF-8 without HTML escaping
type JSONLStore struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// NewJSONLStore creates a store backed by the file at path
func NewJSONLStore(path string) *JSONLStore {
	return &JSONLStore{path: path}
}

// Load reads every record in the file. Besides JSON lines it accepts a
// JSON array and back-to-back pretty-printed objects, the layouts written
// by earlier versions. A missing file is an empty collection.
func (s *JSONLStore) Load(ctx context.Context) ([]ad.Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, scrapeerrors.NewStorage("jsonl", "failed to read "+s.path, err)
	}

	var records []ad.Record
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var raw json.RawMessage
		err := dec.Decode(&raw)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, scrapeerrors.NewStorage("jsonl", "malformed collection "+s.path, err)
		}

		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			var batch []ad.Record
			if err := json.Unmarshal(raw, &batch); err != nil {
				return nil, scrapeerrors.NewStorage("jsonl", "malformed record array in "+s.path, err)
			}
			records = append(records, batch...)
			continue
		}

		var rec ad.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, scrapeerrors.NewStorage("jsonl", "malformed record in "+s.path, err)
		}
		records = append(records, rec)
	}

	logger.ForStore().Debug().Str("path", s.path).Int("records", len(records)).Msg("Loaded collection")
	return records, nil
}

// Append writes rec as a single line at the end of the file
func (s *JSONLStore) Append(ctx context.Context, rec ad.Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return scrapeerrors.NewStorage("jsonl", "failed to encode record", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return scrapeerrors.NewStorage("jsonl", "failed to open "+s.path, err)
		}
		if err := startOnNewLine(f); err != nil {
			f.Close()
			return scrapeerrors.NewStorage("jsonl", "failed to prepare "+s.path, err)
		}
		s.file = f
	}

	if _, err := s.file.Write(buf.Bytes()); err != nil {
		return scrapeerrors.NewStorage("jsonl", "failed to append to "+s.path, err)
	}
	return nil
}

// Close closes the output file
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// startOnNewLine writes a newline when a non-empty file does not end with one
func startOnNewLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return err
	}

	r, err := os.Open(f.Name())
	if err != nil {
		return err
	}
	defer r.Close()

	last := make([]byte, 1)
	if _, err := r.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte{'\n'})
	return err
}
