package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"

	"github.com/spf13/afero"

	"github.com/MeKo-Tech/spreadmap/internal/ordering"
)

// Store persists PDF entries. Implementations must tolerate corrupt records
// by returning them empty rather than failing the whole load.
type Store interface {
	LoadAll(ctx context.Context) ([]*PdfEntry, error)
	Save(ctx context.Context, e *PdfEntry) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// FileStore keeps all entries in one JSON document on an afero filesystem.
type FileStore struct {
	mu   sync.Mutex
	fs   afero.Fs
	name string
}

// NewFileStore creates a store backed by the file name on fs.
func NewFileStore(fs afero.Fs, name string) *FileStore {
	return &FileStore{fs: fs, name: name}
}

type fileDocument struct {
	Entries map[string]json.RawMessage `json:"entries"`
}

func (s *FileStore) read() (fileDocument, error) {
	doc := fileDocument{Entries: map[string]json.RawMessage{}}
	data, err := afero.ReadFile(s.fs, s.name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("read session file: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("corrupt session file, starting empty", "path", s.name, "error", err)
		return fileDocument{Entries: map[string]json.RawMessage{}}, nil
	}
	if doc.Entries == nil {
		doc.Entries = map[string]json.RawMessage{}
	}
	return doc, nil
}

func (s *FileStore) write(doc fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if dir := path.Dir(s.name); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}
	}
	tmp := s.name + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return s.fs.Rename(tmp, s.name)
}

// LoadAll returns every stored entry.
func (s *FileStore) LoadAll(ctx context.Context) ([]*PdfEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]*PdfEntry, 0, len(doc.Entries))
	for id, raw := range doc.Entries {
		out = append(out, decodeEntry(id, raw))
	}
	return out, nil
}

// Save upserts one entry.
func (s *FileStore) Save(ctx context.Context, e *PdfEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeEntry(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Entries[e.ID] = json.RawMessage(raw)
	return s.write(doc)
}

// Delete removes one entry. Unknown ids are ignored.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := doc.Entries[id]; !ok {
		return nil
	}
	delete(doc.Entries, id)
	return s.write(doc)
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// decodeEntry parses a stored payload. A corrupt payload yields an empty
// entry keeping its id so the PDF remains listed.
func decodeEntry(id string, raw []byte) *PdfEntry {
	var e PdfEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		slog.Warn("corrupt session entry, starting empty", "pdf_id", id, "error", err)
		e = PdfEntry{}
	}
	if e.ID == "" {
		e.ID = id
	}
	if e.Pages == nil {
		e.Pages = make(map[int]*PageDetectionState)
	}
	for n, st := range e.Pages {
		if st == nil {
			slog.Warn("corrupt page state, dropping", "pdf_id", id, "page", n)
			delete(e.Pages, n)
			continue
		}
		if st.RectConfigs == nil {
			st.RectConfigs = ordering.Configs{}
		}
		if st.CurrentOrderCounter < 1 {
			st.CurrentOrderCounter = 1
		}
	}
	return &e
}

func encodeEntry(e *PdfEntry) (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode entry %s: %w", e.ID, err)
	}
	return string(data), nil
}
