package tile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ErrProjectNotFound is returned when no project file exists for an id.
var ErrProjectNotFound = errors.New("project not found")

// Project is an ordered list of tiles.
type Project struct {
	ID    string  `json:"id"`
	Name  string  `json:"name,omitempty"`
	Tiles []*Tile `json:"tiles"`
}

// Store persists projects.
type Store interface {
	Load(ctx context.Context, id string) (*Project, error)
	Save(ctx context.Context, p *Project) error
	List(ctx context.Context) ([]string, error)
}

// FileStore keeps one JSON file per project under dir.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore creates a store rooted at dir on fs.
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fs, dir: dir}
}

func (s *FileStore) path(id string) string { return path.Join(s.dir, id+".json") }

// Load reads a project. A corrupt file yields an empty project.
func (s *FileStore) Load(ctx context.Context, id string) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("invalid project id %q", id)
	}
	p, err := ReadFile(s.fs, s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
		}
		return nil, err
	}
	if p.ID == "" {
		p.ID = id
	}
	return p, nil
}

// Save writes a project atomically.
func (s *FileStore) Save(ctx context.Context, p *Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p == nil || p.ID == "" {
		return errors.New("project id required")
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	return WriteFile(s.fs, s.path(p.ID), p)
}

// List returns the stored project ids in lexical order.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ReadFile loads a project from an explicit path. Unparsable JSON is logged
// and treated as an empty project.
func ReadFile(fs afero.Fs, name string) (*Project, error) {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, err
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Warn("corrupt project file, starting empty", "path", name, "error", err)
		return &Project{}, nil
	}
	return &p, nil
}

// WriteFile stores a project at an explicit path via a temp file and rename.
func WriteFile(fs afero.Fs, name string, p *Project) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	tmp := name + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	if err := fs.Rename(tmp, name); err != nil {
		return fmt.Errorf("commit project: %w", err)
	}
	return nil
}
