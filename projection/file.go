package projection

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/datazip-inc/streamcatchup/constants"
)

// File stores each projection as a JSON document named after its id inside
// a directory. Writes go to a temp file first and are renamed into place.
type File[P any] struct {
	keyedLocks
	dir string
}

func NewFile[P any](dir string) (*File[P], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create projection directory %s: %s", dir, err)
	}
	return &File[P]{dir: dir}, nil
}

func (f *File[P]) path(id string) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s.%s", url.PathEscape(id), constants.ProjectionFileExt))
}

func (f *File[P]) FetchAndSave(ctx context.Context, id string, update UpdateFunc[P]) error {
	unlock := f.lock(id)
	defer unlock()

	current, _, err := f.Get(id)
	if err != nil {
		return err
	}

	next, err := update(ctx, current)
	if err != nil {
		return err
	}

	return f.write(id, next)
}

// Get reads the projection stored under id; found is false when no document exists
func (f *File[P]) Get(id string) (P, bool, error) {
	var projection P
	data, err := os.ReadFile(f.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return projection, false, nil
	}
	if err != nil {
		return projection, false, fmt.Errorf("failed to read projection[%s]: %s", id, err)
	}

	if err := json.Unmarshal(data, &projection); err != nil {
		return projection, false, fmt.Errorf("failed to decode projection[%s]: %s", id, err)
	}
	return projection, true, nil
}

// IDs lists the ids of every stored projection
func (f *File[P]) IDs() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}

	suffix := "." + constants.ProjectionFileExt
	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, suffix))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *File[P]) write(id string, projection P) error {
	data, err := json.Marshal(projection)
	if err != nil {
		return fmt.Errorf("failed to encode projection[%s]: %s", id, err)
	}

	tmp, err := os.CreateTemp(f.dir, ".projection-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for projection[%s]: %s", id, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write projection[%s]: %s", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write projection[%s]: %s", id, err)
	}

	return os.Rename(tmp.Name(), f.path(id))
}
