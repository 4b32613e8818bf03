package persist

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

const fileExt = ".msgpack"

type fileStore struct {
	dir string
}

var _ Store = (*fileStore)(nil)

// NewFileStore returns a Store keeping one msgpack file per record in dir.
// File names are the hash of the full key, so keys may contain any character.
func NewFileStore(dir string) (Store, error) {
	if dir == "" {
		return nil, errors.New("persist: file store requires a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "persist: create %s", dir)
	}
	return &fileStore{dir: dir}, nil
}

func (s *fileStore) path(key string) string {
	return filepath.Join(s.dir, HashKey(key)+fileExt)
}

func (s *fileStore) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := encode(rec)
	if err != nil {
		return err
	}
	// write then rename so a crash never leaves a truncated record behind
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "persist: create temp file")
	}
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "persist: write %q", rec.Key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "persist: write %q", rec.Key)
	}
	if err := os.Rename(tmp.Name(), s.path(rec.Key)); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "persist: rename %q", rec.Key)
	}
	return nil
}

func (s *fileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "persist: delete %q", key)
	}
	return nil
}

func (s *fileStore) Load(ctx context.Context) ([]Record, error) {
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "persist: read %s", s.dir)
	}
	var (
		records []Record
		failed  loadErrors
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		if f.IsDir() || !strings.HasSuffix(f.Name(), fileExt) {
			continue
		}
		fn := filepath.Join(s.dir, f.Name())
		buf, err := os.ReadFile(fn)
		if err != nil {
			failed.add(errors.Wrapf(err, "persist: read %s", f.Name()))
			continue
		}
		rec, err := decode(buf)
		if err != nil {
			failed.add(errors.Wrapf(err, "persist: %s", f.Name()))
			if rmErr := os.Remove(fn); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				failed.add(errors.Wrapf(rmErr, "persist: remove %s", f.Name()))
			}
			continue
		}
		records = append(records, rec)
	}
	return records, failed.err()
}

func (s *fileStore) Close() error {
	return nil
}
