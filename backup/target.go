package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/warp/nurse-pay/generic"
)

// Object is one stored backup.
type Object struct {
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// Target is a place backups are written to.
//
// List returns backup objects only (see IsBackupKey), oldest first. Get
// on a missing key fails with generic.ErrNoBackup. Delete of a missing key
// succeeds.
type Target interface {
	Name() string
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context) ([]Object, error)
	Delete(ctx context.Context, key string) error
}

const (
	keyPrefix = "nurse-pay-backup-"
	keySuffix = ".json"
)

// ObjectKey names the backup taken at t. Keys sort chronologically.
func ObjectKey(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return keyPrefix + ts + keySuffix
}

// IsBackupKey reports whether a key was produced by ObjectKey.
func IsBackupKey(key string) bool {
	return strings.HasPrefix(key, keyPrefix) && strings.HasSuffix(key, keySuffix)
}

func sortObjects(objs []Object) {
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })
}

// =============================================================================
// DIRECTORY TARGET
// =============================================================================

// DirTarget stores backups as files in a local directory.
type DirTarget struct {
	dir string
}

// NewDirTarget creates the directory if needed.
func NewDirTarget(dir string) (*DirTarget, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &DirTarget{dir: dir}, nil
}

func (d *DirTarget) Name() string { return "dir:" + d.dir }

// Put writes through a temporary file so a crash never leaves a truncated
// backup under a valid key.
func (d *DirTarget) Put(_ context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(d.dir, ".tmp-"+key+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(d.dir, key))
}

func (d *DirTarget) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(d.dir, filepath.Base(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", generic.ErrNoBackup, key)
	}
	return data, err
}

func (d *DirTarget) List(_ context.Context) ([]Object, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	objs := []Object{}
	for _, e := range entries {
		if e.IsDir() || !IsBackupKey(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		objs = append(objs, Object{Key: e.Name(), Size: info.Size(), ModTime: info.ModTime().UTC()})
	}
	sortObjects(objs)
	return objs, nil
}

func (d *DirTarget) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(d.dir, filepath.Base(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
