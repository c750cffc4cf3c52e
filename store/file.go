package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"path"

	"github.com/zeu5/mdp-planner/types"
)

// FileCache keeps one JSON value table per key in a folder
type FileCache struct {
	dir string
}

var _ Cache = &FileCache{}

func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir}
}

func (c *FileCache) file(key string) string {
	sum := sha256.Sum256([]byte(key))
	return path.Join(c.dir, hex.EncodeToString(sum[:8])+".json")
}

func (c *FileCache) Get(_ context.Context, key string) (types.ValueTable, bool, error) {
	values, err := types.LoadValueTable(c.file(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return values, true, nil
}

func (c *FileCache) Put(_ context.Context, key string, values types.ValueTable) error {
	return values.Record(c.file(key))
}
