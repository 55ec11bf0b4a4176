package server

import (
	"os"
	"path/filepath"
)

// DirFileStore answers upload-existence checks against a local directory,
// where the upload handler writes files as <id>.<ext>.
type DirFileStore struct {
	dir string
}

func NewDirFileStore(dir string) *DirFileStore {
	return &DirFileStore{dir: dir}
}

func (fs *DirFileStore) Exists(fileId, ext string) bool {
	name := fileId
	if ext != "" {
		name += "." + ext
	}

	info, err := os.Stat(filepath.Join(fs.dir, name))
	return err == nil && !info.IsDir()
}
