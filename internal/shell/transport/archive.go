package transport

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"
)

// archiveModTime is stamped on every entry so identical trees produce
// identical archives.
var archiveModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Archive is a zipped package and the sha256 digest of its bytes.
type Archive struct {
	Data   []byte
	Digest string
}

// BuildArchive zips every regular file under dir. Entries are sorted, use
// forward slashes, and carry a fixed timestamp and normalized permissions.
func BuildArchive(dir string) (*Archive, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, NewTransportError("Archive", "", "", errors.Join(ErrArchiveFailed, err))
	}
	sort.Strings(files)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range files {
		if err := addFile(zw, dir, name); err != nil {
			return nil, NewTransportError("Archive", "", "", errors.Join(ErrArchiveFailed, err))
		}
	}
	if err := zw.Close(); err != nil {
		return nil, NewTransportError("Archive", "", "", errors.Join(ErrArchiveFailed, err))
	}

	sum := sha256.Sum256(buf.Bytes())
	return &Archive{Data: buf.Bytes(), Digest: hex.EncodeToString(sum[:])}, nil
}

func addFile(zw *zip.Writer, dir, name string) error {
	path := filepath.Join(dir, filepath.FromSlash(name))
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: archiveModTime,
	}
	mode := fs.FileMode(0o644)
	if info.Mode().Perm()&0o111 != 0 {
		mode = 0o755
	}
	header.SetMode(mode)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// ReadArchive lists the entries of a zip archive with their contents.
func ReadArchive(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, NewTransportError("ReadArchive", "", "", errors.Join(ErrArchiveFailed, err))
	}
	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, NewTransportError("ReadArchive", "", f.Name, errors.Join(ErrArchiveFailed, err))
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, NewTransportError("ReadArchive", "", f.Name, errors.Join(ErrArchiveFailed, err))
		}
		entries[f.Name] = content
	}
	return entries, nil
}
