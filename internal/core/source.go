package core

// source.go provides the readable handle the pipeline tokenizes.
//
// By default the upload is read straight from memory. When a staging
// directory is configured the content is first written to disk and then
// re-opened, which is the only way ErrSourceNotFound can occur.

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// utf8BOM is the byte order mark Excel prepends to "CSV UTF-8" exports.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// openSource returns a reader over the upload content. The caller must
// close it on every path.
func openSource(stagingDir, uploadID, fileName string, data []byte) (io.ReadCloser, error) {
	if stagingDir == "" {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	path, err := stage(stagingDir, uploadID, fileName, data)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, importErr(ErrSourceNotFound, fileName, path, err)
	}
	return &stagedFile{File: f, path: path}, nil
}

// stage writes data under dir using the upload ID to avoid collisions
// between concurrent uploads of the same file name.
func stage(dir, uploadID, fileName string, data []byte) (string, error) {
	path := filepath.Join(dir, uploadID+"_"+filepath.Base(fileName))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", importErr(ErrSourceNotFound, fileName, "stage upload", err)
	}
	return path, nil
}

// stagedFile removes the staged copy once it has been read.
type stagedFile struct {
	*os.File
	path string
}

func (f *stagedFile) Close() error {
	closeErr := f.File.Close()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove staged file: %w", err)
	}
	return closeErr
}

// prepareContent strips a leading BOM and replaces invalid UTF-8 so that
// names can be stored in a UTF-8 database.
func prepareContent(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	return sanitizeUTF8(data)
}

func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
