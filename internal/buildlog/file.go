package buildlog

import (
	"fmt"
	"io"
	"os"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
)

// StdinPath selects standard input in ReadLocal.
const StdinPath = "-"

// ReadLocal reads a saved console log or commit JSON from disk, or from
// stdin when path is StdinPath. Inputs larger than maxBytes are rejected;
// maxBytes <= 0 disables the check.
func ReadLocal(path string, maxBytes int64) (string, error) {
	if path == StdinPath {
		return readLimited(os.Stdin, path, maxBytes)
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", internalerrors.Validation("file.read", "file not found: %s", path)
		}
		return "", internalerrors.Validation("file.read", "failed to stat %s: %v", path, err)
	}
	if fileInfo.IsDir() {
		return "", internalerrors.Validation("file.read", "%s is a directory", path)
	}
	if fileInfo.Mode().Perm()&0400 == 0 {
		return "", internalerrors.Validation("file.read", "file is not readable: %s", path)
	}
	if maxBytes > 0 && fileInfo.Size() > maxBytes {
		return "", internalerrors.Validation("file.read", "%s exceeds maximum size of %.0fMB (size: %.2fMB)",
			path, float64(maxBytes)/1024/1024, float64(fileInfo.Size())/1024/1024)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", internalerrors.Validation("file.read", "failed to open %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	return readLimited(f, path, maxBytes)
}

// readLimited reads r fully, failing once more than maxBytes arrive.
func readLimited(r io.Reader, name string, maxBytes int64) (string, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return "", internalerrors.Validation("file.read", "%s exceeds maximum size of %d bytes", name, maxBytes)
	}
	return string(content), nil
}
