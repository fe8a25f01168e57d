package tools

import (
	"os"

	"github.com/danib549/gofer/internal/fileutil"
)

// AtomicWrite writes data to a file atomically using a tmp file plus
// rename. Convenience wrapper around fileutil.AtomicWrite.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	return fileutil.AtomicWrite(path, data, perm)
}
