package ports

import (
	"io"
	"os"
)

// Workspace is the local filesystem area holding uploads, temporary working
// directories and the single-slot output directory.
type Workspace interface {
	EnsureLayout() error
	OutputDir() string

	// RecreateOutputDir deletes the output directory and everything in it, then creates it empty.
	RecreateOutputDir() error
	ClearOutput() error
	ListOutput() ([]os.FileInfo, error)

	TempDir(prefix string) (string, error)
	RemoveAll(path string) error

	WriteFile(path string, data []byte) error
	CopyIntoOutput(src, name string) (string, error)
	Open(path string) (io.ReadCloser, error)
	Stat(path string) (os.FileInfo, error)
	Exists(path string) bool
}
