package fsstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"image3d-service/internal/config"
	"image3d-service/internal/core/domain"
	ports "image3d-service/internal/core/ports/output"
)

type workspace struct {
	fs        afero.Fs
	uploadDir string
	outputDir string
	tempRoot  string
}

// NewWorkspace creates a workspace adapter over fs. Use afero.NewOsFs() in production.
func NewWorkspace(fs afero.Fs, cfg *config.WorkspaceConfig) ports.Workspace {
	return &workspace{
		fs:        fs,
		uploadDir: filepath.Clean(cfg.UploadDir),
		outputDir: filepath.Clean(cfg.OutputDir),
		tempRoot:  cfg.TempDir,
	}
}

func (w *workspace) EnsureLayout() error {
	for _, dir := range []string{w.uploadDir, w.outputDir} {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %v", domain.ErrFilesystem, dir, err)
		}
	}
	return nil
}

func (w *workspace) OutputDir() string {
	return w.outputDir
}

func (w *workspace) RecreateOutputDir() error {
	if err := w.fs.RemoveAll(w.outputDir); err != nil {
		return fmt.Errorf("%w: remove output directory: %v", domain.ErrFilesystem, err)
	}
	if err := w.fs.MkdirAll(w.outputDir, 0o755); err != nil {
		return fmt.Errorf("%w: create output directory: %v", domain.ErrFilesystem, err)
	}
	return nil
}

// ClearOutput removes every entry of the output directory but keeps the directory.
func (w *workspace) ClearOutput() error {
	entries, err := afero.ReadDir(w.fs, w.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read output directory: %v", domain.ErrFilesystem, err)
	}
	for _, e := range entries {
		if err := w.fs.RemoveAll(filepath.Join(w.outputDir, e.Name())); err != nil {
			return fmt.Errorf("%w: remove %s: %v", domain.ErrFilesystem, e.Name(), err)
		}
	}
	return nil
}

func (w *workspace) ListOutput() ([]os.FileInfo, error) {
	entries, err := afero.ReadDir(w.fs, w.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read output directory: %v", domain.ErrFilesystem, err)
	}
	files := entries[:0]
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e)
		}
	}
	return files, nil
}

func (w *workspace) TempDir(prefix string) (string, error) {
	dir, err := afero.TempDir(w.fs, w.tempRoot, prefix)
	if err != nil {
		return "", fmt.Errorf("%w: create temp dir: %v", domain.ErrFilesystem, err)
	}
	return dir, nil
}

func (w *workspace) RemoveAll(path string) error {
	if err := w.fs.RemoveAll(path); err != nil {
		return fmt.Errorf("%w: remove %s: %v", domain.ErrFilesystem, path, err)
	}
	return nil
}

func (w *workspace) WriteFile(path string, data []byte) error {
	if err := afero.WriteFile(w.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrFilesystem, path, err)
	}
	return nil
}

// CopyIntoOutput copies src into the output directory under name and returns the new path.
func (w *workspace) CopyIntoOutput(src, name string) (string, error) {
	dst := filepath.Join(w.outputDir, filepath.Base(name))

	in, err := w.fs.Open(src)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", domain.ErrFilesystem, src, err)
	}
	defer in.Close()

	out, err := w.fs.Create(dst)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %v", domain.ErrFilesystem, dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("%w: copy to %s: %v", domain.ErrFilesystem, dst, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %v", domain.ErrFilesystem, dst, err)
	}
	return dst, nil
}

func (w *workspace) Open(path string) (io.ReadCloser, error) {
	f, err := w.fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrFilesystem, path, err)
	}
	return f, nil
}

func (w *workspace) Stat(path string) (os.FileInfo, error) {
	return w.fs.Stat(path)
}

func (w *workspace) Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := w.fs.Stat(path)
	return err == nil && !info.IsDir()
}
