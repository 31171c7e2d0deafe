// Package provision copies assets (background images, icons, fonts, the
// placeholder) from removable media into the internal data directory.
// It runs once, on cold boot; later activations only verify presence.
package provision

import (
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
)

// Provisioner syncs sourceDir (the removable mount) into dataDir.
type Provisioner struct {
	sourceDir string
	dataDir   string
}

func New(sourceDir, dataDir string) *Provisioner {
	return &Provisioner{sourceDir: sourceDir, dataDir: dataDir}
}

// Sync copies every file missing from the data dir and returns how many
// were copied. A missing or unmounted source is not an error: the device
// keeps whatever assets it already has.
func (p *Provisioner) Sync() (int, error) {
	if _, err := os.Stat(p.sourceDir); err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("provision: source %s: %w", p.sourceDir, err)
	}

	copied := 0
	err := filepath.WalkDir(p.sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.sourceDir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(p.dataDir, rel)
		if _, err := os.Stat(dst); err == nil {
			return nil // already provisioned
		}
		if err := copyFile(path, dst); err != nil {
			return fmt.Errorf("provision: copy %s: %w", rel, err)
		}
		copied++
		return nil
	})
	if copied > 0 {
		log.Printf("provision: copied %d assets from %s", copied, p.sourceDir)
	}
	return copied, err
}

// EnsureAsset reports whether the asset exists in the data dir, copying
// it from the source first if only the source has it.
func (p *Provisioner) EnsureAsset(rel string) bool {
	dst := filepath.Join(p.dataDir, rel)
	if _, err := os.Stat(dst); err == nil {
		return true
	}
	src := filepath.Join(p.sourceDir, rel)
	if _, err := os.Stat(src); err != nil {
		return false
	}
	if err := copyFile(src, dst); err != nil {
		log.Printf("provision: %v", err)
		return false
	}
	return true
}

// Path resolves an asset name inside the data dir.
func (p *Provisioner) Path(rel string) string {
	return filepath.Join(p.dataDir, rel)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
