package vectorindex

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Persist writes the index into dir. Files are written into a sibling
// temporary directory first and swapped into place, so readers never see a
// partial index.
func (x *Index) Persist(dir string) error {
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("cannot create index parent %s: %w", parent, err)
	}
	tmp, err := os.MkdirTemp(parent, filepath.Base(dir)+".tmp-")
	if err != nil {
		return fmt.Errorf("cannot create staging dir: %w", err)
	}
	if err := x.write(tmp); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}
	if err := atomicSwap(tmp, dir); err != nil {
		_ = os.RemoveAll(tmp)
		return fmt.Errorf("cannot swap index into %s: %w", dir, err)
	}
	return nil
}

func (x *Index) write(dir string) error {
	mb, err := json.MarshalIndent(x.manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), mb, 0o644); err != nil {
		return fmt.Errorf("cannot write manifest: %w", err)
	}

	eb, err := json.MarshalIndent(x.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), eb, 0o644); err != nil {
		return fmt.Errorf("cannot write metadata: %w", err)
	}

	vf, err := os.Create(filepath.Join(dir, vectorFile))
	if err != nil {
		return fmt.Errorf("cannot create vector file: %w", err)
	}
	bw := bufio.NewWriter(vf)
	if err := binary.Write(bw, binary.LittleEndian, x.vectors); err != nil {
		_ = vf.Close()
		return fmt.Errorf("cannot write vectors: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = vf.Close()
		return err
	}
	if err := vf.Sync(); err != nil {
		_ = vf.Close()
		return err
	}
	return vf.Close()
}

// atomicSwap replaces destDir with srcDir, restoring the previous directory
// when the final rename fails.
func atomicSwap(srcDir, destDir string) error {
	backup := destDir + ".bak"
	_ = os.RemoveAll(backup)
	if _, err := os.Stat(destDir); err == nil {
		if err := os.Rename(destDir, backup); err != nil {
			return err
		}
	}
	if err := os.Rename(srcDir, destDir); err != nil {
		if _, stErr := os.Stat(backup); stErr == nil {
			_ = os.Rename(backup, destDir)
		}
		return err
	}
	_ = os.RemoveAll(backup)
	return nil
}
