// Package atomicwrite provee escritura atómica de archivos para el estado
// persistido del cliente. Windows-safe: si rename falla, intenta
// remove+rename (el archivo viejo sobrevive si el segundo rename falla).
package atomicwrite

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// AtomicWriteFile escribe data a path de forma atómica.
// Pasos: write tmp → Sync → Close → Chmod → Rename.
//
// El estado de sesión se reescribe completo en cada cambio; un write parcial
// por crash nunca debe dejar un archivo corrupto a medio camino.
func AtomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()

	// Cleanup en caso de error
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	_ = os.Chmod(tmpPath, perm)

	// En Windows os.Rename puede fallar si el destino está bloqueado.
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			return fmt.Errorf("rename: %v (after remove: %v)", err, err2)
		}
	}

	return nil
}
