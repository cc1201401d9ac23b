// Package manifest tracks the dependency manifest an environment was built
// from. The stamp written after setup lets later runs notice drift; it never
// triggers a reinstall on its own.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/JakeFAU/scrapelauncher/internal/hash/sha256"
)

// StampFile is the name of the stamp inside the environment directory.
const StampFile = ".launcher-stamp.json"

// ErrManifestMissing is returned when the manifest file does not exist.
var ErrManifestMissing = errors.New("dependency manifest not found")

// ErrNoStamp is returned when an environment carries no stamp.
var ErrNoStamp = errors.New("environment stamp not found")

// Stamp records what an environment was provisioned with.
type Stamp struct {
	ManifestDigest string    `json:"manifest_sha256"`
	BrowserEngine  string    `json:"browser_engine"`
	CreatedAt      time.Time `json:"created_at"`
}

// Drift describes how the current inputs differ from a stamp.
type Drift struct {
	ManifestChanged bool
	EngineChanged   bool
}

// Any reports whether anything drifted.
func (d Drift) Any() bool {
	return d.ManifestChanged || d.EngineChanged
}

// Digest returns the SHA-256 of the manifest at path.
func Digest(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrManifestMissing, path)
		}
		return "", fmt.Errorf("stat manifest: %w", err)
	}
	digest, err := sha256.New().HashFile(path)
	if err != nil {
		return "", fmt.Errorf("digest manifest: %w", err)
	}
	return digest, nil
}

// WriteStamp stores stamp inside envDir.
func WriteStamp(envDir string, stamp Stamp) error {
	data, err := json.MarshalIndent(stamp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stamp: %w", err)
	}
	if err := os.WriteFile(filepath.Join(envDir, StampFile), data, 0o600); err != nil {
		return fmt.Errorf("write stamp: %w", err)
	}
	return nil
}

// ReadStamp loads the stamp from envDir.
func ReadStamp(envDir string) (Stamp, error) {
	data, err := os.ReadFile(filepath.Join(envDir, StampFile)) //nolint:gosec // fixed name under env dir
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Stamp{}, ErrNoStamp
		}
		return Stamp{}, fmt.Errorf("read stamp: %w", err)
	}
	var stamp Stamp
	if err := json.Unmarshal(data, &stamp); err != nil {
		return Stamp{}, fmt.Errorf("decode stamp: %w", err)
	}
	return stamp, nil
}

// Compare reports drift between stamp and the current manifest digest and engine.
func Compare(stamp Stamp, manifestDigest, engine string) Drift {
	return Drift{
		ManifestChanged: stamp.ManifestDigest != manifestDigest,
		EngineChanged:   stamp.BrowserEngine != engine,
	}
}
