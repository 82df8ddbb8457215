package download

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/flaredantic/flaredantic-go/internal/domain/model"
)

const manifestSuffix = ".manifest.yaml"

func manifestPathFor(binPath string) string {
	ext := filepath.Ext(binPath)
	return binPath[:len(binPath)-len(ext)] + manifestSuffix
}

// ReadManifest loads the manifest stored next to binPath.
func ReadManifest(binPath string) (*model.BinaryManifest, error) {
	return readManifest(manifestPathFor(binPath))
}

func readManifest(path string) (*model.BinaryManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var manifest model.BinaryManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if manifest.BLAKE3 == "" {
		return nil, fmt.Errorf("%s has no digest", path)
	}
	return &manifest, nil
}

// writeManifest replaces path atomically.
func writeManifest(path string, manifest *model.BinaryManifest) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
