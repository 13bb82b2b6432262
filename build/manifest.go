package build

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"
)

// ManifestFile is the rebuild manifest's file name inside a project
// directory.
const ManifestFile = "last_rebuild.json.zst"

// Manifest records what a rebuild produced: when it ran, whether
// overrides were applied, and per scenario the active overrides and the
// number of fact-table rows. It is written after every successful
// rebuild as a zstd-compressed JSON artifact for operators and tooling.
type Manifest struct {
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	UseOverrides bool            `json:"use_overrides"`
	Scenarios    []ScenarioBuild `json:"scenarios"`
}

// ScenarioBuild records one scenario's contribution to the fact table.
type ScenarioBuild struct {
	Name      string   `json:"name"`
	Overrides []string `json:"overrides,omitempty"`
	Rows      int64    `json:"rows"`
}

// WriteManifest serializes the manifest to path as zstd-compressed JSON.
func WriteManifest(m *Manifest, path string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	compressed := encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close zstd encoder: %w", err)
	}
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer decoder.Close()
	data, err := decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
