// Package scenefile reads and writes timeline scenes and replay scripts as YAML.
package scenefile

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/heimdex/timeline-agent/internal/timeline"
)

// FormatVersion is written into every scene file.
const FormatVersion = 1

type document struct {
	Format            int `yaml:"format"`
	timeline.Snapshot `yaml:",inline"`
}

// Encode writes a snapshot as a YAML scene document.
func Encode(w io.Writer, snap timeline.Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Format: FormatVersion, Snapshot: snap}); err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}
	return enc.Close()
}

// Decode reads a scene document and rebuilds the timeline it describes.
func Decode(r io.Reader) (*timeline.Timeline, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("decode scene: empty document")
		}
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	if doc.Format != FormatVersion {
		return nil, fmt.Errorf("unsupported scene format %d", doc.Format)
	}

	tl, err := timeline.FromSnapshot(doc.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}
	return tl, nil
}

// Save writes snap to path, replacing any existing file.
func Save(path string, snap timeline.Snapshot) error {
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write scene: %w", err)
	}
	return nil
}

func Load(path string) (*timeline.Timeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
