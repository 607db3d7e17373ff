// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/railsim/formation/internal/storage"
)

// ExportVersion is written into every export file.
const ExportVersion = 1

// Export is the root JSON structure of a snapshot file
type Export struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	storage.Snapshot
}

func exportName(start time.Time) string {
	return "formations_" + start.Format("20060102_150405")
}

// exportJSON writes the stored state to a (gzipped) JSON file.
// Must be called with b.mu held.
func (b *Backend) exportJSON() error {
	export := Export{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Snapshot:   b.snapshot(),
	}

	// Build filename
	filename := exportName(b.startTime) + ".json"
	if b.cfg.CompressOutput {
		filename += ".gz"
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Write file
	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

// Import replaces the stored state with the contents of an export file.
// Files ending in .gz are decompressed.
func (b *Backend) Import(path string) error {
	export, err := ReadExport(path)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.formations)
	clear(b.cars)
	for _, f := range export.Formations {
		b.formations[f.ID] = f
	}
	for _, c := range export.Cars {
		b.cars[c.ID] = c
	}
	return nil
}

// ReadExport decodes an export file.
func ReadExport(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var export Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to decode export: %w", err)
	}
	if export.Version != ExportVersion {
		return nil, fmt.Errorf("unsupported export version %d", export.Version)
	}
	return &export, nil
}

func writeJSON(path string, data Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
