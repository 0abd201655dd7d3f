package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/OCAP2/physbridge/internal/storage/memory/export/v1"
	"github.com/OCAP2/physbridge/pkg/core"
)

// exportJSON writes the session data to a JSON file, gzipped when
// configured. Callers hold b.mu.
func (b *Backend) exportJSON() error {
	export := v1.Build(&v1.SessionData{
		Session:     b.session,
		Bodies:      b.bodies,
		Constraints: b.constraints,
		Vehicles:    b.vehicles,
		Removals:    b.removals,
		Collisions:  b.collisions,
		Commands:    b.commands,
		StepMetrics: b.stepMetrics,
	})

	outputPath := filepath.Join(b.cfg.OutputDir, exportFileName(b.session, b.cfg.CompressOutput))
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastExportMetadata = core.UploadMetadata{
		SessionName:     b.session.Name,
		SessionUUID:     b.session.UUID,
		Tag:             b.session.Tag,
		Steps:           export.EndStep,
		SessionDuration: float64(export.EndStep) * b.session.FixedTimeStep,
	}
	return nil
}

// exportFileName is <name>_<yyyymmdd_hhmmss>.json[.gz] with spaces and
// colons in the name replaced.
func exportFileName(s *core.Session, compress bool) string {
	name := s.Name
	if name == "" {
		name = "session"
	}
	name = strings.NewReplacer(" ", "_", ":", "_").Replace(name)
	timestamp := s.StartTime.Format("20060102_150405")

	if compress {
		return fmt.Sprintf("%s_%s.json.gz", name, timestamp)
	}
	return fmt.Sprintf("%s_%s.json", name, timestamp)
}

// GetExportedFilePath returns the path of the last export, or "".
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last export.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMetadata
}

func writeJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data v1.Export) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return err
	}
	return gzWriter.Close()
}
