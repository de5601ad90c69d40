// Package worker materializes generated filing archives on disk. The
// HTTP process stores generations and announces them over AMQP; this
// worker rebuilds each announced archive from its snapshot and writes
// it to the export directory.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ppkgen/internal/amqp"
	"ppkgen/internal/services"
)

type ExportWorker struct {
	filings   *services.FilingService
	exportDir string
}

func NewExportWorker(filings *services.FilingService, exportDir string) *ExportWorker {
	return &ExportWorker{
		filings:   filings,
		exportDir: exportDir,
	}
}

// HandleGenerationEvent rebuilds the announced generation's archive and
// writes it under the export directory. Rebuilding uses the stored
// snapshot, so edits made after the generation never change the file.
func (w *ExportWorker) HandleGenerationEvent(ctx context.Context, event *amqp.GenerationEvent) error {
	slog.InfoContext(ctx, "Processing generation event",
		"generation_id", event.GenerationID,
		"organization_id", event.OrganizationID)

	result, err := w.filings.ExportGeneration(ctx, event.GenerationID)
	if err != nil {
		return fmt.Errorf("export generation %d: %w", event.GenerationID, err)
	}

	path, err := w.writeArchive(result.Generation.FilePath, result.ZipBytes)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Generation archive exported",
		"generation_id", event.GenerationID,
		"path", path,
		"size_bytes", len(result.ZipBytes))

	return nil
}

// ExportAll rebuilds every stored generation of an organization. Used as
// a catch-up when events were lost while the worker was down.
func (w *ExportWorker) ExportAll(ctx context.Context, organizationID int64) (int, error) {
	gens, err := w.filings.ListGenerations(ctx, organizationID)
	if err != nil {
		return 0, fmt.Errorf("list generations: %w", err)
	}

	exported := 0
	for _, g := range gens {
		result, err := w.filings.ExportGeneration(ctx, g.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export generation",
				"generation_id", g.ID, "error", err)
			continue
		}
		if _, err := w.writeArchive(result.Generation.FilePath, result.ZipBytes); err != nil {
			slog.ErrorContext(ctx, "Failed to write archive",
				"generation_id", g.ID, "error", err)
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Catch-up export completed",
		"organization_id", organizationID,
		"total", len(gens),
		"exported", exported)

	return exported, nil
}

func (w *ExportWorker) writeArchive(filename string, zipBytes []byte) (string, error) {
	if err := os.MkdirAll(w.exportDir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(w.exportDir, filename)
	if err := os.WriteFile(path, zipBytes, 0644); err != nil {
		return "", fmt.Errorf("write archive %s: %w", path, err)
	}
	return path, nil
}
