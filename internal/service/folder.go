package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knoguchi/graphrag/internal/ingestion"
	"github.com/knoguchi/graphrag/internal/jobs"
)

// FolderRequest describes a folder ingestion.
type FolderRequest struct {
	FolderPath      string
	Recursive       bool
	FileTypes       []string
	DefaultMetadata map[string]any
	CreatedBy       string
}

// StartFolderJob scans the folder and launches a background job that
// ingests every matching file. Returns the job id and file count.
func (s *Service) StartFolderJob(jobType string, req FolderRequest) (string, int, error) {
	if req.FolderPath == "" {
		return "", 0, fmt.Errorf("%w: missing required parameter: folder_path", ErrBadRequest)
	}

	files, err := ingestion.ScanFolder(req.FolderPath, req.FileTypes, req.Recursive)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if len(files) == 0 {
		return "", 0, fmt.Errorf("%w: no matching files in %s", ErrNotFound, req.FolderPath)
	}

	job := s.jobs.Create(jobType, map[string]any{
		"folder_path": req.FolderPath,
		"recursive":   req.Recursive,
		"total_files": len(files),
	}, req.CreatedBy)
	if err := s.jobs.Submit(job.ID, s.folderTask(files, req.DefaultMetadata)); err != nil {
		return "", 0, err
	}
	return job.ID, len(files), nil
}

// folderTask ingests the scanned files one by one, reporting progress
// and collecting one outcome record per file.
func (s *Service) folderTask(files []string, defaultMetadata map[string]any) jobs.Task {
	return func(ctx context.Context, jobID string) (any, error) {
		results := make([]map[string]any, 0, len(files))
		for i, file := range files {
			if err := ctx.Err(); err != nil {
				slog.Info("folder job interrupted", "job_id", jobID, "processed", i, "total", len(files))
				return map[string]any{"results": results, "processed": i, "total": len(files)}, err
			}

			results = append(results, s.ingestFile(ctx, file, defaultMetadata))
			s.jobs.UpdateProgress(jobID, i+1, len(files))
		}
		return map[string]any{"results": results, "processed": len(files), "total": len(files)}, nil
	}
}

// ingestFile processes one file into the unified per-file outcome
// record {status, document_id?, file, error?}.
func (s *Service) ingestFile(ctx context.Context, file string, defaultMetadata map[string]any) map[string]any {
	text, docType, err := ingestion.ReadFile(file)
	if err != nil {
		return map[string]any{"status": ingestion.StatusFailure, "file": file, "error": err.Error()}
	}

	metadata := ingestion.FileMetadata(file)
	metadata["document_type"] = docType
	for k, v := range defaultMetadata {
		if _, set := metadata[k]; !set {
			metadata[k] = v
		}
	}

	report := s.IngestText(ctx, text, metadata)
	outcome := map[string]any{"status": report.Status, "file": file}
	if report.DocumentID != "" {
		outcome["document_id"] = report.DocumentID
	}
	if len(report.Details) > 0 {
		outcome["error"] = fmt.Sprintf("%v", report.Details)
	}
	return outcome
}

// StartBugJob ingests a bug report as a two-line document through the
// full pipeline, asynchronously.
func (s *Service) StartBugJob(description, cause, title, createdBy string) (string, error) {
	if description == "" {
		return "", fmt.Errorf("%w: missing required parameter: description", ErrBadRequest)
	}
	if title == "" {
		title = "Bug: " + truncate(description, 60)
	}

	job := s.jobs.Create(jobs.TypeAddBug, map[string]any{"title": title}, createdBy)
	text := description + "\n" + cause
	err := s.jobs.Submit(job.ID, func(ctx context.Context, _ string) (any, error) {
		report := s.IngestText(ctx, text, map[string]any{
			"title":    title,
			"category": "bug",
			"source":   "bug_report",
		})
		if report.Status == ingestion.StatusFailure {
			return nil, fmt.Errorf("ingestion failed: %v", report.Details)
		}
		return map[string]any{
			"status":        report.Status,
			"document_id":   report.DocumentID,
			"entities":      report.EntityCount,
			"relationships": report.RelationshipCount,
		}, nil
	})
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
