package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "jobs"))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func readJobFile(t *testing.T, m *Manager, jobID string) *Job {
	t.Helper()
	data, err := os.ReadFile(m.jobPath(jobID))
	if err != nil {
		t.Fatalf("reading job file: %v", err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		t.Fatalf("unmarshaling job file: %v", err)
	}
	return &job
}

func TestCreate_PersistsQueuedJob(t *testing.T) {
	m := newTestManager(t)
	job := m.Create(TypeProcessFolder, map[string]any{"folder": "/books"}, "tester")

	if job.Status != StatusQueued {
		t.Errorf("status = %q, want queued", job.Status)
	}
	if job.ID == "" {
		t.Fatal("missing job id")
	}

	persisted := readJobFile(t, m, job.ID)
	if persisted.Status != StatusQueued || persisted.Type != TypeProcessFolder {
		t.Errorf("persisted = %+v", persisted)
	}
	if persisted.CreatedBy != "tester" {
		t.Errorf("created_by = %q", persisted.CreatedBy)
	}
}

func TestSubmit_RunsToCompletion(t *testing.T) {
	m := newTestManager(t)
	job := m.Create(TypeProcessDocument, nil, "")

	done := make(chan struct{})
	err := m.Submit(job.ID, func(_ context.Context, _ string) (any, error) {
		close(done)
		return map[string]any{"document_id": "doc-1"}, nil
	})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	<-done
	m.Wait()

	got, ok := m.Get(job.ID)
	if !ok {
		t.Fatal("job vanished")
	}
	if got.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("missing timestamps")
	}
	if got.Progress != 100 {
		t.Errorf("progress = %v, want 100 on completion", got.Progress)
	}
	result, _ := got.Result.(map[string]any)
	if result["document_id"] != "doc-1" {
		t.Errorf("result = %v", got.Result)
	}
	if persisted := readJobFile(t, m, job.ID); persisted.Status != StatusCompleted {
		t.Errorf("persisted status = %q", persisted.Status)
	}
}

func TestSubmit_TaskErrorFailsJob(t *testing.T) {
	m := newTestManager(t)
	job := m.Create(TypeAddFolder, nil, "")

	if err := m.Submit(job.ID, func(_ context.Context, _ string) (any, error) {
		return nil, fmt.Errorf("folder not found")
	}); err != nil {
		t.Fatal(err)
	}
	m.Wait()

	got, _ := m.Get(job.ID)
	if got.Status != StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.Error != "folder not found" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestSubmit_OnlyQueuedJobs(t *testing.T) {
	m := newTestManager(t)
	job := m.Create(TypeProcessDocument, nil, "")

	if err := m.Submit(job.ID, func(_ context.Context, _ string) (any, error) { return nil, nil }); err != nil {
		t.Fatal(err)
	}
	m.Wait()

	if err := m.Submit(job.ID, func(_ context.Context, _ string) (any, error) { return nil, nil }); err == nil {
		t.Error("resubmitting a terminal job must fail")
	}
	if err := m.Submit("no-such-job", nil); err == nil {
		t.Error("unknown job must fail")
	}
}

func TestUpdateProgress(t *testing.T) {
	m := newTestManager(t)
	job := m.Create(TypeProcessFolder, nil, "")

	started := make(chan struct{})
	release := make(chan struct{})
	if err := m.Submit(job.ID, func(_ context.Context, id string) (any, error) {
		m.UpdateProgress(id, 3, 12)
		close(started)
		<-release
		return nil, nil
	}); err != nil {
		t.Fatal(err)
	}
	<-started

	got, _ := m.Get(job.ID)
	if got.Progress != 25 {
		t.Errorf("progress = %v, want 25", got.Progress)
	}
	if got.ProcessedItems != 3 || got.TotalItems != 12 {
		t.Errorf("items = %d/%d", got.ProcessedItems, got.TotalItems)
	}
	close(release)
	m.Wait()
}

func TestUpdateProgress_ZeroTotal(t *testing.T) {
	m := newTestManager(t)
	job := m.Create(TypeProcessFolder, nil, "")
	m.UpdateProgress(job.ID, 0, 0)

	got, _ := m.Get(job.ID)
	if got.Progress != 0 {
		t.Errorf("progress = %v, want 0 for empty totals", got.Progress)
	}
}

func TestCancel(t *testing.T) {
	m := newTestManager(t)

	t.Run("queued", func(t *testing.T) {
		job := m.Create(TypeAddBug, nil, "")
		if !m.Cancel(job.ID) {
			t.Fatal("queued job must be cancellable")
		}
		got, _ := m.Get(job.ID)
		if got.Status != StatusCancelled {
			t.Errorf("status = %q", got.Status)
		}
	})

	t.Run("running worker is interrupted", func(t *testing.T) {
		job := m.Create(TypeProcessFolder, nil, "")
		started := make(chan struct{})
		interrupted := make(chan struct{})
		if err := m.Submit(job.ID, func(ctx context.Context, _ string) (any, error) {
			close(started)
			<-ctx.Done()
			close(interrupted)
			return nil, ctx.Err()
		}); err != nil {
			t.Fatal(err)
		}
		<-started

		if !m.Cancel(job.ID) {
			t.Fatal("running job must be cancellable")
		}
		select {
		case <-interrupted:
		case <-time.After(2 * time.Second):
			t.Fatal("worker context never cancelled")
		}
		m.Wait()

		got, _ := m.Get(job.ID)
		if got.Status != StatusCancelled {
			t.Errorf("status = %q, cancelled must stick even after the worker returns", got.Status)
		}
	})

	t.Run("terminal", func(t *testing.T) {
		job := m.Create(TypeAddBug, nil, "")
		m.Cancel(job.ID)
		if m.Cancel(job.ID) {
			t.Error("cancelling a terminal job must return false")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if m.Cancel("nope") {
			t.Error("unknown job must return false")
		}
	})
}

func TestList_Filters(t *testing.T) {
	m := newTestManager(t)
	a := m.Create(TypeAddFolder, nil, "alice")
	m.Create(TypeAddBug, nil, "bob")
	m.Cancel(a.ID)

	if got := m.List(Filter{}); len(got) != 2 {
		t.Errorf("unfiltered = %d jobs", len(got))
	}
	if got := m.List(Filter{Type: TypeAddBug}); len(got) != 1 || got[0].CreatedBy != "bob" {
		t.Errorf("type filter = %+v", got)
	}
	if got := m.List(Filter{Status: StatusCancelled}); len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("status filter = %+v", got)
	}
	if got := m.List(Filter{CreatedBy: "alice"}); len(got) != 1 {
		t.Errorf("creator filter = %+v", got)
	}
	if got := m.List(Filter{CreatedBy: "carol"}); len(got) != 0 {
		t.Errorf("no-match filter = %+v", got)
	}
}

func TestRecover(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "jobs")
	m, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	queued := m.Create(TypeAddFolder, nil, "")
	running := m.Create(TypeProcessFolder, nil, "")
	blocked := make(chan struct{})
	started := make(chan struct{})
	if err := m.Submit(running.ID, func(_ context.Context, _ string) (any, error) {
		close(started)
		<-blocked
		return nil, nil
	}); err != nil {
		t.Fatal(err)
	}
	<-started

	// Simulate a restart: a fresh manager over the same directory while
	// the old worker is still persisted as running.
	fresh, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := fresh.Recover(); err != nil {
		t.Fatalf("Recover error: %v", err)
	}

	gotQueued, ok := fresh.Get(queued.ID)
	if !ok || gotQueued.Status != StatusQueued {
		t.Errorf("queued job = %+v, must survive as queued", gotQueued)
	}

	gotRunning, ok := fresh.Get(running.ID)
	if !ok {
		t.Fatal("running job lost")
	}
	if gotRunning.Status != StatusFailed {
		t.Errorf("status = %q, want failed", gotRunning.Status)
	}
	if gotRunning.Error != "Job failed due to server restart." {
		t.Errorf("error = %q", gotRunning.Error)
	}

	close(blocked)
	m.Wait()
}

func TestRecover_SkipsCorruptFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "jobs")
	m, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	good := m.Create(TypeAddBug, nil, "")
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	fresh, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := fresh.Recover(); err != nil {
		t.Fatalf("Recover error: %v", err)
	}
	if _, ok := fresh.Get(good.ID); !ok {
		t.Error("good job lost to a corrupt neighbor")
	}
}

func TestCleanup(t *testing.T) {
	m := newTestManager(t)
	old := m.Create(TypeAddBug, nil, "")
	m.Cancel(old.ID)
	fresh := m.Create(TypeAddBug, nil, "")
	m.Cancel(fresh.ID)
	live := m.Create(TypeAddFolder, nil, "")

	// Age the first job's completion time past the cutoff.
	m.mu.Lock()
	past := time.Now().UTC().Add(-48 * time.Hour)
	m.jobs[old.ID].CompletedAt = &past
	m.mu.Unlock()

	removed := m.Cleanup(24 * time.Hour)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := m.Get(old.ID); ok {
		t.Error("old terminal job must be removed")
	}
	if _, ok := m.Get(fresh.ID); !ok {
		t.Error("recent terminal job must stay")
	}
	if _, ok := m.Get(live.ID); !ok {
		t.Error("live job must stay")
	}
	if _, err := os.Stat(m.jobPath(old.ID)); !os.IsNotExist(err) {
		t.Error("old job file must be deleted")
	}
}

func TestPersistence_WriteThenRename(t *testing.T) {
	m := newTestManager(t)
	job := m.Create(TypeAddBug, nil, "")

	// No temp file should linger after a persisted transition.
	if _, err := os.Stat(m.jobPath(job.ID) + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
	if _, err := os.Stat(m.jobPath(job.ID)); err != nil {
		t.Errorf("job file missing: %v", err)
	}
}
