package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func TestWriterLifecycleProducesWellFormedLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job_hwahae_abc.jsonl")

	w := NewWriter()
	started := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	if err := w.Initialize(path, Header{JobID: "abc", WorkflowID: "wf1", Platform: "hwahae", StartedAt: started}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if err := w.Append(Record{ProductID: "p1", Platform: "hwahae", Status: StatusSuccess, Match: true}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append(Record{ProductID: "p2", Platform: "hwahae", Status: StatusSuccess, Match: false}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append(Record{ProductID: "p3", Platform: "hwahae", Status: StatusNotFound}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := w.Finalize(started.Add(5 * time.Minute)); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	log, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !log.Complete {
		t.Fatalf("expected log to be complete")
	}
	if log.Header == nil || log.Header.JobID != "abc" {
		t.Fatalf("Header = %+v", log.Header)
	}
	if len(log.Records) != 3 {
		t.Fatalf("len(Records) = %d, want 3", len(log.Records))
	}
	if log.Footer.Summary.Total != 3 || log.Footer.Summary.Success != 2 || log.Footer.Summary.NotFound != 1 {
		t.Fatalf("Summary = %+v", log.Footer.Summary)
	}
	wantRate := 1.0 / 3.0
	if diff := log.Footer.Summary.MatchRate - wantRate; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("MatchRate = %v, want %v", log.Footer.Summary.MatchRate, wantRate)
	}
}

func TestAppendAfterFinalizeFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job_x_y.jsonl")

	w := NewWriter()
	if err := w.Initialize(path, Header{JobID: "y", Platform: "x"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := w.Finalize(time.Now()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := w.Append(Record{}); err != ErrFinalized {
		t.Fatalf("Append after Finalize err = %v, want ErrFinalized", err)
	}
}

func TestCleanupLeavesLogIncomplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job_x_z.jsonl")

	w := NewWriter()
	if err := w.Initialize(path, Header{JobID: "z", Platform: "x"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := w.Append(Record{ProductID: "p1", Status: StatusSuccess}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	log, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if log.Complete {
		t.Fatalf("expected incomplete log after Cleanup")
	}
	if log.Footer != nil {
		t.Fatalf("expected nil footer, got %+v", log.Footer)
	}
}

func TestPathForUsesLocalCalendarDate(t *testing.T) {
	at := time.Date(2026, 7, 30, 23, 59, 0, 0, time.UTC)
	got := PathFor("/out", "hwahae", "job1", at)
	want := filepath.Join("/out", at.Local().Format("2006-01-02"), "job_hwahae_job1.jsonl")
	if got != want {
		t.Fatalf("PathFor = %q, want %q", got, want)
	}
}
