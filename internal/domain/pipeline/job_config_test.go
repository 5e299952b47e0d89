package pipeline

import (
	"testing"
	"time"
)

func TestTargetArchiveIDPrefersTemplate(t *testing.T) {
	cfg := &JobConfig{
		Template:               &Template{TargetArchiveID: "from-template"},
		DefaultTargetArchiveID: "from-default",
	}
	if got := cfg.TargetArchiveID(); got != "from-template" {
		t.Fatalf("expected template archive, got %q", got)
	}

	cfg.Template.TargetArchiveID = ""
	if got := cfg.TargetArchiveID(); got != "from-default" {
		t.Fatalf("expected default archive, got %q", got)
	}

	cfg.DefaultTargetArchiveID = ""
	if got := cfg.TargetArchiveID(); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestArtifactsExpiry(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	var nilCtx *JobContext
	if nilCtx.ArtifactsExpiry(now) != nil {
		t.Fatal("nil context must have no expiry")
	}
	if (&JobContext{}).ArtifactsExpiry(now) != nil {
		t.Fatal("context without ttl must have no expiry")
	}

	ttl := 7200
	got := (&JobContext{ArtifactsTTL: &ttl}).ArtifactsExpiry(now)
	if got == nil || !got.Equal(now.Add(2*time.Hour)) {
		t.Fatalf("expected now+2h, got %v", got)
	}
}

func TestSuppressRecordRows(t *testing.T) {
	if (&JobContext{TriggerType: TriggerManual}).SuppressRecordRows() {
		t.Fatal("manual trigger must persist records")
	}
	if !(&JobContext{TriggerType: TriggerTest}).SuppressRecordRows() {
		t.Fatal("test trigger must suppress records")
	}
	var nilCtx *JobContext
	if nilCtx.SuppressRecordRows() {
		t.Fatal("nil context must persist records")
	}
}

func TestFirstArtifactOrder(t *testing.T) {
	rec := NewRecord("r1")
	rec.Stages[StageBuildIP] = &RecordStageInfo{Artifact: "/ip"}
	rec.Stages[StagePrepareIP] = &RecordStageInfo{Artifact: "/prep"}

	artifact, ok := rec.FirstArtifact(StagePrepareIP, StageBuildIP)
	if !ok || artifact != "/prep" {
		t.Fatalf("expected prepared IP to win, got %q", artifact)
	}

	artifact, ok = rec.FirstArtifact(StageBuildSIP, StageBuildIP)
	if !ok || artifact != "/ip" {
		t.Fatalf("expected fallback to built IP, got %q", artifact)
	}

	if _, ok := rec.FirstArtifact(StageBuildSIP); ok {
		t.Fatal("expected no artifact")
	}
}
