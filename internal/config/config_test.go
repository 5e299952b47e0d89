package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yungbote/archivebridge-backend/internal/data/repos/testutil"
	"github.com/yungbote/archivebridge-backend/internal/domain/pipeline"
)

func TestLoadArchivesInlineJSON(t *testing.T) {
	src := `{"rosetta-prod": {"transferDestinationId": "dest-1"}}`
	archives, err := loadArchives(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, ok := archives["rosetta-prod"]
	if !ok {
		t.Fatalf("archive missing: %v", archives)
	}
	if a.ID != "rosetta-prod" {
		t.Errorf("id not defaulted from map key: %q", a.ID)
	}
	if a.Type != pipeline.ArchiveRosettaRESTV0 {
		t.Errorf("type not defaulted: %q", a.Type)
	}
	if a.TransferDestinationID != "dest-1" {
		t.Errorf("destination lost: %q", a.TransferDestinationID)
	}
}

func TestLoadArchivesYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archives.yaml")
	content := `rosetta-prod:
  id: rosetta-prod
  type: rosetta-rest-api-v0
  transferDestinationId: dest-1
rosetta-test:
  transferDestinationId: dest-2
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	archives, err := loadArchives(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(archives) != 2 {
		t.Fatalf("expected 2 archives, got %d", len(archives))
	}
	if archives["rosetta-test"].ID != "rosetta-test" {
		t.Errorf("id not defaulted: %q", archives["rosetta-test"].ID)
	}
	if archives["rosetta-prod"].TransferDestinationID != "dest-1" {
		t.Errorf("destination lost: %+v", archives["rosetta-prod"])
	}
}

func TestLoadArchivesRejectsUnknownType(t *testing.T) {
	src := `{"a1": {"type": "fedora-api"}}`
	if _, err := loadArchives(src); err == nil {
		t.Fatal("expected error for unsupported archive type")
	}
}

func TestLoadArchivesEmptySource(t *testing.T) {
	archives, err := loadArchives("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(archives) != 0 {
		t.Fatalf("expected empty map, got %v", archives)
	}
}

func TestLoadRejectsUnknownDefaultArchive(t *testing.T) {
	t.Setenv("ARCHIVES_SRC", `{"rosetta-prod": {"transferDestinationId": "dest-1"}}`)
	t.Setenv("DEFAULT_TARGET_ARCHIVE_ID", "does-not-exist")
	if _, err := Load(testutil.Logger(t)); err == nil {
		t.Fatal("expected error for unknown default archive id")
	}
}

func TestLoadAcceptsKnownDefaultArchive(t *testing.T) {
	t.Setenv("ARCHIVES_SRC", `{"rosetta-prod": {"transferDestinationId": "dest-1"}}`)
	t.Setenv("DEFAULT_TARGET_ARCHIVE_ID", "rosetta-prod")
	cfg, err := Load(testutil.Logger(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultTargetArchiveID != "rosetta-prod" {
		t.Fatalf("default archive lost: %q", cfg.DefaultTargetArchiveID)
	}
}

func TestHostForStage(t *testing.T) {
	cfg := &Config{
		ImportHost:       "http://import",
		IPBuilderHost:    "http://ipb",
		ObjValidatorHost: "http://objval",
		PreparationHost:  "http://prep",
		SIPBuilderHost:   "http://sipb",
		TransferHost:     "http://transfer",
		IngestHost:       "http://ingest",
	}

	cases := map[pipeline.Stage]string{
		pipeline.StageImportIEs:          "http://import",
		pipeline.StageImportIPs:          "http://import",
		pipeline.StageBuildIP:            "http://ipb",
		pipeline.StageValidationMetadata: "http://ipb",
		pipeline.StageValidationPayload:  "http://objval",
		pipeline.StagePrepareIP:          "http://prep",
		pipeline.StageBuildSIP:           "http://sipb",
		pipeline.StageTransfer:           "http://transfer",
		pipeline.StageIngest:             "http://ingest",
	}
	for stage, want := range cases {
		if got := cfg.HostForStage(stage); got != want {
			t.Errorf("stage %s routed to %q, want %q", stage, got, want)
		}
	}
	if got := cfg.HostForStage(pipeline.Stage("bogus")); got != "" {
		t.Errorf("unknown stage must route nowhere, got %q", got)
	}
}
