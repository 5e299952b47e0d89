package records

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/archivebridge-backend/internal/data/repos/testutil"
	"github.com/yungbote/archivebridge-backend/internal/domain/store"
	"github.com/yungbote/archivebridge-backend/internal/pkg/dbctx"
)

func testDBC(t *testing.T) dbctx.Context {
	t.Helper()
	return dbctx.Context{Ctx: context.Background(), Tx: testutil.Tx(t, testutil.DB(t))}
}

func TestRecordUpsertOverwrites(t *testing.T) {
	dbc := testDBC(t)
	repo := NewRecordRepo(dbc.Tx, testutil.Logger(t))

	rec := &store.Record{
		ID:          "rec-1",
		JobConfigID: "jc-1",
		JobToken:    uuid.NewString(),
		Status:      "in-process",
		ImportType:  "oai",
	}
	if err := repo.Upsert(dbc, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// A re-import replaces the projection.
	rec.Status = "complete"
	rec.JobToken = uuid.NewString()
	if err := repo.Upsert(dbc, rec); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.Get(dbc, "rec-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "complete" || got.JobToken != rec.JobToken {
		t.Fatalf("row not overwritten: %+v", got)
	}
}

func TestListInProcessByJobConfig(t *testing.T) {
	dbc := testDBC(t)
	repo := NewRecordRepo(dbc.Tx, testutil.Logger(t))

	token := uuid.NewString()
	rows := []*store.Record{
		{ID: "a", JobConfigID: "jc-1", JobToken: token, Status: "in-process"},
		{ID: "b", JobConfigID: "jc-1", JobToken: token, Status: "complete"},
		{ID: "c", JobConfigID: "jc-2", JobToken: token, Status: "in-process"},
	}
	for _, r := range rows {
		if err := repo.Upsert(dbc, r); err != nil {
			t.Fatalf("upsert %s: %v", r.ID, err)
		}
	}

	got, err := repo.ListInProcessByJobConfig(dbc, "jc-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("expected only the in-process record of jc-1, got %+v", got)
	}
}

func TestIEInsertEnforcesIdentity(t *testing.T) {
	dbc := testDBC(t)
	repo := NewIERepo(dbc.Tx, testutil.Logger(t))

	ie := &store.IE{
		ID:             uuid.New(),
		JobConfigID:    "jc-1",
		OriginSystemID: "sys-1",
		ExternalID:     "ext-1",
		ArchiveID:      "rosetta",
	}
	if err := repo.Insert(dbc, ie); err != nil {
		t.Fatalf("insert: %v", err)
	}

	dup := &store.IE{
		ID:             uuid.New(),
		JobConfigID:    "jc-1",
		OriginSystemID: "sys-1",
		ExternalID:     "ext-1",
		ArchiveID:      "rosetta",
	}
	if err := repo.Insert(dbc, dup); err == nil {
		t.Fatal("expected unique violation for duplicate identity tuple")
	}

	got, err := repo.Find(dbc, "jc-1", "sys-1", "ext-1", "rosetta")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil || got.ID != ie.ID {
		t.Fatalf("expected the original winner, got %+v", got)
	}

	missing, err := repo.Find(dbc, "jc-1", "sys-1", "ext-1", "other-archive")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if missing != nil {
		t.Fatalf("identity tuple must include the archive, got %+v", missing)
	}
}

func TestArtifactExtendExpiryOnlyLive(t *testing.T) {
	dbc := testDBC(t)
	repo := NewArtifactRepo(dbc.Tx, testutil.Logger(t))

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	farFuture := now.Add(48 * time.Hour)

	live := &store.Artifact{ID: uuid.New(), Path: "/a/live", RecordID: "rec-1", Stage: "build_ip", DatetimeExpires: &future}
	dead := &store.Artifact{ID: uuid.New(), Path: "/a/dead", RecordID: "rec-1", Stage: "import_ies", DatetimeExpires: &past}
	forever := &store.Artifact{ID: uuid.New(), Path: "/a/forever", RecordID: "rec-1", Stage: "build_sip"}
	for _, a := range []*store.Artifact{live, dead, forever} {
		if err := repo.Insert(dbc, a); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	if err := repo.ExtendExpiry(dbc, []string{"rec-1"}, &farFuture, now); err != nil {
		t.Fatalf("extend: %v", err)
	}

	got, err := repo.ListLiveByRecord(dbc, "rec-1", now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 live artifacts, got %d", len(got))
	}
	for _, a := range got {
		if a.DatetimeExpires == nil || !a.DatetimeExpires.Equal(farFuture) {
			t.Errorf("artifact %s expiry not moved: %v", a.Path, a.DatetimeExpires)
		}
	}
}
