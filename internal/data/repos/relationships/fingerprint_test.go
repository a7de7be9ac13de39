package relationships

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/data/repos/testutil"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/pkg/dbctx"
	"github.com/yungbote/lectern-backend/internal/relevance"
)

func TestFingerprintUpsertRoundtrip(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewFingerprintRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	docID := uuid.New()
	fp := relevance.Empty(docID)
	fp.Summary = "A study of Kantian ethics."
	fp.Keywords = []string{"kant", "ethics"}
	fp.Topics = []string{"philosophy"}
	fp.MainThemes = []string{"morality"}

	rec, err := fp.ToRecord("hash-1")
	if err != nil {
		t.Fatalf("to record: %v", err)
	}
	if _, err := repo.Upsert(dbc, rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.GetByDocumentHash(dbc, docID, "hash-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("stored fingerprint not found")
	}
	back := relevance.FromRecord(got)
	if back.Summary != fp.Summary {
		t.Fatalf("summary = %q", back.Summary)
	}
	if len(back.Keywords) != 2 || back.Keywords[0] != "kant" {
		t.Fatalf("keywords = %v", back.Keywords)
	}
	if len(back.Topics) != 1 || back.Topics[0] != "philosophy" {
		t.Fatalf("topics = %v", back.Topics)
	}
}

func TestFingerprintUpsertLastWriterWins(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewFingerprintRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	docID := uuid.New()
	first := relevance.Empty(docID)
	first.Summary = "First pass."
	rec, err := first.ToRecord("hash-1")
	if err != nil {
		t.Fatalf("to record: %v", err)
	}
	if _, err := repo.Upsert(dbc, rec); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := relevance.Empty(docID)
	second.Summary = "Second pass."
	second.Keywords = []string{"revised"}
	rec, err = second.ToRecord("hash-1")
	if err != nil {
		t.Fatalf("to record: %v", err)
	}
	if _, err := repo.Upsert(dbc, rec); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetByDocumentHash(dbc, docID, "hash-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Summary != "Second pass." {
		t.Fatalf("summary = %q, want last write", got.Summary)
	}

	var count int64
	if err := tx.Model(&types.DocumentFingerprint{}).
		Where("document_id = ? AND content_hash = ?", docID, "hash-1").
		Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}
}

func TestFingerprintDistinctHashesCoexist(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewFingerprintRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	docID := uuid.New()
	for _, hash := range []string{"hash-1", "hash-2"} {
		fp := relevance.Empty(docID)
		fp.Summary = "Summary for " + hash
		rec, err := fp.ToRecord(hash)
		if err != nil {
			t.Fatalf("to record: %v", err)
		}
		if _, err := repo.Upsert(dbc, rec); err != nil {
			t.Fatalf("upsert %s: %v", hash, err)
		}
	}

	for _, hash := range []string{"hash-1", "hash-2"} {
		got, err := repo.GetByDocumentHash(dbc, docID, hash)
		if err != nil || got == nil {
			t.Fatalf("get %s: %+v, %v", hash, got, err)
		}
		if got.Summary != "Summary for "+hash {
			t.Fatalf("wrong row for %s: %q", hash, got.Summary)
		}
	}
}

func TestFingerprintGetMissing(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewFingerprintRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	if got, err := repo.GetByDocumentHash(dbc, uuid.New(), "nope"); err != nil || got != nil {
		t.Fatalf("missing lookup: %+v, %v", got, err)
	}
	if got, err := repo.GetByDocumentHash(dbc, uuid.Nil, "nope"); err != nil || got != nil {
		t.Fatalf("nil document lookup: %+v, %v", got, err)
	}
}

func TestFingerprintSoftDeleteByDocumentIDs(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewFingerprintRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	keep, drop := uuid.New(), uuid.New()
	for _, docID := range []uuid.UUID{keep, drop} {
		rec, err := relevance.Empty(docID).ToRecord("hash-1")
		if err != nil {
			t.Fatalf("to record: %v", err)
		}
		if _, err := repo.Upsert(dbc, rec); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	if err := repo.SoftDeleteByDocumentIDs(dbc, []uuid.UUID{drop}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := repo.GetByDocumentHash(dbc, drop, "hash-1"); got != nil {
		t.Fatalf("deleted fingerprint still visible")
	}
	if got, _ := repo.GetByDocumentHash(dbc, keep, "hash-1"); got == nil {
		t.Fatalf("unrelated fingerprint removed")
	}
}
