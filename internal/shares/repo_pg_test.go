package shares

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"docsign-backend/internal/signing"
)

var participantRowColumns = []string{"user_id", "username", "email", "permission", "step", "parallel", "has_signed", "signed_at"}

func TestPGRepoUpdateReplacesParticipantsInTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	signedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("doc-1"))
	mock.ExpectQuery("SELECT (.+) FROM document_participants").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows(participantRowColumns).
			AddRow("alice", "alice", "alice@example.com", "view_and_sign", 1, false, true, signedAt))
	mock.ExpectExec("DELETE FROM document_participants").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_participants").
		WithArgs("doc-1", "alice", "alice", "alice@example.com", "view_and_sign", 0, 1, false, true, signedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_participants").
		WithArgs("doc-1", "bob", "", "", "view_and_sign", 1, 2, false, false, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := &PGRepo{DB: db}
	got, err := repo.Update(context.Background(), "doc-1", func(current []signing.Assignment) ([]signing.Assignment, error) {
		if len(current) != 1 || !current[0].HasSigned || current[0].SignedAt == nil {
			t.Fatalf("unexpected current list %+v", current)
		}
		next := append(current, signing.Assignment{UserID: "bob", Permission: signing.PermissionViewAndSign})
		return signing.Renumber(next), nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(got) != 2 || got[1].Step != 2 {
		t.Fatalf("unexpected result %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateRollsBackWhenFnFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("doc-1"))
	mock.ExpectQuery("SELECT (.+) FROM document_participants").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows(participantRowColumns))
	mock.ExpectRollback()

	repo := &PGRepo{DB: db}
	_, err = repo.Update(context.Background(), "doc-1", func([]signing.Assignment) ([]signing.Assignment, error) {
		return nil, ErrNotYourTurn
	})
	if err != ErrNotYourTurn {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateMissingDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM documents").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	repo := &PGRepo{DB: db}
	_, err = repo.Update(context.Background(), "ghost", func(list []signing.Assignment) ([]signing.Assignment, error) {
		return list, nil
	})
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoParticipantQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("doc-1", "vic").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT document_id FROM document_participants").
		WithArgs("vic").
		WillReturnRows(sqlmock.NewRows([]string{"document_id"}).AddRow("doc-1").AddRow("doc-7"))

	repo := &PGRepo{DB: db}
	ok, err := repo.IsParticipant(context.Background(), "doc-1", "vic")
	if err != nil || !ok {
		t.Fatalf("IsParticipant: %v %v", ok, err)
	}
	ids, err := repo.DocumentsFor(context.Background(), "vic")
	if err != nil {
		t.Fatalf("DocumentsFor: %v", err)
	}
	if len(ids) != 2 || ids[1] != "doc-7" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
