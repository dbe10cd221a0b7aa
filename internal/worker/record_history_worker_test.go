package worker

import (
	"errors"
	"path/filepath"
	"testing"

	"gopherai-insect/internal/model"
	"gopherai-insect/internal/repository"
)

type failingSink struct{}

func (failingSink) Create(*model.ClassificationRecord) error { return errors.New("disk full") }

func TestHandleAppendsToHistory(t *testing.T) {
	repo, err := repository.NewHistoryRepository(filepath.Join(t.TempDir(), "history.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	w := NewRecordHistoryWorker(nil, repo, "insect.classification.record", nil)

	if !w.handle([]byte(`{"id":"r1","predicted_class":"나비"}`)) {
		t.Fatal("valid record should be acked")
	}
	got, err := repo.ListRecent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].PredictedClass != "나비" {
		t.Fatalf("history = %+v", got)
	}
}

func TestHandleRejectsBadDeliveries(t *testing.T) {
	repo, err := repository.NewHistoryRepository(filepath.Join(t.TempDir(), "history.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	w := NewRecordHistoryWorker(nil, repo, "q", nil)
	if w.handle([]byte("garbage")) {
		t.Fatal("undecodable body should be nacked")
	}

	failing := NewRecordHistoryWorker(nil, failingSink{}, "q", nil)
	if failing.handle([]byte(`{"id":"r2"}`)) {
		t.Fatal("sink failure should be nacked")
	}
}

func TestCloseWithoutStart(t *testing.T) {
	w := NewRecordHistoryWorker(nil, failingSink{}, "q", nil)
	w.Close()
}
