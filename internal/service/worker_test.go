package service

import (
	"context"
	"fmt"
	"testing"
)

func TestBulkIngestorLoadsAllPersons(t *testing.T) {
	repo := newStubRepository()
	svc := newTestService(repo, Options{})
	ingestor := NewBulkIngestor(svc, 8)

	inputs := make([]PersonInput, 100)
	for i := range inputs {
		inputs[i] = PersonInput{
			ID:       fmt.Sprintf("PER-%03d", i),
			FullName: fmt.Sprintf("Person %03d", i),
		}
	}

	if err := ingestor.IngestPersons(context.Background(), inputs); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	persons, err := repo.ListPersons(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(persons) != len(inputs) {
		t.Fatalf("expected %d persons, got %d", len(inputs), len(persons))
	}
}

func TestBulkIngestorCollectsTaskErrors(t *testing.T) {
	repo := newStubRepository()
	svc := newTestService(repo, Options{})
	ingestor := NewBulkIngestor(svc, 4)

	inputs := []PersonInput{
		{ID: "ok-1", FullName: "Person One"},
		{ID: "", FullName: "Missing ID"},
		{ID: "ok-2", FullName: "Person Two"},
		{ID: "bad-2", FullName: "  "},
	}

	err := ingestor.IngestPersons(context.Background(), inputs)
	if err == nil {
		t.Fatal("expected accumulated task errors")
	}
	taskErr, ok := err.(*TaskError)
	if !ok {
		t.Fatalf("expected *TaskError, got %T", err)
	}
	if len(taskErr.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(taskErr.Errors))
	}

	persons, _ := repo.ListPersons(context.Background())
	if len(persons) != 2 {
		t.Fatalf("expected the valid records to be stored, got %d", len(persons))
	}
}

func TestBulkIngestorEmptyBatch(t *testing.T) {
	svc := newTestService(newStubRepository(), Options{})
	ingestor := NewBulkIngestor(svc, 4)

	if err := ingestor.IngestPersons(context.Background(), nil); err != nil {
		t.Fatalf("expected no error for an empty batch, got %v", err)
	}
}
