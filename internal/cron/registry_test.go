package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresJobsInOrder(t *testing.T) {
	jobA := &stubJob{name: "delivery-sweep"}
	jobB := &stubJob{name: "feed-trim"}
	registry, err := NewRegistry(jobA, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if err := registry.Register(jobB); err != nil {
		t.Fatalf("register: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("jobs returned out of order")
	}
	// callers must not mutate the internal slice
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
	if names := registry.Names(); len(names) != 2 || names[0] != "delivery-sweep" || names[1] != "feed-trim" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	if _, err := NewRegistry(&stubJob{name: "sweep"}, &stubJob{name: "sweep"}); err == nil {
		t.Fatal("expected duplicate name to fail")
	}
	registry, err := NewRegistry()
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if err := registry.Register(&stubJob{name: "  "}); err == nil {
		t.Fatal("expected blank name to fail")
	}
	if err := registry.Register(nil); err == nil {
		t.Fatal("expected nil job to fail")
	}
	if len(registry.Jobs()) != 0 {
		t.Fatalf("rejected jobs must not be stored")
	}
}
