package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"plancore/pkg/domain"
)

func TestStatsCountsSeededCollections(t *testing.T) {
	svc := newTestService(t)
	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Version != SnapshotVersion {
		t.Fatalf("Version = %q, want %q", stats.Version, SnapshotVersion)
	}
	if stats.Collections[CollectionProjects] != 4 {
		t.Fatalf("projects = %d, want 4", stats.Collections[CollectionProjects])
	}
	if stats.Collections[CollectionUsers] != 3 {
		t.Fatalf("users = %d, want 3", stats.Collections[CollectionUsers])
	}
	if len(stats.Relations) != len(domain.RelationCollections()) {
		t.Fatalf("relations = %v", stats.Relations)
	}
	if stats.SerializedBytes == 0 {
		t.Fatal("SerializedBytes = 0")
	}
	var total int
	for _, n := range stats.Collections {
		total += n
	}
	if stats.TotalRecords != total {
		t.Fatalf("TotalRecords = %d, want %d", stats.TotalRecords, total)
	}
}

func TestResetReseedsAndEmitsResetEvent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CollectionCustomers, Customer{Base: domain.Base{ID: "extra"}, Name: "Extra"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var resets int
	svc.Subscribe(domain.WildcardCollection, func(ev Event) {
		if ev.Type == EventReset {
			resets++
		}
	})
	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if resets != 1 {
		t.Fatalf("reset events = %d, want 1", resets)
	}
	if _, err := svc.Get(ctx, CollectionCustomers, "extra"); domain.CodeOf(err) != domain.CodeNotFound {
		t.Fatal("reset did not drop session data")
	}
	if _, err := svc.Get(ctx, CollectionProjects, "project-master-1"); err != nil {
		t.Fatalf("seed data missing after reset: %v", err)
	}
}

func TestSimulatedLatencyHonorsContextCancellation(t *testing.T) {
	svc := newTestService(t, WithLatency(200*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := svc.Get(ctx, CollectionUsers, "user-admin")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestSimulatedLatencyDelaysOperations(t *testing.T) {
	svc := newTestService(t, WithLatency(20*time.Millisecond))
	start := time.Now()
	if _, err := svc.Get(context.Background(), CollectionUsers, "user-admin"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("operation returned after %v, want >= 20ms", elapsed)
	}
}

func TestServiceSubscribeReceivesMutationEvents(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var got []Event
	unsubscribe := svc.Subscribe(CollectionCustomers, func(ev Event) { got = append(got, ev) })

	if _, err := svc.Create(ctx, CollectionCustomers, Customer{Base: domain.Base{ID: "c-ev"}, Name: "Ev"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	unsubscribe()
	if _, err := svc.Delete(ctx, CollectionCustomers, "c-ev"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(got) != 1 || got[0].Type != EventCreated || got[0].ID != "c-ev" {
		t.Fatalf("events = %+v", got)
	}
}

func TestServicePersistsAcrossRestart(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Create(ctx, CollectionCustomers, Customer{Base: domain.Base{ID: "durable"}, Name: "Durable"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	reopened := newTestService(t, WithKV(svc.storage.Backend()))
	if _, err := reopened.Get(ctx, CollectionCustomers, "durable"); err != nil {
		t.Fatalf("record lost across restart: %v", err)
	}
}

func TestCommitPersistsTransaction(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	txID, err := svc.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := svc.Create(ctx, CollectionCustomers, Customer{Base: domain.Base{ID: "tx-c"}, Name: "Tx"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.CommitTransaction(ctx, txID); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reopened := newTestService(t, WithKV(svc.storage.Backend()))
	if _, err := reopened.Get(ctx, CollectionCustomers, "tx-c"); err != nil {
		t.Fatalf("committed record not persisted: %v", err)
	}
}

func TestSparseUpdateThroughServiceKeepsOmittedFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	updated, err := svc.Update(ctx, CollectionTasks, "task-2", TaskUpdate{Name: domain.Set("Filling v2")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	task := updated.(Task)
	if task.Name != "Filling v2" {
		t.Fatalf("Name = %q, want Filling v2", task.Name)
	}
	if task.ScheduleID != "schedule-sub-1" || task.Status != domain.TaskStatusInProgress {
		t.Fatalf("omitted fields zeroed: %+v", task)
	}
	if task.StartDate.IsZero() || task.EndDate.IsZero() {
		t.Fatalf("omitted dates zeroed: %+v", task)
	}
	if task.AssigneeID == nil || *task.AssigneeID != "user-operator" {
		t.Fatalf("omitted assignee zeroed: %v", task.AssigneeID)
	}
}

func TestRollbackThroughServiceEmitsCompensatingEvents(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	txID, err := svc.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := svc.Create(ctx, CollectionCustomers, Customer{Base: domain.Base{ID: "tx-x"}, Name: "Tx"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var deleted []string
	svc.Subscribe(CollectionCustomers, func(ev Event) {
		if ev.Type == EventDeleted {
			deleted = append(deleted, ev.ID)
		}
	})
	if err := svc.RollbackTransaction(ctx, txID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "tx-x" {
		t.Fatalf("compensating events = %v", deleted)
	}
	if _, err := svc.Get(ctx, CollectionCustomers, "tx-x"); domain.CodeOf(err) != domain.CodeNotFound {
		t.Fatal("rolled-back record still present")
	}
}
