package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"plancore/pkg/domain"
)

func TestSubCreateMirrorsMasterSyncFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	parent := "project-master-1"
	created, err := svc.Create(ctx, CollectionProjects, Project{
		Base: domain.Base{ID: "new-sub"}, Type: ProjectTypeSub, ParentID: &parent, Name: "fresh",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sub := created.(Project)
	master := seededMaster(t, svc)
	if fields := domain.SyncFieldMismatches(master, sub); len(fields) > 0 {
		t.Fatalf("sub out of sync immediately after create: %v", fields)
	}
	if sub.CustomerID != "customer-acme" || sub.ManagerID != "user-manager" {
		t.Fatalf("sync fields not mirrored: %+v", sub)
	}
}

func TestSubCreateRejectsConflictingSyncFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	parent := "project-master-1"
	_, err := svc.Create(ctx, CollectionProjects, Project{
		Base: domain.Base{ID: "bad-sub"}, Type: ProjectTypeSub, ParentID: &parent, Name: "conflict",
		CustomerID: "customer-blue", ManagerID: "user-operator",
	})
	if domain.CodeOf(err) != domain.CodeIntegrityViolation {
		t.Fatalf("code = %v, want integrity_violation (err=%v)", domain.CodeOf(err), err)
	}
	for _, field := range []string{"customerId", "managerId"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error does not name %s: %v", field, err)
		}
	}
}

func TestSubCreateRequiresExistingMasterParent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	missing := "no-such-project"
	if _, err := svc.Create(ctx, CollectionProjects, Project{
		Base: domain.Base{ID: "orphan"}, Type: ProjectTypeSub, ParentID: &missing, Name: "x",
	}); domain.CodeOf(err) != domain.CodeIntegrityViolation {
		t.Fatalf("missing parent: code = %v, want integrity_violation", domain.CodeOf(err))
	}

	notMaster := "project-sub-1"
	if _, err := svc.Create(ctx, CollectionProjects, Project{
		Base: domain.Base{ID: "nested"}, Type: ProjectTypeSub, ParentID: &notMaster, Name: "x",
	}); domain.CodeOf(err) != domain.CodeIntegrityViolation {
		t.Fatalf("sub parent: code = %v, want integrity_violation", domain.CodeOf(err))
	}
}

func TestMasterCreateStripsParentID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	parent := "project-master-1"
	created, err := svc.Create(ctx, CollectionProjects, Project{
		Base: domain.Base{ID: "m2"}, Type: ProjectTypeMaster, ParentID: &parent, Name: "second master",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.(Project).ParentID != nil {
		t.Fatalf("master kept a parentId: %v", *created.(Project).ParentID)
	}
}

func TestMasterUpdateRejectsParentID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	master := seededMaster(t, svc)
	parent := "project-sub-1"
	patch := ProjectUpdate{ParentID: domain.Set(&parent)}
	if _, err := svc.Update(ctx, CollectionProjects, master.ID, patch); domain.CodeOf(err) != domain.CodeIntegrityViolation {
		t.Fatalf("code = %v, want integrity_violation", domain.CodeOf(err))
	}
}

func TestSubUpdateRejectsDirectSyncFieldChange(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	patch := ProjectUpdate{CustomerID: domain.Set("customer-blue")}
	_, err := svc.Update(ctx, CollectionProjects, "project-sub-1", patch)
	if domain.CodeOf(err) != domain.CodeIntegrityViolation {
		t.Fatalf("code = %v, want integrity_violation", domain.CodeOf(err))
	}
	if !strings.Contains(err.Error(), "customerId") {
		t.Fatalf("error does not name the offending field: %v", err)
	}
}

func TestMasterUpdatePropagatesSyncFieldsToSubs(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	master := seededMaster(t, svc)
	patch := ProjectUpdate{ManagerID: domain.Set("user-operator")}
	if _, err := svc.Update(ctx, CollectionProjects, master.ID, patch); err != nil {
		t.Fatalf("Update master: %v", err)
	}
	for _, id := range []string{"project-sub-1", "project-sub-2"} {
		got, err := svc.Get(ctx, CollectionProjects, id)
		if err != nil {
			t.Fatalf("Get %s: %v", id, err)
		}
		if got.(Project).ManagerID != "user-operator" {
			t.Fatalf("%s managerId = %q, want user-operator", id, got.(Project).ManagerID)
		}
	}
	// the orphan sub is untouched
	got, _ := svc.Get(ctx, CollectionProjects, "project-solo-1")
	if got.(Project).ManagerID != "user-manager" {
		t.Fatalf("orphan sub managerId changed: %q", got.(Project).ManagerID)
	}
}

func TestSyncSubProjectsReportsCounts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	outcome, err := svc.SyncSubProjects(ctx, "project-master-1")
	if err != nil {
		t.Fatalf("SyncSubProjects: %v", err)
	}
	if outcome.Total != 2 || outcome.Synced != 2 {
		t.Fatalf("outcome = %+v, want 2/2", outcome)
	}
	if _, err := svc.SyncSubProjects(ctx, "project-sub-1"); domain.CodeOf(err) != domain.CodeValidationFailure {
		t.Fatalf("sub target: code = %v, want validation_failure", domain.CodeOf(err))
	}
}

func TestValidateMasterSubConsistency(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	report, err := svc.ValidateMasterSubConsistency(ctx, "project-master-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !report.Valid {
		t.Fatalf("seeded hierarchy reported inconsistent: %v", report.Errors)
	}
	if _, err := svc.ValidateMasterSubConsistency(ctx, "missing"); domain.CodeOf(err) != domain.CodeNotFound {
		t.Fatalf("code = %v, want not_found", domain.CodeOf(err))
	}
}

func TestValidateProjectDatesCitesMasterStartDate(t *testing.T) {
	store := newTestStore(t)
	agg := NewAggregationManager(store, nil)
	val := NewValidationService(store, agg, nil)

	mustCreate(t, store, CollectionProjects, Project{
		Base: domain.Base{ID: "m1"}, Type: ProjectTypeMaster, Name: "master",
		StartDate: time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC),
	})
	parent := "m1"
	mustCreate(t, store, CollectionProjects, Project{
		Base: domain.Base{ID: "s1"}, Type: ProjectTypeSub, ParentID: &parent, Name: "early sub",
		StartDate: time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})

	report, err := val.ValidateProjectDates("s1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if report.Valid {
		t.Fatal("expected a containment violation")
	}
	var cited bool
	for _, msg := range report.Errors {
		if strings.Contains(msg, "2026-02-01") {
			cited = true
		}
	}
	if !cited {
		t.Fatalf("violation does not cite the master's start date: %v", report.Errors)
	}
}

func TestValidateProjectDatesChecksOrdering(t *testing.T) {
	store := newTestStore(t)
	val := NewValidationService(store, NewAggregationManager(store, nil), nil)

	mustCreate(t, store, CollectionProjects, Project{
		Base: domain.Base{ID: "p1"}, Type: ProjectTypeSub, Name: "inverted",
		StartDate: time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	})
	report, err := val.ValidateProjectDates("p1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if report.Valid || len(report.Errors) != 1 {
		t.Fatalf("report = %+v, want one ordering violation", report)
	}
}

func TestValidateProjectDependencies(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	report, err := svc.ValidateProjectDependencies(ctx, "project-sub-1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !report.Valid {
		t.Fatalf("seeded sub reported broken dependencies: %v", report.Errors)
	}
}

func TestValidateProjectDependenciesReportsMissingAndMiskinded(t *testing.T) {
	store := newTestStore(t)
	val := NewValidationService(store, NewAggregationManager(store, nil), nil)

	mustCreate(t, store, CollectionFactories, Factory{Base: domain.Base{ID: "f-pkg"}, Name: "Pack", Kind: domain.FactoryKindPackaging})
	missing := "f-missing"
	wrongKind := "f-pkg"
	mustCreate(t, store, CollectionProjects, Project{
		Base: domain.Base{ID: "p1"}, Type: ProjectTypeSub, Name: "broken",
		CustomerID:     "c-missing",
		ManufacturerID: &wrongKind,
		ContainerID:    &missing,
	})

	report, err := val.ValidateProjectDependencies("p1")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if report.Valid || len(report.Errors) != 3 {
		t.Fatalf("report = %+v, want 3 violations", report)
	}
}

func TestReparentSubProject(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CollectionProjects, Project{
		Base: domain.Base{ID: "m2"}, Type: ProjectTypeMaster, Name: "second master",
		CustomerID: "customer-blue", CustomerName: "Blue Harbor", ManagerID: "user-operator", CreatedBy: "user-admin",
	}); err != nil {
		t.Fatalf("Create master: %v", err)
	}

	sub, err := svc.ReparentSubProject(ctx, "project-sub-2", "m2")
	if err != nil {
		t.Fatalf("Reparent: %v", err)
	}
	if sub.ParentID == nil || *sub.ParentID != "m2" {
		t.Fatalf("parentId = %v, want m2", sub.ParentID)
	}
	if sub.CustomerID != "customer-blue" || sub.ManagerID != "user-operator" {
		t.Fatalf("sync fields not re-mirrored for the new master: %+v", sub)
	}

	// both masters' aggregates reflect the move
	old := seededMaster(t, svc)
	if old.Sales != 1200.5 {
		t.Fatalf("old master sales = %v, want 1200.5", old.Sales)
	}
	got, _ := svc.Get(ctx, CollectionProjects, "m2")
	if got.(Project).Sales != 2300 {
		t.Fatalf("new master sales = %v, want 2300", got.(Project).Sales)
	}
}

func TestReparentRejectsInvalidTargets(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ReparentSubProject(ctx, "project-master-1", "project-master-1"); domain.CodeOf(err) != domain.CodeValidationFailure {
		t.Fatalf("master subject: code = %v, want validation_failure", domain.CodeOf(err))
	}
	if _, err := svc.ReparentSubProject(ctx, "project-sub-1", "project-sub-2"); domain.CodeOf(err) != domain.CodeIntegrityViolation {
		t.Fatalf("sub target: code = %v, want integrity_violation", domain.CodeOf(err))
	}
	if _, err := svc.ReparentSubProject(ctx, "project-sub-1", "missing"); domain.CodeOf(err) != domain.CodeNotFound {
		t.Fatalf("missing target: code = %v, want not_found", domain.CodeOf(err))
	}
}

func TestDetachSubProjectFreezesSyncFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sub, err := svc.DetachSubProject(ctx, "project-sub-2")
	if err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if sub.ParentID != nil {
		t.Fatalf("parentId = %v, want nil", *sub.ParentID)
	}
	// last master-derived values stay in place
	if sub.CustomerID != "customer-acme" || sub.ManagerID != "user-manager" {
		t.Fatalf("sync fields not frozen: %+v", sub)
	}

	master := seededMaster(t, svc)
	if master.Sales != 1200.5 {
		t.Fatalf("master sales = %v, want 1200.5 after detach", master.Sales)
	}

	// detaching an orphan is a no-op
	again, err := svc.DetachSubProject(ctx, "project-sub-2")
	if err != nil || again.ParentID != nil {
		t.Fatalf("second detach: %v, %+v", err, again.ParentID)
	}
}

func TestSubUpdateCannotChangeParentDirectly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	patch := ProjectUpdate{ParentID: domain.Set[*string](nil)}
	if _, err := svc.Update(ctx, CollectionProjects, "project-sub-1", patch); domain.CodeOf(err) != domain.CodeIntegrityViolation {
		t.Fatalf("code = %v, want integrity_violation", domain.CodeOf(err))
	}
}
