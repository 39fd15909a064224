package core

import (
	"fmt"
	"strings"

	"plancore/pkg/domain"
)

// ValidationService enforces the master/sub invariants: sync-field ownership,
// the type/parent state machine, date containment, and foreign-key
// resolution.
type ValidationService struct {
	store *Store
	agg   *AggregationManager
	log   Logger
}

func NewValidationService(store *Store, agg *AggregationManager, log Logger) *ValidationService {
	if log == nil {
		log = noopLogger{}
	}
	return &ValidationService{store: store, agg: agg, log: log}
}

const dateLayout = "2006-01-02"

func sameStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// NormalizeCreate prepares a project record for insertion. A master's
// parentId is silently stripped. A sub pointing at a parent requires the
// parent to exist and be a master; proposed sync-field values that conflict
// with the master's are rejected naming the offending fields, then the
// master's values are written over whatever the caller supplied.
func (v *ValidationService) NormalizeCreate(p Project) (Project, error) {
	if p.IsMaster() {
		p.ParentID = nil
		return p, nil
	}
	if !p.IsSub() || p.ParentID == nil {
		return p, nil
	}
	master, ok := v.store.Project(*p.ParentID)
	if !ok {
		return Project{}, domain.ErrIntegrity(CollectionProjects, p.ID, fmt.Sprintf("parent project %q not found", *p.ParentID))
	}
	if !master.IsMaster() {
		return Project{}, domain.ErrIntegrity(CollectionProjects, p.ID, fmt.Sprintf("parent project %q is not a master", master.ID))
	}
	if fields := proposedSyncConflicts(master, p); len(fields) > 0 {
		return Project{}, domain.ErrIntegrity(CollectionProjects, p.ID,
			fmt.Sprintf("sync fields conflict with master %q: %s", master.ID, strings.Join(fields, ", ")))
	}
	p.ApplySyncFields(master)
	return p, nil
}

// proposedSyncConflicts returns the wire names of sync fields the caller set
// to a non-empty value that disagrees with the master. Empty values are
// advisory and get overwritten silently.
func proposedSyncConflicts(master, proposed Project) []string {
	masterValues := master.SyncFieldValues()
	proposedValues := proposed.SyncFieldValues()
	var fields []string
	for _, name := range domain.SyncFieldNames() {
		if proposedValues[name] != "" && proposedValues[name] != masterValues[name] {
			fields = append(fields, name)
		}
	}
	return fields
}

// GuardUpdate enforces the type/parent state machine and sync-field ownership
// on a project patch. The type never changes on update; a master never
// acquires a parentId; a sub's parentId only changes through reparenting. On
// an attached sub, a patch that provides a master-owned field with a value
// differing from the mirrored one is rejected naming the fields; fields the
// patch omits are never touched.
func (v *ValidationService) GuardUpdate(existing Project, patch ProjectUpdate) error {
	if t, ok := patch.Type.Get(); ok && t != existing.Type {
		return domain.ErrIntegrity(CollectionProjects, existing.ID, "project type cannot change on update")
	}
	if parent, ok := patch.ParentID.Get(); ok {
		if existing.IsMaster() && parent != nil {
			return domain.ErrIntegrity(CollectionProjects, existing.ID, "a master project cannot have a parentId")
		}
		if existing.IsSub() && !sameStringPtr(existing.ParentID, parent) {
			return domain.ErrIntegrity(CollectionProjects, existing.ID, "parentId can only change through reparenting")
		}
	}
	if !existing.IsSub() || existing.ParentID == nil {
		return nil
	}
	next := existing
	patch.Apply(&next)
	if fields := domain.SyncFieldMismatches(existing, next); len(fields) > 0 {
		return domain.ErrIntegrity(CollectionProjects, existing.ID,
			fmt.Sprintf("sync fields are owned by the master project: %s", strings.Join(fields, ", ")))
	}
	return nil
}

// SyncOutcome reports a sync-field propagation pass.
type SyncOutcome struct {
	Synced int `json:"synced"`
	Total  int `json:"total"`
}

// PropagateSyncFields pushes the master's sync fields onto every out-of-sync
// sub. A failing sub is logged and skipped; the pass continues.
func (v *ValidationService) PropagateSyncFields(master Project) SyncOutcome {
	subs := v.store.SubProjectsOf(master.ID)
	outcome := SyncOutcome{Total: len(subs)}
	for _, sub := range subs {
		if len(domain.SyncFieldMismatches(master, sub)) == 0 {
			outcome.Synced++
			continue
		}
		sub.ApplySyncFields(master)
		if _, err := v.store.replace(CollectionProjects, sub.ID, sub); err != nil {
			v.log.Warn("sync propagation failed", "master", master.ID, "sub", sub.ID, "error", err)
			continue
		}
		outcome.Synced++
	}
	return outcome
}

// SyncSubProjects re-runs sync-field propagation for a master on demand.
func (v *ValidationService) SyncSubProjects(masterID string) (SyncOutcome, error) {
	master, ok := v.store.Project(masterID)
	if !ok {
		return SyncOutcome{}, domain.ErrNotFound(CollectionProjects, masterID)
	}
	if !master.IsMaster() {
		return SyncOutcome{}, domain.ErrValidation(CollectionProjects, masterID, "sync source is not a master project")
	}
	return v.PropagateSyncFields(master), nil
}

// ValidateMasterSubConsistency checks that every sync field agrees across the
// project's hierarchy, collecting all violations. For a master it checks
// every sub; for an attached sub it checks against its master; an orphan sub
// is trivially consistent.
func (v *ValidationService) ValidateMasterSubConsistency(projectID string) (Report, error) {
	p, ok := v.store.Project(projectID)
	if !ok {
		return Report{}, domain.ErrNotFound(CollectionProjects, projectID)
	}
	report := domain.NewReport()
	switch {
	case p.IsMaster():
		for _, sub := range v.store.SubProjectsOf(p.ID) {
			if fields := domain.SyncFieldMismatches(p, sub); len(fields) > 0 {
				report.Add("sub project %q out of sync with master on %s", sub.ID, strings.Join(fields, ", "))
			}
		}
	case p.IsSub() && p.ParentID != nil:
		master, ok := v.store.Project(*p.ParentID)
		if !ok {
			report.Add("parent project %q not found", *p.ParentID)
			break
		}
		if fields := domain.SyncFieldMismatches(master, p); len(fields) > 0 {
			report.Add("sub project %q out of sync with master on %s", p.ID, strings.Join(fields, ", "))
		}
	}
	return report, nil
}

// ValidateProjectDates checks startDate ordering and master/sub containment,
// collecting every violation. A sub is checked against its own bounds and its
// master's; a master is checked against every sub. Zero dates are skipped.
func (v *ValidationService) ValidateProjectDates(projectID string) (Report, error) {
	p, ok := v.store.Project(projectID)
	if !ok {
		return Report{}, domain.ErrNotFound(CollectionProjects, projectID)
	}
	report := domain.NewReport()
	v.checkDateOrder(&report, p)
	switch {
	case p.IsSub() && p.ParentID != nil:
		if master, ok := v.store.Project(*p.ParentID); ok {
			v.checkContainment(&report, master, p)
		}
	case p.IsMaster():
		for _, sub := range v.store.SubProjectsOf(p.ID) {
			v.checkDateOrder(&report, sub)
			v.checkContainment(&report, p, sub)
		}
	}
	return report, nil
}

func (v *ValidationService) checkDateOrder(report *Report, p Project) {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return
	}
	if !p.StartDate.Before(p.EndDate) {
		report.Add("project %q startDate %s is not before endDate %s",
			p.ID, p.StartDate.Format(dateLayout), p.EndDate.Format(dateLayout))
	}
}

func (v *ValidationService) checkContainment(report *Report, master, sub Project) {
	if !sub.StartDate.IsZero() && !master.StartDate.IsZero() && sub.StartDate.Before(master.StartDate) {
		report.Add("sub project %q starts %s, before master start date %s",
			sub.ID, sub.StartDate.Format(dateLayout), master.StartDate.Format(dateLayout))
	}
	if !sub.EndDate.IsZero() && !master.EndDate.IsZero() && sub.EndDate.After(master.EndDate) {
		report.Add("sub project %q ends %s, after master end date %s",
			sub.ID, sub.EndDate.Format(dateLayout), master.EndDate.Format(dateLayout))
	}
}

// ValidateProjectDependencies confirms every foreign key the project carries
// resolves to an existing record of the right kind. Missing references are
// reported, never repaired.
func (v *ValidationService) ValidateProjectDependencies(projectID string) (Report, error) {
	p, ok := v.store.Project(projectID)
	if !ok {
		return Report{}, domain.ErrNotFound(CollectionProjects, projectID)
	}
	report := domain.NewReport()
	v.checkFactoryRef(&report, "manufacturer", p.ManufacturerID, domain.FactoryKindManufacturer)
	v.checkFactoryRef(&report, "container", p.ContainerID, domain.FactoryKindContainer)
	v.checkFactoryRef(&report, "packaging", p.PackagingID, domain.FactoryKindPackaging)
	if p.CustomerID != "" {
		if _, ok := v.store.Customer(p.CustomerID); !ok {
			report.Add("customer %q not found", p.CustomerID)
		}
	}
	if p.ScheduleID != nil {
		if _, ok := v.store.Schedule(*p.ScheduleID); !ok {
			report.Add("schedule %q not found", *p.ScheduleID)
		}
	}
	return report, nil
}

func (v *ValidationService) checkFactoryRef(report *Report, label string, ref *string, kind domain.FactoryKind) {
	if ref == nil {
		return
	}
	f, ok := v.store.Factory(*ref)
	if !ok {
		report.Add("%s factory %q not found", label, *ref)
		return
	}
	if f.Kind != kind {
		report.Add("%s factory %q has kind %q", label, *ref, f.Kind)
	}
}

// ReparentSubProject attaches a sub to a new master, re-running sync-field
// propagation for the new parent and recomputing aggregates on both masters.
func (v *ValidationService) ReparentSubProject(subID, masterID string) (Project, error) {
	sub, ok := v.store.Project(subID)
	if !ok {
		return Project{}, domain.ErrNotFound(CollectionProjects, subID)
	}
	if !sub.IsSub() {
		return Project{}, domain.ErrValidation(CollectionProjects, subID, "reparent subject is not a sub project")
	}
	master, ok := v.store.Project(masterID)
	if !ok {
		return Project{}, domain.ErrNotFound(CollectionProjects, masterID)
	}
	if !master.IsMaster() {
		return Project{}, domain.ErrIntegrity(CollectionProjects, masterID, "reparent target is not a master project")
	}
	previousParent := sub.ParentID
	sub.ParentID = &masterID
	sub.ApplySyncFields(master)
	updated, err := v.store.replace(CollectionProjects, subID, sub)
	if err != nil {
		return Project{}, err
	}
	v.refreshAggregates(previousParent, &masterID)
	return updated.(Project), nil
}

// DetachSubProject makes a sub stand alone. Its sync fields stay frozen at
// their last master-derived values. Detaching an orphan is a no-op.
func (v *ValidationService) DetachSubProject(subID string) (Project, error) {
	sub, ok := v.store.Project(subID)
	if !ok {
		return Project{}, domain.ErrNotFound(CollectionProjects, subID)
	}
	if !sub.IsSub() {
		return Project{}, domain.ErrValidation(CollectionProjects, subID, "detach subject is not a sub project")
	}
	if sub.ParentID == nil {
		return sub, nil
	}
	previousParent := sub.ParentID
	sub.ParentID = nil
	updated, err := v.store.replace(CollectionProjects, subID, sub)
	if err != nil {
		return Project{}, err
	}
	v.refreshAggregates(previousParent, nil)
	return updated.(Project), nil
}

func (v *ValidationService) refreshAggregates(parents ...*string) {
	for _, parent := range parents {
		if parent == nil {
			continue
		}
		if err := v.agg.UpdateMasterAggregates(*parent); err != nil {
			v.log.Warn("aggregate refresh failed", "master", *parent, "error", err)
		}
	}
}
