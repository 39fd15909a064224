package core

import (
	"errors"
	"sort"
	"time"

	"plancore/pkg/domain"
)

// AggregationManager keeps a master project's derived fields consistent with
// its current sub set and answers cross-sub queries.
type AggregationManager struct {
	store *Store
	log   Logger
}

func NewAggregationManager(store *Store, log Logger) *AggregationManager {
	if log == nil {
		log = noopLogger{}
	}
	return &AggregationManager{store: store, log: log}
}

// UpdateMasterAggregates recomputes sales, purchase, startDate and endDate on
// the master from its subs. With zero subs the master is left untouched.
// Sums coerce each sub's amounts; date bounds are the min start and max end
// across subs, falling back to the master's own bound when no sub supplies
// one. Writing is skipped when nothing changed, which keeps the operation
// idempotent.
func (a *AggregationManager) UpdateMasterAggregates(masterID string) error {
	master, ok := a.store.Project(masterID)
	if !ok {
		return domain.ErrNotFound(CollectionProjects, masterID)
	}
	if !master.IsMaster() {
		return domain.ErrValidation(CollectionProjects, masterID, "aggregation target is not a master project")
	}
	subs := a.store.SubProjectsOf(masterID)
	if len(subs) == 0 {
		return nil
	}

	var sales, purchase Amount
	var start, end time.Time
	for _, sub := range subs {
		sales += sub.Sales
		purchase += sub.Purchase
		if !sub.StartDate.IsZero() && (start.IsZero() || sub.StartDate.Before(start)) {
			start = sub.StartDate
		}
		if !sub.EndDate.IsZero() && (end.IsZero() || sub.EndDate.After(end)) {
			end = sub.EndDate
		}
	}
	if start.IsZero() {
		start = master.StartDate
	}
	if end.IsZero() {
		end = master.EndDate
	}

	if master.Sales == sales && master.Purchase == purchase &&
		master.StartDate.Equal(start) && master.EndDate.Equal(end) {
		return nil
	}
	master.Sales = sales
	master.Purchase = purchase
	master.StartDate = start
	master.EndDate = end
	if _, err := a.store.replace(CollectionProjects, masterID, master); err != nil {
		return err
	}
	a.log.Debug("master aggregates updated", "master", masterID, "subs", len(subs), "sales", float64(sales), "purchase", float64(purchase))
	return nil
}

// UpdateAllMasters recomputes every master's aggregates, collecting failures
// instead of stopping at the first.
func (a *AggregationManager) UpdateAllMasters() error {
	var errs []error
	for _, master := range a.store.Masters() {
		if err := a.UpdateMasterAggregates(master.ID); err != nil {
			a.log.Warn("aggregate recompute failed", "master", master.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SubProjects returns the subs attached to masterID.
func (a *AggregationManager) SubProjects(masterID string) []Project {
	return a.store.SubProjectsOf(masterID)
}

// HasSubProjects reports whether any sub points at masterID.
func (a *AggregationManager) HasSubProjects(masterID string) bool {
	return len(a.store.SubProjectsOf(masterID)) > 0
}

// MasterOf resolves a sub's master. It returns false, never an error, when
// the id is unknown, not a sub, orphaned, or the parent is missing or not a
// master.
func (a *AggregationManager) MasterOf(subID string) (Project, bool) {
	sub, ok := a.store.Project(subID)
	if !ok || !sub.IsSub() || sub.ParentID == nil {
		return Project{}, false
	}
	master, ok := a.store.Project(*sub.ParentID)
	if !ok || !master.IsMaster() {
		return Project{}, false
	}
	return master, true
}

// FactoriesForMaster returns the deduplicated union of every factory
// referenced by the master's subs, ordered by factory id. Dangling references
// are skipped.
func (a *AggregationManager) FactoriesForMaster(masterID string) []Factory {
	seen := make(map[string]bool)
	var out []Factory
	add := func(ref *string) {
		if ref == nil || seen[*ref] {
			return
		}
		seen[*ref] = true
		if f, ok := a.store.Factory(*ref); ok {
			out = append(out, f)
		}
	}
	for _, sub := range a.store.SubProjectsOf(masterID) {
		add(sub.ManufacturerID)
		add(sub.ContainerID)
		add(sub.PackagingID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AggregatedTask is a task annotated with the sub project it belongs to.
type AggregatedTask struct {
	Task
	SubProjectID   string `json:"subProjectId"`
	SubProjectName string `json:"subProjectName"`
}

// AggregatedTasks collects every task across the master's subs, each tagged
// with its sub project's id and name. Subs without a schedule contribute
// nothing. Results are ordered by sub id, then task id.
func (a *AggregationManager) AggregatedTasks(masterID string) ([]AggregatedTask, error) {
	master, ok := a.store.Project(masterID)
	if !ok {
		return nil, domain.ErrNotFound(CollectionProjects, masterID)
	}
	if !master.IsMaster() {
		return nil, domain.ErrValidation(CollectionProjects, masterID, "task aggregation target is not a master project")
	}
	var out []AggregatedTask
	for _, sub := range a.store.SubProjectsOf(masterID) {
		schedule, ok := a.store.ScheduleForProject(sub.ID)
		if !ok {
			continue
		}
		for _, task := range a.store.TasksForSchedule(schedule.ID) {
			out = append(out, AggregatedTask{Task: task, SubProjectID: sub.ID, SubProjectName: sub.Name})
		}
	}
	return out, nil
}
