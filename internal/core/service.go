package core

import (
	"context"
	"errors"
	"time"

	"plancore/internal/infra/kv"
	"plancore/pkg/domain"
)

// Service is the public face of the store. It wires the event bus, the
// in-memory store, persistence, aggregation and validation together, adds
// simulated latency and metrics, and persists after every successful
// mutation. Construct one per process and pass it by reference.
type Service struct {
	store   *Store
	bus     *EventBus
	storage *StorageManager
	agg     *AggregationManager
	val     *ValidationService
	log     Logger
	metrics MetricsRecorder
	latency time.Duration
	nowFn   func() time.Time
}

// Option configures a Service.
type Option func(*options)

type options struct {
	backend     kv.Store
	snapshotKey string
	log         Logger
	metrics     MetricsRecorder
	latency     time.Duration
	nowFn       func() time.Time
}

// WithKV selects the snapshot persistence backend. Defaults to in-memory.
func WithKV(backend kv.Store) Option { return func(o *options) { o.backend = backend } }

// WithSnapshotKey overrides the key the snapshot is stored under.
func WithSnapshotKey(key string) Option { return func(o *options) { o.snapshotKey = key } }

// WithLogger sets the structured logger. Defaults to no output.
func WithLogger(log Logger) Option { return func(o *options) { o.log = log } }

// WithMetrics sets the operation metrics recorder. Defaults to none.
func WithMetrics(m MetricsRecorder) Option { return func(o *options) { o.metrics = m } }

// WithLatency adds a simulated delay before every operation, interruptible
// through the operation's context.
func WithLatency(d time.Duration) Option { return func(o *options) { o.latency = d } }

// WithClock overrides the time source used for record stamps and snapshot
// timestamps.
func WithClock(nowFn func() time.Time) Option { return func(o *options) { o.nowFn = nowFn } }

// NewService builds the store and hydrates it: a persisted snapshot with the
// current version wins; a missing, corrupt, or version-mismatched snapshot
// falls back to fresh seed data. A failing backend never prevents startup.
func NewService(ctx context.Context, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = noopLogger{}
	}
	if o.metrics == nil {
		o.metrics = noopMetrics{}
	}
	if o.nowFn == nil {
		o.nowFn = time.Now
	}

	bus := NewEventBus(o.log)
	store := NewStore(bus, o.log, o.nowFn)
	storage := NewStorageManager(o.backend, o.snapshotKey, o.log, o.nowFn)
	agg := NewAggregationManager(store, o.log)
	val := NewValidationService(store, agg, o.log)

	s := &Service{
		store:   store,
		bus:     bus,
		storage: storage,
		agg:     agg,
		val:     val,
		log:     o.log,
		metrics: o.metrics,
		latency: o.latency,
		nowFn:   o.nowFn,
	}
	s.bootstrap(ctx)
	return s, nil
}

func (s *Service) bootstrap(ctx context.Context) {
	payload, ok, err := s.storage.Load(ctx)
	if err != nil {
		s.log.Warn("snapshot load failed, seeding fresh data", "error", err)
	} else if ok {
		if err := s.storage.Deserialize(s.store, payload); err != nil {
			if errors.Is(err, ErrSnapshotVersionMismatch) {
				s.log.Info("snapshot version mismatch, seeding fresh data", "error", err)
			} else {
				s.log.Warn("snapshot decode failed, seeding fresh data", "error", err)
			}
		} else {
			if err := s.agg.UpdateAllMasters(); err != nil {
				s.log.Warn("aggregate recompute after load failed", "error", err)
			}
			s.log.Info("store hydrated from snapshot", "driver", s.storage.Backend().Driver())
			return
		}
	}
	s.seed(ctx)
}

func (s *Service) seed(ctx context.Context) {
	s.store.replaceState(seedState(s.nowFn()))
	if err := s.agg.UpdateAllMasters(); err != nil {
		s.log.Warn("aggregate recompute after seed failed", "error", err)
	}
	s.persist(ctx)
	s.log.Info("store seeded")
}

// persist writes the snapshot, logging failures instead of surfacing them.
// The in-memory state stays authoritative for the session either way.
func (s *Service) persist(ctx context.Context) {
	if err := s.storage.Save(ctx, s.store); err != nil {
		s.log.Error("persistence failed, in-memory state remains authoritative", "error", err)
	}
}

// wait applies the simulated latency, honoring context cancellation.
func (s *Service) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) finish(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
}

// Subscribe registers a handler for one collection's events, or every event
// via domain.WildcardCollection. Returns the unsubscribe function.
func (s *Service) Subscribe(col Collection, fn EventHandler) func() {
	return s.bus.Subscribe(col, fn)
}

// Create inserts a record. Project records pass through the hierarchy rules
// first: a master's parentId is stripped, an attached sub is validated
// against its master and mirrored before insertion.
func (s *Service) Create(ctx context.Context, col Collection, rec any) (created any, err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "create", start, err) }()
	if err = s.wait(ctx); err != nil {
		return nil, err
	}
	if col == CollectionProjects {
		if p, ok := rec.(Project); ok {
			return s.createProject(ctx, p)
		}
	}
	created, err = s.store.Create(col, rec)
	if err != nil {
		return nil, err
	}
	s.persist(ctx)
	return created, nil
}

func (s *Service) createProject(ctx context.Context, p Project) (any, error) {
	normalized, err := s.val.NormalizeCreate(p)
	if err != nil {
		return nil, err
	}
	created, err := s.store.Create(CollectionProjects, normalized)
	if err != nil {
		return nil, err
	}
	project := created.(Project)
	if project.IsSub() && project.ParentID != nil {
		if err := s.agg.UpdateMasterAggregates(*project.ParentID); err != nil {
			s.log.Warn("aggregate update after sub create failed", "master", *project.ParentID, "error", err)
		}
	}
	s.persist(ctx)
	return created, nil
}

// Get returns the record under id.
func (s *Service) Get(ctx context.Context, col Collection, id string) (rec any, err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "get", start, err) }()
	if err = s.wait(ctx); err != nil {
		return nil, err
	}
	return s.store.Get(col, id)
}

// GetAll returns every record in the collection, ordered by id.
func (s *Service) GetAll(ctx context.Context, col Collection) (recs []any, err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "getAll", start, err) }()
	if err = s.wait(ctx); err != nil {
		return nil, err
	}
	return s.store.List(col)
}

// Update shallow-merges the patch over the record under id; fields the patch
// leaves unset keep their stored values. Project patches pass through the
// hierarchy guards; a master's sync-field change propagates to its subs, a
// sub's change refreshes its master's aggregates.
func (s *Service) Update(ctx context.Context, col Collection, id string, patch any) (updated any, err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "update", start, err) }()
	if err = s.wait(ctx); err != nil {
		return nil, err
	}
	if col == CollectionProjects {
		if p, ok := patch.(ProjectUpdate); ok {
			return s.updateProject(ctx, id, p)
		}
	}
	updated, err = s.store.Update(col, id, patch)
	if err != nil {
		return nil, err
	}
	s.persist(ctx)
	return updated, nil
}

func (s *Service) updateProject(ctx context.Context, id string, patch ProjectUpdate) (any, error) {
	existing, ok := s.store.Project(id)
	if !ok {
		return nil, domain.ErrNotFound(CollectionProjects, id)
	}
	if err := s.val.GuardUpdate(existing, patch); err != nil {
		return nil, err
	}
	updated, err := s.store.Update(CollectionProjects, id, patch)
	if err != nil {
		return nil, err
	}
	project := updated.(Project)
	if project.IsMaster() && len(domain.SyncFieldMismatches(existing, project)) > 0 {
		outcome := s.val.PropagateSyncFields(project)
		s.log.Debug("sync fields propagated", "master", id, "synced", outcome.Synced, "total", outcome.Total)
	}
	if project.IsSub() && project.ParentID != nil {
		if err := s.agg.UpdateMasterAggregates(*project.ParentID); err != nil {
			s.log.Warn("aggregate update after sub update failed", "master", *project.ParentID, "error", err)
		}
	}
	s.persist(ctx)
	return updated, nil
}

// Delete removes the record under id, enforcing the collection's delete
// policy. Deleting an attached sub refreshes its master's aggregates.
func (s *Service) Delete(ctx context.Context, col Collection, id string) (removed any, err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "delete", start, err) }()
	if err = s.wait(ctx); err != nil {
		return nil, err
	}
	removed, err = s.store.Delete(col, id)
	if err != nil {
		return nil, err
	}
	if col == CollectionProjects {
		if p, ok := removed.(Project); ok && p.IsSub() && p.ParentID != nil {
			if aggErr := s.agg.UpdateMasterAggregates(*p.ParentID); aggErr != nil {
				s.log.Warn("aggregate update after sub delete failed", "master", *p.ParentID, "error", aggErr)
			}
		}
	}
	s.persist(ctx)
	return removed, nil
}

// BulkCreate inserts records item by item, reporting per-item failures.
// Applied items are not rolled back on partial failure.
func (s *Service) BulkCreate(ctx context.Context, col Collection, recs []any) (result BulkResult, err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "bulkCreate", start, err) }()
	if err = s.wait(ctx); err != nil {
		return BulkResult{}, err
	}
	result = s.store.BulkCreate(col, recs)
	s.persist(ctx)
	return result, nil
}

// BulkUpdate applies patches item by item, reporting per-item failures.
func (s *Service) BulkUpdate(ctx context.Context, col Collection, items []BulkItem) (result BulkResult, err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "bulkUpdate", start, err) }()
	if err = s.wait(ctx); err != nil {
		return BulkResult{}, err
	}
	result = s.store.BulkUpdate(col, items)
	s.persist(ctx)
	return result, nil
}

// BeginTransaction opens a transaction and returns its id. Mutations made
// while it is active are recorded for rollback.
func (s *Service) BeginTransaction(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.store.Begin(), nil
}

// CommitTransaction closes the transaction and persists the store.
func (s *Service) CommitTransaction(ctx context.Context, txID string) error {
	if err := s.store.Commit(txID); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// RollbackTransaction undoes the transaction's recorded operations in
// reverse order, in memory only.
func (s *Service) RollbackTransaction(ctx context.Context, txID string) error {
	if err := s.store.Rollback(txID); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// Stats summarizes the store: version, per-collection record counts,
// relation-row counts, and the serialized snapshot size.
type Stats struct {
	Version         string             `json:"version"`
	Collections     map[Collection]int `json:"collections"`
	Relations       map[Collection]int `json:"relations"`
	TotalRecords    int                `json:"totalRecords"`
	SerializedBytes int                `json:"serializedBytes"`
}

// Stats reports the current store statistics.
func (s *Service) Stats(ctx context.Context) (stats Stats, err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "stats", start, err) }()
	if err = s.wait(ctx); err != nil {
		return Stats{}, err
	}
	stats = Stats{
		Version:     SnapshotVersion,
		Collections: make(map[Collection]int),
		Relations:   make(map[Collection]int),
	}
	for _, col := range domain.Collections() {
		n := s.store.Count(col)
		stats.Collections[col] = n
		stats.TotalRecords += n
	}
	for _, col := range domain.RelationCollections() {
		stats.Relations[col] = s.store.Count(col)
	}
	payload, serr := s.storage.Serialize(s.store)
	if serr != nil {
		return Stats{}, serr
	}
	stats.SerializedBytes = len(payload)
	return stats, nil
}

// Export returns the full-store snapshot as a JSON string.
func (s *Service) Export(ctx context.Context) (payload string, err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "export", start, err) }()
	if err = s.wait(ctx); err != nil {
		return "", err
	}
	raw, serr := s.storage.Serialize(s.store)
	if serr != nil {
		return "", serr
	}
	return string(raw), nil
}

// Import replaces the whole store with the given snapshot payload, repairs
// broken references, recomputes every master's aggregates, and persists. A
// version mismatch or malformed payload is rejected without touching the
// current state.
func (s *Service) Import(ctx context.Context, payload string) (err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "import", start, err) }()
	if err = s.wait(ctx); err != nil {
		return err
	}
	if err = s.storage.Deserialize(s.store, []byte(payload)); err != nil {
		return err
	}
	if aggErr := s.agg.UpdateAllMasters(); aggErr != nil {
		s.log.Warn("aggregate recompute after import failed", "error", aggErr)
	}
	s.persist(ctx)
	s.bus.Emit(Event{Type: EventReset, Collection: domain.WildcardCollection, Timestamp: s.nowFn()})
	return nil
}

// Reset drops the persisted snapshot and reseeds the store.
func (s *Service) Reset(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "reset", start, err) }()
	if err = s.wait(ctx); err != nil {
		return err
	}
	if clearErr := s.storage.Clear(ctx); clearErr != nil {
		s.log.Warn("snapshot clear failed", "error", clearErr)
	}
	s.store.replaceState(seedState(s.nowFn()))
	if aggErr := s.agg.UpdateAllMasters(); aggErr != nil {
		s.log.Warn("aggregate recompute after reset failed", "error", aggErr)
	}
	s.persist(ctx)
	s.bus.Emit(Event{Type: EventReset, Collection: domain.WildcardCollection, Timestamp: s.nowFn()})
	return nil
}

// UpdateMasterAggregates recomputes one master's derived fields on demand.
func (s *Service) UpdateMasterAggregates(ctx context.Context, masterID string) (err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "updateMasterAggregates", start, err) }()
	if err = s.wait(ctx); err != nil {
		return err
	}
	if err = s.agg.UpdateMasterAggregates(masterID); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// ReaggregateAll recomputes every master's derived fields.
func (s *Service) ReaggregateAll(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "reaggregateAll", start, err) }()
	if err = s.wait(ctx); err != nil {
		return err
	}
	if err = s.agg.UpdateAllMasters(); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// AggregatedTasks returns every task across the master's subs, tagged with
// the owning sub's id and name.
func (s *Service) AggregatedTasks(ctx context.Context, masterID string) (tasks []AggregatedTask, err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "aggregatedTasks", start, err) }()
	if err = s.wait(ctx); err != nil {
		return nil, err
	}
	return s.agg.AggregatedTasks(masterID)
}

// SubProjects returns the subs attached to masterID.
func (s *Service) SubProjects(ctx context.Context, masterID string) ([]Project, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.agg.SubProjects(masterID), nil
}

// MasterOf resolves a sub's master; ok is false for anything that is not an
// attached sub with a valid master.
func (s *Service) MasterOf(ctx context.Context, subID string) (Project, bool, error) {
	if err := s.wait(ctx); err != nil {
		return Project{}, false, err
	}
	master, ok := s.agg.MasterOf(subID)
	return master, ok, nil
}

// FactoriesForMaster returns the union of factories referenced by the
// master's subs.
func (s *Service) FactoriesForMaster(ctx context.Context, masterID string) ([]Factory, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.agg.FactoriesForMaster(masterID), nil
}

// SyncSubProjects re-runs sync-field propagation for the master.
func (s *Service) SyncSubProjects(ctx context.Context, masterID string) (outcome SyncOutcome, err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "syncSubProjects", start, err) }()
	if err = s.wait(ctx); err != nil {
		return SyncOutcome{}, err
	}
	outcome, err = s.val.SyncSubProjects(masterID)
	if err != nil {
		return SyncOutcome{}, err
	}
	s.persist(ctx)
	return outcome, nil
}

// ValidateMasterSubConsistency checks sync-field agreement across the
// project's hierarchy.
func (s *Service) ValidateMasterSubConsistency(ctx context.Context, projectID string) (Report, error) {
	if err := s.wait(ctx); err != nil {
		return Report{}, err
	}
	return s.val.ValidateMasterSubConsistency(projectID)
}

// ValidateProjectDates checks date ordering and master/sub containment.
func (s *Service) ValidateProjectDates(ctx context.Context, projectID string) (Report, error) {
	if err := s.wait(ctx); err != nil {
		return Report{}, err
	}
	return s.val.ValidateProjectDates(projectID)
}

// ValidateProjectDependencies checks that every foreign key on the project
// resolves.
func (s *Service) ValidateProjectDependencies(ctx context.Context, projectID string) (Report, error) {
	if err := s.wait(ctx); err != nil {
		return Report{}, err
	}
	return s.val.ValidateProjectDependencies(projectID)
}

// ReparentSubProject attaches a sub to a new master.
func (s *Service) ReparentSubProject(ctx context.Context, subID, masterID string) (sub Project, err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "reparentSubProject", start, err) }()
	if err = s.wait(ctx); err != nil {
		return Project{}, err
	}
	sub, err = s.val.ReparentSubProject(subID, masterID)
	if err != nil {
		return Project{}, err
	}
	s.persist(ctx)
	return sub, nil
}

// DetachSubProject makes a sub stand alone, keeping its sync fields frozen
// at their last master-derived values.
func (s *Service) DetachSubProject(ctx context.Context, subID string) (sub Project, err error) {
	start := time.Now()
	defer func() { s.finish(ctx, "detachSubProject", start, err) }()
	if err = s.wait(ctx); err != nil {
		return Project{}, err
	}
	sub, err = s.val.DetachSubProject(subID)
	if err != nil {
		return Project{}, err
	}
	s.persist(ctx)
	return sub, nil
}
