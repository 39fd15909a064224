package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"plancore/pkg/domain"
)

// memoryState holds every collection as a typed map keyed by record id.
// Records are cloned on the way in and out so callers can never alias the
// stored values.
type memoryState struct {
	users              map[string]User
	customers          map[string]Customer
	factories          map[string]Factory
	projects           map[string]Project
	schedules          map[string]Schedule
	tasks              map[string]Task
	comments           map[string]Comment
	userFactories      map[string]UserFactory
	projectAssignments map[string]ProjectAssignment
	factoryProjects    map[string]FactoryProject
	userCustomers      map[string]UserCustomer
}

func newMemoryState() memoryState {
	return memoryState{
		users:              make(map[string]User),
		customers:          make(map[string]Customer),
		factories:          make(map[string]Factory),
		projects:           make(map[string]Project),
		schedules:          make(map[string]Schedule),
		tasks:              make(map[string]Task),
		comments:           make(map[string]Comment),
		userFactories:      make(map[string]UserFactory),
		projectAssignments: make(map[string]ProjectAssignment),
		factoryProjects:    make(map[string]FactoryProject),
		userCustomers:      make(map[string]UserCustomer),
	}
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneUser(u User) User {
	u.LastLoginAt = cloneTimePtr(u.LastLoginAt)
	return u
}

func cloneCustomer(c Customer) Customer {
	c.EstablishedDate = cloneTimePtr(c.EstablishedDate)
	return c
}

func cloneFactory(f Factory) Factory {
	f.EstablishedDate = cloneTimePtr(f.EstablishedDate)
	return f
}

func cloneProject(p Project) Project {
	p.ParentID = cloneStringPtr(p.ParentID)
	p.ManufacturerID = cloneStringPtr(p.ManufacturerID)
	p.ContainerID = cloneStringPtr(p.ContainerID)
	p.PackagingID = cloneStringPtr(p.PackagingID)
	p.ScheduleID = cloneStringPtr(p.ScheduleID)
	return p
}

func cloneSchedule(s Schedule) Schedule { return s }

func cloneTask(t Task) Task {
	t.AssigneeID = cloneStringPtr(t.AssigneeID)
	t.DueDate = cloneTimePtr(t.DueDate)
	return t
}

func cloneComment(c Comment) Comment { return c }

func cloneUserFactory(r UserFactory) UserFactory                   { return r }
func cloneProjectAssignment(r ProjectAssignment) ProjectAssignment { return r }
func cloneFactoryProject(r FactoryProject) FactoryProject          { return r }
func cloneUserCustomer(r UserCustomer) UserCustomer                { return r }

// recordPtr is satisfied by pointers to every entity type via the embedded
// domain.Base.
type recordPtr[T any] interface {
	*T
	RecordID() string
	SetRecordID(string)
	RecordCreatedAt() time.Time
	AdoptIdentity(id string, createdAt time.Time)
	Touch(now time.Time, created bool)
}

// bucket gives the collection-agnostic operations their typed backing without
// losing the per-entity maps.
type bucket interface {
	collection() Collection
	find(st *memoryState, id string) (any, bool)
	insert(st *memoryState, rec any, now time.Time) (any, error)
	merge(st *memoryState, id string, patch any, now time.Time) (updated, previous any, err error)
	replace(st *memoryState, id string, rec any, now time.Time) (updated, previous any, err error)
	restore(st *memoryState, rec any) error
	remove(st *memoryState, id string) (any, bool)
	list(st *memoryState) []any
	size(st *memoryState) int
	encodePairs(st *memoryState) ([]snapshotPair, error)
	decodePairs(st *memoryState, pairs []snapshotPair) error
}

type bucketOf[T any, PT recordPtr[T]] struct {
	col   Collection
	sel   func(*memoryState) map[string]T
	clone func(T) T
}

func newBucket[T any, PT recordPtr[T]](col Collection, sel func(*memoryState) map[string]T, clone func(T) T) bucket {
	return bucketOf[T, PT]{col: col, sel: sel, clone: clone}
}

func (b bucketOf[T, PT]) collection() Collection { return b.col }

func (b bucketOf[T, PT]) assert(rec any) (T, *domain.Error) {
	typed, ok := rec.(T)
	if !ok {
		var zero T
		return zero, domain.ErrValidation(b.col, "", fmt.Sprintf("expected %T record, got %T", zero, rec))
	}
	return typed, nil
}

func (b bucketOf[T, PT]) find(st *memoryState, id string) (any, bool) {
	rec, ok := b.sel(st)[id]
	if !ok {
		return nil, false
	}
	return b.clone(rec), true
}

func (b bucketOf[T, PT]) insert(st *memoryState, rec any, now time.Time) (any, error) {
	typed, derr := b.assert(rec)
	if derr != nil {
		return nil, derr
	}
	pt := PT(&typed)
	if pt.RecordID() == "" {
		pt.SetRecordID(uuid.NewString())
	}
	m := b.sel(st)
	if _, exists := m[pt.RecordID()]; exists {
		return nil, domain.ErrAlreadyExists(b.col, pt.RecordID())
	}
	pt.Touch(now, true)
	m[pt.RecordID()] = b.clone(typed)
	return b.clone(typed), nil
}

// merge applies a partial update over the stored record. The patch must be
// the entity's update type; fields it leaves unset keep their stored values.
func (b bucketOf[T, PT]) merge(st *memoryState, id string, patch any, now time.Time) (any, any, error) {
	m := b.sel(st)
	existing, ok := m[id]
	if !ok {
		return nil, nil, domain.ErrNotFound(b.col, id)
	}
	applier, ok := patch.(interface{ Apply(*T) })
	if !ok {
		var zero T
		return nil, nil, domain.ErrValidation(b.col, id, fmt.Sprintf("expected update for %T, got %T", zero, patch))
	}
	prev := b.clone(existing)
	next := b.clone(existing)
	applier.Apply(&next)
	PT(&next).Touch(now, false)
	m[id] = b.clone(next)
	return b.clone(next), prev, nil
}

func (b bucketOf[T, PT]) replace(st *memoryState, id string, rec any, now time.Time) (any, any, error) {
	m := b.sel(st)
	existing, ok := m[id]
	if !ok {
		return nil, nil, domain.ErrNotFound(b.col, id)
	}
	typed, derr := b.assert(rec)
	if derr != nil {
		return nil, nil, derr
	}
	pt := PT(&typed)
	pt.AdoptIdentity(id, PT(&existing).RecordCreatedAt())
	pt.Touch(now, false)
	prev := b.clone(existing)
	m[id] = b.clone(typed)
	return b.clone(typed), prev, nil
}

func (b bucketOf[T, PT]) restore(st *memoryState, rec any) error {
	typed, derr := b.assert(rec)
	if derr != nil {
		return derr
	}
	b.sel(st)[PT(&typed).RecordID()] = b.clone(typed)
	return nil
}

func (b bucketOf[T, PT]) remove(st *memoryState, id string) (any, bool) {
	m := b.sel(st)
	existing, ok := m[id]
	if !ok {
		return nil, false
	}
	delete(m, id)
	return b.clone(existing), true
}

func (b bucketOf[T, PT]) list(st *memoryState) []any {
	m := b.sel(st)
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.clone(m[id]))
	}
	return out
}

func (b bucketOf[T, PT]) size(st *memoryState) int { return len(b.sel(st)) }

func (b bucketOf[T, PT]) encodePairs(st *memoryState) ([]snapshotPair, error) {
	m := b.sel(st)
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	pairs := make([]snapshotPair, 0, len(ids))
	for _, id := range ids {
		raw, err := json.Marshal(m[id])
		if err != nil {
			return nil, domain.ErrSerialization(fmt.Sprintf("encode %s %q", b.col, id), err)
		}
		pairs = append(pairs, snapshotPair{ID: id, Record: raw})
	}
	return pairs, nil
}

func (b bucketOf[T, PT]) decodePairs(st *memoryState, pairs []snapshotPair) error {
	m := b.sel(st)
	for _, pair := range pairs {
		var typed T
		if err := json.Unmarshal(pair.Record, &typed); err != nil {
			return domain.ErrSerialization(fmt.Sprintf("decode %s %q", b.col, pair.ID), err)
		}
		PT(&typed).SetRecordID(pair.ID)
		m[pair.ID] = typed
	}
	return nil
}

func newRegistry() (map[Collection]bucket, []bucket) {
	order := []bucket{
		newBucket[User, *User](CollectionUsers, func(st *memoryState) map[string]User { return st.users }, cloneUser),
		newBucket[Customer, *Customer](CollectionCustomers, func(st *memoryState) map[string]Customer { return st.customers }, cloneCustomer),
		newBucket[Factory, *Factory](CollectionFactories, func(st *memoryState) map[string]Factory { return st.factories }, cloneFactory),
		newBucket[Project, *Project](CollectionProjects, func(st *memoryState) map[string]Project { return st.projects }, cloneProject),
		newBucket[Schedule, *Schedule](CollectionSchedules, func(st *memoryState) map[string]Schedule { return st.schedules }, cloneSchedule),
		newBucket[Task, *Task](CollectionTasks, func(st *memoryState) map[string]Task { return st.tasks }, cloneTask),
		newBucket[Comment, *Comment](CollectionComments, func(st *memoryState) map[string]Comment { return st.comments }, cloneComment),
		newBucket[UserFactory, *UserFactory](CollectionUserFactories, func(st *memoryState) map[string]UserFactory { return st.userFactories }, cloneUserFactory),
		newBucket[ProjectAssignment, *ProjectAssignment](CollectionProjectAssignments, func(st *memoryState) map[string]ProjectAssignment { return st.projectAssignments }, cloneProjectAssignment),
		newBucket[FactoryProject, *FactoryProject](CollectionFactoryProjects, func(st *memoryState) map[string]FactoryProject { return st.factoryProjects }, cloneFactoryProject),
		newBucket[UserCustomer, *UserCustomer](CollectionUserCustomers, func(st *memoryState) map[string]UserCustomer { return st.userCustomers }, cloneUserCustomer),
	}
	byCol := make(map[Collection]bucket, len(order))
	for _, b := range order {
		byCol[b.collection()] = b
	}
	return byCol, order
}

// Store is the in-memory source of truth. All collection-agnostic operations
// route through the bucket registry; typed accessors below serve aggregation
// and validation.
type Store struct {
	mu       sync.RWMutex
	state    memoryState
	registry map[Collection]bucket
	order    []bucket
	bus      *EventBus
	log      Logger
	nowFn    func() time.Time

	txs      map[string]*transactionLog
	activeTx string
}

func NewStore(bus *EventBus, log Logger, nowFn func() time.Time) *Store {
	if bus == nil {
		bus = NewEventBus(log)
	}
	if log == nil {
		log = noopLogger{}
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	registry, order := newRegistry()
	return &Store{
		state:    newMemoryState(),
		registry: registry,
		order:    order,
		bus:      bus,
		log:      log,
		nowFn:    nowFn,
		txs:      make(map[string]*transactionLog),
	}
}

// Bus exposes the event bus for subscription.
func (s *Store) Bus() *EventBus { return s.bus }

func (s *Store) bucketFor(col Collection) (bucket, error) {
	b, ok := s.registry[col]
	if !ok {
		return nil, domain.ErrValidation(col, "", fmt.Sprintf("unknown collection %q", col))
	}
	return b, nil
}

// Create inserts rec into col. An empty record id gets a generated uuid.
// Emits a created event before returning.
func (s *Store) Create(col Collection, rec any) (any, error) {
	b, err := s.bucketFor(col)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	stored, err := b.insert(&s.state, rec, s.nowFn())
	var ev Event
	if err == nil {
		id := recordID(stored)
		s.logOp(txOp{action: EventCreated, collection: col, id: id})
		ev = Event{Type: EventCreated, Collection: col, ID: id, Data: stored, Timestamp: s.nowFn()}
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.bus.Emit(ev)
	return stored, nil
}

// Get returns a clone of the record or a not-found error.
func (s *Store) Get(col Collection, id string) (any, error) {
	b, err := s.bucketFor(col)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	rec, ok := b.find(&s.state, id)
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound(col, id)
	}
	return rec, nil
}

// List returns every record in col ordered by id.
func (s *Store) List(col Collection) ([]any, error) {
	b, err := s.bucketFor(col)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return b.list(&s.state), nil
}

// Count reports the number of records in col; unknown collections count zero.
func (s *Store) Count(col Collection) int {
	b, ok := s.registry[col]
	if !ok {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return b.size(&s.state)
}

func (s *Store) updateRecord(col Collection, id string, write func(bucket, *memoryState) (any, any, error)) (any, error) {
	b, err := s.bucketFor(col)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	updated, previous, err := write(b, &s.state)
	var ev Event
	if err == nil {
		s.logOp(txOp{action: EventUpdated, collection: col, id: id, previous: previous})
		ev = Event{Type: EventUpdated, Collection: col, ID: id, Data: updated, Previous: previous, Timestamp: s.nowFn()}
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.bus.Emit(ev)
	return updated, nil
}

// Update shallow-merges patch over the record under id and stamps updatedAt.
// The patch must be the collection's update type (domain.TaskUpdate for
// tasks, and so on); fields it leaves unset keep their stored values. Emits
// an updated event carrying both new and previous data.
func (s *Store) Update(col Collection, id string, patch any) (any, error) {
	return s.updateRecord(col, id, func(b bucket, st *memoryState) (any, any, error) {
		return b.merge(st, id, patch, s.nowFn())
	})
}

// replace swaps the whole record under id, preserving the stored id and
// creation time. The internal writers (sync propagation, reparenting,
// aggregate recompute) use it; the public update path merges patches instead.
func (s *Store) replace(col Collection, id string, rec any) (any, error) {
	return s.updateRecord(col, id, func(b bucket, st *memoryState) (any, any, error) {
		return b.replace(st, id, rec, s.nowFn())
	})
}

// Delete removes the record after enforcing the collection's referential
// policy: vetoing references abort with an integrity error, cascading
// references are deleted alongside, each with its own event.
func (s *Store) Delete(col Collection, id string) (any, error) {
	b, err := s.bucketFor(col)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if _, ok := b.find(&s.state, id); !ok {
		s.mu.Unlock()
		return nil, domain.ErrNotFound(col, id)
	}
	policy := deletePolicyFor(col)
	for _, ref := range policy.vetoes {
		if ids := ref.matches(&s.state, id); len(ids) > 0 {
			s.mu.Unlock()
			return nil, domain.ErrIntegrity(col, id,
				fmt.Sprintf("cannot delete: still referenced by %d %s record(s), e.g. %s", len(ids), ref.collection, ids[0]))
		}
	}
	var events []Event
	for _, ref := range policy.cascades {
		refBucket := s.registry[ref.collection]
		for _, refID := range ref.matches(&s.state, id) {
			removed, ok := refBucket.remove(&s.state, refID)
			if !ok {
				continue
			}
			s.logOp(txOp{action: EventDeleted, collection: ref.collection, id: refID, previous: removed})
			events = append(events, Event{Type: EventDeleted, Collection: ref.collection, ID: refID, Previous: removed, Timestamp: s.nowFn()})
		}
	}
	removed, _ := b.remove(&s.state, id)
	s.logOp(txOp{action: EventDeleted, collection: col, id: id, previous: removed})
	events = append(events, Event{Type: EventDeleted, Collection: col, ID: id, Previous: removed, Timestamp: s.nowFn()})
	s.mu.Unlock()
	s.bus.Emit(events...)
	return removed, nil
}

// BulkItem pairs a record id with its update patch for BulkUpdate.
type BulkItem struct {
	ID     string
	Record any
}

// BulkCreate inserts every record it can, collecting per-item failures
// instead of aborting. Position in recs identifies failed items.
func (s *Store) BulkCreate(col Collection, recs []any) BulkResult {
	var result BulkResult
	for i, rec := range recs {
		if _, err := s.Create(col, rec); err != nil {
			result.Errors = append(result.Errors, domain.BulkItemError{Index: i, ID: recordID(rec), Err: err})
			continue
		}
		result.Succeeded++
	}
	return result
}

// BulkUpdate applies every patch it can, collecting per-item failures.
func (s *Store) BulkUpdate(col Collection, items []BulkItem) BulkResult {
	var result BulkResult
	for i, item := range items {
		if _, err := s.Update(col, item.ID, item.Record); err != nil {
			result.Errors = append(result.Errors, domain.BulkItemError{Index: i, ID: item.ID, Err: err})
			continue
		}
		result.Succeeded++
	}
	return result
}

// replaceState swaps the whole state in one step. Used by snapshot import and
// seeding; emits no per-record events.
func (s *Store) replaceState(st memoryState) {
	s.mu.Lock()
	s.state = st
	s.txs = make(map[string]*transactionLog)
	s.activeTx = ""
	s.mu.Unlock()
}

func recordID(rec any) string {
	type ided interface{ RecordID() string }
	if r, ok := rec.(ided); ok {
		return r.RecordID()
	}
	return ""
}

// Typed accessors below avoid the any round-trip for the project-aware
// managers.

func (s *Store) Project(id string) (Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

func (s *Store) Projects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.state.projects))
	for _, p := range s.state.projects {
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SubProjectsOf returns the subs attached to masterID, ordered by id.
func (s *Store) SubProjectsOf(masterID string) []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Project
	for _, p := range s.state.projects {
		if p.IsSub() && p.ParentID != nil && *p.ParentID == masterID {
			out = append(out, cloneProject(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Masters() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Project
	for _, p := range s.state.projects {
		if p.IsMaster() {
			out = append(out, cloneProject(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) User(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.users[id]
	if !ok {
		return User{}, false
	}
	return cloneUser(u), true
}

func (s *Store) Customer(id string) (Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.customers[id]
	if !ok {
		return Customer{}, false
	}
	return cloneCustomer(c), true
}

func (s *Store) Factory(id string) (Factory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.state.factories[id]
	if !ok {
		return Factory{}, false
	}
	return cloneFactory(f), true
}

func (s *Store) Schedule(id string) (Schedule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.state.schedules[id]
	if !ok {
		return Schedule{}, false
	}
	return cloneSchedule(sc), true
}

// ScheduleForProject resolves a project's schedule, preferring the schedule
// row pointing back at the project, then the project's own scheduleId.
func (s *Store) ScheduleForProject(projectID string) (Schedule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var candidates []Schedule
	for _, sc := range s.state.schedules {
		if sc.ProjectID == projectID {
			candidates = append(candidates, cloneSchedule(sc))
		}
	}
	if len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
		return candidates[0], true
	}
	p, ok := s.state.projects[projectID]
	if !ok || p.ScheduleID == nil {
		return Schedule{}, false
	}
	sc, ok := s.state.schedules[*p.ScheduleID]
	if !ok {
		return Schedule{}, false
	}
	return cloneSchedule(sc), true
}

func (s *Store) TasksForSchedule(scheduleID string) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for _, t := range s.state.tasks {
		if t.ScheduleID == scheduleID {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
