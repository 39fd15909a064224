package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"plancore/internal/infra/kv"
	kvfs "plancore/internal/infra/kv/fs"
	kvmemory "plancore/internal/infra/kv/memory"
	kvs3 "plancore/internal/infra/kv/s3"
	"plancore/internal/infra/persistence/postgres"
	"plancore/internal/infra/persistence/sqlite"
	"plancore/pkg/domain"
)

// SnapshotVersion tags persisted payloads. A loaded snapshot with a different
// version is discarded in favor of fresh seed data; there is no migration.
const SnapshotVersion = "1.0.0"

// DefaultSnapshotKey is where the full-store snapshot lives in the key-value
// backend.
const DefaultSnapshotKey = "plancore:store"

// ErrSnapshotVersionMismatch marks a snapshot written by an incompatible
// engine version.
var ErrSnapshotVersionMismatch = errors.New("snapshot version mismatch")

// snapshotPair serializes as an ["id", record] tuple so collections persist
// as ordered lists of pairs rather than JSON objects.
type snapshotPair struct {
	ID     string
	Record json.RawMessage
}

func (p snapshotPair) MarshalJSON() ([]byte, error) {
	id, err := json.Marshal(p.ID)
	if err != nil {
		return nil, err
	}
	return json.Marshal([2]json.RawMessage{id, p.Record})
}

func (p *snapshotPair) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 2 {
		return fmt.Errorf("snapshot pair has %d elements, want 2", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &p.ID); err != nil {
		return err
	}
	p.Record = tuple[1]
	return nil
}

type snapshotEnvelope struct {
	Version   string                        `json:"version"`
	Timestamp time.Time                     `json:"timestamp"`
	Data      map[Collection][]snapshotPair `json:"data"`
}

func (s *Store) encodeSnapshot(version string, now time.Time) (snapshotEnvelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	env := snapshotEnvelope{
		Version:   version,
		Timestamp: now,
		Data:      make(map[Collection][]snapshotPair, len(s.order)),
	}
	for _, b := range s.order {
		pairs, err := b.encodePairs(&s.state)
		if err != nil {
			return snapshotEnvelope{}, err
		}
		env.Data[b.collection()] = pairs
	}
	return env, nil
}

// importEnvelope rebuilds the whole state from a decoded snapshot, repairing
// broken references, and swaps it in atomically. Emits no per-record events.
func (s *Store) importEnvelope(env snapshotEnvelope) error {
	st := newMemoryState()
	for _, b := range s.order {
		pairs, ok := env.Data[b.collection()]
		if !ok {
			continue
		}
		if err := b.decodePairs(&st, pairs); err != nil {
			return err
		}
	}
	repairState(&st, s.log)
	s.replaceState(st)
	return nil
}

// repairState drops or mends records whose references no longer resolve, so
// a hand-edited or partially written snapshot cannot poison the store.
// Projects pointing at a missing parent become orphans; dangling factory and
// schedule references are cleared; dependent rows with a missing endpoint are
// dropped.
func repairState(st *memoryState, log Logger) {
	for id, p := range st.projects {
		changed := false
		if p.IsMaster() && p.ParentID != nil {
			p.ParentID = nil
			changed = true
		}
		if p.ParentID != nil {
			parent, ok := st.projects[*p.ParentID]
			if !ok || !parent.IsMaster() {
				log.Warn("snapshot repair: orphaning sub project", "project", id, "parent", *p.ParentID)
				p.ParentID = nil
				changed = true
			}
		}
		clearDangling := func(ref **string) {
			if *ref == nil {
				return
			}
			if _, ok := st.factories[**ref]; !ok {
				log.Warn("snapshot repair: clearing factory reference", "project", id, "factory", **ref)
				*ref = nil
				changed = true
			}
		}
		clearDangling(&p.ManufacturerID)
		clearDangling(&p.ContainerID)
		clearDangling(&p.PackagingID)
		if p.ScheduleID != nil {
			if _, ok := st.schedules[*p.ScheduleID]; !ok {
				log.Warn("snapshot repair: clearing schedule reference", "project", id, "schedule", *p.ScheduleID)
				p.ScheduleID = nil
				changed = true
			}
		}
		if changed {
			st.projects[id] = p
		}
	}
	for id, sc := range st.schedules {
		if _, ok := st.projects[sc.ProjectID]; !ok {
			log.Warn("snapshot repair: dropping schedule without project", "schedule", id, "project", sc.ProjectID)
			delete(st.schedules, id)
		}
	}
	for id, t := range st.tasks {
		if _, ok := st.schedules[t.ScheduleID]; !ok {
			log.Warn("snapshot repair: dropping task without schedule", "task", id, "schedule", t.ScheduleID)
			delete(st.tasks, id)
		}
	}
	for id, c := range st.comments {
		if _, ok := st.projects[c.ProjectID]; !ok {
			delete(st.comments, id)
		}
	}
	for id, row := range st.userFactories {
		if _, ok := st.users[row.UserID]; !ok {
			delete(st.userFactories, id)
			continue
		}
		if _, ok := st.factories[row.FactoryID]; !ok {
			delete(st.userFactories, id)
		}
	}
	for id, row := range st.projectAssignments {
		if _, ok := st.users[row.UserID]; !ok {
			delete(st.projectAssignments, id)
			continue
		}
		if _, ok := st.projects[row.ProjectID]; !ok {
			delete(st.projectAssignments, id)
		}
	}
	for id, row := range st.factoryProjects {
		if _, ok := st.factories[row.FactoryID]; !ok {
			delete(st.factoryProjects, id)
			continue
		}
		if _, ok := st.projects[row.ProjectID]; !ok {
			delete(st.factoryProjects, id)
		}
	}
	for id, row := range st.userCustomers {
		if _, ok := st.users[row.UserID]; !ok {
			delete(st.userCustomers, id)
			continue
		}
		if _, ok := st.customers[row.CustomerID]; !ok {
			delete(st.userCustomers, id)
		}
	}
}

// StorageManager serializes the store to a single key in a key-value backend
// and hydrates it back. Date-valued fields round-trip through their typed
// representations; a payload carrying a foreign version is rejected with
// ErrSnapshotVersionMismatch so the caller can fall back to seed data.
type StorageManager struct {
	kv    kv.Store
	key   string
	log   Logger
	nowFn func() time.Time
}

func NewStorageManager(backend kv.Store, key string, log Logger, nowFn func() time.Time) *StorageManager {
	if backend == nil {
		backend = kvmemory.New()
	}
	if key == "" {
		key = DefaultSnapshotKey
	}
	if log == nil {
		log = noopLogger{}
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &StorageManager{kv: backend, key: key, log: log, nowFn: nowFn}
}

// Backend exposes the underlying key-value store.
func (m *StorageManager) Backend() kv.Store { return m.kv }

// Serialize encodes the store into the versioned snapshot payload.
func (m *StorageManager) Serialize(s *Store) ([]byte, error) {
	env, err := s.encodeSnapshot(SnapshotVersion, m.nowFn())
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, domain.ErrSerialization("encode snapshot", err)
	}
	return payload, nil
}

// Deserialize hydrates the store from a snapshot payload, running the repair
// pass before the state is swapped in.
func (m *StorageManager) Deserialize(s *Store, payload []byte) error {
	var env snapshotEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return domain.ErrSerialization("decode snapshot", err)
	}
	if env.Version != SnapshotVersion {
		return fmt.Errorf("%w: got %q, want %q", ErrSnapshotVersionMismatch, env.Version, SnapshotVersion)
	}
	return s.importEnvelope(env)
}

// Save writes the current state to the backend.
func (m *StorageManager) Save(ctx context.Context, s *Store) error {
	payload, err := m.Serialize(s)
	if err != nil {
		return err
	}
	if err := m.kv.Put(ctx, m.key, payload); err != nil {
		return domain.ErrSerialization("persist snapshot", err)
	}
	m.log.Debug("snapshot saved", "driver", m.kv.Driver(), "key", m.key, "bytes", len(payload))
	return nil
}

// Load reads the persisted payload. A missing key reports false without an
// error.
func (m *StorageManager) Load(ctx context.Context) ([]byte, bool, error) {
	payload, ok, err := m.kv.Get(ctx, m.key)
	if err != nil {
		return nil, false, domain.ErrSerialization("load snapshot", err)
	}
	return payload, ok, nil
}

// Clear removes the persisted payload.
func (m *StorageManager) Clear(ctx context.Context) error {
	if _, err := m.kv.Delete(ctx, m.key); err != nil {
		return domain.ErrSerialization("clear snapshot", err)
	}
	return nil
}

// Environment variables selecting and configuring the snapshot backend.
const (
	EnvStorageDriver = "PLANCORE_STORAGE_DRIVER"
	EnvFSRoot        = "PLANCORE_FS_ROOT"
	EnvSQLitePath    = "PLANCORE_SQLITE_PATH"
	EnvPostgresDSN   = "PLANCORE_POSTGRES_DSN"
)

// OpenSnapshotKV selects a key-value backend from the environment. An unset
// or empty PLANCORE_STORAGE_DRIVER yields the in-memory backend.
func OpenSnapshotKV(ctx context.Context) (kv.Store, error) {
	driver := kv.Driver(os.Getenv(EnvStorageDriver))
	switch driver {
	case "", kv.DriverMemory:
		return kvmemory.New(), nil
	case kv.DriverFilesystem:
		root := os.Getenv(EnvFSRoot)
		if root == "" {
			root = "data"
		}
		st, err := kvfs.New(root)
		if err != nil {
			return nil, err
		}
		return st, nil
	case kv.DriverSQLite:
		path := os.Getenv(EnvSQLitePath)
		if path == "" {
			path = "plancore.db"
		}
		st, err := sqlite.New(path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case kv.DriverPostgres:
		st, err := postgres.New(ctx, os.Getenv(EnvPostgresDSN))
		if err != nil {
			return nil, err
		}
		return st, nil
	case kv.DriverS3:
		st, err := kvs3.OpenFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
