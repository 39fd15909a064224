package core

import (
	"time"

	"github.com/google/uuid"

	"plancore/pkg/domain"
)

// txOp is one entry in a transaction's operation log. previous holds the
// pre-mutation snapshot for update and delete so rollback can restore it.
type txOp struct {
	action     EventType
	collection Collection
	id         string
	previous   any
}

type transactionLog struct {
	begunAt time.Time
	ops     []txOp
}

// logOp appends the operation to the active transaction, if any. Caller holds
// the write lock.
func (s *Store) logOp(op txOp) {
	if s.activeTx == "" {
		return
	}
	if tx, ok := s.txs[s.activeTx]; ok {
		tx.ops = append(tx.ops, op)
	}
}

// Begin opens a transaction and makes it the active one. Mutations performed
// while a transaction is active are recorded in its log.
func (s *Store) Begin() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.txs[id] = &transactionLog{begunAt: s.nowFn()}
	s.activeTx = id
	return id
}

// Commit closes the transaction, keeping its mutations. Persistence of the
// committed state is the caller's job.
func (s *Store) Commit(txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[txID]; !ok {
		return domain.ErrTransactionNotFound(txID)
	}
	delete(s.txs, txID)
	if s.activeTx == txID {
		s.activeTx = ""
	}
	return nil
}

// Rollback replays the transaction's log in reverse: a create is deleted, an
// update restores the previous snapshot, a delete re-inserts it. Each undo
// emits the matching compensating event. Rollback has no isolation from
// direct mutations made outside the transaction.
func (s *Store) Rollback(txID string) error {
	s.mu.Lock()
	tx, ok := s.txs[txID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrTransactionNotFound(txID)
	}
	delete(s.txs, txID)
	if s.activeTx == txID {
		s.activeTx = ""
	}

	var events []Event
	for i := len(tx.ops) - 1; i >= 0; i-- {
		op := tx.ops[i]
		b, ok := s.registry[op.collection]
		if !ok {
			continue
		}
		switch op.action {
		case EventCreated:
			if removed, ok := b.remove(&s.state, op.id); ok {
				events = append(events, Event{Type: EventDeleted, Collection: op.collection, ID: op.id, Previous: removed, Timestamp: s.nowFn()})
			}
		case EventUpdated:
			if op.previous == nil {
				continue
			}
			current, _ := b.find(&s.state, op.id)
			if err := b.restore(&s.state, op.previous); err != nil {
				s.log.Error("rollback restore failed", "transaction", txID, "collection", op.collection, "id", op.id, "error", err)
				continue
			}
			events = append(events, Event{Type: EventUpdated, Collection: op.collection, ID: op.id, Data: op.previous, Previous: current, Timestamp: s.nowFn()})
		case EventDeleted:
			if op.previous == nil {
				continue
			}
			if err := b.restore(&s.state, op.previous); err != nil {
				s.log.Error("rollback restore failed", "transaction", txID, "collection", op.collection, "id", op.id, "error", err)
				continue
			}
			events = append(events, Event{Type: EventCreated, Collection: op.collection, ID: op.id, Data: op.previous, Timestamp: s.nowFn()})
		}
	}
	s.mu.Unlock()
	s.log.Info("transaction rolled back", "transaction", txID, "ops", len(tx.ops), "age", s.nowFn().Sub(tx.begunAt))
	s.bus.Emit(events...)
	return nil
}
