package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"xpdash/internal/core"
)

// MemoryStore keeps snapshots in process. It is used in development and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[int64]memorySnapshot
	now       func() time.Time
}

type memorySnapshot struct {
	snap      core.Snapshot
	updatedAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[int64]memorySnapshot),
		now:       time.Now,
	}
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, s core.Snapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	version := int64(1)
	if prev, ok := m.snapshots[s.UserID]; ok {
		version = prev.snap.Version + 1
	}
	s.Version = version
	s.SyncStatus = core.SyncPending
	if s.FetchedAt.IsZero() {
		s.FetchedAt = m.now()
	}
	s.Transactions = append([]core.TransactionRecord(nil), s.Transactions...)
	s.Skills = append([]core.SkillScore(nil), s.Skills...)

	m.snapshots[s.UserID] = memorySnapshot{snap: s, updatedAt: m.now()}
	return version, nil
}

func (m *MemoryStore) LoadSnapshot(_ context.Context, userID int64) (core.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.snapshots[userID]
	if !ok {
		return core.Snapshot{}, ErrSnapshotNotFound
	}
	s := e.snap
	s.Transactions = append([]core.TransactionRecord(nil), s.Transactions...)
	s.Skills = append([]core.SkillScore(nil), s.Skills...)
	return s, nil
}

func (m *MemoryStore) GetPendingSync(_ context.Context, limit int) ([]PendingSync, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []PendingSync
	for id, e := range m.snapshots {
		if e.snap.SyncStatus == core.SyncPending {
			out = append(out, PendingSync{UserID: id, Version: e.snap.Version, UpdatedAt: e.updatedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) MarkSynced(_ context.Context, userID, version int64) error {
	m.setStatus(userID, version, core.SyncSynced)
	return nil
}

func (m *MemoryStore) MarkSyncError(_ context.Context, userID, version int64, _ string) error {
	m.setStatus(userID, version, core.SyncError)
	return nil
}

func (m *MemoryStore) setStatus(userID, version int64, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.snapshots[userID]; ok && e.snap.Version == version {
		e.snap.SyncStatus = status
		m.snapshots[userID] = e
	}
}

func (m *MemoryStore) Close() error { return nil }
