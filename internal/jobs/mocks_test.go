package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/repository"
)

type mockPairingCodeRepo struct {
	mu            sync.Mutex
	markedExpired int
	purged        int
	purgeCutoffs  []time.Time
}

func (m *mockPairingCodeRepo) FindSubmittable(ctx context.Context, code string) (*model.PairingCode, error) {
	return nil, nil
}

func (m *mockPairingCodeRepo) FindActiveByChildID(ctx context.Context, childUserID string) ([]model.PairingCode, error) {
	return nil, nil
}

func (m *mockPairingCodeRepo) Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	return nil, nil
}

func (m *mockPairingCodeRepo) Consume(ctx context.Context, code string) (bool, error) {
	return false, nil
}

func (m *mockPairingCodeRepo) MarkExpiredBatch(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markedExpired++
	return 1, nil
}

func (m *mockPairingCodeRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purged++
	m.purgeCutoffs = append(m.purgeCutoffs, cutoff)
	return 1, nil
}

func (m *mockPairingCodeRepo) WithTx(tx *sqlx.Tx) repository.PairingCodeRepository { return m }

func (m *mockPairingCodeRepo) sweepCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markedExpired
}

type mockRelRepo struct {
	rels map[string]*model.Relationship
}

func newMockRelRepo(rels ...*model.Relationship) *mockRelRepo {
	m := &mockRelRepo{rels: map[string]*model.Relationship{}}
	for _, rel := range rels {
		m.rels[rel.ID] = rel
	}
	return m
}

func (m *mockRelRepo) WithTx(tx *sqlx.Tx) repository.RelationshipRepository { return m }

func (m *mockRelRepo) FindByID(ctx context.Context, id string) (*model.Relationship, error) {
	rel, ok := m.rels[id]
	if !ok {
		return nil, nil
	}
	cp := *rel
	return &cp, nil
}

func (m *mockRelRepo) FindActiveByPair(ctx context.Context, parentUserID, childUserID string) (*model.Relationship, error) {
	return nil, nil
}

func (m *mockRelRepo) FindActiveByChildID(ctx context.Context, childUserID string) ([]model.Relationship, error) {
	var out []model.Relationship
	for _, rel := range m.rels {
		if rel.IsActive && rel.ChildUserID == childUserID {
			out = append(out, *rel)
		}
	}
	return out, nil
}

func (m *mockRelRepo) FindActiveByUserID(ctx context.Context, userID string) ([]model.Relationship, error) {
	return nil, nil
}

func (m *mockRelRepo) Create(ctx context.Context, params model.CreateRelationshipParams) (*model.Relationship, error) {
	return nil, nil
}

func (m *mockRelRepo) TouchSync(ctx context.Context, childUserID string, at time.Time, deviceInfo json.RawMessage) error {
	return nil
}

func (m *mockRelRepo) RecordHeartbeat(ctx context.Context, childUserID string, at time.Time) error {
	for _, rel := range m.rels {
		if rel.IsActive && rel.ChildUserID == childUserID {
			t := at
			rel.LastHeartbeatAt = &t
			rel.MissedHeartbeats = 0
			rel.IsNormalClosure = false
		}
	}
	return nil
}

func (m *mockRelRepo) RecordShutdown(ctx context.Context, childUserID string) error {
	for _, rel := range m.rels {
		if rel.IsActive && rel.ChildUserID == childUserID {
			rel.IsNormalClosure = true
			rel.MissedHeartbeats = 0
		}
	}
	return nil
}

func (m *mockRelRepo) SetMissedHeartbeats(ctx context.Context, id string, count int) error {
	if rel, ok := m.rels[id]; ok && rel.MissedHeartbeats < count {
		rel.MissedHeartbeats = count
	}
	return nil
}

func (m *mockRelRepo) FindHeartbeatOverdue(ctx context.Context, cutoff time.Time) ([]model.Relationship, error) {
	var out []model.Relationship
	for _, rel := range m.rels {
		if rel.IsActive && !rel.IsNormalClosure &&
			rel.LastHeartbeatAt != nil && rel.LastHeartbeatAt.Before(cutoff) {
			out = append(out, *rel)
		}
	}
	return out, nil
}

func (m *mockRelRepo) Unlink(ctx context.Context, id, unlinkedBy string, at time.Time) error {
	return nil
}

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo(users ...*model.User) *mockUserRepo {
	m := &mockUserRepo{users: map[string]*model.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) WithTx(tx *sqlx.Tx) repository.UserRepository { return m }

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) SetDevicePaired(ctx context.Context, id string, paired bool) error {
	return nil
}

func (m *mockUserRepo) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (m *mockUserRepo) FindInactiveChildren(ctx context.Context, cutoff time.Time) ([]model.User, error) {
	var out []model.User
	for _, u := range m.users {
		if u.Role != model.UserRoleChild || !u.IsDevicePaired {
			continue
		}
		if u.LastActiveAt == nil || u.LastActiveAt.Before(cutoff) {
			out = append(out, *u)
		}
	}
	return out, nil
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (n *captureNotifier) Notify(ctx context.Context, notification model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *captureNotifier) last() model.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}
