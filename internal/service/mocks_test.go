package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nestlink/guardian-server-go/internal/database"
	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/repository"
)

// In-memory fakes shared by the service tests. They mirror the SQL
// guards of the real repositories so invariants can be exercised without
// a database.

// The production transaction runner must keep satisfying the interface
// the services are wired with.
var _ TxRunner = (*database.DB)(nil)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type memCodeRepo struct {
	codes map[string]*model.PairingCode
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{codes: map[string]*model.PairingCode{}}
}

func (m *memCodeRepo) WithTx(tx *sqlx.Tx) repository.PairingCodeRepository { return m }

func (m *memCodeRepo) FindSubmittable(ctx context.Context, code string) (*model.PairingCode, error) {
	pc, ok := m.codes[code]
	if !ok || pc.IsActive || pc.IsExpired {
		return nil, nil
	}
	cp := *pc
	return &cp, nil
}

func (m *memCodeRepo) FindActiveByChildID(ctx context.Context, childUserID string) ([]model.PairingCode, error) {
	var out []model.PairingCode
	for _, pc := range m.codes {
		if pc.ChildUserID == childUserID && !pc.IsActive && !pc.IsExpired && pc.ExpiresAt.After(time.Now()) {
			out = append(out, *pc)
		}
	}
	return out, nil
}

func (m *memCodeRepo) Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	pc := &model.PairingCode{
		Code:        params.Code,
		ChildUserID: params.ChildUserID,
		ChildName:   params.ChildName,
		DeviceName:  params.DeviceName,
		CreatedAt:   time.Now(),
		ExpiresAt:   params.ExpiresAt,
	}
	m.codes[params.Code] = pc
	cp := *pc
	return &cp, nil
}

func (m *memCodeRepo) Consume(ctx context.Context, code string) (bool, error) {
	pc, ok := m.codes[code]
	if !ok || pc.IsActive || pc.IsExpired {
		return false, nil
	}
	pc.IsActive = true
	return true, nil
}

func (m *memCodeRepo) MarkExpiredBatch(ctx context.Context) (int64, error) {
	var n int64
	for _, pc := range m.codes {
		if pc.ExpiresAt.Before(time.Now()) && !pc.IsExpired && !pc.IsActive {
			pc.IsExpired = true
			n++
		}
	}
	return n, nil
}

func (m *memCodeRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for code, pc := range m.codes {
		if pc.CreatedAt.Before(cutoff) {
			delete(m.codes, code)
			n++
		}
	}
	return n, nil
}

type memUserRepo struct {
	users map[string]*model.User
}

func newMemUserRepo(users ...*model.User) *memUserRepo {
	m := &memUserRepo{users: map[string]*model.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memUserRepo) WithTx(tx *sqlx.Tx) repository.UserRepository { return m }

func (m *memUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	for _, u := range m.users {
		if u.DeviceTokenHash == tokenHash {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	u := &model.User{
		ID:              params.DisplayName,
		Role:            params.Role,
		DisplayName:     params.DisplayName,
		DeviceName:      params.DeviceName,
		DeviceTokenHash: params.DeviceTokenHash,
		Timezone:        params.Timezone,
		CreatedAt:       time.Now(),
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) SetDevicePaired(ctx context.Context, id string, paired bool) error {
	if u, ok := m.users[id]; ok {
		u.IsDevicePaired = paired
	}
	return nil
}

func (m *memUserRepo) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	if u.LastActiveAt == nil || u.LastActiveAt.Before(at) {
		t := at
		u.LastActiveAt = &t
	}
	return nil
}

func (m *memUserRepo) FindInactiveChildren(ctx context.Context, cutoff time.Time) ([]model.User, error) {
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

type memRelRepo struct {
	rels map[string]*model.Relationship
}

func newMemRelRepo() *memRelRepo {
	return &memRelRepo{rels: map[string]*model.Relationship{}}
}

func (m *memRelRepo) WithTx(tx *sqlx.Tx) repository.RelationshipRepository { return m }

func (m *memRelRepo) FindByID(ctx context.Context, id string) (*model.Relationship, error) {
	rel, ok := m.rels[id]
	if !ok {
		return nil, nil
	}
	cp := *rel
	return &cp, nil
}

func (m *memRelRepo) FindActiveByPair(ctx context.Context, parentUserID, childUserID string) (*model.Relationship, error) {
	for _, rel := range m.rels {
		if rel.IsActive && rel.ParentUserID == parentUserID && rel.ChildUserID == childUserID {
			cp := *rel
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRelRepo) FindActiveByChildID(ctx context.Context, childUserID string) ([]model.Relationship, error) {
	var out []model.Relationship
	for _, rel := range m.rels {
		if rel.IsActive && rel.ChildUserID == childUserID {
			out = append(out, *rel)
		}
	}
	return out, nil
}

func (m *memRelRepo) FindActiveByUserID(ctx context.Context, userID string) ([]model.Relationship, error) {
	var out []model.Relationship
	for _, rel := range m.rels {
		if rel.IsActive && rel.IsParty(userID) {
			out = append(out, *rel)
		}
	}
	return out, nil
}

func (m *memRelRepo) Create(ctx context.Context, params model.CreateRelationshipParams) (*model.Relationship, error) {
	rel := &model.Relationship{
		ID:           params.ID,
		ParentUserID: params.ParentUserID,
		ChildUserID:  params.ChildUserID,
		ChildName:    params.ChildName,
		DeviceName:   params.DeviceName,
		PairingCode:  params.PairingCode,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	m.rels[rel.ID] = rel
	cp := *rel
	return &cp, nil
}

func (m *memRelRepo) TouchSync(ctx context.Context, childUserID string, at time.Time, deviceInfo json.RawMessage) error {
	for _, rel := range m.rels {
		if !rel.IsActive || rel.ChildUserID != childUserID {
			continue
		}
		if rel.LastSyncAt == nil || rel.LastSyncAt.Before(at) {
			t := at
			rel.LastSyncAt = &t
		}
		if deviceInfo != nil {
			rel.ChildDeviceInfo = deviceInfo
		}
	}
	return nil
}

func (m *memRelRepo) RecordHeartbeat(ctx context.Context, childUserID string, at time.Time) error {
	for _, rel := range m.rels {
		if !rel.IsActive || rel.ChildUserID != childUserID {
			continue
		}
		if rel.LastHeartbeatAt != nil && !rel.LastHeartbeatAt.Before(at) {
			continue
		}
		t := at
		rel.LastHeartbeatAt = &t
		rel.MissedHeartbeats = 0
		rel.IsNormalClosure = false
	}
	return nil
}

func (m *memRelRepo) RecordShutdown(ctx context.Context, childUserID string) error {
	for _, rel := range m.rels {
		if rel.IsActive && rel.ChildUserID == childUserID {
			rel.IsNormalClosure = true
			rel.MissedHeartbeats = 0
		}
	}
	return nil
}

func (m *memRelRepo) SetMissedHeartbeats(ctx context.Context, id string, count int) error {
	if rel, ok := m.rels[id]; ok && rel.MissedHeartbeats < count {
		rel.MissedHeartbeats = count
	}
	return nil
}

func (m *memRelRepo) FindHeartbeatOverdue(ctx context.Context, cutoff time.Time) ([]model.Relationship, error) {
	var out []model.Relationship
	for _, rel := range m.rels {
		if rel.IsActive && !rel.IsNormalClosure &&
			rel.LastHeartbeatAt != nil && rel.LastHeartbeatAt.Before(cutoff) {
			out = append(out, *rel)
		}
	}
	return out, nil
}

func (m *memRelRepo) Unlink(ctx context.Context, id, unlinkedBy string, at time.Time) error {
	if rel, ok := m.rels[id]; ok {
		rel.IsActive = false
		t := at
		rel.UnlinkedAt = &t
		by := unlinkedBy
		rel.UnlinkedBy = &by
	}
	return nil
}

type memHeartbeatRepo struct {
	records map[string]*model.HeartbeatRecord
}

func newMemHeartbeatRepo() *memHeartbeatRepo {
	return &memHeartbeatRepo{records: map[string]*model.HeartbeatRecord{}}
}

func (m *memHeartbeatRepo) FindByChildID(ctx context.Context, childUserID string) (*model.HeartbeatRecord, error) {
	rec, ok := m.records[childUserID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memHeartbeatRepo) Upsert(ctx context.Context, params model.UpsertHeartbeatParams) error {
	existing, ok := m.records[params.ChildUserID]
	if ok && existing.RecordedAt.After(params.RecordedAt) {
		return nil
	}
	m.records[params.ChildUserID] = &model.HeartbeatRecord{
		ChildUserID:  params.ChildUserID,
		RecordedAt:   params.RecordedAt,
		ActivityType: params.ActivityType,
		DeviceInfo:   params.DeviceInfo,
		IsActive:     params.IsActive,
	}
	return nil
}

type restrictionKey struct {
	parentID, bundleID string
}

type memRestrictionRepo struct {
	restrictions map[restrictionKey]*model.AppRestriction
}

func newMemRestrictionRepo() *memRestrictionRepo {
	return &memRestrictionRepo{restrictions: map[restrictionKey]*model.AppRestriction{}}
}

func (m *memRestrictionRepo) Find(ctx context.Context, parentID, bundleID string) (*model.AppRestriction, error) {
	r, ok := m.restrictions[restrictionKey{parentID, bundleID}]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *memRestrictionRepo) ListByParent(ctx context.Context, parentID string) ([]model.AppRestriction, error) {
	var out []model.AppRestriction
	for k, r := range m.restrictions {
		if k.parentID == parentID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRestrictionRepo) Upsert(ctx context.Context, params model.UpsertRestrictionParams) (*model.AppRestriction, error) {
	key := restrictionKey{params.ParentID, params.BundleID}
	r, ok := m.restrictions[key]
	if !ok {
		r = &model.AppRestriction{
			ParentID:  params.ParentID,
			BundleID:  params.BundleID,
			CreatedAt: time.Now(),
		}
		m.restrictions[key] = r
	}
	r.TimeLimit = params.TimeLimit
	r.IsDisabled = params.IsDisabled
	r.LastResetDate = params.LastResetDate
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

func (m *memRestrictionRepo) Save(ctx context.Context, restriction *model.AppRestriction) error {
	key := restrictionKey{restriction.ParentID, restriction.BundleID}
	cp := *restriction
	m.restrictions[key] = &cp
	return nil
}

func (m *memRestrictionRepo) AddUsage(ctx context.Context, parentID, bundleID string, elapsed int, today string) (*model.AppRestriction, error) {
	r, ok := m.restrictions[restrictionKey{parentID, bundleID}]
	if !ok {
		return nil, nil
	}
	if r.LastResetDate != today {
		if r.IsDisabled && r.LimitExceeded() {
			r.IsDisabled = false
		}
		r.DailyUsage = elapsed
		r.LastResetDate = today
	} else {
		r.DailyUsage += elapsed
	}
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

func (m *memRestrictionRepo) MarkLimitExceeded(ctx context.Context, parentID, bundleID string) (*model.AppRestriction, error) {
	r, ok := m.restrictions[restrictionKey{parentID, bundleID}]
	if !ok || r.IsDisabled || !r.LimitExceeded() {
		return nil, nil
	}
	r.IsDisabled = true
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

func (m *memRestrictionRepo) Delete(ctx context.Context, parentID, bundleID string) error {
	delete(m.restrictions, restrictionKey{parentID, bundleID})
	return nil
}

type memBedtimeRepo struct {
	settings map[string]*model.BedtimeSettings
}

func newMemBedtimeRepo() *memBedtimeRepo {
	return &memBedtimeRepo{settings: map[string]*model.BedtimeSettings{}}
}

func (m *memBedtimeRepo) FindByUserID(ctx context.Context, userID string) (*model.BedtimeSettings, error) {
	bt, ok := m.settings[userID]
	if !ok {
		return nil, nil
	}
	cp := *bt
	return &cp, nil
}

func (m *memBedtimeRepo) Upsert(ctx context.Context, settings *model.BedtimeSettings) (*model.BedtimeSettings, error) {
	cp := *settings
	cp.UpdatedAt = time.Now()
	m.settings[settings.UserID] = &cp
	out := cp
	return &out, nil
}

func (m *memBedtimeRepo) ListEnabled(ctx context.Context) ([]model.BedtimeSettings, error) {
	var out []model.BedtimeSettings
	for _, bt := range m.settings {
		if bt.IsEnabled {
			out = append(out, *bt)
		}
	}
	return out, nil
}

type memDetectionRepo struct {
	detections map[string]*model.AppDetection
}

func newMemDetectionRepo() *memDetectionRepo {
	return &memDetectionRepo{detections: map[string]*model.AppDetection{}}
}

func (m *memDetectionRepo) FindByID(ctx context.Context, id string) (*model.AppDetection, error) {
	d, ok := m.detections[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memDetectionRepo) ListUnprocessedByParent(ctx context.Context, parentID string) ([]model.AppDetection, error) {
	var out []model.AppDetection
	for _, d := range m.detections {
		if d.ParentID == parentID && !d.IsProcessed {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memDetectionRepo) HasOpenDetection(ctx context.Context, parentID, bundleID string) (bool, error) {
	for _, d := range m.detections {
		if d.ParentID == parentID && d.BundleID == bundleID && !d.IsProcessed {
			return true, nil
		}
	}
	return false, nil
}

func (m *memDetectionRepo) Create(ctx context.Context, params model.CreateDetectionParams) (*model.AppDetection, error) {
	d := &model.AppDetection{
		ID:         params.ID,
		ParentID:   params.ParentID,
		BundleID:   params.BundleID,
		AppName:    params.AppName,
		DetectedAt: time.Now(),
	}
	m.detections[d.ID] = d
	cp := *d
	return &cp, nil
}

func (m *memDetectionRepo) Resolve(ctx context.Context, id string, resolution model.DetectionResolution) (bool, error) {
	d, ok := m.detections[id]
	if !ok || d.IsProcessed {
		return false, nil
	}
	d.IsProcessed = true
	r := resolution
	d.Resolution = &r
	return true, nil
}

type captureNotifier struct {
	sent []model.Notification
}

func (n *captureNotifier) Notify(ctx context.Context, notification model.Notification) error {
	n.sent = append(n.sent, notification)
	return nil
}

func (n *captureNotifier) byType(t model.NotificationType) []model.Notification {
	var out []model.Notification
	for _, sent := range n.sent {
		if sent.Type == t {
			out = append(out, sent)
		}
	}
	return out
}

type memCache struct {
	restrictions map[restrictionKey]*model.AppRestriction
	bedtimes     map[string]bool
	pushes       int
	purged       []string
}

func newMemCache() *memCache {
	return &memCache{
		restrictions: map[restrictionKey]*model.AppRestriction{},
		bedtimes:     map[string]bool{},
	}
}

func (c *memCache) PushRestriction(ctx context.Context, r *model.AppRestriction) error {
	cp := *r
	c.restrictions[restrictionKey{r.ParentID, r.BundleID}] = &cp
	c.pushes++
	return nil
}

func (c *memCache) RemoveRestriction(ctx context.Context, parentID, bundleID string) error {
	delete(c.restrictions, restrictionKey{parentID, bundleID})
	return nil
}

func (c *memCache) PushBedtime(ctx context.Context, bt *model.BedtimeSettings, activeNow bool) error {
	c.bedtimes[bt.UserID] = activeNow
	c.pushes++
	return nil
}

func (c *memCache) PurgeUser(ctx context.Context, userID string) error {
	for key := range c.restrictions {
		if key.parentID == userID {
			delete(c.restrictions, key)
		}
	}
	delete(c.bedtimes, userID)
	c.purged = append(c.purged, userID)
	return nil
}
