package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"ritmofit/backend/internal/model"
	"ritmofit/backend/internal/repository"
	pkgerrors "ritmofit/backend/pkg/errors"
)

// ── 内存存储 ──
//
// txMu 在整个事务期间持有，模拟数据库行锁对并发事务的串行化；
// mu 保护单次读写。事务失败时恢复快照，模拟回滚。

type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users        map[string]*model.User
	classes      map[string]*model.GymClass
	reservations map[string]*model.Reservation
	seq          int
	memberSeq    int

	// 故障注入
	failCreateReservation error
	failTryReserve        error
	failListActive        error
	// 提交时模拟 N 次序列化冲突，事务函数会像 gormTransactor 一样被整体重跑
	commitConflicts int
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[string]*model.User),
		classes:      make(map[string]*model.GymClass),
		reservations: make(map[string]*model.Reservation),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

type memSnapshot struct {
	users        map[string]model.User
	classes      map[string]model.GymClass
	reservations map[string]model.Reservation
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		users:        make(map[string]model.User, len(s.users)),
		classes:      make(map[string]model.GymClass, len(s.classes)),
		reservations: make(map[string]model.Reservation, len(s.reservations)),
	}
	for k, v := range s.users {
		snap.users[k] = *v
	}
	for k, v := range s.classes {
		snap.classes[k] = *v
	}
	for k, v := range s.reservations {
		snap.reservations[k] = *v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]*model.User, len(snap.users))
	for k, v := range snap.users {
		v := v
		s.users[k] = &v
	}
	s.classes = make(map[string]*model.GymClass, len(snap.classes))
	for k, v := range snap.classes {
		v := v
		s.classes[k] = &v
	}
	s.reservations = make(map[string]*model.Reservation, len(snap.reservations))
	for k, v := range snap.reservations {
		v := v
		s.reservations[k] = &v
	}
}

// ── 测试辅助：直接读写存储 ──

func (s *memStore) addUser(u *model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.UserID == "" {
		u.UserID = s.nextID("user")
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	cp := *u
	s.users[u.UserID] = &cp
	return u
}

func (s *memStore) addClass(c *model.GymClass) *model.GymClass {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ClassID == "" {
		c.ClassID = s.nextID("class")
	}
	if c.Version == 0 {
		c.Version = 1
	}
	cp := *c
	s.classes[c.ClassID] = &cp
	return c
}

func (s *memStore) addReservation(r *model.Reservation) *model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ReservationID == "" {
		r.ReservationID = s.nextID("res")
	}
	cp := *r
	cp.Class, cp.User = nil, nil
	s.reservations[r.ReservationID] = &cp
	return r
}

func (s *memStore) class(id string) model.GymClass {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.classes[id]
}

func (s *memStore) reservation(id string) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.reservations[id]
}

func (s *memStore) user(id string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *memStore) userByEmail(email string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return *u
		}
	}
	return model.User{}
}

func (s *memStore) countReservations(status model.ReservationStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reservations {
		if r.Status == status {
			n++
		}
	}
	return n
}

// checkCapacityInvariant 0 ≤ current ≤ max，且 current 等于 active 预约数
func (s *memStore) checkCapacityInvariant() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := make(map[string]int)
	for _, r := range s.reservations {
		if r.Status == model.ReservationActive {
			active[r.ClassID]++
		}
	}
	for id, c := range s.classes {
		if c.CurrentCapacity < 0 || c.CurrentCapacity > c.MaxCapacity {
			return fmt.Errorf("课程 %s 容量越界: %d/%d", id, c.CurrentCapacity, c.MaxCapacity)
		}
		if c.CurrentCapacity != active[id] {
			return fmt.Errorf("课程 %s 容量 %d 与 active 预约数 %d 不一致", id, c.CurrentCapacity, active[id])
		}
	}
	return nil
}

// newTestRepo 组装基于内存存储的 Repository
func newTestRepo(store *memStore) *repository.Repository {
	repo := newMemRepository(store)
	repo.Tx = &memTransactor{store: store}
	return repo
}

func newMemRepository(store *memStore) *repository.Repository {
	return &repository.Repository{
		User:        &mockUserRepo{store: store},
		Class:       &mockClassRepo{store: store},
		Reservation: &mockReservationRepo{store: store},
		Ledger:      &mockLedger{store: store},
	}
}

// ── Mock Transactor ──

type memTransactor struct {
	store  *memStore
	nested bool
}

func (t *memTransactor) WithinTx(_ context.Context, fn func(txRepo *repository.Repository) error) error {
	if !t.nested {
		t.store.txMu.Lock()
		defer t.store.txMu.Unlock()
	}
	for {
		snap := t.store.snapshot()

		txRepo := newMemRepository(t.store)
		txRepo.Tx = &memTransactor{store: t.store, nested: true}
		if err := fn(txRepo); err != nil {
			t.store.restore(snap)
			return err
		}
		if t.nested || t.store.commitConflicts == 0 {
			return nil
		}
		t.store.commitConflicts--
		t.store.restore(snap)
	}
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	store *memStore
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, u := range m.store.users {
		if u.Email == user.Email {
			return errors.New("duplicate email")
		}
	}
	if user.UserID == "" {
		user.UserID = m.store.nextID("user")
	}
	cp := *user
	m.store.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if u, ok := m.store.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.User, error) {
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, u := range m.store.users {
		if u.Email == strings.ToLower(strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.users[user.UserID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *user
	m.store.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) NextMemberNumber(_ context.Context) (string, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.memberSeq++
	return fmt.Sprintf("%04d", m.store.memberSeq), nil
}

// ── Mock GymClassRepository ──

type mockClassRepo struct {
	store *memStore
}

func (m *mockClassRepo) Create(_ context.Context, class *model.GymClass) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if class.ClassID == "" {
		class.ClassID = m.store.nextID("class")
	}
	cp := *class
	m.store.classes[class.ClassID] = &cp
	return nil
}

func (m *mockClassRepo) GetByID(_ context.Context, id string) (*model.GymClass, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if c, ok := m.store.classes[id]; ok && !c.DeletedAt.Valid {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClassRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.GymClass, error) {
	return m.GetByID(ctx, id)
}

func (m *mockClassRepo) List(_ context.Context, filter repository.ClassFilter) ([]model.GymClass, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var result []model.GymClass
	for _, c := range m.store.classes {
		if c.DeletedAt.Valid {
			continue
		}
		if filter.Location != "" && c.Location.Name != filter.Location {
			continue
		}
		if filter.Discipline != "" && !strings.Contains(strings.ToLower(c.Discipline), strings.ToLower(filter.Discipline)) {
			continue
		}
		if filter.Weekday != nil && c.Schedule.Weekday != *filter.Weekday {
			continue
		}
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockClassRepo) Update(_ context.Context, class *model.GymClass) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	existing, ok := m.store.classes[class.ClassID]
	if !ok || existing.Version != class.Version {
		return pkgerrors.ErrOptimisticLock
	}
	class.Version++
	cp := *class
	cp.CurrentCapacity = existing.CurrentCapacity
	m.store.classes[class.ClassID] = &cp
	return nil
}

func (m *mockClassRepo) Delete(_ context.Context, id string, deletedBy string) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if c, ok := m.store.classes[id]; ok {
		c.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
		c.DeletedBy = &deletedBy
	}
	return nil
}

func (m *mockClassRepo) distinct(pick func(c *model.GymClass) string) []string {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	seen := make(map[string]bool)
	var values []string
	for _, c := range m.store.classes {
		v := pick(c)
		if c.DeletedAt.Valid || v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

func (m *mockClassRepo) DistinctLocations(_ context.Context) ([]string, error) {
	return m.distinct(func(c *model.GymClass) string { return c.Location.Name }), nil
}

func (m *mockClassRepo) DistinctDisciplines(_ context.Context) ([]string, error) {
	return m.distinct(func(c *model.GymClass) string { return c.Discipline }), nil
}

// ── Mock ReservationRepository ──

type mockReservationRepo struct {
	store *memStore
}

// withRelations 模拟 Preload（课程包含已软删除的）
func (m *mockReservationRepo) withRelations(r *model.Reservation) model.Reservation {
	cp := *r
	if c, ok := m.store.classes[r.ClassID]; ok {
		cc := *c
		cp.Class = &cc
	}
	if u, ok := m.store.users[r.UserID]; ok {
		uc := *u
		cp.User = &uc
	}
	return cp
}

func (m *mockReservationRepo) Create(_ context.Context, r *model.Reservation) error {
	if m.store.failCreateReservation != nil {
		return m.store.failCreateReservation
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, existing := range m.store.reservations {
		if existing.Status == model.ReservationActive && r.Status == model.ReservationActive &&
			existing.UserID == r.UserID && existing.ClassID == r.ClassID && existing.ClassDate.Equal(r.ClassDate) {
			return errors.New("unique violation")
		}
	}
	if r.ReservationID == "" {
		r.ReservationID = m.store.nextID("res")
	}
	cp := *r
	cp.Class, cp.User = nil, nil
	m.store.reservations[r.ReservationID] = &cp
	return nil
}

func (m *mockReservationRepo) GetByID(_ context.Context, id string) (*model.Reservation, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if r, ok := m.store.reservations[id]; ok {
		cp := m.withRelations(r)
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReservationRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Reservation, error) {
	return m.GetByID(ctx, id)
}

func (m *mockReservationRepo) filter(match func(r *model.Reservation) bool) []model.Reservation {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var list []model.Reservation
	for _, r := range m.store.reservations {
		if match(r) {
			list = append(list, m.withRelations(r))
		}
	}
	return list
}

func (m *mockReservationRepo) ListActiveByUser(_ context.Context, userID string) ([]model.Reservation, error) {
	if m.store.failListActive != nil {
		return nil, m.store.failListActive
	}
	list := m.filter(func(r *model.Reservation) bool {
		return r.UserID == userID && r.Status == model.ReservationActive
	})
	sort.Slice(list, func(i, j int) bool { return list[i].ClassDate.Before(list[j].ClassDate) })
	return list, nil
}

func (m *mockReservationRepo) ListHistory(_ context.Context, userID string, from, to *time.Time) ([]model.Reservation, error) {
	list := m.filter(func(r *model.Reservation) bool {
		if r.UserID != userID || !r.Status.IsTerminal() {
			return false
		}
		if from != nil && r.ClassDate.Before(*from) {
			return false
		}
		if to != nil && r.ClassDate.After(*to) {
			return false
		}
		return true
	})
	sort.Slice(list, func(i, j int) bool { return list[i].ClassDate.After(list[j].ClassDate) })
	return list, nil
}

func (m *mockReservationRepo) ListActiveStartingBetween(_ context.Context, from, to time.Time) ([]model.Reservation, error) {
	list := m.filter(func(r *model.Reservation) bool {
		return r.Status == model.ReservationActive && !r.ClassDate.Before(from) && r.ClassDate.Before(to)
	})
	return list, nil
}

func (m *mockReservationRepo) ListActiveByClass(_ context.Context, classID string) ([]model.Reservation, error) {
	return m.filter(func(r *model.Reservation) bool {
		return r.ClassID == classID && r.Status == model.ReservationActive
	}), nil
}

func (m *mockReservationRepo) Transition(_ context.Context, id string, from, to model.ReservationStatus) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	r, ok := m.store.reservations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	return true, nil
}

// ── Mock CapacityLedger ──

type mockLedger struct {
	store *memStore
}

func (l *mockLedger) TryReserveSeat(_ context.Context, classID string) (bool, error) {
	if l.store.failTryReserve != nil {
		return false, l.store.failTryReserve
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	c, ok := l.store.classes[classID]
	if !ok || c.DeletedAt.Valid || c.CurrentCapacity >= c.MaxCapacity {
		return false, nil
	}
	c.CurrentCapacity++
	return true, nil
}

func (l *mockLedger) ReleaseSeats(_ context.Context, classID string, n int) error {
	if n <= 0 {
		return nil
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	if c, ok := l.store.classes[classID]; ok {
		c.CurrentCapacity -= n
		if c.CurrentCapacity < 0 {
			c.CurrentCapacity = 0
		}
	}
	return nil
}

// ── Mock Notifier ──

type sentMail struct {
	kind string
	to   string
	code string
}

type mockNotifier struct {
	mu      sync.Mutex
	sent    []sentMail
	otpFail error
}

func (n *mockNotifier) record(m sentMail) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, m)
}

func (n *mockNotifier) SendOTP(_ context.Context, to, code string, purpose OTPPurpose, _ time.Duration) error {
	if n.otpFail != nil {
		return n.otpFail
	}
	n.record(sentMail{kind: "otp:" + string(purpose), to: to, code: code})
	return nil
}

func (n *mockNotifier) BookingConfirmed(_ context.Context, to string, _ *model.GymClass, _ time.Time) {
	n.record(sentMail{kind: "confirmed", to: to})
}

func (n *mockNotifier) BookingCancelled(_ context.Context, to string, _ *model.GymClass, _ time.Time) {
	n.record(sentMail{kind: "cancelled", to: to})
}

func (n *mockNotifier) ClassReminder(_ context.Context, to string, _ *model.GymClass, _ time.Time) {
	n.record(sentMail{kind: "reminder", to: to})
}

func (n *mockNotifier) ClassRemoved(_ context.Context, to string, _ *model.GymClass, _ time.Time) {
	n.record(sentMail{kind: "removed", to: to})
}

func (n *mockNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.sent {
		if m.kind == kind {
			c++
		}
	}
	return c
}

func (n *mockNotifier) lastCode(to string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].to == to && n.sent[i].code != "" {
			return n.sent[i].code
		}
	}
	return ""
}

// ── Mock Cache / Blacklist ──

type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	hits    int
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) GetJSON(_ context.Context, key string, dst interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(raw, dst)
}

func (c *mockCache) SetJSON(_ context.Context, key string, v interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *mockCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	c.deletes++
	return nil
}

type mockBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func newMockBlacklist() *mockBlacklist {
	return &mockBlacklist{revoked: make(map[string]time.Duration)}
}

func (b *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[jti] = ttl
	return nil
}

func (b *mockBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.revoked[jti]
	return ok, nil
}
