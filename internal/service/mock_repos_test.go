package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"budget-control/backend/internal/model"
	"budget-control/backend/internal/repository"
	pkgerrors "budget-control/backend/pkg/errors"
)

// 内存 mock 以值拷贝存取，模拟数据库行与调用方对象互不共享

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.Version == 0 {
		user.Version = 1
	}
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	stored, ok := m.users[user.UserID]
	if !ok || stored.Version != user.Version {
		return pkgerrors.ErrOptimisticLock
	}
	user.Version++
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) Count(_ context.Context) (int64, error) {
	return int64(len(m.users)), nil
}

func (m *mockUserRepo) List(_ context.Context, offset, limit int) ([]model.User, int64, error) {
	var all []model.User
	for _, u := range m.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	return page(all, offset, limit), int64(len(all)), nil
}

// ── Mock TrancheRepository ──

type mockTrancheRepo struct {
	tranches map[string]*model.Tranche
}

func newMockTrancheRepo() *mockTrancheRepo {
	return &mockTrancheRepo{tranches: make(map[string]*model.Tranche)}
}

func (m *mockTrancheRepo) Create(_ context.Context, tranche *model.Tranche) error {
	if tranche.Version == 0 {
		tranche.Version = 1
	}
	cp := *tranche
	m.tranches[tranche.TrancheID] = &cp
	return nil
}

func (m *mockTrancheRepo) GetByID(_ context.Context, id string) (*model.Tranche, error) {
	if t, ok := m.tranches[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTrancheRepo) Update(_ context.Context, tranche *model.Tranche) error {
	stored, ok := m.tranches[tranche.TrancheID]
	if !ok || stored.Version != tranche.Version {
		return pkgerrors.ErrOptimisticLock
	}
	tranche.Version++
	cp := *tranche
	m.tranches[tranche.TrancheID] = &cp
	return nil
}

func (m *mockTrancheRepo) Delete(_ context.Context, id string, _ string) error {
	if _, ok := m.tranches[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.tranches, id)
	return nil
}

func (m *mockTrancheRepo) ListByWorker(_ context.Context, workerID string) ([]model.Tranche, error) {
	var result []model.Tranche
	for _, t := range m.tranches {
		if t.WorkerID == workerID {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartDate.Before(result[j].StartDate) })
	return result, nil
}

func (m *mockTrancheRepo) ListAll(_ context.Context) ([]model.Tranche, error) {
	var result []model.Tranche
	for _, t := range m.tranches {
		result = append(result, *t)
	}
	sortTranches(result)
	return result, nil
}

func (m *mockTrancheRepo) List(ctx context.Context, filter repository.TrancheFilter, offset, limit int) ([]model.Tranche, int64, error) {
	all, _ := m.ListAll(ctx)
	var result []model.Tranche
	for _, t := range all {
		if filter.WorkerID != "" && t.WorkerID != filter.WorkerID {
			continue
		}
		if filter.Project != "" && t.Project != filter.Project {
			continue
		}
		if filter.ActiveOn != nil && (filter.ActiveOn.Before(t.StartDate) || filter.ActiveOn.After(t.EndDate)) {
			continue
		}
		if filter.Query != "" && !strings.Contains(t.WorkerID+" "+t.WorkerName, filter.Query) {
			continue
		}
		result = append(result, t)
	}
	return page(result, offset, limit), int64(len(result)), nil
}

// ── Mock ChangeRequestRepository ──

type mockChangeRequestRepo struct {
	requests map[string]*model.ChangeRequest
}

func newMockChangeRequestRepo() *mockChangeRequestRepo {
	return &mockChangeRequestRepo{requests: make(map[string]*model.ChangeRequest)}
}

func (m *mockChangeRequestRepo) Create(_ context.Context, req *model.ChangeRequest) error {
	if req.Version == 0 {
		req.Version = 1
	}
	cp := *req
	m.requests[req.RequestID] = &cp
	return nil
}

func (m *mockChangeRequestRepo) GetByID(_ context.Context, id string) (*model.ChangeRequest, error) {
	if r, ok := m.requests[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// Resolve 与数据库实现一致：仅当仍为 PENDING 且版本匹配时生效
func (m *mockChangeRequestRepo) Resolve(_ context.Context, req *model.ChangeRequest) error {
	stored, ok := m.requests[req.RequestID]
	if !ok || stored.Status != model.RequestStatusPending || stored.Version != req.Version {
		return pkgerrors.ErrOptimisticLock
	}
	req.Version++
	cp := *req
	m.requests[req.RequestID] = &cp
	return nil
}

func (m *mockChangeRequestRepo) List(_ context.Context, filter repository.ChangeRequestFilter, offset, limit int) ([]model.ChangeRequest, int64, error) {
	var result []model.ChangeRequest
	for _, r := range m.requests {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.RequestedBy != "" && r.RequestedBy != filter.RequestedBy {
			continue
		}
		if filter.WorkerID != "" && r.WorkerID != filter.WorkerID {
			continue
		}
		if filter.MonthStart != nil && r.RequestedAt.Before(*filter.MonthStart) {
			continue
		}
		if filter.MonthEnd != nil && !r.RequestedAt.Before(*filter.MonthEnd) {
			continue
		}
		if filter.Query != "" && !strings.Contains(r.WorkerID+" "+r.RequestedBy, filter.Query) {
			continue
		}
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RequestedAt.After(result[j].RequestedAt) })
	return page(result, offset, limit), int64(len(result)), nil
}

func (m *mockChangeRequestRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	counts := map[string]int64{
		model.RequestStatusPending:  0,
		model.RequestStatusApproved: 0,
		model.RequestStatusRejected: 0,
	}
	for _, r := range m.requests {
		counts[r.Status]++
	}
	return counts, nil
}

func (m *mockChangeRequestRepo) ListPendingByWorker(_ context.Context, workerID string) ([]model.ChangeRequest, error) {
	var result []model.ChangeRequest
	for _, r := range m.requests {
		if r.WorkerID == workerID && r.Status == model.RequestStatusPending {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RequestedAt.Before(result[j].RequestedAt) })
	return result, nil
}

// ── Mock SnapshotRepository ──

type mockSnapshotRepo struct {
	snapshots map[string]*model.Snapshot
	rows      map[string][]model.SnapshotTranche
}

func newMockSnapshotRepo() *mockSnapshotRepo {
	return &mockSnapshotRepo{
		snapshots: make(map[string]*model.Snapshot),
		rows:      make(map[string][]model.SnapshotTranche),
	}
}

func (m *mockSnapshotRepo) Create(_ context.Context, snapshot *model.Snapshot) error {
	cp := *snapshot
	cp.Tranches = nil
	m.snapshots[snapshot.SnapshotID] = &cp
	return nil
}

func (m *mockSnapshotRepo) BatchCreateTranches(_ context.Context, rows []model.SnapshotTranche) error {
	for _, r := range rows {
		m.rows[r.SnapshotID] = append(m.rows[r.SnapshotID], r)
	}
	return nil
}

func (m *mockSnapshotRepo) GetByID(_ context.Context, id string) (*model.Snapshot, error) {
	if s, ok := m.snapshots[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSnapshotRepo) ListTranches(_ context.Context, snapshotID string) ([]model.SnapshotTranche, error) {
	result := append([]model.SnapshotTranche(nil), m.rows[snapshotID]...)
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result, nil
}

func (m *mockSnapshotRepo) List(_ context.Context) ([]model.Snapshot, error) {
	var result []model.Snapshot
	for _, s := range m.snapshots {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockSnapshotRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.snapshots[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.snapshots, id)
	delete(m.rows, id)
	return nil
}

// ── Mock PayrollFactRepository ──

type mockPayrollFactRepo struct {
	facts []model.PayrollFact
}

func newMockPayrollFactRepo() *mockPayrollFactRepo {
	return &mockPayrollFactRepo{}
}

func (m *mockPayrollFactRepo) BatchCreate(_ context.Context, facts []model.PayrollFact) error {
	m.facts = append(m.facts, facts...)
	return nil
}

func (m *mockPayrollFactRepo) DeleteByPeriod(_ context.Context, period string) (int64, error) {
	kept := m.facts[:0]
	var n int64
	for _, f := range m.facts {
		if f.Period == period {
			n++
			continue
		}
		kept = append(kept, f)
	}
	m.facts = kept
	return n, nil
}

func (m *mockPayrollFactRepo) ListByPeriod(_ context.Context, period string) ([]model.PayrollFact, error) {
	var result []model.PayrollFact
	for _, f := range m.facts {
		if f.Period == period {
			result = append(result, f)
		}
	}
	return result, nil
}

func (m *mockPayrollFactRepo) Summary(_ context.Context) ([]model.PayrollPeriodSummary, error) {
	byPeriod := make(map[string]*model.PayrollPeriodSummary)
	for _, f := range m.facts {
		s, ok := byPeriod[f.Period]
		if !ok {
			s = &model.PayrollPeriodSummary{Period: f.Period}
			byPeriod[f.Period] = s
		}
		s.Rows++
		s.Total += f.AmountPaid
		if f.LoadedAt.After(s.LastLoaded) {
			s.LastLoaded = f.LoadedAt
		}
	}
	var result []model.PayrollPeriodSummary
	for _, s := range byPeriod {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Period > result[j].Period })
	return result, nil
}

// ── Mock AuditRepository ──

type mockAuditRepo struct {
	entries []model.AuditEntry
}

func newMockAuditRepo() *mockAuditRepo {
	return &mockAuditRepo{}
}

func (m *mockAuditRepo) Create(_ context.Context, entry *model.AuditEntry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockAuditRepo) List(_ context.Context, filter repository.AuditFilter, offset, limit int) ([]model.AuditEntry, int64, error) {
	var result []model.AuditEntry
	for _, e := range m.entries {
		if filter.Module != "" && e.Module != filter.Module {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Actor != "" && !strings.Contains(strings.ToLower(e.ActorEmail), strings.ToLower(filter.Actor)) {
			continue
		}
		if filter.ResourceID != "" && e.ResourceID != filter.ResourceID {
			continue
		}
		result = append(result, e)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Timestamp.After(result[j].Timestamp) })
	return page(result, offset, limit), int64(len(result)), nil
}

func (m *mockAuditRepo) CountSince(_ context.Context, since time.Time) (int64, error) {
	var n int64
	for _, e := range m.entries {
		if !e.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockAuditRepo) TopModuleSince(_ context.Context, since time.Time) (*model.AuditCount, error) {
	return m.top(since, func(e model.AuditEntry) string { return e.Module }), nil
}

func (m *mockAuditRepo) TopActorSince(_ context.Context, since time.Time) (*model.AuditCount, error) {
	return m.top(since, func(e model.AuditEntry) string { return e.ActorEmail }), nil
}

func (m *mockAuditRepo) top(since time.Time, key func(model.AuditEntry) string) *model.AuditCount {
	counts := make(map[string]int64)
	for _, e := range m.entries {
		if !e.Timestamp.Before(since) {
			counts[key(e)]++
		}
	}
	var best *model.AuditCount
	for k, n := range counts {
		if best == nil || n > best.Count || (n == best.Count && k < best.Key) {
			best = &model.AuditCount{Key: k, Count: n}
		}
	}
	return best
}

func (m *mockAuditRepo) byModule(module string) []model.AuditEntry {
	var result []model.AuditEntry
	for _, e := range m.entries {
		if e.Module == module {
			result = append(result, e)
		}
	}
	return result
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	items []model.Notification
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	m.items = append(m.items, *n)
	return nil
}

func (m *mockNotificationRepo) ListByRecipient(_ context.Context, email string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	var result []model.Notification
	for _, n := range m.items {
		if n.RecipientEmail != email || (unreadOnly && n.IsRead) {
			continue
		}
		result = append(result, n)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return page(result, offset, limit), int64(len(result)), nil
}

func (m *mockNotificationRepo) CountUnread(_ context.Context, email string) (int64, error) {
	var n int64
	for _, item := range m.items {
		if item.RecipientEmail == email && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) MarkAllRead(_ context.Context, email string) (int64, error) {
	var n int64
	for i := range m.items {
		if m.items[i].RecipientEmail == email && !m.items[i].IsRead {
			m.items[i].IsRead = true
			n++
		}
	}
	return n, nil
}

// ── 组装 ──

type mockRepos struct {
	user          *mockUserRepo
	tranche       *mockTrancheRepo
	changeRequest *mockChangeRequestRepo
	snapshot      *mockSnapshotRepo
	payroll       *mockPayrollFactRepo
	audit         *mockAuditRepo
	notification  *mockNotificationRepo
}

func newMockRepository() (*repository.Repository, *mockRepos) {
	m := &mockRepos{
		user:          newMockUserRepo(),
		tranche:       newMockTrancheRepo(),
		changeRequest: newMockChangeRequestRepo(),
		snapshot:      newMockSnapshotRepo(),
		payroll:       newMockPayrollFactRepo(),
		audit:         newMockAuditRepo(),
		notification:  newMockNotificationRepo(),
	}
	repo := &repository.Repository{
		User:          m.user,
		Tranche:       m.tranche,
		ChangeRequest: m.changeRequest,
		Snapshot:      m.snapshot,
		PayrollFact:   m.payroll,
		Audit:         m.audit,
		Notification:  m.notification,
	}
	return repo, m
}

func page[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// ── 测试数据 ──

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func seedTranche(m *mockTrancheRepo, id, worker, project, start, end string, salary float64) *model.Tranche {
	t := &model.Tranche{
		TrancheID: id,
		TrancheData: model.TrancheData{
			WorkerID:    worker,
			WorkerName:  "员工 " + worker,
			StartDate:   date(start),
			EndDate:     date(end),
			BaseSalary:  salary,
			TotalSalary: salary,
			Dimensions:  model.Dimensions{Project: project, Source: "REC", Responsible: "ana"},
		},
	}
	t.Version = 1
	cp := *t
	m.tranches[id] = &cp
	return t
}
