package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"budget-control/backend/config"
	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/model"
	"budget-control/backend/internal/repository"
	pkgerrors "budget-control/backend/pkg/errors"
	"budget-control/backend/pkg/fielddiff"
)

// ── 审计模块业务错误 ──

var (
	ErrAuditActorRequired = fmt.Errorf("%w: 审计记录缺少操作人", pkgerrors.ErrValidation)
	ErrAuditActionInvalid = fmt.Errorf("%w: 审计动作必须为 CREATE/UPDATE/DELETE/READ", pkgerrors.ErrValidation)
)

const (
	// auditStatsWindow 最活跃模块/操作人的统计窗口
	auditStatsWindow = 30 * 24 * time.Hour
	// auditStatsEmpty 统计窗口内无记录时的占位
	auditStatsEmpty = "N/A"
)

// AuditRecord 待写入的审计事件
type AuditRecord struct {
	Module     string
	Action     string
	Actor      Actor
	ResourceID string
	Old        map[string]any
	New        map[string]any
	Details    string
}

// AuditService 审计日志业务接口
type AuditService interface {
	Record(ctx context.Context, rec AuditRecord) error
	Query(ctx context.Context, req *dto.AuditQueryRequest) (*dto.AuditQueryResponse, error)
	Stats(ctx context.Context) (*dto.AuditStatsResponse, error)
}

type auditService struct {
	repo   *repository.Repository
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewAuditService 创建 AuditService 实例
func NewAuditService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		loc:    cfg.App.Location(),
		now:    time.Now,
		logger: logger,
	}
}

// ════════════════════════════════════════════════════════════
// Record
// ════════════════════════════════════════════════════════════

func (s *auditService) Record(ctx context.Context, rec AuditRecord) error {
	return writeAudit(ctx, s.repo, rec, s.now())
}

// writeAudit 校验并追加一条审计记录
// 各业务服务在自己的事务内通过 txRepo 调用，保证与业务变更同时提交
func writeAudit(ctx context.Context, repo *repository.Repository, rec AuditRecord, at time.Time) error {
	entry, err := newAuditEntry(rec, at)
	if err != nil {
		return err
	}
	return repo.Audit.Create(ctx, entry)
}

func newAuditEntry(rec AuditRecord, at time.Time) (*model.AuditEntry, error) {
	if strings.TrimSpace(rec.Actor.Email) == "" {
		return nil, ErrAuditActorRequired
	}
	action := strings.ToUpper(strings.TrimSpace(rec.Action))
	if !model.IsAuditAction(action) {
		return nil, ErrAuditActionInvalid
	}

	entry := &model.AuditEntry{
		EntryID:    uuid.NewString(),
		Timestamp:  at.UTC(),
		Module:     rec.Module,
		Action:     action,
		ActorEmail: rec.Actor.Email,
		ActorIP:    rec.Actor.IP,
		ResourceID: rec.ResourceID,
		Details:    rec.Details,
	}

	var err error
	if entry.OldValues, err = model.EncodeFields(rec.Old); err != nil {
		return nil, err
	}
	if entry.NewValues, err = model.EncodeFields(rec.New); err != nil {
		return nil, err
	}
	if action == model.AuditActionUpdate && rec.Old != nil && rec.New != nil {
		changes := fielddiff.Diff(fielddiff.KindUpdate, rec.Old, rec.New)
		b, err := json.Marshal(changes)
		if err != nil {
			return nil, err
		}
		entry.Changes = datatypes.JSON(b)
	}

	return entry, nil
}

// ════════════════════════════════════════════════════════════
// Query / Stats
// ════════════════════════════════════════════════════════════

func (s *auditService) Query(ctx context.Context, req *dto.AuditQueryRequest) (*dto.AuditQueryResponse, error) {
	filter := repository.AuditFilter{
		Module:     strings.TrimSpace(req.Module),
		Action:     strings.ToUpper(strings.TrimSpace(req.Action)),
		Actor:      strings.TrimSpace(req.Actor),
		ResourceID: strings.TrimSpace(req.ResourceID),
	}

	entries, total, err := s.repo.Audit.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询审计日志失败", zap.Error(err))
		return nil, err
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}

	list := make([]dto.AuditEntryResponse, 0, len(entries))
	for i := range entries {
		list = append(list, toAuditEntryResponse(&entries[i], s.logger))
	}

	return &dto.AuditQueryResponse{
		List:     list,
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
		Stats:    *stats,
	}, nil
}

func (s *auditService) Stats(ctx context.Context) (*dto.AuditStatsResponse, error) {
	now := s.now().In(s.loc)
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	windowStart := now.Add(-auditStatsWindow)

	today, err := s.repo.Audit.CountSince(ctx, startOfDay)
	if err != nil {
		s.logger.Error("统计今日审计事件失败", zap.Error(err))
		return nil, err
	}

	stats := &dto.AuditStatsResponse{
		TodayCount: today,
		TopModule:  auditStatsEmpty,
		TopActor:   auditStatsEmpty,
	}

	topModule, err := s.repo.Audit.TopModuleSince(ctx, windowStart)
	if err != nil {
		s.logger.Error("统计最活跃模块失败", zap.Error(err))
		return nil, err
	}
	if topModule != nil {
		stats.TopModule = topModule.Key
		stats.TopModuleCount = topModule.Count
	}

	topActor, err := s.repo.Audit.TopActorSince(ctx, windowStart)
	if err != nil {
		s.logger.Error("统计最活跃操作人失败", zap.Error(err))
		return nil, err
	}
	if topActor != nil {
		stats.TopActor = topActor.Key
		stats.TopActorCount = topActor.Count
	}

	return stats, nil
}

func toAuditEntryResponse(e *model.AuditEntry, logger *zap.Logger) dto.AuditEntryResponse {
	resp := dto.AuditEntryResponse{
		ID:         e.EntryID,
		Timestamp:  e.Timestamp.Format(dto.TimeLayout),
		Module:     e.Module,
		Action:     e.Action,
		ActorEmail: e.ActorEmail,
		ActorIP:    e.ActorIP,
		ResourceID: e.ResourceID,
		Details:    e.Details,
	}
	decodeAuditJSON(e.OldValues, &resp.OldValues, e.EntryID, "old_values", logger)
	decodeAuditJSON(e.NewValues, &resp.NewValues, e.EntryID, "new_values", logger)
	decodeAuditJSON(e.Changes, &resp.Changes, e.EntryID, "changes", logger)
	return resp
}

// decodeAuditJSON 解析审计记录中的 JSON 列，解析失败时记录日志
func decodeAuditJSON(raw datatypes.JSON, target any, entryID, column string, logger *zap.Logger) {
	if len(raw) == 0 {
		return
	}
	if err := json.Unmarshal(raw, target); err != nil {
		logger.Error("解析审计记录字段失败",
			zap.String("entry_id", entryID),
			zap.String("column", column),
			zap.Error(err),
		)
	}
}
