package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"budget-control/backend/config"
	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/model"
	"budget-control/backend/internal/repository"
	pkgerrors "budget-control/backend/pkg/errors"
	"budget-control/backend/pkg/fielddiff"
	"budget-control/backend/pkg/metrics"
)

// ── 变更申请模块业务错误 ──

var (
	ErrChangeRequestNotFound = fmt.Errorf("%w: 变更申请不存在", pkgerrors.ErrNotFound)
	ErrRequestNotPending     = fmt.Errorf("%w: 变更申请已处理", pkgerrors.ErrInvalidState)
	ErrJustificationRequired = fmt.Errorf("%w: 必须填写变更理由", pkgerrors.ErrValidation)
	ErrInvalidChangeKind     = fmt.Errorf("%w: 变更类型必须为 CREATE/MODIFY/DELETE", pkgerrors.ErrValidation)
	ErrTargetRequired        = fmt.Errorf("%w: MODIFY/DELETE 必须指定目标分段", pkgerrors.ErrValidation)
	ErrProposalRequired      = fmt.Errorf("%w: 必须提供拟变更字段", pkgerrors.ErrValidation)
)

// ChangeRequestService 变更申请业务接口
type ChangeRequestService interface {
	Submit(ctx context.Context, req *dto.SubmitChangeRequest, requester Actor) (*dto.SubmitResultResponse, error)
	GetByID(ctx context.Context, id string) (*dto.ChangeRequestResponse, error)
	List(ctx context.Context, req *dto.ChangeRequestListRequest) ([]dto.ChangeRequestResponse, int64, error)
	// Counts 各状态的申请数量
	Counts(ctx context.Context) (map[string]int64, error)
	// ListPendingByWorker 员工名下待审批的申请
	ListPendingByWorker(ctx context.Context, workerID string) ([]dto.ChangeRequestResponse, error)
	Approve(ctx context.Context, id string, resolver Actor) (*dto.ApplyResultResponse, error)
	Reject(ctx context.Context, id string, resolver Actor, reason string) (*dto.ChangeRequestResponse, error)
}

type changeRequestService struct {
	repo             *repository.Repository
	minJustification int
	now              func() time.Time
	logger           *zap.Logger
}

// NewChangeRequestService 创建 ChangeRequestService 实例
func NewChangeRequestService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) ChangeRequestService {
	return &changeRequestService{
		repo:             repo,
		minJustification: cfg.Workflow.MinJustificationLength,
		now:              time.Now,
		logger:           logger,
	}
}

// ════════════════════════════════════════════════════════════
// Submit
// ════════════════════════════════════════════════════════════

func (s *changeRequestService) Submit(ctx context.Context, req *dto.SubmitChangeRequest, requester Actor) (*dto.SubmitResultResponse, error) {
	justification := strings.TrimSpace(req.Justification)
	if justification == "" {
		return nil, ErrJustificationRequired
	}
	if utf8.RuneCountInString(justification) < s.minJustification {
		return nil, validationError("变更理由不能少于 %d 个字符", s.minJustification)
	}

	cr := &model.ChangeRequest{
		RequestID:     uuid.NewString(),
		Kind:          strings.ToUpper(strings.TrimSpace(req.Kind)),
		Justification: justification,
		Status:        model.RequestStatusPending,
		RequestedBy:   requester.Email,
		RequestedAt:   s.now().UTC(),
		Version:       1,
	}

	var (
		prior    map[string]any
		proposed map[string]any
		conflict *model.Tranche
		err      error
	)

	switch cr.Kind {
	case model.ChangeKindCreate:
		proposed = req.ProposedFields
		for _, f := range model.RequiredCreateFields {
			if isBlankField(proposed, f) {
				return nil, validationError("新建分段必须提供字段 %s", f)
			}
		}
		var data model.TrancheData
		if err := buildTrancheData(&data, proposed); err != nil {
			return nil, err
		}
		cr.WorkerID = data.WorkerID
		conflict, err = findOverlap(ctx, s.repo, data.WorkerID, data.StartDate, data.EndDate, "")

	case model.ChangeKindModify, model.ChangeKindDelete:
		targetID := strings.TrimSpace(req.TargetTrancheID)
		if targetID == "" {
			return nil, ErrTargetRequired
		}
		target, gerr := s.repo.Tranche.GetByID(ctx, targetID)
		if gerr != nil {
			if errors.Is(gerr, gorm.ErrRecordNotFound) {
				return nil, ErrTrancheNotFound
			}
			s.logger.Error("查询目标分段失败", zap.String("id", targetID), zap.Error(gerr))
			return nil, gerr
		}
		cr.TargetTrancheID = &target.TrancheID
		cr.WorkerID = target.WorkerID
		prior = target.Fields()

		if cr.Kind == model.ChangeKindModify {
			proposed = req.ProposedFields
			if len(proposed) == 0 {
				return nil, ErrProposalRequired
			}
			data := target.TrancheData
			if err := buildTrancheData(&data, proposed); err != nil {
				return nil, err
			}
			conflict, err = findOverlap(ctx, s.repo, data.WorkerID, data.StartDate, data.EndDate, target.TrancheID)
		}

	default:
		return nil, ErrInvalidChangeKind
	}
	if err != nil {
		s.logger.Error("检查分段重叠失败", zap.String("worker_id", cr.WorkerID), zap.Error(err))
		return nil, err
	}

	if cr.PriorFields, err = model.EncodeFields(prior); err != nil {
		return nil, err
	}
	if cr.ProposedFields, err = model.EncodeFields(proposed); err != nil {
		return nil, validationError("拟变更字段无法序列化")
	}

	if err := s.repo.ChangeRequest.Create(ctx, cr); err != nil {
		s.logger.Error("创建变更申请失败", zap.Error(err))
		return nil, err
	}
	metrics.ChangeRequestsSubmitted.WithLabelValues(cr.Kind).Inc()

	s.logger.Info("变更申请已提交",
		zap.String("request_id", cr.RequestID),
		zap.String("kind", cr.Kind),
		zap.String("requested_by", cr.RequestedBy),
		zap.Bool("overlap", conflict != nil),
		zap.Bool("allow_overlap", req.AllowOverlap),
	)

	return &dto.SubmitResultResponse{
		Request: toChangeRequestResponse(cr),
		Warning: overlapWarning(conflict),
	}, nil
}

// ════════════════════════════════════════════════════════════
// Approve
// ════════════════════════════════════════════════════════════

func (s *changeRequestService) Approve(ctx context.Context, id string, resolver Actor) (*dto.ApplyResultResponse, error) {
	cr, err := s.getPending(ctx, id)
	if err != nil {
		return nil, err
	}

	prior, err := cr.Prior()
	if err != nil {
		return nil, err
	}
	proposed, err := cr.Proposed()
	if err != nil {
		return nil, err
	}
	changes := fielddiff.Diff(cr.Kind, prior, proposed)

	var (
		tranche *model.Tranche
		warning *dto.OverlapWarning
	)

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		now := s.now()
		audit := AuditRecord{
			Module:  model.AuditModuleChangeRequest,
			Actor:   resolver,
			Details: fmt.Sprintf("审批通过变更申请 %s（申请人 %s）", cr.RequestID, cr.RequestedBy),
		}

		switch cr.Kind {
		case model.ChangeKindCreate:
			var data model.TrancheData
			if err := buildTrancheData(&data, proposed); err != nil {
				return err
			}
			conflict, err := findOverlap(ctx, txRepo, data.WorkerID, data.StartDate, data.EndDate, "")
			if err != nil {
				return err
			}
			warning = overlapWarning(conflict)
			if tranche, err = createTranche(ctx, txRepo, data, resolver); err != nil {
				return err
			}
			cr.TargetTrancheID = &tranche.TrancheID
			audit.Action = model.AuditActionCreate
			audit.New = tranche.Fields()

		case model.ChangeKindModify:
			if tranche, err = s.getTarget(ctx, txRepo, cr); err != nil {
				return err
			}
			data := tranche.TrancheData
			if err := buildTrancheData(&data, proposed); err != nil {
				return err
			}
			conflict, err := findOverlap(ctx, txRepo, data.WorkerID, data.StartDate, data.EndDate, tranche.TrancheID)
			if err != nil {
				return err
			}
			warning = overlapWarning(conflict)
			old, err := updateTranche(ctx, txRepo, tranche, data, resolver)
			if err != nil {
				return err
			}
			audit.Action = model.AuditActionUpdate
			audit.Old = old
			audit.New = tranche.Fields()

		case model.ChangeKindDelete:
			if tranche, err = s.getTarget(ctx, txRepo, cr); err != nil {
				return err
			}
			if err := deleteTranche(ctx, txRepo, tranche, resolver); err != nil {
				return err
			}
			audit.Action = model.AuditActionDelete
			audit.Old = tranche.Fields()

		default:
			return ErrInvalidChangeKind
		}

		audit.ResourceID = tranche.TrancheID
		if warning != nil {
			audit.Details += "；" + warning.Message
		}
		if err := writeAudit(ctx, txRepo, audit, now); err != nil {
			return err
		}

		resolvedAt := now.UTC()
		cr.Status = model.RequestStatusApproved
		cr.ResolvedBy = &resolver.Email
		cr.ResolvedAt = &resolvedAt
		if warning != nil {
			cr.OverlapWarning = warning.Message
		}
		if err := s.resolve(ctx, txRepo, cr); err != nil {
			return err
		}

		return notifyRequester(ctx, txRepo, cr, now)
	})
	if err != nil {
		s.logResolveError("审批变更申请失败", id, err)
		return nil, err
	}
	metrics.ChangeRequestsResolved.WithLabelValues(cr.Kind, cr.Status).Inc()

	result := &dto.ApplyResultResponse{
		Request: toChangeRequestResponse(cr),
		Changes: changes,
		Warning: warning,
	}
	if tranche != nil {
		resp := toTrancheResponse(tranche)
		result.Tranche = &resp
	}
	return result, nil
}

// ════════════════════════════════════════════════════════════
// Reject
// ════════════════════════════════════════════════════════════

func (s *changeRequestService) Reject(ctx context.Context, id string, resolver Actor, reason string) (*dto.ChangeRequestResponse, error) {
	cr, err := s.getPending(ctx, id)
	if err != nil {
		return nil, err
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		now := s.now()
		resolvedAt := now.UTC()
		cr.Status = model.RequestStatusRejected
		cr.ResolvedBy = &resolver.Email
		cr.ResolvedAt = &resolvedAt
		cr.RejectReason = strings.TrimSpace(reason)
		if err := s.resolve(ctx, txRepo, cr); err != nil {
			return err
		}

		if err := writeAudit(ctx, txRepo, AuditRecord{
			Module:     model.AuditModuleChangeRequest,
			Action:     model.AuditActionUpdate,
			Actor:      resolver,
			ResourceID: cr.RequestID,
			Old:        map[string]any{"status": model.RequestStatusPending},
			New:        map[string]any{"status": model.RequestStatusRejected, "reject_reason": cr.RejectReason},
			Details:    fmt.Sprintf("驳回变更申请（申请人 %s）", cr.RequestedBy),
		}, now); err != nil {
			return err
		}

		return notifyRequester(ctx, txRepo, cr, now)
	})
	if err != nil {
		s.logResolveError("驳回变更申请失败", id, err)
		return nil, err
	}
	metrics.ChangeRequestsResolved.WithLabelValues(cr.Kind, cr.Status).Inc()

	resp := toChangeRequestResponse(cr)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// 查询
// ════════════════════════════════════════════════════════════

func (s *changeRequestService) GetByID(ctx context.Context, id string) (*dto.ChangeRequestResponse, error) {
	cr, err := s.get(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	resp := toChangeRequestResponse(cr)
	return &resp, nil
}

func (s *changeRequestService) List(ctx context.Context, req *dto.ChangeRequestListRequest) ([]dto.ChangeRequestResponse, int64, error) {
	filter := repository.ChangeRequestFilter{
		Status:      strings.ToUpper(strings.TrimSpace(req.Status)),
		RequestedBy: strings.TrimSpace(req.RequestedBy),
		WorkerID:    strings.TrimSpace(req.WorkerID),
		Query:       strings.TrimSpace(req.Q),
	}
	if req.Month != "" {
		month, err := time.Parse("2006-01", req.Month)
		if err != nil {
			return nil, 0, validationError("month 格式应为 YYYY-MM")
		}
		end := month.AddDate(0, 1, 0)
		filter.MonthStart = &month
		filter.MonthEnd = &end
	}

	reqs, total, err := s.repo.ChangeRequest.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询变更申请列表失败", zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.ChangeRequestResponse, 0, len(reqs))
	for i := range reqs {
		list = append(list, toChangeRequestResponse(&reqs[i]))
	}
	return list, total, nil
}

func (s *changeRequestService) Counts(ctx context.Context) (map[string]int64, error) {
	counts, err := s.repo.ChangeRequest.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("统计变更申请失败", zap.Error(err))
		return nil, err
	}
	return counts, nil
}

func (s *changeRequestService) ListPendingByWorker(ctx context.Context, workerID string) ([]dto.ChangeRequestResponse, error) {
	reqs, err := s.repo.ChangeRequest.ListPendingByWorker(ctx, workerID)
	if err != nil {
		s.logger.Error("查询员工待审批申请失败", zap.String("worker_id", workerID), zap.Error(err))
		return nil, err
	}

	list := make([]dto.ChangeRequestResponse, 0, len(reqs))
	for i := range reqs {
		list = append(list, toChangeRequestResponse(&reqs[i]))
	}
	return list, nil
}

// ── 内部辅助 ──

func (s *changeRequestService) get(ctx context.Context, repo *repository.Repository, id string) (*model.ChangeRequest, error) {
	cr, err := repo.ChangeRequest.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChangeRequestNotFound
		}
		s.logger.Error("查询变更申请失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return cr, nil
}

func (s *changeRequestService) getPending(ctx context.Context, id string) (*model.ChangeRequest, error) {
	cr, err := s.get(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if !cr.IsPending() {
		return nil, ErrRequestNotPending
	}
	return cr, nil
}

func (s *changeRequestService) getTarget(ctx context.Context, repo *repository.Repository, cr *model.ChangeRequest) (*model.Tranche, error) {
	if cr.TargetTrancheID == nil {
		return nil, ErrTargetRequired
	}
	tranche, err := repo.Tranche.GetByID(ctx, *cr.TargetTrancheID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrancheNotFound
		}
		return nil, err
	}
	return tranche, nil
}

// resolve CAS 写入审批结果，并发下另一方已处理时返回 ErrRequestNotPending
func (s *changeRequestService) resolve(ctx context.Context, repo *repository.Repository, cr *model.ChangeRequest) error {
	if err := repo.ChangeRequest.Resolve(ctx, cr); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return ErrRequestNotPending
		}
		return err
	}
	return nil
}

func (s *changeRequestService) logResolveError(msg, id string, err error) {
	if errors.Is(err, pkgerrors.ErrValidation) ||
		errors.Is(err, pkgerrors.ErrNotFound) ||
		errors.Is(err, pkgerrors.ErrInvalidState) {
		s.logger.Warn(msg, zap.String("id", id), zap.Error(err))
		return
	}
	s.logger.Error(msg, zap.String("id", id), zap.Error(err))
}

func isBlankField(fields map[string]any, name string) bool {
	v, ok := fields[name]
	if !ok || v == nil {
		return true
	}
	return strings.TrimSpace(fielddiff.AsString(v)) == ""
}

func toChangeRequestResponse(cr *model.ChangeRequest) dto.ChangeRequestResponse {
	prior, _ := cr.Prior()
	proposed, _ := cr.Proposed()

	resp := dto.ChangeRequestResponse{
		ID:             cr.RequestID,
		Kind:           cr.Kind,
		WorkerID:       cr.WorkerID,
		PriorFields:    prior,
		ProposedFields: proposed,
		Changes:        fielddiff.Diff(cr.Kind, prior, proposed),
		Justification:  cr.Justification,
		Status:         cr.Status,
		RequestedBy:    cr.RequestedBy,
		RequestedAt:    cr.RequestedAt.Format(dto.TimeLayout),
		RejectReason:   cr.RejectReason,
		OverlapWarning: cr.OverlapWarning,
	}
	if cr.TargetTrancheID != nil {
		resp.TargetTrancheID = *cr.TargetTrancheID
	}
	if cr.ResolvedBy != nil {
		resp.ResolvedBy = *cr.ResolvedBy
	}
	if cr.ResolvedAt != nil {
		resp.ResolvedAt = cr.ResolvedAt.Format(dto.TimeLayout)
	}
	return resp
}
