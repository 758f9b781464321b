package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/model"
	"budget-control/backend/internal/repository"
	pkgerrors "budget-control/backend/pkg/errors"
)

// ── 用户模块业务错误 ──

var (
	ErrEmailExists         = fmt.Errorf("%w: 邮箱已被使用", pkgerrors.ErrInvalidState)
	ErrCannotChangeOwnRole = fmt.Errorf("%w: 不能修改自己的角色", pkgerrors.ErrInvalidState)
	ErrInvalidRole         = fmt.Errorf("%w: 角色无效", pkgerrors.ErrValidation)
)

// UserService 用户管理业务接口（仅管理员）
type UserService interface {
	Create(ctx context.Context, req *dto.CreateUserRequest, actor Actor) (*dto.UserResponse, error)
	GetByID(ctx context.Context, id string) (*dto.UserResponse, error)
	List(ctx context.Context, req *dto.PaginationRequest) ([]dto.UserResponse, int64, error)
	UpdateRole(ctx context.Context, id string, req *dto.UpdateUserRoleRequest, callerID string, actor Actor) (*dto.UserResponse, error)
}

type userService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, logger *zap.Logger) UserService {
	return &userService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *userService) Create(ctx context.Context, req *dto.CreateUserRequest, actor Actor) (*dto.UserResponse, error) {
	if !model.IsValidRole(req.Role) {
		return nil, ErrInvalidRole
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.User.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("检查邮箱唯一性失败", zap.Error(err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码加密失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		UserID:       uuid.NewString(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         req.Role,
	}
	user.CreatedBy = model.StringPtr(actor.Email)

	if err := s.repo.User.Create(ctx, user); err != nil {
		s.logger.Error("创建用户失败", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	s.audit(ctx, actor, model.AuditActionCreate, user.UserID, nil,
		map[string]any{"email": user.Email, "name": user.Name, "role": user.Role})

	resp := toUserResponse(user)
	return &resp, nil
}

// ────────────────────── 查询 ──────────────────────

func (s *userService) GetByID(ctx context.Context, id string) (*dto.UserResponse, error) {
	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *userService) List(ctx context.Context, req *dto.PaginationRequest) ([]dto.UserResponse, int64, error) {
	users, total, err := s.repo.User.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		list = append(list, toUserResponse(&users[i]))
	}
	return list, total, nil
}

// ────────────────────── UpdateRole ──────────────────────

func (s *userService) UpdateRole(ctx context.Context, id string, req *dto.UpdateUserRoleRequest, callerID string, actor Actor) (*dto.UserResponse, error) {
	if !model.IsValidRole(req.Role) {
		return nil, ErrInvalidRole
	}
	if id == callerID {
		return nil, ErrCannotChangeOwnRole
	}

	user, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	oldRole := user.Role
	if oldRole != req.Role {
		user.Role = req.Role
		user.UpdatedBy = model.StringPtr(actor.Email)
		if err := s.repo.User.Update(ctx, user); err != nil {
			if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
				s.logger.Error("更新用户角色失败", zap.String("id", id), zap.Error(err))
			}
			return nil, err
		}
		s.audit(ctx, actor, model.AuditActionUpdate, user.UserID,
			map[string]any{"role": oldRole}, map[string]any{"role": user.Role})
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// ── 辅助函数 ──

func (s *userService) get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return user, nil
}

// audit 用户管理操作留痕，失败只记日志
func (s *userService) audit(ctx context.Context, actor Actor, action, userID string, oldValues, newValues map[string]any) {
	err := writeAudit(ctx, s.repo, AuditRecord{
		Module:     model.AuditModuleAuth,
		Action:     action,
		Actor:      actor,
		ResourceID: userID,
		Old:        oldValues,
		New:        newValues,
		Details:    "用户管理",
	}, time.Now())
	if err != nil {
		s.logger.Warn("写入用户审计失败", zap.String("user_id", userID), zap.Error(err))
	}
}

func toUserResponse(user *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        user.UserID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(dto.TimeLayout),
	}
}
