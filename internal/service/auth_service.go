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

	"budget-control/backend/config"
	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/model"
	"budget-control/backend/internal/repository"
	pkgerrors "budget-control/backend/pkg/errors"
	"budget-control/backend/pkg/jwt"
	"budget-control/backend/pkg/redis"
)

var (
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrInvalidToken       = errors.New("token 无效或已失效")
	ErrUserNotFound       = fmt.Errorf("%w: 用户不存在", pkgerrors.ErrNotFound)
)

// AuthService 认证业务接口
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest, ip string) (*dto.TokenResponse, error)
	// Refresh 用 Refresh Token 换取新的 Token 对，旧 Refresh Token 作废
	Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	// Logout 将当前 Access Token 加入黑名单
	Logout(ctx context.Context, claims *jwt.Claims) error
	Me(ctx context.Context, userID string) (*dto.UserResponse, error)
	// EnsureBootstrapAdmin 用户表为空时按配置创建管理员
	EnsureBootstrapAdmin(ctx context.Context) error
}

type authService struct {
	cfg    *config.Config
	repo   *repository.Repository
	jwtMgr *jwt.Manager
	rdb    *redis.Client
	logger *zap.Logger
}

// NewAuthService 创建 AuthService 实例
// rdb 为 nil 时登出与刷新不写黑名单
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:    cfg,
		repo:   repo,
		jwtMgr: jwtMgr,
		rdb:    rdb,
		logger: logger,
	}
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest, ip string) (*dto.TokenResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	resp, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}

	// 3. 登录留痕，失败不影响登录
	if err := writeAudit(ctx, s.repo, AuditRecord{
		Module:     model.AuditModuleAuth,
		Action:     model.AuditActionRead,
		Actor:      Actor{Email: user.Email, IP: ip},
		ResourceID: user.UserID,
		Details:    "登录",
	}, time.Now()); err != nil {
		s.logger.Warn("写入登录审计失败", zap.String("email", user.Email), zap.Error(err))
	}

	return resp, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(refreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrInvalidToken
	}

	if s.rdb != nil {
		revoked, err := s.rdb.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Error("查询 Token 黑名单失败", zap.Error(err))
			return nil, err
		}
		if revoked {
			return nil, ErrInvalidToken
		}
	}

	// 以数据库中的最新角色签发
	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	resp, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}
	s.revoke(ctx, claims)
	return resp, nil
}

func (s *authService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if claims == nil {
		return ErrInvalidToken
	}
	s.revoke(ctx, claims)
	return nil
}

func (s *authService) Me(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.String("id", userID), zap.Error(err))
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *authService) EnsureBootstrapAdmin(ctx context.Context) error {
	admin := s.cfg.Auth.BootstrapAdmin
	if admin.Email == "" || admin.Password == "" {
		return nil
	}

	n, err := s.repo.User.Count(ctx)
	if err != nil {
		s.logger.Error("统计用户数量失败", zap.Error(err))
		return err
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("生成密码哈希失败: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(admin.Email))
	user := &model.User{
		UserID:       uuid.NewString(),
		Name:         admin.Name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
	}
	user.CreatedBy = model.StringPtr(email)
	if err := s.repo.User.Create(ctx, user); err != nil {
		s.logger.Error("创建初始管理员失败", zap.String("email", email), zap.Error(err))
		return err
	}

	s.logger.Info("已创建初始管理员", zap.String("email", email))
	return nil
}

// ── 辅助函数 ──

func (s *authService) issueTokens(user *model.User) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         toUserResponse(user),
	}, nil
}

// revoke 将 Token 加入黑名单直至其自然过期
func (s *authService) revoke(ctx context.Context, claims *jwt.Claims) {
	if s.rdb == nil || claims.ExpiresAt == nil {
		return
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return
	}
	if err := s.rdb.BlacklistToken(ctx, claims.ID, ttl); err != nil {
		s.logger.Warn("写入 Token 黑名单失败", zap.String("jti", claims.ID), zap.Error(err))
	}
}
