package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/model"
	pkgerrors "budget-control/backend/pkg/errors"
)

func setupTestUserService() (UserService, *mockRepos) {
	repo, m := newMockRepository()
	return NewUserService(repo, zap.NewNop()), m
}

func TestUserService_Create(t *testing.T) {
	svc, m := setupTestUserService()

	resp, err := svc.Create(context.Background(), &dto.CreateUserRequest{
		Name:     "Luisa",
		Email:    " Luisa@Test.com ",
		Password: "password123",
		Role:     model.RolePayroll,
	}, testAdmin)
	if err != nil {
		t.Fatalf("创建用户应成功: %v", err)
	}
	if resp.Email != "luisa@test.com" || resp.Role != model.RolePayroll {
		t.Errorf("用户信息异常: %+v", resp)
	}

	_, err = svc.Create(context.Background(), &dto.CreateUserRequest{
		Name: "Otra", Email: "LUISA@test.com", Password: "password123", Role: model.RoleViewer,
	}, testAdmin)
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("重复邮箱期望 ErrEmailExists，实际=%v", err)
	}

	_, err = svc.Create(context.Background(), &dto.CreateUserRequest{
		Name: "X", Email: "x@test.com", Password: "password123", Role: "superuser",
	}, testAdmin)
	if !errors.Is(err, pkgerrors.ErrValidation) {
		t.Errorf("非法角色期望 ErrValidation，实际=%v", err)
	}

	if len(m.audit.byModule(model.AuditModuleAuth)) != 1 {
		t.Errorf("创建用户应留痕")
	}
}

func TestUserService_UpdateRole(t *testing.T) {
	svc, m := setupTestUserService()
	target := createTestUser(m.user, "viewer@test.com", "password123", model.RoleViewer)

	resp, err := svc.UpdateRole(context.Background(), target.UserID,
		&dto.UpdateUserRoleRequest{Role: model.RoleEditor}, "admin-id", testAdmin)
	if err != nil {
		t.Fatalf("修改角色应成功: %v", err)
	}
	if resp.Role != model.RoleEditor || m.user.users[target.UserID].Role != model.RoleEditor {
		t.Errorf("角色未更新")
	}

	entries := m.audit.byModule(model.AuditModuleAuth)
	if len(entries) != 1 || entries[0].Action != model.AuditActionUpdate {
		t.Fatalf("期望 1 条 UPDATE 审计")
	}
	if changes := toAuditEntryResponse(&entries[0], zap.NewNop()).Changes; len(changes) != 1 || changes[0].Field != "role" {
		t.Errorf("审计差异应为 role，实际=%+v", changes)
	}
}

func TestUserService_UpdateRole_Guards(t *testing.T) {
	svc, m := setupTestUserService()
	self := createTestUser(m.user, "admin@test.com", "password123", model.RoleAdmin)

	_, err := svc.UpdateRole(context.Background(), self.UserID,
		&dto.UpdateUserRoleRequest{Role: model.RoleViewer}, self.UserID, testAdmin)
	if !errors.Is(err, ErrCannotChangeOwnRole) {
		t.Errorf("修改自己角色期望 ErrCannotChangeOwnRole，实际=%v", err)
	}

	_, err = svc.UpdateRole(context.Background(), "missing",
		&dto.UpdateUserRoleRequest{Role: model.RoleViewer}, self.UserID, testAdmin)
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际=%v", err)
	}
}

func TestUserService_List(t *testing.T) {
	svc, m := setupTestUserService()
	createTestUser(m.user, "a@test.com", "password123", model.RoleViewer)
	createTestUser(m.user, "b@test.com", "password123", model.RoleEditor)
	createTestUser(m.user, "c@test.com", "password123", model.RoleAdmin)

	list, total, err := svc.List(context.Background(), &dto.PaginationRequest{Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("查询应成功: %v", err)
	}
	if total != 3 || len(list) != 1 || list[0].Email != "c@test.com" {
		t.Errorf("分页异常: total=%d list=%+v", total, list)
	}
}
