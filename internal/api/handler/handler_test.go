package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"budget-control/backend/internal/dto"
	"budget-control/backend/internal/service"
	pkgerrors "budget-control/backend/pkg/errors"
	"budget-control/backend/pkg/jwt"
	"budget-control/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AuthService ──

type mockAuthService struct {
	loginResult   *dto.TokenResponse
	loginErr      error
	loginIP       string
	refreshResult *dto.TokenResponse
	refreshErr    error
	logoutClaims  *jwt.Claims
	meResult      *dto.UserResponse
	meErr         error
}

func (m *mockAuthService) Login(_ context.Context, _ *dto.LoginRequest, ip string) (*dto.TokenResponse, error) {
	m.loginIP = ip
	return m.loginResult, m.loginErr
}
func (m *mockAuthService) Refresh(_ context.Context, _ string) (*dto.TokenResponse, error) {
	return m.refreshResult, m.refreshErr
}
func (m *mockAuthService) Logout(_ context.Context, claims *jwt.Claims) error {
	m.logoutClaims = claims
	return nil
}
func (m *mockAuthService) Me(_ context.Context, _ string) (*dto.UserResponse, error) {
	return m.meResult, m.meErr
}
func (m *mockAuthService) EnsureBootstrapAdmin(_ context.Context) error { return nil }

// ── Mock TrancheService ──

type mockTrancheService struct {
	createResult *dto.TrancheResultResponse
	createErr    error
	createReq    *dto.TrancheRequest
	createActor  service.Actor
	overlap      *service.OverlapResult
}

func (m *mockTrancheService) Create(_ context.Context, req *dto.TrancheRequest, actor service.Actor) (*dto.TrancheResultResponse, error) {
	m.createReq = req
	m.createActor = actor
	return m.createResult, m.createErr
}
func (m *mockTrancheService) Update(_ context.Context, _ string, _ *dto.TrancheRequest, _ service.Actor) (*dto.TrancheResultResponse, error) {
	return m.createResult, m.createErr
}
func (m *mockTrancheService) Delete(_ context.Context, _ string, _ service.Actor) error {
	return m.createErr
}
func (m *mockTrancheService) GetByID(_ context.Context, _ string) (*dto.TrancheResponse, error) {
	return nil, service.ErrTrancheNotFound
}
func (m *mockTrancheService) List(_ context.Context, _ *dto.TrancheListRequest) ([]dto.TrancheResponse, int64, error) {
	return []dto.TrancheResponse{}, 0, nil
}
func (m *mockTrancheService) ValidateOverlap(_ context.Context, _ string, _, _ time.Time, _ string) (*service.OverlapResult, error) {
	return m.overlap, nil
}
func (m *mockTrancheService) ListOverlaps(_ context.Context) ([]dto.OverlapPairResponse, error) {
	return nil, nil
}

// ── Mock ChangeRequestService ──

type mockChangeRequestService struct {
	approveResult *dto.ApplyResultResponse
	approveErr    error
	rejectReason  string
	rejectActor   service.Actor
	rejectErr     error
}

func (m *mockChangeRequestService) Submit(_ context.Context, _ *dto.SubmitChangeRequest, _ service.Actor) (*dto.SubmitResultResponse, error) {
	return &dto.SubmitResultResponse{}, nil
}
func (m *mockChangeRequestService) GetByID(_ context.Context, _ string) (*dto.ChangeRequestResponse, error) {
	return nil, service.ErrChangeRequestNotFound
}
func (m *mockChangeRequestService) List(_ context.Context, _ *dto.ChangeRequestListRequest) ([]dto.ChangeRequestResponse, int64, error) {
	return nil, 0, nil
}
func (m *mockChangeRequestService) Counts(_ context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}
func (m *mockChangeRequestService) ListPendingByWorker(_ context.Context, _ string) ([]dto.ChangeRequestResponse, error) {
	return nil, nil
}
func (m *mockChangeRequestService) Approve(_ context.Context, _ string, _ service.Actor) (*dto.ApplyResultResponse, error) {
	return m.approveResult, m.approveErr
}
func (m *mockChangeRequestService) Reject(_ context.Context, _ string, actor service.Actor, reason string) (*dto.ChangeRequestResponse, error) {
	m.rejectActor = actor
	m.rejectReason = reason
	if m.rejectErr != nil {
		return nil, m.rejectErr
	}
	return &dto.ChangeRequestResponse{Status: "REJECTED", RejectReason: reason}, nil
}

// ── Mock PayrollService ──

type mockPayrollService struct {
	period  string
	content []byte
	err     error
}

func (m *mockPayrollService) Import(_ context.Context, period string, reader io.Reader, _ service.Actor) (*dto.PayrollImportResponse, error) {
	m.period = period
	m.content, _ = io.ReadAll(reader)
	if m.err != nil {
		return nil, m.err
	}
	return &dto.PayrollImportResponse{Period: period, Rows: 1}, nil
}
func (m *mockPayrollService) Summary(_ context.Context) ([]dto.PayrollPeriodResponse, error) {
	return nil, nil
}
func (m *mockPayrollService) DeletePeriod(_ context.Context, _ string, _ service.Actor) (int64, error) {
	return 0, service.ErrPayrollPeriodEmpty
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportReconciliation(_ context.Context, _, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}
func (m *mockExportService) ExportComparison(_ context.Context, _ string, _ int) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}
func (m *mockExportService) PayrollTemplate() (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setAuth(c *gin.Context) {
	c.Set(ctxUserID, "test-user-id")
	c.Set(ctxEmail, "admin@test.com")
	c.Set(ctxRole, "admin")
	c.Set(ctxClaims, &jwt.Claims{UserID: "test-user-id", Email: "admin@test.com", Role: "admin"})
}

// withAuth 模拟 JWT 中间件已注入身份
func withAuth(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		setAuth(c)
		h(c)
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// ═══════════════════════════════════════════════════════════
// 错误映射
// ═══════════════════════════════════════════════════════════

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"校验失败", service.ErrJustificationRequired, http.StatusBadRequest, codeValidation},
		{"行错误", &service.PayrollRowError{Row: 3, Reason: "金额无效"}, http.StatusBadRequest, codeValidation},
		{"不存在", service.ErrTrancheNotFound, http.StatusNotFound, codeNotFound},
		{"重复审批", service.ErrRequestNotPending, http.StatusConflict, codeInvalidState},
		{"乐观锁", pkgerrors.ErrOptimisticLock, http.StatusConflict, codeOptimisticLock},
		{"包装后的乐观锁", fmt.Errorf("更新分段: %w", pkgerrors.ErrOptimisticLock), http.StatusConflict, codeOptimisticLock},
		{"凭证错误", service.ErrInvalidCredentials, http.StatusUnauthorized, codeInvalidCredentials},
		{"基础设施错误", errors.New("connection refused"), http.StatusInternalServerError, 50000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) { handleServiceError(c, tt.err) })
			w := serve(r, httptest.NewRequest("GET", "/x", nil))

			if w.Code != tt.status {
				t.Errorf("期望 %d，实际=%d", tt.status, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.code {
				t.Errorf("期望错误码 %d，实际=%d", tt.code, resp.Code)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// AuthHandler
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Login_Success(t *testing.T) {
	mock := &mockAuthService{loginResult: &dto.TokenResponse{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900}}
	h := NewAuthHandler(mock)

	r := gin.New()
	r.POST("/auth/login", h.Login)
	req := httptest.NewRequest("POST", "/auth/login", jsonBody(dto.LoginRequest{Email: "a@test.com", Password: "secret"}))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.1.2.3:5555"
	w := serve(r, req)

	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际=%d", w.Code)
	}
	if mock.loginIP != "10.1.2.3" {
		t.Errorf("应传入客户端 IP，实际=%q", mock.loginIP)
	}
}

func TestAuthHandler_Login_BadRequest(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})
	r := gin.New()
	r.POST("/auth/login", h.Login)

	for _, body := range []string{"invalid json", `{"email":"not-an-email","password":"x"}`} {
		req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if w := serve(r, req); w.Code != http.StatusBadRequest {
			t.Errorf("%s: 期望 400，实际=%d", body, w.Code)
		}
	}
}

func TestAuthHandler_Refresh_InvalidToken(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{refreshErr: service.ErrInvalidToken})
	r := gin.New()
	r.POST("/auth/refresh", h.Refresh)

	req := httptest.NewRequest("POST", "/auth/refresh", jsonBody(dto.RefreshTokenRequest{RefreshToken: "old"}))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)

	if w.Code != http.StatusUnauthorized || parseResponse(w).Code != codeInvalidToken {
		t.Errorf("期望 401/%d，实际=%d %s", codeInvalidToken, w.Code, w.Body.String())
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	mock := &mockAuthService{}
	h := NewAuthHandler(mock)

	r := gin.New()
	r.POST("/auth/logout", withAuth(h.Logout))
	r.POST("/auth/logout-anon", h.Logout)

	if w := serve(r, httptest.NewRequest("POST", "/auth/logout", nil)); w.Code != http.StatusOK {
		t.Errorf("期望 200，实际=%d", w.Code)
	}
	if mock.logoutClaims == nil || mock.logoutClaims.UserID != "test-user-id" {
		t.Errorf("应把当前 Claims 交给 Service")
	}
	if w := serve(r, httptest.NewRequest("POST", "/auth/logout-anon", nil)); w.Code != http.StatusUnauthorized {
		t.Errorf("未认证期望 401，实际=%d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// TrancheHandler
// ═══════════════════════════════════════════════════════════

func trancheBody(allowOverlap bool) io.Reader {
	base := 1000.0
	return jsonBody(dto.TrancheRequest{
		WorkerID:     "W1",
		StartDate:    "2025-01-01",
		EndDate:      "2025-06-30",
		BaseSalary:   &base,
		AllowOverlap: allowOverlap,
	})
}

func TestTrancheHandler_Create_OverlapConflict(t *testing.T) {
	warning := &dto.OverlapWarning{Message: "员工 W1 已有重叠分段", WorkerID: "W1", ConflictTrancheID: "t-0"}
	mock := &mockTrancheService{createErr: &service.OverlapError{Warning: warning}}
	h := NewTrancheHandler(mock)

	r := gin.New()
	r.POST("/tranches", withAuth(h.CreateTranche))
	req := httptest.NewRequest("POST", "/tranches", trancheBody(false))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("期望 409，实际=%d", w.Code)
	}
	var body struct {
		Code int                `json:"code"`
		Data dto.OverlapWarning `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Code != codeOverlap || body.Data.ConflictTrancheID != "t-0" {
		t.Errorf("409 响应应携带重叠提示: %s", w.Body.String())
	}
	if mock.createActor.Email != "admin@test.com" {
		t.Errorf("操作人应取自 Token，实际=%q", mock.createActor.Email)
	}
}

func TestTrancheHandler_Create_AllowOverlap(t *testing.T) {
	mock := &mockTrancheService{createResult: &dto.TrancheResultResponse{Warning: &dto.OverlapWarning{Message: "重叠"}}}
	h := NewTrancheHandler(mock)

	r := gin.New()
	r.POST("/tranches", withAuth(h.CreateTranche))
	req := httptest.NewRequest("POST", "/tranches", trancheBody(true))
	req.Header.Set("Content-Type", "application/json")
	w := serve(r, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("期望 201，实际=%d", w.Code)
	}
	if mock.createReq == nil || !mock.createReq.AllowOverlap {
		t.Errorf("allow_overlap 应透传给 Service")
	}
}

func TestTrancheHandler_Create_MissingBaseSalary(t *testing.T) {
	h := NewTrancheHandler(&mockTrancheService{})
	r := gin.New()
	r.POST("/tranches", withAuth(h.CreateTranche))

	req := httptest.NewRequest("POST", "/tranches",
		strings.NewReader(`{"worker_id":"W1","start_date":"2025-01-01","end_date":"2025-02-01"}`))
	req.Header.Set("Content-Type", "application/json")
	if w := serve(r, req); w.Code != http.StatusBadRequest {
		t.Errorf("缺少 base_salary 期望 400，实际=%d", w.Code)
	}
}

func TestTrancheHandler_CheckOverlap(t *testing.T) {
	mock := &mockTrancheService{overlap: &service.OverlapResult{}}
	h := NewTrancheHandler(mock)
	r := gin.New()
	r.GET("/tranches/overlap-check", h.CheckOverlap)

	w := serve(r, httptest.NewRequest("GET", "/tranches/overlap-check?worker_id=W1&start_date=2025-01-01&end_date=2025-03-01", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"overlap":false`) {
		t.Errorf("无重叠期望 200，实际=%d %s", w.Code, w.Body.String())
	}

	w = serve(r, httptest.NewRequest("GET", "/tranches/overlap-check?worker_id=W1&start_date=2025-03-01&end_date=2025-01-01", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("结束早于开始期望 400，实际=%d", w.Code)
	}
}

func TestTrancheHandler_Get_NotFound(t *testing.T) {
	h := NewTrancheHandler(&mockTrancheService{})
	r := gin.New()
	r.GET("/tranches/:id", h.GetTranche)

	if w := serve(r, httptest.NewRequest("GET", "/tranches/x", nil)); w.Code != http.StatusNotFound {
		t.Errorf("期望 404，实际=%d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ChangeRequestHandler
// ═══════════════════════════════════════════════════════════

func TestChangeRequestHandler_Reject_EmptyBody(t *testing.T) {
	mock := &mockChangeRequestService{}
	h := NewChangeRequestHandler(mock)
	r := gin.New()
	r.POST("/change-requests/:id/reject", withAuth(h.Reject))

	w := serve(r, httptest.NewRequest("POST", "/change-requests/cr-1/reject", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际=%d %s", w.Code, w.Body.String())
	}
	if mock.rejectReason != "" || mock.rejectActor.Email != "admin@test.com" {
		t.Errorf("驳回参数异常: reason=%q actor=%+v", mock.rejectReason, mock.rejectActor)
	}

	req := httptest.NewRequest("POST", "/change-requests/cr-1/reject", jsonBody(dto.RejectChangeRequest{Reason: "sin presupuesto"}))
	req.Header.Set("Content-Type", "application/json")
	serve(r, req)
	if mock.rejectReason != "sin presupuesto" {
		t.Errorf("驳回理由应透传，实际=%q", mock.rejectReason)
	}
}

func TestChangeRequestHandler_Approve_AlreadyResolved(t *testing.T) {
	h := NewChangeRequestHandler(&mockChangeRequestService{approveErr: service.ErrRequestNotPending})
	r := gin.New()
	r.POST("/change-requests/:id/approve", withAuth(h.Approve))

	w := serve(r, httptest.NewRequest("POST", "/change-requests/cr-1/approve", nil))
	if w.Code != http.StatusConflict || parseResponse(w).Code != codeInvalidState {
		t.Errorf("重复审批期望 409/%d，实际=%d", codeInvalidState, w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// PayrollHandler / ExportHandler
// ═══════════════════════════════════════════════════════════

func multipartBody(t *testing.T, period string, file []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if period != "" {
		mw.WriteField("period", period)
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", "nomina.xlsx")
		if err != nil {
			t.Fatalf("构造表单失败: %v", err)
		}
		fw.Write(file)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestPayrollHandler_Import(t *testing.T) {
	mock := &mockPayrollService{}
	h := NewPayrollHandler(mock, zap.NewNop())
	r := gin.New()
	r.POST("/payroll/import", withAuth(h.Import))

	body, contentType := multipartBody(t, "2025-03", []byte("xlsx-bytes"))
	req := httptest.NewRequest("POST", "/payroll/import", body)
	req.Header.Set("Content-Type", contentType)
	w := serve(r, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("期望 201，实际=%d %s", w.Code, w.Body.String())
	}
	if mock.period != "2025-03" || string(mock.content) != "xlsx-bytes" {
		t.Errorf("期间或文件内容未透传: %s %q", mock.period, mock.content)
	}
}

func TestPayrollHandler_Import_BadForm(t *testing.T) {
	h := NewPayrollHandler(&mockPayrollService{}, zap.NewNop())
	r := gin.New()
	r.POST("/payroll/import", withAuth(h.Import))

	cases := []struct {
		name   string
		period string
		file   []byte
	}{
		{"缺少文件", "2025-03", nil},
		{"期间格式错误", "2025/03", []byte("x")},
	}
	for _, tc := range cases {
		body, contentType := multipartBody(t, tc.period, tc.file)
		req := httptest.NewRequest("POST", "/payroll/import", body)
		req.Header.Set("Content-Type", contentType)
		if w := serve(r, req); w.Code != http.StatusBadRequest {
			t.Errorf("%s: 期望 400，实际=%d", tc.name, w.Code)
		}
	}
}

func TestPayrollHandler_DeletePeriod_Empty(t *testing.T) {
	h := NewPayrollHandler(&mockPayrollService{}, zap.NewNop())
	r := gin.New()
	r.DELETE("/payroll/periods/:period", withAuth(h.DeletePeriod))

	if w := serve(r, httptest.NewRequest("DELETE", "/payroll/periods/2025-03", nil)); w.Code != http.StatusNotFound {
		t.Errorf("空期间期望 404，实际=%d", w.Code)
	}
}

func TestExportHandler_PayrollTemplate(t *testing.T) {
	h := NewExportHandler(&mockExportService{buf: bytes.NewBufferString("PK"), filename: "payroll_template.xlsx"})
	r := gin.New()
	r.GET("/payroll/template", h.PayrollTemplate)

	w := serve(r, httptest.NewRequest("GET", "/payroll/template", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际=%d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "payroll_template.xlsx") {
		t.Errorf("Content-Disposition 异常: %s", cd)
	}
	if w.Body.String() != "PK" {
		t.Errorf("文件内容异常")
	}
}

func TestExportHandler_Comparison_UnknownSnapshot(t *testing.T) {
	h := NewExportHandler(&mockExportService{err: service.ErrSnapshotNotFound})
	r := gin.New()
	r.GET("/snapshots/:id/compare/export", h.ExportComparison)

	if w := serve(r, httptest.NewRequest("GET", "/snapshots/x/compare/export?year=2025", nil)); w.Code != http.StatusNotFound {
		t.Errorf("期望 404，实际=%d", w.Code)
	}
	if w := serve(r, httptest.NewRequest("GET", "/snapshots/x/compare/export", nil)); w.Code != http.StatusBadRequest {
		t.Errorf("缺少 year 期望 400，实际=%d", w.Code)
	}
}
