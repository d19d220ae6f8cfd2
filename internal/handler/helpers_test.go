package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dskhairnar/backend-acme/internal/auth"
	"github.com/dskhairnar/backend-acme/internal/medication"
	"github.com/dskhairnar/backend-acme/internal/middleware"
	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/shipment"
	"github.com/dskhairnar/backend-acme/internal/weight"
	"github.com/go-chi/chi/v5"
)

const (
	patientID = model.UserID("6f9619ff-8b86-d011-b42d-00c04fc964ff")
	otherID   = model.UserID("3b241101-e2bb-4255-8caf-4136c566a962")
	adminID   = model.UserID("9a8b7c6d-5e4f-4a3b-9c2d-1e0f2a3b4c5d")
)

func patient() *model.Principal {
	return &model.Principal{ID: patientID, Email: "patient@example.com", Name: "Pat", Role: model.RoleUser}
}

func admin() *model.Principal {
	return &model.Principal{ID: adminID, Email: "admin@example.com", Name: "Ada", Role: model.RoleAdmin}
}

// testEnvelope はレスポンスエンベロープのデコード先。
type testEnvelope struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Data       json.RawMessage   `json:"data"`
	Error      string            `json:"error"`
	Details    map[string]string `json:"details"`
	Pagination *model.Pagination `json:"pagination"`
	Timestamp  string            `json:"timestamp"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode envelope: %v\nbody: %s", err, w.Body.String())
	}
	return env
}

func decodeData(t *testing.T, env testEnvelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("failed to decode data: %v\ndata: %s", err, env.Data)
	}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withPrincipal は認証済みのプリンシパルをリクエストに付与する。
func withPrincipal(req *http.Request, p *model.Principal) *http.Request {
	ctx := middleware.ContextWithPrincipal(req.Context(), p)
	ctx = middleware.ContextWithClaims(ctx, &auth.Claims{UserID: p.ID.String(), Role: p.Role, Type: auth.TokenTypeAccess})
	return req.WithContext(ctx)
}

// withURLParam はchiのURLパラメータをリクエストに設定する。
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d\nbody: %s", w.Code, want, w.Body.String())
	}
}

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	loginFn    func(ctx context.Context, email, password string) (*auth.AuthResult, error)
	refreshFn  func(ctx context.Context, refreshToken string) (*auth.AuthResult, error)
	logoutFn   func(ctx context.Context, access *auth.Claims, refreshToken string) error
	meFn       func(ctx context.Context, id model.UserID) (*model.Principal, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.AuthResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*auth.AuthResult, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, access *auth.Claims, refreshToken string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, access, refreshToken)
	}
	return nil
}

func (m *mockAuthService) Me(ctx context.Context, id model.UserID) (*model.Principal, error) {
	if m.meFn != nil {
		return m.meFn(ctx, id)
	}
	return nil, nil
}

type mockUserService struct {
	listUsersFn  func(ctx context.Context, caller *model.Principal, q model.ListQuery) (*model.Page[*model.Principal], error)
	updateRoleFn func(ctx context.Context, caller *model.Principal, id string, role model.Role) (*model.Principal, error)
}

func (m *mockUserService) ListUsers(ctx context.Context, caller *model.Principal, q model.ListQuery) (*model.Page[*model.Principal], error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, caller, q)
	}
	return &model.Page[*model.Principal]{}, nil
}

func (m *mockUserService) UpdateRole(ctx context.Context, caller *model.Principal, id string, role model.Role) (*model.Principal, error) {
	if m.updateRoleFn != nil {
		return m.updateRoleFn(ctx, caller, id, role)
	}
	return nil, nil
}

type mockWeightService struct {
	listFn   func(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.WeightEntry], error)
	getFn    func(ctx context.Context, scope model.OwnerScope, id string) (*model.WeightEntry, error)
	createFn func(ctx context.Context, owner model.UserID, in weight.CreateInput) (*model.WeightEntry, error)
	updateFn func(ctx context.Context, scope model.OwnerScope, id string, in weight.UpdateInput) (*model.WeightEntry, error)
	deleteFn func(ctx context.Context, scope model.OwnerScope, id string) error
	statsFn  func(ctx context.Context, owner model.UserID, period string) (*model.WeightStats, error)
}

func (m *mockWeightService) List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.WeightEntry], error) {
	if m.listFn != nil {
		return m.listFn(ctx, scope, q)
	}
	return &model.Page[*model.WeightEntry]{}, nil
}

func (m *mockWeightService) Get(ctx context.Context, scope model.OwnerScope, id string) (*model.WeightEntry, error) {
	if m.getFn != nil {
		return m.getFn(ctx, scope, id)
	}
	return nil, model.NewNotFoundError("Weight entry")
}

func (m *mockWeightService) Create(ctx context.Context, owner model.UserID, in weight.CreateInput) (*model.WeightEntry, error) {
	if m.createFn != nil {
		return m.createFn(ctx, owner, in)
	}
	return &model.WeightEntry{UserID: owner, Weight: in.Weight, RecordedAt: in.RecordedAt}, nil
}

func (m *mockWeightService) Update(ctx context.Context, scope model.OwnerScope, id string, in weight.UpdateInput) (*model.WeightEntry, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, scope, id, in)
	}
	return &model.WeightEntry{ID: id}, nil
}

func (m *mockWeightService) Delete(ctx context.Context, scope model.OwnerScope, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, scope, id)
	}
	return nil
}

func (m *mockWeightService) Stats(ctx context.Context, owner model.UserID, period string) (*model.WeightStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, owner, period)
	}
	return &model.WeightStats{Period: period}, nil
}

type mockMedicationService struct {
	listFn   func(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.Medication], error)
	createFn func(ctx context.Context, owner model.UserID, in medication.CreateInput) (*model.Medication, error)
	updateFn func(ctx context.Context, scope model.OwnerScope, id string, in medication.UpdateInput) (*model.Medication, error)
}

func (m *mockMedicationService) List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.Medication], error) {
	if m.listFn != nil {
		return m.listFn(ctx, scope, q)
	}
	return &model.Page[*model.Medication]{}, nil
}

func (m *mockMedicationService) Get(ctx context.Context, scope model.OwnerScope, id string) (*model.Medication, error) {
	return nil, model.NewNotFoundError("Medication")
}

func (m *mockMedicationService) Create(ctx context.Context, owner model.UserID, in medication.CreateInput) (*model.Medication, error) {
	if m.createFn != nil {
		return m.createFn(ctx, owner, in)
	}
	return &model.Medication{UserID: owner, Name: in.Name}, nil
}

func (m *mockMedicationService) Update(ctx context.Context, scope model.OwnerScope, id string, in medication.UpdateInput) (*model.Medication, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, scope, id, in)
	}
	return &model.Medication{ID: id}, nil
}

func (m *mockMedicationService) Delete(ctx context.Context, scope model.OwnerScope, id string) error {
	return nil
}

type mockShipmentService struct {
	listFn   func(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.Shipment], error)
	createFn func(ctx context.Context, owner model.UserID, in shipment.CreateInput) (*model.Shipment, error)
	updateFn func(ctx context.Context, scope model.OwnerScope, id string, in shipment.UpdateInput) (*model.Shipment, error)
}

func (m *mockShipmentService) List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.Shipment], error) {
	if m.listFn != nil {
		return m.listFn(ctx, scope, q)
	}
	return &model.Page[*model.Shipment]{}, nil
}

func (m *mockShipmentService) Get(ctx context.Context, scope model.OwnerScope, id string) (*model.Shipment, error) {
	return nil, model.NewNotFoundError("Shipment")
}

func (m *mockShipmentService) Create(ctx context.Context, owner model.UserID, in shipment.CreateInput) (*model.Shipment, error) {
	if m.createFn != nil {
		return m.createFn(ctx, owner, in)
	}
	return &model.Shipment{UserID: owner, Items: in.Items, Status: in.Status}, nil
}

func (m *mockShipmentService) Update(ctx context.Context, scope model.OwnerScope, id string, in shipment.UpdateInput) (*model.Shipment, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, scope, id, in)
	}
	return &model.Shipment{ID: id}, nil
}

func (m *mockShipmentService) Delete(ctx context.Context, scope model.OwnerScope, id string) error {
	return nil
}

var (
	_ AuthServiceInterface       = (*mockAuthService)(nil)
	_ UserServiceInterface       = (*mockUserService)(nil)
	_ WeightServiceInterface     = (*mockWeightService)(nil)
	_ MedicationServiceInterface = (*mockMedicationService)(nil)
	_ ShipmentServiceInterface   = (*mockShipmentService)(nil)
)
