package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lokman32/leadprep/internal/auth"
	"github.com/Lokman32/leadprep/internal/catalog"
	"github.com/Lokman32/leadprep/internal/idempotency"
	"github.com/Lokman32/leadprep/internal/orders"
	"github.com/Lokman32/leadprep/internal/reporting"
)

type testAPI struct {
	router *gin.Engine
	issuer *auth.Issuer
	orders *orders.MemoryStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	parts := catalog.NewMemoryStore(
		catalog.Part{Identifier: "X1", Rack: "R-01", Class: catalog.ClassStandard},
		catalog.Part{Identifier: "X2", Rack: "R-02", Class: catalog.ClassStandard},
	)
	users := auth.NewMemoryUserStore(
		auth.User{Matricule: "A1", Role: auth.RoleAdmin},
		auth.User{Matricule: "L1", Role: auth.RoleLogistic},
		auth.User{Matricule: "O1", Role: auth.RoleOperator},
	)
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	repo := orders.NewMemoryStore()
	engine := orders.NewEngine(repo, parts, nil, log, orders.EngineConfig{})

	r := gin.New()
	RegisterRoutes(r, HandlerConfig{
		Auth:        auth.NewService(users, issuer, log),
		Issuer:      issuer,
		Catalog:     catalog.NewService(parts, log),
		Orders:      engine,
		Reports:     reporting.NewService(repo, parts, log, reporting.Config{}),
		Idempotency: idempotency.NewMemoryStore(time.Hour),
		Log:         log,
	})
	return &testAPI{router: r, issuer: issuer, orders: repo}
}

func (a *testAPI) token(t *testing.T, matricule string, role auth.Role) string {
	t.Helper()
	tok, _, err := a.issuer.Issue(auth.User{Matricule: matricule, Role: role})
	require.NoError(t, err)
	return tok
}

func (a *testAPI) do(method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response {
	t.Helper()
	var r response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r), w.Body.String())
	return r
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogin(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(http.MethodPost, "/api/login", "", `{"matricule":"nobody"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decode(t, w).Success)

	w = a.do(http.MethodPost, "/api/login", "", `{"matricule":"L1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
	assert.Contains(t, w.Header().Get("Set-Cookie"), auth.CookieName+"=")

	w = a.do(http.MethodPost, "/api/login", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(http.MethodPost, "/api/logout", a.token(t, "O1", auth.RoleOperator), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestAuthAndRoles(t *testing.T) {
	a := newTestAPI(t)

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/parts", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/parts", "garbage", "").Code)

	op := a.token(t, "O1", auth.RoleOperator)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/parts", op, "").Code)
	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodPost, "/api/deliveries", op, `{"part":"X1","serial":"S1"}`).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/history", op, "").Code)
	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodPost, "/api/confirmations", a.token(t, "L1", auth.RoleLogistic), `{"part":"X1","serial":"S1"}`).Code)
}

func TestOrderLifecycle(t *testing.T) {
	a := newTestAPI(t)
	op := a.token(t, "O1", auth.RoleOperator)
	lg := a.token(t, "L1", auth.RoleLogistic)

	w := a.do(http.MethodPost, "/api/orders", op, `{"items":[{"part":"X1","quantity":2}]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created orders.Order
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	assert.Equal(t, "O1", created.RequesterID)
	assert.Equal(t, "/api/admin/orders/"+created.SerialCode, w.Header().Get("Location"))

	w = a.do(http.MethodPost, "/api/deliveries", lg, `{"part":"X1","serial":"S1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res orders.DeliveryResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Equal(t, 1, res.DeliveredCount)
	assert.Equal(t, orders.LinePartiallyDelivered, res.LineStatus)

	w = a.do(http.MethodPost, "/api/deliveries", lg, `{"part":"X1","serial":"S1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = a.do(http.MethodPost, "/api/deliveries", lg, `{"part":"X1","serial":"S2"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.True(t, res.OrderFullyDelivered)

	// line is delivered; nothing open remains for X1
	w = a.do(http.MethodPost, "/api/deliveries", lg, `{"part":"X1","serial":"S3"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = a.do(http.MethodPost, "/api/confirmations", op, `{"part":"X1","serial":"S9"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	for _, s := range []string{"S1", "S2"} {
		w = a.do(http.MethodPost, "/api/confirmations", op, `{"part":"X1","serial":"`+s+`"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	var conf orders.ConfirmationResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &conf))
	assert.True(t, conf.OrderConfirmed)

	got, err := a.orders.Get(context.Background(), created.SerialCode)
	require.NoError(t, err)
	assert.Equal(t, orders.OrderConfirmed, got.Status)
}

func TestCreateOrderErrors(t *testing.T) {
	a := newTestAPI(t)
	op := a.token(t, "O1", auth.RoleOperator)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/orders", op, `{"items":[]}`).Code)
	assert.Equal(t, http.StatusNotFound,
		a.do(http.MethodPost, "/api/orders", op, `{"items":[{"part":"NOPE","quantity":1}]}`).Code)
	assert.Equal(t, http.StatusConflict,
		a.do(http.MethodPost, "/api/orders", op, `{"items":[{"part":"X1","quantity":1},{"part":"x1","quantity":2}]}`).Code)

	list, err := a.orders.List(context.Background(), orders.Query{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateOrderRequesterOverride(t *testing.T) {
	a := newTestAPI(t)
	cases := []struct {
		matricule string
		role      auth.Role
		want      string
	}{
		{"O1", auth.RoleOperator, "O1"},
		{"L1", auth.RoleLogistic, "L1"},
		{"A1", auth.RoleAdmin, "X99"},
	}
	for _, tc := range cases {
		w := a.do(http.MethodPost, "/api/orders", a.token(t, tc.matricule, tc.role),
			`{"requester_id":"X99","items":[{"part":"X1","quantity":1}]}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var created orders.Order
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
		assert.Equal(t, tc.want, created.RequesterID, string(tc.role))
	}
}

func TestCreateOrderIdempotent(t *testing.T) {
	a := newTestAPI(t)
	op := a.token(t, "O1", auth.RoleOperator)
	body := `{"items":[{"part":"X2","quantity":1}]}`

	first := a.do(http.MethodPost, "/api/orders", op, body, idempotency.HeaderKey, "key-1")
	require.Equal(t, http.StatusCreated, first.Code)
	second := a.do(http.MethodPost, "/api/orders", op, body, idempotency.HeaderKey, "key-1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	list, err := a.orders.List(context.Background(), orders.Query{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPartsAdmin(t *testing.T) {
	a := newTestAPI(t)
	adm := a.token(t, "A1", auth.RoleAdmin)
	op := a.token(t, "O1", auth.RoleOperator)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/api/parts", op, `{"identifier":"X9"}`).Code)
	assert.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/parts", adm, `{"identifier":"X9","rack":"R-09"}`).Code)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/api/parts", adm, `{"identifier":"x9"}`).Code)

	w := a.do(http.MethodGet, "/api/parts/exists?value=x9", op, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"exists":true}`, string(decode(t, w).Data))

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPut, "/api/parts/X9", adm, `{}`).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodPut, "/api/parts/X9", adm, `{"rack":"R-10"}`).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPut, "/api/parts/NOPE", adm, `{"rack":"R-10"}`).Code)

	w = a.do(http.MethodPost, "/api/parts/search", op, `{"query":"9"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var found []catalog.Part
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &found))
	require.Len(t, found, 1)
	assert.Equal(t, "R-10", found[0].Rack)

	assert.Equal(t, http.StatusOK, a.do(http.MethodDelete, "/api/parts/X9", adm, "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, "/api/parts/X9", adm, "").Code)
}

func TestAdminLineRoutes(t *testing.T) {
	a := newTestAPI(t)
	adm := a.token(t, "A1", auth.RoleAdmin)
	op := a.token(t, "O1", auth.RoleOperator)

	w := a.do(http.MethodPost, "/api/orders", op, `{"items":[{"part":"X1","quantity":1},{"part":"X2","quantity":1}]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created orders.Order
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &created))
	base := "/api/admin/orders/" + created.SerialCode

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, base+"/lines/X1", adm, "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, base+"/lines/X7", adm, "").Code)

	assert.Equal(t, http.StatusBadRequest,
		a.do(http.MethodPut, base+"/lines/X1/status", adm, `{"status":"confirmed"}`).Code)
	assert.Equal(t, http.StatusOK,
		a.do(http.MethodPut, base+"/lines/X1/status", adm, `{"status":"cancelled"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity,
		a.do(http.MethodPut, base+"/lines/X1/status", adm, `{"status":"cancelled"}`).Code)

	assert.Equal(t, http.StatusOK, a.do(http.MethodDelete, base+"/lines/X2", adm, "").Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodDelete, base, adm, "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, base, adm, "").Code)
}

func TestReports(t *testing.T) {
	a := newTestAPI(t)
	adm := a.token(t, "A1", auth.RoleAdmin)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/history?date=02/05/2024", adm, "").Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/history/details?date=2024-05-02&shift=dawn", adm, "").Code)

	w := a.do(http.MethodGet, "/api/history?date=2024-05-02", adm, "")
	require.Equal(t, http.StatusOK, w.Code)
	var sum reporting.DaySummary
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &sum))
	assert.Len(t, sum.Shifts, 3)

	for _, path := range []string{
		"/api/history/details?date=2024-05-02&shift=night",
		"/api/admin/orders",
		"/api/admin/orders?date=2024-05-02",
		"/api/orders/overdue",
		"/api/deliveries/pending",
		"/api/deliveries/awaiting-confirmation",
		"/api/logistic",
	} {
		assert.Equal(t, http.StatusOK, a.do(http.MethodGet, path, adm, "").Code, path)
	}
}
