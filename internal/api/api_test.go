package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bher20/equotemanager/internal/auth"
	"github.com/bher20/equotemanager/internal/notification"
	"github.com/bher20/equotemanager/internal/quotes"
	"github.com/bher20/equotemanager/internal/rates"
	"github.com/bher20/equotemanager/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router http.Handler
	store  *storage.MemoryStorage
	rates  *rates.Service
	quotes *quotes.Service
	auth   *auth.Service
}

func newEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	ctx := context.Background()
	st := storage.NewMemory()
	rs, err := rates.NewService(ctx, st, rates.Default(), rates.SourceDefault)
	require.NoError(t, err)
	qs := quotes.NewService(st, rs, quotes.Options{})
	as, err := auth.NewService(st)
	require.NoError(t, err)
	if cfg.SubmitRPS == 0 {
		cfg.SubmitRPS = 1000
		cfg.SubmitBurst = 1000
	}
	if cfg.FollowupInterval == "" {
		cfg.FollowupInterval = "3600"
	}
	router := NewRouter(Deps{Store: st, Rates: rs, Quotes: qs, Auth: as, Email: notification.NewService(st)}, cfg)
	return &testEnv{router: router, store: st, rates: rs, quotes: qs, auth: as}
}

func (e *testEnv) token(t *testing.T, username, role string) string {
	t.Helper()
	u, err := e.auth.Register(context.Background(), username, "s3cret-pass", role)
	require.NoError(t, err)
	_, raw, err := e.auth.CreateToken(context.Background(), u.ID, "test", role, nil)
	require.NoError(t, err)
	return raw
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const validQuote = `{
	"customerInfo": {"firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com", "phone": "555-0100", "zip": "62701"},
	"inputs": {"windows": {"ground": 10}},
	"pricing": {"priceMin": 1, "priceMax": 2}
}`

func TestHealth(t *testing.T) {
	env := newEnv(t, Config{})
	for path, body := range map[string]string{"/healthz": "ok", "/livez": "live", "/readyz": "ready"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, body, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newEnv(t, Config{})
	env.do(t, http.MethodPost, "/api/v1/pricing/calculate", "", `{"variant":"res","inputs":{"windows":{"ground":1}}}`)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "equotemanager_quotes_calculated_total")
	assert.Contains(t, rec.Body.String(), "equotemanager_http_request_duration_seconds")
}

func TestCalculate(t *testing.T) {
	env := newEnv(t, Config{})

	rec := env.do(t, http.MethodPost, "/api/v1/pricing/calculate", "", `{"variant":"res","inputs":{"windows":{"ground":10}}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[map[string]any](t, rec)
	assert.EqualValues(t, 80, res["priceMin"])
	assert.EqualValues(t, 100, res["priceMax"])
	assert.Contains(t, res, "breakdown")

	rec = env.do(t, http.MethodPost, "/api/v1/pricing/calculate", "", `{"variant":"com","inputs":{"panels":50,"height_tier":"high","frequency_com":"weekly"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[map[string]any](t, rec)
	assert.EqualValues(t, 240, res["priceMin"])
	assert.EqualValues(t, 400, res["priceMax"])

	rec = env.do(t, http.MethodPost, "/api/v1/pricing/calculate", "", `{"variant":"solar","inputs":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "variant")

	rec = env.do(t, http.MethodPost, "/api/v1/pricing/calculate", "", `{"inputs":{"windows":{"ground":-1}}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/pricing/calculate", "", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode[errorResponse](t, rec).Error)
}

func TestCurrentRates(t *testing.T) {
	env := newEnv(t, Config{})
	rec := env.do(t, http.MethodGet, "/api/v1/pricing/rates", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cur := decode[rates.Current](t, rec)
	assert.Equal(t, rates.SourceDefault, cur.Source)
	assert.NotEmpty(t, cur.Version)
	assert.Equal(t, rates.Default(), cur.Document)
}

func TestSubmitQuote(t *testing.T) {
	env := newEnv(t, Config{})

	rec := env.do(t, http.MethodPost, "/api/v1/quotes", "", validQuote)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[submitResponse](t, rec)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.QuoteID)
	assert.Equal(t, pricingSummary{PriceMin: 80, PriceMax: 100}, resp.Pricing, "server pricing wins over the client's")

	q, err := env.store.GetQuote(context.Background(), resp.QuoteID)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, int64(80), q.PriceMin)
}

type brokenStore struct {
	*storage.MemoryStorage
}

func (brokenStore) CreateSubmission(ctx context.Context, sub storage.Submission) error {
	return errors.New("disk full")
}

type countingMailer struct {
	calls int
}

func (m *countingMailer) NotifyNewLead(ctx context.Context, to string, e notification.LeadEmail) error {
	m.calls++
	return nil
}

func TestSubmitQuote_StorageFailure(t *testing.T) {
	ctx := context.Background()
	st := brokenStore{storage.NewMemory()}
	rs, err := rates.NewService(ctx, st, rates.Default(), rates.SourceDefault)
	require.NoError(t, err)
	mailer := &countingMailer{}
	qs := quotes.NewService(st, rs, quotes.Options{Mailer: mailer, NotifyTo: "owner@example.com"})
	as, err := auth.NewService(st)
	require.NoError(t, err)
	router := NewRouter(Deps{Store: st, Rates: rs, Quotes: qs, Auth: as, Email: notification.NewService(st)},
		Config{SubmitRPS: 1000, SubmitBurst: 1000})
	env := &testEnv{router: router, store: st.MemoryStorage, rates: rs, quotes: qs, auth: as}

	rec := env.do(t, http.MethodPost, "/api/v1/quotes", "", validQuote)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "disk full")

	rec = env.do(t, http.MethodPost, "/api/v1/messages", "", `{"customerInfo":{"firstName":"Ada","email":"ada@example.com"},"message":"hello"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())

	qs.Wait()
	assert.Zero(t, mailer.calls)

	leads, err := st.ListLeads(ctx, storage.LeadFilter{})
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestSubmitQuote_Errors(t *testing.T) {
	env := newEnv(t, Config{})

	rec := env.do(t, http.MethodPost, "/api/v1/quotes", "", `{"customerInfo":{"firstName":"Ada","lastName":"L","phone":"1"},"inputs":{"windows":{"ground":1}}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "customerInfo.email is required", decode[errorResponse](t, rec).Error)

	rec = env.do(t, http.MethodPost, "/api/v1/quotes", "", `{"customerInfo":{"firstName":"Ada","lastName":"L","phone":"1","email":"a@b.co"},"inputs":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/quotes", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body is empty", decode[errorResponse](t, rec).Error)
}

func TestSubmitQuote_RateLimited(t *testing.T) {
	env := newEnv(t, Config{SubmitRPS: 0.001, SubmitBurst: 2})

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/quotes", "", validQuote)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/v1/quotes", "", validQuote)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// the calculator is not throttled
	rec = env.do(t, http.MethodPost, "/api/v1/pricing/calculate", "", `{"inputs":{"windows":{"ground":1}}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitMessage(t *testing.T) {
	env := newEnv(t, Config{})
	rec := env.do(t, http.MethodPost, "/api/v1/messages", "", `{"customerInfo":{"firstName":"Grace","email":"grace@example.com"},"message":"Do you do gutters?"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[map[string]any](t, rec)
	assert.Equal(t, true, resp["success"])
	assert.NotEmpty(t, resp["messageId"])

	rec = env.do(t, http.MethodPost, "/api/v1/messages", "", `{"customerInfo":{"firstName":"Grace","email":"grace@example.com"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIssueToken(t *testing.T) {
	env := newEnv(t, Config{})
	_, err := env.auth.Register(context.Background(), "owner", "s3cret-pass", auth.RoleAdmin)
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/v1/auth/token", "", `{"username":"owner","password":"s3cret-pass"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tok := decode[tokenResponse](t, rec)
	assert.NotEmpty(t, tok.Token)
	assert.Equal(t, auth.RoleAdmin, tok.Role)
	require.NotNil(t, tok.ExpiresAt)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/leads", tok.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/token", "", `{"username":"owner","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/auth/token", "", `{"username":"owner","password":"s3cret-pass","expires_in":"soon"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_RequiresToken(t *testing.T) {
	env := newEnv(t, Config{})

	rec := env.do(t, http.MethodGet, "/api/v1/admin/leads", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/leads", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdmin_Leads(t *testing.T) {
	env := newEnv(t, Config{})
	admin := env.token(t, "owner", auth.RoleAdmin)
	viewer := env.token(t, "intern", auth.RoleViewer)

	rec := env.do(t, http.MethodPost, "/api/v1/quotes", "", validQuote)
	require.Equal(t, http.StatusCreated, rec.Code)
	quoteID := decode[submitResponse](t, rec).QuoteID

	rec = env.do(t, http.MethodGet, "/api/v1/admin/leads?status=new", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	leads := decode[[]storage.Lead](t, rec)
	require.Len(t, leads, 1)
	leadID := leads[0].ID
	assert.Equal(t, quoteID, leads[0].QuoteID)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/leads?status=archived", viewer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/leads/"+leadID, viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[map[string]json.RawMessage](t, rec)
	assert.Contains(t, string(detail["customer"]), `"firstName":"Ada"`)
	assert.Contains(t, string(detail["quote"]), `"inputs":{"windows":{"ground":10`)

	rec = env.do(t, http.MethodPatch, "/api/v1/admin/leads/"+leadID, viewer, `{"status":"contacted"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/v1/admin/leads/"+leadID, admin, `{"status":"contacted","notes":"called"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	lead := decode[storage.Lead](t, rec)
	assert.Equal(t, storage.LeadStatusContacted, lead.Status)
	assert.Equal(t, "called", lead.Notes)

	rec = env.do(t, http.MethodPatch, "/api/v1/admin/leads/"+leadID, admin, `{"status":"new"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/v1/admin/leads/missing", admin, `{"notes":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/admin/leads/missing", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/quotes/"+quoteID, viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"breakdown":{"base":90`)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/customers", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]storage.Customer](t, rec), 1)
}

func TestAdmin_Messages(t *testing.T) {
	env := newEnv(t, Config{})
	editor := env.token(t, "office", auth.RoleEditor)

	rec := env.do(t, http.MethodPost, "/api/v1/messages", "", `{"customerInfo":{"firstName":"Grace","email":"grace@example.com"},"message":"hello"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[map[string]any](t, rec)["messageId"].(string)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/messages?unread=true", editor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]storage.Message](t, rec), 1)

	rec = env.do(t, http.MethodPatch, "/api/v1/admin/messages/"+id, editor, `{"read":true}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/messages?unread=true", editor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]storage.Message](t, rec))

	rec = env.do(t, http.MethodPatch, "/api/v1/admin/messages/"+id, editor, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/admin/messages/"+id, editor, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/admin/messages/"+id, editor, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_PublishRates(t *testing.T) {
	env := newEnv(t, Config{})
	editor := env.token(t, "office", auth.RoleEditor)
	viewer := env.token(t, "intern", auth.RoleViewer)

	doc := rates.Default()
	doc.Residential.Windows.Ground = rates.Pair{16, 20}

	rec := env.do(t, http.MethodPut, "/api/v1/admin/rates", viewer, doc)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/admin/rates", editor, doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cur := decode[rates.Current](t, rec)
	assert.Equal(t, rates.SourceSnapshot, cur.Source)
	assert.NotEmpty(t, cur.PublishedBy)

	rec = env.do(t, http.MethodPost, "/api/v1/pricing/calculate", "", `{"inputs":{"windows":{"ground":10}}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[map[string]any](t, rec)
	assert.EqualValues(t, 160, res["priceMin"])
	assert.EqualValues(t, 200, res["priceMax"])

	rec = env.do(t, http.MethodGet, "/api/v1/admin/rates/history", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decode[[]snapshotView](t, rec)
	require.Len(t, hist, 1)
	assert.Equal(t, cur.Version, hist[0].Version)

	bad := rates.Default()
	bad.Residential.Windows.Ground = rates.Pair{20, 10}
	rec = env.do(t, http.MethodPut, "/api/v1/admin/rates", editor, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/admin/rates", editor, `{"residential":{},"surprise":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/pricing/calculate", "", `{"inputs":{"windows":{"ground":10}}}`)
	assert.EqualValues(t, 160, decode[map[string]any](t, rec)["priceMin"], "rejected publish keeps the live table")
}

func TestAdmin_EmailSettings(t *testing.T) {
	env := newEnv(t, Config{})
	admin := env.token(t, "owner", auth.RoleAdmin)
	editor := env.token(t, "office", auth.RoleEditor)

	rec := env.do(t, http.MethodGet, "/api/v1/admin/settings/email", editor, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/admin/settings/email", admin, storage.EmailConfig{
		Provider: "sendgrid", APIKey: "SG.secret", FromAddress: "quotes@example.com", Enabled: true,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/settings/email", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[storage.EmailConfig](t, rec)
	assert.Equal(t, secretMask, got.APIKey)
	assert.Equal(t, "sendgrid", got.Provider)

	got.FromName = "Quotes"
	rec = env.do(t, http.MethodPut, "/api/v1/admin/settings/email", admin, got)
	require.Equal(t, http.StatusNoContent, rec.Code)

	stored, err := env.store.GetEmailConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SG.secret", stored.APIKey, "masked secret keeps the stored value")
	assert.Equal(t, "Quotes", stored.FromName)

	rec = env.do(t, http.MethodPost, "/api/v1/admin/settings/email/test", admin, `{"config":{"provider":"pigeon","enabled":true},"to":"owner@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdmin_WorkerSettings(t *testing.T) {
	env := newEnv(t, Config{FollowupInterval: "7200"})
	admin := env.token(t, "owner", auth.RoleAdmin)

	rec := env.do(t, http.MethodGet, "/api/v1/admin/settings/worker", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7200", decode[workerSettings](t, rec).Interval)

	rec = env.do(t, http.MethodPut, "/api/v1/admin/settings/worker", admin, `{"interval":"whenever"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/admin/settings/worker", admin, `{"interval":"0 9 * * 1-5"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/admin/settings/worker", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0 9 * * 1-5", decode[workerSettings](t, rec).Interval)
}

func TestUI(t *testing.T) {
	env := newEnv(t, Config{})
	rec := env.do(t, http.MethodGet, "/ui/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Get an instant estimate")

	rec = env.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestIPLimiter_SweepsIdleVisitors(t *testing.T) {
	l := newIPLimiter(1, 1, 0)
	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
	assert.LessOrEqual(t, len(l.visitors), 2)
}
