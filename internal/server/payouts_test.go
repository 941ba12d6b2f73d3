package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/clubpay/internal/authorization"
	clubdomain "github.com/smallbiznis/clubpay/internal/club/domain"
	"github.com/smallbiznis/clubpay/internal/observability"
	payoutdomain "github.com/smallbiznis/clubpay/internal/payout/domain"
	"github.com/smallbiznis/clubpay/internal/statement"
	"github.com/smallbiznis/clubpay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type fakePayoutService struct {
	payoutdomain.Service

	generateReq    payoutdomain.GenerateRequest
	generateResult payoutdomain.GenerateResult
	generateErr    error
	sendResult     payoutdomain.TransferBatchResult
	sendErr        error
	clubLimit      int
	clubErr        error
	payout         payoutdomain.Payout
	payoutErr      error
}

func (f *fakePayoutService) GenerateMonthly(_ context.Context, req payoutdomain.GenerateRequest) (payoutdomain.GenerateResult, error) {
	f.generateReq = req
	return f.generateResult, f.generateErr
}

func (f *fakePayoutService) SendTransfers(_ context.Context, _ payoutdomain.SendTransfersRequest) (payoutdomain.TransferBatchResult, error) {
	return f.sendResult, f.sendErr
}

func (f *fakePayoutService) ListClubPayouts(_ context.Context, _ string, limit int) ([]payoutdomain.Payout, error) {
	f.clubLimit = limit
	if f.clubErr != nil {
		return nil, f.clubErr
	}
	if limit > payoutdomain.MaxListLimit {
		return nil, payoutdomain.ErrInvalidLimit
	}
	return nil, nil
}

func (f *fakePayoutService) GetSummary(_ context.Context, period string) (payoutdomain.Summary, error) {
	if period != "2024-05-01" {
		return payoutdomain.Summary{}, payoutdomain.ErrInvalidPeriod
	}
	return payoutdomain.Summary{Period: period, Clubs: 1, TotalAmount: decimal.NewFromInt(1710)}, nil
}

func (f *fakePayoutService) GetPayout(_ context.Context, _ string) (payoutdomain.Payout, error) {
	return f.payout, f.payoutErr
}

func (f *fakePayoutService) ListPeriodPayouts(_ context.Context, _ string) ([]payoutdomain.Payout, error) {
	return []payoutdomain.Payout{f.payout}, nil
}

func newTestServer(t *testing.T, svc *fakePayoutService) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	enforcer, err := authorization.NewEnforcer(testutil.OpenSQLite(t))
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})

	return NewServer(ServerParams{
		Gin:       NewEngine(observability.Config{}, nil),
		Log:       zap.NewNop(),
		PayoutSvc: svc,
		AuthzSvc:  authz,
		Renderer:  statement.New(zap.NewNop(), "sek"),
	})
}

func doRequest(s *Server, method, path, actor string, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req.Header.Set(HeaderActor, actor)
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func samplePayout() payoutdomain.Payout {
	return payoutdomain.Payout{
		ID:              42,
		ClubID:          "11111111-1111-4111-8111-111111111111",
		ClubName:        "Alpha Gym",
		Period:          time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		UnlimitedAmount: decimal.NewFromInt(550),
		UnlimitedVisits: 1,
		UnlimitedUsers: datatypes.NewJSONSlice([]payoutdomain.UnlimitedUserLine{{
			UserID:          "user-1",
			UniqueGymsCount: 1,
			PayoutPerVisit:  decimal.NewFromInt(550),
			VisitCount:      1,
			TotalPayout:     decimal.NewFromInt(550),
		}}),
		TotalAmount: decimal.NewFromInt(550),
		TotalVisits: 1,
		UniqueUsers: 1,
		Status:      payoutdomain.StatusPending,
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakePayoutService{})

	rec := doRequest(s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerateMonthlyAcceptsEmptyBody(t *testing.T) {
	svc := &fakePayoutService{generateResult: payoutdomain.GenerateResult{
		RunID:          "01J00000000000000000000000",
		Period:         "2024-05-01",
		ClubsProcessed: 2,
		TotalAmount:    decimal.NewFromInt(1260),
	}}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPost, "/api/payouts/generate-monthly", "role:finance", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "2024-05-01", got["period"])
	assert.EqualValues(t, 2, got["clubs_processed"])
	assert.Empty(t, svc.generateReq.Period)
}

func TestGenerateMonthlyPassesRequestFields(t *testing.T) {
	svc := &fakePayoutService{}
	s := newTestServer(t, svc)

	body := `{"period":"2024-05-01","club_ids":["a, b","c"],"mode":"reset"}`
	rec := doRequest(s, http.MethodPost, "/api/payouts/generate-monthly", "role:admin", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "2024-05-01", svc.generateReq.Period)
	assert.Equal(t, []string{"a", "b", "c"}, svc.generateReq.ClubIDs)
	assert.Equal(t, "reset", svc.generateReq.Mode)
}

func TestGenerateMonthlyErrors(t *testing.T) {
	cases := []struct {
		name     string
		actor    string
		body     string
		err      error
		status   int
		errType  string
		errField string
	}{
		{name: "missing actor", status: http.StatusUnauthorized, errType: "unauthorized"},
		{name: "unknown actor", actor: "user:42", status: http.StatusUnauthorized, errType: "unauthorized"},
		{name: "viewer cannot generate", actor: "role:club_viewer", status: http.StatusForbidden, errType: "forbidden"},
		{name: "malformed body", actor: "role:finance", body: `{"period":`, status: http.StatusBadRequest, errType: "validation_error", errField: "request"},
		{name: "invalid period", actor: "role:finance", err: payoutdomain.ErrInvalidPeriod, status: http.StatusBadRequest, errType: "validation_error", errField: "period"},
		{name: "invalid club id", actor: "role:finance", err: payoutdomain.ErrInvalidClubID, status: http.StatusBadRequest, errType: "validation_error", errField: "club_id"},
		{name: "invalid mode", actor: "role:finance", err: payoutdomain.ErrInvalidMode, status: http.StatusBadRequest, errType: "validation_error", errField: "mode"},
		{name: "unknown club", actor: "role:finance", err: fmt.Errorf("%w: 44444444-4444-4444-8444-444444444444", clubdomain.ErrNotFound), status: http.StatusNotFound, errType: "not_found"},
		{name: "unexpected", actor: "role:finance", err: assert.AnError, status: http.StatusInternalServerError, errType: "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, &fakePayoutService{generateErr: tc.err})

			rec := doRequest(s, http.MethodPost, "/api/payouts/generate-monthly", tc.actor, tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())

			payload := decodeError(t, rec)
			assert.Equal(t, tc.errType, payload.Type)
			if tc.errField != "" {
				require.Len(t, payload.Errors, 1)
				assert.Equal(t, tc.errField, payload.Errors[0].Field)
			}
		})
	}
}

func TestGenerateMonthlyTotalFailureReturnsResult(t *testing.T) {
	svc := &fakePayoutService{
		generateResult: payoutdomain.GenerateResult{
			Period: "2024-05-01",
			Failed: []payoutdomain.FailedClub{{ClubID: "c1", Error: "db down"}},
		},
		generateErr: payoutdomain.ErrBatchFailed,
	}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPost, "/api/payouts/generate-monthly", "role:finance", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var got struct {
		Error  errorPayload                `json:"error"`
		Result payoutdomain.GenerateResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "batch_failed", got.Error.Type)
	require.Len(t, got.Result.Failed, 1)
	assert.Equal(t, "c1", got.Result.Failed[0].ClubID)
}

func TestSendTransfers(t *testing.T) {
	svc := &fakePayoutService{sendResult: payoutdomain.TransferBatchResult{
		Period:    "2024-05-01",
		Attempted: 2,
		Succeeded: 1,
		Failed:    1,
	}}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodPost, "/api/payouts/send-transfers", "role:finance", `{"period":"2024-05-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.EqualValues(t, 2, got["transfers_attempted"])
	assert.EqualValues(t, 1, got["transfers_failed"])
}

func TestSendTransfersConflictWhenBatchRunning(t *testing.T) {
	s := newTestServer(t, &fakePayoutService{sendErr: payoutdomain.ErrBatchInProgress})

	rec := doRequest(s, http.MethodPost, "/api/payouts/send-transfers", "system", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeError(t, rec).Type)
}

func TestListClubPayouts(t *testing.T) {
	svc := &fakePayoutService{}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodGet, "/api/payouts/club/abc", "role:club_viewer", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, svc.clubLimit)
	assert.JSONEq(t, `{"club_id":"abc","payouts":[]}`, rec.Body.String())

	rec = doRequest(s, http.MethodGet, "/api/payouts/club/abc?limit=500", "role:club_viewer", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/payouts/club/abc?limit=zero", "role:club_viewer", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "limit", decodeError(t, rec).Errors[0].Field)
}

func TestUnknownClubReturnsNotFound(t *testing.T) {
	svc := &fakePayoutService{clubErr: clubdomain.ErrNotFound, sendErr: clubdomain.ErrNotFound}
	s := newTestServer(t, svc)

	rec := doRequest(s, http.MethodGet, "/api/payouts/club/44444444-4444-4444-8444-444444444444", "role:club_viewer", "")
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Equal(t, "not_found", decodeError(t, rec).Type)

	rec = doRequest(s, http.MethodPost, "/api/payouts/send-transfers", "role:finance", `{"club_ids":["44444444-4444-4444-8444-444444444444"]}`)
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestGetPayoutSummary(t *testing.T) {
	s := newTestServer(t, &fakePayoutService{})

	rec := doRequest(s, http.MethodGet, "/api/payouts/summary/2024-05-01", "role:finance", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(s, http.MethodGet, "/api/payouts/summary/2024-05-15", "role:finance", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_period", decodeError(t, rec).Errors[0].Code)
}

func TestGetPayoutNotFound(t *testing.T) {
	s := newTestServer(t, &fakePayoutService{payoutErr: payoutdomain.ErrNotFound})

	rec := doRequest(s, http.MethodGet, "/api/payouts/123", "role:finance", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestGetPayoutStatement(t *testing.T) {
	s := newTestServer(t, &fakePayoutService{payout: samplePayout()})

	rec := doRequest(s, http.MethodGet, "/api/payouts/42/statement.pdf", "role:club_viewer", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, statement.ContentTypePDF, rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "statement_alpha-gym_2024-05-01.pdf")
}

func TestGetPayoutStatementEmptyPayout(t *testing.T) {
	s := newTestServer(t, &fakePayoutService{payout: payoutdomain.Payout{ID: 7}})

	rec := doRequest(s, http.MethodGet, "/api/payouts/7/statement.pdf", "role:finance", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExportPeriodPayoutsRequiresExportPermission(t *testing.T) {
	s := newTestServer(t, &fakePayoutService{payout: samplePayout()})

	rec := doRequest(s, http.MethodGet, "/api/payouts/summary/2024-05-01/export.xlsx", "role:club_viewer", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/payouts/summary/2024-05-01/export.xlsx", "role:finance", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, statement.ContentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "payouts_2024-05-01.xlsx")
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, &fakePayoutService{})

	rec := doRequest(s, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
