package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mamadousy92i/Mobile-Money-Transfert/config"
	httpHandler "github.com/mamadousy92i/Mobile-Money-Transfert/internal/adapter/http/handler"
	redisStorage "github.com/mamadousy92i/Mobile-Money-Transfert/internal/adapter/storage/redis"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/gateway"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/service"
	"github.com/mamadousy92i/Mobile-Money-Transfert/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp wires the full application stack: real HTTP layer, middleware,
// services, and gateway simulators over in-memory Redis and transactional
// in-memory repos. The simulators run with a forced draw so every payment
// attempt succeeds unless a test dials the outcome.

type testApp struct {
	server   *httptest.Server
	redis    *miniredis.Miniredis
	txRepo   *inMemoryTransactionRepo
	wdRepo   *inMemoryWithdrawalRepo
	tokenSvc *service.JWTTokenService
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)

	txRepo := newInMemoryTransactionRepo()
	wdRepo := newInMemoryWithdrawalRepo()
	seqRepo := newInMemorySequenceRepo(100000001)
	idempotencyRepo := newInMemoryIdempotencyRepo()
	transactor := newInMemoryTransactor()

	log := logger.New("mobile-money-core", "error", false)

	channels, err := gateway.BuildChannels("XOF", map[string]config.ChannelConfig{
		"wave": {
			Name:           "Wave",
			Active:         true,
			SuccessRate:    0.85,
			DeclineCeiling: 0.95,
			MinLatency:     time.Millisecond,
			MaxLatency:     2 * time.Millisecond,
			MinAmount:      "100",
			MaxAmount:      "500000",
			PhonePattern:   `^(\+221|221)?(77|78|70|76|75)\d{7}$`,
			RefPrefix:      "WAVE",
			Fees:           config.FeeConfig{Percentage: "1.0", Fixed: "0", Min: "25", Max: "1500"},
		},
	})
	require.NoError(t, err)

	// Forced draw: every gateway call lands in the success window.
	registry := gateway.NewRegistryFromChannels(channels, log,
		gateway.WithRand(func() float64 { return 0.1 }, func(n int) int { return 0 }),
		gateway.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }),
	)

	rules, err := service.NewTransferRules(config.TransferConfig{
		Currency:     "XOF",
		MinAmount:    "100",
		MaxAmount:    "500000",
		PhonePattern: `^(\+221|221)?(77|78|70|76|75)\d{7}$`,
		CodeAttempts: 10,
		Rates:        map[string]string{"XOF/EUR": "0.00152"},
		RateMargin:   "2.0",
	})
	require.NoError(t, err)

	commission, err := domain.NewFeeSchedule("1.0", "0", "0", "5000")
	require.NoError(t, err)

	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", 24*time.Hour, "test-issuer")
	transferSvc := service.NewTransferService(
		txRepo, seqRepo, idempotencyRepo, idempotencyCache,
		registry, noIdentity{}, noNotify{}, transactor, rules, log,
	)
	withdrawalSvc := service.NewWithdrawalService(
		wdRepo, txRepo, noNotify{}, transactor, commission, 10, log,
	)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TransferSvc:   transferSvc,
		WithdrawalSvc: withdrawalSvc,
		Registry:      registry,
		TokenSvc:      tokenSvc,
		Logger:        log,
	})

	return &testApp{
		server:   httptest.NewServer(router),
		redis:    mr,
		txRepo:   txRepo,
		wdRepo:   wdRepo,
		tokenSvc: tokenSvc,
	}
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
}

func doJSON(t *testing.T, method, url string, body interface{}, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)
	return resp, env
}

func submitBody(phone string) map[string]interface{} {
	return map[string]interface{}{
		"sender_ref":      "user-42",
		"recipient_phone": phone,
		"amount":          "10000",
		"currency":        "XOF",
		"channel":         "WAVE",
	}
}

type txPayload struct {
	Code           string `json:"code"`
	Num            int64  `json:"num"`
	Status         string `json:"status"`
	GatewayRef     string `json:"gateway_ref"`
	AmountReceived struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"amount_received"`
	Fees struct {
		Amount string `json:"amount"`
	} `json:"fees"`
}

func TestSubmitAndFetchTransfer(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, env := doJSON(t, http.MethodPost, app.server.URL+"/api/v1/transfers", submitBody("+221771234567"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "error: %s %s", env.ErrorCode, env.Message)

	var tx txPayload
	require.NoError(t, json.Unmarshal(env.Data, &tx))
	assert.Equal(t, "SENT", tx.Status)
	assert.Equal(t, int64(100000001), tx.Num)
	assert.Equal(t, "100.00", tx.Fees.Amount)
	assert.Equal(t, "9900.00", tx.AmountReceived.Amount)
	assert.Contains(t, tx.GatewayRef, "WAVE_")

	// Fetch it back through the API
	resp, env = doJSON(t, http.MethodGet, app.server.URL+"/api/v1/transfers/"+tx.Code, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched txPayload
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, tx.Code, fetched.Code)
}

func TestIdempotentReplayThroughAPI(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	headers := map[string]string{"X-Idempotency-Key": "retry-key-1"}

	resp, env := doJSON(t, http.MethodPost, app.server.URL+"/api/v1/transfers", submitBody("+221771234567"), headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var first txPayload
	require.NoError(t, json.Unmarshal(env.Data, &first))

	// Same key replays the original transaction, no second row is created.
	resp, env = doJSON(t, http.MethodPost, app.server.URL+"/api/v1/transfers", submitBody("+221771234567"), headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var second txPayload
	require.NoError(t, json.Unmarshal(env.Data, &second))

	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Num, second.Num)

	_, total, err := app.txRepo.List(context.Background(), listAll())
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestChannelsEndpoint(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, env := doJSON(t, http.MethodGet, app.server.URL+"/api/v1/channels", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var channels []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &channels))
	require.Len(t, channels, 1)
	assert.Equal(t, "WAVE", channels[0]["kind"])
	assert.Equal(t, true, channels[0]["active"])
}

func TestWithdrawalLifecycleThroughAPI(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	// Money has to arrive before it can be cashed out.
	resp, env := doJSON(t, http.MethodPost, app.server.URL+"/api/v1/transfers", submitBody("+221771234567"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var tx txPayload
	require.NoError(t, json.Unmarshal(env.Data, &tx))
	require.Equal(t, "SENT", tx.Status)

	token, _, err := app.tokenSvc.Generate("agent-7")
	require.NoError(t, err)
	auth := map[string]string{"Authorization": "Bearer " + token}

	// Create
	resp, env = doJSON(t, http.MethodPost, app.server.URL+"/api/v1/withdrawals", map[string]interface{}{
		"transaction_code": tx.Code,
		"beneficiary_ref":  "user-9",
	}, auth)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "error: %s %s", env.ErrorCode, env.Message)

	var wd struct {
		Code   string `json:"code"`
		Status string `json:"status"`
		Amount struct {
			Amount string `json:"amount"`
		} `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &wd))
	assert.Equal(t, "PENDING", wd.Status)
	assert.Equal(t, "9900.00", wd.Amount.Amount)

	// Accept
	resp, env = doJSON(t, http.MethodPost, app.server.URL+"/api/v1/withdrawals/"+wd.Code+"/accept", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Finalize
	resp, env = doJSON(t, http.MethodPost, app.server.URL+"/api/v1/withdrawals/"+wd.Code+"/finalize", map[string]interface{}{
		"id_document_checked": true,
		"sms_code_checked":    true,
		"notes":               "CNI verified",
	}, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode, "error: %s %s", env.ErrorCode, env.Message)

	// The linked transaction advanced to DONE in the same commit.
	resp, env = doJSON(t, http.MethodGet, app.server.URL+"/api/v1/transfers/"+tx.Code, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var done txPayload
	require.NoError(t, json.Unmarshal(env.Data, &done))
	assert.Equal(t, "DONE", done.Status)
}

func TestWithdrawalRequiresAgentToken(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, env := doJSON(t, http.MethodPost, app.server.URL+"/api/v1/withdrawals", map[string]interface{}{
		"beneficiary_ref": "user-9",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "AUTH_001", env.ErrorCode)
}

func TestWithdrawalCancelKeepsTransactionCashOutEligible(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, env := doJSON(t, http.MethodPost, app.server.URL+"/api/v1/transfers", submitBody("+221771234567"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var tx txPayload
	require.NoError(t, json.Unmarshal(env.Data, &tx))

	token, _, err := app.tokenSvc.Generate("agent-7")
	require.NoError(t, err)
	auth := map[string]string{"Authorization": "Bearer " + token}

	createBody := map[string]interface{}{
		"transaction_code": tx.Code,
		"beneficiary_ref":  "user-9",
	}

	resp, env = doJSON(t, http.MethodPost, app.server.URL+"/api/v1/withdrawals", createBody, auth)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var wd struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &wd))

	resp, _ = doJSON(t, http.MethodPost, app.server.URL+"/api/v1/withdrawals/"+wd.Code+"/cancel", map[string]interface{}{
		"reason": "beneficiary unreachable",
	}, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The source transaction is untouched and a new cash-out can start.
	resp, env = doJSON(t, http.MethodGet, app.server.URL+"/api/v1/transfers/"+tx.Code, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var after txPayload
	require.NoError(t, json.Unmarshal(env.Data, &after))
	assert.Equal(t, "SENT", after.Status)

	resp, env = doJSON(t, http.MethodPost, app.server.URL+"/api/v1/withdrawals", createBody, auth)
	assert.Equal(t, http.StatusCreated, resp.StatusCode, "error: %s %s", env.ErrorCode, env.Message)
}

func TestFinalizeAtomicity_InjectedFailure(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, env := doJSON(t, http.MethodPost, app.server.URL+"/api/v1/transfers", submitBody("+221771234567"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var tx txPayload
	require.NoError(t, json.Unmarshal(env.Data, &tx))

	token, _, err := app.tokenSvc.Generate("agent-7")
	require.NoError(t, err)
	auth := map[string]string{"Authorization": "Bearer " + token}

	resp, env = doJSON(t, http.MethodPost, app.server.URL+"/api/v1/withdrawals", map[string]interface{}{
		"transaction_code": tx.Code,
		"beneficiary_ref":  "user-9",
	}, auth)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var wd struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &wd))

	resp, _ = doJSON(t, http.MethodPost, app.server.URL+"/api/v1/withdrawals/"+wd.Code+"/accept", nil, auth)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Break the linked-transaction update mid-finalize.
	app.txRepo.mu.Lock()
	app.txRepo.failUpdateStatus = true
	app.txRepo.mu.Unlock()

	resp, env = doJSON(t, http.MethodPost, app.server.URL+"/api/v1/withdrawals/"+wd.Code+"/finalize", map[string]interface{}{
		"id_document_checked": true,
		"sms_code_checked":    true,
	}, auth)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "SYS_001", env.ErrorCode)

	// Neither side of the finalize was applied.
	wdAfter, err := app.wdRepo.GetByCode(context.Background(), wd.Code)
	require.NoError(t, err)
	require.NotNil(t, wdAfter)
	assert.Equal(t, domain.WithdrawalAccepted, wdAfter.Status)

	txAfter, err := app.txRepo.GetByCode(context.Background(), tx.Code)
	require.NoError(t, err)
	require.NotNil(t, txAfter)
	assert.Equal(t, domain.TransactionSent, txAfter.Status)
}

func listAll() ports.TransactionListParams {
	return ports.TransactionListParams{Page: 1, PageSize: 100}
}
