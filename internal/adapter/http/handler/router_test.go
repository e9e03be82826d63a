package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"custodial-wallet/config"
	"custodial-wallet/internal/adapter/gateway/paystack"
	"custodial-wallet/internal/adapter/identity/google"
	"custodial-wallet/internal/adapter/storage/memory"
	redisStorage "custodial-wallet/internal/adapter/storage/redis"
	"custodial-wallet/internal/core/ports"
	"custodial-wallet/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const e2eGatewaySecret = "sk_test_gateway"

// walletAPI drives the full router over the in-memory store with Redis
// backed by miniredis.
type walletAPI struct {
	t      *testing.T
	router *gin.Engine
	store  *memory.Store
	sigSvc *service.HMACSignatureService
}

func newWalletAPI(t *testing.T) *walletAPI {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := zerolog.Nop()
	store := memory.New()
	identity := config.IdentityConfig{AllowInsecureMock: true}
	gatewayCfg := config.GatewayConfig{SecretKey: e2eGatewaySecret, AllowStub: true, Timeout: time.Second}
	sigSvc := service.NewHMACSignatureService()

	authSvc := service.NewAuthService(
		store.Users(), store.Wallets(), store,
		service.NewJWTTokenService("e2e-jwt-secret", time.Hour, "custodial-wallet"),
		google.NewVerifier(identity, nil), identity, 10, log,
	)
	keySvc := service.NewAPIKeyService(store.APIKeys(), store.Users(), service.NewBlake2bKeyHasher(), store, 5, log)
	ledgerSvc := service.NewLedgerService(
		store.Wallets(), store.Transactions(), store.Idempotency(),
		redisStorage.NewIdempotencyCache(client),
		paystack.NewClient(gatewayCfg, nil, log),
		store, 10, 5, log,
	)
	reconcileSvc := service.NewReconciliationService(
		store.Transactions(), store.Wallets(), store.GatewayEvents(),
		sigSvc, store, e2eGatewaySecret, false, 10, log,
	)

	router := SetupRouter(RouterDeps{
		AuthSvc:        authSvc,
		KeySvc:         keySvc,
		LedgerSvc:      ledgerSvc,
		HistorySvc:     service.NewHistoryService(store.Transactions()),
		ReconcileSvc:   reconcileSvc,
		RateLimitStore: redisStorage.NewRateLimitStore(client),
		HealthCheckers: []ports.HealthChecker{store, redisStorage.NewHealthCheck(client)},
		AuditSvc:       service.NewAuditService(store.Audit(), log),
		Logger:         log,
	})

	return &walletAPI{t: t, router: router, store: store, sigSvc: sigSvc}
}

type apiResult struct {
	Code int
	Body map[string]interface{}
}

func (r apiResult) data() map[string]interface{} {
	data, _ := r.Body["data"].(map[string]interface{})
	return data
}

func (r apiResult) errorCode() string {
	code, _ := r.Body["error_code"].(string)
	return code
}

func (a *walletAPI) do(method, target string, body any, headers map[string]string) apiResult {
	a.t.Helper()

	var raw []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		raw = b
	default:
		var err error
		raw, err = json.Marshal(b)
		require.NoError(a.t, err)
	}

	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	res := apiResult{Code: w.Code}
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &res.Body), "body: %s", w.Body.String())
	return res
}

type signedInUser struct {
	token        string
	walletNumber string
}

func (u signedInUser) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + u.token}
}

func (a *walletAPI) signIn(email string) signedInUser {
	a.t.Helper()
	res := a.do(http.MethodGet, "/auth/google/callback?email="+url.QueryEscape(email), nil, nil)
	require.Equal(a.t, http.StatusOK, res.Code, "sign in: %v", res.Body)

	data := res.data()
	wallet := data["wallet"].(map[string]interface{})
	return signedInUser{
		token:        data["token"].(string),
		walletNumber: wallet["wallet_number"].(string),
	}
}

func (a *walletAPI) balance(headers map[string]string) int64 {
	a.t.Helper()
	res := a.do(http.MethodGet, "/wallet/balance", nil, headers)
	require.Equal(a.t, http.StatusOK, res.Code, "balance: %v", res.Body)
	return int64(res.data()["balance"].(float64))
}

func (a *walletAPI) deposit(u signedInUser, amount int64) string {
	a.t.Helper()
	res := a.do(http.MethodPost, "/wallet/deposit", map[string]int64{"amount": amount}, u.headers())
	require.Equal(a.t, http.StatusCreated, res.Code, "deposit: %v", res.Body)
	return res.data()["reference"].(string)
}

func (a *walletAPI) webhook(payload []byte, signature string) apiResult {
	a.t.Helper()
	return a.do(http.MethodPost, "/wallet/paystack/webhook", payload,
		map[string]string{HeaderGatewaySignature: signature})
}

func (a *walletAPI) confirm(reference string, amount int64) apiResult {
	a.t.Helper()
	payload := chargePayload(reference, "success", amount)
	return a.webhook(payload, a.sigSvc.Sign(e2eGatewaySecret, payload))
}

func chargePayload(reference, status string, amount int64) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"charge.success","data":{"reference":%q,"status":%q,"amount":%d}}`,
		reference, status, amount))
}

func TestE2E_DepositTransferFlow(t *testing.T) {
	api := newWalletAPI(t)
	alice := api.signIn("alice@example.com")
	bob := api.signIn("bob@example.com")

	ref := api.deposit(alice, 5000)
	status := api.do(http.MethodGet, "/wallet/deposit/"+ref+"/status", nil, alice.headers())
	require.Equal(t, http.StatusOK, status.Code)
	assert.Equal(t, "pending", status.data()["status"])
	assert.Equal(t, int64(0), api.balance(alice.headers()))

	res := api.confirm(ref, 5000)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.Body["status"])
	assert.Equal(t, int64(5000), api.balance(alice.headers()))

	status = api.do(http.MethodGet, "/wallet/deposit/"+ref+"/status", nil, alice.headers())
	assert.Equal(t, "success", status.data()["status"])

	// Bob cannot see Alice's deposit.
	res = api.do(http.MethodGet, "/wallet/deposit/"+ref+"/status", nil, bob.headers())
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "AUTH_009", res.errorCode())

	res = api.do(http.MethodPost, "/wallet/transfer",
		map[string]interface{}{"wallet_number": bob.walletNumber, "amount": 2000}, alice.headers())
	require.Equal(t, http.StatusOK, res.Code, "transfer: %v", res.Body)
	assert.Equal(t, "success", res.data()["status"])
	assert.Equal(t, int64(3000), api.balance(alice.headers()))
	assert.Equal(t, int64(2000), api.balance(bob.headers()))

	res = api.do(http.MethodPost, "/wallet/transfer",
		map[string]interface{}{"wallet_number": bob.walletNumber, "amount": 10000}, alice.headers())
	assert.Equal(t, http.StatusPaymentRequired, res.Code)
	assert.Equal(t, "BIZ_001", res.errorCode())
	assert.Equal(t, int64(3000), api.balance(alice.headers()))
	assert.Equal(t, int64(2000), api.balance(bob.headers()))

	res = api.do(http.MethodPost, "/wallet/transfer",
		map[string]interface{}{"wallet_number": alice.walletNumber, "amount": 1}, alice.headers())
	assert.Equal(t, "BIZ_002", res.errorCode())

	history := api.do(http.MethodGet, "/wallet/transactions", nil, alice.headers())
	require.Equal(t, http.StatusOK, history.Code)
	items := history.data()["items"].([]interface{})
	require.Len(t, items, 2)
	newest := items[0].(map[string]interface{})
	assert.Equal(t, "transfer", newest["type"])
	assert.Equal(t, "debit", newest["direction"])

	bobHistory := api.do(http.MethodGet, "/wallet/transactions?type=transfer", nil, bob.headers())
	bobItems := bobHistory.data()["items"].([]interface{})
	require.Len(t, bobItems, 1)
	assert.Equal(t, "credit", bobItems[0].(map[string]interface{})["direction"])
}

func TestE2E_WebhookReplayCreditsOnce(t *testing.T) {
	api := newWalletAPI(t)
	alice := api.signIn("alice@example.com")
	ref := api.deposit(alice, 5000)

	first := api.confirm(ref, 5000)
	require.Equal(t, http.StatusOK, first.Code)
	_, hasMessage := first.Body["message"]
	assert.False(t, hasMessage)

	replay := api.confirm(ref, 5000)
	require.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "Already processed", replay.Body["message"])

	assert.Equal(t, int64(5000), api.balance(alice.headers()))
}

func TestE2E_WebhookRejectsBadSignature(t *testing.T) {
	api := newWalletAPI(t)
	alice := api.signIn("alice@example.com")
	ref := api.deposit(alice, 5000)

	payload := chargePayload(ref, "success", 5000)
	res := api.webhook(payload, api.sigSvc.Sign("sk_wrong", payload))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "SEC_001", res.errorCode())

	res = api.webhook(payload, "")
	assert.Equal(t, "SEC_001", res.errorCode())

	assert.Equal(t, int64(0), api.balance(alice.headers()))
	status := api.do(http.MethodGet, "/wallet/deposit/"+ref+"/status", nil, alice.headers())
	assert.Equal(t, "pending", status.data()["status"])
}

func TestE2E_FailedChargeLeavesBalance(t *testing.T) {
	api := newWalletAPI(t)
	alice := api.signIn("alice@example.com")
	ref := api.deposit(alice, 5000)

	payload := chargePayload(ref, "failed", 5000)
	res := api.webhook(payload, api.sigSvc.Sign(e2eGatewaySecret, payload))
	require.Equal(t, http.StatusOK, res.Code)

	assert.Equal(t, int64(0), api.balance(alice.headers()))
	status := api.do(http.MethodGet, "/wallet/deposit/"+ref+"/status", nil, alice.headers())
	assert.Equal(t, "failed", status.data()["status"])
}

func TestE2E_IdempotentTransferReplay(t *testing.T) {
	api := newWalletAPI(t)
	alice := api.signIn("alice@example.com")
	bob := api.signIn("bob@example.com")
	require.Equal(t, http.StatusOK, api.confirm(api.deposit(alice, 5000), 5000).Code)

	headers := alice.headers()
	headers[HeaderIdempotencyKey] = "retry-1"
	body := map[string]interface{}{"wallet_number": bob.walletNumber, "amount": 1500}

	first := api.do(http.MethodPost, "/wallet/transfer", body, headers)
	require.Equal(t, http.StatusOK, first.Code, "transfer: %v", first.Body)
	second := api.do(http.MethodPost, "/wallet/transfer", body, headers)
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, first.data()["reference"], second.data()["reference"])
	assert.Equal(t, int64(3500), api.balance(alice.headers()))
	assert.Equal(t, int64(1500), api.balance(bob.headers()))

	headers[HeaderIdempotencyKey] = "bad key!"
	res := api.do(http.MethodPost, "/wallet/transfer", body, headers)
	assert.Equal(t, "VAL_001", res.errorCode())
}

func TestE2E_APIKeyLifecycle(t *testing.T) {
	api := newWalletAPI(t)
	alice := api.signIn("alice@example.com")
	bob := api.signIn("bob@example.com")
	require.Equal(t, http.StatusOK, api.confirm(api.deposit(alice, 5000), 5000).Code)

	create := func(name string, perms []string, expiry string) apiResult {
		return api.do(http.MethodPost, "/keys/create",
			map[string]interface{}{"name": name, "permissions": perms, "expiry": expiry}, alice.headers())
	}

	res := create("reader", []string{"read"}, "1D")
	require.Equal(t, http.StatusCreated, res.Code, "create: %v", res.Body)
	readKey := map[string]string{"x-api-key": res.data()["api_key"].(string)}

	// A read-only key can read but not move money.
	assert.Equal(t, int64(5000), api.balance(readKey))
	res = api.do(http.MethodPost, "/wallet/transfer",
		map[string]interface{}{"wallet_number": bob.walletNumber, "amount": 100}, readKey)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "AUTH_006", res.errorCode())

	// Keys cannot manage keys.
	res = api.do(http.MethodGet, "/keys", nil, readKey)
	assert.Equal(t, "AUTH_007", res.errorCode())

	res = create("mover", []string{"transfer", "admin"}, "1H")
	require.Equal(t, http.StatusCreated, res.Code)
	assert.Equal(t, []interface{}{"transfer"}, res.data()["permissions"])
	moveKey := map[string]string{"x-api-key": res.data()["api_key"].(string)}
	res = api.do(http.MethodPost, "/wallet/transfer",
		map[string]interface{}{"wallet_number": bob.walletNumber, "amount": 100}, moveKey)
	require.Equal(t, http.StatusOK, res.Code, "transfer: %v", res.Body)
	assert.Equal(t, int64(100), api.balance(bob.headers()))

	res = create("bad", []string{"read"}, "2W")
	assert.Equal(t, "VAL_003", res.errorCode())
	res = create("bad", []string{"admin"}, "1D")
	assert.Equal(t, "VAL_004", res.errorCode())

	for i := 0; i < 3; i++ {
		res = create(fmt.Sprintf("extra-%d", i), []string{"read"}, "1Y")
		require.Equal(t, http.StatusCreated, res.Code)
	}
	res = create("sixth", []string{"read"}, "1Y")
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "BIZ_003", res.errorCode())

	list := api.do(http.MethodGet, "/keys", nil, alice.headers())
	require.Equal(t, http.StatusOK, list.Code)

	// Rolling over a live key is refused.
	res = api.do(http.MethodPost, "/keys/rollover",
		map[string]string{"expired_key_id": firstKeyID(t, list), "expiry": "1M"}, alice.headers())
	assert.Equal(t, "BIZ_004", res.errorCode())

	res = api.do(http.MethodPost, "/keys/revoke", map[string]string{"api_key": readKey["x-api-key"]}, alice.headers())
	require.Equal(t, http.StatusOK, res.Code, "revoke: %v", res.Body)
	res = api.do(http.MethodGet, "/wallet/balance", nil, readKey)
	assert.Equal(t, "AUTH_005", res.errorCode())

	// The freed slot is usable again.
	res = create("sixth", []string{"read"}, "1Y")
	assert.Equal(t, http.StatusCreated, res.Code)
}

func firstKeyID(t *testing.T, list apiResult) string {
	t.Helper()
	var items []interface{}
	switch data := list.Body["data"].(type) {
	case []interface{}:
		items = data
	case map[string]interface{}:
		items, _ = data["items"].([]interface{})
	}
	require.NotEmpty(t, items)
	return items[0].(map[string]interface{})["id"].(string)
}

func TestE2E_AuthRequired(t *testing.T) {
	api := newWalletAPI(t)

	res := api.do(http.MethodGet, "/wallet/balance", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "AUTH_001", res.errorCode())

	res = api.do(http.MethodGet, "/wallet/balance", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, "AUTH_002", res.errorCode())

	res = api.do(http.MethodGet, "/wallet/balance", nil, map[string]string{"x-api-key": "sk_live_unknown"})
	assert.Equal(t, "AUTH_003", res.errorCode())

	res = api.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.Code)
}
