package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// status serves one request and returns only the status code. Safe to call
// from worker goroutines.
func (a *walletAPI) status(method, target string, body []byte, headers map[string]string) int {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w.Code
}

// TestConcurrentTransfers_NeverOverdraw fires more transfers than the
// balance covers. Exactly the affordable ones succeed and the total stays
// conserved.
func TestConcurrentTransfers_NeverOverdraw(t *testing.T) {
	api := newWalletAPI(t)
	alice := api.signIn("alice@example.com")
	bob := api.signIn("bob@example.com")
	require.Equal(t, http.StatusOK, api.confirm(api.deposit(alice, 5000), 5000).Code)

	const workers = 20
	body := []byte(`{"wallet_number":"` + bob.walletNumber + `","amount":500}`)

	var wg sync.WaitGroup
	var ok, insufficient atomic.Int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch api.status(http.MethodPost, "/wallet/transfer", body, alice.headers()) {
			case http.StatusOK:
				ok.Add(1)
			case http.StatusPaymentRequired:
				insufficient.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), ok.Load())
	assert.Equal(t, int64(10), insufficient.Load())
	assert.Equal(t, int64(0), api.balance(alice.headers()))
	assert.Equal(t, int64(5000), api.balance(bob.headers()))
}

// TestConcurrentTransfers_SameIdempotencyKey retries one transfer in
// parallel. Only one debit may land.
func TestConcurrentTransfers_SameIdempotencyKey(t *testing.T) {
	api := newWalletAPI(t)
	alice := api.signIn("alice@example.com")
	bob := api.signIn("bob@example.com")
	require.Equal(t, http.StatusOK, api.confirm(api.deposit(alice, 5000), 5000).Code)

	headers := alice.headers()
	headers[HeaderIdempotencyKey] = "pay-bob-once"
	body := []byte(`{"wallet_number":"` + bob.walletNumber + `","amount":700}`)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			api.status(http.MethodPost, "/wallet/transfer", body, headers)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(4300), api.balance(alice.headers()))
	assert.Equal(t, int64(700), api.balance(bob.headers()))
}

// TestConcurrentWebhookDeliveries replays one signed callback many times
// at once. The deposit is credited a single time.
func TestConcurrentWebhookDeliveries(t *testing.T) {
	api := newWalletAPI(t)
	alice := api.signIn("alice@example.com")
	ref := api.deposit(alice, 5000)

	payload := chargePayload(ref, "success", 5000)
	headers := map[string]string{HeaderGatewaySignature: api.sigSvc.Sign(e2eGatewaySecret, payload)}

	var wg sync.WaitGroup
	codes := make([]int, 25)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = api.status(http.MethodPost, "/wallet/paystack/webhook", payload, headers)
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "delivery "+strconv.Itoa(i))
	}
	assert.Equal(t, int64(5000), api.balance(alice.headers()))
}
