package app_test

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrentReservationsShareOneCode fires several reservations that all
// carry the same code. The code authorizes exactly one of them.
func TestConcurrentReservationsShareOneCode(t *testing.T) {
	ta := newTestApp(t, "memory")
	alice := ta.signUp(t, "alice")
	bob := ta.signUp(t, "bob")
	admin := ta.admin(t)
	code := ta.otp(t, alice)

	const workers = 10
	var (
		wg           sync.WaitGroup
		ok, rejected atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, env := ta.call(t, http.MethodPost, "/api/v1/transfers/pending", alice.token,
				transferBody(bob.walletID, 30, fmt.Sprintf("hold %d", i), code))
			switch {
			case status == http.StatusCreated:
				ok.Add(1)
			case status == http.StatusUnauthorized && env.ErrorCode == "AUTH_001":
				rejected.Add(1)
			default:
				t.Errorf("unexpected status %d (%s)", status, env.ErrorCode)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(workers-1), rejected.Load())
	assert.True(t, ta.balance(t, alice).Equal(decimal.NewFromInt(70)))
	ta.requireBalanced(t, admin)
}

// TestConcurrentTransfersToOneWallet has several senders pay the same
// recipient at once, each with its own code.
func TestConcurrentTransfersToOneWallet(t *testing.T) {
	ta := newTestApp(t, "redis")
	carol := ta.signUp(t, "carol")
	admin := ta.admin(t)

	const senders = 5
	accounts := make([]account, senders)
	codes := make([]string, senders)
	for i := range accounts {
		accounts[i] = ta.signUp(t, fmt.Sprintf("sender%d", i))
		codes[i] = ta.otp(t, accounts[i])
	}

	var wg sync.WaitGroup
	for i := range accounts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status, env := ta.call(t, http.MethodPost, "/api/v1/transfers", accounts[i].token,
				transferBody(carol.walletID, 25, "split bill", codes[i]))
			assert.Equal(t, http.StatusCreated, status, env.ErrorCode)
		}(i)
	}
	wg.Wait()

	require.True(t, ta.balance(t, carol).Equal(decimal.NewFromInt(100+senders*25)))
	for _, acc := range accounts {
		assert.True(t, ta.balance(t, acc).Equal(decimal.NewFromInt(75)))
	}
	ta.requireBalanced(t, admin)
}
