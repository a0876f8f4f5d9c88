package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexar-gg/nexar-server/internal/apperr"
	"github.com/nexar-gg/nexar-server/internal/models"
)

func TestDiscountedPrice(t *testing.T) {
	assert.Equal(t, int64(3999), discountedPrice(4999, 20))
	assert.Equal(t, int64(2699), discountedPrice(2999, 10))
	assert.Equal(t, int64(4999), discountedPrice(4999, 0))
	assert.Equal(t, int64(0), discountedPrice(4999, 100))
	// 1990 * 0.85 = 1691.5, rounds away from zero.
	assert.Equal(t, int64(1692), discountedPrice(1990, 15))
}

func TestPurchaseDebitsBalanceAndGrantsGame(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "buyer")
	env.fund(t, player, 5000)

	updated, tx, err := env.wallet.PurchaseGame(ctx, player.ID, "pixel-farm")
	require.NoError(t, err)

	assert.Equal(t, int64(3501), updated.BalanceCents)
	assert.True(t, updated.OwnsGame("pixel-farm"))
	assert.Equal(t, models.TxPurchase, tx.Type)
	assert.Equal(t, int64(-1499), tx.AmountCents)
	assert.Equal(t, int64(3501), tx.BalanceAfterCents)
	assert.Equal(t, "pixel-farm", tx.ExternalRef)
	assert.Equal(t, "Purchased Pixel Farm", tx.Description)
}

func TestPurchaseAppliesSubscriberDiscount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "member")
	env.fund(t, player, 10000)
	env.subscribe(t, player, time.Now().Add(24*time.Hour))

	updated, tx, err := env.wallet.PurchaseGame(ctx, player.ID, "nova-drift")
	require.NoError(t, err)

	// 4999 with 20% off charges 3999, never 3999.2 worth of confusion.
	assert.Equal(t, int64(10000-3999), updated.BalanceCents)
	assert.Equal(t, int64(-3999), tx.AmountCents)
	assert.Contains(t, tx.Description, "20% Nexar+ discount")
}

func TestPurchaseIgnoresLapsedSubscription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "lapsed")
	env.fund(t, player, 10000)
	env.subscribe(t, player, time.Now().Add(-time.Hour))

	updated, tx, err := env.wallet.PurchaseGame(ctx, player.ID, "nova-drift")
	require.NoError(t, err)

	assert.Equal(t, int64(10000-4999), updated.BalanceCents)
	assert.NotContains(t, tx.Description, "discount")
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "broke")
	env.fund(t, player, 1000)

	_, _, err := env.wallet.PurchaseGame(ctx, player.ID, "nova-drift")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInsufficientFunds, apperr.KindOf(err))

	var funds *apperr.FundsError
	require.True(t, errors.As(err, &funds))
	assert.Equal(t, int64(1000), funds.BalanceCents)
	assert.Equal(t, int64(4999), funds.RequiredCents)

	balance, err := env.wallet.GetBalance(ctx, player.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	account, err := env.accounts.GetAccountByID(ctx, player.ID)
	require.NoError(t, err)
	assert.False(t, account.OwnsGame("nova-drift"))
}

func TestPurchaseAlreadyOwned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "owner")
	env.fund(t, player, 5000)

	_, _, err := env.wallet.PurchaseGame(ctx, player.ID, "pixel-farm")
	require.NoError(t, err)

	_, _, err = env.wallet.PurchaseGame(ctx, player.ID, "pixel-farm")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestPurchaseUnknownGame(t *testing.T) {
	env := newTestEnv(t)
	player := env.register(t, "curious")

	_, _, err := env.wallet.PurchaseGame(context.Background(), player.ID, "no-such-game")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestPurchaseBlockedByParentalControls(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "kid")
	env.fund(t, player, 5000)

	_, err := env.parental.Enable(ctx, player.ID, "4321")
	require.NoError(t, err)
	blocked := false
	_, err = env.parental.UpdateSettings(ctx, player.ID, "4321", models.ParentalSettingsPatch{
		CanMakePurchases: &blocked,
	})
	require.NoError(t, err)

	_, _, err = env.wallet.PurchaseGame(ctx, player.ID, "pixel-farm")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestAddFundsRejectsDuplicateReference(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "depositor")

	_, err := env.wallet.AddFunds(ctx, player.ID, 2000, "psp_ref_1", "")
	require.NoError(t, err)

	_, err = env.wallet.AddFunds(ctx, player.ID, 2000, "psp_ref_1", "")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	balance, err := env.wallet.GetBalance(ctx, player.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), balance)

	txs, err := env.wallet.GetTransactions(ctx, player.ID, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestAddFundsValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "validator")

	_, err := env.wallet.AddFunds(ctx, player.ID, 0, "ref", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = env.wallet.AddFunds(ctx, player.ID, -500, "ref", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = env.wallet.AddFunds(ctx, player.ID, 500, "", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestConcurrentPurchaseChargesOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "racer")
	env.fund(t, player, 1499)

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := env.wallet.PurchaseGame(ctx, player.ID, "pixel-farm")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case apperr.KindOf(err) == apperr.KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)

	balance, err := env.wallet.GetBalance(ctx, player.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	txs, err := env.wallet.GetTransactions(ctx, player.ID, 0)
	require.NoError(t, err)
	purchases := 0
	for _, tx := range txs {
		if tx.Type == models.TxPurchase {
			purchases++
		}
	}
	assert.Equal(t, 1, purchases)
}

func TestConcurrentDepositCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "racer2")

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.wallet.AddFunds(ctx, player.ID, 1000, "shared-ref", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
		} else {
			assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
		}
	}
	assert.Equal(t, 1, successes)

	balance, err := env.wallet.GetBalance(ctx, player.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)
}

func TestRefundRestoresBalanceAndRemovesGame(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "refunded")
	env.fund(t, player, 5000)

	_, tx, err := env.wallet.PurchaseGame(ctx, player.ID, "pixel-farm")
	require.NoError(t, err)

	updated, err := env.wallet.RefundPurchase(ctx, player.ID.Hex(), tx.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(5000), updated.BalanceCents)
	assert.False(t, updated.OwnsGame("pixel-farm"))

	_, err = env.wallet.RefundPurchase(ctx, player.ID.Hex(), tx.ID.Hex())
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// Every ledger row summed equals the final balance.
	txs, err := env.wallet.GetTransactions(ctx, player.ID, 0)
	require.NoError(t, err)
	var sum int64
	for _, row := range txs {
		sum += row.AmountCents
	}
	assert.Equal(t, updated.BalanceCents, sum)
}

func TestRefundRejectsNonPurchaseRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "refunder")

	_, err := env.wallet.AddFunds(ctx, player.ID, 1000, "dep-ref", "")
	require.NoError(t, err)
	txs, err := env.wallet.GetTransactions(ctx, player.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)

	_, err = env.wallet.RefundPurchase(ctx, player.ID.Hex(), txs[0].ID.Hex())
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDepositSessionFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "shopper")

	session, err := env.wallet.CreateDepositSession(ctx, player.ID, 2500)
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, player.ID.Hex(), session.Metadata["account_id"])

	// The shopper has not paid yet.
	_, err = env.wallet.ConfirmDeposit(ctx, player.ID, session.ID)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, env.provider.MarkPaid(session.ID))

	updated, err := env.wallet.ConfirmDeposit(ctx, player.ID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), updated.BalanceCents)

	// Confirming again must not double-credit.
	_, err = env.wallet.ConfirmDeposit(ctx, player.ID, session.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	balance, err := env.wallet.GetBalance(ctx, player.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), balance)
}

func TestConfirmDepositWrongAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.register(t, "sessionowner")
	thief := env.register(t, "thief")

	session, err := env.wallet.CreateDepositSession(ctx, owner.ID, 2500)
	require.NoError(t, err)
	require.NoError(t, env.provider.MarkPaid(session.ID))

	_, err = env.wallet.ConfirmDeposit(ctx, thief.ID, session.ID)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	balance, err := env.wallet.GetBalance(ctx, thief.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestCreateDepositSessionBounds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "bounds")

	_, err := env.wallet.CreateDepositSession(ctx, player.ID, 50)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = env.wallet.CreateDepositSession(ctx, player.ID, 100000)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestGetLibrary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "collector")
	env.fund(t, player, 10000)

	_, _, err := env.wallet.PurchaseGame(ctx, player.ID, "pixel-farm")
	require.NoError(t, err)
	_, _, err = env.wallet.PurchaseGame(ctx, player.ID, "starfall-arena")
	require.NoError(t, err)

	library, err := env.wallet.GetLibrary(ctx, player.ID)
	require.NoError(t, err)
	require.Len(t, library, 2)

	titles := []string{library[0].Title, library[1].Title}
	assert.Contains(t, titles, "Pixel Farm")
	assert.Contains(t, titles, "Starfall Arena")
}

func TestTransactionsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "historian")

	for i := 0; i < 3; i++ {
		_, err := env.wallet.AddFunds(ctx, player.ID, 1000, fmt.Sprintf("ref-%d", i), "")
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	txs, err := env.wallet.GetTransactions(ctx, player.ID, 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "ref-2", txs[0].ExternalRef)
	assert.Equal(t, "ref-1", txs[1].ExternalRef)
}

func TestQuotePriceTracksMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	player := env.register(t, "shopper")

	quote, err := env.wallet.QuotePrice(ctx, player.ID, "nova-drift")
	require.NoError(t, err)
	assert.Equal(t, int64(4999), quote.BasePriceCents)
	assert.Equal(t, int64(4999), quote.FinalPriceCents)
	assert.Zero(t, quote.DiscountPercent, "no membership, no discount")
	assert.False(t, quote.Owned)

	env.subscribe(t, player, time.Now().Add(24*time.Hour))

	quote, err = env.wallet.QuotePrice(ctx, player.ID, "nova-drift")
	require.NoError(t, err)
	assert.Equal(t, 20, quote.DiscountPercent)
	assert.Equal(t, int64(3999), quote.FinalPriceCents)

	env.fund(t, player, 5000)
	_, _, err = env.wallet.PurchaseGame(ctx, player.ID, "nova-drift")
	require.NoError(t, err)

	quote, err = env.wallet.QuotePrice(ctx, player.ID, "nova-drift")
	require.NoError(t, err)
	assert.True(t, quote.Owned)

	_, err = env.wallet.QuotePrice(ctx, player.ID, "missing-game")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
