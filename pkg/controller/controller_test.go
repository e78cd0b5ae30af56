package controller_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vault-solver/pkg/chain"
	"vault-solver/pkg/chain/chaintest"
	"vault-solver/pkg/controller"
	"vault-solver/pkg/selector"
	"vault-solver/pkg/solver"
	"vault-solver/pkg/txstatus"
	"vault-solver/pkg/types"
)

var (
	owner     = common.HexToAddress("0x0000000000000000000000000000000000000001")
	usdc      = common.HexToAddress("0x0000000000000000000000000000000000000010")
	usdcVault = common.HexToAddress("0x0000000000000000000000000000000000000020")
)

type pendingTimer struct{}

func (pendingTimer) Stop() bool { return true }

// manualClock holds cool-down resets until fire is called
type manualClock struct {
	mu    sync.Mutex
	queue []func()
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) txstatus.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, f)
	return pendingTimer{}
}

func (c *manualClock) fire() {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.mu.Unlock()
	for _, f := range queue {
		f()
	}
}

type harness struct {
	reader  *chaintest.Reader
	writer  *chaintest.Writer
	session *chaintest.Session
	clock   *manualClock
	ctrl    *controller.Controller

	refreshed chan []types.AssetRef
}

func newHarness(t *testing.T, allowance int64) *harness {
	t.Helper()

	h := &harness{
		reader:    chaintest.NewReader(),
		writer:    chaintest.NewWriter(),
		session:   &chaintest.Session{Address: owner, Connected: true},
		clock:     &manualClock{},
		refreshed: make(chan []types.AssetRef, 1),
	}
	h.reader.On(usdcVault, "previewDeposit", func(_ context.Context, call chain.Call) ([]interface{}, error) {
		return []interface{}{new(big.Int).Set(call.Args[0].(*big.Int))}, nil
	})
	h.setAllowance(allowance)

	sel := selector.New(selector.Config{}, solver.Deps{Reader: h.reader, Writer: h.writer})
	h.ctrl = controller.New(sel, h.session,
		controller.WithStatusOptions(txstatus.WithAfterFunc(h.clock.AfterFunc)),
		controller.WithRefresher(controller.RefreshFunc(func(_ context.Context, refs []types.AssetRef) {
			h.refreshed <- refs
		})))
	return h
}

func (h *harness) setAllowance(amount int64) {
	h.reader.ReturnsBig(usdc, "allowance", amount)
}

func request(amount int64) types.SolverRequest {
	return types.SolverRequest{
		Input:     types.Asset{Address: usdc, ChainID: 1, Decimals: 6},
		Output:    types.Asset{Address: usdcVault, ChainID: 1, Decimals: 6},
		Amount:    big.NewInt(amount),
		Direction: types.Deposit,
		Version:   types.VersionV3,
	}
}

func TestDisabledWithoutSession(t *testing.T) {
	h := newHarness(t, 1_000_000)
	h.session.Connected = false
	ctx := context.Background()

	h.ctrl.SetIntent(ctx, request(100), nil)
	assert.Equal(t, controller.Disabled, h.ctrl.State())

	_, err := h.ctrl.Press(ctx)
	assert.ErrorIs(t, err, controller.ErrNotReady)
	assert.Empty(t, h.writer.Calls())
}

func TestDisabledConditions(t *testing.T) {
	ctx := context.Background()

	t.Run("no intent", func(t *testing.T) {
		h := newHarness(t, 0)
		assert.Equal(t, controller.Disabled, h.ctrl.State())
	})

	t.Run("zero amount", func(t *testing.T) {
		h := newHarness(t, 0)
		h.ctrl.SetIntent(ctx, request(0), nil)
		assert.Equal(t, controller.Disabled, h.ctrl.State())
	})

	t.Run("above max", func(t *testing.T) {
		h := newHarness(t, 1_000_000)
		h.ctrl.SetIntent(ctx, request(101), big.NewInt(100))
		assert.Equal(t, controller.Disabled, h.ctrl.State())

		h.ctrl.SetIntent(ctx, request(100), big.NewInt(100))
		assert.Equal(t, controller.ReadyToExecute, h.ctrl.State())
	})

	t.Run("quote unavailable", func(t *testing.T) {
		h := newHarness(t, 1_000_000)
		h.reader.Fails(usdcVault, "previewDeposit", errors.New("rpc down"))
		assert.Nil(t, h.ctrl.SetIntent(ctx, request(100), nil))
		assert.Equal(t, controller.Disabled, h.ctrl.State())
	})
}

func TestSetIntentUsesSessionAccount(t *testing.T) {
	h := newHarness(t, 0)
	h.ctrl.SetIntent(context.Background(), request(100), nil)

	req, ok := h.ctrl.Request()
	require.True(t, ok)
	assert.Equal(t, owner, req.Owner)
	assert.Equal(t, owner, h.ctrl.Allowance().Key.Owner)
	assert.Equal(t, solver.Direct, h.ctrl.Active().Kind())
}

func TestApprovalBeforeExecution(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	var seen []controller.State
	h.writer.OnWrite(func(call chain.Call) {
		seen = append(seen, h.ctrl.State())
		if call.Method == "approve" {
			h.setAllowance(1_000_000)
		}
	})

	q := h.ctrl.SetIntent(ctx, request(500), nil)
	require.NotNil(t, q)
	require.Equal(t, controller.NeedsApproval, h.ctrl.State())

	done, err := h.ctrl.Press(ctx)
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, txstatus.Success, h.ctrl.ApprovalStatus().State())
	assert.Equal(t, controller.ReadyToExecute, h.ctrl.State())
	assert.Equal(t, 2, h.reader.Count(usdc, "allowance"))

	done, err = h.ctrl.Press(ctx)
	require.NoError(t, err)
	require.True(t, done)

	assert.Equal(t, []string{"approve", "deposit"}, h.writer.Methods())
	assert.Equal(t, []controller.State{controller.NeedsApproval, controller.Executing}, seen)
}

func TestSuccessResetsAmount(t *testing.T) {
	h := newHarness(t, 1_000_000)
	ctx := context.Background()

	h.ctrl.SetIntent(ctx, request(500), nil)
	require.Equal(t, controller.ReadyToExecute, h.ctrl.State())

	done, err := h.ctrl.Press(ctx)
	require.NoError(t, err)
	require.True(t, done)

	assert.Equal(t, 0, h.ctrl.Amount().Sign())
	assert.Equal(t, controller.Disabled, h.ctrl.State())

	select {
	case refs := <-h.refreshed:
		assert.Equal(t, []types.AssetRef{
			{Address: usdc, ChainID: 1},
			{Address: usdcVault, ChainID: 1},
		}, refs)
	case <-time.After(time.Second):
		t.Fatal("balances were not refreshed")
	}

	// the spent allowance is read again for the next intent
	h.ctrl.SetIntent(ctx, request(10), nil)
	assert.Equal(t, 2, h.reader.Count(usdc, "allowance"))
}

func TestFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, 1_000_000)
	h.writer.Revert()
	ctx := context.Background()

	h.ctrl.SetIntent(ctx, request(500), nil)
	done, err := h.ctrl.Press(ctx)
	require.NoError(t, err)
	assert.False(t, done)

	assert.Equal(t, txstatus.Error, h.ctrl.ActionStatus().State())
	assert.Equal(t, int64(500), h.ctrl.Amount().Int64())

	h.clock.fire()
	assert.Equal(t, txstatus.Idle, h.ctrl.ActionStatus().State())
	assert.Equal(t, controller.ReadyToExecute, h.ctrl.State())
	assert.Len(t, h.writer.Calls(), 1)
}

func TestPressWhileSubmitting(t *testing.T) {
	h := newHarness(t, 1_000_000)
	ctx := context.Background()
	h.ctrl.SetIntent(ctx, request(500), nil)

	entered := make(chan struct{})
	release := make(chan struct{})
	h.writer.OnWrite(func(chain.Call) {
		close(entered)
		<-release
	})

	result := make(chan error, 1)
	go func() {
		_, err := h.ctrl.Press(ctx)
		result <- err
	}()
	<-entered

	assert.Equal(t, controller.Executing, h.ctrl.State())
	_, err := h.ctrl.Press(ctx)
	assert.ErrorIs(t, err, controller.ErrBusy)

	close(release)
	require.NoError(t, <-result)
	assert.Len(t, h.writer.Calls(), 1)
}

func TestWaitJoinsBalanceRefresh(t *testing.T) {
	reader := chaintest.NewReader()
	reader.ReturnsBig(usdcVault, "previewDeposit", 500)
	reader.ReturnsBig(usdc, "allowance", 1_000_000)
	sel := selector.New(selector.Config{}, solver.Deps{Reader: reader, Writer: chaintest.NewWriter()})

	release := make(chan struct{})
	finished := false
	ctrl := controller.New(sel, &chaintest.Session{Address: owner, Connected: true},
		controller.WithRefresher(controller.RefreshFunc(func(context.Context, []types.AssetRef) {
			<-release
			finished = true
		})))

	ctx := context.Background()
	ctrl.SetIntent(ctx, request(500), nil)
	done, err := ctrl.Press(ctx)
	require.NoError(t, err)
	require.True(t, done)

	waited := make(chan struct{})
	go func() {
		ctrl.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned before the refresh finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return")
	}
	assert.True(t, finished)
}
