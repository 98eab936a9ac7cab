package entity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"spaceapiclient/internal/clock"
	"spaceapiclient/internal/coordinator"
	"spaceapiclient/internal/shadowstate"
	"spaceapiclient/internal/spaceapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type switchFixture struct {
	client *spaceapi.MockClient
	coord  *coordinator.Coordinator
	clock  *clock.MockClock
	sw     *Switch
}

func newSwitchFixture(t *testing.T, open bool) *switchFixture {
	t.Helper()

	client := spaceapi.NewMockClient("https://space.example.org", true)
	client.SetOpen(open)

	clk := clock.NewMockClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	coord := coordinator.New(client, zap.NewNop(), clk, time.Minute)
	require.NoError(t, coord.FirstRefresh(context.Background()))

	sw := NewSwitch("entry1", client.HostURL(), coord, client, zap.NewNop(), clk)
	require.NoError(t, sw.Start())
	t.Cleanup(sw.Stop)

	return &switchFixture{client: client, coord: coord, clock: clk, sw: sw}
}

// startTurnOn runs TurnOn in the background and waits until the write is in flight
func (f *switchFixture) startTurnOn(t *testing.T) <-chan error {
	t.Helper()

	f.client.HoldWrites()
	done := make(chan error, 1)
	go func() {
		done <- f.sw.TurnOn(context.Background())
	}()

	require.Eventually(t, func() bool {
		return f.client.SetCallCount() == 1
	}, time.Second, 5*time.Millisecond)
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("toggle did not complete")
		return nil
	}
}

func TestSwitch_Identity(t *testing.T) {
	f := newSwitchFixture(t, false)

	assert.Equal(t, "entry1", f.sw.UniqueID())
	assert.Equal(t, "Space Status", f.sw.Name())
	assert.Equal(t, "mdi:door-open", f.sw.Icon())
	assert.Equal(t, Attribution, f.sw.Attribution())
	assert.Equal(t, "switch", f.sw.PlatformName())
	assert.False(t, f.sw.AssumedState())

	info := f.sw.DeviceInfo()
	assert.Equal(t, "entry1", info.Identifier)
	assert.Equal(t, "Mock Space", info.Name)
	assert.Equal(t, "SpaceAPI", info.Manufacturer)
	assert.Equal(t, "SpaceAPI v15", info.Model)
}

func TestSwitch_IsOnFollowsSnapshot(t *testing.T) {
	f := newSwitchFixture(t, true)
	assert.True(t, f.sw.IsOn())

	f.client.SetOpen(false)
	f.coord.RequestRefresh(context.Background())
	assert.False(t, f.sw.IsOn())
}

func TestSwitch_IsOnWithoutSnapshot(t *testing.T) {
	client := spaceapi.NewMockClient("https://space.example.org", true)
	clk := clock.NewMockClock(time.Now())
	coord := coordinator.New(client, zap.NewNop(), clk, time.Minute)

	sw := NewSwitch("entry1", client.HostURL(), coord, client, zap.NewNop(), clk)
	assert.False(t, sw.IsOn())
}

func TestSwitch_TurnOnSuccess(t *testing.T) {
	f := newSwitchFixture(t, false)

	err := f.sw.TurnOn(context.Background())
	require.NoError(t, err)

	assert.True(t, f.sw.IsOn())
	assert.False(t, f.sw.IsSwitching())

	calls := f.client.GetSetCalls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Open)

	assert.Equal(t, []time.Duration{DefaultSettleDelay}, f.clock.Sleeps())
	// first refresh plus the post-settle refresh
	assert.Equal(t, 2, f.client.GetCallCount())
}

func TestSwitch_TurnOffSuccess(t *testing.T) {
	f := newSwitchFixture(t, true)

	require.NoError(t, f.sw.TurnOff(context.Background()))

	assert.False(t, f.sw.IsOn())
	calls := f.client.GetSetCalls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Open)
}

func TestSwitch_OptimisticThenServerValue(t *testing.T) {
	f := newSwitchFixture(t, false)
	// server accepts the write but does not change its state
	f.client.SetApplyWrites(false)

	done := f.startTurnOn(t)

	assert.True(t, f.sw.IsOn(), "optimistic value shown while write is in flight")
	assert.True(t, f.sw.IsSwitching())

	f.client.ReleaseWrite()
	require.NoError(t, waitDone(t, done))

	assert.False(t, f.sw.IsOn(), "server value wins after settle and refresh")
	assert.False(t, f.sw.IsSwitching())
}

func TestSwitch_SecondRequestWhileSwitchingIsDropped(t *testing.T) {
	f := newSwitchFixture(t, false)

	done := f.startTurnOn(t)

	err := f.sw.TurnOn(context.Background())
	assert.NoError(t, err)
	err = f.sw.TurnOff(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, 1, f.client.SetCallCount())

	f.client.ReleaseWrite()
	require.NoError(t, waitDone(t, done))

	assert.Equal(t, 1, f.client.SetCallCount())

	state := f.sw.ShadowState()
	var ignored int
	for _, rec := range state.Outputs.History {
		if rec.ActionType == shadowstate.ActionIgnored {
			ignored++
			assert.Equal(t, shadowstate.OutcomeSkipped, rec.Outcome)
		}
	}
	assert.Equal(t, 2, ignored)
}

func TestSwitch_AcceptsRequestAfterCompletion(t *testing.T) {
	f := newSwitchFixture(t, false)

	require.NoError(t, f.sw.TurnOn(context.Background()))
	require.NoError(t, f.sw.TurnOff(context.Background()))

	assert.Equal(t, 2, f.client.SetCallCount())
	assert.False(t, f.sw.IsOn())
}

func TestSwitch_FailedWriteReverts(t *testing.T) {
	f := newSwitchFixture(t, false)

	cause := &spaceapi.CommunicationError{Msg: "Error communicating with API: connection reset"}
	f.client.SetSetError(cause)

	err := f.sw.TurnOn(context.Background())
	require.Error(t, err)

	var toggleErr *ToggleError
	require.True(t, errors.As(err, &toggleErr))
	assert.True(t, toggleErr.Open)
	assert.Contains(t, err.Error(), "Failed to turn on space")
	assert.True(t, errors.Is(err, spaceapi.ErrCommunication))
	assert.True(t, errors.Is(err, spaceapi.ErrClient))

	assert.False(t, f.sw.IsOn(), "reverts to pre-toggle snapshot")
	assert.False(t, f.sw.IsSwitching())
	assert.Empty(t, f.clock.Sleeps(), "no settle delay on failure")
	assert.Equal(t, 2, f.client.GetCallCount(), "refresh is requested on failure")

	state := f.sw.ShadowState()
	require.NotNil(t, state.Outputs.LastAction)
	assert.Equal(t, shadowstate.OutcomeFailed, state.Outputs.LastAction.Outcome)
	assert.Nil(t, state.Outputs.Optimistic)
}

func TestSwitch_FailedWriteThenRetry(t *testing.T) {
	f := newSwitchFixture(t, false)

	f.client.SetSetError(&spaceapi.CommunicationError{Msg: "boom"})
	require.Error(t, f.sw.TurnOn(context.Background()))

	f.client.SetSetError(nil)
	require.NoError(t, f.sw.TurnOn(context.Background()))
	assert.True(t, f.sw.IsOn())
}

func TestSwitch_UpdateHandlerFires(t *testing.T) {
	client := spaceapi.NewMockClient("https://space.example.org", true)
	clk := clock.NewMockClock(time.Now())
	coord := coordinator.New(client, zap.NewNop(), clk, time.Minute)
	require.NoError(t, coord.FirstRefresh(context.Background()))

	sw := NewSwitch("entry1", client.HostURL(), coord, client, zap.NewNop(), clk)
	var updates atomic.Int32
	sw.SetUpdateHandler(func() { updates.Add(1) })
	require.NoError(t, sw.Start())

	require.NoError(t, sw.TurnOn(context.Background()))
	// optimistic set, optimistic cleared, refresh notification
	assert.GreaterOrEqual(t, updates.Load(), int32(3))

	sw.Stop()
	before := updates.Load()
	coord.RequestRefresh(context.Background())
	assert.Equal(t, before, updates.Load(), "no updates after Stop")
}

func TestSwitch_ContextCancelledWhileInFlight(t *testing.T) {
	f := newSwitchFixture(t, false)
	f.client.HoldWrites()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.sw.TurnOn(ctx)
	}()
	require.Eventually(t, func() bool {
		return f.client.SetCallCount() == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	err := waitDone(t, done)
	require.Error(t, err)
	assert.True(t, errors.Is(err, spaceapi.ErrClient))
	assert.False(t, f.sw.IsSwitching())
	assert.False(t, f.sw.IsOn())
}

func TestToggleError_Message(t *testing.T) {
	err := &ToggleError{Open: false, Err: errors.New("boom")}
	assert.Equal(t, "Failed to turn off space: boom", err.Error())
	assert.Equal(t, "boom", errors.Unwrap(err).Error())
}
