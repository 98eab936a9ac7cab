package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"spaceapiclient/internal/clock"
	"spaceapiclient/internal/spaceapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *spaceapi.MockClient, *clock.MockClock) {
	t.Helper()
	client := spaceapi.NewMockClient("https://space.example.org", false)
	clk := clock.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return New(client, zap.NewNop(), clk, 30*time.Second), client, clk
}

func TestNew_DefaultInterval(t *testing.T) {
	c := New(spaceapi.NewMockClient("", false), zap.NewNop(), clock.NewRealClock(), 0)
	assert.Equal(t, DefaultInterval, c.Interval())
}

func TestFirstRefresh(t *testing.T) {
	c, client, _ := newTestCoordinator(t)
	client.SetOpen(true)

	assert.Nil(t, c.Data())
	require.NoError(t, c.FirstRefresh(context.Background()))

	require.NotNil(t, c.Data())
	assert.True(t, c.Data().Open())
	assert.True(t, c.LastUpdateSuccess())
	assert.NoError(t, c.LastError())
}

func TestFirstRefresh_Failure(t *testing.T) {
	c, client, _ := newTestCoordinator(t)
	client.SetGetError(&spaceapi.AuthenticationError{Msg: "Invalid credentials"})

	err := c.FirstRefresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial refresh failed")
	assert.True(t, errors.Is(err, spaceapi.ErrAuthentication))
	assert.Nil(t, c.Data())
}

func TestRefresh_KeepsSnapshotOnError(t *testing.T) {
	c, client, _ := newTestCoordinator(t)
	client.SetOpen(true)
	require.NoError(t, c.FirstRefresh(context.Background()))
	first := c.Data()

	client.SetGetError(&spaceapi.CommunicationError{Msg: "Timeout error fetching information"})
	_, err := c.Refresh(context.Background())
	require.Error(t, err)

	assert.Same(t, first, c.Data())
	assert.False(t, c.LastUpdateSuccess())
	assert.True(t, errors.Is(c.LastError(), spaceapi.ErrCommunication))

	client.SetGetError(nil)
	client.SetOpen(false)
	c.RequestRefresh(context.Background())
	assert.NotSame(t, first, c.Data())
	assert.False(t, c.Data().Open())
	assert.True(t, c.LastUpdateSuccess())
}

func TestListeners(t *testing.T) {
	c, client, _ := newTestCoordinator(t)

	var a, b int
	removeA := c.AddListener(func() { a++ })
	c.AddListener(func() { b++ })

	c.RequestRefresh(context.Background())
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)

	// listeners fire on failed refreshes too
	client.SetGetError(errors.New("boom"))
	c.RequestRefresh(context.Background())
	assert.Equal(t, 2, a)
	assert.Equal(t, 2, b)

	removeA()
	c.RequestRefresh(context.Background())
	assert.Equal(t, 2, a)
	assert.Equal(t, 3, b)
}

func TestStartStop_PollsOnInterval(t *testing.T) {
	c, client, clk := newTestCoordinator(t)

	c.Start(context.Background())
	assert.Equal(t, 1, clk.PendingTimers())
	assert.Equal(t, 0, client.GetCallCount())

	clk.Advance(29 * time.Second)
	assert.Equal(t, 0, client.GetCallCount())

	clk.Advance(time.Second)
	assert.Equal(t, 1, client.GetCallCount())
	assert.Equal(t, 1, clk.PendingTimers(), "next poll scheduled")

	clk.Advance(30 * time.Second)
	assert.Equal(t, 2, client.GetCallCount())

	c.Stop()
	assert.Equal(t, 0, clk.PendingTimers())

	clk.Advance(time.Minute)
	assert.Equal(t, 2, client.GetCallCount())
}

func TestStart_Idempotent(t *testing.T) {
	c, _, clk := newTestCoordinator(t)

	c.Start(context.Background())
	c.Start(context.Background())
	assert.Equal(t, 1, clk.PendingTimers())

	c.Stop()
	c.Stop()
}

func TestStart_ContextCancelled(t *testing.T) {
	c, client, clk := newTestCoordinator(t)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	cancel()

	clk.Advance(30 * time.Second)
	assert.Equal(t, 0, client.GetCallCount())
	assert.Equal(t, 0, clk.PendingTimers())
}
