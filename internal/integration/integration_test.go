package integration

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"spaceapiclient/internal/clock"
	"spaceapiclient/internal/config"
	"spaceapiclient/internal/spaceapi"
	"spaceapiclient/pkg/plugin"
	"spaceapiclient/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testOptions(clk clock.Clock) Options {
	return Options{
		EntryID:      "entry1",
		PollInterval: time.Minute,
		Clock:        clk,
	}
}

func TestSetupWithClient_ReadOnlyEndpoint(t *testing.T) {
	client := spaceapi.NewMockClient("https://space.example.org", false)
	client.SetOpen(true)
	clk := clock.NewMockClock(time.Now())

	integ, err := SetupWithClient(context.Background(), client, testOptions(clk), zap.NewNop())
	require.NoError(t, err)
	defer integ.Unload()

	assert.Equal(t, []string{PlatformBinarySensor}, integ.PlatformNames())
	require.NotNil(t, integ.BinarySensor())
	assert.Nil(t, integ.Switch())
	assert.True(t, integ.BinarySensor().IsOn())
	assert.Equal(t, "entry1_space_status", integ.BinarySensor().UniqueID())
	assert.Equal(t, 1, client.GetCallCount(), "first refresh")
	assert.Equal(t, 1, clk.PendingTimers(), "polling scheduled")
}

func TestSetupWithClient_WithAPIKey(t *testing.T) {
	client := spaceapi.NewMockClient("https://space.example.org", true)
	clk := clock.NewMockClock(time.Now())

	integ, err := SetupWithClient(context.Background(), client, testOptions(clk), zap.NewNop())
	require.NoError(t, err)
	defer integ.Unload()

	assert.Equal(t, []string{PlatformBinarySensor, PlatformSwitch}, integ.PlatformNames())
	sw := integ.Switch()
	require.NotNil(t, sw)
	assert.Equal(t, "entry1", sw.UniqueID())

	require.NoError(t, sw.TurnOn(context.Background()))
	assert.True(t, integ.BinarySensor().IsOn(), "sensor sees the refreshed snapshot")

	state, ok := integ.Tracker.GetEntityState(PlatformSwitch)
	require.True(t, ok)
	assert.Equal(t, "space_status_switch", state.GetMetadata().EntityName)
}

func TestSetupWithClient_ReadOnlyModeSkipsSwitch(t *testing.T) {
	client := spaceapi.NewMockClient("https://space.example.org", true)
	opts := testOptions(clock.NewMockClock(time.Now()))
	opts.ReadOnly = true

	integ, err := SetupWithClient(context.Background(), client, opts, zap.NewNop())
	require.NoError(t, err)
	defer integ.Unload()

	assert.Nil(t, integ.Switch())
	assert.Equal(t, []string{PlatformBinarySensor}, integ.PlatformNames())
}

func TestSetupWithClient_FirstRefreshFails(t *testing.T) {
	client := spaceapi.NewMockClient("https://space.example.org", false)
	client.SetGetError(&spaceapi.CommunicationError{Msg: "Error fetching information - 503 Service Unavailable"})
	clk := clock.NewMockClock(time.Now())

	integ, err := SetupWithClient(context.Background(), client, testOptions(clk), zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, integ)
	assert.True(t, errors.Is(err, spaceapi.ErrCommunication))
	assert.Equal(t, 0, clk.PendingTimers(), "polling not started")
}

func TestSetupWithClient_PlatformError(t *testing.T) {
	registry := DefaultRegistry(zap.NewNop())
	require.NoError(t, registry.Register(plugin.PlatformInfo{
		Name:     PlatformSwitch,
		Priority: plugin.PriorityOverride,
		Factory: func(ctx *plugin.Context) (plugin.Platform, error) {
			return nil, errors.New("broken")
		},
	}))

	opts := testOptions(clock.NewMockClock(time.Now()))
	opts.Registry = registry

	_, err := SetupWithClient(context.Background(), spaceapi.NewMockClient("https://space.example.org", true), opts, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create platform switch")
}

func TestIntegration_PollingAndUnload(t *testing.T) {
	client := spaceapi.NewMockClient("https://space.example.org", false)
	clk := clock.NewMockClock(time.Now())

	integ, err := SetupWithClient(context.Background(), client, testOptions(clk), zap.NewNop())
	require.NoError(t, err)

	client.SetOpen(true)
	clk.Advance(time.Minute)
	assert.Equal(t, 2, client.GetCallCount())
	assert.True(t, integ.BinarySensor().IsOn())

	integ.Unload()
	assert.Equal(t, 0, clk.PendingTimers())
	clk.Advance(time.Hour)
	assert.Equal(t, 2, client.GetCallCount())
}

func TestIntegration_DeviceInfo(t *testing.T) {
	client := spaceapi.NewMockClient("https://space.example.org", false)
	client.SetSpaceName("")

	integ, err := SetupWithClient(context.Background(), client, testOptions(clock.NewMockClock(time.Now())), zap.NewNop())
	require.NoError(t, err)
	defer integ.Unload()

	info := integ.DeviceInfo()
	assert.Equal(t, "SpaceAPI (https://space.example.org)", info.Name)
	assert.Equal(t, "entry1", info.Identifier)
}

func TestSetup_FromConfig(t *testing.T) {
	server := testutil.NewMockSpaceServer()
	defer server.Close()
	server.SetOpen(true)
	server.RequireAPIKey("secret")

	cfg := config.Default()
	cfg.HostURL = server.URL()
	cfg.APIKey = "secret"

	integ, err := Setup(context.Background(), cfg, server.Client(), zap.NewNop())
	require.NoError(t, err)
	defer integ.Unload()

	assert.Equal(t, OptionsFromConfig(cfg).EntryID, integ.EntryID)
	assert.True(t, integ.BinarySensor().IsOn())
	assert.Equal(t, "Test Hackerspace", integ.DeviceInfo().Name)

	require.NotNil(t, integ.Switch())
	require.NoError(t, integ.Switch().TurnOff(context.Background()))
	assert.False(t, server.IsOpen())
	assert.False(t, integ.BinarySensor().IsOn())
	assert.Equal(t, 1, server.CountRequests(http.MethodPost, testutil.PathState))
}

func TestSetup_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.HostURL = "not a url"

	_, err := Setup(context.Background(), cfg, http.DefaultClient, zap.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, spaceapi.ErrConfig))
}
