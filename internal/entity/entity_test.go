package entity

import (
	"context"
	"testing"
	"time"

	"spaceapiclient/internal/clock"
	"spaceapiclient/internal/coordinator"
	"spaceapiclient/internal/spaceapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustSnapshot(t *testing.T, body string) *spaceapi.Snapshot {
	t.Helper()
	snap, err := spaceapi.ParseSnapshot([]byte(body), time.Now())
	require.NoError(t, err)
	return snap
}

func TestDeviceName(t *testing.T) {
	tests := []struct {
		name    string
		hostURL string
		body    string
		want    string
	}{
		{
			name:    "space name from snapshot",
			hostURL: "https://space.example.org",
			body:    `{"space":"Hackspace Example","state":{"open":true}}`,
			want:    "Hackspace Example",
		},
		{
			name:    "missing space field",
			hostURL: "https://space.example.org",
			body:    `{"state":{"open":true}}`,
			want:    "SpaceAPI (https://space.example.org)",
		},
		{
			name:    "blank space field",
			hostURL: "https://space.example.org",
			body:    `{"space":"   "}`,
			want:    "SpaceAPI (https://space.example.org)",
		},
		{
			name:    "non-string space field",
			hostURL: "https://space.example.org",
			body:    `{"space":42}`,
			want:    "SpaceAPI (https://space.example.org)",
		},
		{
			name:    "no snapshot and no host",
			hostURL: "",
			want:    "SpaceAPI (Unknown)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var snap *spaceapi.Snapshot
			if tt.body != "" {
				snap = mustSnapshot(t, tt.body)
			}
			assert.Equal(t, tt.want, DeviceName(tt.hostURL, snap))
		})
	}
}

func TestNewDeviceInfo(t *testing.T) {
	info := NewDeviceInfo("abc", "http://localhost:8080", nil)

	assert.Equal(t, DeviceInfo{
		Identifier:       "abc",
		Name:             "SpaceAPI (http://localhost:8080)",
		Manufacturer:     "SpaceAPI",
		Model:            "SpaceAPI v15",
		ConfigurationURL: "http://localhost:8080",
	}, info)
}

func TestBinarySensor(t *testing.T) {
	client := spaceapi.NewMockClient("https://space.example.org", false)
	clk := clock.NewMockClock(time.Now())
	coord := coordinator.New(client, zap.NewNop(), clk, time.Minute)

	sensor := NewBinarySensor("entry1", client.HostURL(), coord, zap.NewNop())
	assert.Equal(t, "entry1_space_status", sensor.UniqueID())
	assert.Equal(t, "binary_sensor", sensor.PlatformName())
	assert.False(t, sensor.IsOn(), "false before any snapshot")

	updates := 0
	sensor.SetUpdateHandler(func() { updates++ })
	require.NoError(t, sensor.Start())

	client.SetOpen(true)
	require.NoError(t, coord.FirstRefresh(context.Background()))
	assert.True(t, sensor.IsOn())
	assert.Equal(t, 1, updates)

	client.SetOpen(false)
	coord.RequestRefresh(context.Background())
	assert.False(t, sensor.IsOn())
	assert.Equal(t, 2, updates)

	sensor.Stop()
	client.SetOpen(true)
	coord.RequestRefresh(context.Background())
	assert.Equal(t, 2, updates)
}

func TestBinarySensor_KeepsLastSnapshotOnError(t *testing.T) {
	client := spaceapi.NewMockClient("https://space.example.org", false)
	client.SetOpen(true)
	coord := coordinator.New(client, zap.NewNop(), clock.NewMockClock(time.Now()), time.Minute)
	require.NoError(t, coord.FirstRefresh(context.Background()))

	sensor := NewBinarySensor("entry1", client.HostURL(), coord, zap.NewNop())

	client.SetGetError(&spaceapi.CommunicationError{Msg: "down"})
	coord.RequestRefresh(context.Background())

	assert.True(t, sensor.IsOn())
	assert.False(t, coord.LastUpdateSuccess())
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		name   string
		def    bool
		states []Tristate
		want   bool
	}{
		{"nothing known", false, nil, false},
		{"default true", true, []Tristate{UnknownState()}, true},
		{"confirmed", false, []Tristate{UnknownState(), ConfirmedState(true)}, true},
		{"optimistic overrides confirmed", false, []Tristate{ConfirmedState(false), OptimisticState(true)}, true},
		{"optimistic false overrides confirmed true", true, []Tristate{OptimisticState(false), ConfirmedState(true)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Display(tt.def, tt.states...))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, "optimistic", Optimistic.String())
	assert.Equal(t, "confirmed", Confirmed.String())
}
