package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHealthy(t *testing.T) {
	status := NewHealthy("registry", "collectors registered")

	assert.Equal(t, "registry", status.Component)
	assert.True(t, status.Healthy)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "collectors registered", status.Message)
	assert.False(t, status.Timestamp.IsZero())
	assert.True(t, status.IsHealthy())
	assert.False(t, status.IsDegraded())
	assert.False(t, status.IsUnhealthy())
}

func TestNewDegraded(t *testing.T) {
	status := NewDegraded("sampler", "procfs unavailable")

	assert.False(t, status.Healthy)
	assert.True(t, status.IsDegraded())
	assert.False(t, status.IsHealthy())
}

func TestNewUnhealthy(t *testing.T) {
	status := NewUnhealthy("server", "listener closed")

	assert.False(t, status.Healthy)
	assert.True(t, status.IsUnhealthy())
}

func TestAggregate_CopiesSubStatuses(t *testing.T) {
	subs := []Status{NewHealthy("registry", "ok")}
	agg := Aggregate("service", subs)

	subs[0] = NewUnhealthy("registry", "down")

	require.Len(t, agg.SubStatuses, 1)
	assert.Equal(t, "healthy", agg.SubStatuses[0].Status)
}

func TestAggregate_AllHealthy(t *testing.T) {
	agg := Aggregate("service", []Status{
		NewHealthy("registry", "ok"),
		NewHealthy("sampler", "ok"),
	})

	assert.True(t, agg.IsHealthy())
	assert.Len(t, agg.SubStatuses, 2)
}

func TestAggregate_UnhealthyDominates(t *testing.T) {
	agg := Aggregate("service", []Status{
		NewHealthy("registry", "ok"),
		NewDegraded("sampler", "slow"),
		NewUnhealthy("server", "down"),
	})

	assert.True(t, agg.IsUnhealthy())
}

func TestAggregate_DegradedWithoutUnhealthy(t *testing.T) {
	agg := Aggregate("service", []Status{
		NewHealthy("registry", "ok"),
		NewDegraded("sampler", "slow"),
	})

	assert.True(t, agg.IsDegraded())
}

func TestAggregate_Empty(t *testing.T) {
	agg := Aggregate("service", nil)

	assert.True(t, agg.IsHealthy())
	assert.Empty(t, agg.SubStatuses)
}

func TestSanitizeMessage(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"url", "dial https://internal.example.com/admin failed", "dial [URL] failed"},
		{"unix path", "open /etc/pulse/config.json failed", "open [PATH] failed"},
		{"ip and port", "connect 192.168.1.100:8080 refused", "connect [IP][PORT] refused"},
		{"credential", "auth failed password=hunter2", "auth failed [REDACTED]"},
		{"plain", "gather failed", "gather failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sanitizeMessage(tc.in))
		})
	}
}
