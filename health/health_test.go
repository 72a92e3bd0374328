package health

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edequartel/BrailleServer/component"
)

func TestFromComponents(t *testing.T) {
	tests := []struct {
		name    string
		healths map[string]component.HealthStatus
		want    State
	}{
		{
			name: "all healthy",
			healths: map[string]component.HealthStatus{
				"device": {Healthy: true},
				"runner": {Healthy: true},
			},
			want: StateUp,
		},
		{
			name: "some healthy",
			healths: map[string]component.HealthStatus{
				"device": {Healthy: false, ErrorCount: 3},
				"runner": {Healthy: true},
			},
			want: StateDegraded,
		},
		{
			name: "none healthy",
			healths: map[string]component.HealthStatus{
				"device": {Healthy: false},
			},
			want: StateDown,
		},
		{
			name:    "no components",
			healths: nil,
			want:    StateDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := FromComponents(tt.healths)
			assert.Equal(t, tt.want, status.State)
			assert.Equal(t, tt.want == StateUp, status.Healthy())
			assert.Len(t, status.Components, len(tt.healths))
			assert.False(t, status.CheckedAt.IsZero())
		})
	}
}

func TestFromComponentsCopiesDetails(t *testing.T) {
	status := FromComponents(map[string]component.HealthStatus{
		"device": {Healthy: false, ErrorCount: 2, LastError: "dial refused"},
	})
	assert.Equal(t, 2, status.Components["device"].ErrorCount)
	assert.Equal(t, "dial refused", status.Components["device"].LastError)
}
