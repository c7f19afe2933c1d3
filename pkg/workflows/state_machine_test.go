package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateMachine(t *testing.T) {
	sm := NewStateMachine(map[string][]string{
		"pending":    {"processing"},
		"processing": {"completed", "failed"},
	})

	assert.True(t, sm.CanTransition("pending", "processing"))
	assert.True(t, sm.CanTransition("processing", "failed"))
	assert.False(t, sm.CanTransition("pending", "completed"))
	assert.False(t, sm.CanTransition("completed", "processing"), "terminal states have no exits")
	assert.False(t, sm.CanTransition("unknown", "processing"))

	assert.Equal(t, []string{"completed", "failed"}, sm.AllowedFrom("processing"))
	assert.Empty(t, sm.AllowedFrom("completed"))
}
