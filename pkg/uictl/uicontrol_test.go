package uictl_test

import (
	"testing"

	"github.com/alkime/onboard/pkg/uictl"
	"github.com/stretchr/testify/assert"
)

func TestLevelsFunc(t *testing.T) {
	calls := 0
	var levels uictl.Levels[int16] = uictl.LevelsFunc[int16](func() []int16 {
		calls++
		return []int16{1, -2, 3}
	})

	assert.Equal(t, []int16{1, -2, 3}, levels.Read())
	assert.Equal(t, 1, calls)
}
