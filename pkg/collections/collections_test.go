package collections_test

import (
	"strings"
	"testing"

	"github.com/alkime/onboard/pkg/collections"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	type step struct {
		ID    string
		Order int
	}

	steps := []step{{"intro", 1}, {"profile", 2}, {"launch", 3}}

	ids := collections.Apply(steps, func(s step) string { return s.ID })
	require.Equal(t, []string{"intro", "profile", "launch"}, ids)

	upper := collections.ApplyVariadic(strings.ToUpper, "yes", "ok")
	require.Equal(t, []string{"YES", "OK"}, upper)

	assert.Empty(t, collections.Apply([]int(nil), func(i int) int { return i }))
}

func TestFilter(t *testing.T) {
	words := []string{"yes", "", "save", ""}

	got := collections.Filter(words, func(s string) bool { return s != "" })
	assert.Equal(t, []string{"yes", "save"}, got)

	assert.Nil(t, collections.Filter(words, func(string) bool { return false }))
}

func TestAppendUnique(t *testing.T) {
	keys := []string{"countries"}

	keys = collections.AppendUnique(keys, "localization", "countries", "localization")
	assert.Equal(t, []string{"countries", "localization"}, keys)

	assert.Equal(t, []int{1, 2}, collections.AppendUnique(nil, 1, 2, 1))
}
