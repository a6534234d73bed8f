package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSetting(t *testing.T) {
	key, value, err := splitSetting("fps = 30")
	require.NoError(t, err)
	assert.Equal(t, "fps", key)
	assert.Equal(t, "30", value)

	key, value, err = splitSetting("idle_time_limit=")
	require.NoError(t, err)
	assert.Equal(t, "idle_time_limit", key)
	assert.Equal(t, "", value)

	_, _, err = splitSetting("fps")
	assert.Error(t, err)
	_, _, err = splitSetting("=3")
	assert.Error(t, err)
}
