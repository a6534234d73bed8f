package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWritesPrefixedEntries(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "tcast.log")
	defer log.SetOutput(os.Stderr)

	Config(dest, "TEST: ")
	log.Printf("rendered %d frames", 3)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(content), "TEST: ")
	assert.Contains(t, string(content), "rendered 3 frames")
}

func TestSetVerbose(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	SetVerbose(true)
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	SetVerbose(false)
	assert.Equal(t, log.InfoLevel, log.GetLevel())
}
