package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, true)
	t.Cleanup(func() { Init(os.Stderr, false) })

	Debug("resolving", "url", "https://animes.test/ep/1")
	assert.Contains(t, buf.String(), "resolving")
	assert.Contains(t, buf.String(), "https://animes.test/ep/1")
}

func TestInitInfoLevelDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, false)
	t.Cleanup(func() { Init(os.Stderr, false) })

	Debug("hidden")
	Warn("shown", "attempt", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
