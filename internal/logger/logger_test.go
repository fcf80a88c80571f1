package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTagsModule(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Output: &buf}).With("Combat")

	l.Info("Enemy detected at %d,%d", 10, 20)

	out := buf.String()
	assert.Contains(t, out, "module=Combat")
	assert.Contains(t, out, "Enemy detected at 10,20")
}

func TestDebugSuppressedUnlessEnabled(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf}).Debug("hidden")
	assert.Empty(t, buf.String())

	buf.Reset()
	New(Options{Output: &buf, Debug: true}).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Output: &buf, Format: "json"}).With("Loot").Error("template missing: %s", "loot/gold_coin.png")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec))
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "Loot", rec["module"])
	assert.Equal(t, "template missing: loot/gold_coin.png", rec["msg"])
}
