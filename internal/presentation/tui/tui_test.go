package tui_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/leadflow/internal/presentation/tui"
)

func TestRenderer(t *testing.T) {
	render := tui.NewRenderer(60)
	out, err := render("# Strategic Digital Diagnostic\n\n**Score:** 50/100")
	require.NoError(t, err)
	assert.Contains(t, out, "Strategic Digital Diagnostic")
	assert.Contains(t, out, "50/100")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf)
	assert.Contains(t, buf.String(), "|_|\\___|")
}

func TestTerminalDetection(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, tui.IsTerminal(f), "a regular file is not a terminal")
	assert.Equal(t, 80, tui.Width(f, 80))
}
