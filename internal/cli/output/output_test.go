package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTest(mode OutputMode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestMode(t *testing.T) {
	tests := map[string]OutputMode{
		"":         ModeAuto,
		"auto":     ModeAuto,
		"TEXT":     ModeText,
		"markdown": ModeMarkdown,
		"md":       ModeMarkdown,
		"json":     ModeJSON,
		"yaml":     ModeAuto,
	}
	for in, want := range tests {
		assert.Equal(t, want, Mode(in), in)
	}
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		mode  OutputMode
		isTTY bool
		want  OutputMode
	}{
		{ModeAuto, true, ModeText},
		{ModeAuto, false, ModeMarkdown},
		{ModeJSON, true, ModeJSON},
		{ModeText, false, ModeText},
		{ModeMarkdown, true, ModeMarkdown},
	}
	for _, tt := range tests {
		r, _, _ := newTest(tt.mode, tt.isTTY)
		assert.Equal(t, tt.want, r.EffectiveMode(), "%s tty=%v", tt.mode, tt.isTTY)
	}
}

func TestNewRenderer_BufferIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestHeader(t *testing.T) {
	r, out, _ := newTest(ModeMarkdown, false)
	r.Header(2, "Lineage")
	assert.Equal(t, "## Lineage\n\n", out.String())

	r, out, _ = newTest(ModeText, false)
	r.Header(1, "Lineage")
	assert.Equal(t, "Lineage\n\n", out.String())
}

func TestTable(t *testing.T) {
	rows := [][]string{{"Table", "sales.customers"}, {"Column", "sales.customers.customer_id"}}

	t.Run("markdown", func(t *testing.T) {
		r, out, _ := newTest(ModeMarkdown, false)
		r.Table([]string{"Kind", "Key"}, rows)
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 4)
		assert.Contains(t, strings.ToLower(lines[0]), "| kind")
		assert.Contains(t, lines[3], "sales.customers.customer_id")
	})

	t.Run("text", func(t *testing.T) {
		r, out, _ := newTest(ModeText, false)
		r.Table([]string{"Kind", "Key"}, rows)
		assert.Contains(t, out.String(), "sales.customers")
		assert.Contains(t, out.String(), "┌")
	})
}

func TestMessagesAndJSON(t *testing.T) {
	r, out, errOut := newTest(ModeJSON, false)

	r.Success("done")
	r.Warning("careful")
	r.Error("broken")
	require.NoError(t, r.JSON(map[string]int{"nodes": 3}))

	assert.Contains(t, out.String(), "✓ done")
	assert.Contains(t, out.String(), "\"nodes\": 3")
	assert.Contains(t, errOut.String(), "! careful")
	assert.Contains(t, errOut.String(), "✗ broken")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Title", FormatHeader(3, "Title"))
	assert.Equal(t, "- **Nodes**: 10", FormatKeyValue("Nodes", "10"))
}
