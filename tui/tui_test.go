package tui

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasTTY(t *testing.T) {
	assert.Contains(t, []bool{true, false}, HasTTY)
}

func TestBytes(t *testing.T) {
	assert.Equal(t, "512 B", Bytes(512))
	assert.Equal(t, "1.00 KB", Bytes(1024))
	assert.Equal(t, "1.50 MB", Bytes(3<<19))
	assert.Equal(t, "2.00 GB", Bytes(2<<30))
}

func TestMaxWidth(t *testing.T) {
	assert.Equal(t, "short", MaxWidth("short", 10))
	assert.Equal(t, "query:o...", MaxWidth("query:orders:abc", 10))
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, []string{"Key", "Hits"}, [][]string{{"user:1", "3"}})
	out := buf.String()
	assert.Contains(t, out, "Key")
	assert.Contains(t, out, "user:1")
	assert.Contains(t, out, "3")
}

func TestMessages(t *testing.T) {
	var buf bytes.Buffer
	ShowSuccess(&buf, "cleared %d entries", 4)
	ShowWarning(&buf, "nothing to do")
	ShowError(&buf, "failed: %s", "boom")
	out := buf.String()
	assert.Contains(t, out, "cleared 4 entries")
	assert.Contains(t, out, "nothing to do")
	assert.Contains(t, out, "failed: boom")
}

func TestAskWithoutTTY(t *testing.T) {
	withoutTTY(t)
	ok, err := Ask("Clear?", true)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = Ask("Clear?", false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShowSpinnerWithoutTTY(t *testing.T) {
	withoutTTY(t)
	ran := false
	require.NoError(t, ShowSpinner(context.Background(), "warming", func() { ran = true }))
	assert.True(t, ran)
	ClearScreen()
}

func TestStatus(t *testing.T) {
	for _, s := range []string{"ok", "warning", "error"} {
		assert.Contains(t, Status(s), s)
	}
}
