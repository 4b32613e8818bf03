package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withoutTTY(t *testing.T) {
	t.Helper()
	prev := HasTTY
	HasTTY = false
	t.Cleanup(func() { HasTTY = prev })
}

func TestBannerBodyStyle(t *testing.T) {
	style := BannerBodyStyle()
	assert.Equal(t, bannerMaxWidth, style.GetWidth())
	assert.Equal(t, bannerForegroundColor, style.GetForeground())
}

func TestShowBannerWithoutTTY(t *testing.T) {
	withoutTTY(t)
	var buf bytes.Buffer
	ShowBanner(&buf, "Cache Report", "Hit rate: 50.00%", true)
	assert.Equal(t, "Cache Report\n\nHit rate: 50.00%\n", buf.String())
}
