package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	require.NotNil(t, clk)

	before := time.Now().Add(-time.Second)
	got := clk.Now()
	assert.Equal(t, time.UTC, got.Location())
	assert.WithinRange(t, got, before, time.Now().Add(time.Second))
}
