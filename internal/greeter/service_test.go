package greeter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSayHello(t *testing.T) {
	svc := NewService()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"name", "Alice", "Hello, Alice!"},
		{"empty", "", "Hello, world!"},
		{"spaces", "   ", "Hello, world!"},
		{"tabs and newlines", "\t\r\n", "Hello, world!"},
		{"no-break space", " ", "Hello, world!"},
		{"padded name is kept", "  Bob  ", "Hello,   Bob  !"},
		{"markup is not escaped", "<b>&amp;", "Hello, <b>&amp;!"},
		{"unicode", "Jürgen", "Hello, Jürgen!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.SayHello(tt.in))
		})
	}
}

func TestGetServerInfo_Fixed(t *testing.T) {
	at := time.Date(2024, 2, 29, 23, 30, 0, 0, time.FixedZone("CET", 3600))
	svc := NewService(
		WithClock(func() time.Time { return at }),
		WithHost(func() string { return "box-1" }, func() string { return "Linux 6.1.0" }),
	)

	info := svc.GetServerInfo()
	require.NotNil(t, info)
	assert.Equal(t, "box-1", info.MachineName)
	assert.Equal(t, "Linux 6.1.0", info.OsVersion)
	assert.Equal(t, time.UTC, info.UtcNow.Location())
	assert.True(t, at.Equal(info.UtcNow))
	assert.Equal(t, 22, info.UtcNow.Hour())
}

func TestGetServerInfo_Host(t *testing.T) {
	svc := NewService()

	before := time.Now().UTC()
	first := svc.GetServerInfo()
	second := svc.GetServerInfo()
	after := time.Now().UTC()

	assert.NotEmpty(t, first.MachineName)
	assert.NotEmpty(t, first.OsVersion)
	assert.Equal(t, time.UTC, first.UtcNow.Location())
	assert.False(t, first.UtcNow.Before(before))
	assert.False(t, second.UtcNow.After(after))
	assert.False(t, second.UtcNow.Before(first.UtcNow))
	assert.NotSame(t, first, second)
}

func TestMachineName(t *testing.T) {
	assert.NotEmpty(t, MachineName())
}

func TestOSVersion(t *testing.T) {
	assert.NotEmpty(t, OSVersion())
}
