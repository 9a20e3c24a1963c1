package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/foomo/soapgreeter/internal/greeter"
	"github.com/foomo/soapgreeter/pkg/soap"
)

func newGreeterEndpoint(t *testing.T) string {
	t.Helper()
	soapSrv := soap.NewServer()
	soapSrv.Logger = zaptest.NewLogger(t)
	svc := greeter.NewService(
		greeter.WithHost(func() string { return "build-host" }, func() string { return "Linux 6.8.0" }),
		greeter.WithClock(func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }),
	)
	require.NoError(t, greeter.Register(soapSrv, greeter.DefaultPath, svc))
	ts := httptest.NewServer(soapSrv)
	t.Cleanup(ts.Close)
	return ts.URL + greeter.DefaultPath
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(), append([]string{"greeter-service"}, args...))
	return out.String(), err
}

func TestSayHello(t *testing.T) {
	url := newGreeterEndpoint(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"named", []string{"say-hello", "--url", url, "Alice"}, "Hello, Alice!\n"},
		{"no name", []string{"say-hello", "--url", url}, "Hello, world!\n"},
		{"root flags", []string{"--log-level", "debug", "say-hello", "--url", url, "Bob"}, "Hello, Bob!\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := runApp(t, tc.args...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestSayHello_URLFromEnv(t *testing.T) {
	t.Setenv("GREETER_URL", newGreeterEndpoint(t))

	out, err := runApp(t, "say-hello", "Carol")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Carol!\n", out)
}

func TestServerInfo(t *testing.T) {
	url := newGreeterEndpoint(t)

	out, err := runApp(t, "server-info", "--url", url)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"MachineName: build-host",
		"OsVersion:   Linux 6.8.0",
		"UtcNow:      2024-05-01T12:30:00Z",
	}, strings.Split(strings.TrimSpace(out), "\n"))
}

func TestSayHello_UnreachableEndpoint(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL + greeter.DefaultPath
	ts.Close()

	out, err := runApp(t, "say-hello", "--url", url, "Alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), greeter.OperationSayHello)
	assert.Empty(t, out)
}
