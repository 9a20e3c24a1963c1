package soap

import (
	"crypto/tls"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServer_endpointAddress(t *testing.T) {
	tests := []struct {
		name     string
		behavior MetadataBehavior
		header   map[string]string
		tls      bool
		want     string
	}{
		{
			name:     "request host",
			behavior: MetadataBehavior{UseRequestHeaders: true},
			want:     "http://greeter.local:8080/soap/GreeterService.svc",
		},
		{
			name:     "tls connection",
			behavior: MetadataBehavior{UseRequestHeaders: true},
			tls:      true,
			want:     "https://greeter.local:8080/soap/GreeterService.svc",
		},
		{
			name:     "x-forwarded headers",
			behavior: MetadataBehavior{UseRequestHeaders: true},
			header: map[string]string{
				"X-Forwarded-Proto": "https, http",
				"X-Forwarded-Host":  "api.example.com, proxy.internal",
			},
			want: "https://api.example.com/soap/GreeterService.svc",
		},
		{
			name:     "forwarded header wins",
			behavior: MetadataBehavior{UseRequestHeaders: true},
			header: map[string]string{
				"Forwarded":        `for=192.0.2.60;proto=HTTPS;host="edge.example.com:8443", for=198.51.100.17`,
				"X-Forwarded-Host": "api.example.com",
			},
			want: "https://edge.example.com:8443/soap/GreeterService.svc",
		},
		{
			name:     "headers ignored when disabled",
			behavior: MetadataBehavior{},
			header: map[string]string{
				"X-Forwarded-Proto": "https",
				"X-Forwarded-Host":  "api.example.com",
			},
			want: "http://greeter.local:8080/soap/GreeterService.svc",
		},
		{
			name:     "base address",
			behavior: MetadataBehavior{BaseAddress: "https://public.example.com/"},
			want:     "https://public.example.com/soap/GreeterService.svc",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s := NewServer()
			s.Metadata = tc.behavior
			r := httptest.NewRequest("GET", "http://greeter.local:8080/soap/GreeterService.svc?wsdl", nil)
			for k, v := range tc.header {
				r.Header.Set(k, v)
			}
			if tc.tls {
				r.TLS = &tls.ConnectionState{}
			}
			assert.Equal(t, tc.want, s.endpointAddress(r))
		})
	}
}

func TestForwardedValues(t *testing.T) {
	proto, host := forwardedValues(`proto=http;host=a.example.com`)
	assert.Equal(t, "http", proto)
	assert.Equal(t, "a.example.com", host)

	proto, host = forwardedValues("")
	assert.Empty(t, proto)
	assert.Empty(t, host)

	proto, host = forwardedValues("for=10.0.0.1")
	assert.Empty(t, proto)
	assert.Empty(t, host)
}
