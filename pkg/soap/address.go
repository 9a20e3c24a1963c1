package soap

import (
	"net/http"
	"strings"
)

// forwardedValues returns proto and host of the first element of an
// RFC 7239 Forwarded header.
func forwardedValues(header string) (proto, host string) {
	if header == "" {
		return "", ""
	}
	first := strings.SplitN(header, ",", 2)[0]
	for _, pair := range strings.Split(first, ";") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 {
			continue
		}
		value := strings.Trim(strings.TrimSpace(kv[1]), "\"")
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "proto":
			proto = strings.ToLower(value)
		case "host":
			host = value
		}
	}
	return proto, host
}

func firstHeaderValue(r *http.Request, key string) string {
	return strings.TrimSpace(strings.SplitN(r.Header.Get(key), ",", 2)[0])
}

// requestScheme and requestHost resolve what the caller used to reach us.
// With useHeaders, forwarding headers set by reverse proxies win over the
// connection itself.
func requestScheme(r *http.Request, useHeaders bool) string {
	if useHeaders {
		if proto, _ := forwardedValues(r.Header.Get("Forwarded")); proto != "" {
			return proto
		}
		if proto := firstHeaderValue(r, "X-Forwarded-Proto"); proto != "" {
			return strings.ToLower(proto)
		}
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func requestHost(r *http.Request, useHeaders bool) string {
	if useHeaders {
		if _, host := forwardedValues(r.Header.Get("Forwarded")); host != "" {
			return host
		}
		if host := firstHeaderValue(r, "X-Forwarded-Host"); host != "" {
			return host
		}
	}
	return r.Host
}

func isSecureRequest(r *http.Request, useHeaders bool) bool {
	return requestScheme(r, useHeaders) == "https"
}

// endpointAddress is the address advertised in published metadata for the
// endpoint the request was sent to.
func (s *Server) endpointAddress(r *http.Request) string {
	if !s.Metadata.UseRequestHeaders && s.Metadata.BaseAddress != "" {
		return strings.TrimSuffix(s.Metadata.BaseAddress, "/") + r.URL.Path
	}
	return requestScheme(r, s.Metadata.UseRequestHeaders) + "://" + requestHost(r, s.Metadata.UseRequestHeaders) + r.URL.Path
}
