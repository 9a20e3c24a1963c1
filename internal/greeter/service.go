package greeter

import (
	"fmt"
	"strings"
	"time"
)

const defaultName = "world"

// GreeterService is the stateless Service implementation.
type GreeterService struct {
	now       func() time.Time
	hostname  func() string
	osVersion func() string
}

// Option configures a GreeterService.
type Option func(*GreeterService)

// WithClock replaces the clock used for ServerInfo.UtcNow.
func WithClock(now func() time.Time) Option {
	return func(s *GreeterService) {
		s.now = now
	}
}

// WithHost replaces the machine name and OS version lookups.
func WithHost(hostname, osVersion func() string) Option {
	return func(s *GreeterService) {
		s.hostname = hostname
		s.osVersion = osVersion
	}
}

// NewService creates a GreeterService reading the real host and clock.
func NewService(opts ...Option) *GreeterService {
	s := &GreeterService{
		now:       time.Now,
		hostname:  MachineName,
		osVersion: OSVersion,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SayHello greets name, or the world if name is blank.
func (s *GreeterService) SayHello(name string) string {
	if strings.TrimSpace(name) == "" {
		name = defaultName
	}
	return fmt.Sprintf("Hello, %s!", name)
}

// GetServerInfo takes a fresh snapshot of the host.
func (s *GreeterService) GetServerInfo() *ServerInfo {
	return &ServerInfo{
		MachineName: s.hostname(),
		OsVersion:   s.osVersion(),
		UtcNow:      s.now().UTC(),
	}
}
