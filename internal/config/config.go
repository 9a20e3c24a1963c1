// Package config loads the greeter service runtime configuration from the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/foomo/soapgreeter/internal/telemetry"
	"github.com/foomo/soapgreeter/pkg/soap"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// Config represents the runtime configuration for the greeter service.
type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"greeter-service"`
	Environment string `envconfig:"ENVIRONMENT" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Listeners. HTTPS is off unless an address is given.
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPSAddr   string `envconfig:"HTTPS_ADDR" default:""`
	TLSCertFile string `envconfig:"TLS_CERT_FILE"`
	TLSKeyFile  string `envconfig:"TLS_KEY_FILE"`

	// SOAP endpoint
	SOAPPath    string `envconfig:"SOAP_PATH" default:"/soap/GreeterService.svc"`
	SOAPVersion string `envconfig:"SOAP_VERSION" default:"1.1"`

	// Metadata publishing
	MetadataHTTPGetEnabled    bool   `envconfig:"METADATA_HTTP_GET_ENABLED" default:"true"`
	MetadataHTTPSGetEnabled   bool   `envconfig:"METADATA_HTTPS_GET_ENABLED" default:"true"`
	MetadataUseRequestHeaders bool   `envconfig:"METADATA_USE_REQUEST_HEADERS" default:"true"`
	MetadataBaseAddress       string `envconfig:"METADATA_BASE_ADDRESS" default:""`

	// Tracing. Spans stay in process unless an OTLP endpoint is given.
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:""`
	OTLPProtocol string `envconfig:"OTEL_EXPORTER_OTLP_PROTOCOL" default:"grpc"`
	OTLPInsecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`

	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads environment variables into Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.SOAPPath, "/") {
		return fmt.Errorf("config: SOAP_PATH %q must start with /", c.SOAPPath)
	}
	if c.SOAPVersion != soap.SoapVersion11 && c.SOAPVersion != soap.SoapVersion12 {
		return fmt.Errorf("config: SOAP_VERSION %q must be %s or %s", c.SOAPVersion, soap.SoapVersion11, soap.SoapVersion12)
	}
	if c.HTTPAddr == "" && c.HTTPSAddr == "" {
		return fmt.Errorf("config: one of HTTP_ADDR or HTTPS_ADDR is required")
	}
	if c.HTTPSAddr != "" && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return fmt.Errorf("config: HTTPS_ADDR needs TLS_CERT_FILE and TLS_KEY_FILE")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("config: TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if c.OTLPProtocol != telemetry.ProtocolGRPC && c.OTLPProtocol != telemetry.ProtocolHTTP {
		return fmt.Errorf("config: OTEL_EXPORTER_OTLP_PROTOCOL %q must be %s or %s", c.OTLPProtocol, telemetry.ProtocolGRPC, telemetry.ProtocolHTTP)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// IsDevelopment returns true if environment is development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, EnvironmentDevelopment)
}

// Metadata maps the METADATA_* settings onto the SOAP server behavior.
func (c *Config) Metadata() soap.MetadataBehavior {
	return soap.MetadataBehavior{
		HTTPGetEnabled:    c.MetadataHTTPGetEnabled,
		HTTPSGetEnabled:   c.MetadataHTTPSGetEnabled,
		UseRequestHeaders: c.MetadataUseRequestHeaders,
		BaseAddress:       c.MetadataBaseAddress,
	}
}

// Tracing maps the OTEL_EXPORTER_OTLP_* settings onto the tracer setup.
func (c *Config) Tracing(version string) telemetry.TracingConfig {
	return telemetry.TracingConfig{
		ServiceName:    c.ServiceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		Endpoint:       c.OTLPEndpoint,
		Protocol:       c.OTLPProtocol,
		Insecure:       c.OTLPInsecure,
	}
}
