package soap

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/foomo/soapgreeter/pkg/soap"

// InternalErrorMessage is the faultstring sent for internal failures when
// exception detail is not included in faults.
const InternalErrorMessage = "The server was unable to process the request due to an internal error."

// OperationHandlerFunc runs the actual business logic - request is whatever you constructed in RequestFactoryFunc
type OperationHandlerFunc func(request interface{}, w http.ResponseWriter, httpRequest *http.Request) (response interface{}, err error)

// RequestFactoryFunc constructs a request object for OperationHandlerFunc
type RequestFactoryFunc func() interface{}

// OperationObserver is notified after every dispatched operation.
type OperationObserver interface {
	ObserveOperation(path, action string, duration time.Duration, err error)
}

type dummyContent struct{}

type operationHandler struct {
	requestFactory RequestFactoryFunc
	handler        OperationHandlerFunc
}

type responseWriter struct {
	logger        *zap.Logger
	w             http.ResponseWriter
	outputStarted bool
}

func (w *responseWriter) Header() http.Header {
	return w.w.Header()
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.outputStarted = true
	w.logger.Debug("writing response", zap.ByteString("body", b))
	return w.w.Write(b)
}

func (w *responseWriter) WriteHeader(code int) {
	w.w.WriteHeader(code)
}

// MetadataBehavior controls publishing of service descriptions (WSDL).
type MetadataBehavior struct {
	// HTTPGetEnabled publishes metadata for plain HTTP GET requests
	HTTPGetEnabled bool
	// HTTPSGetEnabled publishes metadata for GET requests that arrived over TLS
	HTTPSGetEnabled bool
	// UseRequestHeaders derives the advertised address from forwarding
	// headers and the request host
	UseRequestHeaders bool
	// BaseAddress is advertised when UseRequestHeaders is off, e.g. "http://localhost:8080"
	BaseAddress string
}

// Server a SOAP server, which can be run standalone or used as a http.Handler
type Server struct {
	Logger      *zap.Logger
	handlers    map[string]map[string]map[string]*operationHandler
	metadata    map[string]*Definitions
	Marshaller  XMLMarshaller
	ContentType string
	SoapVersion string
	Metadata    MetadataBehavior
	// IncludeExceptionDetailInFaults sends internal error messages and
	// stack traces to callers. Development only.
	IncludeExceptionDetailInFaults bool
	Observer                       OperationObserver
	// Propagator extracts the caller's trace context. Nil uses the global
	// otel propagator.
	Propagator propagation.TextMapPropagator
	tracer     trace.Tracer
}

// NewServer construct a new SOAP server publishing metadata over HTTP and HTTPS
func NewServer() *Server {
	return &Server{
		Logger:      zap.NewNop(),
		handlers:    make(map[string]map[string]map[string]*operationHandler),
		metadata:    make(map[string]*Definitions),
		Marshaller:  newDefaultMarshaller(),
		ContentType: SoapContentType11,
		SoapVersion: SoapVersion11,
		Metadata: MetadataBehavior{
			HTTPGetEnabled:    true,
			HTTPSGetEnabled:   true,
			UseRequestHeaders: true,
		},
		tracer: otel.Tracer(tracerName),
	}
}

// UseTracerProvider records operation spans with tp instead of the global
// otel provider.
func (s *Server) UseTracerProvider(tp trace.TracerProvider) {
	s.tracer = tp.Tracer(tracerName)
}

func (s *Server) UseSoap11() {
	s.SoapVersion = SoapVersion11
	s.ContentType = SoapContentType11
}

// UseSoap12 switches content type and envelope namespace to SOAP 1.2. Faults
// are sent in the 1.2 form with Sender and Receiver codes.
func (s *Server) UseSoap12() {
	s.SoapVersion = SoapVersion12
	s.ContentType = SoapContentType12
}

// RegisterHandler register to handle an operation. This function must not be
// called after the server has been started.
func (s *Server) RegisterHandler(path string, action string, messageType string, requestFactory RequestFactoryFunc, operationHandlerFunc OperationHandlerFunc) {
	if _, ok := s.handlers[path]; !ok {
		s.handlers[path] = make(map[string]map[string]*operationHandler)
	}

	if _, ok := s.handlers[path][action]; !ok {
		s.handlers[path][action] = make(map[string]*operationHandler)
	}
	s.handlers[path][action][messageType] = &operationHandler{
		handler:        operationHandlerFunc,
		requestFactory: requestFactory,
	}
}

// RegisterService publishes the description of the service hosted at path.
// Like RegisterHandler it must not be called after the server has been started.
func (s *Server) RegisterService(path string, description *ServiceDescription) error {
	defs, err := NewDefinitions(description, s.SoapVersion)
	if err != nil {
		return fmt.Errorf("describe service %q: %w", description.Name, err)
	}
	s.metadata[path] = defs
	return nil
}

func (s *Server) fault(err error) *Fault {
	var fault *Fault
	if errors.As(err, &fault) {
		return fault
	}
	if s.IncludeExceptionDetailInFaults {
		return &Fault{
			Code:   FaultCodeServer,
			String: err.Error(),
			Detail: fmt.Sprintf("%+v", err),
		}
	}
	return &Fault{
		Code:   FaultCodeServer,
		String: InternalErrorMessage,
	}
}

func (s *Server) handleError(err error, w http.ResponseWriter, statusCode int) {
	// has to write a soap fault
	s.Logger.Info("handling error", zap.Error(err))
	fault := s.fault(err)
	var content interface{} = fault
	if s.SoapVersion == SoapVersion12 {
		content = fault.soap12()
	}
	responseEnvelope := &Envelope{
		XMLNSSoap: NamespaceSoap11,
		Body: Body{
			Content: content,
		},
	}
	xmlBytes, xmlErr := s.Marshaller.Marshal(responseEnvelope)
	if xmlErr != nil {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "could not marshal soap fault for: %s xmlError: %s\n", err, xmlErr)
		return
	}
	if s.SoapVersion == SoapVersion12 {
		xmlBytes = replaceSoap11to12(xmlBytes)
	}
	addSOAPHeader(w, len(xmlBytes), s.ContentType)
	w.WriteHeader(statusCode)
	w.Write(xmlBytes)
}

// WriteHeader first set the content-type header and then writes the header code.
func (s *Server) WriteHeader(w http.ResponseWriter, code int) {
	setContentType(w, s.ContentType)
	w.WriteHeader(code)
}

func setContentType(w http.ResponseWriter, contentType string) {
	w.Header().Set("Content-Type", contentType)
}

func addSOAPHeader(w http.ResponseWriter, contentLength int, contentType string) {
	setContentType(w, contentType)
	w.Header().Set("Content-Length", fmt.Sprint(contentLength))
}

// soapAction reads the action from the SOAPAction header, or for SOAP 1.2
// from the action parameter of the content type. Surrounding quotes are dropped.
func (s *Server) soapAction(r *http.Request) string {
	action := r.Header.Get("SOAPAction")
	if action == "" && s.SoapVersion == SoapVersion12 {
		if _, params, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil {
			action = params["action"]
		}
	}
	return strings.Trim(strings.TrimSpace(action), "\"")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Logger.Debug("ServeHTTP",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("soapAction", r.Header.Get("SOAPAction")),
	)
	w = &responseWriter{
		logger:        s.Logger,
		w:             w,
		outputStarted: false,
	}
	switch r.Method {
	case http.MethodPost:
		s.serveOperation(w, r)
	case http.MethodGet:
		if isMetadataRequest(r) {
			s.serveMetadata(w, r)
			return
		}
		s.handleError(NewFault(FaultCodeClient, "this is a soap service - you have to POST soap requests"), w, http.StatusMethodNotAllowed)
	default:
		s.handleError(NewFault(FaultCodeClient, "this is a soap service - you have to POST soap requests"), w, http.StatusMethodNotAllowed)
	}
}

func (s *Server) serveOperation(w http.ResponseWriter, r *http.Request) {
	soapAction := s.soapAction(r)
	ctx, span := s.startSpan(r, soapAction)
	defer span.End()
	r = r.WithContext(ctx)

	fail := func(err error, statusCode int) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.handleError(err, w, statusCode)
	}

	soapRequestBytes, err := io.ReadAll(r.Body)
	if err != nil {
		fail(NewFault(FaultCodeClient, "could not read POST:: %s", err), http.StatusInternalServerError)
		return
	}
	// Our structs for Envelope, Header, Body and Fault are tagged with namespace for SOAP 1.1
	// Therefore we must adjust namespaces for incoming SOAP 1.2 messages
	if s.SoapVersion == SoapVersion12 {
		soapRequestBytes = replaceSoap12to11(soapRequestBytes)
	}

	pathHandlers, pathHandlerOK := s.handlers[r.URL.Path]
	if !pathHandlerOK {
		fail(NewFault(FaultCodeClient, "unknown path %q", r.URL.Path), http.StatusInternalServerError)
		return
	}
	actionHandlers, ok := pathHandlers[soapAction]
	if !ok {
		fail(NewFault(FaultCodeClient, "unknown action %q", soapAction), http.StatusInternalServerError)
		return
	}

	// we need to find out, what is in the body
	bodyEnvelope := &Envelope{
		Body: Body{
			Content: &dummyContent{},
		},
	}

	err = s.Marshaller.Unmarshal(soapRequestBytes, bodyEnvelope)
	if err != nil {
		fail(NewFault(FaultCodeClient, "could not read soap body content:: %s", err), http.StatusInternalServerError)
		return
	}
	t := bodyEnvelope.Body.SOAPBodyContentType
	s.Logger.Debug("found content type", zap.String("contentType", t))
	span.SetAttributes(attribute.String("soap.operation", t))
	actionHandler, ok := actionHandlers[t]
	if !ok {
		fail(NewFault(FaultCodeClient, "no action handler for content type: %q", t), http.StatusInternalServerError)
		return
	}
	request := actionHandler.requestFactory()
	envelope := &Envelope{
		Header: Header{},
		Body: Body{
			Content: request,
		},
	}

	err = s.Marshaller.Unmarshal(soapRequestBytes, envelope)
	if err != nil {
		fail(NewFault(FaultCodeClient, "could not unmarshal request:: %s", err), http.StatusInternalServerError)
		return
	}
	s.Logger.Debug("request", zap.Any("envelope", envelope))

	start := time.Now()
	response, err := s.invoke(actionHandler, request, w, r)
	if s.Observer != nil {
		s.Observer.ObserveOperation(r.URL.Path, soapAction, time.Since(start), err)
	}
	if err != nil {
		s.Logger.Warn("action handler threw up", zap.String("action", soapAction), zap.Error(err))
		if w.(*responseWriter).outputStarted {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		fail(err, http.StatusInternalServerError)
		return
	}
	s.Logger.Debug("result", zap.Any("response", response))
	if w.(*responseWriter).outputStarted {
		s.Logger.Debug("action handler sent its own output")
		return
	}
	responseEnvelope := &Envelope{
		Body: Body{
			Content: response,
		},
	}
	xmlBytes, err := s.Marshaller.Marshal(responseEnvelope)
	if err != nil {
		fail(fmt.Errorf("could not marshal response:: %w", err), http.StatusInternalServerError)
		return
	}
	// Adjust namespaces for SOAP 1.2
	if s.SoapVersion == SoapVersion12 {
		xmlBytes = replaceSoap11to12(xmlBytes)
	}
	addSOAPHeader(w, len(xmlBytes), s.ContentType)
	w.Write(xmlBytes)
}

// startSpan opens the operation span. Without a span already in the request
// context, the caller's trace context is read from the headers and the span
// becomes the server span of the request.
func (s *Server) startSpan(r *http.Request, soapAction string) (context.Context, trace.Span) {
	ctx := r.Context()
	kind := trace.SpanKindInternal
	if !trace.SpanContextFromContext(ctx).IsValid() {
		propagator := s.Propagator
		if propagator == nil {
			propagator = otel.GetTextMapPropagator()
		}
		ctx = propagator.Extract(ctx, propagation.HeaderCarrier(r.Header))
		kind = trace.SpanKindServer
	}
	name := soapAction
	if name == "" {
		name = "soap " + r.URL.Path
	}
	return s.tracer.Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(
			attribute.String("soap.path", r.URL.Path),
			attribute.String("soap.action", soapAction),
		),
	)
}

// invoke runs the handler and turns a panic into an error carrying its stack.
func (s *Server) invoke(h *operationHandler, request interface{}, w http.ResponseWriter, r *http.Request) (response interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("panic in operation handler: %v", rec)
		}
	}()
	return h.handler(request, w, r)
}

func (s *Server) serveMetadata(w http.ResponseWriter, r *http.Request) {
	defs, ok := s.metadata[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	secure := isSecureRequest(r, s.Metadata.UseRequestHeaders)
	if (secure && !s.Metadata.HTTPSGetEnabled) || (!secure && !s.Metadata.HTTPGetEnabled) {
		http.Error(w, "metadata publishing is disabled for this endpoint", http.StatusNotFound)
		return
	}
	xmlBytes, err := defs.WithAddress(s.endpointAddress(r)).Marshal()
	if err != nil {
		s.Logger.Error("could not marshal service description", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "could not marshal service description", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.Header().Set("Content-Length", fmt.Sprint(len(xmlBytes)))
	w.Write(xmlBytes)
}

func isMetadataRequest(r *http.Request) bool {
	for key := range r.URL.Query() {
		if strings.EqualFold(key, "wsdl") || strings.EqualFold(key, "singleWsdl") {
			return true
		}
	}
	return false
}
