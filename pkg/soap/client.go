package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ClientDialTimeout default timeout 30s
var ClientDialTimeout = time.Duration(30 * time.Second)

// UserAgent is the default user agent
var UserAgent = "go-soap-0.1"

// XMLMarshaller lets you inject your favourite custom xml implementation
type XMLMarshaller interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(xml []byte, v interface{}) error
}

type defaultMarshaller struct {
}

func (dm *defaultMarshaller) Marshal(v interface{}) (xmlBytes []byte, err error) {
	return xml.Marshal(v)
}

func (dm *defaultMarshaller) Unmarshal(xmlBytes []byte, v interface{}) error {
	return xml.Unmarshal(xmlBytes, v)
}

func newDefaultMarshaller() XMLMarshaller {
	return &defaultMarshaller{}
}

func dialTimeout(ctx context.Context, network, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: ClientDialTimeout}
	return d.DialContext(ctx, network, addr)
}

// BasicAuth credentials for the client
type BasicAuth struct {
	Login    string
	Password string
}

// Client generic SOAP client
type Client struct {
	url            string
	auth           *BasicAuth
	Logger         *zap.Logger
	Marshaller     XMLMarshaller
	ContentType    string
	HTTPClientDoFn func(req *http.Request) (*http.Response, error)
}

// NewClient constructor
func NewClient(url string, auth *BasicAuth) *Client {
	return &Client{
		url:         url,
		auth:        auth,
		Logger:      zap.NewNop(),
		Marshaller:  newDefaultMarshaller(),
		ContentType: SoapContentType11,
		HTTPClientDoFn: (&http.Client{
			Transport: &http.Transport{
				Proxy:       http.ProxyFromEnvironment,
				DialContext: dialTimeout,
			},
		}).Do,
	}
}

// Call make a SOAP call. A SOAP fault in the response is returned as *Fault.
func (s *Client) Call(ctx context.Context, soapAction string, request, response interface{}) (httpResponse *http.Response, err error) {
	envelope := Envelope{}

	envelope.Body.Content = request

	xmlBytes, err := s.Marshaller.Marshal(envelope)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewBuffer(xmlBytes))
	if err != nil {
		return nil, err
	}
	if s.auth != nil {
		req.SetBasicAuth(s.auth.Login, s.auth.Password)
	}

	req.Header.Add("Content-Type", s.ContentType)
	req.Header.Set("User-Agent", UserAgent)

	if soapAction != "" {
		req.Header.Add("SOAPAction", "\""+soapAction+"\"")
	}

	req.Close = true
	s.Logger.Debug("POST", zap.String("url", s.url), zap.ByteString("body", xmlBytes))
	httpResponse, err = s.HTTPClientDoFn(req)
	if err != nil {
		return nil, err
	}

	defer httpResponse.Body.Close()

	s.Logger.Debug("response header", zap.Any("header", httpResponse.Header))

	mediaType, params, err := mime.ParseMediaType(httpResponse.Header.Get("Content-Type"))
	if err != nil {
		s.Logger.Debug("could not parse response content type", zap.Error(err))
	}
	var rawbody = []byte{}
	if strings.HasPrefix(mediaType, "multipart/") { // MULTIPART MESSAGE
		mr := multipart.NewReader(httpResponse.Body, params["boundary"])
		// If this is a multipart message, search for the soapy part
		foundSoap := false
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			slurp, err := io.ReadAll(p)
			if err != nil {
				return nil, err
			}
			if isSoapy(slurp) {
				rawbody = slurp
				foundSoap = true
				break
			}
		}
		if !foundSoap {
			return nil, errors.New("multipart message does contain a soapy part")
		}
	} else { // SINGLE PART MESSAGE
		rawbody, err = io.ReadAll(httpResponse.Body)
		if err != nil {
			return httpResponse, err
		}
		// Check if there is a body and if yes if it's a soapy one.
		if len(rawbody) == 0 {
			s.Logger.Debug("response body is empty")
			return // Empty responses are ok. Sometimes only a Status 200 or 202 comes back
		}
		// There is a message body, but it's not SOAP. We cannot handle this!
		if !isSoapy(rawbody) {
			return nil, errors.New("This is not a SOAP-Message: \n" + string(rawbody))
		}
	}

	// We have an empty body or a SOAP body
	s.Logger.Debug("response body", zap.ByteString("body", rawbody))
	respEnvelope := new(Envelope)
	type Dummy struct {
	}
	// Response struct may be nil, e.g. if only a Status 200 is expected.
	// In this case, we need a Dummy response to avoid a nil pointer if we receive a SOAP-Fault instead of the empty message (unmarshalling would fail)
	if response == nil {
		respEnvelope.Body = Body{Content: &Dummy{}}
	} else {
		respEnvelope.Body = Body{Content: response}
	}

	if s.ContentType == SoapContentType12 {
		rawbody = replaceSoap12to11(rawbody)
	}
	if err := s.Marshaller.Unmarshal(rawbody, respEnvelope); err != nil {
		return httpResponse, fmt.Errorf("could not unmarshal response: %w", err)
	}

	if fault := respEnvelope.Body.Fault; fault != nil {
		s.Logger.Debug("received SOAP fault", zap.String("code", fault.Code), zap.String("string", fault.String))
		return httpResponse, fault
	}
	return
}

// isSoapy reports whether a payload looks like a SOAP envelope, skipping an
// optional XML declaration.
func isSoapy(payload []byte) bool {
	d := xml.NewDecoder(bytes.NewReader(payload))
	for {
		token, err := d.Token()
		if err != nil {
			return false
		}
		switch se := token.(type) {
		case xml.StartElement:
			return se.Name.Local == "Envelope" &&
				(se.Name.Space == NamespaceSoap11 || se.Name.Space == NamespaceSoap12)
		case xml.ProcInst, xml.Comment, xml.CharData, xml.Directive:
			continue
		}
	}
}
