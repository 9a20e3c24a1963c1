package soap

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// SOAP 1.1 and SOAP 1.2 must expect different ContentTypes and Namespaces.

const (
	SoapVersion11 = "1.1"
	SoapVersion12 = "1.2"

	SoapContentType11 = "text/xml; charset=\"utf-8\""
	SoapContentType12 = "application/soap+xml; charset=\"utf-8\""

	NamespaceSoap11 = "http://schemas.xmlsoap.org/soap/envelope/"
	NamespaceSoap12 = "http://www.w3.org/2003/05/soap-envelope"
)

// Fault codes, qualified with the envelope prefix declared on fault responses.
// SOAP 1.2 renames Client and Server to Sender and Receiver.
const (
	FaultCodeClient = "soap:Client"
	FaultCodeServer = "soap:Server"

	FaultCodeSender   = "soap:Sender"
	FaultCodeReceiver = "soap:Receiver"
)

var (
	bNamespaceSoap11 = []byte(NamespaceSoap11)
	bNamespaceSoap12 = []byte(NamespaceSoap12)
)

// Envelope type `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
type Envelope struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	// XMLNSSoap declares the soap prefix used by qualified fault codes
	XMLNSSoap string `xml:"xmlns:soap,attr,omitempty"`
	Header    Header
	Body      Body
}

// Header type
type Header struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Header"`

	Header interface{}
}

// Body type
type Body struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`

	Fault               *Fault      `xml:",omitempty"`
	Content             interface{} `xml:",omitempty"`
	SOAPBodyContentType string      `xml:"-"`
}

// Fault type
type Fault struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Fault"`

	Code   string `xml:"faultcode,omitempty"`
	String string `xml:"faultstring,omitempty"`
	Actor  string `xml:"faultactor,omitempty"`
	Detail string `xml:"detail,omitempty"`
}

// NewFault constructs a fault a handler may return to have it sent unchanged.
func NewFault(code, format string, a ...interface{}) *Fault {
	return &Fault{
		Code:   code,
		String: fmt.Sprintf(format, a...),
	}
}

// UnmarshalXML implement xml.Unmarshaler
func (b *Body) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	if b.Content == nil {
		return xml.UnmarshalError("Content must be a pointer to a struct")
	}

	var (
		token    xml.Token
		err      error
		consumed bool
	)

Loop:
	for {
		if token, err = d.Token(); err != nil {
			return err
		}

		if token == nil {
			break
		}

		switch se := token.(type) {
		case xml.StartElement:
			if consumed {
				return xml.UnmarshalError("Found multiple elements inside SOAP body; not wrapped-document/literal WS-I compliant")
			} else if se.Name.Space == NamespaceSoap11 && se.Name.Local == "Fault" {
				b.Fault = &Fault{}
				b.Content = nil

				err = d.DecodeElement(b.Fault, &se)
				if err != nil {
					return err
				}

				consumed = true
			} else {
				b.SOAPBodyContentType = se.Name.Local
				if err = d.DecodeElement(b.Content, &se); err != nil {
					return err
				}

				consumed = true
			}
		case xml.EndElement:
			break Loop
		}
	}

	return nil
}

func (f *Fault) Error() string {
	return f.String
}

// UnmarshalXML reads SOAP 1.1 (faultcode, faultstring) and SOAP 1.2
// (Code/Value, Reason/Text) faults into the same shape.
func (f *Fault) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Code     string `xml:"faultcode"`
		String   string `xml:"faultstring"`
		Actor    string `xml:"faultactor"`
		Detail   string `xml:"detail"`
		Code12   string `xml:"Code>Value"`
		Reason12 string `xml:"Reason>Text"`
		Role12   string `xml:"Role"`
		Detail12 string `xml:"Detail"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	*f = Fault{
		XMLName: start.Name,
		Code:    firstNonEmpty(raw.Code, raw.Code12),
		String:  firstNonEmpty(raw.String, raw.Reason12),
		Actor:   firstNonEmpty(raw.Actor, raw.Role12),
		Detail:  firstNonEmpty(raw.Detail, raw.Detail12),
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// fault12 is the SOAP 1.2 fault form. It is written in the 1.1 envelope
// namespace and swapped like every other outgoing 1.2 message.
type fault12 struct {
	XMLName xml.Name      `xml:"http://schemas.xmlsoap.org/soap/envelope/ Fault"`
	Code    fault12Code   `xml:"http://schemas.xmlsoap.org/soap/envelope/ Code"`
	Reason  fault12Reason `xml:"http://schemas.xmlsoap.org/soap/envelope/ Reason"`
	Role    string        `xml:"http://schemas.xmlsoap.org/soap/envelope/ Role,omitempty"`
	Detail  string        `xml:"http://schemas.xmlsoap.org/soap/envelope/ Detail,omitempty"`
}

type fault12Code struct {
	Value string `xml:"http://schemas.xmlsoap.org/soap/envelope/ Value"`
}

type fault12Reason struct {
	Text fault12Text `xml:"http://schemas.xmlsoap.org/soap/envelope/ Text"`
}

type fault12Text struct {
	Lang  string `xml:"http://www.w3.org/XML/1998/namespace lang,attr"`
	Value string `xml:",chardata"`
}

func (f *Fault) soap12() *fault12 {
	code := f.Code
	switch code {
	case FaultCodeClient:
		code = FaultCodeSender
	case FaultCodeServer:
		code = FaultCodeReceiver
	}
	return &fault12{
		Code:   fault12Code{Value: code},
		Reason: fault12Reason{Text: fault12Text{Lang: "en", Value: f.String}},
		Role:   f.Actor,
		Detail: f.Detail,
	}
}

func replaceSoap12to11(data []byte) []byte {
	return bytes.ReplaceAll(data, bNamespaceSoap12, bNamespaceSoap11)
}

func replaceSoap11to12(data []byte) []byte {
	return bytes.ReplaceAll(data, bNamespaceSoap11, bNamespaceSoap12)
}
