package soap

import (
	"encoding/xml"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
)

const (
	NamespaceWSDL       = "http://schemas.xmlsoap.org/wsdl/"
	NamespaceWSDLSoap11 = "http://schemas.xmlsoap.org/wsdl/soap/"
	NamespaceWSDLSoap12 = "http://schemas.xmlsoap.org/wsdl/soap12/"
	NamespaceXSD        = "http://www.w3.org/2001/XMLSchema"

	TransportHTTP = "http://schemas.xmlsoap.org/soap/http"
)

// ServiceDescription describes a hosted contract so it can be published as WSDL.
type ServiceDescription struct {
	// Name of the wsdl:service, e.g. "GreeterService"
	Name string
	// ContractName names the port type, e.g. "IGreeterService"
	ContractName string
	// Namespace is the target namespace of the contract
	Namespace  string
	Operations []OperationDescription
}

// OperationDescription describes one document/literal wrapped operation.
// Request and Response are prototypes of the body elements; their xml
// struct tags define the published schema.
type OperationDescription struct {
	Name     string
	Action   string
	Request  interface{}
	Response interface{}
}

// DefaultAction builds the conventional action URI of an operation.
func DefaultAction(namespace, contractName, operationName string) string {
	return strings.TrimSuffix(namespace, "/") + "/" + contractName + "/" + operationName
}

// BindingName is the name of the SOAP binding and port generated for a contract.
func BindingName(contractName string) string {
	return "BasicHttpBinding_" + contractName
}

// Definitions is a WSDL 1.1 document.
type Definitions struct {
	XMLName         xml.Name   `xml:"wsdl:definitions"`
	Name            string     `xml:"name,attr"`
	TargetNamespace string     `xml:"targetNamespace,attr"`
	XMLNSWSDL       string     `xml:"xmlns:wsdl,attr"`
	XMLNSSoap       string     `xml:"xmlns:soap,attr"`
	XMLNSXSD        string     `xml:"xmlns:xsd,attr"`
	XMLNSTns        string     `xml:"xmlns:tns,attr"`
	Namespaces      []xml.Attr `xml:",any,attr"`

	Types    Types       `xml:"wsdl:types"`
	Messages []Message   `xml:"wsdl:message"`
	PortType PortType    `xml:"wsdl:portType"`
	Binding  Binding     `xml:"wsdl:binding"`
	Service  WSDLService `xml:"wsdl:service"`
}

type Types struct {
	Schemas []*Schema `xml:"xsd:schema"`
}

type Schema struct {
	TargetNamespace    string          `xml:"targetNamespace,attr"`
	ElementFormDefault string          `xml:"elementFormDefault,attr"`
	Imports            []SchemaImport  `xml:"xsd:import"`
	Elements           []SchemaElement `xml:"xsd:element"`
	ComplexTypes       []ComplexType   `xml:"xsd:complexType"`
}

type SchemaImport struct {
	Namespace string `xml:"namespace,attr"`
}

type SchemaElement struct {
	Name        string       `xml:"name,attr"`
	Type        string       `xml:"type,attr,omitempty"`
	MinOccurs   string       `xml:"minOccurs,attr,omitempty"`
	MaxOccurs   string       `xml:"maxOccurs,attr,omitempty"`
	Nillable    string       `xml:"nillable,attr,omitempty"`
	ComplexType *ComplexType `xml:"xsd:complexType,omitempty"`
}

type ComplexType struct {
	Name     string   `xml:"name,attr,omitempty"`
	Sequence Sequence `xml:"xsd:sequence"`
}

type Sequence struct {
	Elements []SchemaElement `xml:"xsd:element"`
}

type Message struct {
	Name string      `xml:"name,attr"`
	Part MessagePart `xml:"wsdl:part"`
}

type MessagePart struct {
	Name    string `xml:"name,attr"`
	Element string `xml:"element,attr"`
}

type PortType struct {
	Name       string              `xml:"name,attr"`
	Operations []PortTypeOperation `xml:"wsdl:operation"`
}

type PortTypeOperation struct {
	Name   string     `xml:"name,attr"`
	Input  MessageRef `xml:"wsdl:input"`
	Output MessageRef `xml:"wsdl:output"`
}

type MessageRef struct {
	Message string `xml:"message,attr"`
}

type Binding struct {
	Name        string             `xml:"name,attr"`
	Type        string             `xml:"type,attr"`
	SoapBinding SoapBinding        `xml:"soap:binding"`
	Operations  []BindingOperation `xml:"wsdl:operation"`
}

type SoapBinding struct {
	Transport string `xml:"transport,attr"`
	Style     string `xml:"style,attr"`
}

type BindingOperation struct {
	Name          string         `xml:"name,attr"`
	SoapOperation SoapOperation  `xml:"soap:operation"`
	Input         BindingMessage `xml:"wsdl:input"`
	Output        BindingMessage `xml:"wsdl:output"`
}

type SoapOperation struct {
	SoapAction string `xml:"soapAction,attr"`
	Style      string `xml:"style,attr"`
}

type BindingMessage struct {
	Body SoapBody `xml:"soap:body"`
}

type SoapBody struct {
	Use string `xml:"use,attr"`
}

type WSDLService struct {
	Name string `xml:"name,attr"`
	Port Port   `xml:"wsdl:port"`
}

type Port struct {
	Name    string      `xml:"name,attr"`
	Binding string      `xml:"binding,attr"`
	Address SoapAddress `xml:"soap:address"`
}

type SoapAddress struct {
	Location string `xml:"location,attr"`
}

// NewDefinitions builds the WSDL for a service description. The port address
// is left empty, see WithAddress.
func NewDefinitions(desc *ServiceDescription, soapVersion string) (*Definitions, error) {
	if desc == nil {
		return nil, errors.New("service description is nil")
	}
	if desc.Name == "" || desc.ContractName == "" || desc.Namespace == "" {
		return nil, errors.New("service description needs a name, a contract name and a namespace")
	}
	if len(desc.Operations) == 0 {
		return nil, errors.New("service description has no operations")
	}

	soapNS := NamespaceWSDLSoap11
	if soapVersion == SoapVersion12 {
		soapNS = NamespaceWSDLSoap12
	}
	bindingName := BindingName(desc.ContractName)
	b := newSchemaBuilder(desc.Namespace)
	defs := &Definitions{
		Name:            desc.Name,
		TargetNamespace: desc.Namespace,
		XMLNSWSDL:       NamespaceWSDL,
		XMLNSSoap:       soapNS,
		XMLNSXSD:        NamespaceXSD,
		XMLNSTns:        desc.Namespace,
		PortType:        PortType{Name: desc.ContractName},
		Binding: Binding{
			Name:        bindingName,
			Type:        "tns:" + desc.ContractName,
			SoapBinding: SoapBinding{Transport: TransportHTTP, Style: "document"},
		},
		Service: WSDLService{
			Name: desc.Name,
			Port: Port{Name: bindingName, Binding: "tns:" + bindingName},
		},
	}

	for _, op := range desc.Operations {
		if op.Name == "" {
			return nil, errors.New("operation without a name")
		}
		input, err := b.element(op.Request)
		if err != nil {
			return nil, fmt.Errorf("operation %s request: %w", op.Name, err)
		}
		output, err := b.element(op.Response)
		if err != nil {
			return nil, fmt.Errorf("operation %s response: %w", op.Name, err)
		}
		action := op.Action
		if action == "" {
			action = DefaultAction(desc.Namespace, desc.ContractName, op.Name)
		}
		inputMessage := desc.ContractName + "_" + op.Name + "_InputMessage"
		outputMessage := desc.ContractName + "_" + op.Name + "_OutputMessage"
		defs.Messages = append(defs.Messages,
			Message{Name: inputMessage, Part: MessagePart{Name: "parameters", Element: input}},
			Message{Name: outputMessage, Part: MessagePart{Name: "parameters", Element: output}},
		)
		defs.PortType.Operations = append(defs.PortType.Operations, PortTypeOperation{
			Name:   op.Name,
			Input:  MessageRef{Message: "tns:" + inputMessage},
			Output: MessageRef{Message: "tns:" + outputMessage},
		})
		defs.Binding.Operations = append(defs.Binding.Operations, BindingOperation{
			Name:          op.Name,
			SoapOperation: SoapOperation{SoapAction: action, Style: "document"},
			Input:         BindingMessage{Body: SoapBody{Use: "literal"}},
			Output:        BindingMessage{Body: SoapBody{Use: "literal"}},
		})
	}

	defs.Types.Schemas = b.ordered()
	for _, ns := range b.namespaces[1:] {
		defs.Namespaces = append(defs.Namespaces, xml.Attr{
			Name:  xml.Name{Local: "xmlns:" + b.prefixes[ns]},
			Value: ns,
		})
	}
	return defs, nil
}

// WithAddress returns a copy advertising location as the port address.
func (d *Definitions) WithAddress(location string) *Definitions {
	c := *d
	c.Service.Port.Address.Location = location
	return &c
}

// Marshal renders the document including the XML declaration.
func (d *Definitions) Marshal() ([]byte, error) {
	xmlBytes, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), xmlBytes...), nil
}

var timeType = reflect.TypeOf(time.Time{})

// schemaBuilder derives XML schema from Go types and their xml tags. One
// schema is kept per namespace; the target namespace is always first.
type schemaBuilder struct {
	namespaces []string
	prefixes   map[string]string
	schemas    map[string]*Schema
	types      map[reflect.Type]string
}

func newSchemaBuilder(targetNamespace string) *schemaBuilder {
	b := &schemaBuilder{
		prefixes: map[string]string{targetNamespace: "tns"},
		schemas:  map[string]*Schema{},
		types:    map[reflect.Type]string{},
	}
	b.schema(targetNamespace)
	return b
}

func (b *schemaBuilder) schema(ns string) *Schema {
	if s, ok := b.schemas[ns]; ok {
		return s
	}
	if _, ok := b.prefixes[ns]; !ok {
		b.prefixes[ns] = fmt.Sprintf("q%d", len(b.namespaces))
	}
	s := &Schema{TargetNamespace: ns, ElementFormDefault: "qualified"}
	b.schemas[ns] = s
	b.namespaces = append(b.namespaces, ns)
	return s
}

func (b *schemaBuilder) ordered() []*Schema {
	schemas := make([]*Schema, 0, len(b.namespaces))
	for _, ns := range b.namespaces {
		schemas = append(schemas, b.schemas[ns])
	}
	return schemas
}

func (b *schemaBuilder) qualify(ns, local string) string {
	b.schema(ns)
	return b.prefixes[ns] + ":" + local
}

func (b *schemaBuilder) addImport(from, ns string) {
	if from == ns {
		return
	}
	s := b.schema(from)
	for _, imp := range s.Imports {
		if imp.Namespace == ns {
			return
		}
	}
	s.Imports = append(s.Imports, SchemaImport{Namespace: ns})
}

// element declares a global element for a message prototype and returns its
// qualified name.
func (b *schemaBuilder) element(prototype interface{}) (string, error) {
	if prototype == nil {
		return "", errors.New("missing message prototype")
	}
	t := indirectType(reflect.TypeOf(prototype))
	if t.Kind() != reflect.Struct {
		return "", fmt.Errorf("message %s is not a struct", t)
	}
	ns, local := b.namespaces[0], t.Name()
	if f, ok := t.FieldByName("XMLName"); ok {
		tagNS, tagLocal, _ := parseTag(f.Tag.Get("xml"))
		if tagNS != "" {
			ns = tagNS
		}
		if tagLocal != "" {
			local = tagLocal
		}
	}
	seq, err := b.sequence(t, ns)
	if err != nil {
		return "", err
	}
	s := b.schema(ns)
	s.Elements = append(s.Elements, SchemaElement{
		Name:        local,
		ComplexType: &ComplexType{Sequence: seq},
	})
	return b.qualify(ns, local), nil
}

func (b *schemaBuilder) sequence(t reflect.Type, ns string) (Sequence, error) {
	var seq Sequence
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" || f.Name == "XMLName" {
			continue
		}
		tag := f.Tag.Get("xml")
		if tag == "-" {
			continue
		}
		fieldNS, local, flags := parseTag(tag)
		if flags != "" && flags != "omitempty" {
			// attributes, character data and raw xml have no element form
			continue
		}
		if fieldNS != "" && fieldNS != ns {
			return seq, fmt.Errorf("field %s.%s: namespace %q differs from %q", t.Name(), f.Name, fieldNS, ns)
		}
		if local == "" {
			local = f.Name
		}
		el, err := b.fieldElement(local, f.Type, ns)
		if err != nil {
			return seq, fmt.Errorf("field %s.%s: %w", t.Name(), f.Name, err)
		}
		seq.Elements = append(seq.Elements, el)
	}
	return seq, nil
}

func (b *schemaBuilder) fieldElement(name string, t reflect.Type, ns string) (SchemaElement, error) {
	el := SchemaElement{Name: name}
	if t.Kind() == reflect.Ptr {
		el.MinOccurs, el.Nillable = "0", "true"
		t = t.Elem()
	}
	// []byte has no schema form, encoding/xml writes it as raw character data
	if t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8 {
		el.MinOccurs, el.MaxOccurs = "0", "unbounded"
		t = indirectType(t.Elem())
	}
	if t.Kind() == reflect.String {
		el.MinOccurs, el.Nillable = "0", "true"
	}
	if xsdType, ok := builtinType(t); ok {
		el.Type = xsdType
		return el, nil
	}
	if t.Kind() != reflect.Struct {
		return el, fmt.Errorf("unsupported type %s", t)
	}
	typeName, err := b.complexType(t, ns)
	if err != nil {
		return el, err
	}
	el.Type = typeName
	if el.MinOccurs == "" {
		el.MinOccurs = "0"
	}
	return el, nil
}

// complexType declares a named type for t in the namespace of its fields and
// returns the qualified type name.
func (b *schemaBuilder) complexType(t reflect.Type, referencedFrom string) (string, error) {
	if name, ok := b.types[t]; ok {
		b.addImport(referencedFrom, namespaceOf(name, b))
		return name, nil
	}
	ns := referencedFrom
	for i := 0; i < t.NumField(); i++ {
		if fieldNS, _, _ := parseTag(t.Field(i).Tag.Get("xml")); fieldNS != "" {
			ns = fieldNS
			break
		}
	}
	name := b.qualify(ns, t.Name())
	b.types[t] = name
	seq, err := b.sequence(t, ns)
	if err != nil {
		return "", err
	}
	s := b.schema(ns)
	s.ComplexTypes = append(s.ComplexTypes, ComplexType{Name: t.Name(), Sequence: seq})
	b.addImport(referencedFrom, ns)
	return name, nil
}

func namespaceOf(qualifiedName string, b *schemaBuilder) string {
	prefix := strings.SplitN(qualifiedName, ":", 2)[0]
	for ns, p := range b.prefixes {
		if p == prefix {
			return ns
		}
	}
	return ""
}

func builtinType(t reflect.Type) (string, bool) {
	if t == timeType {
		return "xsd:dateTime", true
	}
	switch t.Kind() {
	case reflect.String:
		return "xsd:string", true
	case reflect.Bool:
		return "xsd:boolean", true
	case reflect.Int, reflect.Int64:
		return "xsd:long", true
	case reflect.Int32:
		return "xsd:int", true
	case reflect.Int16:
		return "xsd:short", true
	case reflect.Int8:
		return "xsd:byte", true
	case reflect.Uint, reflect.Uint64:
		return "xsd:unsignedLong", true
	case reflect.Uint32:
		return "xsd:unsignedInt", true
	case reflect.Uint16:
		return "xsd:unsignedShort", true
	case reflect.Uint8:
		return "xsd:unsignedByte", true
	case reflect.Float32:
		return "xsd:float", true
	case reflect.Float64:
		return "xsd:double", true
	}
	return "", false
}

func indirectType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// parseTag splits an xml struct tag into namespace, local name and flags.
func parseTag(tag string) (ns, local, flags string) {
	parts := strings.SplitN(tag, ",", 2)
	local = parts[0]
	if len(parts) == 2 {
		flags = parts[1]
	}
	if i := strings.Index(local, " "); i >= 0 {
		ns, local = local[:i], local[i+1:]
	}
	return ns, local, flags
}
