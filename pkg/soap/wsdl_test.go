package soap

import (
	"encoding/xml"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fooDescription() *ServiceDescription {
	return &ServiceDescription{
		Name:         "FooService",
		ContractName: "IFooService",
		Namespace:    "urn:foo",
		Operations: []OperationDescription{
			{
				Name:     "Foo",
				Action:   "testPostAction",
				Request:  &FooRequest{},
				Response: &FooResponse{},
			},
		},
	}
}

type stamp struct {
	Label string    `xml:"urn:foo:types Label"`
	At    time.Time `xml:"urn:foo:types At"`
	Count int32     `xml:"urn:foo:types Count"`
}

type stampRequest struct {
	XMLName xml.Name `xml:"urn:foo GetStamp"`
	Verbose *bool    `xml:"verbose"`
}

type stampResponse struct {
	XMLName xml.Name `xml:"urn:foo GetStampResponse"`
	Result  *stamp   `xml:"GetStampResult"`
	History []stamp  `xml:"History"`
}

// parsed mirrors the published document with resolved namespaces.
type parsed struct {
	TargetNamespace string `xml:"targetNamespace,attr"`
	Schemas         []struct {
		TargetNamespace string `xml:"targetNamespace,attr"`
		Imports         []struct {
			Namespace string `xml:"namespace,attr"`
		} `xml:"http://www.w3.org/2001/XMLSchema import"`
		Elements []struct {
			Name string `xml:"name,attr"`
		} `xml:"http://www.w3.org/2001/XMLSchema element"`
		ComplexTypes []struct {
			Name     string `xml:"name,attr"`
			Elements []struct {
				Name string `xml:"name,attr"`
				Type string `xml:"type,attr"`
			} `xml:"http://www.w3.org/2001/XMLSchema sequence>element"`
		} `xml:"http://www.w3.org/2001/XMLSchema complexType"`
	} `xml:"types>schema"`
	PortType struct {
		Name       string `xml:"name,attr"`
		Operations []struct {
			Name string `xml:"name,attr"`
		} `xml:"http://schemas.xmlsoap.org/wsdl/ operation"`
	} `xml:"http://schemas.xmlsoap.org/wsdl/ portType"`
	Binding struct {
		Operations []struct {
			Name          string `xml:"name,attr"`
			SoapOperation struct {
				SoapAction string `xml:"soapAction,attr"`
			} `xml:"http://schemas.xmlsoap.org/wsdl/soap/ operation"`
		} `xml:"http://schemas.xmlsoap.org/wsdl/ operation"`
	} `xml:"http://schemas.xmlsoap.org/wsdl/ binding"`
	Service struct {
		Port struct {
			Address struct {
				Location string `xml:"location,attr"`
			} `xml:"http://schemas.xmlsoap.org/wsdl/soap/ address"`
		} `xml:"http://schemas.xmlsoap.org/wsdl/ port"`
	} `xml:"http://schemas.xmlsoap.org/wsdl/ service"`
}

func TestNewDefinitions(t *testing.T) {
	desc := &ServiceDescription{
		Name:         "StampService",
		ContractName: "IStampService",
		Namespace:    "urn:foo",
		Operations: []OperationDescription{
			{Name: "GetStamp", Request: &stampRequest{}, Response: &stampResponse{}},
		},
	}
	defs, err := NewDefinitions(desc, SoapVersion11)
	require.NoError(t, err)

	xmlBytes, err := defs.WithAddress("http://example.com/stamp").Marshal()
	require.NoError(t, err)

	var doc parsed
	require.NoError(t, xml.Unmarshal(xmlBytes, &doc))

	assert.Equal(t, "urn:foo", doc.TargetNamespace)
	assert.Equal(t, "IStampService", doc.PortType.Name)
	require.Len(t, doc.PortType.Operations, 1)
	assert.Equal(t, "GetStamp", doc.PortType.Operations[0].Name)
	require.Len(t, doc.Binding.Operations, 1)
	assert.Equal(t, "urn:foo/IStampService/GetStamp", doc.Binding.Operations[0].SoapOperation.SoapAction)
	assert.Equal(t, "http://example.com/stamp", doc.Service.Port.Address.Location)

	require.Len(t, doc.Schemas, 2)
	contract, types := doc.Schemas[0], doc.Schemas[1]
	assert.Equal(t, "urn:foo", contract.TargetNamespace)
	require.Len(t, contract.Elements, 2)
	assert.Equal(t, "GetStamp", contract.Elements[0].Name)
	assert.Equal(t, "GetStampResponse", contract.Elements[1].Name)
	require.Len(t, contract.Imports, 1)
	assert.Equal(t, "urn:foo:types", contract.Imports[0].Namespace)

	assert.Equal(t, "urn:foo:types", types.TargetNamespace)
	require.Len(t, types.ComplexTypes, 1)
	stampType := types.ComplexTypes[0]
	assert.Equal(t, "stamp", stampType.Name)
	require.Len(t, stampType.Elements, 3)
	assert.Equal(t, "Label", stampType.Elements[0].Name)
	assert.Equal(t, "xsd:string", stampType.Elements[0].Type)
	assert.Equal(t, "At", stampType.Elements[1].Name)
	assert.Equal(t, "xsd:dateTime", stampType.Elements[1].Type)
	assert.Equal(t, "Count", stampType.Elements[2].Name)
	assert.Equal(t, "xsd:int", stampType.Elements[2].Type)

	// the receiver is untouched by WithAddress
	assert.Empty(t, defs.Service.Port.Address.Location)
}

func TestNewDefinitions_Soap12Binding(t *testing.T) {
	defs, err := NewDefinitions(fooDescription(), SoapVersion12)
	require.NoError(t, err)
	assert.Equal(t, NamespaceWSDLSoap12, defs.XMLNSSoap)
	assert.Equal(t, "BasicHttpBinding_IFooService", defs.Binding.Name)
	assert.Equal(t, "testPostAction", defs.Binding.Operations[0].SoapOperation.SoapAction)
}

func TestNewDefinitions_Invalid(t *testing.T) {
	type mixed struct {
		XMLName xml.Name `xml:"urn:foo Mixed"`
		A       string   `xml:"urn:other A"`
	}
	type unsupported struct {
		XMLName xml.Name `xml:"urn:foo Unsupported"`
		C       chan int
	}
	type rawBytes struct {
		XMLName xml.Name `xml:"urn:foo RawBytes"`
		Payload []byte
	}

	tests := []struct {
		name string
		desc *ServiceDescription
	}{
		{"nil", nil},
		{"no name", &ServiceDescription{ContractName: "I", Namespace: "urn:foo", Operations: fooDescription().Operations}},
		{"no operations", &ServiceDescription{Name: "S", ContractName: "I", Namespace: "urn:foo"}},
		{"no prototype", &ServiceDescription{Name: "S", ContractName: "I", Namespace: "urn:foo", Operations: []OperationDescription{{Name: "Op"}}}},
		{"mixed namespaces", &ServiceDescription{Name: "S", ContractName: "I", Namespace: "urn:foo", Operations: []OperationDescription{{Name: "Op", Request: &mixed{}, Response: &FooResponse{}}}}},
		{"unsupported field", &ServiceDescription{Name: "S", ContractName: "I", Namespace: "urn:foo", Operations: []OperationDescription{{Name: "Op", Request: &unsupported{}, Response: &FooResponse{}}}}},
		{"byte slice field", &ServiceDescription{Name: "S", ContractName: "I", Namespace: "urn:foo", Operations: []OperationDescription{{Name: "Op", Request: &rawBytes{}, Response: &FooResponse{}}}}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDefinitions(tc.desc, SoapVersion11)
			assert.Error(t, err)
		})
	}
}

func TestDefaultAction(t *testing.T) {
	assert.Equal(t, "urn:webappcorewcf:greeter/IGreeterService/SayHello", DefaultAction("urn:webappcorewcf:greeter", "IGreeterService", "SayHello"))
	assert.Equal(t, "http://tempuri.org/IFoo/Bar", DefaultAction("http://tempuri.org/", "IFoo", "Bar"))
}
