// Package greeter implements the IGreeterService SOAP contract: a greeting
// echo and a server info reporter.
package greeter

import (
	"encoding/xml"
	"time"

	"github.com/foomo/soapgreeter/pkg/soap"
)

const (
	// Namespace of the contract and its messages
	Namespace = "urn:webappcorewcf:greeter"
	// TypesNamespace of the data types
	TypesNamespace = "urn:webappcorewcf:greeter:types"

	ContractName = "IGreeterService"
	ServiceName  = "GreeterService"

	// DefaultPath the endpoint is hosted at
	DefaultPath = "/soap/GreeterService.svc"

	OperationSayHello      = "SayHello"
	OperationGetServerInfo = "GetServerInfo"
)

var (
	ActionSayHello      = soap.DefaultAction(Namespace, ContractName, OperationSayHello)
	ActionGetServerInfo = soap.DefaultAction(Namespace, ContractName, OperationGetServerInfo)
)

// Service is the greeter contract. Neither operation fails.
type Service interface {
	SayHello(name string) string
	GetServerInfo() *ServerInfo
}

// ServerInfo is a snapshot of the host taken while answering a request.
// Field order is part of the contract.
type ServerInfo struct {
	MachineName string    `xml:"urn:webappcorewcf:greeter:types MachineName"`
	OsVersion   string    `xml:"urn:webappcorewcf:greeter:types OsVersion"`
	UtcNow      time.Time `xml:"urn:webappcorewcf:greeter:types UtcNow"`
}

type SayHelloRequest struct {
	XMLName xml.Name `xml:"urn:webappcorewcf:greeter SayHello"`
	Name    string   `xml:"name"`
}

type SayHelloResponse struct {
	XMLName xml.Name `xml:"urn:webappcorewcf:greeter SayHelloResponse"`
	Result  string   `xml:"SayHelloResult"`
}

type GetServerInfoRequest struct {
	XMLName xml.Name `xml:"urn:webappcorewcf:greeter GetServerInfo"`
}

type GetServerInfoResponse struct {
	XMLName xml.Name    `xml:"urn:webappcorewcf:greeter GetServerInfoResponse"`
	Result  *ServerInfo `xml:"GetServerInfoResult"`
}

// Description of the contract for metadata publishing.
func Description() *soap.ServiceDescription {
	return &soap.ServiceDescription{
		Name:         ServiceName,
		ContractName: ContractName,
		Namespace:    Namespace,
		Operations: []soap.OperationDescription{
			{
				Name:     OperationSayHello,
				Action:   ActionSayHello,
				Request:  &SayHelloRequest{},
				Response: &SayHelloResponse{},
			},
			{
				Name:     OperationGetServerInfo,
				Action:   ActionGetServerInfo,
				Request:  &GetServerInfoRequest{},
				Response: &GetServerInfoResponse{},
			},
		},
	}
}
