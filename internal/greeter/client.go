package greeter

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/foomo/soapgreeter/pkg/soap"
)

// Client is a typed IGreeterService client.
type Client struct {
	SOAP *soap.Client
}

// NewClient for the endpoint at url.
func NewClient(url string, logger *zap.Logger) *Client {
	c := soap.NewClient(url, nil)
	if logger != nil {
		c.Logger = logger
	}
	return &Client{SOAP: c}
}

func (c *Client) SayHello(ctx context.Context, name string) (string, error) {
	resp := &SayHelloResponse{}
	if _, err := c.SOAP.Call(ctx, ActionSayHello, &SayHelloRequest{Name: name}, resp); err != nil {
		return "", errors.Wrap(err, OperationSayHello)
	}
	return resp.Result, nil
}

func (c *Client) GetServerInfo(ctx context.Context) (*ServerInfo, error) {
	resp := &GetServerInfoResponse{}
	if _, err := c.SOAP.Call(ctx, ActionGetServerInfo, &GetServerInfoRequest{}, resp); err != nil {
		return nil, errors.Wrap(err, OperationGetServerInfo)
	}
	if resp.Result == nil {
		return nil, errors.New("GetServerInfo: empty result")
	}
	return resp.Result, nil
}
