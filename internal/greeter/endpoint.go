package greeter

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/foomo/soapgreeter/pkg/soap"
)

// Register hosts svc on srv at path and publishes its metadata there.
func Register(srv *soap.Server, path string, svc Service) error {
	if svc == nil {
		return errors.New("greeter: nil service")
	}
	srv.RegisterHandler(path, ActionSayHello, OperationSayHello,
		func() interface{} { return &SayHelloRequest{} },
		func(request interface{}, w http.ResponseWriter, r *http.Request) (interface{}, error) {
			req := request.(*SayHelloRequest)
			return &SayHelloResponse{Result: svc.SayHello(req.Name)}, nil
		},
	)
	srv.RegisterHandler(path, ActionGetServerInfo, OperationGetServerInfo,
		func() interface{} { return &GetServerInfoRequest{} },
		func(request interface{}, w http.ResponseWriter, r *http.Request) (interface{}, error) {
			return &GetServerInfoResponse{Result: svc.GetServerInfo()}, nil
		},
	)
	return errors.Wrap(srv.RegisterService(path, Description()), "greeter: publish metadata")
}
