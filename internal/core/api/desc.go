package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "decisionkeeper.v1.DecisionAPI"

// Method names of the decision API. Every method takes and returns a
// google.protobuf.Struct whose JSON form is documented on the handler.
const (
	MethodListDomains    = "ListDomains"
	MethodDescribeDomain = "DescribeDomain"
	MethodNewCondition   = "NewCondition"
	MethodValidateTree   = "ValidateTree"
	MethodEvaluateTree   = "EvaluateTree"
	MethodSaveTree       = "SaveTree"
	MethodGetTree        = "GetTree"
	MethodListTrees      = "ListTrees"
	MethodDeleteTree     = "DeleteTree"
)

// FullMethod returns "/decisionkeeper.v1.DecisionAPI/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// DecisionAPIServer is the server API for the decision service.
type DecisionAPIServer interface {
	ListDomains(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DescribeDomain(context.Context, *structpb.Struct) (*structpb.Struct, error)
	NewCondition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ValidateTree(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EvaluateTree(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveTree(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTree(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTrees(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteTree(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(DecisionAPIServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(method string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DecisionAPIServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(DecisionAPIServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// DecisionAPIServiceDesc describes the service for grpc.Server.RegisterService.
// Messages are structpb.Struct so no generated code is needed.
var DecisionAPIServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DecisionAPIServer)(nil),
	Methods: []grpc.MethodDesc{
		handler(MethodListDomains, DecisionAPIServer.ListDomains),
		handler(MethodDescribeDomain, DecisionAPIServer.DescribeDomain),
		handler(MethodNewCondition, DecisionAPIServer.NewCondition),
		handler(MethodValidateTree, DecisionAPIServer.ValidateTree),
		handler(MethodEvaluateTree, DecisionAPIServer.EvaluateTree),
		handler(MethodSaveTree, DecisionAPIServer.SaveTree),
		handler(MethodGetTree, DecisionAPIServer.GetTree),
		handler(MethodListTrees, DecisionAPIServer.ListTrees),
		handler(MethodDeleteTree, DecisionAPIServer.DeleteTree),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "decisionkeeper/v1/decision_api.proto",
}

// RegisterDecisionAPIServer registers srv on s.
func RegisterDecisionAPIServer(s grpc.ServiceRegistrar, srv DecisionAPIServer) {
	s.RegisterService(&DecisionAPIServiceDesc, srv)
}

// Client calls the decision API over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req and returns the response struct.
func (c *Client) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
