package advisory

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
)

// #region service-desc
// The sidecar contract is a single unary RPC whose request and reply are
// google.protobuf.Struct, so no generated stubs are needed on either side.
const (
	advisoryServiceName = "narcan.advisory.v1.Advisory"
	adviseMethod        = "/" + advisoryServiceName + "/Advise"
)

// AdvisoryServer is implemented by a gRPC advisory sidecar.
type AdvisoryServer interface {
	Advise(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// RegisterAdvisoryServer registers srv on s.
func RegisterAdvisoryServer(s grpc.ServiceRegistrar, srv AdvisoryServer) {
	s.RegisterService(&advisoryServiceDesc, srv)
}

var advisoryServiceDesc = grpc.ServiceDesc{
	ServiceName: advisoryServiceName,
	HandlerType: (*AdvisoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Advise", Handler: adviseHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "narcan/advisory/v1/advisory.proto",
}

func adviseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdvisoryServer).Advise(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: adviseMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdvisoryServer).Advise(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion service-desc

// #region client
// GRPC calls an advisory sidecar.
type GRPC struct {
	conn   grpc.ClientConnInterface
	closer func() error
}

// NewGRPC dials target without transport security; the sidecar is expected
// on loopback.
func NewGRPC(target string) (*GRPC, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("advisory: grpc dial %s: %w", target, err)
	}
	return &GRPC{conn: conn, closer: conn.Close}, nil
}

// NewGRPCWithConn wraps an existing connection. Close does not close conn.
func NewGRPCWithConn(conn grpc.ClientConnInterface) *GRPC {
	return &GRPC{conn: conn}
}

// Advise performs one Advise RPC.
func (c *GRPC) Advise(ctx context.Context, req Request) (string, error) {
	in, err := EncodeRequest(req)
	if err != nil {
		return "", Permanent(err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, adviseMethod, in, out); err != nil {
		switch status.Code(err) {
		case codes.InvalidArgument, codes.Unimplemented, codes.PermissionDenied, codes.Unauthenticated:
			return "", Permanent(fmt.Errorf("advisory: grpc: %w", err))
		}
		return "", fmt.Errorf("advisory: grpc: %w", err)
	}
	text := strings.TrimSpace(out.GetFields()["advice"].GetStringValue())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Close closes the connection if this client opened it.
func (c *GRPC) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// #endregion client

// #region codec
// EncodeRequest converts a request to its wire Struct. The prompt is
// included so a sidecar can forward it verbatim.
func EncodeRequest(req Request) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]any{
		"location":   req.Location,
		"symptoms":   req.Symptoms,
		"cpu":        req.Sample.CPU,
		"memory":     req.Sample.Memory,
		"score":      req.Verdict.Score,
		"tier":       string(req.Verdict.Tier),
		"overridden": req.Verdict.Overridden,
		"prompt":     BuildPrompt(req),
	})
	if err != nil {
		return nil, fmt.Errorf("advisory: encode request: %w", err)
	}
	return s, nil
}

// DecodeRequest is the inverse of EncodeRequest.
func DecodeRequest(s *structpb.Struct) Request {
	f := s.GetFields()
	var req Request
	req.Location = f["location"].GetStringValue()
	req.Symptoms = f["symptoms"].GetStringValue()
	req.Sample.CPU = f["cpu"].GetNumberValue()
	req.Sample.Memory = f["memory"].GetNumberValue()
	req.Verdict.Score = f["score"].GetNumberValue()
	req.Verdict.Tier = urgency.Tier(f["tier"].GetStringValue())
	req.Verdict.Overridden = f["overridden"].GetBoolValue()
	return req
}

// ServeAdvisor adapts an Advisor to AdvisoryServer, so any backend can be
// exposed as a sidecar.
func ServeAdvisor(a Advisor) AdvisoryServer {
	return advisorServer{a: a}
}

type advisorServer struct{ a Advisor }

func (s advisorServer) Advise(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	text, err := s.a.Advise(ctx, DecodeRequest(in))
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	return structpb.NewStruct(map[string]any{"advice": text})
}

// #endregion codec
