// Package rpc serves read-only session lookups over gRPC. Messages are the
// protobuf well-known types, so no generated code is needed: the request is a
// StringValue holding the session id and the response is the session record
// as a Struct with the same fields as the HTTP metrics document.
package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/banshee-data/barvelocity/internal/db"
)

const (
	ServiceName      = "barvelocity.v1.SessionService"
	getSessionMethod = "/" + ServiceName + "/GetSession"
)

// SessionStore is the subset of the session store the service reads.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*db.SessionRecord, error)
}

// SessionServiceServer is the server API for SessionService.
type SessionServiceServer interface {
	GetSession(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

var _ SessionServiceServer = (*Server)(nil)

// Server implements SessionServiceServer on top of a SessionStore.
type Server struct {
	store SessionStore
}

func NewServer(store SessionStore) *Server {
	return &Server{store: store}
}

// GetSession returns the stored record for req. Absent and malformed ids
// both map to NotFound.
func (s *Server) GetSession(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	rec, err := s.store.GetSession(ctx, req.GetValue())
	if errors.Is(err, db.ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "session %q not found", req.GetValue())
	}
	if err != nil {
		return nil, status.Error(codes.Internal, "lookup failed")
	}
	out, err := recordToStruct(rec)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode failed")
	}
	return out, nil
}

func recordToStruct(rec *db.SessionRecord) (*structpb.Struct, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// ServiceDesc describes SessionService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSession", Handler: getSessionHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "barvelocity/v1/session.proto",
}

func getSessionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).GetSession(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getSessionMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SessionServiceServer).GetSession(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterService registers srv with the gRPC server.
func RegisterService(gs grpc.ServiceRegistrar, srv SessionServiceServer) {
	gs.RegisterService(&ServiceDesc, srv)
}

// Client calls SessionService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// GetSession fetches the record for id.
func (c *Client) GetSession(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getSessionMethod, wrapperspb.String(id), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
