// Package rpc declares the trackd.v1.Trackd gRPC service by hand. Messages
// are plain Go structs carried by a JSON codec, so no protobuf code
// generation is involved.
package rpc

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"

	"github.com/alfredjeanlab/trackd/internal/model"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "trackd.v1.Trackd"

// Method names.
const (
	MethodHealth            = "Health"
	MethodGetTicket         = "GetTicket"
	MethodSetLinks          = "SetLinks"
	MethodAddComment        = "AddComment"
	MethodListNotifications = "ListNotifications"
)

// FullMethod returns the "/service/method" path used on the wire.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Codec marshals messages as JSON. It is forced on both ends of the
// connection, so the content-subtype never has to be negotiated.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (Codec) Name() string                       { return "json" }

type HealthRequest struct{}

type HealthResponse struct {
	Status string `json:"status"`
}

type GetTicketRequest struct {
	ID string `json:"id"`
	// Render adds the display form of the description.
	Render bool `json:"render,omitempty"`
}

type TicketResponse struct {
	Ticket *model.Ticket `json:"ticket"`
}

type SetLinksRequest struct {
	TicketID string             `json:"ticket_id"`
	Actor    string             `json:"actor"`
	Links    model.DesiredLinks `json:"links"`
}

type AddCommentRequest struct {
	TicketID string `json:"ticket_id"`
	Author   string `json:"author"`
	Content  string `json:"content"`
}

type CommentResponse struct {
	Comment *model.Comment `json:"comment"`
}

type ListNotificationsRequest struct {
	UserID     string `json:"user_id"`
	UnreadOnly bool   `json:"unread_only,omitempty"`
}

type ListNotificationsResponse struct {
	Notifications []*model.Notification `json:"notifications"`
}

// TrackdServer is the server API for the Trackd service.
type TrackdServer interface {
	Health(context.Context, *HealthRequest) (*HealthResponse, error)
	GetTicket(context.Context, *GetTicketRequest) (*TicketResponse, error)
	SetLinks(context.Context, *SetLinksRequest) (*TicketResponse, error)
	AddComment(context.Context, *AddCommentRequest) (*CommentResponse, error)
	ListNotifications(context.Context, *ListNotificationsRequest) (*ListNotificationsResponse, error)
}

// ServiceDesc describes the Trackd service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TrackdServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodHealth, TrackdServer.Health),
		unary(MethodGetTicket, TrackdServer.GetTicket),
		unary(MethodSetLinks, TrackdServer.SetLinks),
		unary(MethodAddComment, TrackdServer.AddComment),
		unary(MethodListNotifications, TrackdServer.ListNotifications),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trackd/v1/trackd",
}

// RegisterTrackdServer registers srv on s.
func RegisterTrackdServer(s grpc.ServiceRegistrar, srv TrackdServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary builds the method descriptor for one request/response RPC.
func unary[Req, Resp any](name string, call func(TrackdServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TrackdServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(TrackdServer), ctx, req.(*Req))
			})
		},
	}
}

// TrackdClient is the client API for the Trackd service.
type TrackdClient struct {
	cc grpc.ClientConnInterface
}

// NewTrackdClient wraps a connection. The connection must use Codec, e.g.
// via grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})).
func NewTrackdClient(cc grpc.ClientConnInterface) *TrackdClient {
	return &TrackdClient{cc: cc}
}

func (c *TrackdClient) Health(ctx context.Context, in *HealthRequest, opts ...grpc.CallOption) (*HealthResponse, error) {
	out := new(HealthResponse)
	if err := c.cc.Invoke(ctx, FullMethod(MethodHealth), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TrackdClient) GetTicket(ctx context.Context, in *GetTicketRequest, opts ...grpc.CallOption) (*TicketResponse, error) {
	out := new(TicketResponse)
	if err := c.cc.Invoke(ctx, FullMethod(MethodGetTicket), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TrackdClient) SetLinks(ctx context.Context, in *SetLinksRequest, opts ...grpc.CallOption) (*TicketResponse, error) {
	out := new(TicketResponse)
	if err := c.cc.Invoke(ctx, FullMethod(MethodSetLinks), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TrackdClient) AddComment(ctx context.Context, in *AddCommentRequest, opts ...grpc.CallOption) (*CommentResponse, error) {
	out := new(CommentResponse)
	if err := c.cc.Invoke(ctx, FullMethod(MethodAddComment), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TrackdClient) ListNotifications(ctx context.Context, in *ListNotificationsRequest, opts ...grpc.CallOption) (*ListNotificationsResponse, error) {
	out := new(ListNotificationsResponse)
	if err := c.cc.Invoke(ctx, FullMethod(MethodListNotifications), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
