package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/rpc"
)

var _ rpc.TrackdServer = (*TrackerServer)(nil)

// NewGRPCServer creates a gRPC server with standard interceptors,
// registers the Trackd service and reflection, and returns the server ready
// to serve. A non-empty authToken enables bearer-token auth.
func NewGRPCServer(ts *TrackerServer, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ForceServerCodec(rpc.Codec{}),
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
		),
	)

	rpc.RegisterTrackdServer(srv, ts)
	reflection.Register(srv)

	return srv
}

// gRPC callers address tickets by id alone.
var anyScope = model.Scope{}

func (s *TrackerServer) Health(context.Context, *rpc.HealthRequest) (*rpc.HealthResponse, error) {
	return &rpc.HealthResponse{Status: "ok"}, nil
}

func (s *TrackerServer) GetTicket(ctx context.Context, req *rpc.GetTicketRequest) (*rpc.TicketResponse, error) {
	t, err := s.getTicket(ctx, anyScope, req.ID, req.Render)
	if err != nil {
		return nil, grpcError(err, "ticket")
	}
	return &rpc.TicketResponse{Ticket: t}, nil
}

func (s *TrackerServer) SetLinks(ctx context.Context, req *rpc.SetLinksRequest) (*rpc.TicketResponse, error) {
	t, err := s.setLinks(ctx, req.Actor, anyScope, req.TicketID, req.Links)
	if err != nil {
		return nil, grpcError(err, "ticket")
	}
	return &rpc.TicketResponse{Ticket: t}, nil
}

func (s *TrackerServer) AddComment(ctx context.Context, req *rpc.AddCommentRequest) (*rpc.CommentResponse, error) {
	c, err := s.addComment(ctx, req.Author, anyScope, req.TicketID, req.Content)
	if err != nil {
		return nil, grpcError(err, "ticket")
	}
	return &rpc.CommentResponse{Comment: c}, nil
}

func (s *TrackerServer) ListNotifications(ctx context.Context, req *rpc.ListNotificationsRequest) (*rpc.ListNotificationsResponse, error) {
	ns, err := s.listNotifications(ctx, req.UserID, req.UnreadOnly)
	if err != nil {
		return nil, grpcError(err, "user")
	}
	return &rpc.ListNotificationsResponse{Notifications: ns}, nil
}
