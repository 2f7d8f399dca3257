package rpc

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/alfredjeanlab/trackd/internal/model"
)

type fakeServer struct {
	gotLinks model.DesiredLinks
}

func (f *fakeServer) Health(context.Context, *HealthRequest) (*HealthResponse, error) {
	return &HealthResponse{Status: "ok"}, nil
}

func (f *fakeServer) GetTicket(_ context.Context, req *GetTicketRequest) (*TicketResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	return &TicketResponse{Ticket: &model.Ticket{ID: req.ID, DisplayID: "TICKET-1"}}, nil
}

func (f *fakeServer) SetLinks(_ context.Context, req *SetLinksRequest) (*TicketResponse, error) {
	f.gotLinks = req.Links
	return &TicketResponse{Ticket: &model.Ticket{ID: req.TicketID}}, nil
}

func (f *fakeServer) AddComment(_ context.Context, req *AddCommentRequest) (*CommentResponse, error) {
	return &CommentResponse{Comment: &model.Comment{ID: "cm-1", TicketID: req.TicketID, Content: req.Content}}, nil
}

func (f *fakeServer) ListNotifications(_ context.Context, req *ListNotificationsRequest) (*ListNotificationsResponse, error) {
	return &ListNotificationsResponse{Notifications: []*model.Notification{{ID: "nt-1", UserID: req.UserID}}}, nil
}

// dial starts an in-memory gRPC server for srv and returns a connected client.
func dial(t *testing.T, srv TrackdServer, opts ...grpc.ServerOption) *TrackdClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(append([]grpc.ServerOption{grpc.ForceServerCodec(Codec{})}, opts...)...)
	RegisterTrackdServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewTrackdClient(conn)
}

func TestRoundTrip(t *testing.T) {
	fake := &fakeServer{}
	c := dial(t, fake)
	ctx := context.Background()

	h, err := c.Health(ctx, &HealthRequest{})
	if err != nil || h.Status != "ok" {
		t.Fatalf("Health = %v, %v", h, err)
	}

	tk, err := c.GetTicket(ctx, &GetTicketRequest{ID: "tk-1"})
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if tk.Ticket.DisplayID != "TICKET-1" {
		t.Errorf("display id = %q", tk.Ticket.DisplayID)
	}

	if _, err := c.SetLinks(ctx, &SetLinksRequest{TicketID: "tk-1", Links: model.DesiredLinks{"tk-2": "5"}}); err != nil {
		t.Fatalf("SetLinks: %v", err)
	}
	if fake.gotLinks["tk-2"] != "5" {
		t.Errorf("server saw links %v", fake.gotLinks)
	}

	cm, err := c.AddComment(ctx, &AddCommentRequest{TicketID: "tk-1", Content: "hi"})
	if err != nil || cm.Comment.Content != "hi" {
		t.Fatalf("AddComment = %v, %v", cm, err)
	}

	ns, err := c.ListNotifications(ctx, &ListNotificationsRequest{UserID: "us-1"})
	if err != nil || len(ns.Notifications) != 1 || ns.Notifications[0].UserID != "us-1" {
		t.Fatalf("ListNotifications = %v, %v", ns, err)
	}
}

func TestStatusErrorsPropagate(t *testing.T) {
	c := dial(t, &fakeServer{})
	_, err := c.GetTicket(context.Background(), &GetTicketRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestInterceptorSeesFullMethod(t *testing.T) {
	var seen []string
	c := dial(t, &fakeServer{}, grpc.UnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		seen = append(seen, info.FullMethod)
		return handler(ctx, req)
	}))
	if _, err := c.Health(context.Background(), &HealthRequest{}); err != nil {
		t.Fatalf("Health: %v", err)
	}
	if len(seen) != 1 || seen[0] != "/trackd.v1.Trackd/Health" {
		t.Fatalf("interceptor saw %v", seen)
	}
}
