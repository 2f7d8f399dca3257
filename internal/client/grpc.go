package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/rpc"
)

// GRPCClient implements Client using the gRPC transport. The gRPC service
// covers reads, links, comments and notifications; the remaining calls
// return ErrUnsupported.
type GRPCClient struct {
	conn   *grpc.ClientConn
	client *rpc.TrackdClient
	actor  string
}

var _ Client = (*GRPCClient)(nil)

// NewGRPCClient connects to the given gRPC address and returns a client
// acting as actor. A non-empty token is sent as a bearer token on every call.
func NewGRPCClient(addr, token, actor string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rpc.Codec{})),
		grpc.WithUnaryInterceptor(bearerToken(token)),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{
		conn:   conn,
		client: rpc.NewTrackdClient(conn),
		actor:  actor,
	}, nil
}

// bearerToken attaches the authorization metadata the server's auth
// interceptor checks.
func bearerToken(token string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if token != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func unsupported(op string) error {
	return fmt.Errorf("grpc %s: %w", op, ErrUnsupported)
}

// --- Tickets ---

func (c *GRPCClient) CreateTicket(context.Context, model.Scope, *CreateTicketRequest) (*model.Ticket, error) {
	return nil, unsupported("create ticket")
}

func (c *GRPCClient) GetTicket(ctx context.Context, _ model.Scope, id string, render bool) (*model.Ticket, error) {
	resp, err := c.client.GetTicket(ctx, &rpc.GetTicketRequest{ID: id, Render: render})
	if err != nil {
		return nil, err
	}
	return resp.Ticket, nil
}

func (c *GRPCClient) ListTickets(context.Context, model.Scope, *ListTicketsRequest) (*ListTicketsResponse, error) {
	return nil, unsupported("list tickets")
}

func (c *GRPCClient) UpdateTicket(context.Context, model.Scope, string, *UpdateTicketRequest) (*model.Ticket, error) {
	return nil, unsupported("update ticket")
}

func (c *GRPCClient) DeleteTicket(context.Context, model.Scope, string) error {
	return unsupported("delete ticket")
}

// --- Links ---

func (c *GRPCClient) SetLinks(ctx context.Context, _ model.Scope, id string, links model.DesiredLinks) (*model.Ticket, error) {
	resp, err := c.client.SetLinks(ctx, &rpc.SetLinksRequest{TicketID: id, Actor: c.actor, Links: links})
	if err != nil {
		return nil, err
	}
	return resp.Ticket, nil
}

// --- Comments ---

func (c *GRPCClient) AddComment(ctx context.Context, _ model.Scope, ticketID, content string) (*model.Comment, error) {
	resp, err := c.client.AddComment(ctx, &rpc.AddCommentRequest{TicketID: ticketID, Author: c.actor, Content: content})
	if err != nil {
		return nil, err
	}
	return resp.Comment, nil
}

func (c *GRPCClient) ListComments(context.Context, model.Scope, string, bool) ([]*model.Comment, error) {
	return nil, unsupported("list comments")
}

func (c *GRPCClient) GetEvents(context.Context, string) ([]*model.Event, error) {
	return nil, unsupported("get events")
}

// --- Notifications ---

func (c *GRPCClient) ListNotifications(ctx context.Context, unreadOnly bool) ([]*model.Notification, error) {
	resp, err := c.client.ListNotifications(ctx, &rpc.ListNotificationsRequest{UserID: c.actor, UnreadOnly: unreadOnly})
	if err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

func (c *GRPCClient) MarkNotificationRead(context.Context, string) error {
	return unsupported("mark notification read")
}

// --- Health ---

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp, err := c.client.Health(ctx, &rpc.HealthRequest{})
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}
