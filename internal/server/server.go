package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/trackd/internal/events"
	"github.com/alfredjeanlab/trackd/internal/linkgraph"
	"github.com/alfredjeanlab/trackd/internal/mention"
	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/notify"
	"github.com/alfredjeanlab/trackd/internal/presence"
	"github.com/alfredjeanlab/trackd/internal/store"
)

// TrackerServer serves the trackd API over HTTP and gRPC.
type TrackerServer struct {
	store     store.Store
	publisher events.Publisher
	sseHub    *sseHub
	notifier  *notify.Service
	locks     *linkgraph.Locks
	links     *linkgraph.Maintainer
	Presence  *presence.Tracker
}

// NewTrackerServer returns a new TrackerServer backed by the given store and publisher.
func NewTrackerServer(s store.Store, p events.Publisher) *TrackerServer {
	hub := newSSEHub()
	locks := linkgraph.NewLocks()
	return &TrackerServer{
		store:     s,
		publisher: p,
		sseHub:    hub,
		notifier:  notify.New(s, p, hub),
		locks:     locks,
		links:     linkgraph.NewMaintainer(s, locks),
		Presence:  presence.New(),
	}
}

// recordAndPublish persists an event to the store and publishes it to NATS.
// Both operations are best-effort; failures are logged but do not block the caller.
// Events without a ticket are published but not recorded.
func (s *TrackerServer) recordAndPublish(ctx context.Context, topic, ticketID, actor string, event any) {
	if ticketID != "" {
		payload, err := json.Marshal(event)
		if err != nil {
			slog.Warn("failed to marshal event", "topic", topic, "ticket_id", ticketID, "error", err)
			return
		}
		if err := s.store.RecordEvent(ctx, &model.Event{
			Topic:    topic,
			TicketID: ticketID,
			Actor:    actor,
			Payload:  payload,
		}); err != nil {
			slog.Warn("failed to record event", "topic", topic, "ticket_id", ticketID, "error", err)
		}
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "ticket_id", ticketID, "error", err)
	}
	s.broadcastEvent(topic, event)
}

// resolver returns a mention resolver reading through st, scoped to scope.
// Notifications go to notifier, which may be nil.
func resolver(st store.Store, scope model.Scope, notifier mention.Notifier) *mention.Resolver {
	return mention.New(mention.ScopedLookup{Finder: st, Scope: scope}, notifier)
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// forbiddenError rejects an actor acting on something they do not own.
// Transport layers map this to 403 / PermissionDenied.
type forbiddenError string

func (e forbiddenError) Error() string { return string(e) }

// requireActor rejects mutating requests that carry no acting user.
func requireActor(actor string) error {
	if actor == "" {
		return inputError("acting user is required (" + ActorHeader + ")")
	}
	return nil
}

// inScope reports whether the resource scope matches the requested scope.
// An empty requested project matches anything (gRPC callers address
// tickets by id alone).
func inScope(got, want model.Scope) bool {
	if want.ProjectID == "" {
		return true
	}
	return got.ProjectID == want.ProjectID && (want.TeamID == "" || got.TeamID == want.TeamID)
}

// grpcError maps a service error to a gRPC status.
func grpcError(err error, entity string) error {
	if err == nil {
		return nil
	}
	var ie inputError
	if errors.As(err, &ie) {
		return status.Error(codes.InvalidArgument, ie.Error())
	}
	var fe forbiddenError
	if errors.As(err, &fe) {
		return status.Error(codes.PermissionDenied, fe.Error())
	}
	if errors.Is(err, store.ErrNotFound) {
		return status.Errorf(codes.NotFound, "%s not found", entity)
	}
	return status.Errorf(codes.Internal, "%v", err)
}
