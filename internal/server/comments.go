package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/trackd/internal/events"
	"github.com/alfredjeanlab/trackd/internal/idgen"
	"github.com/alfredjeanlab/trackd/internal/mention"
	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/notify"
	"github.com/alfredjeanlab/trackd/internal/store"
)

// commentSource describes a comment on t for mention notifications.
func commentSource(t *model.Ticket, commentID string) mention.Source {
	return mention.Source{
		TicketID:  t.ID,
		CommentID: commentID,
		Label:     "a comment on " + t.DisplayID,
		Link:      mention.TicketPath(t) + "#" + commentID,
	}
}

// addComment canonicalizes content, stores the comment and notifies the
// users it mentions once the write has succeeded.
func (s *TrackerServer) addComment(ctx context.Context, actor string, scope model.Scope, ticketID, content string) (*model.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, inputError("content is required")
	}
	t, err := s.getTicket(ctx, scope, ticketID, false)
	if err != nil {
		return nil, err
	}

	id, err := idgen.GenerateWithPrefix(idgen.PrefixComment)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ID: %w", err)
	}
	queue := &notify.Queue{}
	now := time.Now().UTC()
	c := &model.Comment{
		ID:        id,
		TicketID:  t.ID,
		TeamID:    t.TeamID,
		ProjectID: t.ProjectID,
		Author:    actor,
		Content:   resolver(s.store, t.Scope(), queue).Canonicalize(ctx, content, actor, commentSource(t, id)),
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.AddComment(ctx, c); err != nil {
		queue.Discard()
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	queue.Flush(ctx, s.notifier)

	s.recordAndPublish(ctx, events.TopicCommentAdded, t.ID, actor, events.CommentAdded{Comment: c})
	return c, nil
}

// updateComment replaces the content of the actor's own comment. Mentions
// in the new content notify again.
func (s *TrackerServer) updateComment(ctx context.Context, actor string, scope model.Scope, ticketID, commentID, content string) (*model.Comment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, inputError("content is required")
	}
	t, c, err := s.ownComment(ctx, actor, scope, ticketID, commentID)
	if err != nil {
		return nil, err
	}

	queue := &notify.Queue{}
	c.Content = resolver(s.store, t.Scope(), queue).Canonicalize(ctx, content, actor, commentSource(t, c.ID))
	c.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateComment(ctx, c); err != nil {
		queue.Discard()
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	queue.Flush(ctx, s.notifier)

	s.recordAndPublish(ctx, events.TopicCommentUpdated, t.ID, actor, events.CommentUpdated{Comment: c})
	return c, nil
}

// deleteComment soft-deletes the actor's own comment.
func (s *TrackerServer) deleteComment(ctx context.Context, actor string, scope model.Scope, ticketID, commentID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	t, c, err := s.ownComment(ctx, actor, scope, ticketID, commentID)
	if err != nil {
		return err
	}
	c.Status = model.StatusDeleted
	c.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateComment(ctx, c); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	s.recordAndPublish(ctx, events.TopicCommentDeleted, t.ID, actor, events.CommentDeleted{CommentID: c.ID, TicketID: t.ID})
	return nil
}

// ownComment loads an active comment on ticketID and checks that actor
// wrote it.
func (s *TrackerServer) ownComment(ctx context.Context, actor string, scope model.Scope, ticketID, commentID string) (*model.Ticket, *model.Comment, error) {
	t, err := s.getTicket(ctx, scope, ticketID, false)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, nil, err
	}
	if c.TicketID != t.ID || c.Status != model.StatusActive {
		return nil, nil, fmt.Errorf("comment %s: %w", commentID, store.ErrNotFound)
	}
	if c.Author != actor {
		return nil, nil, forbiddenError("only the author can change a comment")
	}
	return t, c, nil
}

// listComments returns the active comments on a ticket, oldest first.
func (s *TrackerServer) listComments(ctx context.Context, scope model.Scope, ticketID string, render bool) ([]*model.Comment, error) {
	t, err := s.getTicket(ctx, scope, ticketID, false)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListComments(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	out := make([]*model.Comment, 0, len(all))
	var r *mention.Resolver
	if render {
		r = resolver(s.store, t.Scope(), nil)
	}
	for _, c := range all {
		if c.Status != model.StatusActive {
			continue
		}
		if r != nil {
			c.ContentHTML = r.Render(ctx, c.Content, nil)
		}
		out = append(out, c)
	}
	return out, nil
}
