package server

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/trackd/internal/model"
)

func (s *TrackerServer) listNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*model.Notification, error) {
	if err := requireActor(userID); err != nil {
		return nil, err
	}
	ns, err := s.store.ListNotifications(ctx, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	if ns == nil {
		ns = []*model.Notification{}
	}
	return ns, nil
}

func (s *TrackerServer) markNotificationRead(ctx context.Context, userID, id string) error {
	if err := requireActor(userID); err != nil {
		return err
	}
	return s.store.MarkNotificationRead(ctx, userID, id)
}
