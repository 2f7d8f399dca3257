package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/trackd/internal/events"
	"github.com/alfredjeanlab/trackd/internal/model"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"inbox"},
	Short:   "List your notifications",
	GroupID: "collab",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if user == "" {
			return fmt.Errorf("--user is required")
		}
		unread, _ := cmd.Flags().GetBool("unread")
		ns, err := trackdClient.ListNotifications(context.Background(), unread)
		if err != nil {
			return fmt.Errorf("listing notifications: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), ns)
		}
		printNotifications(cmd.OutOrStdout(), ns)
		return nil
	},
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <id>...",
	Short: "Mark notifications as read",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			if err := trackdClient.MarkNotificationRead(context.Background(), id); err != nil {
				return fmt.Errorf("marking %s read: %w", id, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d marked read\n", len(args))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream new notifications as they arrive",
	GroupID: "collab",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if user == "" {
			return fmt.Errorf("--user is required")
		}
		interval, _ := cmd.Flags().GetDuration("interval")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		w := cmd.OutOrStdout()
		seen := make(map[string]bool)
		if err := pollNotifications(ctx, w, seen); err != nil {
			return err
		}

		if natsURL := envOr("TRACKD_NATS_URL", activeRemote().NATSURL, ""); natsURL != "" {
			return watchNATS(ctx, w, natsURL, seen)
		}
		return watchPoll(ctx, w, interval, seen)
	},
}

// watchNATS prints notifications published on the user's subject. A
// reconnect triggers a re-query so nothing sent while disconnected is lost.
func watchNATS(ctx context.Context, w io.Writer, natsURL string, seen map[string]bool) error {
	reconnectCh := make(chan struct{}, 1)
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
			select {
			case reconnectCh <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(events.NotificationTopic(user))
	if err != nil {
		return fmt.Errorf("subscribing to notifications: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			var msg events.NotificationCreated
			if err := json.Unmarshal(data, &msg); err != nil || msg.Notification == nil {
				log.Printf("watch: dropping malformed notification: %v", err)
				continue
			}
			printNew(w, []*model.Notification{msg.Notification}, seen)
		case <-reconnectCh:
			if err := pollNotifications(ctx, w, seen); err != nil {
				return err
			}
		}
	}
}

func watchPoll(ctx context.Context, w io.Writer, interval time.Duration, seen map[string]bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
		if err := pollNotifications(ctx, w, seen); err != nil {
			return err
		}
	}
}

func pollNotifications(ctx context.Context, w io.Writer, seen map[string]bool) error {
	ns, err := trackdClient.ListNotifications(ctx, true)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("listing notifications: %w", err)
	}
	printNew(w, ns, seen)
	return nil
}

// printNew prints the notifications not already in seen and records them.
func printNew(w io.Writer, ns []*model.Notification, seen map[string]bool) {
	fresh := diffNotifications(ns, seen)
	if len(fresh) == 0 {
		return
	}
	if jsonOutput {
		for _, n := range fresh {
			data, _ := json.Marshal(n)
			fmt.Fprintln(w, string(data))
		}
		return
	}
	printNotifications(w, fresh)
}

func diffNotifications(ns []*model.Notification, seen map[string]bool) []*model.Notification {
	var fresh []*model.Notification
	for _, n := range ns {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		fresh = append(fresh, n)
	}
	return fresh
}

func init() {
	notificationsCmd.Flags().Bool("unread", false, "only unread notifications")
	notificationsCmd.AddCommand(notificationsReadCmd)

	watchCmd.Flags().Duration("interval", 5*time.Second, "polling interval when NATS is not configured")
}
