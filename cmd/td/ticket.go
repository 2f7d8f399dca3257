package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/trackd/internal/client"
)

var ticketCmd = &cobra.Command{
	Use:     "ticket",
	Aliases: []string{"t"},
	Short:   "Create, inspect and change tickets",
	GroupID: "tickets",
}

var ticketCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a ticket in the current project and team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireScope(); err != nil {
			return err
		}
		f := cmd.Flags()
		req := &client.CreateTicketRequest{Title: args[0]}
		req.Description, _ = f.GetString("description")
		req.State, _ = f.GetString("state")
		req.Type, _ = f.GetString("type")
		req.Priority, _ = f.GetInt("priority")
		req.Points, _ = f.GetInt("points")
		req.Assignee, _ = f.GetString("assignee")
		req.Reporter, _ = f.GetString("reporter")
		req.Sprints, _ = f.GetStringSlice("sprints")
		req.Releases, _ = f.GetStringSlice("releases")
		req.Tags, _ = f.GetStringSlice("tags")

		t, err := trackdClient.CreateTicket(context.Background(), scope(), req)
		if err != nil {
			return fmt.Errorf("creating ticket: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), t)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", displayID(t))
		return nil
	},
}

var ticketShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a ticket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireScope(); err != nil {
			return err
		}
		render, _ := cmd.Flags().GetBool("render")
		t, err := trackdClient.GetTicket(context.Background(), scope(), args[0], render)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), t)
		}
		printTicket(cmd.OutOrStdout(), t)
		return nil
	},
}

var ticketListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tickets in the current project and team",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireScope(); err != nil {
			return err
		}
		f := cmd.Flags()
		req := &client.ListTicketsRequest{}
		req.State, _ = f.GetStringSlice("state")
		req.Type, _ = f.GetStringSlice("type")
		req.Assignee, _ = f.GetString("assignee")
		req.Sprint, _ = f.GetString("sprint")
		req.Release, _ = f.GetString("release")
		req.Tag, _ = f.GetString("tag")
		req.Search, _ = f.GetString("search")
		req.Sort, _ = f.GetString("sort")
		req.Deleted, _ = f.GetBool("deleted")
		req.Limit, _ = f.GetInt("limit")
		req.Offset, _ = f.GetInt("offset")

		resp, err := trackdClient.ListTickets(context.Background(), scope(), req)
		if err != nil {
			return fmt.Errorf("listing tickets: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		printTicketList(cmd.OutOrStdout(), resp.Tickets, resp.Total)
		return nil
	},
}

var ticketUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update ticket fields; only flags that are given change",
	Long: `Update ticket fields. Only flags present on the command line are sent.

Membership flags replace the whole list, so --sprints "" removes the ticket
from every sprint.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireScope(); err != nil {
			return err
		}
		req, err := updateRequestFromFlags(cmd)
		if err != nil {
			return err
		}
		t, err := trackdClient.UpdateTicket(context.Background(), scope(), args[0], req)
		if err != nil {
			return fmt.Errorf("updating ticket: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), t)
		}
		printTicket(cmd.OutOrStdout(), t)
		return nil
	},
}

// updateRequestFromFlags maps changed flags onto the pointer fields of an
// update request.
func updateRequestFromFlags(cmd *cobra.Command) (*client.UpdateTicketRequest, error) {
	f := cmd.Flags()
	req := &client.UpdateTicketRequest{}
	changed := 0
	for name, dst := range map[string]**string{
		"title":       &req.Title,
		"description": &req.Description,
		"state":       &req.State,
		"type":        &req.Type,
		"assignee":    &req.Assignee,
		"reporter":    &req.Reporter,
	} {
		if f.Changed(name) {
			v, _ := f.GetString(name)
			*dst = &v
			changed++
		}
	}
	for name, dst := range map[string]**int{
		"priority": &req.Priority,
		"points":   &req.Points,
	} {
		if f.Changed(name) {
			v, _ := f.GetInt(name)
			*dst = &v
			changed++
		}
	}
	for name, dst := range map[string]**[]string{
		"sprints":  &req.Sprints,
		"releases": &req.Releases,
		"tags":     &req.Tags,
	} {
		if f.Changed(name) {
			v, _ := f.GetStringSlice(name)
			if v == nil {
				v = []string{}
			}
			*dst = &v
			changed++
		}
	}
	if changed == 0 {
		return nil, fmt.Errorf("nothing to update; pass at least one field flag")
	}
	return req, nil
}

var ticketDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Soft-delete a ticket and drop its links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireScope(); err != nil {
			return err
		}
		if err := trackdClient.DeleteTicket(context.Background(), scope(), args[0]); err != nil {
			return fmt.Errorf("deleting ticket: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

var ticketEventsCmd = &cobra.Command{
	Use:   "events <ticket-id>",
	Short: "Show the change history of a ticket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		evs, err := trackdClient.GetEvents(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), evs)
		}
		printEvents(cmd.OutOrStdout(), evs)
		return nil
	},
}

// addTicketFieldFlags registers the editable ticket fields shared by create and update.
func addTicketFieldFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("description", "d", "", "ticket description (markdown)")
	f.String("state", "", "workflow state (new, ready, in_progress, code_review, qa, done)")
	f.StringP("type", "t", "", "ticket type (feature, bug, task, story)")
	f.IntP("priority", "p", 2, "priority 0 (highest) to 4")
	f.Int("points", 0, "story points")
	f.StringP("assignee", "a", "", "assignee user id")
	f.String("reporter", "", "reporter user id")
	f.StringSlice("sprints", nil, "sprint ids")
	f.StringSlice("releases", nil, "release ids")
	f.StringSlice("tags", nil, "tag ids")
}

func init() {
	addTicketFieldFlags(ticketCreateCmd)

	addTicketFieldFlags(ticketUpdateCmd)
	ticketUpdateCmd.Flags().String("title", "", "new title")

	ticketShowCmd.Flags().Bool("render", false, "render the description as sanitized HTML")

	lf := ticketListCmd.Flags()
	lf.StringSlice("state", nil, "filter by state (repeatable)")
	lf.StringSlice("type", nil, "filter by type (repeatable)")
	lf.String("assignee", "", "filter by assignee")
	lf.String("sprint", "", "filter by sprint id")
	lf.String("release", "", "filter by release id")
	lf.String("tag", "", "filter by tag id")
	lf.StringP("search", "s", "", "search title and description")
	lf.String("sort", "", "sort field, \"-\" prefix for descending (e.g. -priority)")
	lf.Bool("deleted", false, "include soft-deleted tickets")
	lf.Int("limit", 50, "maximum number of tickets")
	lf.Int("offset", 0, "number of tickets to skip")

	ticketCmd.AddCommand(ticketCreateCmd)
	ticketCmd.AddCommand(ticketShowCmd)
	ticketCmd.AddCommand(ticketListCmd)
	ticketCmd.AddCommand(ticketUpdateCmd)
	ticketCmd.AddCommand(ticketDeleteCmd)
	ticketCmd.AddCommand(ticketEventsCmd)
}
