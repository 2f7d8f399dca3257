package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// displayID prefers the human-readable project key id when the ticket has one.
func displayID(t *model.Ticket) string {
	if t.DisplayID != "" {
		return t.DisplayID
	}
	return t.ID
}

func printTicket(w io.Writer, t *model.Ticket) {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s (%s)\n", displayID(t), t.ID)
	fmt.Fprintf(tw, "Title:\t%s\n", t.Title)
	fmt.Fprintf(tw, "State:\t%s\n", ui.RenderState(string(t.State)))
	fmt.Fprintf(tw, "Type:\t%s\n", t.Type)
	fmt.Fprintf(tw, "Priority:\t%s\n", ui.RenderPriority(t.Priority))
	if t.Points > 0 {
		fmt.Fprintf(tw, "Points:\t%d\n", t.Points)
	}
	fmt.Fprintf(tw, "Assignee:\t%s\n", t.Assignee)
	fmt.Fprintf(tw, "Reporter:\t%s\n", t.Reporter)
	for _, l := range []struct {
		label string
		ids   []string
	}{
		{"Sprints:", t.Sprints},
		{"Releases:", t.Releases},
		{"Tags:", t.Tags},
	} {
		if len(l.ids) > 0 {
			fmt.Fprintf(tw, "%s\t%s\n", l.label, strings.Join(l.ids, ", "))
		}
	}
	if t.Status == model.StatusDeleted {
		fmt.Fprintf(tw, "Status:\t%s\n", ui.RenderError(string(t.Status)))
	}
	if !t.CreatedAt.IsZero() {
		fmt.Fprintf(tw, "Created:\t%s\n", t.CreatedAt.Format(timeLayout))
	}
	if !t.UpdatedAt.IsZero() {
		fmt.Fprintf(tw, "Updated:\t%s\n", t.UpdatedAt.Format(timeLayout))
	}
	tw.Flush()

	if len(t.Links) > 0 {
		fmt.Fprintln(w, "\nLinks:")
		for _, l := range t.Links {
			fmt.Fprintf(w, "  %s %s\n", ui.RenderMuted(l.Relation.String()), l.TicketID)
		}
	}

	desc := t.Description
	if t.DescriptionHTML != "" {
		desc = t.DescriptionHTML
	}
	if desc != "" {
		fmt.Fprintf(w, "\n%s\n", desc)
	}
}

func printTicketList(w io.Writer, tickets []*model.Ticket, total int) {
	titleWidth := max(ui.TerminalWidth(120)-60, 20)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tTYPE\tPRI\tASSIGNEE\tTITLE")
	for _, t := range tickets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			displayID(t),
			ui.RenderState(string(t.State)),
			t.Type,
			ui.RenderPriority(t.Priority),
			t.Assignee,
			ui.Truncate(t.Title, titleWidth),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d tickets (%d total)\n", len(tickets), total)
}

func printComments(w io.Writer, comments []*model.Comment) {
	if len(comments) == 0 {
		fmt.Fprintln(w, "no comments")
		return
	}
	for i, c := range comments {
		if i > 0 {
			fmt.Fprintln(w)
		}
		body := c.Content
		if c.ContentHTML != "" {
			body = c.ContentHTML
		}
		fmt.Fprintf(w, "%s %s %s\n", ui.RenderAccent(c.Author), ui.RenderMuted(c.CreatedAt.Format(timeLayout)), ui.RenderMuted(c.ID))
		for _, line := range strings.Split(body, "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}

func printNotifications(w io.Writer, ns []*model.Notification) {
	if len(ns) == 0 {
		fmt.Fprintln(w, "no notifications")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tKIND\tFROM\tMESSAGE\tWHEN")
	for _, n := range ns {
		marker := "  "
		if !n.Read {
			marker = ui.RenderAccent("● ")
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%s\n", marker, n.ID, n.Kind, n.Actor, n.Message, n.CreatedAt.Format(timeLayout))
	}
	tw.Flush()
}

func printEvents(w io.Writer, evs []*model.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tTOPIC\tACTOR")
	for _, e := range evs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.CreatedAt.Format(timeLayout), e.Topic, e.Actor)
	}
	tw.Flush()
}
