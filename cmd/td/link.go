package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/trackd/internal/model"
)

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage links between tickets",
	Long: `Manage links between tickets.

Relations can be given by number or by name, e.g. "blocks", "blocked-by",
"child-of". The paired edge on the other ticket is maintained by the server.`,
	GroupID: "tickets",
}

// parseRelationArg accepts a relation number or its name with spaces,
// dashes or underscores between words.
func parseRelationArg(s string) (model.Relation, error) {
	if r, ok := model.ParseRelation(s); ok {
		return r, nil
	}
	norm := strings.NewReplacer("-", " ", "_", " ").Replace(strings.ToLower(strings.TrimSpace(s)))
	for _, r := range model.Relations() {
		if r.String() == norm {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown relation %q", s)
}

// currentLinks returns the ticket's resolved id and its links as a desired map.
func currentLinks(ctx context.Context, id string) (string, model.DesiredLinks, error) {
	t, err := trackdClient.GetTicket(ctx, scope(), id, false)
	if err != nil {
		return "", nil, err
	}
	return t.ID, linksToDesired(t.Links), nil
}

func linksToDesired(links []model.Link) model.DesiredLinks {
	d := make(model.DesiredLinks, len(links))
	for _, l := range links {
		d[l.TicketID] = strconv.Itoa(int(l.Relation))
	}
	return d
}

func applyLinks(cmd *cobra.Command, id string, desired model.DesiredLinks) error {
	t, err := trackdClient.SetLinks(context.Background(), scope(), id, desired)
	if err != nil {
		return fmt.Errorf("setting links: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), t.Links)
	}
	if len(t.Links) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s has no links\n", displayID(t))
		return nil
	}
	for _, l := range t.Links {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", displayID(t), l.Relation, l.TicketID)
	}
	return nil
}

var linkSetCmd = &cobra.Command{
	Use:   "set <id> [<other>=<relation>...]",
	Short: "Replace all links of a ticket",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireScope(); err != nil {
			return err
		}
		desired, err := parseLinkPairs(args[1:])
		if err != nil {
			return err
		}
		return applyLinks(cmd, args[0], desired)
	},
}

func parseLinkPairs(pairs []string) (model.DesiredLinks, error) {
	desired := make(model.DesiredLinks, len(pairs))
	for _, p := range pairs {
		other, rel, ok := strings.Cut(p, "=")
		if !ok || other == "" {
			return nil, fmt.Errorf("invalid link %q (want <other>=<relation>)", p)
		}
		r, err := parseRelationArg(rel)
		if err != nil {
			return nil, err
		}
		desired[other] = strconv.Itoa(int(r))
	}
	return desired, nil
}

var linkAddCmd = &cobra.Command{
	Use:   "add <id> <other> <relation>",
	Short: "Add or change one link, keeping the rest",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireScope(); err != nil {
			return err
		}
		r, err := parseRelationArg(args[2])
		if err != nil {
			return err
		}
		id, desired, err := currentLinks(context.Background(), args[0])
		if err != nil {
			return err
		}
		desired[args[1]] = strconv.Itoa(int(r))
		return applyLinks(cmd, id, desired)
	},
}

var linkRemoveCmd = &cobra.Command{
	Use:   "remove <id> <other>",
	Short: "Remove the link to one ticket",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireScope(); err != nil {
			return err
		}
		id, desired, err := currentLinks(context.Background(), args[0])
		if err != nil {
			return err
		}
		if _, ok := desired[args[1]]; !ok {
			return fmt.Errorf("%s is not linked to %s", args[0], args[1])
		}
		delete(desired, args[1])
		return applyLinks(cmd, id, desired)
	},
}

var linkClearCmd = &cobra.Command{
	Use:   "clear <id>",
	Short: "Remove every link of a ticket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireScope(); err != nil {
			return err
		}
		return applyLinks(cmd, args[0], model.DesiredLinks{})
	},
}

var linkRelationsCmd = &cobra.Command{
	Use:               "relations",
	Short:             "List relation names and numbers",
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipClient,
	Run: func(cmd *cobra.Command, args []string) {
		for _, r := range model.Relations() {
			fmt.Fprintf(cmd.OutOrStdout(), "%d  %s (pairs with %s)\n", r, r, r.Pair())
		}
	},
}

func init() {
	linkCmd.AddCommand(linkSetCmd)
	linkCmd.AddCommand(linkAddCmd)
	linkCmd.AddCommand(linkRemoveCmd)
	linkCmd.AddCommand(linkClearCmd)
	linkCmd.AddCommand(linkRelationsCmd)
}
