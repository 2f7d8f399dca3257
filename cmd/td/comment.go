package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:     "comment",
	Short:   "Add and list ticket comments",
	GroupID: "collab",
}

var commentAddCmd = &cobra.Command{
	Use:   "add <ticket-id> <text>...",
	Short: "Comment on a ticket; @username mentions notify that user",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireScope(); err != nil {
			return err
		}
		if user == "" {
			return fmt.Errorf("--user is required to comment")
		}
		c, err := trackdClient.AddComment(context.Background(), scope(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return fmt.Errorf("adding comment: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), c)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "comment %s added to %s\n", c.ID, args[0])
		return nil
	},
}

var commentListCmd = &cobra.Command{
	Use:   "list <ticket-id>",
	Short: "List comments on a ticket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireScope(); err != nil {
			return err
		}
		render, _ := cmd.Flags().GetBool("render")
		comments, err := trackdClient.ListComments(context.Background(), scope(), args[0], render)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), comments)
		}
		printComments(cmd.OutOrStdout(), comments)
		return nil
	},
}

func init() {
	commentListCmd.Flags().Bool("render", false, "render mentions and ticket references as HTML")

	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentListCmd)
}
