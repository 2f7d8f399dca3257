package main

import (
	"fmt"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var remoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Manage named server remotes",
	GroupID: "system",
	// Remotes live in a local file; no server is needed.
	PersistentPreRunE: skipClient,
}

// remoteFields maps each `remote add` flag to the field it sets.
func remoteFields(r *Remote) map[string]*string {
	return map[string]*string{
		"grpc":    &r.GRPCAddr,
		"token":   &r.Token,
		"nats":    &r.NATSURL,
		"user":    &r.User,
		"project": &r.Project,
		"team":    &r.Team,
	}
}

// lookup returns the named remote, or the active one when name is empty.
func (c RemotesConfig) lookup(name string) (string, Remote, error) {
	if name == "" {
		name = c.Active
	}
	if name == "" {
		return "", Remote{}, fmt.Errorf("no active remote; specify a name or run 'td remote use <name>'")
	}
	r, ok := c.Remotes[name]
	if !ok {
		return "", Remote{}, fmt.Errorf("remote %q not found", name)
	}
	return name, r, nil
}

// updateRemotes loads the remotes file, applies fn and saves the result.
// The message fn returns is printed on success.
func updateRemotes(cmd *cobra.Command, fn func(*RemotesConfig) (string, error)) error {
	cfg, err := loadRemotesConfig()
	if err != nil {
		return err
	}
	msg, err := fn(&cfg)
	if err != nil {
		return err
	}
	if err := saveRemotesConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add a named remote, or update an existing one",
	Long: `Add a named remote, or update an existing one.

Updating a remote replaces its URL and any field whose flag is given;
other fields keep their saved values.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, url := args[0], args[1]
		return updateRemotes(cmd, func(cfg *RemotesConfig) (string, error) {
			r, exists := cfg.Remotes[name]
			r.URL = url
			for flag, dst := range remoteFields(&r) {
				if cmd.Flags().Changed(flag) {
					*dst, _ = cmd.Flags().GetString(flag)
				}
			}
			cfg.Remotes[name] = r
			if exists {
				return fmt.Sprintf("remote %q updated (%s)", name, url), nil
			}
			return fmt.Sprintf("remote %q added (%s)", name, url), nil
		})
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a named remote",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateRemotes(cmd, func(cfg *RemotesConfig) (string, error) {
			name, _, err := cfg.lookup(args[0])
			if err != nil {
				return "", err
			}
			delete(cfg.Remotes, name)
			if cfg.Active == name {
				cfg.Active = ""
			}
			return fmt.Sprintf("remote %q removed", name), nil
		})
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateRemotes(cmd, func(cfg *RemotesConfig) (string, error) {
			name, _, err := cfg.lookup(args[0])
			if err != nil {
				return "", err
			}
			cfg.Active = name
			return fmt.Sprintf("active remote set to %q", name), nil
		})
	},
}

var remoteListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all remotes",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		if len(cfg.Remotes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no remotes configured")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tUSER\tPROJECT\tTOKEN")
		for _, name := range slices.Sorted(maps.Keys(cfg.Remotes)) {
			r := cfg.Remotes[name]
			marker := "  "
			if name == cfg.Active {
				marker = "* "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\n", marker, name, r.URL, r.User, r.Project, maskToken(r.Token, ""))
		}
		return w.Flush()
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show a remote (defaults to the active one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		var want string
		if len(args) == 1 {
			want = args[0]
		}
		name, r, err := cfg.lookup(want)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if name == cfg.Active {
			name += " (active)"
		}
		fmt.Fprintf(w, "name:\t%s\n", name)
		fmt.Fprintf(w, "url:\t%s\n", r.URL)
		for _, f := range [][2]string{
			{"grpc_addr", r.GRPCAddr},
			{"token", maskToken(r.Token, "*")},
			{"nats_url", r.NATSURL},
			{"user", r.User},
			{"project", r.Project},
			{"team", r.Team},
		} {
			if f[1] != "" {
				fmt.Fprintf(w, "%s:\t%s\n", f[0], f[1])
			}
		}
		return w.Flush()
	},
}

func init() {
	f := remoteAddCmd.Flags()
	f.String("grpc", "", "gRPC address for --transport grpc")
	f.String("token", "", "bearer token for authentication")
	f.String("nats", "", "NATS URL for td watch")
	f.String("user", "", "default acting user id")
	f.String("project", "", "default project id")
	f.String("team", "", "default team id")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteListCmd, remoteUseCmd, remoteShowCmd)
}
