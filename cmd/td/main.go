// Command td is the trackd CLI: it runs the server and talks to it over
// HTTP or gRPC.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/trackd/internal/client"
	"github.com/alfredjeanlab/trackd/internal/model"
	"github.com/alfredjeanlab/trackd/internal/ui"
)

var (
	serverAddr string
	httpURL    string
	transport  string
	jsonOutput bool
	noColor    bool
	user       string
	project    string
	team       string

	trackdClient client.Client
)

// envOr returns the first non-empty of the environment variable key and the
// active remote's value, falling back to def.
func envOr(key, remoteValue, def string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	if remoteValue != "" {
		return remoteValue
	}
	return def
}

func defaultHTTPURL() string {
	return envOr("TRACKD_HTTP_URL", activeRemote().URL, "http://localhost:8080")
}

func defaultServer() string {
	return envOr("TRACKD_SERVER", activeRemote().GRPCAddr, "localhost:9090")
}

func defaultToken() string {
	return envOr("TRACKD_TOKEN", activeRemote().Token, "")
}

// scope is the project/team the ticket commands address.
func scope() model.Scope {
	return model.Scope{ProjectID: project, TeamID: team}
}

// requireScope fails commands that need a project and team when either is unset.
func requireScope() error {
	if project == "" || team == "" {
		return fmt.Errorf("--project and --team are required (or set TRACKD_PROJECT/TRACKD_TEAM)")
	}
	return nil
}

var rootCmd = &cobra.Command{
	Use:           "td <command>",
	Short:         "CLI client for the trackd service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			ui.ForceNoColor()
		}
		switch transport {
		case "http":
			trackdClient = client.NewHTTPClient(httpURL, defaultToken(), user)
		case "grpc":
			c, err := client.NewGRPCClient(serverAddr, defaultToken(), user)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			trackdClient = c
		default:
			return fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if trackdClient != nil {
			trackdClient.Close()
		}
	},
}

// skipClient is a PersistentPreRunE for commands that never talk to a server.
func skipClient(*cobra.Command, []string) error { return nil }

func init() {
	r := activeRemote()
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&user, "user", envOr("TRACKD_USER", r.User, ""), "acting user id")
	rootCmd.PersistentFlags().StringVar(&project, "project", envOr("TRACKD_PROJECT", r.Project, ""), "project id for ticket commands")
	rootCmd.PersistentFlags().StringVar(&team, "team", envOr("TRACKD_TEAM", r.Team, ""), "team id for ticket commands")

	rootCmd.AddGroup(
		&cobra.Group{ID: "tickets", Title: "Tickets:"},
		&cobra.Group{ID: "collab", Title: "Collaboration:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Tickets
	rootCmd.AddCommand(ticketCmd)
	rootCmd.AddCommand(linkCmd)

	// Collaboration
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError("Error: ")+err.Error())
		os.Exit(1)
	}
}
