// Package cli defines the cobra command tree for visitctl.
package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/sharath018/field-visit-backend/internal/client"
	"github.com/sharath018/field-visit-backend/internal/visit"
)

const defaultServerURL = "http://localhost:8080"

var (
	flagFormat string
	flagServer string
	flagToken  string
)

// NewRootCmd creates the root command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "visitctl",
		Short:         "Manage district field inspection visits",
		Long:          "List, create, submit, review and repost field inspection visits against a field visit API server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format (text|json)")
	root.PersistentFlags().StringVar(&flagServer, "server", "", "API base URL (default $VISIT_API_URL or "+defaultServerURL+")")
	root.PersistentFlags().StringVar(&flagToken, "token", "", "bearer token (default $VISIT_API_TOKEN)")

	root.AddCommand(
		newListCmd(),
		newOverdueCmd(),
		newGetCmd(),
		newCountsCmd(),
		newCreateCmd(),
		newSubmitCmd(),
		newApproveCmd(),
		newRejectCmd(),
		newRepostCmd(),
		newRequestRepostCmd(),
		newVerifyCmd(),
		newExportCmd(),
	)
	return root
}

func getServerURL() string {
	if flagServer != "" {
		return flagServer
	}
	if env := os.Getenv("VISIT_API_URL"); env != "" {
		return env
	}
	return defaultServerURL
}

func getToken() string {
	if flagToken != "" {
		return flagToken
	}
	return os.Getenv("VISIT_API_TOKEN")
}

func newAPIClient() *client.Client {
	return client.New(getServerURL(), getToken())
}

func isJSON() bool {
	return flagFormat == "json"
}

// ExitCode distinguishes retryable failures (75, EX_TEMPFAIL) from the rest.
func ExitCode(err error) int {
	switch {
	case visit.IsRetryable(err):
		return 75
	case errors.Is(err, client.ErrUnauthenticated):
		return 77
	}
	return 1
}
