package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petal-labs/showroom/core"
)

func (a *App) newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is reachable",
		Long:  `Call the unauthenticated health endpoint. No API key is needed.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Health needs no credentials, so a placeholder identity is used
			// when none is configured.
			auth, err := core.NewAuthContext("-", "-")
			if err != nil {
				return err
			}
			opts := []core.ClientOption{core.WithUserAgent("showroom-cli/" + Version)}
			if base := a.resolveBaseURL(); base != "" {
				opts = append(opts, core.WithBaseURL(base))
			}
			c, err := core.NewClient(auth, append(opts, a.clientOptions...)...)
			if err != nil {
				return exitWithCode(ExitValidation, err)
			}

			status, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return a.printJSON(status)
			}
			fmt.Fprintf(a.stdout, "%s: %s\n", c.Config().BaseURL, status.Status)
			return nil
		},
	}
}
