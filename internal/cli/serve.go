package cli

import (
	"github.com/spf13/cobra"

	"github.com/gmlewis/scenerender/internal/server"
)

func (c *CLI) serveCommand() *cobra.Command {
	addr := "localhost:8080"
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve render requests over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := c.startApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()
			return server.NewFromApp(app, commandLogger(ctx)).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", addr, "listen address")
	return cmd
}
