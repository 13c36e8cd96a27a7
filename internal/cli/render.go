package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gmlewis/scenerender/scene"
	"github.com/gmlewis/scenerender/service"
	"github.com/gmlewis/scenerender/sink"
)

type renderOpts struct {
	key    string  // worker key; empty means the configured default
	x, y   float64 // position of the first frame
	dx, dy float64 // offset between consecutive frames
	count  int     // number of frames
	out    string  // base output filename
	format string  // png or rgba
}

func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{count: 1, out: "frame", format: string(sink.PNG)}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the rounded rectangle at a position and write the frame(s)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.key, "key", "", "worker key (default from config)")
	cmd.Flags().Float64Var(&opts.x, "x", 0, "x position of the rectangle")
	cmd.Flags().Float64Var(&opts.y, "y", 0, "y position of the rectangle")
	cmd.Flags().Float64Var(&opts.dx, "dx", 10, "x step between frames")
	cmd.Flags().Float64Var(&opts.dy, "dy", 0, "y step between frames")
	cmd.Flags().IntVarP(&opts.count, "count", "n", opts.count, "number of frames")
	cmd.Flags().StringVarP(&opts.out, "out", "o", opts.out, "base output filename")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: png, rgba")
	return cmd
}

func (c *CLI) runRender(ctx context.Context, opts renderOpts) error {
	format, err := sink.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	app, err := c.startApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	key := opts.key
	if key == "" {
		key = app.Config.DefaultKey
	}
	positions := make([]scene.Point, max(opts.count, 1))
	for i := range positions {
		positions[i] = scene.Pt(opts.x+float64(i)*opts.dx, opts.y+float64(i)*opts.dy)
	}

	logger := commandLogger(ctx)
	sw := startStopwatch(logger)
	names, err := sink.Frames(ctx, opts.out, app.Client, positions, sink.Options{
		Key:    key,
		Width:  app.Config.Width,
		Height: app.Config.Height,
		Format: format,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	sw.stop("Rendered "+plural(len(names), "frame"), "key", key, "dir", filepath.Dir(opts.out))
	return nil
}

func (c *CLI) showcaseCommand() *cobra.Command {
	var (
		key, out string
		format   = string(sink.PNG)
	)
	cmd := &cobra.Command{
		Use:   "showcase",
		Short: "Render the demo scene with every shape kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := sink.ParseFormat(format)
			if err != nil {
				return err
			}
			app, err := c.startApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()
			if key == "" {
				key = app.Config.DefaultKey
			}

			data, err := app.Client.Render(cmd.Context(), key, service.ShowcaseCommand{})
			if err != nil {
				return err
			}
			filename := out + "." + string(f)
			commandLogger(cmd.Context()).Info("Writing", "file", filename)
			return sink.Write(filename, data, app.Config.Width, app.Config.Height, f)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "worker key (default from config)")
	cmd.Flags().StringVarP(&out, "out", "o", "showcase", "output filename without extension")
	cmd.Flags().StringVarP(&format, "format", "f", format, "output format: png, rgba")
	return cmd
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
