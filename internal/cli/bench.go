package cli

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type benchOpts struct {
	key      string
	callers  int
	requests int
}

func (c *CLI) benchCommand() *cobra.Command {
	opts := benchOpts{callers: 4, requests: 25}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Render from many concurrent callers and report throughput",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBench(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.key, "key", "", "worker key (default from config)")
	cmd.Flags().IntVar(&opts.callers, "callers", opts.callers, "concurrent callers")
	cmd.Flags().IntVar(&opts.requests, "requests", opts.requests, "requests per caller")
	return cmd
}

func (c *CLI) runBench(ctx context.Context, opts benchOpts) error {
	if opts.callers < 1 || opts.requests < 1 {
		return fmt.Errorf("--callers and --requests must be positive")
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

	logger := commandLogger(ctx)
	want := app.Config.Width * app.Config.Height * 4
	var bytes atomic.Int64
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for caller := range opts.callers {
		g.Go(func() error {
			for i := range opts.requests {
				x := float64((caller*opts.requests + i) % app.Config.Width)
				data, err := app.Client.RenderScene(ctx, key, x, 0)
				if err != nil {
					return err
				}
				if len(data) != want {
					return fmt.Errorf("caller %d: got %d bytes, want %d", caller, len(data), want)
				}
				bytes.Add(int64(len(data)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	total := opts.callers * opts.requests
	logger.Info("bench complete",
		"frames", total,
		"elapsed", elapsed.Round(time.Millisecond),
		"fps", fmt.Sprintf("%.1f", float64(total)/elapsed.Seconds()),
		"MiB", bytes.Load()>>20)
	for _, w := range app.Registry.Workers() {
		logger.Info("worker", "key", w.Key, "served", w.Stats.Served, "failed", w.Stats.Failed, "dropped", w.Stats.Dropped)
	}
	return nil
}
