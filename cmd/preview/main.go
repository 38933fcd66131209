// Command preview renders timeline preview frames from a project snapshot.
//
// It is a diagnostic harness around preview.Renderer: render a frame to
// PNG, dump the GPU layer stack, warm the frame cache and inspect cache
// coverage.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli"

	"github.com/gogpu/preview"
	"github.com/gogpu/preview/timeline"
)

var app = cli.NewApp()

func init() {
	app.Name = "preview"
	app.Usage = "Render timeline preview frames"
	app.UsageText = "preview --project project.yaml [command] [options]"
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "project, p", Usage: "project snapshot (YAML)"},
		cli.StringFlag{Name: "config, c", Usage: "renderer config (YAML)"},
		cli.BoolFlag{Name: "verbose, v", Usage: "log per-frame diagnostics"},
	}
	app.Before = func(c *cli.Context) error {
		level := slog.LevelWarn
		if c.Bool("verbose") {
			level = slog.LevelDebug
		}
		preview.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	}

	timeFlag := cli.Float64Flag{Name: "time, t", Usage: "timeline position in seconds"}
	app.Commands = []cli.Command{
		{
			Name:    "render",
			Aliases: []string{"r"},
			Usage:   "Composite one frame and write it as PNG",
			Flags: []cli.Flag{
				timeFlag,
				cli.StringFlag{Name: "output, o", Value: "preview.png", Usage: "output file"},
			},
			Action: withRenderer(renderCmd),
		},
		{
			Name:    "layers",
			Aliases: []string{"l"},
			Usage:   "Print the GPU layer stack at a time",
			Flags:   []cli.Flag{timeFlag},
			Action:  withRenderer(layersCmd),
		},
		{
			Name:    "warm",
			Aliases: []string{"w"},
			Usage:   "Prefetch frames around a time into the cache",
			Flags: []cli.Flag{
				timeFlag,
				cli.IntFlag{Name: "window", Usage: "frames to prefetch (default from config)"},
				cli.IntFlag{Name: "direction", Value: 1, Usage: "1 forward, -1 backward"},
			},
			Action: withRenderer(warmCmd),
		},
		{
			Name:    "buckets",
			Aliases: []string{"b"},
			Usage:   "Warm a window and print per-clip cache coverage",
			Flags: []cli.Flag{
				timeFlag,
				cli.IntFlag{Name: "window", Usage: "frames to prefetch first (default from config)"},
				cli.Float64Flag{Name: "hint", Value: 1, Usage: "bucket size hint in seconds"},
			},
			Action: withRenderer(bucketsCmd),
		},
	}
}

// session is what every command works on.
type session struct {
	ctx      context.Context
	cfg      preview.Config
	project  *timeline.Project
	renderer *preview.Renderer
}

// withRenderer loads the config and project, builds a renderer and runs
// fn with it.
func withRenderer(fn func(*cli.Context, *session) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		path := c.GlobalString("project")
		if path == "" {
			return errors.New("--project is required")
		}
		cfg := preview.DefaultConfig()
		if cp := c.GlobalString("config"); cp != "" {
			var err error
			if cfg, err = preview.LoadConfig(cp); err != nil {
				return err
			}
		}
		project, err := timeline.Load(path)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		r := preview.NewRenderer(preview.WithConfig(cfg))
		defer r.Close()

		return fn(c, &session{ctx: ctx, cfg: cfg, project: project, renderer: r})
	}
}

func renderCmd(c *cli.Context, s *session) error {
	out, err := s.renderer.RenderFrame(s.ctx, s.project, c.Float64("time"), s.cfg.Params())
	if err != nil {
		return err
	}
	if out.Frame == nil {
		return errors.New("nothing to render: project has no visual clips")
	}
	data, err := s.renderer.Store().PNG(out.Frame.Version)
	if err != nil {
		return err
	}
	output := c.String("output")
	if err := os.WriteFile(output, data, 0o644); err != nil { //nolint:gosec // output image is meant to be readable
		return fmt.Errorf("write %s: %w", output, err)
	}
	fmt.Printf("%s: %dx%d, %d layers, %d hits, %d misses, %v\n", output,
		out.Frame.Width, out.Frame.Height, out.Stats.Layers,
		out.Stats.CacheHits, out.Stats.CacheMisses, out.Stats.Total)
	return nil
}

func layersCmd(c *cli.Context, s *session) error {
	out, err := s.renderer.RenderLayers(s.ctx, s.project, c.Float64("time"), s.cfg.Params())
	if err != nil {
		return err
	}
	if out.Stack == nil {
		return errors.New("nothing to render: project has no visual clips")
	}

	fmt.Printf("canvas %dx%d\n", out.Stack.CanvasWidth, out.Stack.CanvasHeight)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTRACK\tFRAME\tOFFSET\tSIZE\tROT\tOPACITY\tSOURCE")
	for i, l := range out.Stack.Layers {
		track, frame, src := "-", "-", "plate"
		if i > 0 && i-1 < len(out.Layers) {
			ll := out.Layers[i-1]
			track = fmt.Sprint(ll.Track)
			frame = fmt.Sprint(ll.Index)
			src = ll.Path
		}
		p := l.Placement
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f,%.1f\t%.1fx%.1f\t%.1f\t%.2f\t%s\n",
			i, track, frame, p.OffsetX, p.OffsetY, p.Width, p.Height, p.Rotation, p.Opacity, src)
	}
	return tw.Flush()
}

func warmCmd(c *cli.Context, s *session) error {
	n := warm(s, c.Float64("time"), c.Int("direction"), window(c, s))
	st := s.renderer.CacheStats()
	fmt.Printf("decoded %d frames; cache holds %d frames, %.1f MiB of %.1f MiB\n",
		n, st.Entries, float64(st.Bytes)/(1<<20), float64(st.MaxBytes)/(1<<20))
	return s.ctx.Err()
}

func bucketsCmd(c *cli.Context, s *session) error {
	warm(s, c.Float64("time"), 1, window(c, s))

	buckets := s.renderer.CachedBuckets(s.project, c.Float64("hint"))
	ids := make([]string, 0, len(buckets))
	byID := make(map[string][]bool, len(buckets))
	for id, b := range buckets {
		ids = append(ids, id.String())
		byID[id.String()] = b
	}
	sort.Strings(ids)

	for _, id := range ids {
		line := make([]byte, len(byID[id]))
		for i, cached := range byID[id] {
			line[i] = '.'
			if cached {
				line[i] = '#'
			}
		}
		fmt.Printf("%s %s\n", id, line)
	}
	return s.ctx.Err()
}

func window(c *cli.Context, s *session) int {
	if w := c.Int("window"); w > 0 {
		return w
	}
	return s.cfg.Prefetch.Window
}

// warm prefetches window frames one step at a time so progress can be
// shown. It returns the number of frames decoded.
func warm(s *session, t float64, direction, window int) int {
	if window <= 0 || direction == 0 {
		return 0
	}
	step := 1
	if direction < 0 {
		step = -1
	}
	fps := max(s.project.Settings.FPS, 1)
	first := int(math.Floor(max(t, 0)*fps + 1e-6))

	bar := progressbar.NewOptions(window,
		progressbar.OptionSetDescription("warming"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
	defer func() { _ = bar.Finish() }()

	decoded := 0
	for i := range window {
		idx := first + step*i
		if idx+step < 0 || s.ctx.Err() != nil {
			break
		}
		// Mid-frame time so the step lands on frame idx+step exactly.
		at := (float64(idx) + 0.5) / fps
		decoded += s.renderer.Prefetch(s.ctx, s.project, at, step, 1, s.cfg.Params())
		_ = bar.Add(1)
	}
	return decoded
}

func main() {
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
