// Package main provides the digits CLI: it classifies a 28x28 handwritten
// digit with a pretrained dense network.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/born-ml/digits/internal/backend/cpu"
	"github.com/born-ml/digits/internal/backend/webgpu"
	"github.com/born-ml/digits/internal/config"
	"github.com/born-ml/digits/internal/engine"
	"github.com/born-ml/digits/internal/grid"
	"github.com/born-ml/digits/internal/params"
	"github.com/born-ml/digits/internal/report"
	"github.com/born-ml/digits/internal/tensor"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("digits %s\n", version)
		return
	}

	klog.InitFlags(nil)
	cfg := config.Default()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n       %s version\n\nFlags:\n", os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "digits: %v\n\n", err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg, os.Stdin, os.Stdout, os.Stderr); err != nil {
		stop()
		var loadErr *params.LoadError
		if errors.As(err, &loadErr) {
			klog.Fatalf("Failed to load parameters from %s: %+v", loadErr.Source, loadErr.Err)
		}
		klog.Fatalf("Failed: %+v", err)
	}
}

// run loads the parameters, builds the engine and either classifies one
// grid or benchmarks the engine, writing the report to stdout.
func run(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout, stderr io.Writer) error {
	klog.V(1).Infof("digits %s: %s", version, cfg)
	src := params.ParseSource(cfg.ParamsSource)
	if httpSrc, ok := src.(params.HTTPSource); ok && cfg.Progress {
		httpSrc.Progress = stderr
		src = httpSrc
	}
	layers, err := cfg.Loader().LoadFrom(ctx, src)
	if err != nil {
		return err
	}

	backend, release, err := newBackend(cfg.Backend)
	if err != nil {
		return err
	}
	defer release()
	e := engine.New(backend, engine.WithWeightActivations(cfg.WeightActivations))

	g, err := readGrid(cfg, stdin)
	if err != nil {
		return err
	}

	if cfg.Bench > 0 {
		if g == nil {
			g = new(grid.Grid)
		}
		return bench(e, layers, g, cfg.Bench, cfg.Progress, stdout, stderr)
	}

	res, err := e.InferGrid(layers, g)
	if err != nil {
		return err
	}
	return report.RenderWith(stdout, g, res, report.Options{Color: cfg.Color, BarWidth: report.DefaultOptions.BarWidth})
}

// newBackend creates the configured backend and the function that frees it.
func newBackend(name string) (tensor.Backend, func(), error) {
	switch name {
	case config.BackendCPU:
		return cpu.New(), func() {}, nil
	case config.BackendWebGPU, config.BackendAuto:
		gpu, err := webgpu.New()
		if err == nil {
			klog.V(1).Infof("Using backend %s", gpu.Name())
			return gpu, gpu.Release, nil
		}
		if name == config.BackendAuto && errors.Is(err, webgpu.ErrUnavailable) {
			klog.Warningf("WebGPU not available (%v), falling back to the CPU backend", err)
			return cpu.New(), func() {}, nil
		}
		return nil, nil, errors.WithMessage(err, "creating WebGPU backend")
	default:
		return nil, nil, errors.Errorf("unknown backend %q", name)
	}
}

// readGrid returns the input selected by -image or -grid, or nil if neither is set.
func readGrid(cfg *config.Config, stdin io.Reader) (*grid.Grid, error) {
	switch {
	case cfg.Image != "":
		return grid.Open(cfg.Image)
	case cfg.Grid == "-":
		g, err := grid.ParseJSON(stdin)
		return g, errors.WithMessage(err, "reading grid from stdin")
	case cfg.Grid != "":
		f, err := os.Open(cfg.Grid)
		if err != nil {
			return nil, errors.Wrapf(err, "opening grid %q", cfg.Grid)
		}
		defer func() { _ = f.Close() }()
		g, err := grid.ParseJSON(f)
		return g, errors.WithMessagef(err, "reading grid %q", cfg.Grid)
	}
	return nil, nil
}

// bench runs n sequential inferences of g and prints the throughput.
func bench(e *engine.Engine, layers params.Layers, g *grid.Grid, n int, progress bool, stdout, stderr io.Writer) error {
	input := g.Flatten()
	var bar *progressbar.ProgressBar
	if progress {
		bar = progressbar.NewOptions(n,
			progressbar.OptionSetDescription("inference"),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("inf"),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
	}

	var last *engine.Result
	start := time.Now()
	for i := 0; i < n; i++ {
		res, err := e.Infer(layers, input)
		if err != nil {
			return errors.WithMessagef(err, "inference #%d", i)
		}
		last = res
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	elapsed := time.Since(start)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(stderr)
	}

	rate := float64(n) / elapsed.Seconds()
	_, err := fmt.Fprintf(stdout, "%s inferences on %s in %s: %s inferences/s, %s per inference (prediction %d)\n",
		humanize.Comma(int64(n)), e.Backend().Name(), elapsed.Round(time.Microsecond),
		humanize.CommafWithDigits(rate, 1), (elapsed / time.Duration(n)).Round(time.Microsecond), last.Prediction1)
	return errors.Wrap(err, "writing benchmark results")
}
