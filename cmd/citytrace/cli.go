package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/citytrace/citytrace/internal/app"
	"github.com/citytrace/citytrace/internal/auth"
	"github.com/citytrace/citytrace/internal/config"
	"github.com/citytrace/citytrace/internal/geo"
	"github.com/citytrace/citytrace/internal/imagery"
	"github.com/citytrace/citytrace/internal/overlay"
	"github.com/citytrace/citytrace/internal/pipeline"
	"github.com/citytrace/citytrace/internal/provider/resilience"
	"github.com/citytrace/citytrace/internal/regionstats"
	"github.com/citytrace/citytrace/internal/timeseries"
)

// Default output paths. Placeholders {city}, {gas}, {start}, {end}, {year}
// and {half} are substituted.
const (
	defaultMapOut        = "plots/latest_Map.png"
	defaultTimeSeriesOut = "plots/latest_Timeseries.html"
	defaultNightOut      = "plots/NTL.png"
	defaultWindsOut      = "plots/latest_Winds.png"
)

const usage = `Usage:
  citytrace map [flags] <city> <start> <end>
  citytrace map [flags] <city> <start/end>
  citytrace timeseries [flags] <city> <start> <end>
  citytrace ntl [flags] <city> <year> <jan-jun|jul-dec|jan-dec>
  citytrace winds [flags] <city> <start> <end>
  citytrace token [flags] <client-id>

Dates are YYYY-MM-DD. Run "citytrace <command> -h" for flags.
`

// errUsage marks argument errors that print usage.
var errUsage = errors.New("invalid arguments")

type cli struct {
	stdout io.Writer
	stderr io.Writer

	loadConfig func() (*config.Config, error)

	// newImagery builds the gateway client. Tests replace it.
	newImagery func(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (imagery.Service, error)

	now func() time.Time
}

func newCLI(stdout, stderr io.Writer) *cli {
	return &cli{
		stdout:     stdout,
		stderr:     stderr,
		loadConfig: config.Load,
		newImagery: func(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (imagery.Service, error) {
			return app.NewImageryClient(ctx, cfg, resilience.NewRegistry(), logger)
		},
		now: time.Now,
	}
}

// options are the flags shared by the render commands.
type options struct {
	gas           string
	out           string
	mode          string
	stretch       string
	unknownCity   string
	maskThreshold float64
	maskOpacity   float64
	mask          bool
	width         int
	scope         string
}

// run executes one command and returns the process exit code.
func (c *cli) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(c.stderr, usage)
		return 1
	}

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "map":
		err = c.runMap(ctx, rest)
	case "timeseries":
		err = c.runTimeSeries(ctx, rest)
	case "ntl":
		err = c.runNightLights(ctx, rest)
	case "winds":
		err = c.runWinds(ctx, rest)
	case "token":
		err = c.runToken(rest)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(c.stdout, usage)
		return 0
	default:
		fmt.Fprintf(c.stderr, "citytrace: unknown command %q\n\n%s", cmd, usage)
		return 1
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(c.stderr, "citytrace %s: %v\n\n%s", cmd, err, usage)
		return 1
	default:
		fmt.Fprintf(c.stderr, "citytrace %s: %v\n", cmd, err)
		return 1
	}
}

func (c *cli) flagSet(name string, o *options, defaultOut string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)

	fs.StringVar(&o.out, "out", defaultOut, "output path; {city}, {gas}, {start}, {end}, {year} and {half} are substituted")
	fs.StringVar(&o.unknownCity, "unknown-city", "", "unknown city policy: reject or fallback (default from config)")
	fs.IntVar(&o.width, "width", overlay.DefaultWidth, "map width in pixels")

	switch name {
	case "map", "timeseries":
		fs.StringVar(&o.gas, "gas", "CO", "gas: CO, NO2, SO2 or HCHO")
	}
	switch name {
	case "map":
		fs.StringVar(&o.stretch, "stretch", "", "colour stretch: minmax or percentile (default from config)")
		fs.BoolVar(&o.mask, "mask", false, "overlay lit areas from night-time lights")
		fs.Float64Var(&o.maskThreshold, "mask-threshold", overlay.DefaultMaskThreshold, "night-lights radiance above which a pixel is masked")
		fs.Float64Var(&o.maskOpacity, "mask-opacity", overlay.DefaultMaskOpacity, "mask opacity within [0, 1]")
	case "timeseries":
		fs.StringVar(&o.mode, "mode", "", "binning: auto, monthly or seasonal (default from config)")
	case "token":
		fs.StringVar(&o.scope, "scope", "render", "token scope")
	}
	return fs
}

// parse accepts flags before and after positional arguments.
func parse(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// dateRange accepts either <start> <end> or one <start/end> token.
func dateRange(args []string) (geo.DateRange, error) {
	switch len(args) {
	case 1:
		return geo.ParseCombinedRange(args[0])
	case 2:
		return geo.ParseDateRange(args[0], args[1])
	default:
		return geo.DateRange{}, fmt.Errorf("%w: expected <start> <end> or <start/end>", errUsage)
	}
}

func (c *cli) pipeline(ctx context.Context, o *options) (*pipeline.Service, *config.Config, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if o.unknownCity != "" {
		if _, err := geo.ParseUnknownCityPolicy(o.unknownCity); err != nil {
			return nil, nil, err
		}
		cfg.Pipeline.UnknownCity = o.unknownCity
	}
	if o.mode != "" {
		cfg.Pipeline.Mode = o.mode
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: c.stderr}).
		Level(cfg.LogLevel()).
		With().
		Timestamp().
		Logger()

	svc, err := c.newImagery(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	p, err := app.NewPipeline(cfg, svc, prometheus.NewRegistry(), logger)
	if err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}

func (c *cli) runMap(ctx context.Context, args []string) error {
	var o options
	fs := c.flagSet("map", &o, defaultMapOut)
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(positional) < 2 || len(positional) > 3 {
		return fmt.Errorf("%w: map takes <city> <start> <end>", errUsage)
	}
	r, err := dateRange(positional[1:])
	if err != nil {
		return err
	}

	p, cfg, err := c.pipeline(ctx, &o)
	if err != nil {
		return err
	}

	stretch := app.Stretch(cfg)
	if o.stretch != "" {
		if stretch, err = regionstats.ParseMethod(o.stretch); err != nil {
			return err
		}
	}

	req := pipeline.MapRequest{
		City:    positional[0],
		Gas:     o.gas,
		Range:   r,
		Stretch: stretch,
		Width:   o.width,
	}
	if mask := maskOptions(fs, &o, app.Mask(cfg)); mask != nil {
		if mask.Opacity < 0 || mask.Opacity > 1 {
			return fmt.Errorf("%w: -mask-opacity must be within [0, 1]", errUsage)
		}
		req.Mask = mask
	}

	res, err := p.Map(ctx, req)
	if err != nil {
		return err
	}

	path := expand(o.out, map[string]string{
		"city":  res.City.Name,
		"gas":   strings.ToUpper(o.gas),
		"start": r.Start.Format(geo.DateLayout),
		"end":   r.End.Format(geo.DateLayout),
	})
	if err := writeFile(path, func(w io.Writer) error { return overlay.WritePNG(w, res.Image) }); err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "%s\n", res.Title)
	fmt.Fprintf(c.stdout, "range: %.3f to %.3f ppb\n", res.Bounds.Min, res.Bounds.Max)
	if req.Mask != nil {
		fmt.Fprintf(c.stdout, "masked pixels: %d\n", res.MaskedPixels)
	}
	fmt.Fprintf(c.stdout, "wrote %s\n", path)
	return nil
}

func (c *cli) runTimeSeries(ctx context.Context, args []string) error {
	var o options
	fs := c.flagSet("timeseries", &o, defaultTimeSeriesOut)
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(positional) < 2 || len(positional) > 3 {
		return fmt.Errorf("%w: timeseries takes <city> <start> <end>", errUsage)
	}
	r, err := dateRange(positional[1:])
	if err != nil {
		return err
	}

	p, _, err := c.pipeline(ctx, &o)
	if err != nil {
		return err
	}

	res, err := p.TimeSeries(ctx, pipeline.TimeSeriesRequest{
		City:  positional[0],
		Gas:   o.gas,
		Range: r,
	})
	if err != nil {
		return err
	}

	path := expand(o.out, map[string]string{
		"city":  res.City.Name,
		"gas":   string(res.Gas.Gas),
		"start": r.Start.Format(geo.DateLayout),
		"end":   r.End.Format(geo.DateLayout),
	})
	err = writeFile(path, func(w io.Writer) error {
		return timeseries.Chart(w, res.Bins, timeseries.ChartOptions{
			Title:  res.Title(),
			Series: res.Gas.Label,
			YAxis:  res.Gas.Label + " Concentration (ppb)",
		})
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "%s\n", res.Title())
	for _, b := range res.Bins {
		value := "-"
		if b.Value.Valid {
			value = strconv.FormatFloat(b.Value.Value, 'f', 3, 64)
		}
		fmt.Fprintf(c.stdout, "%-25s %s\n", b.Label, value)
	}
	fmt.Fprintf(c.stdout, "wrote %s (%d of %d bins missing)\n", path, res.Missing(), len(res.Bins))
	return nil
}

func (c *cli) runNightLights(ctx context.Context, args []string) error {
	var o options
	fs := c.flagSet("ntl", &o, defaultNightOut)
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 3 {
		return fmt.Errorf("%w: ntl takes <city> <year> <half-year>", errUsage)
	}
	year, err := strconv.Atoi(positional[1])
	if err != nil {
		return fmt.Errorf("%w: year %q is not a number", geo.ErrInvalidDateRange, positional[1])
	}

	p, _, err := c.pipeline(ctx, &o)
	if err != nil {
		return err
	}

	res, err := p.NightLights(ctx, pipeline.NightLightsRequest{
		City:     positional[0],
		Year:     year,
		HalfYear: positional[2],
		Width:    o.width,
	})
	if err != nil {
		return err
	}

	path := expand(o.out, map[string]string{
		"city": res.City.Name,
		"year": positional[1],
		"half": strings.ToLower(positional[2]),
	})
	if err := writeFile(path, func(w io.Writer) error { return overlay.WritePNG(w, res.Image) }); err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "%s\n", res.Title)
	fmt.Fprintf(c.stdout, "wrote %s\n", path)
	return nil
}

func (c *cli) runWinds(ctx context.Context, args []string) error {
	var o options
	fs := c.flagSet("winds", &o, defaultWindsOut)
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(positional) < 2 || len(positional) > 3 {
		return fmt.Errorf("%w: winds takes <city> <start> <end>", errUsage)
	}
	r, err := dateRange(positional[1:])
	if err != nil {
		return err
	}

	p, _, err := c.pipeline(ctx, &o)
	if err != nil {
		return err
	}

	res, err := p.Winds(ctx, pipeline.WindsRequest{City: positional[0], Range: r, Width: o.width})
	if err != nil {
		return err
	}

	path := expand(o.out, map[string]string{
		"city":  res.City.Name,
		"start": r.Start.Format(geo.DateLayout),
		"end":   r.End.Format(geo.DateLayout),
	})
	if err := writeFile(path, func(w io.Writer) error { return overlay.WritePNG(w, res.Image) }); err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "%s\n", res.Title)
	fmt.Fprintf(c.stdout, "mean direction: %.1f deg at %.2f m/s\n", res.Mean.Direction(), res.Mean.Speed())
	fmt.Fprintf(c.stdout, "wrote %s\n", path)
	return nil
}

func (c *cli) runToken(args []string) error {
	var o options
	fs := c.flagSet("token", &o, "")
	positional, err := parse(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("%w: token takes <client-id>", errUsage)
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		SigningKey: cfg.Auth.SigningKey,
		Issuer:     cfg.Auth.Issuer,
		Now:        c.now,
	})
	if err != nil {
		return err
	}

	token, expiresAt, err := jwtService.GenerateAccessToken(positional[0], o.scope)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, token)
	fmt.Fprintf(c.stderr, "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
	return nil
}

// maskOptions enables the mask when -mask or either mask flag is given.
// Flags left unset take the configured defaults.
func maskOptions(fs *flag.FlagSet, o *options, defaults pipeline.MaskOptions) *pipeline.MaskOptions {
	mask := defaults
	enabled := o.mask
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mask-threshold":
			mask.Threshold = o.maskThreshold
			enabled = true
		case "mask-opacity":
			mask.Opacity = o.maskOpacity
			enabled = true
		}
	})
	if !enabled {
		return nil
	}
	return &mask
}

func expand(path string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", strings.ReplaceAll(v, " ", "_"))
	}
	return strings.NewReplacer(pairs...).Replace(path)
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
