// Command episim runs epidemic simulations and calibrations from the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/AmoghJohri/Epidemic-Modeling/internal/calibration"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/dataprovider"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/engine"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/integrate"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/model"
	"github.com/AmoghJohri/Epidemic-Modeling/internal/render"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/config"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/logger"
	"github.com/AmoghJohri/Epidemic-Modeling/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "simulate":
		return runSimulate(ctx, args[1:], out)
	case "sir":
		return runSIR(ctx, args[1:], out)
	case "calibrate":
		return runCalibrate(ctx, args[1:], out)
	case "fetch":
		return runFetch(ctx, args[1:], out)
	case "config":
		return runConfig(ctx, args[1:], out)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: episim <simulate|sir|calibrate|fetch|config> [flags]", msg)
}

// loadConfig reads the config file and installs a text logger on stderr.
func loadConfig(path, logLevel string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logger.SetDefault(logger.NewText(logLevel, os.Stderr))
	return cfg, nil
}

func runSimulate(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file (defaults built in when empty)")
	logLevel := fs.String("log-level", "", "log level override")
	days := fs.Float64("days", 0, "horizon in days (0 uses the observed window length)")
	dt := fs.Float64("dt", 0, "time step (0 uses simulation.dt)")
	stepper := fs.String("stepper", "", "euler or rk4 (empty uses simulation.stepper)")
	initial := fs.String("initial", "", "S,E,I,R start state; skips fetching observations")
	chart := fs.String("chart", "", "write a chart to this .html/.png/.svg/.pdf file")
	asJSON := fs.Bool("json", false, "print the full result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *logLevel)
	if err != nil {
		return err
	}
	st, err := integrate.NewStepper(firstNonEmpty(*stepper, cfg.Simulation.Stepper))
	if err != nil {
		return err
	}

	var (
		start     model.State
		offset    float64
		reference []float64
	)
	if *initial != "" {
		if start, err = parseState(*initial); err != nil {
			return err
		}
	} else {
		obs, err := observe(ctx, cfg)
		if err != nil {
			return err
		}
		start, offset = obs.start, obs.offset
		reference = obs.reference
	}

	horizon := *days
	if horizon == 0 {
		horizon = cfg.Simulation.Days
		if len(reference) > 0 {
			horizon = float64(len(reference))
		}
	}
	m, err := model.NewSEIR(cfg.Model.Parameters, start)
	if err != nil {
		return err
	}
	res, err := engine.Run(ctx, m, engine.RunConfig{
		Dt:               orDefault(*dt, cfg.Simulation.Dt),
		Days:             horizon,
		Stepper:          st,
		CumulativeOffset: offset,
	})
	if err != nil {
		return err
	}

	if *chart != "" {
		c := render.Trajectory("SEIR simulation", res)
		if len(reference) > 0 {
			c = render.Comparison("SEIR simulation vs observed", reference, res.Cumulative)
		}
		if err := writeChart(*chart, c); err != nil {
			return err
		}
	}
	if *asJSON {
		return writeJSON(out, res)
	}

	fmt.Fprintf(out, "model=%s stepper=%s R0=%.4f samples=%d steps=%d\n",
		res.Model, st.Name(), m.ReproductionRate(), res.Len(), res.Steps)
	peak := utils.ArgMax(res.Infected)
	fmt.Fprintf(out, "peak infected %.0f on day %.0f\n", res.Infected[peak], res.Times[peak])
	if len(reference) > 0 {
		n := min(len(reference), len(res.Cumulative))
		score, err := calibration.SqrtAbsSquareDiff{}.Score(res.Cumulative[:n], reference[:n])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "error vs observed (%s) %.4g over %d of %d observed days\n",
			calibration.SqrtAbsSquareDiff{}.Name(), score, n, len(reference))
	}
	return nil
}

func runSIR(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sir", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file (defaults built in when empty)")
	logLevel := fs.String("log-level", "", "log level override")
	x := fs.Float64("x", 0, "horizon (0 uses simulation.x)")
	h := fs.Float64("h", 0, "RK4 step (0 uses simulation.h)")
	fetch := fs.Int("fetch", 0, "keep every fetch-th state (0 uses simulation.fetch)")
	chart := fs.String("chart", "", "write a chart to this .html/.png/.svg/.pdf file")
	asJSON := fs.Bool("json", false, "print the full result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *logLevel)
	if err != nil {
		return err
	}
	sir := cfg.Model.SIR
	m, err := model.NewSIR(sir.A, sir.B, sir.N, sir.InitialInfected)
	if err != nil {
		return err
	}
	rk := engine.RK4Config{
		X:     orDefault(*x, cfg.Simulation.X),
		H:     orDefault(*h, cfg.Simulation.H),
		Fetch: *fetch,
	}
	if rk.Fetch == 0 {
		rk.Fetch = cfg.Simulation.Fetch
	}
	res, err := engine.RunRK4(ctx, m, rk)
	if err != nil {
		return err
	}
	if res.Len() == 0 {
		return fmt.Errorf("no samples: horizon %g is shorter than one fetch stride", rk.X)
	}

	if *chart != "" {
		if err := writeChart(*chart, render.Trajectory("SIR simulation", res)); err != nil {
			return err
		}
	}
	if *asJSON {
		return writeJSON(out, res)
	}

	peak := utils.ArgMax(res.Infected)
	fmt.Fprintf(out, "model=%s R0=%.4f samples=%d steps=%d\n", res.Model, m.ReproductionRate(), res.Len(), res.Steps)
	fmt.Fprintf(out, "peak infected %.4f at t=%.2f\n", res.Infected[peak], res.Times[peak])
	last := res.States[res.Len()-1]
	fmt.Fprintf(out, "final S=%.4f I=%.4f R=%.4f\n", last[model.SIRSusceptible], last[model.SIRInfected], last[model.SIRRecovered])
	return nil
}

func runCalibrate(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("calibrate", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file (defaults built in when empty)")
	logLevel := fs.String("log-level", "", "log level override")
	gran := fs.Int("gran", 0, "grid points per rate (0 uses calibration.grid.gran)")
	workers := fs.Int("workers", 0, "parallel trials (0 uses calibration.workers)")
	dt := fs.Float64("dt", 0, "trial time step (0 uses calibration.dt)")
	objective := fs.String("objective", "", "objective name (empty uses calibration.objective)")
	refine := fs.Int("refine", -1, "refinement rounds (-1 uses calibration.refine)")
	top := fs.Int("top", 10, "rows to print")
	chart := fs.String("chart", "", "write the best fit against observations to this file")
	asJSON := fs.Bool("json", false, "print the ranked results as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *logLevel)
	if err != nil {
		return err
	}
	grid := cfg.Calibration.Grid
	if *gran > 0 {
		grid.Gran = *gran
	}
	obj, err := calibration.NewObjective(firstNonEmpty(*objective, cfg.Calibration.Objective))
	if err != nil {
		return err
	}
	rounds := cfg.Calibration.Refine
	if *refine >= 0 {
		rounds = *refine
	}

	obs, err := observe(ctx, cfg)
	if err != nil {
		return err
	}
	reference := obs.reference
	if d := cfg.Calibration.Days; d > 0 && d < len(reference) {
		reference = reference[:d]
	}

	factory := calibration.SEIRFactory(cfg.Model.Parameters, obs.start)
	search := calibration.NewSearch(factory, grid).
		WithObjective(obj).
		WithDt(orDefault(*dt, cfg.Calibration.Dt)).
		WithCumulativeOffset(obs.offset)
	w := cfg.Calibration.Workers
	if *workers > 0 {
		w = *workers
	}
	if w > 0 {
		search = search.WithWorkers(w)
	}
	search = search.WithProgressReporter(progressLogger(grid.Size()))

	started := time.Now()
	results, err := search.RunRefined(ctx, reference, rounds, cfg.Calibration.Factor)
	if err != nil {
		return err
	}
	best, _ := calibration.Best(results)

	if *chart != "" {
		fit, err := simulatePoint(ctx, factory, best.Point, len(reference), orDefault(*dt, cfg.Calibration.Dt), obs.offset)
		if err != nil {
			return err
		}
		title := fmt.Sprintf("Best fit alpha=%.4g beta=%.4g eta=%.4g gamma=%.4g", best.Alpha, best.Beta, best.Eta, best.Gamma)
		if err := writeChart(*chart, render.Comparison(title, reference, fit)); err != nil {
			return err
		}
	}
	if *asJSON {
		return writeJSON(out, calibration.Top(results, *top))
	}

	fmt.Fprintf(out, "%d grid points, %d days, objective %s, %s\n",
		len(results), len(reference), obj.Name(), utils.FormatDuration(time.Since(started)))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tALPHA\tBETA\tETA\tGAMMA\tERROR")
	for rank, r := range calibration.Top(results, *top) {
		fmt.Fprintf(tw, "%d\t%.5f\t%.5f\t%.5f\t%.5f\t%.6g\n", rank+1, r.Alpha, r.Beta, r.Eta, r.Gamma, r.Error)
	}
	return tw.Flush()
}

func runFetch(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file (defaults built in when empty)")
	logLevel := fs.String("log-level", "", "log level override")
	output := fs.String("out", "", "write CSV to this file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath, *logLevel)
	if err != nil {
		return err
	}
	records, err := history(ctx, cfg)
	if err != nil {
		return err
	}

	w := out
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := dataprovider.WriteCSV(w, records); err != nil {
		return err
	}
	logger.Info("observations written", "records", len(records), "out", firstNonEmpty(*output, "stdout"))
	return nil
}

func runConfig(_ context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file to validate and print (defaults when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// observation is the reference series and derived start state of a data window.
type observation struct {
	reference []float64
	start     model.State
	offset    float64
}

func observe(ctx context.Context, cfg *config.Config) (*observation, error) {
	records, err := history(ctx, cfg)
	if err != nil {
		return nil, err
	}
	minima := dataprovider.WindowMinima(records)
	start, err := cfg.Model.Initial.Derive(minima.Infected, minima.Recovered, minima.Deaths)
	if err != nil {
		return nil, err
	}
	logger.Info("observations loaded",
		"records", len(records),
		"from", records[0].Day.Format(dataprovider.DayLayout),
		"to", records[len(records)-1].Day.Format(dataprovider.DayLayout),
		"min_infected", minima.Infected)
	return &observation{
		reference: dataprovider.Series(records),
		start:     start,
		offset:    minima.Infected,
	}, nil
}

func history(ctx context.Context, cfg *config.Config) ([]dataprovider.Record, error) {
	from, err := dataprovider.ParseDay(cfg.Data.From)
	if err != nil {
		return nil, err
	}
	to, err := dataprovider.ParseDay(cfg.Data.To)
	if err != nil {
		return nil, err
	}

	var provider dataprovider.Provider
	if cfg.Data.CSV != "" {
		provider = dataprovider.CSVProvider{Path: cfg.Data.CSV}
	} else {
		provider = dataprovider.NewHTTPProvider(cfg.Data.URL).
			WithRetry(cfg.Data.Retries+1, utils.BackoffFromConfig(cfg.Data.Backoff, cfg.Data.BaseMs, cfg.Data.MaxMs))
	}
	records, err := provider.History(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("no observations in the configured window")
	}
	return records, nil
}

func simulatePoint(ctx context.Context, factory calibration.ModelFactory, p calibration.Point, days int, dt, offset float64) ([]float64, error) {
	m, err := factory(p)
	if err != nil {
		return nil, err
	}
	res, err := engine.Run(ctx, m, engine.RunConfig{Dt: dt, Days: float64(days), CumulativeOffset: offset})
	if err != nil {
		return nil, err
	}
	return res.Cumulative, nil
}

// progressLogger logs every tenth of the grid.
func progressLogger(total int) calibration.ProgressReporter {
	step := max(total/10, 1)
	return func(done, total int) {
		if done%step == 0 || done == total {
			logger.Info("calibration progress", "done", done, "total", total)
		}
	}
}

func writeChart(path string, chart render.Chart) error {
	r, err := render.ForFile(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.Render(f, chart); err != nil {
		f.Close()
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("chart written", "path", path, "series", len(chart.Series))
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseState(s string) (model.State, error) {
	parts := strings.Split(s, ",")
	state := make(model.State, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid initial state %q: %w", s, err)
		}
		state[i] = v
	}
	return state, nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
