package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"harmonia/pkg/harmonia"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "evaluate":
		return runEvaluate(ctx, args[1:])
	case "batch":
		return runBatch(ctx, args[1:])
	case "simulate":
		return runSimulate(ctx, args[1:])
	case "render":
		return runRender(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runEvaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	configPath := fs.String("config", "", "experiment config JSON path")
	expression := fs.String("expr", "", "control law in prefix form, e.g. mul(c, y_1)")
	vars := fs.String("vars", "", "comma-separated state variables (default y_0,y_1)")
	consts := fs.String("consts", "", "comma-separated constant names (default inferred from the expression)")
	runID := fs.String("run-id", "", "attach the candidate to an existing run id")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "", "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *expression == "" {
		return errors.New("evaluate requires -expr")
	}

	settings, err := loadSettings(*configPath)
	if err != nil {
		return err
	}
	settings.override(*storeKind, *dbPath, "")

	client, err := newClient(settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Evaluate(ctx, harmonia.EvaluateRequest{
		Expression: *expression,
		Vars:       splitList(*vars),
		Consts:     splitList(*consts),
		RunID:      *runID,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return encodeJSON(evaluateOutput{
			CandidateID:    summary.CandidateID,
			RunID:          summary.RunID,
			Expression:     summary.Expression,
			Constants:      summary.Constants,
			AmplitudeError: summary.AmplitudeError,
			FrequencyError: summary.FrequencyError,
			Size:           summary.Size,
			Penalized:      summary.Penalized,
			Converged:      summary.Converged,
			Iterations:     summary.Iterations,
			Evaluations:    summary.Evaluations,
			Cost:           summary.Cost,
		})
	}

	fmt.Printf("candidate_id=%s expression=%q amplitude_error=%.6g frequency_error=%.6g size=%d constants=%v penalized=%t converged=%t\n",
		summary.CandidateID,
		summary.Expression,
		summary.AmplitudeError,
		summary.FrequencyError,
		summary.Size,
		summary.Constants,
		summary.Penalized,
		summary.Converged,
	)
	return nil
}

func runBatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	configPath := fs.String("config", "", "experiment config JSON path")
	exprsFile := fs.String("exprs-file", "", "file with one expression per line")
	vars := fs.String("vars", "", "comma-separated state variables (default y_0,y_1)")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	workers := fs.Int("workers", 0, "worker count (0 uses the config or the default)")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "", "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit the batch summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	expressions := append([]string(nil), fs.Args()...)
	if *exprsFile != "" {
		fromFile, err := readExpressionsFile(*exprsFile)
		if err != nil {
			return err
		}
		expressions = append(expressions, fromFile...)
	}
	if len(expressions) == 0 {
		return errors.New("batch requires expressions as arguments or -exprs-file")
	}

	settings, err := loadSettings(*configPath)
	if err != nil {
		return err
	}
	settings.override(*storeKind, *dbPath, "")
	if *workers > 0 {
		settings.workers = *workers
	}

	client, err := newClient(settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.EvaluateBatch(ctx, harmonia.BatchRequest{
		Expressions: expressions,
		Vars:        splitList(*vars),
		Workers:     settings.workers,
		RunID:       *runID,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		out := batchOutput{
			RunID:           summary.RunID,
			BestCandidateID: summary.BestCandidateID,
			BestExpression:  summary.BestExpression,
		}
		for _, candidate := range summary.Candidates {
			out.Candidates = append(out.Candidates, batchCandidateOutput{
				CandidateID:    candidate.CandidateID,
				Expression:     candidate.Expression,
				Constants:      candidate.Constants,
				AmplitudeError: candidate.AmplitudeError,
				FrequencyError: candidate.FrequencyError,
				Size:           candidate.Size,
				Penalized:      candidate.Penalized,
				Converged:      candidate.Converged,
			})
		}
		return encodeJSON(out)
	}

	for _, candidate := range summary.Candidates {
		fmt.Printf("candidate_id=%s expression=%q amplitude_error=%.6g frequency_error=%.6g size=%d penalized=%t\n",
			candidate.CandidateID,
			candidate.Expression,
			candidate.AmplitudeError,
			candidate.FrequencyError,
			candidate.Size,
			candidate.Penalized,
		)
	}
	fmt.Printf("run_id=%s candidates=%d best_candidate_id=%s best_expression=%q\n",
		summary.RunID,
		len(summary.Candidates),
		summary.BestCandidateID,
		summary.BestExpression,
	)
	return nil
}

func runSimulate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	configPath := fs.String("config", "", "experiment config JSON path")
	expression := fs.String("expr", "", "control law in prefix form")
	vars := fs.String("vars", "", "comma-separated state variables (default y_0,y_1)")
	constants := fs.String("constants", "", "comma-separated constant values in first-appearance order")
	jsonOut := fs.Bool("json", false, "emit the full series as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *expression == "" {
		return errors.New("simulate requires -expr")
	}
	constValues, err := splitFloats(*constants)
	if err != nil {
		return err
	}

	settings, err := loadSettings(*configPath)
	if err != nil {
		return err
	}

	client, err := newClient(settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Simulate(ctx, harmonia.SimulateRequest{
		Expression: *expression,
		Vars:       splitList(*vars),
		Constants:  constValues,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return encodeJSON(simulateOutput{
			Times:    summary.Times,
			Position: summary.Position,
			Velocity: summary.Velocity,
			Poisoned: summary.Poisoned,
		})
	}

	last := len(summary.Times) - 1
	fmt.Printf("samples=%d poisoned=%t t_final=%.6g y_0_final=%.6g y_1_final=%.6g\n",
		len(summary.Times),
		summary.Poisoned,
		summary.Times[last],
		summary.Position[last],
		summary.Velocity[last],
	)
	return nil
}

func runRender(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	configPath := fs.String("config", "", "experiment config JSON path")
	expression := fs.String("expr", "", "control law in prefix form")
	vars := fs.String("vars", "", "comma-separated state variables (default y_0,y_1)")
	constants := fs.String("constants", "", "comma-separated constant values in first-appearance order")
	outDir := fs.String("out", "", "output directory (default plots dir)")
	overlay := fs.Bool("overlay", false, "draw the target waveform on the trajectory plot")
	jsonOut := fs.Bool("json", false, "emit artifact paths as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *expression == "" {
		return errors.New("render requires -expr")
	}
	constValues, err := splitFloats(*constants)
	if err != nil {
		return err
	}

	settings, err := loadSettings(*configPath)
	if err != nil {
		return err
	}
	settings.override("", "", *outDir)

	client, err := newClient(settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Render(ctx, harmonia.RenderRequest{
		Expression: *expression,
		Vars:       splitList(*vars),
		Constants:  constValues,
		OutDir:     *outDir,
		Overlay:    *overlay,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return encodeJSON(renderOutput{
			TrajectoryPNG: summary.TrajectoryPNG,
			PhasePNG:      summary.PhasePNG,
			CSV:           summary.CSV,
		})
	}

	fmt.Printf("trajectory_png=%s phase_png=%s csv=%s\n", summary.TrajectoryPNG, summary.PhasePNG, summary.CSV)
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	configPath := fs.String("config", "", "experiment config JSON path")
	runID := fs.String("run-id", "", "restrict the listing to one run id")
	latest := fs.Bool("latest", false, "restrict the listing to the most recent run")
	limit := fs.Int("limit", 10, "max candidates to print")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "", "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit candidates as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either -run-id or -latest, not both")
	}

	settings, err := loadSettings(*configPath)
	if err != nil {
		return err
	}
	settings.override(*storeKind, *dbPath, "")

	client, err := newClient(settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.TopCandidates(ctx, harmonia.TopRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Println("no candidates found")
		return nil
	}

	if *jsonOut {
		items := make([]candidateOutput, 0, len(top))
		for _, item := range top {
			items = append(items, candidateOutput{
				CandidateID:    item.CandidateID,
				RunID:          item.RunID,
				Expression:     item.Expression,
				Constants:      item.Constants,
				AmplitudeError: item.AmplitudeError,
				FrequencyError: item.FrequencyError,
				Size:           item.Size,
				Penalized:      item.Penalized,
				CreatedAtUTC:   item.CreatedAtUTC,
			})
		}
		return encodeJSON(items)
	}

	for rank, item := range top {
		fmt.Printf("rank=%d candidate_id=%s run_id=%s expression=%q amplitude_error=%.6g frequency_error=%.6g size=%d penalized=%t\n",
			rank+1,
			item.CandidateID,
			item.RunID,
			item.Expression,
			item.AmplitudeError,
			item.FrequencyError,
			item.Size,
			item.Penalized,
		)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	configPath := fs.String("config", "", "experiment config JSON path")
	limit := fs.Int("limit", 20, "max runs to list")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "", "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit runs as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	settings, err := loadSettings(*configPath)
	if err != nil {
		return err
	}
	settings.override(*storeKind, *dbPath, "")

	client, err := newClient(settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, harmonia.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if *jsonOut {
		items := make([]runOutput, 0, len(runs))
		for _, item := range runs {
			items = append(items, runOutput{
				RunID:           item.RunID,
				CreatedAtUTC:    item.CreatedAtUTC,
				Scape:           item.Scape,
				Omega:           item.Omega,
				Damping:         item.Damping,
				Coupling:        item.Coupling,
				Candidates:      item.Candidates,
				BestCandidateID: item.BestCandidateID,
			})
		}
		return encodeJSON(items)
	}

	for _, item := range runs {
		fmt.Printf("run_id=%s created_at=%s scape=%s candidates=%d best_candidate_id=%s\n",
			item.RunID,
			item.CreatedAtUTC,
			item.Scape,
			item.Candidates,
			item.BestCandidateID,
		)
	}
	return nil
}

type evaluateOutput struct {
	CandidateID    string    `json:"candidate_id"`
	RunID          string    `json:"run_id,omitempty"`
	Expression     string    `json:"expression"`
	Constants      []float64 `json:"constants"`
	AmplitudeError float64   `json:"amplitude_error"`
	FrequencyError float64   `json:"frequency_error"`
	Size           int       `json:"size"`
	Penalized      bool      `json:"penalized"`
	Converged      bool      `json:"converged"`
	Iterations     int       `json:"iterations"`
	Evaluations    int       `json:"evaluations"`
	Cost           float64   `json:"cost"`
}

type batchCandidateOutput struct {
	CandidateID    string    `json:"candidate_id"`
	Expression     string    `json:"expression"`
	Constants      []float64 `json:"constants"`
	AmplitudeError float64   `json:"amplitude_error"`
	FrequencyError float64   `json:"frequency_error"`
	Size           int       `json:"size"`
	Penalized      bool      `json:"penalized"`
	Converged      bool      `json:"converged"`
}

type batchOutput struct {
	RunID           string                 `json:"run_id"`
	Candidates      []batchCandidateOutput `json:"candidates"`
	BestCandidateID string                 `json:"best_candidate_id"`
	BestExpression  string                 `json:"best_expression"`
}

type simulateOutput struct {
	Times    []float64 `json:"times"`
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity"`
	Poisoned bool      `json:"poisoned"`
}

type renderOutput struct {
	TrajectoryPNG string `json:"trajectory_png"`
	PhasePNG      string `json:"phase_png"`
	CSV           string `json:"csv"`
}

type candidateOutput struct {
	CandidateID    string    `json:"candidate_id"`
	RunID          string    `json:"run_id,omitempty"`
	Expression     string    `json:"expression"`
	Constants      []float64 `json:"constants"`
	AmplitudeError float64   `json:"amplitude_error"`
	FrequencyError float64   `json:"frequency_error"`
	Size           int       `json:"size"`
	Penalized      bool      `json:"penalized"`
	CreatedAtUTC   string    `json:"created_at_utc"`
}

type runOutput struct {
	RunID           string  `json:"run_id"`
	CreatedAtUTC    string  `json:"created_at_utc"`
	Scape           string  `json:"scape"`
	Omega           float64 `json:"omega"`
	Damping         float64 `json:"damping"`
	Coupling        float64 `json:"coupling"`
	Candidates      int     `json:"candidates"`
	BestCandidateID string  `json:"best_candidate_id"`
}

func newClient(settings runtimeSettings) (*harmonia.Client, error) {
	return harmonia.New(harmonia.Options{
		StoreKind:  settings.storeKind,
		DBPath:     settings.dbPath,
		PlotsDir:   settings.plotsDir,
		Experiment: &settings.experiment,
	})
}

func encodeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: harmoniactl <evaluate|batch|simulate|render|top|runs> [flags]", msg)
}
