package harmonia

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"harmonia/internal/dynamics"
	"harmonia/internal/expr"
	"harmonia/internal/model"
	"harmonia/internal/render"
	"harmonia/internal/scape"
	"harmonia/internal/storage"
)

const (
	defaultPlotsDir = "plots"
	defaultDBPath   = "harmonia.db"
)

var defaultVars = []string{"y_0", "y_1"}

// ExperimentConfig mirrors the oscillator experiment with plain fields so
// callers do not need the internal scape types.
type ExperimentConfig struct {
	Omega           float64
	Damping         float64
	Coupling        float64
	Initial         []float64
	GridStart       float64
	GridStop        float64
	GridPoints      int
	TargetAmplitude float64
	TargetFrequency float64
	NaNSentinel     float64
}

// DefaultExperiment returns the reference experiment configuration.
func DefaultExperiment() ExperimentConfig {
	cfg := scape.DefaultOscillatorConfig()
	return ExperimentConfig{
		Omega:           cfg.Params.Omega,
		Damping:         cfg.Params.Damping,
		Coupling:        cfg.Params.Coupling,
		Initial:         append([]float64(nil), cfg.Initial...),
		GridStart:       cfg.GridStart,
		GridStop:        cfg.GridStop,
		GridPoints:      cfg.GridPoints,
		TargetAmplitude: cfg.TargetAmplitude,
		TargetFrequency: cfg.TargetFrequency,
		NaNSentinel:     cfg.NaNSentinel,
	}
}

type Options struct {
	StoreKind  string
	DBPath     string
	PlotsDir   string
	Experiment *ExperimentConfig
}

// Client ties the oscillator scape, the evaluation archive and the renderer
// together behind one API.
type Client struct {
	store    storage.Store
	scape    *scape.OscillatorScape
	plotsDir string

	initialized bool
}

type EvaluateRequest struct {
	Expression string
	// Vars defaults to [y_0 y_1]. Empty Consts means free constants are
	// inferred from the expression.
	Vars   []string
	Consts []string
	RunID  string
}

type EvaluateSummary struct {
	CandidateID    string
	RunID          string
	Expression     string
	Constants      []float64
	AmplitudeError float64
	FrequencyError float64
	Size           int
	Penalized      bool
	Converged      bool
	Iterations     int
	Evaluations    int
	Cost           float64
}

type BatchRequest struct {
	Expressions []string
	Vars        []string
	Workers     int
	RunID       string
}

type BatchCandidate struct {
	CandidateID    string
	Expression     string
	Constants      []float64
	AmplitudeError float64
	FrequencyError float64
	Size           int
	Penalized      bool
	Converged      bool
}

type BatchSummary struct {
	RunID           string
	Candidates      []BatchCandidate
	BestCandidateID string
	BestExpression  string
}

type SimulateRequest struct {
	Expression string
	Vars       []string
	Constants  []float64
}

type SimulationSummary struct {
	Times    []float64
	Position []float64
	Velocity []float64
	// Poisoned reports that the integration diverged and the series hold
	// only NaN.
	Poisoned bool
}

type RenderRequest struct {
	Expression string
	Vars       []string
	Constants  []float64
	OutDir     string
	// Overlay draws the target waveform on the trajectory plot.
	Overlay bool
}

type RenderSummary struct {
	TrajectoryPNG string
	PhasePNG      string
	CSV           string
}

type TopRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type CandidateItem struct {
	CandidateID    string
	RunID          string
	Expression     string
	Constants      []float64
	AmplitudeError float64
	FrequencyError float64
	Size           int
	Penalized      bool
	CreatedAtUTC   string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID           string
	CreatedAtUTC    string
	Scape           string
	Omega           float64
	Damping         float64
	Coupling        float64
	Candidates      int
	BestCandidateID string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	plotsDir := opts.PlotsDir
	if plotsDir == "" {
		plotsDir = defaultPlotsDir
	}

	experiment := DefaultExperiment()
	if opts.Experiment != nil {
		experiment = *opts.Experiment
	}
	oscillator, err := scape.NewOscillatorScape(configFromExperiment(experiment))
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:    store,
		scape:    oscillator,
		plotsDir: plotsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureInit(ctx)
}

// Evaluate parses one control law, fits its constants against the target
// motion and archives the scored candidate.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateSummary, error) {
	if req.Expression == "" {
		return EvaluateSummary{}, errors.New("expression is required")
	}
	if err := c.ensureInit(ctx); err != nil {
		return EvaluateSummary{}, err
	}

	tree, err := parseTree(req.Expression, req.Vars, req.Consts)
	if err != nil {
		return EvaluateSummary{}, err
	}

	candidate := scape.NewCandidate(tree)
	fit, trace, err := c.scape.Evaluate(candidate)
	if err != nil {
		return EvaluateSummary{}, err
	}

	record := c.candidateRecord(candidate, req.RunID, time.Now().UTC())
	if err := c.store.SaveCandidate(ctx, record); err != nil {
		return EvaluateSummary{}, err
	}

	return EvaluateSummary{
		CandidateID:    record.ID,
		RunID:          req.RunID,
		Expression:     record.Expression,
		Constants:      append([]float64(nil), candidate.Constants...),
		AmplitudeError: fit.AmplitudeError,
		FrequencyError: fit.FrequencyError,
		Size:           fit.Size,
		Penalized:      candidate.Penalized,
		Converged:      traceBool(trace, "converged"),
		Iterations:     traceInt(trace, "iterations"),
		Evaluations:    traceInt(trace, "evaluations"),
		Cost:           traceFloat(trace, "cost"),
	}, nil
}

// EvaluateBatch scores a set of control laws concurrently under one run
// record. A structurally broken expression fails the whole batch before
// anything is archived.
func (c *Client) EvaluateBatch(ctx context.Context, req BatchRequest) (BatchSummary, error) {
	if len(req.Expressions) == 0 {
		return BatchSummary{}, errors.New("at least one expression is required")
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	if err := c.ensureInit(ctx); err != nil {
		return BatchSummary{}, err
	}

	candidates := make([]*scape.Candidate, 0, len(req.Expressions))
	for _, src := range req.Expressions {
		tree, err := parseTree(src, req.Vars, nil)
		if err != nil {
			return BatchSummary{}, fmt.Errorf("parse %q: %w", src, err)
		}
		candidates = append(candidates, scape.NewCandidate(tree))
	}

	traces, err := c.scape.EvaluateBatch(ctx, candidates, req.Workers)
	if err != nil {
		return BatchSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	now := time.Now().UTC()

	summary := BatchSummary{RunID: runID, Candidates: make([]BatchCandidate, 0, len(candidates))}
	var best scape.Fitness
	for i, candidate := range candidates {
		record := c.candidateRecord(candidate, runID, now)
		if err := c.store.SaveCandidate(ctx, record); err != nil {
			return BatchSummary{}, err
		}
		summary.Candidates = append(summary.Candidates, BatchCandidate{
			CandidateID:    record.ID,
			Expression:     record.Expression,
			Constants:      append([]float64(nil), candidate.Constants...),
			AmplitudeError: candidate.Fitness.AmplitudeError,
			FrequencyError: candidate.Fitness.FrequencyError,
			Size:           candidate.Fitness.Size,
			Penalized:      candidate.Penalized,
			Converged:      traceBool(traces[i], "converged"),
		})
		if summary.BestCandidateID == "" || candidate.Fitness.Less(best) {
			best = *candidate.Fitness
			summary.BestCandidateID = record.ID
			summary.BestExpression = record.Expression
		}
	}

	cfg := c.scape.Config()
	run := model.RunRecord{
		VersionedRecord: storage.Stamp(),
		ID:              runID,
		Scape:           c.scape.Name(),
		Omega:           cfg.Params.Omega,
		Damping:         cfg.Params.Damping,
		Coupling:        cfg.Params.Coupling,
		Initial:         cfg.Initial,
		GridStart:       cfg.GridStart,
		GridStop:        cfg.GridStop,
		GridPoints:      cfg.GridPoints,
		TargetAmplitude: cfg.TargetAmplitude,
		TargetFrequency: cfg.TargetFrequency,
		NaNSentinel:     cfg.NaNSentinel,
		Candidates:      len(candidates),
		BestCandidateID: summary.BestCandidateID,
		CreatedAt:       now,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return BatchSummary{}, err
	}
	return summary, nil
}

// Simulate integrates the controlled plant for an already-fitted candidate
// and returns the position and velocity series.
func (c *Client) Simulate(ctx context.Context, req SimulateRequest) (SimulationSummary, error) {
	if req.Expression == "" {
		return SimulationSummary{}, errors.New("expression is required")
	}
	if err := ctx.Err(); err != nil {
		return SimulationSummary{}, err
	}

	tree, err := parseTree(req.Expression, req.Vars, nil)
	if err != nil {
		return SimulationSummary{}, err
	}
	traj, err := c.scape.Simulate(tree, req.Constants)
	if err != nil {
		return SimulationSummary{}, err
	}

	summary := SimulationSummary{
		Times:    append([]float64(nil), traj.Times...),
		Position: traj.Component(0),
		Velocity: traj.Component(1),
	}
	summary.Poisoned = len(summary.Position) > 0 && math.IsNaN(summary.Position[0])
	return summary, nil
}

// Render simulates a candidate and writes the trajectory plot, the phase
// portrait and the CSV export.
func (c *Client) Render(ctx context.Context, req RenderRequest) (RenderSummary, error) {
	if req.Expression == "" {
		return RenderSummary{}, errors.New("expression is required")
	}
	if err := ctx.Err(); err != nil {
		return RenderSummary{}, err
	}
	outDir := req.OutDir
	if outDir == "" {
		outDir = c.plotsDir
	}

	tree, err := parseTree(req.Expression, req.Vars, nil)
	if err != nil {
		return RenderSummary{}, err
	}
	traj, err := c.scape.Simulate(tree, req.Constants)
	if err != nil {
		return RenderSummary{}, err
	}

	var overlay *render.TargetOverlay
	if req.Overlay {
		cfg := c.scape.Config()
		overlay = &render.TargetOverlay{Amplitude: cfg.TargetAmplitude, Frequency: cfg.TargetFrequency}
	}

	summary := RenderSummary{
		TrajectoryPNG: filepath.Join(outDir, "trajectory.png"),
		PhasePNG:      filepath.Join(outDir, "phase.png"),
		CSV:           filepath.Join(outDir, "trajectory.csv"),
	}
	title := tree.String()
	if err := render.TrajectoryPlot(traj, title, overlay, summary.TrajectoryPNG); err != nil {
		return RenderSummary{}, err
	}
	if err := render.PhasePortrait(traj, title, summary.PhasePNG); err != nil {
		return RenderSummary{}, err
	}
	if err := render.WriteTrajectoryCSV(traj, summary.CSV); err != nil {
		return RenderSummary{}, err
	}
	return summary, nil
}

// TopCandidates lists archived candidates ordered best-first. With a RunID
// or Latest the listing is restricted to one run; otherwise it spans the
// whole archive.
func (c *Client) TopCandidates(ctx context.Context, req TopRequest) ([]CandidateItem, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}

	runID := req.RunID
	if req.Latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, errors.New("no runs available")
		}
		runID = runs[0].ID
	}

	records, err := c.store.ListCandidates(ctx, runID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return fitnessFromRecord(records[i].Fitness).Less(fitnessFromRecord(records[j].Fitness))
	})
	if len(records) > req.Limit {
		records = records[:req.Limit]
	}

	out := make([]CandidateItem, 0, len(records))
	for _, record := range records {
		out = append(out, CandidateItem{
			CandidateID:    record.ID,
			RunID:          record.RunID,
			Expression:     record.Expression,
			Constants:      append([]float64(nil), record.Optimized...),
			AmplitudeError: record.Fitness.AmplitudeError,
			FrequencyError: record.Fitness.FrequencyError,
			Size:           record.Fitness.Size,
			Penalized:      record.Penalized,
			CreatedAtUTC:   record.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out, nil
}

// Runs lists archived runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}

	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) > req.Limit {
		records = records[:req.Limit]
	}

	out := make([]RunItem, 0, len(records))
	for _, record := range records {
		out = append(out, RunItem{
			RunID:           record.ID,
			CreatedAtUTC:    record.CreatedAt.UTC().Format(time.RFC3339Nano),
			Scape:           record.Scape,
			Omega:           record.Omega,
			Damping:         record.Damping,
			Coupling:        record.Coupling,
			Candidates:      record.Candidates,
			BestCandidateID: record.BestCandidateID,
		})
	}
	return out, nil
}

func (c *Client) ensureInit(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func (c *Client) candidateRecord(candidate *scape.Candidate, runID string, createdAt time.Time) model.CandidateRecord {
	return model.CandidateRecord{
		VersionedRecord: storage.Stamp(),
		ID:              uuid.NewString(),
		RunID:           runID,
		Expression:      candidate.Tree.String(),
		Variables:       candidate.Tree.Vars(),
		Constants:       candidate.Tree.Consts(),
		Optimized:       append([]float64(nil), candidate.Constants...),
		Fitness: model.FitnessRecord{
			AmplitudeError: candidate.Fitness.AmplitudeError,
			FrequencyError: candidate.Fitness.FrequencyError,
			Size:           candidate.Fitness.Size,
		},
		Penalized: candidate.Penalized,
		CreatedAt: createdAt,
	}
}

func configFromExperiment(experiment ExperimentConfig) scape.OscillatorConfig {
	return scape.OscillatorConfig{
		Params: dynamics.OscillatorParams{
			Omega:    experiment.Omega,
			Damping:  experiment.Damping,
			Coupling: experiment.Coupling,
		},
		Initial:         append([]float64(nil), experiment.Initial...),
		GridStart:       experiment.GridStart,
		GridStop:        experiment.GridStop,
		GridPoints:      experiment.GridPoints,
		TargetAmplitude: experiment.TargetAmplitude,
		TargetFrequency: experiment.TargetFrequency,
		NaNSentinel:     experiment.NaNSentinel,
	}
}

func parseTree(expression string, vars, consts []string) (*expr.Tree, error) {
	if len(vars) == 0 {
		vars = defaultVars
	}
	if len(consts) > 0 {
		return expr.Parse(expression, vars, consts)
	}
	return expr.ParseAuto(expression, vars)
}

func fitnessFromRecord(record model.FitnessRecord) scape.Fitness {
	return scape.Fitness{
		AmplitudeError: record.AmplitudeError,
		FrequencyError: record.FrequencyError,
		Size:           record.Size,
	}
}

func traceInt(trace scape.Trace, key string) int {
	v, _ := trace[key].(int)
	return v
}

func traceBool(trace scape.Trace, key string) bool {
	v, _ := trace[key].(bool)
	return v
}

func traceFloat(trace scape.Trace, key string) float64 {
	v, _ := trace[key].(float64)
	return v
}
