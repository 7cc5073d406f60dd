package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flashbots/quantagg/aggregator"
	"github.com/flashbots/quantagg/metrics"
	"github.com/flashbots/quantagg/quantize"
	"github.com/flashbots/quantagg/tensor"
)

// Collector runs the server side of the quantized aggregation
// protocol: it accepts one structured value per contributor per round,
// and at every round transition feeds the collected values through the
// stochastic discretization process, persisting the result.
//
// The collector owns the single process state slot. Rounds are
// serialized behind its mutex, so the process never observes the same
// state from two overlapping Next calls.
type Collector struct {
	cfg     *ServiceConfig
	process aggregator.Process
	store   RoundStore
	coord   RoundCoordinator
	log     *slog.Logger

	mu           sync.Mutex
	state        aggregator.State
	pendingRound int
	pending      map[string]tensor.Value
	arrival      []string // contributor IDs in order of acceptance
}

// NewCollector composes the discretization process over the configured
// value spec. Summation across contributors uses the plain sum
// process; distortion is aggregated with an unweighted mean.
func NewCollector(cfg *ServiceConfig, store RoundStore, coord RoundCoordinator) (*Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid collector config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("round store is required")
	}
	if coord == nil {
		return nil, fmt.Errorf("round coordinator is required")
	}

	process, err := aggregator.StochasticDiscretizationFactory{
		StepSize:      cfg.StepSize,
		Inner:         aggregator.SumFactory{},
		DistortionAgg: aggregator.UnweightedMeanFactory{},
	}.Create(cfg.Spec)
	if err != nil {
		return nil, err
	}

	return &Collector{
		cfg:     cfg,
		process: process,
		store:   store,
		coord:   coord,
		log:     cfg.Log,
		pending: make(map[string]tensor.Value),
	}, nil
}

// RegisterRoutes registers the collector's HTTP endpoints.
func (c *Collector) RegisterRoutes(r chi.Router) {
	r.Post("/contributions", c.handleContribution)
	r.Get("/rounds/latest", c.handleLatestRound)
	r.Get("/rounds/{round}", c.handleGetRound)
	r.Get("/spec", c.handleSpec)
	r.Get("/status", c.handleStatus)
}

// Start initializes the process state and begins consuming round
// transitions from the coordinator.
func (c *Collector) Start(ctx context.Context) error {
	state, err := c.process.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initializing process: %w", err)
	}

	c.mu.Lock()
	c.state = state
	c.pendingRound = c.coord.CurrentRound()
	c.mu.Unlock()

	transitions := c.coord.Subscribe(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case round, ok := <-transitions:
				if !ok {
					return
				}
				c.onRoundTransition(ctx, round)
			}
		}
	}()
	return nil
}

func (c *Collector) onRoundTransition(ctx context.Context, round int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if round <= c.pendingRound {
		return
	}
	closing := c.pendingRound
	values := make([]tensor.Value, 0, len(c.arrival))
	for _, id := range c.arrival {
		values = append(values, c.pending[id])
	}
	c.pending = make(map[string]tensor.Value)
	c.arrival = nil
	c.pendingRound = round

	c.closeRoundLocked(ctx, closing, values)
}

// closeRoundLocked aggregates one round's values. Called with c.mu
// held; this is what serializes Next calls on the one state slot.
func (c *Collector) closeRoundLocked(ctx context.Context, round int, values []tensor.Value) {
	if len(values) < c.cfg.MinContributors {
		c.log.Info("Skipping round with too few contributors",
			"round", round, "contributors", len(values), "min", c.cfg.MinContributors)
		metrics.IncRoundSkipped()
		return
	}

	start := time.Now()
	out, err := c.process.Next(ctx, c.state, values)
	if err != nil {
		// The state was not consumed; the next round resumes from it.
		c.log.Error("Round aggregation failed", "round", round, "err", err)
		return
	}
	c.state = out.State

	rec := &RoundRecord{
		Round:           round,
		NumContributors: len(values),
		Result:          out.Result,
		Quantized:       out.Measurements[aggregator.MeasurementQuantized],
		CompletedAt:     time.Now().UTC(),
	}
	if d, ok := out.Measurements[aggregator.MeasurementDistortion].(tensor.Tensor); ok && len(d.Floats) == 1 {
		rec.Distortion = &d.Floats[0]
		metrics.ObserveDistortion(d.Floats[0])
	}

	if err := c.store.SaveRound(ctx, rec); err != nil {
		c.log.Error("Persisting round failed", "round", round, "err", err)
		return
	}

	metrics.IncRoundCompleted()
	metrics.ObserveRoundDuration(time.Since(start))
	c.log.Info("Round aggregated",
		"round", round, "contributors", len(values), "took", time.Since(start))
}

func (c *Collector) handleContribution(w http.ResponseWriter, r *http.Request) {
	var req ContributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.IncContributionRejected("bad_request")
		http.Error(w, fmt.Sprintf("decoding contribution: %v", err), http.StatusBadRequest)
		return
	}
	if req.ContributorID == "" {
		metrics.IncContributionRejected("no_contributor")
		http.Error(w, "contributor_id is required", http.StatusBadRequest)
		return
	}

	value, err := tensor.UnmarshalValue(req.Value)
	if err != nil {
		metrics.IncContributionRejected("bad_value")
		http.Error(w, fmt.Sprintf("decoding value: %v", err), http.StatusBadRequest)
		return
	}
	if err := tensor.Check(c.cfg.Spec, value); err != nil {
		metrics.IncContributionRejected("spec_mismatch")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	current := c.pendingRound
	if req.Round != current {
		c.mu.Unlock()
		metrics.IncContributionRejected("round_mismatch")
		http.Error(w, fmt.Sprintf("contribution round %d does not match current round %d", req.Round, current), http.StatusConflict)
		return
	}
	if _, exists := c.pending[req.ContributorID]; exists {
		c.mu.Unlock()
		metrics.IncContributionRejected("duplicate")
		http.Error(w, fmt.Sprintf("duplicate contribution from %s", req.ContributorID), http.StatusConflict)
		return
	}
	c.pending[req.ContributorID] = value
	c.arrival = append(c.arrival, req.ContributorID)
	c.mu.Unlock()

	metrics.IncContributionReceived()
	writeJSON(w, http.StatusOK, ContributionResponse{Accepted: true, Round: current})
}

func (c *Collector) handleGetRound(w http.ResponseWriter, r *http.Request) {
	round, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil {
		http.Error(w, "invalid round number", http.StatusBadRequest)
		return
	}
	c.writeRound(w, r, func(ctx context.Context) (*RoundRecord, error) {
		return c.store.GetRound(ctx, round)
	})
}

func (c *Collector) handleLatestRound(w http.ResponseWriter, r *http.Request) {
	c.writeRound(w, r, c.store.LatestRound)
}

func (c *Collector) writeRound(w http.ResponseWriter, r *http.Request, fetch func(context.Context) (*RoundRecord, error)) {
	rec, err := fetch(r.Context())
	if errors.Is(err, ErrRoundNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp, err := roundResultResponse(rec)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *Collector) handleSpec(w http.ResponseWriter, r *http.Request) {
	raw, err := tensor.MarshalSpec(c.cfg.Spec)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(raw)
}

func (c *Collector) handleStatus(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	status := StatusResponse{
		CurrentRound:    c.pendingRound,
		PendingCount:    len(c.pending),
		StepSize:        c.cfg.StepSize,
		MinContributors: c.cfg.MinContributors,
	}
	c.mu.Unlock()
	writeJSON(w, http.StatusOK, status)
}

// EncodedSpec exposes the Int32 wire spec the inner summation runs
// over, for diagnostic tooling.
func (c *Collector) EncodedSpec() tensor.Spec {
	return quantize.EncodedSpec(c.cfg.Spec)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
