package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/flashbots/quantagg/tensor"
)

// ServiceConfig contains the collector's deployment configuration.
type ServiceConfig struct {
	// Spec is the structured value type contributors submit. Must be
	// fully static with floating-point leaves.
	Spec tensor.Spec

	// StepSize is the quantization grid spacing.
	StepSize float64

	// MinContributors is the minimum number of contributions required
	// to aggregate a round; rounds below the threshold are skipped.
	MinContributors int

	// RoundDuration is the length of one contribution window.
	RoundDuration time.Duration

	// Log is the structured logger; defaults to slog.Default().
	Log *slog.Logger
}

// Validate fills defaults and rejects unusable configurations.
func (c *ServiceConfig) Validate() error {
	if c.Spec == nil {
		return fmt.Errorf("value spec is required")
	}
	if c.StepSize <= 0 {
		return fmt.Errorf("step size must be positive, got %v", c.StepSize)
	}
	if c.MinContributors <= 0 {
		c.MinContributors = 1
	}
	if c.RoundDuration <= 0 {
		return fmt.Errorf("round duration must be positive, got %v", c.RoundDuration)
	}
	if c.Log == nil {
		c.Log = slog.Default()
	}
	return nil
}

// ContributionRequest is one contributor's submission for a round.
type ContributionRequest struct {
	Round         int             `json:"round"`
	ContributorID string          `json:"contributor_id"`
	Value         json.RawMessage `json:"value"`
}

// ContributionResponse acknowledges a submission.
type ContributionResponse struct {
	Accepted bool   `json:"accepted"`
	Round    int    `json:"round"`
	Message  string `json:"message,omitempty"`
}

// RoundResultResponse is the wire form of a completed round record.
type RoundResultResponse struct {
	Round           int             `json:"round"`
	NumContributors int             `json:"num_contributors"`
	Result          json.RawMessage `json:"result"`
	QuantizedResult json.RawMessage `json:"quantized_result"`
	Distortion      *float64        `json:"distortion,omitempty"`
	CompletedAt     time.Time       `json:"completed_at"`
}

// StatusResponse reports the collector's live state.
type StatusResponse struct {
	CurrentRound    int     `json:"current_round"`
	PendingCount    int     `json:"pending_count"`
	StepSize        float64 `json:"step_size"`
	MinContributors int     `json:"min_contributors"`
}

func roundResultResponse(rec *RoundRecord) (*RoundResultResponse, error) {
	result, err := tensor.MarshalValue(rec.Result)
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	quantized, err := tensor.MarshalValue(rec.Quantized)
	if err != nil {
		return nil, fmt.Errorf("marshaling quantized result: %w", err)
	}
	return &RoundResultResponse{
		Round:           rec.Round,
		NumContributors: rec.NumContributors,
		Result:          result,
		QuantizedResult: quantized,
		Distortion:      rec.Distortion,
		CompletedAt:     rec.CompletedAt,
	}, nil
}
