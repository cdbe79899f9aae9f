package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// AgentSensor talks to the device shell's sensor agent over HTTP. The
// agent owns the native prompt; this client enforces the
// single-outstanding-challenge contract locally so a racing second call
// fails fast with ReasonInProgress instead of reaching the hardware.
type AgentSensor struct {
	baseURL string
	client  *http.Client
	busy    atomic.Bool
}

var _ Sensor = (*AgentSensor)(nil)

// NewAgentSensor creates a sensor client for the agent at baseURL
// (e.g. "http://127.0.0.1:9321"). The HTTP client carries no timeout:
// a challenge waits as long as the platform prompt does.
func NewAgentSensor(baseURL string) *AgentSensor {
	return &AgentSensor{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

type availabilityResponse struct {
	Available    bool   `json:"available"`
	BiometryType string `json:"biometryType,omitempty"`
}

type challengeRequest struct {
	PromptMessage string `json:"promptMessage"`
}

type challengeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *AgentSensor) Available(ctx context.Context) (Availability, error) {
	// Availability is a quick hardware query; don't let a wedged agent
	// stall the caller the way an open prompt legitimately would.
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.baseURL+"/v1/availability", nil)
	if err != nil {
		return Availability{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Availability{}, fmt.Errorf("querying sensor agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Availability{}, fmt.Errorf("sensor agent returned status %d", resp.StatusCode)
	}

	var body availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Availability{}, fmt.Errorf("decoding availability response: %w", err)
	}
	return Availability{Available: body.Available, Kind: Kind(body.BiometryType)}, nil
}

func (s *AgentSensor) Challenge(ctx context.Context, prompt string) (Result, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return Result{
			Outcome: OutcomeFailed,
			Reason:  ReasonInProgress,
			Message: "authentication already in progress",
		}, nil
	}
	defer s.busy.Store(false)

	payload, err := json.Marshal(challengeRequest{PromptMessage: prompt})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/challenge", bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling sensor agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("sensor agent returned status %d", resp.StatusCode)
	}

	var body challengeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("decoding challenge response: %w", err)
	}

	if body.Success {
		return Result{Outcome: OutcomeSuccess}, nil
	}

	reason := NormalizeReason(body.Error)
	outcome := OutcomeFailed
	if reason == ReasonUserCancel {
		outcome = OutcomeCancelled
	}
	return Result{Outcome: outcome, Reason: reason, Message: body.Error}, nil
}
