package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultHFModel   = "facebook/bart-large-cnn"
	DefaultHFBaseURL = "https://api-inference.huggingface.co/models/"
	hfMaxRespBytes   = 256 * 1024
)

// HuggingFace calls the hosted inference API of a summarization model.
type HuggingFace struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewHuggingFace(apiKey, model string) *HuggingFace {
	if model == "" {
		model = DefaultHFModel
	}
	return &HuggingFace{
		apiKey:  apiKey,
		model:   model,
		baseURL: DefaultHFBaseURL,
		client:  &http.Client{},
	}
}

// WithBaseURL points the client at another endpoint; used by tests.
func (h *HuggingFace) WithBaseURL(u string) *HuggingFace {
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	h.baseURL = u
	return h
}

func (h *HuggingFace) Name() string { return "huggingface" }

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxLength int `json:"max_length"`
}

type hfSummary struct {
	SummaryText string `json:"summary_text"`
}

type hfError struct {
	Error string `json:"error"`
}

func (h *HuggingFace) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	body, err := json.Marshal(hfRequest{Inputs: text, Parameters: hfParameters{MaxLength: maxTokens}})
	if err != nil {
		return "", fmt.Errorf("huggingface: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+h.model, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+h.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("huggingface: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, hfMaxRespBytes))
	if err != nil {
		return "", fmt.Errorf("huggingface: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr hfError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return "", fmt.Errorf("huggingface: status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return "", fmt.Errorf("huggingface: status %d", resp.StatusCode)
	}

	var out []hfSummary
	if err := json.Unmarshal(raw, &out); err != nil {
		var apiErr hfError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return "", errors.New("huggingface: " + apiErr.Error)
		}
		return "", fmt.Errorf("huggingface: malformed response: %w", err)
	}
	if len(out) == 0 || strings.TrimSpace(out[0].SummaryText) == "" {
		return "", ErrEmptySummary
	}
	return strings.TrimSpace(out[0].SummaryText), nil
}
