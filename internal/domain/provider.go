package domain

import (
	"context"
	"encoding/json"
)

// Provider names, in display order.
const (
	ProviderGemini  = "gemini"
	ProviderCohere  = "cohere"
	ProviderMistral = "mistral"
)

// ProviderNames is the fixed display order of the three providers.
var ProviderNames = []string{ProviderGemini, ProviderCohere, ProviderMistral}

// Provider is the contract each text-generation adapter implements.
// Call never returns an error: every failure is folded into the result.
type Provider interface {
	Name() string
	Call(ctx context.Context, query string) ProviderResult
}

// ProviderResult is the normalized outcome of a single provider call.
// Exactly one of Text and Error is meaningful, selected by Success.
type ProviderResult struct {
	Success bool
	Text    string
	Error   string
}

// Succeeded builds a successful result. An empty text is still a success.
func Succeeded(text string) ProviderResult {
	return ProviderResult{Success: true, Text: text}
}

// Failed builds a failed result carrying a caller-facing message.
func Failed(msg string) ProviderResult {
	return ProviderResult{Success: false, Error: msg}
}

func (r ProviderResult) MarshalJSON() ([]byte, error) {
	if r.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Text    string `json:"text"`
		}{true, r.Text})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{false, r.Error})
}

func (r *ProviderResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Success bool   `json:"success"`
		Text    string `json:"text"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ProviderResult{Success: raw.Success}
	if raw.Success {
		r.Text = raw.Text
	} else {
		r.Error = raw.Error
	}
	return nil
}
