package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// NotificationOutcome reports what happened to the optional chat notification.
type NotificationOutcome struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// QueryResult is the per-request aggregate of all provider outcomes.
// Entries keep insertion order, which is the provider display order.
type QueryResult struct {
	names   []string
	results map[string]ProviderResult

	Notification *NotificationOutcome
}

// NewQueryResult returns an empty result with room for the three providers.
func NewQueryResult() *QueryResult {
	return &QueryResult{
		names:   make([]string, 0, len(ProviderNames)),
		results: make(map[string]ProviderResult, len(ProviderNames)),
	}
}

// Set stores the result for a provider. A name seen for the first time is
// appended to the display order; re-setting keeps the original position.
func (q *QueryResult) Set(name string, r ProviderResult) {
	if _, ok := q.results[name]; !ok {
		q.names = append(q.names, name)
	}
	q.results[name] = r
}

// Get returns the result for a provider, if present.
func (q *QueryResult) Get(name string) (ProviderResult, bool) {
	r, ok := q.results[name]
	return r, ok
}

// Names returns provider names in display order.
func (q *QueryResult) Names() []string {
	out := make([]string, len(q.names))
	copy(out, q.names)
	return out
}

func (q *QueryResult) Len() int { return len(q.names) }

// MarshalJSON writes providers in display order followed by the optional
// "notification" field.
func (q *QueryResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range q.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(q.results[name])
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	if q.Notification != nil {
		if len(q.names) > 0 {
			buf.WriteByte(',')
		}
		val, err := json.Marshal(q.Notification)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`"notification":`)
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores a result, recovering display order from the
// canonical provider order. Used by the CLI and tests.
func (q *QueryResult) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*q = *NewQueryResult()
	for _, name := range ProviderNames {
		v, ok := raw[name]
		if !ok {
			continue
		}
		var r ProviderResult
		if err := json.Unmarshal(v, &r); err != nil {
			return fmt.Errorf("unmarshal %s: %w", name, err)
		}
		q.Set(name, r)
	}
	if v, ok := raw["notification"]; ok {
		var n NotificationOutcome
		if err := json.Unmarshal(v, &n); err != nil {
			return fmt.Errorf("unmarshal notification: %w", err)
		}
		q.Notification = &n
	}
	return nil
}
