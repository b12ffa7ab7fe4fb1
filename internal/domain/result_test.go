package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryResult_MarshalKeepsDisplayOrder(t *testing.T) {
	r := NewQueryResult()
	r.Set(ProviderGemini, Succeeded("g"))
	r.Set(ProviderCohere, Failed("Error 401: bad key"))
	r.Set(ProviderMistral, Succeeded(""))
	r.Notification = &NotificationOutcome{Sent: true, Message: "ok"}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	want := `{"gemini":{"success":true,"text":"g"},` +
		`"cohere":{"success":false,"error":"Error 401: bad key"},` +
		`"mistral":{"success":true,"text":""},` +
		`"notification":{"sent":true,"message":"ok"}}`
	assert.Equal(t, want, string(data))
}

func TestQueryResult_NotificationOmittedWhenNil(t *testing.T) {
	r := NewQueryResult()
	r.Set(ProviderGemini, Succeeded("g"))

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"gemini":{"success":true,"text":"g"}}`, string(data))

	empty, err := json.Marshal(NewQueryResult())
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(empty))
}

func TestQueryResult_SetKeepsFirstPosition(t *testing.T) {
	r := NewQueryResult()
	r.Set(ProviderCohere, Succeeded("a"))
	r.Set(ProviderGemini, Succeeded("b"))
	r.Set(ProviderCohere, Succeeded("c"))

	assert.Equal(t, []string{ProviderCohere, ProviderGemini}, r.Names())
	got, _ := r.Get(ProviderCohere)
	assert.Equal(t, "c", got.Text, "re-set replaces the value")
}

func TestQueryResult_Unmarshal(t *testing.T) {
	in := `{"mistral":{"success":false,"error":"x"},"gemini":{"success":true,"text":""},"notification":{"sent":false,"message":"Discord no configurado"}}`
	var r QueryResult
	require.NoError(t, json.Unmarshal([]byte(in), &r))

	assert.Equal(t, []string{ProviderGemini, ProviderMistral}, r.Names(), "order follows display order")
	g, _ := r.Get(ProviderGemini)
	assert.True(t, g.Success)
	assert.Empty(t, g.Text)
	require.NotNil(t, r.Notification)
	assert.Equal(t, "Discord no configurado", r.Notification.Message)
}

func TestProviderResult_FailureHasNoText(t *testing.T) {
	data, err := json.Marshal(Failed("Error desconocido"))
	require.NoError(t, err)
	assert.Equal(t, `{"success":false,"error":"Error desconocido"}`, string(data))
}
