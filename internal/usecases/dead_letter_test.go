package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportdesk/internal/entities"
)

type recordingAlerter struct {
	texts []string
	err   error
}

func (a *recordingAlerter) Alert(_ context.Context, text string) error {
	a.texts = append(a.texts, text)
	return a.err
}

func TestDeadLetterRecorderStoresAndAlerts(t *testing.T) {
	store := newMemDeadLetters()
	alerter := &recordingAlerter{}
	rec := NewDeadLetterRecorder(store, alerter)

	job := &InboundJob{Message: entities.InboundMessage{ID: "wamid.1", From: "5491100000000", Text: "hola"}}
	rec.DeadLetter(context.Background(), job, 3, errors.New("openai: 503"))

	list, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, SourceWhatsApp, list[0].Source)
	assert.Equal(t, 3, list[0].Attempts)
	assert.Equal(t, "openai: 503", list[0].Error)

	var back InboundJob
	require.NoError(t, json.Unmarshal(list[0].Payload, &back))
	assert.Equal(t, "wamid.1", back.Message.ID)

	require.Len(t, alerter.texts, 1)
	assert.Contains(t, alerter.texts[0], "5491100000000")
	assert.Contains(t, alerter.texts[0], "3 intentos")
}

func TestDeadLetterRecorderAlertFailureIsSwallowed(t *testing.T) {
	store := newMemDeadLetters()
	rec := NewDeadLetterRecorder(store, &recordingAlerter{err: errors.New("telegram down")})
	rec.DeadLetter(context.Background(), &InboundJob{}, 0, nil)

	list, _ := store.List(context.Background(), 10)
	require.Len(t, list, 1)
	assert.Equal(t, "unknown", list[0].Error)
}
