package service_test

import (
	"testing"

	"translation-server/internal/models"
	"translation-server/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	legal := []struct {
		from, to models.TranslationStatus
	}{
		{models.TranslationStatusPlanned, models.TranslationStatusInProgress},
		{models.TranslationStatusInProgress, models.TranslationStatusCompleted},
		{models.TranslationStatusInProgress, models.TranslationStatusFailed},
		{models.TranslationStatusCompleted, models.TranslationStatusStale},
		{models.TranslationStatusStale, models.TranslationStatusInProgress},
		{models.TranslationStatusFailed, models.TranslationStatusInProgress},
	}
	for _, tc := range legal {
		assert.True(t, service.CanTransition(tc.from, tc.to), "%s -> %s должен быть легален", tc.from, tc.to)
	}

	illegal := []struct {
		from, to models.TranslationStatus
	}{
		{models.TranslationStatusPlanned, models.TranslationStatusCompleted},
		{models.TranslationStatusPlanned, models.TranslationStatusFailed},
		{models.TranslationStatusPlanned, models.TranslationStatusStale},
		{models.TranslationStatusCompleted, models.TranslationStatusInProgress},
		{models.TranslationStatusCompleted, models.TranslationStatusFailed},
		{models.TranslationStatusFailed, models.TranslationStatusCompleted},
		{models.TranslationStatusFailed, models.TranslationStatusStale},
		{models.TranslationStatusStale, models.TranslationStatusCompleted},
		{models.TranslationStatusStale, models.TranslationStatusFailed},
	}
	for _, tc := range illegal {
		assert.False(t, service.CanTransition(tc.from, tc.to), "%s -> %s должен быть отклонен", tc.from, tc.to)
	}

	// Переход "на месте" — не смена статуса.
	for _, status := range []models.TranslationStatus{
		models.TranslationStatusPlanned,
		models.TranslationStatusInProgress,
		models.TranslationStatusCompleted,
		models.TranslationStatusFailed,
		models.TranslationStatusStale,
	} {
		assert.True(t, service.CanTransition(status, status))
	}
}

func TestTransition(t *testing.T) {
	record := &models.Translation{Status: models.TranslationStatusPlanned}

	require.NoError(t, service.Transition(record, models.TranslationStatusInProgress))
	assert.Equal(t, models.TranslationStatusInProgress, record.Status)

	err := service.Transition(record, models.TranslationStatusStale)
	var trErr *models.InvalidTransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, models.TranslationStatusInProgress, trErr.From)
	assert.Equal(t, models.TranslationStatusStale, trErr.To)
	assert.Equal(t, models.TranslationStatusInProgress, record.Status, "статус не меняется при отказе")
}
