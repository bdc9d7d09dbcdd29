package service

import (
	"translation-server/internal/models"
)

// legalTransitions — закрытая таблица легальных переходов статуса перевода.
// Все, чего здесь нет, отклоняется с InvalidTransitionError:
//
//	planned     -> in_progress
//	in_progress -> completed | failed
//	completed   -> stale        (только синхронизатор, при дрейфе master)
//	stale       -> in_progress  (ретрансляция)
//	failed      -> in_progress  (ретрай)
var legalTransitions = map[models.TranslationStatus][]models.TranslationStatus{
	models.TranslationStatusPlanned:    {models.TranslationStatusInProgress},
	models.TranslationStatusInProgress: {models.TranslationStatusCompleted, models.TranslationStatusFailed},
	models.TranslationStatusCompleted:  {models.TranslationStatusStale},
	models.TranslationStatusStale:      {models.TranslationStatusInProgress},
	models.TranslationStatusFailed:     {models.TranslationStatusInProgress},
}

// CanTransition проверяет легальность перехода from -> to.
// Переход "на месте" (from == to) легален: это не смена статуса.
func CanTransition(from, to models.TranslationStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition меняет статус записи или возвращает InvalidTransitionError,
// называющую текущий и запрошенный статусы.
func Transition(t *models.Translation, to models.TranslationStatus) error {
	if !CanTransition(t.Status, to) {
		return &models.InvalidTransitionError{From: t.Status, To: to}
	}
	t.Status = to
	return nil
}
