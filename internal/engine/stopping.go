package engine

import (
	"github.com/irt-tools/cat-service/internal/config"
	"github.com/irt-tools/cat-service/internal/models"
)

// evaluateStopping applies the stopping rule after an ability update, before
// the next item is selected. Bank exhaustion is handled separately because
// it is only known once selection is attempted.
//
// Rules: force-complete at the configured maximum regardless of precision;
// complete when the standard error meets the threshold and the minimum item
// count is satisfied; otherwise keep going.
func evaluateStopping(cfg *config.StudyConfig, itemsGiven int, se float64) models.SessionStatus {
	if itemsGiven >= cfg.MaxItems {
		return models.SessionCompleted
	}
	if se <= cfg.SEThreshold && itemsGiven >= cfg.MinItems {
		return models.SessionCompleted
	}
	return models.SessionActive
}
