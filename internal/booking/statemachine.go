package booking

import (
	"github.com/iliyamo/reservation-engine/internal/apperr"
	"github.com/iliyamo/reservation-engine/internal/model"
)

// event is a lifecycle trigger.  advance carries its target separately.
type event string

const (
	evConfirm event = "confirm"
	evAdvance event = "advance"
	evCancel  event = "cancel"
	evNoShow  event = "no_show"
)

// releases reports whether entering s gives reserved capacity back.
// Completion never releases: the resource was consumed.
func releases(s model.Status) bool {
	return s == model.StatusCancelled || s == model.StatusNoShow
}

// nextStatus applies ev to a booking of kind k in status from.  target
// is only read for evAdvance.
func nextStatus(k model.Kind, from model.Status, ev event, target model.Status) (model.Status, error) {
	var to model.Status
	ok := false
	switch ev {
	case evConfirm:
		to = model.StatusConfirmed
		ok = from == model.StatusPending
	case evCancel:
		to = model.StatusCancelled
		ok = !from.IsFinished()
	case evNoShow:
		to = model.StatusNoShow
		ok = !from.IsFinished()
	case evAdvance:
		to = target
		ok = k.CanAdvance(from, target)
	}
	if !ok {
		return "", &apperr.TransitionError{From: string(from), To: string(to)}
	}
	return to, nil
}
