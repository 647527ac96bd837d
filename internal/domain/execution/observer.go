package execution

import "github.com/felixgeelhaar/edgeprov/internal/domain/compiler"

// Observer is notified as steps start and finish. Steps left pending by a
// failed dependency or an aborted run produce no notifications.
type Observer interface {
	StepStarted(id compiler.StepID)
	StepFinished(result StepResult)
}

// Observers fans notifications out to several observers.
type Observers []Observer

// StepStarted notifies every observer.
func (o Observers) StepStarted(id compiler.StepID) {
	for _, obs := range o {
		obs.StepStarted(id)
	}
}

// StepFinished notifies every observer.
func (o Observers) StepFinished(result StepResult) {
	for _, obs := range o {
		obs.StepFinished(result)
	}
}
