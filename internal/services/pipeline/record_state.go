package pipeline

import "github.com/ternarybob/hirescout/internal/models"

// recordState tracks which extraction methods a record has been through
type recordState int

const (
	stateNotStarted recordState = iota
	stateTriedAuthenticated
	stateTriedFallback
	stateDone
)

func (s recordState) String() string {
	switch s {
	case stateNotStarted:
		return "not_started"
	case stateTriedAuthenticated:
		return "tried_authenticated"
	case stateTriedFallback:
		return "tried_fallback"
	default:
		return "done"
	}
}

// nextMethod is the per-record decision table. It returns the method to try
// from state and the state once that method has run. An empty method means
// the record is finished. succeeded refers to the attempt that led to state.
func nextMethod(state recordState, authAvailable, succeeded bool) (models.ExtractionMethod, recordState) {
	switch state {
	case stateNotStarted:
		if authAvailable {
			return models.MethodAuthenticated, stateTriedAuthenticated
		}
		return models.MethodFallback, stateTriedFallback
	case stateTriedAuthenticated:
		if succeeded {
			return "", stateDone
		}
		return models.MethodFallback, stateTriedFallback
	default:
		return "", stateDone
	}
}
