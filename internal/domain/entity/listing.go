package entity

import "fmt"

// Listing — активный лот на торговой площадке.
type Listing struct {
	ID             string
	AssetID        string
	MarketHashName string
	Price          int64
}

// LifecycleState — состояние цикла продажи для одного аккаунта.
type LifecycleState string

const (
	StateIdle                LifecycleState = "idle"
	StateInitialSweep        LifecycleState = "initial_sweep"
	StateWaiting             LifecycleState = "waiting"
	StateAudit               LifecycleState = "audit"
	StateCleanupRound        LifecycleState = "cleanup_round"
	StateDone                LifecycleState = "done"
	StateMaxAttemptsExceeded LifecycleState = "max_attempts_exceeded"
)

// ValidTransitions — допустимые переходы между состояниями цикла.
var ValidTransitions = map[LifecycleState][]LifecycleState{
	StateIdle:                {StateInitialSweep},
	StateInitialSweep:        {StateWaiting, StateDone},
	StateWaiting:             {StateAudit},
	StateAudit:               {StateDone, StateCleanupRound, StateMaxAttemptsExceeded},
	StateCleanupRound:        {StateWaiting},
	StateDone:                {},
	StateMaxAttemptsExceeded: {},
}

// CanTransition проверяет допустимость перехода.
func CanTransition(from, to LifecycleState) bool {
	for _, next := range ValidTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition возвращает новое состояние либо ошибку при недопустимом
// переходе.
func Transition(from, to LifecycleState) (LifecycleState, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("invalid lifecycle transition %s -> %s", from, to)
	}
	return to, nil
}
