package entity

import "time"

// SellingPlan — набор предметов, отобранных к продаже на одном аккаунте.
type SellingPlan struct {
	Account     string
	Target      int64
	Selected    []PricedItem
	TotalValue  int64
	UnderTarget bool
}

// TransferPlan — план передачи предметов с донора на аккаунт-получатель.
type TransferPlan struct {
	Donor      string
	Receiver   string
	AssetIDs   []string
	TotalValue int64
}

// AccountResult — итог цикла продажи по одному аккаунту.
type AccountResult struct {
	Account       string
	FinalState    LifecycleState
	Attempted     int
	Sold          int
	Dropped       int
	ResidualValue int64
	WalletBefore  int64
	WalletAfter   int64
	UnderTarget   bool
	Errors        []string
}

// WalletDelta возвращает изменение баланса за цикл.
func (r AccountResult) WalletDelta() int64 {
	return r.WalletAfter - r.WalletBefore
}

// RunOutcome — итог запуска в целом.
type RunOutcome string

const (
	RunOutcomeSuccess RunOutcome = "success"
	RunOutcomePartial RunOutcome = "partial"
	RunOutcomeFailed  RunOutcome = "failed"
)

// RunSummary — сводка одного запуска распродажи.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    RunOutcome
	Accounts   []AccountResult
	Errors     []string
}

// Outcome классифицирует список результатов: полный успех, частичный
// или полный провал.
func SummarizeOutcome(results []AccountResult, runErrors []string) RunOutcome {
	if len(results) == 0 && len(runErrors) > 0 {
		return RunOutcomeFailed
	}

	failed := 0
	for _, r := range results {
		if len(r.Errors) > 0 || r.FinalState == StateMaxAttemptsExceeded {
			failed++
		}
	}

	switch {
	case failed == 0 && len(runErrors) == 0:
		return RunOutcomeSuccess
	case failed == len(results) && len(results) > 0:
		return RunOutcomeFailed
	default:
		return RunOutcomePartial
	}
}
