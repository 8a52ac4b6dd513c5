package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"items_seller/pkg/logx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

const (
	// TaskLiquidationRun — задача одного запуска распродажи.
	TaskLiquidationRun = "liquidation:run"

	// QueueLiquidation обслуживается одним воркером: запуски не
	// перекрываются.
	QueueLiquidation = "liquidation"
)

type runPayload struct {
	Accounts   []string `json:"accounts,omitempty"`
	SellAll    bool     `json:"sellAll,omitempty"`
	Distribute bool     `json:"distribute,omitempty"`
}

// NewRunTask собирает задачу запуска с параметрами.
func NewRunTask(opts Options) (*asynq.Task, error) {
	payload, err := json.Marshal(runPayload{
		Accounts:   opts.Accounts,
		SellAll:    opts.SellAll,
		Distribute: opts.Distribute,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return asynq.NewTask(TaskLiquidationRun, payload, asynq.Queue(QueueLiquidation), asynq.MaxRetry(0)), nil
}

// RunHandler исполняет задачу запуска через оркестратор.
type RunHandler struct {
	orchestrator *Orchestrator
}

func NewRunHandler(orchestrator *Orchestrator) *RunHandler {
	return &RunHandler{orchestrator: orchestrator}
}

func (h *RunHandler) Handle(ctx context.Context, task *asynq.Task) error {
	var payload runPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
	}

	summary, err := h.orchestrator.Run(ctx, Options{
		Accounts:   payload.Accounts,
		SellAll:    payload.SellAll,
		Distribute: payload.Distribute,
	})
	if err != nil {
		return fmt.Errorf("orchestrator.Run: %w", err)
	}

	logger(ctx).Info(
		"scheduled run processed",
		logx.FieldRunID, summary.ID,
		"outcome", string(summary.Outcome),
	)

	return nil
}

// Scheduler периодически ставит задачу запуска в очередь.
type Scheduler struct {
	Redis    asynq.RedisClientOpt
	Interval time.Duration
}

func (s Scheduler) Run(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		scheduler := asynq.NewScheduler(s.Redis, &asynq.SchedulerOpts{})

		task, err := NewRunTask(Options{})
		if err != nil {
			return err
		}

		spec := fmt.Sprintf("@every %s", s.Interval)
		if _, err := scheduler.Register(spec, task); err != nil {
			return fmt.Errorf("scheduler.Register: %w", err)
		}

		go func() {
			<-ctx.Done()
			scheduler.Shutdown()
		}()

		logger(ctx).Info("liquidation scheduler started", "interval", s.Interval.String())

		if err := scheduler.Run(); err != nil {
			return fmt.Errorf("scheduler.Run: %w", err)
		}

		logger(ctx).Info("liquidation scheduler stopped")

		return nil
	})
}
