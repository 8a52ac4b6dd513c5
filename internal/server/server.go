package server

import (
	"context"
	"net/http"
	"time"

	"git.appkode.ru/pub/go/failure"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"items_seller/internal/domain/entity"
	"items_seller/internal/worker"
	"items_seller/pkg/errcodes"
	"items_seller/pkg/httpx/reply"
	"items_seller/pkg/httpx/req"
	"items_seller/pkg/middlewarex"
)

// Enqueuer ставит задачи в очередь. Интерфейс закрывает asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Server — операторский HTTP: сводки запусков и постановка запуска в
// очередь.
type Server struct {
	registry *worker.Registry
	enqueuer Enqueuer
}

func New(registry *worker.Registry, enqueuer Enqueuer) *Server {
	return &Server{
		registry: registry,
		enqueuer: enqueuer,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middlewarex.TraceID)
	r.Use(middlewarex.Logger)
	r.Use(middlewarex.Recovery)

	r.Route("/v1/runs", func(r chi.Router) {
		r.Get("/latest", s.latestRun)
		r.Get("/{id}", s.getRun)
		r.Post("/", s.enqueueRun)
	})

	return r
}

type accountResultResponse struct {
	Account       string   `json:"account"`
	FinalState    string   `json:"finalState"`
	Attempted     int      `json:"attempted"`
	Sold          int      `json:"sold"`
	Dropped       int      `json:"dropped"`
	ResidualValue int64    `json:"residualValue"`
	WalletBefore  int64    `json:"walletBefore"`
	WalletAfter   int64    `json:"walletAfter"`
	WalletDelta   int64    `json:"walletDelta"`
	UnderTarget   bool     `json:"underTarget"`
	Errors        []string `json:"errors,omitempty"`
}

type runResponse struct {
	ID         string                  `json:"id"`
	StartedAt  string                  `json:"startedAt"`
	FinishedAt string                  `json:"finishedAt"`
	Outcome    string                  `json:"outcome"`
	Accounts   []accountResultResponse `json:"accounts"`
	Errors     []string                `json:"errors,omitempty"`
}

func toRunResponse(summary entity.RunSummary) runResponse {
	accounts := make([]accountResultResponse, 0, len(summary.Accounts))
	for _, a := range summary.Accounts {
		accounts = append(accounts, accountResultResponse{
			Account:       a.Account,
			FinalState:    string(a.FinalState),
			Attempted:     a.Attempted,
			Sold:          a.Sold,
			Dropped:       a.Dropped,
			ResidualValue: a.ResidualValue,
			WalletBefore:  a.WalletBefore,
			WalletAfter:   a.WalletAfter,
			WalletDelta:   a.WalletDelta(),
			UnderTarget:   a.UnderTarget,
			Errors:        a.Errors,
		})
	}

	return runResponse{
		ID:         summary.ID,
		StartedAt:  summary.StartedAt.Format(time.RFC3339),
		FinishedAt: summary.FinishedAt.Format(time.RFC3339),
		Outcome:    string(summary.Outcome),
		Accounts:   accounts,
		Errors:     summary.Errors,
	}
}

func (s *Server) latestRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, ok := s.registry.Latest()
	if !ok {
		reply.Error(ctx, w, failure.NewNotFoundError(
			"no runs yet",
			failure.WithCode(errcodes.NotFound),
			failure.WithDescription("No runs have been recorded yet"),
		))
		return
	}

	reply.JSON(ctx, w, http.StatusOK, toRunResponse(summary))
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := chi.URLParam(r, "id")

	summary, ok := s.registry.Get(id)
	if !ok {
		reply.Error(ctx, w, failure.NewNotFoundError(
			"run not found",
			failure.WithCode(errcodes.NotFound),
			failure.WithDescription("Run not found"),
		))
		return
	}

	reply.JSON(ctx, w, http.StatusOK, toRunResponse(summary))
}

type createRunRequest struct {
	Accounts   []string `json:"accounts"`
	SellAll    bool     `json:"sellAll"`
	Distribute bool     `json:"distribute"`
}

type createRunResponse struct {
	TaskID string `json:"taskId"`
	Queue  string `json:"queue"`
}

func (s *Server) enqueueRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var request createRunRequest
	if err := req.Read(r, &request); err != nil {
		reply.Error(ctx, w, err)
		return
	}

	task, err := worker.NewRunTask(worker.Options{
		Accounts:   request.Accounts,
		SellAll:    request.SellAll,
		Distribute: request.Distribute,
	})
	if err != nil {
		reply.Error(ctx, w, err)
		return
	}

	info, err := s.enqueuer.EnqueueContext(ctx, task)
	if err != nil {
		reply.Error(ctx, w, err)
		return
	}

	logger(ctx).Info("run enqueued", "task_id", info.ID)

	reply.JSON(ctx, w, http.StatusAccepted, createRunResponse{
		TaskID: info.ID,
		Queue:  info.Queue,
	})
}
