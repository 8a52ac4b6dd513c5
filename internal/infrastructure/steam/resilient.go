package steam

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"git.appkode.ru/pub/go/failure"

	"items_seller/internal/domain"
	"items_seller/pkg/errcodes"
	"items_seller/pkg/logx"
)

// Policy — параметры повторов обёртки.
type Policy struct {
	MaxRetries        int
	SimpleOps         map[string]struct{}
	SimpleBackoffMin  time.Duration
	SimpleBackoffMax  time.Duration
	RefreshBackoffMin time.Duration
	RefreshBackoffMax time.Duration
}

// DefaultPolicy — три повтора; login/logout/close повторяются без
// пересоздания сессии с растущей паузой.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		SimpleOps: map[string]struct{}{
			"login":  {},
			"logout": {},
			"close":  {},
		},
		SimpleBackoffMin:  15 * time.Second,
		SimpleBackoffMax:  25 * time.Second,
		RefreshBackoffMin: 10 * time.Second,
		RefreshBackoffMax: 20 * time.Second,
	}
}

// Sleeper переопределяется в тестах, чтобы не ждать реальные паузы.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryObserver получает каждый цикл повтора: имя операции и класс
// ошибки.
type RetryObserver func(op string, code failure.ErrorCode)

// Caller оборачивает вызовы клиента повторами по классам ошибок.
// Текущий клиент живёт внутри: после пересоздания сессии все
// последующие вызовы идут через новый клиент.
type Caller struct {
	mu       sync.Mutex
	client   TradeClient
	factory  ClientFactory
	policy   Policy
	sleep    Sleeper
	rnd      *rand.Rand
	observer RetryObserver
}

type CallerOption func(*Caller)

func WithSleeper(sleep Sleeper) CallerOption {
	return func(c *Caller) {
		c.sleep = sleep
	}
}

func WithPolicy(policy Policy) CallerOption {
	return func(c *Caller) {
		c.policy = policy
	}
}

func WithRetryObserver(observer RetryObserver) CallerOption {
	return func(c *Caller) {
		c.observer = observer
	}
}

func NewCaller(client TradeClient, factory ClientFactory, opts ...CallerOption) *Caller {
	c := &Caller{
		client:  client,
		factory: factory,
		policy:  DefaultPolicy(),
		sleep:   sleepCtx,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // джиттер пауз
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Client возвращает текущий клиент (после возможных пересозданий).
func (c *Caller) Client() TradeClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// Call выполняет операцию с повторами.
//
// Простые операции (login/logout/close) повторяются на любой ошибке с
// паузой attempt × U(min,max) без пересоздания клиента. Остальные на
// любом повторяемом коде пересоздают клиент через фабрику: временная
// ошибка площадки чаще всего означает протухшую сессию. Терминальные
// коды уходят наверх без повторов.
func (c *Caller) Call(ctx context.Context, op string, fn func(ctx context.Context, client TradeClient) error) error {
	_, simple := c.policy.SimpleOps[op]

	var lastErr error

	for attempt := 1; ; attempt++ {
		err := fn(ctx, c.Client())
		if err == nil {
			return nil
		}
		lastErr = err

		code, ok := domain.GetCode(err)
		if !ok && !simple {
			return err
		}

		if attempt > c.policy.MaxRetries {
			return lastErr
		}

		var wait time.Duration

		switch {
		case simple:
			wait = time.Duration(attempt) * c.jitter(c.policy.SimpleBackoffMin, c.policy.SimpleBackoffMax)
		case code == errcodes.SessionExpired, code == errcodes.TransientRemoteError:
			if err := c.refreshSession(ctx); err != nil {
				return err
			}
			wait = c.jitter(c.policy.RefreshBackoffMin, c.policy.RefreshBackoffMax)
		default:
			// Терминальный класс: повторы не помогут.
			return err
		}

		if c.observer != nil {
			c.observer(op, code)
		}

		logger(ctx).Warn(
			"retrying operation",
			logx.FieldOperation, op,
			logx.FieldAttempt, attempt,
			logx.FieldError, err.Error(),
		)

		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// refreshSession сохраняет артефакт сессии, закрывает клиент и
// пересобирает его из учётных данных.
func (c *Caller) refreshSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.client.SaveSession(); err != nil {
		logger(ctx).Warn("session save failed, full login follows", logx.FieldError, err.Error())
	}

	if err := c.client.Close(ctx); err != nil {
		logger(ctx).Warn("client close failed", logx.FieldError, err.Error())
	}

	client, err := c.factory.New(ctx)
	if err != nil {
		return domain.WrapError(err, errcodes.SessionExpired, "session refresh failed")
	}

	c.client = client

	return nil
}

func (c *Caller) jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(c.rnd.Int63n(int64(max-min)))
}
