package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// maxPendingPerUser bounds how many updates of one user may wait for processing.
const maxPendingPerUser = 32

// HandlerFunc processes one update.
type HandlerFunc func(ctx context.Context, update tgbotapi.Update)

// Dispatcher runs updates of the same user one at a time in arrival order,
// while different users are processed in parallel. A user's worker goroutine
// exits as soon as its queue is empty.
type Dispatcher struct {
	ctx    context.Context
	handle HandlerFunc
	logger *zap.Logger

	mu     sync.Mutex
	queues map[int64][]tgbotapi.Update
	wg     sync.WaitGroup
}

func NewDispatcher(ctx context.Context, handle HandlerFunc, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		ctx:    ctx,
		handle: handle,
		logger: logger.Named("dispatcher"),
		queues: make(map[int64][]tgbotapi.Update),
	}
}

// Dispatch enqueues update. It never blocks on handler execution.
func (d *Dispatcher) Dispatch(update tgbotapi.Update) {
	userID := updateUserID(update)

	d.mu.Lock()
	pending, running := d.queues[userID]
	if running {
		if len(pending) >= maxPendingPerUser {
			d.mu.Unlock()
			d.logger.Warn("Dropping update, user queue full",
				zap.Int64("user_id", userID),
				zap.Int("update_id", update.UpdateID))
			return
		}
		d.queues[userID] = append(pending, update)
		d.mu.Unlock()
		return
	}
	// 队列存在即表示 worker 在运行
	d.queues[userID] = []tgbotapi.Update{}
	d.wg.Add(1)
	d.mu.Unlock()

	go d.work(userID, update)
}

func (d *Dispatcher) work(userID int64, first tgbotapi.Update) {
	defer d.wg.Done()
	update := first
	for {
		d.handle(d.ctx, update)

		d.mu.Lock()
		pending := d.queues[userID]
		if len(pending) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		update = pending[0]
		d.queues[userID] = pending[1:]
		d.mu.Unlock()
	}
}

// Active returns the number of users with a running worker.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Wait blocks until every queued update has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
