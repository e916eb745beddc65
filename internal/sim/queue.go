package sim

import (
	"runtime/debug"
	"sync"

	"dartagnan/server/internal/telemetry"
)

const (
	queueOccupancyMetricKey = "sim_queue_occupancy"
	queueSubmittedMetricKey = "sim_queue_submitted_total"
	queuePanicMetricKey     = "sim_queue_handler_panics_total"
)

// Queue serializes all world mutations: any goroutine may Submit, exactly
// one worker drains in submission order. Submit never blocks; the ring
// grows instead of rejecting.
type Queue struct {
	mu     sync.Mutex
	data   []Command
	head   int
	tail   int
	count  int
	signal chan struct{}

	apply   func(Command)
	logger  telemetry.Logger
	metrics telemetry.Metrics
}

// NewQueue constructs a queue whose worker executes apply for each command.
func NewQueue(apply func(Command), logger telemetry.Logger, metrics telemetry.Metrics) *Queue {
	return &Queue{
		data:    make([]Command, 64),
		signal:  make(chan struct{}, 1),
		apply:   apply,
		logger:  logger,
		metrics: metrics,
	}
}

// Submit stages a command for the worker. Safe from any goroutine.
func (q *Queue) Submit(cmd Command) {
	if q == nil {
		return
	}
	q.mu.Lock()
	if q.count == len(q.data) {
		q.growLocked()
	}
	q.data[q.tail] = cmd
	q.tail = (q.tail + 1) % len(q.data)
	q.count++
	if q.metrics != nil {
		q.metrics.Add(queueSubmittedMetricKey, 1)
		q.metrics.Store(queueOccupancyMetricKey, uint64(q.count))
	}
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *Queue) growLocked() {
	grown := make([]Command, len(q.data)*2)
	for i := 0; i < q.count; i++ {
		grown[i] = q.data[(q.head+i)%len(q.data)]
	}
	q.data = grown
	q.head = 0
	q.tail = q.count
}

// Pending reports the number of staged commands.
func (q *Queue) Pending() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Drain returns all staged commands in FIFO order and clears the queue.
func (q *Queue) Drain() []Command {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	commands := make([]Command, q.count)
	for i := 0; i < q.count; i++ {
		commands[i] = q.data[(q.head+i)%len(q.data)]
	}
	q.head = 0
	q.tail = 0
	q.count = 0
	if q.metrics != nil {
		q.metrics.Store(queueOccupancyMetricKey, 0)
	}
	return commands
}

// Run drains the queue until the stop channel closes. This is the only
// code path that mutates world state.
func (q *Queue) Run(stop <-chan struct{}) {
	if q == nil {
		return
	}
	for {
		select {
		case <-stop:
			return
		case <-q.signal:
			for _, cmd := range q.Drain() {
				q.safeApply(cmd)
			}
		}
	}
}

// safeApply isolates handler faults: a panicking handler is logged and the
// worker proceeds to the next command.
func (q *Queue) safeApply(cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			if q.metrics != nil {
				q.metrics.Add(queuePanicMetricKey, 1)
			}
			if q.logger != nil {
				q.logger.Printf("command %s for actor %d panicked: %v\n%s", cmd.Type, cmd.ActorID, r, debug.Stack())
			}
		}
	}()
	if q.apply != nil {
		q.apply(cmd)
	}
}
