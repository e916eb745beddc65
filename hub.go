// Package server hosts the network surface of a room: the broadcast hub,
// the framed TCP and websocket session handlers and process wiring.
package server

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"dartagnan/server/internal/proto"
	"dartagnan/server/internal/sim"
	"dartagnan/server/internal/telemetry"
)

const (
	hubRecipientsMetricKey = "hub_recipients"
	hubDeliveredMetricKey  = "hub_delivered_total"
)

// Hub fans simulation output out to every registered recipient. Human
// sessions register a function that frames onto a socket; bots register
// their in-process driver. The simulation worker is the only caller of
// the broadcast methods, so deliver functions must not block.
type Hub struct {
	mu         sync.RWMutex
	recipients map[int]func(proto.Message)

	logger  telemetry.Logger
	metrics telemetry.Metrics
}

func NewHub(logger telemetry.Logger, metrics telemetry.Metrics) *Hub {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Hub{
		recipients: make(map[int]func(proto.Message)),
		logger:     logger,
		metrics:    metrics,
	}
}

var _ sim.Delivery = (*Hub)(nil)

func (h *Hub) Register(id int, deliver func(proto.Message)) {
	if deliver == nil {
		return
	}
	h.mu.Lock()
	h.recipients[id] = deliver
	n := len(h.recipients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.Store(hubRecipientsMetricKey, uint64(n))
	}
}

func (h *Hub) Unregister(id int) {
	h.mu.Lock()
	delete(h.recipients, id)
	n := len(h.recipients)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.Store(hubRecipientsMetricKey, uint64(n))
	}
}

func (h *Hub) BroadcastToAll(msg proto.Message) {
	h.broadcast(msg, func(int) bool { return true })
}

func (h *Hub) BroadcastExcept(exceptID int, msg proto.Message) {
	h.broadcast(msg, func(id int) bool { return id != exceptID })
}

func (h *Hub) SendTo(id int, msg proto.Message) {
	h.mu.RLock()
	deliver, ok := h.recipients[id]
	h.mu.RUnlock()
	if !ok {
		return
	}
	deliver(msg)
	if h.metrics != nil {
		h.metrics.Add(hubDeliveredMetricKey, 1)
	}
}

// broadcast delivers to all matching recipients in parallel and waits for
// the slowest before returning control to the worker.
func (h *Hub) broadcast(msg proto.Message, include func(id int) bool) {
	h.mu.RLock()
	targets := make([]func(proto.Message), 0, len(h.recipients))
	for id, deliver := range h.recipients {
		if include(id) {
			targets = append(targets, deliver)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}
	var g errgroup.Group
	for _, deliver := range targets {
		deliver := deliver
		g.Go(func() error {
			deliver(msg)
			return nil
		})
	}
	g.Wait()
	if h.metrics != nil {
		h.metrics.Add(hubDeliveredMetricKey, uint64(len(targets)))
	}
}
