package ws

import (
	"encoding/json"
	"sync"
	"time"
)

// Subscriber is a single WebSocket connection watching one or more payments.
type Subscriber struct {
	UserID uint
	Send   chan []byte
	hub    *PaymentHub
	mu     sync.Mutex
	closed bool
	keys   map[string]struct{}
}

func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.Send)
	if s.hub != nil {
		s.hub.unregister(s)
	}
}

// PaymentHub is a keyed publish/subscribe channel: clients declare interest
// in a payment id and receive settlement pushes for it. Delivery is
// at-most-once and best-effort; polling is the durable fallback.
type PaymentHub struct {
	mu        sync.RWMutex
	byPayment map[string]map[*Subscriber]struct{}
}

func NewPaymentHub() *PaymentHub {
	return &PaymentHub{byPayment: make(map[string]map[*Subscriber]struct{})}
}

func (h *PaymentHub) Register(s *Subscriber) {
	s.hub = h
	if s.keys == nil {
		s.keys = make(map[string]struct{})
	}
}

// Watch subscribes s to pushes for paymentID.
func (h *PaymentHub) Watch(s *Subscriber, paymentID string) {
	if paymentID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.byPayment[paymentID] == nil {
		h.byPayment[paymentID] = make(map[*Subscriber]struct{})
	}
	h.byPayment[paymentID][s] = struct{}{}
	s.keys[paymentID] = struct{}{}
}

func (h *PaymentHub) unregister(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key := range s.keys {
		if m := h.byPayment[key]; m != nil {
			delete(m, s)
			if len(m) == 0 {
				delete(h.byPayment, key)
			}
		}
	}
}

// PaymentConfirmed is the push sent when a payment settles.
type PaymentConfirmed struct {
	Type           string `json:"type"`
	PaymentID      string `json:"payment_id"`
	UpdatedCredits int64  `json:"updated_credits"`
	PaidAt         string `json:"paid_at"`
}

// PublishConfirmed delivers the event to every current watcher of paymentID.
// Slow subscribers are skipped rather than blocked on.
func (h *PaymentHub) PublishConfirmed(paymentID string, credits int64, paidAt time.Time) {
	event := PaymentConfirmed{
		Type:           "payment_confirmed",
		PaymentID:      paymentID,
		UpdatedCredits: credits,
		PaidAt:         paidAt.UTC().Format(time.RFC3339),
	}
	data, _ := json.Marshal(event)
	h.mu.RLock()
	m := h.byPayment[paymentID]
	subs := make([]*Subscriber, 0, len(m))
	for s := range m {
		subs = append(subs, s)
	}
	h.mu.RUnlock()
	for _, s := range subs {
		select {
		case s.Send <- data:
		default:
		}
	}
}

func (h *PaymentHub) WatcherCount(paymentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byPayment[paymentID])
}
