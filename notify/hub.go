// Package notify pushes terminal payment events to clients waiting on a
// specific checkout request. Delivery is best effort: only subscribers
// connected at publish time receive the event, late joiners fall back to
// the status endpoint.
package notify

import "sync"

// PaymentEvent is the single terminal-state event published per transaction.
type PaymentEvent struct {
	CheckoutRequestID  string `json:"checkout_request_id"`
	Status             string `json:"status"`
	ResultCode         int    `json:"result_code"`
	ResultDesc         string `json:"result_desc"`
	MpesaReceiptNumber string `json:"mpesa_receipt_number,omitempty"`
}

// Hub fans a payment event out to every subscriber of its checkout request.
type Hub struct {
	mu     sync.Mutex
	topics map[string][]chan PaymentEvent
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string][]chan PaymentEvent)}
}

// Subscribe registers interest in one checkout request. The returned channel
// is buffered so publishing never blocks on a slow reader.
func (h *Hub) Subscribe(checkoutRequestID string) chan PaymentEvent {
	ch := make(chan PaymentEvent, 1)
	h.mu.Lock()
	h.topics[checkoutRequestID] = append(h.topics[checkoutRequestID], ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from its topic and drops the topic once
// empty. Safe to call after Publish has already cleaned the topic up.
func (h *Hub) Unsubscribe(checkoutRequestID string, ch chan PaymentEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.topics[checkoutRequestID]
	for i, sub := range subs {
		if sub == ch {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(h.topics, checkoutRequestID)
	} else {
		h.topics[checkoutRequestID] = subs
	}
}

// Publish delivers the event to current subscribers of its topic and removes
// the topic; a transaction only ever produces one terminal event.
func (h *Hub) Publish(event PaymentEvent) {
	h.mu.Lock()
	subs := h.topics[event.CheckoutRequestID]
	delete(h.topics, event.CheckoutRequestID)
	h.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Subscriber already has an undrained event; drop.
		}
	}
}
