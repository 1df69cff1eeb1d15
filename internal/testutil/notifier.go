// Package testutil holds fakes shared by the engine's tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/hray3182/ledgerline/internal/obligation"
)

// Sent is one call recorded by RecordingNotifier.
type Sent struct {
	Kind     string // "reminder" or "confirmation"
	Delivery obligation.Delivery
}

// RecordingNotifier records deliveries and hands out sequential external
// ids ("ext-1", "ext-2", ...). Setting Err makes every send fail.
type RecordingNotifier struct {
	mu   sync.Mutex
	Err  error
	sent []Sent
	seq  int
}

var _ obligation.Notifier = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) SendReminder(_ context.Context, d obligation.Delivery) (string, error) {
	return n.record("reminder", d)
}

func (n *RecordingNotifier) SendConfirmationPrompt(_ context.Context, d obligation.Delivery) (string, error) {
	return n.record("confirmation", d)
}

func (n *RecordingNotifier) record(kind string, d obligation.Delivery) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Sent{Kind: kind, Delivery: d})
	if n.Err != nil {
		return "", n.Err
	}
	n.seq++
	return fmt.Sprintf("ext-%d", n.seq), nil
}

// Sent returns a copy of every recorded call.
func (n *RecordingNotifier) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Sent(nil), n.sent...)
}

func (n *RecordingNotifier) SetErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Err = err
}
