package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/obligation"
	"github.com/robfig/cron/v3"
)

const DefaultSpec = "@every 1m"

// Scheduler runs one scan-and-advance pass per cron firing. Overlapping
// passes are allowed; every advance is conditional on the schedule it read.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	scanner  *obligation.Scanner
	advancer *obligation.Advancer
	clock    obligation.Clock
	notifyCh chan struct{}
}

func New(scanner *obligation.Scanner, advancer *obligation.Advancer, clock obligation.Clock, spec string, loc *time.Location) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = obligation.SystemClock{}
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		spec:     spec,
		scanner:  scanner,
		advancer: advancer,
		clock:    clock,
		notifyCh: make(chan struct{}, 1),
	}
}

// Notify triggers an immediate pass. Non-blocking if one is already pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

// Start registers the pass with cron, runs one right away and then blocks
// until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("add obligation check: %w", err)
	}
	s.cron.Start()
	log.Printf("Scheduler started (schedule: %s)", s.spec)

	s.run(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.notifyCh:
			log.Println("Scheduler triggered by notification")
			s.run(ctx)
		}
	}
}

// Stop halts cron and waits for running passes to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.Tick(ctx)
	if err != nil {
		log.Printf("Tick %s failed: %v", report.RunID, err)
		return
	}
	if report.Scanned() > 0 {
		log.Printf("Tick %s: %s", report.RunID, report)
	}
}

// TickReport summarizes one pass.
type TickReport struct {
	RunID string    `json:"run_id"`
	At    time.Time `json:"at"`

	DueReminders     int `json:"due_reminders"`
	DueNotifications int `json:"due_notifications"`
	DueTransactions  int `json:"due_transactions"`

	Messages    int `json:"messages"`    // reminder messages recorded
	Undelivered int `json:"undelivered"` // recorded but not delivered
	Parcels     int `json:"parcels"`
	Skipped     int `json:"skipped"` // not due after all, or advanced by a concurrent pass
	Failed      int `json:"failed"`
}

func (r *TickReport) Scanned() int {
	return r.DueReminders + r.DueNotifications + r.DueTransactions
}

func (r *TickReport) String() string {
	return fmt.Sprintf("scanned %d reminders, %d notifications, %d transactions; "+
		"%d messages (%d undelivered), %d parcels, %d skipped, %d failed",
		r.DueReminders, r.DueNotifications, r.DueTransactions,
		r.Messages, r.Undelivered, r.Parcels, r.Skipped, r.Failed)
}

// Tick runs a single scan-and-advance pass at the clock's current time.
// Only a failed scan is returned as an error; failures of individual
// obligations are logged and counted.
func (s *Scheduler) Tick(ctx context.Context) (*TickReport, error) {
	report := &TickReport{RunID: uuid.NewString(), At: s.clock.Now()}

	due, err := s.scanner.Scan(ctx, report.At)
	if err != nil {
		return report, err
	}
	report.DueReminders = len(due.Reminders)
	report.DueNotifications = len(due.Notifications)
	report.DueTransactions = len(due.Transactions)

	notifications := make([]*models.Notification, 0, report.DueReminders+report.DueNotifications)
	notifications = append(notifications, due.Reminders...)
	notifications = append(notifications, due.Notifications...)
	for _, n := range notifications {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		msg, err := s.advancer.AdvanceNotification(ctx, n.NotificationID)
		switch {
		case err != nil:
			s.failed(report, "notification", n.NotificationID, err)
		case msg == nil:
			report.Skipped++
		default:
			report.Messages++
			if msg.ExternalID == "" {
				report.Undelivered++
			}
		}
	}

	for _, tx := range due.Transactions {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		parcel, err := s.advancer.AdvanceTransaction(ctx, tx.TransactionID)
		switch {
		case err != nil:
			s.failed(report, "transaction", tx.TransactionID, err)
		case parcel == nil:
			report.Skipped++
		default:
			report.Parcels++
		}
	}

	return report, nil
}

func (s *Scheduler) failed(report *TickReport, kind string, id int64, err error) {
	report.Failed++
	if obligation.IsInvalidState(err) {
		log.Printf("WARN: tick %s: stale %s %d: %v", report.RunID, kind, id, err)
		return
	}
	log.Printf("Failed to advance %s %d (tick %s): %v", kind, id, report.RunID, err)
}
