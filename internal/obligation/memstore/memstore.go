// Package memstore is an in-memory obligation.Store. It honours the same
// conditional-update contract as the Postgres repository and is used by
// tests and dry runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/obligation"
)

// Store keeps everything in maps behind a single mutex. Every value handed
// out is a copy.
type Store struct {
	mu sync.Mutex

	nextID        int64
	users         map[int64]*models.User
	transactions  map[int64]*models.Transaction
	parcels       map[int64]*models.Parcel
	notifications map[int64]*models.Notification
	messages      map[int64]*models.NotificationMessage
}

var _ obligation.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:         make(map[int64]*models.User),
		transactions:  make(map[int64]*models.Transaction),
		parcels:       make(map[int64]*models.Parcel),
		notifications: make(map[int64]*models.Notification),
		messages:      make(map[int64]*models.NotificationMessage),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// PutUser registers a user.
func (s *Store) PutUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.UserID] = &cp
}

// GetUser implements the chat lookup used by the notifier.
func (s *Store) GetUser(_ context.Context, userID int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, obligation.NotFoundError("user %d not found", userID)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) transactionCopy(tx *models.Transaction) *models.Transaction {
	cp := *tx
	cp.Parcels = nil
	if tx.NotificationID != nil {
		if n, ok := s.notifications[*tx.NotificationID]; ok {
			id, purpose := n.NotificationID, n.Purpose
			cp.NotificationID = &id
			cp.NotificationPurpose = &purpose
		}
	}
	return &cp
}

func notificationCopy(n *models.Notification) *models.Notification {
	cp := *n
	return &cp
}

func (s *Store) FindDueReminders(_ context.Context, from, to time.Time, limit, offset int) ([]*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.Notification
	for _, n := range s.sortedNotifications() {
		if n.Purpose != models.PurposeConfirm || !n.Active || n.DeletedAt != nil || n.Exhausted() {
			continue
		}
		if n.NextDueDate.Before(from) || n.NextDueDate.After(to) {
			continue
		}
		due = append(due, notificationCopy(n))
	}
	return page(due, limit, offset), nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (s *Store) sortedNotifications() []*models.Notification {
	out := make([]*models.Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NotificationID < out[j].NotificationID })
	return out
}

func (s *Store) FindDueNotifications(_ context.Context, now time.Time) ([]*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.Notification
	for _, n := range s.sortedNotifications() {
		if !n.Active || n.DeletedAt != nil || n.NextDueDate.After(now) {
			continue
		}
		due = append(due, notificationCopy(n))
	}
	return due, nil
}

func (s *Store) FindDueTransactions(_ context.Context, now time.Time) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.Transaction
	for _, tx := range s.transactions {
		if !tx.Active || tx.DeletedAt != nil || tx.PlannedCount <= 1 || tx.NextDueDate.After(now) {
			continue
		}
		cp := s.transactionCopy(tx)
		if !cp.LinkedToInfo() {
			continue
		}
		due = append(due, cp)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].TransactionID < due[j].TransactionID })
	return due, nil
}

func (s *Store) GetTransaction(_ context.Context, transactionID int64) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[transactionID]
	if !ok || tx.DeletedAt != nil {
		return nil, obligation.NotFoundError("transaction %d not found", transactionID)
	}
	return s.transactionCopy(tx), nil
}

func (s *Store) GetNotification(_ context.Context, notificationID int64) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[notificationID]
	if !ok || n.DeletedAt != nil {
		return nil, obligation.NotFoundError("notification %d not found", notificationID)
	}
	return notificationCopy(n), nil
}

func (s *Store) messageCopy(m *models.NotificationMessage) *models.NotificationMessage {
	cp := *m
	if n, ok := s.notifications[m.NotificationID]; ok {
		cp.Purpose = n.Purpose
		cp.Description = n.Description
	}
	return &cp
}

// liveMessage returns a message whose notification is not deleted.
func (s *Store) liveMessage(messageID int64) (*models.NotificationMessage, bool) {
	m, ok := s.messages[messageID]
	if !ok {
		return nil, false
	}
	n, ok := s.notifications[m.NotificationID]
	if !ok || n.DeletedAt != nil {
		return nil, false
	}
	return m, true
}

func (s *Store) GetNotificationMessage(_ context.Context, messageID int64) (*models.NotificationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.liveMessage(messageID)
	if !ok {
		return nil, obligation.NotFoundError("message %d not found", messageID)
	}
	return s.messageCopy(m), nil
}

func (s *Store) FindMessageByExternalID(_ context.Context, externalID string) (*models.NotificationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.messages {
		if m.ExternalID != externalID {
			continue
		}
		if live, ok := s.liveMessage(id); ok {
			return s.messageCopy(live), nil
		}
	}
	return nil, obligation.NotFoundError("message with external id %q not found", externalID)
}

func (s *Store) ListTransactions(_ context.Context, userID int64) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Transaction
	for _, tx := range s.transactions {
		if tx.UserID != userID || tx.DeletedAt != nil {
			continue
		}
		cp := s.transactionCopy(tx)
		for _, p := range s.parcels {
			if p.TransactionID == tx.TransactionID && p.DeletedAt == nil {
				pc := *p
				cp.Parcels = append(cp.Parcels, &pc)
			}
		}
		sort.Slice(cp.Parcels, func(i, j int) bool { return cp.Parcels[i].Count < cp.Parcels[j].Count })
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out, nil
}

func (s *Store) RecentMessages(_ context.Context, userID int64, limit int) ([]*models.NotificationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.NotificationMessage
	for _, m := range s.messages {
		n, ok := s.notifications[m.NotificationID]
		if m.UserID != userID || !ok || !n.Active || n.DeletedAt != nil {
			continue
		}
		out = append(out, s.messageCopy(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].MessageID > out[j].MessageID
	})
	return page(out, limit, 0), nil
}

func (s *Store) MaterializeParcel(_ context.Context, adv obligation.ParcelAdvance) (*models.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.materialize(adv)
}

// materialize applies adv. Callers hold s.mu.
func (s *Store) materialize(adv obligation.ParcelAdvance) (*models.Parcel, error) {
	tx, ok := s.transactions[adv.TransactionID]
	if !ok || tx.DeletedAt != nil {
		return nil, obligation.NotFoundError("transaction %d not found", adv.TransactionID)
	}
	if !tx.NextDueDate.Equal(adv.ExpectedNextDue) || tx.MaterializedCount != adv.ExpectedCount {
		return nil, obligation.ConflictError("transaction %d schedule changed", adv.TransactionID)
	}

	p := &models.Parcel{
		ParcelID:       s.id(),
		TransactionID:  tx.TransactionID,
		UserID:         adv.UserID,
		NotificationID: adv.NotificationID,
		Value:          adv.Value,
		Count:          adv.ExpectedCount + 1,
		CreatedAt:      adv.At,
	}
	s.parcels[p.ParcelID] = p
	tx.NextDueDate = adv.NextDue
	tx.MaterializedCount = p.Count
	tx.Active = adv.Active

	cp := *p
	return &cp, nil
}

func (s *Store) AdvanceNotification(_ context.Context, adv obligation.NotificationAdvance) (*models.NotificationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[adv.NotificationID]
	if !ok || n.DeletedAt != nil {
		return nil, obligation.NotFoundError("notification %d not found", adv.NotificationID)
	}
	if !n.NextDueDate.Equal(adv.ExpectedNextDue) || n.NotificationTimes != adv.ExpectedTimes {
		return nil, obligation.ConflictError("notification %d schedule changed", adv.NotificationID)
	}

	n.NextDueDate = adv.NextDue
	n.NotificationTimes = adv.ExpectedTimes + 1
	n.Active = adv.Active

	m := &models.NotificationMessage{
		MessageID:      s.id(),
		NotificationID: n.NotificationID,
		UserID:         adv.UserID,
		Status:         adv.Status,
		CreatedAt:      adv.At,
	}
	if adv.Status.Terminal() {
		at := adv.At
		m.ResolvedAt = &at
	}
	s.messages[m.MessageID] = m
	return s.messageCopy(m), nil
}

func (s *Store) SetMessageExternalID(_ context.Context, messageID int64, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return obligation.NotFoundError("message %d not found", messageID)
	}
	m.ExternalID = externalID
	return nil
}

// pendingMessage returns a live message that can still be answered, with
// its notification. Callers hold s.mu.
func (s *Store) pendingMessage(messageID int64) (*models.NotificationMessage, *models.Notification, error) {
	m, ok := s.liveMessage(messageID)
	if !ok {
		return nil, nil, obligation.NotFoundError("message %d not found", messageID)
	}
	if m.Status.Terminal() {
		return nil, nil, obligation.InvalidStateError("message %d is already %s", messageID, m.Status)
	}
	return m, s.notifications[m.NotificationID], nil
}

func (s *Store) rejectedMessages(notificationID int64) int {
	var rejected int
	for _, m := range s.messages {
		if m.NotificationID == notificationID && m.Status == models.MessageStatusRejected {
			rejected++
		}
	}
	return rejected
}

// AcceptNotificationMessage validates everything before the first write, so
// a failed acceptance leaves the store untouched.
func (s *Store) AcceptNotificationMessage(_ context.Context, messageID int64, at time.Time) (*models.NotificationMessage, *models.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, n, err := s.pendingMessage(messageID)
	if err != nil {
		return nil, nil, err
	}

	var (
		tx     *models.Transaction
		linked bool
	)
	if n.TransactionID != nil {
		cur, ok := s.transactions[*n.TransactionID]
		if !ok || cur.DeletedAt != nil {
			return nil, nil, obligation.NotFoundError("transaction %d not found", *n.TransactionID)
		}
		tx = s.transactionCopy(cur)
	} else {
		tx = obligation.LinkedTransaction(notificationCopy(n), s.rejectedMessages(n.NotificationID), at)
		tx.TransactionID = s.id()
		tx.CreatedAt = at
		linked = true
	}

	adv, err := obligation.NextParcel(tx, at)
	if err != nil {
		return nil, nil, err
	}

	if linked {
		stored := *tx
		s.transactions[stored.TransactionID] = &stored
		txID := stored.TransactionID
		n.TransactionID = &txID
	}
	p, err := s.materialize(adv)
	if err != nil {
		return nil, nil, err
	}

	m.Status = models.MessageStatusAccepted
	m.ResolvedAt = &at
	return s.messageCopy(m), p, nil
}

func (s *Store) RejectNotificationMessage(_ context.Context, messageID int64, at time.Time) (*models.NotificationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, n, err := s.pendingMessage(messageID)
	if err != nil {
		return nil, err
	}

	if n.TransactionID != nil {
		if tx, ok := s.transactions[*n.TransactionID]; ok && tx.DeletedAt == nil && tx.PlannedCount > tx.MaterializedCount {
			tx.PlannedCount--
			tx.Active = tx.PlannedCount > tx.MaterializedCount
		}
	}

	m.Status = models.MessageStatusRejected
	m.ResolvedAt = &at
	return s.messageCopy(m), nil
}

func (s *Store) CreateTransaction(_ context.Context, tx *models.Transaction, firstParcel *models.Parcel, info *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.TransactionID = s.id()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	if info != nil {
		info.NotificationID = s.id()
		txID := tx.TransactionID
		info.TransactionID = &txID
		info.CreatedAt = tx.CreatedAt
		s.notifications[info.NotificationID] = notificationCopy(info)

		id, purpose := info.NotificationID, info.Purpose
		tx.NotificationID = &id
		tx.NotificationPurpose = &purpose
	}

	if firstParcel != nil {
		firstParcel.ParcelID = s.id()
		firstParcel.TransactionID = tx.TransactionID
		firstParcel.NotificationID = tx.NotificationID
		pc := *firstParcel
		s.parcels[pc.ParcelID] = &pc
		tx.Parcels = []*models.Parcel{firstParcel}
	}

	cp := *tx
	cp.Parcels = nil
	s.transactions[tx.TransactionID] = &cp
	return nil
}

func (s *Store) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.NotificationID = s.id()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	s.notifications[n.NotificationID] = notificationCopy(n)
	return nil
}

func (s *Store) UpdateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.notifications[n.NotificationID]
	if !ok || cur.DeletedAt != nil {
		return obligation.NotFoundError("notification %d not found", n.NotificationID)
	}
	cur.Type = n.Type
	cur.Value = n.Value
	cur.Description = n.Description
	cur.CategoryID = n.CategoryID
	cur.ReferenceDate = n.ReferenceDate
	cur.NextDueDate = n.NextDueDate
	cur.PlannedCount = n.PlannedCount
	cur.Active = n.Active

	if cur.TransactionID != nil {
		if tx, ok := s.transactions[*cur.TransactionID]; ok {
			tx.Type = n.Type
		}
	}
	return nil
}

func (s *Store) SetNotificationActive(_ context.Context, notificationID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[notificationID]
	if !ok || n.DeletedAt != nil {
		return obligation.NotFoundError("notification %d not found", notificationID)
	}
	n.Active = active
	return nil
}

func (s *Store) SoftDeleteTransaction(_ context.Context, userID, transactionID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[transactionID]
	if !ok || tx.DeletedAt != nil || tx.UserID != userID {
		return obligation.NotFoundError("transaction %d not found", transactionID)
	}
	tx.DeletedAt = &at
	for _, p := range s.parcels {
		if p.TransactionID == transactionID && p.DeletedAt == nil {
			p.DeletedAt = &at
		}
	}
	for _, n := range s.notifications {
		if n.Purpose == models.PurposeInfo && n.TransactionID != nil && *n.TransactionID == transactionID && n.DeletedAt == nil {
			n.DeletedAt = &at
		}
	}
	return nil
}

func (s *Store) SoftDeleteNotification(_ context.Context, userID, notificationID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[notificationID]
	if !ok || n.DeletedAt != nil || n.UserID != userID {
		return obligation.NotFoundError("notification %d not found", notificationID)
	}
	n.DeletedAt = &at
	return nil
}
