package repository

import (
	"github.com/hray3182/ledgerline/internal/database"
	"github.com/hray3182/ledgerline/internal/obligation"
)

// Store is the Postgres-backed obligation.Store.
type Store struct {
	*TransactionRepository
	*NotificationRepository
	*MessageRepository
	*UserRepository
	*CategoryRepository
}

var _ obligation.Store = (*Store)(nil)

func NewStore(db *database.DB) *Store {
	return &Store{
		TransactionRepository:  NewTransactionRepository(db),
		NotificationRepository: NewNotificationRepository(db),
		MessageRepository:      NewMessageRepository(db),
		UserRepository:         NewUserRepository(db),
		CategoryRepository:     NewCategoryRepository(db),
	}
}
