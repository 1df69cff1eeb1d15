package repository

import (
	"context"

	"github.com/hray3182/ledgerline/internal/database"
	"github.com/hray3182/ledgerline/internal/models"
)

type CategoryRepository struct {
	db *database.DB
}

func NewCategoryRepository(db *database.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Categories returns the user's categories, most used first.
func (r *CategoryRepository) Categories(ctx context.Context, userID int64) ([]*models.Category, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT category_id, user_id, category_name, usage_count
		 FROM category WHERE user_id = $1 ORDER BY usage_count DESC, category_name ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		cat := &models.Category{}
		if err := rows.Scan(&cat.CategoryID, &cat.UserID, &cat.CategoryName, &cat.UsageCount); err != nil {
			return nil, err
		}
		categories = append(categories, cat)
	}
	return categories, rows.Err()
}
