package repository

import (
	"context"

	"github.com/smallbiznis/clubpay/internal/club/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// List returns all clubs, or only the given ids when ids is non-empty.
func (r *repo) List(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Club, error) {
	var clubs []domain.Club
	stmt := db.WithContext(ctx).Model(&domain.Club{})
	if len(ids) > 0 {
		stmt = stmt.Where("id IN ?", ids)
	}
	if err := stmt.Order("id asc").Find(&clubs).Error; err != nil {
		return nil, err
	}
	return clubs, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Club, error) {
	var club domain.Club
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, stripe_account_id, payouts_enabled, created_at, updated_at
		 FROM clubs WHERE id = ?`,
		id,
	).Scan(&club).Error
	if err != nil {
		return nil, err
	}
	if club.ID == "" {
		return nil, nil
	}
	return &club, nil
}
