package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/clubpay/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// ListForPeriod loads usage rows for the month, optionally restricted to clubIDs.
func (r *repo) ListForPeriod(ctx context.Context, db *gorm.DB, period time.Time, clubIDs []string) ([]domain.UsageRecord, error) {
	var records []domain.UsageRecord
	stmt := db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Select("user_id, club_id, period, subscription_type, visit_count, is_unique_visit").
		Where("period = ?", period)
	if len(clubIDs) > 0 {
		stmt = stmt.Where("club_id IN ?", clubIDs)
	}
	if err := stmt.Order("club_id asc, user_id asc, subscription_type asc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// CountVisits aggregates the visits audit table per club for [period, period+1 month).
func (r *repo) CountVisits(ctx context.Context, db *gorm.DB, period time.Time) ([]domain.VisitCount, error) {
	var counts []domain.VisitCount
	err := db.WithContext(ctx).Raw(
		`SELECT club_id, COUNT(*) AS visits, COALESCE(SUM(cost_to_club), 0) AS cost_to_club
		 FROM visits
		 WHERE created_at >= ? AND created_at < ?
		 GROUP BY club_id
		 ORDER BY club_id`,
		period,
		period.AddDate(0, 1, 0),
	).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
