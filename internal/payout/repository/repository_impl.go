package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clubpay/internal/payout/domain"
	"gorm.io/gorm"
)

const payoutColumns = `id, club_id, club_name, period,
	unlimited_amount, unlimited_visits, unlimited_users,
	credits_amount, credits_visits, credits_users,
	total_amount, total_visits, unique_users,
	status, retry_count, transfer_id, error_message,
	transfer_attempted_at, transfer_completed_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Upsert writes a computed payout keyed by (club_id, period). The caller supplies
// a fresh ID, which is only used when no row exists yet.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, payout domain.Payout, mode domain.UpsertMode) (domain.UpsertResult, error) {
	var result domain.UpsertResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := r.findByClubPeriod(ctx, tx, payout.ClubID, payout.Period)
		if err != nil {
			return err
		}

		if existing == nil {
			if err := r.insert(ctx, tx, payout); err != nil {
				return err
			}
			result.Action = domain.UpsertActionInserted
			result.Payout = payout
			return nil
		}

		payout.ID = existing.ID
		switch mode {
		case domain.UpsertModeReset:
			if existing.Status == domain.StatusPaid {
				return domain.ErrPaidPayoutReset
			}
			if existing.Status == domain.StatusProcessing {
				return domain.ErrPayoutInFlight
			}
			if err := r.reset(ctx, tx, payout); err != nil {
				return err
			}
			result.Action = domain.UpsertActionUpdated
		default:
			if existing.Status != domain.StatusPending {
				result.Action = domain.UpsertActionSkipped
				result.Reason = fmt.Sprintf("payout is %s", existing.Status)
				result.Payout = *existing
				return nil
			}
			updated, err := r.recalculate(ctx, tx, payout)
			if err != nil {
				return err
			}
			if !updated {
				result.Action = domain.UpsertActionSkipped
				result.Reason = "payout left pending state concurrently"
				result.Payout = *existing
				return nil
			}
			result.Action = domain.UpsertActionUpdated
		}

		reloaded, err := r.FindByID(ctx, tx, payout.ID)
		if err != nil {
			return err
		}
		if reloaded == nil {
			return domain.ErrNotFound
		}
		result.Payout = *reloaded
		return nil
	})
	if err != nil {
		return domain.UpsertResult{}, err
	}
	return result, nil
}

func (r *repo) insert(ctx context.Context, db *gorm.DB, p domain.Payout) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO club_payouts (`+payoutColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.ClubID,
		p.ClubName,
		p.Period,
		p.UnlimitedAmount,
		p.UnlimitedVisits,
		p.UnlimitedUsers,
		p.CreditsAmount,
		p.CreditsVisits,
		p.CreditsUsers,
		p.TotalAmount,
		p.TotalVisits,
		p.UniqueUsers,
		domain.StatusPending,
		0,
		nil,
		nil,
		nil,
		nil,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}

func (r *repo) recalculate(ctx context.Context, db *gorm.DB, p domain.Payout) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE club_payouts
		 SET club_name = ?,
		     unlimited_amount = ?, unlimited_visits = ?, unlimited_users = ?,
		     credits_amount = ?, credits_visits = ?, credits_users = ?,
		     total_amount = ?, total_visits = ?, unique_users = ?,
		     updated_at = ?
		 WHERE id = ? AND status = ?`,
		p.ClubName,
		p.UnlimitedAmount, p.UnlimitedVisits, p.UnlimitedUsers,
		p.CreditsAmount, p.CreditsVisits, p.CreditsUsers,
		p.TotalAmount, p.TotalVisits, p.UniqueUsers,
		p.UpdatedAt,
		p.ID,
		domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) reset(ctx context.Context, db *gorm.DB, p domain.Payout) error {
	return db.WithContext(ctx).Exec(
		`UPDATE club_payouts
		 SET club_name = ?,
		     unlimited_amount = ?, unlimited_visits = ?, unlimited_users = ?,
		     credits_amount = ?, credits_visits = ?, credits_users = ?,
		     total_amount = ?, total_visits = ?, unique_users = ?,
		     status = ?, retry_count = 0, transfer_id = NULL, error_message = NULL,
		     transfer_attempted_at = NULL, transfer_completed_at = NULL,
		     updated_at = ?
		 WHERE id = ? AND status NOT IN (?, ?)`,
		p.ClubName,
		p.UnlimitedAmount, p.UnlimitedVisits, p.UnlimitedUsers,
		p.CreditsAmount, p.CreditsVisits, p.CreditsUsers,
		p.TotalAmount, p.TotalVisits, p.UniqueUsers,
		domain.StatusPending,
		p.UpdatedAt,
		p.ID,
		domain.StatusPaid,
		domain.StatusProcessing,
	).Error
}

func (r *repo) findByClubPeriod(ctx context.Context, db *gorm.DB, clubID string, period time.Time) (*domain.Payout, error) {
	var payouts []domain.Payout
	err := db.WithContext(ctx).Raw(
		`SELECT `+payoutColumns+` FROM club_payouts WHERE club_id = ? AND period = ?`,
		clubID,
		period,
	).Scan(&payouts).Error
	if err != nil {
		return nil, err
	}
	if len(payouts) == 0 {
		return nil, nil
	}
	return &payouts[0], nil
}

// ListPending returns pending rows joined with the club's transfer destination.
func (r *repo) ListPending(ctx context.Context, db *gorm.DB, period time.Time, clubIDs []string) ([]domain.PendingPayout, error) {
	query := `SELECT p.id, p.club_id, p.club_name, p.period,
		p.unlimited_amount, p.unlimited_visits, p.unlimited_users,
		p.credits_amount, p.credits_visits, p.credits_users,
		p.total_amount, p.total_visits, p.unique_users,
		p.status, p.retry_count, p.transfer_id, p.error_message,
		p.transfer_attempted_at, p.transfer_completed_at, p.created_at, p.updated_at,
		c.stripe_account_id, c.payouts_enabled
		FROM club_payouts p
		JOIN clubs c ON c.id = p.club_id
		WHERE p.period = ? AND p.status = ?`
	args := []any{period, domain.StatusPending}
	if len(clubIDs) > 0 {
		query += ` AND p.club_id IN ?`
		args = append(args, clubIDs)
	}
	query += ` ORDER BY p.club_id ASC`

	var rows []domain.PendingPayout
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ClaimForTransfer moves a pending row to processing. It returns false when
// another run already claimed it.
func (r *repo) ClaimForTransfer(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE club_payouts
		 SET status = ?, transfer_attempted_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusProcessing,
		now,
		now,
		id,
		domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, update domain.PayoutUpdate) error {
	fields := map[string]any{"updated_at": update.UpdatedAt}
	if update.Status != nil {
		fields["status"] = *update.Status
	}
	if update.RetryCount != nil {
		fields["retry_count"] = *update.RetryCount
	}
	if update.TransferID != nil {
		fields["transfer_id"] = *update.TransferID
	}
	if update.ErrorMessage != nil {
		fields["error_message"] = *update.ErrorMessage
	} else if update.ClearErrorMessage {
		fields["error_message"] = nil
	}
	if update.TransferAttemptedAt != nil {
		fields["transfer_attempted_at"] = *update.TransferAttemptedAt
	}
	if update.TransferCompletedAt != nil {
		fields["transfer_completed_at"] = *update.TransferCompletedAt
	}

	res := db.WithContext(ctx).Model(&domain.Payout{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) ListByClub(ctx context.Context, db *gorm.DB, clubID string, limit int) ([]domain.Payout, error) {
	var payouts []domain.Payout
	err := db.WithContext(ctx).Raw(
		`SELECT `+payoutColumns+`
		 FROM club_payouts
		 WHERE club_id = ?
		 ORDER BY period DESC
		 LIMIT ?`,
		clubID,
		limit,
	).Scan(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repo) ListByPeriod(ctx context.Context, db *gorm.DB, period time.Time) ([]domain.Payout, error) {
	var payouts []domain.Payout
	err := db.WithContext(ctx).Raw(
		`SELECT `+payoutColumns+` FROM club_payouts WHERE period = ? ORDER BY club_name ASC, club_id ASC`,
		period,
	).Scan(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}

func (r *repo) Totals(ctx context.Context, db *gorm.DB, period time.Time) (domain.PeriodTotals, error) {
	var totals domain.PeriodTotals
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) AS clubs,
		        COALESCE(SUM(total_amount), 0) AS total_amount,
		        COALESCE(SUM(unlimited_amount), 0) AS unlimited_amount,
		        COALESCE(SUM(credits_amount), 0) AS credits_amount,
		        COALESCE(SUM(total_visits), 0) AS total_visits,
		        COALESCE(SUM(unlimited_visits), 0) AS unlimited_visits,
		        COALESCE(SUM(credits_visits), 0) AS credits_visits,
		        COALESCE(SUM(unique_users), 0) AS unique_users
		 FROM club_payouts
		 WHERE period = ?`,
		period,
	).Scan(&totals).Error
	if err != nil {
		return domain.PeriodTotals{}, err
	}
	return totals, nil
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB, period time.Time) ([]domain.StatusCount, error) {
	var counts []domain.StatusCount
	err := db.WithContext(ctx).Raw(
		`SELECT status, COUNT(*) AS count FROM club_payouts WHERE period = ? GROUP BY status ORDER BY status`,
		period,
	).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payout, error) {
	var payouts []domain.Payout
	err := db.WithContext(ctx).Raw(
		`SELECT `+payoutColumns+` FROM club_payouts WHERE id = ?`,
		id,
	).Scan(&payouts).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(payouts) == 0 {
		return nil, nil
	}
	return &payouts[0], nil
}
