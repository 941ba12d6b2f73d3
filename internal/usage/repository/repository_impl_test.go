package repository

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/clubpay/internal/testutil"
	"github.com/smallbiznis/clubpay/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	clubA = "11111111-1111-4111-8111-111111111111"
	clubB = "22222222-2222-4222-8222-222222222222"
	userA = "aaaaaaaa-0000-4000-8000-000000000001"
	userB = "aaaaaaaa-0000-4000-8000-000000000002"
)

func seedUsage(t *testing.T, db *gorm.DB, user, club string, period time.Time, subType domain.SubscriptionType, visits int, unique bool) {
	t.Helper()
	err := db.Exec(
		`INSERT INTO usage_records (user_id, club_id, period, subscription_type, visit_count, is_unique_visit)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user, club, period, subType, visits, unique,
	).Error
	require.NoError(t, err)
}

func TestListForPeriod(t *testing.T) {
	db := testutil.OpenSQLite(t)
	may := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	june := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	seedUsage(t, db, userA, clubA, may, domain.SubscriptionTypeUnlimited, 4, true)
	seedUsage(t, db, userB, clubB, may, domain.SubscriptionTypeCredits, 5, true)
	seedUsage(t, db, userA, clubB, june, domain.SubscriptionTypeUnlimited, 1, true)

	r := Provide()
	records, err := r.ListForPeriod(context.Background(), db, may, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, clubA, records[0].ClubID)
	assert.Equal(t, 4, records[0].VisitCount)
	assert.True(t, records[0].IsUniqueVisit)

	filtered, err := r.ListForPeriod(context.Background(), db, may, []string{clubB})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, domain.SubscriptionTypeCredits, filtered[0].SubscriptionType)
}

func TestCountVisits(t *testing.T) {
	db := testutil.OpenSQLite(t)
	may := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	insert := func(club string, at time.Time) {
		require.NoError(t, db.Exec(
			`INSERT INTO visits (user_id, club_id, subscription_type, cost_to_club, created_at) VALUES (?, ?, ?, ?, ?)`,
			userA, club, "credits", 90, at,
		).Error)
	}
	insert(clubA, may.Add(2*time.Hour))
	insert(clubA, may.AddDate(0, 0, 20))
	insert(clubB, may.AddDate(0, 1, 0))

	counts, err := Provide().CountVisits(context.Background(), db, may)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, clubA, counts[0].ClubID)
	assert.Equal(t, int64(2), counts[0].Visits)
	assert.Equal(t, "180", counts[0].CostToClub.String())
}
