package aggregate

import (
	"testing"
	"time"

	clubdomain "github.com/smallbiznis/clubpay/internal/club/domain"
	"github.com/smallbiznis/clubpay/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var may = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func rec(user, club string, subType domain.SubscriptionType, visits int, unique bool) domain.UsageRecord {
	return domain.UsageRecord{
		UserID:           user,
		ClubID:           club,
		Period:           may,
		SubscriptionType: subType,
		VisitCount:       visits,
		IsUniqueVisit:    unique,
	}
}

func TestAggregateByClubSkipsUnknownClubs(t *testing.T) {
	records := []domain.UsageRecord{
		rec("a", "c1", domain.SubscriptionTypeUnlimited, 1, true),
		rec("b", "c1", domain.SubscriptionTypeCredits, 2, true),
		rec("a", "stale", domain.SubscriptionTypeUnlimited, 3, true),
	}
	clubs := clubdomain.NewLookup([]clubdomain.Club{{ID: "c1", Name: "One"}})

	grouped := AggregateByClub(records, clubs)
	require.Len(t, grouped, 1)
	assert.Len(t, grouped["c1"], 2)
	_, ok := grouped["stale"]
	assert.False(t, ok)
}

func TestGetUserMonthlyUsage(t *testing.T) {
	records := []domain.UsageRecord{
		rec("a", "c1", domain.SubscriptionTypeUnlimited, 1, true),
		rec("a", "c2", domain.SubscriptionTypeUnlimited, 2, true),
		rec("a", "c3", domain.SubscriptionTypeUnlimited, 1, false),
		rec("b", "c1", domain.SubscriptionTypeCredits, 5, true),
	}
	other := rec("a", "c4", domain.SubscriptionTypeUnlimited, 1, true)
	other.Period = may.AddDate(0, 1, 0)
	records = append(records, other)

	usage := GetUserMonthlyUsage("a", may, records)
	assert.Equal(t, 2, usage.UniqueGymsVisited)
	assert.Equal(t, domain.SubscriptionTypeUnlimited, usage.SubscriptionType)
	assert.Len(t, usage.GymVisits, 3)

	none := GetUserMonthlyUsage("zzz", may, records)
	assert.Equal(t, 0, none.UniqueGymsVisited)
	assert.Empty(t, none.GymVisits)
}

func TestUniqueGymsByUserMatchesPerUserLookup(t *testing.T) {
	records := []domain.UsageRecord{
		rec("a", "c1", domain.SubscriptionTypeUnlimited, 1, true),
		rec("a", "c2", domain.SubscriptionTypeUnlimited, 2, true),
		rec("b", "c1", domain.SubscriptionTypeUnlimited, 5, true),
		rec("c", "c1", domain.SubscriptionTypeUnlimited, 5, false),
	}

	byUser := UniqueGymsByUser(may, records)
	for _, user := range []string{"a", "b", "c"} {
		assert.Equal(t, GetUserMonthlyUsage(user, may, records).UniqueGymsVisited, byUser[user], user)
	}
	assert.Equal(t, 0, byUser["c"])
}

func TestCheckSubscriptionTypes(t *testing.T) {
	records := []domain.UsageRecord{
		rec("a", "c1", domain.SubscriptionTypeUnlimited, 1, true),
		rec("a", "c1", domain.SubscriptionTypeCredits, 2, false),
		rec("a", "c2", domain.SubscriptionTypeUnlimited, 1, true),
		rec("b", "c2", domain.SubscriptionTypeCredits, 1, true),
	}

	mixed := CheckSubscriptionTypes(records)
	require.Len(t, mixed, 1)
	assert.Equal(t, "a", mixed[0].UserID)
	assert.Equal(t, "c1", mixed[0].ClubID)

	assert.Empty(t, CheckSubscriptionTypes(records[2:]))
}
