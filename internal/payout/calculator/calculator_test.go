package calculator

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	clubdomain "github.com/smallbiznis/clubpay/internal/club/domain"
	"github.com/smallbiznis/clubpay/internal/payout/model"
	"github.com/smallbiznis/clubpay/internal/payout/validator"
	usagedomain "github.com/smallbiznis/clubpay/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var may = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func usage(user, club string, subType usagedomain.SubscriptionType, visits int, unique bool) usagedomain.UsageRecord {
	return usagedomain.UsageRecord{
		UserID:           user,
		ClubID:           club,
		Period:           may,
		SubscriptionType: subType,
		VisitCount:       visits,
		IsUniqueVisit:    unique,
	}
}

func TestCalculateAllClubPayoutsScenario(t *testing.T) {
	records := []usagedomain.UsageRecord{
		usage("user-a", "club-c", usagedomain.SubscriptionTypeUnlimited, 4, true),
		usage("user-b", "club-c", usagedomain.SubscriptionTypeUnlimited, 2, true),
		usage("user-b", "club-x", usagedomain.SubscriptionTypeUnlimited, 1, true),
		usage("user-b", "club-y", usagedomain.SubscriptionTypeUnlimited, 1, true),
		usage("user-d", "club-c", usagedomain.SubscriptionTypeCredits, 5, true),
	}
	clubs := clubdomain.NewLookup([]clubdomain.Club{
		{ID: "club-c", Name: "Club C"},
		{ID: "club-empty", Name: "No Usage"},
	})

	calcs := New(model.DefaultRates()).CalculateAllClubPayouts(may, clubs, records)
	require.Len(t, calcs, 1)

	c := calcs[0]
	assert.Equal(t, "club-c", c.ClubID)
	assert.Equal(t, "Club C", c.ClubName)
	assert.Equal(t, "2900", c.UnlimitedAmount.String())
	assert.Equal(t, 6, c.UnlimitedVisits)
	assert.Equal(t, "450", c.CreditsAmount.String())
	assert.Equal(t, 5, c.CreditsVisits)
	assert.Equal(t, "3350", c.TotalAmount.String())
	assert.Equal(t, 11, c.TotalVisits)
	assert.Equal(t, 3, c.UniqueUsers)

	require.Len(t, c.UnlimitedUsers, 2)
	assert.Equal(t, 1, c.UnlimitedUsers[0].UniqueGymsCount)
	assert.Equal(t, "550", c.UnlimitedUsers[0].PayoutPerVisit.String())
	assert.Equal(t, 3, c.UnlimitedUsers[1].UniqueGymsCount)
	assert.Equal(t, "700", c.UnlimitedUsers[1].TotalPayout.String())

	assert.True(t, validator.Validate(c).Valid)
}

func TestSinglePlanClubsHaveEmptyOtherLine(t *testing.T) {
	calc := New(model.DefaultRates())

	unlimitedOnly := calc.CalculateClubPayout("c1", "One", may,
		[]usagedomain.UsageRecord{usage("a", "c1", usagedomain.SubscriptionTypeUnlimited, 2, true)},
		map[string]int{"a": 2})
	assert.True(t, unlimitedOnly.CreditsAmount.IsZero())
	assert.Equal(t, 0, unlimitedOnly.CreditsVisits)
	assert.Empty(t, unlimitedOnly.CreditsUsers)
	assert.Equal(t, "900", unlimitedOnly.TotalAmount.String())

	creditsOnly := calc.CalculateClubPayout("c1", "One", may,
		[]usagedomain.UsageRecord{usage("a", "c1", usagedomain.SubscriptionTypeCredits, 3, true)},
		map[string]int{"a": 1})
	assert.True(t, creditsOnly.UnlimitedAmount.IsZero())
	assert.Empty(t, creditsOnly.UnlimitedUsers)
	assert.Equal(t, "270", creditsOnly.TotalAmount.String())
}

func TestUserInBothPlansCountsOnce(t *testing.T) {
	calc := New(model.DefaultRates()).CalculateClubPayout("c1", "One", may,
		[]usagedomain.UsageRecord{
			usage("a", "c1", usagedomain.SubscriptionTypeUnlimited, 1, true),
			usage("a", "c1", usagedomain.SubscriptionTypeCredits, 2, false),
		},
		map[string]int{"a": 1})

	assert.Len(t, calc.UnlimitedUsers, 1)
	assert.Len(t, calc.CreditsUsers, 1)
	assert.Equal(t, 1, calc.UniqueUsers)
	assert.Equal(t, "730", calc.TotalAmount.String())
}

func TestNegativeVisitsAreClamped(t *testing.T) {
	calc := New(model.DefaultRates()).CalculateClubPayout("c1", "One", may,
		[]usagedomain.UsageRecord{
			usage("a", "c1", usagedomain.SubscriptionTypeUnlimited, -4, true),
			usage("b", "c1", usagedomain.SubscriptionTypeCredits, -1, true),
		},
		map[string]int{"a": 1, "b": 1})

	assert.True(t, calc.TotalAmount.IsZero())
	assert.Equal(t, 0, calc.TotalVisits)
}

func TestArithmeticClosureOverRandomUsage(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	calc := New(model.DefaultRates())

	for iter := 0; iter < 200; iter++ {
		var records []usagedomain.UsageRecord
		clubs := make([]clubdomain.Club, 0, 5)
		for c := 0; c < 5; c++ {
			clubs = append(clubs, clubdomain.Club{ID: fmt.Sprintf("club-%d", c), Name: fmt.Sprintf("Club %d", c)})
		}
		users := 1 + rng.Intn(20)
		for u := 0; u < users; u++ {
			user := fmt.Sprintf("user-%d", u)
			subType := usagedomain.SubscriptionTypeUnlimited
			if rng.Intn(2) == 0 {
				subType = usagedomain.SubscriptionTypeCredits
			}
			for c := 0; c < 5; c++ {
				if rng.Intn(3) != 0 {
					continue
				}
				records = append(records, usage(user, fmt.Sprintf("club-%d", c), subType, 1+rng.Intn(15), true))
			}
		}

		for _, out := range calc.CalculateAllClubPayouts(may, clubdomain.NewLookup(clubs), records) {
			res := validator.Validate(out)
			require.True(t, res.Valid, "iteration %d club %s: %v", iter, out.ClubID, res.Errors)
			require.False(t, out.TotalAmount.IsNegative())
		}
	}
}

func TestOutputSortedByClubID(t *testing.T) {
	records := []usagedomain.UsageRecord{
		usage("a", "c3", usagedomain.SubscriptionTypeCredits, 1, true),
		usage("a", "c1", usagedomain.SubscriptionTypeCredits, 1, true),
		usage("a", "c2", usagedomain.SubscriptionTypeCredits, 1, true),
	}
	clubs := clubdomain.NewLookup([]clubdomain.Club{{ID: "c1"}, {ID: "c2"}, {ID: "c3"}})

	calcs := New(model.DefaultRates()).CalculateAllClubPayouts(may, clubs, records)
	require.Len(t, calcs, 3)
	assert.Equal(t, []string{"c1", "c2", "c3"}, []string{calcs[0].ClubID, calcs[1].ClubID, calcs[2].ClubID})
}
