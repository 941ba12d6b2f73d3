// Package calculator turns a period's usage rows into per-club payout breakdowns.
package calculator

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	clubdomain "github.com/smallbiznis/clubpay/internal/club/domain"
	"github.com/smallbiznis/clubpay/internal/payout/domain"
	"github.com/smallbiznis/clubpay/internal/payout/model"
	"github.com/smallbiznis/clubpay/internal/usage/aggregate"
	usagedomain "github.com/smallbiznis/clubpay/internal/usage/domain"
)

type Calculator struct {
	rates model.Rates
}

func New(rates model.Rates) *Calculator {
	return &Calculator{rates: rates}
}

// CalculateClubPayout computes one club's breakdown. uniqueGymsByUser must cover
// the whole period across every club, since the unlimited tier is cross-club.
func (c *Calculator) CalculateClubPayout(
	clubID, clubName string,
	period time.Time,
	clubRecords []usagedomain.UsageRecord,
	uniqueGymsByUser map[string]int,
) domain.ClubPayoutCalculation {
	calc := domain.ClubPayoutCalculation{
		ClubID:          clubID,
		ClubName:        clubName,
		Period:          period,
		UnlimitedUsers:  []domain.UnlimitedUserLine{},
		UnlimitedAmount: decimal.Zero,
		CreditsUsers:    []domain.CreditsUserLine{},
		CreditsAmount:   decimal.Zero,
	}

	for _, rec := range clubRecords {
		visits := rec.VisitCount
		if visits < 0 {
			visits = 0
		}

		switch rec.SubscriptionType {
		case usagedomain.SubscriptionTypeUnlimited:
			gyms := uniqueGymsByUser[rec.UserID]
			perVisit := c.rates.UnlimitedPayoutPerVisit(gyms)
			total := perVisit.Mul(decimal.NewFromInt(int64(visits)))
			calc.UnlimitedUsers = append(calc.UnlimitedUsers, domain.UnlimitedUserLine{
				UserID:          rec.UserID,
				UniqueGymsCount: gyms,
				PayoutPerVisit:  perVisit,
				VisitCount:      visits,
				TotalPayout:     total,
			})
			calc.UnlimitedAmount = calc.UnlimitedAmount.Add(total)
			calc.UnlimitedVisits += visits
		case usagedomain.SubscriptionTypeCredits:
			total := c.rates.CreditsPayoutPerVisit().Mul(decimal.NewFromInt(int64(visits)))
			calc.CreditsUsers = append(calc.CreditsUsers, domain.CreditsUserLine{
				UserID:      rec.UserID,
				VisitCount:  visits,
				TotalPayout: total,
			})
			calc.CreditsAmount = calc.CreditsAmount.Add(total)
			calc.CreditsVisits += visits
		}
	}

	calc.TotalAmount = calc.UnlimitedAmount.Add(calc.CreditsAmount)
	calc.TotalVisits = calc.UnlimitedVisits + calc.CreditsVisits
	calc.UniqueUsers = countUsers(calc)
	return calc
}

// CalculateAllClubPayouts returns one breakdown per known club with usage, sorted by club id.
func (c *Calculator) CalculateAllClubPayouts(
	period time.Time,
	clubs clubdomain.Lookup,
	allRecords []usagedomain.UsageRecord,
) []domain.ClubPayoutCalculation {
	byClub := aggregate.AggregateByClub(allRecords, clubs)
	uniqueGyms := aggregate.UniqueGymsByUser(period, allRecords)

	clubIDs := make([]string, 0, len(byClub))
	for id := range byClub {
		clubIDs = append(clubIDs, id)
	}
	sort.Strings(clubIDs)

	out := make([]domain.ClubPayoutCalculation, 0, len(clubIDs))
	for _, id := range clubIDs {
		records := byClub[id]
		if len(records) == 0 {
			continue
		}
		out = append(out, c.CalculateClubPayout(id, clubs[id].Name, period, records, uniqueGyms))
	}
	return out
}

func countUsers(calc domain.ClubPayoutCalculation) int {
	users := make(map[string]struct{}, len(calc.UnlimitedUsers)+len(calc.CreditsUsers))
	for _, u := range calc.UnlimitedUsers {
		users[u.UserID] = struct{}{}
	}
	for _, u := range calc.CreditsUsers {
		users[u.UserID] = struct{}{}
	}
	return len(users)
}
