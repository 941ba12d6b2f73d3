// Package aggregate groups monthly usage rows by club and by user.
package aggregate

import (
	"sort"
	"time"

	clubdomain "github.com/smallbiznis/clubpay/internal/club/domain"
	"github.com/smallbiznis/clubpay/internal/usage/domain"
)

// UserMonthlyUsage summarizes one user's usage across all clubs for a period.
type UserMonthlyUsage struct {
	UniqueGymsVisited int
	SubscriptionType  domain.SubscriptionType
	GymVisits         []domain.UsageRecord
}

// MixedSubscriptionType flags a user billed under both plans at one club in one period.
type MixedSubscriptionType struct {
	UserID string    `json:"user_id"`
	ClubID string    `json:"club_id"`
	Period time.Time `json:"period"`
}

// AggregateByClub groups records by club. Clubs missing from clubs are dropped.
func AggregateByClub(records []domain.UsageRecord, clubs clubdomain.Lookup) map[string][]domain.UsageRecord {
	out := make(map[string][]domain.UsageRecord)
	for _, rec := range records {
		if _, ok := clubs[rec.ClubID]; !ok {
			continue
		}
		out[rec.ClubID] = append(out[rec.ClubID], rec)
	}
	return out
}

// GetUserMonthlyUsage filters all to userID and period. The subscription type is taken from the first match.
func GetUserMonthlyUsage(userID string, period time.Time, all []domain.UsageRecord) UserMonthlyUsage {
	var usage UserMonthlyUsage
	for _, rec := range all {
		if rec.UserID != userID || !rec.Period.Equal(period) {
			continue
		}
		if len(usage.GymVisits) == 0 {
			usage.SubscriptionType = rec.SubscriptionType
		}
		usage.GymVisits = append(usage.GymVisits, rec)
		if rec.IsUniqueVisit {
			usage.UniqueGymsVisited++
		}
	}
	return usage
}

// UniqueGymsByUser counts is_unique_visit rows per user once for the whole batch.
func UniqueGymsByUser(period time.Time, all []domain.UsageRecord) map[string]int {
	out := make(map[string]int)
	for _, rec := range all {
		if !rec.Period.Equal(period) {
			continue
		}
		if _, ok := out[rec.UserID]; !ok {
			out[rec.UserID] = 0
		}
		if rec.IsUniqueVisit {
			out[rec.UserID]++
		}
	}
	return out
}

// CheckSubscriptionTypes reports every (user, club, period) that appears under more than one plan.
func CheckSubscriptionTypes(records []domain.UsageRecord) []MixedSubscriptionType {
	type key struct {
		user, club string
		period     int64
	}
	seen := make(map[key]domain.SubscriptionType)
	flagged := make(map[key]MixedSubscriptionType)
	for _, rec := range records {
		k := key{user: rec.UserID, club: rec.ClubID, period: rec.Period.Unix()}
		prev, ok := seen[k]
		if !ok {
			seen[k] = rec.SubscriptionType
			continue
		}
		if prev != rec.SubscriptionType {
			flagged[k] = MixedSubscriptionType{UserID: rec.UserID, ClubID: rec.ClubID, Period: rec.Period}
		}
	}

	out := make([]MixedSubscriptionType, 0, len(flagged))
	for _, m := range flagged {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClubID != out[j].ClubID {
			return out[i].ClubID < out[j].ClubID
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}
