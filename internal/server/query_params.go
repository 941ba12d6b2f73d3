package server

import (
	"strconv"
	"strings"

	payoutdomain "github.com/smallbiznis/clubpay/internal/payout/domain"
)

// parseLimit returns 0 for an absent limit so the service applies its default.
func parseLimit(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed <= 0 {
		return 0, payoutdomain.ErrInvalidLimit
	}
	return parsed, nil
}

func parseClubIDs(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
