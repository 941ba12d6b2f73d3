// Package validator cross-checks the arithmetic of a computed payout breakdown.
package validator

import (
	"fmt"

	"github.com/smallbiznis/clubpay/internal/payout/domain"
)

type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate is advisory: callers log and count failures but still persist the row.
func Validate(calc domain.ClubPayoutCalculation) Result {
	var errs []string

	if calc.TotalAmount.IsNegative() {
		errs = append(errs, fmt.Sprintf("total amount is negative: %s", calc.TotalAmount.StringFixed(2)))
	}
	if calc.TotalVisits != calc.UnlimitedVisits+calc.CreditsVisits {
		errs = append(errs, fmt.Sprintf("total visits %d does not equal unlimited visits %d plus credits visits %d",
			calc.TotalVisits, calc.UnlimitedVisits, calc.CreditsVisits))
	}
	if !calc.TotalAmount.Equal(calc.UnlimitedAmount.Add(calc.CreditsAmount)) {
		errs = append(errs, fmt.Sprintf("total amount %s does not equal unlimited amount %s plus credits amount %s",
			calc.TotalAmount.StringFixed(2), calc.UnlimitedAmount.StringFixed(2), calc.CreditsAmount.StringFixed(2)))
	}
	if calc.UniqueUsers > calc.TotalVisits {
		errs = append(errs, fmt.Sprintf("unique users %d exceeds total visits %d", calc.UniqueUsers, calc.TotalVisits))
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}
