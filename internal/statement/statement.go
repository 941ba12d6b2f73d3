// Package statement renders payout statements (PDF) and period exports (XLSX).
package statement

import (
	"context"
	"errors"
	"fmt"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/clubpay/internal/clock"
	"github.com/smallbiznis/clubpay/internal/payout/domain"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var ErrEmptyPayout = errors.New("statement_empty_payout")

// Document is a rendered file ready to be streamed to a client.
type Document struct {
	Filename    string
	ContentType string
	Bytes       []byte
}

type Renderer interface {
	PayoutStatement(ctx context.Context, payout domain.Payout) (Document, error)
	PeriodExport(ctx context.Context, summary domain.Summary, payouts []domain.Payout) (Document, error)
}

func statementFilename(p domain.Payout) string {
	name := slug.Make(p.ClubName)
	if name == "" {
		name = slug.Make(p.ClubID)
	}
	return fmt.Sprintf("statement_%s_%s.pdf", name, clock.FormatPeriod(p.Period))
}

func exportFilename(period string) string {
	return fmt.Sprintf("payouts_%s.xlsx", slug.Make(period))
}
