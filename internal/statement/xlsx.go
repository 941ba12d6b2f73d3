package statement

import (
	"bytes"
	"context"

	"github.com/smallbiznis/clubpay/internal/clock"
	"github.com/smallbiznis/clubpay/internal/payout/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	summarySheet = "Summary"
	payoutsSheet = "Payouts"
)

var payoutHeader = []interface{}{
	"payout_id",
	"club_id",
	"club_name",
	"period",
	"status",
	"unlimited_visits",
	"unlimited_amount",
	"credits_visits",
	"credits_amount",
	"total_visits",
	"unique_users",
	"total_amount",
	"retry_count",
	"transfer_id",
	"error_message",
}

// PeriodExport writes the period summary on one sheet and one row per club payout on another.
func (r *renderer) PeriodExport(ctx context.Context, summary domain.Summary, payouts []domain.Payout) (Document, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), summarySheet); err != nil {
		return Document{}, err
	}
	summaryRows := [][]interface{}{
		{"period", summary.Period},
		{"clubs", summary.Clubs},
		{"total_amount", summary.TotalAmount.InexactFloat64()},
		{"unlimited_amount", summary.UnlimitedAmount.InexactFloat64()},
		{"credits_amount", summary.CreditsAmount.InexactFloat64()},
		{"total_visits", summary.TotalVisits},
		{"unlimited_visits", summary.UnlimitedVisits},
		{"credits_visits", summary.CreditsVisits},
		{"unique_users", summary.UniqueUsers},
		{"recorded_visits", summary.RecordedVisits},
		{"pending", summary.ByStatus[domain.StatusPending]},
		{"processing", summary.ByStatus[domain.StatusProcessing]},
		{"paid", summary.ByStatus[domain.StatusPaid]},
		{"failed", summary.ByStatus[domain.StatusFailed]},
	}
	if err := writeRows(f, summarySheet, summaryRows); err != nil {
		return Document{}, err
	}

	if _, err := f.NewSheet(payoutsSheet); err != nil {
		return Document{}, err
	}
	rows := make([][]interface{}, 0, len(payouts)+1)
	rows = append(rows, payoutHeader)
	for _, p := range payouts {
		rows = append(rows, []interface{}{
			p.ID.String(),
			p.ClubID,
			p.ClubName,
			clock.FormatPeriod(p.Period),
			string(p.Status),
			p.UnlimitedVisits,
			p.UnlimitedAmount.InexactFloat64(),
			p.CreditsVisits,
			p.CreditsAmount.InexactFloat64(),
			p.TotalVisits,
			p.UniqueUsers,
			p.TotalAmount.InexactFloat64(),
			p.RetryCount,
			valueOr(p.TransferID, ""),
			valueOr(p.ErrorMessage, ""),
		})
	}
	if err := writeRows(f, payoutsSheet, rows); err != nil {
		return Document{}, err
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		r.log.Error("failed to write period export", zap.String("period", summary.Period), zap.Error(err))
		return Document{}, err
	}
	return Document{
		Filename:    exportFilename(summary.Period),
		ContentType: ContentTypeXLSX,
		Bytes:       buf.Bytes(),
	}, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, values := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := values
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
