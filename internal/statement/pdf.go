package statement

import (
	"context"
	"fmt"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/smallbiznis/clubpay/internal/clock"
	"github.com/smallbiznis/clubpay/internal/payout/domain"
	"go.uber.org/zap"
)

type renderer struct {
	log      *zap.Logger
	currency string
}

func New(log *zap.Logger, currency string) Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &renderer{log: log.Named("statement.renderer"), currency: currency}
}

var (
	headerText = props.Text{Style: fontstyle.Bold, Size: 9}
	cellText   = props.Text{Size: 9}
	amountText = props.Text{Size: 9, Align: align.Right}
)

func (r *renderer) PayoutStatement(ctx context.Context, p domain.Payout) (Document, error) {
	if p.ClubID == "" {
		return Document{}, ErrEmptyPayout
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Payout statement", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	m.AddRow(24,
		col.New(6).Add(
			text.New(p.ClubName, props.Text{Style: fontstyle.Bold}),
			text.New("Club: "+p.ClubID, props.Text{Top: 5, Size: 8}),
			text.New("Period: "+clock.FormatPeriod(p.Period), props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Payout: "+p.ID.String(), props.Text{Align: align.Right, Size: 8}),
			text.New("Status: "+string(p.Status), props.Text{Top: 5, Align: align.Right}),
			text.New("Transfer: "+valueOr(p.TransferID, "-"), props.Text{Top: 10, Align: align.Right, Size: 8}),
		),
	)

	m.AddRow(10, text.NewCol(12, "Unlimited members", props.Text{Style: fontstyle.Bold, Top: 3}))
	m.AddRow(7,
		text.NewCol(5, "Member", headerText),
		text.NewCol(2, "Gyms", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Visits", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(1, line.NewCol(12))
	for _, u := range p.UnlimitedUsers {
		m.AddRow(6,
			text.NewCol(5, u.UserID, cellText),
			text.NewCol(2, strconv.Itoa(u.UniqueGymsCount), amountText),
			text.NewCol(2, strconv.Itoa(u.VisitCount), amountText),
			text.NewCol(3, r.money(u.TotalPayout.StringFixed(2)), amountText),
		)
	}

	m.AddRow(10, text.NewCol(12, "Credits members", props.Text{Style: fontstyle.Bold, Top: 3}))
	m.AddRow(7,
		text.NewCol(7, "Member", headerText),
		text.NewCol(2, "Visits", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(1, line.NewCol(12))
	for _, u := range p.CreditsUsers {
		m.AddRow(6,
			text.NewCol(7, u.UserID, cellText),
			text.NewCol(2, strconv.Itoa(u.VisitCount), amountText),
			text.NewCol(3, r.money(u.TotalPayout.StringFixed(2)), amountText),
		)
	}

	m.AddRow(6, col.New(12))
	r.totalRow(m, "Unlimited", fmt.Sprintf("%d visits", p.UnlimitedVisits), p.UnlimitedAmount.StringFixed(2), false)
	r.totalRow(m, "Credits", fmt.Sprintf("%d visits", p.CreditsVisits), p.CreditsAmount.StringFixed(2), false)
	r.totalRow(m, "Total", fmt.Sprintf("%d visits, %d members", p.TotalVisits, p.UniqueUsers), p.TotalAmount.StringFixed(2), true)

	doc, err := m.Generate()
	if err != nil {
		r.log.Error("failed to render statement", zap.String("payout_id", p.ID.String()), zap.Error(err))
		return Document{}, err
	}
	return Document{
		Filename:    statementFilename(p),
		ContentType: ContentTypePDF,
		Bytes:       doc.GetBytes(),
	}, nil
}

func (r *renderer) totalRow(m core.Maroto, label, detail, amount string, bold bool) {
	style := fontstyle.Normal
	if bold {
		style = fontstyle.Bold
	}
	m.AddRow(7,
		col.New(4),
		text.NewCol(2, label, props.Text{Size: 9, Style: style}),
		text.NewCol(3, detail, props.Text{Size: 9, Align: align.Right}),
		text.NewCol(3, r.money(amount), props.Text{Size: 9, Style: style, Align: align.Right}),
	)
}

func (r *renderer) money(amount string) string {
	if r.currency == "" {
		return amount
	}
	return amount + " " + r.currency
}

func valueOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}
