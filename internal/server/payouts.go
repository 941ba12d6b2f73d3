package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/clubpay/internal/clock"
	obscontext "github.com/smallbiznis/clubpay/internal/observability/context"
	payoutdomain "github.com/smallbiznis/clubpay/internal/payout/domain"
	"github.com/smallbiznis/clubpay/internal/statement"
	"go.uber.org/zap"
)

type generateMonthlyRequest struct {
	Period  string   `json:"period"`
	ClubIDs []string `json:"club_ids"`
	Mode    string   `json:"mode"`
}

type sendTransfersRequest struct {
	Period  string   `json:"period"`
	ClubIDs []string `json:"club_ids"`
}

type clubPayoutsResponse struct {
	ClubID  string                `json:"club_id"`
	Payouts []payoutdomain.Payout `json:"payouts"`
}

// bindOptionalJSON accepts an empty body; batch endpoints default every field.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return invalidRequestError()
	}
	return nil
}

func (s *Server) GenerateMonthlyPayouts(c *gin.Context) {
	var req generateMonthlyRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.payoutSvc.GenerateMonthly(c.Request.Context(), payoutdomain.GenerateRequest{
		Period:  strings.TrimSpace(req.Period),
		ClubIDs: parseClubIDs(req.ClubIDs),
		Mode:    strings.TrimSpace(req.Mode),
	})
	tagPayoutRun(c, result.RunID, result.Period)
	if errors.Is(err, payoutdomain.ErrBatchFailed) {
		_ = c.Error(err)
		_, payload := mapError(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  payload,
			"result": result,
		})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) SendTransfers(c *gin.Context) {
	var req sendTransfersRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.payoutSvc.SendTransfers(c.Request.Context(), payoutdomain.SendTransfersRequest{
		Period:  strings.TrimSpace(req.Period),
		ClubIDs: parseClubIDs(req.ClubIDs),
	})
	tagPayoutRun(c, result.RunID, result.Period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// tagPayoutRun exposes the batch run to the request log and server span.
func tagPayoutRun(c *gin.Context, runID, period string) {
	if runID != "" {
		c.Set(obscontext.GinRunIDKey, runID)
	}
	if period != "" {
		c.Set(obscontext.GinPayoutPeriodKey, period)
	}
}

func (s *Server) ListClubPayouts(c *gin.Context) {
	clubID := strings.TrimSpace(c.Param("clubId"))
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payouts, err := s.payoutSvc.ListClubPayouts(c.Request.Context(), clubID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if payouts == nil {
		payouts = []payoutdomain.Payout{}
	}

	c.JSON(http.StatusOK, clubPayoutsResponse{ClubID: clubID, Payouts: payouts})
}

func (s *Server) GetPayoutSummary(c *gin.Context) {
	period := strings.TrimSpace(c.Param("period"))
	c.Set(obscontext.GinPayoutPeriodKey, period)

	summary, err := s.payoutSvc.GetSummary(c.Request.Context(), period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) ExportPeriodPayouts(c *gin.Context) {
	period := strings.TrimSpace(c.Param("period"))
	c.Set(obscontext.GinPayoutPeriodKey, period)
	ctx := c.Request.Context()

	summary, err := s.payoutSvc.GetSummary(ctx, period)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	payouts, err := s.payoutSvc.ListPeriodPayouts(ctx, period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.renderer.PeriodExport(ctx, summary, payouts)
	if err != nil {
		s.log.Error("period export failed", zap.String("period", period), zap.Error(err))
		AbortWithError(c, err)
		return
	}

	writeDocument(c, doc)
}

func (s *Server) GetPayout(c *gin.Context) {
	payout, err := s.payoutSvc.GetPayout(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obscontext.GinPayoutPeriodKey, clock.FormatPeriod(payout.Period))
	c.JSON(http.StatusOK, payout)
}

func (s *Server) GetPayoutStatement(c *gin.Context) {
	ctx := c.Request.Context()
	payout, err := s.payoutSvc.GetPayout(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set(obscontext.GinPayoutPeriodKey, clock.FormatPeriod(payout.Period))

	doc, err := s.renderer.PayoutStatement(ctx, payout)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writeDocument(c, doc)
}

func writeDocument(c *gin.Context, doc statement.Document) {
	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Data(http.StatusOK, doc.ContentType, doc.Bytes)
}
