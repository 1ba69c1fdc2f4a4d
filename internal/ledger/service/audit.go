package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"satstack.com/internal/ledger/domain"
	"satstack.com/pkg/logger"
	"satstack.com/pkg/metrics"
)

// AssetAudit compares the stored holding with grants plus trade deltas, and
// with the still locked lots it must cover.
type AssetAudit struct {
	Asset      string `json:"asset"`
	Granted    int64  `json:"granted"`
	TradeDelta int64  `json:"trade_delta"`
	Expected   int64  `json:"expected"`
	Actual     int64  `json:"actual"`
	OK         bool   `json:"ok"`
	Locked     int64  `json:"locked"`
	LockedOK   bool   `json:"locked_ok"`
}

type AuditReport struct {
	UserID     int64        `json:"user_id"`
	Consistent bool         `json:"consistent"`
	Assets     []AssetAudit `json:"assets"`
}

type AuditService struct {
	store domain.Store
	clock Clock
}

func NewAuditService(store domain.Store, opts ...Option) *AuditService {
	return &AuditService{store: store, clock: buildOptions(opts).clock}
}

// Reconcile checks holding = grants + incoming - outgoing for every asset the
// user has touched, and that no holding is below its locked lots. Reads
// share one transaction.
func (s *AuditService) Reconcile(ctx context.Context, userID int64) (*AuditReport, error) {
	var (
		grants, deltas map[string]int64
		holdings       []domain.Holding
		locked         = map[string]int64{}
	)
	now := s.clock.Now()
	err := s.store.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		if grants, err = s.store.SumGrants(txCtx, userID); err != nil {
			return err
		}
		if deltas, err = s.store.TradeDeltas(txCtx, userID); err != nil {
			return err
		}
		if holdings, err = s.store.ListHoldings(txCtx, userID); err != nil {
			return err
		}
		for a := range deltas {
			if a == domain.BaseAsset {
				continue
			}
			if locked[a], err = s.store.SumLocked(txCtx, userID, a, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.Persistence(err)
	}

	actual := make(map[string]int64, len(holdings))
	assets := map[string]struct{}{}
	for _, h := range holdings {
		actual[h.Asset] = h.Amount
		assets[h.Asset] = struct{}{}
	}
	for a := range grants {
		assets[a] = struct{}{}
	}
	for a := range deltas {
		assets[a] = struct{}{}
	}

	report := &AuditReport{UserID: userID, Consistent: true, Assets: make([]AssetAudit, 0, len(assets))}
	for a := range assets {
		row := AssetAudit{
			Asset:      a,
			Granted:    grants[a],
			TradeDelta: deltas[a],
			Actual:     actual[a],
			Locked:     locked[a],
		}
		row.Expected = row.Granted + row.TradeDelta
		row.OK = row.Expected == row.Actual
		row.LockedOK = row.Locked <= row.Actual
		if !row.OK {
			report.Consistent = false
			metrics.IntegrityWarnings.WithLabelValues("conservation").Inc()
			logger.Warn(ctx, "holding does not match grants and trades",
				zap.Int64("user_id", userID),
				zap.String("asset", a),
				zap.Int64("expected", row.Expected),
				zap.Int64("actual", row.Actual),
			)
		}
		if !row.LockedOK {
			report.Consistent = false
			metrics.IntegrityWarnings.WithLabelValues("locked_exceeds_holding").Inc()
			logger.Warn(ctx, "locked lots exceed holding",
				zap.Int64("user_id", userID),
				zap.String("asset", a),
				zap.Int64("locked", row.Locked),
				zap.Int64("actual", row.Actual),
			)
		}
		report.Assets = append(report.Assets, row)
	}
	sort.Slice(report.Assets, func(i, j int) bool { return report.Assets[i].Asset < report.Assets[j].Asset })
	return report, nil
}
