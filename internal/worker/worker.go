// Package worker materializes due instances of recurring bills. The
// scheduler is pure, so independent bills are processed concurrently with no
// coordination beyond the store itself.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/finbook/loan-engine/internal/store"
	"github.com/finbook/loan-engine/pkg/constants"
	"github.com/finbook/loan-engine/pkg/datetime"
	"github.com/finbook/loan-engine/pkg/schedule"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Processor drives the recurring-bill run.
type Processor struct {
	store       *store.Store
	logger      *zap.Logger
	concurrency int
}

// NewProcessor creates a processor over the given bill store.
func NewProcessor(billStore *store.Store, logger *zap.Logger, concurrency int) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = constants.DefaultWorkerConcurrency
	}
	return &Processor{store: billStore, logger: logger, concurrency: concurrency}
}

// ProcessDueBills materializes every occurrence due on or before now across
// all active bills and returns the number of instances created. A bill with
// a broken rule is logged and skipped; it never aborts the run for the
// others.
func (p *Processor) ProcessDueBills(ctx context.Context, now time.Time) (int, error) {
	bills, err := p.store.ActiveBills(ctx)
	if err != nil {
		return 0, fmt.Errorf("load active bills: %w", err)
	}

	p.logger.Info("processing recurring bills",
		zap.String("op", "worker.ProcessDueBills"),
		zap.Int("active", len(bills)),
		zap.String("as_of", now.Format(datetime.DateLayout)),
	)

	var created atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.concurrency)

	for _, bill := range bills {
		bill := bill
		group.Go(func() error {
			n, err := p.processBill(groupCtx, bill, now)
			if err != nil {
				// Configuration faults on one bill stay on that bill.
				p.logger.Error("skipping bill",
					zap.String("op", "worker.ProcessDueBills"),
					zap.Int64("bill_id", bill.ID),
					zap.String("bill", bill.Name),
					zap.Error(err),
				)
				return nil
			}
			created.Add(int64(n))
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return int(created.Load()), err
	}

	p.logger.Info("recurring bill processing complete",
		zap.String("op", "worker.ProcessDueBills"),
		zap.Int64("instances_created", created.Load()),
	)
	return int(created.Load()), nil
}

// processBill walks the bill's occurrences from the last materialized date
// through now, inserting an instance for each.
func (p *Processor) processBill(ctx context.Context, bill store.Bill, now time.Time) (int, error) {
	rule, err := bill.Rule()
	if err != nil {
		return 0, err
	}

	after := rule.StartDate.AddDate(0, 0, -1)
	if bill.LastGenerated != "" {
		after, err = datetime.ParseDate(bill.LastGenerated)
		if err != nil {
			return 0, fmt.Errorf("bill %d has malformed last generated date %q: %w", bill.ID, bill.LastGenerated, err)
		}
	}

	created := 0
	for {
		next, ok, err := schedule.NextOccurrence(rule, after)
		if err != nil {
			return created, err
		}
		if !ok {
			// Series exhausted; stop considering this bill in future runs.
			if err := p.store.DeactivateBill(ctx, bill.ID); err != nil {
				return created, err
			}
			p.logger.Debug("bill series exhausted",
				zap.String("op", "worker.processBill"),
				zap.Int64("bill_id", bill.ID),
				zap.String("bill", bill.Name),
			)
			return created, nil
		}
		if next.After(now) {
			return created, nil
		}

		if err := p.store.InsertInstance(ctx, bill.ID, next, bill.Amount); err != nil {
			return created, err
		}
		if err := p.store.SetLastGenerated(ctx, bill.ID, next); err != nil {
			return created, err
		}

		p.logger.Debug("materialized bill instance",
			zap.String("op", "worker.processBill"),
			zap.Int64("bill_id", bill.ID),
			zap.String("bill", bill.Name),
			zap.String("due", next.Format(datetime.DateLayout)),
		)
		created++
		after = next
	}
}
