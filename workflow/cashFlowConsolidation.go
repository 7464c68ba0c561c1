package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mmdatafocus/fluxo_backend/config"
	"github.com/mmdatafocus/fluxo_backend/models"
	"github.com/mmdatafocus/fluxo_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrCompanyRequired = errors.New("company id must be positive")

// CashFlowStore is what the consolidator needs from persistence.
type CashFlowStore interface {
	ListLedgerCompanyIds(ctx context.Context) ([]int, error)
	InCompanyScope(ctx context.Context, companyId int, fn func(ctx context.Context, unit models.CashFlowUnitOfWork) error) error
}

// CashFlowConsolidator recomputes the realized and forecast summaries of companies.
// Runs for the same company are serialized; different companies run independently.
type CashFlowConsolidator struct {
	store  CashFlowStore
	logger *logrus.Logger
	policy config.UnresolvedChartPolicy
	tracer trace.Tracer

	mu    sync.Mutex
	locks map[int]*companyMutex
}

type companyMutex struct {
	sync.Mutex
	refs int
}

type ConsolidatorOption func(*CashFlowConsolidator)

func WithUnresolvedChartPolicy(policy config.UnresolvedChartPolicy) ConsolidatorOption {
	return func(c *CashFlowConsolidator) { c.policy = policy }
}

func WithTracer(tracer trace.Tracer) ConsolidatorOption {
	return func(c *CashFlowConsolidator) { c.tracer = tracer }
}

func NewCashFlowConsolidator(store CashFlowStore, logger *logrus.Logger, opts ...ConsolidatorOption) *CashFlowConsolidator {
	if logger == nil {
		logger = config.GetLogger()
	}
	c := &CashFlowConsolidator{
		store:  store,
		logger: logger,
		policy: config.CashFlowUnresolvedChartPolicy(),
		tracer: otel.Tracer("fluxo-cashflow"),
		locks:  make(map[int]*companyMutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lockCompany blocks until the caller owns the company's slot. The returned func releases it.
func (c *CashFlowConsolidator) lockCompany(companyId int) func() {
	c.mu.Lock()
	m, ok := c.locks[companyId]
	if !ok {
		m = &companyMutex{}
		c.locks[companyId] = m
	}
	m.refs++
	c.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		c.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(c.locks, companyId)
		}
		c.mu.Unlock()
	}
}

// Consolidate recomputes one company when companyId is set, otherwise every company that owns
// ledger entries. A failing company does not stop the others; all failures are joined.
func (c *CashFlowConsolidator) Consolidate(ctx context.Context, companyId *int) error {
	if companyId != nil {
		return c.ConsolidateCompany(ctx, *companyId)
	}
	ids, err := c.store.ListLedgerCompanyIds(ctx)
	if err != nil {
		config.LogError(c.logger, "workflow", "Consolidate", "list companies", nil, err)
		return fmt.Errorf("list ledger companies: %w", err)
	}
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := c.ConsolidateCompany(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ConsolidateCompany replaces the company's summaries in one transaction. On failure the
// previous summaries are kept.
func (c *CashFlowConsolidator) ConsolidateCompany(ctx context.Context, companyId int) (err error) {
	if companyId <= 0 {
		return ErrCompanyRequired
	}
	ctx, span := c.tracer.Start(ctx, "cashflow.consolidate_company", trace.WithAttributes(attribute.Int("company_id", companyId)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	unlock := c.lockCompany(companyId)
	defer unlock()

	start := time.Now()
	var realizedRows, forecastRows, entries int
	err = c.store.InCompanyScope(ctx, companyId, func(ctx context.Context, unit models.CashFlowUnitOfWork) error {
		inputs, err := unit.LoadCashFlowInputs(ctx, companyId)
		if err != nil {
			return err
		}
		realized, forecast, err := AggregateCashFlow(c.logger, inputs, c.policy)
		if err != nil {
			return err
		}
		if err := unit.ReplaceCashFlowSummaries(ctx, companyId, realized, forecast); err != nil {
			return err
		}
		entries, realizedRows, forecastRows = len(inputs.LedgerEntries), len(realized), len(forecast)
		return nil
	})
	if err != nil {
		config.LogError(c.logger, "workflow", "ConsolidateCompany", "consolidate cash flow", companyId, err)
		return fmt.Errorf("consolidate company %d: %w", companyId, err)
	}

	span.SetAttributes(attribute.Int("realized_rows", realizedRows), attribute.Int("forecast_rows", forecastRows))
	userName, _ := utils.GetUserNameFromContext(ctx)
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	c.logger.WithFields(logrus.Fields{
		"company_id":     companyId,
		"user_name":      userName,
		"correlation_id": correlationId,
		"ledger_rows":    entries,
		"realized_rows":  realizedRows,
		"forecast_rows":  forecastRows,
		"duration_ms":    time.Since(start).Milliseconds(),
	}).Info("cash flow consolidated")
	return nil
}
