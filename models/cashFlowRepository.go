package models

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/fluxo_backend/config"
	"github.com/mmdatafocus/fluxo_backend/utils"
	"gorm.io/gorm"
)

const cashFlowInsertBatchSize = 500

// CashFlowInputs is everything consolidation reads for one company.
type CashFlowInputs struct {
	CompanyId     int
	LedgerEntries []*LedgerEntry // ascending id
	ChartAccounts map[int]*ChartAccount
	BankAccounts  map[int]*BankAccount
}

// CashFlowUnitOfWork reads inputs and replaces summaries inside one company scope.
type CashFlowUnitOfWork interface {
	LoadCashFlowInputs(ctx context.Context, companyId int) (*CashFlowInputs, error)
	ReplaceCashFlowSummaries(ctx context.Context, companyId int, realized []*RealizedSummary, forecast []*ForecastSummary) error
}

// CashFlowRepository is the MySQL backed store of the consolidation engine.
// A nil db falls back to the global handle at call time.
type CashFlowRepository struct {
	db           *gorm.DB
	advisoryLock bool
}

func NewCashFlowRepository(db *gorm.DB) *CashFlowRepository {
	return &CashFlowRepository{db: db, advisoryLock: config.CashFlowAdvisoryLockEnabled()}
}

func (r *CashFlowRepository) conn() (*gorm.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	if db := config.GetDB(); db != nil {
		return db, nil
	}
	return nil, errDatabaseNotConnected
}

// ListLedgerCompanyIds returns the distinct companies that own ledger entries, ascending.
func (r *CashFlowRepository) ListLedgerCompanyIds(ctx context.Context) ([]int, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	var ids []int
	if err := db.WithContext(ctx).Model(&LedgerEntry{}).Distinct().Order("empresa_id").Pluck("empresa_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// InCompanyScope runs fn in one transaction holding the company's advisory lock.
// Any error rolls the transaction back, leaving the previous summaries in place.
// The company's cached summary lists are retired after commit.
func (r *CashFlowRepository) InCompanyScope(ctx context.Context, companyId int, fn func(ctx context.Context, unit CashFlowUnitOfWork) error) error {
	if companyId <= 0 {
		return utils.ErrorCompanyRequired
	}
	db, err := r.conn()
	if err != nil {
		return err
	}
	ctx = utils.SetCompanyIdInContext(ctx, companyId)
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.advisoryLock {
			if err := AcquireCompanyCashFlowLock(tx, companyId); err != nil {
				return err
			}
			defer ReleaseCompanyCashFlowLock(tx, companyId)
		}
		return fn(ctx, &gormCashFlowUnit{tx: tx})
	})
	if err != nil {
		return err
	}
	if err := InvalidateCashFlowSummaryCache(companyId); err != nil {
		config.LogError(config.GetLogger(), "models", "InCompanyScope", "invalidate summary cache", companyId, err)
	}
	return nil
}

type gormCashFlowUnit struct {
	tx *gorm.DB
}

func (u *gormCashFlowUnit) LoadCashFlowInputs(ctx context.Context, companyId int) (*CashFlowInputs, error) {
	tx := u.tx.WithContext(ctx)

	var entries []*LedgerEntry
	if err := tx.Where("empresa_id = ?", companyId).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load ledger entries: %w", err)
	}
	// no active filter: entries on inactive accounts are final events
	var charts []*ChartAccount
	if err := tx.Where("empresa_id = ?", companyId).Find(&charts).Error; err != nil {
		return nil, fmt.Errorf("load chart accounts: %w", err)
	}
	var banks []*BankAccount
	if err := tx.Where("empresa_id = ?", companyId).Find(&banks).Error; err != nil {
		return nil, fmt.Errorf("load bank accounts: %w", err)
	}

	inputs := &CashFlowInputs{
		CompanyId:     companyId,
		LedgerEntries: entries,
		ChartAccounts: make(map[int]*ChartAccount, len(charts)),
		BankAccounts:  make(map[int]*BankAccount, len(banks)),
	}
	for _, c := range charts {
		inputs.ChartAccounts[c.ID] = c
	}
	for _, b := range banks {
		inputs.BankAccounts[b.ID] = b
	}
	return inputs, nil
}

func (u *gormCashFlowUnit) ReplaceCashFlowSummaries(ctx context.Context, companyId int, realized []*RealizedSummary, forecast []*ForecastSummary) error {
	for _, row := range realized {
		if row.CompanyId != companyId {
			return fmt.Errorf("realized row for company %d in company %d scope", row.CompanyId, companyId)
		}
	}
	for _, row := range forecast {
		if row.CompanyId != companyId {
			return fmt.Errorf("forecast row for company %d in company %d scope", row.CompanyId, companyId)
		}
	}

	tx := u.tx.WithContext(ctx)
	if err := tx.Where("empresa_id = ?", companyId).Delete(&RealizedSummary{}).Error; err != nil {
		return fmt.Errorf("delete realized summaries: %w", err)
	}
	if err := tx.Where("empresa_id = ?", companyId).Delete(&ForecastSummary{}).Error; err != nil {
		return fmt.Errorf("delete forecast summaries: %w", err)
	}
	if len(realized) > 0 {
		if err := tx.CreateInBatches(realized, cashFlowInsertBatchSize).Error; err != nil {
			return fmt.Errorf("insert realized summaries: %w", err)
		}
	}
	if len(forecast) > 0 {
		if err := tx.CreateInBatches(forecast, cashFlowInsertBatchSize).Error; err != nil {
			return fmt.Errorf("insert forecast summaries: %w", err)
		}
	}
	return nil
}
