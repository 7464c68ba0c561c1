package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/fluxo_backend/config"
	"github.com/mmdatafocus/fluxo_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RealizedSummary is one consolidated (chart account, bank account) pair of paid entries.
// Rows are owned by the consolidation engine and fully regenerated per company.
type RealizedSummary struct {
	ID             int             `gorm:"primaryKey" json:"id"`
	CompanyId      int             `gorm:"column:empresa_id;index;not null" json:"company_id"`
	Date           time.Time       `gorm:"column:data;type:date;index;not null" json:"date"`
	ChartAccountId int             `gorm:"column:fluxo_conta_id;not null" json:"chart_account_id"`
	BankAccountId  int             `gorm:"column:conta_banco_id;not null" json:"bank_account_id"`
	PriorBalance   decimal.Decimal `gorm:"column:saldo_anterior;type:decimal(15,2);not null" json:"prior_balance"`
	AmountPaid     decimal.Decimal `gorm:"column:valor_pago;type:decimal(15,2);not null" json:"amount_paid"`
	AmountReceived decimal.Decimal `gorm:"column:valor_recebido;type:decimal(15,2);not null" json:"amount_received"`
	CurrentBalance decimal.Decimal `gorm:"column:saldo_atual;type:decimal(15,2);not null" json:"current_balance"`
	CreatedAt      time.Time       `gorm:"column:criado_em;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:atualizado_em;autoUpdateTime" json:"updated_at"`
}

func (RealizedSummary) TableName() string { return "fluxo_caixa_realizado" }

// ForecastSummary is the open-entry counterpart of RealizedSummary.
type ForecastSummary struct {
	ID               int             `gorm:"primaryKey" json:"id"`
	CompanyId        int             `gorm:"column:empresa_id;index;not null" json:"company_id"`
	Date             time.Time       `gorm:"column:data;type:date;index;not null" json:"date"`
	ChartAccountId   int             `gorm:"column:fluxo_conta_id;not null" json:"chart_account_id"`
	BankAccountId    int             `gorm:"column:conta_banco_id;not null" json:"bank_account_id"`
	PriorBalance     decimal.Decimal `gorm:"column:saldo_anterior;type:decimal(15,2);not null" json:"prior_balance"`
	ForecastPaid     decimal.Decimal `gorm:"column:valor_previsto_pago;type:decimal(15,2);not null" json:"forecast_paid"`
	ForecastReceived decimal.Decimal `gorm:"column:valor_previsto_recebido;type:decimal(15,2);not null" json:"forecast_received"`
	ForecastBalance  decimal.Decimal `gorm:"column:saldo_previsto;type:decimal(15,2);not null" json:"forecast_balance"`
	CreatedAt        time.Time       `gorm:"column:criado_em;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:atualizado_em;autoUpdateTime" json:"updated_at"`
}

func (ForecastSummary) TableName() string { return "fluxo_caixa_previsto" }

// CashFlowSummaryFilter narrows a summary query. Nil fields are ignored; dates are inclusive.
type CashFlowSummaryFilter struct {
	FromDate       *time.Time
	ToDate         *time.Time
	ChartAccountId *int
	BankAccountId  *int
}

func (f *CashFlowSummaryFilter) isEmpty() bool {
	return f == nil || (f.FromDate == nil && f.ToDate == nil && f.ChartAccountId == nil && f.BankAccountId == nil)
}

func (f *CashFlowSummaryFilter) scope(db *gorm.DB) *gorm.DB {
	if f == nil {
		return db
	}
	if f.FromDate != nil {
		db = db.Where("data >= ?", utils.DateOnly(*f.FromDate))
	}
	if f.ToDate != nil {
		db = db.Where("data <= ?", utils.DateOnly(*f.ToDate))
	}
	if f.ChartAccountId != nil {
		db = db.Where("fluxo_conta_id = ?", *f.ChartAccountId)
	}
	if f.BankAccountId != nil {
		db = db.Where("conta_banco_id = ?", *f.BankAccountId)
	}
	return db
}

// GetRealizedSummaries lists the context company's realized rows by date.
// Unfiltered results are served from the company's redis list cache.
func GetRealizedSummaries(ctx context.Context, filter *CashFlowSummaryFilter) ([]*RealizedSummary, error) {
	return getCashFlowSummaries[RealizedSummary](ctx, filter)
}

func GetForecastSummaries(ctx context.Context, filter *CashFlowSummaryFilter) ([]*ForecastSummary, error) {
	return getCashFlowSummaries[ForecastSummary](ctx, filter)
}

const cashFlowSummaryCacheScope = "CashFlowSummary"

var errDatabaseNotConnected = errors.New("database not connected")

func getCashFlowSummaries[T RealizedSummary | ForecastSummary](ctx context.Context, filter *CashFlowSummaryFilter) ([]*T, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, utils.ErrorCompanyRequired
	}
	logger := config.GetLogger()

	// The version is read before the query so a consolidation committing mid-read
	// leaves this result under a retired key.
	cacheable := filter.isEmpty()
	var version int64
	if cacheable {
		var err error
		if version, err = utils.GetCacheVersion(cashFlowSummaryCacheScope, companyId); err != nil {
			config.LogError(logger, "models", "getCashFlowSummaries", "read cache version", companyId, err)
			cacheable = false
		}
	}
	if cacheable {
		cached, err := utils.RetrieveRedisList[T](companyId, version)
		if err != nil {
			config.LogError(logger, "models", "getCashFlowSummaries", "read cache", companyId, err)
		} else if cached != nil {
			return cached, nil
		}
	}

	db := config.GetDB()
	if db == nil {
		return nil, errDatabaseNotConnected
	}
	results := make([]*T, 0)
	query := filter.scope(db.WithContext(ctx).Where("empresa_id = ?", companyId))
	if err := query.Order("data").Order("id").Find(&results).Error; err != nil {
		return nil, err
	}

	if cacheable {
		if err := utils.StoreRedisList[T](results, companyId, version, config.CashFlowSummaryCacheTTL()); err != nil {
			config.LogError(logger, "models", "getCashFlowSummaries", "write cache", companyId, err)
		}
	}
	return results, nil
}

// InvalidateCashFlowSummaryCache retires every cached summary list of the company.
func InvalidateCashFlowSummaryCache(companyId int) error {
	_, err := utils.BumpCacheVersion(cashFlowSummaryCacheScope, companyId)
	return err
}
