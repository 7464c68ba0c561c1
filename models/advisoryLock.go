package models

import (
	"fmt"

	"gorm.io/gorm"
)

const cashFlowLockTimeoutSeconds = 30

func cashFlowLockName(companyId int) string {
	return fmt.Sprintf("cashflow:%d", companyId)
}

// AcquireCompanyCashFlowLock serializes consolidation per company across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so tx must be the transaction that replaces the summaries.
func AcquireCompanyCashFlowLock(tx *gorm.DB, companyId int) error {
	var ok *int
	if err := tx.Raw("SELECT GET_LOCK(?, ?)", cashFlowLockName(companyId), cashFlowLockTimeoutSeconds).Scan(&ok).Error; err != nil {
		return err
	}
	if ok == nil || *ok != 1 {
		return fmt.Errorf("could not acquire cash flow lock for company_id=%d", companyId)
	}
	return nil
}

func ReleaseCompanyCashFlowLock(tx *gorm.DB, companyId int) {
	var released *int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", cashFlowLockName(companyId)).Scan(&released).Error
}
