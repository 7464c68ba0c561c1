package models

import (
	"database/sql/driver"

	"github.com/mmdatafocus/fluxo_backend/utils"
	"github.com/shopspring/decimal"
)

// LenientDecimal is a decimal column that never fails to scan: NULL and unparseable values
// read as zero. Input tables written by other tools use it so one bad amount cannot abort
// a whole consolidation run.
type LenientDecimal struct {
	decimal.Decimal
}

func NewLenientDecimal(d decimal.Decimal) LenientDecimal {
	return LenientDecimal{Decimal: d}
}

func (d *LenientDecimal) Scan(value interface{}) error {
	d.Decimal = utils.ParseDecimalOrZero(value)
	return nil
}

func (d LenientDecimal) Value() (driver.Value, error) {
	return d.Decimal.Value()
}
