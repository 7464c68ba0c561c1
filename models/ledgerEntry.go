package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/fluxo_backend/config"
	"github.com/mmdatafocus/fluxo_backend/utils"
	"github.com/shopspring/decimal"
)

// LedgerEntry (lançamento) is one scheduled or completed payment or receipt.
type LedgerEntry struct {
	ID             int            `gorm:"primaryKey" json:"id"`
	CompanyId      int            `gorm:"column:empresa_id;index;not null" json:"company_id"`
	EventDate      time.Time      `gorm:"column:data_evento;type:date;index;not null" json:"event_date"`
	DueDate        time.Time      `gorm:"column:data_vencimento;type:date;index;not null" json:"due_date"`
	PaymentDate    *time.Time     `gorm:"column:data_pagamento;type:date;index" json:"payment_date,omitempty"`
	Status         LedgerStatus   `gorm:"column:status;size:20;not null;default:aberto" json:"status"`
	ChartAccountId int            `gorm:"column:fluxo_conta_id;not null" json:"chart_account_id"`
	BankAccountId  int            `gorm:"column:conta_banco_id;not null" json:"bank_account_id"`
	EntityId       int            `gorm:"column:entidade_id;not null" json:"entity_id"`
	NominalAmount  LenientDecimal `gorm:"column:valor_real;type:decimal(15,2);not null" json:"nominal_amount"`
	PaidAmount     LenientDecimal `gorm:"column:valor_pago;type:decimal(15,2);default:0" json:"paid_amount"`
	DocumentNumber string         `gorm:"column:numero_documento;size:50;index" json:"document_number"`
	Notes          string         `gorm:"column:observacoes;type:text" json:"notes"`
	CreatedAt      time.Time      `gorm:"column:criado_em;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:atualizado_em;autoUpdateTime" json:"updated_at"`
}

func (LedgerEntry) TableName() string { return "lancamentos" }

// CheckInvariants: paid amount is zero until paid; a paid entry carries a payment date and amount.
func (e *LedgerEntry) CheckInvariants() error {
	if !e.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrLedgerEntryInvalid, e.Status)
	}
	if e.Status.IsPaid() {
		if e.PaymentDate == nil {
			return fmt.Errorf("%w: paid entry without payment date", ErrLedgerEntryInvalid)
		}
		if !e.PaidAmount.IsPositive() {
			return fmt.Errorf("%w: paid entry without paid amount", ErrLedgerEntryInvalid)
		}
		return nil
	}
	if e.PaymentDate != nil {
		return fmt.Errorf("%w: %s entry with payment date", ErrLedgerEntryInvalid, e.Status)
	}
	if !e.PaidAmount.IsZero() {
		return fmt.Errorf("%w: %s entry with paid amount", ErrLedgerEntryInvalid, e.Status)
	}
	return nil
}

type NewLedgerEntry struct {
	EventDate      time.Time        `json:"event_date"`
	DueDate        time.Time        `json:"due_date"`
	PaymentDate    *time.Time       `json:"payment_date"`
	ChartAccountId int              `json:"chart_account_id" validate:"required,gt=0"`
	BankAccountId  int              `json:"bank_account_id" validate:"required,gt=0"`
	EntityId       int              `json:"entity_id" validate:"required,gt=0"`
	NominalAmount  decimal.Decimal  `json:"nominal_amount"`
	PaidAmount     *decimal.Decimal `json:"paid_amount"`
	DocumentNumber string           `json:"document_number" validate:"max=50"`
	Notes          string           `json:"notes"`
}

// checkShape validates the input without touching the database.
func (input *NewLedgerEntry) checkShape() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.EventDate.IsZero() {
		return errors.New("event date is required")
	}
	if input.DueDate.IsZero() {
		return errors.New("due date is required")
	}
	if !input.NominalAmount.IsPositive() {
		return errors.New("nominal amount must be positive")
	}
	if input.PaidAmount != nil {
		if input.PaymentDate == nil {
			return errors.New("paid amount requires a payment date")
		}
		if !input.PaidAmount.IsPositive() {
			return errors.New("paid amount must be positive")
		}
	}
	return nil
}

// validate input for both create & update. (id = 0 for create)
func (input *NewLedgerEntry) validate(ctx context.Context, companyId int, id int) error {
	if err := input.checkShape(); err != nil {
		return err
	}
	if id > 0 {
		if err := utils.ValidateResourceId[LedgerEntry](ctx, companyId, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateResourceId[ChartAccount](ctx, companyId, input.ChartAccountId); err != nil {
		return errors.New("chart account not found")
	}
	if err := utils.ValidateResourceId[BankAccount](ctx, companyId, input.BankAccountId); err != nil {
		return errors.New("bank account not found")
	}
	if err := utils.ValidateResourceId[PartyEntity](ctx, companyId, input.EntityId); err != nil {
		return errors.New("entity not found")
	}
	return nil
}

// apply copies the input onto entry and derives status: a payment date makes the entry paid,
// with the paid amount defaulting to the nominal amount.
func (input *NewLedgerEntry) apply(entry *LedgerEntry) {
	entry.EventDate = utils.DateOnly(input.EventDate)
	entry.DueDate = utils.DateOnly(input.DueDate)
	entry.ChartAccountId = input.ChartAccountId
	entry.BankAccountId = input.BankAccountId
	entry.EntityId = input.EntityId
	entry.NominalAmount = NewLenientDecimal(input.NominalAmount)
	entry.DocumentNumber = input.DocumentNumber
	entry.Notes = input.Notes
	if input.PaymentDate != nil {
		paid := utils.DateOnly(*input.PaymentDate)
		entry.PaymentDate = &paid
		entry.Status = LedgerStatusPaid
		entry.PaidAmount = NewLenientDecimal(utils.DereferencePtr(input.PaidAmount, input.NominalAmount))
		return
	}
	entry.PaymentDate = nil
	entry.PaidAmount = NewLenientDecimal(decimal.Zero)
	// overdue is kept on edit; it still counts as unpaid
	if entry.Status != LedgerStatusOverdue {
		entry.Status = LedgerStatusOpen
	}
}

func CreateLedgerEntry(ctx context.Context, input *NewLedgerEntry) (*LedgerEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, utils.ErrorCompanyRequired
	}
	if err := input.validate(ctx, companyId, 0); err != nil {
		return nil, err
	}

	entry := LedgerEntry{CompanyId: companyId}
	input.apply(&entry)
	if err := entry.CheckInvariants(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func UpdateLedgerEntry(ctx context.Context, id int, input *NewLedgerEntry) (*LedgerEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, utils.ErrorCompanyRequired
	}
	if err := input.validate(ctx, companyId, id); err != nil {
		return nil, err
	}
	entry, err := utils.FetchModel[LedgerEntry](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	input.apply(entry)
	if err := entry.CheckInvariants(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// MarkLedgerEntryPaid settles the full nominal amount on paymentDate (today when nil).
func MarkLedgerEntryPaid(ctx context.Context, id int, paymentDate *time.Time) (*LedgerEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, utils.ErrorCompanyRequired
	}
	entry, err := utils.FetchModel[LedgerEntry](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	paid := utils.DateOnly(utils.DereferencePtr(paymentDate, time.Now()))
	entry.PaymentDate = &paid
	entry.PaidAmount = entry.NominalAmount
	entry.Status = LedgerStatusPaid
	if err := entry.CheckInvariants(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(entry).Updates(map[string]interface{}{
		"PaymentDate": entry.PaymentDate,
		"PaidAmount":  entry.PaidAmount,
		"Status":      entry.Status,
	}).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// ReopenLedgerEntry undoes a payment.
func ReopenLedgerEntry(ctx context.Context, id int) (*LedgerEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, utils.ErrorCompanyRequired
	}
	entry, err := utils.FetchModel[LedgerEntry](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	entry.PaymentDate = nil
	entry.PaidAmount = NewLenientDecimal(decimal.Zero)
	entry.Status = LedgerStatusOpen

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(entry).Updates(map[string]interface{}{
		"PaymentDate": nil,
		"PaidAmount":  entry.PaidAmount,
		"Status":      entry.Status,
	}).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func DeleteLedgerEntry(ctx context.Context, id int) (*LedgerEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, utils.ErrorCompanyRequired
	}
	entry, err := utils.FetchModel[LedgerEntry](ctx, companyId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func GetLedgerEntry(ctx context.Context, id int) (*LedgerEntry, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, utils.ErrorCompanyRequired
	}
	return utils.FetchModel[LedgerEntry](ctx, companyId, id)
}
