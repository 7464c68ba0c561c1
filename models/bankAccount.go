package models

import (
	"time"
)

type BankAccount struct {
	ID             int            `gorm:"primaryKey" json:"id"`
	CompanyId      int            `gorm:"column:empresa_id;index;not null" json:"company_id"`
	Name           string         `gorm:"column:nome;size:150;index;not null" json:"name"`
	Bank           string         `gorm:"column:banco;size:50;not null" json:"bank"`
	Branch         string         `gorm:"column:agencia;size:10;not null" json:"branch"`
	Number         string         `gorm:"column:numero_conta;size:20;not null" json:"number"`
	CheckDigit     string         `gorm:"column:dv;size:2" json:"check_digit"`
	Kind           string         `gorm:"column:tipo;size:20" json:"kind"`
	ChartAccountId *int           `gorm:"column:fluxo_conta_id" json:"chart_account_id,omitempty"`
	OpeningBalance LenientDecimal `gorm:"column:saldo_inicial;type:decimal(15,2);default:0" json:"opening_balance"`
	IsActive       *bool          `gorm:"column:ativo;not null;default:true" json:"is_active"`
	CreatedAt      time.Time      `gorm:"column:criado_em;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:atualizado_em;autoUpdateTime" json:"updated_at"`
}

func (BankAccount) TableName() string { return "contas_banco" }
