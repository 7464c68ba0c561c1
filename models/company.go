package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/fluxo_backend/config"
	"github.com/mmdatafocus/fluxo_backend/utils"
)

type Company struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"column:nome;size:150;not null;uniqueIndex" json:"name"`
	Cnpj      *string   `gorm:"column:cnpj;size:18;uniqueIndex" json:"cnpj,omitempty"`
	CreatedAt time.Time `gorm:"column:criado_em;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:atualizado_em;autoUpdateTime" json:"updated_at"`
}

func (Company) TableName() string { return "empresas" }

// ListCompanyIds returns every company id, ascending.
func ListCompanyIds(ctx context.Context) ([]int, error) {
	db := config.GetDB()
	var ids []int
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	if err := db.WithContext(ctx).Model(&Company{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// PartyEntity is a client, supplier, employee or vendor a ledger entry refers to.
type PartyEntity struct {
	ID        int             `gorm:"primaryKey" json:"id"`
	CompanyId int             `gorm:"column:empresa_id;index;not null" json:"company_id"`
	Kind      PartyEntityKind `gorm:"column:tipo;size:1;not null" json:"kind"`
	TaxId     string          `gorm:"column:cnpj_cpf;size:14;index;not null" json:"tax_id"`
	Name      string          `gorm:"column:nome;size:150;index;not null" json:"name"`
	TradeName string          `gorm:"column:nome_fantasia;size:150" json:"trade_name"`
	Phone     string          `gorm:"column:telefone;size:20" json:"phone"`
	Email     string          `gorm:"column:email;size:120" json:"email"`
	IsActive  *bool           `gorm:"column:ativo;not null;default:true" json:"is_active"`
	CreatedAt time.Time       `gorm:"column:criado_em;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:atualizado_em;autoUpdateTime" json:"updated_at"`
}

func (PartyEntity) TableName() string { return "entidades" }

func (e PartyEntity) KindDescription() string {
	return e.Kind.Description()
}
