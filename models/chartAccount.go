package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/fluxo_backend/config"
	"github.com/mmdatafocus/fluxo_backend/utils"
	"gorm.io/gorm"
)

// ChartAccount classifies ledger entries for the cash-flow statement and gives them a direction.
type ChartAccount struct {
	ID             int                   `gorm:"primaryKey" json:"id"`
	CompanyId      int                   `gorm:"column:empresa_id;not null;uniqueIndex:idx_chart_account_company_code,priority:1" json:"company_id"`
	Code           string                `gorm:"column:codigo;size:20;not null;uniqueIndex:idx_chart_account_company_code,priority:2" json:"code"`
	Description    string                `gorm:"column:descricao;size:200;not null" json:"description"`
	Direction      ChartAccountDirection `gorm:"column:tipo;size:1;not null" json:"direction"`
	Mask           *string               `gorm:"column:mascara;size:50" json:"mask,omitempty"`
	SyntheticLevel *int                  `gorm:"column:nivel_sintetico" json:"synthetic_level,omitempty"`
	AnalyticLevel  *int                  `gorm:"column:nivel_analitico" json:"analytic_level,omitempty"`
	IsActive       *bool                 `gorm:"column:ativo;not null;default:true" json:"is_active"`
	CreatedAt      time.Time             `gorm:"column:criado_em;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time             `gorm:"column:atualizado_em;autoUpdateTime" json:"updated_at"`
}

func (ChartAccount) TableName() string { return "fluxo_contas_modelo" }

type DefaultChartAccount struct {
	Code           string
	Description    string
	Direction      ChartAccountDirection
	SyntheticLevel int
	AnalyticLevel  *int
}

var analytic = func() *int { v := 1; return &v }()

// DefaultChartOfAccounts is the standard cash-flow plan every new company starts with.
var DefaultChartOfAccounts = []DefaultChartAccount{
	{"1", "Entradas de Caixa", ChartAccountDirectionReceivable, 1, nil},
	{"1.1", "Receitas Operacionais", ChartAccountDirectionReceivable, 2, nil},
	{"1.1.1", "Vendas à vista", ChartAccountDirectionReceivable, 3, analytic},
	{"1.1.2", "Vendas cartão crédito", ChartAccountDirectionReceivable, 3, analytic},
	{"1.1.3", "Vendas cartão débito", ChartAccountDirectionReceivable, 3, analytic},
	{"1.1.4", "Recebimento mensalidades/serviços", ChartAccountDirectionReceivable, 3, analytic},
	{"1.2", "Receitas Financeiras", ChartAccountDirectionReceivable, 2, nil},
	{"1.2.1", "Juros recebidos", ChartAccountDirectionReceivable, 3, analytic},
	{"1.2.2", "Descontos obtidos", ChartAccountDirectionReceivable, 3, analytic},
	{"1.3", "Outras Entradas", ChartAccountDirectionReceivable, 2, nil},
	{"1.3.1", "Empréstimos recebidos", ChartAccountDirectionReceivable, 3, analytic},
	{"1.3.2", "Aporte de sócios", ChartAccountDirectionReceivable, 3, analytic},
	{"1.3.3", "Reembolsos diversos", ChartAccountDirectionReceivable, 3, analytic},
	{"2", "Saídas de Caixa", ChartAccountDirectionPayable, 1, nil},
	{"2.1", "Custos Operacionais", ChartAccountDirectionPayable, 2, nil},
	{"2.1.1", "Compra de mercadorias", ChartAccountDirectionPayable, 3, analytic},
	{"2.1.2", "Matéria-prima/insumos", ChartAccountDirectionPayable, 3, analytic},
	{"2.1.3", "Fretes sobre compras", ChartAccountDirectionPayable, 3, analytic},
	{"2.2", "Despesas Fixas", ChartAccountDirectionPayable, 2, nil},
	{"2.2.1", "Aluguel", ChartAccountDirectionPayable, 3, analytic},
	{"2.2.2", "Energia elétrica", ChartAccountDirectionPayable, 3, analytic},
	{"2.2.3", "Água", ChartAccountDirectionPayable, 3, analytic},
	{"2.2.4", "Internet e telefone", ChartAccountDirectionPayable, 3, analytic},
	{"2.3", "Despesas com Pessoal", ChartAccountDirectionPayable, 2, nil},
	{"2.3.1", "Salários", ChartAccountDirectionPayable, 3, analytic},
	{"2.3.2", "Encargos (INSS, FGTS)", ChartAccountDirectionPayable, 3, analytic},
	{"2.3.3", "Pró-labore", ChartAccountDirectionPayable, 3, analytic},
	{"2.4", "Despesas Variáveis", ChartAccountDirectionPayable, 2, nil},
	{"2.4.1", "Comissões sobre vendas", ChartAccountDirectionPayable, 3, analytic},
	{"2.4.2", "Taxas de cartão/maquininha", ChartAccountDirectionPayable, 3, analytic},
	{"2.4.3", "Impostos sobre vendas", ChartAccountDirectionPayable, 3, analytic},
	{"2.5", "Despesas Financeiras", ChartAccountDirectionPayable, 2, nil},
	{"2.5.1", "Juros e multas pagas", ChartAccountDirectionPayable, 3, analytic},
	{"2.5.2", "Tarifas bancárias", ChartAccountDirectionPayable, 3, analytic},
	{"2.6", "Outras Saídas", ChartAccountDirectionPayable, 2, nil},
	{"2.6.1", "Distribuição de lucros", ChartAccountDirectionPayable, 3, analytic},
	{"2.6.2", "Adiantamentos a sócios", ChartAccountDirectionPayable, 3, analytic},
}

// missingDefaultChartAccounts returns the default plan rows whose code is not in existing.
func missingDefaultChartAccounts(companyId int, existing map[string]bool) []*ChartAccount {
	accounts := make([]*ChartAccount, 0, len(DefaultChartOfAccounts))
	for _, def := range DefaultChartOfAccounts {
		if existing[def.Code] {
			continue
		}
		level := def.SyntheticLevel
		var analyticLevel *int
		if def.AnalyticLevel != nil {
			v := *def.AnalyticLevel
			analyticLevel = &v
		}
		accounts = append(accounts, &ChartAccount{
			CompanyId:      companyId,
			Code:           def.Code,
			Description:    def.Description,
			Direction:      def.Direction,
			SyntheticLevel: &level,
			AnalyticLevel:  analyticLevel,
			IsActive:       utils.NewTrue(),
		})
	}
	return accounts
}

// SeedDefaultChartAccounts inserts the default plan for a company, skipping codes it already has.
// Returns the number of accounts created.
func SeedDefaultChartAccounts(ctx context.Context, companyId int) (int, error) {
	if companyId <= 0 {
		return 0, utils.ErrorCompanyRequired
	}
	db := config.GetDB()
	var created int
	var err error
	// a concurrent seeder may win the unique (empresa_id, codigo) index; re-read and retry once
	for attempt := 0; attempt < 2; attempt++ {
		created, err = seedMissingChartAccounts(db.WithContext(ctx), companyId)
		if !isDuplicateKeyErr(err) {
			break
		}
	}
	if err != nil {
		return 0, err
	}
	return created, nil
}

func seedMissingChartAccounts(db *gorm.DB, companyId int) (int, error) {
	created := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		var codes []string
		if err := tx.Model(&ChartAccount{}).Where("empresa_id = ?", companyId).Pluck("codigo", &codes).Error; err != nil {
			return err
		}
		existing := make(map[string]bool, len(codes))
		for _, code := range codes {
			existing[code] = true
		}
		accounts := missingDefaultChartAccounts(companyId, existing)
		if len(accounts) == 0 {
			return nil
		}
		if err := tx.Create(&accounts).Error; err != nil {
			return err
		}
		created = len(accounts)
		return nil
	})
	return created, err
}

func GetChartAccounts(ctx context.Context) ([]*ChartAccount, error) {
	companyId, ok := utils.GetCompanyIdFromContext(ctx)
	if !ok || companyId <= 0 {
		return nil, utils.ErrorCompanyRequired
	}
	return utils.FetchAllModels[ChartAccount](ctx, companyId)
}
