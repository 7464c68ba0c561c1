package models

import "errors"

// ChartAccountDirection is the cash direction of a chart account (fluxo_contas_modelo.tipo).
// Only the two declared values are valid; anything else read from the table is reported by IsValid.
type ChartAccountDirection string

const (
	ChartAccountDirectionPayable    ChartAccountDirection = "P"
	ChartAccountDirectionReceivable ChartAccountDirection = "R"
)

func (d ChartAccountDirection) IsValid() bool {
	return d == ChartAccountDirectionPayable || d == ChartAccountDirectionReceivable
}

func (d ChartAccountDirection) Description() string {
	switch d {
	case ChartAccountDirectionPayable:
		return "Pagamento"
	case ChartAccountDirectionReceivable:
		return "Recebimento"
	default:
		return string(d)
	}
}

// LedgerStatus mirrors lancamentos.status.
type LedgerStatus string

const (
	LedgerStatusOpen    LedgerStatus = "aberto"
	LedgerStatusPaid    LedgerStatus = "pago"
	LedgerStatusOverdue LedgerStatus = "vencido"
)

// IsPaid reports whether the entry counts as realized. Every other status is forecast.
func (s LedgerStatus) IsPaid() bool {
	return s == LedgerStatusPaid
}

func (s LedgerStatus) IsValid() bool {
	switch s {
	case LedgerStatusOpen, LedgerStatusPaid, LedgerStatusOverdue:
		return true
	}
	return false
}

// PartyEntityKind mirrors entidades.tipo.
type PartyEntityKind string

const (
	PartyEntityKindClient   PartyEntityKind = "C"
	PartyEntityKindSupplier PartyEntityKind = "F"
	PartyEntityKindEmployee PartyEntityKind = "L"
	PartyEntityKindVendor   PartyEntityKind = "V"
)

func (k PartyEntityKind) Description() string {
	switch k {
	case PartyEntityKindClient:
		return "Cliente"
	case PartyEntityKindSupplier:
		return "Fornecedor"
	case PartyEntityKindEmployee:
		return "Colaborador"
	case PartyEntityKindVendor:
		return "Vendedor"
	default:
		return string(k)
	}
}

var ErrLedgerEntryInvalid = errors.New("invalid ledger entry")
