package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LeadStatus is the lifecycle state of a lead. The literal values are the
// ones persisted by the legacy importer, so they stay in Portuguese.
type LeadStatus string

const (
	LeadStatusPending    LeadStatus = "Pendente"
	LeadStatusInProgress LeadStatus = "Em_Atendimento"
	LeadStatusDone       LeadStatus = "Concluido"
)

// Outcome labels stored in status_final when a lead is finalized.
const (
	OutcomeContacted        = "✅ Contatado"
	OutcomeSaleClosed       = "💰 Venda Fechada"
	OutcomeNotInterested    = "❌ Sem Interesse"
	OutcomeNoWhatsApp       = "📵 Sem WhatsApp"
	OutcomeInquiryCompleted = "Consulta Realizada"
)

// InquiryResult categories recorded by the bank inquiry flow.
const (
	InquiryHasBalance    = "Possui Saldo"
	InquiryNotAuthorized = "Nao Autorizado"
	InquiryNoBalance     = "Sem Saldo"
	InquiryNotEligible   = "Nao Elegivel"
)

// Note is a single append-only observation on a lead.
type Note struct {
	Text   string    `bson:"nota" json:"nota"`
	Author string    `bson:"vendedor_nome" json:"vendedor_nome"`
	At     time.Time `bson:"data" json:"data"`
}

// Lead is a prospective customer routed through the sales workflow.
// Contact attributes are immutable after import; everything else is driven
// by the lifecycle state machine.
type Lead struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name           string              `bson:"nome_cliente" json:"nome_cliente"`
	TaxID          string              `bson:"cpf" json:"cpf"`
	Phone          string              `bson:"telefone" json:"telefone"`
	Status         LeadStatus          `bson:"status" json:"status"`
	AssignedTo     *primitive.ObjectID `bson:"vendedor_atribuido,omitempty" json:"vendedor_atribuido,omitempty"`
	AssignedAt     *time.Time          `bson:"data_atribuicao,omitempty" json:"data_atribuicao,omitempty"`
	FinalStatus    string              `bson:"status_final,omitempty" json:"status_final,omitempty"`
	FinalizedAt    *time.Time          `bson:"data_finalizacao,omitempty" json:"data_finalizacao,omitempty"`
	InquiryBank    string              `bson:"banco_consulta,omitempty" json:"banco_consulta,omitempty"`
	InquiryResult  string              `bson:"resultado_consulta,omitempty" json:"resultado_consulta,omitempty"`
	InquiryBalance *float64            `bson:"saldo_consulta,omitempty" json:"saldo_consulta,omitempty"`
	Notes          []Note              `bson:"observacoes,omitempty" json:"observacoes,omitempty"`
	BatchName      string              `bson:"nome_base,omitempty" json:"nome_base,omitempty"`
}

// FirstName returns the first word of the lead's name, for template
// personalization.
func (l *Lead) FirstName() string {
	fields := strings.Fields(l.Name)
	if len(fields) == 0 {
		return "Cliente"
	}
	return fields[0]
}

// AssignedToAgent reports whether the lead is currently assigned to the
// given agent.
func (l *Lead) AssignedToAgent(agentID primitive.ObjectID) bool {
	return l.AssignedTo != nil && *l.AssignedTo == agentID
}
