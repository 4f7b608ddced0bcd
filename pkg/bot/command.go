package bot

import (
	"fmt"
	"strings"

	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/report"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind discriminates the decoded command union.
type Kind string

const (
	KindUnknown Kind = "unknown"

	// Slash commands and free text.
	KindStart      Kind = "start"
	KindLogin      Kind = "login"
	KindLogout     Kind = "logout"
	KindNext       Kind = "proximo"
	KindMyLead     Kind = "meucliente"
	KindToday      Kind = "hoje"
	KindSearch     Kind = "buscar"
	KindFilter     Kind = "filtrar"
	KindReports    Kind = "relatorios"
	KindSupervisor Kind = "supervisor"
	KindAdmin      Kind = "admin"
	KindCancel     Kind = "cancel"
	KindHelp       Kind = "ajuda"
	KindText       Kind = "text"

	// Callback commands.
	KindOutcome          Kind = "outcome"
	KindStartInquiry     Kind = "start_inquiry"
	KindBank             Kind = "bank"
	KindResult           Kind = "result"
	KindAddNote          Kind = "add_note"
	KindReopen           Kind = "reopen"
	KindViewLead         Kind = "view_lead"
	KindHistory          Kind = "history"
	KindFilterResult     Kind = "filter_result"
	KindAdminAction      Kind = "admin_action"
	KindToggleBatch      Kind = "toggle_batch"
	KindToggleTemplate   Kind = "toggle_template"
	KindRemoveTemplate   Kind = "remove_template"
	KindSupAction        Kind = "sup_action"
	KindReportWindow     Kind = "report_window"
	KindGenerateReport   Kind = "generate_report"
	KindTeamReport       Kind = "team_report"
	KindAssignSupervisor Kind = "assign_supervisor"
	KindSetRole          Kind = "set_role"
	KindEditUser         Kind = "edit_user"
	KindNewSupervisor    Kind = "new_supervisor"
)

// Command is the tagged union decoded from a message or callback. Only the
// fields relevant to Kind are set; handlers never re-parse wire tokens.
type Command struct {
	Kind Kind

	Text        string // free text, or the argument after a slash command
	LeadID      primitive.ObjectID
	AgentID     primitive.ObjectID
	TemplateID  primitive.ObjectID
	BatchID     primitive.ObjectID
	Outcome     string
	Bank        string
	Result      string
	WithBalance bool
	Window      report.Window
	Role        models.Role
	Action      string
}

// Outcome callback tokens, kept from the original button wire format.
var outcomeTokens = map[string]string{
	"status_contatado":     models.OutcomeContacted,
	"status_venda_fechada": models.OutcomeSaleClosed,
	"status_sem_interesse": models.OutcomeNotInterested,
	"status_sem_whatsapp":  models.OutcomeNoWhatsApp,
}

// Bank callback tokens.
var bankTokens = map[string]string{
	"banco_caixa":     "Caixa",
	"banco_bb":        "Banco do Brasil",
	"banco_bradesco":  "Bradesco",
	"banco_itau":      "Itaú",
	"banco_santander": "Santander",
	"banco_outro":     "Outro",
}

// Inquiry result callback tokens.
var resultTokens = map[string]string{
	"resultado_possui_saldo":   models.InquiryHasBalance,
	"resultado_nao_autorizado": models.InquiryNotAuthorized,
	"resultado_sem_saldo":      models.InquiryNoBalance,
	"resultado_nao_elegivel":   models.InquiryNotEligible,
}

var filterTokens = map[string]string{
	"filtro_possui_saldo":   models.InquiryHasBalance,
	"filtro_nao_autorizado": models.InquiryNotAuthorized,
	"filtro_sem_saldo":      models.InquiryNoBalance,
}

// ParseMessage decodes a plain chat message. Slash commands map to their
// kinds; anything else is free text fed to the active conversation.
func ParseMessage(text string) Command {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: KindText, Text: trimmed}
	}

	name, arg, _ := strings.Cut(trimmed[1:], " ")
	// Commands in groups arrive as /cmd@botname.
	name, _, _ = strings.Cut(name, "@")

	kinds := map[string]Kind{
		"start":      KindStart,
		"login":      KindLogin,
		"logout":     KindLogout,
		"sair":       KindLogout,
		"proximo":    KindNext,
		"meucliente": KindMyLead,
		"hoje":       KindToday,
		"buscar":     KindSearch,
		"filtrar":    KindFilter,
		"relatorios": KindReports,
		"supervisor": KindSupervisor,
		"admin":      KindAdmin,
		"cancel":     KindCancel,
		"cancelar":   KindCancel,
		"ajuda":      KindHelp,
		"help":       KindHelp,
	}
	kind, ok := kinds[strings.ToLower(name)]
	if !ok {
		return Command{Kind: KindUnknown, Text: trimmed}
	}
	return Command{Kind: kind, Text: strings.TrimSpace(arg)}
}

// ParseCallback decodes an inline keyboard callback token.
func ParseCallback(data string) (Command, error) {
	data = strings.TrimSpace(data)

	if outcome, ok := outcomeTokens[data]; ok {
		return Command{Kind: KindOutcome, Outcome: outcome}, nil
	}
	if bank, ok := bankTokens[data]; ok {
		return Command{Kind: KindBank, Bank: bank}, nil
	}
	if result, ok := resultTokens[data]; ok {
		return Command{Kind: KindResult, Result: result}, nil
	}
	if result, ok := filterTokens[data]; ok {
		return Command{Kind: KindFilterResult, Result: result}, nil
	}
	if data == "filtro_com_saldo" {
		return Command{Kind: KindFilterResult, WithBalance: true}, nil
	}

	// Tokens carrying an object id suffix.
	for prefix, kind := range map[string]Kind{
		"start_consulta_":         KindStartInquiry,
		"add_note_":               KindAddNote,
		"reabrir_":                KindReopen,
		"view_client_":            KindViewLead,
		"show_history_":           KindHistory,
		"admin_toggle_base_":      KindToggleBatch,
		"admin_toggle_template_":  KindToggleTemplate,
		"admin_remover_template_": KindRemoveTemplate,
		"selecionar_periodo_sup_": KindTeamReport,
		"supervisor_":             KindAssignSupervisor,
		"edit_user_":              KindEditUser,
		"new_supervisor_":         KindNewSupervisor,
	} {
		if !strings.HasPrefix(data, prefix) {
			continue
		}
		raw := strings.TrimPrefix(data, prefix)
		if raw == "nenhum" && (kind == KindAssignSupervisor || kind == KindNewSupervisor) {
			return Command{Kind: kind}, nil
		}
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return Command{}, fmt.Errorf("invalid id in token %q: %w", data, err)
		}
		cmd := Command{Kind: kind}
		switch kind {
		case KindToggleBatch:
			cmd.BatchID = id
		case KindToggleTemplate, KindRemoveTemplate:
			cmd.TemplateID = id
		case KindAssignSupervisor, KindTeamReport, KindEditUser, KindNewSupervisor:
			cmd.AgentID = id
		default:
			cmd.LeadID = id
		}
		return cmd, nil
	}

	// role_<role>_<id>
	if raw, ok := strings.CutPrefix(data, "role_"); ok {
		idx := strings.LastIndex(raw, "_")
		if idx <= 0 {
			return Command{}, fmt.Errorf("malformed role token %q", data)
		}
		role := models.Role(raw[:idx])
		if !role.Valid() {
			return Command{}, fmt.Errorf("unknown role in token %q", data)
		}
		id, err := primitive.ObjectIDFromHex(raw[idx+1:])
		if err != nil {
			return Command{}, fmt.Errorf("invalid id in token %q: %w", data, err)
		}
		return Command{Kind: KindSetRole, Role: role, AgentID: id}, nil
	}

	if raw, ok := strings.CutPrefix(data, "gerar_relatorio_"); ok {
		w := report.Window(raw)
		if !w.Valid() {
			return Command{}, fmt.Errorf("unknown report window %q", raw)
		}
		return Command{Kind: KindGenerateReport, Window: w}, nil
	}
	if raw, ok := strings.CutPrefix(data, "relatorio_"); ok {
		w := report.Window(raw)
		if !w.Valid() {
			return Command{}, fmt.Errorf("unknown report window %q", raw)
		}
		return Command{Kind: KindReportWindow, Window: w}, nil
	}

	if raw, ok := strings.CutPrefix(data, "admin_"); ok {
		return Command{Kind: KindAdminAction, Action: raw}, nil
	}
	if raw, ok := strings.CutPrefix(data, "sup_"); ok {
		return Command{Kind: KindSupAction, Action: raw}, nil
	}

	return Command{}, fmt.Errorf("unknown callback token %q", data)
}
