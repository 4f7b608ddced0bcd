package bot

import (
	"fmt"
	"strings"

	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/report"
	"github.com/jordanlanch/salesbot/pkg/templates"
)

// Button rows are rendered in a fixed order even though the decode maps
// are unordered.
var bankOrder = []string{"banco_caixa", "banco_bb", "banco_bradesco", "banco_itau", "banco_santander", "banco_outro"}

var outcomeOrder = []string{"status_contatado", "status_venda_fechada", "status_sem_interesse", "status_sem_whatsapp"}

var windowOrder = []report.Window{
	report.WindowToday, report.WindowYesterday,
	report.WindowCurrentWeek, report.WindowPreviousWeek,
	report.WindowCurrentMonth, report.WindowPreviousMonth,
}

func leadCard(lead *models.Lead, agent *models.Agent, tplBody string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 Cliente: %s\n", lead.Name)
	if lead.TaxID != "" {
		fmt.Fprintf(&b, "🪪 CPF: %s\n", lead.TaxID)
	}
	fmt.Fprintf(&b, "📞 Telefone: %s\n", lead.Phone)
	if lead.BatchName != "" {
		fmt.Fprintf(&b, "📂 Base: %s\n", lead.BatchName)
	}
	if len(lead.Notes) > 0 {
		fmt.Fprintf(&b, "📝 Observações: %d\n", len(lead.Notes))
	}
	if tplBody != "" {
		fmt.Fprintf(&b, "\n💬 Mensagem sugerida:\n%s\n", templates.Render(tplBody, lead, agent))
	}
	b.WriteString("\nRegistre o resultado do contato:")

	keyboard := [][]Button{}
	for _, token := range outcomeOrder {
		keyboard = append(keyboard, []Button{{Label: outcomeTokens[token], Data: token}})
	}
	keyboard = append(keyboard, []Button{
		{Label: "🏦 Consultar Saldo", Data: "start_consulta_" + lead.ID.Hex()},
		{Label: "📝 Adicionar Nota", Data: "add_note_" + lead.ID.Hex()},
	})
	if tplBody != "" {
		if link := templates.WhatsAppLink(tplBody, lead, agent); link != "" {
			keyboard = append(keyboard, []Button{{Label: "📲 Abrir WhatsApp", URL: link}})
		}
	}
	return Message{Text: b.String(), Keyboard: keyboard}
}

func leadDetails(lead *models.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 %s\n📞 %s\n", lead.Name, lead.Phone)
	fmt.Fprintf(&b, "Status: %s\n", lead.Status)
	if lead.FinalStatus != "" {
		fmt.Fprintf(&b, "Resultado: %s\n", lead.FinalStatus)
	}
	if lead.FinalizedAt != nil {
		fmt.Fprintf(&b, "Finalizado em: %s\n", lead.FinalizedAt.Format("02/01/2006 15:04"))
	}
	if lead.InquiryBank != "" {
		fmt.Fprintf(&b, "Banco: %s — %s\n", lead.InquiryBank, lead.InquiryResult)
	}
	if lead.InquiryBalance != nil {
		fmt.Fprintf(&b, "Saldo: %s\n", report.FormatCurrency(*lead.InquiryBalance))
	}
	return b.String()
}

func leadHistory(lead *models.Lead) string {
	if len(lead.Notes) == 0 {
		return "Sem observações para este cliente."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📝 Histórico de %s:\n\n", lead.FirstName())
	for _, n := range lead.Notes {
		fmt.Fprintf(&b, "• [%s] %s: %s\n", n.At.Format("02/01 15:04"), n.Author, n.Text)
	}
	return b.String()
}

func bankKeyboard() [][]Button {
	var rows [][]Button
	for _, token := range bankOrder {
		rows = append(rows, []Button{{Label: bankTokens[token], Data: token}})
	}
	return rows
}

func resultKeyboard() [][]Button {
	return [][]Button{
		{{Label: models.InquiryHasBalance, Data: "resultado_possui_saldo"}},
		{{Label: models.InquiryNotAuthorized, Data: "resultado_nao_autorizado"}},
		{{Label: models.InquiryNoBalance, Data: "resultado_sem_saldo"}},
		{{Label: models.InquiryNotEligible, Data: "resultado_nao_elegivel"}},
	}
}

func filterKeyboard() [][]Button {
	return [][]Button{
		{{Label: "💰 Com saldo registrado", Data: "filtro_com_saldo"}},
		{{Label: models.InquiryHasBalance, Data: "filtro_possui_saldo"}},
		{{Label: models.InquiryNotAuthorized, Data: "filtro_nao_autorizado"}},
		{{Label: models.InquiryNoBalance, Data: "filtro_sem_saldo"}},
	}
}

func windowKeyboard(prefix string) [][]Button {
	var rows [][]Button
	for i := 0; i < len(windowOrder); i += 2 {
		row := []Button{{Label: windowOrder[i].Label(), Data: prefix + string(windowOrder[i])}}
		if i+1 < len(windowOrder) {
			row = append(row, Button{Label: windowOrder[i+1].Label(), Data: prefix + string(windowOrder[i+1])})
		}
		rows = append(rows, row)
	}
	return rows
}

func adminMenu() Message {
	return Message{
		Text: "🛠 Painel administrativo:",
		Keyboard: [][]Button{
			{{Label: "➕ Criar vendedor", Data: "admin_criar_vendedor"}},
			{{Label: "👥 Editar vendedores", Data: "admin_editar_vendedores"}},
			{{Label: "💬 Modelos de mensagem", Data: "admin_templates"}},
			{{Label: "➕ Novo modelo", Data: "admin_novo_template"}},
			{{Label: "📂 Bases importadas", Data: "admin_bases"}},
			{{Label: "📦 Adotar clientes sem base", Data: "admin_adotar_base"}},
		},
	}
}

func supervisorMenu() Message {
	return Message{
		Text: "📊 Painel do supervisor:",
		Keyboard: [][]Button{
			{{Label: "👥 Minha equipe", Data: "sup_equipe"}},
			{{Label: "📈 Relatório da equipe", Data: "sup_relatorio"}},
			{{Label: "📉 Fila de clientes", Data: "sup_fila"}},
		},
	}
}

func renderReport(rep *report.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Relatório — %s\n", rep.Window.Label())
	fmt.Fprintf(&b, "Período: %s a %s\n\n",
		rep.Range.Start.Format("02/01/2006"), rep.Range.End.Format("02/01/2006"))
	if rep.Total == 0 {
		b.WriteString("Nenhum atendimento finalizado no período.\n")
	}
	for _, row := range rep.Rows {
		fmt.Fprintf(&b, "• %s: %d finalizados\n", row.AgentName, row.Total)
		for outcome, n := range row.Outcomes {
			fmt.Fprintf(&b, "   %s: %d\n", outcome, n)
		}
	}
	if rep.Total > 0 {
		fmt.Fprintf(&b, "\nTotal geral: %d\n", rep.Total)
		for outcome, n := range rep.Totals {
			fmt.Fprintf(&b, "  %s: %d\n", outcome, n)
		}
	}
	return b.String()
}

func renderSummary(agent *models.Agent, sum *report.AgentSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 %s — %s\n\n", agent.FirstName(), sum.Window.Label())
	if len(sum.Leads) == 0 {
		b.WriteString("Nenhum atendimento finalizado no período.")
		return b.String()
	}
	for _, l := range sum.Leads {
		fmt.Fprintf(&b, "• %s — %s\n", l.Name, l.FinalStatus)
	}
	fmt.Fprintf(&b, "\nTotal: %d\n", len(sum.Leads))
	for outcome, n := range sum.Outcomes {
		fmt.Fprintf(&b, "  %s: %d\n", outcome, n)
	}
	if sum.BalanceFound > 0 {
		fmt.Fprintf(&b, "Saldo localizado: %s\n", report.FormatCurrency(sum.BalanceFound))
	}
	return b.String()
}

func renderLeadList(title string, leads []models.Lead) Message {
	if len(leads) == 0 {
		return Message{Text: title + "\n\nNenhum cliente encontrado."}
	}
	var b strings.Builder
	b.WriteString(title + "\n\n")
	var keyboard [][]Button
	for i, l := range leads {
		line := fmt.Sprintf("%d. %s — %s", i+1, l.Name, l.Phone)
		if l.InquiryBalance != nil {
			line += " — " + report.FormatCurrency(*l.InquiryBalance)
		}
		b.WriteString(line + "\n")
		if i < 10 {
			keyboard = append(keyboard, []Button{{
				Label: l.Name,
				Data:  "view_client_" + l.ID.Hex(),
			}})
		}
	}
	return Message{Text: b.String(), Keyboard: keyboard}
}

func helpText(agent *models.Agent) string {
	var b strings.Builder
	b.WriteString("Comandos disponíveis:\n")
	b.WriteString("/proximo — receber um novo cliente\n")
	b.WriteString("/meucliente — rever o cliente em atendimento\n")
	b.WriteString("/hoje — seus atendimentos de hoje\n")
	b.WriteString("/buscar — localizar cliente por telefone\n")
	b.WriteString("/filtrar — filtrar consultas realizadas\n")
	b.WriteString("/cancel — cancelar a conversa atual\n")
	b.WriteString("/sair — encerrar a sessão\n")
	if agent != nil && agent.CanSupervise() {
		b.WriteString("/supervisor — painel da equipe\n")
		b.WriteString("/relatorios — relatórios gerais\n")
	}
	if agent != nil && agent.IsAdmin() {
		b.WriteString("/admin — painel administrativo\n")
	}
	return b.String()
}
