package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/jordanlanch/salesbot/pkg/agents"
	"github.com/jordanlanch/salesbot/pkg/allocator"
	"github.com/jordanlanch/salesbot/pkg/export"
	"github.com/jordanlanch/salesbot/pkg/importer"
	"github.com/jordanlanch/salesbot/pkg/lifecycle"
	"github.com/jordanlanch/salesbot/pkg/logger"
	"github.com/jordanlanch/salesbot/pkg/metrics"
	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/phone"
	"github.com/jordanlanch/salesbot/pkg/report"
	"github.com/jordanlanch/salesbot/pkg/store"
	"github.com/jordanlanch/salesbot/pkg/templates"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	msgInternalError  = "⚠️ Ocorreu um erro interno. Tente novamente."
	msgNotLoggedIn    = "Você precisa entrar primeiro. Use /login."
	msgStartOver      = "Não encontrei uma conversa ativa. Comece de novo pelo menu."
	msgUnknownCommand = "Não entendi. Use /ajuda para ver os comandos."
	msgForbidden      = "Este comando não está disponível para o seu perfil."
	msgCanceled       = "Conversa cancelada."
	msgLoggedOut      = "Sessão encerrada. Até logo!"
)

// Deps bundles everything the router needs.
type Deps struct {
	Client    ChatClient
	Sessions  *Sessions
	Agents    *agents.Service
	Allocator *allocator.Service
	Lifecycle *lifecycle.Service
	Reports   *report.Service
	Templates *templates.Service
	Importer  *importer.Service
	Exporter  *export.Service
	Batches   store.BatchStore
	Metrics   *metrics.Metrics
	Log       logger.Logger
}

// Router dispatches decoded commands to the domain services and renders
// the replies. It holds no per-conversation state of its own; everything
// lives in Sessions.
type Router struct {
	deps Deps
	pick func(n int) int
}

// NewRouter creates the chat dispatcher.
func NewRouter(d Deps) *Router {
	return &Router{deps: d, pick: rand.Intn}
}

// HandleUpdate processes one incoming update. Domain errors become user
// messages; nothing propagates to the transport loop.
func (r *Router) HandleUpdate(ctx context.Context, upd Update) {
	start := time.Now()
	defer func() {
		r.deps.Metrics.UpdateDuration.Observe(time.Since(start).Seconds())
		if rec := recover(); rec != nil {
			sentry.CurrentHub().Recover(rec)
			r.deps.Log.Error("panic handling update", "chat_id", upd.ChatID, "panic", rec)
			r.send(ctx, upd, Message{Text: msgInternalError})
		}
	}()

	if upd.IsCallback() {
		cmd, err := ParseCallback(upd.CallbackData)
		// Stops the client-side spinner regardless of the outcome.
		_ = r.deps.Client.AnswerCallback(ctx, upd.CallbackID, "")
		if err != nil {
			r.deps.Log.Warn("unknown callback", "data", upd.CallbackData, "err", err)
			r.count(KindUnknown, "error")
			r.send(ctx, upd, Message{Text: msgUnknownCommand})
			return
		}
		r.count(cmd.Kind, r.status(r.handleCallback(ctx, upd, cmd)))
		return
	}

	cmd := ParseMessage(upd.Text)
	r.count(cmd.Kind, r.status(r.handleMessage(ctx, upd, cmd)))
}

func (r *Router) status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (r *Router) count(kind Kind, status string) {
	r.deps.Metrics.CommandsProcessed.WithLabelValues(string(kind), status).Inc()
}

func (r *Router) send(ctx context.Context, upd Update, msg Message) {
	msg.ChatID = upd.ChatID
	if err := r.deps.Client.Send(ctx, msg); err != nil {
		r.deps.Log.Error("failed to send message", "chat_id", upd.ChatID, "err", err)
	}
}

func (r *Router) sendText(ctx context.Context, upd Update, text string) {
	r.send(ctx, upd, Message{Text: text})
}

// agent resolves and loads the logged-in agent bound to the chat.
func (r *Router) agent(ctx context.Context, upd Update) (*models.Agent, error) {
	id, err := r.deps.Sessions.AgentID(ctx, upd.ChatID, upd.UserID)
	if err != nil {
		return nil, err
	}
	agent, err := r.deps.Agents.ByID(ctx, id)
	if err != nil {
		// The account may have been removed since login.
		_ = r.deps.Sessions.Logout(ctx, upd.ChatID, upd.UserID)
		return nil, ErrNotAuthenticated
	}
	return agent, nil
}

func (r *Router) requireAgent(ctx context.Context, upd Update) (*models.Agent, bool) {
	agent, err := r.agent(ctx, upd)
	if err != nil {
		r.sendText(ctx, upd, msgNotLoggedIn)
		return nil, false
	}
	return agent, true
}

func (r *Router) handleMessage(ctx context.Context, upd Update, cmd Command) error {
	switch cmd.Kind {
	case KindStart:
		if agent, err := r.agent(ctx, upd); err == nil {
			r.sendText(ctx, upd, fmt.Sprintf("Olá de novo, %s!\n\n%s", agent.FirstName(), helpText(agent)))
			return nil
		}
		r.sendText(ctx, upd, "Bem-vindo! Use /login para entrar no sistema.")
		return nil

	case KindLogin:
		if err := r.deps.Sessions.Put(ctx, upd.ChatID, upd.UserID, &State{Step: StepLoginUser}); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.sendText(ctx, upd, "Informe o seu usuário:")
		return nil

	case KindLogout:
		if err := r.deps.Sessions.Logout(ctx, upd.ChatID, upd.UserID); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.sendText(ctx, upd, msgLoggedOut)
		return nil

	case KindCancel:
		if err := r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.sendText(ctx, upd, msgCanceled)
		return nil

	case KindHelp:
		agent, _ := r.agent(ctx, upd)
		r.sendText(ctx, upd, helpText(agent))
		return nil

	case KindNext:
		return r.handleNext(ctx, upd)

	case KindMyLead:
		return r.handleMyLead(ctx, upd)

	case KindToday:
		return r.handleToday(ctx, upd)

	case KindSearch:
		if _, ok := r.requireAgent(ctx, upd); !ok {
			return nil
		}
		if err := r.deps.Sessions.Put(ctx, upd.ChatID, upd.UserID, &State{Step: StepSearchPhone}); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.sendText(ctx, upd, "Informe o telefone do cliente (apenas números):")
		return nil

	case KindFilter:
		if _, ok := r.requireAgent(ctx, upd); !ok {
			return nil
		}
		r.send(ctx, upd, Message{Text: "Filtrar consultas realizadas:", Keyboard: filterKeyboard()})
		return nil

	case KindReports:
		agent, ok := r.requireAgent(ctx, upd)
		if !ok {
			return nil
		}
		if !agent.CanSupervise() {
			r.sendText(ctx, upd, msgForbidden)
			return nil
		}
		r.send(ctx, upd, Message{Text: "Escolha o período do relatório:", Keyboard: windowKeyboard("relatorio_")})
		return nil

	case KindSupervisor:
		agent, ok := r.requireAgent(ctx, upd)
		if !ok {
			return nil
		}
		if !agent.CanSupervise() {
			r.sendText(ctx, upd, msgForbidden)
			return nil
		}
		r.send(ctx, upd, supervisorMenu())
		return nil

	case KindAdmin:
		agent, ok := r.requireAgent(ctx, upd)
		if !ok {
			return nil
		}
		if !agent.IsAdmin() {
			r.sendText(ctx, upd, msgForbidden)
			return nil
		}
		r.send(ctx, upd, adminMenu())
		return nil

	case KindText:
		return r.handleConversation(ctx, upd, cmd.Text)

	default:
		r.sendText(ctx, upd, msgUnknownCommand)
		return nil
	}
}

func (r *Router) handleNext(ctx context.Context, upd Update) error {
	agent, ok := r.requireAgent(ctx, upd)
	if !ok {
		return nil
	}
	assignment, err := r.deps.Allocator.Next(ctx, agent.ID)
	if err != nil {
		switch {
		case errors.Is(err, allocator.ErrQueueEmpty):
			r.deps.Metrics.QueueEmpty.Inc()
			r.sendText(ctx, upd, "🎉 Não há clientes pendentes no momento. Bom trabalho!")
			return nil
		case errors.Is(err, allocator.ErrContention):
			r.deps.Metrics.AllocationConflicts.Inc()
			r.sendText(ctx, upd, "Muita disputa pelos clientes agora. Tente /proximo de novo.")
			return nil
		}
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	r.deps.Metrics.Allocations.Inc()

	msg := r.leadCardFor(ctx, assignment.Lead, agent)
	if assignment.Resumed {
		msg.Text = "Você já está em atendimento:\n\n" + msg.Text
	}
	r.send(ctx, upd, msg)
	return nil
}

// leadCardFor renders the lead card with a randomly chosen active template.
func (r *Router) leadCardFor(ctx context.Context, lead *models.Lead, agent *models.Agent) Message {
	var body string
	if active, err := r.deps.Templates.Active(ctx); err == nil && len(active) > 0 {
		body = active[r.pick(len(active))].Body
	}
	return leadCard(lead, agent, body)
}

func (r *Router) handleMyLead(ctx context.Context, upd Update) error {
	agent, ok := r.requireAgent(ctx, upd)
	if !ok {
		return nil
	}
	lead, err := r.deps.Lifecycle.Current(ctx, agent.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.sendText(ctx, upd, "Você não tem cliente em atendimento. Use /proximo.")
			return nil
		}
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	r.send(ctx, upd, r.leadCardFor(ctx, lead, agent))
	return nil
}

func (r *Router) handleToday(ctx context.Context, upd Update) error {
	agent, ok := r.requireAgent(ctx, upd)
	if !ok {
		return nil
	}
	sum, err := r.deps.Reports.Summary(ctx, agent.ID, report.WindowToday)
	if err != nil {
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	r.sendText(ctx, upd, renderSummary(agent, sum))
	return nil
}

// handleConversation advances the active multi-step flow with free text.
func (r *Router) handleConversation(ctx context.Context, upd Update, text string) error {
	state, err := r.deps.Sessions.Get(ctx, upd.ChatID, upd.UserID)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			r.sendText(ctx, upd, msgUnknownCommand)
			return nil
		}
		r.sendText(ctx, upd, msgInternalError)
		return err
	}

	switch state.Step {
	case StepLoginUser:
		state.Login = text
		state.Step = StepLoginPassword
		if err := r.deps.Sessions.Put(ctx, upd.ChatID, upd.UserID, state); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.sendText(ctx, upd, "Agora informe a sua senha:")
		return nil

	case StepLoginPassword:
		return r.finishLogin(ctx, upd, state.Login, text)

	case StepSearchPhone:
		return r.finishSearch(ctx, upd, text)

	case StepNoteText:
		return r.finishNote(ctx, upd, state, text)

	case StepInquiryBalance:
		return r.finishInquiry(ctx, upd, state, text)

	case StepAgentName:
		if len(strings.TrimSpace(text)) < 2 {
			r.sendText(ctx, upd, "Nome muito curto. Informe o nome completo do vendedor:")
			return nil
		}
		state.Name = strings.TrimSpace(text)
		state.Step = StepAgentLogin
		if err := r.deps.Sessions.Put(ctx, upd.ChatID, upd.UserID, state); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.sendText(ctx, upd, "Informe o login do vendedor:")
		return nil

	case StepAgentLogin:
		state.Login = strings.TrimSpace(text)
		state.Step = StepAgentPassword
		if err := r.deps.Sessions.Put(ctx, upd.ChatID, upd.UserID, state); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.sendText(ctx, upd, "Informe a senha inicial do vendedor:")
		return nil

	case StepAgentPassword:
		return r.finishCreateAgent(ctx, upd, state, text)

	case StepTemplateName:
		state.TemplateName = strings.TrimSpace(text)
		state.Step = StepTemplateBody
		if err := r.deps.Sessions.Put(ctx, upd.ChatID, upd.UserID, state); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.sendText(ctx, upd, "Agora envie o texto do modelo. Use {{cliente}} e {{vendedor}} como curingas:")
		return nil

	case StepTemplateBody:
		if _, err := r.deps.Templates.Create(ctx, state.TemplateName, text); err != nil {
			r.sendText(ctx, upd, "Não consegui salvar o modelo: "+err.Error())
			return err
		}
		_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
		r.sendText(ctx, upd, "✅ Modelo de mensagem criado.")
		return nil

	case StepAdoptBatchName:
		adopted, err := r.deps.Importer.AdoptOrphans(ctx, text)
		if err != nil {
			r.sendText(ctx, upd, "Não consegui adotar os clientes: "+err.Error())
			return err
		}
		_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
		r.sendText(ctx, upd, fmt.Sprintf("✅ %d clientes rotulados na base %q.", adopted, strings.TrimSpace(text)))
		return nil

	default:
		_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
		r.sendText(ctx, upd, msgStartOver)
		return nil
	}
}

func (r *Router) finishLogin(ctx context.Context, upd Update, login, password string) error {
	_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)

	agent, err := r.deps.Agents.Login(ctx, login, password, upd.UserID)
	if err != nil {
		if errors.Is(err, agents.ErrInvalidCredentials) {
			r.deps.Metrics.LoginAttempts.WithLabelValues("failed").Inc()
			r.sendText(ctx, upd, "❌ Usuário ou senha inválidos. Use /login para tentar de novo.")
			return nil
		}
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	if err := r.deps.Sessions.SetAgent(ctx, upd.ChatID, upd.UserID, agent.ID); err != nil {
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	r.deps.Metrics.LoginAttempts.WithLabelValues("success").Inc()
	r.sendText(ctx, upd, fmt.Sprintf("✅ Bem-vindo, %s!\n\n%s", agent.FirstName(), helpText(agent)))
	return nil
}

func (r *Router) finishSearch(ctx context.Context, upd Update, text string) error {
	digits := phone.Digits(text)
	if len(digits) < 8 {
		r.sendText(ctx, upd, "Telefone muito curto. Informe ao menos 8 números:")
		return nil
	}
	_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)

	lead, err := r.deps.Lifecycle.FindByPhone(ctx, digits)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.sendText(ctx, upd, "Nenhum cliente encontrado com esse telefone.")
			return nil
		}
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	r.send(ctx, upd, leadFoundMessage(lead))
	return nil
}

// leadFoundMessage renders a search hit with the actions valid for its
// current state.
func leadFoundMessage(lead *models.Lead) Message {
	keyboard := [][]Button{{
		{Label: "📝 Histórico", Data: "show_history_" + lead.ID.Hex()},
	}}
	if lead.Status == models.LeadStatusDone {
		keyboard = append(keyboard, []Button{{
			Label: "🔄 Reabrir atendimento", Data: "reabrir_" + lead.ID.Hex(),
		}})
	}
	return Message{Text: leadDetails(lead), Keyboard: keyboard}
}

func (r *Router) finishNote(ctx context.Context, upd Update, state *State, text string) error {
	agent, ok := r.requireAgent(ctx, upd)
	if !ok {
		return nil
	}
	leadID, err := state.Lead()
	if err != nil {
		_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
		r.sendText(ctx, upd, msgStartOver)
		return nil
	}
	if strings.TrimSpace(text) == "" {
		r.sendText(ctx, upd, "A observação não pode ser vazia. Escreva a nota:")
		return nil
	}
	if err := r.deps.Lifecycle.AddNote(ctx, leadID, agent.FirstName(), strings.TrimSpace(text)); err != nil {
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
	r.sendText(ctx, upd, "📝 Observação registrada.")
	return nil
}

// parseBalance accepts Brazilian decimal formats like "1.234,56".
func parseBalance(text string) (float64, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid amount %q", text)
	}
	return v, nil
}

func (r *Router) finishInquiry(ctx context.Context, upd Update, state *State, text string) error {
	agent, ok := r.requireAgent(ctx, upd)
	if !ok {
		return nil
	}
	leadID, err := state.Lead()
	if err != nil || state.Bank == "" || state.Result == "" {
		_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
		r.sendText(ctx, upd, msgStartOver)
		return nil
	}
	balance, err := parseBalance(text)
	if err != nil {
		r.sendText(ctx, upd, "Valor inválido. Informe o saldo, por exemplo 1234,56:")
		return nil
	}
	lead, err := r.deps.Lifecycle.FinalizeInquiry(ctx, leadID, agent.ID, state.Bank, state.Result, &balance)
	if err != nil {
		_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
		if errors.Is(err, lifecycle.ErrLeadNotHeld) {
			r.sendText(ctx, upd, "Este cliente não está mais em atendimento com você.")
			return nil
		}
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
	r.deps.Metrics.Finalizations.WithLabelValues(lead.FinalStatus).Inc()
	r.sendText(ctx, upd, fmt.Sprintf("✅ Consulta registrada para %s: %s, %s.\nUse /proximo para o próximo cliente.",
		lead.FirstName(), state.Result, report.FormatCurrency(balance)))
	return nil
}

func (r *Router) finishCreateAgent(ctx context.Context, upd Update, state *State, password string) error {
	admin, ok := r.requireAgent(ctx, upd)
	if !ok {
		return nil
	}
	if !admin.IsAdmin() {
		_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
		r.sendText(ctx, upd, msgForbidden)
		return nil
	}
	created, err := r.deps.Agents.Create(ctx, agents.CreateRequest{
		Name:     state.Name,
		Login:    state.Login,
		Password: password,
		Role:     models.RoleAgent,
	})
	if err != nil {
		_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
		if errors.Is(err, agents.ErrLoginTaken) {
			r.sendText(ctx, upd, "❌ Este login já está em uso. Comece de novo em /admin.")
			return nil
		}
		r.sendText(ctx, upd, "Não consegui criar o vendedor: "+err.Error())
		return err
	}
	_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
	r.send(ctx, upd, Message{
		Text:     fmt.Sprintf("✅ Vendedor %s criado. Defina o papel:", created.Name),
		Keyboard: roleKeyboard(created.ID),
	})
	return nil
}

func roleKeyboard(agentID primitive.ObjectID) [][]Button {
	id := agentID.Hex()
	return [][]Button{
		{{Label: "Vendedor", Data: "role_vendedor_" + id}},
		{{Label: "Supervisor", Data: "role_supervisor_" + id}},
		{{Label: "Administrador", Data: "role_administrador_" + id}},
	}
}

func (r *Router) handleCallback(ctx context.Context, upd Update, cmd Command) error {
	agent, ok := r.requireAgent(ctx, upd)
	if !ok {
		return nil
	}

	switch cmd.Kind {
	case KindOutcome:
		return r.finishOutcome(ctx, upd, agent, cmd.Outcome)

	case KindStartInquiry:
		if err := r.deps.Sessions.Put(ctx, upd.ChatID, upd.UserID, &State{LeadID: cmd.LeadID.Hex()}); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.send(ctx, upd, Message{Text: "🏦 Em qual banco foi feita a consulta?", Keyboard: bankKeyboard()})
		return nil

	case KindBank:
		state, err := r.deps.Sessions.Get(ctx, upd.ChatID, upd.UserID)
		if err != nil {
			r.sendText(ctx, upd, msgStartOver)
			return nil
		}
		state.Bank = cmd.Bank
		if err := r.deps.Sessions.Put(ctx, upd.ChatID, upd.UserID, state); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.send(ctx, upd, Message{Text: "Qual foi o resultado da consulta?", Keyboard: resultKeyboard()})
		return nil

	case KindResult:
		return r.finishResult(ctx, upd, agent, cmd.Result)

	case KindAddNote:
		if err := r.deps.Sessions.Put(ctx, upd.ChatID, upd.UserID, &State{Step: StepNoteText, LeadID: cmd.LeadID.Hex()}); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.sendText(ctx, upd, "Escreva a observação:")
		return nil

	case KindReopen:
		return r.finishReopen(ctx, upd, agent, cmd.LeadID)

	case KindViewLead:
		lead, err := r.deps.Lifecycle.ByID(ctx, cmd.LeadID)
		if err != nil {
			r.sendText(ctx, upd, "Cliente não encontrado.")
			return nil
		}
		r.send(ctx, upd, leadFoundMessage(lead))
		return nil

	case KindHistory:
		lead, err := r.deps.Lifecycle.ByID(ctx, cmd.LeadID)
		if err != nil {
			r.sendText(ctx, upd, "Cliente não encontrado.")
			return nil
		}
		r.sendText(ctx, upd, leadHistory(lead))
		return nil

	case KindFilterResult:
		leads, err := r.deps.Lifecycle.ListInquiries(ctx, agent.ID, cmd.Result, cmd.WithBalance)
		if err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		title := "🔎 Consultas: " + cmd.Result
		if cmd.WithBalance {
			title = "🔎 Consultas com saldo registrado"
		}
		r.send(ctx, upd, renderLeadList(title, leads))
		return nil

	case KindReportWindow:
		return r.handleReportWindow(ctx, upd, agent, cmd.Window)

	case KindGenerateReport:
		return r.handleGenerateReport(ctx, upd, agent, cmd.Window)

	case KindTeamReport:
		if !agent.CanSupervise() {
			r.sendText(ctx, upd, msgForbidden)
			return nil
		}
		rep, err := r.deps.Reports.TeamOverview(ctx, cmd.AgentID, report.WindowToday)
		if err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.sendText(ctx, upd, renderReport(rep))
		return nil

	case KindSupAction:
		return r.handleSupAction(ctx, upd, agent, cmd.Action)

	case KindAdminAction:
		return r.handleAdminAction(ctx, upd, agent, cmd.Action)

	case KindToggleBatch:
		return r.handleToggleBatch(ctx, upd, agent, cmd.BatchID)

	case KindToggleTemplate:
		if !agent.IsAdmin() {
			r.sendText(ctx, upd, msgForbidden)
			return nil
		}
		tpl, err := r.deps.Templates.ByID(ctx, cmd.TemplateID)
		if err != nil {
			r.sendText(ctx, upd, "Modelo não encontrado.")
			return nil
		}
		if err := r.deps.Templates.SetActive(ctx, tpl.ID, !tpl.Active); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		return r.showTemplates(ctx, upd)

	case KindRemoveTemplate:
		if !agent.IsAdmin() {
			r.sendText(ctx, upd, msgForbidden)
			return nil
		}
		if err := r.deps.Templates.Delete(ctx, cmd.TemplateID); err != nil {
			r.sendText(ctx, upd, "Modelo não encontrado.")
			return nil
		}
		return r.showTemplates(ctx, upd)

	case KindEditUser:
		if !agent.IsAdmin() {
			r.sendText(ctx, upd, msgForbidden)
			return nil
		}
		target, err := r.deps.Agents.ByID(ctx, cmd.AgentID)
		if err != nil {
			r.sendText(ctx, upd, "Vendedor não encontrado.")
			return nil
		}
		keyboard := roleKeyboard(target.ID)
		keyboard = append(keyboard, []Button{{
			Label: "👤 Definir supervisor", Data: "new_supervisor_" + target.ID.Hex(),
		}})
		r.send(ctx, upd, Message{
			Text:     fmt.Sprintf("Editar %s (%s, papel %s):", target.Name, target.Login, target.Role),
			Keyboard: keyboard,
		})
		return nil

	case KindSetRole:
		if !agent.IsAdmin() {
			r.sendText(ctx, upd, msgForbidden)
			return nil
		}
		if err := r.deps.Agents.SetRole(ctx, cmd.AgentID, cmd.Role); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		if cmd.Role == models.RoleAgent {
			return r.offerSupervisors(ctx, upd, cmd.AgentID)
		}
		r.sendText(ctx, upd, fmt.Sprintf("✅ Papel atualizado para %s.", cmd.Role))
		return nil

	case KindNewSupervisor:
		if !agent.IsAdmin() {
			r.sendText(ctx, upd, msgForbidden)
			return nil
		}
		return r.offerSupervisors(ctx, upd, cmd.AgentID)

	case KindAssignSupervisor:
		return r.finishAssignSupervisor(ctx, upd, agent, cmd)

	default:
		r.sendText(ctx, upd, msgUnknownCommand)
		return nil
	}
}

func (r *Router) finishOutcome(ctx context.Context, upd Update, agent *models.Agent, outcome string) error {
	current, err := r.deps.Lifecycle.Current(ctx, agent.ID)
	if err != nil {
		r.sendText(ctx, upd, "Você não tem cliente em atendimento. Use /proximo.")
		return nil
	}
	lead, err := r.deps.Lifecycle.Finalize(ctx, current.ID, agent.ID, outcome)
	if err != nil {
		if errors.Is(err, lifecycle.ErrLeadNotHeld) {
			r.sendText(ctx, upd, "Este atendimento já foi finalizado.")
			return nil
		}
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	r.deps.Metrics.Finalizations.WithLabelValues(outcome).Inc()
	r.sendText(ctx, upd, fmt.Sprintf("✅ Atendimento de %s finalizado: %s.\nUse /proximo para o próximo cliente.",
		lead.FirstName(), outcome))
	return nil
}

func (r *Router) finishResult(ctx context.Context, upd Update, agent *models.Agent, result string) error {
	state, err := r.deps.Sessions.Get(ctx, upd.ChatID, upd.UserID)
	if err != nil {
		r.sendText(ctx, upd, msgStartOver)
		return nil
	}
	if result == models.InquiryHasBalance {
		state.Result = result
		state.Step = StepInquiryBalance
		if err := r.deps.Sessions.Put(ctx, upd.ChatID, upd.UserID, state); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.sendText(ctx, upd, "💰 Informe o saldo encontrado (ex.: 1234,56):")
		return nil
	}

	leadID, idErr := state.Lead()
	if idErr != nil || state.Bank == "" {
		_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
		r.sendText(ctx, upd, msgStartOver)
		return nil
	}
	lead, err := r.deps.Lifecycle.FinalizeInquiry(ctx, leadID, agent.ID, state.Bank, result, nil)
	if err != nil {
		_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
		if errors.Is(err, lifecycle.ErrLeadNotHeld) {
			r.sendText(ctx, upd, "Este cliente não está mais em atendimento com você.")
			return nil
		}
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
	r.deps.Metrics.Finalizations.WithLabelValues(lead.FinalStatus).Inc()
	r.sendText(ctx, upd, fmt.Sprintf("✅ Consulta registrada para %s: %s.\nUse /proximo para o próximo cliente.",
		lead.FirstName(), result))
	return nil
}

func (r *Router) finishReopen(ctx context.Context, upd Update, agent *models.Agent, leadID primitive.ObjectID) error {
	lead, err := r.deps.Lifecycle.Reopen(ctx, leadID, agent.ID)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrAgentBusy):
			r.sendText(ctx, upd, "Finalize o seu atendimento atual antes de reabrir outro.")
			return nil
		case errors.Is(err, lifecycle.ErrLeadNotDone):
			r.sendText(ctx, upd, "Este cliente não está mais finalizado. Outro vendedor pode tê-lo reaberto.")
			return nil
		}
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	r.deps.Metrics.Reopens.Inc()
	msg := r.leadCardFor(ctx, lead, agent)
	msg.Text = "🔄 Atendimento reaberto:\n\n" + msg.Text
	r.send(ctx, upd, msg)
	return nil
}

func (r *Router) handleReportWindow(ctx context.Context, upd Update, agent *models.Agent, w report.Window) error {
	if !agent.CanSupervise() {
		r.sendText(ctx, upd, msgForbidden)
		return nil
	}
	var rep *report.Report
	var err error
	if agent.IsAdmin() {
		rep, err = r.deps.Reports.Overview(ctx, w)
	} else {
		rep, err = r.deps.Reports.TeamOverview(ctx, agent.ID, w)
	}
	if err != nil {
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	r.send(ctx, upd, Message{
		Text: renderReport(rep),
		Keyboard: [][]Button{{
			{Label: "📄 Exportar planilha", Data: "gerar_relatorio_" + string(w)},
		}},
	})
	return nil
}

func (r *Router) handleGenerateReport(ctx context.Context, upd Update, agent *models.Agent, w report.Window) error {
	if !agent.CanSupervise() {
		r.sendText(ctx, upd, msgForbidden)
		return nil
	}
	var out bytes.Buffer
	n, err := r.deps.Exporter.WritePerformance(ctx, &out)
	if err != nil {
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	r.deps.Metrics.ExportsCreated.Inc()
	name := fmt.Sprintf("desempenho_%s_%s.xlsx", w, time.Now().Format("20060102"))
	if err := r.deps.Client.SendDocument(ctx, Document{
		ChatID:  upd.ChatID,
		Name:    name,
		Data:    out.Bytes(),
		Caption: fmt.Sprintf("Planilha de desempenho (%d atendimentos).", n),
	}); err != nil {
		r.deps.Log.Error("failed to send document", "chat_id", upd.ChatID, "err", err)
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	return nil
}

func (r *Router) handleSupAction(ctx context.Context, upd Update, agent *models.Agent, action string) error {
	if !agent.CanSupervise() {
		r.sendText(ctx, upd, msgForbidden)
		return nil
	}
	switch action {
	case "equipe":
		team, err := r.deps.Agents.Team(ctx, agent.ID)
		if err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		if len(team) == 0 {
			r.sendText(ctx, upd, "Nenhum vendedor na sua equipe ainda.")
			return nil
		}
		var b strings.Builder
		b.WriteString("👥 Sua equipe:\n")
		for _, a := range team {
			fmt.Fprintf(&b, "• %s (%s)\n", a.Name, a.Login)
		}
		r.sendText(ctx, upd, b.String())
		return nil

	case "relatorio":
		r.send(ctx, upd, Message{Text: "Período do relatório da equipe:", Keyboard: windowKeyboard("relatorio_")})
		return nil

	case "fila":
		pending, err := r.deps.Allocator.PendingCount(ctx)
		if err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.deps.Metrics.PendingLeads.Set(float64(pending))
		r.sendText(ctx, upd, fmt.Sprintf("📉 Clientes pendentes na fila: %d", pending))
		return nil
	}
	r.sendText(ctx, upd, msgUnknownCommand)
	return nil
}

func (r *Router) handleAdminAction(ctx context.Context, upd Update, agent *models.Agent, action string) error {
	if !agent.IsAdmin() {
		r.sendText(ctx, upd, msgForbidden)
		return nil
	}
	switch action {
	case "criar_vendedor":
		if err := r.deps.Sessions.Put(ctx, upd.ChatID, upd.UserID, &State{Step: StepAgentName}); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.sendText(ctx, upd, "Informe o nome completo do novo vendedor:")
		return nil

	case "editar_vendedores":
		all, err := r.deps.Agents.All(ctx)
		if err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		var keyboard [][]Button
		for _, a := range all {
			keyboard = append(keyboard, []Button{{
				Label: fmt.Sprintf("%s (%s)", a.Name, a.Role),
				Data:  "edit_user_" + a.ID.Hex(),
			}})
		}
		r.send(ctx, upd, Message{Text: "Escolha o vendedor:", Keyboard: keyboard})
		return nil

	case "templates":
		return r.showTemplates(ctx, upd)

	case "novo_template":
		if err := r.deps.Sessions.Put(ctx, upd.ChatID, upd.UserID, &State{Step: StepTemplateName}); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.sendText(ctx, upd, "Informe o nome do novo modelo:")
		return nil

	case "bases":
		return r.showBatches(ctx, upd)

	case "adotar_base":
		if err := r.deps.Sessions.Put(ctx, upd.ChatID, upd.UserID, &State{Step: StepAdoptBatchName}); err != nil {
			r.sendText(ctx, upd, msgInternalError)
			return err
		}
		r.sendText(ctx, upd, "Informe o nome da base para os clientes sem rótulo:")
		return nil
	}
	r.sendText(ctx, upd, msgUnknownCommand)
	return nil
}

func (r *Router) showTemplates(ctx context.Context, upd Update) error {
	all, err := r.deps.Templates.All(ctx)
	if err != nil {
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	if len(all) == 0 {
		r.sendText(ctx, upd, "Nenhum modelo cadastrado. Use o painel /admin para criar um.")
		return nil
	}
	var b strings.Builder
	b.WriteString("💬 Modelos de mensagem:\n\n")
	var keyboard [][]Button
	for _, tpl := range all {
		status := "ativo"
		if !tpl.Active {
			status = "inativo"
		}
		fmt.Fprintf(&b, "• %s (%s)\n%s\n\n", tpl.Name, status, tpl.Body)
		keyboard = append(keyboard, []Button{
			{Label: "🔁 " + tpl.Name, Data: "admin_toggle_template_" + tpl.ID.Hex()},
			{Label: "🗑 Remover", Data: "admin_remover_template_" + tpl.ID.Hex()},
		})
	}
	r.send(ctx, upd, Message{Text: b.String(), Keyboard: keyboard})
	return nil
}

func (r *Router) showBatches(ctx context.Context, upd Update) error {
	all, err := r.deps.Batches.All(ctx)
	if err != nil {
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	if len(all) == 0 {
		r.sendText(ctx, upd, "Nenhuma base importada ainda.")
		return nil
	}
	var b strings.Builder
	b.WriteString("📂 Bases importadas:\n\n")
	var keyboard [][]Button
	for _, batch := range all {
		status := "✅ ativa"
		if !batch.Active {
			status = "⏸ inativa"
		}
		fmt.Fprintf(&b, "• %s — %d clientes, %s (importada em %s)\n",
			batch.Name, batch.LeadCount, status, batch.ImportedAt.Format("02/01/2006"))
		keyboard = append(keyboard, []Button{{
			Label: "🔁 " + batch.Name,
			Data:  "admin_toggle_base_" + batch.ID.Hex(),
		}})
	}
	r.send(ctx, upd, Message{Text: b.String(), Keyboard: keyboard})
	return nil
}

func (r *Router) handleToggleBatch(ctx context.Context, upd Update, agent *models.Agent, batchID primitive.ObjectID) error {
	if !agent.IsAdmin() {
		r.sendText(ctx, upd, msgForbidden)
		return nil
	}
	all, err := r.deps.Batches.All(ctx)
	if err != nil {
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	for _, batch := range all {
		if batch.ID == batchID {
			if err := r.deps.Batches.SetActive(ctx, batch.ID, !batch.Active); err != nil {
				r.sendText(ctx, upd, msgInternalError)
				return err
			}
			return r.showBatches(ctx, upd)
		}
	}
	r.sendText(ctx, upd, "Base não encontrada.")
	return nil
}

func (r *Router) offerSupervisors(ctx context.Context, upd Update, targetID primitive.ObjectID) error {
	if err := r.deps.Sessions.Put(ctx, upd.ChatID, upd.UserID, &State{EditAgentID: targetID.Hex()}); err != nil {
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	sups, err := r.deps.Agents.Supervisors(ctx)
	if err != nil {
		r.sendText(ctx, upd, msgInternalError)
		return err
	}
	keyboard := [][]Button{}
	for _, s := range sups {
		keyboard = append(keyboard, []Button{{Label: s.Name, Data: "supervisor_" + s.ID.Hex()}})
	}
	keyboard = append(keyboard, []Button{{Label: "Sem supervisor", Data: "supervisor_nenhum"}})
	r.send(ctx, upd, Message{Text: "Escolha o supervisor:", Keyboard: keyboard})
	return nil
}

func (r *Router) finishAssignSupervisor(ctx context.Context, upd Update, agent *models.Agent, cmd Command) error {
	if !agent.IsAdmin() {
		r.sendText(ctx, upd, msgForbidden)
		return nil
	}
	state, err := r.deps.Sessions.Get(ctx, upd.ChatID, upd.UserID)
	if err != nil || state.EditAgentID == "" {
		r.sendText(ctx, upd, msgStartOver)
		return nil
	}
	targetID, err := primitive.ObjectIDFromHex(state.EditAgentID)
	if err != nil {
		_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
		r.sendText(ctx, upd, msgStartOver)
		return nil
	}
	var supID *primitive.ObjectID
	if !cmd.AgentID.IsZero() {
		supID = &cmd.AgentID
	}
	if err := r.deps.Agents.AssignSupervisor(ctx, targetID, supID); err != nil {
		r.sendText(ctx, upd, "Não consegui definir o supervisor: "+err.Error())
		return err
	}
	_ = r.deps.Sessions.Clear(ctx, upd.ChatID, upd.UserID)
	if supID == nil {
		r.sendText(ctx, upd, "✅ Vendedor sem supervisor.")
		return nil
	}
	r.sendText(ctx, upd, "✅ Supervisor definido.")
	return nil
}
