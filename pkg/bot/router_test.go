package bot

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jordanlanch/salesbot/pkg/agents"
	"github.com/jordanlanch/salesbot/pkg/allocator"
	"github.com/jordanlanch/salesbot/pkg/cache"
	"github.com/jordanlanch/salesbot/pkg/export"
	"github.com/jordanlanch/salesbot/pkg/importer"
	"github.com/jordanlanch/salesbot/pkg/lifecycle"
	"github.com/jordanlanch/salesbot/pkg/logger"
	"github.com/jordanlanch/salesbot/pkg/metrics"
	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/report"
	"github.com/jordanlanch/salesbot/pkg/store"
	"github.com/jordanlanch/salesbot/pkg/templates"
)

// fakeChat records everything the router sends.
type fakeChat struct {
	messages  []Message
	documents []Document
}

func (f *fakeChat) Send(_ context.Context, msg Message) error {
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeChat) SendDocument(_ context.Context, doc Document) error {
	f.documents = append(f.documents, doc)
	return nil
}

func (f *fakeChat) AnswerCallback(_ context.Context, _ string, _ string) error {
	return nil
}

func (f *fakeChat) last(t *testing.T) Message {
	t.Helper()
	require.NotEmpty(t, f.messages)
	return f.messages[len(f.messages)-1]
}

type routerFixture struct {
	router *Router
	chat   *fakeChat
	leads  *store.MemoryLeadStore
	agents *agents.Service
	store  *store.MemoryAgentStore
}

func setupRouter(t *testing.T) *routerFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient, err := cache.NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { redisClient.Redis.Close() })

	leads := store.NewMemoryLeadStore()
	agentStore := store.NewMemoryAgentStore()
	templateStore := store.NewMemoryTemplateStore()
	batchStore := store.NewMemoryBatchStore()

	agentsSvc := agents.NewService(agentStore)
	chat := &fakeChat{}

	router := NewRouter(Deps{
		Client:    chat,
		Sessions:  NewSessions(redisClient),
		Agents:    agentsSvc,
		Allocator: allocator.NewService(leads, batchStore),
		Lifecycle: lifecycle.NewService(leads),
		Reports:   report.NewService(leads, agentStore),
		Templates: templates.NewService(templateStore),
		Importer:  importer.NewService(leads, batchStore),
		Exporter:  export.NewService(leads, agentStore),
		Batches:   batchStore,
		Metrics:   metrics.New(prometheus.NewRegistry()),
		Log:       logger.Default(),
	})
	// Deterministic template choice for assertions.
	router.pick = func(int) int { return 0 }

	return &routerFixture{
		router: router,
		chat:   chat,
		leads:  leads,
		agents: agentsSvc,
		store:  agentStore,
	}
}

func (f *routerFixture) createAgent(t *testing.T, name, login string, role models.Role) *models.Agent {
	t.Helper()
	agent, err := f.agents.Create(context.Background(), agents.CreateRequest{
		Name:     name,
		Login:    login,
		Password: "segredo123",
		Role:     role,
	})
	require.NoError(t, err)
	return agent
}

func (f *routerFixture) messageUpdate(text string) Update {
	return Update{ChatID: 100, UserID: 200, Text: text}
}

func (f *routerFixture) callbackUpdate(data string) Update {
	return Update{ChatID: 100, UserID: 200, CallbackID: "cb1", CallbackData: data}
}

// loginAs walks the real login conversation.
func (f *routerFixture) loginAs(t *testing.T, login string) {
	t.Helper()
	ctx := context.Background()
	f.router.HandleUpdate(ctx, f.messageUpdate("/login"))
	f.router.HandleUpdate(ctx, f.messageUpdate(login))
	f.router.HandleUpdate(ctx, f.messageUpdate("segredo123"))
	assert.Contains(t, f.chat.last(t).Text, "Bem-vindo")
}

func (f *routerFixture) seedPending(t *testing.T, name, phone string) primitive.ObjectID {
	t.Helper()
	lead := models.Lead{
		ID:     primitive.NewObjectID(),
		Name:   name,
		Phone:  phone,
		Status: models.LeadStatusPending,
	}
	_, err := f.leads.Insert(context.Background(), []models.Lead{lead})
	require.NoError(t, err)
	return lead.ID
}

func TestRouterRequiresLogin(t *testing.T) {
	f := setupRouter(t)
	f.router.HandleUpdate(context.Background(), f.messageUpdate("/proximo"))
	assert.Contains(t, f.chat.last(t).Text, "/login")
}

func TestRouterLoginFlow(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Ana Lima", "ana", models.RoleAgent)
	f.loginAs(t, "ana")
}

func TestRouterLoginRejectsBadPassword(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Ana Lima", "ana", models.RoleAgent)
	ctx := context.Background()

	f.router.HandleUpdate(ctx, f.messageUpdate("/login"))
	f.router.HandleUpdate(ctx, f.messageUpdate("ana"))
	f.router.HandleUpdate(ctx, f.messageUpdate("senha-errada"))

	assert.Contains(t, f.chat.last(t).Text, "inválidos")
}

func TestRouterNextAssignsLead(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Ana Lima", "ana", models.RoleAgent)
	f.loginAs(t, "ana")
	f.seedPending(t, "Carlos Mota", "5511999887766")

	f.router.HandleUpdate(context.Background(), f.messageUpdate("/proximo"))

	msg := f.chat.last(t)
	assert.Contains(t, msg.Text, "Carlos")
	assert.NotEmpty(t, msg.Keyboard)
}

func TestRouterNextOnEmptyQueue(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Ana Lima", "ana", models.RoleAgent)
	f.loginAs(t, "ana")

	f.router.HandleUpdate(context.Background(), f.messageUpdate("/proximo"))
	assert.Contains(t, f.chat.last(t).Text, "pendentes")
}

func TestRouterOutcomeFinalizesCurrentLead(t *testing.T) {
	f := setupRouter(t)
	agent := f.createAgent(t, "Ana Lima", "ana", models.RoleAgent)
	f.loginAs(t, "ana")
	leadID := f.seedPending(t, "Carlos Mota", "5511999887766")
	ctx := context.Background()

	f.router.HandleUpdate(ctx, f.messageUpdate("/proximo"))
	f.router.HandleUpdate(ctx, f.callbackUpdate("status_venda_fechada"))

	assert.Contains(t, f.chat.last(t).Text, "finalizado")

	lead, err := f.leads.ByID(ctx, leadID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusDone, lead.Status)
	assert.Equal(t, models.OutcomeSaleClosed, lead.FinalStatus)
	require.NotNil(t, lead.AssignedTo)
	assert.Equal(t, agent.ID, *lead.AssignedTo)
}

func TestRouterInquiryFlowWithBalance(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Ana Lima", "ana", models.RoleAgent)
	f.loginAs(t, "ana")
	leadID := f.seedPending(t, "Carlos Mota", "5511999887766")
	ctx := context.Background()

	f.router.HandleUpdate(ctx, f.messageUpdate("/proximo"))
	f.router.HandleUpdate(ctx, f.callbackUpdate("start_consulta_"+leadID.Hex()))
	assert.Contains(t, f.chat.last(t).Text, "banco")

	f.router.HandleUpdate(ctx, f.callbackUpdate("banco_caixa"))
	assert.Contains(t, f.chat.last(t).Text, "resultado")

	f.router.HandleUpdate(ctx, f.callbackUpdate("resultado_possui_saldo"))
	assert.Contains(t, f.chat.last(t).Text, "saldo")

	f.router.HandleUpdate(ctx, f.messageUpdate("1.234,56"))
	assert.Contains(t, f.chat.last(t).Text, "Consulta registrada")

	lead, err := f.leads.ByID(ctx, leadID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusDone, lead.Status)
	assert.Equal(t, "Caixa", lead.InquiryBank)
	assert.Equal(t, models.InquiryHasBalance, lead.InquiryResult)
	require.NotNil(t, lead.InquiryBalance)
	assert.InDelta(t, 1234.56, *lead.InquiryBalance, 0.001)
	require.NotEmpty(t, lead.Notes)
}

func TestRouterInquiryFlowWithoutBalance(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Ana Lima", "ana", models.RoleAgent)
	f.loginAs(t, "ana")
	leadID := f.seedPending(t, "Carlos Mota", "5511999887766")
	ctx := context.Background()

	f.router.HandleUpdate(ctx, f.messageUpdate("/proximo"))
	f.router.HandleUpdate(ctx, f.callbackUpdate("start_consulta_"+leadID.Hex()))
	f.router.HandleUpdate(ctx, f.callbackUpdate("banco_bb"))
	f.router.HandleUpdate(ctx, f.callbackUpdate("resultado_sem_saldo"))

	assert.Contains(t, f.chat.last(t).Text, "Consulta registrada")

	lead, err := f.leads.ByID(ctx, leadID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusDone, lead.Status)
	assert.Nil(t, lead.InquiryBalance)
}

func TestRouterNoteFlow(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Ana Lima", "ana", models.RoleAgent)
	f.loginAs(t, "ana")
	leadID := f.seedPending(t, "Carlos Mota", "5511999887766")
	ctx := context.Background()

	f.router.HandleUpdate(ctx, f.messageUpdate("/proximo"))
	f.router.HandleUpdate(ctx, f.callbackUpdate("add_note_"+leadID.Hex()))
	f.router.HandleUpdate(ctx, f.messageUpdate("Cliente pediu retorno amanhã"))

	assert.Contains(t, f.chat.last(t).Text, "registrada")

	lead, err := f.leads.ByID(ctx, leadID)
	require.NoError(t, err)
	require.Len(t, lead.Notes, 1)
	assert.Equal(t, "Cliente pediu retorno amanhã", lead.Notes[0].Text)
	assert.Equal(t, "Ana", lead.Notes[0].Author)
}

func TestRouterReopenFromSearch(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Ana Lima", "ana", models.RoleAgent)
	f.loginAs(t, "ana")
	leadID := f.seedPending(t, "Carlos Mota", "5511999887766")
	ctx := context.Background()

	f.router.HandleUpdate(ctx, f.messageUpdate("/proximo"))
	f.router.HandleUpdate(ctx, f.callbackUpdate("status_contatado"))

	f.router.HandleUpdate(ctx, f.messageUpdate("/buscar"))
	f.router.HandleUpdate(ctx, f.messageUpdate("11999887766"))
	found := f.chat.last(t)
	assert.Contains(t, found.Text, "Carlos")
	require.NotEmpty(t, found.Keyboard)

	f.router.HandleUpdate(ctx, f.callbackUpdate("reabrir_"+leadID.Hex()))
	assert.Contains(t, f.chat.last(t).Text, "reaberto")

	lead, err := f.leads.ByID(ctx, leadID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusInProgress, lead.Status)
	assert.Empty(t, lead.FinalStatus)
}

func TestRouterReopenRejectedWhileBusy(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Ana Lima", "ana", models.RoleAgent)
	f.loginAs(t, "ana")
	doneID := f.seedPending(t, "Carlos Mota", "5511999887766")
	f.seedPending(t, "Bia Torres", "5511888776655")
	ctx := context.Background()

	// Finish the first lead, then pick up the second.
	f.router.HandleUpdate(ctx, f.messageUpdate("/proximo"))
	f.router.HandleUpdate(ctx, f.callbackUpdate("status_contatado"))
	f.router.HandleUpdate(ctx, f.messageUpdate("/proximo"))

	f.router.HandleUpdate(ctx, f.callbackUpdate("reabrir_"+doneID.Hex()))
	assert.Contains(t, f.chat.last(t).Text, "Finalize")
}

func TestRouterCancelTearsDownConversation(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Ana Lima", "ana", models.RoleAgent)
	ctx := context.Background()

	f.router.HandleUpdate(ctx, f.messageUpdate("/login"))
	f.router.HandleUpdate(ctx, f.messageUpdate("/cancel"))
	assert.Contains(t, f.chat.last(t).Text, "cancelada")

	// Free text after cancel hits no flow.
	f.router.HandleUpdate(ctx, f.messageUpdate("ana"))
	assert.Contains(t, f.chat.last(t).Text, "/ajuda")
}

func TestRouterLogout(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Ana Lima", "ana", models.RoleAgent)
	f.loginAs(t, "ana")
	ctx := context.Background()

	f.router.HandleUpdate(ctx, f.messageUpdate("/sair"))
	assert.Contains(t, f.chat.last(t).Text, "encerrada")

	f.router.HandleUpdate(ctx, f.messageUpdate("/proximo"))
	assert.Contains(t, f.chat.last(t).Text, "/login")
}

func TestRouterAdminPanelGated(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Ana Lima", "ana", models.RoleAgent)
	f.loginAs(t, "ana")

	f.router.HandleUpdate(context.Background(), f.messageUpdate("/admin"))
	assert.Contains(t, f.chat.last(t).Text, "perfil")
}

func TestRouterCreateAgentFlow(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Rita Chefe", "rita", models.RoleAdmin)
	f.loginAs(t, "rita")
	ctx := context.Background()

	f.router.HandleUpdate(ctx, f.callbackUpdate("admin_criar_vendedor"))
	f.router.HandleUpdate(ctx, f.messageUpdate("Bruno Dias"))
	f.router.HandleUpdate(ctx, f.messageUpdate("bruno"))
	f.router.HandleUpdate(ctx, f.messageUpdate("segredo123"))

	msg := f.chat.last(t)
	assert.Contains(t, msg.Text, "criado")
	require.NotEmpty(t, msg.Keyboard)

	created, err := f.store.ByLogin(ctx, "bruno")
	require.NoError(t, err)
	assert.Equal(t, "Bruno Dias", created.Name)
	assert.Equal(t, models.RoleAgent, created.Role)
}

func TestRouterSetRoleAndSupervisor(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Rita Chefe", "rita", models.RoleAdmin)
	sup := f.createAgent(t, "Saulo Souza", "saulo", models.RoleSupervisor)
	target := f.createAgent(t, "Bruno Dias", "bruno", models.RoleAgent)
	f.loginAs(t, "rita")
	ctx := context.Background()

	f.router.HandleUpdate(ctx, f.callbackUpdate(fmt.Sprintf("role_vendedor_%s", target.ID.Hex())))
	assert.Contains(t, f.chat.last(t).Text, "supervisor")

	f.router.HandleUpdate(ctx, f.callbackUpdate("supervisor_"+sup.ID.Hex()))
	assert.Contains(t, f.chat.last(t).Text, "Supervisor definido")

	updated, err := f.store.ByID(ctx, target.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.SupervisorID)
	assert.Equal(t, sup.ID, *updated.SupervisorID)
}

func TestRouterReportWindowForSupervisor(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Saulo Souza", "saulo", models.RoleSupervisor)
	f.loginAs(t, "saulo")

	f.router.HandleUpdate(context.Background(), f.callbackUpdate("relatorio_hoje"))
	msg := f.chat.last(t)
	assert.Contains(t, msg.Text, "Relatório")
	require.NotEmpty(t, msg.Keyboard)
	assert.Equal(t, "gerar_relatorio_hoje", msg.Keyboard[0][0].Data)
}

func TestRouterGenerateReportSendsDocument(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Rita Chefe", "rita", models.RoleAdmin)
	f.loginAs(t, "rita")

	f.router.HandleUpdate(context.Background(), f.callbackUpdate("gerar_relatorio_hoje"))

	require.Len(t, f.chat.documents, 1)
	doc := f.chat.documents[0]
	assert.Contains(t, doc.Name, "desempenho_hoje_")
	assert.NotEmpty(t, doc.Data)
}

func TestRouterUnknownCallback(t *testing.T) {
	f := setupRouter(t)
	f.createAgent(t, "Ana Lima", "ana", models.RoleAgent)
	f.loginAs(t, "ana")

	f.router.HandleUpdate(context.Background(), f.callbackUpdate("token_inexistente"))
	assert.Contains(t, f.chat.last(t).Text, "/ajuda")
}
