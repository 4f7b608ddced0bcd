package templates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/store"
)

func TestRender(t *testing.T) {
	lead := &models.Lead{Name: "Maria Souza Lima", Phone: "(11) 99988-7766"}
	agent := &models.Agent{Name: "Carlos Silva"}

	got := Render("Olá {{cliente}}, aqui é o {{vendedor}}!", lead, agent)
	assert.Equal(t, "Olá Maria, aqui é o Carlos!", got)

	// A body without placeholders passes through untouched.
	assert.Equal(t, "Bom dia!", Render("Bom dia!", lead, agent))
}

func TestRenderEmptyLeadName(t *testing.T) {
	lead := &models.Lead{Name: ""}
	agent := &models.Agent{Name: "Carlos"}
	assert.Equal(t, "Olá Cliente", Render("Olá {{cliente}}", lead, agent))
}

func TestWhatsAppLink(t *testing.T) {
	lead := &models.Lead{Name: "Maria", Phone: "(11) 99988-7766"}
	agent := &models.Agent{Name: "Carlos"}

	link := WhatsAppLink("Olá {{cliente}}!", lead, agent)
	assert.Equal(t, "https://wa.me/5511999887766?text=Ol%C3%A1+Maria%21", link)

	lead.Phone = ""
	assert.Empty(t, WhatsAppLink("Olá!", lead, agent))
}

func TestTemplateCRUD(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryTemplateStore())

	tpl, err := svc.Create(ctx, "Abordagem", "Olá {{cliente}}, tudo bem?")
	require.NoError(t, err)
	assert.True(t, tpl.Active)

	_, err = svc.Create(ctx, "", "corpo")
	assert.Error(t, err)

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, svc.SetActive(ctx, tpl.ID, false))
	active, err = svc.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, svc.UpdateBody(ctx, tpl.ID, "Novo corpo"))
	got, err := svc.ByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Novo corpo", got.Body)

	require.NoError(t, svc.Delete(ctx, tpl.ID))
	_, err = svc.ByID(ctx, tpl.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
