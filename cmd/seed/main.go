// Command seed populates a development database with fake agents,
// leads, and message templates.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jordanlanch/salesbot/config"
	"github.com/jordanlanch/salesbot/pkg/agents"
	"github.com/jordanlanch/salesbot/pkg/database"
	"github.com/jordanlanch/salesbot/pkg/logger"
	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/store"
	"github.com/jordanlanch/salesbot/pkg/templates"
)

func main() {
	var (
		leadCount  = flag.Int("leads", 50, "number of pending leads to create")
		agentCount = flag.Int("agents", 5, "number of agents to create")
		seed       = flag.Int64("seed", 0, "deterministic seed (0 = random)")
	)
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	if *seed != 0 {
		gofakeit.Seed(*seed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Error("failed to connect to mongodb", "err", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())

	leadStore := store.NewMongoLeadStore(db.DB.Collection("clientes"))
	agentStore := store.NewMongoAgentStore(db.DB.Collection("vendedores"))
	templateStore := store.NewMongoTemplateStore(db.DB.Collection("mensagens"))
	batchStore := store.NewMongoBatchStore(db.DB.Collection("bases"))

	agentsSvc := agents.NewService(agentStore)
	if _, err := agentsSvc.Create(ctx, agents.CreateRequest{
		Name:     "Admin Local",
		Login:    "admin",
		Password: "admin123",
		Role:     models.RoleAdmin,
	}); err != nil {
		log.Warn("admin account not created", "err", err)
	}
	for i := 0; i < *agentCount; i++ {
		login := fmt.Sprintf("vendedor%d", i+1)
		if _, err := agentsSvc.Create(ctx, agents.CreateRequest{
			Name:     gofakeit.Name(),
			Login:    login,
			Password: "senha123",
			Role:     models.RoleAgent,
		}); err != nil {
			log.Warn("agent not created", "login", login, "err", err)
		}
	}

	batchName := "seed-" + time.Now().Format("20060102")
	leads := make([]models.Lead, 0, *leadCount)
	now := time.Now()
	for i := 0; i < *leadCount; i++ {
		leads = append(leads, models.Lead{
			ID:        primitive.NewObjectID(),
			Name:      gofakeit.Name(),
			TaxID:     fmt.Sprintf("%011d", gofakeit.Number(10000000000, 99999999999)),
			Phone:     fmt.Sprintf("55%d9%08d", gofakeit.Number(11, 99), gofakeit.Number(10000000, 99999999)),
			Status:    models.LeadStatusPending,
			BatchName: batchName,
		})
	}
	inserted, err := leadStore.Insert(ctx, leads)
	if err != nil {
		log.Error("failed to insert leads", "err", err)
		os.Exit(1)
	}
	if err := batchStore.Insert(ctx, &models.ImportBatch{
		Name:       batchName,
		Active:     true,
		LeadCount:  inserted,
		ImportedAt: now,
	}); err != nil {
		log.Warn("batch record not created", "err", err)
	}

	tplSvc := templates.NewService(templateStore)
	if _, err := tplSvc.Create(ctx, "saudacao",
		"Olá {{cliente}}! Aqui é {{vendedor}}. Posso te ajudar com a consulta do seu benefício?"); err != nil {
		log.Warn("template not created", "err", err)
	}

	fmt.Printf("seeded %d leads in batch %q, %d agents (password senha123), admin/admin123\n",
		inserted, batchName, *agentCount)
}
