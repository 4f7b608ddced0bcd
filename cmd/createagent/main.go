// Command createagent provisions an agent account from the terminal,
// for bootstrapping the first administrator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jordanlanch/salesbot/config"
	"github.com/jordanlanch/salesbot/pkg/agents"
	"github.com/jordanlanch/salesbot/pkg/database"
	"github.com/jordanlanch/salesbot/pkg/logger"
	"github.com/jordanlanch/salesbot/pkg/models"
	"github.com/jordanlanch/salesbot/pkg/store"
)

func main() {
	var (
		name     = flag.String("name", "", "full display name")
		login    = flag.String("login", "", "login, lowercase")
		password = flag.String("password", "", "initial password")
		role     = flag.String("role", string(models.RoleAgent), "vendedor, supervisor or administrador")
	)
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	if *name == "" || *login == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: createagent -name NAME -login LOGIN -password PASSWORD [-role ROLE]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Error("failed to connect to mongodb", "err", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())

	svc := agents.NewService(store.NewMongoAgentStore(db.DB.Collection("vendedores")))
	agent, err := svc.Create(ctx, agents.CreateRequest{
		Name:     *name,
		Login:    *login,
		Password: *password,
		Role:     models.Role(*role),
	})
	if err != nil {
		log.Error("failed to create agent", "err", err)
		os.Exit(1)
	}

	fmt.Printf("created %s (%s) with role %s, id %s\n",
		agent.Name, agent.Login, agent.Role, agent.ID.Hex())
}
