// Command exportreport writes the performance spreadsheet to a file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jordanlanch/salesbot/config"
	"github.com/jordanlanch/salesbot/pkg/database"
	"github.com/jordanlanch/salesbot/pkg/export"
	"github.com/jordanlanch/salesbot/pkg/logger"
	"github.com/jordanlanch/salesbot/pkg/store"
)

func main() {
	out := flag.String("out", "", "output path (default desempenho_<date>.xlsx)")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	path := *out
	if path == "" {
		path = fmt.Sprintf("desempenho_%s.xlsx", time.Now().Format("20060102"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Error("failed to connect to mongodb", "err", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())

	svc := export.NewService(
		store.NewMongoLeadStore(db.DB.Collection("clientes")),
		store.NewMongoAgentStore(db.DB.Collection("vendedores")),
	)

	f, err := os.Create(path)
	if err != nil {
		log.Error("failed to create output file", "err", err)
		os.Exit(1)
	}
	defer f.Close()

	n, err := svc.WritePerformance(ctx, f)
	if err != nil {
		log.Error("export failed", "err", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d finalized leads to %s\n", n, path)
}
