// Command importleads loads a client spreadsheet into the pending queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jordanlanch/salesbot/config"
	"github.com/jordanlanch/salesbot/pkg/database"
	"github.com/jordanlanch/salesbot/pkg/importer"
	"github.com/jordanlanch/salesbot/pkg/logger"
	"github.com/jordanlanch/salesbot/pkg/store"
)

func main() {
	var (
		file  = flag.String("file", "", "path to the .xlsx spreadsheet")
		batch = flag.String("batch", "", "batch name for the imported leads")
		wipe  = flag.Bool("wipe", false, "delete every stored lead before importing")
	)
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	if *file == "" || *batch == "" {
		fmt.Fprintln(os.Stderr, "usage: importleads -file PLANILHA.xlsx -batch NOME [-wipe]")
		os.Exit(2)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Error("failed to open spreadsheet", "err", err)
		os.Exit(1)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Error("failed to connect to mongodb", "err", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())

	svc := importer.NewService(
		store.NewMongoLeadStore(db.DB.Collection("clientes")),
		store.NewMongoBatchStore(db.DB.Collection("bases")),
	)

	result, err := svc.ImportXLSX(ctx, f, importer.Options{
		BatchName:    *batch,
		WipeExisting: *wipe,
	})
	if err != nil {
		log.Error("import failed", "err", err)
		os.Exit(1)
	}

	fmt.Printf("batch %q: %d rows, %d imported, %d skipped", result.BatchName,
		result.TotalRows, result.Imported, result.Skipped)
	if result.Wiped > 0 {
		fmt.Printf(", %d wiped", result.Wiped)
	}
	fmt.Println()
	for _, e := range result.Errors {
		fmt.Printf("  row %d: %s\n", e.Row, e.Message)
	}
}
