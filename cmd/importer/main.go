package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"storefront/internal/bootstrap"
	"storefront/internal/config"
	"storefront/internal/importer"
	"storefront/internal/logging"
	cartsvc "storefront/internal/service/cart"
)

func main() {
	var (
		filePath  string
		sessionID string
		format    string
	)
	flag.StringVar(&filePath, "file", "", "Path to a cart export (.csv or .json)")
	flag.StringVar(&sessionID, "session", "", "Session id whose cart receives the lines")
	flag.StringVar(&format, "format", "", "csv or json; defaults to the file extension")
	flag.Parse()

	if filePath == "" || sessionID == "" {
		flag.Usage()
		os.Exit(2)
	}
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, "importer")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	stores, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open stores", zap.Error(err))
	}
	defer stores.Close()

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.Error(err))
	}
	defer f.Close()

	imp := importer.New(cartsvc.New(stores.Carts, logger).Store(sessionID))

	start := time.Now()
	var count int
	switch format {
	case "csv":
		count, err = imp.ImportCSV(ctx, f)
	case "json":
		count, err = imp.ImportJSON(ctx, f)
	default:
		logger.Fatal("unsupported format", zap.String("format", format))
	}
	if err != nil {
		logger.Fatal("import failed", zap.Error(err))
	}

	fmt.Printf("Imported %d cart lines into session %s in %s\n", count, sessionID, time.Since(start).Truncate(time.Millisecond))
}
