package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"candleflow/internal/app"
	cfcfg "candleflow/internal/config"
	"candleflow/internal/logger"
	"candleflow/internal/market"
	"candleflow/internal/orchestrator"
)

func main() {
	var (
		cfgPath   = flag.String("config", envOr("CANDLEFLOW_CONFIG", "configs/config.yaml"), "path to config file")
		serveNode = flag.Bool("node", false, "run as a worker node instead of importing")
		symbols   = flag.String("symbols", "", "comma-separated symbols to import")
		mode      = flag.String("mode", "", "import mode (full/incremental/smart_fill/gap_fill), overrides config")
		startStr  = flag.String("start", "", "range start, YYYY-MM-DD")
		endStr    = flag.String("end", "", "range end, YYYY-MM-DD (default today)")
		discover  = flag.String("discover", "", "refresh the asset list for one asset class and exit")
	)
	flag.Parse()

	cfg, err := cfcfg.Load(*cfgPath)
	if err != nil {
		log.Fatalf("loading config failed: %v", err)
	}
	logger.SetLevel(cfg.App.LogLevel)
	if cfg.App.LogPath != "" {
		if err := logger.SetFile(cfg.App.LogPath); err != nil {
			log.Fatalf("initializing log file failed: %v", err)
		}
	}

	ic, err := app.Build(cfg)
	if err != nil {
		log.Fatalf("building import context failed: %v", err)
	}
	defer ic.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *serveNode:
		if err := ic.ServeNode(ctx); err != nil {
			log.Fatalf("node server failed: %v", err)
		}

	case *discover != "":
		class := market.AssetClass(*discover)
		if !class.Valid() {
			log.Fatalf("unknown asset class: %q", *discover)
		}
		count, err := ic.DiscoverAssets(ctx, class)
		if err != nil {
			log.Fatalf("asset discovery failed: %v", err)
		}
		logger.Infof("discovered %d assets for class %s", count, class)

	default:
		task, err := buildTask(cfg, *symbols, *mode, *startStr, *endStr)
		if err != nil {
			log.Fatalf("invalid import request: %v", err)
		}
		result, err := ic.RunImport(ctx, task)
		if err != nil {
			log.Fatalf("import failed to start: %v", err)
		}
		logger.Infof("task %s finished: %d ok, %d failed, %d dropped rows, %d records in %s",
			result.TaskID, result.Succeeded, result.Failed, result.DroppedRows,
			result.Records, result.Duration.Round(time.Millisecond))
		if result.Failed > 0 {
			os.Exit(1)
		}
	}
}

func buildTask(cfg *cfcfg.Config, symbolsCSV, modeFlag, startStr, endStr string) (*orchestrator.ImportTask, error) {
	var syms []string
	for _, s := range strings.Split(symbolsCSV, ",") {
		if s = strings.TrimSpace(s); s != "" {
			syms = append(syms, s)
		}
	}
	if len(syms) == 0 {
		return nil, fmt.Errorf("-symbols is required for an import run")
	}

	modeStr := modeFlag
	if modeStr == "" {
		modeStr = cfg.Import.Mode
	}
	mode, err := orchestrator.ParseMode(modeStr)
	if err != nil {
		return nil, err
	}
	freq, err := market.ParseFrequency(cfg.Import.Frequency)
	if err != nil {
		return nil, err
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	if endStr != "" {
		if end, err = time.ParseInLocation("2006-01-02", endStr, time.UTC); err != nil {
			return nil, fmt.Errorf("invalid -end: %w", err)
		}
	}
	start := end.AddDate(0, 0, -cfg.Import.LookbackDays)
	if startStr != "" {
		if start, err = time.ParseInLocation("2006-01-02", startStr, time.UTC); err != nil {
			return nil, fmt.Errorf("invalid -start: %w", err)
		}
	}
	dr, err := market.NewDateRange(start, end)
	if err != nil {
		return nil, err
	}
	return orchestrator.NewTask(syms, mode, freq, dr), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
