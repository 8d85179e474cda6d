package main

import (
	"flag"
	"fmt"
	"os"

	"SafeStack/internal/models"
	"SafeStack/pkg/config"
	"SafeStack/pkg/logger"
	"SafeStack/pkg/util"

	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "policies_latest.json", "policy JSON file")
	replace := flag.Bool("replace", false, "delete existing policies and their alerts first")
	flag.Parse()

	if err := config.Load(); err != nil {
		panic(err)
	}
	cfg := config.GlobalConfig
	if err := logger.Init(cfg.Log, "debug"); err != nil {
		panic(err)
	}
	defer logger.Sync()

	data, err := os.ReadFile(*file)
	if err != nil {
		logger.Error("read policy file failed", zap.String("file", *file), zap.Error(err))
		os.Exit(1)
	}
	pf, err := parsePolicies(data)
	if err != nil {
		logger.Error("invalid policy file", zap.Error(err))
		os.Exit(1)
	}

	db, err := util.InitDatabase(cfg.DBDriver, cfg.DSN)
	if err != nil {
		logger.Error("open database failed", zap.Error(err))
		os.Exit(1)
	}
	if err := models.Migrate(db); err != nil {
		logger.Error("migrate failed", zap.Error(err))
		os.Exit(1)
	}

	n, err := importPolicies(db, pf, *replace)
	if err != nil {
		logger.Error("import failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("policies imported", zap.Int("count", n), zap.String("version", pf.Version))
	fmt.Printf("imported %d policies from %s\n", n, *file)
}
