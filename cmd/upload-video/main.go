package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"SafeStack/internal/models"
	"SafeStack/pkg/config"
	"SafeStack/pkg/logger"
	stores "SafeStack/pkg/storage"
	"SafeStack/pkg/util"

	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "", "local video file")
	name := flag.String("name", "", "object name, defaults to the file's base name")
	save := flag.Bool("save", false, "also record the URL in the videos table")
	flag.Parse()
	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: upload-video -file <video> [-name custom.mp4] [-save]")
		os.Exit(2)
	}

	if err := config.Load(); err != nil {
		panic(err)
	}
	cfg := config.GlobalConfig
	if err := logger.Init(cfg.Log, "debug"); err != nil {
		panic(err)
	}
	defer logger.Sync()

	store, err := stores.NewStore(cfg.StorageKind)
	if err != nil {
		logger.Error("init storage failed", zap.Error(err))
		os.Exit(1)
	}
	url, err := uploadVideo(context.Background(), store, *file, *name)
	if err != nil {
		logger.Error("upload failed", zap.String("file", *file), zap.Error(err))
		os.Exit(1)
	}
	logger.Info("video uploaded", zap.String("url", url))

	if *save {
		db, err := util.InitDatabase(cfg.DBDriver, cfg.DSN)
		if err != nil {
			logger.Error("open database failed", zap.Error(err))
			os.Exit(1)
		}
		if err := models.Migrate(db); err != nil {
			logger.Error("migrate failed", zap.Error(err))
			os.Exit(1)
		}
		v, err := saveVideo(db, url)
		if err != nil {
			logger.Error("save video failed", zap.Error(err))
			os.Exit(1)
		}
		fmt.Printf("video id: %d\n", v.ID)
	}
	fmt.Printf("public url: %s\n", url)
}
