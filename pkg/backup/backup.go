package backup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"SafeStack/pkg/logger"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const filePrefix = "safestack_backup_"

// Backup 数据库备份；sqlite 走 VACUUM INTO，mysql 走 mysqldump
type Backup struct {
	Driver string
	DSN    string
	DB     *gorm.DB
	Dir    string
	// Keep 保留最近的份数，0 表示全部保留
	Keep int

	now func() time.Time
}

func New(driver, dsn string, db *gorm.DB, dir string, keep int) *Backup {
	return &Backup{Driver: driver, DSN: dsn, DB: db, Dir: dir, Keep: keep, now: time.Now}
}

// Run 执行一次备份，返回备份文件路径
func (b *Backup) Run(ctx context.Context) (string, error) {
	if err := os.MkdirAll(b.Dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	stamp := b.now().Format("20060102_150405")

	var dst string
	var err error
	switch b.Driver {
	case "", "sqlite":
		dst = filepath.Join(b.Dir, filePrefix+stamp+".db")
		err = BackupSQLiteDatabase(ctx, b.DB, dst)
	case "mysql":
		dst = filepath.Join(b.Dir, filePrefix+stamp+".sql")
		err = BackupMySQLDatabase(ctx, b.DSN, dst)
	default:
		return "", fmt.Errorf("unsupported DB_DRIVER: %s", b.Driver)
	}
	if err != nil {
		return "", err
	}

	if b.Keep > 0 {
		if err := b.prune(); err != nil {
			logger.Warn("prune backups failed", zap.Error(err))
		}
	}
	return dst, nil
}

// Job 供 cron 调用
func (b *Backup) Job(ctx context.Context) {
	dst, err := b.Run(ctx)
	if err != nil {
		logger.Warn("backup failed", zap.Error(err))
		return
	}
	logger.Info("backup completed", zap.String("path", dst))
}

func (b *Backup) prune() error {
	matches, err := filepath.Glob(filepath.Join(b.Dir, filePrefix+"*"))
	if err != nil {
		return err
	}
	if len(matches) <= b.Keep {
		return nil
	}
	// 时间戳在文件名里，字典序即时间序
	sort.Strings(matches)
	for _, f := range matches[:len(matches)-b.Keep] {
		if err := os.Remove(f); err != nil {
			return err
		}
	}
	return nil
}

// BackupSQLiteDatabase writes a consistent snapshot of the open database to dst.
func BackupSQLiteDatabase(ctx context.Context, db *gorm.DB, dst string) error {
	if db == nil {
		return fmt.Errorf("sqlite backup needs an open database")
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("backup target %s already exists", dst)
	}
	if err := db.WithContext(ctx).Exec("VACUUM INTO ?", dst).Error; err != nil {
		return fmt.Errorf("failed to backup SQLite database: %w", err)
	}
	return nil
}

// BackupMySQLDatabase 使用 mysqldump 执行备份
func BackupMySQLDatabase(ctx context.Context, dsn, dst string) error {
	args, err := mysqldumpArgs(dsn)
	if err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating destination file: %w", err)
	}
	defer out.Close()

	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, "mysqldump", args...)
	cmd.Stdout = out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to backup MySQL database: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func mysqldumpArgs(dsn string) ([]string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("mysql dsn has no database name")
	}
	args := []string{"--single-transaction", "--routines"}
	if cfg.User != "" {
		args = append(args, "--user="+cfg.User)
	}
	if cfg.Passwd != "" {
		args = append(args, "--password="+cfg.Passwd)
	}
	if cfg.Net == "unix" {
		args = append(args, "--socket="+cfg.Addr)
	} else if cfg.Addr != "" {
		host, port := cfg.Addr, ""
		if i := strings.LastIndex(cfg.Addr, ":"); i >= 0 {
			host, port = cfg.Addr[:i], cfg.Addr[i+1:]
		}
		args = append(args, "--host="+host)
		if port != "" {
			args = append(args, "--port="+port)
		}
	}
	return append(args, cfg.DBName), nil
}
