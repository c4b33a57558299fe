package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/greatsami/g-drive-clone/config"
	"github.com/greatsami/g-drive-clone/logger"
	"github.com/greatsami/g-drive-clone/models"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB
var RedisClient *redis.Client

func Init(cfg *config.DatabaseConfig) error {
	switch cfg.Driver {
	case "sqlite":
		db, err := OpenSQLite(cfg.SQLitePath, cfg.LogQueries)
		if err != nil {
			return err
		}
		DB = db
		return nil
	case "mysql", "":
		return InitMySQL(cfg)
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func InitMySQL(cfg *config.DatabaseConfig) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.Charset)

	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:                                   gormLogger(cfg.LogQueries),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	logger.L().Info("mysql connected", zap.String("host", cfg.Host), zap.String("database", cfg.Database))
	return nil
}

// OpenSQLite opens a file-backed SQLite database. SQLite has no row locks,
// so writers are serialized by the busy timeout and the services' tree mutex.
func OpenSQLite(path string, logQueries bool) (*gorm.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormLogger(logQueries),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

func InitRedis(cfg *config.RedisConfig) error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := RedisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	logger.L().Info("redis connected", zap.String("host", cfg.Host), zap.Int("db", cfg.DB))
	return nil
}

func gormLogger(logQueries bool) gormlogger.Interface {
	level := gormlogger.Warn
	if logQueries {
		level = gormlogger.Info
	}
	return gormlogger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}
