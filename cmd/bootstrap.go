package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/greatsami/g-drive-clone/config"
	"github.com/greatsami/g-drive-clone/database"
	"github.com/greatsami/g-drive-clone/logger"
	"github.com/greatsami/g-drive-clone/notify"
	"github.com/greatsami/g-drive-clone/repositories"
	"github.com/greatsami/g-drive-clone/services"
	"github.com/greatsami/g-drive-clone/storage"

	"go.uber.org/zap"
)

type app struct {
	cfg      *config.Config
	services *services.Container
	closers  []io.Closer
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			logger.L().Warn("close failed", zap.Error(err))
		}
	}
}

// inProcessQueue reports whether replication units live only in this process.
func (a *app) inProcessQueue() bool {
	return a.cfg.Replication.Queue == "memory"
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg := config.AppConfig

	if cfg.Replication.Queue == "redis" {
		if err := database.InitRedis(&cfg.Redis); err != nil {
			return nil, err
		}
	}

	tiers, err := buildTiers(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	var notifier services.ShareNotifier = notify.LogShareNotifier{}
	if cfg.Kafka.Enabled {
		kafkaNotifier := notify.NewKafkaShareNotifier(cfg.Kafka.Brokers, cfg.Kafka.ShareTopic)
		notifier = kafkaNotifier
		a.closers = append(a.closers, kafkaNotifier)
		logger.L().Info("kafka share notifications enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}
	if database.RedisClient != nil {
		a.closers = append(a.closers, database.RedisClient)
	}

	repos := repositories.NewGormRepositories(database.DB, database.RedisClient, cfg.Replication.QueueKey).BuildContainer()
	a.services = services.NewContainer(repos, tiers, notifier)
	return a, nil
}

func buildTiers(ctx context.Context, cfg *config.Config) (storage.Tiers, error) {
	local, err := storage.NewLocalStore(cfg.Storage.BasePath)
	if err != nil {
		return storage.Tiers{}, fmt.Errorf("init local tier: %w", err)
	}

	if !cfg.Remote.Enabled {
		mirror, err := storage.NewLocalStore(cfg.Remote.LocalMirrorPath)
		if err != nil {
			return storage.Tiers{}, fmt.Errorf("init remote mirror: %w", err)
		}
		logger.L().Warn("remote tier disabled, replicating to a local directory", zap.String("path", cfg.Remote.LocalMirrorPath))
		return storage.Tiers{Local: local, Remote: mirror}, nil
	}

	remote, err := storage.NewMinioStore(ctx, storage.MinioOptions{
		Endpoint:  cfg.Remote.Endpoint,
		AccessKey: cfg.Remote.AccessKey,
		SecretKey: cfg.Remote.SecretKey,
		Bucket:    cfg.Remote.Bucket,
		Region:    cfg.Remote.Region,
		Secure:    cfg.Remote.Secure,
	})
	if err != nil {
		return storage.Tiers{}, fmt.Errorf("init remote tier: %w", err)
	}
	return storage.Tiers{Local: local, Remote: remote}, nil
}
