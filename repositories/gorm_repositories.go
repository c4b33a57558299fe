package repositories

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type GormTxManager struct {
	db *gorm.DB
}

func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

func (m *GormTxManager) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}

type GormRepositories struct {
	db       *gorm.DB
	redis    *redis.Client
	queueKey string
}

// NewGormRepositories wires the gorm repositories. A nil redis client selects
// the in-memory replication queue.
func NewGormRepositories(db *gorm.DB, redisClient *redis.Client, queueKey string) *GormRepositories {
	return &GormRepositories{db: db, redis: redisClient, queueKey: queueKey}
}

func (r *GormRepositories) BuildContainer() Container {
	var queue ReplicationQueue
	if r.redis != nil {
		queue = NewRedisReplicationQueue(r.redis, r.queueKey)
	} else {
		queue = NewMemoryReplicationQueue(1024)
	}
	return Container{
		TxManager: NewGormTxManager(r.db),
		Users:     NewGormUserRepository(r.db),
		Tree:      NewGormTreeRepository(r.db),
		Files:     NewGormFileRepository(r.db),
		Stars:     NewGormStarRepository(r.db),
		Shares:    NewGormShareRepository(r.db),
		Queue:     queue,
	}
}

func useTx(db *gorm.DB, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

func likePattern(search string) string {
	return "%" + search + "%"
}
