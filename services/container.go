package services

import (
	"time"

	"github.com/greatsami/g-drive-clone/repositories"
	"github.com/greatsami/g-drive-clone/storage"
)

type Container struct {
	User        UserService
	Folder      FolderService
	File        FileService
	Trash       TrashService
	Favourite   FavouriteService
	Share       ShareService
	Archive     ArchiveService
	Replication ReplicationService
	Cleanup     CleanupService
	Workers     *ReplicationWorkerPool
}

func NewContainer(repos repositories.Container, tiers storage.Tiers, notifier ShareNotifier) *Container {
	locks := newTreeMutex()
	cfg := currentConfig()

	folders := NewFolderService(repos.TxManager, repos.Tree, repos.Files, locks)
	p := &purger{
		txManager: repos.TxManager,
		tree:      repos.Tree,
		files:     repos.Files,
		stars:     repos.Stars,
		shares:    repos.Shares,
		tiers:     tiers,
		locks:     locks,
	}
	replication := NewReplicationService(repos.Files, repos.Queue, tiers)

	return &Container{
		User:        NewUserService(repos.TxManager, repos.Users, repos.Tree, repos.Files, locks),
		Folder:      folders,
		File:        NewFileService(repos.TxManager, repos.Tree, repos.Files, repos.Stars, repos.Queue, tiers, locks, folders),
		Trash:       NewTrashService(repos.TxManager, repos.Files, p),
		Favourite:   NewFavouriteService(repos.TxManager, repos.Files, repos.Stars),
		Share:       NewShareService(repos.TxManager, repos.Users, repos.Files, repos.Shares, folders, notifier),
		Archive:     NewArchiveService(repos.TxManager, repos.Tree, repos.Files, repos.Shares, tiers, folders),
		Replication: replication,
		Cleanup:     NewCleanupService(repos.Files, p, replication),
		Workers: NewReplicationWorkerPool(repos.Queue, replication, ReplicationWorkerOptions{
			Workers:  cfg.Replication.WorkerCount,
			RetryMax: cfg.Replication.RetryMax,
			Backoff:  time.Duration(cfg.Replication.RetryBackoffMs) * time.Millisecond,
		}),
	}
}
