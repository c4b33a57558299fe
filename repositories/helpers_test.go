package repositories

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/greatsami/g-drive-clone/database"
	"github.com/greatsami/g-drive-clone/models"

	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), false)
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func insert(t *testing.T, db *gorm.DB, tree *GormTreeRepository, parentID uint, name string, folder bool) models.File {
	t.Helper()
	node := models.File{Name: name, IsFolder: folder, Replication: models.ReplicationNone}
	if !folder {
		node.StoragePath = "files/" + name
		node.Replication = models.ReplicationPending
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return tree.InsertUnder(context.Background(), tx, parentID, &node)
	})
	if err != nil {
		t.Fatalf("insert %s failed: %v", name, err)
	}
	return node
}

func reload(t *testing.T, db *gorm.DB, id uint) models.File {
	t.Helper()
	var f models.File
	if err := db.Unscoped().First(&f, id).Error; err != nil {
		t.Fatalf("reload %d failed: %v", id, err)
	}
	return f
}

// assertNestedSet checks every row of the owner's tree: unique bounds forming
// 1..2n, lft < rgt, and each node's parent being its tightest enclosing node.
func assertNestedSet(t *testing.T, db *gorm.DB, userID uint) {
	t.Helper()
	var rows []models.File
	if err := db.Unscoped().Where("user_id = ?", userID).Order("lft ASC").Find(&rows).Error; err != nil {
		t.Fatalf("load tree failed: %v", err)
	}
	seen := map[int]bool{}
	for _, r := range rows {
		if r.Lft >= r.Rgt {
			t.Fatalf("node %d has lft %d >= rgt %d", r.ID, r.Lft, r.Rgt)
		}
		if seen[r.Lft] || seen[r.Rgt] {
			t.Fatalf("node %d reuses a bound (%d, %d)", r.ID, r.Lft, r.Rgt)
		}
		seen[r.Lft], seen[r.Rgt] = true, true
	}
	for i := 1; i <= 2*len(rows); i++ {
		if !seen[i] {
			t.Fatalf("bound %d missing from %d-node tree", i, len(rows))
		}
	}
	for _, r := range rows {
		var parent *models.File
		for i := range rows {
			c := rows[i]
			if c.Lft < r.Lft && r.Rgt < c.Rgt && (parent == nil || c.Lft > parent.Lft) {
				parent = &rows[i]
			}
		}
		switch {
		case parent == nil && r.ParentID != nil:
			t.Fatalf("node %d has parent_id %d but no enclosing node", r.ID, *r.ParentID)
		case parent != nil && (r.ParentID == nil || *r.ParentID != parent.ID):
			t.Fatalf("node %d is enclosed by %d but parent_id is %v", r.ID, parent.ID, r.ParentID)
		case parent != nil && !parent.IsFolder:
			t.Fatalf("leaf %d has child %d", parent.ID, r.ID)
		}
	}
}
