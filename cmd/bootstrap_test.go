package cmd

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/greatsami/g-drive-clone/config"
	"github.com/greatsami/g-drive-clone/storage"
)

func TestBuildTiersFallsBackToLocalMirror(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.BasePath = filepath.Join(dir, "local")
	cfg.Remote.LocalMirrorPath = filepath.Join(dir, "mirror")
	config.ApplyDefaults(cfg)

	tiers, err := buildTiers(context.Background(), cfg)
	if err != nil {
		t.Fatalf("build tiers failed: %v", err)
	}
	ctx := context.Background()
	if err := tiers.Remote.Put(ctx, "files/1/a.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if ok, _ := tiers.Local.Exists(ctx, "files/1/a.txt"); ok {
		t.Fatalf("remote mirror must not share the local tier directory")
	}
	mirror, ok := tiers.Remote.(*storage.LocalStore)
	if !ok || mirror.Root() != cfg.Remote.LocalMirrorPath {
		t.Fatalf("expected a local mirror at %s, got %#v", cfg.Remote.LocalMirrorPath, tiers.Remote)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	want := map[string]bool{"serve": false, "worker": false, "replicate": false, "requeue": false, "migrate": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing %s command", name)
		}
	}
}
