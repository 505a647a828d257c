package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"iconresolve/internal/config"
	"iconresolve/internal/logging"
	"iconresolve/internal/probe"
	artifactrepo "iconresolve/internal/repository/artifact"
)

type iconServer struct {
	mu     sync.Mutex
	exists map[string]bool
}

func (s *iconServer) set(path string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists[path] = ok
}

func (s *iconServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ok := s.exists[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func newTestConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "platforms.txt"), []byte("nes\nsnes\nn64\n"), 0o644); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	return &config.Config{
		Env:         "local",
		BaseURL:     baseURL,
		Variants:    []string{"svg", "png"},
		Timeout:     time.Second,
		Root:        root,
		CatalogPath: "platforms.txt",
		OutputPath:  "generated/platform_icons.yaml",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

func newTestApp(t *testing.T, cfg *config.Config, srv *httptest.Server) *App {
	t.Helper()
	checker, err := probe.NewHTTPChecker(probe.WithClient(srv.Client()))
	if err != nil {
		t.Fatalf("checker: %v", err)
	}
	a, err := New(context.Background(), cfg, WithChecker(checker), WithLogger(logging.Noop()))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestRunWritesTableToFileStore(t *testing.T) {
	icons := &iconServer{exists: map[string]bool{"/nes.svg": true, "/snes.png": true}}
	srv := httptest.NewServer(icons)
	defer srv.Close()

	cfg := newTestConfig(t, srv.URL)
	report, err := newTestApp(t, cfg, srv).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.Written || report.Entities != 3 || report.Resolved != 2 || report.Unresolved != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.ByVariant["svg"] != 1 || report.ByVariant["png"] != 1 {
		t.Fatalf("unexpected variant counts: %v", report.ByVariant)
	}
	// nes stops after svg, snes and n64 need both checks.
	if report.Checks.Checks != 5 {
		t.Fatalf("expected 5 checks, got %+v", report.Checks)
	}

	data, err := os.ReadFile(filepath.Join(cfg.Root, "generated", "platform_icons.yaml"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	text := string(data)
	nes := strings.Index(text, "nes: \"svg\"\n")
	snes := strings.Index(text, "snes: \"png\"\n")
	n64 := strings.Index(text, "n64: null\n")
	if nes < 0 || snes < 0 || n64 < 0 || !(nes < snes && snes < n64) {
		t.Fatalf("unexpected table:\n%s", text)
	}
	if !strings.Contains(report.String(), "wrote generated/platform_icons.yaml") {
		t.Fatalf("unexpected summary %q", report.String())
	}
}

func TestRunIsIdempotentAndCheckModeDetectsDrift(t *testing.T) {
	icons := &iconServer{exists: map[string]bool{"/nes.svg": true}}
	srv := httptest.NewServer(icons)
	defer srv.Close()

	cfg := newTestConfig(t, srv.URL)
	store := artifactrepo.NewMemoryStore()
	checker, err := probe.NewHTTPChecker(probe.WithClient(srv.Client()))
	if err != nil {
		t.Fatalf("checker: %v", err)
	}
	run := func(check bool) (Report, error) {
		c := *cfg
		c.Check = check
		a, err := New(context.Background(), &c, WithChecker(checker), WithStore(store), WithLogger(logging.Noop()))
		if err != nil {
			t.Fatalf("new app: %v", err)
		}
		return a.Run(context.Background())
	}

	if _, err := run(true); !errors.Is(err, ErrDrift) {
		t.Fatalf("expected drift before first write, got %v", err)
	}
	if _, err := run(false); err != nil {
		t.Fatalf("write: %v", err)
	}
	first, _ := store.Get(context.Background(), "local", cfg.OutputPath)
	if _, err := run(false); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	second, _ := store.Get(context.Background(), "local", cfg.OutputPath)
	if string(first) != string(second) {
		t.Fatalf("re-run changed output:\n%s\n---\n%s", first, second)
	}

	report, err := run(true)
	if err != nil || report.Stale {
		t.Fatalf("expected up-to-date table, stale=%v err=%v", report.Stale, err)
	}

	icons.set("/n64.png", true)
	report, err = run(true)
	if !errors.Is(err, ErrDrift) {
		t.Fatalf("expected drift, got %v", err)
	}
	if len(report.Changes) != 1 || report.Changes[0].ID != "n64" {
		t.Fatalf("unexpected changes %+v", report.Changes)
	}
	if report.Written {
		t.Fatalf("check mode must not write")
	}
}

func TestRunWithUnreachableHostYieldsAllUnresolved(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	cfg := newTestConfig(t, base)
	checker, err := probe.NewHTTPChecker()
	if err != nil {
		t.Fatalf("checker: %v", err)
	}
	a, err := New(context.Background(), cfg, WithChecker(checker), WithStore(artifactrepo.NewMemoryStore()), WithLogger(logging.Noop()))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	report, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("run must not fail on probe errors: %v", err)
	}
	if report.Entities != 3 || report.Unresolved != 3 || report.Checks.Transport != 6 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRunFailsOnBadCatalog(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cfg := newTestConfig(t, srv.URL)
	if err := os.WriteFile(filepath.Join(cfg.Root, "platforms.txt"), []byte("nes\nnes\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := newTestApp(t, cfg, srv).Run(context.Background()); err == nil {
		t.Fatalf("expected duplicate catalog error")
	}
}

func TestChooseArtifactStorePrefersS3(t *testing.T) {
	cfg := &config.Config{Artifact: config.ArtifactConfig{
		Endpoint: "minio:9000", AccessKey: "a", SecretKey: "b", Bucket: "icons",
	}}
	called := false
	factory := func() (artifactrepo.Store, error) {
		called = true
		return artifactrepo.NewMemoryStore(), nil
	}
	store, err := chooseArtifactStore(cfg, artifactrepo.NewMemoryStore(), "file", factory, logging.Noop())
	if err != nil || store == nil || !called {
		t.Fatalf("expected s3 factory to be used: store=%v err=%v called=%v", store, err, called)
	}

	called = false
	cfg.Artifact.SecretKey = ""
	if _, err := chooseArtifactStore(cfg, artifactrepo.NewMemoryStore(), "file", factory, logging.Noop()); err != nil || called {
		t.Fatalf("expected fallback store: err=%v called=%v", err, called)
	}
}

func TestRepeatedRunsReadThroughCacheAndSkipUnchangedWrites(t *testing.T) {
	icons := &iconServer{exists: map[string]bool{"/nes.svg": true}}
	srv := httptest.NewServer(icons)
	defer srv.Close()

	cfg := newTestConfig(t, srv.URL)
	a := newTestApp(t, cfg, srv)
	ctx := context.Background()

	first, err := a.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !first.Written || !first.Missing || first.Cache.OriginWrites != 1 || first.Cache.BlobMisses != 1 {
		t.Fatalf("unexpected first report %+v", first)
	}

	second, err := a.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Written || second.Stale {
		t.Fatalf("unchanged table must not be rewritten: %+v", second)
	}
	if second.Cache.BlobHits != 1 || second.Cache.OriginReads != 0 || second.Cache.OriginWrites != 0 {
		t.Fatalf("expected stored table from cache, got %+v", second.Cache)
	}
	// Counters cover one run: nes stops after svg, snes and n64 need both.
	if second.Checks.Checks != 5 {
		t.Fatalf("expected per-run check count, got %+v", second.Checks)
	}
	if !strings.Contains(second.String(), "1 cached reads") {
		t.Fatalf("unexpected summary %q", second.String())
	}

	icons.set("/n64.png", true)
	third, err := a.Run(ctx)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if !third.Written || len(third.Changes) != 1 || third.Changes[0].ID != "n64" || third.Cache.BlobHits != 1 {
		t.Fatalf("unexpected third report %+v", third)
	}
	data, err := os.ReadFile(filepath.Join(cfg.Root, "generated", "platform_icons.yaml"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "n64: \"png\"\n") {
		t.Fatalf("table not rewritten:\n%s", data)
	}
}

func TestCheckModeNamesStoredTablesWhenOutputMissing(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cfg := newTestConfig(t, srv.URL)
	cfg.Check = true
	store := artifactrepo.NewMemoryStore()
	ctx := context.Background()
	for _, p := range []string{"icons/old_platform_icons.yaml", "notes.txt"} {
		if err := store.Put(ctx, "local", p, []byte("x")); err != nil {
			t.Fatalf("seed %s: %v", p, err)
		}
	}
	checker, err := probe.NewHTTPChecker(probe.WithClient(srv.Client()))
	if err != nil {
		t.Fatalf("checker: %v", err)
	}
	a, err := New(ctx, cfg, WithChecker(checker), WithStore(store), WithLogger(logging.Noop()))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	report, err := a.Run(ctx)
	if !errors.Is(err, ErrDrift) {
		t.Fatalf("expected drift, got %v", err)
	}
	if !report.Missing || len(report.Stored) != 1 || report.Stored[0] != "icons/old_platform_icons.yaml" {
		t.Fatalf("unexpected report %+v", report)
	}
	if !strings.Contains(report.String(), "stored: icons/old_platform_icons.yaml") {
		t.Fatalf("unexpected summary %q", report.String())
	}
}

func TestWatchRunsUntilCancelled(t *testing.T) {
	icons := &iconServer{exists: map[string]bool{"/nes.svg": true}}
	srv := httptest.NewServer(icons)
	defer srv.Close()

	a := newTestApp(t, newTestConfig(t, srv.URL), srv)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reports []Report
	err := a.Watch(ctx, 5*time.Millisecond, func(r Report, err error) {
		if err != nil {
			t.Errorf("run %d: %v", len(reports), err)
		}
		reports = append(reports, r)
		if len(reports) == 3 {
			cancel()
		}
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(reports))
	}
	if !reports[0].Written || reports[1].Written || reports[2].Written {
		t.Fatalf("only the first run should write: %v %v %v", reports[0].Written, reports[1].Written, reports[2].Written)
	}
	if reports[2].Cache.BlobHits != 1 {
		t.Fatalf("expected cached read, got %+v", reports[2].Cache)
	}

	if err := a.Watch(ctx, 0, nil); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}
