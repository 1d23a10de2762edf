package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/shiori/internal/cli"
	"github.com/hyperjump/shiori/internal/config"
	"github.com/hyperjump/shiori/internal/indexer"
	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/internal/search"
	"github.com/hyperjump/shiori/internal/server"
	"github.com/hyperjump/shiori/internal/storage"
	"github.com/hyperjump/shiori/internal/watcher"
	"github.com/hyperjump/shiori/pkg/utils"
	"go.uber.org/zap"
)

const tokenEnv = "SHIORI_TOKEN"

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("auth_mode", cfg.Auth.Mode))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	if len(cfg.Import.Directories) > 0 {
		w := watcher.New(
			cfg.Import.Directories,
			cfg.Import.Extensions,
			cfg.Import.RecursiveOrDefault(),
			components.Indexer,
			watcher.WithLogger(logger),
		)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
		go w.Sync()
		logger.Info("import watcher started",
			zap.Strings("directories", cfg.Import.Directories),
			zap.String("owner", cfg.Import.Owner))
	}

	srv := server.NewServer(components.Engine, cfg, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// backend is what client commands need, served either over HTTP or by
// opening the storage directly.
type backend interface {
	Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error)
	Cluster(ctx context.Context, req *models.ClusterRequest) (*models.ClusterResponse, error)
	CreateNote(ctx context.Context, input *models.NoteInput) (*models.Note, error)
	Status(ctx context.Context) (*models.Status, error)
}

// directBackend runs commands against a local engine as a single owner.
type directBackend struct {
	engine *search.Engine
	cfg    *config.Config
	owner  string
}

func (d *directBackend) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	return d.engine.Search(ctx, d.owner, q)
}

func (d *directBackend) Cluster(ctx context.Context, req *models.ClusterRequest) (*models.ClusterResponse, error) {
	return d.engine.Cluster(ctx, d.owner, req)
}

func (d *directBackend) CreateNote(ctx context.Context, input *models.NoteInput) (*models.Note, error) {
	return d.engine.CreateNote(ctx, d.owner, input)
}

func (d *directBackend) Status(ctx context.Context) (*models.Status, error) {
	status, err := d.engine.Status(ctx, d.owner)
	if err != nil {
		return nil, err
	}
	if d.cfg.Storage.Driver == config.DriverSQLite {
		if n, err := storage.DatabaseSize(d.cfg.Storage.DatabasePath); err == nil {
			status.DiskUsageBytes = n
		}
	}
	return status, nil
}

// clientFlags are shared by the client commands.
type clientFlags struct {
	configPath string
	serverURL  string
	token      string
	user       string
	output     string
}

func addClientFlags(fs *flag.FlagSet) *clientFlags {
	f := &clientFlags{}
	fs.StringVar(&f.configPath, "config", defaultConfigPath, "config file path (direct storage mode)")
	fs.StringVar(&f.serverURL, "server", "http://localhost:8080", "server URL (empty = open the storage directly)")
	fs.StringVar(&f.token, "token", os.Getenv(tokenEnv), "bearer token for token auth mode")
	fs.StringVar(&f.user, "user", "", "user id (development auth mode or direct storage)")
	fs.StringVar(&f.output, "output", "text", "output format: text or json")
	return f
}

// open returns the backend selected by the flags and a cleanup function.
func (f *clientFlags) open(ctx context.Context) (backend, *Components, func(), error) {
	if f.serverURL != "" {
		return newAPIClient(f.serverURL, f.token, f.user), nil, func() {}, nil
	}
	cfg, _, err := loadConfig(f.configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, err
	}
	owner := f.user
	if owner == "" {
		owner = cfg.Auth.DefaultUser
	}
	cleanup := func() {
		components.Close()
		_ = logger.Sync()
	}
	return &directBackend{engine: components.Engine, cfg: cfg, owner: owner}, components, cleanup, nil
}

func optionalInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func runSearch(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	common := addClientFlags(fs)
	k := fs.Int("k", 0, "number of results, 1-50 (0 = server default)")
	book := fs.String("book", "", "only search notes of this book")
	if err := fs.Parse(argsReorder(args)); err != nil {
		return err
	}
	query := joinArgs(fs.Args())
	if query == "" {
		return errors.New("usage: shiori search [flags] <query>")
	}
	format, err := cli.ParseFormat(common.output)
	if err != nil {
		return err
	}

	ctx := context.Background()
	b, _, cleanup, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := b.Search(ctx, &models.SearchQuery{Query: query, K: optionalInt(*k), BookID: optionalString(*book)})
	if err != nil {
		return err
	}
	return cli.WriteSearchResults(out, resp, format)
}

func runCluster(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("cluster", flag.ContinueOnError)
	common := addClientFlags(fs)
	k := fs.Int("k", 0, "number of clusters, 2-20 (0 = server default)")
	per := fs.Int("per-cluster", 0, "representatives per cluster, 1-10 (0 = server default)")
	book := fs.String("book", "", "only cluster notes of this book")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseFormat(common.output)
	if err != nil {
		return err
	}

	ctx := context.Background()
	b, _, cleanup, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := b.Cluster(ctx, &models.ClusterRequest{
		K:          optionalInt(*k),
		PerCluster: optionalInt(*per),
		BookID:     optionalString(*book),
	})
	if err != nil {
		return err
	}
	return cli.WriteClusters(out, resp, format)
}

func runAdd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	common := addClientFlags(fs)
	book := fs.String("book", "", "attach the note to this book")
	file := fs.Bool("file", false, "import the argument as a file or directory (direct storage only)")
	if err := fs.Parse(argsReorder(args)); err != nil {
		return err
	}
	text := joinArgs(fs.Args())
	if text == "" {
		return errors.New("usage: shiori add [flags] <text|path>")
	}
	format, err := cli.ParseFormat(common.output)
	if err != nil {
		return err
	}
	if *file && common.serverURL != "" {
		return errors.New("--file imports need direct storage; pass --server \"\"")
	}

	ctx := context.Background()
	b, components, cleanup, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if *file {
		owner := b.(*directBackend).owner
		bookID := *book
		if bookID == "" {
			bookID = components.Config.Import.BookID
		}
		idx := indexer.NewIndexer(components.Engine, owner, indexer.WithBook(bookID))
		return importPath(ctx, idx, components.Config.Import, text, out)
	}
	note, err := b.CreateNote(ctx, &models.NoteInput{Text: text, BookID: optionalString(*book)})
	if err != nil {
		return err
	}
	return cli.WriteNote(out, note, format)
}

func importPath(ctx context.Context, idx *indexer.Indexer, cfg config.ImportConfig, path string, out io.Writer) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		n, err := idx.IndexDirectory(ctx, path, cfg.Extensions, cfg.RecursiveOrDefault())
		if err != nil {
			return fmt.Errorf("import directory: %w", err)
		}
		fmt.Fprintf(out, "Imported %d file(s) from %s\n", n, path)
		return nil
	}
	if err := idx.IndexFile(ctx, path, nil); err != nil {
		return err
	}
	id, _ := idx.NoteID(path)
	fmt.Fprintf(out, "Imported note %s\n", id)
	return nil
}

func runStatus(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	common := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseFormat(common.output)
	if err != nil {
		return err
	}

	ctx := context.Background()
	b, _, cleanup, err := common.open(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	status, err := b.Status(ctx)
	if err != nil {
		return err
	}
	return cli.WriteStatus(out, status, format)
}
