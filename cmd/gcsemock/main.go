package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/gcsemock/internal/draft"
	"github.com/pavelanni/gcsemock/internal/handler"
	appI18n "github.com/pavelanni/gcsemock/internal/i18n"
	"github.com/pavelanni/gcsemock/internal/llm"
	"github.com/pavelanni/gcsemock/internal/llm/prompts"
	"github.com/pavelanni/gcsemock/internal/model"
	"github.com/pavelanni/gcsemock/internal/pdf"
	"github.com/pavelanni/gcsemock/internal/results"
	"github.com/pavelanni/gcsemock/internal/session"
	"github.com/pavelanni/gcsemock/internal/storage"
	"github.com/pavelanni/gcsemock/internal/store"
)

//go:generate templ generate

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gcsemock",
		Short: "GCSE English mock exams marked by LLMs",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), importCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `gcsemock --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "gcsemock.db", "SQLite database path")
	f.StringSliceP("papers", "p", []string{"papers/sample.json"}, "Paths to papers JSON files (repeatable)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Bool("llm-check", true, "Ping the LLM endpoint at startup")
	f.StringP("lang", "l", "en", "UI language")
	f.String("prompt-variant", string(prompts.PromptStandard), "Marking prompt variant (strict, standard, lenient)")
	f.String("admin-password", "", "Initial admin password (or set GCSEMOCK_ADMIN_PASSWORD)")
	f.String("jwt-secret", "", "HMAC secret for bearer tokens (random per run when empty)")
	f.Duration("token-ttl", 24*time.Hour, "Lifetime of login tokens")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("public-url", "http://localhost:8080", "Public URL prefix used in result links")
	f.String("draft-backend", "sqlite", "Where drafts autosave (sqlite, redis, memory)")
	f.String("redis-url", "redis://localhost:6379/0", "Redis URL for the redis draft backend")
	f.Duration("draft-ttl", 7*24*time.Hour, "Expiry of drafts in redis")
	f.String("storage-backend", "local", "Where result PDFs are stored (local, minio)")
	f.String("storage-dir", "data/files", "Directory for the local storage backend")
	f.String("minio-endpoint", "localhost:9000", "MinIO endpoint")
	f.String("minio-access-key", "", "MinIO access key")
	f.String("minio-secret-key", "", "MinIO secret key")
	f.String("minio-bucket", "gcsemock", "MinIO bucket for result PDFs")
	f.Bool("minio-use-ssl", false, "Use TLS for MinIO")
	f.Float64("ai-rate-limit", 2, "Marking service requests per second (0 disables limiting)")
	f.Int("ai-burst", 5, "Burst size for the marking service limiter")
	f.Duration("shutdown-timeout", 30*time.Second, "Grace period for in-flight requests on shutdown")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export marked results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "gcsemock.db", "SQLite database path")
	f.String("paper-type", "", "Only export results for this paper type")
	f.String("prompt-variant", string(prompts.PromptStandard), "Prompt variant included in export metadata")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-papers FILE...",
		Short: "Import exam papers from JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "gcsemock.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("GCSEMOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("gcsemock")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/gcsemock")
	v.AddConfigPath("/etc/gcsemock")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seedAdmin(ctx, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := importPapers(ctx, db, v.GetStringSlice("papers")); err != nil {
		return fmt.Errorf("load papers: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(promptVariant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", promptVariant)
		promptVariant = string(prompts.PromptStandard)
	}
	llmClient, err := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		prompts.PromptVariant(promptVariant),
	)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	if v.GetBool("llm-check") {
		if err := llmClient.Ping(ctx); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}

	drafts, err := draftStorage(ctx, v, db)
	if err != nil {
		return err
	}

	publicURL := strings.TrimRight(v.GetString("public-url"), "/")
	uploader, files, err := resultStorage(ctx, v, publicURL)
	if err != nil {
		return err
	}

	renderer := pdf.NewRenderer()
	persister := results.NewPersister(db, renderer, uploader, slog.Default())
	sessions := session.NewManager(drafts, llmClient, persister, slog.Default())
	defer sessions.Shutdown()

	secret := v.GetString("jwt-secret")
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		slog.Warn("no jwt-secret configured, tokens will not survive a restart")
	}

	examCfg := model.ExamConfig{
		PromptVariant: promptVariant,
		JWTSecret:     secret,
		TokenTTL:      v.GetDuration("token-ttl"),
		AIRateLimit:   v.GetFloat64("ai-rate-limit"),
		AIBurst:       v.GetInt("ai-burst"),
		PublicURL:     publicURL,
		SecureCookies: v.GetBool("secure-cookies"),
	}

	h, err := handler.New(handler.Deps{
		Store:     db,
		Gateway:   llmClient,
		Sessions:  sessions,
		Persister: persister,
		PDF:       renderer,
		Files:     files,
		Config:    examCfg,
		Logger:    slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	go cleanupAuthSessions(ctx, db, time.Hour)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
		"prompt_variant", promptVariant,
		"draft_backend", v.GetString("draft-backend"),
		"storage_backend", v.GetString("storage-backend"),
		"public_url", publicURL,
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down", "live_sessions", sessions.Len())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), v.GetDuration("shutdown-timeout"))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// draftStorage picks where sittings autosave their answers.
func draftStorage(ctx context.Context, v *viper.Viper, db *store.Store) (draft.Storage, error) {
	switch backend := strings.ToLower(v.GetString("draft-backend")); backend {
	case "", "sqlite":
		return db, nil
	case "memory":
		slog.Warn("drafts are kept in memory and will be lost on restart")
		return draft.NewMemoryStorage(), nil
	case "redis":
		client, err := draft.ConnectRedis(ctx, v.GetString("redis-url"))
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return draft.NewRedisStorage(client, v.GetDuration("draft-ttl")), nil
	default:
		return nil, fmt.Errorf("unknown draft backend %q", backend)
	}
}

// resultStorage picks where result PDFs go. files is non-nil when the server
// itself must serve them.
func resultStorage(ctx context.Context, v *viper.Viper, publicURL string) (results.Uploader, http.Handler, error) {
	switch backend := strings.ToLower(v.GetString("storage-backend")); backend {
	case "", "local":
		local, err := storage.NewLocal(v.GetString("storage-dir"), publicURL)
		if err != nil {
			return nil, nil, err
		}
		return local, http.FileServer(http.Dir(local.Dir())), nil
	case "minio":
		m, err := storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  v.GetString("minio-endpoint"),
			AccessKey: v.GetString("minio-access-key"),
			SecretKey: v.GetString("minio-secret-key"),
			Bucket:    v.GetString("minio-bucket"),
			UseSSL:    v.GetBool("minio-use-ssl"),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect minio: %w", err)
		}
		return m, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func cleanupAuthSessions(ctx context.Context, db *store.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.CleanupExpiredSessions(ctx); err != nil {
				slog.Warn("failed to clean up auth sessions", "error", err)
			}
		}
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := context.Background()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	paperType := v.GetString("paper-type")
	rows, err := db.ExportResults(ctx, model.PaperType(paperType))
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}

	export := model.ResultsExport{
		ExportedAt:    time.Now().UTC(),
		PaperType:     paperType,
		PromptVariant: v.GetString("prompt-variant"),
		Results:       rows,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	slog.Info("exported results", "count", len(rows), "paper_type", paperType)
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return importPapers(cmd.Context(), db, args)
}

// importPapers loads every papers file, skipping files already imported
// unchanged.
func importPapers(ctx context.Context, db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var papers []model.PaperImport
		if err := json.Unmarshal(data, &papers); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for _, p := range papers {
			if p.ID == "" || len(p.Questions) == 0 {
				return fmt.Errorf("%s: every paper needs an id and questions", path)
			}
		}
		if _, err := db.ImportPapers(ctx, path, data, papers); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
	}
	return nil
}

func seedAdmin(ctx context.Context, db *store.Store, password string) error {
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or GCSEMOCK_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(ctx, model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
