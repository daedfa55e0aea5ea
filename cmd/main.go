package main

import (
    "context"
    "fmt"
    "log/slog"
    "net/http"
    "os"
    "os/signal"
    "strings"
    "syscall"
    "time"

    "github.com/google/uuid"

    "github.com/finbooks/ledger/internal/config"
    "github.com/finbooks/ledger/internal/httpapi"
    "github.com/finbooks/ledger/internal/jobs"
    "github.com/finbooks/ledger/internal/ledger"
    "github.com/finbooks/ledger/internal/storage/memory"
    pgstore "github.com/finbooks/ledger/internal/storage/postgres"
)

func main() {
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    cfg := config.Load()
    logger := buildLogger(cfg)
    slog.SetDefault(logger)

    var store httpapi.Store
    var closeFn func()

    if cfg.DatabaseURL != "" {
        pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
        if err != nil {
            logger.Error("failed to connect to postgres", "err", err)
            os.Exit(1)
        }
        closeFn = func() { pg.Close() }
        if cfg.DevSeed {
            user, accs, err := pg.SeedDev(ctx)
            if err != nil {
                logger.Error("dev seed failed", "err", err)
            } else {
                logDevSeed(logger, "postgres", user, accs)
                printDevSeedBanner(user, accs)
            }
        }
        store = pg
        logger.Info("storage backend: postgres")
    } else {
        mem := memory.New()
        if cfg.DevSeed {
            user, accs := seedMemory(mem)
            logDevSeed(logger, "memory", user, accs)
            printDevSeedBanner(user, accs)
        }
        store = mem
        logger.Info("storage backend: memory")
    }

    api := httpapi.New(store, logger)

    if cfg.RecurringCronAt != "" {
        job := jobs.NewRecurringJob(api.RecurringService(), logger, cfg.RecurringCronAt)
        go job.Process()
        logger.Info("recurring cron enabled", "at", cfg.RecurringCronAt)
    }

    srv := &http.Server{
        Addr:              cfg.ListenAddr,
        Handler:           api.Handler(),
        ReadTimeout:       5 * time.Second,
        ReadHeaderTimeout: 5 * time.Second,
        WriteTimeout:      10 * time.Second,
        IdleTimeout:       60 * time.Second,
    }

    errCh := make(chan error, 1)
    go func() {
        logger.Info("ledger service listening", "addr", srv.Addr)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            errCh <- err
        }
    }()

    select {
    case <-ctx.Done():
        ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        if err := srv.Shutdown(ctxShutdown); err != nil {
            logger.Error("server shutdown error", "err", err)
        }
    case err := <-errCh:
        logger.Error("server error", "err", err)
    }
    if closeFn != nil {
        closeFn()
    }
}

// seedMemory inserts a demo user and a minimal chart of accounts.
func seedMemory(store *memory.Store) (ledger.User, []ledger.Account) {
    user := ledger.User{ID: uuid.New()}
    store.SeedUser(user)
    accs := []ledger.Account{
        {ID: uuid.New(), UserID: user.ID, Code: 1000, Name: "Cash", Type: ledger.AccountTypeAsset, Active: true},
        {ID: uuid.New(), UserID: user.ID, Code: 2000, Name: "Accounts Payable", Type: ledger.AccountTypeLiability, Active: true},
        {ID: uuid.New(), UserID: user.ID, Code: 3000, Name: "Owner Equity", Type: ledger.AccountTypeEquity, Active: true},
        {ID: uuid.New(), UserID: user.ID, Code: 4000, Name: "Revenue", Type: ledger.AccountTypeRevenue, Active: true},
        {ID: uuid.New(), UserID: user.ID, Code: 5000, Name: "Expenses", Type: ledger.AccountTypeExpense, Active: true},
    }
    for _, a := range accs {
        store.SeedAccount(a)
    }
    return user, accs
}

// logDevSeed emits structured logs with useful IDs
func logDevSeed(l *slog.Logger, backend string, user ledger.User, accs []ledger.Account) {
    ids := map[string]string{}
    for _, a := range accs {
        ids[strings.ToLower(strings.ReplaceAll(a.Name, " ", "_"))+"_account_id"] = a.ID.String()
    }
    l.Info("DEV seed ("+backend+")", "user_id", user.ID.String(), "ids", ids)
}

// printDevSeedBanner prints a simple banner to stdout for easy copy/paste of IDs
func printDevSeedBanner(user ledger.User, accs []ledger.Account) {
    fmt.Println("==================== DEV SEED ====================")
    fmt.Printf("user_id: %s\n", user.ID.String())
    for _, a := range accs {
        fmt.Printf("%d %s: %s\n", a.Code, a.Name, a.ID.String())
    }
    fmt.Println("==================================================")
}

// parseLogLevel maps config values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
    switch s {
    case "DEBUG", "debug":
        return slog.LevelDebug
    case "WARN", "WARNING", "warn", "warning":
        return slog.LevelWarn
    case "ERROR", "ERR", "error", "err":
        return slog.LevelError
    default:
        return slog.LevelInfo
    }
}

func buildLogger(cfg config.Config) *slog.Logger {
    level := parseLogLevel(cfg.LogLevel)
    if strings.ToLower(cfg.LogFormat) == "text" {
        return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
    }
    // default to JSON
    return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
