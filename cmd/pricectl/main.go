// Command pricectl is the operator tool for the price service.
//
// Usage:
//
//	pricectl migrate [--dry-run]
//	pricectl resolve --date 2020-06-14T10:00:00 --product 35455 --brand 1 [--store memory | --server URL]
//	pricectl import --file prices.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/urfave/cli/v2"

	"github.com/utafrali/price-service/internal/app"
	"github.com/utafrali/price-service/internal/client"
	"github.com/utafrali/price-service/internal/config"
	"github.com/utafrali/price-service/internal/domain"
	handler "github.com/utafrali/price-service/internal/handler/http"
	"github.com/utafrali/price-service/internal/repository/memory"
	"github.com/utafrali/price-service/internal/repository/redis"
	"github.com/utafrali/price-service/internal/service"
	"github.com/utafrali/price-service/migrations"
	pkgconfig "github.com/utafrali/price-service/pkg/config"
	"github.com/utafrali/price-service/pkg/database"
	apperrors "github.com/utafrali/price-service/pkg/errors"
	"github.com/utafrali/price-service/pkg/httpclient"
	"github.com/utafrali/price-service/pkg/logger"
)

// Exit codes beyond the generic failure.
const (
	exitNotFound    = 3
	exitUnavailable = 4
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newCLI(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			os.Exit(exit.ExitCode())
		}
		os.Exit(1)
	}
}

func newCLI(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "pricectl",
		Usage:     "Operate the price service: migrate, resolve and import prices",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		// Exit codes are mapped in main so commands stay testable.
		ExitErrHandler: func(*cli.Context, error) {},

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "Optional dotenv file loaded before the environment is read",
			},
		},
		Before: func(c *cli.Context) error {
			return pkgconfig.LoadDotEnv(c.String("env-file"))
		},

		Commands: []*cli.Command{
			migrateCommand(),
			resolveCommand(),
			importCommand(),
		},
	}
}

func newLogger(c *cli.Context) *slog.Logger {
	return logger.NewWithOptions(logger.Options{
		Service: "pricectl",
		Level:   c.String("log-level"),
		Format:  "text",
	}, c.App.ErrWriter)
}

// =============================================================================
// MIGRATE COMMAND
// =============================================================================

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the embedded schema migrations to the price database",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "List the migrations without connecting",
			},
		},
		Action: runMigrate,
	}
}

func runMigrate(c *cli.Context) error {
	names, err := database.PendingMigrations(migrations.FS)
	if err != nil {
		return err
	}
	if c.Bool("dry-run") {
		for _, name := range names {
			fmt.Fprintln(c.App.Writer, name)
		}
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(c)

	pgCfg := cfg.PostgresConfig()
	pool, err := database.NewPostgresPool(c.Context, &pgCfg, log)
	if err != nil {
		return cli.Exit(fmt.Sprintf("connect to postgres: %v", err), exitUnavailable)
	}
	defer pool.Close()

	if err := database.RunMigrations(c.Context, pool, migrations.FS, log); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "applied %d migrations to %s\n", len(names), pgCfg.DBName)
	return nil
}

// =============================================================================
// RESOLVE COMMAND
// =============================================================================

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Print the price applicable to a product and brand at a date",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "date",
				Aliases:  []string{"d"},
				Usage:    "Application date, e.g. 2020-06-14T10:00:00",
				Required: true,
			},
			&cli.Int64Flag{
				Name:     "product",
				Aliases:  []string{"p"},
				Usage:    "Product id",
				Required: true,
			},
			&cli.Int64Flag{
				Name:     "brand",
				Aliases:  []string{"b"},
				Usage:    "Brand id",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Price store to query (postgres, redis, memory); defaults to PRICE_STORE",
				Action: func(_ *cli.Context, v string) error {
					if !slices.Contains([]string{config.StorePostgres, config.StoreRedis, config.StoreMemory}, v) {
						return fmt.Errorf("unsupported store %q", v)
					}
					return nil
				},
			},
			&cli.StringFlag{
				Name:    "server",
				Usage:   "Ask a running price service at this URL instead of opening a store",
				EnvVars: []string{"PRICE_SERVICE_URL"},
			},
		},
		Action: runResolve,
	}
}

func runResolve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.IsSet("store") {
		cfg.PriceStore = c.String("store")
	}
	log := newLogger(c)

	at, err := domain.ParseApplicationDate(c.String("date"), cfg.Location())
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	var resp *handler.PriceResponse
	if server := c.String("server"); server != "" {
		resp, err = resolveRemote(c, server, at)
	} else {
		resp, err = resolveLocal(c, cfg, log, at)
	}
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return cli.Exit(err.Error(), exitNotFound)
	case errors.Is(err, apperrors.ErrInvalidInput):
		return cli.Exit(err.Error(), 2)
	case apperrors.IsStoreUnavailable(err):
		return cli.Exit(err.Error(), exitUnavailable)
	case err != nil:
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func resolveLocal(c *cli.Context, cfg *config.Config, log *slog.Logger, at time.Time) (*handler.PriceResponse, error) {
	store, err := app.OpenStore(c.Context, cfg, log, nil)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	defer store.Close()

	svc := service.NewPriceService(store.Repository, log, service.Options{QueryTimeout: cfg.StoreQueryTimeout})
	price, err := svc.ResolvePrice(c.Context, at, c.Int64("product"), c.Int64("brand"))
	if err != nil {
		return nil, err
	}
	resp := handler.NewPriceResponse(price)
	return &resp, nil
}

func resolveRemote(c *cli.Context, server string, at time.Time) (*handler.PriceResponse, error) {
	pc, err := client.NewPriceClient(server, httpclient.DefaultConfig())
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	return pc.ResolvePrice(c.Context, at, c.Int64("product"), c.Int64("brand"))
}

// =============================================================================
// IMPORT COMMAND
// =============================================================================

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Load a JSON price catalog into Redis, replacing each product and brand it names",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to a JSON array of prices, or - for stdin",
				Required: true,
			},
		},
		Action: runImport,
	}
}

func runImport(c *cli.Context) error {
	var in io.Reader = os.Stdin
	if path := c.String("file"); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open price catalog: %w", err)
		}
		defer f.Close()
		in = f
	}

	prices, err := memory.DecodeCatalog(in)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, err := database.NewRedisClient(c.Context, cfg.RedisConfig(), newLogger(c))
	if err != nil {
		return cli.Exit(err.Error(), exitUnavailable)
	}
	defer client.Close()

	n, err := redis.NewPriceRepository(client).Import(c.Context, prices)
	switch {
	case errors.Is(err, domain.ErrInvalidPrice):
		return cli.Exit(err.Error(), 2)
	case err != nil:
		return err
	}
	fmt.Fprintf(c.App.Writer, "imported %d prices into %s\n", n, cfg.RedisConfig().Addr())
	return nil
}
