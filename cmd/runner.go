package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tracksaver/internal/auth"
	"github.com/desertthunder/tracksaver/internal/credentials"
	"github.com/desertthunder/tracksaver/internal/formatter"
	"github.com/desertthunder/tracksaver/internal/repositories"
	"github.com/desertthunder/tracksaver/internal/server"
	"github.com/desertthunder/tracksaver/internal/services"
	"github.com/desertthunder/tracksaver/internal/shared"
	"github.com/desertthunder/tracksaver/internal/tasks"
	"github.com/urfave/cli/v3"
)

const refreshLockFile = "refresh.lock"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The credential store, API client and database are built from the config on first use.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	clock      shared.Clock
	palette    *formatter.Palette

	store     credentials.Store
	tokens    *auth.TokenSource
	client    services.Client
	presenter auth.Presenter
	db        *sql.DB

	configErr error // config load failure deferred to save --shortcut
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Store, Client, Presenter and DB replace the ones built from Config.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Clock      shared.Clock
	Store      credentials.Store
	Client     services.Client
	Presenter  auth.Presenter
	DB         *sql.DB
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Clock == nil {
		opts.Clock = shared.SystemClock{}
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		clock:      opts.Clock,
		palette:    formatter.DefaultPalette,
		store:      opts.Store,
		client:     opts.Client,
		presenter:  opts.Presenter,
		db:         opts.DB,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, meCommand, playlistsCommand, selectCommand, slotsCommand, saveCommand, historyCommand,
	} {
		cmd := fn(r)
		if cmd.Before == nil {
			cmd.Before = r.loadConfig
		}
		commands = append(commands, cmd)
	}

	return commands
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "tracksaver",
		Usage:   "Save the currently playing Spotify track into a playlist",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath(),
				Sources: cli.EnvVars("TRACKSAVER_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before:   r.before,
		After:    r.after,
		Commands: r.register(),
	}
}

func defaultConfigPath() string {
	return filepath.Join(shared.ExpandPath("~/.tracksaver"), "config.toml")
}

// before applies the root flags. Each command loads the config in its own Before hook.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if r.configPath == "" {
		r.configPath = cmd.String("config")
	}
	return ctx, nil
}

// loadConfig reads the config file unless one was injected. A missing file means defaults.
func (r *Runner) loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.config != nil {
		return ctx, nil
	}

	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		r.config = shared.DefaultConfig()
		return ctx, nil
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	r.config = config
	return ctx, nil
}

func (r *Runner) after(ctx context.Context, cmd *cli.Command) error {
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.logger.Warn("failed to close database", "error", err)
		}
		r.db = nil
	}
	return nil
}

func (r *Runner) authConfig() auth.Config {
	return auth.ConfigFrom(r.config.Spotify)
}

func (r *Runner) storeDir() string {
	return shared.ExpandPath(r.config.Store.Dir)
}

// credentialStore mirrors writes into the keyring and a private file, reading the keyring first.
func (r *Runner) credentialStore() credentials.Store {
	if r.store != nil {
		return r.store
	}

	var keyring credentials.Scope
	if r.config.Store.UseKeyring {
		keyring = credentials.NewKeyringScope(r.config.Store.KeyringService)
	}
	r.store = credentials.NewDualStore(keyring, credentials.NewFileScope(r.storeDir()), shared.WithLogger(r.logger, "component", "store"))
	return r.store
}

func (r *Runner) tokenSource() *auth.TokenSource {
	if r.tokens == nil {
		r.tokens = auth.NewTokenSource(auth.TokenSourceOpts{
			Config:     r.authConfig(),
			Store:      r.credentialStore(),
			Locker:     credentials.NewLocker(filepath.Join(r.storeDir(), refreshLockFile), r.config.Store.LockTimeout()),
			Clock:      r.clock,
			HTTPClient: r.httpClient,
			Logger:     shared.WithLogger(r.logger, "component", "auth"),
		})
	}
	return r.tokens
}

func (r *Runner) spotify() services.Client {
	if r.client == nil {
		r.client = services.NewSpotifyClient(services.SpotifyClientOpts{
			BaseURL:    r.config.Spotify.APIBaseURL,
			HTTPClient: r.httpClient,
			Tokens:     r.tokenSource(),
			Limiter:    services.NewLimiter(r.config.Spotify.RequestsPerSecond),
			Logger:     shared.WithLogger(r.logger, "component", "spotify"),
		})
	}
	return r.client
}

func (r *Runner) session(noBrowser bool) (*auth.Session, error) {
	presenter := r.presenter
	if presenter == nil {
		loopback, err := server.NewLoopbackPresenter(server.LoopbackOpts{
			RedirectURI: r.config.Spotify.RedirectURI,
			OpenBrowser: r.config.Login.OpenBrowser && !noBrowser,
			Out:         r.output,
			Logger:      shared.WithLogger(r.logger, "component", "callback"),
		})
		if err != nil {
			return nil, err
		}
		presenter = loopback
	}

	return auth.NewSession(auth.SessionOpts{
		Config:     r.authConfig(),
		Store:      r.credentialStore(),
		Presenter:  presenter,
		Clock:      r.clock,
		HTTPClient: r.httpClient,
		Logger:     shared.WithLogger(r.logger, "component", "auth"),
	}), nil
}

// database opens the configured database, applies migrations and moves a legacy
// default playlist into the default slot.
func (r *Runner) database(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(shared.ExpandPath(r.config.Database.Path))
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	moved, err := tasks.MigrateDefaultPlaylist(ctx, repositories.NewSelectionRepository(db), r.config.DefaultPlaylistID)
	if err != nil {
		r.logger.Warn("failed to migrate legacy default playlist", "error", err)
	} else if moved {
		r.logger.Info("migrated default_playlist_id into the default slot", "playlist", r.config.DefaultPlaylistID)
	}

	r.db = db
	return db, nil
}

func (r *Runner) selections(ctx context.Context) (*repositories.SelectionRepository, error) {
	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}
	return repositories.NewSelectionRepository(db), nil
}

func (r *Runner) history(ctx context.Context) (*repositories.HistoryRepository, error) {
	db, err := r.database(ctx)
	if err != nil {
		return nil, err
	}
	return repositories.NewHistoryRepository(db), nil
}

func (r *Runner) slotPolicy() tasks.SlotPolicy {
	return tasks.SlotPolicyFrom(r.config.Slots)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", r.palette.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}
