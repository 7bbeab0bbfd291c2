// Package commands implements the showroom CLI on cobra.
package commands

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petal-labs/showroom/cli/config"
	"github.com/petal-labs/showroom/cli/keystore"
	"github.com/petal-labs/showroom/core"
)

// ConfigLoader loads CLI config from a path.
type ConfigLoader func(path string) (*config.Config, error)

// KeystoreFactory creates a keystore instance.
type KeystoreFactory func() (keystore.Keystore, error)

// AppOption customizes App dependencies.
type AppOption func(*App)

// App holds CLI state and runtime dependencies.
type App struct {
	root *cobra.Command

	loadConfig    ConfigLoader
	newKeystore   KeystoreFactory
	clientOptions []core.ClientOption
	envFiles      []string
	stdin         io.Reader
	stdout        io.Writer
	stderr        io.Writer

	cfgFile    string
	profile    string
	baseURL    string
	tenantID   string
	jsonOutput bool
	verbose    bool

	cfg         *config.Config
	profileName string
	prof        config.Profile
	logger      *zap.Logger
}

// WithConfigLoader injects a config loader dependency.
func WithConfigLoader(loader ConfigLoader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.loadConfig = loader
		}
	}
}

// WithKeystoreFactory injects a keystore factory dependency.
func WithKeystoreFactory(factory KeystoreFactory) AppOption {
	return func(a *App) {
		if factory != nil {
			a.newKeystore = factory
		}
	}
}

// WithClientOptions adds options to every API client the app builds.
func WithClientOptions(opts ...core.ClientOption) AppOption {
	return func(a *App) {
		a.clientOptions = append(a.clientOptions, opts...)
	}
}

// WithEnvFiles sets the .env files loaded before configuration. The
// default is ".env" in the working directory.
func WithEnvFiles(paths ...string) AppOption {
	return func(a *App) {
		a.envFiles = paths
	}
}

// WithIO injects process I/O streams.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) AppOption {
	return func(a *App) {
		if stdin != nil {
			a.stdin = stdin
		}
		if stdout != nil {
			a.stdout = stdout
		}
		if stderr != nil {
			a.stderr = stderr
		}
	}
}

// NewApp creates a new CLI app with default dependencies.
func NewApp(opts ...AppOption) *App {
	a := &App{
		loadConfig:  config.LoadConfig,
		newKeystore: keystore.NewKeystore,
		envFiles:    []string{".env"},
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		logger:      zap.NewNop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.root = a.newRootCommand()
	return a
}

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "showroom",
		Short: "Showroom - products catalog, discovery and chat from the command line",
		Long: `Showroom is a command-line client for the products API.

Use it to browse the catalog, run discovery searches, chat with the
product assistant, manage API keys and run a local fake server.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags available to all commands.
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ~/.showroom/config.yaml)")
	root.PersistentFlags().StringVar(&a.profile, "profile", "", "config profile (default is default_profile or \"default\")")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "API base URL (overrides profile and SHOWROOM_BASE_URL)")
	root.PersistentFlags().StringVar(&a.tenantID, "tenant", "", "tenant id (overrides profile and SHOWROOM_TENANT_ID)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "emit JSON output")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")

	root.AddCommand(a.newProductsCommand())
	root.AddCommand(a.newDiscoverCommand())
	root.AddCommand(a.newChatCommand())
	root.AddCommand(a.newHealthCommand())
	root.AddCommand(a.newKeysCommand())
	root.AddCommand(a.newServeFakeCommand())
	root.AddCommand(a.newVersionCommand())

	return root
}

// SetArgs sets the command-line arguments, mainly for tests.
func (a *App) SetArgs(args []string) {
	a.root.SetArgs(args)
}

// Execute runs the root command.
func (a *App) Execute() error {
	return a.ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is passed to every
// API call. Errors are reported on stderr and returned with an exit code.
func (a *App) ExecuteContext(ctx context.Context) error {
	a.root.SetOut(a.stdout)
	a.root.SetErr(a.stderr)
	if err := a.root.ExecuteContext(ctx); err != nil {
		return a.reportError(err)
	}
	return nil
}

func (a *App) initConfig() error {
	if err := config.LoadDotEnv(a.envFiles...); err != nil {
		return exitWithCode(ExitValidation, err)
	}

	path := a.cfgFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := a.loadConfig(path)
	if err != nil {
		return exitWithCode(ExitValidation, err)
	}
	a.cfg = cfg

	a.profileName = cfg.ProfileName(a.profile)
	a.prof, err = cfg.Profile(a.profile)
	if err != nil {
		return exitWithCode(ExitValidation, err)
	}

	logger, err := newLogger(a.stderr, a.prof.LogLevel, a.verbose)
	if err != nil {
		return exitWithCode(ExitValidation, err)
	}
	a.logger = logger.With(zap.String("profile", a.profileName))
	return nil
}

var defaultApp = NewApp()

// Execute runs the default app root command.
func Execute() error {
	return defaultApp.Execute()
}

// ExecuteContext runs the default app root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return defaultApp.ExecuteContext(ctx)
}
