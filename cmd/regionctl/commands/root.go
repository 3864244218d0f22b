// Package commands implements the regionctl command tree.
package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	app "github.com/okian/regionsel/internal/app"
	"github.com/okian/regionsel/internal/config"
	"github.com/okian/regionsel/pkg/logger"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	configFile string
	profileKey string
	output     string
	logLevel   string

	cfg *config.Config
	log logger.Logger
}

// NewRootCmd returns the regionctl command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "regionctl",
		Short: "Build, inspect and query region profiles",
		Long: `regionctl manages the region profile set used by the query service.

Profiles are stored in the configured blob store (memory, local, s3 or
minio). The object name of the profile key picks the encoding: ".json",
".msgpack", optionally followed by ".zst" or ".lz4".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configFile, "config", "c", "", "YAML config file (defaults to $REGIONSEL_CONFIG)")
	pf.StringVar(&g.profileKey, "profile-key", "", "Profile object key (overrides profile_key)")
	pf.StringVarP(&g.output, "output", "o", "", "Write the result to a file instead of stdout")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (overrides log_level)")

	root.AddCommand(newBuildCmd(g))
	root.AddCommand(newSelectCmd(g))
	root.AddCommand(newInspectCmd(g))
	root.AddCommand(newMirrorCmd(g))
	return root
}

// Execute runs the command tree until completion or SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func (g *globals) setup(cmd *cobra.Command) error {
	var opts []config.LoadOption
	if g.configFile != "" {
		opts = append(opts, config.WithFile(g.configFile))
	}
	cfg, err := config.Load(cmd.Context(), opts...)
	if err != nil {
		return err
	}
	if g.profileKey != "" {
		cfg.ProfileKey = g.profileKey
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}

	// Logs go to stderr so results on stdout stay machine readable.
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return err
	}
	g.cfg = cfg
	g.log = logger.Named("regionctl")
	return nil
}

// startService opens the configured store and starts a Service on it.
// Callers must Stop the returned Service.
func (g *globals) startService(ctx context.Context, opts ...app.Option) (*app.Service, error) {
	svc, err := app.FromConfig(ctx, g.cfg, g.log.Named("service"), opts...)
	if err != nil {
		return nil, err
	}
	if err := svc.Start(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}
