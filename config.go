package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/powerbox/games/power"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	bind             string
	clearOnEnd       bool
	defaultName      string
	idleTimeout      time.Duration
	leaderboardLimit int
	namePrefix       string
	otelEndpoint     string
	port             int
	prefix           string
	profile          bool
	rateBurst        int
	rateLimit        float64
	tapGate          bool
	tlsCert          string
	tlsKey           string
	verbose          bool
	version          bool

	logger *zap.SugaredLogger
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.leaderboardLimit < 1 {
		return fmt.Errorf("invalid leaderboard limit (must be at least 1): %d", c.leaderboardLimit)
	}
	if c.rateLimit <= 0 || c.rateBurst < 1 {
		return fmt.Errorf("invalid rate limit (must be positive): %v/s, burst %d", c.rateLimit, c.rateBurst)
	}
	if c.idleTimeout < time.Second {
		return fmt.Errorf("invalid idle timeout (must be at least 1s): %s", c.idleTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) engineOptions() power.Options {
	opts := power.DefaultOptions()
	opts.GatedTapping = c.tapGate
	opts.ClearOnEnd = c.clearOnEnd
	opts.LeaderboardLimit = c.leaderboardLimit
	opts.NamePrefix = c.namePrefix
	opts.DefaultName = c.defaultName

	return opts
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("POWERBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "powerbox",
		Short:         "A real-time relay for the tap power party game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			cfg.logger = logger.Sugar()

			return ServePage(cmd.Context(), cfg, logger)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	defaults := power.DefaultOptions()

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: POWERBOX_BIND)")
	fs.BoolVar(&cfg.clearOnEnd, "clear-on-end", defaults.ClearOnEnd, "remove all players and restart numbering when a round ends (env: POWERBOX_CLEAR_ON_END)")
	fs.StringVar(&cfg.defaultName, "default-name", defaults.DefaultName, "name used when a player joins without one (env: POWERBOX_DEFAULT_NAME)")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", 60*time.Second, "time before unresponsive connections are dropped (env: POWERBOX_IDLE_TIMEOUT)")
	fs.IntVar(&cfg.leaderboardLimit, "leaderboard-limit", defaults.LeaderboardLimit, "number of players shown on the leaderboard (env: POWERBOX_LEADERBOARD_LIMIT)")
	fs.StringVar(&cfg.namePrefix, "name-prefix", defaults.NamePrefix, "prefix placed before each player's join number (env: POWERBOX_NAME_PREFIX)")
	fs.StringVar(&cfg.otelEndpoint, "otel-endpoint", "", "OTLP/HTTP endpoint for traces, empty to disable (env: POWERBOX_OTEL_ENDPOINT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: POWERBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: POWERBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: POWERBOX_PROFILE)")
	fs.IntVar(&cfg.rateBurst, "rate-burst", 120, "inbound message burst allowed per connection (env: POWERBOX_RATE_BURST)")
	fs.Float64Var(&cfg.rateLimit, "rate-limit", 60, "inbound messages per second allowed per connection (env: POWERBOX_RATE_LIMIT)")
	fs.BoolVar(&cfg.tapGate, "tap-gate", defaults.GatedTapping, "only accept taps after the controller allows tapping (env: POWERBOX_TAP_GATE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: POWERBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: POWERBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: POWERBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: POWERBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("powerbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
