package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/semihalev/dnsredir/api"
	"github.com/semihalev/dnsredir/config"
	"github.com/semihalev/dnsredir/middleware"
	"github.com/semihalev/dnsredir/middleware/accesslog"
	"github.com/semihalev/dnsredir/server"
	"github.com/semihalev/zlog/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dnsredir [flags] [type:name:value ...]",
		Short: "DNS server answering some names locally and proxying the rest",
		Long: `dnsredir answers A queries for names matching its rules with a fixed
address and forwards every other query to an upstream DNS server.

Rules are written as type:name:value where name is a regular expression
matched against the whole query name, for example

  dnsredir -p 5353 'A:host\.example\.:10.0.0.5' 'A:.*\.lan\.:192.168.1.1'`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), args)
			if err != nil {
				return err
			}

			setupLogger(cfg.LogLevel)

			zlog.Info("Starting dnsredir...", "version", version)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return start(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "dnsredir.conf", "location of the config file, if config file not found, a config will generate")
	flags.StringP("upstream", "d", "", "upstream DNS server address (default "+config.PublicDNS+")")
	flags.StringP("bind", "b", "", "address to bind to (default any)")
	flags.IntP("port", "p", 53, "port to listen on")
	flags.IntP("upstreamport", "P", 53, "upstream DNS server port")
	flags.Uint32P("ttl", "t", 30, "TTL of locally answered records")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.BoolP("ipv6", "6", false, "serve on an IPv6 socket")

	cmd.AddCommand(newQueryCmd())

	return cmd
}

// loadConfig reads the config file and applies the flags set on the
// command line over it. Positional arguments are extra rules.
func loadConfig(flags *pflag.FlagSet, args []string) (*config.Config, error) {
	cfgpath, _ := flags.GetString("config")

	cfg, err := config.Load(cfgpath, version)
	if err != nil {
		return nil, err
	}

	if flags.Changed("upstream") {
		cfg.Upstream, _ = flags.GetString("upstream")
	}
	if flags.Changed("bind") {
		cfg.Bind, _ = flags.GetString("bind")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("upstreamport") {
		cfg.UpstreamPort, _ = flags.GetInt("upstreamport")
	}
	if flags.Changed("ttl") {
		cfg.TTL, _ = flags.GetUint32("ttl")
	}
	if flags.Changed("ipv6") {
		cfg.IPv6, _ = flags.GetBool("ipv6")
	}
	if quiet, _ := flags.GetBool("quiet"); quiet {
		cfg.LogLevel = "error"
	}

	cfg.Rules = append(cfg.Rules, args...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setupLogger(level string) {
	lvl := zlog.LevelInfo

	switch strings.ToLower(level) {
	case "debug":
		lvl = zlog.LevelDebug
	case "warn":
		lvl = zlog.LevelWarn
	case "error":
		lvl = zlog.LevelError
	}

	logger := zlog.NewStructured()
	logger.SetWriter(zlog.StdoutTerminal())
	logger.SetLevel(lvl)
	zlog.SetDefault(logger)
}

// start runs the configured server; tests replace it.
var start = run

func run(ctx context.Context, cfg *config.Config) error {
	if err := middleware.Setup(cfg); err != nil {
		return err
	}

	defer func() {
		if al, ok := middleware.Get("accesslog").(*accesslog.AccessLog); ok {
			_ = al.Close()
		}
	}()

	srv := server.New(cfg)
	a := api.New(cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return srv.ListenAndServe(gctx) })
	g.Go(func() error { return a.Run(gctx) })

	err := g.Wait()

	zlog.Info("Stopping dnsredir...")

	return err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
