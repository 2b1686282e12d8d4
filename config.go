/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	contentTimeout time.Duration
	contentURL     string
	gracePeriod    time.Duration
	identitySecret string
	port           int
	prefix         string
	profile        bool
	relayRounds    int
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	turnSeconds    int
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.turnSeconds < 5 {
		return fmt.Errorf("invalid turn length (must be at least 5 seconds): %d", c.turnSeconds)
	}
	if c.relayRounds < 1 {
		return fmt.Errorf("invalid relay round count: %d", c.relayRounds)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PARTYHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "partyhub...",
		Short:         "A realtime room server for a set of turn-based party games.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PARTYHUB_BIND)")
	fs.DurationVar(&cfg.contentTimeout, "content-timeout", 30*time.Second, "timeout for round-content generation requests (env: PARTYHUB_CONTENT_TIMEOUT)")
	fs.StringVar(&cfg.contentURL, "content-url", "", "endpoint of the round-content generation service; empty means fallback batches only (env: PARTYHUB_CONTENT_URL)")
	fs.DurationVar(&cfg.gracePeriod, "grace-period", time.Hour, "time disconnected players keep their seat before removal (env: PARTYHUB_GRACE_PERIOD)")
	fs.StringVar(&cfg.identitySecret, "identity-secret", "", "HMAC secret for signed display-name tokens; empty allows plain names (env: PARTYHUB_IDENTITY_SECRET)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PARTYHUB_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PARTYHUB_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PARTYHUB_PROFILE)")
	fs.IntVar(&cfg.relayRounds, "relay-rounds", 3, "number of rounds in a relay game (env: PARTYHUB_RELAY_ROUNDS)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are ended (env: PARTYHUB_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PARTYHUB_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PARTYHUB_TLS_KEY)")
	fs.IntVar(&cfg.turnSeconds, "turn-seconds", 60, "length of a relay describing turn in seconds (env: PARTYHUB_TURN_SECONDS)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PARTYHUB_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PARTYHUB_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("partyhub v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
