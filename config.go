/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Seednode/pointbox/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	appID          string
	bind           string
	peerLimit      int
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	tokenSecret    string
	tokenTTL       time.Duration
	verbose        bool
	version        bool

	join JoinConfig
}

// JoinConfig holds the flags of the join subcommand.
type JoinConfig struct {
	agenda      string
	facilitator bool
	logFile     string
	mode        string
	nickname    string
	offline     bool
	plain       bool
	relay       string
	room        string
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.peerLimit < 0 {
		return fmt.Errorf("invalid peer limit (must be 0 or greater): %d", c.peerLimit)
	}
	if c.tokenTTL < 0 {
		return fmt.Errorf("invalid token ttl (must be 0 or greater): %s", c.tokenTTL)
	}
	return nil
}

func (j *JoinConfig) validate() error {
	if j.mode != "" {
		if _, err := session.ParseMode(j.mode); err != nil {
			return err
		}
	}
	if j.room == "" && !j.facilitator {
		return errors.New("--room is required unless joining as --facilitator")
	}
	if !j.offline {
		u, err := url.Parse(j.relay)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid relay url (must be http:// or https://): %q", j.relay)
		}
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// bindFlags lets every flag in fs be set from a POINTBOX_ environment variable.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func normalize(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("POINTBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "pointbox",
		Short:         "Serverless-style planning poker and tradeoff sliders, with a tiny room relay.",
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

	fs.SetNormalizeFunc(normalize)

	fs.StringVar(&cfg.appID, "app-id", "pointbox", "application id that room tokens are scoped to (env: POINTBOX_APP_ID)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: POINTBOX_BIND)")
	fs.IntVar(&cfg.peerLimit, "peer-limit", 64, "maximum participants per room, 0 for no limit (env: POINTBOX_PEER_LIMIT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: POINTBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: POINTBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: POINTBOX_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before empty rooms are closed (env: POINTBOX_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: POINTBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: POINTBOX_TLS_KEY)")
	fs.StringVar(&cfg.tokenSecret, "token-secret", "", "secret used to sign room tokens, random if unset (env: POINTBOX_TOKEN_SECRET)")
	fs.DurationVar(&cfg.tokenTTL, "token-ttl", 24*time.Hour, "lifetime of issued room tokens (env: POINTBOX_TOKEN_TTL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: POINTBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: POINTBOX_VERSION)")

	bindFlags(v, fs)

	cmd.AddCommand(newJoinCmd(cfg, v))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("pointbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func newJoinCmd(cfg *Config, v *viper.Viper) *cobra.Command {
	j := &cfg.join

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a room from the terminal.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := j.validate(); err != nil {
				return err
			}
			return Join(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(normalize)

	fs.StringVar(&j.agenda, "agenda", "", "yaml or toml file of tasks to estimate, facilitator only (env: POINTBOX_AGENDA)")
	fs.BoolVarP(&j.facilitator, "facilitator", "f", false, "join as the facilitator (env: POINTBOX_FACILITATOR)")
	fs.StringVar(&j.logFile, "log-file", "pointbox.log", "where --verbose output goes while the terminal ui is running (env: POINTBOX_LOG_FILE)")
	fs.StringVarP(&j.mode, "mode", "m", "", "poker or tradeoff, derived from the room id if unset (env: POINTBOX_MODE)")
	fs.StringVarP(&j.nickname, "nickname", "n", "", "name shown to the other participants (env: POINTBOX_NICKNAME)")
	fs.BoolVar(&j.offline, "offline", false, "run the room in-process without a relay, for trying things out (env: POINTBOX_OFFLINE)")
	fs.BoolVar(&j.plain, "plain", false, "line-oriented output instead of the terminal ui (env: POINTBOX_PLAIN)")
	fs.StringVarP(&j.relay, "relay", "r", "http://localhost:8080", "base url of the pointbox relay (env: POINTBOX_RELAY)")
	fs.StringVar(&j.room, "room", "", "room id to join, generated if unset for facilitators (env: POINTBOX_ROOM)")

	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: POINTBOX_VERBOSE)")

	bindFlags(v, fs)

	return cmd
}
