package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/quailyquaily/trustops/internal/strutil"
	"github.com/quailyquaily/trustops/secrets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cli carries per-invocation state. Each root command owns its own viper
// instance so tests can build several side by side.
type cli struct {
	v     *viper.Viper
	log   *slog.Logger
	codec *secrets.Codec

	cfgFile string
	stderr  io.Writer
}

const skipCodecAnnotation = "trustops/skip-codec"

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), stderr: os.Stderr}
	setDefaults(c.v)

	root := &cobra.Command{
		Use:           "trustops",
		Short:         "Compliance operations core: secrets, audit trail, approvals, evidence and integrations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
	}
	root.SetErr(c.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default ./trustops.yaml if present)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.StringP("output", "o", "text", "output format: text, json or yaml")
	pf.String("org", "", "organization id (default from config key org)")
	pf.String("actor", "", "acting user id recorded in the audit trail")
	_ = c.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = c.v.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = c.v.BindPFlag("output", pf.Lookup("output"))
	_ = c.v.BindPFlag("org", pf.Lookup("org"))
	_ = c.v.BindPFlag("actor", pf.Lookup("actor"))

	root.AddCommand(
		newKeygenCmd(c),
		newSecretCmd(c),
		newAuditCmd(c),
		newApprovalCmd(c),
		newEvidenceCmd(c),
		newIntegrationCmd(c),
	)
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	c.v.SetEnvPrefix("TRUSTOPS")
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.v.AutomaticEnv()
	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
		if err := c.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", c.cfgFile, err)
		}
	} else {
		c.v.SetConfigName("trustops")
		c.v.SetConfigType("yaml")
		c.v.AddConfigPath(".")
		if err := c.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("read config: %w", err)
			}
		}
	}

	log, err := newLogger(c.stderr, c.v.GetString("log.level"), c.v.GetString("log.format"))
	if err != nil {
		return err
	}
	c.log = log
	if f := c.v.ConfigFileUsed(); f != "" {
		log.Debug("config_loaded", "path", f)
	}

	if cmd.Annotations[skipCodecAnnotation] == "true" {
		return nil
	}
	// A malformed key stops every command before it runs.
	codec, err := secrets.NewCodecFromConfig(cmd.Context(), secretsConfigFromViper(c.v), &secrets.EnvResolver{}, log)
	if err != nil {
		return fmt.Errorf("encryption config: %w", err)
	}
	c.codec = codec
	return nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		lvl = slog.LevelInfo
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

func (c *cli) orgID() (string, error) {
	org := strings.TrimSpace(c.v.GetString("org"))
	if org == "" {
		return "", fmt.Errorf("organization is required (--org or config key org)")
	}
	return org, nil
}

func (c *cli) actorID() string {
	return strutil.FirstNonEmpty(c.v.GetString("actor"), os.Getenv("USER"), "cli")
}
