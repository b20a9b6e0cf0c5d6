package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	stdlog "log"
	"strings"
	"time"

	"github.com/spigell/talent-screener/internal/api"
	"github.com/spigell/talent-screener/internal/intake"
	"github.com/spigell/talent-screener/internal/logger"
	"github.com/spigell/talent-screener/internal/pipeline"
	"github.com/spigell/talent-screener/internal/secrets"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	app       = "talent-screener"
	envPrefix = "SCREENER"
)

type Config struct {
	APIURL         string        `mapstructure:"api-url"`
	Token          string        `mapstructure:"token"`
	TokenFile      string        `mapstructure:"token-file"`
	UserAgent      string        `mapstructure:"user-agent"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	SubmitTimeout  time.Duration `mapstructure:"submit-timeout"`
	Concurrency    int           `mapstructure:"concurrency"`
	Poll           *PollConfig   `mapstructure:"poll"`
	Intake         *IntakeConfig `mapstructure:"intake"`
}

type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max-attempts"`
}

type IntakeConfig struct {
	MaxFileSize int64  `mapstructure:"max-file-size"`
	AllowDOCX   bool   `mapstructure:"allow-docx"`
	HistoryFile string `mapstructure:"history-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "talent-screener uploads CVs to the screening backend and collects the analysis",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is talent-screener.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("api-url", "", "base url of the screening backend")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("api-url", rootCmd.PersistentFlags().Lookup("api-url"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	// every key needs a default so AutomaticEnv is consulted by Unmarshal
	v.SetDefault("api-url", "")
	v.SetDefault("token", "")
	v.SetDefault("token-file", "")
	v.SetDefault("user-agent", "")
	v.SetDefault("request-timeout", 30*time.Second)
	v.SetDefault("submit-timeout", time.Duration(0))
	v.SetDefault("concurrency", pipeline.DefaultConcurrency)
	v.SetDefault("poll.interval", pipeline.DefaultPollInterval)
	v.SetDefault("poll.max-attempts", pipeline.DefaultMaxAttempts)
	v.SetDefault("intake.max-file-size", intake.DefaultMaxFileSize)
	v.SetDefault("intake.allow-docx", false)
	v.SetDefault("intake.history-file", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	if err := readConfig(viper.GetViper(), cfgFile); err != nil {
		stdlog.Fatal(err)
	}
}

// readConfig loads the config file. Without an explicit path a missing
// talent-screener.yaml is fine; defaults, env and flags are enough.
func readConfig(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(app)
		v.SetConfigType("yaml")
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && (path != "" || !errors.As(err, &notFound)) {
		return fmt.Errorf("reading config: %w", err)
	}

	return nil
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Poll == nil {
		config.Poll = &PollConfig{}
	}
	if config.Intake == nil {
		config.Intake = &IntakeConfig{}
	}

	if strings.TrimSpace(config.APIURL) == "" {
		return nil, fmt.Errorf("api-url is required (set it in %s.yaml or %s_API_URL)", app, envPrefix)
	}

	return config, nil
}

func resolveToken(config *Config) (string, error) {
	return secrets.Load(secrets.Source{
		Name:     "api token",
		Value:    config.Token,
		File:     config.TokenFile,
		Optional: true,
	})
}

func newClient(config *Config, l *zap.Logger) (*api.Client, error) {
	token, err := resolveToken(config)
	if err != nil {
		return nil, err
	}

	l = logger.WithFields(l)

	client := api.New(l, config.APIURL, token)
	if config.UserAgent != "" {
		client.UserAgent = config.UserAgent
	}
	if config.RequestTimeout > 0 {
		client.HTTPClient.Timeout = config.RequestTimeout
	}

	if !client.Authenticated() {
		l.Debug("calling the backend without a token")
	}

	return client, nil
}

// bootstrap builds the logger and the decoded config shared by commands
// that talk to the backend.
func bootstrap() (*zap.Logger, *Config) {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		stdlog.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}

	redacted := *config
	if redacted.Token != "" {
		redacted.Token = "<redacted>"
	}
	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted, "", "  ")
	log.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return log, config
}
