package cmd

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "matchd"
)

type Config struct {
	Database *DatabaseConfig `mapstructure:"database"`
	Redis    *RedisConfig    `mapstructure:"redis"`
	SMTP     *SMTPConfig     `mapstructure:"smtp"`
	AI       *AIConfig       `mapstructure:"ai"`
	Matching *MatchingConfig `mapstructure:"matching"`
	Sweep    *SweepConfig    `mapstructure:"sweep"`
	Dispatch *DispatchConfig `mapstructure:"dispatch"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SMTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	PasswordFile string `mapstructure:"password-file"`
	From         string `mapstructure:"from"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile      string `mapstructure:"api-key-file"`
	Model           string `mapstructure:"model"`
	MaxOutputTokens int    `mapstructure:"max-output-tokens"`
	MaxLogLength    int    `mapstructure:"max-log-length"`
}

// MatchingConfig overrides the reference scoring constants. They are tuning
// values, not load-bearing design constants.
type MatchingConfig struct {
	TokenWeight     float64 `mapstructure:"token-weight"`
	SkillWeight     float64 `mapstructure:"skill-weight"`
	MinLexicalScore float64 `mapstructure:"min-lexical-score"`
	MinModelScore   float64 `mapstructure:"min-model-score"`
	TopK            int     `mapstructure:"top-k"`
}

type SweepConfig struct {
	ExpiryWindowHours int `mapstructure:"expiry-window-hours"`
}

type DispatchConfig struct {
	BatchSize      int `mapstructure:"batch-size"`
	MaxAttempts    int `mapstructure:"max-attempts"`
	BackoffSeconds int `mapstructure:"backoff-seconds"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "matchd matches help-wanted and help-offered listings and keeps saved searches alerting",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("database.url", "MATCHD_DATABASE_URL"); err != nil {
		log.Fatalf("binding MATCHD_DATABASE_URL environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("smtp.password-file", "MATCHD_SMTP_PASSWORD_FILE"); err != nil {
		log.Fatalf("binding MATCHD_SMTP_PASSWORD_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is matchd.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
		viper.SetConfigType("yaml")
	}

	// A missing default config is fine: env variables and flags can carry a
	// full configuration. An unparseable one is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	config := &Config{}
	err := viper.Unmarshal(config)
	if err != nil {
		return config, err
	}

	return config, nil
}
