package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "dev"

const envPrefix = "CLAIMCHECK"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "claimcheck",
	Short: "Claimcheck - grounded health insurance claim coverage checks",
	Long: `Claimcheck estimates whether a health insurance claim for a condition and
treatment is likely to be covered by a specific policy.

Answers are grounded in the indexed text of the policy document. The
analysis service only classifies the retrieved clauses; the feasibility
score is computed by fixed rules from that classification and the policy's
own terms.

Claimcheck is an estimate, not a claim decision.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		level := logging.ParseLevel(cfg.Log.Level)
		if cfg.Output.Verbose {
			level = logging.ParseLevel("debug")
		}
		logging.Init(level, cfg.Log.Format)
		return nil
	},
}

// ExecuteContext runs the root command with ctx as every command's context
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("claimcheck %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.claimcheck/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig registers defaults, then reads the config file and CLAIMCHECK_* variables
func initConfig() {
	if err := registerDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".claimcheck"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// CLAIMCHECK_LLM_API_KEY -> llm.api_key
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// secretKeys are omitted from the default YAML but must still bind to env
var secretKeys = []string{
	"llm.api_key", "llm.base_url", "llm.http_proxy", "llm.https_proxy", "llm.no_proxy",
	"embedding.api_key", "embedding.base_url", "embedding.dimensions",
	"cache.disk_dir", "cache.redis_url",
}

// registerDefaults walks the default config so every key is known to viper,
// which AutomaticEnv needs for Unmarshal to see environment overrides.
func registerDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&tree); err != nil {
		return err
	}
	setDefaults(v, "", tree)

	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig merges defaults, file, env and flags into a Config
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnvFallbacks(cfg, os.Getenv)
	return cfg, nil
}

// applyEnvFallbacks fills provider credentials from the providers' own variables
func applyEnvFallbacks(cfg *model.Config, getenv func(string) string) {
	cfg.LLM.APIKey, cfg.LLM.BaseURL = providerCredentials(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.BaseURL, getenv)
	cfg.Embedding.APIKey, cfg.Embedding.BaseURL = providerCredentials(cfg.Embedding.Provider, cfg.Embedding.APIKey, cfg.Embedding.BaseURL, getenv)
}

func providerCredentials(provider, apiKey, baseURL string, getenv func(string) string) (string, string) {
	switch strings.ToLower(provider) {
	case "openai":
		if apiKey == "" {
			apiKey = getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if apiKey == "" {
			apiKey = getenv("ANTHROPIC_API_KEY")
		}
	case "gemini", "google":
		if apiKey == "" {
			apiKey = getenv("GEMINI_API_KEY")
		}
	case "ollama":
		if baseURL == "" {
			baseURL = getenv("OLLAMA_BASE_URL")
		}
	}
	return apiKey, baseURL
}
