// Package commands implements the CLI commands for leasescout.
package commands

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "leasescout",
	Short: "Structured data extraction for rental community websites",
	Long: `Leasescout crawls a rental community website, finds the pages that
matter (floor plans, fees, general info), and extracts a single
structured community record using an LLM.

Examples:
  # Extract a community record
  leasescout run -u "https://www.willowcreek.example"

  # Use a specific provider and model
  leasescout run -u "https://www.willowcreek.example" \
      -p anthropic -m claude-sonnet-4-20250514

  # Render JavaScript-heavy sites with a headless browser
  leasescout run -u "https://www.willowcreek.example" --fetch-mode dynamic`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.leasescout.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	// A .env in the working directory is the easiest place for API
	// keys during development. Missing file is fine.
	_ = godotenv.Load()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".leasescout")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LEASESCOUT")
	viper.AutomaticEnv()

	_ = viper.BindEnv("api_key", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY")

	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
