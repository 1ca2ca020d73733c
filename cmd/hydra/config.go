package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/hydra/internal/config"
)

var configPath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
	Long: `Inspect the hydra configuration.

'config show' prints the parsed configuration with credentials
redacted. 'config path' prints the file being read. 'config init'
writes a starter configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the parsed configuration, credentials redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig()
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(configPath)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists", configPath)
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(starterConfig), 0600); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Wrote %s\n", configPath)
		return nil
	},
}

func init() {
	configCmd.PersistentFlags().StringVar(&configPath, "config", DefaultConfigPath(), "Path to the configuration file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}

// showConfig loads, sanitizes, and prints the configuration as YAML.
func showConfig() error {
	resolver := config.NewResolver()
	snap, err := resolver.Load(configPath)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(config.Sanitize(snap).Settings())
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	fmt.Printf("# %s\n%s", snap.Source, out)
	return nil
}

const starterConfig = `# hydra configuration
provider: anthropic

agent:
  max_iterations: 10

orchestrator:
  parallel_agents: 4
  task_timeout: 300

pool:
  max_idle: 8

providers:
  anthropic:
    model: claude-sonnet-4-5
    api_key: ${ANTHROPIC_API_KEY}
    max_tokens: 8192
  scripted:
    model: offline
`
