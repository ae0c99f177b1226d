package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wardentools/warden/cli"
	"github.com/wardentools/warden/config"
)

// newConfigCmd creates the warden config command with subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSchemaCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective merged configuration",
		Long: `Show the final configuration after merging all layers:
1. Global config (~/.config/warden/warden.yml)
2. TOML fragments (~/.config/warden/conf.d/*.toml)
3. Project config (warden.yml found upward from cwd)
4. Override files (warden.override.yml)
This is useful for debugging configuration issues.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			if jsonWanted(cmd) {
				return printJSON(cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for warden.yml",
		Long: `Print the JSON Schema describing warden.yml. Point your editor's YAML
language server at it for completion and validation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return fmt.Errorf("failed to generate schema: %w", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a configuration file",
		Long: `Validate a warden.yml against the schema and semantic rules. Without an
argument the usual lookup chain is validated.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) > 0 {
				path = args[0]
			} else if flagPath, _ := cmd.Flags().GetString("config"); flagPath != "" {
				path = flagPath
			} else {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("failed to get current directory: %w", err)
				}
				found, err := config.FindConfigFile(cwd)
				if err != nil {
					return err
				}
				path = found
			}

			if _, err := config.Load(path); err != nil {
				return err
			}

			fmt.Printf("%s is valid\n", path)
			return nil
		},
	}
}
