package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/CosmoTheDev/anonscan/internal/config"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var configShowFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and manage anonscan configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (secrets redacted)",
	Long: `Prints the configuration after defaults, the config file and
ANONSCAN_* environment overrides have been applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		redacted := cfg.Redacted()

		switch configShowFormat {
		case "yaml", "yml":
			// Round-trip through JSON so the yaml keys match the file format.
			raw, err := json.Marshal(redacted)
			if err != nil {
				return err
			}
			var generic map[string]any
			if err := json.Unmarshal(raw, &generic); err != nil {
				return err
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			if err := enc.Encode(generic); err != nil {
				return err
			}
			return enc.Close()
		case "json", "":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(redacted)
		default:
			return fmt.Errorf("unknown output format %q (valid: json, yaml)", configShowFormat)
		}
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the path to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%s already exists", p)
		}
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := config.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("✓") + " Wrote " + p)
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "nano"
		}
		fmt.Printf("Opening %s with %s...\n", p, editor)
		c := exec.Command(editor, p) // #nosec G204 -- editor is from $EDITOR env var, intentional user-controlled binary
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

func init() {
	configShowCmd.Flags().StringVar(&configShowFormat, "output", "json", "Output format: json|yaml")
	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd, configEditCmd)
}
