package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const projectConfigFile = "mintforge.toml"

// ProjectConfig is the project-level TOML configuration
type ProjectConfig struct {
	Server     string            `toml:"server"`
	Recipient  string            `toml:"recipient,omitempty"`
	Attributes map[string]string `toml:"attributes,omitempty"`
}

// GlobalConfig is the user configuration stored in ~/.mintforge/config.yaml
type GlobalConfig struct {
	Server string `yaml:"server"`
}

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var serverURL string
	var recipient string
	var global bool
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a mintforge.toml configuration file in the current directory,
or ~/.mintforge/config.yaml with --global.

EXAMPLES:
  # Create project config with default server
  mintforge config init

  # Set a default recipient for this project
  mintforge config init --recipient 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed

  # Remember a server for every project
  mintforge config init --global --server https://mint.example.com
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if global {
				return runConfigInitGlobal(cmd.OutOrStdout(), serverURL, force)
			}
			return runConfigInit(cmd.OutOrStdout(), serverURL, recipient, force)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", defaultServer, "server URL")
	cmd.Flags().StringVar(&recipient, "recipient", "", "default recipient address for mint")
	cmd.Flags().BoolVar(&global, "global", false, "write ~/.mintforge/config.yaml instead")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display every configuration source and the effective server URL.

EXAMPLES:
  mintforge config show
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}
}

func runConfigInit(out io.Writer, serverURL, recipient string, force bool) error {
	path := projectConfigFile
	if cfgFile != "" {
		path = cfgFile
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	content := fmt.Sprintf(`# mintforge project configuration

server = %q
`, serverURL)
	if recipient != "" {
		content += fmt.Sprintf("recipient = %q\n", recipient)
	} else {
		content += "# recipient = \"0x...\"\n"
	}
	content += `
# Attributes added to every token minted from this directory.
# Values given with --attr take precedence.
# [attributes]
# Edition = "Genesis"
`

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", path)
	fmt.Fprintf(out, "  Server: %s\n", serverURL)
	return nil
}

func runConfigInitGlobal(out io.Writer, serverURL string, force bool) error {
	path := globalConfigPath()
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(GlobalConfig{Server: serverURL})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", path)
	return nil
}

func runConfigShow(out io.Writer) error {
	fmt.Fprintln(out, "Configuration sources (in order of precedence):")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "1. Command line flags")
	if server != "" {
		fmt.Fprintf(out, "   --server=%s\n", server)
	} else {
		fmt.Fprintln(out, "   --server (not set)")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "2. Environment variables")
	if env := os.Getenv("MINTFORGE_SERVER"); env != "" {
		fmt.Fprintf(out, "   MINTFORGE_SERVER=%s\n", env)
	} else {
		fmt.Fprintln(out, "   MINTFORGE_SERVER=(not set)")
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "3. Project config (%s)\n", projectConfigFile)
	project, path, err := loadProjectConfig()
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintln(out, "   (not found)")
	case err != nil:
		fmt.Fprintf(out, "   Error: %v\n", err)
	default:
		fmt.Fprintf(out, "   Loaded from: %s\n", path)
		if project.Server != "" {
			fmt.Fprintf(out, "   server: %s\n", project.Server)
		}
		if project.Recipient != "" {
			fmt.Fprintf(out, "   recipient: %s\n", project.Recipient)
		}
		for k, v := range project.Attributes {
			fmt.Fprintf(out, "   attributes.%s: %s\n", k, v)
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "4. Global config (%s)\n", globalConfigPath())
	global, err := loadGlobalConfig()
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintln(out, "   (not found)")
	case err != nil:
		fmt.Fprintf(out, "   Error: %v\n", err)
	case global.Server != "":
		fmt.Fprintf(out, "   server: %s\n", global.Server)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Effective configuration:")
	fmt.Fprintf(out, "   Server: %s\n", getServer())
	return nil
}

// loadProjectConfig loads the --config file or mintforge.toml from the
// working directory, returning the path it was read from.
func loadProjectConfig() (*ProjectConfig, string, error) {
	path := projectConfigFile
	if cfgFile != "" {
		path = cfgFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, err
	}

	var config ProjectConfig
	if _, err := toml.Decode(string(data), &config); err != nil {
		return nil, path, fmt.Errorf("parsing TOML: %w", err)
	}
	return &config, path, nil
}

// loadProjectConfigSilent returns nil when there is no project config and
// warns on parse failures.
func loadProjectConfigSilent() *ProjectConfig {
	config, _, err := loadProjectConfig()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load project config: %v\n", err)
		}
		return nil
	}
	return config
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mintforge"
	}
	return filepath.Join(home, ".mintforge")
}

func globalConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func loadGlobalConfig() (*GlobalConfig, error) {
	data, err := os.ReadFile(globalConfigPath())
	if err != nil {
		return nil, err
	}
	var config GlobalConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", globalConfigPath(), err)
	}
	return &config, nil
}
