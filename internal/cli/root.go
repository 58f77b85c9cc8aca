// Package cli implements the mintforge command-line client.
package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pendergraft/mintforge/pkg/client"
)

const defaultServer = "http://localhost:8080"

var (
	cfgFile    string
	server     string
	jsonOutput bool
	version    = "dev"
)

// Execute runs the CLI
func Execute(v string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd(v).ExecuteContext(ctx)
}

func newRootCmd(v string) *cobra.Command {
	version = v
	rootCmd := &cobra.Command{
		Use:           "mintforge",
		Short:         "Mint LSP8 tokens through a mintforge server",
		Long:          `mintforge is a CLI for generating images, pinning them to IPFS and minting LSP8 tokens with verifiable LSP4 metadata.`,
		Version:       v,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "project config file (default: mintforge.toml)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "server URL (default from config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(createMintCmd())
	rootCmd.AddCommand(createImageCmd())
	rootCmd.AddCommand(createMintsCmd())
	rootCmd.AddCommand(createCollectionCmd())
	rootCmd.AddCommand(createConfigCmd())

	return rootCmd
}

// getServer returns the server URL from flag, env, project config, global
// config or the default, in that order.
func getServer() string {
	if server != "" {
		return server
	}

	if env := os.Getenv("MINTFORGE_SERVER"); env != "" {
		return env
	}

	if config := loadProjectConfigSilent(); config != nil && config.Server != "" {
		return config.Server
	}

	if global, err := loadGlobalConfig(); err == nil && global.Server != "" {
		return global.Server
	}

	return defaultServer
}

func newClient() *client.Client {
	return client.New(getServer(), client.WithUserAgent("mintforge-cli/"+version))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncateAddress(addr string) string {
	if len(addr) <= 14 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
