package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pendergraft/mintforge/internal/chains/evm"
	"github.com/pendergraft/mintforge/internal/config"
	"github.com/pendergraft/mintforge/internal/server"
	"github.com/pendergraft/mintforge/internal/storage"
)

// promptKey fills in the admin key from an interactive prompt when the
// environment does not provide one.
func promptKey(cfg *config.Config) error {
	if cfg.Chain.PrivateKey != "" {
		return nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("ADMIN_PRIVATE_KEY is not set")
	}
	fmt.Fprint(os.Stderr, "Admin private key: ")
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading key: %w", err)
	}
	cfg.Chain.PrivateKey = strings.TrimSpace(string(key))
	return nil
}

func newWalletCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Inspect the admin wallet",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "address",
		Short: "Print the admin address derived from ADMIN_PRIVATE_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := promptKey(cfg); err != nil {
				return err
			}
			kp, err := evm.LoadKey(cfg.Chain.PrivateKey)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), kp.Address.String())
			return nil
		},
	})
	return cmd
}

// withServer builds the services against the configured store and node.
func withServer(load loader, fn func(ctx context.Context, srv *server.Server) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	if err := promptKey(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := quietLogger()
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := server.New(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	return fn(ctx, srv)
}

func newCollectionCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage the collection contract",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "resolve",
		Short: "Load, attach or deploy the configured collection now",
		Long: `Resolve the configured collection the same way the first mint would:
load it from the store, attach to COLLECTION_ADDRESS, or deploy a new contract.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServer(load, func(ctx context.Context, srv *server.Server) error {
				col, err := srv.Collections().Resolve(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Address:\t%s\n", col.Address)
				fmt.Fprintf(w, "Chain ID:\t%d\n", col.ChainID)
				fmt.Fprintf(w, "Name:\t%s (%s)\n", col.Name, col.Symbol)
				fmt.Fprintf(w, "Owner:\t%s\n", col.Owner)
				fmt.Fprintf(w, "Source:\t%s\n", col.Source)
				if col.TxHash != "" {
					fmt.Fprintf(w, "Deploy tx:\t%s\n", col.TxHash)
				}
				return w.Flush()
			})
		},
	})
	return cmd
}

func newMintsCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mints",
		Short: "Inspect and repair recorded mints",
	}
	cmd.AddCommand(newMintsListCmd(load))
	cmd.AddCommand(newMintsResumeCmd(load))
	return cmd
}

func newMintsListCmd(load loader) *cobra.Command {
	var status, recipient string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded mints, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, err := openStore(ctx, cfg, quietLogger())
			if err != nil {
				return err
			}
			defer store.Close()

			res, err := store.ListMints(ctx,
				storage.MintFilter{Status: status, Recipient: recipient},
				storage.PaginationParams{Limit: limit},
			)
			if err != nil {
				return fmt.Errorf("listing mints: %w", err)
			}
			if len(res.Data) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No mints found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTOKEN\tSTATUS\tRECIPIENT\tCREATED")
			for _, m := range res.Data {
				st := m.Status
				if m.Error != "" {
					st += " (failed)"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", m.ID, m.TokenID, st, m.Recipient, m.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, image_pinned, metadata_pinned, minted, completed, failed)")
	cmd.Flags().StringVar(&recipient, "recipient", "", "filter by recipient address")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of mints")
	return cmd
}

func newMintsResumeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Continue a failed mint from its last recorded step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServer(load, func(ctx context.Context, srv *server.Server) error {
				res, err := srv.Mints().Resume(ctx, args[0])
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Mint:\t%s\n", res.MintID)
				fmt.Fprintf(w, "Status:\t%s\n", res.Status)
				fmt.Fprintf(w, "Token:\t%d (%s)\n", res.TokenID, res.TokenIDHex)
				fmt.Fprintf(w, "Contract:\t%s\n", res.ContractAddress)
				fmt.Fprintf(w, "Metadata:\t%s\n", res.MetadataURI)
				fmt.Fprintf(w, "Mint tx:\t%s\n", res.MintTxHash)
				fmt.Fprintf(w, "Data tx:\t%s\n", res.DataTxHash)
				return w.Flush()
			})
		},
	}
}
