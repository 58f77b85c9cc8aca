package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/mintforge/pkg/client"
)

func createMintsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mints",
		Short: "Inspect, resume and verify recorded mints",
	}

	cmd.AddCommand(createMintsListCmd())
	cmd.AddCommand(createMintsGetCmd())
	cmd.AddCommand(createMintsResumeCmd())
	cmd.AddCommand(createMintsVerifyCmd())

	return cmd
}

func createMintsListCmd() *cobra.Command {
	var opts client.ListMintsOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List mints",
		Long: `List recorded mints, newest first.

EXAMPLES:
  mintforge mints list
  mintforge mints list --status failed
  mintforge mints list --recipient 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed --json
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMintsList(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by status (pending, image_pinned, metadata_pinned, minted, completed, failed)")
	cmd.Flags().StringVar(&opts.Recipient, "recipient", "", "filter by recipient address")
	cmd.Flags().StringVar(&opts.Collection, "collection", "", "filter by collection address")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of items to show")
	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "continue from a previous page")

	return cmd
}

func createMintsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMintsGet(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

func createMintsResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a failed mint",
		Long: `Continue a failed mint from its last completed step. Content that was
already pinned is reused and completed transactions are not sent again.

EXAMPLES:
  mintforge mints resume 3f1c2a9e-6a43-4f0e-9d43-1f5b2a0c7e11
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMintsResume(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

func createMintsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <id>",
		Short: "Verify a mint's content and on-chain metadata",
		Long: `Fetch the pinned image and metadata, recompute their hashes and compare
them with the record and with the VerifiableURI stored on-chain.

Exits non-zero when any check fails.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMintsVerify(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}
}

func runMintsList(ctx context.Context, out io.Writer, opts client.ListMintsOptions) error {
	resp, err := newClient().ListMints(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to list mints: %w", err)
	}

	if jsonOutput {
		return printJSON(out, resp)
	}

	if len(resp.Data) == 0 {
		fmt.Fprintln(out, "No mints found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTOKEN\tNAME\tRECIPIENT\tSTATUS\tCREATED")
	for _, m := range resp.Data {
		status := m.Status
		if m.Failed {
			status += " (failed)"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			m.ID, m.TokenID, m.Name, truncateAddress(m.Recipient), status,
			m.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()

	if resp.Pagination.HasMore {
		fmt.Fprintf(out, "\n(more available: --cursor %s)\n", resp.Pagination.NextCursor)
	}
	return nil
}

func runMintsGet(ctx context.Context, out io.Writer, id string) error {
	m, err := newClient().GetMint(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get mint: %w", err)
	}

	if jsonOutput {
		return printJSON(out, m)
	}

	fmt.Fprintf(out, "Mint %s\n", m.ID)
	fmt.Fprintf(out, "  Status:     %s\n", m.Status)
	if m.Error != "" {
		fmt.Fprintf(out, "  Error:      %s\n", m.Error)
	}
	fmt.Fprintf(out, "  Collection: %s (chain %d)\n", m.CollectionAddress, m.ChainID)
	fmt.Fprintf(out, "  Token:      %d (%s)\n", m.TokenID, m.TokenIDHex)
	fmt.Fprintf(out, "  Recipient:  %s\n", m.Recipient)
	fmt.Fprintf(out, "  Name:       %s\n", m.Name)
	if m.Description != "" {
		fmt.Fprintf(out, "  Description: %s\n", m.Description)
	}
	for _, a := range m.Attributes {
		fmt.Fprintf(out, "  - %s: %v\n", a.TraitType, a.Value)
	}
	printIfSet(out, "Image CID", m.ImageCID)
	printIfSet(out, "Image hash", m.ImageHash)
	printIfSet(out, "Meta CID", m.MetadataCID)
	printIfSet(out, "Meta hash", m.MetadataHash)
	printIfSet(out, "Mint tx", m.MintTxHash)
	printIfSet(out, "Data tx", m.DataTxHash)
	printIfSet(out, "Global tx", m.GlobalDataTxHash)
	fmt.Fprintf(out, "  Created:    %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  Updated:    %s\n", m.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func printIfSet(out io.Writer, label, value string) {
	if value != "" {
		fmt.Fprintf(out, "  %-11s %s\n", label+":", value)
	}
}

func runMintsResume(ctx context.Context, out io.Writer, id string) error {
	resp, err := newClient().ResumeMint(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to resume mint: %w", err)
	}

	if jsonOutput {
		return printJSON(out, resp)
	}
	fmt.Fprintf(out, "Mint %s %s: token %d in %s\n", resp.Message.MintID, resp.Message.Status, resp.TokenID, resp.ContractAddress)
	return nil
}

func runMintsVerify(ctx context.Context, out io.Writer, id string) error {
	res, err := newClient().VerifyMint(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to verify mint: %w", err)
	}

	if jsonOutput {
		if err := printJSON(out, res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Verifying mint %s (token %d)\n\n", res.MintID, res.TokenID)
		for _, c := range res.Checks {
			mark := "PASS"
			if !c.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(out, "  [%s] %s\n", mark, c.Name)
			if !c.Passed {
				if c.Message != "" {
					fmt.Fprintf(out, "         %s\n", c.Message)
				}
				fmt.Fprintf(out, "         expected: %s\n", c.Expected)
				fmt.Fprintf(out, "         actual:   %s\n", c.Actual)
			}
		}
		fmt.Fprintln(out)
	}

	if !res.Verified {
		return fmt.Errorf("mint %s failed verification", res.MintID)
	}
	if !jsonOutput {
		fmt.Fprintln(out, "VERIFIED")
	}
	return nil
}
