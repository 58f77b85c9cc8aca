package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pendergraft/mintforge/pkg/client"
)

func createCollectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Collection commands",
	}

	cmd.AddCommand(createCollectionShowCmd())

	return cmd
}

func createCollectionShowCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the collection tokens are minted into",
		Long: `Show the current LSP8 collection.

With --verify, also compare the contract's runtime bytecode with the
compiled artifact. Metadata-only differences count as a partial match.

EXAMPLES:
  mintforge collection show
  mintforge collection show --verify
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollectionShow(cmd.Context(), cmd.OutOrStdout(), verify)
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "verify the deployed bytecode")

	return cmd
}

func runCollectionShow(ctx context.Context, out io.Writer, verify bool) error {
	c := newClient()

	col, err := c.CurrentCollection(ctx)
	if err != nil {
		return fmt.Errorf("failed to get collection: %w", err)
	}

	if !verify {
		if jsonOutput {
			return printJSON(out, col)
		}
		printCollection(out, col)
		return nil
	}

	res, err := c.VerifyCollection(ctx, col.Address)
	if err != nil {
		return fmt.Errorf("failed to verify collection: %w", err)
	}

	if jsonOutput {
		return printJSON(out, map[string]any{"collection": col, "verification": res})
	}

	printCollection(out, col)
	fmt.Fprintln(out)
	switch res.MatchType {
	case "full":
		fmt.Fprintln(out, "VERIFIED - Full match")
		fmt.Fprintln(out, "   Deployed bytecode exactly matches the artifact")
	case "partial":
		fmt.Fprintln(out, "VERIFIED - Partial match")
		fmt.Fprintln(out, "   Executable code matches, but metadata differs")
	default:
		fmt.Fprintln(out, "NOT VERIFIED - No match")
		if res.Message != "" {
			fmt.Fprintf(out, "   Reason: %s\n", res.Message)
		}
	}
	if res.Details != nil {
		fmt.Fprintf(out, "   Expected: %s\n", res.Details.ExpectedBytecodeHash)
		fmt.Fprintf(out, "   Actual:   %s\n", res.Details.ActualBytecodeHash)
	}

	if !res.Verified {
		return fmt.Errorf("collection %s failed verification", col.Address)
	}
	return nil
}

func printCollection(out io.Writer, col *client.Collection) {
	fmt.Fprintf(out, "Collection %s\n", col.Address)
	fmt.Fprintf(out, "  Name:   %s (%s)\n", col.Name, col.Symbol)
	fmt.Fprintf(out, "  Chain:  %d\n", col.ChainID)
	fmt.Fprintf(out, "  Owner:  %s\n", col.Owner)
	fmt.Fprintf(out, "  Source: %s\n", col.Source)
}
