package cli

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pendergraft/mintforge/pkg/client"
)

type mintOptions struct {
	to          string
	name        string
	description string
	image       string
	attrs       []string
	tokenID     uint64
	hasTokenID  bool
}

func createMintCmd() *cobra.Command {
	var opts mintOptions

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a token with an image and metadata",
		Long: `Upload an image, pin its LSP4 metadata and mint an LSP8 token to a recipient.

If the server fails part way through, the error includes the mint id;
continue it with 'mintforge mints resume <id>'.

EXAMPLES:
  # Mint with the next free token id
  mintforge mint --to 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed \
    --name "Gold Pass" --image pass.png --attr Tier=Gold --attr Level=3

  # Mint a specific token id
  mintforge mint --to 0x5aAe... --name "Gold Pass" --image pass.png --token-id 42
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.hasTokenID = cmd.Flags().Changed("token-id")
			return runMint(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.to, "to", "", "recipient address (default from config)")
	cmd.Flags().StringVar(&opts.name, "name", "", "token name (required)")
	cmd.Flags().StringVar(&opts.description, "description", "", "token description")
	cmd.Flags().StringVar(&opts.image, "image", "", "image file (required)")
	cmd.Flags().StringArrayVar(&opts.attrs, "attr", nil, "attribute as key=value (repeatable)")
	cmd.Flags().Uint64Var(&opts.tokenID, "token-id", 0, "token id (default: next free id)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func runMint(ctx context.Context, out io.Writer, opts mintOptions) error {
	project := loadProjectConfigSilent()

	to := opts.to
	if to == "" && project != nil {
		to = project.Recipient
	}
	if to == "" {
		return errors.New("recipient required (use --to or set recipient in mintforge.toml)")
	}

	var defaults map[string]string
	if project != nil {
		defaults = project.Attributes
	}
	attrs, err := parseAttributes(defaults, opts.attrs)
	if err != nil {
		return err
	}

	media, err := readImageDataURL(opts.image)
	if err != nil {
		return err
	}

	req := client.MintRequest{
		RecipientAddress: to,
		Metadata: &client.Metadata{
			Name:        opts.name,
			Description: opts.description,
			MediaURL:    media,
			Attributes:  attrs,
		},
	}
	if opts.hasTokenID {
		req.TokenID = &opts.tokenID
	}

	if !jsonOutput {
		fmt.Fprintf(out, "Minting %q to %s\n", opts.name, truncateAddress(to))
	}

	resp, err := newClient().Mint(ctx, req)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.MintID() != "" {
			return fmt.Errorf("mint failed: %w\nresume with: mintforge mints resume %s", err, apiErr.MintID())
		}
		return fmt.Errorf("mint failed: %w", err)
	}

	if jsonOutput {
		return printJSON(out, resp)
	}

	r := resp.Message
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Minted token %d\n", r.TokenID)
	fmt.Fprintf(out, "  Mint ID:    %s\n", r.MintID)
	fmt.Fprintf(out, "  Collection: %s\n", r.ContractAddress)
	fmt.Fprintf(out, "  Token ID:   %s\n", r.TokenIDHex)
	fmt.Fprintf(out, "  Image:      %s\n", r.ImageURI)
	fmt.Fprintf(out, "  Metadata:   %s\n", r.MetadataURI)
	fmt.Fprintf(out, "  Mint tx:    %s\n", r.MintTxHash)
	fmt.Fprintf(out, "  Data tx:    %s\n", r.DataTxHash)
	if r.GlobalDataTxHash != "" {
		fmt.Fprintf(out, "  Global tx:  %s\n", r.GlobalDataTxHash)
	}
	return nil
}

// parseAttributes merges config defaults with key=value flags. Flags win on
// duplicate keys; defaults come first in key order.
func parseAttributes(defaults map[string]string, flags []string) ([]client.Attribute, error) {
	values := make(map[string]string, len(defaults)+len(flags))
	var order []string

	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values[k] = defaults[k]
		order = append(order, k)
	}

	for _, f := range flags {
		k, v, ok := strings.Cut(f, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid attribute %q: expected key=value", f)
		}
		if _, seen := values[k]; !seen {
			order = append(order, k)
		}
		values[k] = v
	}

	attrs := make([]client.Attribute, 0, len(order))
	for _, k := range order {
		attrs = append(attrs, attributeValue(k, values[k]))
	}
	return attrs, nil
}

func attributeValue(key, raw string) client.Attribute {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return client.Attribute{TraitType: key, Value: n}
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return client.Attribute{TraitType: key, Value: b}
	}
	return client.Attribute{TraitType: key, Value: raw}
}

// readImageDataURL reads an image file and returns it as a data URL.
func readImageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image %s is empty", path)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%s does not look like an image (%s)", path, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
