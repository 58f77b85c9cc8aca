package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func createImageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Generate and pin images",
	}

	cmd.AddCommand(createImageGenerateCmd())
	cmd.AddCommand(createImagePinCmd())

	return cmd
}

func createImageGenerateCmd() *cobra.Command {
	var prompt string
	var outPath string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an image from a prompt",
		Long: `Ask the server to generate an image and save it locally.

EXAMPLES:
  mintforge image generate --prompt "a golden ticket, pixel art" --out ticket.png

  # Print base64 image data instead of writing a file
  mintforge image generate --prompt "a golden ticket"
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImageGenerate(cmd.Context(), cmd.OutOrStdout(), prompt, outPath)
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "image prompt (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "write the decoded image to this file")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func createImagePinCmd() *cobra.Command {
	var file string
	var name string

	cmd := &cobra.Command{
		Use:   "pin",
		Short: "Pin an image file to IPFS",
		Long: `Upload an image file through the server's pinning service.

EXAMPLES:
  mintforge image pin --file ticket.png
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImagePin(cmd.Context(), cmd.OutOrStdout(), file, name)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "image file (required)")
	cmd.Flags().StringVar(&name, "name", "", "file name to pin under (default: base name of --file)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImageGenerate(ctx context.Context, out io.Writer, prompt, outPath string) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("prompt is required")
	}

	data, err := newClient().GenerateImage(ctx, prompt)
	if err != nil {
		return fmt.Errorf("failed to generate image: %w", err)
	}

	if outPath == "" {
		if jsonOutput {
			return printJSON(out, map[string]string{"imageData": data})
		}
		fmt.Fprintln(out, data)
		return nil
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("server returned invalid image data: %w", err)
	}
	if err := os.WriteFile(outPath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}

	if jsonOutput {
		return printJSON(out, map[string]any{"file": outPath, "size": len(raw)})
	}
	fmt.Fprintf(out, "Saved %s (%d bytes)\n", outPath, len(raw))
	return nil
}

func runImagePin(ctx context.Context, out io.Writer, file, name string) error {
	media, err := readImageDataURL(file)
	if err != nil {
		return err
	}
	if name == "" {
		name = filepath.Base(file)
	}

	pinned, err := newClient().SaveToIPFS(ctx, media, name)
	if err != nil {
		return fmt.Errorf("failed to pin image: %w", err)
	}

	if jsonOutput {
		return printJSON(out, pinned)
	}
	fmt.Fprintf(out, "Pinned %s\n", name)
	fmt.Fprintf(out, "  CID:     %s\n", pinned.IPFSHash)
	fmt.Fprintf(out, "  URI:     %s\n", pinned.IPFSURI)
	fmt.Fprintf(out, "  Gateway: %s\n", pinned.IPFSURL)
	fmt.Fprintf(out, "  Hash:    %s\n", pinned.Hash)
	return nil
}
