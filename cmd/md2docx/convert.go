// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/md2docx/internal/artifact"
)

var convertCmd = &cobra.Command{
	Use:   "convert [file]",
	Short: "Convert one markdown file to DOCX",
	Long: `Convert reads markdown from file, or from stdin when no file is given,
and writes a Word document.

The output defaults to the input path with a .docx extension. When reading
stdin the document is written to the current directory under a generated
name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringP("output", "o", "", "output DOCX path")
	convertCmd.Flags().StringP("backend", "b", "", "conversion backend: auto, pandoc, container")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	markdown, source, err := readMarkdown(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	// The CLI hands the document over immediately, so the ledger never
	// needs to outlive this process.
	store := artifact.NewMemoryStore()
	svc, err := newService(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	a, err := svc.Convert(ctx, markdown)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Release(ctx, a); err != nil {
			logger.Warn().Err(err).Msg("releasing converted document")
		}
	}()

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = defaultOutputPath(source, a.Filename)
	}
	if err := copyFile(a.Path, output); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", output, a.Size)
	return nil
}

// readMarkdown returns the markdown text and the path it came from, which
// is empty for stdin.
func readMarkdown(stdin io.Reader, args []string) (string, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "", nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), args[0], nil
}

func defaultOutputPath(source, generated string) string {
	if source == "" {
		return generated
	}
	return strings.TrimSuffix(source, filepath.Ext(source)) + ".docx"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
