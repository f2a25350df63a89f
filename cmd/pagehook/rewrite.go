package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pagehook/internal/dom"
	"pagehook/internal/preview"
	"pagehook/internal/rewrite"
)

// NewRewriteCmd creates the rewrite command.
func NewRewriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewrite [file]",
		Short: "Apply the hooks to an HTML document",
		Long: `Rewrite parses an HTML document (a file, or stdin when no file is given),
applies the hooks as if the page had been loaded from --base, and prints the
rewritten document.

Examples:
  pagehook rewrite --base https://example.com/docs/ page.html
  curl -s https://example.com/ | pagehook rewrite --base https://example.com/ --host proxy.local
  pagehook rewrite -c rewrite.yaml --report page.html`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRewriteCmd,
	}

	addRewriteFlags(cmd)
	cmd.Flags().Bool("report", false, "print the JSON rewrite report instead of the document")
	cmd.Flags().StringP("output", "o", "", "write the result to a file instead of stdout")

	return cmd
}

func runRewriteCmd(cmd *cobra.Command, args []string) error {
	cfg, err := rewriteConfig(cmd)
	if err != nil {
		return err
	}
	report, err := cmd.Flags().GetBool("report")
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	source := "stdin"
	if len(args) == 1 {
		f, err := os.Open(args[0]) //nolint:gosec // operator supplied path
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in, source = f, args[0]
	}

	doc, err := dom.Parse(in)
	if err != nil {
		return fmt.Errorf("parse %s: %w", source, err)
	}
	rep, err := applyHooks(cmd, doc, cfg)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output) //nolint:gosec // operator supplied path
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	if report {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	_, err = io.WriteString(out, doc.String())
	return err
}

func applyHooks(cmd *cobra.Command, doc *dom.Document, cfg rewrite.Config) (*preview.Report, error) {
	rep, err := preview.Apply(doc, cfg, pageLocation(cfg), commandLogger(cmd))
	if err != nil {
		return nil, err
	}
	rep.URL = cfg.BaseURL
	return rep, nil
}
