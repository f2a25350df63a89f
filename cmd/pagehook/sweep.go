package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pagehook/internal/dom"
	"pagehook/internal/preview"
	"pagehook/internal/rewrite"
)

var errSweepFailed = errors.New("some files could not be rewritten")

// NewSweepCmd creates the sweep command.
func NewSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep <file>...",
		Short: "Apply the hooks to many HTML files concurrently",
		Long: `Sweep rewrites a set of saved pages and prints how many URLs were
rewritten in each. With --root, every file's base URL is its path relative to
the root resolved against --base, so a mirrored site keeps its relative links.
With --out, rewritten documents are written under that directory.

Examples:
  pagehook sweep --base https://example.com/ page1.html page2.html
  pagehook sweep --base https://example.com/ --root mirror --out rewritten mirror/*.html`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSweepCmd,
	}

	addRewriteFlags(cmd)
	cmd.Flags().String("root", "", "directory the files' base URLs are relative to")
	cmd.Flags().String("out", "", "directory to write rewritten files to")
	cmd.Flags().IntP("jobs", "j", runtime.NumCPU(), "files processed concurrently")

	return cmd
}

type sweepResult struct {
	file string
	rep  *preview.Report
	err  error
}

func runSweepCmd(cmd *cobra.Command, args []string) error {
	cfg, err := rewriteConfig(cmd)
	if err != nil {
		return err
	}
	root, err := cmd.Flags().GetString("root")
	if err != nil {
		return err
	}
	out, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return err
	}
	if jobs < 1 {
		jobs = 1
	}

	results := make([]sweepResult, len(args))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(jobs)
	for i, file := range args {
		i, file := i, file
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			rep, err := sweepFile(cmd, cfg, file, root, out)
			mu.Lock()
			results[i] = sweepResult{file: file, rep: rep, err: err}
			mu.Unlock()
			// a broken file does not stop the others
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	w := cmd.OutOrStdout()
	for _, res := range results {
		if res.err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", res.file, res.err)
			continue
		}
		fmt.Fprintf(w, "%s: %d rewritten in %d elements\n", res.file, res.rep.Total, res.rep.Elements)
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errSweepFailed, failed, len(args))
	}
	return nil
}

func sweepFile(cmd *cobra.Command, cfg rewrite.Config, file, root, out string) (*preview.Report, error) {
	rel := filepath.Base(file)
	if root != "" {
		r, err := filepath.Rel(root, file)
		if err != nil {
			return nil, err
		}
		rel = r
		cfg.BaseURL = fileBaseURL(cfg.BaseURL, rel)
	}

	f, err := os.Open(file) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := dom.Parse(f)
	if err != nil {
		return nil, err
	}
	rep, err := applyHooks(cmd, doc, cfg)
	if err != nil {
		return nil, err
	}

	if out != "" {
		dst := filepath.Join(out, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
		if err := os.WriteFile(dst, []byte(doc.String()), 0o600); err != nil {
			return nil, fmt.Errorf("write %s: %w", dst, err)
		}
	}
	return rep, nil
}

// fileBaseURL resolves a file's path relative to the sweep root against base.
func fileBaseURL(base, rel string) string {
	b, err := url.Parse(base)
	if err != nil {
		return base
	}
	ref := &url.URL{Path: filepath.ToSlash(rel)}
	return b.ResolveReference(ref).String()
}

