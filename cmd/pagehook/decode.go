package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"pagehook/internal/rewrite"
)

// NewDecodeCmd creates the decode command.
func NewDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <token|path|url>...",
		Short: "Decode proxy paths back into the URLs they carry",
		Long: `Decode accepts bare tokens, proxy paths such as /p/<token>, or full URLs
whose path is under the proxy prefix, and prints one decoded URL per line.

Examples:
  pagehook decode aHR0cHM6Ly9leGFtcGxlLmNvbS8
  pagehook decode http://proxy.local/p/aHR0cHM6Ly9leGFtcGxlLmNvbS8`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDecodeCmd,
	}

	cmd.Flags().String("prefix", rewrite.DefaultPrefix, "proxy path prefix")

	return cmd
}

func runDecodeCmd(cmd *cobra.Command, args []string) error {
	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return err
	}
	rw := rewrite.New(rewrite.Config{Prefix: prefix})
	for _, arg := range args {
		decoded, err := decodeArg(rw, arg)
		if err != nil {
			return fmt.Errorf("decode %q: %w", arg, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), decoded)
	}
	return nil
}

func decodeArg(rw *rewrite.Rewriter, arg string) (string, error) {
	path := arg
	if u, err := url.Parse(arg); err == nil && u.Scheme != "" && u.Host != "" {
		path = u.EscapedPath()
	}
	if strings.HasPrefix(path, rw.Prefix()) {
		return rw.DecodePath(path)
	}
	if strings.HasPrefix(path, "/") {
		return "", rewrite.ErrNotProxied
	}
	return rewrite.Decode(path)
}
