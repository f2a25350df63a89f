package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pagehook.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagehook",
		Short: "Client-side URL rewriting hooks for proxied pages",
		Long: `pagehook rewrites every URL a proxied page would reach into the
proxy-relative form prefix + base64url(absolute URL).

The serve command runs a preview service that fetches a page and returns it
with the hooks applied. The rewrite and sweep commands do the same for local
files, and decode turns proxy paths back into the URLs they carry.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewRewriteCmd())
	cmd.AddCommand(NewDecodeCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandLogger logs to stderr when --verbose is set and discards otherwise.
func commandLogger(cmd *cobra.Command) *log.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(cmd.ErrOrStderr(), "", log.LstdFlags|log.Lmicroseconds)
}
