package main

import (
	"context"
	"fmt"
	"github.com/myrjola/pinearchives/cmd/cli/casefile"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
	"syscall"
)

func init() {
	rootCmd.AddGroup(casefile.Group)
	rootCmd.AddCommand(casefile.Commands()...)
}

var rootCmd = &cobra.Command{
	Use:          "pinearchives-cli",
	Long:         `Work the Pine Sanatorium case file from the terminal. The case is saved between invocations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
