package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"node.town/mindy/devserver"
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local stand-in for the speech service",
	Long: `Serve the recognition, translation, synthesis and denoising endpoints
from memory, with optional latency and injected failures for trying out
error handling.`,
	RunE: runDevserver,
}

func init() {
	devserverCmd.Flags().String("addr", ":8000", "Address to listen on")
	devserverCmd.Flags().String("transcript", "", "Text every recognition returns")
	devserverCmd.Flags().
		StringToString("fail", nil, "Endpoint path to error message, e.g. /api/translate-text=down")
	devserverCmd.Flags().
		StringToInt("fail-status", nil, "Endpoint path to HTTP status, e.g. /api/stt=503")
	devserverCmd.Flags().Duration("latency", 0, "Delay before every API response")
	devserverCmd.Flags().Int("rate-limit", 0, "Requests per minute per client (0 keeps the default)")
}

func runDevserver(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}
	logs := createLoggers()

	opts := devserver.DefaultOptions()
	opts.Logger = logs.main.WithPrefix("http")

	flags := cmd.Flags()
	if transcript, _ := flags.GetString("transcript"); transcript != "" {
		opts.Transcript = transcript
	}
	opts.Fail, _ = flags.GetStringToString("fail")
	opts.FailStatus, _ = flags.GetStringToInt("fail-status")
	opts.Latency, _ = flags.GetDuration("latency")
	if err := checkPaths(opts.Fail, opts.FailStatus); err != nil {
		return err
	}
	if limit, _ := flags.GetInt("rate-limit"); limit > 0 {
		opts.RateLimit = limit
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	addr, _ := flags.GetString("addr")
	logs.main.Info("devserver", "addr", addr, "latency", opts.Latency.Round(time.Millisecond))
	return devserver.New(opts).ListenAndServe(ctx, addr)
}

func checkPaths(fail map[string]string, failStatus map[string]int) error {
	keys := make([]string, 0, len(fail)+len(failStatus))
	for k := range fail {
		keys = append(keys, k)
	}
	for k := range failStatus {
		keys = append(keys, k)
	}
	for _, k := range keys {
		if !slices.Contains(devserver.Paths, k) {
			return fmt.Errorf(
				"unknown endpoint %q, expected one of %s",
				k,
				strings.Join(devserver.Paths, ", "),
			)
		}
	}
	return nil
}
