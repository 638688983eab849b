package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/herald/client"
)

var (
	subQueue    string
	subCount    int
	subHTTPHost string
	subHTTPPort string
)

func init() {
	flags := SubCmd.Flags()

	flags.StringVar(&subQueue, "queue", "", "Queue group to join")
	flags.IntVar(&subCount, "count", 0, "Exit after this many messages, 0 waits forever")
	flags.StringVar(&subHTTPHost, "http-host", "127.0.0.1", "The host to serve the monitoring endpoint on")
	flags.StringVar(&subHTTPPort, "http-port", "", "The port to serve the monitoring endpoint on, disabled when empty")
}

var SubCmd = &cobra.Command{
	Use:   "sub <subject>",
	Short: "Subscribe to a subject and print what arrives",
	Args:  cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer signalStop()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.nc.Close()

		if subHTTPPort != "" {
			stop, err := startMonitoring(s.nc, subHTTPHost, subHTTPPort, s.conf.DebugHTTP, s.log.Named("http"))
			if err != nil {
				return err
			}
			defer stop()
		}

		out := cmd.OutOrStdout()
		done := make(chan struct{})

		var received int64

		sub, err := s.nc.QueueSubscribe(args[0], subQueue, func(m *client.Msg) {
			n := atomic.AddInt64(&received, 1)

			fmt.Fprintf(out, "[#%d] %s", n, m.Subject)
			if m.Reply != "" {
				fmt.Fprintf(out, " reply=%s", m.Reply)
			}
			fmt.Fprintln(out)

			for k, values := range m.Header {
				for _, v := range values {
					fmt.Fprintf(out, "  %s: %s\n", k, v)
				}
			}
			fmt.Fprintln(out, string(m.Data))

			if subCount > 0 && n == int64(subCount) {
				close(done)
			}
		})
		if err != nil {
			return err
		}

		if subCount > 0 {
			if err := sub.AutoUnsubscribe(subCount); err != nil {
				return err
			}
		}

		s.log.Info("Listening", zap.String("subject", args[0]), zap.String("queue", subQueue))

		select {
		case <-done:
			return nil
		default:
		}

		waitCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			select {
			case <-done:
				cancel()
			case <-waitCtx.Done():
			}
		}()

		return s.waitAndDrain(waitCtx)
	},
}
