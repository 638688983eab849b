package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/herald/client"
)

var replyQueue string

func init() {
	ReplyCmd.Flags().StringVar(&replyQueue, "queue", "", "Queue group to join")
}

var ReplyCmd = &cobra.Command{
	Use:   "reply <subject> <data>",
	Short: "Answer every request on a subject with a fixed response",
	Args:  cobra.ExactArgs(2),

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer signalStop()

		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.nc.Close()

		response := []byte(args[1])

		_, err = s.nc.QueueSubscribe(args[0], replyQueue, func(m *client.Msg) {
			if err := m.Respond(response); err != nil {
				s.log.Warn("Failed to respond", zap.String("subject", m.Subject), zap.Error(err))
			}
		})
		if err != nil {
			return err
		}

		s.log.Info("Replying", zap.String("subject", args[0]), zap.String("queue", replyQueue))

		return s.waitAndDrain(ctx)
	},
}
