package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/herald/client"
)

var (
	pubReply   string
	pubHeaders []string
	pubCount   int
)

func init() {
	flags := PubCmd.Flags()

	flags.StringVar(&pubReply, "reply", "", "Reply subject to publish with")
	flags.StringSliceVarP(&pubHeaders, "header", "H", nil, "Header to add, as Key:Value")
	flags.IntVar(&pubCount, "count", 1, "Number of times to publish the message")
}

var PubCmd = &cobra.Command{
	Use:   "pub <subject> <data>",
	Short: "Publish a message",
	Args:  cobra.ExactArgs(2),

	RunE: func(cmd *cobra.Command, args []string) error {
		hdr, err := parseHeaders(pubHeaders)
		if err != nil {
			return err
		}

		s, err := openSession(context.Background())
		if err != nil {
			return err
		}
		defer s.nc.Close()

		msg := &client.Msg{
			Subject: args[0],
			Reply:   pubReply,
			Header:  hdr,
			Data:    []byte(args[1]),
		}

		for i := 0; i < pubCount; i++ {
			if err := s.nc.PublishMsg(msg); err != nil {
				return err
			}
		}

		if err := s.nc.Flush(); err != nil {
			return err
		}

		s.log.Info("Published",
			zap.String("subject", msg.Subject),
			zap.Int("count", pubCount),
			zap.Uint64("bytes", s.nc.Stats().OutBytes))

		return nil
	},
}
