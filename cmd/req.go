package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/luma/herald/client"
)

var (
	reqTimeout  time.Duration
	reqOldStyle bool
	reqHeaders  []string
)

func init() {
	flags := ReqCmd.Flags()

	flags.DurationVar(&reqTimeout, "timeout", 2*time.Second, "How long to wait for a reply")
	flags.BoolVar(&reqOldStyle, "old-style", false, "Use a dedicated inbox subscription for the request")
	flags.StringSliceVarP(&reqHeaders, "header", "H", nil, "Header to add, as Key:Value")
}

var ReqCmd = &cobra.Command{
	Use:   "req <subject> <data>",
	Short: "Send a request and print the reply",
	Args:  cobra.ExactArgs(2),

	RunE: func(cmd *cobra.Command, args []string) error {
		hdr, err := parseHeaders(reqHeaders)
		if err != nil {
			return err
		}

		var extra []client.Option
		if reqOldStyle {
			extra = append(extra, client.UseOldRequestStyle())
		}

		s, err := openSession(context.Background(), extra...)
		if err != nil {
			return err
		}
		defer s.nc.Close()

		reply, err := s.nc.RequestMsg(&client.Msg{
			Subject: args[0],
			Header:  hdr,
			Data:    []byte(args[1]),
		}, reqTimeout)
		if err != nil {
			return err
		}

		for k, values := range reply.Header {
			for _, v := range values {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, v)
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(reply.Data))

		return nil
	},
}
