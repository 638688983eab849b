package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/herald/cmd/gen"
	"github.com/luma/herald/internal/meta"
)

var (
	// Comma separated list of servers
	servers string

	name     string
	user     string
	password string
	token    string
	logLevel string
)

var RootCmd = &cobra.Command{
	Use:   "herald",
	Short: "Publish, subscribe and make requests against a NATS server",
	Long: `Publish, subscribe and make requests against a NATS server.

Connection settings are read from the environment (HERALD_URL, HERALD_NAME,
HERALD_USER, HERALD_PASSWORD, HERALD_TOKEN, HERALD_LOG_LEVEL) and from a
.env.local file in the current directory. Flags take precedence.
`,
	SilenceUsage: true,
	Version:      meta.ClientVersion(),
}

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringVarP(&servers, "server", "s", "", "Comma separated list of servers to connect to")
	flags.StringVar(&name, "name", "", "Connection name announced to the server")
	flags.StringVar(&user, "user", "", "User to authenticate with")
	flags.StringVar(&password, "password", "", "Password to authenticate with")
	flags.StringVar(&token, "token", "", "Token to authenticate with")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	RootCmd.AddCommand(PubCmd, SubCmd, ReqCmd, ReplyCmd, gen.RootCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
