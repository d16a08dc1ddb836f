// Command client runs the interactive TopicHub client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/topichub/topichub/internal/client"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		server string
		port   string
		name   string
	)

	cmd := &cobra.Command{
		Use:          "client",
		Short:        "Interactive TopicHub client",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(server, port, name)
		},
	}

	cmd.Flags().StringVarP(&server, "server", "s", "127.0.0.1", "server IP address")
	cmd.Flags().StringVarP(&port, "port", "p", "", "server port")
	cmd.Flags().StringVarP(&name, "name", "n", "", "client name")

	return cmd
}

func run(server, port, name string) error {
	session := client.NewSession(os.Stdout)
	console := client.NewConsole(session, os.Stdout)

	if port != "" && name != "" {
		_ = session.Connect(server, port, name)
	} else {
		fmt.Println("No connection established.\n" +
			"Use:\n" +
			"\tCONNECT <serverIP> <serverPort> <clientName>\n" +
			"\tCONNECT <serverPort> <clientName>")
	}

	console.Run(os.Stdin)
	session.Close()
	return nil
}
