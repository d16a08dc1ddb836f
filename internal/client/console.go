// Package client implements the interactive console: reading user input,
// mapping console commands to session operations, and printing usage text.
package client

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const connectUsage = "Invalid CONNECT command. Use:\n" +
	"  CONNECT <serverIP> <serverPort> <clientName>\n" +
	"  CONNECT <serverPort> <clientName>"

const commandUsage = "Invalid command! Use:\n" +
	"  CONNECT <serverIP> <serverPort> <clientName>\n" +
	"  CONNECT <serverPort> <clientName>\n" +
	"  DISCONNECT\n" +
	"  PUBLISH <topic> <data>\n" +
	"  SUBSCRIBE <topic>\n" +
	"  UNSUBSCRIBE <topic>"

// Console drives a Session from line-oriented user input.
type Console struct {
	session *Session
	out     io.Writer

	handlers map[string]func(args []string)
}

// NewConsole creates a console bound to the given session, printing to out.
func NewConsole(session *Session, out io.Writer) *Console {
	c := &Console{session: session, out: out}
	c.handlers = map[string]func(args []string){
		"CONNECT":     c.handleConnect,
		"DISCONNECT":  c.handleDisconnect,
		"PUBLISH":     c.handlePublish,
		"SUBSCRIBE":   c.handleSubscribe,
		"UNSUBSCRIBE": c.handleUnsubscribe,
	}
	return c
}

// Run reads commands from in until end of input or the local "exit" command.
// On exit it disconnects the session.
func (c *Console) Run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		input := scanner.Text()
		if input == "exit" {
			break
		}
		c.Process(input)
	}

	c.session.Disconnect()
	fmt.Fprintln(c.out, "Exiting client...")
}

// Process executes one console command line.
func (c *Console) Process(input string) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		fmt.Fprintln(c.out, commandUsage)
		return
	}

	handler, ok := c.handlers[fields[0]]
	if !ok {
		fmt.Fprintln(c.out, commandUsage)
		return
	}
	handler(fields[1:])
}

// handleConnect accepts two argument shapes: "<serverPort> <clientName>" for
// the default server address and "<serverIP> <serverPort> <clientName>".
func (c *Console) handleConnect(args []string) {
	if len(args) < 2 || len(args) > 3 {
		fmt.Fprintln(c.out, connectUsage)
		return
	}

	host := "127.0.0.1"
	port := args[0]
	name := args[1]
	if len(args) == 3 {
		host = args[0]
		port = args[1]
		name = args[2]
	}

	_ = c.session.Connect(host, port, name)
}

func (c *Console) handleDisconnect([]string) {
	c.session.Disconnect()
}

func (c *Console) handlePublish(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Invalid PUBLISH command. Use:\n  PUBLISH <topic> <data>")
		return
	}

	_ = c.session.Send("PUBLISH " + args[0] + " " + strings.Join(args[1:], " "))
}

func (c *Console) handleSubscribe(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: SUBSCRIBE <topic>")
		return
	}

	_ = c.session.Send("SUBSCRIBE " + args[0])
}

func (c *Console) handleUnsubscribe(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Invalid UNSUBSCRIBE command. Use:\n  UNSUBSCRIBE <topic>")
		return
	}

	_ = c.session.Send("UNSUBSCRIBE " + args[0])
}
