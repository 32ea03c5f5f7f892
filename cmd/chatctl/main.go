package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/relaychat/chatcore/internal/log"
	"github.com/relaychat/chatcore/pkg/auth"
	"github.com/relaychat/chatcore/pkg/cli"
	"github.com/relaychat/chatcore/pkg/client"
	"github.com/relaychat/chatcore/pkg/connector"
)

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n")
}

const usage = `
 * Client accounts require -account; the password is read from $CHAT_PASSWORD or prompted for.
 * Bot accounts require -token-name (see chat-token).
 * Without -snapshot, no gateway transport is attached and caches stay empty.`

func Usage() {
	fmt.Printf("Usage: %s [OPTION...] COMMAND [ARG...]\n", os.Args[0])
	fmt.Printf("\nRun %s help COMMAND for more information. Valid COMMANDs are listed below.", os.Args[0])
	fmt.Println("")
	fmt.Println(usage)
	fmt.Println("")

	fmt.Printf("Available OPTIONs:\n")
	flag.PrintDefaults()
	fmt.Println("")
	fmt.Printf("Available COMMANDs:\n")
	maxLength := 0
	var labels []string
	for command := range commands {
		labels = append(labels, command)
		if len(command) > maxLength {
			maxLength = len(command)
		}
	}
	sort.Strings(labels)
	for _, command := range labels {
		info := commands[command]
		fmt.Printf("  %s%s %s\n", command, strings.Repeat(" ", maxLength-len(command)), info.help)
	}
}

func runCommand(chat *client.Client, args []string, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := execute(ctx, chat, args); err != nil {
		if errors.Is(err, client.ErrNotAuthenticated) {
			writeErr("You must log in with -account or -token-name to execute this command")
		} else {
			writeErr("Failed to execute command: %s", err)
		}
		return 1
	}
	return 0
}

func runInteractiveShell(chat *client.Client, timeout time.Duration) int {
	scanner := bufio.NewScanner(os.Stdin)
	for fmt.Printf("> "); scanner.Scan(); fmt.Printf("> ") {
		args, err := shlex.Split(scanner.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			return 0
		}
		if err != nil {
			writeErr("Invalid command: %s", err)
			continue
		}
		runCommand(chat, args, timeout)
	}
	if err := scanner.Err(); err != nil {
		writeErr("Error reading command: %s", err)
		return 1
	}
	return 0
}

// describeLoginError explains how the user should react to a failed login.
func describeLoginError(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentialsFormat):
		return "An account and password (or a bot token) are required"
	case errors.Is(err, auth.ErrAuthenticationRejected):
		return "The service rejected your credentials; check your account and password"
	case errors.Is(err, auth.ErrGatewayUnavailable), errors.Is(err, auth.ErrServiceUnavailable):
		return "The service is unreachable; try again later"
	case errors.Is(err, auth.ErrProtocol):
		return "The service returned an unexpected response"
	}
	return ""
}

func main() {
	status := 1
	defer func() {
		os.Exit(status)
	}()

	var (
		debug          bool
		logLevel       string
		snapshotFile   string
		commandTimeout time.Duration
		connTimeout    time.Duration
	)
	config, err := cli.NewConfig(cli.FlagAll)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load credential configuration: %s\n", err)
		os.Exit(1)
	}
	flag.Usage = Usage
	flag.BoolVar(&debug, "debug", false, "Enable verbose debugging messages")
	flag.StringVar(&logLevel, "log-level", "", "Log `level` (none|error|warn|info|debug)")
	flag.StringVar(&snapshotFile, "snapshot", "", "Replay a recorded gateway state sync from `file` after logging in")
	flag.DurationVar(&commandTimeout, "command-timeout", 5*time.Second, "Set timeout for commands.")
	flag.DurationVar(&connTimeout, "connect-timeout", 20*time.Second, "Set timeout for logging in.")

	config.RegisterCommandLineFlags()
	flag.Parse()
	if !debug {
		if debugEnv, ok := os.LookupEnv("CHAT_VERBOSE"); ok {
			debug = debugEnv != "false" && debugEnv != "0"
		}
	}
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			writeErr("%s", err)
			return
		}
		log.SetLevel(level)
	}
	if debug {
		log.SetLevel(log.LevelDebug)
	}
	config.ReadFromEnvironment()

	args := flag.Args()
	if len(args) > 0 && args[0] == "help" {
		if len(args) == 1 {
			Usage()
			status = 0
			return
		}
		info, ok := commands[args[1]]
		if !ok {
			writeErr("Unrecognized command: %s", args[1])
			return
		}
		info.Usage(args[1])
		status = 0
		return
	}
	if len(args) > 0 {
		if _, ok := commands[args[0]]; !ok {
			writeErr("Unrecognized command: %s", args[0])
			return
		}
	}

	var connect connector.Factory
	if snapshotFile != "" {
		connect = snapshotFactory(snapshotFile)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connTimeout)
	defer cancel()

	chat, err := config.Connect(ctx, connect)
	if err != nil {
		writeErr("Error: %s", err)
		if hint := describeLoginError(err); hint != "" {
			writeErr("%s", hint)
		}
		return
	}
	defer chat.Close()

	if flag.NArg() > 0 {
		status = runCommand(chat, flag.Args(), commandTimeout)
	} else {
		status = runInteractiveShell(chat, commandTimeout)
	}
}
