// Utility for saving bot tokens

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/relaychat/chatcore/pkg/cli"
)

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, "usage: %s [-token-name token_name] [-delete] [file]\n", filepath.Base(os.Args[0]))
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Reads a bot token from stdin or file and saves it under token_name in the system")
	fmt.Fprintf(w, "keyring. The token_name defaults to $%s.\n", cli.EnvChatTokenName)
	fmt.Fprintln(w, "")
	flag.PrintDefaults()
}

func main() {
	returnCode := 1
	defer func() {
		os.Exit(returnCode)
	}()

	config, err := cli.NewConfig(cli.FlagBot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load credential configuration: %s\n", err)
		return
	}

	var remove bool
	flag.BoolVar(&remove, "delete", false, "Remove the token from the keyring instead of saving one")
	config.RegisterCommandLineFlags()
	flag.Usage = usage
	flag.Parse()
	config.ReadFromEnvironment()

	if config.KeyringTokenName == "" {
		fmt.Fprintf(os.Stderr, "Must provide system keyring name to save bot token under using -token-name or $%s\n", cli.EnvChatTokenName)
		return
	}

	if remove {
		if err := config.DeleteBotToken(); err != nil {
			fmt.Fprintf(os.Stderr, "Error removing token from keyring: %s\n", err)
			return
		}
		returnCode = 0
		return
	}

	var token []byte
	switch flag.NArg() {
	case 0:
		token, err = io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading token from stdin: %s\n", err)
			return
		}
	case 1:
		token, err = os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading token from file: %s\n", err)
			return
		}
	default:
		fmt.Fprintln(os.Stderr, "Too many command-line arguments")
		return
	}

	trimmed := strings.TrimSpace(string(token))
	if trimmed == "" {
		fmt.Fprintln(os.Stderr, "Token is empty")
		return
	}
	if err := config.SaveBotToken(trimmed); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving token to keyring: %s\n", err)
		return
	}

	returnCode = 0
}
