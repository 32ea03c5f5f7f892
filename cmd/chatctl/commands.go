package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/relaychat/chatcore/internal/log"
	"github.com/relaychat/chatcore/pkg/client"
	"github.com/relaychat/chatcore/pkg/entity"
)

var (
	ErrCommandLineArgs = errors.New("invalid command line arguments")
	ErrUnknownCommand  = errors.New("unrecognized command")
	ErrNotFound        = errors.New("not found")
)

type Argument struct {
	name string
	help string
}

type Handler func(ctx context.Context, chat *client.Client, args map[string]string) error

type Command struct {
	help     string
	args     []Argument
	optional []Argument
	handler  Handler
}

func execute(ctx context.Context, chat *client.Client, args []string) error {
	if len(args) == 0 {
		return errors.New("missing COMMAND")
	}

	info, ok := commands[args[0]]
	if !ok {
		return ErrUnknownCommand
	}

	var err error
	if len(args)-1 < len(info.args) || len(args)-1 > len(info.args)+len(info.optional) {
		writeErr("Invalid number of command line arguments: %d (%d required, %d optional).", len(args)-1, len(info.args), len(info.optional))
		err = ErrCommandLineArgs
	} else {
		keywords := make(map[string]string)
		for i, argInfo := range info.args {
			keywords[argInfo.name] = args[i+1]
		}
		index := len(info.args) + 1
		for _, argInfo := range info.optional {
			if index >= len(args) {
				break
			}
			keywords[argInfo.name] = args[index]
			index++
		}
		err = info.handler(ctx, chat, keywords)
	}

	// Print command-specific help
	if errors.Is(err, ErrCommandLineArgs) {
		info.Usage(args[0])
	}
	return err
}

func (c *Command) Usage(name string) {
	fmt.Printf("Usage: %s", name)
	maxLength := 0
	for _, arg := range c.args {
		fmt.Printf(" %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Printf(" [")
	}
	for _, arg := range c.optional {
		fmt.Printf(" %s", arg.name)
		if len(arg.name) > maxLength {
			maxLength = len(arg.name)
		}
	}
	if len(c.optional) > 0 {
		fmt.Printf(" ]")
	}
	fmt.Printf("\n%s\n", c.help)
	maxLength++
	for _, arg := range c.args {
		fmt.Printf("    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
	for _, arg := range c.optional {
		fmt.Printf("    %s:%s%s\n", arg.name, strings.Repeat(" ", maxLength-len(arg.name)), arg.help)
	}
}

type byID interface {
	ID() string
}

func sortByID[E byID](entities []E) []E {
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].ID() < entities[j].ID()
	})
	return entities
}

func formatUser(u *entity.User) string {
	s := u.State()
	line := fmt.Sprintf("%s\t%s#%s\t%s", u.ID(), s.Name, s.Discriminator, statusLabel(s.Status))
	if s.Bot {
		line += "\tbot"
	}
	return line
}

func statusLabel(status entity.OnlineStatus) string {
	if status == entity.StatusUnknown {
		return "unknown"
	}
	return string(status)
}

var commands = map[string]*Command{
	"whoami": &Command{
		help: "Print the authenticated account",
		handler: func(ctx context.Context, chat *client.Client, args map[string]string) error {
			self := chat.SelfInfo()
			if self == nil {
				return fmt.Errorf("self identity %w (gateway has not synced yet)", ErrNotFound)
			}
			fmt.Printf("%s\t%s#%s\t%s\t%s\n", self.ID(), self.Name(), self.Discriminator(), self.Email(), chat.AccountType())
			return nil
		},
	},
	"token": &Command{
		help: "Print the session token (redacted unless -reveal is given)",
		optional: []Argument{
			Argument{name: "-reveal", help: "print the full token"},
		},
		handler: func(ctx context.Context, chat *client.Client, args map[string]string) error {
			token := chat.AuthToken()
			if token == "" {
				return client.ErrNotAuthenticated
			}
			switch args["-reveal"] {
			case "":
				fmt.Println(log.Redact(token))
			case "-reveal":
				fmt.Println(token)
			default:
				return ErrCommandLineArgs
			}
			return nil
		},
	},
	"users": &Command{
		help: "List cached users",
		handler: func(ctx context.Context, chat *client.Client, args map[string]string) error {
			for _, u := range sortByID(chat.Users()) {
				fmt.Println(formatUser(u))
			}
			return nil
		},
	},
	"user": &Command{
		help: "Print a cached user",
		args: []Argument{
			Argument{name: "ID", help: "user identifier"},
		},
		handler: func(ctx context.Context, chat *client.Client, args map[string]string) error {
			u := chat.UserByID(args["ID"])
			if u == nil {
				return fmt.Errorf("user %s %w", args["ID"], ErrNotFound)
			}
			fmt.Println(formatUser(u))
			return nil
		},
	},
	"guilds": &Command{
		help: "List cached guilds",
		handler: func(ctx context.Context, chat *client.Client, args map[string]string) error {
			for _, g := range sortByID(chat.Guilds()) {
				s := g.State()
				fmt.Printf("%s\t%s\towner=%s\n", g.ID(), s.Name, s.OwnerID)
			}
			return nil
		},
	},
	"channels": &Command{
		help: "List cached text and voice channels",
		optional: []Argument{
			Argument{name: "GUILD", help: "only list channels of this guild"},
		},
		handler: func(ctx context.Context, chat *client.Client, args map[string]string) error {
			guildID := args["GUILD"]
			if guildID != "" && chat.GuildByID(guildID) == nil {
				return fmt.Errorf("guild %s %w", guildID, ErrNotFound)
			}
			for _, ch := range sortByID(chat.TextChannels()) {
				if s := ch.State(); guildID == "" || s.GuildID == guildID {
					fmt.Printf("%s\ttext\t#%s\tguild=%s\n", ch.ID(), s.Name, s.GuildID)
				}
			}
			for _, ch := range sortByID(chat.VoiceChannels()) {
				if s := ch.State(); guildID == "" || s.GuildID == guildID {
					fmt.Printf("%s\tvoice\t%s\tguild=%s\n", ch.ID(), s.Name, s.GuildID)
				}
			}
			return nil
		},
	},
	"dm": &Command{
		help: "Print the private channel shared with a user, opening one if needed",
		args: []Argument{
			Argument{name: "USER", help: "user identifier"},
		},
		handler: func(ctx context.Context, chat *client.Client, args map[string]string) error {
			id, err := chat.OpenPrivateChannel(ctx, args["USER"])
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	},
	"stats": &Command{
		help: "Print the number of gateway payloads processed and cache sizes",
		handler: func(ctx context.Context, chat *client.Client, args map[string]string) error {
			fmt.Printf("responses:        %d\n", chat.ResponseTotal())
			fmt.Printf("users:            %d\n", len(chat.Users()))
			fmt.Printf("guilds:           %d\n", len(chat.Guilds()))
			fmt.Printf("text channels:    %d\n", len(chat.TextChannels()))
			fmt.Printf("voice channels:   %d\n", len(chat.VoiceChannels()))
			fmt.Printf("private channels: %d\n", len(chat.PrivateChannels()))
			return nil
		},
	},
	"reconnect": &Command{
		help: "Resolve the gateway again and replace the current connection",
		handler: func(ctx context.Context, chat *client.Client, args map[string]string) error {
			return chat.Reconnect(ctx)
		},
	},
}
