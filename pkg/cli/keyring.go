package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/99designs/keyring"
	"golang.org/x/term"
)

const (
	keyringServiceName  = "com.relaychat.auth"
	keyringTokenService = "bottoken"
	keyringCacheService = "sessiontokens"
	keyringDirectory    = "~/.chat_keys"
)

type backendType struct {
	config *Config
}

func (b backendType) String() string {
	if b.config == nil || len(b.config.Backend.AllowedBackends) == 0 {
		return string(keyring.InvalidBackend)
	}
	return string(b.config.Backend.AllowedBackends[0])
}

func (b backendType) Set(v string) error {
	value := keyring.BackendType(v)
	if b.config == nil {
		return fmt.Errorf("invalid backendType")
	}
	if v == "" {
		return nil
	}
	for _, name := range keyring.AvailableBackends() {
		if name == value {
			b.config.Backend.AllowedBackends = []keyring.BackendType{name}
			return nil
		}
	}
	return fmt.Errorf("unsupported credential storage")
}

// prompt reads a line from the terminal without echoing it.
func prompt(label string) (string, error) {
	var w io.Writer
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		fd = int(os.Stderr.Fd())
		if !term.IsTerminal(fd) {
			return "", fmt.Errorf("no terminal output available for password prompt")
		} else {
			w = os.Stderr
		}
	} else {
		w = os.Stdout
	}

	fmt.Fprintf(w, "%s: ", label)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(w)
	return string(b), nil
}

func (c *Config) getPassword(label string) (string, error) {
	if c.password != nil && *c.password != "" {
		return *c.password, nil
	}
	password, err := prompt(label)
	if err != nil {
		return "", err
	}
	c.password = &password
	return password, nil
}

// SetKeyring makes c use kr instead of opening the keyring described by c.Backend.
func (c *Config) SetKeyring(kr keyring.Keyring) {
	c.kr = kr
}

func (c *Config) openKeyring() (keyring.Keyring, error) {
	if c.kr != nil {
		return c.kr, nil
	}
	kr, err := keyring.Open(c.Backend)
	if err != nil {
		return nil, err
	}
	c.kr = kr
	return kr, nil
}

func (c *Config) fullTokenName() string {
	return keyringTokenService + "." + c.KeyringTokenName
}

// LoadBotToken loads a bot token from the system keyring.
//
// The name must match the value provided to SaveBotToken.
func (c *Config) LoadBotToken() (string, error) {
	kr, err := c.openKeyring()
	if err != nil {
		return "", err
	}

	item, err := kr.Get(c.fullTokenName())
	if err != nil {
		return "", fmt.Errorf("could not load token: %w", err)
	}
	return string(item.Data), nil
}

// SaveBotToken writes a bot token to the system keyring under c.KeyringTokenName.
func (c *Config) SaveBotToken(token string) error {
	kr, err := c.openKeyring()
	if err != nil {
		return err
	}

	if err := kr.Set(keyring.Item{
		Key:  c.fullTokenName(),
		Data: []byte(token),
	}); err != nil {
		return fmt.Errorf("failed to enroll token in keyring: %w", err)
	}
	return nil
}

// DeleteBotToken removes the bot token from the system keyring.
func (c *Config) DeleteBotToken() error {
	kr, err := c.openKeyring()
	if err != nil {
		return err
	}
	return kr.Remove(c.fullTokenName())
}
