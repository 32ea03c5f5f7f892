/*
Package cli facilitates building command-line applications that log in to the chat service. It
defines a [Config] type that can be used to register common command-line flags (using the Golang
flag package) and environment variable equivalents.

The package uses [keyring]'s platform-agnostic interface for storing sensitive values (bot tokens
and, optionally, the session token cache) in an OS-dependent credential store.

# Examples

	import flag

	config, err := NewConfig(FlagAll)
	if err != nil {
		panic(err)
	}
	config.RegisterCommandLineFlags() // Adds command-line flags for the account, token cache, etc.
	flag.Parse()
	config.ReadFromEnvironment()      // Fills in missing fields using environment variables

	// Logs in with a bot token if one is configured, and with the account identifier and password
	// (prompting for the latter if needed) otherwise.
	c, err := config.Connect(ctx, dial)
	if err != nil {
		panic(err)
	}
	defer c.Close()

Alternatively, you can use a [Flag] mask to control what [Config] fields are populated:

	config, err = NewConfig(FlagAccount | FlagTokenCache) // Client accounts only.
	config, err = NewConfig(FlagBot)                      // Bot tokens from the keyring only.
*/
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/99designs/keyring"

	"github.com/relaychat/chatcore/internal/log"
	"github.com/relaychat/chatcore/pkg/api"
	"github.com/relaychat/chatcore/pkg/client"
	"github.com/relaychat/chatcore/pkg/connector"
	"github.com/relaychat/chatcore/pkg/tokenstore"
)

// Environment variable names used are used by [Config.ReadFromEnvironment] to set common parameters.
const (
	EnvChatAccount       = "CHAT_ACCOUNT"
	EnvChatPassword      = "CHAT_PASSWORD"
	EnvChatTokenCache    = "CHAT_TOKEN_CACHE"
	EnvChatTokenName     = "CHAT_TOKEN_NAME"
	EnvChatAPIURL        = "CHAT_API_URL"
	EnvChatKeyringType   = "CHAT_KEYRING_TYPE"
	EnvChatKeyringPass   = "CHAT_KEYRING_PASSWORD"
	EnvChatKeyringPath   = "CHAT_KEYRING_PATH"
	EnvChatKeyringDebug  = "CHAT_KEYRING_DEBUG"
	EnvChatKeyringTokens = "CHAT_KEYRING_TOKENS"
)

// Flag controls what options should be scanned from the command line and/or environment variables.
type Flag int

func (f Flag) isSet(other Flag) bool {
	return (f & other) == other
}

const (
	FlagAccount    Flag = 1 // Enable account identifier and password options.
	FlagTokenCache Flag = 2 // Enable session token cache options. Requires FlagAccount.
	FlagBot        Flag = 4 // Enable bot token options.
	FlagAll        Flag = FlagAccount | FlagTokenCache | FlagBot
)

var (
	ErrNoCredentials = errors.New("no account or bot token configured")
	ErrKeyNotFound   = keyring.ErrKeyNotFound
)

// Config fields determine how a client authenticates to the chat service.
type Config struct {
	Flags            Flag   // Controls which set of environment variables/CLI flags to use.
	AccountID        string // Account identifier (email address) for client accounts.
	KeyringTokenName string // Name of the bot token in the system keyring.
	TokenCacheFile   string // Session token cache for client accounts.
	KeyringTokens    bool   // Keep the session token cache in the system keyring instead of a file.
	APIURL           string
	Backend          keyring.Config
	BackendType      backendType
	Debug            bool // Enable keyring debug messages

	password        *string // Keyring password
	accountPassword *string
	kr              keyring.Keyring
}

func NewConfig(flags Flag) (*Config, error) {
	c := Config{
		Flags: flags,
		Backend: keyring.Config{
			ServiceName:              keyringServiceName,
			KeychainTrustApplication: true,
			KeyCtlScope:              "user",
		},
	}
	c.BackendType = backendType{&c}
	c.Backend.KeychainPasswordFunc = c.getPassword
	c.Backend.FilePasswordFunc = c.getPassword

	return &c, nil
}

func (c *Config) RegisterCommandLineFlags() {
	flag.StringVar(&c.APIURL, "api", "", "REST API root `url`. Defaults to $CHAT_API_URL or "+api.DefaultBaseURL+".")
	if c.Flags.isSet(FlagAccount) {
		flag.StringVar(&c.AccountID, "account", "", "Account `email`. Defaults to $CHAT_ACCOUNT.")
	}
	if c.Flags.isSet(FlagTokenCache) {
		if !c.Flags.isSet(FlagAccount) {
			log.Debug("FlagTokenCache is set but FlagAccount is not. Only client accounts use the token cache.")
		}
		flag.StringVar(&c.TokenCacheFile, "token-cache", "", "Load session tokens from `file`. Defaults to $CHAT_TOKEN_CACHE or "+tokenstore.DefaultFilename+".")
		flag.BoolVar(&c.KeyringTokens, "keyring-tokens", false, "Keep session tokens in the system keyring instead of a file")
	}
	if c.Flags.isSet(FlagBot) {
		flag.StringVar(&c.KeyringTokenName, "token-name", "", "System keyring `name` for bot token. Defaults to $CHAT_TOKEN_NAME.")
	}
	if c.Flags.isSet(FlagBot) || c.Flags.isSet(FlagTokenCache) {
		var names []string
		for _, name := range keyring.AvailableBackends() {
			names = append(names, string(name))
		}
		sort.Strings(names)
		flag.Var(&c.BackendType, "keyring-type", "Keyring `type` ("+strings.Join(names, "|")+"). Defaults to $CHAT_KEYRING_TYPE.")
		flag.StringVar(&c.Backend.FileDir, "keyring-file-dir", keyringDirectory, "keyring `directory` for file-backed keyring types")
		flag.BoolVar(&c.Debug, "keyring-debug", false, "Enable keyring debug logging")
	}
}

// ReadFromEnvironment populates c using environment variables. Values that are already populated
// are not overwritten.
//
// Calling ReadFromEnvironment after flag.Parse() (or other initialization method) will prevent the
// environment from overriding explicit command-line parameters and avoid potentially misleading
// debug log messages.
func (c *Config) ReadFromEnvironment() {
	if c.APIURL == "" {
		c.APIURL = os.Getenv(EnvChatAPIURL)
	}
	if c.Flags.isSet(FlagAccount) {
		if c.AccountID == "" {
			c.AccountID = os.Getenv(EnvChatAccount)
			log.Debug("Set account to '%s'", c.AccountID)
		}
		if c.accountPassword == nil {
			if password, ok := os.LookupEnv(EnvChatPassword); ok {
				c.accountPassword = &password
				log.Debug("Set account password to %s", strings.Repeat("*", len("hunter2")))
			}
		}
	}
	if c.Flags.isSet(FlagTokenCache) {
		if c.TokenCacheFile == "" {
			c.TokenCacheFile = os.Getenv(EnvChatTokenCache)
			log.Debug("Set token cache file to '%s'", c.TokenCacheFile)
		}
		if !c.KeyringTokens {
			_, c.KeyringTokens = os.LookupEnv(EnvChatKeyringTokens)
		}
	}
	if c.Flags.isSet(FlagBot) {
		if c.KeyringTokenName == "" {
			c.KeyringTokenName = os.Getenv(EnvChatTokenName)
			log.Debug("Set bot token name to '%s'", c.KeyringTokenName)
		}
	}
	if c.Flags.isSet(FlagBot) || c.Flags.isSet(FlagTokenCache) {
		if c.BackendType.String() == string(keyring.InvalidBackend) {
			if err := c.BackendType.Set(os.Getenv(EnvChatKeyringType)); err == nil {
				log.Debug("Set keyring type to '%s'", c.BackendType)
			}
		}
		if c.password == nil {
			password := os.Getenv(EnvChatKeyringPass)
			c.password = &password
			if len(password) > 0 {
				log.Debug("Set keyring File Password to %s", strings.Repeat("*", len("hunter2")))
			}
		}
		if c.Backend.FileDir == "" {
			c.Backend.FileDir = os.Getenv(EnvChatKeyringPath)
			log.Debug("Set keyring File Path to '%s'", c.Backend.FileDir)
		}
		if !c.Debug {
			_, c.Debug = os.LookupEnv(EnvChatKeyringDebug)
			log.Debug("Set keyring Debug Logging to '%v'", c.Debug)
		}
	}
}

// TokenStore returns the session token cache selected by c, or nil if FlagTokenCache is not set.
func (c *Config) TokenStore() (tokenstore.Store, error) {
	if !c.Flags.isSet(FlagTokenCache) {
		return nil, nil
	}
	if c.KeyringTokens {
		kr, err := c.openKeyring()
		if err != nil {
			return nil, err
		}
		return tokenstore.NewKeyringStore(kr, keyringCacheService), nil
	}
	return tokenstore.NewFileStore(c.TokenCacheFile), nil
}

// NewClient returns a client.Client configured by c. The connect function may be nil.
func (c *Config) NewClient(connect connector.Factory) (*client.Client, error) {
	store, err := c.TokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open token cache: %w", err)
	}
	return client.New(client.Config{
		BaseURL: c.APIURL,
		Store:   store,
		Connect: connect,
	}), nil
}

// Connect creates a client.Client and logs in.
//
// If c.KeyringTokenName is set, the client logs in with the bot token stored under that name.
// Otherwise c.AccountID is required, and the account password is read from the environment or
// prompted for.
func (c *Config) Connect(ctx context.Context, connect connector.Factory) (*client.Client, error) {
	chat, err := c.NewClient(connect)
	if err != nil {
		return nil, err
	}
	if c.Flags.isSet(FlagBot) && c.KeyringTokenName != "" {
		token, err := c.LoadBotToken()
		if err != nil {
			return nil, err
		}
		log.Debug("Logging in with bot token '%s'", c.KeyringTokenName)
		return chat, chat.LoginBot(ctx, token)
	}
	if c.Flags.isSet(FlagAccount) && c.AccountID != "" {
		secret, err := c.AccountPassword()
		if err != nil {
			return nil, err
		}
		return chat, chat.Login(ctx, c.AccountID, secret)
	}
	return nil, ErrNoCredentials
}

// AccountPassword returns the password for c.AccountID, prompting for it if it wasn't provided
// through the environment. The password is remembered for subsequent calls.
func (c *Config) AccountPassword() (string, error) {
	if c.accountPassword != nil && *c.accountPassword != "" {
		return *c.accountPassword, nil
	}
	password, err := prompt(fmt.Sprintf("Password for %s", c.AccountID))
	if err != nil {
		return "", err
	}
	c.accountPassword = &password
	return password, nil
}
