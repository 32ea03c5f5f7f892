/*
Package client is the entry point for applications. A [Client] authenticates with the chat
service, hands the resulting gateway endpoint to a transport, and exposes the users, guilds and
channels that the transport reports.

# Examples

	c := client.New(client.Config{
		Store:   tokenstore.NewFileStore("tokens.json"),
		Connect: myTransport.Dial,
	})
	if err := c.Login(ctx, "a@b.com", password); err != nil {
		if errors.Is(err, auth.ErrAuthenticationRejected) {
			// prompt for new credentials
		}
		return err
	}
	defer c.Close()

	c.AddEventListener(event.Func(func(ev event.Event) error {
		if deleted, ok := ev.(*event.MessageDelete); ok {
			fmt.Println("message deleted:", deleted.MessageID)
		}
		return nil
	}))

All accessors return entity pointers or freshly allocated slices. Entities returned by the Client
are updated in place as the gateway reports changes.
*/
package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/relaychat/chatcore/internal/log"
	"github.com/relaychat/chatcore/pkg/api"
	"github.com/relaychat/chatcore/pkg/auth"
	"github.com/relaychat/chatcore/pkg/connector"
	"github.com/relaychat/chatcore/pkg/entity"
	"github.com/relaychat/chatcore/pkg/event"
	"github.com/relaychat/chatcore/pkg/gateway"
	"github.com/relaychat/chatcore/pkg/session"
	"github.com/relaychat/chatcore/pkg/tokenstore"
)

// ErrNotAuthenticated is returned by operations that require a session token before Login or
// LoginBot has succeeded.
var ErrNotAuthenticated = errors.New("client is not authenticated")

type Config struct {
	BaseURL    string // REST root. Defaults to api.DefaultBaseURL.
	UserAgent  string // Defaults to a value derived from build information.
	HTTPClient *http.Client
	Store      tokenstore.Store // Token cache for client accounts. May be nil.

	// Connect opens the gateway transport after authentication. If nil, the Client
	// authenticates but never attaches a connector.
	Connect connector.Factory
}

type Client struct {
	api           *api.Client
	authenticator *auth.Authenticator
	cache         *entity.Cache
	session       *session.Handle
	events        *event.Manager
	handler       *gateway.Handler
	connect       connector.Factory
}

func New(config Config) *Client {
	restClient := api.New(config.BaseURL, config.UserAgent, config.HTTPClient)
	c := &Client{
		api:           restClient,
		authenticator: auth.New(restClient, config.Store),
		cache:         entity.NewCache(),
		session:       session.New(),
		events:        event.NewManager(),
		connect:       config.Connect,
	}
	c.handler = gateway.NewHandler(c.cache, c.session, c.events)
	return c
}

// Login authenticates a client account and connects to the gateway.
//
// A token cached for accountID is reused if the service still accepts it. Returned errors wrap one
// of the auth.Err* kinds, or the error returned by the connector Factory.
func (c *Client) Login(ctx context.Context, accountID, secret string) error {
	result, err := c.authenticator.Authenticate(ctx, accountID, secret)
	if err != nil {
		return err
	}
	return c.start(ctx, result, auth.AccountTypeClient)
}

// LoginBot authenticates with a bot token and connects to the gateway.
func (c *Client) LoginBot(ctx context.Context, token string) error {
	result, err := c.authenticator.AuthenticateBot(ctx, token)
	if err != nil {
		return err
	}
	return c.start(ctx, result, auth.AccountTypeBot)
}

func (c *Client) start(ctx context.Context, result *auth.Result, accountType auth.AccountType) error {
	// Bind before clearing so that the old connection cannot repopulate the cache.
	owner := c.handler.Bind()
	c.session.Close()
	c.cache.Clear()
	c.session.Begin(result.Token, accountType)
	return c.attach(ctx, result.GatewayURL, owner)
}

func (c *Client) attach(ctx context.Context, gatewayURL string, owner connector.Owner) error {
	if c.connect == nil {
		log.Debug("No gateway transport configured, skipping connection to %s", gatewayURL)
		return nil
	}
	log.Info("Connecting to gateway %s...", gatewayURL)
	conn, err := c.connect(ctx, gatewayURL, c.session.Authorization(), owner)
	if err != nil {
		// Payloads from the previous connector are no longer applied.
		c.session.Close()
		return err
	}
	if previous := c.session.Attach(conn); previous != nil {
		previous.Close()
	}
	return nil
}

// Reconnect resolves the gateway endpoint again using the current session token and replaces the
// attached connector. Cached entities are kept. If the gateway cannot be resolved, the current
// connector stays attached; if the transport fails to connect, the session is left disconnected.
func (c *Client) Reconnect(ctx context.Context) error {
	authorization := c.session.Authorization()
	if authorization == "" {
		return ErrNotAuthenticated
	}
	gatewayURL, err := c.authenticator.Gateway(ctx, authorization)
	if err != nil {
		return err
	}
	return c.attach(ctx, gatewayURL, c.handler.Bind())
}

// Close disconnects from the gateway. The cache remains readable.
func (c *Client) Close() {
	c.session.Close()
}

// OpenPrivateChannel returns the identifier of the private channel shared with userID, creating the
// channel if none is known. Concurrent calls for the same user share a single creation request.
func (c *Client) OpenPrivateChannel(ctx context.Context, userID string) (string, error) {
	authorization := c.session.Authorization()
	if authorization == "" {
		return "", ErrNotAuthenticated
	}
	creator := entity.CreatorFunc(func(ctx context.Context, userID string) (string, error) {
		return c.api.CreatePrivateChannel(ctx, authorization, userID)
	})
	return c.cache.PrivateChannels.GetOrCreate(ctx, userID, creator)
}

func (c *Client) AddEventListener(l event.Listener) error {
	return c.events.Register(l)
}

func (c *Client) RemoveEventListener(l event.Listener) bool {
	return c.events.Unregister(l)
}

// Handler returns the connector.Owner that applies gateway payloads to this Client's cache. Unlike
// the Owner given to a transport by Login, it is never detached.
func (c *Client) Handler() connector.Owner {
	return c.handler
}

func (c *Client) Users() []*entity.User {
	return c.cache.Users.All()
}

func (c *Client) UserByID(id string) *entity.User {
	u, _ := c.cache.Users.Get(id)
	return u
}

func (c *Client) Guilds() []*entity.Guild {
	return c.cache.Guilds.All()
}

func (c *Client) GuildByID(id string) *entity.Guild {
	g, _ := c.cache.Guilds.Get(id)
	return g
}

func (c *Client) TextChannels() []*entity.TextChannel {
	return c.cache.TextChannels.All()
}

func (c *Client) TextChannelByID(id string) *entity.TextChannel {
	ch, _ := c.cache.TextChannels.Get(id)
	return ch
}

func (c *Client) VoiceChannels() []*entity.VoiceChannel {
	return c.cache.VoiceChannels.All()
}

func (c *Client) VoiceChannelByID(id string) *entity.VoiceChannel {
	ch, _ := c.cache.VoiceChannels.Get(id)
	return ch
}

func (c *Client) PrivateChannels() []*entity.PrivateChannel {
	return c.cache.PrivateChannels.All()
}

// SelfInfo returns the authenticated account, or nil if the gateway has not reported it yet.
func (c *Client) SelfInfo() *entity.SelfInfo {
	self, _ := c.session.Self()
	return self
}

func (c *Client) AuthToken() string {
	return c.session.Token()
}

func (c *Client) AccountType() auth.AccountType {
	return c.session.AccountType()
}

func (c *Client) ResponseTotal() int64 {
	return c.session.ResponseTotal()
}

// Connector returns the attached gateway connector, if any.
func (c *Client) Connector() (connector.Connector, bool) {
	return c.session.Current()
}
