package client_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/relaychat/chatcore/mocks"
	"github.com/relaychat/chatcore/pkg/auth"
	"github.com/relaychat/chatcore/pkg/client"
	"github.com/relaychat/chatcore/pkg/connector"
	"github.com/relaychat/chatcore/pkg/entity"
	"github.com/relaychat/chatcore/pkg/event"
	"github.com/relaychat/chatcore/pkg/tokenstore"
)

const baseURL = "https://chat.example.com/api"

var _ = Describe("Client", func() {
	var (
		ctrl       *gomock.Controller
		ctx        context.Context
		c          *client.Client
		conn       *mocks.MockConnector
		owner      connector.Owner
		dialedURLs []string
		dialedAuth []string
		dialErr    error
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		ctx = context.Background()
		dialedURLs = nil
		dialedAuth = nil
		dialErr = nil
		owner = nil

		httpClient := &http.Client{}
		httpmock.ActivateNonDefault(httpClient)
		DeferCleanup(httpmock.DeactivateAndReset)

		conn = mocks.NewMockConnector(ctrl)
		conn.EXPECT().GatewayURL().Return("wss://gw/1").AnyTimes()

		c = client.New(client.Config{
			BaseURL:    baseURL,
			UserAgent:  "test",
			HTTPClient: httpClient,
			Store:      tokenstore.NewFileStore(filepath.Join(GinkgoT().TempDir(), "tokens.json")),
			Connect: func(ctx context.Context, gatewayURL, authorization string, o connector.Owner) (connector.Connector, error) {
				dialedURLs = append(dialedURLs, gatewayURL)
				dialedAuth = append(dialedAuth, authorization)
				owner = o
				if dialErr != nil {
					return nil, dialErr
				}
				return conn, nil
			},
		})
	})

	login := func() {
		httpmock.RegisterResponder(http.MethodPost, baseURL+"/auth/login",
			httpmock.NewStringResponder(http.StatusOK, `{"token": "T1"}`))
		httpmock.RegisterResponder(http.MethodGet, baseURL+"/gateway",
			httpmock.NewStringResponder(http.StatusOK, `{"url": "wss://gw/1"}`))
		Expect(c.Login(ctx, "a@b.com", "pw")).To(Succeed())
	}

	Describe("Login", func() {
		It("hands the gateway endpoint to the transport", func() {
			login()
			Expect(dialedURLs).To(Equal([]string{"wss://gw/1"}))
			Expect(dialedAuth).To(Equal([]string{"T1"}))
			Expect(owner).NotTo(BeNil())
			attached, ok := c.Connector()
			Expect(ok).To(BeTrue())
			Expect(attached).To(BeIdenticalTo(conn))
			Expect(c.AuthToken()).To(Equal("T1"))
			Expect(c.AccountType()).To(Equal(auth.AccountTypeClient))
			Expect(c.SelfInfo()).To(BeNil())
		})

		It("surfaces transport failures", func() {
			dialErr = errors.New("handshake failed")
			httpmock.RegisterResponder(http.MethodPost, baseURL+"/auth/login",
				httpmock.NewStringResponder(http.StatusOK, `{"token": "T1"}`))
			httpmock.RegisterResponder(http.MethodGet, baseURL+"/gateway",
				httpmock.NewStringResponder(http.StatusOK, `{"url": "wss://gw/1"}`))
			Expect(c.Login(ctx, "a@b.com", "pw")).To(MatchError(dialErr))
			_, ok := c.Connector()
			Expect(ok).To(BeFalse())
		})

		It("does not connect when authentication fails", func() {
			httpmock.RegisterResponder(http.MethodPost, baseURL+"/auth/login",
				httpmock.NewStringResponder(http.StatusUnauthorized, ""))
			Expect(c.Login(ctx, "a@b.com", "wrong")).To(MatchError(auth.ErrAuthenticationRejected))
			Expect(dialedURLs).To(BeEmpty())
		})

		It("uses the Bot prefix for bot accounts", func() {
			httpmock.RegisterResponder(http.MethodGet, baseURL+"/gateway",
				httpmock.NewStringResponder(http.StatusOK, `{"url": "wss://gw/1"}`))
			Expect(c.LoginBot(ctx, "B1")).To(Succeed())
			Expect(dialedAuth).To(Equal([]string{"Bot B1"}))
			Expect(c.AccountType()).To(Equal(auth.AccountTypeBot))
		})

		It("closes the previous connection when logging in again", func() {
			login()
			conn.EXPECT().Close().Times(1)
			Expect(c.Login(ctx, "a@b.com", "pw")).To(Succeed())
		})

		It("ignores payloads from the connection it replaced", func() {
			login()
			stale := owner
			conn.EXPECT().Close().Times(1)
			Expect(c.Login(ctx, "a@b.com", "pw")).To(Succeed())

			stale.GuildCreate("g1", entity.GuildState{Name: "old"})
			Expect(c.GuildByID("g1")).To(BeNil())
			owner.GuildCreate("g1", entity.GuildState{Name: "new"})
			Expect(c.GuildByID("g1")).NotTo(BeNil())
		})
	})

	Describe("gateway payloads", func() {
		BeforeEach(login)

		It("are visible through the read accessors", func() {
			var events []event.Event
			Expect(c.AddEventListener(event.Func(func(ev event.Event) error {
				events = append(events, ev)
				return nil
			}))).To(Succeed())

			owner.Ready(&connector.Ready{
				Self:         entity.NewSelfInfo("me", entity.SelfInfoState{Email: "a@b.com"}),
				Users:        map[string]entity.UserState{"42": {Name: "alice"}},
				Guilds:       map[string]entity.GuildState{"g1": {Name: "guild"}},
				TextChannels: map[string]entity.TextChannelState{"t1": {GuildID: "g1"}},
			})
			held := c.UserByID("42")
			Expect(held).NotTo(BeNil())
			owner.UserUpdate("42", entity.UserState{Name: "alice2"})

			Expect(held.Name()).To(Equal("alice2"))
			Expect(c.UserByID("42")).To(BeIdenticalTo(held))
			Expect(c.Users()).To(HaveLen(2))
			Expect(c.GuildByID("g1").Name()).To(Equal("guild"))
			Expect(c.TextChannelByID("t1").GuildID()).To(Equal("g1"))
			Expect(c.VoiceChannels()).To(BeEmpty())
			Expect(c.VoiceChannelByID("v1")).To(BeNil())
			Expect(c.SelfInfo().Email()).To(Equal("a@b.com"))
			Expect(c.ResponseTotal()).To(Equal(int64(2)))
			Expect(events).To(HaveLen(2))
		})
	})

	Describe("OpenPrivateChannel", func() {
		It("requires authentication", func() {
			_, err := c.OpenPrivateChannel(ctx, "42")
			Expect(err).To(MatchError(client.ErrNotAuthenticated))
		})

		It("creates one channel for concurrent callers", func() {
			login()
			release := make(chan struct{})
			var requests int32
			httpmock.RegisterResponder(http.MethodPost, baseURL+"/users/@me/channels", func(r *http.Request) (*http.Response, error) {
				Expect(r.Header.Get("Authorization")).To(Equal("T1"))
				atomic.AddInt32(&requests, 1)
				<-release
				return httpmock.NewStringResponse(http.StatusOK, `{"id": "dm42"}`), nil
			})

			const callers = 10
			var wg sync.WaitGroup
			ids := make([]string, callers)
			errs := make([]error, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					ids[i], errs[i] = c.OpenPrivateChannel(ctx, "42")
				}(i)
			}
			close(release)
			wg.Wait()

			for i := 0; i < callers; i++ {
				Expect(errs[i]).NotTo(HaveOccurred())
				Expect(ids[i]).To(Equal("dm42"))
			}
			Expect(atomic.LoadInt32(&requests)).To(Equal(int32(1)))
			Expect(c.PrivateChannels()).To(HaveLen(1))
		})
	})

	Describe("Reconnect", func() {
		It("requires authentication", func() {
			Expect(c.Reconnect(ctx)).To(MatchError(client.ErrNotAuthenticated))
		})

		It("replaces and closes the previous connector", func() {
			login()
			conn.EXPECT().Close().Times(1)
			Expect(c.Reconnect(ctx)).To(Succeed())
			Expect(dialedURLs).To(HaveLen(2))
		})

		It("disconnects when the transport fails", func() {
			login()
			conn.EXPECT().Close().Times(1)
			dialErr = errors.New("handshake failed")
			Expect(c.Reconnect(ctx)).To(MatchError(dialErr))
			_, ok := c.Connector()
			Expect(ok).To(BeFalse())
		})
	})
})
