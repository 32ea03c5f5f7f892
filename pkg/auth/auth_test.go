package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/relaychat/chatcore/pkg/api"
	"github.com/relaychat/chatcore/pkg/auth"
	"github.com/relaychat/chatcore/pkg/tokenstore"
)

const (
	baseURL    = "https://chat.example.com/api"
	loginURL   = baseURL + "/auth/login"
	gatewayURL = baseURL + "/gateway"
)

var _ = Describe("Authenticator", func() {
	var (
		ctx           context.Context
		store         *tokenstore.FileStore
		authenticator *auth.Authenticator
		loginCalls    int
		gatewayTokens []string
	)

	respondGateway := func(accepted map[string]string) {
		httpmock.RegisterResponder(http.MethodGet, gatewayURL, func(r *http.Request) (*http.Response, error) {
			token := r.Header.Get("Authorization")
			gatewayTokens = append(gatewayTokens, token)
			if url, ok := accepted[token]; ok {
				return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"url": url})
			}
			return httpmock.NewStringResponse(http.StatusUnauthorized, `{"message": "401: Unauthorized"}`), nil
		})
	}

	respondLogin := func(status int, body string) {
		httpmock.RegisterResponder(http.MethodPost, loginURL, func(r *http.Request) (*http.Response, error) {
			loginCalls++
			data, err := io.ReadAll(r.Body)
			Expect(err).NotTo(HaveOccurred())
			var req map[string]string
			Expect(json.Unmarshal(data, &req)).To(Succeed())
			Expect(req).To(HaveKeyWithValue("email", "a@b.com"))
			Expect(req).To(HaveKey("password"))
			Expect(r.Header.Get("Authorization")).To(BeEmpty())
			return httpmock.NewStringResponse(status, body), nil
		})
	}

	cachedTokens := func() map[string]string {
		c, ok := store.Load()
		if !ok {
			return nil
		}
		tokens := make(map[string]string)
		for _, account := range c.Accounts() {
			tokens[account], _ = c.Token(account)
		}
		return tokens
	}

	BeforeEach(func() {
		ctx = context.Background()
		loginCalls = 0
		gatewayTokens = nil
		httpClient := &http.Client{}
		httpmock.ActivateNonDefault(httpClient)
		DeferCleanup(httpmock.DeactivateAndReset)

		store = tokenstore.NewFileStore(filepath.Join(GinkgoT().TempDir(), "tokens.json"))
		authenticator = auth.New(api.New(baseURL, "test", httpClient), store)
	})

	Context("invalid credentials format", func() {
		It("fails before any network access", func() {
			for _, pair := range [][2]string{{"", "pw"}, {"a@b.com", ""}, {"", ""}} {
				_, err := authenticator.Authenticate(ctx, pair[0], pair[1])
				Expect(err).To(MatchError(auth.ErrInvalidCredentialsFormat))
			}
			_, err := authenticator.AuthenticateBot(ctx, "")
			Expect(err).To(MatchError(auth.ErrInvalidCredentialsFormat))
			Expect(httpmock.GetTotalCallCount()).To(BeZero())
		})
	})

	Context("no cached token", func() {
		It("logs in, persists the token and resolves the gateway", func() {
			respondLogin(http.StatusOK, `{"token": "T1"}`)
			respondGateway(map[string]string{"T1": "wss://gw/1"})

			result, err := authenticator.Authenticate(ctx, "a@b.com", "pw")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Token).To(Equal("T1"))
			Expect(result.GatewayURL).To(Equal("wss://gw/1"))
			Expect(result.Cached).To(BeFalse())
			Expect(loginCalls).To(Equal(1))
			Expect(gatewayTokens).To(Equal([]string{"T1"}))
			Expect(cachedTokens()).To(Equal(map[string]string{"a@b.com": "T1"}))
		})

		It("reports rejection on an empty body", func() {
			respondLogin(http.StatusOK, "")
			_, err := authenticator.Authenticate(ctx, "a@b.com", "wrong")
			Expect(err).To(MatchError(auth.ErrAuthenticationRejected))
			var loginErr *auth.LoginError
			Expect(errors.As(err, &loginErr)).To(BeTrue())
			Expect(loginErr.Temporary()).To(BeFalse())
			Expect(cachedTokens()).To(BeNil())
		})

		It("reports rejection on HTTP 400", func() {
			respondLogin(http.StatusBadRequest, `{"password": ["Password does not match."]}`)
			_, err := authenticator.Authenticate(ctx, "a@b.com", "wrong")
			Expect(err).To(MatchError(auth.ErrAuthenticationRejected))
		})

		It("reports a protocol error on a malformed body", func() {
			respondLogin(http.StatusOK, `{"tok`)
			_, err := authenticator.Authenticate(ctx, "a@b.com", "pw")
			Expect(err).To(MatchError(auth.ErrProtocol))
		})

		It("reports a protocol error when the token field is missing", func() {
			respondLogin(http.StatusOK, `{"user_id": "1"}`)
			_, err := authenticator.Authenticate(ctx, "a@b.com", "pw")
			Expect(err).To(MatchError(auth.ErrProtocol))
		})

		It("reports a temporary error when the login service fails", func() {
			respondLogin(http.StatusBadGateway, "")
			_, err := authenticator.Authenticate(ctx, "a@b.com", "pw")
			Expect(err).To(MatchError(auth.ErrServiceUnavailable))
			var loginErr *auth.LoginError
			Expect(errors.As(err, &loginErr)).To(BeTrue())
			Expect(loginErr.Temporary()).To(BeTrue())
		})

		It("reports gateway unavailability after a successful login", func() {
			respondLogin(http.StatusOK, `{"token": "T1"}`)
			httpmock.RegisterResponder(http.MethodGet, gatewayURL, httpmock.NewErrorResponder(errors.New("connection reset")))

			_, err := authenticator.Authenticate(ctx, "a@b.com", "pw")
			Expect(err).To(MatchError(auth.ErrGatewayUnavailable))
			Expect(err).NotTo(MatchError(auth.ErrAuthenticationRejected))
			// The token was still persisted.
			Expect(cachedTokens()).To(Equal(map[string]string{"a@b.com": "T1"}))
		})
	})

	Context("cached token", func() {
		BeforeEach(func() {
			c := tokenstore.New()
			c.SetToken("a@b.com", "T1")
			c.SetToken("other@b.com", "T9")
			Expect(store.Save(c)).To(Succeed())
		})

		It("skips the login call when the token is accepted", func() {
			respondLogin(http.StatusOK, `{"token": "unexpected"}`)
			respondGateway(map[string]string{"T1": "wss://gw/1"})

			result, err := authenticator.Authenticate(ctx, "a@b.com", "any secret")
			Expect(err).NotTo(HaveOccurred())
			Expect(result).To(Equal(&auth.Result{Token: "T1", GatewayURL: "wss://gw/1", Cached: true}))
			Expect(loginCalls).To(BeZero())
			Expect(httpmock.GetTotalCallCount()).To(Equal(1))
		})

		It("logs in again and overwrites a revoked token", func() {
			respondLogin(http.StatusOK, `{"token": "T2"}`)
			respondGateway(map[string]string{"T2": "wss://gw/2"})

			result, err := authenticator.Authenticate(ctx, "a@b.com", "pw")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Token).To(Equal("T2"))
			Expect(result.GatewayURL).To(Equal("wss://gw/2"))
			Expect(gatewayTokens).To(Equal([]string{"T1", "T2"}))
			Expect(loginCalls).To(Equal(1))
			Expect(httpmock.GetTotalCallCount()).To(Equal(3))
			Expect(cachedTokens()).To(Equal(map[string]string{"a@b.com": "T2", "other@b.com": "T9"}))
		})

		It("falls back to login when the gateway response is malformed", func() {
			calls := 0
			httpmock.RegisterResponder(http.MethodGet, gatewayURL, func(r *http.Request) (*http.Response, error) {
				calls++
				if calls == 1 {
					return httpmock.NewStringResponse(http.StatusOK, `{"url": "not a url"}`), nil
				}
				return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"url": "wss://gw/3"})
			})
			respondLogin(http.StatusOK, `{"token": "T3"}`)

			result, err := authenticator.Authenticate(ctx, "a@b.com", "pw")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.GatewayURL).To(Equal("wss://gw/3"))
			Expect(loginCalls).To(Equal(1))
		})

		It("ignores tokens for other accounts", func() {
			respondLogin(http.StatusOK, `{"token": "T4"}`)
			respondGateway(map[string]string{"T4": "wss://gw/4"})

			_, err := authenticator.Authenticate(ctx, "a@b.com", "pw")
			Expect(err).NotTo(HaveOccurred())
			Expect(cachedTokens()).To(HaveKeyWithValue("other@b.com", "T9"))
		})
	})

	Context("persistence failures", func() {
		It("authenticates when the token cache is malformed", func() {
			Expect(os.WriteFile(store.Path, []byte("{garbage"), 0600)).To(Succeed())
			respondLogin(http.StatusOK, `{"token": "T1"}`)
			respondGateway(map[string]string{"T1": "wss://gw/1"})

			result, err := authenticator.Authenticate(ctx, "a@b.com", "pw")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Token).To(Equal("T1"))
			Expect(cachedTokens()).To(Equal(map[string]string{"a@b.com": "T1"}))
		})

		It("authenticates when the token cache cannot be written", func() {
			store.Path = filepath.Join(GinkgoT().TempDir(), "missing", "tokens.json")
			respondLogin(http.StatusOK, `{"token": "T1"}`)
			respondGateway(map[string]string{"T1": "wss://gw/1"})

			result, err := authenticator.Authenticate(ctx, "a@b.com", "pw")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Token).To(Equal("T1"))
		})

		It("works without a store", func() {
			authenticator.Store = nil
			respondLogin(http.StatusOK, `{"token": "T1"}`)
			respondGateway(map[string]string{"T1": "wss://gw/1"})

			_, err := authenticator.Authenticate(ctx, "a@b.com", "pw")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Context("bot accounts", func() {
		It("sends the token with a Bot prefix", func() {
			respondGateway(map[string]string{"Bot B1": "wss://gw/bot"})
			result, err := authenticator.AuthenticateBot(ctx, "B1")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.GatewayURL).To(Equal("wss://gw/bot"))
			Expect(loginCalls).To(BeZero())
		})

		It("reports rejection for an unknown token", func() {
			respondGateway(nil)
			_, err := authenticator.AuthenticateBot(ctx, "bad")
			Expect(err).To(MatchError(auth.ErrAuthenticationRejected))
		})

		It("reports gateway unavailability on a server error", func() {
			httpmock.RegisterResponder(http.MethodGet, gatewayURL, httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))
			_, err := authenticator.AuthenticateBot(ctx, "B1")
			Expect(err).To(MatchError(auth.ErrGatewayUnavailable))
		})
	})
})
