// Package auth obtains session tokens and gateway endpoints from the chat service.
//
// An [Authenticator] first tries the token cached for an account in a [tokenstore.Store]. The
// cached token is verified by resolving the gateway endpoint with it, which costs one request and
// does not transmit the account's secret. Only when no token is cached, or the service no longer
// accepts it, does the Authenticator perform a full login and cache the new token.
//
// Calls to Authenticate must be serialized by the caller. The Authenticator does not retry failed
// requests; use [LoginError.Temporary] to decide whether a retry is worthwhile.
package auth

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/relaychat/chatcore/internal/log"
	"github.com/relaychat/chatcore/pkg/api"
	"github.com/relaychat/chatcore/pkg/tokenstore"
)

const (
	loginEndpoint   = "auth/login"
	gatewayEndpoint = "gateway"
)

// AccountType determines how a session token is presented to the service.
type AccountType int

const (
	// AccountTypeClient tokens are obtained by logging in with an account identifier and secret.
	AccountTypeClient AccountType = iota
	// AccountTypeBot tokens are issued out-of-band and are never exchanged for a login.
	AccountTypeBot
)

func (t AccountType) String() string {
	if t == AccountTypeBot {
		return "bot"
	}
	return "client"
}

// Authorization returns the Authorization header value for token.
func (t AccountType) Authorization(token string) string {
	if t == AccountTypeBot && token != "" {
		return "Bot " + token
	}
	return token
}

// Requester sends REST requests. It is implemented by *api.Client.
type Requester interface {
	Get(ctx context.Context, endpoint, authorization string) ([]byte, error)
	Post(ctx context.Context, endpoint, authorization string, payload interface{}) ([]byte, error)
}

// Result is the outcome of a successful authentication.
type Result struct {
	Token      string
	GatewayURL string
	// Cached is true if Token was loaded from the token store rather than obtained by logging in.
	Cached bool
}

type Authenticator struct {
	requester Requester
	// Store may be nil, in which case tokens are neither loaded nor persisted.
	Store tokenstore.Store
}

func New(requester Requester, store tokenstore.Store) *Authenticator {
	return &Authenticator{requester: requester, Store: store}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token" validate:"required"`
}

type gatewayResponse struct {
	URL string `json:"url" validate:"required,url"`
}

// Authenticate returns a session token for accountID and the gateway endpoint to connect to.
//
// The request sequence is: resolve the gateway with the cached token (if one exists); if that
// fails, log in with accountID and secret, persist the new token, and resolve the gateway with
// it. At most three requests are made. Failure to persist the token is logged and otherwise
// ignored.
//
// Returned errors are *LoginError values.
func (a *Authenticator) Authenticate(ctx context.Context, accountID, secret string) (*Result, error) {
	if accountID == "" || secret == "" {
		return nil, newError(ErrInvalidCredentialsFormat, nil)
	}

	credentials := a.load()
	if token, ok := credentials.Token(accountID); ok && token != "" {
		gatewayURL, err := a.Gateway(ctx, AccountTypeClient.Authorization(token))
		if err == nil {
			log.Info("Resumed session for %s using cached token", accountID)
			return &Result{Token: token, GatewayURL: gatewayURL, Cached: true}, nil
		}
		log.Warning("Cached token for %s (%s) was not accepted, logging in again: %s", accountID, log.Redact(token), err)
	} else {
		log.Debug("No cached token for %s", accountID)
	}

	token, err := a.login(ctx, accountID, secret)
	if err != nil {
		return nil, err
	}
	credentials.SetToken(accountID, token)
	a.save(credentials)

	gatewayURL, err := a.Gateway(ctx, AccountTypeClient.Authorization(token))
	if err != nil {
		return nil, err
	}
	log.Info("Logged in as %s", accountID)
	return &Result{Token: token, GatewayURL: gatewayURL}, nil
}

// AuthenticateBot verifies a bot token by resolving the gateway endpoint with it. Bot tokens are
// not cached in the token store.
func (a *Authenticator) AuthenticateBot(ctx context.Context, token string) (*Result, error) {
	if token == "" {
		return nil, newError(ErrInvalidCredentialsFormat, nil)
	}
	gatewayURL, err := a.Gateway(ctx, AccountTypeBot.Authorization(token))
	if err != nil {
		var loginErr *LoginError
		var httpErr *api.HTTPError
		if errors.As(err, &loginErr) && errors.As(loginErr.Err, &httpErr) && httpErr.Unauthorized() {
			return nil, newError(ErrAuthenticationRejected, httpErr)
		}
		return nil, err
	}
	log.Info("Authenticated bot token %s", log.Redact(token))
	return &Result{Token: token, GatewayURL: gatewayURL}, nil
}

// Gateway resolves the gateway endpoint using authorization, which must already carry any prefix
// required by the account type.
func (a *Authenticator) Gateway(ctx context.Context, authorization string) (string, error) {
	body, err := a.requester.Get(ctx, gatewayEndpoint, authorization)
	if err != nil {
		return "", newError(ErrGatewayUnavailable, err)
	}
	var rsp gatewayResponse
	if err := api.Decode(body, &rsp); err != nil {
		return "", newError(ErrProtocol, err)
	}
	log.Debug("Resolved gateway endpoint %s", rsp.URL)
	return rsp.URL, nil
}

func (a *Authenticator) login(ctx context.Context, accountID, secret string) (string, error) {
	log.Debug("Logging in as %s", accountID)
	body, err := a.requester.Post(ctx, loginEndpoint, "", &loginRequest{Email: accountID, Password: secret})
	if err != nil {
		var httpErr *api.HTTPError
		if errors.As(err, &httpErr) {
			switch {
			case httpErr.Code == http.StatusBadRequest || httpErr.Unauthorized():
				return "", newError(ErrAuthenticationRejected, httpErr)
			case httpErr.Temporary():
				return "", newError(ErrServiceUnavailable, httpErr)
			default:
				return "", newError(ErrProtocol, httpErr)
			}
		}
		if errors.Is(err, api.ErrResponseTooLarge) {
			return "", newError(ErrProtocol, err)
		}
		return "", newError(ErrServiceUnavailable, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return "", newError(ErrAuthenticationRejected, errors.New("empty response"))
	}
	var rsp loginResponse
	if err := api.Decode(body, &rsp); err != nil {
		return "", newError(ErrProtocol, err)
	}
	return rsp.Token, nil
}

func (a *Authenticator) load() *tokenstore.Credentials {
	if a.Store != nil {
		if credentials, ok := a.Store.Load(); ok {
			return credentials
		}
	}
	return tokenstore.New()
}

func (a *Authenticator) save(credentials *tokenstore.Credentials) {
	if a.Store == nil {
		return
	}
	if err := a.Store.Save(credentials); err != nil {
		log.Warning("Continuing without persisted token: %s", err)
	}
}
