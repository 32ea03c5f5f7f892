// Package session holds the state of one authenticated connection to the chat service: the live
// gateway connector, the account the session is authenticated as, and a counter of processed
// gateway payloads.
package session

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/relaychat/chatcore/internal/log"
	"github.com/relaychat/chatcore/pkg/auth"
	"github.com/relaychat/chatcore/pkg/connector"
	"github.com/relaychat/chatcore/pkg/entity"
)

var (
	// ErrSelfAlreadySet is returned when the self identity is set twice for one authentication.
	ErrSelfAlreadySet = errors.New("self identity already set for this session")
	ErrNilSelf        = errors.New("self identity is nil")
)

// Handle is safe for concurrent use.
type Handle struct {
	// Guards everything except responseTotal. Never held while calling into a Connector.
	lock        sync.RWMutex
	conn        connector.Connector
	self        *entity.SelfInfo
	token       string
	accountType auth.AccountType

	responseTotal atomic.Int64
}

func New() *Handle {
	return &Handle{}
}

// Begin starts a new authentication epoch with token. The self identity of the previous epoch, if
// any, is cleared so that it can be set again once the gateway reports it.
func (h *Handle) Begin(token string, accountType auth.AccountType) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.token = token
	h.accountType = accountType
	h.self = nil
}

// Attach makes conn the session's connector and returns the one it replaces, if any. The
// replaced connector is not closed; whoever reconnected owns it.
func (h *Handle) Attach(conn connector.Connector) connector.Connector {
	if conn != nil {
		log.Debug("Attaching gateway connection to %s", conn.GatewayURL())
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	previous := h.conn
	h.conn = conn
	return previous
}

// Current returns the attached connector.
func (h *Handle) Current() (connector.Connector, bool) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.conn, h.conn != nil
}

// SetSelf records the identity the session is authenticated as. It may be called once per call to
// Begin.
func (h *Handle) SetSelf(self *entity.SelfInfo) error {
	if self == nil {
		return ErrNilSelf
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.self != nil {
		return ErrSelfAlreadySet
	}
	h.self = self
	return nil
}

// Self returns the authenticated identity. It returns false until the gateway has reported one.
func (h *Handle) Self() (*entity.SelfInfo, bool) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.self, h.self != nil
}

// Token returns the session token, or an empty string before the first call to Begin.
func (h *Handle) Token() string {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.token
}

func (h *Handle) AccountType() auth.AccountType {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.accountType
}

// Authorization returns the value of the Authorization header for REST requests made on behalf of
// the session.
func (h *Handle) Authorization() string {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.accountType.Authorization(h.token)
}

// IncrementResponseTotal records that a gateway payload was processed and returns the new total.
func (h *Handle) IncrementResponseTotal() int64 {
	return h.responseTotal.Add(1)
}

// ResponseTotal returns the number of gateway payloads processed. The value never decreases.
func (h *Handle) ResponseTotal() int64 {
	return h.responseTotal.Load()
}

// Close closes and detaches the current connector, if any.
func (h *Handle) Close() {
	h.lock.Lock()
	conn := h.conn
	h.conn = nil
	h.lock.Unlock()
	if conn != nil {
		conn.Close()
	}
}
