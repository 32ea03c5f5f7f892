// Package gateway applies payloads decoded by a gateway transport to a session's entity cache and
// publishes the corresponding events.
package gateway

import (
	"sync/atomic"

	"github.com/relaychat/chatcore/internal/log"
	"github.com/relaychat/chatcore/pkg/connector"
	"github.com/relaychat/chatcore/pkg/entity"
	"github.com/relaychat/chatcore/pkg/event"
	"github.com/relaychat/chatcore/pkg/session"
)

// Handler is the connector.Owner of a session. Each method counts one processed payload, updates
// the cache, and then publishes an event. Listeners therefore always observe the cache state that
// includes the change they are notified about.
//
// Calling the Handler directly applies every payload. Transports that may be replaced should be
// given the Owner returned by [Handler.Bind] instead.
type Handler struct {
	cache   *entity.Cache
	session *session.Handle
	events  *event.Manager
	epoch   atomic.Uint64
}

var _ connector.Owner = (*Handler)(nil)

func NewHandler(cache *entity.Cache, s *session.Handle, events *event.Manager) *Handler {
	return &Handler{cache: cache, session: s, events: events}
}

func (h *Handler) Processed() {
	h.session.IncrementResponseTotal()
}

func (h *Handler) Ready(ready *connector.Ready) {
	n := h.session.IncrementResponseTotal()
	for id, state := range ready.Users {
		h.cache.Users.Upsert(id, state)
	}
	for id, state := range ready.Guilds {
		h.cache.Guilds.Upsert(id, state)
	}
	for id, state := range ready.TextChannels {
		h.cache.TextChannels.Upsert(id, state)
	}
	for id, state := range ready.VoiceChannels {
		h.cache.VoiceChannels.Upsert(id, state)
	}
	for channelID, userID := range ready.PrivateChannels {
		h.cache.PrivateChannels.Set(userID, channelID)
	}
	if ready.Self != nil {
		h.cache.Users.Upsert(ready.Self.ID(), ready.Self.State().UserState)
		if err := h.session.SetSelf(ready.Self); err != nil {
			// A resumed connection may repeat the state sync.
			log.Debug("Keeping existing self identity: %s", err)
		}
	} else {
		log.Warning("Gateway state sync did not include self identity")
	}
	log.Info("Session ready: %d guild(s), %d user(s)", h.cache.Guilds.Len(), h.cache.Users.Len())
	self, _ := h.session.Self()
	h.events.Publish(event.NewReady(n, self))
}

func (h *Handler) UserUpdate(id string, state entity.UserState) {
	n := h.session.IncrementResponseTotal()
	var previous entity.UserState
	if u, ok := h.cache.Users.Get(id); ok {
		previous = u.State()
	}
	u := h.cache.Users.Upsert(id, state)
	h.events.Publish(event.NewUserUpdate(n, u, previous))
}

func (h *Handler) GuildCreate(id string, state entity.GuildState) {
	n := h.session.IncrementResponseTotal()
	g := h.cache.Guilds.Upsert(id, state)
	h.events.Publish(event.NewGuildCreate(n, g))
}

func (h *Handler) GuildUpdate(id string, state entity.GuildState) {
	n := h.session.IncrementResponseTotal()
	var previous entity.GuildState
	if g, ok := h.cache.Guilds.Get(id); ok {
		previous = g.State()
	}
	g := h.cache.Guilds.Upsert(id, state)
	h.events.Publish(event.NewGuildUpdate(n, g, previous))
}

func (h *Handler) GuildDelete(id string) {
	n := h.session.IncrementResponseTotal()
	g, ok := h.cache.RemoveGuild(id)
	if !ok {
		log.Debug("Ignoring deletion of unknown guild %s", id)
		return
	}
	h.events.Publish(event.NewGuildDelete(n, g))
}

func (h *Handler) TextChannelCreate(id string, state entity.TextChannelState) {
	n := h.session.IncrementResponseTotal()
	ch := h.cache.TextChannels.Upsert(id, state)
	h.events.Publish(event.NewChannelCreate(n, ch))
}

func (h *Handler) TextChannelUpdate(id string, state entity.TextChannelState) {
	n := h.session.IncrementResponseTotal()
	ch := h.cache.TextChannels.Upsert(id, state)
	h.events.Publish(event.NewChannelUpdate(n, ch))
}

func (h *Handler) TextChannelDelete(id string) {
	n := h.session.IncrementResponseTotal()
	ch, ok := h.cache.TextChannels.Remove(id)
	if !ok {
		log.Debug("Ignoring deletion of unknown text channel %s", id)
		return
	}
	h.events.Publish(event.NewChannelDelete(n, ch))
}

func (h *Handler) VoiceChannelCreate(id string, state entity.VoiceChannelState) {
	n := h.session.IncrementResponseTotal()
	ch := h.cache.VoiceChannels.Upsert(id, state)
	h.events.Publish(event.NewChannelCreate(n, ch))
}

func (h *Handler) VoiceChannelUpdate(id string, state entity.VoiceChannelState) {
	n := h.session.IncrementResponseTotal()
	ch := h.cache.VoiceChannels.Upsert(id, state)
	h.events.Publish(event.NewChannelUpdate(n, ch))
}

func (h *Handler) VoiceChannelDelete(id string) {
	n := h.session.IncrementResponseTotal()
	ch, ok := h.cache.VoiceChannels.Remove(id)
	if !ok {
		log.Debug("Ignoring deletion of unknown voice channel %s", id)
		return
	}
	h.events.Publish(event.NewChannelDelete(n, ch))
}

func (h *Handler) PrivateChannelCreate(channelID, userID string) {
	n := h.session.IncrementResponseTotal()
	ch := h.cache.PrivateChannels.Set(userID, channelID)
	h.events.Publish(event.NewPrivateChannelCreate(n, ch))
}

func (h *Handler) MessageDelete(channelID, messageID string) {
	n := h.session.IncrementResponseTotal()
	if ch, ok := h.cache.TextChannels.Get(channelID); ok {
		guild, _ := h.cache.Guilds.Get(ch.GuildID())
		h.events.Publish(event.NewMessageDelete(n, messageID, ch, guild))
		return
	}
	if ch, ok := h.cache.PrivateChannels.Channel(channelID); ok {
		h.events.Publish(event.NewMessageDelete(n, messageID, ch, nil))
		return
	}
	log.Warning("Dropping deletion of message %s from unknown channel %s", messageID, channelID)
}
