package gateway

import (
	"github.com/relaychat/chatcore/internal/log"
	"github.com/relaychat/chatcore/pkg/connector"
	"github.com/relaychat/chatcore/pkg/entity"
)

// Bind starts a new connection epoch and returns the Owner to hand to the transport that serves
// it. Payloads delivered through an Owner returned by an earlier call to Bind are discarded, so a
// replaced connection cannot write into the cache of the session that replaced it. A payload that
// is already being applied when Bind is called completes.
func (h *Handler) Bind() connector.Owner {
	return &binding{handler: h, epoch: h.epoch.Add(1)}
}

type binding struct {
	handler *Handler
	epoch   uint64
}

var _ connector.Owner = (*binding)(nil)

func (b *binding) current() bool {
	if b.handler.epoch.Load() == b.epoch {
		return true
	}
	log.Debug("Discarding payload from replaced gateway connection (epoch %d)", b.epoch)
	return false
}

func (b *binding) Processed() {
	if b.current() {
		b.handler.Processed()
	}
}

func (b *binding) Ready(ready *connector.Ready) {
	if b.current() {
		b.handler.Ready(ready)
	}
}

func (b *binding) UserUpdate(id string, state entity.UserState) {
	if b.current() {
		b.handler.UserUpdate(id, state)
	}
}

func (b *binding) GuildCreate(id string, state entity.GuildState) {
	if b.current() {
		b.handler.GuildCreate(id, state)
	}
}

func (b *binding) GuildUpdate(id string, state entity.GuildState) {
	if b.current() {
		b.handler.GuildUpdate(id, state)
	}
}

func (b *binding) GuildDelete(id string) {
	if b.current() {
		b.handler.GuildDelete(id)
	}
}

func (b *binding) TextChannelCreate(id string, state entity.TextChannelState) {
	if b.current() {
		b.handler.TextChannelCreate(id, state)
	}
}

func (b *binding) TextChannelUpdate(id string, state entity.TextChannelState) {
	if b.current() {
		b.handler.TextChannelUpdate(id, state)
	}
}

func (b *binding) TextChannelDelete(id string) {
	if b.current() {
		b.handler.TextChannelDelete(id)
	}
}

func (b *binding) VoiceChannelCreate(id string, state entity.VoiceChannelState) {
	if b.current() {
		b.handler.VoiceChannelCreate(id, state)
	}
}

func (b *binding) VoiceChannelUpdate(id string, state entity.VoiceChannelState) {
	if b.current() {
		b.handler.VoiceChannelUpdate(id, state)
	}
}

func (b *binding) VoiceChannelDelete(id string) {
	if b.current() {
		b.handler.VoiceChannelDelete(id)
	}
}

func (b *binding) PrivateChannelCreate(channelID, userID string) {
	if b.current() {
		b.handler.PrivateChannelCreate(channelID, userID)
	}
}

func (b *binding) MessageDelete(channelID, messageID string) {
	if b.current() {
		b.handler.MessageDelete(channelID, messageID)
	}
}
