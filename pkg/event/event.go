// Package event defines the notifications published to listeners while a session processes
// gateway payloads, and the Manager that delivers them.
package event

import "github.com/relaychat/chatcore/pkg/entity"

// Event is implemented by every notification type in this package. The set of events is closed;
// listeners distinguish them with a type switch.
type Event interface {
	// ResponseNumber is the value of the session's response counter for the payload that
	// triggered the event.
	ResponseNumber() int64
	event()
}

type base struct {
	responseNumber int64
}

func (b base) ResponseNumber() int64 { return b.responseNumber }
func (b base) event()                {}

// Ready is published once the gateway has delivered its initial state sync.
type Ready struct {
	base
	Self *entity.SelfInfo
}

func NewReady(responseNumber int64, self *entity.SelfInfo) *Ready {
	return &Ready{base: base{responseNumber}, Self: self}
}

// UserUpdate is published when a user's state changes. Previous holds the state before the change
// and is the zero value if the user was not cached.
type UserUpdate struct {
	base
	User     *entity.User
	Previous entity.UserState
}

func NewUserUpdate(responseNumber int64, user *entity.User, previous entity.UserState) *UserUpdate {
	return &UserUpdate{base: base{responseNumber}, User: user, Previous: previous}
}

type GuildCreate struct {
	base
	Guild *entity.Guild
}

func NewGuildCreate(responseNumber int64, guild *entity.Guild) *GuildCreate {
	return &GuildCreate{base: base{responseNumber}, Guild: guild}
}

type GuildUpdate struct {
	base
	Guild    *entity.Guild
	Previous entity.GuildState
}

func NewGuildUpdate(responseNumber int64, guild *entity.Guild, previous entity.GuildState) *GuildUpdate {
	return &GuildUpdate{base: base{responseNumber}, Guild: guild, Previous: previous}
}

// GuildDelete is published when the session leaves a guild. Guild is the entity that was removed
// from the cache.
type GuildDelete struct {
	base
	Guild *entity.Guild
}

func NewGuildDelete(responseNumber int64, guild *entity.Guild) *GuildDelete {
	return &GuildDelete{base: base{responseNumber}, Guild: guild}
}

// channelEvent provides kind-specific accessors for events that carry a guild channel.
type channelEvent struct {
	base
	Channel entity.Channel
}

// TextChannel returns the event's channel if it is a text channel, and nil otherwise.
func (e *channelEvent) TextChannel() *entity.TextChannel {
	ch, _ := e.Channel.(*entity.TextChannel)
	return ch
}

// VoiceChannel returns the event's channel if it is a voice channel, and nil otherwise.
func (e *channelEvent) VoiceChannel() *entity.VoiceChannel {
	ch, _ := e.Channel.(*entity.VoiceChannel)
	return ch
}

type ChannelCreate struct{ channelEvent }

func NewChannelCreate(responseNumber int64, ch entity.Channel) *ChannelCreate {
	return &ChannelCreate{channelEvent{base: base{responseNumber}, Channel: ch}}
}

type ChannelUpdate struct{ channelEvent }

func NewChannelUpdate(responseNumber int64, ch entity.Channel) *ChannelUpdate {
	return &ChannelUpdate{channelEvent{base: base{responseNumber}, Channel: ch}}
}

type ChannelDelete struct{ channelEvent }

func NewChannelDelete(responseNumber int64, ch entity.Channel) *ChannelDelete {
	return &ChannelDelete{channelEvent{base: base{responseNumber}, Channel: ch}}
}

type PrivateChannelCreate struct {
	base
	Channel *entity.PrivateChannel
}

func NewPrivateChannelCreate(responseNumber int64, ch *entity.PrivateChannel) *PrivateChannelCreate {
	return &PrivateChannelCreate{base: base{responseNumber}, Channel: ch}
}

// MessageDelete is published when a message is deleted from a text or private channel. The
// message itself is not cached, so only its identifier is available.
type MessageDelete struct {
	base
	MessageID string
	Channel   entity.MessageChannel
	guild     *entity.Guild
}

// NewMessageDelete returns a MessageDelete. guild is the owner of ch when ch is a text channel,
// and is ignored otherwise.
func NewMessageDelete(responseNumber int64, messageID string, ch entity.MessageChannel, guild *entity.Guild) *MessageDelete {
	e := &MessageDelete{base: base{responseNumber}, MessageID: messageID, Channel: ch}
	if ch.Type() == entity.ChannelTypeText {
		e.guild = guild
	}
	return e
}

func (e *MessageDelete) ChannelType() entity.ChannelType {
	return e.Channel.Type()
}

// TextChannel returns the channel the message was deleted from if it is a text channel, and nil
// otherwise.
func (e *MessageDelete) TextChannel() *entity.TextChannel {
	ch, _ := e.Channel.(*entity.TextChannel)
	return ch
}

// PrivateChannel returns the channel the message was deleted from if it is a private channel, and
// nil otherwise.
func (e *MessageDelete) PrivateChannel() *entity.PrivateChannel {
	ch, _ := e.Channel.(*entity.PrivateChannel)
	return ch
}

// Guild returns the guild that owns the message's text channel. It is nil for private channels,
// and for text channels whose guild was not cached.
func (e *MessageDelete) Guild() *entity.Guild {
	return e.guild
}
