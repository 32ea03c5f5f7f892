// Package entity defines the users, guilds and channels observed by a session, and the Cache that
// tracks them by identifier.
//
// Every entity has an immutable identifier and a mutable state. The Cache never replaces an entity
// it already tracks; updates reported by the gateway are applied to the existing object, so a
// *User obtained once keeps reflecting the latest state until it is removed from the Cache. Use
// State() for a consistent snapshot of all fields.
package entity

import "sync"

// ChannelType enumerates the kinds of channels a session can observe.
type ChannelType int

const (
	ChannelTypeText ChannelType = iota
	ChannelTypePrivate
	ChannelTypeVoice
)

func (t ChannelType) String() string {
	switch t {
	case ChannelTypeText:
		return "text"
	case ChannelTypePrivate:
		return "private"
	case ChannelTypeVoice:
		return "voice"
	}
	return "unknown"
}

// OnlineStatus is a user's presence.
type OnlineStatus string

const (
	StatusOnline  OnlineStatus = "online"
	StatusIdle    OnlineStatus = "idle"
	StatusOffline OnlineStatus = "offline"
	StatusUnknown OnlineStatus = ""
)

// Channel is implemented by every channel entity.
type Channel interface {
	ID() string
	Type() ChannelType
}

// MessageChannel is a Channel that carries text messages.
type MessageChannel interface {
	Channel
	messageChannel()
}

// record is the set of operations a Store needs from the entities it holds.
type record[S any] interface {
	ID() string
	State() S
	setState(S)
}

type UserState struct {
	Name          string
	Discriminator string
	AvatarID      string
	Bot           bool
	Status        OnlineStatus
}

type User struct {
	id    string
	mu    sync.RWMutex
	state UserState
}

func NewUser(id string, state UserState) *User {
	return &User{id: id, state: state}
}

func (u *User) ID() string { return u.id }

func (u *User) State() UserState {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state
}

func (u *User) setState(s UserState) {
	u.mu.Lock()
	u.state = s
	u.mu.Unlock()
}

func (u *User) Name() string          { return u.State().Name }
func (u *User) Status() OnlineStatus  { return u.State().Status }
func (u *User) IsBot() bool           { return u.State().Bot }
func (u *User) Discriminator() string { return u.State().Discriminator }

type GuildState struct {
	Name    string
	OwnerID string
	Region  string
	IconID  string
}

type Guild struct {
	id    string
	mu    sync.RWMutex
	state GuildState
}

func NewGuild(id string, state GuildState) *Guild {
	return &Guild{id: id, state: state}
}

func (g *Guild) ID() string { return g.id }

func (g *Guild) State() GuildState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Guild) setState(s GuildState) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

func (g *Guild) Name() string    { return g.State().Name }
func (g *Guild) OwnerID() string { return g.State().OwnerID }

// TextChannelState describes a guild text channel. GuildID must not change between updates.
type TextChannelState struct {
	GuildID  string
	Name     string
	Topic    string
	Position int
}

type TextChannel struct {
	id    string
	mu    sync.RWMutex
	state TextChannelState
}

func NewTextChannel(id string, state TextChannelState) *TextChannel {
	return &TextChannel{id: id, state: state}
}

func (c *TextChannel) ID() string        { return c.id }
func (c *TextChannel) Type() ChannelType { return ChannelTypeText }
func (c *TextChannel) messageChannel()   {}

func (c *TextChannel) State() TextChannelState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *TextChannel) setState(s TextChannelState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *TextChannel) GuildID() string { return c.State().GuildID }
func (c *TextChannel) Name() string    { return c.State().Name }
func (c *TextChannel) Topic() string   { return c.State().Topic }

type VoiceChannelState struct {
	GuildID   string
	Name      string
	Position  int
	UserLimit int
	Bitrate   int
}

type VoiceChannel struct {
	id    string
	mu    sync.RWMutex
	state VoiceChannelState
}

func NewVoiceChannel(id string, state VoiceChannelState) *VoiceChannel {
	return &VoiceChannel{id: id, state: state}
}

func (c *VoiceChannel) ID() string        { return c.id }
func (c *VoiceChannel) Type() ChannelType { return ChannelTypeVoice }

func (c *VoiceChannel) State() VoiceChannelState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *VoiceChannel) setState(s VoiceChannelState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *VoiceChannel) GuildID() string { return c.State().GuildID }
func (c *VoiceChannel) Name() string    { return c.State().Name }

// PrivateChannel is a direct-message channel with a single user. It has no mutable state.
type PrivateChannel struct {
	id     string
	userID string
}

func NewPrivateChannel(id, userID string) *PrivateChannel {
	return &PrivateChannel{id: id, userID: userID}
}

func (c *PrivateChannel) ID() string        { return c.id }
func (c *PrivateChannel) Type() ChannelType { return ChannelTypePrivate }
func (c *PrivateChannel) UserID() string    { return c.userID }
func (c *PrivateChannel) messageChannel()   {}

type SelfInfoState struct {
	UserState
	Email    string
	Verified bool
	MFA      bool
}

// SelfInfo describes the account the session is authenticated as. It is read-only; account
// settings are not modified through this type.
type SelfInfo struct {
	id    string
	state SelfInfoState
}

func NewSelfInfo(id string, state SelfInfoState) *SelfInfo {
	return &SelfInfo{id: id, state: state}
}

func (s *SelfInfo) ID() string            { return s.id }
func (s *SelfInfo) State() SelfInfoState  { return s.state }
func (s *SelfInfo) Name() string          { return s.state.Name }
func (s *SelfInfo) Email() string         { return s.state.Email }
func (s *SelfInfo) Verified() bool        { return s.state.Verified }
func (s *SelfInfo) Discriminator() string { return s.state.Discriminator }
