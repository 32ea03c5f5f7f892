package entity

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/relaychat/chatcore/internal/log"
)

// ErrEmptyChannelID is returned by PrivateChannels.GetOrCreate when the Creator reports success
// without a channel identifier.
var ErrEmptyChannelID = errors.New("private channel creation returned empty id")

// Creator opens private channels on the chat service.
type Creator interface {
	CreatePrivateChannel(ctx context.Context, userID string) (channelID string, err error)
}

// CreatorFunc adapts a function to the Creator interface.
type CreatorFunc func(ctx context.Context, userID string) (string, error)

func (f CreatorFunc) CreatePrivateChannel(ctx context.Context, userID string) (string, error) {
	return f(ctx, userID)
}

// PrivateChannels remembers which private channel belongs to which user, so that messaging a user
// (including one that is offline) reuses an existing channel instead of requesting a new one.
//
// Entries are never expired.
type PrivateChannels struct {
	lock     sync.RWMutex
	byUser   map[string]string
	channels map[string]*PrivateChannel
	inflight singleflight.Group
}

func NewPrivateChannels() *PrivateChannels {
	return &PrivateChannels{
		byUser:   make(map[string]string),
		channels: make(map[string]*PrivateChannel),
	}
}

// Set records that channelID is the private channel shared with userID and returns the channel.
func (p *PrivateChannels) Set(userID, channelID string) *PrivateChannel {
	p.lock.Lock()
	defer p.lock.Unlock()

	if ch, ok := p.channels[channelID]; ok {
		if ch.userID == userID {
			p.byUser[userID] = channelID
			return ch
		}
		if p.byUser[ch.userID] == channelID {
			delete(p.byUser, ch.userID)
		}
	}
	if previous, ok := p.byUser[userID]; ok && previous != channelID {
		delete(p.channels, previous)
	}
	ch := NewPrivateChannel(channelID, userID)
	p.byUser[userID] = channelID
	p.channels[channelID] = ch
	return ch
}

// Get returns the identifier of the private channel shared with userID.
func (p *PrivateChannels) Get(userID string) (string, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	id, ok := p.byUser[userID]
	return id, ok
}

// Channel returns the private channel with identifier channelID.
func (p *PrivateChannels) Channel(channelID string) (*PrivateChannel, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	ch, ok := p.channels[channelID]
	return ch, ok
}

// All returns a snapshot of the known private channels.
func (p *PrivateChannels) All() []*PrivateChannel {
	p.lock.RLock()
	defer p.lock.RUnlock()
	all := make([]*PrivateChannel, 0, len(p.channels))
	for _, ch := range p.channels {
		all = append(all, ch)
	}
	return all
}

func (p *PrivateChannels) Len() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return len(p.byUser)
}

func (p *PrivateChannels) Clear() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.byUser = make(map[string]string)
	p.channels = make(map[string]*PrivateChannel)
}

// GetOrCreate returns the private channel shared with userID, asking creator to open one if none
// is known.
//
// At most one creation request per user is in flight at a time. Callers that arrive while a
// request is pending wait for it and receive the same channel identifier (or the same error).
// The request keeps the values of the ctx of the caller that issued it but is not canceled with it;
// each caller stops waiting when its own ctx is done. Failures are not cached.
func (p *PrivateChannels) GetOrCreate(ctx context.Context, userID string, creator Creator) (string, error) {
	if id, ok := p.Get(userID); ok {
		return id, nil
	}
	requestCtx := context.WithoutCancel(ctx)
	results := p.inflight.DoChan(userID, func() (interface{}, error) {
		// A request that completed after our first lookup has already populated the map.
		if id, ok := p.Get(userID); ok {
			return id, nil
		}
		log.Debug("Opening private channel with user %s", userID)
		id, err := creator.CreatePrivateChannel(requestCtx, userID)
		if err != nil {
			return "", err
		}
		if id == "" {
			return "", ErrEmptyChannelID
		}
		p.Set(userID, id)
		return id, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return "", result.Err
		}
		if result.Shared {
			log.Debug("Shared private channel request for user %s", userID)
		}
		return result.Val.(string), nil
	}
}

// Cache groups the entity stores observed by a session.
type Cache struct {
	Users           *Store[UserState, *User]
	Guilds          *Store[GuildState, *Guild]
	TextChannels    *Store[TextChannelState, *TextChannel]
	VoiceChannels   *Store[VoiceChannelState, *VoiceChannel]
	PrivateChannels *PrivateChannels
}

func NewCache() *Cache {
	return &Cache{
		Users:           NewStore(NewUser),
		Guilds:          NewStore(NewGuild),
		TextChannels:    NewStore(NewTextChannel),
		VoiceChannels:   NewStore(NewVoiceChannel),
		PrivateChannels: NewPrivateChannels(),
	}
}

// TextChannelsOf returns a snapshot of the text channels that belong to guildID.
func (c *Cache) TextChannelsOf(guildID string) []*TextChannel {
	return c.TextChannels.Filter(func(ch *TextChannel) bool {
		return ch.GuildID() == guildID
	})
}

// VoiceChannelsOf returns a snapshot of the voice channels that belong to guildID.
func (c *Cache) VoiceChannelsOf(guildID string) []*VoiceChannel {
	return c.VoiceChannels.Filter(func(ch *VoiceChannel) bool {
		return ch.GuildID() == guildID
	})
}

// RemoveGuild removes guildID and every channel that belongs to it.
func (c *Cache) RemoveGuild(guildID string) (*Guild, bool) {
	for _, ch := range c.TextChannelsOf(guildID) {
		c.TextChannels.Remove(ch.ID())
	}
	for _, ch := range c.VoiceChannelsOf(guildID) {
		c.VoiceChannels.Remove(ch.ID())
	}
	return c.Guilds.Remove(guildID)
}

// Clear empties every store. It is used when a new session replaces an old one.
func (c *Cache) Clear() {
	c.Users.Clear()
	c.Guilds.Clear()
	c.TextChannels.Clear()
	c.VoiceChannels.Clear()
	c.PrivateChannels.Clear()
}
