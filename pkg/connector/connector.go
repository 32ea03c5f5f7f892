// Package connector defines the boundary between a session and the real-time gateway transport.
//
// This module does not implement a transport. A transport is created by a [Factory] once
// authentication has produced a gateway URL; it then decodes gateway payloads on its own
// goroutine(s) and reports them to the session through the [Owner] interface.
package connector

import (
	"context"

	"github.com/relaychat/chatcore/pkg/entity"
)

// Connector is a live connection to the gateway.
type Connector interface {
	// GatewayURL returns the endpoint the connection was opened against.
	GatewayURL() string

	// Close terminates the connection.
	//
	// Repeated calls to Close() must be idempotent, but the behavior of the interface is otherwise
	// undefined after calling this method.
	Close()
}

// Ready carries the state sync sent by the gateway at the start of a session.
type Ready struct {
	Self            *entity.SelfInfo
	Users           map[string]entity.UserState
	Guilds          map[string]entity.GuildState
	TextChannels    map[string]entity.TextChannelState
	VoiceChannels   map[string]entity.VoiceChannelState
	PrivateChannels map[string]string // channel id -> recipient user id
}

// Owner receives decoded gateway payloads. Every method corresponds to exactly one payload.
//
// Methods may be called from any goroutine, but a transport must not call them concurrently for
// the same session.
type Owner interface {
	Ready(ready *Ready)
	UserUpdate(id string, state entity.UserState)
	GuildCreate(id string, state entity.GuildState)
	GuildUpdate(id string, state entity.GuildState)
	GuildDelete(id string)
	TextChannelCreate(id string, state entity.TextChannelState)
	TextChannelUpdate(id string, state entity.TextChannelState)
	TextChannelDelete(id string)
	VoiceChannelCreate(id string, state entity.VoiceChannelState)
	VoiceChannelUpdate(id string, state entity.VoiceChannelState)
	VoiceChannelDelete(id string)
	PrivateChannelCreate(channelID, userID string)
	MessageDelete(channelID, messageID string)

	// Processed records a payload that does not change cached state.
	Processed()
}

// Factory opens a gateway connection to gatewayURL on behalf of owner. The authorization value
// is the one the session authenticated with (including any "Bot " prefix).
//
// Once the session replaces the connection, owner silently discards further payloads.
type Factory func(ctx context.Context, gatewayURL, authorization string, owner Owner) (Connector, error)
