package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/relaychat/chatcore/internal/log"
	"github.com/relaychat/chatcore/pkg/connector"
	"github.com/relaychat/chatcore/pkg/entity"
)

// snapshot is a recorded gateway state sync. It lets chatctl inspect a session without a live
// gateway transport. Entity fields are matched case-insensitively, e.g.:
//
//	{
//	    "self_id": "1",
//	    "self": {"name": "me", "email": "a@b.com"},
//	    "users": {"42": {"name": "alice", "status": "online"}},
//	    "guilds": {"g1": {"name": "guild", "ownerid": "42"}},
//	    "text_channels": {"t1": {"guildid": "g1", "name": "general"}},
//	    "private_channels": {"dm1": "42"}
//	}
type snapshot struct {
	SelfID          string                              `json:"self_id"`
	Self            entity.SelfInfoState                `json:"self"`
	Users           map[string]entity.UserState         `json:"users"`
	Guilds          map[string]entity.GuildState        `json:"guilds"`
	TextChannels    map[string]entity.TextChannelState  `json:"text_channels"`
	VoiceChannels   map[string]entity.VoiceChannelState `json:"voice_channels"`
	PrivateChannels map[string]string                   `json:"private_channels"`
}

func loadSnapshot(filename string) (*connector.Ready, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid snapshot %s: %w", filename, err)
	}
	ready := &connector.Ready{
		Users:           s.Users,
		Guilds:          s.Guilds,
		TextChannels:    s.TextChannels,
		VoiceChannels:   s.VoiceChannels,
		PrivateChannels: s.PrivateChannels,
	}
	if s.SelfID != "" {
		ready.Self = entity.NewSelfInfo(s.SelfID, s.Self)
	}
	return ready, nil
}

// snapshotConnector replays a snapshot as the gateway's state sync.
type snapshotConnector struct {
	gatewayURL string
}

func (s *snapshotConnector) GatewayURL() string { return s.gatewayURL }
func (s *snapshotConnector) Close()             {}

func snapshotFactory(filename string) connector.Factory {
	return func(ctx context.Context, gatewayURL, authorization string, owner connector.Owner) (connector.Connector, error) {
		ready, err := loadSnapshot(filename)
		if err != nil {
			return nil, err
		}
		log.Info("Replaying gateway snapshot %s instead of connecting to %s", filename, gatewayURL)
		owner.Ready(ready)
		return &snapshotConnector{gatewayURL: gatewayURL}, nil
	}
}
