package gateway_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/relaychat/chatcore/pkg/connector"
	"github.com/relaychat/chatcore/pkg/entity"
	"github.com/relaychat/chatcore/pkg/event"
	"github.com/relaychat/chatcore/pkg/gateway"
	"github.com/relaychat/chatcore/pkg/session"
)

var _ = Describe("Handler", func() {
	var (
		cache     *entity.Cache
		sess      *session.Handle
		handler   *gateway.Handler
		published []event.Event
	)

	BeforeEach(func() {
		cache = entity.NewCache()
		sess = session.New()
		events := event.NewManager()
		published = nil
		Expect(events.Register(event.Func(func(ev event.Event) error {
			published = append(published, ev)
			return nil
		}))).To(Succeed())
		handler = gateway.NewHandler(cache, sess, events)
	})

	ready := func() {
		handler.Ready(&connector.Ready{
			Self:            entity.NewSelfInfo("me", entity.SelfInfoState{UserState: entity.UserState{Name: "me"}, Email: "a@b.com"}),
			Users:           map[string]entity.UserState{"u1": {Name: "alice"}},
			Guilds:          map[string]entity.GuildState{"g1": {Name: "guild"}},
			TextChannels:    map[string]entity.TextChannelState{"t1": {GuildID: "g1", Name: "general"}},
			VoiceChannels:   map[string]entity.VoiceChannelState{"v1": {GuildID: "g1", Name: "lounge"}},
			PrivateChannels: map[string]string{"dm1": "u1"},
		})
	}

	Describe("Ready", func() {
		It("populates the cache and the self identity", func() {
			_, ok := sess.Self()
			Expect(ok).To(BeFalse())

			ready()

			self, ok := sess.Self()
			Expect(ok).To(BeTrue())
			Expect(self.Email()).To(Equal("a@b.com"))
			Expect(cache.Users.Len()).To(Equal(2))
			Expect(cache.Guilds.Len()).To(Equal(1))
			Expect(cache.TextChannelsOf("g1")).To(HaveLen(1))
			Expect(cache.VoiceChannelsOf("g1")).To(HaveLen(1))
			id, ok := cache.PrivateChannels.Get("u1")
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal("dm1"))

			Expect(published).To(HaveLen(1))
			Expect(published[0]).To(BeAssignableToTypeOf(&event.Ready{}))
			Expect(published[0].(*event.Ready).Self).To(BeIdenticalTo(self))
			Expect(sess.ResponseTotal()).To(Equal(int64(1)))
		})

		It("keeps the first self identity when the sync repeats", func() {
			ready()
			first, _ := sess.Self()
			ready()
			second, _ := sess.Self()
			Expect(second).To(BeIdenticalTo(first))
		})
	})

	Describe("updates", func() {
		BeforeEach(ready)

		It("mutates users in place", func() {
			held, ok := cache.Users.Get("u1")
			Expect(ok).To(BeTrue())

			handler.UserUpdate("u1", entity.UserState{Name: "alice2", Status: entity.StatusOnline})

			Expect(held.Name()).To(Equal("alice2"))
			ev, ok := published[len(published)-1].(*event.UserUpdate)
			Expect(ok).To(BeTrue())
			Expect(ev.User).To(BeIdenticalTo(held))
			Expect(ev.Previous.Name).To(Equal("alice"))
		})

		It("publishes guild updates with the previous state", func() {
			handler.GuildUpdate("g1", entity.GuildState{Name: "renamed"})
			ev := published[len(published)-1].(*event.GuildUpdate)
			Expect(ev.Previous.Name).To(Equal("guild"))
			Expect(ev.Guild.Name()).To(Equal("renamed"))
		})

		It("removes a deleted guild and its channels", func() {
			handler.GuildDelete("g1")
			_, ok := cache.Guilds.Get("g1")
			Expect(ok).To(BeFalse())
			Expect(cache.TextChannels.Len()).To(BeZero())
			Expect(cache.VoiceChannels.Len()).To(BeZero())
			Expect(published[len(published)-1]).To(BeAssignableToTypeOf(&event.GuildDelete{}))
		})

		It("tracks channel lifecycle", func() {
			handler.TextChannelCreate("t2", entity.TextChannelState{GuildID: "g1", Name: "random"})
			create := published[len(published)-1].(*event.ChannelCreate)
			Expect(create.TextChannel().Name()).To(Equal("random"))
			Expect(create.VoiceChannel()).To(BeNil())

			handler.VoiceChannelUpdate("v1", entity.VoiceChannelState{GuildID: "g1", Name: "quiet"})
			update := published[len(published)-1].(*event.ChannelUpdate)
			Expect(update.VoiceChannel().Name()).To(Equal("quiet"))

			handler.TextChannelDelete("t2")
			_, ok := cache.TextChannels.Get("t2")
			Expect(ok).To(BeFalse())
			Expect(published[len(published)-1]).To(BeAssignableToTypeOf(&event.ChannelDelete{}))
		})

		It("ignores deletion of unknown entities", func() {
			count := len(published)
			handler.TextChannelDelete("nope")
			handler.VoiceChannelDelete("nope")
			handler.GuildDelete("nope")
			Expect(published).To(HaveLen(count))
		})

		It("resolves the channel of a deleted message", func() {
			handler.MessageDelete("t1", "m1")
			ev := published[len(published)-1].(*event.MessageDelete)
			Expect(ev.MessageID).To(Equal("m1"))
			Expect(ev.TextChannel().ID()).To(Equal("t1"))
			Expect(ev.Guild().ID()).To(Equal("g1"))
			Expect(ev.PrivateChannel()).To(BeNil())

			handler.MessageDelete("dm1", "m2")
			ev = published[len(published)-1].(*event.MessageDelete)
			Expect(ev.PrivateChannel().UserID()).To(Equal("u1"))
			Expect(ev.TextChannel()).To(BeNil())
			Expect(ev.Guild()).To(BeNil())
		})

		It("drops deletions from unknown channels", func() {
			count := len(published)
			handler.MessageDelete("unknown", "m3")
			Expect(published).To(HaveLen(count))
		})

		It("records new private channels", func() {
			handler.PrivateChannelCreate("dm2", "u2")
			id, ok := cache.PrivateChannels.Get("u2")
			Expect(ok).To(BeTrue())
			Expect(id).To(Equal("dm2"))
			ev := published[len(published)-1].(*event.PrivateChannelCreate)
			Expect(ev.Channel.ID()).To(Equal("dm2"))
		})

		It("counts every payload", func() {
			before := sess.ResponseTotal()
			handler.Processed()
			handler.MessageDelete("unknown", "m")
			handler.GuildCreate("g2", entity.GuildState{})
			Expect(sess.ResponseTotal()).To(Equal(before + 3))
			Expect(published[len(published)-1].ResponseNumber()).To(Equal(before + 3))
		})
	})

	Describe("Bind", func() {
		It("applies payloads from the current connection", func() {
			owner := handler.Bind()
			owner.GuildCreate("g1", entity.GuildState{Name: "guild"})
			_, ok := cache.Guilds.Get("g1")
			Expect(ok).To(BeTrue())
			Expect(sess.ResponseTotal()).To(Equal(int64(1)))
		})

		It("discards payloads from a replaced connection", func() {
			stale := handler.Bind()
			current := handler.Bind()
			stale.GuildCreate("g1", entity.GuildState{Name: "old"})
			stale.UserUpdate("u1", entity.UserState{Name: "old"})
			stale.Processed()
			Expect(cache.Guilds.Len()).To(BeZero())
			Expect(cache.Users.Len()).To(BeZero())
			Expect(sess.ResponseTotal()).To(BeZero())
			Expect(published).To(BeEmpty())

			current.GuildCreate("g1", entity.GuildState{Name: "new"})
			g, ok := cache.Guilds.Get("g1")
			Expect(ok).To(BeTrue())
			Expect(g.State().Name).To(Equal("new"))
		})
	})
})
