package sim

import (
	"fmt"
	"testing"

	"dartagnan/server/internal/proto"
)

// recordingDelivery captures everything the world sends, keyed by
// recipient, and keeps bot delivery functions live so driver wiring works
// in tests.
type recordingDelivery struct {
	all        []proto.Message
	perID      map[int][]proto.Message
	delivers   map[int]func(proto.Message)
	forwarding bool
}

func newRecordingDelivery() *recordingDelivery {
	return &recordingDelivery{
		perID:    make(map[int][]proto.Message),
		delivers: make(map[int]func(proto.Message)),
	}
}

func (d *recordingDelivery) BroadcastToAll(msg proto.Message) {
	d.all = append(d.all, msg)
	if d.forwarding {
		for _, deliver := range d.delivers {
			deliver(msg)
		}
	}
}

func (d *recordingDelivery) BroadcastExcept(exceptID int, msg proto.Message) {
	d.all = append(d.all, msg)
	if d.forwarding {
		for id, deliver := range d.delivers {
			if id != exceptID {
				deliver(msg)
			}
		}
	}
}

func (d *recordingDelivery) SendTo(id int, msg proto.Message) {
	d.perID[id] = append(d.perID[id], msg)
	if d.forwarding {
		if deliver, ok := d.delivers[id]; ok {
			deliver(msg)
		}
	}
}

func (d *recordingDelivery) Register(id int, deliver func(proto.Message)) {
	d.delivers[id] = deliver
}

func (d *recordingDelivery) Unregister(id int) {
	delete(d.delivers, id)
}

func (d *recordingDelivery) lastOfTag(tag proto.Tag) (proto.Message, bool) {
	for i := len(d.all) - 1; i >= 0; i-- {
		if d.all[i].Tag() == tag {
			return d.all[i], true
		}
	}
	return nil, false
}

type recordingReporter struct {
	states  []string
	joined  []string
	left    []string
	renames []string
	results [][]GameResult
}

func (r *recordingReporter) StateChanged(state string, _ int) { r.states = append(r.states, state) }
func (r *recordingReporter) PlayerJoined(id, _ string)        { r.joined = append(r.joined, id) }
func (r *recordingReporter) PlayerLeft(id string)             { r.left = append(r.left, id) }
func (r *recordingReporter) RoomRenamed(name string)          { r.renames = append(r.renames, name) }
func (r *recordingReporter) Results(res []GameResult)         { r.results = append(r.results, res) }

func newTestWorld(t *testing.T) (*World, *recordingDelivery) {
	t.Helper()
	delivery := newRecordingDelivery()
	w := NewWorld("test-room", Deps{
		Delivery: delivery,
		Seed:     1,
	})
	return w, delivery
}

var testPlayerCounter int

func addTestPlayer(w *World, name string) *Player {
	testPlayerCounter++
	var id int
	w.admitPlayer(&JoinCommand{
		ExternalID: fmt.Sprintf("ext-%s-%d", name, testPlayerCounter),
		Name:       name,
		OnAdmitted: func(got int) { id = got },
	})
	return w.players[id]
}

func TestAdmitAssignsHostAndSendsJoinResponse(t *testing.T) {
	w, delivery := newTestWorld(t)
	p := addTestPlayer(w, "alice")
	if w.HostID() != p.ID {
		t.Fatalf("expected first player %d to be host, got %d", p.ID, w.HostID())
	}

	var join *proto.JoinResponse
	for _, msg := range delivery.perID[p.ID] {
		if m, ok := msg.(proto.JoinResponse); ok {
			join = &m
			break
		}
	}
	if join == nil {
		t.Fatalf("expected a join response, got %+v", delivery.perID[p.ID])
	}
	if join.ID != p.ID || join.RoomName != "test-room" {
		t.Fatalf("unexpected join response %+v", join)
	}
	if join.PingEach != PingInterval.Milliseconds() {
		t.Fatalf("expected ping interval %d, got %d", PingInterval.Milliseconds(), join.PingEach)
	}
}

func TestAdmitEvictsDuplicateIdentity(t *testing.T) {
	w, _ := newTestWorld(t)
	first := addTestPlayer(w, "alice")

	var secondID int
	w.admitPlayer(&JoinCommand{
		ExternalID: first.ExternalID,
		Name:       "alice-again",
		OnAdmitted: func(got int) { secondID = got },
	})

	if _, ok := w.players[first.ID]; ok {
		t.Fatalf("expected player %d to be evicted", first.ID)
	}
	replacement, ok := w.players[secondID]
	if !ok {
		t.Fatalf("expected replacement player %d to exist", secondID)
	}
	if replacement.ExternalID != first.ExternalID {
		t.Fatalf("expected identity to carry over, got %q", replacement.ExternalID)
	}
	if len(w.players) != 1 {
		t.Fatalf("expected exactly one player, got %d", len(w.players))
	}
}

func TestEvictionClosesPriorTransport(t *testing.T) {
	w, _ := newTestWorld(t)
	closed := false
	var firstID int
	w.admitPlayer(&JoinCommand{
		ExternalID: "ext-dup",
		Name:       "alice",
		Close:      func() { closed = true },
		OnAdmitted: func(got int) { firstID = got },
	})

	w.admitPlayer(&JoinCommand{
		ExternalID: "ext-dup",
		Name:       "alice-again",
		OnAdmitted: func(int) {},
	})

	if !closed {
		t.Fatalf("expected the evicted session's transport to be closed")
	}
	if _, ok := w.players[firstID]; ok {
		t.Fatalf("expected player %d gone after eviction", firstID)
	}
}

func TestAdmitOverflowBecomesSpectator(t *testing.T) {
	w, delivery := newTestWorld(t)
	for i := 0; i < MaxPlayers; i++ {
		addTestPlayer(w, fmt.Sprintf("p%d", i))
	}

	var lateID int
	w.admitPlayer(&JoinCommand{
		ExternalID: "ext-late",
		Name:       "late",
		OnAdmitted: func(got int) { lateID = got },
	})
	if _, ok := w.players[lateID]; ok {
		t.Fatalf("expected overflow join to become spectator, found player %d", lateID)
	}
	if _, ok := w.spectators[lateID]; !ok {
		t.Fatalf("expected spectator entry for %d", lateID)
	}
	if len(delivery.perID[lateID]) == 0 {
		t.Fatalf("expected spectator to still receive the join response")
	}
}

func TestJoinMidGameBecomesSpectator(t *testing.T) {
	w, _ := newTestWorld(t)
	host := addTestPlayer(w, "host")
	w.Apply(Command{ActorID: host.ID, Type: CommandStartGame})
	if w.State() != StateInitialRoulette {
		t.Fatalf("expected InitialRoulette after host start, got %s", w.State())
	}

	var lateID int
	w.admitPlayer(&JoinCommand{
		ExternalID: "ext-late",
		Name:       "late",
		OnAdmitted: func(got int) { lateID = got },
	})
	if _, ok := w.spectators[lateID]; !ok {
		t.Fatalf("expected mid-game join to land in spectators")
	}
}

func TestStartGameIgnoredFromNonHost(t *testing.T) {
	w, _ := newTestWorld(t)
	addTestPlayer(w, "host")
	guest := addTestPlayer(w, "guest")

	w.Apply(Command{ActorID: guest.ID, Type: CommandStartGame})
	if w.State() != StateWaiting {
		t.Fatalf("expected Waiting after non-host start, got %s", w.State())
	}
}

func TestStartGameFillsWithBots(t *testing.T) {
	w, _ := newTestWorld(t)
	host := addTestPlayer(w, "host")
	addTestPlayer(w, "b")
	addTestPlayer(w, "c")

	w.Apply(Command{ActorID: host.ID, Type: CommandStartGame})

	if len(w.players) != MaxPlayers {
		t.Fatalf("expected roster filled to %d, got %d", MaxPlayers, len(w.players))
	}
	bots := 0
	for _, p := range w.players {
		if p.IsBot() {
			bots++
			if p.driver == nil {
				t.Fatalf("bot %d has no driver", p.ID)
			}
		}
	}
	if bots != MaxPlayers-3 {
		t.Fatalf("expected %d bots, got %d", MaxPlayers-3, bots)
	}
	for _, p := range w.players {
		if len(p.RoulettePool) != RoulettePoolSize {
			t.Fatalf("expected pool of %d for player %d, got %d", RoulettePoolSize, p.ID, len(p.RoulettePool))
		}
	}
}

func TestHostReassignedOnLeave(t *testing.T) {
	w, delivery := newTestWorld(t)
	host := addTestPlayer(w, "host")
	next := addTestPlayer(w, "next")

	w.removePlayer(host.ID)
	if w.HostID() != next.ID {
		t.Fatalf("expected host to pass to %d, got %d", next.ID, w.HostID())
	}
	if _, ok := delivery.lastOfTag(proto.TagHostChanged); !ok {
		t.Fatalf("expected a host change broadcast")
	}
}

func TestRemovePlayerIsIdempotent(t *testing.T) {
	w, _ := newTestWorld(t)
	p := addTestPlayer(w, "alice")
	w.removePlayer(p.ID)
	w.removePlayer(p.ID)
	if len(w.players) != 0 {
		t.Fatalf("expected empty roster, got %d", len(w.players))
	}
}

func TestEmptyRoomTriggersIdleShutdown(t *testing.T) {
	fired := false
	delivery := newRecordingDelivery()
	w := NewWorld("test-room", Deps{
		Delivery:       delivery,
		Seed:           1,
		OnIdleShutdown: func() { fired = true },
	})

	for i := 0.0; i < EmptyRoomTimeoutSec+1; i += 1.0 {
		w.advance(1.0)
	}
	if !fired {
		t.Fatalf("expected idle shutdown after %v seconds", EmptyRoomTimeoutSec)
	}
}

func TestRenameRoomHostOnly(t *testing.T) {
	w, delivery := newTestWorld(t)
	host := addTestPlayer(w, "host")
	guest := addTestPlayer(w, "guest")

	w.Apply(Command{ActorID: guest.ID, Type: CommandRenameRoom, Rename: &RenameRoomCommand{Name: "hijacked"}})
	if w.RoomName() != "test-room" {
		t.Fatalf("expected rename rejected for non-host, got %q", w.RoomName())
	}

	w.Apply(Command{ActorID: host.ID, Type: CommandRenameRoom, Rename: &RenameRoomCommand{Name: "saloon"}})
	if w.RoomName() != "saloon" {
		t.Fatalf("expected rename to apply, got %q", w.RoomName())
	}
	if _, ok := delivery.lastOfTag(proto.TagRoomRenamed); !ok {
		t.Fatalf("expected room renamed broadcast")
	}
}
