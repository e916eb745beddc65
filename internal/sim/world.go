package sim

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"dartagnan/server/internal/proto"
	"dartagnan/server/internal/telemetry"
	"dartagnan/server/logging"
)

// GameState enumerates the room lifecycle.
type GameState string

const (
	StateWaiting         GameState = "Waiting"
	StateInitialRoulette GameState = "InitialRoulette"
	StateRound           GameState = "Round"
	StateShop            GameState = "Shop"
)

// Delivery resolves entity IDs to live recipients. For bots the registered
// deliver func is an in-process handler instead of a socket write.
type Delivery interface {
	BroadcastToAll(msg proto.Message)
	BroadcastExcept(exceptID int, msg proto.Message)
	SendTo(id int, msg proto.Message)
	Register(id int, deliver func(proto.Message))
	Unregister(id int)
}

// GameResult is one row of the end-of-game report to the lobby.
type GameResult struct {
	ExternalID string
	Rank       int
	Reward     int
}

// Reporter mirrors room lifecycle into the external matchmaking service.
// Implementations must never propagate failures into the command path.
type Reporter interface {
	StateChanged(state string, playerCount int)
	PlayerJoined(externalID, name string)
	PlayerLeft(externalID string)
	RoomRenamed(name string)
	Results(results []GameResult)
}

// Deps carries the injected collaborators for a World instance.
type Deps struct {
	Delivery  Delivery
	Reporter  Reporter
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
	Seed      int64
	// Submit feeds a command back into the queue. Bots use it so their
	// actions travel the same path as human input.
	Submit func(Command)
	// OnIdleShutdown fires after the room has sat empty past the timeout.
	OnIdleShutdown func()
}

// World owns every entity and all game state. It is only ever touched by
// the queue worker; no field needs a lock.
type World struct {
	deps Deps
	rng  *rand.Rand
	grid *Grid

	roomName string

	state       GameState
	round       int
	elapsed     float64
	tick        uint64
	prizePool   int
	taxBase     int
	collections int

	bettingTimer  float64
	rouletteTimer float64
	shopTimer     float64
	emptyTimer    float64
	driftTimer    float64

	nextID     int
	players    map[int]*Player
	order      []int
	spectators map[int]*Spectator
	hostID     int
}

// NewWorld constructs an idle world in the Waiting state. Worlds are
// plain values owned by their scheduler; tests build as many as they like.
func NewWorld(roomName string, deps Deps) *World {
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	seed := deps.Seed
	if seed == 0 {
		seed = deps.Clock.Now().UnixNano()
	}
	return &World{
		deps:       deps,
		rng:        rand.New(rand.NewSource(seed)),
		grid:       NewDefaultGrid(),
		roomName:   roomName,
		state:      StateWaiting,
		taxBase:    BaseBet,
		players:    make(map[int]*Player),
		spectators: make(map[int]*Spectator),
	}
}

// State reports the current game state.
func (w *World) State() GameState { return w.state }

// Round reports the current round counter.
func (w *World) Round() int { return w.round }

// RoomName reports the display name.
func (w *World) RoomName() string { return w.roomName }

// HostID reports the current host, or 0 when the room has none.
func (w *World) HostID() int { return w.hostID }

// PrizePool reports the accumulated taxation pot.
func (w *World) PrizePool() int { return w.prizePool }

// Player looks up a participant by ID.
func (w *World) Player(id int) (*Player, bool) {
	p, ok := w.players[id]
	return p, ok
}

// PlayerByExternalID finds the live entity for an external identity.
func (w *World) PlayerByExternalID(externalID string) (*Player, bool) {
	for _, id := range w.order {
		if p := w.players[id]; p != nil && p.ExternalID == externalID {
			return p, true
		}
	}
	return nil, false
}

// orderedPlayers iterates in join order for deterministic behavior.
func (w *World) orderedPlayers() []*Player {
	out := make([]*Player, 0, len(w.order))
	for _, id := range w.order {
		if p, ok := w.players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (w *World) humanCount() int {
	n := 0
	for _, p := range w.players {
		if !p.IsBot() {
			n++
		}
	}
	return n
}

func (w *World) roster() []proto.PlayerSnapshot {
	players := w.orderedPlayers()
	out := make([]proto.PlayerSnapshot, 0, len(players))
	for _, p := range players {
		out = append(out, p.snapshot())
	}
	return out
}

func (w *World) broadcast(msg proto.Message) {
	if w.deps.Delivery != nil {
		w.deps.Delivery.BroadcastToAll(msg)
	}
}

func (w *World) broadcastExcept(id int, msg proto.Message) {
	if w.deps.Delivery != nil {
		w.deps.Delivery.BroadcastExcept(id, msg)
	}
}

func (w *World) sendTo(id int, msg proto.Message) {
	if w.deps.Delivery != nil {
		w.deps.Delivery.SendTo(id, msg)
	}
}

func (w *World) systemChat(text string) {
	w.broadcast(proto.ChatBroadcast{SenderID: proto.SystemSenderID, Text: text})
}

func (w *World) logf(format string, args ...any) {
	if w.deps.Logger != nil {
		w.deps.Logger.Printf(format, args...)
	}
}

func (w *World) publish(event logging.Event) {
	event.Tick = w.tick
	w.deps.Publisher.Publish(context.Background(), event)
}

func playerRef(p *Player) logging.EntityRef {
	kind := logging.EntityKindPlayer
	if p.IsBot() {
		kind = logging.EntityKindBot
	}
	return logging.EntityRef{ID: fmt.Sprintf("%d", p.ID), Kind: kind}
}

// admitPlayer creates the entity for a validated join. A prior session for
// the same external identity is evicted first, atomically within this
// command's execution window.
func (w *World) admitPlayer(cmd *JoinCommand) {
	if cmd == nil {
		return
	}
	if prior, ok := w.PlayerByExternalID(cmd.ExternalID); ok {
		w.logf("evicting duplicate session for identity %s (player %d)", cmd.ExternalID, prior.ID)
		w.removePlayer(prior.ID)
		if prior.closeSession != nil {
			prior.closeSession()
		}
	}

	if cmd.Spectator || w.state != StateWaiting {
		w.admitSpectator(cmd)
		return
	}
	if len(w.players) >= MaxPlayers {
		w.logf("room full, admitting %s as spectator", cmd.Name)
		w.admitSpectator(cmd)
		return
	}

	w.nextID++
	spawn := w.grid.spawnPoint(len(w.players))
	p := &Player{
		ID:            w.nextID,
		Name:          cmd.Name,
		ExternalID:    cmd.ExternalID,
		X:             spawn.X,
		Y:             spawn.Y,
		Accuracy:      (MinAccuracy + MaxAccuracy) / 2,
		Balance:       StartingBalance,
		NextDeduction: w.taxBase,
		Alive:         true,
		BankruptAt:    -1,
		closeSession:  cmd.Close,
	}
	p.Range = p.derivedRange()
	p.ReloadTotal = p.derivedReload()
	p.Speed = p.derivedSpeed()
	w.players[p.ID] = p
	w.order = append(w.order, p.ID)

	if w.deps.Delivery != nil && cmd.Deliver != nil {
		w.deps.Delivery.Register(p.ID, cmd.Deliver)
	}
	if cmd.OnAdmitted != nil {
		cmd.OnAdmitted(p.ID)
	}
	if w.hostID == 0 && !p.IsBot() {
		w.hostID = p.ID
		w.broadcast(proto.HostChanged{HostID: p.ID})
	}

	w.sendTo(p.ID, proto.JoinResponse{
		ID:       p.ID,
		RoomName: w.roomName,
		PingEach: PingInterval.Milliseconds(),
	})
	w.sendTo(p.ID, proto.WaitingStart{Players: w.roster(), HostID: w.hostID, RoomName: w.roomName})
	w.broadcastExcept(p.ID, proto.PlayerJoined{Player: p.snapshot()})

	w.emptyTimer = 0
	w.publish(logging.Event{
		Type:     "player_joined",
		Actor:    playerRef(p),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
	})
	if w.deps.Reporter != nil {
		w.deps.Reporter.PlayerJoined(p.ExternalID, p.Name)
	}
}

func (w *World) admitSpectator(cmd *JoinCommand) {
	w.nextID++
	s := &Spectator{ID: w.nextID, Name: cmd.Name, ExternalID: cmd.ExternalID}
	w.spectators[s.ID] = s
	if w.deps.Delivery != nil && cmd.Deliver != nil {
		w.deps.Delivery.Register(s.ID, cmd.Deliver)
	}
	if cmd.OnAdmitted != nil {
		cmd.OnAdmitted(s.ID)
	}
	w.sendTo(s.ID, proto.JoinResponse{
		ID:       s.ID,
		RoomName: w.roomName,
		PingEach: PingInterval.Milliseconds(),
	})
	w.sendTo(s.ID, proto.WaitingStart{Players: w.roster(), HostID: w.hostID, RoomName: w.roomName})
}

// removePlayer tears an entity down. It is idempotent: removal of an
// already-removed ID is a no-op, which keeps connection-loss races safe.
func (w *World) removePlayer(id int) {
	if s, ok := w.spectators[id]; ok {
		delete(w.spectators, id)
		if w.deps.Delivery != nil {
			w.deps.Delivery.Unregister(id)
		}
		if w.deps.Reporter != nil {
			w.deps.Reporter.PlayerLeft(s.ExternalID)
		}
		return
	}
	p, ok := w.players[id]
	if !ok {
		return
	}
	delete(w.players, id)
	for i, ordered := range w.order {
		if ordered == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	if w.deps.Delivery != nil {
		w.deps.Delivery.Unregister(id)
	}
	w.broadcast(proto.PlayerLeft{ID: id})
	if w.hostID == id {
		w.reassignHost()
	}
	w.publish(logging.Event{
		Type:     "player_left",
		Actor:    playerRef(p),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
	})
	if !p.IsBot() && w.deps.Reporter != nil {
		w.deps.Reporter.PlayerLeft(p.ExternalID)
	}
	w.checkRoundAndGameEnd()
}

// reassignHost promotes the next living non-bot player.
func (w *World) reassignHost() {
	w.hostID = 0
	for _, p := range w.orderedPlayers() {
		if !p.IsBot() && p.Alive {
			w.hostID = p.ID
			break
		}
	}
	if w.hostID == 0 {
		for _, p := range w.orderedPlayers() {
			if !p.IsBot() {
				w.hostID = p.ID
				break
			}
		}
	}
	if w.hostID != 0 {
		w.broadcast(proto.HostChanged{HostID: w.hostID})
	}
}

// pushDerivedStats rebroadcasts range/speed/reload/fury, but only the ones
// that moved past the epsilon guard since the last broadcast.
func (w *World) pushDerivedStats(p *Player) {
	r := p.derivedRange()
	if !nearlyEqual(r, p.sentRange) {
		p.sentRange = r
		p.Range = r
		w.broadcast(proto.RangeUpdate{ID: p.ID, Range: r})
	}
	speed := p.derivedSpeed()
	if !nearlyEqual(speed, p.sentSpeed) {
		p.sentSpeed = speed
		p.Speed = speed
		w.broadcast(proto.SpeedUpdate{ID: p.ID, Speed: speed})
	}
	reload := p.derivedReload()
	if !nearlyEqual(reload, p.sentReload) {
		p.sentReload = reload
		w.broadcast(proto.ReloadUpdate{ID: p.ID, Total: reload, Remaining: p.ReloadRemaining})
	}
	if p.Fury != p.sentFury {
		p.sentFury = p.Fury
		w.broadcast(proto.FuryUpdate{ID: p.ID, Fury: p.Fury})
	}
}

func (w *World) pushBalance(p *Player) {
	w.broadcast(proto.BalanceUpdate{ID: p.ID, Balance: p.Balance, NextDeduction: p.NextDeduction})
}

// newBot creates a filler participant with an AI driver attached and
// registers its in-process delivery handler.
func (w *World) newBot(slot int) *Player {
	w.nextID++
	spawn := w.grid.spawnPoint(len(w.players))
	bot := &Player{
		ID:            w.nextID,
		Name:          fmt.Sprintf("Gunner-%d", slot),
		ExternalID:    "bot-" + uuid.NewString(),
		X:             spawn.X,
		Y:             spawn.Y,
		Accuracy:      (MinAccuracy + MaxAccuracy) / 2,
		Balance:       StartingBalance,
		NextDeduction: w.taxBase,
		Alive:         true,
		BankruptAt:    -1,
	}
	bot.driver = newBotDriver(w, bot.ID)
	bot.Range = bot.derivedRange()
	bot.ReloadTotal = bot.derivedReload()
	bot.Speed = bot.derivedSpeed()
	w.players[bot.ID] = bot
	w.order = append(w.order, bot.ID)
	if w.deps.Delivery != nil {
		w.deps.Delivery.Register(bot.ID, bot.driver.handleMessage)
	}
	w.broadcast(proto.PlayerJoined{Player: bot.snapshot()})
	return bot
}

// purgeBots removes every AI participant, part of the Waiting reset.
func (w *World) purgeBots() {
	for _, p := range w.orderedPlayers() {
		if p.IsBot() {
			w.removePlayer(p.ID)
		}
	}
}

// PingInterval is the keepalive cadence shared with clients, derived from
// the session timeout.
const PingInterval = SessionTimeout / 3

// SessionTimeout disconnects sessions with no traffic.
const SessionTimeout = 15 * time.Second
