package sim

import (
	"math"
	"strings"

	"dartagnan/server/internal/proto"
)

// Apply executes one command against the world. Only the queue worker may
// call this; handlers assume exclusive access for their whole execution.
func (w *World) Apply(cmd Command) {
	switch cmd.Type {
	case CommandJoin:
		w.admitPlayer(cmd.Join)
	case CommandRemove:
		w.removePlayer(cmd.ActorID)
	case CommandMove:
		w.handleMove(cmd.ActorID, cmd.Move)
	case CommandShoot:
		w.handleShoot(cmd.ActorID, cmd.Shoot)
	case CommandAccuracyState:
		w.handleAccuracyState(cmd.ActorID, cmd.Accuracy)
	case CommandStartGame:
		w.handleStartGame(cmd.ActorID)
	case CommandBuyItem:
		w.handleBuyItem(cmd.ActorID, cmd.Buy)
	case CommandShopRoulette:
		w.handleShopRoulette(cmd.ActorID)
	case CommandRouletteDone:
		w.handleRouletteDone(cmd.ActorID)
	case CommandMining:
		w.handleMining(cmd.ActorID, cmd.Mining)
	case CommandChat:
		w.handleChat(cmd.ActorID, cmd.Chat)
	case CommandRenameRoom:
		w.handleRenameRoom(cmd.ActorID, cmd.Rename)
	case CommandAdminKill:
		w.handleAdminKill(cmd.ActorID)
	case CommandTick:
		if cmd.Tick != nil {
			w.advance(cmd.Tick.Delta)
		}
	default:
		w.logf("dropping unknown command type %q", cmd.Type)
	}
}

// handleMove applies the client-authoritative transform and rebroadcasts
// it to everyone else.
func (w *World) handleMove(actorID int, move *MoveCommand) {
	if move == nil {
		return
	}
	p, ok := w.players[actorID]
	if !ok || !p.Alive {
		return
	}
	p.X = clampFloat(move.X, playerHalf, WorldWidth-playerHalf)
	p.Y = clampFloat(move.Y, playerHalf, WorldHeight-playerHalf)
	if length := math.Hypot(move.DirX, move.DirY); length > 1 {
		move.DirX /= length
		move.DirY /= length
	}
	p.DirX = move.DirX
	p.DirY = move.DirY
	p.Speed = clampFloat(move.Speed, 0, p.derivedSpeed())
	w.broadcastExcept(actorID, proto.PlayerMoved{
		ID: actorID, X: p.X, Y: p.Y, DirX: p.DirX, DirY: p.DirY, Speed: p.Speed,
	})
}

// handleAccuracyState switches the aiming stance. Out-of-range values are
// silently rejected with a log line.
func (w *World) handleAccuracyState(actorID int, accuracy *AccuracyStateCommand) {
	if accuracy == nil {
		return
	}
	if accuracy.State < -1 || accuracy.State > 1 {
		w.logf("player %d sent invalid accuracy state %d", actorID, accuracy.State)
		return
	}
	p, ok := w.players[actorID]
	if !ok || !p.Alive {
		return
	}
	p.accuracyState = accuracy.State
}

// handleStartGame begins a game. Only the host may start, and only from
// the Waiting state; anything else is a silent no-op.
func (w *World) handleStartGame(actorID int) {
	if w.state != StateWaiting {
		w.logf("start request from %d ignored outside Waiting", actorID)
		return
	}
	if actorID != w.hostID {
		w.logf("start request from non-host %d ignored", actorID)
		return
	}
	if len(w.players) == 0 {
		return
	}
	w.enterInitialRoulette()
}

func (w *World) handleRouletteDone(actorID int) {
	if w.state != StateInitialRoulette {
		return
	}
	p, ok := w.players[actorID]
	if !ok || p.RouletteAcked {
		return
	}
	p.RouletteAcked = true
	if w.allRouletteAcked() {
		w.enterRound()
	}
}

func (w *World) handleMining(actorID int, mining *MiningCommand) {
	if mining == nil || w.state != StateRound {
		return
	}
	p, ok := w.players[actorID]
	if !ok || !p.Alive {
		return
	}
	if p.Mining == mining.Active {
		return
	}
	p.Mining = mining.Active
	p.MiningRemain = MiningDurationSec
	w.broadcast(proto.MiningState{ID: actorID, Active: p.Mining})
}

func (w *World) handleChat(actorID int, chat *ChatCommand) {
	if chat == nil {
		return
	}
	text := strings.TrimSpace(chat.Text)
	if text == "" {
		return
	}
	name := ""
	if p, ok := w.players[actorID]; ok {
		name = p.Name
	} else if s, ok := w.spectators[actorID]; ok {
		name = s.Name
	} else {
		return
	}
	w.broadcast(proto.ChatBroadcast{SenderID: actorID, Name: name, Text: text})
}

// handleRenameRoom is one of the few request/response pairs: the caller
// always receives an explicit ok or error.
func (w *World) handleRenameRoom(actorID int, rename *RenameRoomCommand) {
	if rename == nil {
		return
	}
	name := strings.TrimSpace(rename.Name)
	if actorID != w.hostID || name == "" || len(name) > 48 {
		w.sendTo(actorID, proto.RenameRoomResponse{OK: false, Name: w.roomName})
		return
	}
	w.roomName = name
	w.sendTo(actorID, proto.RenameRoomResponse{OK: true, Name: name})
	w.broadcast(proto.RoomRenamed{Name: name})
	if w.deps.Reporter != nil {
		w.deps.Reporter.RoomRenamed(name)
	}
}

// handleAdminKill is an operator action: the target dies with no payout.
func (w *World) handleAdminKill(actorID int) {
	p, ok := w.players[actorID]
	if !ok || !p.Alive {
		return
	}
	p.Alive = false
	p.Mining = false
	w.broadcast(proto.ShootResult{ShooterID: proto.SystemSenderID, TargetID: actorID, Hit: true})
	w.systemChat(p.Name + " was removed by the operator")
	w.checkRoundAndGameEnd()
}
