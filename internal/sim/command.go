package sim

import (
	"time"

	"dartagnan/server/internal/proto"
)

// CommandType enumerates the supported world mutations.
type CommandType string

const (
	CommandJoin          CommandType = "Join"
	CommandRemove        CommandType = "Remove"
	CommandMove          CommandType = "Move"
	CommandShoot         CommandType = "Shoot"
	CommandAccuracyState CommandType = "AccuracyState"
	CommandStartGame     CommandType = "StartGame"
	CommandBuyItem       CommandType = "BuyItem"
	CommandShopRoulette  CommandType = "ShopRoulette"
	CommandRouletteDone  CommandType = "RouletteDone"
	CommandMining        CommandType = "Mining"
	CommandChat          CommandType = "Chat"
	CommandRenameRoom    CommandType = "RenameRoom"
	CommandAdminKill     CommandType = "AdminKill"
	CommandTick          CommandType = "Tick"
)

// JoinCommand admits a validated participant. Deliver is how broadcasts
// reach the new session; OnAdmitted hands the assigned ID back to the
// connection goroutine; Close terminates the session's transport when the
// entity is evicted by a duplicate login.
type JoinCommand struct {
	ExternalID string
	Name       string
	Spectator  bool
	Deliver    func(proto.Message)
	OnAdmitted func(id int)
	Close      func()
}

// MoveCommand carries the client-authoritative transform.
type MoveCommand struct {
	X, Y       float64
	DirX, DirY float64
	Speed      float64
}

type ShootCommand struct {
	TargetID int
}

// AccuracyStateCommand selects the aiming stance: -1, 0 or +1.
type AccuracyStateCommand struct {
	State int
}

type BuyItemCommand struct {
	Slot int
}

type MiningCommand struct {
	Active bool
}

type ChatCommand struct {
	Text string
}

type RenameRoomCommand struct {
	Name string
}

type TickCommand struct {
	Delta float64
}

// Command represents a discrete, queued world mutation. Exactly one payload
// pointer matching Type is set.
type Command struct {
	ActorID  int
	Type     CommandType
	IssuedAt time.Time

	Join     *JoinCommand
	Move     *MoveCommand
	Shoot    *ShootCommand
	Accuracy *AccuracyStateCommand
	Buy      *BuyItemCommand
	Mining   *MiningCommand
	Chat     *ChatCommand
	Rename   *RenameRoomCommand
	Tick     *TickCommand
}
