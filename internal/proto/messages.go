package proto

import (
	"encoding/json"
	"fmt"
)

// Version tracks the wire-protocol revision expected by clients.
const Version = 1

// SystemSenderID marks chat lines originating from the server itself.
const SystemSenderID = -1

// Tag identifies one concrete message type inside the closed union.
type Tag string

// Client message tags.
const (
	TagJoinRequest      Tag = "joinRequest"
	TagLeave            Tag = "leave"
	TagPing             Tag = "ping"
	TagMoveState        Tag = "moveState"
	TagShootRequest     Tag = "shootRequest"
	TagAccuracyState    Tag = "accuracyState"
	TagStartGame        Tag = "startGame"
	TagBuyItem          Tag = "buyItem"
	TagShopRouletteSpin Tag = "shopRouletteSpin"
	TagRouletteDone     Tag = "rouletteDone"
	TagMiningToggle     Tag = "miningToggle"
	TagChat             Tag = "chat"
	TagRenameRoom       Tag = "renameRoom"
)

// Server message tags.
const (
	TagJoinResponse       Tag = "joinResponse"
	TagPong               Tag = "pong"
	TagPlayerMoved        Tag = "playerMoved"
	TagShootResult        Tag = "shootResult"
	TagTargeting          Tag = "targeting"
	TagWaitingStart       Tag = "waitingStart"
	TagRoundStart         Tag = "roundStart"
	TagHostChanged        Tag = "hostChanged"
	TagRoundWinner        Tag = "roundWinner"
	TagGameWinner         Tag = "gameWinner"
	TagRankedResults      Tag = "rankedResults"
	TagAccuracyUpdate     Tag = "accuracyUpdate"
	TagRangeUpdate        Tag = "rangeUpdate"
	TagSpeedUpdate        Tag = "speedUpdate"
	TagReloadUpdate       Tag = "reloadUpdate"
	TagItemsUpdate        Tag = "itemsUpdate"
	TagFuryUpdate         Tag = "furyUpdate"
	TagBalanceUpdate      Tag = "balanceUpdate"
	TagPrizePoolUpdate    Tag = "prizePoolUpdate"
	TagInitialRoulette    Tag = "initialRoulette"
	TagShopStart          Tag = "shopStart"
	TagShopRouletteResult Tag = "shopRouletteResult"
	TagBuyResult          Tag = "buyResult"
	TagMiningState        Tag = "miningState"
	TagChatBroadcast      Tag = "chatBroadcast"
	TagRenameRoomResponse Tag = "renameRoomResponse"
	TagRoomRenamed        Tag = "roomRenamed"
	TagPlayerJoined       Tag = "playerJoined"
	TagPlayerLeft         Tag = "playerLeft"
	TagStateChanged       Tag = "stateChanged"
)

// Message is one member of the closed wire union.
type Message interface {
	Tag() Tag
}

type envelope struct {
	Type Tag             `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client → server payloads.

type JoinRequest struct {
	Token     string `json:"token"`
	Name      string `json:"name"`
	Password  string `json:"password,omitempty"`
	Spectator bool   `json:"spectator,omitempty"`
}

type Leave struct{}

type Ping struct {
	ClientTime int64 `json:"clientTime"`
}

type MoveState struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	DirX  float64 `json:"dirX"`
	DirY  float64 `json:"dirY"`
	Speed float64 `json:"speed"`
}

type ShootRequest struct {
	TargetID int `json:"targetId"`
}

// AccuracyState selects the aiming stance: -1 relaxes, 0 holds, +1 steadies.
type AccuracyState struct {
	State int `json:"state"`
}

type StartGame struct{}

type BuyItem struct {
	Slot int `json:"slot"`
}

type ShopRouletteSpin struct{}

type RouletteDone struct{}

type MiningToggle struct {
	Active bool `json:"active"`
}

type Chat struct {
	Text string `json:"text"`
}

type RenameRoom struct {
	Name string `json:"name"`
}

// Server → client payloads.

type PlayerSnapshot struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Accuracy int      `json:"accuracy"`
	Range    float64  `json:"range"`
	Speed    float64  `json:"speed"`
	Balance  int      `json:"balance"`
	Alive    bool     `json:"alive"`
	Bankrupt bool     `json:"bankrupt"`
	Fury     bool     `json:"fury"`
	Items    []string `json:"items,omitempty"`
	Bot      bool     `json:"bot,omitempty"`
}

type JoinResponse struct {
	ID       int    `json:"id"`
	RoomName string `json:"roomName"`
	PingEach int64  `json:"pingEachMillis"`
}

type Pong struct {
	ClientTime int64 `json:"clientTime"`
	ServerTime int64 `json:"serverTime"`
}

type PlayerMoved struct {
	ID    int     `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	DirX  float64 `json:"dirX"`
	DirY  float64 `json:"dirY"`
	Speed float64 `json:"speed"`
}

type ShootResult struct {
	ShooterID int  `json:"shooterId"`
	TargetID  int  `json:"targetId"`
	Hit       bool `json:"hit"`
	Guarded   bool `json:"guarded"`
	Loot      int  `json:"loot,omitempty"`
}

type Targeting struct {
	ShooterID int `json:"shooterId"`
	TargetID  int `json:"targetId"`
}

type WaitingStart struct {
	Players  []PlayerSnapshot `json:"players"`
	HostID   int              `json:"hostId"`
	RoomName string           `json:"roomName"`
}

type RoundStart struct {
	Round   int              `json:"round"`
	Players []PlayerSnapshot `json:"players"`
}

type HostChanged struct {
	HostID int `json:"hostId"`
}

type RoundWinner struct {
	WinnerIDs []int `json:"winnerIds"`
	Share     int   `json:"share"`
}

type GameWinner struct {
	WinnerID int `json:"winnerId"`
}

type RankEntry struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Rank   int    `json:"rank"`
	Reward int    `json:"reward"`
}

type RankedResults struct {
	Entries []RankEntry `json:"entries"`
}

type AccuracyUpdate struct {
	ID       int `json:"id"`
	Accuracy int `json:"accuracy"`
}

type RangeUpdate struct {
	ID    int     `json:"id"`
	Range float64 `json:"range"`
}

type SpeedUpdate struct {
	ID    int     `json:"id"`
	Speed float64 `json:"speed"`
}

type ReloadUpdate struct {
	ID        int     `json:"id"`
	Total     float64 `json:"total"`
	Remaining float64 `json:"remaining"`
}

type ItemsUpdate struct {
	ID    int      `json:"id"`
	Items []string `json:"items"`
}

type FuryUpdate struct {
	ID   int  `json:"id"`
	Fury bool `json:"fury"`
}

type BalanceUpdate struct {
	ID            int `json:"id"`
	Balance       int `json:"balance"`
	NextDeduction int `json:"nextDeduction"`
}

type PrizePoolUpdate struct {
	Total int `json:"total"`
}

type InitialRoulette struct {
	Pool     []int   `json:"pool"`
	Assigned int     `json:"assigned"`
	Duration float64 `json:"duration"`
}

type ShopSlot struct {
	Item  string `json:"item"`
	Price int    `json:"price"`
}

type ShopStart struct {
	Offer         []ShopSlot `json:"offer"`
	RoulettePrice int        `json:"roulettePrice"`
	Duration      float64    `json:"duration"`
	Bankrupt      bool       `json:"bankrupt"`
}

type ShopRouletteResult struct {
	OK       bool `json:"ok"`
	Accuracy int  `json:"accuracy"`
}

type BuyResult struct {
	OK   bool   `json:"ok"`
	Slot int    `json:"slot"`
	Item string `json:"item,omitempty"`
}

type MiningState struct {
	ID     int  `json:"id"`
	Active bool `json:"active"`
}

type ChatBroadcast struct {
	SenderID int    `json:"senderId"`
	Name     string `json:"name,omitempty"`
	Text     string `json:"text"`
}

type RenameRoomResponse struct {
	OK   bool   `json:"ok"`
	Name string `json:"name"`
}

type RoomRenamed struct {
	Name string `json:"name"`
}

type PlayerJoined struct {
	Player PlayerSnapshot `json:"player"`
}

type PlayerLeft struct {
	ID int `json:"id"`
}

type StateChanged struct {
	State string `json:"state"`
}

func (JoinRequest) Tag() Tag        { return TagJoinRequest }
func (Leave) Tag() Tag              { return TagLeave }
func (Ping) Tag() Tag               { return TagPing }
func (MoveState) Tag() Tag          { return TagMoveState }
func (ShootRequest) Tag() Tag       { return TagShootRequest }
func (AccuracyState) Tag() Tag      { return TagAccuracyState }
func (StartGame) Tag() Tag          { return TagStartGame }
func (BuyItem) Tag() Tag            { return TagBuyItem }
func (ShopRouletteSpin) Tag() Tag   { return TagShopRouletteSpin }
func (RouletteDone) Tag() Tag       { return TagRouletteDone }
func (MiningToggle) Tag() Tag       { return TagMiningToggle }
func (Chat) Tag() Tag               { return TagChat }
func (RenameRoom) Tag() Tag         { return TagRenameRoom }
func (JoinResponse) Tag() Tag       { return TagJoinResponse }
func (Pong) Tag() Tag               { return TagPong }
func (PlayerMoved) Tag() Tag        { return TagPlayerMoved }
func (ShootResult) Tag() Tag        { return TagShootResult }
func (Targeting) Tag() Tag          { return TagTargeting }
func (WaitingStart) Tag() Tag       { return TagWaitingStart }
func (RoundStart) Tag() Tag         { return TagRoundStart }
func (HostChanged) Tag() Tag        { return TagHostChanged }
func (RoundWinner) Tag() Tag        { return TagRoundWinner }
func (GameWinner) Tag() Tag         { return TagGameWinner }
func (RankedResults) Tag() Tag      { return TagRankedResults }
func (AccuracyUpdate) Tag() Tag     { return TagAccuracyUpdate }
func (RangeUpdate) Tag() Tag        { return TagRangeUpdate }
func (SpeedUpdate) Tag() Tag        { return TagSpeedUpdate }
func (ReloadUpdate) Tag() Tag       { return TagReloadUpdate }
func (ItemsUpdate) Tag() Tag        { return TagItemsUpdate }
func (FuryUpdate) Tag() Tag         { return TagFuryUpdate }
func (BalanceUpdate) Tag() Tag      { return TagBalanceUpdate }
func (PrizePoolUpdate) Tag() Tag    { return TagPrizePoolUpdate }
func (InitialRoulette) Tag() Tag    { return TagInitialRoulette }
func (ShopStart) Tag() Tag          { return TagShopStart }
func (ShopRouletteResult) Tag() Tag { return TagShopRouletteResult }
func (BuyResult) Tag() Tag          { return TagBuyResult }
func (MiningState) Tag() Tag        { return TagMiningState }
func (ChatBroadcast) Tag() Tag      { return TagChatBroadcast }
func (RenameRoomResponse) Tag() Tag { return TagRenameRoomResponse }
func (RoomRenamed) Tag() Tag        { return TagRoomRenamed }
func (PlayerJoined) Tag() Tag       { return TagPlayerJoined }
func (PlayerLeft) Tag() Tag         { return TagPlayerLeft }
func (StateChanged) Tag() Tag       { return TagStateChanged }

// Encode renders a message as a tagged JSON envelope.
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("proto: nil message")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: msg.Tag(), Data: data})
}

// Decode parses a tagged envelope into its concrete message. Unknown tags
// are an error so the union stays closed.
func Decode(payload []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("proto: malformed envelope: %w", err)
	}
	msg, ok := blankMessage(env.Type)
	if !ok {
		return nil, fmt.Errorf("proto: unknown message type %q", env.Type)
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, msg); err != nil {
			return nil, fmt.Errorf("proto: malformed %s payload: %w", env.Type, err)
		}
	}
	return deref(msg), nil
}

func blankMessage(tag Tag) (any, bool) {
	switch tag {
	case TagJoinRequest:
		return &JoinRequest{}, true
	case TagLeave:
		return &Leave{}, true
	case TagPing:
		return &Ping{}, true
	case TagMoveState:
		return &MoveState{}, true
	case TagShootRequest:
		return &ShootRequest{}, true
	case TagAccuracyState:
		return &AccuracyState{}, true
	case TagStartGame:
		return &StartGame{}, true
	case TagBuyItem:
		return &BuyItem{}, true
	case TagShopRouletteSpin:
		return &ShopRouletteSpin{}, true
	case TagRouletteDone:
		return &RouletteDone{}, true
	case TagMiningToggle:
		return &MiningToggle{}, true
	case TagChat:
		return &Chat{}, true
	case TagRenameRoom:
		return &RenameRoom{}, true
	case TagJoinResponse:
		return &JoinResponse{}, true
	case TagPong:
		return &Pong{}, true
	case TagPlayerMoved:
		return &PlayerMoved{}, true
	case TagShootResult:
		return &ShootResult{}, true
	case TagTargeting:
		return &Targeting{}, true
	case TagWaitingStart:
		return &WaitingStart{}, true
	case TagRoundStart:
		return &RoundStart{}, true
	case TagHostChanged:
		return &HostChanged{}, true
	case TagRoundWinner:
		return &RoundWinner{}, true
	case TagGameWinner:
		return &GameWinner{}, true
	case TagRankedResults:
		return &RankedResults{}, true
	case TagAccuracyUpdate:
		return &AccuracyUpdate{}, true
	case TagRangeUpdate:
		return &RangeUpdate{}, true
	case TagSpeedUpdate:
		return &SpeedUpdate{}, true
	case TagReloadUpdate:
		return &ReloadUpdate{}, true
	case TagItemsUpdate:
		return &ItemsUpdate{}, true
	case TagFuryUpdate:
		return &FuryUpdate{}, true
	case TagBalanceUpdate:
		return &BalanceUpdate{}, true
	case TagPrizePoolUpdate:
		return &PrizePoolUpdate{}, true
	case TagInitialRoulette:
		return &InitialRoulette{}, true
	case TagShopStart:
		return &ShopStart{}, true
	case TagShopRouletteResult:
		return &ShopRouletteResult{}, true
	case TagBuyResult:
		return &BuyResult{}, true
	case TagMiningState:
		return &MiningState{}, true
	case TagChatBroadcast:
		return &ChatBroadcast{}, true
	case TagRenameRoomResponse:
		return &RenameRoomResponse{}, true
	case TagRoomRenamed:
		return &RoomRenamed{}, true
	case TagPlayerJoined:
		return &PlayerJoined{}, true
	case TagPlayerLeft:
		return &PlayerLeft{}, true
	case TagStateChanged:
		return &StateChanged{}, true
	default:
		return nil, false
	}
}

func deref(msg any) Message {
	switch m := msg.(type) {
	case *JoinRequest:
		return *m
	case *Leave:
		return *m
	case *Ping:
		return *m
	case *MoveState:
		return *m
	case *ShootRequest:
		return *m
	case *AccuracyState:
		return *m
	case *StartGame:
		return *m
	case *BuyItem:
		return *m
	case *ShopRouletteSpin:
		return *m
	case *RouletteDone:
		return *m
	case *MiningToggle:
		return *m
	case *Chat:
		return *m
	case *RenameRoom:
		return *m
	case *JoinResponse:
		return *m
	case *Pong:
		return *m
	case *PlayerMoved:
		return *m
	case *ShootResult:
		return *m
	case *Targeting:
		return *m
	case *WaitingStart:
		return *m
	case *RoundStart:
		return *m
	case *HostChanged:
		return *m
	case *RoundWinner:
		return *m
	case *GameWinner:
		return *m
	case *RankedResults:
		return *m
	case *AccuracyUpdate:
		return *m
	case *RangeUpdate:
		return *m
	case *SpeedUpdate:
		return *m
	case *ReloadUpdate:
		return *m
	case *ItemsUpdate:
		return *m
	case *FuryUpdate:
		return *m
	case *BalanceUpdate:
		return *m
	case *PrizePoolUpdate:
		return *m
	case *InitialRoulette:
		return *m
	case *ShopStart:
		return *m
	case *ShopRouletteResult:
		return *m
	case *BuyResult:
		return *m
	case *MiningState:
		return *m
	case *ChatBroadcast:
		return *m
	case *RenameRoomResponse:
		return *m
	case *RoomRenamed:
		return *m
	case *PlayerLeft:
		return *m
	case *PlayerJoined:
		return *m
	case *StateChanged:
		return *m
	default:
		return nil
	}
}
