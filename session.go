package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"dartagnan/server/internal/lobby"
	"dartagnan/server/internal/proto"
	"dartagnan/server/internal/sim"
	"dartagnan/server/internal/telemetry"
)

const (
	// outboundBacklog is how many queued messages a slow client may
	// accumulate before the session is dropped.
	outboundBacklog = 256

	joinHandshakeTimeout = 10 * time.Second

	sessionsAcceptedMetricKey = "sessions_accepted_total"
	sessionsDroppedMetricKey  = "sessions_dropped_slow_total"
	sessionsRejectedMetricKey = "sessions_rejected_total"
)

var (
	errExpectedJoin  = errors.New("first message must be a join request")
	errWrongPassword = errors.New("wrong room password")
	errSlowConsumer  = errors.New("outbound backlog full")
)

// transport abstracts one message-oriented connection so the session loop
// serves raw TCP frames and websocket messages identically.
type transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(payload []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
	RemoteAddr() string
}

// tcpTransport speaks the 4-byte little-endian length-prefixed framing.
type tcpTransport struct {
	conn net.Conn
}

func (t *tcpTransport) ReadMessage() ([]byte, error)      { return proto.ReadFrame(t.conn) }
func (t *tcpTransport) WriteMessage(payload []byte) error { return proto.WriteFrame(t.conn, payload) }
func (t *tcpTransport) SetReadDeadline(d time.Time) error { return t.conn.SetReadDeadline(d) }
func (t *tcpTransport) Close() error                      { return t.conn.Close() }
func (t *tcpTransport) RemoteAddr() string                { return t.conn.RemoteAddr().String() }

// SessionDeps are the collaborators one connection needs.
type SessionDeps struct {
	Config  Config
	Submit  func(sim.Command)
	Lobby   *lobby.Client
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

// session pumps one client connection: a read loop translating wire
// messages into commands, and a write loop draining the outbound queue.
type session struct {
	deps SessionDeps
	tr   transport

	id       int
	outbound chan proto.Message
	closed   chan struct{}
}

// ServeConn runs a framed TCP session to completion. It blocks until the
// connection ends, so callers spawn it per accepted connection.
func ServeConn(ctx context.Context, conn net.Conn, deps SessionDeps) {
	serveTransport(ctx, &tcpTransport{conn: conn}, deps)
}

func serveTransport(ctx context.Context, tr transport, deps SessionDeps) {
	if deps.Logger == nil {
		deps.Logger = telemetry.NopLogger()
	}
	s := &session{
		deps:     deps,
		tr:       tr,
		outbound: make(chan proto.Message, outboundBacklog),
		closed:   make(chan struct{}),
	}
	if deps.Metrics != nil {
		deps.Metrics.Add(sessionsAcceptedMetricKey, 1)
	}
	s.run(ctx)
}

func (s *session) run(ctx context.Context) {
	defer s.tr.Close()

	if err := s.handshake(ctx); err != nil {
		if s.deps.Metrics != nil {
			s.deps.Metrics.Add(sessionsRejectedMetricKey, 1)
		}
		s.deps.Logger.Printf("session %s rejected: %v", s.tr.RemoteAddr(), err)
		return
	}

	go s.writeLoop()
	defer close(s.closed)
	defer s.deps.Submit(sim.Command{ActorID: s.id, Type: sim.CommandRemove, IssuedAt: time.Now()})

	s.deps.Logger.Printf("session %s joined as player %d", s.tr.RemoteAddr(), s.id)
	s.readLoop()
}

// handshake requires a valid join request before anything touches the
// simulation: password check, then blocking token validation against the
// lobby, then admission through the command queue.
func (s *session) handshake(ctx context.Context) error {
	s.tr.SetReadDeadline(time.Now().Add(joinHandshakeTimeout))
	payload, err := s.tr.ReadMessage()
	if err != nil {
		return err
	}
	msg, err := proto.Decode(payload)
	if err != nil {
		return err
	}
	join, ok := msg.(proto.JoinRequest)
	if !ok {
		return errExpectedJoin
	}

	if s.deps.Config.RoomPassword != "" && join.Password != s.deps.Config.RoomPassword {
		return errWrongPassword
	}

	vctx, cancel := context.WithTimeout(ctx, joinHandshakeTimeout)
	defer cancel()
	identity, err := s.deps.Lobby.ValidateSession(vctx, join.Token)
	if err != nil {
		return err
	}
	name := join.Name
	if identity.Name != "" {
		name = identity.Name
	}

	admitted := make(chan int, 1)
	s.deps.Submit(sim.Command{
		Type:     sim.CommandJoin,
		IssuedAt: time.Now(),
		Join: &sim.JoinCommand{
			ExternalID: identity.ExternalID,
			Name:       name,
			Spectator:  join.Spectator,
			Deliver:    s.deliver,
			OnAdmitted: func(id int) { admitted <- id },
			Close:      func() { s.tr.Close() },
		},
	})

	select {
	case id := <-admitted:
		s.id = id
	case <-time.After(joinHandshakeTimeout):
		return fmt.Errorf("admission timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// deliver is invoked by the hub from the simulation worker. It must never
// block, so a full backlog closes the session instead.
func (s *session) deliver(msg proto.Message) {
	select {
	case s.outbound <- msg:
	default:
		if s.deps.Metrics != nil {
			s.deps.Metrics.Add(sessionsDroppedMetricKey, 1)
		}
		s.deps.Logger.Printf("session %s too slow, dropping: %v", s.tr.RemoteAddr(), errSlowConsumer)
		s.tr.Close()
	}
}

func (s *session) writeLoop() {
	for {
		select {
		case msg := <-s.outbound:
			payload, err := proto.Encode(msg)
			if err != nil {
				s.deps.Logger.Printf("session %s encode %s: %v", s.tr.RemoteAddr(), msg.Tag(), err)
				continue
			}
			if err := s.tr.WriteMessage(payload); err != nil {
				s.tr.Close()
				return
			}
		case <-s.closed:
			return
		}
	}
}

// readLoop translates inbound messages into queued commands until the
// connection dies or the client leaves.
func (s *session) readLoop() {
	for {
		s.tr.SetReadDeadline(time.Now().Add(sim.SessionTimeout))
		payload, err := s.tr.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.deps.Logger.Printf("session %s read: %v", s.tr.RemoteAddr(), err)
			}
			return
		}
		msg, err := proto.Decode(payload)
		if err != nil {
			s.deps.Logger.Printf("session %s dropped malformed message: %v", s.tr.RemoteAddr(), err)
			continue
		}
		if done := s.dispatch(msg); done {
			return
		}
	}
}

// dispatch maps one decoded client message onto the command queue. Pings
// are answered inline; they carry no simulation state.
func (s *session) dispatch(msg proto.Message) (done bool) {
	now := time.Now()
	switch m := msg.(type) {
	case proto.Ping:
		s.deliver(proto.Pong{ClientTime: m.ClientTime, ServerTime: now.UnixMilli()})
	case proto.Leave:
		return true
	case proto.MoveState:
		s.submit(sim.Command{Type: sim.CommandMove, Move: &sim.MoveCommand{
			X: m.X, Y: m.Y, DirX: m.DirX, DirY: m.DirY, Speed: m.Speed,
		}})
	case proto.ShootRequest:
		s.submit(sim.Command{Type: sim.CommandShoot, Shoot: &sim.ShootCommand{TargetID: m.TargetID}})
	case proto.AccuracyState:
		s.submit(sim.Command{Type: sim.CommandAccuracyState, Accuracy: &sim.AccuracyStateCommand{State: m.State}})
	case proto.StartGame:
		s.submit(sim.Command{Type: sim.CommandStartGame})
	case proto.BuyItem:
		s.submit(sim.Command{Type: sim.CommandBuyItem, Buy: &sim.BuyItemCommand{Slot: m.Slot}})
	case proto.ShopRouletteSpin:
		s.submit(sim.Command{Type: sim.CommandShopRoulette})
	case proto.RouletteDone:
		s.submit(sim.Command{Type: sim.CommandRouletteDone})
	case proto.MiningToggle:
		s.submit(sim.Command{Type: sim.CommandMining, Mining: &sim.MiningCommand{Active: m.Active}})
	case proto.Chat:
		s.submit(sim.Command{Type: sim.CommandChat, Chat: &sim.ChatCommand{Text: m.Text}})
	case proto.RenameRoom:
		s.submit(sim.Command{Type: sim.CommandRenameRoom, Rename: &sim.RenameRoomCommand{Name: m.Name}})
	default:
		s.deps.Logger.Printf("session %s sent server-only message %s, ignored", s.tr.RemoteAddr(), msg.Tag())
	}
	return false
}

func (s *session) submit(cmd sim.Command) {
	cmd.ActorID = s.id
	cmd.IssuedAt = time.Now()
	s.deps.Submit(cmd)
}
