package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"dartagnan/server/internal/lobby"
	"dartagnan/server/internal/proto"
	"dartagnan/server/internal/sim"
)

type commandRecorder struct {
	mu      sync.Mutex
	cmds    []sim.Command
	deliver func(proto.Message)
	close   func()
}

func (r *commandRecorder) submit(cmd sim.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cmd.Type == sim.CommandJoin && cmd.Join != nil {
		r.deliver = cmd.Join.Deliver
		r.close = cmd.Join.Close
		if cmd.Join.OnAdmitted != nil {
			cmd.Join.OnAdmitted(42)
		}
		return
	}
	r.cmds = append(r.cmds, cmd)
}

func (r *commandRecorder) wait(t *testing.T, match func(sim.Command) bool) sim.Command {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		for _, cmd := range r.cmds {
			if match(cmd) {
				r.mu.Unlock()
				return cmd
			}
		}
		r.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for command")
	return sim.Command{}
}

func writeClientMessage(t *testing.T, conn net.Conn, msg proto.Message) {
	t.Helper()
	payload, err := proto.Encode(msg)
	if err != nil {
		t.Fatalf("encode %s: %v", msg.Tag(), err)
	}
	if err := proto.WriteFrame(conn, payload); err != nil {
		t.Fatalf("write %s: %v", msg.Tag(), err)
	}
}

func readServerMessage(t *testing.T, conn net.Conn) proto.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	payload, err := proto.ReadFrame(conn)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	msg, err := proto.Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func startTestSession(t *testing.T, cfg Config) (net.Conn, *commandRecorder) {
	t.Helper()
	client, serverSide := net.Pipe()
	t.Cleanup(func() { client.Close() })

	rec := &commandRecorder{}
	deps := SessionDeps{
		Config: cfg,
		Submit: rec.submit,
		Lobby:  lobby.NewClient(lobby.Config{}, nil),
	}
	go ServeConn(context.Background(), serverSide, deps)
	return client, rec
}

func TestSessionJoinThenCommands(t *testing.T) {
	client, rec := startTestSession(t, Config{})

	writeClientMessage(t, client, proto.JoinRequest{Token: "anything", Name: "alice"})

	// The join must have landed before further traffic maps to an actor.
	time.Sleep(20 * time.Millisecond)

	writeClientMessage(t, client, proto.MoveState{X: 100, Y: 200, Speed: 80})
	move := rec.wait(t, func(cmd sim.Command) bool { return cmd.Type == sim.CommandMove })
	if move.ActorID != 42 {
		t.Fatalf("expected commands tagged with admitted id 42, got %d", move.ActorID)
	}
	if move.Move == nil || move.Move.X != 100 {
		t.Fatalf("unexpected move payload %+v", move.Move)
	}

	writeClientMessage(t, client, proto.ShootRequest{TargetID: 7})
	shoot := rec.wait(t, func(cmd sim.Command) bool { return cmd.Type == sim.CommandShoot })
	if shoot.Shoot.TargetID != 7 {
		t.Fatalf("unexpected shoot payload %+v", shoot.Shoot)
	}
}

func TestSessionAnswersPingInline(t *testing.T) {
	client, rec := startTestSession(t, Config{})
	writeClientMessage(t, client, proto.JoinRequest{Token: "t", Name: "alice"})

	writeClientMessage(t, client, proto.Ping{ClientTime: 12345})
	msg := readServerMessage(t, client)
	pong, ok := msg.(proto.Pong)
	if !ok {
		t.Fatalf("expected pong, got %T", msg)
	}
	if pong.ClientTime != 12345 {
		t.Fatalf("expected echoed client time, got %d", pong.ClientTime)
	}

	rec.mu.Lock()
	for _, cmd := range rec.cmds {
		if cmd.Type != sim.CommandRemove {
			t.Fatalf("expected no simulation commands from ping, got %s", cmd.Type)
		}
	}
	rec.mu.Unlock()
}

func TestSessionLeaveSubmitsRemove(t *testing.T) {
	client, rec := startTestSession(t, Config{})
	writeClientMessage(t, client, proto.JoinRequest{Token: "t", Name: "alice"})
	time.Sleep(20 * time.Millisecond)

	writeClientMessage(t, client, proto.Leave{})
	remove := rec.wait(t, func(cmd sim.Command) bool { return cmd.Type == sim.CommandRemove })
	if remove.ActorID != 42 {
		t.Fatalf("expected removal for actor 42, got %d", remove.ActorID)
	}
}

func TestSessionDisconnectSubmitsRemove(t *testing.T) {
	client, rec := startTestSession(t, Config{})
	writeClientMessage(t, client, proto.JoinRequest{Token: "t", Name: "alice"})
	time.Sleep(20 * time.Millisecond)

	client.Close()
	rec.wait(t, func(cmd sim.Command) bool { return cmd.Type == sim.CommandRemove })
}

func TestSessionRejectsWrongPassword(t *testing.T) {
	client, rec := startTestSession(t, Config{RoomPassword: "secret"})
	writeClientMessage(t, client, proto.JoinRequest{Token: "t", Name: "alice", Password: "wrong"})

	// The server closes the pipe without admitting anyone.
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := proto.ReadFrame(client); err == nil {
		t.Fatalf("expected connection closed on bad password")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deliver != nil || len(rec.cmds) != 0 {
		t.Fatalf("expected no commands submitted for rejected join")
	}
}

func TestSessionRejectsNonJoinFirstMessage(t *testing.T) {
	client, rec := startTestSession(t, Config{})
	writeClientMessage(t, client, proto.Ping{ClientTime: 1})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := proto.ReadFrame(client); err == nil {
		t.Fatalf("expected connection closed when first message is not a join")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.deliver != nil {
		t.Fatalf("expected no admission without a join request")
	}
}

func TestSessionCloseEndsConnection(t *testing.T) {
	client, rec := startTestSession(t, Config{})
	writeClientMessage(t, client, proto.JoinRequest{Token: "t", Name: "alice"})
	time.Sleep(20 * time.Millisecond)

	rec.mu.Lock()
	closeSession := rec.close
	rec.mu.Unlock()
	if closeSession == nil {
		t.Fatalf("expected join to carry a close func")
	}

	// Eviction invokes this; the old connection must die.
	closeSession()
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := proto.ReadFrame(client); err == nil {
		t.Fatalf("expected read failure after the session was closed")
	}
	rec.wait(t, func(cmd sim.Command) bool { return cmd.Type == sim.CommandRemove })
}

func TestSessionDeliverWritesFrames(t *testing.T) {
	client, rec := startTestSession(t, Config{})
	writeClientMessage(t, client, proto.JoinRequest{Token: "t", Name: "alice"})
	time.Sleep(20 * time.Millisecond)

	rec.mu.Lock()
	deliver := rec.deliver
	rec.mu.Unlock()
	if deliver == nil {
		t.Fatalf("expected join to capture a deliver func")
	}

	deliver(proto.StateChanged{State: "Round"})
	msg := readServerMessage(t, client)
	state, ok := msg.(proto.StateChanged)
	if !ok || state.State != "Round" {
		t.Fatalf("expected delivered state change, got %#v", msg)
	}
}
