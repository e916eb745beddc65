package proto

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEncodeDecodeKeepsConcreteType(t *testing.T) {
	cases := []Message{
		JoinRequest{Token: "tok", Name: "alice"},
		Ping{ClientTime: 99},
		MoveState{X: 1.5, Y: 2.5, DirX: 1, Speed: 80},
		ShootRequest{TargetID: 3},
		ShootResult{ShooterID: 1, TargetID: 2, Hit: true, Loot: 50},
		InitialRoulette{Pool: []int{10, 20, 30}, Assigned: 20, Duration: 10},
		ShopStart{Offer: []ShopSlot{{Item: "armor", Price: 40}}, RoulettePrice: 30, Duration: 15},
		RankedResults{Entries: []RankEntry{{ID: 1, Name: "a", Rank: 1, Reward: 300}}},
		ChatBroadcast{SenderID: SystemSenderID, Text: "round over"},
		StateChanged{State: "Round"},
		Leave{},
	}
	for _, msg := range cases {
		data, err := Encode(msg)
		if err != nil {
			t.Fatalf("encode %s: %v", msg.Tag(), err)
		}
		decoded, err := Decode(data)
		if err != nil {
			t.Fatalf("decode %s: %v", msg.Tag(), err)
		}
		if decoded.Tag() != msg.Tag() {
			t.Fatalf("tag changed: %s -> %s", msg.Tag(), decoded.Tag())
		}
	}
}

func TestDecodePreservesPayloadFields(t *testing.T) {
	data, err := Encode(ShootResult{ShooterID: 7, TargetID: 9, Hit: true, Guarded: true, Loot: 123})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	result, ok := decoded.(ShootResult)
	if !ok {
		t.Fatalf("expected ShootResult, got %T", decoded)
	}
	if result.ShooterID != 7 || result.TargetID != 9 || !result.Guarded || result.Loot != 123 {
		t.Fatalf("fields lost in transit: %+v", result)
	}
}

func TestEncodeUsesTypeAndDataEnvelope(t *testing.T) {
	data, err := Encode(Ping{ClientTime: 5})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if string(raw["type"]) != `"ping"` {
		t.Fatalf("expected type field, got %s", raw["type"])
	}
	if _, ok := raw["data"]; !ok {
		t.Fatalf("expected data field in %s", data)
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	_, err := Decode([]byte(`{"type":"teleport","data":{}}`))
	if err == nil || !strings.Contains(err.Error(), "unknown message type") {
		t.Fatalf("expected unknown tag error, got %v", err)
	}
}

func TestDecodeRejectsMalformedEnvelope(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatalf("expected malformed envelope error")
	}
	if _, err := Decode([]byte(`{"type":"ping","data":"not-an-object"}`)); err == nil {
		t.Fatalf("expected malformed payload error")
	}
}

func TestDecodeAllowsMissingDataForEmptyPayloads(t *testing.T) {
	decoded, err := Decode([]byte(`{"type":"leave"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := decoded.(Leave); !ok {
		t.Fatalf("expected Leave, got %T", decoded)
	}
}
