package server

import (
	"os"
	"strconv"
	"time"
)

// Config collects the environment-driven settings of one room process.
type Config struct {
	// RoomName is the display name clients see; players with host rights
	// may rename it at runtime.
	RoomName string
	// RoomPassword guards joins when non-empty.
	RoomPassword string
	// RoomID identifies this room to the lobby service.
	RoomID string

	// ListenAddr is the raw TCP endpoint for framed connections.
	ListenAddr string
	// HTTPAddr serves the websocket endpoint and diagnostics.
	HTTPAddr string

	// LobbyURL is the matchmaking service base URL. Empty means offline
	// mode: tokens are verified locally instead.
	LobbyURL string
	// LobbySecret authenticates reports, and verifies offline tokens.
	LobbySecret string

	// Seed fixes the world RNG when non-zero, for reproducible rooms.
	Seed int64

	// ShutdownGrace bounds how long Stop waits for in-flight work.
	ShutdownGrace time.Duration
}

// ConfigFromEnv reads the process environment, falling back to development
// defaults.
func ConfigFromEnv() Config {
	return Config{
		RoomName:      envString("ROOM_NAME", "dartagnan"),
		RoomPassword:  envString("ROOM_PASSWORD", ""),
		RoomID:        envString("ROOM_ID", "local"),
		ListenAddr:    envString("LISTEN_ADDR", ":7777"),
		HTTPAddr:      envString("HTTP_ADDR", ":8080"),
		LobbyURL:      envString("LOBBY_URL", ""),
		LobbySecret:   envString("LOBBY_SECRET", ""),
		Seed:          envInt64("ROOM_SEED", 0),
		ShutdownGrace: envDuration("SHUTDOWN_GRACE", 5*time.Second),
	}
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
