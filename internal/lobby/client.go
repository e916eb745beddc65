// Package lobby talks to the external matchmaking service: it validates
// session tokens on join and mirrors room lifecycle back out. When no
// lobby URL is configured the client runs in offline mode and mints local
// identities instead.
package lobby

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dartagnan/server/internal/sim"
	"dartagnan/server/internal/telemetry"
)

const (
	defaultRequestTimeout = 5 * time.Second
	reportTimeout         = 3 * time.Second
)

var (
	ErrInvalidSession = errors.New("lobby: invalid session")
	ErrUnavailable    = errors.New("lobby: service unavailable")
)

// Identity is the verified owner of a session token.
type Identity struct {
	ExternalID string
	Name       string
}

// Config selects the lobby endpoint. An empty BaseURL enables offline
// mode; Secret is then used to verify self-issued JWTs, if set.
type Config struct {
	BaseURL string
	RoomID  string
	Secret  string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger telemetry.Logger
}

func NewClient(cfg Config, logger telemetry.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Offline reports whether the client runs without a lobby service.
func (c *Client) Offline() bool { return c.cfg.BaseURL == "" }

// ValidateSession resolves a session token to a verified identity. It
// blocks the caller; run it from the connection goroutine, never from
// the simulation worker. Failures are fail-closed.
func (c *Client) ValidateSession(ctx context.Context, token string) (Identity, error) {
	if c.Offline() {
		return c.offlineIdentity(token)
	}

	body, err := json.Marshal(map[string]string{"token": token, "roomId": c.cfg.RoomID})
	if err != nil {
		return Identity{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/sessions/validate", bytes.NewReader(body))
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return Identity{}, ErrInvalidSession
	default:
		return Identity{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var payload struct {
		UserID   string `json:"userId"`
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if payload.UserID == "" {
		return Identity{}, ErrInvalidSession
	}
	return Identity{ExternalID: payload.UserID, Name: payload.Nickname}, nil
}

// offlineIdentity accepts a locally-issued JWT when a secret is set, and
// otherwise mints a throwaway identity so development clients can join
// with any token.
func (c *Client) offlineIdentity(token string) (Identity, error) {
	if c.cfg.Secret == "" || token == "" {
		return Identity{ExternalID: "local-" + uuid.NewString()}, nil
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(c.cfg.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidSession
	}
	sub, _ := claims["sub"].(string)
	if strings.TrimSpace(sub) == "" {
		return Identity{}, ErrInvalidSession
	}
	name, _ := claims["name"].(string)
	return Identity{ExternalID: sub, Name: name}, nil
}

// report fires a JSON POST in the background. Lobby outages must never
// stall the simulation, so errors are logged and dropped.
func (c *Client) report(path string, payload any) {
	if c.Offline() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()

		body, err := json.Marshal(payload)
		if err != nil {
			c.logger.Printf("lobby: encode %s report: %v", path, err)
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			c.logger.Printf("lobby: build %s report: %v", path, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.Secret != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Secret)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Printf("lobby: %s report failed: %v", path, err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			c.logger.Printf("lobby: %s report rejected: status %d", path, resp.StatusCode)
		}
	}()
}

// Reporter adapts the client to the simulation's reporting contract.
type Reporter struct {
	client *Client
}

var _ sim.Reporter = (*Reporter)(nil)

func NewReporter(client *Client) *Reporter { return &Reporter{client: client} }

func (r *Reporter) StateChanged(state string, playerCount int) {
	r.client.report("/rooms/state", map[string]any{
		"roomId":      r.client.cfg.RoomID,
		"state":       state,
		"playerCount": playerCount,
	})
}

func (r *Reporter) PlayerJoined(externalID, name string) {
	r.client.report("/rooms/players/joined", map[string]any{
		"roomId":   r.client.cfg.RoomID,
		"userId":   externalID,
		"nickname": name,
	})
}

func (r *Reporter) PlayerLeft(externalID string) {
	r.client.report("/rooms/players/left", map[string]any{
		"roomId": r.client.cfg.RoomID,
		"userId": externalID,
	})
}

func (r *Reporter) RoomRenamed(name string) {
	r.client.report("/rooms/rename", map[string]any{
		"roomId": r.client.cfg.RoomID,
		"name":   name,
	})
}

func (r *Reporter) Results(results []sim.GameResult) {
	rows := make([]map[string]any, 0, len(results))
	for _, res := range results {
		rows = append(rows, map[string]any{
			"userId": res.ExternalID,
			"rank":   res.Rank,
			"reward": res.Reward,
		})
	}
	r.client.report("/rooms/results", map[string]any{
		"roomId":  r.client.cfg.RoomID,
		"results": rows,
	})
}
