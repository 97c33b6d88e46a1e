// Package rest is the HTTP client for the rendezvous server's room API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Glimpse/internal/core"
	"github.com/dkeye/Glimpse/internal/domain"
)

var _ core.Rendezvous = (*Client)(nil)

const defaultTimeout = 10 * time.Second

type Client struct {
	base string
	http *http.Client
}

// NewClient targets baseURL (e.g. http://localhost:9001). hc may be nil.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

type roomRequest struct {
	UserID    domain.UserID    `json:"userId"`
	Username  string           `json:"username,omitempty"`
	RoomID    domain.RoomID    `json:"roomId,omitempty"`
	RequestID domain.RequestID `json:"requestId,omitempty"`
	SDP       string           `json:"sdp,omitempty"`
	ICE       string           `json:"ice,omitempty"`
}

// APIError is a non-2xx answer; Message is the server's error text when present.
type APIError struct {
	Path    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Path, e.Status)
}

func (c *Client) CreateRoom(ctx context.Context, user domain.User) (domain.RoomID, error) {
	var resp struct {
		RoomID domain.RoomID `json:"roomId"`
	}
	if err := c.post(ctx, "/room", roomRequest{UserID: user.ID, Username: user.Username}, &resp); err != nil {
		return "", err
	}
	if resp.RoomID == "" {
		return "", fmt.Errorf("/room: empty roomId in response")
	}
	return resp.RoomID, nil
}

func (c *Client) JoinRoom(ctx context.Context, user domain.User, roomID domain.RoomID) (domain.RequestID, error) {
	var resp struct {
		RequestID domain.RequestID `json:"requestId"`
	}
	req := roomRequest{UserID: user.ID, Username: user.Username, RoomID: roomID}
	if err := c.post(ctx, "/room/join", req, &resp); err != nil {
		return "", err
	}
	if resp.RequestID == "" {
		return "", fmt.Errorf("/room/join: empty requestId in response")
	}
	return resp.RequestID, nil
}

func (c *Client) ApproveJoin(ctx context.Context, userID domain.UserID, requestID domain.RequestID) error {
	return c.post(ctx, "/room/join/approve", roomRequest{UserID: userID, RequestID: requestID}, nil)
}

func (c *Client) DenyJoin(ctx context.Context, userID domain.UserID, requestID domain.RequestID) error {
	return c.post(ctx, "/room/join/deny", roomRequest{UserID: userID, RequestID: requestID}, nil)
}

func (c *Client) ExchangeSDP(ctx context.Context, roomID domain.RoomID, userID domain.UserID, sdp string) error {
	return c.post(ctx, "/room/sdp", roomRequest{RoomID: roomID, UserID: userID, SDP: sdp}, nil)
}

func (c *Client) ExchangeICE(ctx context.Context, roomID domain.RoomID, userID domain.UserID, ice string) error {
	return c.post(ctx, "/room/ice", roomRequest{RoomID: roomID, UserID: userID, ICE: ice}, nil)
}

func (c *Client) EndRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	return c.post(ctx, "/room/end", roomRequest{RoomID: roomID, UserID: userID}, nil)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error().Err(err).Str("module", "rest").Str("path", path).Msg("request failed")
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Path: path, Status: resp.StatusCode}
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &e) == nil {
			apiErr.Message = e.Message
		}
		log.Warn().Str("module", "rest").Str("path", path).Int("status", resp.StatusCode).Str("message", apiErr.Message).Msg("api error")
		return apiErr
	}
	log.Debug().Str("module", "rest").Str("path", path).Int("status", resp.StatusCode).Msg("ok")
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}
