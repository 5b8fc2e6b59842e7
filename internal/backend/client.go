package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/fog-access-core/internal/access"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/config"
)

const (
	defaultRequestTimeout = 10 * time.Second

	// maxResponseBytes caps how much of a backend response is read.
	maxResponseBytes = 8 << 20
)

// Card is one RFID card as the backend reports it.
type Card struct {
	ID        access.FlexString `json:"id"`
	RoomID    access.FlexString `json:"roomId"`
	UID       string            `json:"uId"`
	GuestID   access.FlexString `json:"guestId"`
	BookingID access.FlexString `json:"bookingId"`
}

// Grant converts the card to a locally cacheable grant. Backend cards
// without a guest or booking are attributed to the card itself.
func (c Card) Grant() access.Grant {
	g := access.Grant{
		RoomID:    c.RoomID.String(),
		HolderID:  c.GuestID.String(),
		BookingID: c.BookingID.String(),
		UID:       c.UID,
		Source:    access.SourceBackendSync,
	}
	if g.HolderID == "" {
		g.HolderID = "card-" + c.ID.String()
	}
	if g.BookingID == "" {
		g.BookingID = "card-" + c.ID.String()
	}
	return g
}

// Client talks to the hotel backend REST API.
type Client struct {
	baseURL    string
	hotelID    string
	email      string
	password   string
	roleID     int
	httpClient *http.Client
}

// NewClient creates a Client from cfg. It returns ErrDisabled when the
// backend is turned off.
func NewClient(cfg config.BackendConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	timeout := cfg.GetRequestTimeout()
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		hotelID:    cfg.HotelID,
		email:      cfg.Email,
		password:   cfg.Password,
		roleID:     cfg.RoleID,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// HotelID returns the hotel whose cards this client fetches.
func (c *Client) HotelID() string {
	return c.hotelID
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   int    `json:"roleId"`
}

type signInResponse struct {
	Token string `json:"token"`
}

// SignIn authenticates the node's service account and returns a bearer
// token.
func (c *Client) SignIn(ctx context.Context) (string, error) {
	body, err := json.Marshal(signInRequest{Email: c.email, Password: c.password, RoleID: c.roleID})
	if err != nil {
		return "", fmt.Errorf("encoding sign-in request: %w", err)
	}

	var resp signInResponse
	err = c.do(ctx, http.MethodPost, "/authentication/sign-in", "", bytes.NewReader(body), &resp)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: response carried no token", ErrAuthFailed)
	}
	return resp.Token, nil
}

// FetchRFIDCards returns every card issued for the configured hotel.
func (c *Client) FetchRFIDCards(ctx context.Context, token string) ([]Card, error) {
	var cards []Card
	path := "/rfid-card/hotel/" + url.PathEscape(c.hotelID)
	if err := c.do(ctx, http.MethodGet, path, token, nil, &cards); err != nil {
		return nil, fmt.Errorf("fetching rfid cards for hotel %s: %w", c.hotelID, err)
	}
	if cards == nil {
		cards = []Card{}
	}
	return cards, nil
}

// do sends a JSON request and decodes a 2xx JSON response into out.
func (c *Client) do(ctx context.Context, method, path, token string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxResponseBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(limited, 256)) //nolint:errcheck // best-effort error detail
		return fmt.Errorf("%w: %s %s returned %d: %s",
			ErrUnexpectedStatus, method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(limited).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", ErrBadResponse, path, err)
	}
	return nil
}
