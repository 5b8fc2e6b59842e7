package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nerrad567/fog-access-core/internal/access"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/config"
)

const testToken = "tok-123"

const twoCards = `[
	{"id": 1, "roomId": 12, "apiKey": "ignored", "uId": "ab cd"},
	{"id": "2", "roomId": "14", "uId": "EF01", "guestId": 5, "bookingId": "b-9"}
]`

// fakeBackend serves the sign-in and card endpoints of the hotel backend.
type fakeBackend struct {
	signIns atomic.Int32
	fetches atomic.Int32
	release chan struct{}

	mu          sync.Mutex
	cards       string
	rejectLogin bool
	cardStatus  int
}

func (f *fakeBackend) set(cards string, status int, rejectLogin bool) {
	f.mu.Lock()
	f.cards, f.cardStatus, f.rejectLogin = cards, status, rejectLogin
	f.mu.Unlock()
}

func (f *fakeBackend) state() (cards string, status int, rejectLogin bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cards, f.cardStatus, f.rejectLogin
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cards, status, rejectLogin := f.state()
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/authentication/sign-in":
		f.signIns.Add(1)
		var req signInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email != "fog@hotel.test" || req.RoleID != 3 || rejectLogin {
			http.Error(w, `{"message":"bad credentials"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"` + testToken + `"}`)) //nolint:errcheck // test server
	case r.Method == http.MethodGet && r.URL.Path == "/rfid-card/hotel/7":
		f.fetches.Add(1)
		if f.release != nil {
			<-f.release
		}
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(cards)) //nolint:errcheck // test server
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeBackend) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.BackendConfig{
		Enabled:        true,
		BaseURL:        srv.URL + "/",
		HotelID:        "7",
		Email:          "fog@hotel.test",
		Password:       "secret",
		RoleID:         3,
		RequestTimeout: 5,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_Disabled(t *testing.T) {
	if _, err := NewClient(config.BackendConfig{}); !errors.Is(err, ErrDisabled) {
		t.Errorf("NewClient() error = %v, want ErrDisabled", err)
	}
}

func TestSignIn(t *testing.T) {
	fake := &fakeBackend{}
	c := newTestClient(t, fake)

	token, err := c.SignIn(context.Background())
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if token != testToken {
		t.Errorf("token = %q, want %q", token, testToken)
	}

	fake.set("", 0, true)
	if _, err := c.SignIn(context.Background()); !errors.Is(err, ErrAuthFailed) || !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("SignIn() rejected error = %v, want ErrAuthFailed wrapping ErrUnexpectedStatus", err)
	}
}

func TestFetchRFIDCards(t *testing.T) {
	fake := &fakeBackend{cards: twoCards}
	c := newTestClient(t, fake)

	cards, err := c.FetchRFIDCards(context.Background(), testToken)
	if err != nil {
		t.Fatalf("FetchRFIDCards() error = %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("got %d cards, want 2", len(cards))
	}

	first := cards[0].Grant()
	if first.RoomID != "12" || first.UID != "ab cd" || first.HolderID != "card-1" || first.BookingID != "card-1" {
		t.Errorf("first grant = %+v", first)
	}
	second := cards[1].Grant()
	if second.HolderID != "5" || second.BookingID != "b-9" || second.Source != access.SourceBackendSync {
		t.Errorf("second grant = %+v", second)
	}
}

func TestFetchRFIDCards_Errors(t *testing.T) {
	fake := &fakeBackend{cardStatus: http.StatusInternalServerError}
	c := newTestClient(t, fake)

	if _, err := c.FetchRFIDCards(context.Background(), testToken); !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("FetchRFIDCards() 500 error = %v, want ErrUnexpectedStatus", err)
	}

	fake.set(`{"not": "a list"}`, 0, false)
	_, err := c.FetchRFIDCards(context.Background(), testToken)
	if !errors.Is(err, ErrBadResponse) || !strings.Contains(err.Error(), "decoding") {
		t.Errorf("FetchRFIDCards() bad body error = %v, want ErrBadResponse", err)
	}

	fake.set(`<html>maintenance</html>`, 0, false)
	if _, err := c.FetchRFIDCards(context.Background(), testToken); !errors.Is(err, ErrBadResponse) {
		t.Errorf("FetchRFIDCards() html body error = %v, want ErrBadResponse", err)
	}

	fake.set(`null`, 0, false)
	cards, err := c.FetchRFIDCards(context.Background(), testToken)
	if err != nil || cards == nil || len(cards) != 0 {
		t.Errorf("FetchRFIDCards(null) = %v, %v; want empty slice", cards, err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(config.BackendConfig{Enabled: true, BaseURL: url, HotelID: "7"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := c.SignIn(context.Background()); !errors.Is(err, ErrUnreachable) {
		t.Errorf("SignIn() error = %v, want ErrUnreachable", err)
	}
}
