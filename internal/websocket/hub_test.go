package websocket

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/auth"
	"github.com/dennisdiepolder/monti/wfm/internal/config"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestNewHub(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	if hub == nil {
		t.Fatal("expected hub to be created")
	}

	if hub.clients == nil {
		t.Error("expected clients map to be initialized")
	}

	if hub.broadcast == nil {
		t.Error("expected broadcast channel to be initialized")
	}

	if hub.register == nil {
		t.Error("expected register channel to be initialized")
	}

	if hub.unregister == nil {
		t.Error("expected unregister channel to be initialized")
	}
}

func TestHubClientCount(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	// Initial count should be 0
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}

	// Simulate adding clients
	hub.mu.Lock()
	hub.clients[&Client{id: "test1"}] = true
	hub.clients[&Client{id: "test2"}] = true
	hub.mu.Unlock()

	if hub.ClientCount() != 2 {
		t.Errorf("expected 2 clients, got %d", hub.ClientCount())
	}
}

func TestHubBroadcast(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	// Start hub in goroutine
	go hub.Run()

	// Give hub time to start
	time.Sleep(10 * time.Millisecond)

	// Test broadcast
	message := []byte("test message")
	hub.Broadcast(message)

	// The broadcast should succeed without blocking
	select {
	case <-time.After(100 * time.Millisecond):
		t.Error("broadcast blocked unexpectedly")
	default:
		// Broadcast completed
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	// Start hub in goroutine
	go hub.Run()

	// Create mock client
	client := &Client{
		id:   "test-client",
		hub:  hub,
		send: make(chan []byte, 1),
	}

	// Register client
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after register, got %d", hub.ClientCount())
	}

	// Unregister client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", hub.ClientCount())
	}
}

func TestHubBroadcastToMultipleClients(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	// Start hub
	go hub.Run()

	// Create multiple mock clients
	client1 := &Client{
		id:   "client1",
		hub:  hub,
		send: make(chan []byte, 10),
	}

	client2 := &Client{
		id:   "client2",
		hub:  hub,
		send: make(chan []byte, 10),
	}

	// Register clients
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	// Broadcast message
	message := []byte("test broadcast")
	hub.Broadcast(message)

	// Wait for message to be sent
	time.Sleep(10 * time.Millisecond)

	// Check both clients received the message
	select {
	case msg := <-client1.send:
		if string(msg) != string(message) {
			t.Errorf("client1 expected %s, got %s", message, msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("client1 did not receive message")
	}

	select {
	case msg := <-client2.send:
		if string(msg) != string(message) {
			t.Errorf("client2 expected %s, got %s", message, msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("client2 did not receive message")
	}
}

func testBoard() *types.Board {
	return &types.Board{
		Type:        "presence_board",
		TotalAgents: 2,
		Agents: []types.Presence{
			{Agent: types.Agent{ID: "fc-1", AvailabilityStatus: types.AvailabilityAvailable}, Online: true},
			{Agent: types.Agent{ID: "fc-2", AvailabilityStatus: types.AvailabilityUnavailable}, Reason: types.ReasonBreak},
		},
	}
}

func TestFilterBoard(t *testing.T) {
	board := testBoard()

	supervisor := &Client{claims: &auth.Claims{Role: auth.RoleSupervisor}}
	if supervisor.FilterBoard(board) != board {
		t.Error("supervisor must receive the board unchanged")
	}

	agent := &Client{claims: &auth.Claims{Role: auth.RoleAgent, AgentID: "fc-2"}}
	filtered := agent.FilterBoard(board)
	if filtered == nil || filtered == board {
		t.Fatal("expected a filtered copy for an agent")
	}
	if filtered.TotalAgents != 1 || filtered.Agents[0].ID != "fc-2" {
		t.Errorf("expected only fc-2, got %+v", filtered.Agents)
	}
	if filtered.OnlineAgents != 0 || filtered.ReasonBreakdown["break"] != 1 {
		t.Errorf("expected recomputed counts, got online=%d reasons=%v", filtered.OnlineAgents, filtered.ReasonBreakdown)
	}

	viewer := &Client{claims: &auth.Claims{Role: auth.RoleViewer}}
	if viewer.FilterBoard(board) != nil {
		t.Error("viewer without agent id sees nothing")
	}
}

func TestHubBroadcastFiltersBoards(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	go hub.Run()

	admin := &Client{id: "admin", hub: hub, send: make(chan []byte, 1), claims: &auth.Claims{Role: auth.RoleAdmin}}
	agent := &Client{id: "agent", hub: hub, send: make(chan []byte, 1), claims: &auth.Claims{Role: auth.RoleAgent, AgentID: "fc-1"}}
	viewer := &Client{id: "viewer", hub: hub, send: make(chan []byte, 1), claims: &auth.Claims{Role: auth.RoleViewer}}
	hub.register <- admin
	hub.register <- agent
	hub.register <- viewer

	data, _ := json.Marshal(testBoard())
	hub.Broadcast(data)

	receive := func(c *Client) *types.Board {
		select {
		case msg := <-c.send:
			var b types.Board
			if err := json.Unmarshal(msg, &b); err != nil {
				t.Fatalf("%s: invalid board: %v", c.id, err)
			}
			return &b
		case <-time.After(200 * time.Millisecond):
			return nil
		}
	}

	if b := receive(admin); b == nil || len(b.Agents) != 2 {
		t.Errorf("admin expected full board, got %+v", b)
	}
	if b := receive(agent); b == nil || len(b.Agents) != 1 {
		t.Errorf("agent expected own entry only, got %+v", b)
	}
	if b := receive(viewer); b != nil {
		t.Errorf("viewer expected nothing, got %+v", b)
	}
}

type staticBoards struct{ board *types.Board }

func (s staticBoards) Board() *types.Board { return s.board }

func TestHandlerSendsCurrentBoardOnConnect(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	go hub.Run()

	cfg := &config.Config{
		AllowedOrigins: []string{"http://localhost:5173"},
		PongWait:       time.Minute,
		PingPeriod:     54 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 512,
	}
	handler := NewHandler(hub, staticBoards{testBoard()}, cfg, zerolog.Nop())

	srv := httptest.NewServer(handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var b types.Board
	if err := json.Unmarshal(msg, &b); err != nil {
		t.Fatalf("invalid board: %v", err)
	}
	if b.TotalAgents != 2 {
		t.Errorf("expected 2 agents, got %d", b.TotalAgents)
	}
}

func TestCheckOrigin(t *testing.T) {
	h := NewHandler(NewHub(zerolog.Nop()), nil, &config.Config{AllowedOrigins: []string{"https://wfm.example.com"}}, zerolog.Nop())

	tests := map[string]bool{
		"":                         true,
		"https://wfm.example.com":  true,
		"https://evil.example.com": false,
	}
	for origin, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if got := h.checkOrigin(req); got != want {
			t.Errorf("origin %q: expected %v, got %v", origin, want, got)
		}
	}
}
