package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	hub := NewHub(nil)
	go hub.Run()
	srv := httptest.NewServer(SetupRoutes(hub, ""))
	t.Cleanup(func() {
		srv.Close()
		hub.rooms.Stop()
	})
	return srv
}

func dialRoom(t *testing.T, srv *httptest.Server, roomID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?room=" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendJSON(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// waitFor reads frames until one of the given type arrives, skipping
// everything else the server pushes in between.
func waitFor(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", msgType, err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg["type"] == msgType {
			return msg
		}
	}
}

func waitForBinary(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for binary frame: %v", err)
		}
		if kind == websocket.BinaryMessage {
			return data
		}
	}
}

func joinAs(t *testing.T, conn *websocket.Conn, name string, host bool) {
	t.Helper()
	sendJSON(t, conn, map[string]interface{}{"type": "join", "name": name, "isHost": host})
	waitFor(t, conn, MsgPlayersUpdate)
}

func TestConnectReceivesPlayerID(t *testing.T) {
	srv := newTestServer(t)
	conn := dialRoom(t, srv, "lobby1")

	msg := waitFor(t, conn, MsgPlayerID)
	if id, _ := msg["id"].(string); id == "" {
		t.Error("player_id frame carries no id")
	}
}

func TestJoinBroadcastsNormalizedRoster(t *testing.T) {
	srv := newTestServer(t)
	conn := dialRoom(t, srv, "lobby2")

	sendJSON(t, conn, map[string]interface{}{"type": "join", "name": "alice"})
	msg := waitFor(t, conn, MsgPlayersUpdate)

	players, _ := msg["players"].([]interface{})
	if len(players) != 1 {
		t.Fatalf("roster size = %d, want 1", len(players))
	}
	p := players[0].(map[string]interface{})
	if p["name"] != "ALICE" {
		t.Errorf("roster name = %v, want ALICE", p["name"])
	}
	if p["isHost"] != true {
		t.Error("first joiner should be host")
	}
}

func TestNinthJoinRejected(t *testing.T) {
	srv := newTestServer(t)
	for i := 0; i < 8; i++ {
		conn := dialRoom(t, srv, "packed")
		joinAs(t, conn, "player"+string(rune('a'+i)), false)
	}

	late := dialRoom(t, srv, "packed")
	sendJSON(t, late, map[string]interface{}{"type": "join", "name": "ninth"})
	msg := waitFor(t, late, MsgError)
	if !strings.Contains(msg["message"].(string), "full") {
		t.Errorf("error = %v, want room full", msg["message"])
	}
}

func TestStartGameRunsCountdownAndTicks(t *testing.T) {
	srv := newTestServer(t)
	host := dialRoom(t, srv, "match1")
	guest := dialRoom(t, srv, "match1")
	joinAs(t, host, "alice", true)
	joinAs(t, guest, "bob", false)

	sendJSON(t, host, map[string]interface{}{"type": "start_game"})

	msg := waitFor(t, host, MsgCountdown)
	if msg["count"].(float64) != 3 {
		t.Errorf("first countdown = %v, want 3", msg["count"])
	}
	start := waitFor(t, guest, MsgGameStart)
	state, _ := start["state"].(map[string]interface{})
	if state["phase"] != "playing" {
		t.Errorf("game_start phase = %v, want playing", state["phase"])
	}

	// Inputs are acknowledged in the per-connection state envelope.
	sendJSON(t, host, map[string]interface{}{"type": "input", "seq": 5, "dx": 1, "rotation": 0.5})
	deadline := time.Now().Add(5 * time.Second)
	for {
		upd := waitFor(t, host, MsgStateUpdate)
		if upd["ackSeq"].(float64) == 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("input was never acknowledged in a state update")
		}
	}

	// The other connection's envelope keeps its own watermark.
	upd := waitFor(t, guest, MsgStateUpdate)
	if upd["ackSeq"].(float64) != 0 {
		t.Errorf("guest ackSeq = %v, want 0", upd["ackSeq"])
	}
}

func TestMsgpackCodecDeliversBinaryState(t *testing.T) {
	srv := newTestServer(t)
	conn := dialRoom(t, srv, "binroom")
	sendJSON(t, conn, map[string]interface{}{"type": "join", "name": "alice", "codec": "msgpack"})
	waitFor(t, conn, MsgPlayersUpdate)
	sendJSON(t, conn, map[string]interface{}{"type": "start_game"})

	data := waitForBinary(t, conn)
	var msg BinaryStateMsg
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode binary state: %v", err)
	}
	if msg.Type != MsgStateUpdate {
		t.Errorf("binary frame type = %q, want state_update", msg.Type)
	}
	if len(msg.State.Players) != 1 || msg.State.Players[0].Name != "ALICE" {
		t.Errorf("binary state players = %+v", msg.State.Players)
	}
}

func TestMalformedFramesAreTolerated(t *testing.T) {
	srv := newTestServer(t)
	conn := dialRoom(t, srv, "lobby3")

	conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"no_such_type"}`))

	// The connection survives and a valid join still works.
	sendJSON(t, conn, map[string]interface{}{"type": "join", "name": "alice"})
	waitFor(t, conn, MsgPlayersUpdate)
}

func TestDisconnectInLobbyFreesSlot(t *testing.T) {
	srv := newTestServer(t)
	conn1 := dialRoom(t, srv, "lobby4")
	conn2 := dialRoom(t, srv, "lobby4")
	joinAs(t, conn1, "alice", true)
	joinAs(t, conn2, "bob", false)

	conn1.Close()

	msg := waitFor(t, conn2, MsgPlayersUpdate)
	players, _ := msg["players"].([]interface{})
	if len(players) != 1 {
		t.Fatalf("roster size after leave = %d, want 1", len(players))
	}
	p := players[0].(map[string]interface{})
	if p["name"] != "BOB" || p["isHost"] != true {
		t.Errorf("remaining player = %v, want BOB promoted to host", p)
	}
}

func TestListRooms(t *testing.T) {
	srv := newTestServer(t)
	conn := dialRoom(t, srv, "dir1")
	joinAs(t, conn, "alice", true)

	sendJSON(t, conn, map[string]interface{}{"type": "list_rooms"})
	msg := waitFor(t, conn, MsgRooms)
	rooms, _ := msg["rooms"].([]interface{})
	if len(rooms) != 1 {
		t.Fatalf("directory size = %d, want 1", len(rooms))
	}
	info := rooms[0].(map[string]interface{})
	if info["id"] != "dir1" || info["players"].(float64) != 1 {
		t.Errorf("directory entry = %v", info)
	}
}

func TestWSRequiresValidRoomID(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/ws", "/ws?room=", "/ws?room=bad!id"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestQREndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/qr/myroom")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}

	bad, err := http.Get(srv.URL + "/qr/not%20a%20room")
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid id status = %d, want 400", bad.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	conn := dialRoom(t, srv, "h1")
	joinAs(t, conn, "alice", true)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["conns"] < 1 {
		t.Errorf("healthz conns = %d, want at least 1", body["conns"])
	}
}
