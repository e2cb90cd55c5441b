package main

// Client -> server message types
const (
	MsgJoin          = "join"
	MsgInput         = "input"
	MsgStartGame     = "start_game"
	MsgToggleReady   = "toggle_ready"
	MsgReturnToLobby = "return_to_lobby"
	MsgListRooms     = "list_rooms"
	MsgRegister      = "register"
	MsgLogin         = "login"
	MsgAuth          = "auth"
	MsgProfile       = "profile"
)

// Server -> client message types
const (
	MsgPlayerID         = "player_id"
	MsgPlayersUpdate    = "players_update"
	MsgCountdown        = "countdown"
	MsgGameStart        = "game_start"
	MsgStateUpdate      = "state_update"
	MsgPlayerHit        = "player_hit"
	MsgPlayerEliminated = "player_eliminated"
	MsgRoundResults     = "round_results"
	MsgReadyStatus      = "ready_status_update"
	MsgRooms            = "rooms"
	MsgError            = "error"
	MsgAuthOK           = "auth_ok"
	MsgProfileData      = "profile_data"
)

// typeProbe extracts the discriminator from an inbound frame before
// the full payload is decoded.
type typeProbe struct {
	Type string `json:"type"`
}

// JoinMsg requests admission to the room. Codec "msgpack" opts into
// binary state frames.
type JoinMsg struct {
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
	Codec  string `json:"codec,omitempty"`
}

// InputMsg is one frame of intent. dx/dy are in [-1,1] per axis and
// not necessarily normalized by the sender.
type InputMsg struct {
	Seq      int     `json:"seq"`
	DX       float64 `json:"dx"`
	DY       float64 `json:"dy"`
	Fire     bool    `json:"fire"`
	Rotation float64 `json:"rotation"`
}

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg authenticates an existing account
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg resumes a session from a stored token
type AuthMsg struct {
	Token string `json:"token"`
}

// PlayerIDMsg tells a connection its logical player id. Sent once on
// connect, and again when a rejoin binds the connection to an existing
// player record.
type PlayerIDMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// LobbyPlayer is the roster entry in players_update
type LobbyPlayer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     int    `json:"color"`
	IsHost    bool   `json:"isHost"`
	IsReady   bool   `json:"isReady"`
	Connected bool   `json:"connected"`
}

// PlayersUpdateMsg broadcasts the current roster
type PlayersUpdateMsg struct {
	Type    string        `json:"type"`
	Players []LobbyPlayer `json:"players"`
}

// CountdownMsg counts down to round start; 0 signals the start itself
type CountdownMsg struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// PlayerSnapshot carries one player's public fields in a snapshot
type PlayerSnapshot struct {
	ID           string  `json:"id" msgpack:"id"`
	Name         string  `json:"name" msgpack:"name"`
	X            float64 `json:"x" msgpack:"x"`
	Y            float64 `json:"y" msgpack:"y"`
	Rotation     float64 `json:"rotation" msgpack:"rotation"`
	Color        int     `json:"color" msgpack:"color"`
	Lives        int     `json:"lives" msgpack:"lives"`
	IsAlive      bool    `json:"isAlive" msgpack:"isAlive"`
	Invulnerable bool    `json:"isInvulnerable" msgpack:"isInvulnerable"`
	IsReady      bool    `json:"isReady" msgpack:"isReady"`
}

// ProjectileSnapshot carries one projectile's public fields
type ProjectileSnapshot struct {
	ID        string  `json:"id" msgpack:"id"`
	OwnerID   string  `json:"ownerId" msgpack:"ownerId"`
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`
	VelocityX float64 `json:"velocityX" msgpack:"velocityX"`
	VelocityY float64 `json:"velocityY" msgpack:"velocityY"`
}

// Snapshot is the full public room state emitted each tick. One shared
// value is built per tick; only the ack sequence differs per recipient.
type Snapshot struct {
	Tick        uint64               `json:"tick" msgpack:"tick"`
	Players     []PlayerSnapshot     `json:"players" msgpack:"players"`
	Projectiles []ProjectileSnapshot `json:"projectiles" msgpack:"projectiles"`
	Phase       string               `json:"phase" msgpack:"phase"`
	Round       int                  `json:"round" msgpack:"round"`
	WinnerID    string               `json:"winnerId,omitempty" msgpack:"winnerId"`
	TimeLeftMs  int64                `json:"timeLeftMs" msgpack:"timeLeftMs"`
}

// GameStartMsg announces countdown completion with the starting state
type GameStartMsg struct {
	Type  string   `json:"type"`
	State Snapshot `json:"state"`
}

// StateUpdateMsg wraps the shared pre-encoded snapshot with the
// recipient's own last-acknowledged input sequence.
type StateUpdateMsg struct {
	Type   string `json:"type"`
	State  any    `json:"state"`
	AckSeq int    `json:"ackSeq"`
}

// BinaryStateMsg is the msgpack form of StateUpdateMsg
type BinaryStateMsg struct {
	Type   string   `msgpack:"type"`
	State  Snapshot `msgpack:"state"`
	AckSeq int      `msgpack:"ackSeq"`
}

// PlayerHitMsg reports a projectile hit
type PlayerHitMsg struct {
	Type           string `json:"type"`
	TargetID       string `json:"targetId"`
	AttackerID     string `json:"attackerId"`
	LivesRemaining int    `json:"livesRemaining"`
}

// PlayerEliminatedMsg reports a player running out of lives
type PlayerEliminatedMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	KillerID string `json:"killerId"`
}

// PlayerStats is the cumulative per-player scoreboard line
type PlayerStats struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kills  int    `json:"kills"`
	Deaths int    `json:"deaths"`
	Wins   int    `json:"wins"`
	Lives  int    `json:"lives"`
}

// RoundResults is the scoreboard payload at round end
type RoundResults struct {
	WinnerID    string        `json:"winnerId"`
	WinnerName  string        `json:"winnerName"`
	PlayerStats []PlayerStats `json:"playerStats"`
	Round       int           `json:"round"`
}

// RoundResultsMsg wraps RoundResults
type RoundResultsMsg struct {
	Type    string       `json:"type"`
	Results RoundResults `json:"results"`
}

// ReadyStatusMsg broadcasts a ready-flag change
type ReadyStatusMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	IsReady  bool   `json:"isReady"`
}

// RoomInfo describes one room in the directory listing
type RoomInfo struct {
	ID      string `json:"id"`
	Players int    `json:"players"`
	Phase   string `json:"phase"`
}

// RoomsMsg is the room directory response
type RoomsMsg struct {
	Type  string     `json:"type"`
	Rooms []RoomInfo `json:"rooms"`
}

// ErrorMsg reports a rejected request
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AuthOKMsg confirms register/login/token resume
type AuthOKMsg struct {
	Type     string `json:"type"`
	Token    string `json:"token"`
	Username string `json:"username"`
	PlayerID int64  `json:"playerId"`
}

// ProfileDataMsg returns lifetime account stats
type ProfileDataMsg struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Kills    int    `json:"kills"`
	Deaths   int    `json:"deaths"`
	Wins     int    `json:"wins"`
	Rounds   int    `json:"rounds"`
}
