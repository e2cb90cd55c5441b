package main

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"tankarena/sim"
)

// Phase is the room lifecycle state
type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseCountdown Phase = "countdown"
	PhasePlaying   Phase = "playing"
	PhaseResults   Phase = "results"
)

// tankColorCount matches the client palette size; colors are assigned
// by join order.
const tankColorCount = 8

const maxNameLen = 12

var (
	errRoomFull = errors.New("room is full")
	errBadName  = errors.New("name is empty")
)

// Broadcaster is the send-side of a connection. Implementations must
// never block: the room tick runs on the calling goroutine.
type Broadcaster interface {
	SendJSON(msg interface{})
	SendRaw(data []byte)
	SendBinary(data []byte)
}

// Stats are cumulative across rounds for one logical player
type Stats struct {
	Kills  int
	Deaths int
	Wins   int
}

// Player is a logical player record, owned exclusively by the room.
// Identity is stable across reconnects: the normalized display name is
// the key, and the transport connection is rebound on rejoin.
type Player struct {
	ID       string // logical id, fixed at first join
	ConnID   string // current transport binding, "" while disconnected
	Name     string
	NormName string
	Color    int
	SpawnIdx int

	X, Y     float64
	Rotation float64
	VX, VY   float64

	Lives        int
	Alive        bool
	Invulnerable bool
	InvulnUntil  time.Time
	LastFired    time.Time

	AckSeq    int
	Ready     bool
	Host      bool
	Connected bool

	Stats     Stats
	AccountID int64 // 0 = guest
}

// Projectile is a live bullet. OwnerID is a weak reference: the owner
// may have left the room.
type Projectile struct {
	ID      string
	OwnerID string
	X, Y    float64
	VX, VY  float64
}

type roomConn struct {
	b        Broadcaster
	playerID string
	binary   bool
}

// Room is one authoritative game instance. All state mutation happens
// under mu, either in the tick loop or in a connection handler, so the
// room behaves as a single logical actor.
type Room struct {
	mu    sync.Mutex
	ID    string
	tmap  *sim.TileMap
	conns map[string]*roomConn // connID -> binding

	players     []*Player // insertion order
	projectiles []*Projectile

	phase      Phase
	round      int
	winnerID   string
	roundStart time.Time
	tick       uint64

	countdownLeft int
	countdownAcc  time.Duration

	bulletSeq      int
	lastEliminated *Player
	now            time.Time

	stop    chan struct{}
	stopped bool

	db        *DB
	analytics *Analytics
}

// NewRoom creates a room over the standard arena
func NewRoom(id string, db *DB, analytics *Analytics) *Room {
	return &Room{
		ID:        id,
		tmap:      sim.Arena(),
		conns:     make(map[string]*roomConn),
		phase:     PhaseWaiting,
		now:       time.Now(),
		stop:      make(chan struct{}),
		db:        db,
		analytics: analytics,
	}
}

// Run drives the room at the fixed tick rate until Stop. Phases other
// than countdown/playing make the tick a no-op, so a tick landing just
// after a phase exit cannot corrupt later state.
func (r *Room) Run() {
	ticker := time.NewTicker(sim.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			r.step(time.Now())
			r.mu.Unlock()
		}
	}
}

// Stop terminates the tick loop. Idempotent.
func (r *Room) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped {
		r.stopped = true
		close(r.stop)
	}
}

// ConnCount returns the number of bound connections
func (r *Room) ConnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// PlayerCount returns the number of logical player records
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Phase returns the current lifecycle phase
func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func normalizeName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if runes := []rune(name); len(runes) > maxNameLen {
		name = string(runes[:maxNameLen])
	}
	return name
}

// Join admits a connection. A name matching an existing record (after
// normalization) rebinds that record to the new connection, keeping
// stats, lives and position; a new name appends a fresh player.
// Returns the bound player and whether this was a reconnect.
func (r *Room) Join(connID string, b Broadcaster, name string, isHost bool, binary bool, accountID int64) (*Player, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name = normalizeName(name)
	if name == "" {
		return nil, false, errBadName
	}

	// Reconnect: rebind the existing record's connection in place.
	for _, p := range r.players {
		if p.NormName == name {
			if p.ConnID != "" {
				delete(r.conns, p.ConnID)
			}
			p.ConnID = connID
			p.Connected = true
			if accountID != 0 {
				p.AccountID = accountID
			}
			r.conns[connID] = &roomConn{b: b, playerID: p.ID, binary: binary}
			r.broadcastPlayersUpdate()
			return p, true, nil
		}
	}

	if len(r.players) >= sim.MaxPlayers {
		return nil, false, errRoomFull
	}

	idx := len(r.players)
	x, y := r.tmap.Spawn(idx)
	p := &Player{
		ID:        connID,
		ConnID:    connID,
		Name:      name,
		NormName:  name,
		Color:     idx % tankColorCount,
		SpawnIdx:  idx,
		X:         x,
		Y:         y,
		Lives:     sim.MaxLives,
		Alive:     true,
		Host:      isHost || idx == 0,
		Connected: true,
		AccountID: accountID,
	}
	if r.phase == PhasePlaying {
		p.Invulnerable = true
		p.InvulnUntil = r.now.Add(sim.Invulnerability)
	}
	r.players = append(r.players, p)
	r.conns[connID] = &roomConn{b: b, playerID: p.ID, binary: binary}
	r.broadcastPlayersUpdate()
	return p, false, nil
}

// Disconnect unbinds a connection. During waiting the player record is
// removed outright; in any later phase the record stays so a rejoin
// under the same name restores it.
func (r *Room) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rc, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(r.conns, connID)

	p := r.playerByID(rc.playerID)
	if p == nil {
		return
	}

	if r.phase == PhaseWaiting {
		r.removePlayer(p)
	} else {
		p.ConnID = ""
		p.Connected = false
		p.Ready = false
	}
	r.broadcastPlayersUpdate()

	if r.phase == PhaseResults {
		r.maybeAdvanceFromResults()
	}
}

func (r *Room) removePlayer(target *Player) {
	kept := r.players[:0]
	for _, p := range r.players {
		if p != target {
			kept = append(kept, p)
		}
	}
	r.players = kept
	if target.Host && len(r.players) > 0 {
		r.players[0].Host = true
	}
}

func (r *Room) playerByID(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) playerByConn(connID string) *Player {
	rc, ok := r.conns[connID]
	if !ok {
		return nil
	}
	return r.playerByID(rc.playerID)
}

// HandleInput processes one intent frame. Invalid intents (wrong
// phase, dead player) are dropped without a reply.
func (r *Room) HandleInput(connID string, in InputMsg) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.playerByConn(connID)
	if p == nil || !p.Alive || r.phase != PhasePlaying {
		return
	}

	p.VX, p.VY = sim.Velocity(in.DX, in.DY)
	if p.VX != 0 || p.VY != 0 {
		p.Rotation = in.Rotation
	}
	if in.Seq > p.AckSeq {
		p.AckSeq = in.Seq
	}

	if in.Fire {
		r.tryFire(p)
	}
}

// tryFire enforces the cooldown and the one-live-projectile-per-player
// invariant at creation time.
func (r *Room) tryFire(p *Player) {
	if r.now.Sub(p.LastFired) < sim.FireCooldown {
		return
	}
	for _, pr := range r.projectiles {
		if pr.OwnerID == p.ID {
			return
		}
	}

	angle := p.Rotation + sim.FireAngleOffset
	r.bulletSeq++
	r.projectiles = append(r.projectiles, &Projectile{
		ID:      "bullet_" + strconv.Itoa(r.bulletSeq),
		OwnerID: p.ID,
		X:       p.X,
		Y:       p.Y,
		VX:      math.Cos(angle) * sim.BulletSpeed,
		VY:      math.Sin(angle) * sim.BulletSpeed,
	})
	p.LastFired = r.now
}

// HandleStart begins the countdown. Host only, from the waiting phase.
func (r *Room) HandleStart(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.playerByConn(connID)
	if p == nil || !p.Host {
		return
	}
	if r.phase != PhaseWaiting || len(r.players) < 1 {
		return
	}
	r.beginCountdown()
}

// HandleToggleReady flips a ready flag; when every connected player is
// ready in results (or in waiting after a return to lobby) the next
// round's countdown begins.
func (r *Room) HandleToggleReady(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.playerByConn(connID)
	if p == nil {
		return
	}
	if r.phase != PhaseWaiting && r.phase != PhaseResults {
		return
	}
	p.Ready = !p.Ready
	r.broadcastJSON(ReadyStatusMsg{Type: MsgReadyStatus, PlayerID: p.ID, IsReady: p.Ready})
	r.maybeAdvanceFromResults()
}

func (r *Room) maybeAdvanceFromResults() {
	if r.phase != PhaseResults && r.phase != PhaseWaiting {
		return
	}
	connected := 0
	for _, p := range r.players {
		if !p.Connected {
			continue
		}
		connected++
		if !p.Ready {
			return
		}
	}
	if connected == 0 {
		return
	}
	r.beginCountdown()
}

// HandleReturnToLobby moves a finished room back to waiting
func (r *Room) HandleReturnToLobby(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.playerByConn(connID) == nil || r.phase != PhaseResults {
		return
	}
	r.phase = PhaseWaiting
	r.winnerID = ""
	for _, p := range r.players {
		p.Ready = false
	}
	// Records left behind by mid-round disconnects have no connection
	// to return with; drop them on the way back to the lobby.
	for _, p := range append([]*Player(nil), r.players...) {
		if !p.Connected {
			r.removePlayer(p)
		}
	}
	r.broadcastPlayersUpdate()
}

func (r *Room) beginCountdown() {
	r.phase = PhaseCountdown
	r.countdownLeft = sim.CountdownSecs
	r.countdownAcc = 0
	for _, p := range r.players {
		p.Ready = false
	}
	r.broadcastJSON(CountdownMsg{Type: MsgCountdown, Count: r.countdownLeft})
}

// step advances the room by one tick. now is injected so tests can
// drive the room deterministically.
func (r *Room) step(now time.Time) {
	r.now = now
	switch r.phase {
	case PhaseCountdown:
		r.stepCountdown()
	case PhasePlaying:
		r.simTick(now)
	}
}

func (r *Room) stepCountdown() {
	r.countdownAcc += sim.TickInterval
	for r.countdownAcc >= time.Second && r.phase == PhaseCountdown {
		r.countdownAcc -= time.Second
		r.countdownLeft--
		r.broadcastJSON(CountdownMsg{Type: MsgCountdown, Count: r.countdownLeft})
		if r.countdownLeft <= 0 {
			r.startRound()
		}
	}
}

// startRound resets every player to its spawn and enters playing.
func (r *Room) startRound() {
	for i, p := range r.players {
		p.SpawnIdx = i
		p.X, p.Y = r.tmap.Spawn(i)
		p.Rotation = 0
		p.VX, p.VY = 0, 0
		p.Lives = sim.MaxLives
		p.Alive = true
		p.Invulnerable = true
		p.InvulnUntil = r.now.Add(sim.Invulnerability)
		p.Ready = false
	}
	r.projectiles = nil
	r.lastEliminated = nil
	r.round++
	r.tick = 0
	r.roundStart = r.now
	r.winnerID = ""
	r.phase = PhasePlaying

	r.broadcastJSON(GameStartMsg{Type: MsgGameStart, State: r.snapshot()})
	r.track(EvtRoundStart, 0, "")
}

// simTick is one authoritative simulation step: players move, then
// projectiles fly and resolve, then termination checks, then snapshot.
func (r *Room) simTick(now time.Time) {
	dt := sim.TickDelta

	for _, p := range r.players {
		if !p.Alive {
			continue
		}
		if p.Invulnerable && !now.Before(p.InvulnUntil) {
			p.Invulnerable = false
		}
		newX := p.X + p.VX*dt
		newY := p.Y + p.VY*dt
		if r.tmap.Blocked(newX, newY, sim.TankRadius) {
			newX, newY = p.X, p.Y
		}
		p.X, p.Y = r.tmap.ClampToBounds(newX, newY, sim.TankRadius)
	}

	var removed []string
	for _, pr := range r.projectiles {
		pr.X += pr.VX * dt
		pr.Y += pr.VY * dt

		if r.tmap.Blocked(pr.X, pr.Y, sim.BulletRadius) || !r.tmap.InBounds(pr.X, pr.Y) {
			removed = append(removed, pr.ID)
			continue
		}

		for _, p := range r.players {
			if !p.Alive || p.Invulnerable || p.ID == pr.OwnerID {
				continue
			}
			if sim.CircleHit(pr.X, pr.Y, p.X, p.Y, sim.HitRadius) {
				removed = append(removed, pr.ID)
				r.resolveHit(p, pr.OwnerID)
				break
			}
		}
	}
	if len(removed) > 0 {
		r.removeProjectiles(removed)
	}

	r.checkRoundOver()
	if r.phase == PhasePlaying && now.Sub(r.roundStart) > sim.RoundDuration {
		r.endRoundByTime()
	}

	r.tick++
	r.broadcastState()
}

func (r *Room) removeProjectiles(ids []string) {
	kept := r.projectiles[:0]
	for _, pr := range r.projectiles {
		dead := false
		for _, id := range ids {
			if pr.ID == id {
				dead = true
				break
			}
		}
		if !dead {
			kept = append(kept, pr)
		}
	}
	r.projectiles = kept
}

// resolveHit applies one projectile hit to target. The shooter may
// have left the room; kill credit is skipped in that case.
func (r *Room) resolveHit(target *Player, shooterID string) {
	target.Lives--
	target.Stats.Deaths++
	shooter := r.playerByID(shooterID)
	if shooter != nil {
		shooter.Stats.Kills++
	}

	r.broadcastJSON(PlayerHitMsg{
		Type:           MsgPlayerHit,
		TargetID:       target.ID,
		AttackerID:     shooterID,
		LivesRemaining: target.Lives,
	})

	if target.Lives <= 0 {
		target.Lives = 0
		target.Alive = false
		r.lastEliminated = target
		r.broadcastJSON(PlayerEliminatedMsg{
			Type:     MsgPlayerEliminated,
			PlayerID: target.ID,
			KillerID: shooterID,
		})
		r.track(EvtElimination, target.AccountID, target.ID)
	} else {
		target.Invulnerable = true
		target.InvulnUntil = r.now.Add(sim.Invulnerability)
	}
	if shooter != nil {
		r.track(EvtKill, shooter.AccountID, shooter.ID)
	}
}

// checkRoundOver ends the round when at most one player is left alive
// (of at least two), or when a lone player's tank has died.
func (r *Room) checkRoundOver() {
	if r.phase != PhasePlaying {
		return
	}
	var alive []*Player
	for _, p := range r.players {
		if p.Alive {
			alive = append(alive, p)
		}
	}

	switch {
	case len(r.players) > 1 && len(alive) == 1:
		r.endRound(alive[0])
	case len(r.players) > 1 && len(alive) == 0:
		winner := r.lastEliminated
		if winner == nil {
			winner = r.players[0]
		}
		r.endRound(winner)
	case len(r.players) == 1 && !r.players[0].Alive:
		r.endRound(r.players[0])
	}
}

// endRoundByTime credits the player with the most remaining lives;
// ties go to the earliest-joined player.
func (r *Room) endRoundByTime() {
	if len(r.players) == 0 {
		return
	}
	winner := r.players[0]
	for _, p := range r.players[1:] {
		if p.Lives > winner.Lives {
			winner = p
		}
	}
	r.endRound(winner)
}

func (r *Room) endRound(winner *Player) {
	if r.phase != PhasePlaying {
		return
	}
	r.phase = PhaseResults
	r.winnerID = winner.ID
	winner.Stats.Wins++
	for _, p := range r.players {
		p.Ready = false
		p.VX, p.VY = 0, 0
	}

	results := RoundResults{
		WinnerID:   winner.ID,
		WinnerName: winner.Name,
		Round:      r.round,
	}
	for _, p := range r.players {
		results.PlayerStats = append(results.PlayerStats, PlayerStats{
			ID:     p.ID,
			Name:   p.Name,
			Kills:  p.Stats.Kills,
			Deaths: p.Stats.Deaths,
			Wins:   p.Stats.Wins,
			Lives:  p.Lives,
		})
	}
	r.broadcastJSON(RoundResultsMsg{Type: MsgRoundResults, Results: results})
	r.track(EvtRoundEnd, winner.AccountID, winner.ID)

	if r.db != nil {
		// Persistence is I/O and must stay off the tick path.
		duration := r.now.Sub(r.roundStart)
		rows := r.participantRows()
		go r.persistRound(results, duration, rows)
	}
}

func (r *Room) participantRows() []RoundPlayerRow {
	rows := make([]RoundPlayerRow, 0, len(r.players))
	for _, p := range r.players {
		rows = append(rows, RoundPlayerRow{
			Name:      p.Name,
			AccountID: p.AccountID,
			Kills:     p.Stats.Kills,
			Deaths:    p.Stats.Deaths,
			LivesLeft: p.Lives,
			Won:       p.ID == r.winnerID,
		})
	}
	return rows
}

func (r *Room) persistRound(results RoundResults, duration time.Duration, rows []RoundPlayerRow) {
	if err := r.db.RecordRound(r.ID, results.Round, results.WinnerName, duration, rows); err != nil {
		log.Printf("record round: %v", err)
	}
	for _, row := range rows {
		if row.AccountID == 0 {
			continue
		}
		if err := r.db.AddStats(row.AccountID, row.Kills, row.Deaths, boolToInt(row.Won)); err != nil {
			log.Printf("add stats: %v", err)
		}
	}
}

// snapshot builds the shared public state. Callers hold mu.
func (r *Room) snapshot() Snapshot {
	snap := Snapshot{
		Tick:        r.tick,
		Players:     make([]PlayerSnapshot, 0, len(r.players)),
		Projectiles: make([]ProjectileSnapshot, 0, len(r.projectiles)),
		Phase:       string(r.phase),
		Round:       r.round,
		WinnerID:    r.winnerID,
	}
	if r.phase == PhasePlaying {
		left := sim.RoundDuration - r.now.Sub(r.roundStart)
		if left < 0 {
			left = 0
		}
		snap.TimeLeftMs = left.Milliseconds()
	}
	for _, p := range r.players {
		snap.Players = append(snap.Players, PlayerSnapshot{
			ID:           p.ID,
			Name:         p.Name,
			X:            p.X,
			Y:            p.Y,
			Rotation:     p.Rotation,
			Color:        p.Color,
			Lives:        p.Lives,
			IsAlive:      p.Alive,
			Invulnerable: p.Invulnerable,
			IsReady:      p.Ready,
		})
	}
	for _, pr := range r.projectiles {
		snap.Projectiles = append(snap.Projectiles, ProjectileSnapshot{
			ID:        pr.ID,
			OwnerID:   pr.OwnerID,
			X:         pr.X,
			Y:         pr.Y,
			VelocityX: pr.VX,
			VelocityY: pr.VY,
		})
	}
	return snap
}

// broadcastState sends the tick snapshot to every connection. The
// state body is computed once; only the recipient's ack sequence is
// stamped per connection.
func (r *Room) broadcastState() {
	snap := r.snapshot()

	stateJSON, err := json.Marshal(snap)
	if err != nil {
		log.Printf("marshal snapshot: %v", err)
		return
	}

	for _, rc := range r.conns {
		ack := 0
		if p := r.playerByID(rc.playerID); p != nil {
			ack = p.AckSeq
		}
		if rc.binary {
			data, err := msgpack.Marshal(BinaryStateMsg{Type: MsgStateUpdate, State: snap, AckSeq: ack})
			if err != nil {
				continue
			}
			rc.b.SendBinary(data)
			continue
		}
		data, err := json.Marshal(StateUpdateMsg{
			Type:   MsgStateUpdate,
			State:  json.RawMessage(stateJSON),
			AckSeq: ack,
		})
		if err != nil {
			continue
		}
		rc.b.SendRaw(data)
	}
}

func (r *Room) broadcastJSON(msg interface{}) {
	for _, rc := range r.conns {
		rc.b.SendJSON(msg)
	}
}

func (r *Room) broadcastPlayersUpdate() {
	msg := PlayersUpdateMsg{Type: MsgPlayersUpdate, Players: make([]LobbyPlayer, 0, len(r.players))}
	for _, p := range r.players {
		msg.Players = append(msg.Players, LobbyPlayer{
			ID:        p.ID,
			Name:      p.Name,
			Color:     p.Color,
			IsHost:    p.Host,
			IsReady:   p.Ready,
			Connected: p.Connected,
		})
	}
	r.broadcastJSON(msg)
}

// Info returns the directory entry for this room
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{ID: r.ID, Players: len(r.players), Phase: string(r.phase)}
}

func (r *Room) track(evt string, accountID int64, playerID string) {
	if r.analytics != nil {
		r.analytics.Track(evt, accountID, r.ID, playerID)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
