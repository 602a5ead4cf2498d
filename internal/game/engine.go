package game

import (
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Game is one authoritative game instance. It is not safe for concurrent
// use: every call is serialized through the owning actor loop, so the
// engine itself never locks.
type Game struct {
	id  string
	cfg Config
	log *slog.Logger
	rnd *mathrand.Rand
	now func() time.Time

	phase    Phase
	round    int
	deadline time.Time

	host string

	market *Market
	reg    *Registry
	deck   *Deck
	tally  *Tally

	messages   []Message
	eliminated []string
	winner     Role

	createdAt time.Time
	pending   []Event
}

// NewGame builds a game in the waiting phase. A zero cfg.Seed seeds the
// RNG from the clock; tests pass a fixed seed for reproducible runs.
func NewGame(id string, cfg Config, logger *slog.Logger) *Game {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := mathrand.New(mathrand.NewSource(seed))
	g := &Game{
		id:        id,
		cfg:       cfg,
		log:       logger.With("game_id", id),
		rnd:       rnd,
		now:       time.Now,
		phase:     PhaseWaiting,
		reg:       newRegistry(),
		tally:     newTally(),
		createdAt: time.Now(),
	}
	g.market = NewMarket(cfg.MarketMode, rnd)
	g.deck = newDeck(rnd)
	return g
}

// ID returns the game's join code.
func (g *Game) ID() string { return g.id }

// Phase returns the current phase.
func (g *Game) Phase() Phase { return g.phase }

// Round returns the current round number. Zero means not started.
func (g *Game) Round() int { return g.round }

// Deadline returns when the current phase times out. Zero when no timer
// is running (waiting, game_end).
func (g *Game) Deadline() time.Time { return g.deadline }

// HostID returns the id of the hosting player.
func (g *Game) HostID() string { return g.host }

// Winner returns the winning faction once the game has ended.
func (g *Game) Winner() Role { return g.winner }

// Join adds a player while the game waits for its start. The first
// player to join hosts the game.
func (g *Game) Join(name string, isAI bool) (*Player, error) {
	if g.phase == PhaseGameEnd {
		return nil, ErrGameEnded
	}
	if g.phase != PhaseWaiting {
		return nil, ErrGameStarted
	}
	if g.reg.len() >= g.cfg.MaxPlayers {
		return nil, fmt.Errorf("%w: %d seats", ErrGameFull, g.cfg.MaxPlayers)
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	p := newPlayer(uuid.NewString(), SanitizeName(name), isAI, g.now())
	g.reg.add(p)
	if g.host == "" {
		g.host = p.ID
	}
	g.addSystemMessage(p.Name + " joined the table.")
	g.emit(EventPlayerJoined, "", PlayerJoined{
		Player:      g.playerView(p, false),
		PlayerCount: g.reg.len(),
		MaxPlayers:  g.cfg.MaxPlayers,
	})
	g.emitSnapshot()
	return p, nil
}

// AddAI seats one scripted player. Host only, waiting phase only.
func (g *Game) AddAI(actor string) (*Player, error) {
	if err := g.requireHost(actor); err != nil {
		return nil, err
	}
	return g.Join(g.botName(), true)
}

// AdvancePhase moves the game forward one step: from waiting it starts
// the game, from voting it closes the round. Host only.
func (g *Game) AdvancePhase(actor string) error {
	if err := g.requireHost(actor); err != nil {
		return err
	}
	if g.phase == PhaseWaiting {
		return g.start()
	}
	g.transition()
	return nil
}

// ForceTimeout advances the game only if it still sits in the given
// phase and round with its deadline passed. The scheduler may call it
// any number of times; stale calls are no-ops.
func (g *Game) ForceTimeout(phase Phase, round int) bool {
	if g.phase != phase || g.round != round || !phase.Active() {
		return false
	}
	if g.deadline.IsZero() || g.now().Before(g.deadline) {
		return false
	}
	g.log.Info("phase timed out", "phase", phase, "round", round)
	g.transition()
	return true
}

// Invest executes a buy or sell order at the current price.
func (g *Game) Invest(actor, symbol, action string, shares int64) (TradeRecord, error) {
	var rec TradeRecord
	if g.phase == PhaseGameEnd {
		return rec, ErrGameEnded
	}
	p, ok := g.reg.get(actor)
	if !ok {
		return rec, fmt.Errorf("%w: %s", ErrPlayerNotFound, actor)
	}
	if g.phase != PhaseInvestment {
		return rec, fmt.Errorf("%w: orders are only open during the investment phase", ErrWrongPhase)
	}
	if !p.Alive {
		return rec, ErrPlayerDead
	}
	if p.FrozenRound == g.round {
		return rec, fmt.Errorf("%w: until round %d ends", ErrFrozen, g.round)
	}

	var err error
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionBuy:
		rec, err = g.market.Buy(p, symbol, shares, g.round, g.now())
	case ActionSell:
		rec, err = g.market.Sell(p, symbol, shares, g.round, g.now())
	default:
		return rec, fmt.Errorf("%w: action must be buy or sell", ErrInvalidInput)
	}
	if err != nil {
		return rec, err
	}
	g.emitSnapshot()
	return rec, nil
}

// UseCard plays a card from the actor's hand. Cards may be played in any
// active phase. The returned payload carries the caller-only extras;
// subscribers get the public portion.
func (g *Game) UseCard(actor, cardID, targetID string) (CardPlayed, error) {
	var out CardPlayed
	if g.phase == PhaseGameEnd {
		return out, ErrGameEnded
	}
	if !g.phase.Active() {
		return out, fmt.Errorf("%w: cards cannot be played before the game starts", ErrWrongPhase)
	}
	p, ok := g.reg.get(actor)
	if !ok {
		return out, fmt.Errorf("%w: %s", ErrPlayerNotFound, actor)
	}
	if !p.Alive {
		return out, ErrPlayerDead
	}
	card, ok := p.holdCard(cardID)
	if !ok {
		return out, fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	spec, ok := cardSpecByKey(card.Key)
	if !ok {
		return out, fmt.Errorf("%w: %s", ErrCardNotFound, card.Key)
	}
	if spec.UndercoverOnly && p.Role != RoleUndercover {
		return out, fmt.Errorf("%w: %s", ErrCardRoleLocked, spec.Name)
	}

	var target *Player
	if spec.NeedsTarget {
		if targetID == "" {
			return out, fmt.Errorf("%w: %s needs a target", ErrInvalidTarget, spec.Name)
		}
		if targetID == actor {
			return out, fmt.Errorf("%w: cannot target yourself", ErrInvalidTarget)
		}
		target, ok = g.reg.get(targetID)
		if !ok {
			return out, fmt.Errorf("%w: %s", ErrTargetNotFound, targetID)
		}
		if !target.Alive {
			return out, fmt.Errorf("%w: %s", ErrTargetDead, target.Name)
		}
	}

	outcome, err := g.applyCard(p, spec, target)
	if err != nil {
		return out, err
	}
	p.removeCard(card.ID)

	g.addSystemMessage(outcome.public)
	played := CardPlayed{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Card:       cardView(card),
		Message:    outcome.public,
		Extra:      outcome.broadcastExtra,
	}
	if target != nil {
		played.TargetID = target.ID
		played.TargetName = target.Name
	}
	g.emit(EventCardPlayed, "", played)
	g.emit(EventHandUpdate, p.ID, HandUpdate{Cards: handViews(p)})
	g.emitSnapshot()

	out = played
	if len(outcome.privateExtra) > 0 {
		merged := make(map[string]any, len(outcome.broadcastExtra)+len(outcome.privateExtra))
		for k, v := range outcome.broadcastExtra {
			merged[k] = v
		}
		for k, v := range outcome.privateExtra {
			merged[k] = v
		}
		out.Extra = merged
	}
	return out, nil
}

// Vote casts or replaces the actor's elimination vote.
func (g *Game) Vote(actor, targetID string) (map[string]int, error) {
	if g.phase == PhaseGameEnd {
		return nil, ErrGameEnded
	}
	p, ok := g.reg.get(actor)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, actor)
	}
	if g.phase != PhaseVoting {
		return nil, fmt.Errorf("%w: voting is not open", ErrWrongPhase)
	}
	if !p.Alive {
		return nil, ErrPlayerDead
	}
	if targetID == actor {
		return nil, ErrSelfVote
	}
	target, ok := g.reg.get(targetID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, targetID)
	}
	if !target.Alive {
		return nil, fmt.Errorf("%w: %s", ErrTargetDead, target.Name)
	}
	g.tally.Cast(actor, targetID)
	p.VoteLog = append(p.VoteLog, VoteRecord{Round: g.round, Target: targetID, At: g.now()})
	g.emitSnapshot()
	return g.tally.Counts(), nil
}

// SendMessage appends a chat line and broadcasts it.
func (g *Game) SendMessage(actor, text string) (MessageView, error) {
	var mv MessageView
	if g.phase == PhaseGameEnd {
		return mv, ErrGameEnded
	}
	p, ok := g.reg.get(actor)
	if !ok {
		return mv, fmt.Errorf("%w: %s", ErrPlayerNotFound, actor)
	}
	if !p.Alive {
		return mv, ErrPlayerDead
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return mv, fmt.Errorf("%w: empty message", ErrInvalidInput)
	}
	if len([]rune(text)) > MaxMessageLen {
		return mv, fmt.Errorf("%w: message longer than %d characters", ErrInvalidInput, MaxMessageLen)
	}
	m := Message{
		ID:         uuid.NewString(),
		Type:       MessageChat,
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Text:       text,
		At:         g.now(),
	}
	g.appendMessage(m)
	mv = messageView(m)
	g.emit(EventNewMessage, "", mv)
	return mv, nil
}

func (g *Game) requireHost(actor string) error {
	if g.phase == PhaseGameEnd {
		return ErrGameEnded
	}
	if _, ok := g.reg.get(actor); !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, actor)
	}
	if actor != g.host {
		return ErrNotHost
	}
	return nil
}

func (g *Game) start() error {
	if g.cfg.AIFill {
		for g.reg.len() < g.cfg.MaxPlayers {
			if _, err := g.Join(g.botName(), true); err != nil {
				break
			}
		}
	}
	if g.reg.len() < MinPlayers {
		return fmt.Errorf("%w: need at least %d, have %d", ErrNotEnoughPlayers, MinPlayers, g.reg.len())
	}
	g.assignRoles()
	for _, p := range g.reg.byJoinOrder() {
		p.Hand = append(p.Hand, g.deck.DrawN(StartingHandSize)...)
	}
	g.round = 1
	g.addSystemMessage("The market opens. Round 1 begins.")
	g.emit(EventGameStarted, "", GameStarted{
		Round:           1,
		PlayerCount:     g.reg.len(),
		UndercoverCount: g.reg.aliveByRole(RoleUndercover),
	})
	for _, p := range g.reg.byJoinOrder() {
		g.emit(EventRoleAssigned, p.ID, RoleAssigned{Role: p.Role, Description: roleDescription(p.Role)})
		g.emit(EventHandUpdate, p.ID, HandUpdate{Cards: handViews(p)})
	}
	g.enterInvestment()
	return nil
}

// assignRoles shuffles the roster and marks roughly a third undercover,
// always at least one.
func (g *Game) assignRoles() {
	players := g.reg.byJoinOrder()
	g.rnd.Shuffle(len(players), func(i, j int) {
		players[i], players[j] = players[j], players[i]
	})
	undercover := len(players) / 3
	if undercover < 1 {
		undercover = 1
	}
	for i, p := range players {
		if i < undercover {
			p.Role = RoleUndercover
		} else {
			p.Role = RoleCivilian
		}
	}
}

func (g *Game) transition() {
	switch g.phase {
	case PhaseInvestment:
		g.setPhase(PhaseDiscussion, g.cfg.DiscussionDuration)
	case PhaseDiscussion:
		g.setPhase(PhaseVoting, g.cfg.VotingDuration)
	case PhaseVoting:
		g.closeVoting()
	}
}

// enterInvestment applies the round-end price update before opening the
// order window, so every investment phase starts on fresh prices.
func (g *Game) enterInvestment() {
	ev := g.market.AdvanceRound(g.round)
	if ev != nil {
		g.addSystemMessage(ev.Description)
		g.emit(EventMarketEvent, "", marketEventView(ev))
	}
	g.setPhase(PhaseInvestment, g.cfg.InvestmentDuration)
}

func (g *Game) closeVoting() {
	outcome := g.tally.Close(func(id string) bool {
		p, ok := g.reg.get(id)
		return ok && p.Alive
	})

	var eliminatedName string
	switch {
	case outcome.Eliminated != "":
		p, _ := g.reg.get(outcome.Eliminated)
		p.eliminate(g.round)
		g.eliminated = append(g.eliminated, p.ID)
		eliminatedName = p.Name
		g.addSystemMessage(fmt.Sprintf("%s was voted out. They were %s.", p.Name, roleLabel(p.Role)))
		g.emit(EventPlayerEliminated, "", PlayerEliminated{
			PlayerID: p.ID,
			Name:     p.Name,
			Role:     p.Role,
			Round:    g.round,
			Counts:   outcome.Counts,
		})
	case outcome.Tied:
		g.addSystemMessage("The vote tied. Nobody was eliminated.")
	default:
		g.addSystemMessage("No votes were cast. Nobody was eliminated.")
	}

	winner, done := g.evaluateWin()
	if done {
		g.finish(winner, eliminatedName)
		return
	}

	g.round++
	g.tally = newTally()
	for _, p := range g.reg.alive() {
		p.Hand = append(p.Hand, g.deck.Draw())
		g.emit(EventHandUpdate, p.ID, HandUpdate{Cards: handViews(p)})
	}
	g.enterInvestment()
}

func (g *Game) evaluateWin() (Role, bool) {
	undercover := g.reg.aliveByRole(RoleUndercover)
	civilians := g.reg.aliveByRole(RoleCivilian)
	switch {
	case undercover == 0:
		return RoleCivilian, true
	case undercover >= civilians:
		return RoleUndercover, true
	case g.round >= g.cfg.MaxRounds:
		// Round limit: the larger surviving faction takes it.
		if civilians > undercover {
			return RoleCivilian, true
		}
		return RoleUndercover, true
	}
	return "", false
}

func (g *Game) finish(winner Role, eliminated string) {
	g.winner = winner
	for _, p := range g.reg.byJoinOrder() {
		p.RoleRevealed = true
	}
	g.addSystemMessage(fmt.Sprintf("Game over after %d rounds. The %s side wins.", g.round, winner))
	end := GameEnd{Winner: winner, Eliminated: eliminated, Rounds: g.round}
	for _, p := range g.reg.byJoinOrder() {
		end.Players = append(end.Players, g.playerView(p, false))
	}
	g.emit(EventGameEnd, "", end)
	g.setPhase(PhaseGameEnd, 0)
	g.log.Info("game finished", "winner", winner, "rounds", g.round, "players", g.reg.len())
}

func (g *Game) setPhase(p Phase, d time.Duration) {
	g.phase = p
	if d > 0 {
		g.deadline = g.now().Add(d)
	} else {
		g.deadline = time.Time{}
	}
	g.emit(EventPhaseChange, "", PhaseChange{
		Phase:         p,
		Round:         g.round,
		TimeRemaining: g.timeRemaining(),
	})
	g.emitSnapshot()
}

func (g *Game) timeRemaining() int {
	if g.deadline.IsZero() {
		return 0
	}
	rem := int(g.deadline.Sub(g.now()).Seconds())
	if rem < 0 {
		return 0
	}
	return rem
}

func (g *Game) appendMessage(m Message) {
	g.messages = append(g.messages, m)
	if len(g.messages) > MessageHistoryCap {
		g.messages = g.messages[len(g.messages)-MessageHistoryCap:]
	}
}

func (g *Game) addSystemMessage(text string) {
	m := Message{
		ID:   uuid.NewString(),
		Type: MessageSystem,
		Text: text,
		At:   g.now(),
	}
	g.appendMessage(m)
	g.emit(EventNewMessage, "", messageView(m))
}

// result is the digest handed to the archive when the game ends.
func (g *Game) result() ArchiveRecord {
	rec := ArchiveRecord{
		GameID:    g.id,
		Winner:    g.winner,
		Rounds:    g.round,
		CreatedAt: g.createdAt,
		EndedAt:   g.now(),
	}
	for _, p := range g.reg.byJoinOrder() {
		rec.Players = append(rec.Players, ArchivePlayer{
			ID:             p.ID,
			Name:           p.Name,
			Role:           p.Role,
			IsAI:           p.IsAI,
			Alive:          p.Alive,
			NetWorthMicros: p.NetWorthMicros(g.market),
			Suspicion:      p.Suspicion,
			Trust:          p.Trust,
		})
	}
	return rec
}

var botNames = []string{
	"Sterling", "Harper", "Quincy", "Marlow",
	"Indigo", "Juno", "Baxter", "Piper",
}

func (g *Game) botName() string {
	start := g.rnd.Intn(len(botNames))
	for i := 0; i < len(botNames); i++ {
		name := botNames[(start+i)%len(botNames)] + " (AI)"
		if !g.nameTaken(name) {
			return name
		}
	}
	return fmt.Sprintf("Bot-%d (AI)", g.reg.len()+1)
}

func (g *Game) nameTaken(name string) bool {
	for _, p := range g.reg.byJoinOrder() {
		if p.Name == name {
			return true
		}
	}
	return false
}

func handViews(p *Player) []CardView {
	out := make([]CardView, 0, len(p.Hand))
	for _, c := range p.Hand {
		out = append(out, cardView(c))
	}
	return out
}

func roleDescription(r Role) string {
	if r == RoleUndercover {
		return "You are undercover. Blend in, steer the vote, and outlast the civilians."
	}
	return "You are a civilian. Watch the trades, read the table, and vote the undercover out."
}

func roleLabel(r Role) string {
	if r == RoleUndercover {
		return "an undercover agent"
	}
	return "a civilian"
}

// ArchiveRecord is the digest persisted when a game finishes.
type ArchiveRecord struct {
	GameID    string
	Winner    Role
	Rounds    int
	CreatedAt time.Time
	EndedAt   time.Time
	Players   []ArchivePlayer
}

type ArchivePlayer struct {
	ID             string
	Name           string
	Role           Role
	IsAI           bool
	Alive          bool
	NetWorthMicros int64
	Suspicion      int
	Trust          int
}
