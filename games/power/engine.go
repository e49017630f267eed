package power

import (
	"go.uber.org/zap"
)

type Options struct {
	// GatedTapping requires allowTapping before contributions count.
	GatedTapping bool
	// ClearOnEnd removes every player and restarts numbering at endGame.
	ClearOnEnd       bool
	LeaderboardLimit int
	NamePrefix       string
	DefaultName      string
}

func DefaultOptions() Options {
	return Options{
		GatedTapping:     true,
		LeaderboardLimit: DefaultLeaderboardLimit,
		NamePrefix:       "#",
		DefaultName:      "Anonymous",
	}
}

// Engine owns the registry and round state. It is not safe for concurrent
// use; callers serialize every call through a single goroutine.
type Engine struct {
	opts    Options
	players *Registry
	round   Round
	logger  *zap.Logger
}

func NewEngine(opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LeaderboardLimit <= 0 {
		opts.LeaderboardLimit = DefaultLeaderboardLimit
	}

	return &Engine{
		opts:    opts,
		players: NewRegistry(opts.NamePrefix, opts.DefaultName),
		logger:  logger,
	}
}

// Handle applies ev on behalf of connID.
func (e *Engine) Handle(connID string, ev Event) Outcome {
	switch ev := ev.(type) {
	case Join:
		return e.Join(connID, ev.Name, ev.StageEligible)
	case Power:
		return e.Contribute(connID, ev.Amount)
	case StartGame:
		return e.StartGame()
	case EndGame:
		return e.EndGame()
	case AllowTapping:
		return e.AllowTapping()
	case DisallowTapping:
		return e.DisallowTapping()
	case ResetPower:
		return e.ResetPower()
	case GetConnectionCount:
		return Outcome{Reply: &Message{Type: EventGetConnectionCount, Data: e.players.Count()}}
	case GetGameData:
		data := e.GameData()
		return Outcome{Reply: &Message{Type: EventGetGameData, Data: data}}
	case Disconnect:
		return e.Leave(connID)
	default:
		e.logger.Debug("ignoring unknown event", zap.String("conn", connID))
		return Outcome{}
	}
}

func (e *Engine) Join(connID, rawName string, stageEligible bool) Outcome {
	displayName := e.players.Join(connID, rawName, stageEligible)

	e.logger.Debug("player joined",
		zap.String("conn", connID),
		zap.String("display_name", displayName),
		zap.Bool("stage_eligible", stageEligible),
	)

	out := Outcome{
		Accepted: true,
		Reply: &Message{Type: EventJoin, Data: JoinReply{
			IsGameActive:   e.round.Active(),
			DisplayName:    displayName,
			TappingAllowed: e.round.TappingAllowed(),
		}},
	}
	if stageEligible {
		out.Broadcasts = e.updates()
	}

	return out
}

// Contribute applies amount when the round accepts taps and the player is
// registered. Anything else is dropped without a reply.
func (e *Engine) Contribute(connID string, amount int64) Outcome {
	if !e.round.Accepts(e.opts.GatedTapping) {
		return Outcome{}
	}
	if !e.players.Contribute(connID, amount) {
		return Outcome{}
	}

	return Outcome{Accepted: true, Broadcasts: e.updates()}
}

func (e *Engine) StartGame() Outcome {
	e.round.Start()
	e.players.ResetAllScores()

	e.logger.Info("round started", zap.Int("players", e.players.Count()))

	broadcasts := []Message{{Type: MsgGameStarted}}
	if e.opts.GatedTapping {
		broadcasts = append(broadcasts, Message{Type: MsgTappingDisallowed})
	}

	return Outcome{Accepted: true, Broadcasts: append(broadcasts, e.updates()...)}
}

// EndGame closes the round and broadcasts the final snapshot. Calling it
// while idle re-broadcasts the current snapshot.
func (e *Engine) EndGame() Outcome {
	e.round.End()

	final := e.GameData()

	e.logger.Info("round ended",
		zap.Int64("total_power", final.TotalPower),
		zap.Int("players", e.players.Count()),
	)

	if e.opts.ClearOnEnd {
		e.players.ResetAll()
	}

	broadcasts := []Message{{Type: MsgGameEnded, Data: final}}

	return Outcome{Accepted: true, Broadcasts: append(broadcasts, e.updates()...)}
}

func (e *Engine) AllowTapping() Outcome {
	if !e.round.AllowTapping() {
		e.logger.Debug("ignoring allowTapping outside an active round")
		return Outcome{}
	}

	return Outcome{Accepted: true, Broadcasts: []Message{{Type: MsgTappingAllowed}}}
}

func (e *Engine) DisallowTapping() Outcome {
	e.round.DisallowTapping()

	return Outcome{Accepted: true, Broadcasts: []Message{{Type: MsgTappingDisallowed}}}
}

// ResetPower zeroes every score without touching the round flags.
func (e *Engine) ResetPower() Outcome {
	e.players.ResetAllScores()

	return Outcome{Accepted: true, Broadcasts: e.updates()}
}

func (e *Engine) Leave(connID string) Outcome {
	p, ok := e.players.Leave(connID)
	if !ok {
		return Outcome{}
	}

	e.logger.Debug("player left",
		zap.String("conn", connID),
		zap.String("display_name", p.DisplayName),
	)

	return Outcome{Accepted: true, Broadcasts: e.updates()}
}

func (e *Engine) ConnectionCount() int {
	return e.players.Count()
}

func (e *Engine) TotalPower() int64 {
	return TotalPower(e.players.Players())
}

func (e *Engine) Leaderboard() []Entry {
	return Leaderboard(e.players.Players(), e.opts.LeaderboardLimit)
}

func (e *Engine) GameData() GameData {
	players := e.players.Players()

	return GameData{
		TotalPower:  TotalPower(players),
		Leaderboard: Leaderboard(players, e.opts.LeaderboardLimit),
	}
}

func (e *Engine) SessionInfo() SessionInfo {
	return SessionInfo{
		IsGameActive:   e.round.Active(),
		TappingAllowed: e.round.TappingAllowed(),
		TotalPower:     e.TotalPower(),
	}
}

func (e *Engine) Active() bool {
	return e.round.Active()
}

func (e *Engine) TappingAllowed() bool {
	return e.round.TappingAllowed()
}

// Score returns the current score for connID.
func (e *Engine) Score(connID string) (int64, bool) {
	p, ok := e.players.Lookup(connID)
	if !ok {
		return 0, false
	}

	return p.Score, true
}

func (e *Engine) updates() []Message {
	data := e.GameData()

	return []Message{
		{Type: MsgUpdatePower, Data: PowerUpdate{TotalPower: data.TotalPower}},
		{Type: MsgUpdateLeaderboard, Data: LeaderboardUpdate{Leaderboard: data.Leaderboard}},
	}
}
