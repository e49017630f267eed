package power

// Inbound event names, as sent by clients.
const (
	EventJoin               = "join"
	EventPower              = "power"
	EventStartGame          = "startGame"
	EventEndGame            = "endGame"
	EventAllowTapping       = "allowTapping"
	EventDisallowTapping    = "disallowTapping"
	EventResetPower         = "resetPower"
	EventReset              = "reset" // older clients; same as EventResetPower
	EventGetConnectionCount = "getConnectionCount"
	EventGetGameData        = "getGameData"
	EventDisconnect         = "disconnect"
)

// Outbound message names.
const (
	MsgSessionInfo       = "sessionInfo"
	MsgGameStarted       = "gameStarted"
	MsgGameEnded         = "gameEnded"
	MsgTappingAllowed    = "tappingAllowed"
	MsgTappingDisallowed = "tappingDisallowed"
	MsgUpdatePower       = "updatePower"
	MsgUpdateLeaderboard = "updateLeaderboard"
)

// Event is one already-validated inbound event.
type Event interface {
	EventName() string
}

type Join struct {
	Name          string
	StageEligible bool
}

type Power struct {
	Amount int64
}

type (
	StartGame          struct{}
	EndGame            struct{}
	AllowTapping       struct{}
	DisallowTapping    struct{}
	ResetPower         struct{}
	GetConnectionCount struct{}
	GetGameData        struct{}
	Disconnect         struct{}
)

func (Join) EventName() string               { return EventJoin }
func (Power) EventName() string              { return EventPower }
func (StartGame) EventName() string          { return EventStartGame }
func (EndGame) EventName() string            { return EventEndGame }
func (AllowTapping) EventName() string       { return EventAllowTapping }
func (DisallowTapping) EventName() string    { return EventDisallowTapping }
func (ResetPower) EventName() string         { return EventResetPower }
func (GetConnectionCount) EventName() string { return EventGetConnectionCount }
func (GetGameData) EventName() string        { return EventGetGameData }
func (Disconnect) EventName() string         { return EventDisconnect }

// Message is one outbound reply or broadcast.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Outcome is what handling one event produced. Broadcasts are in the
// order they must reach every client.
type Outcome struct {
	Reply      *Message
	Broadcasts []Message
	Accepted   bool
}

type JoinReply struct {
	IsGameActive   bool   `json:"isGameActive"`
	DisplayName    string `json:"displayName"`
	TappingAllowed bool   `json:"tappingAllowed"`
}

// GameData is both the getGameData reply and the gameEnded snapshot.
type GameData struct {
	TotalPower  int64   `json:"totalPower"`
	Leaderboard []Entry `json:"leaderboard"`
}

type PowerUpdate struct {
	TotalPower int64 `json:"totalPower"`
}

type LeaderboardUpdate struct {
	Leaderboard []Entry `json:"leaderboard"`
}

type SessionInfo struct {
	IsGameActive   bool  `json:"isGameActive"`
	TappingAllowed bool  `json:"tappingAllowed"`
	TotalPower     int64 `json:"totalPower"`
}
