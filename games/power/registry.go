package power

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// Player is one connected contributor.
type Player struct {
	ConnID        string
	RawName       string
	DisplayName   string
	Score         int64
	StageEligible bool
	Seq           int
}

// Registry maps connection ids to players. It is not safe for concurrent use.
type Registry struct {
	players     map[string]*Player
	joinCounter int

	namePrefix  string
	defaultName string
}

func NewRegistry(namePrefix, defaultName string) *Registry {
	return &Registry{
		players:     make(map[string]*Player),
		namePrefix:  namePrefix,
		defaultName: defaultName,
	}
}

// Join inserts a fresh player for connID, replacing any existing entry,
// and returns the derived display name.
func (r *Registry) Join(connID, rawName string, stageEligible bool) string {
	name := strings.TrimSpace(rawName)
	if name == "" {
		name = r.defaultName
	}

	r.joinCounter++

	p := &Player{
		ConnID:        connID,
		RawName:       name,
		DisplayName:   r.namePrefix + strconv.Itoa(r.joinCounter) + " " + name,
		StageEligible: stageEligible,
		Seq:           r.joinCounter,
	}
	r.players[connID] = p

	return p.DisplayName
}

// Leave removes the player for connID and reports whether one was present.
func (r *Registry) Leave(connID string) (Player, bool) {
	p, ok := r.players[connID]
	if !ok {
		return Player{}, false
	}
	delete(r.players, connID)

	return *p, true
}

// Contribute adds amount to the player's score, saturating at
// math.MaxInt64. Sign is not checked here.
func (r *Registry) Contribute(connID string, amount int64) bool {
	p, ok := r.players[connID]
	if !ok {
		return false
	}
	p.Score = saturatingAdd(p.Score, amount)

	return true
}

func (r *Registry) Lookup(connID string) (Player, bool) {
	p, ok := r.players[connID]
	if !ok {
		return Player{}, false
	}

	return *p, true
}

func (r *Registry) ResetAllScores() {
	for _, p := range r.players {
		p.Score = 0
	}
}

// ResetAll drops every player and restarts the join counter.
func (r *Registry) ResetAll() {
	clear(r.players)
	r.joinCounter = 0
}

func (r *Registry) Count() int {
	return len(r.players)
}

// Players returns copies of every player in join order.
func (r *Registry) Players() []Player {
	out := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}

	slices.SortFunc(out, func(a, b Player) int {
		return a.Seq - b.Seq
	})

	return out
}

func saturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}

	return a + b
}
