/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Seednode/powerbox/games/power"
)

const maxNameRunes = 64

var (
	errEmptyFrame     = errors.New("empty frame")
	errUnknownEvent   = errors.New("unknown event type")
	errInvalidPayload = errors.New("invalid payload")
)

// Messages coming from clients
type clientFrame struct {
	Type string          `json:"type"`
	Ref  string          `json:"ref,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Messages sent to clients. Ref is only set on replies.
type serverFrame struct {
	Type string `json:"type"`
	Ref  string `json:"ref,omitempty"`
	Data any    `json:"data,omitempty"`
}

type joinPayload struct {
	Name          json.RawMessage `json:"name"`
	StageEligible bool            `json:"stageEligible"`
}

// decodeFrame turns one websocket text frame into a typed event, along with
// the client's correlation ref.
func decodeFrame(b []byte) (string, power.Event, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return "", nil, errEmptyFrame
	}

	var f clientFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return "", nil, fmt.Errorf("%w: %w", errInvalidPayload, err)
	}

	ev, err := decodeEvent(f.Type, f.Data)
	if err != nil {
		return f.Ref, nil, err
	}

	return f.Ref, ev, nil
}

func decodeEvent(t string, data json.RawMessage) (power.Event, error) {
	switch t {
	case power.EventJoin:
		return decodeJoin(data), nil
	case power.EventPower:
		amount, err := decodeAmount(data)
		if err != nil {
			return nil, err
		}
		return power.Power{Amount: amount}, nil
	case power.EventStartGame:
		return power.StartGame{}, nil
	case power.EventEndGame:
		return power.EndGame{}, nil
	case power.EventAllowTapping:
		return power.AllowTapping{}, nil
	case power.EventDisallowTapping:
		return power.DisallowTapping{}, nil
	case power.EventResetPower, power.EventReset:
		return power.ResetPower{}, nil
	case power.EventGetConnectionCount:
		return power.GetConnectionCount{}, nil
	case power.EventGetGameData:
		return power.GetGameData{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownEvent, t)
	}
}

// decodeJoin never fails: a missing or non-string name becomes empty and
// the engine substitutes its placeholder.
func decodeJoin(data json.RawMessage) power.Join {
	var p joinPayload
	if len(data) > 0 {
		_ = json.Unmarshal(data, &p)
	}

	var name string
	if len(p.Name) > 0 {
		_ = json.Unmarshal(p.Name, &name)
	}

	return power.Join{
		Name:          truncateRunes(strings.TrimSpace(name), maxNameRunes),
		StageEligible: p.StageEligible,
	}
}

// decodeAmount accepts either {"amount": n} or a bare number n. The amount
// must be a non-negative integer.
func decodeAmount(data json.RawMessage) (int64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: missing amount", errInvalidPayload)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("%w: %w", errInvalidPayload, err)
	}

	if m, ok := v.(map[string]any); ok {
		v = m["amount"]
	}

	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: amount is not a number", errInvalidPayload)
	}

	amount, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: amount %s is not an integer", errInvalidPayload, n)
	}
	if amount < 0 {
		return 0, fmt.Errorf("%w: negative amount %d", errInvalidPayload, amount)
	}

	return amount, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	runes := []rune(s)

	return string(runes[:n])
}
