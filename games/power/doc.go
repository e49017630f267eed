// Package power is the round and scoring engine for the tap power game.
//
// Players join with a name and a stage eligibility flag, then send power
// counts while a round accepts taps. A controller starts and ends rounds
// and opens or closes the tapping gate. Total power counts every player;
// the leaderboard only shows stage-eligible players.
package power
