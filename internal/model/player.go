package model

import "time"

// Player is one participant in a room, keyed by its session ID.
//
// Chars and Errors are client-reported and stored verbatim; the server does
// not validate them against the race text (see RankingEntry for where they
// surface).
type Player struct {
	SessionID string
	Username  string
	Chars     int
	Errors    int
	StartTime *time.Time // nil until the player's current race starts
}

// PlayerSnapshot is the broadcast view of a player.
type PlayerSnapshot struct {
	Username  string     `json:"username"`
	Chars     int        `json:"chars"`
	Errors    int        `json:"errors"`
	StartTime *time.Time `json:"startTime"`
}

func (p *Player) Snapshot() *PlayerSnapshot {
	var started *time.Time
	if p.StartTime != nil {
		t := *p.StartTime
		started = &t
	}
	return &PlayerSnapshot{
		Username:  p.Username,
		Chars:     p.Chars,
		Errors:    p.Errors,
		StartTime: started,
	}
}

// RankingEntry is one row of the finish-order ranking broadcast when a race
// completes.
type RankingEntry struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
	Chars     int    `json:"chars"`
	Errors    int    `json:"errors"`
	Rank      int    `json:"rank"`
}

// RaceResult is the payload of the raceFinished broadcast.
type RaceResult struct {
	WinnerID string         `json:"winnerId"`
	Winner   string         `json:"winner"`
	Ranking  []RankingEntry `json:"ranking"`
}
