package models

import "time"

// RoomRules is the timing and scoring configuration a room runs with.
type RoomRules struct {
	// WinThreshold is the cumulative score that ends the game.
	WinThreshold int

	// BotDelayMin and BotDelayMax bound the simulated bot think time.
	BotDelayMin time.Duration
	BotDelayMax time.Duration

	// TurnTimeout auto-plays for a connected human who does not act (0 => no limit).
	TurnTimeout time.Duration

	// TakeoverDelay auto-plays for a disconnected human (0 => wait for reconnect).
	TakeoverDelay time.Duration

	// RoundPause is the time spent in round_end before the next deal.
	RoundPause time.Duration

	// HeartbeatTimeout marks a player disconnected when no heartbeat arrives in time.
	HeartbeatTimeout time.Duration
}

func DefaultRoomRules() RoomRules {
	return RoomRules{
		WinThreshold:     52,
		BotDelayMin:      600 * time.Millisecond,
		BotDelayMax:      1500 * time.Millisecond,
		TakeoverDelay:    10 * time.Second,
		RoundPause:       3 * time.Second,
		HeartbeatTimeout: 30 * time.Second,
	}
}

// BotDelaySpan is the width of the think time window.
func (r RoomRules) BotDelaySpan() time.Duration {
	if r.BotDelayMax <= r.BotDelayMin {
		return 0
	}
	return r.BotDelayMax - r.BotDelayMin
}
