package services

import (
	"time"
)

// TicketCooldown is the minimum gap between ticket creations per user
const TicketCooldown = 15 * time.Minute

// TicketCooldownRemaining returns how long the user must still wait before
// opening another ticket; zero when allowed
func TicketCooldownRemaining(lastTicketAt *time.Time, now time.Time) time.Duration {
	if lastTicketAt == nil {
		return 0
	}
	remaining := TicketCooldown - now.Sub(*lastTicketAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
