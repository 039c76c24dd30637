package domain

import "time"

// LamportsPerSol is the lamport denomination of one SOL.
const LamportsPerSol = 1_000_000_000

// LamportsToUSD converts a lamport amount to USD at the given SOL price.
func LamportsToUSD(lamports int64, solUSD float64) float64 {
	return float64(lamports) / LamportsPerSol * solUSD
}

// LamportsToSol converts a lamport amount to SOL.
func LamportsToSol(lamports int64) float64 {
	return float64(lamports) / LamportsPerSol
}

// DayStart truncates t to UTC midnight and returns it as unix milliseconds.
// This is the day-granularity bucket used as the reward timestamp key and
// for price lookups.
func DayStart(t time.Time) int64 {
	u := t.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return day.UnixMilli()
}
