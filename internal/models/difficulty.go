package models

import (
	"fmt"
	"strings"
)

// Difficulty is an ordinal question tier, E being the easiest and A the hardest
type Difficulty string

const (
	DifficultyE Difficulty = "E"
	DifficultyD Difficulty = "D"
	DifficultyC Difficulty = "C"
	DifficultyB Difficulty = "B"
	DifficultyA Difficulty = "A"
)

// AllDifficulties lists tiers from easiest to hardest. Sessions are assembled in this order.
var AllDifficulties = []Difficulty{DifficultyE, DifficultyD, DifficultyC, DifficultyB, DifficultyA}

// ParseDifficulty converts a case-insensitive tier letter
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("invalid difficulty %q (expected one of E, D, C, B, A)", s)
	}
	return d, nil
}

// Valid reports whether d is one of the known tiers
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyE, DifficultyD, DifficultyC, DifficultyB, DifficultyA:
		return true
	}
	return false
}

// Rank returns 0 for E up to 4 for A, -1 for unknown tiers
func (d Difficulty) Rank() int {
	for i, tier := range AllDifficulties {
		if tier == d {
			return i
		}
	}
	return -1
}

// TierCounts maps a tier to a number of questions
type TierCounts map[Difficulty]int

// Total sums the counts of all tiers
func (t TierCounts) Total() int {
	total := 0
	for _, n := range t {
		total += n
	}
	return total
}

// Validate rejects unknown tiers and negative counts
func (t TierCounts) Validate() error {
	for tier, n := range t {
		if !tier.Valid() {
			return fmt.Errorf("invalid difficulty %q", tier)
		}
		if n < 0 {
			return fmt.Errorf("question count for tier %s must not be negative", tier)
		}
	}
	return nil
}
