package bot

import (
	"math"
	"math/rand"
)

// Engine holds the live roster for one auction and a per-room seeded
// random source, so decisions are reproducible under a fixed seed and
// fixed inputs (spec.md §8 "Bot determinism").
type Engine struct {
	teams []Franchise
	rng   *rand.Rand
}

// NewEngine builds an Engine over teams, seeded deterministically per room.
func NewEngine(teams []Franchise, seed int64) *Engine {
	return &Engine{teams: teams, rng: rand.New(rand.NewSource(seed))}
}

// Candidate is a player as the bot scoring procedure sees it.
type Candidate struct {
	Role   string // "batsman", "bowler", or "all_rounder"
	Rating int    // 0..100
}

// Decide evaluates every bot not in skip, per the five-step procedure in
// spec.md §4.F, and returns the winning team name and participant id (empty
// strings if no bot bids), plus the possibly-enlarged skip set.
func (e *Engine) Decide(player Candidate, currentBid float64, skip map[string]bool) (teamName string, participantID string, newSkip map[string]bool) {
	out := make(map[string]bool, len(skip))
	for k, v := range skip {
		out[k] = v
	}

	var bestTeam string
	var bestPID string
	var bestScore float64

	for _, team := range e.teams {
		pid := team.ParticipantID
		if pid == "" || out[pid] {
			continue
		}

		// 1. Slot-reserve check.
		acquired := team.AcquiredCount.Total()
		requiredSlots := 15 - acquired
		if requiredSlots < 0 {
			requiredSlots = 0
		}
		moneyRequired := float64(requiredSlots) * 0.30
		if moneyRequired > team.BudgetLeft-currentBid {
			out[pid] = true
			continue
		}

		// 2. Star-cap check.
		if exceedsStarCap(team, player.Rating, currentBid) {
			out[pid] = true
			continue
		}

		// 3. Role-need factor. An unrecognized role (wicket-keeper is the
		// only one in the catalogue) has no bucket in the original's role
		// match, so no bot ever bids on it.
		desired, gotCount, rolePref, ok := roleFigures(team, player.Role)
		if !ok {
			continue
		}
		roleNeed := 0.2
		if gotCount < desired {
			roleNeed = 1.0
		}

		// 4. Score composition.
		ratingScore := math.Round(float64(player.Rating)/100.0*100.0) / 100.0
		score := rolePref*0.30 + ratingScore*0.40 + team.Aggressiveness*0.20 + roleNeed*0.10
		randomFactor := e.rng.Float64()
		final := score*0.7 + randomFactor*team.RiskTaking*0.3

		// 5. Candidacy.
		if final > team.BargainThreshold {
			if final > bestScore {
				bestScore = final
				bestTeam = team.TeamName
				bestPID = pid
			}
		} else {
			out[pid] = true
		}
	}

	return bestTeam, bestPID, out
}

func exceedsStarCap(team Franchise, rating int, currentBid float64) bool {
	var divisor float64
	switch {
	case rating >= 95:
		divisor = 3
	case rating >= 90:
		divisor = 4
	case rating >= 85:
		divisor = 5
	case rating >= 80:
		divisor = 6.25
	default:
		return false
	}
	maxStarCost := math.Round(team.BudgetTotal*team.StarPlayerCap/divisor*100) / 100.0
	return currentBid > maxStarCost
}

func roleFigures(team Franchise, role string) (desired, acquired int, pref float64, ok bool) {
	switch role {
	case "batsman":
		return team.DesiredCount.Batsman, team.AcquiredCount.Batsman, team.RolePrefs.Batsman, true
	case "bowler":
		return team.DesiredCount.Bowler, team.AcquiredCount.Bowler, team.RolePrefs.Bowler, true
	case "all_rounder":
		return team.DesiredCount.AllRounder, team.AcquiredCount.AllRounder, team.RolePrefs.AllRounder, true
	default:
		return 0, 0, 0, false
	}
}

// UpdateAcquiredCount records a won player against participantID's team.
func (e *Engine) UpdateAcquiredCount(participantID, role string) {
	for i := range e.teams {
		if e.teams[i].ParticipantID != participantID {
			continue
		}
		switch role {
		case "batsman":
			e.teams[i].AcquiredCount.Batsman++
		case "bowler":
			e.teams[i].AcquiredCount.Bowler++
		case "all_rounder":
			e.teams[i].AcquiredCount.AllRounder++
		}
		return
	}
}

// UpdateBudgetLeft debits a won bid's amount from participantID's team.
func (e *Engine) UpdateBudgetLeft(participantID string, bidAmount float64) {
	for i := range e.teams {
		if e.teams[i].ParticipantID == participantID {
			e.teams[i].BudgetLeft -= bidAmount
			return
		}
	}
}

// IsBotParticipant reports whether participantID belongs to the roster.
func (e *Engine) IsBotParticipant(participantID string) bool {
	for _, t := range e.teams {
		if t.ParticipantID == participantID {
			return true
		}
	}
	return false
}

// TeamName looks up the franchise name owning participantID.
func (e *Engine) TeamName(participantID string) (string, bool) {
	for _, t := range e.teams {
		if t.ParticipantID == participantID {
			return t.TeamName, true
		}
	}
	return "", false
}
