// Package bot is the Bot Bidder (spec component F): a deterministic,
// per-room-seeded decision procedure for bot-owned participants, carrying
// the exact ten-franchise roster and scoring weights from the original IPL
// auction this engine is patterned on.
package bot

import "github.com/phanidharguttikonda0/ipl-auction-sub000/internal/catalogue"

// RolePrefs weights how much a team favors each playing role when scoring
// a candidate bid.
type RolePrefs struct {
	Batsman    float64
	Bowler     float64
	AllRounder float64
}

// RoleCounts tallies players by role, either acquired-so-far or desired.
type RoleCounts struct {
	Batsman    int
	Bowler     int
	AllRounder int
}

// Total sums all three roles.
func (r RoleCounts) Total() int {
	return r.Batsman + r.Bowler + r.AllRounder
}

// Franchise is one bot team's persistent attributes (spec.md §4.F).
type Franchise struct {
	TeamName         string
	ParticipantID    string
	Aggressiveness   float64
	RiskTaking       float64
	BudgetTotal      float64
	BudgetLeft       float64
	StarPlayerCap    float64
	BargainThreshold float64
	AcquiredCount    RoleCounts
	DesiredCount     RoleCounts
	RolePrefs        RolePrefs
}

// DefaultRoster returns the ten IPL-style franchises with their scoring
// configuration, budget_left initialized to budget_total. participantIDs
// assigns each team's configured participant id (see ProductionTeamIDs /
// DevelopmentTeamIDs).
func DefaultRoster(participantIDs map[string]string) []Franchise {
	base := []Franchise{
		{
			TeamName: "Mumbai Indians", Aggressiveness: 0.8, RiskTaking: 0.6,
			BudgetTotal: 100.00, StarPlayerCap: 0.40, BargainThreshold: 0.7,
			DesiredCount: RoleCounts{Batsman: 5, Bowler: 6, AllRounder: 4},
			RolePrefs:    RolePrefs{Batsman: 0.40, Bowler: 0.40, AllRounder: 0.20},
		},
		{
			TeamName: "Chennai Super Kings", Aggressiveness: 0.6, RiskTaking: 0.4,
			BudgetTotal: 100.00, StarPlayerCap: 0.35, BargainThreshold: 0.75,
			DesiredCount: RoleCounts{Batsman: 6, Bowler: 6, AllRounder: 3},
			RolePrefs:    RolePrefs{Batsman: 0.40, Bowler: 0.40, AllRounder: 0.20},
		},
		{
			TeamName: "Royal Challengers Bangalore", Aggressiveness: 0.7, RiskTaking: 0.75,
			BudgetTotal: 100.00, StarPlayerCap: 0.75, BargainThreshold: 0.6,
			DesiredCount: RoleCounts{Batsman: 6, Bowler: 6, AllRounder: 3},
			RolePrefs:    RolePrefs{Batsman: 0.45, Bowler: 0.40, AllRounder: 0.15},
		},
		{
			TeamName: "Sun Risers Hyderabad", Aggressiveness: 0.7, RiskTaking: 0.58,
			BudgetTotal: 100.00, StarPlayerCap: 0.40, BargainThreshold: 0.7,
			DesiredCount: RoleCounts{Batsman: 7, Bowler: 6, AllRounder: 2},
			RolePrefs:    RolePrefs{Batsman: 0.55, Bowler: 0.35, AllRounder: 0.10},
		},
		{
			TeamName: "Delhi Capitals", Aggressiveness: 0.8, RiskTaking: 0.55,
			BudgetTotal: 100.00, StarPlayerCap: 0.80, BargainThreshold: 0.65,
			DesiredCount: RoleCounts{Batsman: 5, Bowler: 6, AllRounder: 4},
			RolePrefs:    RolePrefs{Batsman: 0.30, Bowler: 0.40, AllRounder: 0.30},
		},
		{
			TeamName: "Kolkata Knight Riders", Aggressiveness: 0.55, RiskTaking: 0.5,
			BudgetTotal: 100.00, StarPlayerCap: 0.40, BargainThreshold: 0.65,
			DesiredCount: RoleCounts{Batsman: 4, Bowler: 6, AllRounder: 5},
			RolePrefs:    RolePrefs{Batsman: 0.25, Bowler: 0.35, AllRounder: 0.40},
		},
		{
			TeamName: "Lucknow Super Gaints", Aggressiveness: 0.5, RiskTaking: 0.3,
			BudgetTotal: 100.00, StarPlayerCap: 0.45, BargainThreshold: 0.80,
			DesiredCount: RoleCounts{Batsman: 7, Bowler: 5, AllRounder: 3},
			RolePrefs:    RolePrefs{Batsman: 0.55, Bowler: 0.25, AllRounder: 0.20},
		},
		{
			TeamName: "Punjab Kings", Aggressiveness: 0.85, RiskTaking: 0.8,
			BudgetTotal: 100.00, StarPlayerCap: 0.70, BargainThreshold: 0.60,
			DesiredCount: RoleCounts{Batsman: 5, Bowler: 4, AllRounder: 6},
			RolePrefs:    RolePrefs{Batsman: 0.35, Bowler: 0.20, AllRounder: 0.45},
		},
		{
			TeamName: "Gujarat Titans", Aggressiveness: 0.6, RiskTaking: 0.35,
			BudgetTotal: 100.00, StarPlayerCap: 0.35, BargainThreshold: 0.75,
			DesiredCount: RoleCounts{Batsman: 6, Bowler: 6, AllRounder: 3},
			RolePrefs:    RolePrefs{Batsman: 0.35, Bowler: 0.30, AllRounder: 0.25},
		},
		{
			TeamName: "Rajasthan Royals", Aggressiveness: 0.55, RiskTaking: 0.35,
			BudgetTotal: 100.00, StarPlayerCap: 0.30, BargainThreshold: 0.80,
			DesiredCount: RoleCounts{Batsman: 7, Bowler: 5, AllRounder: 3},
			RolePrefs:    RolePrefs{Batsman: 0.60, Bowler: 0.25, AllRounder: 0.15},
		},
	}

	for i := range base {
		base[i].BudgetLeft = base[i].BudgetTotal
		base[i].ParticipantID = participantIDs[base[i].TeamName]
	}
	return base
}

// ProductionTeamIDs and DevelopmentTeamIDs are the static team-name to
// participant-id maps (spec.md §6 Configuration: "production flag selects
// bot id map"); selection is config, never data.
var ProductionTeamIDs = map[string]string{
	"Mumbai Indians":             "74",
	"Chennai Super Kings":        "75",
	"Sun Risers Hyderabad":       "76",
	"Punjab Kings":               "77",
	"Rajasthan Royals":           "78",
	"Royal Challengers Bangalore": "79",
	"Kolkata Knight Riders":       "80",
	"Delhi Capitals":              "81",
	"Lucknow Super Gaints":        "82",
	"Gujarat Titans":              "83",
}

var DevelopmentTeamIDs = map[string]string{
	"Mumbai Indians":             "7",
	"Chennai Super Kings":        "8",
	"Sun Risers Hyderabad":       "9",
	"Punjab Kings":               "10",
	"Rajasthan Royals":           "11",
	"Royal Challengers Bangalore": "12",
	"Kolkata Knight Riders":       "13",
	"Delhi Capitals":              "14",
	"Lucknow Super Gaints":        "15",
	"Gujarat Titans":              "16",
}

// RoleOf maps a catalogue role into the three RoleCounts buckets the bot
// scoring cares about. Wicket-keepers (and anything else unrecognized)
// return "", matching the original's role match arm (`_ => continue`):
// no bot ever bids on a wicket-keeper item.
func RoleOf(role catalogue.Role) string {
	switch role {
	case catalogue.RoleBatsman:
		return "batsman"
	case catalogue.RoleBowler:
		return "bowler"
	case catalogue.RoleAllRounder:
		return "all_rounder"
	default:
		return ""
	}
}
