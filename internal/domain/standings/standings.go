package standings

import (
	"sort"
	"time"

	"github.com/openbracket/tourneysync/internal/domain/adjustment"
	"github.com/openbracket/tourneysync/internal/domain/match"
	"github.com/openbracket/tourneysync/internal/domain/team"
)

// RankedTeam is one row of the computed standings table.
type RankedTeam struct {
	Rank            int     `json:"rank"`
	TeamCode        string  `json:"teamCode"`
	TeamName        string  `json:"teamName"`
	MatchesPlayed   int     `json:"matchesPlayed"`
	TotalKills      int     `json:"totalKills"`
	MatchTotal      float64 `json:"matchTotal"`
	AdjustmentTotal float64 `json:"adjustmentTotal"`
	FinalScore      float64 `json:"finalScore"`

	firstSubmission time.Time
}

// Compute turns a team roster, its approved match history and its manual
// adjustments into a ranked standings table.
//
// Per team: approved matches are scored as kills x multiplier[position],
// sorted descending, and the best countedMatches of them summed; adjustment
// deltas are added on top. Teams with neither matches nor adjustments have
// not participated and are excluded.
//
// Ties on final score break deterministically: higher total kills first,
// then earlier first approved submission, then ascending access code.
func Compute(
	teams []team.Team,
	matches []match.Match,
	adjustments []adjustment.Adjustment,
	countedMatches int,
	table match.MultiplierTable,
) []RankedTeam {
	if countedMatches < 1 {
		countedMatches = 1
	}
	if len(table) == 0 {
		table = match.DefaultMultipliers()
	}

	matchesByTeam := make(map[string][]match.Match, len(teams))
	for _, m := range matches {
		if m.Status != match.StatusApproved {
			continue
		}
		matchesByTeam[m.TeamCode] = append(matchesByTeam[m.TeamCode], m)
	}
	adjustmentsByTeam := make(map[string][]adjustment.Adjustment, len(adjustments))
	for _, a := range adjustments {
		adjustmentsByTeam[a.TeamCode] = append(adjustmentsByTeam[a.TeamCode], a)
	}

	rows := make([]RankedTeam, 0, len(teams))
	for _, t := range teams {
		teamMatches := matchesByTeam[t.AccessCode]
		teamAdjustments := adjustmentsByTeam[t.AccessCode]
		if len(teamMatches) == 0 && len(teamAdjustments) == 0 {
			continue
		}

		row := RankedTeam{
			TeamCode:      t.AccessCode,
			TeamName:      t.Name,
			MatchesPlayed: len(teamMatches),
		}

		scores := make([]float64, 0, len(teamMatches))
		for _, m := range teamMatches {
			scores = append(scores, match.ComputeScore(m.Kills, m.Position, table))
			row.TotalKills += m.Kills
			if row.firstSubmission.IsZero() || m.SubmittedAt.Before(row.firstSubmission) {
				row.firstSubmission = m.SubmittedAt
			}
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(scores)))
		counted := countedMatches
		if counted > len(scores) {
			counted = len(scores)
		}
		for _, s := range scores[:counted] {
			row.MatchTotal += s
		}

		for _, a := range teamAdjustments {
			row.AdjustmentTotal += a.Points
		}

		row.FinalScore = row.MatchTotal + row.AdjustmentTotal
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].FinalScore != rows[j].FinalScore {
			return rows[i].FinalScore > rows[j].FinalScore
		}
		if rows[i].TotalKills != rows[j].TotalKills {
			return rows[i].TotalKills > rows[j].TotalKills
		}
		iZero := rows[i].firstSubmission.IsZero()
		jZero := rows[j].firstSubmission.IsZero()
		switch {
		case iZero && !jZero:
			// Adjustment-only teams sort after teams with match history.
			return false
		case !iZero && jZero:
			return true
		case !iZero && !rows[i].firstSubmission.Equal(rows[j].firstSubmission):
			return rows[i].firstSubmission.Before(rows[j].firstSubmission)
		}
		return rows[i].TeamCode < rows[j].TeamCode
	})

	for idx := range rows {
		rows[idx].Rank = idx + 1
	}

	return rows
}
