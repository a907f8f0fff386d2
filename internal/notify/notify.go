package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Notifier delivers user-facing messages. Delivery is best-effort:
// implementations log failures and never surface them to callers.
type Notifier interface {
	LeagueFinalized(ctx context.Context, leagueID int, leagueName string, winnerIDs []int)
	DeadlineReminder(ctx context.Context, userID, leagueID int, leagueName string, hoursLeft int)
	PlayerSubstituted(ctx context.Context, leagueID, entryID, outPlayerID, inPlayerID int)
	RankChanged(ctx context.Context, leagueID, entryID int, entryName string, oldRank, newRank int)
}

// LogNotifier writes notifications to the structured log. It stands in
// for the mail/push channel in environments without one configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) LeagueFinalized(_ context.Context, leagueID int, leagueName string, winnerIDs []int) {
	log.Info().
		Int("league_id", leagueID).
		Str("league_name", leagueName).
		Ints("winner_ids", winnerIDs).
		Msg("League finalized notification")
}

func (n *LogNotifier) DeadlineReminder(_ context.Context, userID, leagueID int, leagueName string, hoursLeft int) {
	log.Info().
		Int("user_id", userID).
		Int("league_id", leagueID).
		Str("league_name", leagueName).
		Int("hours_left", hoursLeft).
		Msg("Entry deadline reminder notification")
}

func (n *LogNotifier) RankChanged(_ context.Context, leagueID, entryID int, entryName string, oldRank, newRank int) {
	log.Info().
		Int("league_id", leagueID).
		Int("entry_id", entryID).
		Str("entry_name", entryName).
		Int("old_rank", oldRank).
		Int("new_rank", newRank).
		Msg("Rank change notification")
}

func (n *LogNotifier) PlayerSubstituted(_ context.Context, leagueID, entryID, outPlayerID, inPlayerID int) {
	log.Info().
		Int("league_id", leagueID).
		Int("entry_id", entryID).
		Int("out_player_id", outPlayerID).
		Int("in_player_id", inPlayerID).
		Msg("Player substitution notification")
}
