package topics

const (
	// Bets
	BetPlaced = "bet_placed"

	// Resultados
	MatchSettled = "match_settled"

	// DLQs
	MatchSettledDLQ = "match_settled_dlq"

	// Canal Redis pub/sub consumido pelo results-service
	ResultsBroadcast = "match_results_broadcast"
)
