package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/badminton-bet-platform/pkg/contracts/events"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestPublishMatchSettled_KeyedByMatch(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(nil, w)

	err := p.PublishMatchSettled(context.Background(), events.MatchSettled{
		MatchID: "m-1", Winner: "TeamX", BetsSettled: 1, TotalPayout: "40.00",
		Outcomes: []events.BetOutcome{{BetID: "b-1", UserID: "u-1", Status: "won", Payout: "40.00"}},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "m-1", string(w.msgs[0].Key))

	var got events.MatchSettled
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "TeamX", got.Winner)
	require.Len(t, got.Outcomes, 1)
	assert.Equal(t, "40.00", got.Outcomes[0].Payout)
}

func TestPublishBetPlaced(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, nil)

	require.NoError(t, p.PublishBetPlaced(context.Background(), events.BetPlaced{BetID: "b-1", MatchID: "m-9", Amount: "5.00"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "m-9", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"bet_id":"b-1","user_id":"","match_id":"m-9","selected_team":"","amount":"5.00",
		"potential_winnings":"","balance_after":"","placed_at":"0001-01-01T00:00:00Z"}`, string(w.msgs[0].Value))

	// writer ausente é no-op
	assert.NoError(t, p.PublishMatchSettled(context.Background(), events.MatchSettled{MatchID: "m-9"}))

	w.err = errors.New("leader not available")
	err := p.PublishBetPlaced(context.Background(), events.BetPlaced{MatchID: "m-9"})
	assert.ErrorIs(t, err, w.err)
	assert.Contains(t, err.Error(), "key=m-9")
}
