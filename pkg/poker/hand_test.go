package poker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCardIDRoundTrip(t *testing.T) {
	card := NewCard(RankA, SuitSpades)
	require.Equal(t, 51, card.ID()) // 12*4 + 3

	restored := FromID(card.ID())
	require.Equal(t, card, restored)
}

func TestEvaluateCategories(t *testing.T) {
	eval := NewHandEvaluator()

	tests := []struct {
		name     string
		hole     []Card
		board    []Card
		expected Category
	}{
		{
			name:     "high card",
			hole:     []Card{{RankA, SuitSpades}, {Rank7, SuitHearts}},
			board:    []Card{{RankK, SuitDiamonds}, {RankQ, SuitClubs}, {RankJ, SuitSpades}, {Rank2, SuitHearts}, {Rank4, SuitClubs}},
			expected: HighCard,
		},
		{
			name:     "one pair",
			hole:     []Card{{RankA, SuitSpades}, {RankA, SuitHearts}},
			board:    []Card{{RankK, SuitDiamonds}, {RankQ, SuitClubs}, {RankJ, SuitSpades}, {Rank2, SuitHearts}, {Rank4, SuitClubs}},
			expected: OnePair,
		},
		{
			name:     "two pair",
			hole:     []Card{{RankA, SuitSpades}, {RankA, SuitHearts}},
			board:    []Card{{RankK, SuitDiamonds}, {RankK, SuitClubs}, {RankJ, SuitSpades}, {Rank2, SuitHearts}, {Rank4, SuitClubs}},
			expected: TwoPair,
		},
		{
			name:     "trips",
			hole:     []Card{{RankA, SuitSpades}, {RankA, SuitHearts}},
			board:    []Card{{RankA, SuitDiamonds}, {RankQ, SuitClubs}, {RankJ, SuitSpades}, {Rank2, SuitHearts}, {Rank4, SuitClubs}},
			expected: Trips,
		},
		{
			name:     "straight",
			hole:     []Card{{Rank9, SuitSpades}, {Rank8, SuitHearts}},
			board:    []Card{{Rank7, SuitDiamonds}, {Rank6, SuitClubs}, {Rank5, SuitSpades}, {Rank2, SuitHearts}, {RankA, SuitClubs}},
			expected: Straight,
		},
		{
			name:     "wheel straight",
			hole:     []Card{{RankA, SuitSpades}, {Rank2, SuitHearts}},
			board:    []Card{{Rank3, SuitDiamonds}, {Rank4, SuitClubs}, {Rank5, SuitSpades}, {Rank9, SuitHearts}, {RankK, SuitClubs}},
			expected: Straight,
		},
		{
			name:     "flush",
			hole:     []Card{{RankA, SuitSpades}, {Rank9, SuitSpades}},
			board:    []Card{{RankK, SuitSpades}, {Rank4, SuitSpades}, {Rank2, SuitSpades}, {RankJ, SuitHearts}, {RankQ, SuitClubs}},
			expected: Flush,
		},
		{
			name:     "full house",
			hole:     []Card{{RankA, SuitSpades}, {RankA, SuitHearts}},
			board:    []Card{{RankA, SuitDiamonds}, {RankK, SuitClubs}, {RankK, SuitSpades}, {Rank2, SuitHearts}, {Rank4, SuitClubs}},
			expected: FullHouse,
		},
		{
			name:     "quads",
			hole:     []Card{{RankA, SuitSpades}, {RankA, SuitHearts}},
			board:    []Card{{RankA, SuitDiamonds}, {RankA, SuitClubs}, {RankK, SuitSpades}, {Rank2, SuitHearts}, {Rank4, SuitClubs}},
			expected: Quads,
		},
		{
			name:     "straight flush",
			hole:     []Card{{Rank9, SuitSpades}, {Rank8, SuitSpades}},
			board:    []Card{{Rank7, SuitSpades}, {Rank6, SuitSpades}, {Rank5, SuitSpades}, {Rank2, SuitHearts}, {RankA, SuitClubs}},
			expected: StraightFlush,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := eval.Evaluate(tc.hole, tc.board)
			require.Equal(t, tc.expected, got.Category)
		})
	}
}

func TestEvaluatePermutationInvariant(t *testing.T) {
	eval := NewHandEvaluator()
	hole := []Card{{RankA, SuitSpades}, {RankK, SuitSpades}}
	board := []Card{{RankQ, SuitSpades}, {RankJ, SuitSpades}, {Rank10, SuitSpades}, {Rank2, SuitHearts}, {Rank4, SuitClubs}}

	base := eval.Evaluate(hole, board)

	shuffledBoard := []Card{board[4], board[2], board[0], board[3], board[1]}
	shuffled := eval.Evaluate([]Card{hole[1], hole[0]}, shuffledBoard)

	require.Equal(t, base.Category, shuffled.Category)
	require.Equal(t, base.TieBreakers, shuffled.TieBreakers)
}

func TestCompareAntisymmetricAndTransitive(t *testing.T) {
	eval := NewHandEvaluator()

	pair := eval.Evaluate([]Card{{RankA, SuitSpades}, {RankA, SuitHearts}}, []Card{{RankK, SuitDiamonds}, {RankQ, SuitClubs}, {RankJ, SuitSpades}, {Rank2, SuitHearts}, {Rank4, SuitClubs}})
	trips := eval.Evaluate([]Card{{RankA, SuitSpades}, {RankA, SuitHearts}}, []Card{{RankA, SuitDiamonds}, {RankQ, SuitClubs}, {RankJ, SuitSpades}, {Rank2, SuitHearts}, {Rank4, SuitClubs}})
	straight := eval.Evaluate([]Card{{Rank9, SuitSpades}, {Rank8, SuitHearts}}, []Card{{Rank7, SuitDiamonds}, {Rank6, SuitClubs}, {Rank5, SuitSpades}, {Rank2, SuitHearts}, {RankA, SuitClubs}})

	require.Equal(t, eval.Compare(pair, trips), -eval.Compare(trips, pair))
	require.Less(t, eval.Compare(pair, trips), 0)
	require.Less(t, eval.Compare(trips, straight), 0)
	require.Less(t, eval.Compare(pair, straight), 0)
}

func TestEvaluateOutOfRangeInputNeverPanics(t *testing.T) {
	eval := NewHandEvaluator()
	got := eval.Evaluate(nil, nil)
	require.Equal(t, HighCard, got.Category)
}
