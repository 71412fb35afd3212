package poker

import "pineapple-room-server/pkg/rng"

// Deck is an ordered sequence of unique cards, dealt from the top (index 0).
type Deck struct {
	cards []Card
}

// NewDeck builds a fresh, unshuffled 52-card deck.
func NewDeck() *Deck {
	cards := make([]Card, 0, 52)
	for rank := Rank2; rank <= RankA; rank++ {
		for suit := SuitClubs; suit <= SuitSpades; suit++ {
			cards = append(cards, NewCard(rank, suit))
		}
	}
	return &Deck{cards: cards}
}

// Shuffle performs an in-place Fisher-Yates shuffle using the supplied
// cryptographically secure source.
func (d *Deck) Shuffle(source *rng.System) {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := source.RandomInt(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Pop removes and returns the top card. It panics if the deck is empty;
// callers must check Len first, since an exhausted deck mid-hand is a
// programmer error, not a recoverable condition.
func (d *Deck) Pop() Card {
	c := d.cards[0]
	d.cards = d.cards[1:]
	return c
}

// Len reports the number of cards remaining.
func (d *Deck) Len() int {
	return len(d.cards)
}
