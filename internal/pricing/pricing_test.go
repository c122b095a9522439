package pricing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/seatcover-storefront/internal/model"
)

func TestSeatCountExplicit(t *testing.T) {
	for n := 1; n <= 20; n++ {
		name := fmt.Sprintf("Sprinter %d locuri", n)
		assert.Equal(t, n, SeatCount(name), name)
	}
}

func TestSeatCountRules(t *testing.T) {
	cases := []struct {
		name  string
		seats int
		rule  string
	}{
		{"Octavia (5 locuri)", 5, "explicit"},
		{"Transit 8–11 locuri", 11, "explicit"},
		{"BMW 2 Series Coupe 2 uși", 2, "two-door"},
		{"Mercedes Vito", 7, "commercial"},
		{"Renault Grand Scenic", 7, "commercial"},
		{"Citroen C4 Picasso XL", 7, "size-qualifier"},
		{"Golf Plus", 7, "size-qualifier"},
		{"Logan", 5, "default"},
		{"", 5, "default"},
		{"Sprinter 3 locuri", 3, "explicit"},
	}
	for _, tc := range cases {
		q := Explain("", tc.name)
		assert.Equal(t, tc.seats, q.Seats, tc.name)
		assert.Equal(t, tc.rule, q.Rule, tc.name)
	}
}

func TestRulesIndividually(t *testing.T) {
	byName := map[string]Rule{}
	for _, r := range Rules() {
		byName[r.Name] = r
	}
	require.Len(t, byName, 6)

	n, ok := byName["parenthesized"].Match("Caddy (7 locuri)")
	require.True(t, ok)
	assert.Equal(t, 7, n)

	n, ok = byName["range"].Match("Ducato 8–11 locuri")
	require.True(t, ok)
	assert.Equal(t, 11, n, "range takes the upper bound")

	_, ok = byName["range"].Match("Ducato 8-11 locuri")
	assert.False(t, ok, "hyphen is not an en dash")

	_, ok = byName["two-door"].Match("Coupe 4 uși")
	assert.False(t, ok)

	_, ok = byName["commercial"].Match("Golf")
	assert.False(t, ok)
}

func TestRulesCopy(t *testing.T) {
	r := Rules()
	r[0] = Rule{Name: "tampered"}
	assert.Equal(t, "explicit", Rules()[0].Name)
}

func TestPriceForSeats(t *testing.T) {
	assert.Equal(t, model.Fixed(2200), PriceForSeats(2, false))
	assert.Equal(t, model.Fixed(2200), PriceForSeats(2, true))
	assert.Equal(t, model.Fixed(3000), PriceForSeats(3, true))
	assert.Equal(t, model.Fixed(4200), PriceForSeats(4, false))
	assert.Equal(t, model.Fixed(4300), PriceForSeats(5, true))
	assert.Equal(t, model.Fixed(4200), PriceForSeats(5, false))
	assert.Equal(t, model.Fixed(4300), PriceForSeats(6, true))
	assert.Equal(t, model.Fixed(4200), PriceForSeats(1, false))
	assert.True(t, PriceForSeats(7, false).Quote)
	assert.True(t, PriceForSeats(11, true).Quote)
}

func TestPrice(t *testing.T) {
	assert.Equal(t, model.Fixed(4300), Price("Huse ROMB Premium", "Logan"))
	assert.Equal(t, model.Fixed(4200), Price("Huse Classic", "Logan"))
	assert.Equal(t, model.Fixed(2200), Price("Huse Romb", "Coupe 2 uși"))
	p := Price("Huse Romb", "Sprinter 9 locuri")
	assert.True(t, p.Quote)
	assert.Zero(t, p.Amount)
}

func TestIsPremium(t *testing.T) {
	assert.True(t, IsPremium("romb"))
	assert.True(t, IsPremium("Model RoMb negru"))
	assert.False(t, IsPremium("Rom"))
	assert.False(t, IsPremium(""))
}
