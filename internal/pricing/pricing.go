// Package pricing derives a seat count from a free-text model name and maps it
// to the price charged for a seat-cover set.
package pricing

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/fairyhunter13/seatcover-storefront/internal/model"
)

const (
	defaultSeats = 5
	largeSeats   = 7

	priceTwoSeats   = 2200
	priceThreeSeats = 3000
	priceRegular    = 4200
	pricePremium    = 4300

	premiumMarker = "romb"
)

// Rule infers a seat count from a model name. Match reports false when the rule
// does not apply.
type Rule struct {
	Name  string
	Match func(modelName string) (int, bool)
}

var (
	seatsRe       = regexp.MustCompile(`(\d+)\s+locuri`)
	parenSeatsRe  = regexp.MustCompile(`\((\d+)\s+locuri\)`)
	rangeSeatsRe  = regexp.MustCompile(`(\d+)–(\d+)\s+locuri`)
	commercialKws = []string{
		"Sprinter", "Transit", "Ducato", "Master", "Crafter", "Vito", "Viano",
		"Multivan", "Caravelle", "Transporter", "ProMaster", "Daily",
		"minivan", "monovolum", "Grand", "Traveller", "SpaceTourer", "Zafira Life",
	}
	sizeKws = []string{"Grand", "XL", "Plus", "Max", "Maxi"}
)

// rules is evaluated in order; the first match wins.
var rules = []Rule{
	{Name: "explicit", Match: submatch(seatsRe, 1)},
	{Name: "parenthesized", Match: submatch(parenSeatsRe, 1)},
	{Name: "range", Match: submatch(rangeSeatsRe, 2)},
	{Name: "two-door", Match: contains([]string{"2 uși"}, 2)},
	{Name: "commercial", Match: contains(commercialKws, largeSeats)},
	{Name: "size-qualifier", Match: contains(sizeKws, largeSeats)},
}

func submatch(re *regexp.Regexp, group int) func(string) (int, bool) {
	return func(name string) (int, bool) {
		m := re.FindStringSubmatch(name)
		if m == nil {
			return 0, false
		}
		n, err := strconv.Atoi(m[group])
		if err != nil {
			return 0, false
		}
		return n, true
	}
}

func contains(keywords []string, seats int) func(string) (int, bool) {
	return func(name string) (int, bool) {
		for _, kw := range keywords {
			if strings.Contains(name, kw) {
				return seats, true
			}
		}
		return 0, false
	}
}

// Rules returns the seat inference rules in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// SeatCount infers the seat count of a model name. Names no rule matches,
// including the empty name, count as five seats.
func SeatCount(modelName string) int {
	n, _ := seatCount(modelName)
	return n
}

func seatCount(modelName string) (int, string) {
	if modelName == "" {
		return defaultSeats, "default"
	}
	for _, r := range rules {
		if n, ok := r.Match(modelName); ok {
			return n, r.Name
		}
	}
	return defaultSeats, "default"
}

// IsPremium reports whether a product title belongs to the premium line.
func IsPremium(title string) bool {
	return strings.Contains(strings.ToLower(title), premiumMarker)
}

// PriceForSeats maps a seat count to a price.
func PriceForSeats(seats int, premium bool) model.Price {
	switch {
	case seats == 2:
		return model.Fixed(priceTwoSeats)
	case seats == 3:
		return model.Fixed(priceThreeSeats)
	case seats >= largeSeats:
		return model.Quote()
	case premium:
		return model.Fixed(pricePremium)
	default:
		return model.Fixed(priceRegular)
	}
}

// Price computes the charged price of a product for the selected model.
func Price(productTitle, modelName string) model.Price {
	return PriceForSeats(SeatCount(modelName), IsPremium(productTitle))
}

// Quote is a price together with how it was derived.
type Quote struct {
	Seats   int         `json:"seats"`
	Rule    string      `json:"rule"`
	Premium bool        `json:"premium"`
	Price   model.Price `json:"price"`
}

// Explain computes the price and reports the seat rule that fired.
func Explain(productTitle, modelName string) Quote {
	seats, rule := seatCount(modelName)
	premium := IsPremium(productTitle)
	return Quote{Seats: seats, Rule: rule, Premium: premium, Price: PriceForSeats(seats, premium)}
}
