// Package model defines domain types used by the service.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Brand is a vehicle make with the models covers are sold for.
type Brand struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Logo   string  `json:"logo,omitempty"`
	Models []Model `json:"models"`
}

// Model is a vehicle model; Years is an inclusive "<start>-<end>" range.
type Model struct {
	Name  string `json:"name"`
	Years string `json:"years"`
}

// YearList expands Years into a descending list. Malformed ranges yield nil.
func (m Model) YearList() []int {
	parts := strings.Split(m.Years, "-")
	if len(parts) != 2 {
		return nil
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || start > end {
		return nil
	}
	years := make([]int, 0, end-start+1)
	for y := end; y >= start; y-- {
		years = append(years, y)
	}
	return years
}

// ProductGroup is a display category of products.
type ProductGroup struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Product is a seat-cover article. Price is the listed price, not the charged one.
type Product struct {
	ID      string  `json:"id"`
	GroupID string  `json:"groupId"`
	Title   string  `json:"title"`
	Code    string  `json:"code"`
	Color   string  `json:"color"`
	Image   string  `json:"image,omitempty"`
	Price   float64 `json:"price"`
}

// Catalog is the static catalog document.
type Catalog struct {
	Brands        []Brand        `json:"brands"`
	ProductGroups []ProductGroup `json:"productGroups"`
	Products      []Product      `json:"products"`
}

// Selection is the visitor's current brand/model/year choice.
type Selection struct {
	Brand string `json:"brand"`
	Model string `json:"model"`
	Year  string `json:"year"`
}

// StoredBrand is the persisted form of the selected brand.
type StoredBrand struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// QuoteOnRequest is the JSON form of a price that must be quoted by a person.
const QuoteOnRequest = "quote-on-request"

// Price is either a fixed amount in MDL or a quote-on-request sentinel.
type Price struct {
	Amount int
	Quote  bool
}

// Fixed returns a numeric price.
func Fixed(amount int) Price { return Price{Amount: amount} }

// Quote returns the quote-on-request price.
func Quote() Price { return Price{Quote: true} }

// String renders the price the way the storefront displays it.
func (p Price) String() string {
	if p.Quote {
		return "Solicita pret"
	}
	return fmt.Sprintf("%d MDL", p.Amount)
}

// MarshalJSON encodes a fixed price as a number and a quote as "quote-on-request".
func (p Price) MarshalJSON() ([]byte, error) {
	if p.Quote {
		return json.Marshal(QuoteOnRequest)
	}
	return json.Marshal(p.Amount)
}

// UnmarshalJSON accepts either form written by MarshalJSON.
func (p *Price) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != QuoteOnRequest {
			return fmt.Errorf("unknown price sentinel %q", s)
		}
		*p = Quote()
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	*p = Fixed(n)
	return nil
}

// Order is a submitted order. It is never modified after creation.
type Order struct {
	Brand        string    `json:"brand"`
	Model        string    `json:"model"`
	Year         string    `json:"year,omitempty"`
	ProductID    string    `json:"productId"`
	ProductTitle string    `json:"productTitle"`
	ProductCode  string    `json:"productCode"`
	Color        string    `json:"color"`
	Price        Price     `json:"price"`
	Phone        string    `json:"phone"`
	Timestamp    time.Time `json:"timestamp"`
}
