// Package pricing turns a located pricing block into flat, validated price
// entries.
//
// The sub-pipeline has three stages:
//
//   - Extractor builds a raw Matrix (period labels x accommodation rows)
//     from a grid, whichever way round the sheet is laid out
//   - Normalizer flattens the Matrix into one Entry per combination and
//     applies the missing-price policy, currency conversion and rounding
//   - Validator checks the entries for currency consistency, unreasonable
//     amounts, zero prices and stay-length progression
package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// AccommodationType is one priced row of the matrix. Name is the label with
// the stay-length and party-size tokens removed; Description is the label
// as written.
type AccommodationType struct {
	Name        string `json:"name"`
	Code        string `json:"code,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	Nights      int    `json:"nights"`
	Pax         int    `json:"pax"`
	PaxMax      int    `json:"paxMax,omitempty"`
}

// MatrixMetadata is the sheet context attached to a matrix.
type MatrixMetadata struct {
	Currency   string `json:"currency"`
	ResortName string `json:"resortName"`
}

// Matrix is the raw pricing grid. PriceGrid is indexed [type][month] and
// holds cell text verbatim. MonthPositions and TypePositions record the
// sheet column and row of each label (swapped for months-in-rows sheets);
// they are optional for hand-built matrices.
type Matrix struct {
	Months             []string            `json:"months"`
	AccommodationTypes []AccommodationType `json:"accommodationTypes"`
	PriceGrid          [][]string          `json:"priceGrid"`
	Metadata           MatrixMetadata      `json:"metadata"`

	MonthsInRows   bool  `json:"monthsInRows,omitempty"`
	MonthPositions []int `json:"monthPositions,omitempty"`
	TypePositions  []int `json:"typePositions,omitempty"`
}

// Cell returns the raw text for type i and month j. Ragged grids read blank.
func (m *Matrix) Cell(i, j int) string {
	if i < 0 || i >= len(m.PriceGrid) || j < 0 || j >= len(m.PriceGrid[i]) {
		return ""
	}
	return m.PriceGrid[i][j]
}

// cells returns every price cell in row order.
func (m *Matrix) cells() []string {
	var out []string
	for _, row := range m.PriceGrid {
		out = append(out, row...)
	}
	return out
}

// source returns the sheet coordinates of cell (i, j), or -1s when the
// matrix was not extracted from a sheet.
func (m *Matrix) source(i, j int) (row, col int) {
	if i >= len(m.TypePositions) || j >= len(m.MonthPositions) {
		return -1, -1
	}
	if m.MonthsInRows {
		return m.MonthPositions[j], m.TypePositions[i]
	}
	return m.TypePositions[i], m.MonthPositions[j]
}

// PriceStatus distinguishes fixed amounts from the no-rate sentinels.
type PriceStatus string

const (
	StatusFixed       PriceStatus = ""
	StatusUnavailable PriceStatus = "UNAVAILABLE"
	StatusOnRequest   PriceStatus = "ON_REQUEST"
)

// Price is a fixed amount or one of the sentinels. It marshals to a JSON
// number or to the sentinel string.
type Price struct {
	Amount float64
	Status PriceStatus
}

// Fixed returns a Price holding amount.
func Fixed(amount float64) Price {
	return Price{Amount: amount}
}

// IsFixed reports whether p carries an amount.
func (p Price) IsFixed() bool {
	return p.Status == StatusFixed
}

func (p Price) String() string {
	if !p.IsFixed() {
		return string(p.Status)
	}
	return strconv.FormatFloat(p.Amount, 'f', -1, 64)
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.IsFixed() {
		return json.Marshal(string(p.Status))
	}
	return json.Marshal(p.Amount)
}

func (p *Price) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch PriceStatus(s) {
		case StatusUnavailable, StatusOnRequest:
			*p = Price{Status: PriceStatus(s)}
			return nil
		}
		return fmt.Errorf("invalid price sentinel %q", s)
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return errors.New("price must be a number or a sentinel string")
	}
	*p = Fixed(f)
	return nil
}

// Entry is one normalized (month x type x nights x pax) price.
type Entry struct {
	Month             string `json:"month"`
	AccommodationType string `json:"accommodationType"`
	Category          string `json:"category,omitempty"`
	Nights            int    `json:"nights"`
	Pax               int    `json:"pax"`
	PaxMax            int    `json:"paxMax,omitempty"`
	Price             Price  `json:"price"`
	Currency          string `json:"currency"`
	IsAvailable       bool   `json:"isAvailable"`
	SpecialPeriod     string `json:"specialPeriod,omitempty"`
	SourceRow         int    `json:"sourceRow"`
	SourceCol         int    `json:"sourceCol"`
}
