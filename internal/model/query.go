package model

import (
	"strings"
)

// Query is a single aggregation request.
type Query struct {
	Text       string `json:"query"`
	City       string `json:"city"`
	Country    string `json:"country,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

// NewQuery builds a Query, deriving the city from text when none is given.
func NewQuery(text, city, country string, maxResults int) Query {
	text = strings.Join(strings.Fields(text), " ")
	city = strings.TrimSpace(city)
	if city == "" {
		city = DeriveCity(text)
	}
	return Query{
		Text:       text,
		City:       city,
		Country:    strings.TrimSpace(country),
		MaxResults: maxResults,
	}
}

// DeriveCity returns the text after the last standalone "in" of a query such
// as "restaurants in Vernon". Falls back to UnknownCity.
func DeriveCity(text string) string {
	fields := strings.Fields(text)
	for i := len(fields) - 2; i >= 0; i-- {
		if strings.EqualFold(fields[i], "in") {
			city := strings.Trim(strings.Join(fields[i+1:], " "), " ,.")
			if city != "" {
				return city
			}
		}
	}
	return UnknownCity
}

// SearchTerms splits a query into what/where for sources that take them
// separately. The trailing "in <city>" is removed from what.
func SearchTerms(q Query) (what, where string) {
	fields := strings.Fields(q.Text)
	what = q.Text
	for i := len(fields) - 2; i >= 0; i-- {
		if strings.EqualFold(fields[i], "in") {
			what = strings.Join(fields[:i], " ")
			break
		}
	}
	if what == "" {
		what = q.Text
	}
	where = q.City
	if where == UnknownCity {
		where = ""
	}
	return what, where
}
