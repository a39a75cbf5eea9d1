package parser

import (
	"regexp"
	"strings"
)

// Airline identifies a carrier detected from an email
type Airline struct {
	Key  string // canonical upper-case key stored on flights
	Name string
	Code string // IATA designator
}

var (
	united    = Airline{Key: "UNITED", Name: "United Airlines", Code: "UA"}
	american  = Airline{Key: "AMERICAN", Name: "American Airlines", Code: "AA"}
	delta     = Airline{Key: "DELTA", Name: "Delta Air Lines", Code: "DL"}
	southwest = Airline{Key: "SOUTHWEST", Name: "Southwest Airlines", Code: "WN"}
)

type signature struct {
	airline Airline
	pattern *regexp.Regexp
}

// signatures is evaluated in order and the first match wins. Sender domains come
// first so a generic "flight confirmation" subject cannot outrank them.
var signatures = []signature{
	{united, regexp.MustCompile(`(?i)united\.com`)},
	{american, regexp.MustCompile(`(?i)aa\.com`)},
	{american, regexp.MustCompile(`(?i)americanairlines\.com`)},
	{delta, regexp.MustCompile(`(?i)delta\.com`)},
	{southwest, regexp.MustCompile(`(?i)southwest\.com`)},

	{american, regexp.MustCompile(`(?i)confirmation.*american airlines`)},
	{delta, regexp.MustCompile(`(?i)flight.*confirmation.*delta`)},
	{southwest, regexp.MustCompile(`(?i)flight.*confirmation.*southwest`)},
	{united, regexp.MustCompile(`(?i)confirmation.*united`)},
	{delta, regexp.MustCompile(`(?i)confirmation.*delta`)},
	{southwest, regexp.MustCompile(`(?i)confirmation.*southwest`)},

	{united, regexp.MustCompile(`(?i)flight.*confirmation`)},
}

// DetectAirline returns the first airline whose signature matches the combined text
func DetectAirline(sender, subject, body string) (Airline, bool) {
	text := sender + "\n" + subject + "\n" + body
	for _, sig := range signatures {
		if sig.pattern.MatchString(text) {
			return sig.airline, true
		}
	}
	return Airline{}, false
}

var airlines = []Airline{united, american, delta, southwest}

// AirlineByCode returns the known carrier with the given IATA designator
func AirlineByCode(code string) (Airline, bool) {
	for _, a := range airlines {
		if strings.EqualFold(a.Code, code) {
			return a, true
		}
	}
	return Airline{}, false
}

// CarrierCode returns the two-letter designator prefix of a flight number
func CarrierCode(flightNumber string) string {
	fn := strings.ToUpper(strings.TrimSpace(flightNumber))
	if len(fn) < 2 {
		return ""
	}
	return fn[:2]
}
