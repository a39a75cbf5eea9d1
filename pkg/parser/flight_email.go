// Package parser extracts flight candidates from airline confirmation emails.
// Extraction is a pure function of the message text.
package parser

import (
	"regexp"
	"strings"

	"travelsync-service/internal/domain/entity"
)

// Skip reasons returned by Extract
const (
	ReasonNoAirline      = "no airline signature"
	ReasonNoFlightNumber = "no flight number"
	ReasonNoAirports     = "fewer than two airport codes"
)

var (
	flightNumberRe = regexp.MustCompile(`\b([A-Z]{2}) ?(\d{1,4})\b`)

	// labelled codes outrank a bare "confirmation" keyword
	confirmationKeywordRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i:confirmation\s+(?:number|code|no\.?|#)|record\s+locator|booking\s+reference|booking\s+code)\s*[:#]?\s*([A-Z0-9]{6})\b`),
		regexp.MustCompile(`(?i:confirmation)\s*[:#]?\s*([A-Z0-9]{6})\b`),
	}
	confirmationTokenRe = regexp.MustCompile(`\b[A-Z0-9]{6}\b`)
	flightShapedRe      = regexp.MustCompile(`^[A-Z]{2}\d{1,4}$`)

	airportRe = regexp.MustCompile(`\b[A-Z]{3}\b`)
)

// stopWords are three-letter upper-case tokens that are never airport codes
var stopWords = map[string]struct{}{
	"THE": {}, "AND": {}, "FOR": {}, "NOT": {}, "ARE": {}, "ALL": {}, "YOU": {},
	"UTC": {}, "GMT": {}, "EST": {}, "EDT": {}, "CST": {}, "CDT": {}, "MST": {}, "MDT": {}, "PST": {}, "PDT": {},
	"USD": {}, "EUR": {}, "GBP": {},
}

// Extract builds a flight candidate from a message. When nothing usable is found
// it returns nil and the reason. The candidate may still lack a confirmation code
// or times; materialization decides what is required.
func Extract(body, subject, sender string) (*entity.FlightCandidate, string) {
	if looksLikeHTML(body) {
		body = htmlToText(body)
	}

	airline, ok := DetectAirline(sender, subject, body)
	if !ok {
		return nil, ReasonNoAirline
	}

	text := subject + "\n" + body

	flightNumber := findFlightNumber(text)
	if flightNumber == "" {
		return nil, ReasonNoFlightNumber
	}

	airports := findAirports(text, 2)
	if len(airports) < 2 {
		return nil, ReasonNoAirports
	}

	departure, arrival := departureArrival(extractTimes(text))

	return &entity.FlightCandidate{
		Airline:          airline.Key,
		AirlineCode:      airline.Code,
		FlightNumber:     flightNumber,
		ConfirmationCode: findConfirmation(text),
		DepartureAirport: airports[0],
		ArrivalAirport:   airports[1],
		DepartureTime:    departure,
		ArrivalTime:      arrival,
	}, ""
}

func findFlightNumber(text string) string {
	m := flightNumberRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1] + m[2]
}

// findConfirmation prefers a code introduced by a confirmation keyword and falls
// back to the first six-character token. Tokens shaped like a flight number are
// never a confirmation code.
func findConfirmation(text string) string {
	for _, re := range confirmationKeywordRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if !flightShapedRe.MatchString(m[1]) {
				return m[1]
			}
		}
	}
	for _, tok := range confirmationTokenRe.FindAllString(text, -1) {
		if !flightShapedRe.MatchString(tok) {
			return tok
		}
	}
	return ""
}

func findAirports(text string, limit int) []string {
	var codes []string
	for _, tok := range airportRe.FindAllString(text, -1) {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		codes = append(codes, tok)
		if len(codes) == limit {
			break
		}
	}
	return codes
}

// Normalize trims and upper-cases a code-like token
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
