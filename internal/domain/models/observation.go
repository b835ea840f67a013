package models

import (
	"database/sql/driver"
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"time"
)

// Source identifies where a sentiment observation came from.
type Source uint8

const (
	SourceTwitter Source = iota
	SourceReddit
	SourceNews

	numSources
)

// NumSources is the size of the source enumeration. Arrays keyed by Source
// (Weights, per-source accumulators) are sized by it, so adding a source
// forces every such table to be revisited.
const NumSources = int(numSources)

var sourceNames = [NumSources]string{
	SourceTwitter: "twitter",
	SourceReddit:  "reddit",
	SourceNews:    "news",
}

// AllSources lists every known source in enumeration order.
func AllSources() [NumSources]Source {
	var out [NumSources]Source
	for i := range out {
		out[i] = Source(i)
	}
	return out
}

func (s Source) String() string {
	if !s.Valid() {
		return fmt.Sprintf("source(%d)", uint8(s))
	}
	return sourceNames[s]
}

// Valid reports whether s is a member of the enumeration.
func (s Source) Valid() bool { return int(s) < NumSources }

// ParseSource maps a wire name to a Source.
func ParseSource(name string) (Source, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, v := range sourceNames {
		if v == n {
			return Source(i), nil
		}
	}
	return 0, fmt.Errorf("unknown source %q", name)
}

func (s Source) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid source %d", uint8(s))
	}
	return []byte(sourceNames[s]), nil
}

func (s *Source) UnmarshalText(b []byte) error {
	v, err := ParseSource(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Value stores the source by name.
func (s Source) Value() (driver.Value, error) { return s.String(), nil }

// Scan reads a source stored by name.
func (s *Source) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("scan source: unsupported type %T", src)
	}
}

// SentimentObservation is one scored sentiment reading for a symbol.
type SentimentObservation struct {
	// ID identifies the observation across redeliveries. Stores treat a
	// repeated non-empty ID as the same observation.
	ID         string    `json:"id,omitempty" db:"obs_id"`
	Symbol     string    `json:"symbol" db:"symbol"`
	Source     Source    `json:"source" db:"source"`
	Sentiment  float64   `json:"sentiment" db:"sentiment"`
	Confidence float64   `json:"confidence" db:"confidence"`
	Timestamp  time.Time `json:"timestamp" db:"observed_at"`
}

// Validate checks the observation ranges.
func (o SentimentObservation) Validate() error {
	if strings.TrimSpace(o.Symbol) == "" {
		return fmt.Errorf("%w: symbol is empty", ErrInvalidObservation)
	}
	if !o.Source.Valid() {
		return fmt.Errorf("%w: source %d", ErrInvalidObservation, uint8(o.Source))
	}
	if math.IsNaN(o.Sentiment) || o.Sentiment < -1 || o.Sentiment > 1 {
		return fmt.Errorf("%w: sentiment %v outside [-1,1]", ErrInvalidObservation, o.Sentiment)
	}
	if math.IsNaN(o.Confidence) || o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidObservation, o.Confidence)
	}
	if o.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is zero", ErrInvalidObservation)
	}
	return nil
}

// ContentID derives an ID from the observation's fields, for producers that
// do not supply one.
func (o SentimentObservation) ContentID() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%d|%s|%s", o.Symbol, o.Source, o.Timestamp.UnixNano(),
		strconv.FormatFloat(o.Sentiment, 'g', -1, 64), strconv.FormatFloat(o.Confidence, 'g', -1, 64))
	return fmt.Sprintf("c-%016x", h.Sum64())
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
