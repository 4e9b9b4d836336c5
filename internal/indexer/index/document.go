package index

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-server/pkg/errors"
)

// Status is an opaque document classification used only by result
// predicates.
type Status int

const (
	StatusActual Status = iota
	StatusIrrelevant
	StatusBanned
	StatusRemoved
)

var statusNames = [...]string{
	StatusActual:     "ACTUAL",
	StatusIrrelevant: "IRRELEVANT",
	StatusBanned:     "BANNED",
	StatusRemoved:    "REMOVED",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus accepts the upper- or lower-case status name.
func ParseStatus(name string) (Status, error) {
	upper := strings.ToUpper(name)
	for i, n := range statusNames {
		if n == upper {
			return Status(i), nil
		}
	}
	return StatusActual, apperrors.InvalidArgument("unknown document status %q", name)
}

func (s Status) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(statusNames) {
		return nil, fmt.Errorf("unknown document status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// DocumentData is the metadata kept per live document. Content owns the raw
// text; indexed terms are substrings of it.
type DocumentData struct {
	Rating  int
	Status  Status
	Content string
}

// Posting is one (document, term frequency) pair of a term's postings list.
type Posting struct {
	DocID     int
	Frequency float64
}

type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// AverageRating is the integer mean of ratings, truncated toward zero, or 0
// for no samples.
func AverageRating(ratings []int) int {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return sum / len(ratings)
}
