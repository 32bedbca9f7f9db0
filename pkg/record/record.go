// Package record defines the post record decoded from the feed service.
package record

import (
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DetailHeader is the heading shown above a single record's detail.
const DetailHeader = "Post Detail"

// Record is a single post. Records are values and are never mutated after decoding.
type Record struct {
	// ID is assigned by the upstream service and identifies the record.
	ID int `json:"id"`

	// Title is the raw post title.
	Title string `json:"title"`

	// Body is the raw post body.
	Body string `json:"body"`
}

// Detail is the full view of one record as presented to the user.
type Detail struct {
	Header string `json:"header"`
	ID     string `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// DecodeList decodes a JSON array of records.
func DecodeList(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if records == nil {
		// "null" decodes without error but is not a list
		return nil, fmt.Errorf("decode records: expected JSON array, got null")
	}
	return records, nil
}

// EncodeList encodes records as a JSON array.
func EncodeList(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode records: %w", err)
	}
	return data, nil
}

// DisplayTitle returns the title with every word capitalized.
func (r Record) DisplayTitle() string {
	return capitalize(r.Title)
}

// DisplayID returns the identifier as shown in a list row.
func (r Record) DisplayID() string {
	return strconv.Itoa(r.ID)
}

// Detail builds the detail view for the record.
func (r Record) Detail() Detail {
	return Detail{
		Header: DetailHeader,
		ID:     r.DisplayID(),
		Title:  capitalize(r.Title),
		Body:   capitalize(r.Body),
	}
}

// capitalize upper-cases the first letter of each word and lower-cases the rest.
// A new Caser is created per call since Casers are not safe for concurrent use.
func capitalize(s string) string {
	return cases.Title(language.Und).String(s)
}
