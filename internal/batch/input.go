package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JaimeStill/sdgindex/internal/records"
)

// Year bounds for input rows.
const (
	MinYear = 1900
	MaxYear = 2100
)

var columnAliases = map[string][]string{
	"last_name":  {"last name", "lastname", "last_name"},
	"first_name": {"first name", "firstname", "first_name"},
	"year":       {"year"},
	"title":      {"title"},
	"abstract":   {"abstract"},
	"url":        {"url", "link"},
	"department": {"department"},
	"discipline": {"discipline"},
}

var requiredColumns = []struct {
	key   string
	label string
}{
	{"last_name", "Last Name"},
	{"first_name", "First Name"},
	{"year", "Year"},
	{"title", "Title"},
	{"abstract", "Abstract"},
}

// Input is one parsed row of a batch file. Row is the 1-based data row number.
// Rows with Errors are invalid and excluded from the default selection.
type Input struct {
	Row        int      `json:"row"`
	LastName   string   `json:"last_name"`
	FirstName  string   `json:"first_name"`
	Year       string   `json:"year"`
	Title      string   `json:"title"`
	Abstract   string   `json:"abstract"`
	URL        string   `json:"url,omitempty"`
	Department string   `json:"department,omitempty"`
	Discipline string   `json:"discipline,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// Valid reports whether the row passed validation.
func (in Input) Valid() bool {
	return len(in.Errors) == 0
}

// Author returns "Last, First", or empty when either part is missing.
func (in Input) Author() string {
	if in.LastName == "" || in.FirstName == "" {
		return ""
	}
	return in.LastName + ", " + in.FirstName
}

// PublicationDate returns the first day of the row's year.
func (in Input) PublicationDate() string {
	if in.Year == "" {
		return ""
	}
	return in.Year + "-01-01"
}

// Submission converts the row to a record submission. Rows carry no department
// unless the file has one, so the record falls back to the Other department.
func (in Input) Submission() records.Submission {
	return records.Submission{
		Title:           in.Title,
		Author:          in.Author(),
		PublicationDate: in.PublicationDate(),
		Department:      in.Department,
		Abstract:        in.Abstract,
		URL:             in.URL,
		Discipline:      in.Discipline,
	}
}

// ParseInput reads a CSV batch file. Header names are matched case-insensitively
// with common aliases. The file must contain the Last Name, First Name, Year,
// Title, and Abstract columns; each row is validated individually.
func ParseInput(r io.Reader) ([]Input, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidFile)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	columns := indexColumns(header)

	var missing []string
	for _, rc := range requiredColumns {
		if _, ok := columns[rc.key]; !ok {
			missing = append(missing, rc.label)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	inputs := make([]Input, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
		}
		if blank(row) {
			continue
		}

		field := func(key string) string {
			i, ok := columns[key]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		in := Input{
			Row:        len(inputs) + 1,
			LastName:   field("last_name"),
			FirstName:  field("first_name"),
			Year:       field("year"),
			Title:      field("title"),
			Abstract:   field("abstract"),
			URL:        field("url"),
			Department: field("department"),
			Discipline: field("discipline"),
		}
		in.Errors = validateInput(in)
		inputs = append(inputs, in)
	}

	return inputs, nil
}

// DefaultSelection returns the indices of every valid input in order.
func DefaultSelection(inputs []Input) []int {
	selection := make([]int, 0, len(inputs))
	for i, in := range inputs {
		if in.Valid() {
			selection = append(selection, i)
		}
	}
	return selection
}

func indexColumns(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.Trim(strings.TrimSpace(h), "\ufeff\""))
		for key, aliases := range columnAliases {
			for _, alias := range aliases {
				if h != alias {
					continue
				}
				if _, seen := index[key]; !seen {
					index[key] = i
				}
			}
		}
	}
	return index
}

func validateInput(in Input) []string {
	var errs []string
	fields := []struct {
		value string
		label string
	}{
		{in.LastName, "Last Name"},
		{in.FirstName, "First Name"},
		{in.Year, "Year"},
		{in.Title, "Title"},
		{in.Abstract, "Abstract"},
	}
	for _, f := range fields {
		if f.value == "" {
			errs = append(errs, "Missing "+f.label)
		}
	}

	if in.Year != "" {
		y, err := strconv.Atoi(in.Year)
		if err != nil || len(in.Year) != 4 || y < MinYear || y > MaxYear {
			errs = append(errs, "Invalid Year (use YYYY)")
		}
	}

	return errs
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
