// Package export renders record search results as CSV or BibTeX.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/JaimeStill/sdgindex/internal/labels"
	"github.com/JaimeStill/sdgindex/internal/records"
)

// Format is an export file format.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatBibTeX Format = "bibtex"
)

// Export errors.
var (
	ErrInvalidFormat = errors.New("invalid export format")
	ErrNoResults     = errors.New("no results to export")
)

var csvHeader = []string{
	"Record ID", "Title", "Author", "Publication Date", "Department",
	"Discipline", "SDG Classifications", "Abstract", "Keywords", "URL",
}

// ParseFormat parses a format name, defaulting to CSV when empty.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatBibTeX:
		return FormatBibTeX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
}

// Extension returns the file extension for f.
func (f Format) Extension() string {
	if f == FormatBibTeX {
		return "bib"
	}
	return "csv"
}

// ContentType returns the response content type for f.
func (f Format) ContentType() string {
	if f == FormatBibTeX {
		return "text/plain; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

// Filename names an export of set taken on date, e.g. sdg_search_3-7_2026-01-15.csv.
func Filename(set labels.Set, date time.Time, f Format) string {
	parts := make([]string, len(set))
	for i, l := range set {
		parts[i] = fmt.Sprint(int(l))
	}
	return fmt.Sprintf("sdg_search_%s_%s.%s", strings.Join(parts, "-"), date.Format(time.DateOnly), f.Extension())
}

// Writer renders records. School is written into BibTeX entries when set.
type Writer struct {
	School string
}

// Write renders recs to w in format f.
func (wr Writer) Write(w io.Writer, f Format, recs []records.Record) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, recs)
	case FormatBibTeX:
		return wr.WriteBibTeX(w, recs)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, f)
	}
}

// WriteCSV writes recs with a fixed header row.
func WriteCSV(w io.Writer, recs []records.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, r := range recs {
		row := []string{
			r.ID.String(),
			r.Title,
			r.Author,
			r.PublicationDate,
			r.Department,
			r.Discipline,
			labelNames(r.Labels),
			r.Abstract,
			r.Keywords,
			r.URL,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteBibTeX writes one @mastersthesis entry per record. The citation key is the
// lower-cased author without spaces followed by the publication year.
func (wr Writer) WriteBibTeX(w io.Writer, recs []records.Record) error {
	var sb strings.Builder
	for _, r := range recs {
		fmt.Fprintf(&sb, "@mastersthesis{%s,\n", CiteKey(r))
		field(&sb, "title", r.Title)
		field(&sb, "author", r.Author)
		fmt.Fprintf(&sb, "  year = {%d},\n", r.Year())
		if wr.School != "" {
			field(&sb, "school", wr.School)
		}
		field(&sb, "type", "Master's Thesis")
		if r.Department != "" {
			field(&sb, "department", r.Department)
		}
		if r.URL != "" {
			field(&sb, "url", r.URL)
		}
		if r.Keywords != "" {
			field(&sb, "keywords", r.Keywords)
		}
		fmt.Fprintf(&sb, "  abstract = {%s}\n", escape(r.Abstract))
		sb.WriteString("}\n\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// CiteKey returns the BibTeX citation key for r.
func CiteKey(r records.Record) string {
	return strings.ToLower(strings.ReplaceAll(r.Author, " ", "")) + fmt.Sprint(r.Year())
}

func field(sb *strings.Builder, name, value string) {
	fmt.Fprintf(sb, "  %s = {%s},\n", name, escape(value))
}

var bibEscaper = strings.NewReplacer(`\`, `\textbackslash{}`, `{`, `\{`, `}`, `\}`)

func escape(s string) string {
	return bibEscaper.Replace(s)
}

func labelNames(ls []labels.Label) string {
	names := make([]string, len(ls))
	for i, l := range ls {
		names[i] = l.String()
	}
	return strings.Join(names, ", ")
}
