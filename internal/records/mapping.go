package records

import (
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/sdgindex/internal/labels"
	"github.com/JaimeStill/sdgindex/pkg/query"
	"github.com/JaimeStill/sdgindex/pkg/repository"
)

const labelsExpr = `COALESCE((SELECT string_agg(lm.label::text, ',' ORDER BY lm.rank) ` +
	`FROM public.label_mappings lm WHERE lm.record_id = r.id), '')`

var projection = query.
	NewProjectionMap("public", "records", "r").
	Project("id", "ID").
	Project("title", "Title").
	Project("author", "Author").
	Project("publication_date", "PublicationDate").
	Project("department_id", "DepartmentID").
	Project("abstract", "Abstract").
	Project("url", "URL").
	Project("discipline", "Discipline").
	Project("keywords", "Keywords").
	Project("status", "Status").
	Project("allow_duplicate", "AllowDuplicate").
	Project("created_at", "CreatedAt").
	Join("public", "departments", "d", "LEFT JOIN", "d.id = r.department_id").
	Project("name", "Department").
	ProjectExpr(labelsExpr, "Labels").
	Map("EXTRACT(YEAR FROM r.publication_date)::int", "Year")

var searchSort = []query.SortField{
	{Field: "PublicationDate", Descending: true},
	{Field: "Title"},
}

// Filters contains optional filtering criteria for record listings.
// Nil fields are ignored. Title and Author use case-insensitive contains matching.
// YearFrom and YearTo bound the publication year inclusively.
type Filters struct {
	Status       *string `json:"status,omitempty"`
	DepartmentID *int    `json:"department_id,omitempty"`
	Year         *int    `json:"year,omitempty"`
	YearFrom     *int    `json:"year_from,omitempty"`
	YearTo       *int    `json:"year_to,omitempty"`
	Title        *string `json:"title,omitempty"`
	Author       *string `json:"author,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("DepartmentID", f.DepartmentID).
		WhereEquals("Year", f.Year).
		WhereBetween("Year", f.YearFrom, f.YearTo).
		WhereContains("Title", f.Title).
		WhereContains("Author", f.Author)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if d := values.Get("department_id"); d != "" {
		if v, err := strconv.Atoi(d); err == nil {
			f.DepartmentID = &v
		}
	}

	f.Year = intParam(values, "year")
	f.YearFrom = intParam(values, "year_from")
	f.YearTo = intParam(values, "year_to")

	if t := values.Get("title"); t != "" {
		f.Title = &t
	}

	if a := values.Get("author"); a != "" {
		f.Author = &a
	}

	return f
}

func intParam(values url.Values, key string) *int {
	raw := values.Get(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}

// exactMatch returns a condition matching records that carry every label in set.
func exactMatch(set labels.Set) (string, []any) {
	markers := strings.TrimSuffix(strings.Repeat("$%d, ", len(set)), ", ")
	clause := fmt.Sprintf(
		"r.id IN (SELECT m.record_id FROM public.label_mappings m WHERE m.label IN (%s) "+
			"GROUP BY m.record_id HAVING COUNT(DISTINCT m.label) = $%%d)",
		markers,
	)
	return clause, append(set.Args(), len(set))
}

func scanRecord(s repository.Scanner) (Record, error) {
	var (
		rec          Record
		published    time.Time
		departmentID sql.NullInt64
		department   sql.NullString
		link         sql.NullString
		discipline   sql.NullString
		keywords     sql.NullString
		labelList    string
	)

	err := s.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Author,
		&published,
		&departmentID,
		&rec.Abstract,
		&link,
		&discipline,
		&keywords,
		&rec.Status,
		&rec.AllowDuplicate,
		&rec.CreatedAt,
		&department,
		&labelList,
	)
	if err != nil {
		return rec, err
	}

	rec.PublicationDate = published.Format(time.DateOnly)
	if departmentID.Valid {
		id := int(departmentID.Int64)
		rec.DepartmentID = &id
	}
	rec.Department = department.String
	rec.URL = link.String
	rec.Discipline = discipline.String
	rec.Keywords = keywords.String
	rec.Labels = parseLabelList(labelList)

	return rec, nil
}

func scanMapping(s repository.Scanner) (Mapping, error) {
	var m Mapping
	err := s.Scan(&m.Label, &m.Confidence, &m.Rank, &m.Method)
	return m, err
}

func parseLabelList(s string) []labels.Label {
	out := []labels.Label{}
	for part := range strings.SplitSeq(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			out = append(out, labels.Label(n))
		}
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
