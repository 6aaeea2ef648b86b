package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/sdgindex/internal/labels"
	"github.com/JaimeStill/sdgindex/pkg/pagination"
	"github.com/JaimeStill/sdgindex/pkg/query"
	"github.com/JaimeStill/sdgindex/pkg/repository"
)

// OtherDepartment is the department used when a submission names none or an unknown one.
const OtherDepartment = "Other"

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
	newID      func() uuid.UUID
}

// New creates a record repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "records"),
		pagination: pagination,
		newID:      uuid.New,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Ingest(ctx context.Context, in Ingestion, privileged bool) (*IngestResult, error) {
	sub := in.Submission.Trimmed()
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	decision := labels.NoRelevantTags(privileged)
	var dropped int
	if !in.NoRelevantTags {
		unique := labels.Dedupe(in.Candidates)
		decision = labels.Route(unique, privileged)
		dropped = len(in.Candidates) - len(unique) + decision.Dropped
	}

	identity := IdentityOf(sub.Title, sub.Author)

	result, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (*IngestResult, error) {
		conflict, err := findDuplicate(ctx, tx, identity)
		if err != nil {
			return nil, fmt.Errorf("check duplicate: %w", err)
		}
		if conflict != nil && !in.Force {
			return &IngestResult{Conflict: conflict}, nil
		}

		departmentID, err := resolveDepartment(ctx, tx, sub.Department)
		if err != nil {
			return nil, fmt.Errorf("resolve department: %w", err)
		}

		id := r.newID()
		if err := insertRecord(ctx, tx, id, sub, identity, departmentID, decision.Status, conflict != nil); err != nil {
			return nil, fmt.Errorf("insert record: %w", err)
		}

		saved, skipped, err := insertMappings(ctx, tx, id, decision.Mappings, privileged)
		if err != nil {
			return nil, fmt.Errorf("insert mappings: %w", err)
		}

		return &IngestResult{
			ID:      id,
			Status:  decision.Status,
			Saved:   saved,
			Skipped: skipped + dropped,
		}, nil
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			err = fmt.Errorf("%w: %w", ErrDuplicate, err)
		}
		r.logger.Error("ingestion rolled back", "title", sub.Title, "author", sub.Author, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrIngestion, err)
	}

	if result.Conflict != nil {
		r.logger.Warn("duplicate record", "existing_id", result.Conflict.ExistingID, "title", sub.Title)
		return result, nil
	}

	r.logger.Info(
		"record ingested",
		"id", result.ID,
		"status", result.Status,
		"saved", result.Saved,
		"skipped", result.Skipped,
		"privileged", privileged,
	)
	return result, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Record], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, searchSort...).
		WhereSearch(page.Search, "Title", "Author", "Abstract")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.QueryScalar[int](ctx, r.db, countSQL, countArgs...)
	if err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	recs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	result := pagination.NewPageResult(recs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Record, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	rec, err := repository.QueryOne(ctx, r.db, q, args, scanRecord)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	rec.Mappings, err = repository.QueryMany(
		ctx, r.db,
		"SELECT label, confidence, rank, method FROM public.label_mappings WHERE record_id = $1 ORDER BY rank",
		[]any{id},
		scanMapping,
	)
	if err != nil {
		return nil, fmt.Errorf("query mappings: %w", err)
	}

	return &rec, nil
}

func (r *repo) Search(ctx context.Context, set labels.Set) ([]Record, error) {
	approved := string(labels.StatusApproved)
	qb := query.
		NewBuilder(projection, searchSort...).
		WhereEquals("Status", &approved)

	if len(set) > 0 {
		clause, args := exactMatch(set)
		qb.Where(clause, args...)
	}

	q, args := qb.Build()
	recs, err := repository.QueryMany(ctx, r.db, q, args, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("search records %s: %w", set, err)
	}
	return recs, nil
}

const labelCountsQuery = `
	SELECT g.label, COUNT(DISTINCT r.id)
	FROM generate_series(1, 16) AS g(label)
	LEFT JOIN public.label_mappings m ON m.label = g.label
	LEFT JOIN public.records r ON r.id = m.record_id AND r.status = 'approved'
	GROUP BY g.label
	ORDER BY g.label`

func (r *repo) LabelCounts(ctx context.Context) ([]LabelCount, error) {
	rows, err := repository.QueryMany(ctx, r.db, labelCountsQuery, nil, func(s repository.Scanner) (LabelCount, error) {
		var lc LabelCount
		err := s.Scan(&lc.Label, &lc.Count)
		return lc, err
	})
	if err != nil {
		return nil, fmt.Errorf("count labels: %w", err)
	}

	counts := make([]LabelCount, labels.MaxLabel)
	for i := range counts {
		counts[i].Label = labels.Label(i + 1)
	}
	for _, row := range rows {
		if row.Label.Valid() {
			counts[row.Label-1].Count = row.Count
		}
	}
	return counts, nil
}

func (r *repo) Dashboard(ctx context.Context) (*Dashboard, error) {
	var (
		d      Dashboard
		totals []statusTotal
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := r.LabelCounts(gctx)
		d.Labels = counts
		return err
	})

	g.Go(func() error {
		var err error
		totals, err = repository.QueryMany(
			gctx, r.db,
			"SELECT status, COUNT(*) FROM public.records GROUP BY status",
			nil,
			func(s repository.Scanner) (statusTotal, error) {
				var t statusTotal
				err := s.Scan(&t.status, &t.count)
				return t, err
			},
		)
		if err != nil {
			return fmt.Errorf("count statuses: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, t := range totals {
		switch t.status {
		case labels.StatusApproved:
			d.Approved = t.count
		case labels.StatusPendingReview:
			d.Pending = t.count
		}
	}
	return &d, nil
}

type statusTotal struct {
	status labels.Status
	count  int
}

func findDuplicate(ctx context.Context, tx *sql.Tx, id Identity) (*Conflict, error) {
	c, err := repository.QueryOne(
		ctx, tx,
		`SELECT id, title, author FROM public.records
		WHERE identity_title = $1 AND identity_author = $2
		ORDER BY created_at LIMIT 1`,
		[]any{id.Title, id.Author},
		func(s repository.Scanner) (Conflict, error) {
			var c Conflict
			err := s.Scan(&c.ExistingID, &c.Title, &c.Author)
			return c, err
		},
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

type departmentLookup struct {
	query string
	arg   any
}

// resolveDepartment maps a department reference to an id: an existing numeric id,
// else a case-insensitive name match, else the Other department. Returns nil when
// even Other is absent.
func resolveDepartment(ctx context.Context, tx *sql.Tx, ref string) (*int, error) {
	var lookups []departmentLookup
	if ref != "" {
		if n, err := strconv.Atoi(ref); err == nil {
			lookups = append(lookups, departmentLookup{"SELECT id FROM public.departments WHERE id = $1", n})
		} else {
			lookups = append(lookups, departmentLookup{"SELECT id FROM public.departments WHERE LOWER(name) = LOWER($1)", ref})
		}
	}
	lookups = append(lookups, departmentLookup{"SELECT id FROM public.departments WHERE name = $1", OtherDepartment})

	for _, l := range lookups {
		id, err := repository.QueryScalar[int](ctx, tx, l.query, l.arg)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &id, nil
	}
	return nil, nil
}

func insertRecord(
	ctx context.Context,
	tx *sql.Tx,
	id uuid.UUID,
	sub Submission,
	identity Identity,
	departmentID *int,
	status labels.Status,
	allowDuplicate bool,
) error {
	return repository.ExecExpectOne(
		ctx, tx,
		`INSERT INTO public.records(
			id, title, author, identity_title, identity_author, publication_date,
			department_id, abstract, url, discipline, keywords, status, allow_duplicate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id,
		sub.Title,
		sub.Author,
		identity.Title,
		identity.Author,
		sub.PublicationDate,
		departmentID,
		sub.Abstract,
		nullable(sub.URL),
		nullable(sub.Discipline),
		nullable(strings.Join(sub.Keywords, ", ")),
		string(status),
		allowDuplicate,
	)
}

// insertMappings stores mappings in order with dense ranks. Invalid labels,
// repeated labels, and entries past the third are skipped and counted.
func insertMappings(
	ctx context.Context,
	tx *sql.Tx,
	recordID uuid.UUID,
	mappings []labels.Candidate,
	privileged bool,
) (saved, skipped int, err error) {
	seen := make(map[labels.Label]bool, len(mappings))
	for _, c := range mappings {
		if !c.Label.Valid() || seen[c.Label] || saved >= labels.MaxCandidates {
			skipped++
			continue
		}
		seen[c.Label] = true

		err := repository.ExecExpectOne(
			ctx, tx,
			`INSERT INTO public.label_mappings(record_id, label, confidence, rank, method)
			VALUES ($1, $2, $3, $4, $5)`,
			recordID,
			int(c.Label),
			c.Score,
			saved+1,
			string(labels.MethodFor(c, privileged)),
		)
		if err != nil {
			return saved, skipped, fmt.Errorf("label %d: %w", c.Label, err)
		}
		saved++
	}
	return saved, skipped, nil
}
