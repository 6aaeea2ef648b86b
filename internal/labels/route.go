package labels

// Threshold is the minimum score for automatic approval.
const Threshold = 0.75

// Status is the review state of an ingested record.
type Status string

const (
	StatusApproved      Status = "approved"
	StatusPendingReview Status = "pending_review"
)

// Method records how a label mapping was decided.
type Method string

const (
	MethodAuto          Method = "ai_auto"
	MethodManualEdit    Method = "manual_edit"
	MethodAdminOverride Method = "admin_override"
)

// Decision is the routed outcome for one record. Dropped counts the entries
// cut from Mappings by the per-record cap.
type Decision struct {
	Status   Status      `json:"status"`
	Mappings []Candidate `json:"mappings"`
	Dropped  int         `json:"-"`
}

// Qualifies reports whether c may be saved as an approved mapping.
func Qualifies(c Candidate) bool {
	return c.Score >= Threshold || c.IsManualEdit || c.Score >= 1.0
}

// Route decides the status and mappings for a candidate list. Privileged callers
// always approve with the qualifying subset. Unprivileged callers approve only when
// something qualifies; otherwise the record goes to review with every candidate.
func Route(candidates []Candidate, privileged bool) Decision {
	qualifying := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if Qualifies(c) {
			qualifying = append(qualifying, c)
		}
	}

	if privileged || len(qualifying) > 0 {
		return capped(StatusApproved, qualifying)
	}
	return capped(StatusPendingReview, candidates)
}

// NoRelevantTags is the decision for a record explicitly marked as having no SDG labels.
func NoRelevantTags(privileged bool) Decision {
	if privileged {
		return Decision{Status: StatusApproved, Mappings: []Candidate{}}
	}
	return Decision{Status: StatusPendingReview, Mappings: []Candidate{}}
}

// MethodFor returns the mapping method for c.
func MethodFor(c Candidate, privileged bool) Method {
	switch {
	case c.IsManualEdit:
		return MethodManualEdit
	case privileged:
		return MethodAdminOverride
	default:
		return MethodAuto
	}
}

func capped(status Status, mappings []Candidate) Decision {
	d := Decision{Status: status, Mappings: mappings}
	if len(mappings) > MaxCandidates {
		d.Mappings = mappings[:MaxCandidates]
		d.Dropped = len(mappings) - MaxCandidates
	}
	return d
}
