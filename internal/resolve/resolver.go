// Package resolve decides which indexed document a policy reference searches
// and which metadata its score is computed against.
package resolve

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
)

const unknownPolicyName = "Unknown Policy"

// PolicySource is the policy-record side of the evidence store.
// Lookups return (nil, nil) when the record is absent.
type PolicySource interface {
	GetCatalogPolicy(ctx context.Context, id string) (*model.CatalogPolicy, error)
	GetUploadedPolicy(ctx context.Context, id string) (*model.UploadedPolicy, error)
	ListCatalogPolicies(ctx context.Context) ([]model.CatalogPolicy, error)
	FindUploadedDocumentForInsurer(ctx context.Context, insurer string) (*model.UploadedPolicy, error)
}

// Origin tells which store a reference resolved against
type Origin string

const (
	OriginCatalog  Origin = "catalog"
	OriginUploaded Origin = "uploaded"
)

// Resolution is the outcome of resolving a policy reference
type Resolution struct {
	Reference        string
	Origin           Origin
	PolicyName       string
	Insurer          string
	SearchDocumentID string              // Document whose clauses are searched
	Metadata         model.ScoringFields // Fields the scorer reads
	EnrichedFrom     string              // Catalog record merged into uploaded metadata, if any
}

// Resolver resolves policy references
type Resolver struct {
	source    PolicySource
	matchMode model.InsurerMatchMode
	logger    *slog.Logger
}

// NewResolver creates a resolver
func NewResolver(source PolicySource, matchMode model.InsurerMatchMode) *Resolver {
	if matchMode == "" {
		matchMode = model.MatchSubstring
	}
	return &Resolver{
		source:    source,
		matchMode: matchMode,
		logger:    logging.New("resolve"),
	}
}

// Resolve looks the reference up in the catalog first, then among uploads.
// Failures are *model.CheckError values.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Resolution, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, model.NewCheckError(model.KindPolicyNotFound, nil, "Policy not found.")
	}

	catalog, err := r.source.GetCatalogPolicy(ctx, ref)
	if err != nil {
		return nil, model.NewCheckError(model.KindRetrievalFailure, err, "Policy lookup failed.")
	}
	if catalog != nil {
		return r.resolveCatalog(ctx, ref, catalog)
	}

	uploaded, err := r.source.GetUploadedPolicy(ctx, ref)
	if err != nil {
		return nil, model.NewCheckError(model.KindRetrievalFailure, err, "Policy lookup failed.")
	}
	if uploaded != nil {
		return r.resolveUploaded(ctx, ref, uploaded)
	}

	return nil, model.NewCheckError(model.KindPolicyNotFound, nil, "Policy not found.")
}

// resolveCatalog maps a catalog product onto an uploaded document of the same insurer.
// Catalog products are not indexed on their own.
func (r *Resolver) resolveCatalog(ctx context.Context, ref string, policy *model.CatalogPolicy) (*Resolution, error) {
	name := policy.Name
	if name == "" {
		name = unknownPolicyName
	}

	var doc *model.UploadedPolicy
	if strings.TrimSpace(policy.Insurer) != "" {
		var err error
		doc, err = r.source.FindUploadedDocumentForInsurer(ctx, policy.Insurer)
		if err != nil {
			return nil, model.NewCheckError(model.KindRetrievalFailure, err, "Policy document lookup failed for %s.", name)
		}
	}
	if doc == nil {
		return nil, model.NewCheckError(model.KindNoIndexedDocument, nil,
			"No embedded policy document found for %s (%s). Claim check requires an uploaded and indexed policy document. Please upload this policy's PDF first, or select a policy whose document is already indexed.",
			name, policy.Insurer)
	}

	r.logger.DebugContext(ctx, "catalog policy mapped to uploaded document",
		"policy", ref, "insurer", policy.Insurer, "document", doc.ID)

	return &Resolution{
		Reference:        ref,
		Origin:           OriginCatalog,
		PolicyName:       name,
		Insurer:          policy.Insurer,
		SearchDocumentID: doc.ID,
		Metadata:         copyFields(policy.ScoringFields),
	}, nil
}

// resolveUploaded always searches the uploaded document itself.
// Catalog metadata only fills fields the uploader left empty.
func (r *Resolver) resolveUploaded(ctx context.Context, ref string, policy *model.UploadedPolicy) (*Resolution, error) {
	name := policy.UserLabel
	if name == "" {
		name = unknownPolicyName
	}

	res := &Resolution{
		Reference:        ref,
		Origin:           OriginUploaded,
		PolicyName:       name,
		Insurer:          policy.Insurer,
		SearchDocumentID: policy.ID,
		Metadata:         copyFields(policy.ScoringFields),
	}
	if res.SearchDocumentID == "" {
		res.SearchDocumentID = ref
	}

	if strings.TrimSpace(policy.Insurer) == "" {
		return res, nil
	}

	// Read through on every request; the catalog may change between calls.
	catalog, err := r.source.ListCatalogPolicies(ctx)
	if err != nil {
		return nil, model.NewCheckError(model.KindRetrievalFailure, err, "Catalog lookup failed.")
	}

	if match := FindCatalogMatch(policy.Insurer, catalog, r.matchMode); match != nil {
		res.Metadata = MergeScoringFields(res.Metadata, match.ScoringFields)
		res.EnrichedFrom = match.ID
		r.logger.DebugContext(ctx, "uploaded policy enriched from catalog",
			"policy", ref, "insurer", policy.Insurer, "catalog", match.ID)
	}

	return res, nil
}

// FindCatalogMatch returns the catalog record used to enrich an uploaded policy.
// In substring mode the first record whose insurer is a case-insensitive
// substring of the uploaded insurer (or vice versa) wins. In exact_first mode an
// exact case-insensitive match anywhere in the catalog takes precedence.
func FindCatalogMatch(insurer string, catalog []model.CatalogPolicy, mode model.InsurerMatchMode) *model.CatalogPolicy {
	if mode == model.MatchExactFirst {
		for i := range catalog {
			if model.InsurerEquals(insurer, catalog[i].Insurer) {
				return &catalog[i]
			}
		}
	}
	for i := range catalog {
		if model.InsurerMatches(insurer, catalog[i].Insurer) {
			return &catalog[i]
		}
	}
	return nil
}

// MergeScoringFields fills every absent field of dst from src.
// Fields already present in dst are never overwritten.
func MergeScoringFields(dst, src model.ScoringFields) model.ScoringFields {
	out := copyFields(dst)
	if out.WaitingPeriodPreexistingYears == nil && src.WaitingPeriodPreexistingYears != nil {
		out.WaitingPeriodPreexistingYears = model.IntPtr(*src.WaitingPeriodPreexistingYears)
	}
	if out.CoPayPercent == nil && src.CoPayPercent != nil {
		out.CoPayPercent = model.FloatPtr(*src.CoPayPercent)
	}
	if out.RoomRentLimit == nil && src.RoomRentLimit != nil {
		out.RoomRentLimit = model.StringPtr(*src.RoomRentLimit)
	}
	if out.WaitingPeriodMaternityMonths == nil && src.WaitingPeriodMaternityMonths != nil {
		out.WaitingPeriodMaternityMonths = model.IntPtr(*src.WaitingPeriodMaternityMonths)
	}
	if out.CoversMaternity == nil && src.CoversMaternity != nil {
		out.CoversMaternity = model.BoolPtr(*src.CoversMaternity)
	}
	if out.CoversOPD == nil && src.CoversOPD != nil {
		out.CoversOPD = model.BoolPtr(*src.CoversOPD)
	}
	return out
}

// copyFields detaches the result from the store's records
func copyFields(f model.ScoringFields) model.ScoringFields {
	var out model.ScoringFields
	if f.WaitingPeriodPreexistingYears != nil {
		out.WaitingPeriodPreexistingYears = model.IntPtr(*f.WaitingPeriodPreexistingYears)
	}
	if f.CoPayPercent != nil {
		out.CoPayPercent = model.FloatPtr(*f.CoPayPercent)
	}
	if f.RoomRentLimit != nil {
		out.RoomRentLimit = model.StringPtr(*f.RoomRentLimit)
	}
	if f.WaitingPeriodMaternityMonths != nil {
		out.WaitingPeriodMaternityMonths = model.IntPtr(*f.WaitingPeriodMaternityMonths)
	}
	if f.CoversMaternity != nil {
		out.CoversMaternity = model.BoolPtr(*f.CoversMaternity)
	}
	if f.CoversOPD != nil {
		out.CoversOPD = model.BoolPtr(*f.CoversOPD)
	}
	return out
}
