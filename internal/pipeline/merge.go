package pipeline

import (
	"sort"
	"strings"

	"marketbrief/internal/model"
)

// impactRank orders bullets within a section. Unknown or missing impact
// sorts to the bottom.
func impactRank(impact string) int {
	switch strings.ToLower(strings.TrimSpace(impact)) {
	case "high impact", "high":
		return 0
	case "medium impact", "medium":
		return 1
	case "low impact", "low":
		return 2
	default:
		return 999
	}
}

// MergePhase1Phase2 copies enrichment metadata onto the extraction output
// by bullet_id. The merge is total: a bullet with no matching enrichment
// passes through untouched. wall_street_sentiment bullets get the metadata
// but never filing context; analyst opinions already synthesize filing
// data, and re-adding it is contamination. After merging, the five
// enrichable sections are stable-sorted by impact.
func MergePhase1Phase2(phase1 *model.Report, enrichments map[string]*model.Enrichment) *model.Report {
	out := phase1.Clone()

	for _, name := range model.SectionNames {
		for _, b := range out.Sections[name] {
			e, ok := enrichments[b.BulletID]
			if !ok {
				continue
			}
			b.Impact = e.Impact
			b.Sentiment = e.Sentiment
			b.Reason = e.Reason
			b.Relevance = e.Relevance
			b.Entity = e.Entity
			if name == model.SectionWallStreetSentiment {
				b.Context = ""
			} else {
				b.Context = StripEscapeHatch(e.Context)
			}
		}
	}

	for _, name := range model.EnrichableSections {
		bullets := out.Sections[name]
		sort.SliceStable(bullets, func(i, j int) bool {
			return impactRank(bullets[i].Impact) < impactRank(bullets[j].Impact)
		})
	}
	return out
}

// MergePhase3WithPhase2 copies deduplication tags onto the merged report
// by bullet_id across the six dedup-eligible sections. Total function: a
// bullet absent from the dedup response defaults to unique, never dropped.
func MergePhase3WithPhase2(merged *model.Report, dedup map[string]*model.Deduplication) *model.Report {
	out := merged.Clone()
	for _, name := range model.BulletSections {
		for _, b := range out.Sections[name] {
			if d, ok := dedup[b.BulletID]; ok && d != nil {
				copied := *d
				copied.Absorbs = append([]string(nil), d.Absorbs...)
				b.Deduplication = &copied
			} else {
				b.Deduplication = &model.Deduplication{Status: model.DedupUnique}
			}
		}
	}
	return out
}

// ApplyDeduplication is the user-facing projection: duplicates are
// physically removed and each primary absorbs the source articles of the
// bullets it subsumes. Two passes because an absorbed bullet may live in a
// different section than its primary: first a global bullet_id index
// across all six sections, then per-section consolidation.
func ApplyDeduplication(merged *model.Report) *model.Report {
	out := merged.Clone()

	index := make(map[string]*model.Bullet)
	for _, name := range model.BulletSections {
		for _, b := range out.Sections[name] {
			index[b.BulletID] = b
		}
	}

	for _, name := range model.BulletSections {
		bullets := out.Sections[name]
		kept := make([]*model.Bullet, 0, len(bullets))
		for _, b := range bullets {
			switch b.DedupStatus() {
			case model.DedupDuplicate:
				continue
			case model.DedupPrimary:
				b.SourceArticles = unionSourceArticles(b, index)
			}
			kept = append(kept, b)
		}
		out.Sections[name] = kept
	}
	return out
}

// unionSourceArticles merges a primary's own source articles with those of
// every bullet it absorbs, sorted ascending and deduped.
func unionSourceArticles(primary *model.Bullet, index map[string]*model.Bullet) []int {
	seen := make(map[int]bool)
	for _, idx := range primary.SourceArticles {
		seen[idx] = true
	}
	if primary.Deduplication != nil {
		for _, absorbedID := range primary.Deduplication.Absorbs {
			absorbed, ok := index[absorbedID]
			if !ok {
				continue
			}
			for _, idx := range absorbed.SourceArticles {
				seen[idx] = true
			}
		}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
