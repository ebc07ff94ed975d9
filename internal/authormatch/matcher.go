// Package authormatch implements identifier-based duplicate detection and
// consolidation for author records. Both operations are pure functions over
// fetched records: nothing here touches the network, and input records are
// never mutated.
package authormatch

import (
	"fmt"
	"sort"

	"github.com/helixir/scholar-service/internal/domain"
)

// Group is a set of author records believed to represent one person.
// Primary is the member with the highest citation count; the rest are
// candidates. MatchReasons explains the grouping (e.g. "same_orcid:<id>").
type Group struct {
	Primary      domain.Author   `json:"primary_author"`
	Candidates   []domain.Author `json:"candidates"`
	MatchReasons []string        `json:"match_reasons"`
}

// GroupDuplicates groups authors sharing an external identifier. ORCID
// groups are formed first; DBLP groups are then formed from records not
// already claimed by an ORCID group, so a pair matched by both identifiers
// appears exactly once, under the ORCID tag. Group output order follows the
// first appearance of each identifier in the input; within a group, members
// are ordered by citation count descending with ties keeping encounter
// order.
//
// The input is expected to be deduplicated by author identifier already;
// records without the relevant identifier are ignored for that scheme.
func GroupDuplicates(authors []domain.Author, byORCID, byDBLP bool) []Group {
	orcidGroups := make(map[string][]domain.Author)
	var orcidOrder []string
	dblpGroups := make(map[string][]domain.Author)
	var dblpOrder []string

	for _, author := range authors {
		if byORCID {
			if orcid := author.ORCID(); orcid != "" {
				if _, seen := orcidGroups[orcid]; !seen {
					orcidOrder = append(orcidOrder, orcid)
				}
				orcidGroups[orcid] = append(orcidGroups[orcid], author)
			}
		}
		if byDBLP {
			if dblp := author.DBLP(); dblp != "" {
				if _, seen := dblpGroups[dblp]; !seen {
					dblpOrder = append(dblpOrder, dblp)
				}
				dblpGroups[dblp] = append(dblpGroups[dblp], author)
			}
		}
	}

	var groups []Group
	claimed := make(map[string]bool)

	for _, orcid := range orcidOrder {
		members := orcidGroups[orcid]
		if len(members) < 2 {
			continue
		}
		group := buildGroup(members, fmt.Sprintf("same_orcid:%s", orcid))
		markClaimed(claimed, members)
		groups = append(groups, group)
	}

	for _, dblp := range dblpOrder {
		var remaining []domain.Author
		for _, a := range dblpGroups[dblp] {
			if a.AuthorID != "" && claimed[a.AuthorID] {
				continue
			}
			remaining = append(remaining, a)
		}
		if len(remaining) < 2 {
			continue
		}
		group := buildGroup(remaining, fmt.Sprintf("same_dblp:%s", dblp))
		markClaimed(claimed, remaining)
		groups = append(groups, group)
	}

	return groups
}

// buildGroup sorts members by citation count descending (stable, so ties
// keep encounter order) and splits off the primary.
func buildGroup(members []domain.Author, reason string) Group {
	sorted := make([]domain.Author, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CitationCount > sorted[j].CitationCount
	})

	return Group{
		Primary:      sorted[0],
		Candidates:   sorted[1:],
		MatchReasons: []string{reason},
	}
}

func markClaimed(claimed map[string]bool, members []domain.Author) {
	for _, a := range members {
		if a.AuthorID != "" {
			claimed[a.AuthorID] = true
		}
	}
}
