package dedup

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/johnrirwin/newsradar/internal/models"
)

const (
	recencyWeight    = 0.4
	lengthWeight     = 0.3
	reputationWeight = 0.3
)

// RankMembers orders a cluster's members by representative score, best
// first. Ties go to the lower article id.
func RankMembers(members []models.Article, reputable []string) []models.Article {
	scores := RepresentativeScores(members, reputable)

	idx := make([]int, len(members))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if scores[ia] != scores[ib] {
			return scores[ia] > scores[ib]
		}
		return members[ia].ID < members[ib].ID
	})

	ranked := make([]models.Article, len(members))
	for i, j := range idx {
		ranked[i] = members[j]
	}
	return ranked
}

// RepresentativeScores computes 0.4·recency + 0.3·length + 0.3·reputation
// for each member, every component normalized within the cluster.
func RepresentativeScores(members []models.Article, reputable []string) []float64 {
	scores := make([]float64, len(members))
	if len(members) == 0 {
		return scores
	}

	oldest, newest := members[0].PublishedAt, members[0].PublishedAt
	maxLen := 0
	for _, a := range members {
		if a.PublishedAt.Before(oldest) {
			oldest = a.PublishedAt
		}
		if a.PublishedAt.After(newest) {
			newest = a.PublishedAt
		}
		if l := utf8.RuneCountInString(a.Content); l > maxLen {
			maxLen = l
		}
	}
	span := newest.Sub(oldest)

	for i, a := range members {
		recency := 1.0
		if span > 0 {
			recency = float64(a.PublishedAt.Sub(oldest)) / float64(span)
		}

		length := 0.0
		if maxLen > 0 {
			length = float64(utf8.RuneCountInString(a.Content)) / float64(maxLen)
		}

		scores[i] = recencyWeight*recency + lengthWeight*length + reputationWeight*SourceReputation(a.Source, reputable)
	}
	return scores
}

// SourceReputation is 1.0 for a reputable outlet and 0.5 otherwise
func SourceReputation(source string, reputable []string) float64 {
	s := strings.ToLower(source)
	for _, r := range reputable {
		if r != "" && strings.Contains(s, strings.ToLower(r)) {
			return 1.0
		}
	}
	return 0.5
}
