package dedup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/johnrirwin/newsradar/internal/models"
)

func TestSourceReputation(t *testing.T) {
	tests := []struct {
		source string
		want   float64
	}{
		{"Reuters", 1.0},
		{"Bloomberg News", 1.0},
		{"www.ft.com", 1.0},
		{"CNBC", 1.0},
		{"Some Blog", 0.5},
		{"", 0.5},
	}

	for _, tt := range tests {
		if got := SourceReputation(tt.source, DefaultReputableSources); got != tt.want {
			t.Errorf("SourceReputation(%q) = %v, want %v", tt.source, got, tt.want)
		}
	}
}

func TestRankMembers_PrefersRecentLongReputable(t *testing.T) {
	members := []models.Article{
		article("old-blog", "x", "Blog", 0, "short"),
		article("new-reuters", "x", "Reuters", 60, strings.Repeat("w", 100)),
		article("mid-blog", "x", "Blog", 30, strings.Repeat("w", 50)),
	}

	ranked := RankMembers(members, DefaultReputableSources)

	assert.Equal(t, "new-reuters", ranked[0].ID)
	assert.Equal(t, "mid-blog", ranked[1].ID)
	assert.Equal(t, "old-blog", ranked[2].ID)
}

func TestRankMembers_TiesGoToLowerID(t *testing.T) {
	members := []models.Article{
		article("b", "x", "Blog", 0, "same"),
		article("a", "x", "Blog", 0, "same"),
		article("c", "x", "Blog", 0, "same"),
	}

	ranked := RankMembers(members, DefaultReputableSources)

	assert.Equal(t, []string{"a", "b", "c"}, []string{ranked[0].ID, ranked[1].ID, ranked[2].ID})
}

func TestRepresentativeScores_Components(t *testing.T) {
	members := []models.Article{
		article("a", "x", "Reuters", 0, "aaaa"),
		article("b", "x", "Blog", 10, "aa"),
	}

	scores := RepresentativeScores(members, DefaultReputableSources)

	// a: recency 0, length 1, reputation 1
	assert.InDelta(t, 0.3+0.3, scores[0], 1e-9)
	// b: recency 1, length 0.5, reputation 0.5
	assert.InDelta(t, 0.4+0.15+0.15, scores[1], 1e-9)
}

func TestRepresentativeScores_SameTimestampIsFullRecency(t *testing.T) {
	members := []models.Article{article("a", "x", "Blog", 5, ""), article("b", "x", "Blog", 5, "")}

	scores := RepresentativeScores(members, nil)

	for _, s := range scores {
		assert.InDelta(t, 0.4+0.15, s, 1e-9)
	}
}
