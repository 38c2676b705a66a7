package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/masonhargrove/medlit/internal/pubmed"
)

func withType(pmid, articleType string) pubmed.Article {
	return pubmed.Article{PMID: pmid, Title: "Title " + pmid, ArticleType: articleType}
}

func TestQualityFromArticleType(t *testing.T) {
	cases := map[string]Quality{
		"Meta-Analysis":               QualityHigh,
		"Systematic Review":           QualityHigh,
		"Randomized Controlled Trial": QualityModerate,
		"Clinical Trial":              QualityModerate,
		"Cohort Study":                QualityLow,
		"Case Reports":                QualityLow,
		"Review":                      QualityLow,
		"Letter":                      QualityUnknown,
		"":                            QualityUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, QualityFromArticleType(in), "type %q", in)
	}
}

func TestGradeCascade(t *testing.T) {
	// One high-tier article upgrades the whole set.
	articles := []pubmed.Article{
		withType("1", "Case Reports"),
		withType("2", "Case Reports"),
		withType("3", "Meta-Analysis"),
		withType("4", "Case Reports"),
	}
	assert.Equal(t, QualityHigh, Grade(articles))

	// Moderate beats low regardless of counts.
	articles = []pubmed.Article{
		withType("1", "Case Reports"),
		withType("2", "Randomized Controlled Trial"),
		withType("3", "Case Reports"),
	}
	assert.Equal(t, QualityModerate, Grade(articles))

	assert.Equal(t, QualityLow, Grade([]pubmed.Article{
		withType("1", "Case Reports"),
		withType("2", "Cohort Study"),
	}))

	assert.Equal(t, QualityUnknown, Grade([]pubmed.Article{withType("1", "Letter")}))
	assert.Equal(t, QualityUnknown, Grade(nil))
}

func TestParseQuality(t *testing.T) {
	assert.Equal(t, QualityHigh, ParseQuality("HIGH"))
	assert.Equal(t, QualityModerate, ParseQuality(" moderate "))
	assert.Equal(t, QualityUnknown, ParseQuality("excellent"))
	assert.Equal(t, QualityUnknown, ParseQuality(""))
}

func TestQualityTitle(t *testing.T) {
	assert.Equal(t, "High", QualityHigh.Title())
	assert.Equal(t, "Unknown", QualityUnknown.Title())
}

func TestFromArticlesPreservesOrder(t *testing.T) {
	articles := []pubmed.Article{
		{PMID: "30", Title: "Third most relevant"},
		{PMID: "10", Title: "Most relevant"},
		{PMID: "20", Title: "Second"},
	}

	citations := FromArticles(articles)
	assert.Equal(t, []string{"30", "10", "20"}, []string{
		citations[0].PMID, citations[1].PMID, citations[2].PMID,
	})
}

func TestCitationRendering(t *testing.T) {
	c := Citation{PMID: "12345", Title: "T", Authors: "Smith J et al.", Year: 2023}

	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/12345", c.URL())
	assert.Equal(t, "[Smith J et al. (2023)](https://pubmed.ncbi.nlm.nih.gov/12345)", c.Markdown())
	assert.Equal(t, "[PMID: 12345, 2023]", c.Inline())

	c.Year = 0
	assert.Equal(t, "[PMID: 12345]", c.Inline())
}

func TestCheckConsistency(t *testing.T) {
	citations := []Citation{{PMID: "111"}, {PMID: "222"}}

	narrative := "One study [PMID: 111] found benefit, confirmed elsewhere (PMID 222). " +
		"See https://pubmed.ncbi.nlm.nih.gov/111 for details."
	report := CheckConsistency(narrative, citations)
	assert.True(t, report.Passed())
	assert.ElementsMatch(t, []string{"111", "222"}, report.Referenced)

	// A PMID outside the fetched set is flagged, not fatal.
	report = CheckConsistency("As shown in [PMID: 999], the effect is large.", citations)
	assert.False(t, report.Passed())
	assert.Equal(t, []string{"999"}, report.Unknown)

	// No references at all passes trivially.
	assert.True(t, CheckConsistency("No citations here.", citations).Passed())
}

func TestEvidenceCounts(t *testing.T) {
	e := Evidence{
		SupportingCitations:  []Citation{{PMID: "1"}, {PMID: "2"}},
		ConflictingCitations: []Citation{{PMID: "3"}},
	}
	assert.Equal(t, 3, e.TotalCitations())
	assert.True(t, e.HasConflicts())
	assert.False(t, Evidence{}.HasConflicts())
}
