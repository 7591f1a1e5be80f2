package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"jobflow/internal/models"
)

var testTiers = TierList{
	Target:  []string{"Acme", "Café Labs"},
	Stretch: []string{"Globex"},
	Known:   []string{"Initech"},
}

func TestTierOf(t *testing.T) {
	tests := []struct {
		company string
		want    string
	}{
		{"Acme", TierTarget},
		{"acme", TierTarget},
		{"cafe labs", TierTarget}, // diacritics normalize away
		{"Globex", TierStretch},
		{"INITECH", TierKnown},
		{"Wayne Enterprises", TierOther},
		{"", TierOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, testTiers.TierOf(tt.company), "company %q", tt.company)
	}
}

func TestPrioritizeTierBonus(t *testing.T) {
	now := time.Now()
	sc := 50.0

	tests := []struct {
		company string
		total   float64
	}{
		{"Acme", 75},              // 50 + 25
		{"Globex", 70},            // 50 + 20
		{"Initech", 62},           // 50 + 12
		{"Wayne Enterprises", 55}, // 50 + 5
	}
	for _, tt := range tests {
		l := &models.Listing{JobID: "1", Company: tt.company, Score: &sc}
		b := Prioritize(l, testTiers, now)
		assert.InDelta(t, tt.total, b.Total, 0.001, "company %q", tt.company)
		assert.Zero(t, b.Freshness, "no posting date means no freshness bonus")
	}
}

func TestPrioritizeFreshnessDecay(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	sc := 0.0

	tests := []struct {
		name     string
		postedAt string
		want     float64
	}{
		{"posted today", "2026-08-20T12:00:00Z", 20},
		{"three days old", "2026-08-17T12:00:00Z", 14},
		{"ten days old", "2026-08-10T12:00:00Z", 0},
		{"ancient", "2026-01-01T00:00:00Z", 0},
		{"future date clamps", "2026-09-01T00:00:00Z", 20},
		{"unparseable", "whenever", 0},
		{"missing", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &models.Listing{JobID: "1", Company: "Wayne Enterprises", Score: &sc, PostedAt: tt.postedAt}
			b := Prioritize(l, testTiers, now)
			assert.InDelta(t, tt.want, b.Freshness, 0.001)
		})
	}
}

func TestPrioritizeMissingScore(t *testing.T) {
	b := Prioritize(&models.Listing{JobID: "1", Company: "Acme"}, testTiers, time.Now())
	assert.Zero(t, b.Base)
	assert.InDelta(t, 25, b.Total, 0.001)
	assert.Equal(t, TierTarget, b.Tier)
}

func TestPrioritizeNilListing(t *testing.T) {
	b := Prioritize(nil, testTiers, time.Now())
	assert.Zero(t, b.Total)
	assert.Equal(t, TierOther, b.Tier)
}

func TestPrepCandidatesTierBeatsRawScore(t *testing.T) {
	now := time.Now()
	known, other := 60.0, 65.0
	doc := &models.StateDoc{}
	listings := &models.ListingsDoc{Listings: map[string]*models.Listing{
		"k": {JobID: "k", Company: "Initech", Score: &known, Status: models.StatusQualified},
		"o": {JobID: "o", Company: "Wayne Enterprises", Score: &other, Status: models.StatusQualified},
	}}

	got := PrepCandidates(doc, listings, testTiers, now)
	// 60+12 beats 65+5.
	if assert.Len(t, got, 2) {
		assert.Equal(t, "k", got[0].JobID)
		assert.Equal(t, "o", got[1].JobID)
	}
}

func TestPrepCandidatesFiltering(t *testing.T) {
	now := time.Now()
	sc := 50.0
	doc := &models.StateDoc{}
	doc.JobPipeline.PendingMaterials = []models.PipelineEntry{{JobID: "in-pipeline"}}

	listings := &models.ListingsDoc{Listings: map[string]*models.Listing{
		"in-pipeline": {JobID: "in-pipeline", Status: models.StatusQualified, Score: &sc},
		"has-folder":  {JobID: "has-folder", Status: models.StatusQualified, Score: &sc, ApplicationFolder: "Somewhere"},
		"too-new":     {JobID: "too-new", Status: models.StatusNew, Score: &sc},
		"done":        {JobID: "done", Status: models.StatusSubmitted, Score: &sc},
		"good":        {JobID: "good", Status: models.StatusQualified, Score: &sc},
	}}

	got := PrepCandidates(doc, listings, testTiers, now)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "good", got[0].JobID)
	}
}

func TestPrepCandidatesDeterministicTies(t *testing.T) {
	now := time.Now()
	sc := 50.0
	doc := &models.StateDoc{}
	listings := &models.ListingsDoc{Listings: map[string]*models.Listing{
		"b": {JobID: "b", Status: models.StatusQualified, Score: &sc},
		"a": {JobID: "a", Status: models.StatusQualified, Score: &sc},
		"c": {JobID: "c", Status: models.StatusQualified, Score: &sc},
	}}

	for i := 0; i < 5; i++ {
		got := PrepCandidates(doc, listings, testTiers, now)
		if assert.Len(t, got, 3) {
			assert.Equal(t, "a", got[0].JobID)
			assert.Equal(t, "b", got[1].JobID)
			assert.Equal(t, "c", got[2].JobID)
		}
	}
}
