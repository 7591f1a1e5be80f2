package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobflow/internal/models"
)

func TestQueueIDForFallbackOrder(t *testing.T) {
	tests := []struct {
		name  string
		entry models.PipelineEntry
		want  string
	}{
		{
			name:  "explicit id wins over everything",
			entry: models.PipelineEntry{QueueID: "custom-7", JobID: "123", FolderName: "Acme_Engineer"},
			want:  "custom-7",
		},
		{
			name:  "job id",
			entry: models.PipelineEntry{JobID: "123", FolderName: "Acme_Engineer", Company: "Acme"},
			want:  "q_job_123",
		},
		{
			name:  "folder name",
			entry: models.PipelineEntry{FolderName: "Acme_Engineer", Company: "Acme", Title: "Engineer"},
			want:  "q_folder_Acme_Engineer",
		},
		{
			name:  "signature fallback",
			entry: models.PipelineEntry{Company: "Acme", Title: "Engineer"},
			want:  sigPrefix + Signature("Acme", "Engineer"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QueueIDFor(tt.entry))
		})
	}
}

func TestQueueIDForDeterministic(t *testing.T) {
	e := models.PipelineEntry{Company: "Globex Corporation", Title: "Staff Engineer"}
	first := QueueIDFor(e)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, QueueIDFor(e))
	}
}

func TestSignatureNormalization(t *testing.T) {
	// Case, diacritics and whitespace must not change an identity.
	base := Signature("Café Media", "Backend Engineer")
	assert.Equal(t, base, Signature("cafe media", "backend engineer"))
	assert.Equal(t, base, Signature("CAFE  MEDIA", "Backend\tEngineer"))
	assert.NotEqual(t, base, Signature("Cafe Media", "Frontend Engineer"))
	assert.Len(t, base, sigHexLen)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Acme   Corp ", "acme corp"},
		{"Café", "cafe"},
		{"Zürich Büro", "zurich buro"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestSameEntry(t *testing.T) {
	tests := []struct {
		name string
		a, b models.PipelineEntry
		want bool
	}{
		{
			name: "same queue id",
			a:    models.PipelineEntry{QueueID: "q_job_123"},
			b:    models.PipelineEntry{QueueID: "q_job_123"},
			want: true,
		},
		{
			name: "job id match despite different queue ids",
			a:    models.PipelineEntry{QueueID: "legacy-1", JobID: "123"},
			b:    models.PipelineEntry{QueueID: "q_job_123", JobID: "123"},
			want: true,
		},
		{
			name: "folder match with no job ids",
			a:    models.PipelineEntry{FolderName: "Acme_Engineer", Company: "Acme"},
			b:    models.PipelineEntry{QueueID: "whatever", FolderName: "Acme_Engineer"},
			want: true,
		},
		{
			name: "derived job id matches entry that only has the job id",
			a:    models.PipelineEntry{JobID: "123"},
			b:    models.PipelineEntry{QueueID: "q_job_123"},
			want: true,
		},
		{
			name: "no overlap",
			a:    models.PipelineEntry{JobID: "123", FolderName: "A"},
			b:    models.PipelineEntry{JobID: "456", FolderName: "B"},
			want: false,
		},
		{
			name: "empty fields never match each other",
			a:    models.PipelineEntry{JobID: "123"},
			b:    models.PipelineEntry{FolderName: "B"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameEntry(tt.a, tt.b))
			assert.Equal(t, tt.want, SameEntry(tt.b, tt.a), "equivalence must be symmetric")
		})
	}
}

func TestDedupe(t *testing.T) {
	entries := []models.PipelineEntry{
		{JobID: "1", Company: "First"},
		{JobID: "2", Company: "Second"},
		{JobID: "1", Company: "Duplicate of first"},
		{FolderName: "Acme_Engineer"},
		{JobID: "1", Company: "Another duplicate"},
		{FolderName: "Acme_Engineer", Company: "dup"},
	}

	out := Dedupe(entries)
	require.Len(t, out, 3)

	// First occurrence wins, order preserved.
	assert.Equal(t, "First", out[0].Company)
	assert.Equal(t, "Second", out[1].Company)
	assert.Equal(t, "Acme_Engineer", out[2].FolderName)
	assert.Empty(t, out[2].Company)

	// Invariant: no two results share a queue id.
	seen := map[string]bool{}
	for _, e := range out {
		id := QueueIDFor(e)
		assert.False(t, seen[id], "duplicate queue id %s after dedupe", id)
		seen[id] = true
	}
}

func TestDedupeIdempotent(t *testing.T) {
	entries := []models.PipelineEntry{{JobID: "1"}, {JobID: "2"}, {JobID: "1"}}
	once := Dedupe(entries)
	twice := Dedupe(once)
	assert.Equal(t, once, twice)
}

func TestDedupeEmpty(t *testing.T) {
	assert.Empty(t, Dedupe(nil))
	assert.Empty(t, Dedupe([]models.PipelineEntry{}))
}
