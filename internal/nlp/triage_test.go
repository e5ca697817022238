package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/masterlinc/orchestrator/internal/config"
	"github.com/masterlinc/orchestrator/pkg/utils"
)

func newTestTriager() *Triager {
	cfg := config.TriageConfig{
		EmergencyKeywords: []string{"unconscious", "not breathing", "severe bleeding"},
		UrgentKeywords:    []string{"chest pain", "chest", "heart", "head", "fracture", "high fever"},
		RoutineKeywords:   []string{"cough", "cold", "rash", "checkup"},
	}
	return NewTriager(cfg, utils.NewNopLogger())
}

func TestTriager_ExtractSymptoms(t *testing.T) {
	triager := newTestTriager()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "multi-word keyword matches inside sentence",
			text: "I have severe chest pain since this morning",
			want: []string{"chest pain", "chest"},
		},
		{
			name: "case insensitive",
			text: "Persistent COUGH and a Cold",
			want: []string{"cough", "cold"},
		},
		{
			name: "no matches",
			text: "just calling to ask about opening hours",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, triager.ExtractSymptoms(tt.text))
		})
	}
}

func TestTriager_ClassifySeverity(t *testing.T) {
	triager := newTestTriager()

	tests := []struct {
		name     string
		symptoms []string
		want     string
	}{
		{"emergency outranks urgent", []string{"cough", "unconscious", "chest pain"}, SeverityEmergency},
		{"chest pain is urgent", []string{"chest pain"}, SeverityUrgent},
		{"routine only", []string{"cough", "rash"}, SeverityRoutine},
		{"no symptoms is routine", nil, SeverityRoutine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, triager.ClassifySeverity(tt.symptoms))
		})
	}
}

func TestTriager_RecommendDepartment(t *testing.T) {
	triager := newTestTriager()

	tests := []struct {
		name     string
		symptoms []string
		want     string
	}{
		{"chest maps to cardiology", []string{"chest pain"}, "cardiology"},
		{"head maps to neurology", []string{"head"}, "neurology"},
		{"bone maps to orthopedics", []string{"broken bone"}, "orthopedics"},
		{"joint maps to orthopedics", []string{"joint swelling"}, "orthopedics"},
		{"fracture is outside the closed set", []string{"fracture"}, DepartmentGeneralPractice},
		{"rash is outside the closed set", []string{"rash"}, DepartmentGeneralPractice},
		{"unmapped falls back to general practice", []string{"high fever"}, DepartmentGeneralPractice},
		{"empty falls back to general practice", nil, DepartmentGeneralPractice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, triager.RecommendDepartment(tt.symptoms))
		})
	}
}

func TestTriager_Assess(t *testing.T) {
	triager := newTestTriager()

	result := triager.Assess("caller reports chest pain radiating to the arm")
	assert.Equal(t, SeverityUrgent, result.Severity)
	assert.Contains(t, result.Symptoms, "chest pain")
	assert.Equal(t, "book urgent appointment", result.RecommendedAction)
}
