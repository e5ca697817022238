// Package nlp holds the text-understanding pieces of the engine: the
// deterministic symptom triager and an optional AI-backed intent analyzer.
package nlp

import (
	"strings"

	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/config"
	"github.com/masterlinc/orchestrator/internal/models"
)

// Severity levels, most severe first
const (
	SeverityEmergency = "emergency"
	SeverityUrgent    = "urgent"
	SeverityRoutine   = "routine"
)

// DepartmentGeneralPractice is the fallback department when no symptom
// keyword maps to a specialty
const DepartmentGeneralPractice = "general-practice"

// departmentKeywords maps symptom keywords to the specialty that should
// see the patient. The set is closed: anything outside it books general
// practice. Ordered so the first match in symptom order wins.
var departmentKeywords = []struct {
	keyword    string
	department string
}{
	{"chest", "cardiology"},
	{"heart", "cardiology"},
	{"head", "neurology"},
	{"brain", "neurology"},
	{"bone", "orthopedics"},
	{"joint", "orthopedics"},
}

// Triager performs deterministic keyword triage over a transcript. It is
// the local fallback when the patient-records system cannot assess; the
// vocabulary comes from configuration so deployments can tune it without a
// rebuild.
type Triager struct {
	emergency []string
	urgent    []string
	routine   []string
	logger    *zap.Logger
}

// NewTriager creates a triager from the configured symptom vocabulary
func NewTriager(cfg config.TriageConfig, logger *zap.Logger) *Triager {
	return &Triager{
		emergency: lowercaseAll(cfg.EmergencyKeywords),
		urgent:    lowercaseAll(cfg.UrgentKeywords),
		routine:   lowercaseAll(cfg.RoutineKeywords),
		logger:    logger,
	}
}

// ExtractSymptoms returns every vocabulary keyword present in the text,
// most severe tier first. Multi-word keywords match as substrings so
// "chest pain" is found inside "I have severe chest pain".
func (t *Triager) ExtractSymptoms(text string) []string {
	lowered := strings.ToLower(text)

	var symptoms []string
	seen := make(map[string]bool)
	for _, tier := range [][]string{t.emergency, t.urgent, t.routine} {
		for _, kw := range tier {
			if seen[kw] {
				continue
			}
			if strings.Contains(lowered, kw) {
				symptoms = append(symptoms, kw)
				seen[kw] = true
			}
		}
	}
	return symptoms
}

// ClassifySeverity returns the severity of the most severe matched
// symptom. No symptoms classifies as routine.
func (t *Triager) ClassifySeverity(symptoms []string) string {
	matched := make(map[string]bool, len(symptoms))
	for _, s := range symptoms {
		matched[strings.ToLower(s)] = true
	}

	for _, kw := range t.emergency {
		if matched[kw] {
			return SeverityEmergency
		}
	}
	for _, kw := range t.urgent {
		if matched[kw] {
			return SeverityUrgent
		}
	}
	return SeverityRoutine
}

// RecommendDepartment maps symptoms to the department that should handle
// them. The first symptom carrying a specialty keyword decides; anything
// else goes to general practice.
func (t *Triager) RecommendDepartment(symptoms []string) string {
	for _, symptom := range symptoms {
		lowered := strings.ToLower(symptom)
		for _, entry := range departmentKeywords {
			if strings.Contains(lowered, entry.keyword) {
				return entry.department
			}
		}
	}
	return DepartmentGeneralPractice
}

// Assess runs the full local triage over a transcript
func (t *Triager) Assess(text string) *models.TriageResult {
	symptoms := t.ExtractSymptoms(text)
	severity := t.ClassifySeverity(symptoms)

	result := &models.TriageResult{
		Symptoms:   symptoms,
		Severity:   severity,
		Assessment: "keyword triage",
	}

	switch severity {
	case SeverityEmergency:
		result.RecommendedAction = "dispatch emergency services"
	case SeverityUrgent:
		result.RecommendedAction = "book urgent appointment"
	default:
		result.RecommendedAction = "book routine appointment"
	}

	t.logger.Debug("Local triage assessed",
		zap.Strings("symptoms", symptoms),
		zap.String("severity", severity))

	return result
}

func lowercaseAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}
