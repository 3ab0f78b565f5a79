// Package triage maps free-text symptoms to a queue priority tier and to
// suggested medicines. Both lookups are pure functions over static tables.
package triage

import (
	"fmt"
	"sort"
	"strings"
)

// Priority is the queue tier of an appointment.
type Priority string

const (
	PriorityNormal Priority = "normal"
	// PriorityHigh is stored and serialized as "priority".
	PriorityHigh   Priority = "priority"
	PriorityUrgent Priority = "urgent"
)

// Rank orders tiers for the queue: lower is served first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	default:
		return 2
	}
}

func (p Priority) Valid() bool {
	return p == PriorityNormal || p == PriorityHigh || p == PriorityUrgent
}

// ParsePriority accepts the three tier names, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q: must be normal, priority or urgent", s)
	}
	return p, nil
}

var urgentKeywords = []string{
	"chest pain",
	"difficulty breathing",
	"shortness of breath",
	"unconscious",
	"severe bleeding",
	"stroke",
	"seizure",
	"heart attack",
	"poisoning",
}

var priorityKeywords = []string{
	"pain",
	"fever",
	"vomiting",
	"infection",
	"fracture",
	"bleeding",
	"burn",
	"dizziness",
	"diarrhea",
}

// Classify returns the tier implied by symptoms. Urgent keywords win over
// priority keywords; no match is normal.
func Classify(symptoms string) Priority {
	text := strings.ToLower(symptoms)
	if text == "" {
		return PriorityNormal
	}
	for _, kw := range urgentKeywords {
		if strings.Contains(text, kw) {
			return PriorityUrgent
		}
	}
	for _, kw := range priorityKeywords {
		if strings.Contains(text, kw) {
			return PriorityHigh
		}
	}
	return PriorityNormal
}

var medicineSuggestions = map[string][]string{
	"fever":     {"Paracetamol", "Ibuprofen"},
	"headache":  {"Paracetamol", "Aspirin"},
	"cough":     {"Dextromethorphan", "Guaifenesin"},
	"cold":      {"Cetirizine", "Pseudoephedrine"},
	"flu":       {"Oseltamivir", "Paracetamol"},
	"pain":      {"Ibuprofen", "Paracetamol"},
	"allergy":   {"Cetirizine", "Loratadine"},
	"acidity":   {"Omeprazole", "Antacid"},
	"nausea":    {"Ondansetron"},
	"vomiting":  {"Ondansetron", "Oral rehydration salts"},
	"diarrhea":  {"Oral rehydration salts", "Loperamide"},
	"infection": {"Amoxicillin"},
}

// Suggest returns de-duplicated medicine names for every keyword found in
// symptoms, sorted by name. It is advisory only; prescriptions are never
// checked against it.
func Suggest(symptoms string) []string {
	text := strings.ToLower(symptoms)
	seen := make(map[string]bool)
	out := []string{}
	for kw, meds := range medicineSuggestions {
		if !strings.Contains(text, kw) {
			continue
		}
		for _, m := range meds {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out
}
