// Package model contains domain models passed between layers.
package model

import "slices"

// Layer is a participant's hierarchical layer.
type Layer string

const (
	LayerExecutive             Layer = "executive"
	LayerLeadership            Layer = "leadership"
	LayerContributor           Layer = "contributor"
	LayerContributorSupervisor Layer = "contributor-supervisor"
)

// Layers lists every layer in hierarchy order.
var Layers = []Layer{LayerExecutive, LayerLeadership, LayerContributorSupervisor, LayerContributor}

// Valid reports whether l is a known layer.
func (l Layer) Valid() bool {
	return slices.Contains(Layers, l)
}

// Managerial reports whether participants of this layer are expected to
// manage others.
func (l Layer) Managerial() bool {
	return l == LayerExecutive || l == LayerLeadership || l == LayerContributorSupervisor
}

// Participant is a person taking part in review cycles. Records are owned by
// the participant directory and treated as read-only here.
type Participant struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Layer      Layer    `json:"layer" yaml:"layer"`
	Pillar     string   `json:"pillar" yaml:"pillar"`
	ManagerIDs []string `json:"managerIds,omitempty" yaml:"managers"`
	ReportIDs  []string `json:"reportIds,omitempty" yaml:"reports"`
}

// Party returns the participant as an evaluation party.
func (p Participant) Party() Party {
	return Party{ID: p.ID, Name: p.Name}
}
