// Package orggraph derives the one-level managership graph from participant
// records.
package orggraph

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/pkg/logger"
	"github.com/okian/cadence/pkg/metrics"
)

// Manager is a participant with its resolved direct reports, ordered by id.
type Manager struct {
	model.Participant
	Reports []model.Participant
}

// Edge is one (manager, direct report) relationship.
type Edge struct {
	Manager model.Participant
	Report  model.Participant
}

// SkippedEdge is a report reference that did not resolve.
type SkippedEdge struct {
	ManagerID string
	ReportID  string
}

// Graph is the managership graph. Managers are ordered by id.
type Graph struct {
	Managers []Manager
	Skipped  []SkippedEdge

	byID map[string]model.Participant
}

type builder struct {
	log logger.Logger
}

// Build resolves each manager's direct reports from its stored report ids
// and from participants that name it in their manager list. Only one level
// is followed. Unresolvable or self references are skipped with a warning.
func Build(ctx context.Context, participants []model.Participant, opts ...Option) (Graph, error) {
	b := &builder{log: logger.Default().Named("orggraph")}
	for _, opt := range opts {
		opt(b)
	}

	byID := make(map[string]model.Participant, len(participants))
	for _, p := range participants {
		if _, dup := byID[p.ID]; dup {
			return Graph{}, fmt.Errorf("%w: %s", ErrDuplicateParticipant, p.ID)
		}
		byID[p.ID] = p
	}

	reports := make(map[string]map[string]struct{})
	var skipped []SkippedEdge
	link := func(managerID, reportID string) {
		if reports[managerID] == nil {
			reports[managerID] = make(map[string]struct{})
		}
		reports[managerID][reportID] = struct{}{}
	}
	skip := func(managerID, reportID, reason string) {
		skipped = append(skipped, SkippedEdge{ManagerID: managerID, ReportID: reportID})
		b.log.Warn(ctx, "skipping reporting edge",
			logger.String("manager", managerID),
			logger.String("report", reportID),
			logger.String("reason", reason),
		)
	}

	for _, p := range sortedByID(participants) {
		for _, rid := range p.ReportIDs {
			rid = strings.TrimSpace(rid)
			switch {
			case rid == "":
				continue
			case rid == p.ID:
				skip(p.ID, rid, "self reference")
			case !exists(byID, rid):
				skip(p.ID, rid, "report not found")
			default:
				link(p.ID, rid)
			}
		}
		for _, mid := range p.ManagerIDs {
			mid = strings.TrimSpace(mid)
			switch {
			case mid == "":
				continue
			case mid == p.ID:
				skip(mid, p.ID, "self reference")
			case !exists(byID, mid):
				skip(mid, p.ID, "manager not found")
			default:
				link(mid, p.ID)
			}
		}
	}

	g := Graph{Skipped: skipped, byID: byID}
	for _, p := range sortedByID(participants) {
		rs := reports[p.ID]
		if len(rs) == 0 && !p.Layer.Managerial() {
			continue
		}
		m := Manager{Participant: p, Reports: make([]model.Participant, 0, len(rs))}
		for _, id := range sortedKeys(rs) {
			m.Reports = append(m.Reports, byID[id])
		}
		g.Managers = append(g.Managers, m)
	}

	metrics.RecordSkippedEdges(len(skipped))
	if len(skipped) > 0 {
		b.log.Warn(ctx, "reporting graph has unresolved edges", logger.Int("skipped", len(skipped)))
	}
	return g, nil
}

func exists(byID map[string]model.Participant, id string) bool {
	_, ok := byID[id]
	return ok
}

func sortedByID(ps []model.Participant) []model.Participant {
	out := slices.Clone(ps)
	slices.SortFunc(out, func(a, b model.Participant) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Edges returns every (manager, report) edge, ordered by manager then report.
func (g Graph) Edges() []Edge {
	var out []Edge
	for _, m := range g.Managers {
		for _, r := range m.Reports {
			out = append(out, Edge{Manager: m.Participant, Report: r})
		}
	}
	return out
}

// Participants returns every participant touched by the graph: managers and
// their direct reports, ordered by id. Reports of reports are included only
// when they are managers in their own right.
func (g Graph) Participants() []model.Participant {
	seen := make(map[string]struct{})
	var out []model.Participant
	add := func(p model.Participant) {
		if _, ok := seen[p.ID]; ok {
			return
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	for _, m := range g.Managers {
		add(m.Participant)
		for _, r := range m.Reports {
			add(r)
		}
	}
	return sortedByID(out)
}

// Layer returns the graph participants of the given layer, ordered by id.
func (g Graph) Layer(l model.Layer) []model.Participant {
	var out []model.Participant
	for _, p := range g.Participants() {
		if p.Layer == l {
			out = append(out, p)
		}
	}
	return out
}

// ByLayer partitions managers by layer.
func (g Graph) ByLayer() map[model.Layer][]Manager {
	out := make(map[model.Layer][]Manager)
	for _, m := range g.Managers {
		out[m.Layer] = append(out[m.Layer], m)
	}
	return out
}

// Lookup returns a participant by id, whether or not it is in the graph.
func (g Graph) Lookup(id string) (model.Participant, bool) {
	p, ok := g.byID[id]
	return p, ok
}
