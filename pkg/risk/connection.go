package risk

import (
	"github.com/google/uuid"

	"github.com/veriscope/screening/pkg/domain"
)

// relationFactors weight an edge's contribution to propagated risk by its
// EntityRelation.Type (spec §4.6). Unlisted types fall back to
// defaultRelationFactor.
var relationFactors = map[string]float64{
	"OWNERSHIP":   1.0,
	"FINANCIAL":   0.95,
	"BUSINESS":    0.90,
	"POLITICAL":   0.90,
	"FAMILY":      0.80,
	"LEGAL":       0.80,
	"EMPLOYMENT":  0.60,
	"SOCIAL":      0.25,
	"EDUCATIONAL": 0.25,
}

const defaultRelationFactor = 0.5

// severityRetention weights an edge by the severity of the risk being
// propagated across it (spec §4.6).
var severityRetention = map[domain.Severity]float64{
	domain.SeverityCritical: 0.70,
	domain.SeverityHigh:     0.60,
	domain.SeverityMedium:   0.50,
	domain.SeverityLow:      0.30,
}

// ConnectionStrength is DIRECT or WEAK (spec §4.6).
type ConnectionStrength string

const (
	StrengthDirect ConnectionStrength = "DIRECT"
	StrengthWeak   ConnectionStrength = "WEAK"
)

var strengthFactors = map[ConnectionStrength]float64{
	StrengthDirect: 1.0,
	StrengthWeak:   0.4,
}

// Edge is one propagation path in the connection graph: a relation plus
// the severity of risk it's carrying and how directly it connects the two
// entities.
type Edge struct {
	ToEntityID uuid.UUID
	Relation   domain.EntityRelation
	Severity   domain.Severity
	Strength   ConnectionStrength
}

// Graph is an arena-style adjacency list keyed by entity id (spec §9
// Design Notes: "arena-style map[uuid.UUID]*Entity + adjacency list... BFS
// with depth cap and visited set — never recursive").
type Graph struct {
	adjacency map[uuid.UUID][]Edge
}

func NewGraph() *Graph {
	return &Graph{adjacency: make(map[uuid.UUID][]Edge)}
}

// AddEdge adds a directed propagation edge from entityID.
func (g *Graph) AddEdge(entityID uuid.UUID, edge Edge) {
	g.adjacency[entityID] = append(g.adjacency[entityID], edge)
}

// PropagationResult is the per-entity risk contribution reaching the
// subject entity from its network, plus the centrality stats computed
// purely for reporting (spec §4.6: "computed for reporting only").
type PropagationResult struct {
	PropagatedRisk float64
	Degree         int
	Betweenness    float64
}

// Analyzer computes network risk propagation and graph centrality over a
// Graph built from the Network phase's discovered entities and relations
// (spec §4.6).
type Analyzer struct {
	maxDepth int
}

func NewAnalyzer(maxDepth int) *Analyzer {
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &Analyzer{maxDepth: maxDepth}
}

// Propagate runs a bounded-depth BFS from subjectID, aggregating each
// reachable entity's own risk score through the path of edges that reaches
// it, using 1 - ∏(1 - r_i) to cap total propagated risk at 1 (spec §4.6).
// entityRisk supplies each entity's own risk score in [0,1] (independent of
// propagation), typically the overall score from that entity's own most
// recent screening, normalized to [0,1].
func (a *Analyzer) Propagate(g *Graph, subjectID uuid.UUID, entityRisk map[uuid.UUID]float64) PropagationResult {
	type queued struct {
		id    uuid.UUID
		depth int
		carry float64 // cumulative retention factor from subjectID to this node
	}

	visited := map[uuid.UUID]struct{}{subjectID: {}}
	queue := []queued{{id: subjectID, depth: 0, carry: 1.0}}

	var retainedRisks []float64

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.depth >= a.maxDepth {
			continue
		}

		for _, edge := range g.adjacency[cur.id] {
			if _, seen := visited[edge.ToEntityID]; seen {
				continue
			}
			visited[edge.ToEntityID] = struct{}{}

			factor := cur.carry * edgeFactor(edge)
			if risk, ok := entityRisk[edge.ToEntityID]; ok {
				retainedRisks = append(retainedRisks, risk*factor)
			}

			queue = append(queue, queued{id: edge.ToEntityID, depth: cur.depth + 1, carry: factor})
		}
	}

	return PropagationResult{
		PropagatedRisk: aggregatePropagation(retainedRisks),
		Degree:         len(g.adjacency[subjectID]),
		Betweenness:    betweenness(g, subjectID),
	}
}

func edgeFactor(e Edge) float64 {
	sevFactor, ok := severityRetention[e.Severity]
	if !ok {
		sevFactor = 0.3
	}
	relFactor, ok := relationFactors[e.Relation.Type]
	if !ok {
		relFactor = defaultRelationFactor
	}
	strFactor, ok := strengthFactors[e.Strength]
	if !ok {
		strFactor = 1.0
	}
	return sevFactor * relFactor * strFactor
}

// aggregatePropagation implements 1 - ∏(1 - r_i), capping combined
// propagated risk at 1 regardless of how many paths feed in (spec §4.6).
func aggregatePropagation(risks []float64) float64 {
	if len(risks) == 0 {
		return 0
	}
	product := 1.0
	for _, r := range risks {
		if r < 0 {
			r = 0
		}
		if r > 1 {
			r = 1
		}
		product *= 1 - r
	}
	return 1 - product
}

// betweenness computes a simplified betweenness centrality for subjectID:
// the fraction of pairs of its direct neighbours that are not directly
// linked to each other (and so connect only through the subject, as far as
// one hop can tell). Entities beyond the direct neighbours and longer paths
// between neighbours are not considered. Reporting-only (spec §4.6), so this
// local approximation stands in for full Brandes' algorithm.
func betweenness(g *Graph, subjectID uuid.UUID) float64 {
	neighbors := g.adjacency[subjectID]
	if len(neighbors) < 2 {
		return 0
	}

	var throughPaths, totalPairs int
	for i := 0; i < len(neighbors); i++ {
		for j := i + 1; j < len(neighbors); j++ {
			totalPairs++
			if !directlyConnected(g, neighbors[i].ToEntityID, neighbors[j].ToEntityID) {
				throughPaths++
			}
		}
	}

	if totalPairs == 0 {
		return 0
	}
	return float64(throughPaths) / float64(totalPairs)
}

func directlyConnected(g *Graph, a, b uuid.UUID) bool {
	for _, edge := range g.adjacency[a] {
		if edge.ToEntityID == b {
			return true
		}
	}
	for _, edge := range g.adjacency[b] {
		if edge.ToEntityID == a {
			return true
		}
	}
	return false
}
