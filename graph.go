package quire

import (
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"
)

// PathStep is one hop of a conversion path. The capability kind tells the
// engine what to execute: a parser (into the canonical model), a generator
// (out of it), or a direct transform.
type PathStep struct {
	From       FormatID
	To         FormatID
	Capability Capability
}

// edgeRec is the payload stored on each graph edge: the capability serving
// the hop plus its registration sequence number for tie-breaking.
type edgeRec struct {
	from FormatID
	to   FormatID
	cap  Capability
	cost int
	seq  int
}

// ConversionGraph is the directed graph of formats connected by available
// transformations: one vertex per known format plus the synthetic canonical
// vertex. Built once from a frozen registry; immutable during a run.
type ConversionGraph struct {
	g graph.Graph[string, string]
}

// NewConversionGraph builds the graph from a registry. Every parser
// contributes format->canonical edges, every generator canonical->format
// edges, and every transform a direct format->format edge. Parallel edges
// between the same pair collapse to the cheapest (earliest-registered on
// ties), matching registry selection.
func NewConversionGraph(reg *Registry) (*ConversionGraph, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.Weighted())

	type pair struct{ from, to FormatID }
	best := make(map[pair]edgeRec)
	consider := func(from, to FormatID, c Capability, seq int) {
		rec := edgeRec{from: from, to: to, cap: c, cost: c.Cost, seq: seq}
		k := pair{from, to}
		cur, ok := best[k]
		if !ok || rec.cost < cur.cost || (rec.cost == cur.cost && rec.seq < cur.seq) {
			best[k] = rec
		}
	}

	for _, e := range reg.parsers {
		for _, f := range e.cap.Formats {
			consider(f, FormatCanonical, e.cap, e.seq)
		}
	}
	for _, e := range reg.generators {
		for _, f := range e.cap.Formats {
			consider(FormatCanonical, f, e.cap, e.seq)
		}
	}
	for _, e := range reg.transforms {
		consider(e.cap.Source, e.cap.Target, e.cap, e.seq)
	}

	if err := g.AddVertex(string(FormatCanonical)); err != nil {
		return nil, fmt.Errorf("conversion graph: %w", err)
	}
	for k := range best {
		for _, v := range []FormatID{k.from, k.to} {
			if err := g.AddVertex(string(v)); err != nil && err != graph.ErrVertexAlreadyExists {
				return nil, fmt.Errorf("conversion graph: %w", err)
			}
		}
	}
	for k, rec := range best {
		err := g.AddEdge(string(k.from), string(k.to),
			graph.EdgeWeight(rec.cost), graph.EdgeData(rec))
		if err != nil {
			return nil, fmt.Errorf("conversion graph: %w", err)
		}
	}
	return &ConversionGraph{g: g}, nil
}

// FindPath returns the conversion path from src to dst: lowest summed edge
// cost, ties broken by fewest hops, then by earliest-registered edges.
// Repeated calls for the same pair return the identical path.
//
// When requireCanonical is set (a checkpoint needs the canonical model),
// direct shortcut edges are excluded and the path is forced through the
// canonical vertex even when src equals dst.
func (cg *ConversionGraph) FindPath(src, dst FormatID, requireCanonical bool) ([]PathStep, error) {
	if requireCanonical {
		up, err := cg.shortest(src, FormatCanonical, true)
		if err != nil {
			return nil, err
		}
		down, err := cg.shortest(FormatCanonical, dst, true)
		if err != nil {
			return nil, err
		}
		return append(up, down...), nil
	}
	return cg.shortest(src, dst, false)
}

// candidate is a tentative best path to a vertex during search.
type candidate struct {
	cost int
	hops int
	seqs []int // edge registration order along the path, for tie-breaks
	path []edgeRec
}

// better reports whether a beats b under the documented tie-break order.
func (a candidate) better(b candidate) bool {
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.hops != b.hops {
		return a.hops < b.hops
	}
	for i := 0; i < len(a.seqs) && i < len(b.seqs); i++ {
		if a.seqs[i] != b.seqs[i] {
			return a.seqs[i] < b.seqs[i]
		}
	}
	return len(a.seqs) < len(b.seqs)
}

// shortest runs a deterministic Dijkstra over the library's adjacency map.
// The graph has tens of vertices at most, so the quadratic vertex selection
// is fine; what matters is the reproducible tie-break order.
func (cg *ConversionGraph) shortest(src, dst FormatID, skipTransforms bool) ([]PathStep, error) {
	adj, err := cg.g.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("conversion graph: %w", err)
	}
	if _, ok := adj[string(src)]; !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoConversionPath, src, dst)
	}

	bestBy := map[string]candidate{string(src): {}}
	done := make(map[string]bool)

	for {
		// Pick the unvisited vertex with the best tentative candidate,
		// scanning in sorted vertex order for reproducibility.
		var cur string
		var curCand candidate
		found := false
		keys := make([]string, 0, len(bestBy))
		for v := range bestBy {
			keys = append(keys, v)
		}
		sort.Strings(keys)
		for _, v := range keys {
			if done[v] {
				continue
			}
			if !found || bestBy[v].better(curCand) {
				cur, curCand, found = v, bestBy[v], true
			}
		}
		if !found {
			break
		}
		if cur == string(dst) {
			steps := make([]PathStep, 0, len(curCand.path))
			for _, rec := range curCand.path {
				steps = append(steps, PathStep{From: rec.from, To: rec.to, Capability: rec.cap})
			}
			return steps, nil
		}
		done[cur] = true

		for _, edge := range adj[cur] {
			rec, ok := edge.Properties.Data.(edgeRec)
			if !ok {
				continue
			}
			if skipTransforms && rec.cap.Kind == KindTransform {
				continue
			}
			next := candidate{
				cost: curCand.cost + rec.cost,
				hops: curCand.hops + 1,
				seqs: append(append([]int(nil), curCand.seqs...), rec.seq),
				path: append(append([]edgeRec(nil), curCand.path...), rec),
			}
			prev, seen := bestBy[string(rec.to)]
			if !seen || next.better(prev) {
				bestBy[string(rec.to)] = next
			}
		}
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrNoConversionPath, src, dst)
}
