package planner

import (
	"context"
	"math/rand"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/SylviaHerbert/Tracking/environment"
)

const (
	// rrtStepSize is the maximum extension distance per tree growth step.
	rrtStepSize = 0.5
	// rrtMaxIter caps the number of sampling iterations before giving up.
	rrtMaxIter = 4000
	// rrtSmoothIter is the number of random shortcut attempts applied to a
	// found path.
	rrtSmoothIter = 60
	// checkResolution is the spacing of collision checks along a segment.
	checkResolution = 0.1
)

type rrtNode struct {
	pos    r3.Vector
	parent *rrtNode
}

// rrtConnect is a bidirectional RRT in position space. Trees rooted at the
// start and goal alternately extend toward uniform samples and toward each
// other until they meet. A direct start-goal connection is always tried
// first, so unobstructed queries are deterministic regardless of the seed.
type rrtConnect struct {
	space *environment.Box
	rng   *rand.Rand
}

// NewRRTConnect creates the bundled geometric path finder, sampling within
// the given box.
func NewRRTConnect(space *environment.Box, seed int64) PathFinder {
	//nolint:gosec
	return &rrtConnect{space: space, rng: rand.New(rand.NewSource(seed))}
}

// NewPathNotFoundError returns an error for a failed geometric search.
func NewPathNotFoundError() error {
	return errors.New("no feasible geometric path found")
}

// FindPath searches for a collision-free polyline from start to goal.
func (rrt *rrtConnect) FindPath(
	ctx context.Context,
	start, goal r3.Vector,
	isValid func(r3.Vector) bool,
) ([]r3.Vector, error) {
	if !isValid(start) {
		return nil, errors.New("start position is not valid")
	}
	if !isValid(goal) {
		return nil, errors.New("goal position is not valid")
	}
	if segmentValid(start, goal, isValid) {
		return []r3.Vector{start, goal}, nil
	}

	startTree := []*rrtNode{{pos: start}}
	goalTree := []*rrtNode{{pos: goal}}
	forward := true

	for i := 0; i < rrtMaxIter; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		treeA, treeB := startTree, goalTree
		if !forward {
			treeA, treeB = goalTree, startTree
		}

		sample := rrt.space.SamplePosition(rrt.rng)
		newNode := extend(treeA, sample, isValid)
		if newNode != nil {
			if forward {
				startTree = append(startTree, newNode)
			} else {
				goalTree = append(goalTree, newNode)
			}

			// Try to connect the other tree all the way to the new node.
			if met := connect(&treeB, newNode.pos, isValid); met != nil {
				if forward {
					goalTree = treeB
					return rrt.assemble(newNode, met, isValid), nil
				}
				startTree = treeB
				return rrt.assemble(met, newNode, isValid), nil
			}
			if forward {
				startTree = treeA
			} else {
				goalTree = treeA
			}
		}
		forward = !forward
	}
	return nil, NewPathNotFoundError()
}

// assemble joins the two half-paths at the meeting point and smooths the
// result. startSide must belong to the tree rooted at the start.
func (rrt *rrtConnect) assemble(startSide, goalSide *rrtNode, isValid func(r3.Vector) bool) []r3.Vector {
	var path []r3.Vector
	for n := startSide; n != nil; n = n.parent {
		path = append(path, n.pos)
	}
	// Reverse the start half so the path runs start to meeting point.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	for n := goalSide; n != nil; n = n.parent {
		path = append(path, n.pos)
	}
	return rrt.shortcut(path, isValid)
}

// shortcut randomly replaces path sub-chains with direct segments where
// valid.
func (rrt *rrtConnect) shortcut(path []r3.Vector, isValid func(r3.Vector) bool) []r3.Vector {
	for i := 0; i < rrtSmoothIter && len(path) > 2; i++ {
		a := rrt.rng.Intn(len(path) - 2)
		b := a + 2 + rrt.rng.Intn(len(path)-a-2)
		if segmentValid(path[a], path[b], isValid) {
			path = append(path[:a+1], path[b:]...)
		}
	}
	return path
}

// extend grows the tree one step from its nearest node toward the target,
// returning the new node or nil if the step collides.
func extend(tree []*rrtNode, target r3.Vector, isValid func(r3.Vector) bool) *rrtNode {
	near := nearestNeighbor(tree, target)
	step := target.Sub(near.pos)
	if dist := step.Norm(); dist > rrtStepSize {
		step = step.Mul(rrtStepSize / dist)
	}
	next := near.pos.Add(step)
	if !isValid(next) || !segmentValid(near.pos, next, isValid) {
		return nil
	}
	return &rrtNode{pos: next, parent: near}
}

// connect repeatedly extends the tree toward the target until it arrives or
// is blocked, returning the node that reached the target.
func connect(tree *[]*rrtNode, target r3.Vector, isValid func(r3.Vector) bool) *rrtNode {
	for {
		n := extend(*tree, target, isValid)
		if n == nil {
			return nil
		}
		*tree = append(*tree, n)
		if n.pos.Sub(target).Norm() < 1e-9 {
			return n
		}
	}
}

// nearestNeighbor scans the tree linearly; tree sizes here stay small enough
// that an index structure does not pay for itself.
func nearestNeighbor(tree []*rrtNode, target r3.Vector) *rrtNode {
	best := tree[0]
	bestDist := best.pos.Sub(target).Norm2()
	for _, n := range tree[1:] {
		if d := n.pos.Sub(target).Norm2(); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}

// segmentValid checks sampled interior points of the segment against the
// collision predicate.
func segmentValid(from, to r3.Vector, isValid func(r3.Vector) bool) bool {
	diff := to.Sub(from)
	steps := int(diff.Norm()/checkResolution) + 1
	for i := 1; i < steps; i++ {
		p := from.Add(diff.Mul(float64(i) / float64(steps)))
		if !isValid(p) {
			return false
		}
	}
	return isValid(to)
}
