package repository

import "hash/fnv"

// Treap ordered by rating desc, then team asc, so that an in-order walk
// yields the ranking table and subtree sizes give a team's position.

type node struct {
	team   string
	rating float64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aRating, aTeam) ranks before (bRating, bTeam).
func less(aRating float64, aTeam string, bRating float64, bTeam string) bool {
	if aRating != bRating {
		return aRating > bRating
	}
	return aTeam < bTeam
}

func priority(team string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(team))
	return h.Sum64()
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, team string, rating float64) *node {
	if n == nil {
		return &node{team: team, rating: rating, prio: priority(team), size: 1}
	}
	if less(rating, team, n.rating, n.team) {
		n.left = insert(n.left, team, rating)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, team, rating)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, team string, rating float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case rating == n.rating && team == n.team:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, team, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, team, rating)
		}
	case less(rating, team, n.rating, n.team):
		n.left = deleteNode(n.left, team, rating)
	default:
		n.right = deleteNode(n.right, team, rating)
	}
	fix(n)
	return n
}

// position returns how many teams rank before (rating, team).
func position(n *node, team string, rating float64) int {
	pos := 0
	for n != nil {
		switch {
		case rating == n.rating && team == n.team:
			return pos + nsize(n.left)
		case less(rating, team, n.rating, n.team):
			n = n.left
		default:
			pos += nsize(n.left) + 1
			n = n.right
		}
	}
	return pos
}

// walk visits teams in rank order until visit returns false.
func walk(n *node, visit func(team string) bool) bool {
	if n == nil {
		return true
	}
	if !walk(n.left, visit) {
		return false
	}
	if !visit(n.team) {
		return false
	}
	return walk(n.right, visit)
}
