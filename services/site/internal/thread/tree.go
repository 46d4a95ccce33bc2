// Package thread builds comment reply trees and applies posts and votes.
package thread

import (
	"sort"

	"github.com/example/streamsite/services/site/internal/domain"
)

// CommentView is a comment as clients see it, with its derived score.
type CommentView struct {
	domain.Comment
	Score int `json:"score"`
}

func NewView(c domain.Comment) CommentView {
	return CommentView{Comment: c, Score: c.Score()}
}

// Node is one comment with its ordered replies.
type Node struct {
	CommentView
	Replies []*Node `json:"replies"`
}

// BuildTree arranges one thread's records into reply trees.
//
// Roots are records with no parent or whose parent is not in records; they are
// ordered newest first. Replies are ordered oldest first at every depth. Equal
// timestamps fall back to id order. Every record appears exactly once: a parent
// chain that loops back on itself is cut at the member that closes the loop,
// which then becomes a root.
func BuildTree(records []domain.Comment) []*Node {
	nodes := make(map[string]*Node, len(records))
	order := make([]string, 0, len(records))
	for _, c := range records {
		if _, dup := nodes[c.ID]; dup {
			continue
		}
		nodes[c.ID] = &Node{CommentView: NewView(c), Replies: []*Node{}}
		order = append(order, c.ID)
	}

	parentOf := func(id string) (string, bool) {
		p := nodes[id].ParentID
		if p == nil || *p == id {
			return "", false
		}
		if _, ok := nodes[*p]; !ok {
			return "", false
		}
		return *p, true
	}

	// Resolve each record to root or child. A walk up the parent chain that
	// revisits a record on the current path has found a cycle.
	const (
		unseen = iota
		onPath
		done
	)
	state := make(map[string]int, len(nodes))
	isRoot := make(map[string]bool, len(nodes))
	for _, start := range order {
		var path []string
		id := start
		for state[id] == unseen {
			state[id] = onPath
			path = append(path, id)
			p, ok := parentOf(id)
			if !ok {
				isRoot[id] = true
				break
			}
			if state[p] == onPath {
				// id's parent link closes the loop.
				isRoot[id] = true
				break
			}
			id = p
		}
		for _, v := range path {
			state[v] = done
		}
	}

	var roots []*Node
	for _, id := range order {
		n := nodes[id]
		if isRoot[id] {
			roots = append(roots, n)
			continue
		}
		p, _ := parentOf(id)
		parent := nodes[p]
		parent.Replies = append(parent.Replies, n)
	}

	sort.SliceStable(roots, func(i, j int) bool { return newer(roots[i], roots[j]) })
	for _, n := range nodes {
		replies := n.Replies
		sort.SliceStable(replies, func(i, j int) bool { return newer(replies[j], replies[i]) })
	}
	if roots == nil {
		roots = []*Node{}
	}
	return roots
}

func newer(a, b *Node) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Flatten sorts records oldest first and attaches scores.
func Flatten(records []domain.Comment) []CommentView {
	out := make([]CommentView, 0, len(records))
	for _, c := range records {
		out = append(out, NewView(c))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
