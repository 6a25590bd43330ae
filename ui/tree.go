package ui

import (
	"strings"
	"unicode/utf8"
)

// Tree hierarchy symbols using box drawing characters
const (
	TreeBranch     = "├── "
	TreeLastBranch = "└── "
	TreeContinue   = "│   " // Parent has more siblings below
	TreeIndent     = "    " // Parent was the last sibling

	BoxTopLeft     = "┌"
	BoxTopRight    = "┐"
	BoxBottomLeft  = "└"
	BoxBottomRight = "┘"
	BoxVertical    = "│"
	BoxHorizontal  = "─"
	BoxTeeRight    = "├"
	BoxTeeLeft     = "┤"
)

// BuildTreePrefix generates a tree prefix based on depth, position, and parent positions.
// parentIsLast[i] tells whether the ancestor at depth i+1 was the last of its siblings.
func BuildTreePrefix(depth int, isLast bool, parentIsLast []bool) string {
	if depth == 0 {
		return ""
	}

	var prefix strings.Builder
	for i := 0; i < depth-1; i++ {
		if i < len(parentIsLast) && parentIsLast[i] {
			prefix.WriteString(TreeIndent)
		} else {
			prefix.WriteString(TreeContinue)
		}
	}
	if isLast {
		prefix.WriteString(TreeLastBranch)
	} else {
		prefix.WriteString(TreeBranch)
	}
	return prefix.String()
}

// TreeNode is one line of a rendered tree.
type TreeNode struct {
	Label    string
	Children []*TreeNode
}

// RenderTree draws the given top-level nodes, one line per node, children
// in slice order. The walk keeps an explicit stack so deep trees are fine.
func RenderTree(roots []*TreeNode) string {
	type frame struct {
		node         *TreeNode
		depth        int
		isLast       bool
		parentIsLast []bool
	}

	var out strings.Builder
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: roots[i], depth: 1, isLast: i == len(roots)-1})
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		out.WriteString(BuildTreePrefix(cur.depth, cur.isLast, cur.parentIsLast))
		out.WriteString(cur.node.Label)
		out.WriteString("\n")

		children := cur.node.Children
		parents := make([]bool, len(cur.parentIsLast), len(cur.parentIsLast)+1)
		copy(parents, cur.parentIsLast)
		parents = append(parents, cur.isLast)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{
				node:         children[i],
				depth:        cur.depth + 1,
				isLast:       i == len(children)-1,
				parentIsLast: parents,
			})
		}
	}
	return out.String()
}

// BuildBoxHeader creates a box header with the given title and width
func BuildBoxHeader(title string, width int) string {
	titleLen := utf8.RuneCountInString(title)
	if width < titleLen+4 {
		width = titleLen + 4
	}
	padding := width - 4 - titleLen

	header := BoxTopLeft + repeatString(BoxHorizontal, width-2) + BoxTopRight + "\n"
	header += BoxVertical + " " + title + repeatString(" ", padding+1) + BoxVertical + "\n"
	header += BoxTeeRight + repeatString(BoxHorizontal, width-2) + BoxTeeLeft + "\n"
	return header
}

// BuildBoxFooter creates a box footer with the given width
func BuildBoxFooter(width int) string {
	return BoxBottomLeft + repeatString(BoxHorizontal, width-2) + BoxBottomRight + "\n"
}

// BuildBoxLine creates a content line within a box, truncating by runes
func BuildBoxLine(content string, width int) string {
	contentLen := utf8.RuneCountInString(content)
	maxContentLen := width - 4

	if contentLen > maxContentLen {
		runes := []rune(content)
		content = string(runes[:maxContentLen-3]) + "..."
		contentLen = maxContentLen
	}
	padding := maxContentLen - contentLen
	return BoxVertical + " " + content + repeatString(" ", padding+1) + BoxVertical + "\n"
}

func repeatString(s string, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(s, n)
}
