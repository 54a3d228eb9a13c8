package gee

import "strings"

// node 是路由前缀树的节点。
//
// 例如注册 /urls/:code/info 后，匹配 /urls/Abc123/info 时
// 第二层的 :code 是通配节点，Abc123 会作为参数 code 的值。
type node struct {
	pattern  string // 完整路由模板，只有叶子（路由终点）才非空
	part     string // 本层的路径段，如 urls、:code、*filepath
	children []*node
	isWild   bool // part 以 : 或 * 开头
}

// matchChild 找 part 完全相同的子节点，用于插入。
func (n *node) matchChild(part string) *node {
	for _, child := range n.children {
		if child.part == part {
			return child
		}
	}
	return nil
}

// matchChildren 返回可匹配 part 的子节点，静态节点排在通配节点前面。
func (n *node) matchChildren(part string) []*node {
	nodes := make([]*node, 0, len(n.children))
	for _, child := range n.children {
		if !child.isWild && child.part == part {
			nodes = append(nodes, child)
		}
	}
	for _, child := range n.children {
		if child.isWild {
			nodes = append(nodes, child)
		}
	}
	return nodes
}

func (n *node) insert(pattern string, parts []string, height int) {
	if len(parts) == height {
		n.pattern = pattern
		return
	}
	part := parts[height]
	child := n.matchChild(part)
	if child == nil {
		child = &node{
			part:   part,
			isWild: part[0] == ':' || part[0] == '*',
		}
		n.children = append(n.children, child)
	}
	child.insert(pattern, parts, height+1)
}

// search 深度优先匹配，静态优先；失败时回溯到通配分支。
func (n *node) search(parts []string, height int) *node {
	if len(parts) == height || strings.HasPrefix(n.part, "*") {
		if n.pattern == "" {
			return nil
		}
		return n
	}

	for _, child := range n.matchChildren(parts[height]) {
		if result := child.search(parts, height+1); result != nil {
			return result
		}
	}
	return nil
}
