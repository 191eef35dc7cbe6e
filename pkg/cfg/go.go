package cfg

import (
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/l3aro/go-code-structure/pkg/graph"
)

// lazyBlock is a jump target created on first use.
type lazyBlock struct {
	id string
}

// jumpTarget is an enclosing statement break or continue can leave through.
type jumpTarget struct {
	label    string
	brk      *lazyBlock
	cont     string // Empty for switch and select
	isSwitch bool
}

type goCFGBuilder struct {
	content []byte
	g       *graph.Graph
	blockID int
	stmts   map[string][]string
	targets []jumpTarget
	labels  map[string]string
	returns []string
	err     error
}

func parseGo(content []byte) *sitter.Tree {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	return parser.Parse(nil, content)
}

// ExtractGo builds the CFG of function in the Go file at filePath.
func ExtractGo(filePath, function string) (*Function, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", filePath, err)
	}
	fn, err := ExtractGoSource(content, function)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return fn, nil
}

// ExtractGoSource builds the CFG of function in Go source. Methods are matched by
// their name without receiver.
func ExtractGoSource(content []byte, function string) (*Function, error) {
	tree := parseGo(content)
	defer tree.Close()

	funcNode := findFunction(tree.RootNode(), content, function)
	if funcNode == nil {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, function)
	}
	body := funcNode.ChildByFieldName("body")
	if body == nil {
		return nil, fmt.Errorf("function body not found for %s", function)
	}

	b := &goCFGBuilder{
		content: content,
		g:       graph.New(),
		stmts:   make(map[string][]string),
		labels:  make(map[string]string),
	}
	b.addNode(EntryID)
	b.appendStmt(EntryID, "func "+function)

	end := b.processBlock(body, EntryID)

	b.addNode(ExitID)
	for _, r := range b.returns {
		b.addEdge(r, ExitID)
	}
	if end != "" {
		b.addEdge(end, ExitID)
	}
	if b.err != nil {
		return nil, fmt.Errorf("building CFG for %s: %w", function, b.err)
	}
	b.applyLabels()

	return &Function{
		Name:       function,
		Graph:      b.g,
		Entry:      EntryID,
		Exit:       ExitID,
		Complexity: countDecisionPoints(body) + 1,
	}, nil
}

// ListFunctions returns the names of the functions and methods declared in Go source.
func ListFunctions(content []byte) []string {
	tree := parseGo(content)
	defer tree.Close()

	var names []string
	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil {
			continue
		}
		if t := child.Type(); t == "function_declaration" || t == "method_declaration" {
			if name := child.ChildByFieldName("name"); name != nil {
				names = append(names, nodeText(content, name))
			}
		}
	}
	return names
}

func findFunction(root *sitter.Node, content []byte, name string) *sitter.Node {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil {
			continue
		}
		if t := child.Type(); t != "function_declaration" && t != "method_declaration" {
			continue
		}
		if n := child.ChildByFieldName("name"); n != nil && nodeText(content, n) == name {
			return child
		}
	}
	return nil
}

func (b *goCFGBuilder) setErr(err error) {
	if err != nil && b.err == nil {
		b.err = err
	}
}

func (b *goCFGBuilder) addNode(id string) {
	b.setErr(b.g.AddNode(id, ""))
}

func (b *goCFGBuilder) newBlock() string {
	b.blockID++
	id := fmt.Sprintf("b%d", b.blockID)
	b.addNode(id)
	return id
}

// addEdge links from to to once. A repeated transition adds nothing.
func (b *goCFGBuilder) addEdge(from, to string) {
	if b.g.IndexOfNext(from, to) >= 0 {
		return
	}
	b.setErr(b.g.AddEdge(from, to))
}

func (b *goCFGBuilder) get(l *lazyBlock) string {
	if l.id == "" {
		l.id = b.newBlock()
	}
	return l.id
}

func (b *goCFGBuilder) appendStmt(id, stmt string) {
	stmt = strings.TrimSpace(stmt)
	if stmt != "" {
		b.stmts[id] = append(b.stmts[id], stmt)
	}
}

func (b *goCFGBuilder) applyLabels() {
	for _, n := range b.g.Nodes() {
		n.Label = strings.Join(b.stmts[n.ID], "\n")
	}
}

func (b *goCFGBuilder) labelBlock(name string) string {
	if id, ok := b.labels[name]; ok {
		return id
	}
	id := b.newBlock()
	b.labels[name] = id
	b.appendStmt(id, name+":")
	return id
}

// processBlock walks the statements of a block starting in cur and returns the
// block control leaves through, or "" when it cannot fall out of the end.
func (b *goCFGBuilder) processBlock(node *sitter.Node, cur string) string {
	if node == nil {
		return cur
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		if child.Type() == "statement_list" {
			cur = b.processBlock(child, cur)
			continue
		}
		cur = b.processStatement(child, cur, "")
	}
	return cur
}

func (b *goCFGBuilder) processStatement(node *sitter.Node, cur, label string) string {
	if node.Type() == "labeled_statement" {
		return b.processLabeled(node, cur)
	}
	if cur == "" || node.Type() == "comment" {
		// Unreachable code has no place in the flow.
		return cur
	}

	switch node.Type() {
	case "if_statement":
		return b.processIf(node, cur)

	case "for_statement":
		return b.processFor(node, cur, label)

	case "expression_switch_statement", "type_switch_statement", "select_statement":
		return b.processSwitch(node, cur, label)

	case "block":
		return b.processBlock(node, cur)

	case "return_statement":
		b.appendStmt(cur, nodeText(b.content, node))
		b.returns = append(b.returns, cur)
		return ""

	case "break_statement":
		b.appendStmt(cur, nodeText(b.content, node))
		if t := b.target(labelOf(node, b.content), false); t != nil {
			b.addEdge(cur, b.get(t.brk))
		}
		return ""

	case "continue_statement":
		b.appendStmt(cur, nodeText(b.content, node))
		if t := b.target(labelOf(node, b.content), true); t != nil {
			b.addEdge(cur, t.cont)
		}
		return ""

	case "goto_statement":
		b.appendStmt(cur, nodeText(b.content, node))
		if name := labelOf(node, b.content); name != "" {
			b.addEdge(cur, b.labelBlock(name))
		}
		return ""

	default:
		b.appendStmt(cur, nodeText(b.content, node))
		return cur
	}
}

func labelOf(node *sitter.Node, content []byte) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child != nil && child.Type() == "label_name" {
			return nodeText(content, child)
		}
	}
	return ""
}

// target finds the innermost enclosing jump target, or the one carrying label.
func (b *goCFGBuilder) target(label string, loopOnly bool) *jumpTarget {
	for i := len(b.targets) - 1; i >= 0; i-- {
		t := &b.targets[i]
		if label != "" && t.label != label {
			continue
		}
		if loopOnly && t.isSwitch {
			continue
		}
		return t
	}
	return nil
}

func (b *goCFGBuilder) processLabeled(node *sitter.Node, cur string) string {
	var name string
	var stmt *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		if node.FieldNameForChild(i) == "label" {
			name = nodeText(b.content, child)
		} else if stmt == nil {
			stmt = child
		}
	}

	lb := b.labelBlock(name)
	if cur != "" {
		b.addEdge(cur, lb)
	}
	if stmt == nil {
		return lb
	}
	return b.processStatement(stmt, lb, name)
}

// processIf ends cur with the condition. The consequence is branch 0, the
// alternative (or the fall-through) branch 1.
func (b *goCFGBuilder) processIf(node *sitter.Node, cur string) string {
	head := "if " + nodeText(b.content, node.ChildByFieldName("condition"))
	if init := node.ChildByFieldName("initializer"); init != nil {
		head = nodeText(b.content, init) + "; " + head
	}
	b.appendStmt(cur, head)

	var ends []string
	thenStart := b.newBlock()
	b.addEdge(cur, thenStart)
	if end := b.processBlock(node.ChildByFieldName("consequence"), thenStart); end != "" {
		ends = append(ends, end)
	}

	alt := node.ChildByFieldName("alternative")
	if alt == nil {
		ends = append(ends, cur)
	} else {
		elseStart := b.newBlock()
		b.addEdge(cur, elseStart)
		if end := b.processStatement(alt, elseStart, ""); end != "" {
			ends = append(ends, end)
		}
	}

	if len(ends) == 0 {
		return ""
	}
	after := b.newBlock()
	for _, e := range ends {
		b.addEdge(e, after)
	}
	return after
}

func (b *goCFGBuilder) processFor(node *sitter.Node, cur, label string) string {
	body := node.ChildByFieldName("body")
	head := "for"
	infinite := true
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil || child.Type() == "block" || child.Type() == "comment" {
			continue
		}
		head = "for " + nodeText(b.content, child)
		switch child.Type() {
		case "for_clause":
			infinite = child.ChildByFieldName("condition") == nil
		default:
			// range_clause or a bare condition
			infinite = false
		}
	}

	header := b.newBlock()
	b.addEdge(cur, header)
	b.appendStmt(header, head)

	bodyStart := b.newBlock()
	b.addEdge(header, bodyStart)

	b.targets = append(b.targets, jumpTarget{label: label, brk: &lazyBlock{}, cont: header})
	end := b.processBlock(body, bodyStart)
	if end != "" {
		b.addEdge(end, header)
	}
	t := b.targets[len(b.targets)-1]
	b.targets = b.targets[:len(b.targets)-1]

	if !infinite {
		b.addEdge(header, b.get(t.brk))
	}
	return t.brk.id
}

// processSwitch handles expression, type and select statements. Each case is
// one branch of cur in source order. Without a default case a switch can skip
// every case; a select cannot.
func (b *goCFGBuilder) processSwitch(node *sitter.Node, cur, label string) string {
	var cases []*sitter.Node
	hasDefault := false
	headEnd := int(node.EndByte())
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "expression_case", "type_case", "communication_case":
		case "default_case":
			hasDefault = true
		default:
			continue
		}
		if len(cases) == 0 {
			headEnd = int(child.StartByte())
		}
		cases = append(cases, child)
	}

	head := strings.TrimSpace(string(b.content[node.StartByte():headEnd]))
	b.appendStmt(cur, strings.TrimSuffix(head, "{"))

	b.targets = append(b.targets, jumpTarget{label: label, brk: &lazyBlock{}, isSwitch: true})
	fall := ""
	for _, c := range cases {
		start := b.newBlock()
		b.addEdge(cur, start)
		if fall != "" {
			b.addEdge(fall, start)
			fall = ""
		}
		end, fallsThrough := b.processCase(c, start)
		if end == "" {
			continue
		}
		if fallsThrough {
			fall = end
		} else {
			b.addEdge(end, b.get(b.targets[len(b.targets)-1].brk))
		}
	}
	t := b.targets[len(b.targets)-1]
	b.targets = b.targets[:len(b.targets)-1]

	if fall != "" {
		b.addEdge(fall, b.get(t.brk))
	}
	if !hasDefault && node.Type() != "select_statement" {
		b.addEdge(cur, b.get(t.brk))
	}
	return t.brk.id
}

// processCase walks one case clause. It reports whether the clause ends in fallthrough.
func (b *goCFGBuilder) processCase(node *sitter.Node, start string) (string, bool) {
	var header strings.Builder
	cur := start
	fallsThrough := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if !child.IsNamed() || node.FieldNameForChild(i) != "" {
			header.WriteString(nodeText(b.content, child))
			if child.Type() == "case" {
				header.WriteString(" ")
			}
			continue
		}
		if header.Len() > 0 {
			b.appendStmt(start, header.String())
			header.Reset()
		}
		if child.Type() == "statement_list" {
			cur = b.processBlock(child, cur)
			fallsThrough = endsInFallthrough(child)
			continue
		}
		fallsThrough = child.Type() == "fallthrough_statement"
		cur = b.processStatement(child, cur, "")
	}
	if header.Len() > 0 {
		b.appendStmt(start, header.String())
	}
	return cur, fallsThrough
}

func endsInFallthrough(list *sitter.Node) bool {
	n := int(list.NamedChildCount())
	if n == 0 {
		return false
	}
	last := list.NamedChild(n - 1)
	return last != nil && last.Type() == "fallthrough_statement"
}

func countDecisionPoints(node *sitter.Node) int {
	if node == nil {
		return 0
	}

	count := 0
	switch node.Type() {
	case "if_statement", "for_statement",
		"expression_case", "type_case", "communication_case",
		"&&", "||":
		count++
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		count += countDecisionPoints(node.Child(i))
	}
	return count
}

func nodeText(content []byte, node *sitter.Node) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start >= uint32(len(content)) || end > uint32(len(content)) {
		return ""
	}
	return string(content[start:end])
}
