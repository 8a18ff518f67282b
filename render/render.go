// Package render encodes a topology.Graph for consumption by other
// tools and writes the result to disk in one piece.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/frobware/go-nsview/topology"
)

// Format is an output encoding.
type Format string

const (
	// FormatDOT is Graphviz source.
	FormatDOT Format = "dot"
	// FormatJSON is the Graph value as indented JSON.
	FormatJSON Format = "json"
)

// ParseFormat parses "dot" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dot":
		return FormatDOT, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want dot or json)", s)
	}
}

// Options tune the encoders.
type Options struct {
	// RankDir is the Graphviz rankdir attribute. Defaults to "LR".
	RankDir string
}

// Encode renders g in the requested format.
func Encode(g *topology.Graph, format Format, opts Options) ([]byte, error) {
	switch format {
	case FormatDOT:
		return DOT(g, opts), nil
	case FormatJSON:
		return JSON(g)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// JSON renders g as indented JSON with a trailing newline.
func JSON(g *topology.Graph) ([]byte, error) {
	out, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	return append(out, '\n'), nil
}

// edgeColor maps edge classes to Graphviz colours.
var edgeColor = map[topology.EdgeClass]string{
	topology.EdgeSameNamespace:  "green",
	topology.EdgeCrossNamespace: "red",
}

// DOT renders g as a Graphviz digraph. Each namespace is a cluster and
// each interface a plaintext node with an HTML table label; edges join
// the name cells and carry no arrowheads.
func DOT(g *topology.Graph, opts Options) []byte {
	rankdir := opts.RankDir
	if rankdir == "" {
		rankdir = "LR"
	}

	var b bytes.Buffer
	b.WriteString("digraph G {\n")
	fmt.Fprintf(&b, "\tgraph [ rankdir=%s ]\n", quote(rankdir))

	for _, c := range g.Clusters {
		fmt.Fprintf(&b, "\tsubgraph %s {\n", quote("cluster_"+c.Namespace))
		fmt.Fprintf(&b, "\t\tlabel = %s\n", quote(" namespace "+c.Namespace+" "))
		for _, n := range c.Nodes {
			fmt.Fprintf(&b, "\t\t%s [\n", quote(n.ID.String()))
			fmt.Fprintf(&b, "\t\t\tlabel = %s\n", nodeLabel(n))
			b.WriteString("\t\t\tshape = plaintext\n")
			b.WriteString("\t\t]\n")
		}
		b.WriteString("\t}\n")
	}

	for _, e := range g.Edges {
		fmt.Fprintf(&b, "\t%s:name -> %s:name [dir=none, color=%s]\n",
			quote(e.From.String()), quote(e.To.String()), edgeColor[e.Class])
	}

	b.WriteString("}\n")
	return b.Bytes()
}

func nodeLabel(n topology.Node) string {
	var b strings.Builder
	b.WriteString(`<<table border="1" cellborder="0" bgcolor="gray"> `)
	fmt.Fprintf(&b, `<tr><td port="name" bgcolor="black"><font color="white">%s</font></td></tr>`, htmlEscape(n.Name))
	for _, a := range n.Addresses {
		fmt.Fprintf(&b, `<tr><td align="left">%s</td></tr>`, htmlEscape(a))
	}
	for _, p := range n.Programs {
		fmt.Fprintf(&b, `<tr><td align="left">%s</td></tr>`, htmlEscape(p))
	}
	b.WriteString("</table>>")
	return b.String()
}

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func htmlEscape(s string) string {
	return htmlReplacer.Replace(s)
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// quote returns s as a DOT double-quoted string.
func quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}
