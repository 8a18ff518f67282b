package cli

import "strings"

// OutputFormat represents the output format type.
type OutputFormat string

const (
	OutputFormatTable    OutputFormat = "table"
	OutputFormatJSON     OutputFormat = "json"
	OutputFormatJSONPath OutputFormat = "jsonpath"
)

const jsonPathPrefix = "jsonpath="

// OutputFlags provides output formatting flags for listings.
type OutputFlags struct {
	Output string `short:"o" help:"Output format: table, json, jsonpath=EXPR." default:"table"`
}

// Format returns the base format type.
func (f *OutputFlags) Format() OutputFormat {
	switch {
	case f.Output == "json":
		return OutputFormatJSON
	case strings.HasPrefix(f.Output, jsonPathPrefix):
		return OutputFormatJSONPath
	default:
		return OutputFormatTable
	}
}

// JSONPathExpr returns the expression of a jsonpath=EXPR format.
func (f *OutputFlags) JSONPathExpr() string {
	return strings.TrimPrefix(f.Output, jsonPathPrefix)
}

// GraphFlags select how a graph is encoded and where it goes.
type GraphFlags struct {
	Output string `short:"o" name:"output" help:"Artifact path, or '-' for stdout. Defaults to graph.output from the config."`
	Format string `name:"format" help:"Encoding: dot or json. Defaults to graph.format from the config."`
}
