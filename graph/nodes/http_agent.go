package nodes

import "github.com/flowkit/wfgraph/graph/tool"

// NewHTTPAgentNode builds a ToolNode wired to tool.HTTPTool, for stages
// that need a plain HTTP round trip (fetch, webhook call) and are not
// LLM-bearing. InputKey must name a state.Data entry shaped like
// tool.HTTPTool's input (method/url/headers/body); OutputKey, if set,
// receives the response map (status_code/headers/body).
func NewHTTPAgentNode(id, name, inputKey, outputKey string) *ToolNode {
	return &ToolNode{
		IDValue:   id,
		NameValue: name,
		Tool:      tool.NewHTTPTool(),
		InputKey:  inputKey,
		OutputKey: outputKey,
	}
}
