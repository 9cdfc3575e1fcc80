// Package base holds the name and catalogue text shared by every tool.
package base

import "strings"

// BaseTool provides Name and Description for tools that embed it.
type BaseTool struct {
	ToolName string
	ToolDesc string

	// Example is a JSON argument object appended to the description.
	Example string
}

// Name returns the tool name
func (b *BaseTool) Name() string {
	return b.ToolName
}

// Description returns the catalogue text, ending with the example
// arguments when one is set.
func (b *BaseTool) Description() string {
	if b.Example == "" {
		return b.ToolDesc
	}
	desc := strings.TrimSpace(b.ToolDesc)
	return desc + " The arguments must be a JSON string, for example: " + b.Example
}
