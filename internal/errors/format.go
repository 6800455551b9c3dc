package errors

import (
	"fmt"
	"strings"
)

// FormatForCLI renders err for the terminal. A SnipError adds its suggestion
// and code on indented lines.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	se := find(err)
	if se == nil {
		return fmt.Sprintf("Error: %s\n", err.Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", se.Message)
	if se.Suggestion != "" {
		fmt.Fprintf(&sb, "  Suggestion: %s\n", se.Suggestion)
	}
	fmt.Fprintf(&sb, "  [%s]\n", se.Code)
	return sb.String()
}
