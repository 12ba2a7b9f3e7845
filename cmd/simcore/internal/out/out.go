// Package out formats CLI command output, table by default and JSON or
// YAML when requested via the global -o/--output flag.
package out

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var format = "table"

// SetFormat sets the active output format ("table", "json", or "yaml").
func SetFormat(f string) {
	format = f
}

// Format returns the active output format.
func Format() string {
	return format
}

// PrintMessage writes a line of table-formatted output to stdout.
func PrintMessage(msg string) {
	fmt.Println(msg)
}

// PrintJSON marshals v as pretty JSON or YAML, depending on Format, and
// writes it to stdout.
func PrintJSON(v any) {
	if format == "yaml" {
		data, err := yaml.Marshal(v)
		if err != nil {
			PrintError(err)
			return
		}
		os.Stdout.Write(data)
		return
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		PrintError(err)
		return
	}
	fmt.Println(string(data))
}

// PrintError writes an error to stderr, uniformly for both output modes.
func PrintError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
