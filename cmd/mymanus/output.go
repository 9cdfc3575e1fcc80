package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/xiaokk2024/mymanus1/history"
	"github.com/xiaokk2024/mymanus1/tools/registry"
)

// toolInfo is the listed form of a registered tool.
type toolInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

func toolInfos(reg *registry.Registry) []toolInfo {
	infos := make([]toolInfo, 0, len(reg.List()))
	for _, def := range reg.Definitions() {
		infos = append(infos, toolInfo{Name: def.Name, Description: def.Description})
	}
	return infos
}

// sessionInfo is the listed form of a saved session.
type sessionInfo struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Messages int    `json:"messages" yaml:"messages"`
	Model    string `json:"model" yaml:"model"`
	Updated  string `json:"updated" yaml:"updated"`
}

func printTools(w io.Writer, format string, infos []toolInfo) error {
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{info.Name, firstLine(info.Description)})
	}
	return printOutput(w, format, infos, []string{"NAME", "DESCRIPTION"}, rows)
}

func printSessions(w io.Writer, format string, sessions []history.SessionInfo) error {
	infos := make([]sessionInfo, 0, len(sessions))
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		info := sessionInfo{
			ID:       s.ID,
			Title:    s.Title,
			Messages: s.Messages,
			Model:    s.Model,
			Updated:  s.UpdatedAt.Format("2006-01-02 15:04"),
		}
		infos = append(infos, info)
		rows = append(rows, []string{info.ID, info.Title, strconv.Itoa(info.Messages), info.Model, info.Updated})
	}
	return printOutput(w, format, infos, []string{"ID", "TITLE", "MESSAGES", "MODEL", "UPDATED"}, rows)
}

// printOutput writes v as JSON or YAML, or rows as an aligned table.
func printOutput(w io.Writer, format string, v interface{}, headers []string, rows [][]string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return nil
	case "table", "":
		printTable(w, headers, rows)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	writeRow(tw, headers)
	for _, row := range rows {
		writeRow(tw, row)
	}
	tw.Flush()
}

func writeRow(w io.Writer, cols []string) {
	for i, col := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col)
	}
	fmt.Fprintln(w)
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
