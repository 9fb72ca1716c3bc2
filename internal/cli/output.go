package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/pdxmph/todo-tui/internal/tasks"
)

func writeTasks(w io.Writer, format string, list []tasks.Task) error {
	if list == nil {
		list = []tasks.Task{}
	}

	switch format {
	case "", "text":
		return writeText(w, list)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(list); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q: want text, json or yaml", format)
}

func writeText(w io.Writer, list []tasks.Task) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No tasks.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONE\tDUE\tTITLE")
	for _, t := range list {
		box := "[ ]"
		if t.IsDone {
			box = "[x]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", shortID(t.ID), box, t.DueDate.Local().Format("2006-01-02 15:04"), t.Title)
	}
	return tw.Flush()
}

// shortID is enough of an id to pass back to edit, toggle or rm
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
