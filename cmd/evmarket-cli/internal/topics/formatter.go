package topics

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nfrund/evmarket/internal/pubsub"

	// Packages that declare bus events register them on import.
	_ "github.com/nfrund/evmarket/internal/chat"
	_ "github.com/nfrund/evmarket/internal/presence"
	_ "github.com/nfrund/evmarket/internal/websocket"
)

// Filter keeps the topics owned by module. An empty module keeps everything.
func Filter(list []pubsub.TopicInfo, module string) []pubsub.TopicInfo {
	if module == "" {
		return list
	}
	out := make([]pubsub.TopicInfo, 0, len(list))
	for _, t := range list {
		if t.Module == module {
			out = append(out, t)
		}
	}
	return out
}

// Display writes list as a table or as JSON.
func Display(w io.Writer, format string, list []pubsub.TopicInfo) error {
	switch format {
	case "json":
		output := struct {
			Topics []pubsub.TopicInfo `json:"topics"`
			Count  int                `json:"count"`
		}{Topics: list, Count: len(list)}
		return encodeJSON(w, output)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tMODULE\tPAYLOAD\tDESCRIPTION")
		fmt.Fprintln(tw, "----\t------\t-------\t-----------")
		for _, t := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, t.Module, t.PayloadType, truncateString(t.Description, 50))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format %q, use 'table' or 'json'", format)
	}
}

// DisplayDetail writes a single topic.
func DisplayDetail(w io.Writer, format string, t pubsub.TopicInfo) error {
	switch format {
	case "json":
		return encodeJSON(w, t)
	case "table":
		fmt.Fprintf(w, "Name:        %s\n", t.Name)
		fmt.Fprintf(w, "Module:      %s\n", t.Module)
		fmt.Fprintf(w, "Description: %s\n", t.Description)
		fmt.Fprintf(w, "Payload:     %s\n", t.PayloadType)
		fmt.Fprintf(w, "Fields:      %s\n", strings.Join(t.PayloadFields, ", "))
		return nil
	default:
		return fmt.Errorf("unsupported output format %q, use 'table' or 'json'", format)
	}
}

func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// truncateString truncates a string to the specified length with ellipsis
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
