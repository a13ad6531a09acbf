package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/axondata/go-supervise"
)

// Output formats accepted by -o
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// printRecords writes records keyed by service name. Text output keeps
// the order of names and skips names with no record.
func printRecords(w io.Writer, format string, names []string, records map[string]supervise.Record) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return err
		}
		return enc.Close()
	default:
		for _, name := range names {
			rec, ok := records[name]
			if !ok {
				continue
			}
			if _, err := fmt.Fprintf(w, "%s: %s\n", name, rec); err != nil {
				return err
			}
		}
		return nil
	}
}

// printEvent writes one watched record. JSON output is one object per line.
func printEvent(w io.Writer, format, name string, rec supervise.Record) error {
	switch format {
	case formatJSON:
		return json.NewEncoder(w).Encode(map[string]supervise.Record{name: rec})
	case formatYAML:
		return printRecords(w, formatYAML, []string{name}, map[string]supervise.Record{name: rec})
	default:
		_, err := fmt.Fprintf(w, "%s: %s\n", name, rec)
		return err
	}
}
