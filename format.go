package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"github.com/tonimelisma/freta/internal/blob"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Size unit constants for human-readable formatting.
const (
	sizeKB = 1024
	sizeMB = 1024 * 1024
	sizeGB = 1024 * 1024 * 1024
	sizeTB = 1024 * 1024 * 1024 * 1024
)

// formatSize returns a human-readable size string (e.g. "1.2 MB").
func formatSize(bytes int64) string {
	switch {
	case bytes >= sizeTB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/float64(sizeTB))
	case bytes >= sizeGB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(sizeGB))
	case bytes >= sizeMB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(sizeMB))
	case bytes >= sizeKB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(sizeKB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// newProgress returns a transfer progress printer for f, or nil when f is
// not a terminal or output is quiet.
func newProgress(f *os.File, quiet bool) blob.ProgressFunc {
	if quiet || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return nil
	}

	return progressPrinter(f)
}

// progressPrinter redraws a single progress line on w.
func progressPrinter(w io.Writer) blob.ProgressFunc {
	var mu sync.Mutex

	return func(done, total int64) {
		mu.Lock()
		defer mu.Unlock()

		pct := 100.0
		if total > 0 {
			pct = float64(done) * 100 / float64(total)
		}

		fmt.Fprintf(w, "\r%s / %s (%.0f%%)", formatSize(done), formatSize(total), pct)

		if done >= total {
			fmt.Fprintln(w)
		}
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// printRaw writes a service response verbatim, ending with a newline.
func printRaw(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}

	if len(data) > 0 && data[len(data)-1] != '\n' {
		_, err := fmt.Fprintln(w)

		return err
	}

	return nil
}

// outputFormat selects how listings are printed.
type outputFormat string

const (
	outputJSON  outputFormat = "json"
	outputTable outputFormat = "table"
	outputCSV   outputFormat = "csv"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch f := outputFormat(s); f {
	case outputJSON, outputTable, outputCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want json, table or csv)", s)
	}
}

// writeListing streams items to w. JSON output is an array, wrapped in an
// object under key when key is non-empty. Table and CSV output use fields
// as columns, or every field of the first item when fields is empty.
func writeListing[T any](w io.Writer, format outputFormat, key string, fields []string, items iter.Seq2[T, error]) error {
	switch format {
	case outputTable, outputCSV:
		return writeRows(w, format, fields, items)
	default:
		return writeJSONArray(w, key, items)
	}
}

func writeJSONArray[T any](w io.Writer, key string, items iter.Seq2[T, error]) error {
	open, end := "[", "]"
	if key != "" {
		open, end = fmt.Sprintf("{%q:[", key), "]}"
	}

	if _, err := io.WriteString(w, open); err != nil {
		return err
	}

	n := 0

	for item, err := range items {
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(item, "  ", "  ")
		if err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}

		sep := "\n  "
		if n > 0 {
			sep = ",\n  "
		}

		if _, err := fmt.Fprintf(w, "%s%s", sep, data); err != nil {
			return err
		}

		n++
	}

	if n > 0 {
		end = "\n" + end
	}

	_, err := fmt.Fprintln(w, end)

	return err
}

// writeRows collects items into rows. Objects are flattened one level;
// nested values are rendered as compact JSON.
func writeRows[T any](w io.Writer, format outputFormat, fields []string, items iter.Seq2[T, error]) error {
	columns := slices.Clone(fields)

	var rows [][]string

	for item, err := range items {
		if err != nil {
			return err
		}

		obj, scalar, err := toRecord(item)
		if err != nil {
			return err
		}

		if obj == nil {
			rows = append(rows, []string{scalar})
			continue
		}

		if columns == nil {
			columns = sortedKeys(obj)
		}

		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = cellString(obj[col])
		}

		rows = append(rows, row)
	}

	if format == outputCSV {
		return writeCSV(w, columns, rows)
	}

	table := tablewriter.NewWriter(w)

	if len(columns) > 0 {
		header := make([]any, len(columns))
		for i, c := range columns {
			header[i] = c
		}

		table.Header(header...)
	}

	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("rendering table: %w", err)
		}
	}

	return table.Render()
}

func writeCSV(w io.Writer, columns []string, rows [][]string) error {
	cw := csv.NewWriter(w)

	if len(columns) > 0 {
		if err := cw.Write(columns); err != nil {
			return err
		}
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}

	return nil
}

// toRecord converts v to its JSON object form. Non-objects come back as a
// single rendered cell.
func toRecord(v any) (map[string]any, string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("encoding row: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, "", fmt.Errorf("decoding row: %w", err)
	}

	if obj, ok := decoded.(map[string]any); ok {
		return obj, "", nil
	}

	return nil, cellString(decoded), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return fmt.Sprintf("%t", x)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}

		return string(data)
	}
}
