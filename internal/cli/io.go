package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nishad/redbiom/internal/fetcher"
)

// readIDs returns the newline-delimited identifiers a command should
// operate on, mirroring redbiom's util.from_or_nargs: if --from names a
// file (or "-" for stdin), its non-blank lines win; otherwise the
// command's positional args are used verbatim. Exactly one source is
// expected to be non-empty; both present is a usage error.
func readIDs(cmd *cobra.Command, from string, args []string) ([]string, error) {
	if from != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("specify identifiers via --from or as arguments, not both")
		}
		return readLines(cmd, from)
	}
	return args, nil
}

func readLines(cmd *cobra.Command, from string) ([]string, error) {
	var r io.Reader
	if from == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(from)
		if err != nil {
			return nil, fmt.Errorf("open %q: %w", from, err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %q: %w", from, err)
	}
	return lines, nil
}

func printLines(cmd *cobra.Command, lines []string) {
	w := cmd.OutOrStdout()
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

// classicTSVTable parses a classic-format (OTU-table-style) TSV into a
// samples-by-features count table: the header row names samples, and
// each following row is a feature id followed by one count per sample.
// Reading the richer BIOM HDF5 format is explicitly a collaborator
// concern the Loader leaves out of scope; this is the minimal text
// format the CLI needs to drive it.
func classicTSVTable(path string) (map[string]map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var samples []string
	counts := make(map[string]map[string]float64)

	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if first {
			first = false
			if len(fields) < 2 {
				return nil, fmt.Errorf("%q: header row must name at least one sample", path)
			}
			samples = fields[1:]
			continue
		}
		if len(fields) != len(samples)+1 {
			return nil, fmt.Errorf("%q: row %q has %d fields, want %d", path, fields[0], len(fields), len(samples)+1)
		}
		featureID := fields[0]
		for i, raw := range fields[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("%q: row %q sample %q: %w", path, featureID, samples[i], err)
			}
			if v == 0 {
				continue
			}
			sampleID := samples[i]
			row, ok := counts[sampleID]
			if !ok {
				row = make(map[string]float64)
				counts[sampleID] = row
			}
			row[featureID] = v
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return counts, nil
}

// writeClassicTSV renders a fetched SparseTable back as a classic-format
// samples-by-features TSV (the mirror image of classicTSVTable).
func writeClassicTSV(w io.Writer, table *fetcher.SparseTable) {
	rows := make([]map[string]float64, len(table.SampleIDs))
	for i := range table.SampleIDs {
		rows[i] = table.Row(i)
	}

	fmt.Fprint(w, "#OTU ID")
	for _, s := range table.SampleIDs {
		fmt.Fprintf(w, "\t%s", s)
	}
	fmt.Fprintln(w)

	for _, feature := range table.FeatureIDs {
		fmt.Fprint(w, feature)
		for i := range table.SampleIDs {
			fmt.Fprintf(w, "\t%s", strconv.FormatFloat(rows[i][feature], 'g', -1, 64))
		}
		fmt.Fprintln(w)
	}
}

// tsvRows parses a simple TSV into column->value maps keyed by the first
// column, used for --metadata input (sample_id plus arbitrary columns).
func tsvRows(path string) (map[string]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var columns []string
	rows := make(map[string]map[string]string)

	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if first {
			first = false
			if len(fields) < 2 {
				return nil, fmt.Errorf("%q: header row must name at least one column", path)
			}
			columns = fields[1:]
			continue
		}
		if len(fields) != len(columns)+1 {
			return nil, fmt.Errorf("%q: row %q has %d fields, want %d", path, fields[0], len(fields), len(columns)+1)
		}
		id := fields[0]
		values := make(map[string]string, len(columns))
		for i, col := range columns {
			values[col] = fields[i+1]
		}
		rows[id] = values
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return rows, nil
}
