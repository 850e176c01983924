package dataset

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Skufu/bloodpanel/internal/panel"
	"github.com/pkg/errors"
)

//go:embed data/training.csv
var embeddedTable []byte

// CSVSource reads the table from disk on every Load. An empty Path reads
// the table compiled into the binary.
type CSVSource struct {
	Path string
}

func (s CSVSource) Load(ctx context.Context) (Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Path == "" {
		return ReadCSV(bytes.NewReader(embeddedTable))
	}

	fin, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open training table")
	}
	defer fin.Close()

	table, err := ReadCSV(fin)
	if err != nil {
		return nil, errors.Wrapf(err, "read training table %s", s.Path)
	}
	return table, nil
}

func (s CSVSource) String() string {
	if s.Path == "" {
		return "csv:embedded"
	}
	return "csv:" + s.Path
}

// ReadCSV parses a table with a header row. Columns are matched by name so
// their order in the file does not matter; unknown columns are ignored.
func ReadCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("training table is empty")
	} else if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	featureCols := make([]int, panel.NumFields)
	for i, name := range panel.Fields() {
		col, ok := index[name]
		if !ok {
			return nil, errors.Errorf("training table has no %s column", name)
		}
		featureCols[i] = col
	}
	labelCol, ok := index[LabelColumn]
	if !ok {
		return nil, errors.Errorf("training table has no %s column", LabelColumn)
	}

	table := make(Table, 0, 256)
	line := 1
	var record []string
	for record, err = reader.Read(); err == nil; record, err = reader.Read() {
		line++
		var row TrainingRow
		for i, col := range featureCols {
			v, perr := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if perr != nil {
				return nil, errors.Wrapf(perr, "line %d column %s", line, header[col])
			}
			row.Features[i] = v
		}
		label, perr := parseLabel(record[labelCol])
		if perr != nil {
			return nil, errors.Wrapf(perr, "line %d column %s", line, LabelColumn)
		}
		row.Label = label
		table = append(table, row)
	}
	if err != io.EOF {
		return nil, errors.Wrapf(err, "line %d", line+1)
	}
	if len(table) == 0 {
		return nil, errors.New("training table has no rows")
	}
	return table, nil
}

// parseLabel accepts "13" as well as "13.0", which spreadsheet exports
// tend to produce.
func parseLabel(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		if v < 0 {
			return 0, errors.Errorf("negative label %d", v)
		}
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(int(f)) {
		return 0, errors.Errorf("label %q is not a non-negative integer", s)
	}
	return int(f), nil
}
