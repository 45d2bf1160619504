package campaign

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	yaml "go.yaml.in/yaml/v3"

	logx "campaigner/pkg/logx"
)

// DefaultGroup is assigned to recipients without a group column.
const DefaultGroup = "1"

var ErrUnsupportedFormat = errors.New("unsupported recipients file format")

// Column aliases, matched case-sensitively first and then case-insensitively.
var (
	destinationColumns = []string{"destination", "email", "Email", "address", "number", "nomor", "phone"}
	nameColumns        = []string{"name", "Name", "nama", "Nama"}
	groupColumns       = []string{"group", "Group"}
)

type LoadOptions struct {
	// CountryCode enables phone normalization of destinations (e.g. "62").
	// Empty leaves destinations untouched apart from trimming.
	CountryCode string
	// RequireName skips rows without a name.
	RequireName bool
	Log         logx.Logger
}

// LoadFile reads recipients from an .xlsx, .csv, .json or .yaml file.
// Rows that cannot be used are skipped with a warning; order is preserved.
func LoadFile(path string, opts LoadOptions) ([]Recipient, error) {
	var (
		rows []map[string]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readSpreadsheet(path)
	case ".csv":
		rows, err = readCSVFile(path)
	case ".json":
		rows, err = readStructured(path, json.Unmarshal)
	case ".yaml", ".yml":
		rows, err = readStructured(path, yaml.Unmarshal)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("load recipients %s: %w", path, err)
	}
	return FromRows(rows, opts), nil
}

// FromRows maps loosely named columns to Recipients.
func FromRows(rows []map[string]string, opts LoadOptions) []Recipient {
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	out := make([]Recipient, 0, len(rows))
	for i, row := range rows {
		r := Recipient{
			Destination: pick(row, destinationColumns),
			Name:        pick(row, nameColumns),
			Group:       pick(row, groupColumns),
		}
		if r.Destination == "" || (opts.RequireName && r.Name == "") {
			log.Warn("recipient row skipped: missing name or destination", logx.Int("row", i+1))
			continue
		}
		out = append(out, r)
	}
	return Normalize(out, opts)
}

// Normalize trims fields, fills the default group and applies phone
// normalization when opts.CountryCode is set. Email-looking destinations are
// never rewritten.
func Normalize(in []Recipient, opts LoadOptions) []Recipient {
	out := make([]Recipient, len(in))
	for i, r := range in {
		r.Destination = strings.TrimSpace(r.Destination)
		r.Name = strings.TrimSpace(r.Name)
		r.Group = strings.TrimSpace(r.Group)
		if r.Group == "" {
			r.Group = DefaultGroup
		}
		if opts.CountryCode != "" && phoneLike(r.Destination) {
			r.Destination = NormalizePhone(r.Destination, opts.CountryCode)
		}
		out[i] = r
	}
	return out
}

// phoneLike rejects addresses, @handles and signed ids such as Telegram
// group chats ("-1001234567890"), which must reach the gateway untouched.
func phoneLike(dest string) bool {
	return dest != "" && !strings.Contains(dest, "@") && !strings.HasPrefix(dest, "-")
}

func pick(row map[string]string, keys []string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	for k, v := range row {
		for _, want := range keys {
			if strings.EqualFold(strings.TrimSpace(k), want) && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

func readSpreadsheet(path string) ([]map[string]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return rowsWithHeader(grid), nil
}

func readCSVFile(path string) ([]map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return readCSV(bytes.NewReader(b))
}

func readCSV(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	grid, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return rowsWithHeader(grid), nil
}

// rowsWithHeader turns a grid whose first row names the columns into maps.
// Short rows are padded with empty values.
func rowsWithHeader(grid [][]string) []map[string]string {
	if len(grid) == 0 {
		return nil
	}
	header := grid[0]
	out := make([]map[string]string, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		row := make(map[string]string, len(header))
		empty := true
		for i, h := range header {
			h = strings.TrimSpace(h)
			if h == "" {
				continue
			}
			if i < len(cells) {
				row[h] = cells[i]
				if strings.TrimSpace(cells[i]) != "" {
					empty = false
				}
			}
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out
}

func readStructured(path string, unmarshal func([]byte, any) error) ([]map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []map[string]any
	if err := unmarshal(b, &raw); err != nil {
		return nil, err
	}
	out := make([]map[string]string, 0, len(raw))
	for _, m := range raw {
		row := make(map[string]string, len(m))
		for k, v := range m {
			row[k] = scalarString(v)
		}
		out = append(out, row)
	}
	return out, nil
}

// scalarString renders numbers without exponent so phone numbers stored as
// numbers survive.
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	case int:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	default:
		return fmt.Sprint(t)
	}
}
