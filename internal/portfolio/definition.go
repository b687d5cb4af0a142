package portfolio

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/wonny/rebalancer/internal/contracts"
)

// Column headers of a tabular definition. Matching is case-insensitive.
const (
	ColumnTicker    = "Ticker"
	ColumnWeight    = "Weight"
	ColumnRebalance = "Rebalance"
	ColumnFirstDate = "First Date"
)

var dateLayouts = []string{
	contracts.DateLayout,
	"2006/01/02",
	"1/2/2006",
	"01-02-06",
	"1/2/06",
	time.RFC3339,
}

// Definition is the YAML form of a portfolio definition
type Definition struct {
	Rebalance string          `yaml:"rebalance"`
	FirstDate string          `yaml:"first_date"`
	Holdings  []DefinitionRow `yaml:"holdings"`
}

// DefinitionRow is one YAML holding
type DefinitionRow struct {
	Ticker string  `yaml:"ticker"`
	Weight float64 `yaml:"weight"`
}

// Load reads a portfolio definition from .xlsx, .csv or .yaml/.yml and
// validates it.
func Load(path string) (contracts.TargetAllocation, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadXLSX(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return contracts.TargetAllocation{}, err
		}
		defer f.Close()
		return ParseCSV(f)
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return contracts.TargetAllocation{}, err
		}
		return ParseYAML(data)
	default:
		return contracts.TargetAllocation{}, fmt.Errorf("unsupported portfolio definition format: %s", path)
	}
}

func loadXLSX(path string) (contracts.TargetAllocation, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return contracts.TargetAllocation{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return ParseWorkbook(f)
}

// ParseWorkbook reads the first sheet of an open workbook
func ParseWorkbook(f *excelize.File) (contracts.TargetAllocation, error) {
	sheet := f.GetSheetName(0)
	if sheet == "" {
		return contracts.TargetAllocation{}, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return contracts.TargetAllocation{}, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	return parseTable(rows)
}

// ParseCSV reads a comma separated definition with a header row
func ParseCSV(r io.Reader) (contracts.TargetAllocation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return contracts.TargetAllocation{}, fmt.Errorf("failed to read csv: %w", err)
	}

	return parseTable(rows)
}

// ParseYAML decodes a YAML definition; unknown fields are rejected
func ParseYAML(data []byte) (contracts.TargetAllocation, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return contracts.TargetAllocation{}, fmt.Errorf("failed to decode yaml: %w", err)
	}

	holdings := make([]contracts.Holding, 0, len(def.Holdings))
	for _, row := range def.Holdings {
		ticker := normalizeTicker(row.Ticker)
		if ticker == "" {
			continue
		}
		holdings = append(holdings, contracts.Holding{Ticker: ticker, Weight: decimal.NewFromFloat(row.Weight)})
	}

	alloc := contracts.NewTargetAllocation(holdings...)
	alloc.Rebalance = strings.TrimSpace(def.Rebalance)
	if def.FirstDate != "" {
		first, err := parseDate(def.FirstDate)
		if err != nil {
			return contracts.TargetAllocation{}, err
		}
		alloc.FirstDate = first
	}

	if err := alloc.Validate(); err != nil {
		return contracts.TargetAllocation{}, err
	}
	return alloc, nil
}

// parseTable converts header + data rows into a validated allocation.
// Rebalance and First Date are taken from the first row that sets them.
func parseTable(rows [][]string) (contracts.TargetAllocation, error) {
	if len(rows) == 0 {
		return contracts.TargetAllocation{}, fmt.Errorf("definition is empty")
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	tickerCol, ok := cols[strings.ToLower(ColumnTicker)]
	if !ok {
		return contracts.TargetAllocation{}, fmt.Errorf("missing %q column", ColumnTicker)
	}
	weightCol, ok := cols[strings.ToLower(ColumnWeight)]
	if !ok {
		return contracts.TargetAllocation{}, fmt.Errorf("missing %q column", ColumnWeight)
	}
	rebalanceCol, hasRebalance := cols[strings.ToLower(ColumnRebalance)]
	firstDateCol, hasFirstDate := cols[strings.ToLower(ColumnFirstDate)]

	var alloc contracts.TargetAllocation
	holdings := make([]contracts.Holding, 0, len(rows)-1)

	for n, row := range rows[1:] {
		ticker := normalizeTicker(cell(row, tickerCol))
		if ticker == "" {
			continue
		}

		weight, err := parseWeight(cell(row, weightCol))
		if err != nil {
			return contracts.TargetAllocation{}, fmt.Errorf("row %d (%s): %w", n+2, ticker, err)
		}
		holdings = append(holdings, contracts.Holding{Ticker: ticker, Weight: weight})

		if hasRebalance && alloc.Rebalance == "" {
			alloc.Rebalance = strings.TrimSpace(cell(row, rebalanceCol))
		}
		if hasFirstDate && alloc.FirstDate.IsZero() {
			if raw := strings.TrimSpace(cell(row, firstDateCol)); raw != "" {
				first, err := parseDate(raw)
				if err != nil {
					return contracts.TargetAllocation{}, fmt.Errorf("row %d (%s): %w", n+2, ticker, err)
				}
				alloc.FirstDate = first
			}
		}
	}

	alloc.Holdings = holdings
	if err := alloc.Validate(); err != nil {
		return contracts.TargetAllocation{}, err
	}
	return alloc, nil
}

// Hash returns the SHA256 of the allocation's canonical JSON
func Hash(alloc contracts.TargetAllocation) (string, error) {
	data, err := json.Marshal(alloc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func normalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// parseWeight accepts fractions ("0.25") and percentages ("25%")
func parseWeight(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty weight")
	}

	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))

	w, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid weight %q", s)
	}
	if percent {
		w = w.Div(decimal.NewFromInt(100))
	}
	return w, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return contracts.Date(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid first date %q", s)
}
