// Package workbook edits a single sheet of an xlsx template while respecting
// its merged ranges: only the top-left anchor of a merged range is written.
package workbook

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrSheetMissing = errors.New("sheet not found")

// Cell is a 1-based (row, column) coordinate.
type Cell struct {
	Row int
	Col int
}

// At builds a cell from a column letter and a row number, e.g. At("B", 6).
func At(col string, row int) Cell {
	n, err := excelize.ColumnNameToNumber(col)
	if err != nil {
		panic(fmt.Sprintf("workbook: bad column %q", col))
	}
	return Cell{Row: row, Col: n}
}

// ParseCell parses an A1 style reference.
func ParseCell(ref string) (Cell, error) {
	col, row, err := excelize.CellNameToCoordinates(ref)
	if err != nil {
		return Cell{}, err
	}
	return Cell{Row: row, Col: col}, nil
}

func (c Cell) String() string {
	name, err := excelize.CoordinatesToCellName(c.Col, c.Row)
	if err != nil {
		return fmt.Sprintf("R%dC%d", c.Row, c.Col)
	}
	return name
}

// Sheet is one opened sheet of a workbook file.
type Sheet struct {
	f    *excelize.File
	name string
	// anchorOf maps every non-anchor merged cell to its range's anchor.
	anchorOf map[Cell]Cell
}

// Open opens path and indexes the merged ranges of sheet.
func Open(path, sheet string) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		f.Close()
		return nil, fmt.Errorf("%s in %s: %w", sheet, path, ErrSheetMissing)
	}
	s := &Sheet{f: f, name: sheet, anchorOf: map[Cell]Cell{}}
	if err := s.indexMerged(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sheet) indexMerged() error {
	mcs, err := s.f.GetMergeCells(s.name)
	if err != nil {
		return fmt.Errorf("read merged cells: %w", err)
	}
	for _, mc := range mcs {
		from, err := ParseCell(mc.GetStartAxis())
		if err != nil {
			return fmt.Errorf("merged range start %q: %w", mc.GetStartAxis(), err)
		}
		to, err := ParseCell(mc.GetEndAxis())
		if err != nil {
			return fmt.Errorf("merged range end %q: %w", mc.GetEndAxis(), err)
		}
		for r := from.Row; r <= to.Row; r++ {
			for c := from.Col; c <= to.Col; c++ {
				cell := Cell{Row: r, Col: c}
				if cell != from {
					s.anchorOf[cell] = from
				}
			}
		}
	}
	return nil
}

// Writable reports whether c is a plain cell or the anchor of a merged range.
func (s *Sheet) Writable(c Cell) bool {
	_, covered := s.anchorOf[c]
	return !covered
}

// Set writes v into c. Writes to non-anchor merged cells are skipped and
// reported as false.
func (s *Sheet) Set(c Cell, v any) (bool, error) {
	if !s.Writable(c) {
		return false, nil
	}
	if err := s.f.SetCellValue(s.name, c.String(), v); err != nil {
		return false, fmt.Errorf("set %s: %w", c, err)
	}
	return true, nil
}

func (s *Sheet) Get(c Cell) (string, error) {
	return s.f.GetCellValue(s.name, c.String())
}

// ReplaceToken substitutes every occurrence of token in c's text and leaves
// the rest of the text alone. It reports whether the token was present.
func (s *Sheet) ReplaceToken(c Cell, token, value string) (bool, error) {
	cur, err := s.Get(c)
	if err != nil {
		return false, err
	}
	if !strings.Contains(cur, token) {
		return false, nil
	}
	return s.Set(c, strings.ReplaceAll(cur, token, value))
}

// Save writes the workbook back to the file it was opened from.
func (s *Sheet) Save() error {
	if err := s.f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func (s *Sheet) Close() error { return s.f.Close() }
