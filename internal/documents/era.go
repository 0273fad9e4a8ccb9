package documents

import (
	"fmt"
	"time"
)

const reiwaOffset = 2018

// ReiwaYear returns the Reiwa era year of t's calendar year.
func ReiwaYear(t time.Time) int { return t.Year() - reiwaOffset }

// FiscalReiwaYear returns the Reiwa year of the April–March fiscal year t
// falls in.
func FiscalReiwaYear(t time.Time) int {
	y := t.Year()
	if t.Month() < time.April {
		y--
	}
	return y - reiwaOffset
}

// ReiwaDate formats t as 令和N年MM月DD日.
func ReiwaDate(t time.Time) string {
	return fmt.Sprintf("令和%d年%02d月%02d日", ReiwaYear(t), int(t.Month()), t.Day())
}
