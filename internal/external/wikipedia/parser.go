package wikipedia

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Constituent is one row of the constituents table
type Constituent struct {
	Symbol      string    `json:"symbol"`
	Security    string    `json:"security"`
	Sector      string    `json:"sector"`       // GICS Sector
	SubIndustry string    `json:"sub_industry"` // GICS Sub-Industry
	DateAdded   time.Time `json:"date_added"`   // zero when absent
}

// columns maps the header cells this parser needs to their positions
type columns struct {
	symbol, security, sector, subIndustry, dateAdded int
}

// ParseConstituents reads the table with id "constituents".
// Columns are located by header text so reordering on the page is tolerated.
func ParseConstituents(r io.Reader) ([]Constituent, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	table := doc.Find("table#constituents").First()
	if table.Length() == 0 {
		table = doc.Find("table.wikitable").First()
	}
	if table.Length() == 0 {
		return nil, fmt.Errorf("constituents table not found")
	}

	cols := columns{-1, -1, -1, -1, -1}
	table.Find("tr").First().Find("th").Each(func(i int, th *goquery.Selection) {
		switch strings.ToLower(cleanText(th.Text())) {
		case "symbol", "ticker", "ticker symbol":
			cols.symbol = i
		case "security", "company":
			cols.security = i
		case "gics sector":
			cols.sector = i
		case "gics sub-industry":
			cols.subIndustry = i
		case "date added", "date first added":
			cols.dateAdded = i
		}
	})
	if cols.symbol < 0 || cols.sector < 0 {
		return nil, fmt.Errorf("constituents table lacks symbol or GICS sector column")
	}

	var out []Constituent
	seen := make(map[string]bool)
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() <= cols.symbol || cells.Length() <= cols.sector {
			return
		}

		symbol := cleanText(cells.Eq(cols.symbol).Text())
		if symbol == "" || seen[symbol] {
			return
		}
		seen[symbol] = true

		c := Constituent{
			Symbol: symbol,
			Sector: cleanText(cells.Eq(cols.sector).Text()),
		}
		if cols.security >= 0 {
			c.Security = cleanText(cells.Eq(cols.security).Text())
		}
		if cols.subIndustry >= 0 {
			c.SubIndustry = cleanText(cells.Eq(cols.subIndustry).Text())
		}
		if cols.dateAdded >= 0 {
			// 일부 행은 "1957-03-04 (1957)" 형태
			raw := cleanText(cells.Eq(cols.dateAdded).Text())
			if len(raw) >= 10 {
				if d, err := time.Parse("2006-01-02", raw[:10]); err == nil {
					c.DateAdded = d
				}
			}
		}
		out = append(out, c)
	})

	if len(out) == 0 {
		return nil, fmt.Errorf("constituents table has no rows")
	}
	return out, nil
}

// Sectors returns symbol → GICS sector
func Sectors(constituents []Constituent) map[string]string {
	out := make(map[string]string, len(constituents))
	for _, c := range constituents {
		out[c.Symbol] = c.Sector
	}
	return out
}

// Symbols returns the symbols in table order
func Symbols(constituents []Constituent) []string {
	out := make([]string, len(constituents))
	for i, c := range constituents {
		out[i] = c.Symbol
	}
	return out
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
