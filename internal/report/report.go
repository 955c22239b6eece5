// Package report renders the games of a run as a table, one row per game in log order.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"github.com/victornm/q3log/internal/domain"
	"github.com/victornm/q3log/internal/errors"
)

type Type string

const (
	TypeAll        Type = "all"
	TypePlayerRank Type = "player-rank"
	TypeCause      Type = "cause"
)

type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
)

// ParseType accepts the report type names and "mean-death" as an alias of TypeCause.
// An empty string is TypeAll.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(s)); t {
	case "", TypeAll:
		return TypeAll, nil
	case TypePlayerRank, TypeCause:
		return t, nil
	case "mean-death":
		return TypeCause, nil
	}

	return "", errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown report type: %q", s))
}

// ParseFormat accepts "text" and "html". An empty string is FormatText.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatHTML:
		return f, nil
	}

	return "", errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown report format: %q", s))
}

type Options struct {
	Type   Type
	Format Format
}

// Render writes the report of games to w.
func Render(w io.Writer, games []domain.Game, opts Options) error {
	t, err := ParseType(string(opts.Type))
	if err != nil {
		return err
	}

	f, err := ParseFormat(string(opts.Format))
	if err != nil {
		return err
	}

	tw := newWriter(build(games, t))

	var out string
	switch f {
	case FormatHTML:
		out = tw.RenderHTML()
	default:
		out = tw.Render()
	}

	if _, err := io.WriteString(w, out+"\n"); err != nil {
		return fmt.Errorf("report: render %s: %w", f, err)
	}

	return nil
}

type grid struct {
	Headers []string
	Rows    []row
}

type row struct {
	Game       string
	TotalKills uint32
	// Lists holds one cell per ranking column, one line per entry.
	Lists [][]string
}

func build(games []domain.Game, t Type) grid {
	tbl := grid{Headers: []string{"Game", "Total kills"}}

	withPlayers := t == TypeAll || t == TypePlayerRank
	withCauses := t == TypeAll || t == TypeCause

	if withPlayers {
		tbl.Headers = append(tbl.Headers, "Kill rank (player: kills)")
	}
	if withCauses {
		tbl.Headers = append(tbl.Headers, "Death causes (cause: count)")
	}

	for i, g := range games {
		r := row{
			Game:       fmt.Sprintf("Game %d", i+1),
			TotalKills: g.TotalKills,
		}

		if withPlayers {
			r.Lists = append(r.Lists, playerLines(g))
		}
		if withCauses {
			r.Lists = append(r.Lists, causeLines(g))
		}

		tbl.Rows = append(tbl.Rows, r)
	}

	return tbl
}

func playerLines(g domain.Game) []string {
	ranking := g.Ranking()

	lines := make([]string, 0, len(ranking))
	for _, p := range ranking {
		lines = append(lines, fmt.Sprintf("%s: %d", p.Name, p.Kills))
	}

	return lines
}

func causeLines(g domain.Game) []string {
	ranking := g.CauseRanking()

	lines := make([]string, 0, len(ranking))
	for _, c := range ranking {
		lines = append(lines, fmt.Sprintf("%s: %d (%s%%)", c.Cause, c.Count, Share(c.Count, g.TotalKills)))
	}

	return lines
}

// Share returns count as a percentage of total with two decimals.
func Share(count, total uint32) string {
	if total == 0 {
		return decimal.Zero.StringFixed(2)
	}

	return decimal.NewFromInt(int64(count)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		StringFixed(2)
}

// newWriter lays the rows out as a rounded table with centred columns.
// A list cell holds one entry per line.
func newWriter(tbl grid) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Options.SeparateRows = true

	header := make(table.Row, 0, len(tbl.Headers))
	configs := make([]table.ColumnConfig, 0, len(tbl.Headers))
	for i, h := range tbl.Headers {
		header = append(header, h)
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignCenter,
			AlignHeader: text.AlignCenter,
		})
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, r := range tbl.Rows {
		cells := table.Row{r.Game, r.TotalKills}
		for _, l := range r.Lists {
			cells = append(cells, strings.Join(l, "\n"))
		}
		tw.AppendRow(cells)
	}

	return tw
}
