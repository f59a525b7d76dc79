// Package adminhttp is the read-only HTTP surface an operator uses to watch
// a running match server: live session counts, recent match history, and
// two chart renderings of that history (an interactive go-echarts page and
// a static gonum/plot PNG), independent of the UDP game protocol.
package adminhttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ironclad-sim/tankserver/internal/session"
	"github.com/ironclad-sim/tankserver/internal/storage/sqlite"
)

// MatchHistory is the read side of match persistence the admin surface
// needs; *sqlite.DB satisfies it.
type MatchHistory interface {
	RecentMatches(limit int) ([]sqlite.MatchRecord, error)
}

// Server holds the live registries and optional match history the admin
// handlers read from. It never mutates game state.
type Server struct {
	Clients *session.Registry
	Viewers *session.Registry
	History MatchHistory // nil when persistence is disabled
}

// Mux builds the admin HTTP surface described in §6.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/matches", s.handleMatches)
	mux.HandleFunc("/matches/chart", s.handleMatchesChart)
	mux.HandleFunc("/matches/plot.png", s.handleMatchesPlot)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html><head><title>tankserver admin</title></head>
<body>
<h1>tankserver</h1>
<ul>
<li><a href="/stats">/stats</a> - live client/viewer counts</li>
<li><a href="/matches">/matches</a> - recent match history (JSON)</li>
<li><a href="/matches/chart">/matches/chart</a> - match duration chart</li>
<li><a href="/matches/plot.png">/matches/plot.png</a> - match duration plot (PNG)</li>
</ul>
</body></html>`)
}

type statsResponse struct {
	Clients int `json:"clients"`
	Viewers int `json:"viewers"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statsResponse{
		Clients: s.Clients.ClientCount(),
		Viewers: s.Viewers.ViewerCount(),
	})
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		http.Error(w, "match persistence is disabled", http.StatusServiceUnavailable)
		return
	}
	matches, err := s.History.RecentMatches(50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, matches)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleMatchesChart renders an interactive bar chart of the most recent
// matches' tick counts.
func (s *Server) handleMatchesChart(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		http.Error(w, "match persistence is disabled", http.StatusServiceUnavailable)
		return
	}
	matches, err := s.History.RecentMatches(30)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	labels := make([]string, len(matches))
	ticks := make([]opts.BarData, len(matches))
	for i, m := range matches {
		labels[i] = m.EndedAt.Format(time.Kitchen)
		ticks[i] = opts.BarData{Value: m.Ticks}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Match Duration", Subtitle: fmt.Sprintf("last %d matches, ticks elapsed", len(matches))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels).AddSeries("ticks", ticks)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handleMatchesPlot renders the same tick-count history as a static PNG,
// useful for embedding in a report that can't load the echarts JS runtime.
func (s *Server) handleMatchesPlot(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		http.Error(w, "match persistence is disabled", http.StatusServiceUnavailable)
		return
	}
	matches, err := s.History.RecentMatches(30)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(matches) == 0 {
		http.Error(w, "no matches recorded yet", http.StatusNotFound)
		return
	}

	ticks := make([]float64, len(matches))
	for i, m := range matches {
		// matches arrive most-recent-first; plot oldest to newest left to right
		ticks[len(matches)-1-i] = float64(m.Ticks)
	}

	pts := make(plotter.XYs, len(ticks))
	for i, t := range ticks {
		pts[i] = plotter.XY{X: float64(i), Y: t}
	}

	p := plot.New()
	p.Title.Text = "Match Duration"
	p.X.Label.Text = "Match (oldest to newest)"
	p.Y.Label.Text = fmt.Sprintf("Ticks (mean %.0f)", floats.Sum(ticks)/float64(len(ticks)))

	line, err := plotter.NewLine(pts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	line.Color = color.RGBA{R: 220, G: 60, B: 30, A: 255}
	line.Width = vg.Points(1.5)
	p.Add(line)

	var buf bytes.Buffer
	writerTo, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if _, err := writerTo.WriteTo(&buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}
