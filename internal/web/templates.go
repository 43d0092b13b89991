package web

import (
	"embed"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"time"

	"github.com/nugget/wattdash/internal/buildinfo"
	"github.com/nugget/wattdash/internal/dashboard"
)

//go:embed templates/*.html
var templateFiles embed.FS

var templateFuncs = template.FuncMap{
	"formatDuration": formatDuration,
	"formatMoney":    formatMoney,
	"formatPower":    formatPower,
	"compass":        compass,
}

// loadTemplates parses the layout and each page template. Panics on
// syntax errors so that startup fails fast.
func loadTemplates() map[string]*template.Template {
	layout := template.Must(
		template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFiles, "templates/layout.html"),
	)

	pages := []string{"dashboard.html"}
	result := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t := template.Must(layout.Clone())
		template.Must(t.ParseFS(templateFiles, "templates/"+page))
		result[page] = t
	}
	return result
}

// pageData is the template context for the dashboard page.
type pageData struct {
	View      dashboard.View
	HasView   bool
	Connected bool
	Version   string
	Uptime    time.Duration
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	v, _, ok := s.current()
	s.render(w, r, "dashboard.html", pageData{
		View:      v,
		HasView:   ok,
		Connected: s.connected(),
		Version:   buildinfo.Version,
		Uptime:    buildinfo.Uptime(),
	})
}

// render executes a named template. A request carrying HX-Request gets
// only the "content" block, which the page uses to refresh itself when
// a live frame arrives.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	t, ok := s.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	block := "layout.html"
	if r.Header.Get("HX-Request") == "true" {
		block = "content"
	}

	if err := t.ExecuteTemplate(w, block, data); err != nil {
		s.logger.Error("template render failed", "template", name, "block", block, "error", err)
	}
}

// formatDuration renders a time.Duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// formatMoney renders an amount with two decimals and its currency.
func formatMoney(amount float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

// formatPower renders watts, switching to kW from 1000 W.
func formatPower(w float64) string {
	if math.Abs(w) >= 1000 {
		return fmt.Sprintf("%.2f kW", w/1000)
	}
	return fmt.Sprintf("%.0f W", w)
}

var compassPoints = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// compass maps a bearing in degrees to an eight-point compass label.
func compass(deg int) string {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return compassPoints[((deg*2+45)/90)%8]
}
