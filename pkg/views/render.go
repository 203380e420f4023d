package views

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/udec-estadio/humidityboard/pkg/dashboard"
	"github.com/udec-estadio/humidityboard/pkg/models"
)

//go:embed templates
var viewsFS embed.FS

const (
	chartWidth  = 240
	chartHeight = 60
)

var pageTmpl *template.Template

var errNotLoaded = errors.New("templates not loaded: call views.LoadTemplates during startup")

// loadTemplatesFromFS loads templates from the given fs and dir. Used by
// LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.New("views").Funcs(funcMap()).ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	pageTmpl = tmpl
	return nil
}

// LoadTemplates loads the embedded templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// DashboardData is the view model for the dashboard page and its partial
type DashboardData struct {
	Title          string
	Locations      []dashboard.LocationState
	Average        *float64
	Recommendation string
	UpdatedAt      time.Time
	Stale          bool
	StaleSince     time.Time
	RefreshSeconds int
	ChartWidth     int
	ChartHeight    int
}

// NewDashboardData builds the view model from a poller snapshot
func NewDashboardData(snap dashboard.Snapshot, refresh time.Duration) *DashboardData {
	seconds := int(refresh.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return &DashboardData{
		Title:          "Dashboard",
		Locations:      snap.Locations,
		Average:        snap.Average,
		Recommendation: snap.Recommendation,
		UpdatedAt:      snap.UpdatedAt,
		Stale:          snap.Stale(),
		StaleSince:     snap.LastErrorAt,
		RefreshSeconds: seconds,
		ChartWidth:     chartWidth,
		ChartHeight:    chartHeight,
	}
}

// ReadingsData is the view model for the filtered readings table
type ReadingsData struct {
	Title     string
	Location  string
	Locations []string
	Readings  []models.Reading
}

// NewReadingsData keeps the readings whose location matches exactly. An
// empty location keeps the whole batch.
func NewReadingsData(batch []models.Reading, location string, locations []string) *ReadingsData {
	filtered := make([]models.Reading, 0, len(batch))
	for _, r := range batch {
		if location == "" || r.Location == location {
			filtered = append(filtered, r)
		}
	}
	return &ReadingsData{
		Title:     "Readings",
		Location:  location,
		Locations: locations,
		Readings:  filtered,
	}
}

func RenderDashboard(w io.Writer, data *DashboardData) error {
	if pageTmpl == nil {
		return errNotLoaded
	}
	return pageTmpl.ExecuteTemplate(w, "dashboard.html", data)
}

// RenderDashboardPartial executes only the locations partial into w.
// Use for HTMX fragment refresh.
func RenderDashboardPartial(w io.Writer, data *DashboardData) error {
	if pageTmpl == nil {
		return errNotLoaded
	}
	return pageTmpl.ExecuteTemplate(w, "partials/locations.html", data)
}

func RenderReadings(w io.Writer, data *ReadingsData) error {
	if pageTmpl == nil {
		return errNotLoaded
	}
	return pageTmpl.ExecuteTemplate(w, "readings.html", data)
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"percent":   percent,
		"clock":     clock,
		"timestamp": timestamp,
		"sparkline": sparkline,
	}
}

func percent(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', 1, 64) + "%"
	case *float64:
		if t == nil {
			return "--"
		}
		return percent(*t)
	default:
		return fmt.Sprint(v)
	}
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "--"
	}
	return t.Local().Format("15:04:05")
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "--"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// sparkline returns SVG polyline points for values on a fixed 0-100 scale,
// oldest on the left.
func sparkline(values []float64, width, height int) string {
	if len(values) == 0 {
		return ""
	}

	step := 0.0
	if len(values) > 1 {
		step = float64(width) / float64(len(values)-1)
	}

	points := make([]string, len(values))
	for i, v := range values {
		v = math.Max(0, math.Min(100, v))
		x := step * float64(i)
		y := float64(height) - v/100*float64(height)
		points[i] = strconv.FormatFloat(x, 'f', 1, 64) + "," + strconv.FormatFloat(y, 'f', 1, 64)
	}
	return strings.Join(points, " ")
}
