package dashboard

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capstone-impacta/engagement-cli/internal/metrics"
	"github.com/capstone-impacta/engagement-cli/internal/model"
)

// NoticeWaitingForData is shown while either fact table is empty.
const NoticeWaitingForData = "waiting for data: one or both fact tables are empty"

// Card is a headline metric for one category.
type Card struct {
	Category string  `json:"category"`
	Title    string  `json:"title"`
	Value    float64 `json:"value"`
	Display  string  `json:"display"`
	Caption  string  `json:"caption"`
}

// Bar is one row of the daily average chart.
type Bar struct {
	Category string  `json:"category"`
	Views    float64 `json:"views"`
	Label    string  `json:"label"`
}

// FacultyDisplay holds the formatted faculty KPIs.
type FacultyDisplay struct {
	Views          string `json:"views"`
	Likes          string `json:"likes"`
	Comments       string `json:"comments"`
	MeanEngagement string `json:"mean_engagement"`
}

// FacultySection is the faculty half of the dashboard.
type FacultySection struct {
	Rows     int            `json:"rows"`
	KPIs     KPIs           `json:"kpis"`
	Display  FacultyDisplay `json:"display"`
	Timeline []Series       `json:"timeline"`
	Audience []Slice        `json:"audience"`
}

// NetworkSection is the social network half of the dashboard.
type NetworkSection struct {
	Rows         int         `json:"rows"`
	Leader       Card        `json:"leader"`
	Engagement   Card        `json:"engagement"`
	Stability    Card        `json:"stability"`
	DailyAverage []Bar       `json:"daily_average"`
	Trend        TrendWindow `json:"trend"`
}

// View is everything the rendering layer needs for one filter state.
type View struct {
	Filter  Filter         `json:"filter"`
	Options Options        `json:"options"`
	Notice  string         `json:"notice,omitempty"`
	Error   string         `json:"error,omitempty"`
	Faculty FacultySection `json:"faculty"`
	Network NetworkSection `json:"network"`
}

// Build filters ds by f and derives every dashboard section.
func Build(ds *Dataset, f Filter) View {
	v := View{Filter: f, Options: FilterOptions(ds)}
	var facRows, netRows []model.FactRow
	if ds != nil {
		facRows, netRows = ds.Faculty, ds.Network
	}
	if ds.Empty() {
		v.Notice = NoticeWaitingForData
	}
	v.Faculty = buildFaculty(Apply(facRows, f.Start, f.End, f.Faculties))
	v.Network = buildNetwork(Apply(netRows, f.Start, f.End, f.Networks))
	return v
}

// Failed is the view shown when the dataset could not be loaded.
func Failed(f Filter, err error) View {
	v := Build(nil, f)
	v.Notice = ""
	v.Error = "could not load dashboard data: " + err.Error()
	return v
}

func buildFaculty(rows []model.FactRow) FacultySection {
	k := FacultyKPIs(rows)
	return FacultySection{
		Rows: len(rows),
		KPIs: k,
		Display: FacultyDisplay{
			Views:          FormatThousands(k.Views),
			Likes:          FormatThousands(k.Likes),
			Comments:       FormatThousands(k.Comments),
			MeanEngagement: FormatPercent(k.MeanEngagement, 2),
		},
		Timeline: Timeline(rows),
		Audience: AudienceSplit(rows),
	}
}

func buildNetwork(rows []model.FactRow) NetworkSection {
	daily := DailyTotals(rows)

	leader, _ := Leader(rows)
	best, _ := BestEngagement(rows)
	stable, _ := Stability(daily)

	sec := NetworkSection{
		Rows: len(rows),
		Leader: Card{
			Category: strings.ToUpper(leader.Category),
			Title:    "View share",
			Value:    leader.Percent,
			Display:  FormatPercent(leader.Percent, 0),
			Caption:  "Reach leader",
		},
		Engagement: Card{
			Category: strings.ToUpper(best.Category),
			Title:    "Engagement rate",
			Value:    best.Value,
			Display:  FormatPercent(best.Value, 1),
			Caption:  "Best quality",
		},
		Stability: Card{
			Category: strings.ToUpper(stable.Category),
			Title:    "Stability",
			Value:    stable.CV,
			Display:  stable.Label,
			Caption:  "Lowest volatility",
		},
		Trend: Trend(daily),
	}
	for _, avg := range DailyAverage(daily) {
		sec.DailyAverage = append(sec.DailyAverage, Bar{
			Category: strings.ToUpper(avg.Category),
			Views:    avg.Value,
			Label:    FormatShort(avg.Value),
		})
	}
	return sec
}

// Service builds views from a (usually cached) Source.
type Service struct {
	src Source
}

// NewService creates a Service over src.
func NewService(src Source) *Service {
	return &Service{src: src}
}

// Options loads the dataset and returns its filter options.
func (s *Service) Options(ctx context.Context) (Options, error) {
	ds, err := s.src.Load(ctx)
	if err != nil {
		return Options{}, err
	}
	return FilterOptions(ds), nil
}

// Snapshot resolves sel against the current dataset and builds the view.
// Load failures do not return an error; the view carries an inline message
// and empty sections instead.
func (s *Service) Snapshot(ctx context.Context, sel Selection) View {
	start := time.Now()
	defer func() { metrics.SnapshotDuration.Observe(time.Since(start).Seconds()) }()

	ds, err := s.src.Load(ctx)
	if err != nil {
		zap.L().Error("dashboard: load dataset", zap.Error(err))
		return Failed(sel.Resolve(Options{}), err)
	}
	return Build(ds, sel.Resolve(FilterOptions(ds)))
}
