package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ironsheep/scene-compose-mcp/internal/geometry"
)

// viridis is the color ramp used for height.
var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// ScatterOptions controls Scatter3D.
type ScatterOptions struct {
	Title    string
	Subtitle string

	// AssetsHost overrides where the ECharts scripts are loaded from.
	AssetsHost string

	// SymbolSize is the marker size; zero means 3.
	SymbolSize int
}

// Scatter3D writes an interactive HTML page with one 3D scatter series per
// layer, colored by height.
func Scatter3D(w io.Writer, layers []Layer, o ScatterOptions) error {
	sets := make([]geometry.PointSet, 0, len(layers))
	for _, l := range layers {
		if l.Set.Len() > 0 {
			sets = append(sets, l.Set)
		}
	}
	if len(sets) == 0 {
		return ErrNothingToRender
	}
	bounds, err := geometry.BoundsOf(sets...)
	if err != nil {
		return err
	}

	title := o.Title
	if title == "" {
		title = "Point Cloud"
	}
	symbol := o.SymbolSize
	if symbol <= 0 {
		symbol = 3
	}

	total := 0
	for _, ps := range sets {
		total += ps.Len()
	}
	subtitle := o.Subtitle
	if subtitle == "" {
		subtitle = fmt.Sprintf("sets=%d points=%d", len(sets), total)
	}

	init := opts.Initialization{PageTitle: title, Width: "900px", Height: "700px"}
	if o.AssetsHost != "" {
		init.AssetsHost = o.AssetsHost
	}

	scatter := charts.NewScatter3D()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "X"}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "Y"}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "Z"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(bounds.Min.Z),
			Max:        float32(bounds.Max.Z),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)

	for i, l := range layers {
		if l.Set.Len() == 0 {
			continue
		}
		name := l.Name
		if name == "" {
			name = fmt.Sprintf("set %d", i)
		}
		scatter.AddSeries(name, chartData(l.Set), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: symbol}))
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func chartData(ps geometry.PointSet) []opts.Chart3DData {
	data := make([]opts.Chart3DData, ps.Len())
	for i, p := range ps.Points {
		data[i] = opts.Chart3DData{Value: []interface{}{p.X, p.Y, p.Z}}
	}
	return data
}
