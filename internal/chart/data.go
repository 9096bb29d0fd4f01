package chart

import "subtrack/internal/core"

// Data is the category series in the shape browser charting libraries take.
type Data struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor"`
	BorderWidth     int       `json:"borderWidth"`
	BorderRadius    int       `json:"borderRadius"`
}

// FromCategories builds chart data from a category aggregation, keeping its
// order.
func FromCategories(rows []core.CategoryAmount) Data {
	ds := Dataset{
		Label:           DatasetLabel,
		Data:            make([]float64, 0, len(rows)),
		BackgroundColor: make([]string, 0, len(rows)),
		BorderWidth:     0,
		BorderRadius:    8,
	}
	labels := make([]string, 0, len(rows))
	for _, r := range rows {
		labels = append(labels, r.Name)
		ds.Data = append(ds.Data, r.Amount.Float())
		ds.BackgroundColor = append(ds.BackgroundColor, r.Color)
	}
	return Data{Labels: labels, Datasets: []Dataset{ds}}
}
