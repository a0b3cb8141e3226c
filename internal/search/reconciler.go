package search

import "github.com/openmeetings/meetsearch/internal/models"

// Reconcile returns the facet map the body selector shows. With no active date range it is an
// exact copy of baseline. Otherwise it lists every baseline body in baseline order with its
// count under the date range, zero when the dated response omitted it. The key set always
// equals the baseline key set.
func Reconcile(baseline, dated models.FacetCount, datesActive bool) models.FacetCount {
	if !datesActive {
		return baseline.Clone()
	}
	values := make([]models.FacetValue, 0, baseline.Len())
	for _, body := range baseline.Keys() {
		count, _ := dated.Get(body)
		values = append(values, models.FacetValue{Value: body, Count: count})
	}
	return models.NewFacetCount(values...)
}
