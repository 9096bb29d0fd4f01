package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
	Color  string
}

// Overview is everything the dashboard derives from its state.
type Overview struct {
	Visible    []Subscription
	Total      Money
	ByCategory []CategoryAmount
}

// Visible returns the subscriptions that count toward totals. With ghost mode
// off that is every subscription; with it on, only the selected ones. Catalog
// order is preserved.
func Visible(subs []Subscription, ghost bool, sel Selection) []Subscription {
	if !ghost {
		out := make([]Subscription, len(subs))
		copy(out, subs)
		return out
	}
	out := make([]Subscription, 0, len(subs))
	for _, s := range subs {
		if sel.Contains(s.ID) {
			out = append(out, s)
		}
	}
	return out
}

// TotalCost sums the yearly cost of subs.
func TotalCost(subs []Subscription) Money {
	var total Money
	for _, s := range subs {
		total = total.Add(s.YearlyCost)
	}
	return total
}

// ByCategory groups subs by category in first-seen order.
func ByCategory(subs []Subscription) []CategoryAmount {
	index := make(map[string]int)
	var out []CategoryAmount
	for _, s := range subs {
		i, ok := index[s.Category]
		if !ok {
			i = len(out)
			index[s.Category] = i
			out = append(out, CategoryAmount{Name: s.Category, Color: CategoryColor(s.Category)})
		}
		out[i].Amount = out[i].Amount.Add(s.YearlyCost)
	}
	return out
}

// Derive computes the visible set, its total and its category aggregation.
func Derive(subs []Subscription, ghost bool, sel Selection) Overview {
	visible := Visible(subs, ghost, sel)
	return Overview{
		Visible:    visible,
		Total:      TotalCost(visible),
		ByCategory: ByCategory(visible),
	}
}
