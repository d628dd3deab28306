package entity

// SleeveCredits summarises purchased versus assigned sleeve configurations.
type SleeveCredits struct {
	Total     int `json:"total"`
	Consumed  int `json:"consumed"`
	Remaining int `json:"remaining"`
}

// CountSleeveCredits sums add-on quantities and counts photo items carrying a
// config. Remaining never drops below zero even for inconsistent data.
func CountSleeveCredits(items []OrderItem) SleeveCredits {
	var c SleeveCredits
	for _, it := range items {
		if it.IsSleeveAddon() {
			c.Total += it.Quantity
			continue
		}
		if it.Sleeve != nil && it.Sleeve.Text != "" {
			c.Consumed++
		}
	}
	c.Remaining = c.Total - c.Consumed
	if c.Remaining < 0 {
		c.Remaining = 0
	}
	return c
}

func (o *Order) SleeveCredits() SleeveCredits { return CountSleeveCredits(o.Items) }
