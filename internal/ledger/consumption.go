package ledger

import "github.com/j-veylop/parkinfusion/internal/models"

var consumptionByType = map[models.TherapyType]models.Consumption{
	models.TherapyBase:          {Primary: 1, Secondary: 0, Accessory: 1},
	models.TherapyBaseAccessory: {Primary: 1, Secondary: 1, Accessory: 1},
}

// ConsumptionFor returns the consumables used by one dose of therapy type t.
func ConsumptionFor(t models.TherapyType) (models.Consumption, bool) {
	c, ok := consumptionByType[t]
	return c, ok
}
