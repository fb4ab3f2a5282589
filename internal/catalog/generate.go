// Procedural catalog generation using layered simplex noise, so large
// synthetic markets can be produced deterministically from a seed.
package catalog

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Price bands per category, in copper. Noise picks a point inside the band
// on a log scale.
var priceBands = map[Category][2]float64{
	CategoryReagent:    {20, 400},
	CategoryTradeGood:  {15, 600},
	CategoryConsumable: {20, 1500},
	CategoryEquipment:  {800, 20000},
	CategoryGem:        {1500, 30000},
}

var namePrefixes = []string{"Ashen", "Briny", "Copper", "Dusk", "Ember", "Frost", "Gilded", "Hollow", "Ivory", "Jade", "Kindled", "Lunar"}

var nameNouns = map[Category][]string{
	CategoryReagent:    {"Bloom", "Root", "Moss", "Thistle"},
	CategoryTradeGood:  {"Ore", "Cloth", "Hide", "Ingot"},
	CategoryConsumable: {"Draught", "Tonic", "Loaf", "Elixir"},
	CategoryEquipment:  {"Blade", "Helm", "Satchel", "Bracers"},
	CategoryGem:        {"Pearl", "Opal", "Sapphire", "Garnet"},
}

// Generate builds n item definitions from seed. Each item samples four
// independent noise layers (price, supply, demand skew, volatility), the same
// way world generation samples elevation, rainfall and temperature.
func Generate(seed int64, n int) []ItemDefinition {
	if n <= 0 {
		return nil
	}

	priceNoise := opensimplex.NewNormalized(seed)
	supplyNoise := opensimplex.NewNormalized(seed + 1)
	skewNoise := opensimplex.NewNormalized(seed + 2)
	volNoise := opensimplex.NewNormalized(seed + 3)

	defs := make([]ItemDefinition, 0, n)
	for i := 0; i < n; i++ {
		cat := Categories[i%len(Categories)]
		x := float64(i) * 0.37
		y := float64(i%len(Categories)) * 1.9

		band := priceBands[cat]
		p := octave(priceNoise, x, y)
		price := math.Round(math.Exp(math.Log(band[0]) + p*(math.Log(band[1])-math.Log(band[0]))))

		// Cheap goods move in bulk, expensive ones trickle.
		supply := math.Round((2000 / math.Sqrt(price)) * (0.5 + octave(supplyNoise, x, y)))
		if supply < 5 {
			supply = 5
		}
		skew := 0.8 + 0.4*octave(skewNoise, x, y) // demand/supply between 0.8 and 1.2
		demand := math.Round(supply * skew)

		vol := 0.02 + 0.18*octave(volNoise, x, y)
		vol = math.Round(vol*1000) / 1000

		noun := nameNouns[cat][(i/len(Categories))%len(nameNouns[cat])]
		prefix := namePrefixes[i%len(namePrefixes)]
		defs = append(defs, ItemDefinition{
			ID:         fmt.Sprintf("gen_%03d", i),
			Name:       fmt.Sprintf("%s %s", prefix, noun),
			Category:   cat,
			BasePrice:  math.Max(1, price),
			BaseSupply: supply,
			BaseDemand: math.Max(1, demand),
			Volatility: vol,
		})
	}
	return defs
}

// octave sums two noise octaves and renormalizes to [0, 1].
func octave(n opensimplex.Noise, x, y float64) float64 {
	v := n.Eval2(x, y)*0.67 + n.Eval2(x*2, y*2)*0.33
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
