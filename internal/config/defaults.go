package config

import "github.com/plateforme/homegarden/internal/model"

// DefaultConfig seeds data.json on first run with rule tables for common
// houseplants. Each profile orders its rules from "wet enough" to "needs
// water": the no-water band first, so it shadows the watering bands.
func DefaultConfig() model.SystemConfig {
	return model.SystemConfig{
		CurrentProfile:             "Monstera deliciosa",
		MinWateringIntervalMinutes: model.DefaultMinWateringIntervalMinutes,
		Schedules:                  []model.ScheduleEntry{},
		Profiles: map[string]model.PlantProfile{
			"Monstera deliciosa":      profile("18-26", band("> 55", "< 35", "35-55"), 1.5, 0.5, 0.45, 0.15),
			"Ficus benjamina":         profile("16-24", band("> 50", "< 30", "30-50"), 1, 0.5, 0.30, 0.15),
			"Epipremnum aureum":       profile("15-30", band("> 50", "< 25", "25-50"), 1, 0.5, 0.30, 0.15),
			"Dracaena marginata":      profile("18-24", band("> 55", "< 30", "30-55"), 1, 0.5, 0.30, 0.15),
			"Sansevieria trifasciata": profile("15-24", band("> 40", "< 20", "20-40"), 0.5, 0.25, 0.15, 0.075),
			"Spathiphyllum spp.":      profile("18-26", band("> 60", "< 35", "35-60"), 1.5, 0.75, 0.45, 0.22),
			"Chlorophytum comosum":    profile("18-24", band("> 55", "< 30", "30-55"), 1, 0.5, 0.30, 0.15),
			"Zamioculcas zamiifolia":  profile("15-24", band("> 35", "< 15", "15-35"), 0.5, 0.25, 0.15, 0.075),
			"Aloe vera":               profile("15-26", band("> 40", "< 15", "15-40"), 0.5, 0.25, 0.15, 0.075),
		},
	}
}

type soilBands struct{ wet, dry, mid string }

func band(wet, dry, mid string) soilBands { return soilBands{wet: wet, dry: dry, mid: mid} }

// profile builds the three-rule table every default plant shares: no water
// when wet, a full watering when dry, a light one in between. Air comfort
// ranges are carried on every rule for observability.
func profile(tempRange string, soil soilBands, waterMin, lightMin, waterVol, lightVol float64) model.PlantProfile {
	temp := model.ParseCondition(tempRange)
	hum := model.ParseCondition("40-60")
	return model.PlantProfile{
		{
			Soil:           model.ParseCondition(soil.wet),
			AirTemperature: temp,
			AirHumidity:    hum,
			Action:         model.ActionNoWater,
		},
		{
			Soil:            model.ParseCondition(soil.dry),
			AirTemperature:  temp,
			AirHumidity:     hum,
			Action:          model.ActionWater,
			DurationMinutes: waterMin,
			WaterVolumeL:    waterVol,
		},
		{
			Soil:            model.ParseCondition(soil.mid),
			AirTemperature:  temp,
			AirHumidity:     hum,
			Action:          model.ActionLightWater,
			DurationMinutes: lightMin,
			WaterVolumeL:    lightVol,
		},
	}
}
