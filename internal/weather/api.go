package weather

import "garden_irrigation/internal/models"

type apiCondition struct {
	Text string `json:"text"`
	Code int    `json:"code"`
}

type apiResponse struct {
	Location struct {
		Name    string  `json:"name"`
		Region  string  `json:"region"`
		Country string  `json:"country"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	} `json:"location"`
	Current struct {
		TempC     *float64     `json:"temp_c"`
		Humidity  *float64     `json:"humidity"`
		WindKph   *float64     `json:"wind_kph"`
		Cloud     *float64     `json:"cloud"`
		UV        *float64     `json:"uv"`
		PrecipMM  *float64     `json:"precip_mm"`
		Condition apiCondition `json:"condition"`
	} `json:"current"`
	Forecast struct {
		Forecastday []struct {
			Date string `json:"date"`
			Day  struct {
				MaxtempC          *float64     `json:"maxtemp_c"`
				MintempC          *float64     `json:"mintemp_c"`
				AvgtempC          *float64     `json:"avgtemp_c"`
				MaxwindKph        *float64     `json:"maxwind_kph"`
				TotalprecipMM     float64      `json:"totalprecip_mm"`
				Avghumidity       *float64     `json:"avghumidity"`
				DailyChanceOfRain *int         `json:"daily_chance_of_rain"`
				UV                *float64     `json:"uv"`
				Condition         apiCondition `json:"condition"`
			} `json:"day"`
			Astro struct {
				Sunrise   string `json:"sunrise"`
				Sunset    string `json:"sunset"`
				MoonPhase string `json:"moon_phase"`
			} `json:"astro"`
		} `json:"forecastday"`
	} `json:"forecast"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r apiResponse) toForecast() Forecast {
	loc := r.Location.Name
	if r.Location.Region != "" {
		loc += ", " + r.Location.Region
	}
	f := Forecast{
		Location: loc,
		Current: Current{
			CurrentConditions: models.CurrentConditions{
				TempC:    r.Current.TempC,
				Humidity: r.Current.Humidity,
				WindKph:  r.Current.WindKph,
				CloudPct: r.Current.Cloud,
				UV:       r.Current.UV,
			},
			PrecipMM:      r.Current.PrecipMM,
			Condition:     r.Current.Condition.Text,
			ConditionCode: r.Current.Condition.Code,
		},
		Days: make([]Day, 0, len(r.Forecast.Forecastday)),
	}
	for _, fd := range r.Forecast.Forecastday {
		f.Days = append(f.Days, Day{
			Date:          fd.Date,
			Condition:     fd.Day.Condition.Text,
			ConditionCode: fd.Day.Condition.Code,
			MaxTempC:      fd.Day.MaxtempC,
			MinTempC:      fd.Day.MintempC,
			AvgTempC:      fd.Day.AvgtempC,
			MaxWindKph:    fd.Day.MaxwindKph,
			TotalPrecipMM: fd.Day.TotalprecipMM,
			AvgHumidity:   fd.Day.Avghumidity,
			ChanceOfRain:  fd.Day.DailyChanceOfRain,
			UV:            fd.Day.UV,
			Sunrise:       fd.Astro.Sunrise,
			Sunset:        fd.Astro.Sunset,
			MoonPhase:     fd.Astro.MoonPhase,
		})
	}
	return f
}
