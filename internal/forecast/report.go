// Package forecast fetches hourly temperatures from an Open-Meteo style API
// and renders them grouped by calendar day.
package forecast

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// TimeLayout is the local-time format of hourly.time entries.
const TimeLayout = "2006-01-02T15:04"

var (
	ErrInvalidUnit     = errors.New("invalid temperature unit")
	ErrInvalidResponse = errors.New("invalid forecast response")
)

type Unit string

const (
	Fahrenheit Unit = "fahrenheit"
	Celsius    Unit = "celsius"
)

// ParseUnit accepts F, C, fahrenheit or celsius in any case.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "fahrenheit":
		return Fahrenheit, nil
	case "c", "celsius":
		return Celsius, nil
	default:
		return "", fmt.Errorf("%w: %q, want F or C", ErrInvalidUnit, s)
	}
}

// Title returns "Fahrenheit" or "Celsius".
func (u Unit) Title() string {
	if u == Celsius {
		return "Celsius"
	}
	return "Fahrenheit"
}

// Symbol returns the suffix printed after each temperature.
func (u Unit) Symbol() string {
	if u == Celsius {
		return "°C"
	}
	return "°F"
}

// Response is the subset of the API payload that is read.
type Response struct {
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Timezone    string      `json:"timezone"`
	HourlyUnits HourlyUnits `json:"hourly_units"`
	Hourly      Hourly      `json:"hourly"`
}

type HourlyUnits struct {
	Time        string `json:"time"`
	Temperature string `json:"temperature_2m"`
}

// Hourly holds parallel arrays. Missing temperatures decode as nil.
type Hourly struct {
	Time        []string   `json:"time"`
	Temperature []*float64 `json:"temperature_2m"`
}

type Reading struct {
	Time time.Time
	// Temperature is nil when the API has no value for the hour.
	Temperature *float64
}

type Day struct {
	Date     string
	Readings []Reading
}

type Report struct {
	Location string
	Days     int
	Unit     Unit
	// Symbol overrides Unit.Symbol when the API reports its own unit label.
	Symbol string
	Daily  []Day
}

// BuildReport samples every every-th hour starting with the first and groups
// the samples by calendar day in the order they first appear.
func BuildReport(resp Response, location string, days int, unit Unit, every int) (Report, error) {
	if every < 1 {
		return Report{}, fmt.Errorf("%w: sampling interval %d must be at least 1", ErrInvalidResponse, every)
	}
	if len(resp.Hourly.Time) != len(resp.Hourly.Temperature) {
		return Report{}, fmt.Errorf("%w: %d times but %d temperatures",
			ErrInvalidResponse, len(resp.Hourly.Time), len(resp.Hourly.Temperature))
	}

	report := Report{
		Location: location,
		Days:     days,
		Unit:     unit,
		Symbol:   strings.TrimSpace(resp.HourlyUnits.Temperature),
	}

	index := make(map[string]int)
	for i := 0; i < len(resp.Hourly.Time); i += every {
		ts, err := time.Parse(TimeLayout, resp.Hourly.Time[i])
		if err != nil {
			return Report{}, fmt.Errorf("%w: time[%d] %q: %v", ErrInvalidResponse, i, resp.Hourly.Time[i], err)
		}

		key := ts.Format(time.DateOnly)
		pos, ok := index[key]
		if !ok {
			pos = len(report.Daily)
			index[key] = pos
			report.Daily = append(report.Daily, Day{Date: key})
		}
		report.Daily[pos].Readings = append(report.Daily[pos].Readings, Reading{
			Time:        ts,
			Temperature: resp.Hourly.Temperature[i],
		})
	}
	return report, nil
}

// Render writes the report as plain text:
//
//	Bloomington 7-Day Forecast in Fahrenheit:
//	Forecast for 2024-05-01:
//	00:00: 61.3°F
func Render(w io.Writer, r Report) error {
	symbol := r.Symbol
	if symbol == "" {
		symbol = r.Unit.Symbol()
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s %d-Day Forecast in %s:\n", r.Location, r.Days, r.Unit.Title())
	for _, day := range r.Daily {
		fmt.Fprintf(bw, "Forecast for %s:\n", day.Date)
		for _, reading := range day.Readings {
			if reading.Temperature == nil {
				fmt.Fprintf(bw, "%s: n/a\n", reading.Time.Format("15:04"))
				continue
			}
			fmt.Fprintf(bw, "%s: %.1f%s\n", reading.Time.Format("15:04"), *reading.Temperature, symbol)
		}
	}
	return bw.Flush()
}
