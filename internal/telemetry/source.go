package telemetry

import (
	"time"

	"github.com/terminal-bench/gridpulse/internal/entropy"
	"github.com/terminal-bench/gridpulse/pkg/models"
)

// Source supplies one reading per transformer per evaluation tick.
type Source interface {
	Reading(societyID, transformerID string, hour int) models.EnergyReading
}

// Historian replays the last day of readings for a society.
type Historian interface {
	DayHistory(societyID string) []models.EnergyReading
}

// Binder is implemented by sources that can take their jitter from a given
// entropy stream instead of their own.
type Binder interface {
	Bind(src entropy.Source) Source
}

type hourSample struct {
	loadKw float64
	tempC  float64
	ev     bool
}

// dayProfile is the reference transformer load for each hour of the day.
var dayProfile = [24]hourSample{
	{84.34, 24.2, false}, {85.46, 25.0, false}, {135.31, 27.2, true}, {150.52, 30.2, true},
	{128.23, 30.9, true}, {93.29, 31.5, false}, {126.71, 31.0, false}, {114.71, 28.0, false},
	{120.03, 32.4, false}, {150.82, 31.4, true}, {117.38, 26.8, false}, {117.94, 26.0, false},
	{148.25, 31.0, false}, {143.94, 20.9, true}, {163.68, 32.2, false}, {123.37, 27.7, false},
	{125.79, 27.5, false}, {158.39, 32.2, true}, {212.51, 22.0, false}, {241.48, 33.0, false},
	{270.00, 22.1, true}, {193.08, 25.0, false}, {64.87, 25.1, false}, {134.09, 31.9, true},
}

// ProfileLoad returns the reference load for an hour, wrapping into 0..23.
func ProfileLoad(hour int) float64 {
	return dayProfile[wrapHour(hour)].loadKw
}

// ProfileSource jitters the reference day profile.
type ProfileSource struct {
	src        entropy.Source
	now        func() time.Time
	loadJitter float64
	tempJitter float64
	evChance   float64
}

// NewProfileSource creates a source with ±20% load and ±10% temperature jitter.
func NewProfileSource(src entropy.Source, now func() time.Time) *ProfileSource {
	if now == nil {
		now = time.Now
	}
	return &ProfileSource{src: src, now: now, loadJitter: 0.2, tempJitter: 0.1, evChance: 0.4}
}

// Bind returns a copy of p drawing from src.
func (p *ProfileSource) Bind(src entropy.Source) Source {
	cp := *p
	cp.src = src
	return &cp
}

// Reading draws load jitter, temperature jitter and EV state, in that order.
func (p *ProfileSource) Reading(societyID, transformerID string, hour int) models.EnergyReading {
	h := wrapHour(hour)
	base := dayProfile[h]
	return models.EnergyReading{
		Timestamp:     p.now(),
		Hour:          h,
		LoadKw:        p.jitter(base.loadKw, p.loadJitter),
		TemperatureC:  p.jitter(base.tempC, p.tempJitter),
		EVCharging:    p.src.Uniform(0, 1) < p.evChance,
		SocietyID:     societyID,
		TransformerID: transformerID,
	}
}

// DayHistory returns the 24 hourly readings ending at the current hour, with ±10%
// load jitter, for the first transformer of a society.
func (p *ProfileSource) DayHistory(societyID string) []models.EnergyReading {
	now := p.now()
	out := make([]models.EnergyReading, 24)
	for i := range out {
		base := dayProfile[i]
		out[i] = models.EnergyReading{
			Timestamp:     now.Add(-time.Duration(23-i) * time.Hour),
			Hour:          i,
			LoadKw:        p.jitter(base.loadKw, 0.1),
			TemperatureC:  base.tempC,
			EVCharging:    base.ev,
			SocietyID:     societyID,
			TransformerID: societyID + "-t1",
		}
	}
	return out
}

func (p *ProfileSource) jitter(v, pct float64) float64 {
	return v * (1 + p.src.Uniform(-pct, pct))
}

func wrapHour(h int) int {
	h %= 24
	if h < 0 {
		h += 24
	}
	return h
}
