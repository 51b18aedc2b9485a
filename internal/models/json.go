package models

import (
	"encoding/json"
	"math"
	"time"
)

// Float число, которое кодируется в JSON как null, если оно не конечно.
// null при разборе становится NaN.
type Float float64

// MarshalJSON кодирует NaN и бесконечности как null
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON разбирает число или null
func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

type sensorSampleJSON struct {
	Timestamp     time.Time `json:"timestamp"`
	RawTimestamp  string    `json:"raw_timestamp"`
	MachineID     string    `json:"machine_id"`
	Voltage       Float     `json:"voltage"`
	RotationSpeed Float     `json:"rotation_speed"`
	Pressure      Float     `json:"pressure"`
	Vibration     Float     `json:"vibration"`
	ModelVariant  string    `json:"model_variant"`
}

func (s SensorSample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sensorSampleJSON{
		Timestamp:     s.Timestamp,
		RawTimestamp:  s.RawTimestamp,
		MachineID:     s.MachineID,
		Voltage:       Float(s.Voltage),
		RotationSpeed: Float(s.RotationSpeed),
		Pressure:      Float(s.Pressure),
		Vibration:     Float(s.Vibration),
		ModelVariant:  s.ModelVariant,
	})
}

func (s *SensorSample) UnmarshalJSON(data []byte) error {
	var w sensorSampleJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = SensorSample{
		Timestamp:     w.Timestamp,
		RawTimestamp:  w.RawTimestamp,
		MachineID:     w.MachineID,
		Voltage:       float64(w.Voltage),
		RotationSpeed: float64(w.RotationSpeed),
		Pressure:      float64(w.Pressure),
		Vibration:     float64(w.Vibration),
		ModelVariant:  w.ModelVariant,
	}
	return nil
}

type fleetStatsJSON struct {
	AvgTempCurrent Float        `json:"avg_temp_current"`
	AvgTempPrev    Float        `json:"avg_temp_prev"`
	TempTrendPct   Float        `json:"temp_trend_pct"`
	CriticalCount  int          `json:"critical_count"`
	HealthyScore   Float        `json:"healthy_score"`
	MachineCount   int          `json:"machine_count"`
	StatusCounts   StatusCounts `json:"status_counts"`
}

func (s FleetStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(fleetStatsJSON{
		AvgTempCurrent: Float(s.AvgTempCurrent),
		AvgTempPrev:    Float(s.AvgTempPrev),
		TempTrendPct:   Float(s.TempTrendPct),
		CriticalCount:  s.CriticalCount,
		HealthyScore:   Float(s.HealthyScore),
		MachineCount:   s.MachineCount,
		StatusCounts:   s.StatusCounts,
	})
}

func (s *FleetStats) UnmarshalJSON(data []byte) error {
	var w fleetStatsJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = FleetStats{
		AvgTempCurrent: float64(w.AvgTempCurrent),
		AvgTempPrev:    float64(w.AvgTempPrev),
		TempTrendPct:   float64(w.TempTrendPct),
		CriticalCount:  w.CriticalCount,
		HealthyScore:   float64(w.HealthyScore),
		MachineCount:   w.MachineCount,
		StatusCounts:   w.StatusCounts,
	}
	return nil
}

type chartPointJSON struct {
	Time time.Time `json:"time"`
	Temp Float     `json:"temp"`
	RPM  Float     `json:"rpm"`
}

func (p ChartPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(chartPointJSON{Time: p.Time, Temp: Float(p.Temp), RPM: Float(p.RPM)})
}

func (p *ChartPoint) UnmarshalJSON(data []byte) error {
	var w chartPointJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = ChartPoint{Time: w.Time, Temp: float64(w.Temp), RPM: float64(w.RPM)}
	return nil
}
