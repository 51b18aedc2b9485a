// Package models содержит структуры данных для сенсорных показаний, окон признаков и статистики парка
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// WindowSize длина окна признаков (временных шагов), на которой обучена модель
	WindowSize = 30
	// FeatureCount количество признаков на шаг: pressure, rotationSpeed, vibration, voltage
	FeatureCount = 4
)

// SensorSample одно показание датчиков станка
// JSON-представление задано в json.go.
type SensorSample struct {
	Timestamp     time.Time
	RawTimestamp  string
	MachineID     string
	Voltage       float64
	RotationSpeed float64
	Pressure      float64
	Vibration     float64
	ModelVariant  string
}

// Features возвращает вектор признаков в порядке обучения модели
func (s SensorSample) Features() FeatureVector {
	return FeatureVector{s.Pressure, s.RotationSpeed, s.Vibration, s.Voltage}
}

// FeatureVector вектор признаков одного временного шага
type FeatureVector [FeatureCount]float64

// FeatureWindow окно фиксированной длины, подаваемое на вход модели ([1, 30, 4])
type FeatureWindow [WindowSize]FeatureVector

// MachineHistory показания, сгруппированные по станкам.
// Порядок станков совпадает с порядком их первого появления во входных данных.
type MachineHistory struct {
	order   []string
	samples map[string][]SensorSample
}

// NewMachineHistory создает пустую историю
func NewMachineHistory() *MachineHistory {
	return &MachineHistory{samples: make(map[string][]SensorSample)}
}

// Add добавляет показание в историю станка
func (h *MachineHistory) Add(s SensorSample) {
	if _, ok := h.samples[s.MachineID]; !ok {
		h.order = append(h.order, s.MachineID)
	}
	h.samples[s.MachineID] = append(h.samples[s.MachineID], s)
}

// Machines возвращает идентификаторы станков в порядке группировки
func (h *MachineHistory) Machines() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Samples возвращает показания станка в порядке поступления
func (h *MachineHistory) Samples(machineID string) []SensorSample {
	return h.samples[machineID]
}

// Len возвращает количество станков
func (h *MachineHistory) Len() int {
	return len(h.order)
}

// SampleCount возвращает общее количество показаний
func (h *MachineHistory) SampleCount() int {
	n := 0
	for _, s := range h.samples {
		n += len(s)
	}
	return n
}

// RiskScore риск отказа в процентах [0, 100]
type RiskScore int

// Status операционный статус станка
type Status int

const (
	// StatusNormal риск не выше 30
	StatusNormal Status = iota
	// StatusWarning риск в диапазоне (30, 60]
	StatusWarning
	// StatusCritical риск выше 60
	StatusCritical
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "Normal"
	case StatusWarning:
		return "Warning"
	case StatusCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// ParseStatus разбирает строковое представление статуса
func ParseStatus(v string) (Status, bool) {
	switch v {
	case "Normal":
		return StatusNormal, true
	case "Warning":
		return StatusWarning, true
	case "Critical":
		return StatusCritical, true
	}
	return StatusNormal, false
}

// MarshalJSON сериализует статус строкой
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON разбирает статус из строки
func (s *Status) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	st, ok := ParseStatus(v)
	if !ok {
		return fmt.Errorf("unknown status %q", v)
	}
	*s = st
	return nil
}

// MachineSnapshot состояние станка по итогам одного прогона
type MachineSnapshot struct {
	MachineID string        `json:"machine_id"`
	Latest    SensorSample  `json:"latest"`
	Previous  *SensorSample `json:"previous,omitempty"`
	Risk      RiskScore     `json:"risk"`
	Status    Status        `json:"status"`
	Fallback  bool          `json:"fallback"`
}

// StatusCounts количество станков по статусам
type StatusCounts struct {
	Normal   int `json:"normal"`
	Warning  int `json:"warning"`
	Critical int `json:"critical"`
}

// FleetStats агрегированная статистика по парку за один прогон
type FleetStats struct {
	AvgTempCurrent float64
	AvgTempPrev    float64
	TempTrendPct   float64
	CriticalCount  int
	HealthyScore   float64
	MachineCount   int
	StatusCounts   StatusCounts
}

// ChartPoint точка графика истории станка
type ChartPoint struct {
	Time time.Time
	Temp float64
	RPM  float64
}

// Report результат одного прогона конвейера
type Report struct {
	RunID            string                  `json:"run_id"`
	Source           string                  `json:"source"`
	StartedAt        time.Time               `json:"started_at"`
	FinishedAt       time.Time               `json:"finished_at"`
	Machines         []MachineSnapshot       `json:"machines"`
	HistoryByMachine map[string][]ChartPoint `json:"history_by_machine"`
	Stats            FleetStats              `json:"stats"`
	FallbackCount    int                     `json:"fallback_count"`
}

// Machine возвращает снимок станка по идентификатору
func (r *Report) Machine(id string) (MachineSnapshot, bool) {
	for _, m := range r.Machines {
		if m.MachineID == id {
			return m, true
		}
	}
	return MachineSnapshot{}, false
}

// HealthStatus представляет статус здоровья сервиса
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Redis     string    `json:"redis"`
	Model     string    `json:"model"`
	Uptime    string    `json:"uptime"`
}
