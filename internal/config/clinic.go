package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // clinic time zones must resolve on hosts without zoneinfo

	"receptionist/internal/schedule"

	"gopkg.in/yaml.v3"
)

// DoctorConfig describes the practitioner.
type DoctorConfig struct {
	Name      string `yaml:"name"`
	Specialty string `yaml:"specialty"`
	Fee       int    `yaml:"fee"`
}

// BranchConfig lists the operating days of one branch.
type BranchConfig struct {
	Name string   `yaml:"name"`
	Days []string `yaml:"days"` // "Monday" or "Mon"
}

// ClinicConfig is the root configuration for clinic.yaml.
type ClinicConfig struct {
	Timezone               string         `yaml:"timezone"`
	Doctor                 DoctorConfig   `yaml:"doctor"`
	Branches               []BranchConfig `yaml:"branches"`
	Slots                  []string       `yaml:"slots"` // "10-11"; empty means all
	FirstAppointmentNumber int            `yaml:"first_appointment_number"`
}

// DefaultClinicConfig returns the reference clinic: Sialkot Monday to
// Wednesday, Lahore Thursday to Saturday, every slot, Sunday closed.
func DefaultClinicConfig() *ClinicConfig {
	cfg := &ClinicConfig{
		Doctor: DoctorConfig{Name: "Dr. Sarah Khan", Specialty: "Cardiologist", Fee: 2500},
		Branches: []BranchConfig{
			{Name: "Sialkot", Days: []string{"Monday", "Tuesday", "Wednesday"}},
			{Name: "Lahore", Days: []string{"Thursday", "Friday", "Saturday"}},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadClinicConfig loads and validates clinic configuration from YAML file.
func LoadClinicConfig(path string) (*ClinicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read clinic config: %w", err)
	}

	var cfg ClinicConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse clinic config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate clinic config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *ClinicConfig) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if c.Doctor.Name == "" {
		return fmt.Errorf("doctor.name is required")
	}
	if c.Doctor.Fee < 0 {
		return fmt.Errorf("doctor.fee cannot be negative")
	}
	if c.FirstAppointmentNumber <= 0 {
		return fmt.Errorf("first_appointment_number must be positive")
	}
	if len(c.Branches) == 0 {
		return fmt.Errorf("no branches defined")
	}

	for i, b := range c.Branches {
		if _, err := schedule.ParseBranch(b.Name); err != nil {
			return fmt.Errorf("branches[%d]: %w", i, err)
		}
		if len(b.Days) == 0 {
			return fmt.Errorf("branches[%d]: at least one day is required", i)
		}
		for j, d := range b.Days {
			if _, err := schedule.ParseDay(d); err != nil {
				return fmt.Errorf("branches[%d].days[%d]: %w", i, j, err)
			}
		}
	}

	for i, s := range c.Slots {
		if _, err := schedule.ParseSlot(s); err != nil {
			return fmt.Errorf("slots[%d]: %w", i, err)
		}
	}

	// Duplicates and missing branches are reported by the catalog.
	if _, err := c.Catalog(); err != nil {
		return err
	}
	return nil
}

func (c *ClinicConfig) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Asia/Karachi"
	}
	if c.FirstAppointmentNumber == 0 {
		c.FirstAppointmentNumber = 1001
	}
	if len(c.Slots) == 0 {
		for _, s := range schedule.Slots() {
			c.Slots = append(c.Slots, s.String())
		}
	}
}

// Catalog builds the schedule catalog described by the config.
func (c *ClinicConfig) Catalog() (*schedule.Catalog, error) {
	hours := make([]schedule.BranchHours, 0, len(c.Branches))
	for _, b := range c.Branches {
		branch, err := schedule.ParseBranch(b.Name)
		if err != nil {
			return nil, err
		}
		days := make([]schedule.Day, 0, len(b.Days))
		for _, name := range b.Days {
			d, err := schedule.ParseDay(name)
			if err != nil {
				return nil, err
			}
			days = append(days, d)
		}
		hours = append(hours, schedule.BranchHours{Branch: branch, Days: days})
	}

	slots := make([]schedule.Slot, 0, len(c.Slots))
	for _, name := range c.Slots {
		s, err := schedule.ParseSlot(name)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}

	return schedule.NewCatalog(hours, slots)
}

// Location returns the clinic time zone.
func (c *ClinicConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// String returns a summary of the configuration.
func (c *ClinicConfig) String() string {
	return fmt.Sprintf("ClinicConfig: %d branches, %d slots, tz %s", len(c.Branches), len(c.Slots), c.Timezone)
}
