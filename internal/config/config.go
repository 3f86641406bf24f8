// Package config loads a node's deployment configuration from YAML,
// the way samoyed's cmd/samoyed-appserver loads its config — a thin
// struct plus gopkg.in/yaml.v3, validated by hand rather than through a
// struct-tag validation library.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mbor/blink/internal/blink"
	"github.com/mbor/blink/internal/radio"
	"github.com/mbor/blink/internal/timing"
)

// Modulation is the YAML-friendly spelling of a timing.ParamSet: names
// instead of the packed bitfield, so config files stay readable.
type Modulation struct {
	SpreadingFactor string `yaml:"spreading_factor"`
	Bandwidth       string `yaml:"bandwidth"`
	CodingRate      string `yaml:"coding_rate"`
	ImplicitHeader  bool   `yaml:"implicit_header"`
	NoCRC           bool   `yaml:"no_crc"`
}

func (m Modulation) paramSet() (timing.ParamSet, error) {
	if m.SpreadingFactor == "" {
		return timing.DefaultParamSet, nil
	}
	var sf, sfOK = sfNames[m.SpreadingFactor]
	if !sfOK {
		return 0, fmt.Errorf("config: unknown spreading_factor %q", m.SpreadingFactor)
	}
	var bw, bwOK = bwNames[m.Bandwidth]
	if !bwOK {
		return 0, fmt.Errorf("config: unknown bandwidth %q", m.Bandwidth)
	}
	var cr, crOK = crNames[m.CodingRate]
	if !crOK {
		return 0, fmt.Errorf("config: unknown coding_rate %q", m.CodingRate)
	}
	return timing.MakeParamSet(sf, bw, cr, m.ImplicitHeader, m.NoCRC), nil
}

var sfNames = map[string]timing.SpreadingFactor{
	"fsk": timing.FSK, "sf7": timing.SF7, "sf8": timing.SF8, "sf9": timing.SF9,
	"sf10": timing.SF10, "sf11": timing.SF11, "sf12": timing.SF12,
}

var bwNames = map[string]timing.Bandwidth{
	"125": timing.BW125, "250": timing.BW250, "500": timing.BW500,
}

var crNames = map[string]timing.CodingRate{
	"4/5": timing.CR4_5, "4/6": timing.CR4_6, "4/7": timing.CR4_7, "4/8": timing.CR4_8,
}

// Timing mirrors the epoch/slot constants of blink.Config, as plain
// YAML fields.
type Timing struct {
	TimeSlotMillis   int `yaml:"time_slot_ms"`
	TimeSlots        int `yaml:"time_slots"`
	BeaconSlots      int `yaml:"beacon_slots"`
	MaxBeaconHops    int `yaml:"max_beacon_hops"`
	MaxDataHops      int `yaml:"max_data_hops"`
	MaxPayloadLen    int `yaml:"max_payload_len"`
	MaxMissedBeacons int `yaml:"max_missed_beacons"`
	MaxDriftMillis   int `yaml:"max_drift_ms"`
}

// RadioBackend selects which radio.Radio implementation the node uses.
type RadioBackend struct {
	Kind string `yaml:"kind"` // "sim" or "linux-gpio"

	Chip       string `yaml:"gpio_chip"`
	ResetLine  int    `yaml:"reset_line"`
	IRQLine    int    `yaml:"irq_line"`
	RigModel   int    `yaml:"rig_model"`
	RigDevGlob string `yaml:"rig_dev_glob"`
}

// Config is the top-level YAML document for one node.
type Config struct {
	NodeID     uint8        `yaml:"node_id"`
	Timing     Timing       `yaml:"timing"`
	Modulation Modulation   `yaml:"modulation"`
	UseCAD     bool         `yaml:"use_cad"`
	CADChecks  int          `yaml:"cad_checks"`
	Frequency  uint64       `yaml:"frequency_hz"`
	TXPowerDBm int          `yaml:"tx_power_dbm"`
	Radio      RadioBackend `yaml:"radio"`
	Advertise  bool         `yaml:"advertise"`
}

// Load reads and parses a node configuration file. It does not check the
// modulation names; BlinkConfig does that when converting the result.
func Load(path string) (Config, error) {
	var raw, err = os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg = Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the defaults a freshly-unmarshalled Config is seeded
// with, so a YAML file only needs to mention fields it overrides.
func Default() Config {
	var d = blink.DefaultConfig()
	return Config{
		Timing: Timing{
			TimeSlotMillis:   d.TimeSlotMillis,
			TimeSlots:        d.TimeSlots,
			BeaconSlots:      d.BeaconSlots,
			MaxBeaconHops:    int(d.MaxBeaconHops),
			MaxDataHops:      int(d.MaxDataHops),
			MaxPayloadLen:    d.MaxPayloadLen,
			MaxMissedBeacons: d.MaxMissedBeacons,
			MaxDriftMillis:   d.MaxDriftMillis,
		},
		UseCAD:     d.UseCAD,
		CADChecks:  d.CADChecks,
		Frequency:  d.Frequency,
		TXPowerDBm: d.TXPowerDBm,
		Radio:      RadioBackend{Kind: "sim"},
	}
}

// BlinkConfig converts the YAML document into a blink.Config.
func (c Config) BlinkConfig() (blink.Config, error) {
	var p, err = c.Modulation.paramSet()
	if err != nil {
		return blink.Config{}, err
	}
	return blink.Config{
		TimeSlotMillis:   c.Timing.TimeSlotMillis,
		TimeSlots:        c.Timing.TimeSlots,
		BeaconSlots:      c.Timing.BeaconSlots,
		MaxBeaconHops:    uint8(c.Timing.MaxBeaconHops),
		MaxDataHops:      uint8(c.Timing.MaxDataHops),
		MaxPayloadLen:    c.Timing.MaxPayloadLen,
		MaxMissedBeacons: c.Timing.MaxMissedBeacons,
		MaxDriftMillis:   c.Timing.MaxDriftMillis,
		CADChecks:        c.CADChecks,
		UseCAD:           c.UseCAD,
		ParamSet:         p,
		Frequency:        c.Frequency,
		TXPowerDBm:       c.TXPowerDBm,
	}, nil
}

// LinuxGPIOConfig converts the YAML radio block into a
// radio.LinuxGPIOConfig, for use when Radio.Kind == "linux-gpio".
func (c Config) LinuxGPIOConfig() radio.LinuxGPIOConfig {
	return radio.LinuxGPIOConfig{
		Chip:       c.Radio.Chip,
		ResetLine:  c.Radio.ResetLine,
		IRQLine:    c.Radio.IRQLine,
		RigModel:   c.Radio.RigModel,
		RigDevGlob: c.Radio.RigDevGlob,
		Frequency:  c.Frequency,
		TXPowerDBm: c.TXPowerDBm,
	}
}
