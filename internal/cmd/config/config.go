// Package config implements the "zoned config" command: it loads the
// controllers file, applies defaults and validation, and prints the
// normalized result, so a broken configuration is caught before the monitor
// picks it up.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/clambin/zoned/internal/configuration"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var Cmd = cobra.Command{
	Use:   "config",
	Short: "Validates and shows the controller configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := filepath.Join(filepath.Dir(viper.ConfigFileUsed()), "controllers.yaml")
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("controllers: %w", err)
		}
		defer func(f *os.File) {
			_ = f.Close()
		}(f)

		e := yaml.NewEncoder(cmd.OutOrStdout())
		defer func(e *yaml.Encoder) {
			_ = e.Close()
		}(e)
		return ShowConfig(f, e)
	},
}

type Encoder interface {
	Encode(any) error
}

type controllerEntry struct {
	Name           string      `yaml:"name"`
	Thermostat     string      `yaml:"thermostat"`
	ContactSensors int         `yaml:"contactSensors"`
	MinimumVents   int         `yaml:"minimumVentsOpen"`
	Rooms          []roomEntry `yaml:"rooms"`
}

type roomEntry struct {
	Name               string  `yaml:"name"`
	HeatTarget         float64 `yaml:"heatTarget"`
	CoolTarget         float64 `yaml:"coolTarget"`
	OccupancySensors   int     `yaml:"occupancySensors"`
	TemperatureSensors int     `yaml:"temperatureSensors"`
	Vents              int     `yaml:"vents"`
}

// ShowConfig parses the controllers file from r and writes a summary of the
// normalized configuration to e.
func ShowConfig(r io.Reader, e Encoder) error {
	cfg, err := configuration.Load(r)
	if err != nil {
		return err
	}

	entries := make([]controllerEntry, 0, len(cfg.Controllers))
	for _, c := range cfg.Controllers {
		entry := controllerEntry{
			Name:           c.Name,
			Thermostat:     c.Thermostat,
			ContactSensors: len(c.ContactSensors),
			MinimumVents:   *c.Vents.MinimumOpen,
			Rooms:          make([]roomEntry, 0, len(c.Rooms)),
		}
		for _, room := range c.Rooms {
			entry.Rooms = append(entry.Rooms, roomEntry{
				Name:               room.Name,
				HeatTarget:         room.HeatTarget,
				CoolTarget:         room.CoolTarget,
				OccupancySensors:   len(room.OccupancySensors),
				TemperatureSensors: len(room.TemperatureSensors),
				Vents:              len(room.Vents),
			})
		}
		entries = append(entries, entry)
	}

	return e.Encode(entries)
}
