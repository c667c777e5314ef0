package config_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/clambin/zoned/internal/cmd/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testControllers = `controllers:
  - name: home
    thermostat: thermostat.main
    contactSensors:
      - id: door.front
    rooms:
      - name: bedroom
        occupancySensors: [ motion.bedroom ]
        temperatureSensors: [ climate.bedroom ]
        vents:
          - id: vent.bedroom
`

func TestShowConfig(t *testing.T) {
	var out bytes.Buffer
	e1 := yaml.NewEncoder(&out)
	err := config.ShowConfig(strings.NewReader(testControllers), e1)
	require.NoError(t, err)
	assert.Equal(t, `- name: home
  thermostat: thermostat.main
  contactSensors: 1
  minimumVentsOpen: 1
  rooms:
      - name: bedroom
        heatTarget: 21.5
        coolTarget: 25.5
        occupancySensors: 1
        temperatureSensors: 1
        vents: 1
`, out.String())

	out.Reset()
	e2 := json.NewEncoder(&out)
	err = config.ShowConfig(strings.NewReader(testControllers), e2)
	require.NoError(t, err)
	assert.Equal(t, `[{"Name":"home","Thermostat":"thermostat.main","ContactSensors":1,"MinimumVents":1,"Rooms":[{"Name":"bedroom","HeatTarget":21.5,"CoolTarget":25.5,"OccupancySensors":1,"TemperatureSensors":1,"Vents":1}]}]
`, out.String())
}

func TestShowConfig_Invalid(t *testing.T) {
	var out bytes.Buffer
	err := config.ShowConfig(strings.NewReader(`controllers: [ { name: home } ]`), yaml.NewEncoder(&out))
	assert.Error(t, err)
	assert.Empty(t, out.String())
}
