package cmd

import (
	"log/slog"
	"os"
	"time"

	"github.com/clambin/go-common/charmer"
	"github.com/clambin/zoned/internal/cmd/config"
	"github.com/clambin/zoned/internal/cmd/monitor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "zoned",
		Short: "Zone climate controller for zigbee2mqtt thermostats",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			charmer.SetJSONLogger(cmd, viper.GetBool("debug"))
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	RootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")
	_ = viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))

	RootCmd.AddCommand(&monitor.Cmd, &config.Cmd)
}

var args = charmer.Arguments{
	"debug":         charmer.Argument{Default: false, Help: "Log debug messages"},
	"mqtt.broker":   charmer.Argument{Default: "tcp://localhost:1883", Help: "MQTT broker URL"},
	"mqtt.clientId": charmer.Argument{Default: "zoned", Help: "MQTT client id"},
	"mqtt.username": charmer.Argument{Default: "", Help: "MQTT username"},
	"mqtt.password": charmer.Argument{Default: "", Help: "MQTT password"},
	"mqtt.topic":    charmer.Argument{Default: "zigbee2mqtt", Help: "zigbee2mqtt base topic"},
	"poller.warmup": charmer.Argument{Default: 30 * time.Second, Help: "Warm-up period before the first device snapshot"},
	"database.path": charmer.Argument{Default: "zoned.db", Help: "Path of the state database"},
	"exporter.addr": charmer.Argument{Default: ":9090", Help: "Address of Prometheus exporter"},
	"health.addr":   charmer.Argument{Default: ":8080", Help: "Address of /health endpoint"},
	"slack.token":   charmer.Argument{Default: "", Help: "Slack bot token"},
	"slack.bot":     charmer.Argument{Default: true, Help: "Run the Slack command bot"},
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/zoned/")
		viper.AddConfigPath("$HOME/.zoned")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	if err := charmer.SetDefaults(viper.GetViper(), args); err != nil {
		panic("failed to set viper defaults: " + err.Error())
	}

	viper.SetEnvPrefix("ZONED")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		slog.Error("failed to read config file", "err", err)
		os.Exit(1)
	}
}
