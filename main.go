package main

import (
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/anicoll/vevor-integration/cmd"
)

func main() {
	app := &cli.App{
		Name:   "vevor-bridge",
		Usage:  "polls a vevor inverter over modbus and publishes it to home assistant",
		Action: cmd.BridgeCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "modbus-port",
				Usage:   "serial device, or tcp://host:port for a modbus tcp gateway",
				EnvVars: []string{"MODBUS_PORT"},
				Value:   "/dev/ttyMoschip",
			},
			&cli.IntFlag{
				Name:    "slave",
				EnvVars: []string{"MODBUS_SLAVE"},
				Value:   1,
			},
			&cli.IntFlag{
				Name:    "baud-rate",
				EnvVars: []string{"MODBUS_BAUD_RATE"},
				Value:   9600,
			},
			&cli.DurationFlag{
				Name:    "modbus-timeout",
				EnvVars: []string{"MODBUS_TIMEOUT"},
				Value:   time.Second,
			},
			&cli.StringFlag{
				Name:    "mqtt-host",
				EnvVars: []string{"MQTT_HOST"},
				Value:   "localhost",
			},
			&cli.IntFlag{
				Name:    "mqtt-port",
				EnvVars: []string{"MQTT_PORT"},
				Value:   1883,
			},
			&cli.StringFlag{
				Name:    "mqtt-user",
				EnvVars: []string{"MQTT_USER"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "mqtt-pass",
				EnvVars: []string{"MQTT_PASS"},
				Value:   "",
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				EnvVars: []string{"POLL_INTERVAL"},
				Value:   10 * time.Second,
			},
			&cli.StringFlag{
				Name:    "register-map",
				Usage:   "yaml register map replacing the built-in one",
				EnvVars: []string{"REGISTER_MAP"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "postgres url; history is disabled when empty",
				EnvVars: []string{"DATABASE_URL"},
				Value:   "",
			},
			&cli.StringFlag{
				Name:    "migrations-folder",
				EnvVars: []string{"MIGRATIONS_FOLDER"},
				Value:   "migrations",
			},
			&cli.IntFlag{
				Name:    "retention-days",
				EnvVars: []string{"RETENTION_DAYS"},
				Value:   8,
			},
			&cli.StringFlag{
				Name:    "http-addr",
				Usage:   "status server address; disabled when empty",
				EnvVars: []string{"HTTP_ADDR"},
				Value:   ":8000",
			},
			&cli.StringFlag{
				Name:    "log-level",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "INFO",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
