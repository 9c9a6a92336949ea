package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/thatsimonsguy/tesy-convector/db"
	"github.com/thatsimonsguy/tesy-convector/internal/convector"
	"github.com/thatsimonsguy/tesy-convector/internal/model"
	"github.com/thatsimonsguy/tesy-convector/internal/tesy"
	"github.com/thatsimonsguy/tesy-convector/system/startup"
)

func main() {
	DebugCLI()
}

func DebugCLI() {
	var dbPath, command, entityID, state, unit string
	var address, deviceModel, mode string
	var temp float64
	var window bool
	var unitPath, user, workdir, binary, configFile string
	flag.StringVar(&dbPath, "db", "data/tesy.db", "Path to the SQLite entity registry")
	flag.StringVar(&command, "cmd", "", "Command to run: set-entity-state, get-status, set-mode, set-temp, set-window, install-service")
	flag.StringVar(&entityID, "entity", "", "Entity ID for set-entity-state")
	flag.StringVar(&state, "state", "", "State value for set-entity-state")
	flag.StringVar(&unit, "unit", "", "Unit for set-entity-state")
	flag.StringVar(&address, "address", "", "Convector address for device commands")
	flag.StringVar(&deviceModel, "model", "", "Convector model")
	flag.StringVar(&mode, "mode", "", "HVAC mode for set-mode: heat, off, auto")
	flag.Float64Var(&temp, "temp", 0, "Target temperature for set-temp")
	flag.BoolVar(&window, "window", false, "Opened window status for set-window")
	flag.StringVar(&unitPath, "unit-path", "/etc/systemd/system/tesy-convector.service", "systemd unit path for install-service")
	flag.StringVar(&user, "user", "", "Service user for install-service")
	flag.StringVar(&workdir, "workdir", "", "Working directory for install-service")
	flag.StringVar(&binary, "binary", "/usr/local/bin/tesy-convector", "Adapter binary for install-service")
	flag.StringVar(&configFile, "config-file", "/etc/tesy-convector/config.json", "Adapter config file for install-service")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		fmt.Println("\nUsage of tesy-debug:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch command {
	case "set-entity-state":
		if entityID == "" || state == "" {
			fmt.Println("Error: entity and state are required")
			os.Exit(1)
		}
		err = db.SetEntityStateCLI(dbPath, entityID, state, unit)
	case "get-status":
		err = printStatus(ctx, deviceClient(address, deviceModel))
	case "set-mode":
		hvacMode := model.HVACMode(mode)
		if !hvacMode.Valid() {
			fmt.Println("Error: mode must be one of heat, off, auto")
			os.Exit(1)
		}
		var adapter *convector.Adapter
		adapter, err = refreshedAdapter(ctx, deviceClient(address, deviceModel))
		if err == nil {
			err = adapter.SetHVACMode(ctx, hvacMode)
		}
	case "set-temp":
		var adapter *convector.Adapter
		adapter, err = refreshedAdapter(ctx, deviceClient(address, deviceModel))
		if err == nil {
			err = adapter.SetTemperature(ctx, &temp)
		}
	case "set-window":
		err = deviceClient(address, deviceModel).SetOpenedWindow(ctx, window)
	case "install-service":
		err = startup.InstallService(startup.ServiceOptions{
			UnitPath:   unitPath,
			User:       user,
			WorkDir:    workdir,
			Binary:     binary,
			ConfigFile: configFile,
		})
	default:
		fmt.Println("Invalid command")
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
	fmt.Printf("Command %s completed successfully\n", command)
}

func deviceClient(address, deviceModel string) *tesy.Client {
	if address == "" {
		fmt.Println("Error: address is required for device commands")
		os.Exit(1)
	}
	return tesy.NewClient(address, deviceModel, 10*time.Second)
}

// refreshedAdapter builds a one-shot adapter with the device's current state
// loaded so mode changes know whether the convector is powered.
func refreshedAdapter(ctx context.Context, client *tesy.Client) (*convector.Adapter, error) {
	opts := convector.DefaultOptions()
	opts.Model = client.Model()
	opts.SettleDelay = 0
	adapter := convector.New(client, nil, opts)
	if err := adapter.Refresh(ctx); err != nil {
		return nil, err
	}
	return adapter, nil
}

func printStatus(ctx context.Context, client *tesy.Client) error {
	status, err := client.Status(ctx)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
