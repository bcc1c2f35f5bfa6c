//go:build !rp2350

//----------------------------------------------------------------------
// This file is part of wifimgr.
// Copyright (C) 2024-present Bernd Fix   >Y<
//
// wifimgr is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// wifimgr is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bfix/wifimgr"
	"github.com/bfix/wifimgr/notify"
)

var Commit string

// simulated access point (config file)
type simNetwork struct {
	SSID     string `mapstructure:"ssid"`
	Password string `mapstructure:"password"`
	RSSI     int    `mapstructure:"rssi"`
	Channel  int    `mapstructure:"channel"`
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "wifisim",
	Short: "Run the WiFi manager against a simulated radio",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Commit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.Flags()
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML)")
	flags.String("mode", "fixed", "connection mode (fixed, auto, mesh-root, mesh-non-leaf, mesh-leaf)")
	flags.String("ssid", "", "SSID of the access point (fixed mode, mesh root)")
	flags.String("password", "", "password of the access point")
	flags.String("prefix", "wifimgr", "mesh SSID prefix")
	flags.String("group", "", "mesh group passphrase (empty for open mesh)")
	flags.String("listen", "", "serve status via 9p on address (e.g. :5640)")
	flags.String("mqtt.broker", "", "publish events to MQTT broker (tcp://host:1883)")
	flags.String("mqtt.topic", "wifimgr", "MQTT topic prefix")
	flags.String("mqtt.user", "", "MQTT user name")
	flags.String("mqtt.password", "", "MQTT password")
	flags.Duration("poll", 100*time.Millisecond, "poll interval of the state machines")
	flags.Duration("scan-delay", time.Second, "simulated scan duration")
	flags.Duration("join-delay", 2*time.Second, "simulated join duration")
	flags.Duration("drop-after", 0, "drop the station link after connect (0 = never)")
	flags.Bool("debug", false, "log state transitions")
}

// read config file and environment (WIFIMGR_*) on top of flags
func initConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("config %s: %w", cfgFile, err)
		}
	}
	viper.SetEnvPrefix("WIFIMGR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	return viper.BindPFlags(cmd.Flags())
}

func run(ctx context.Context) error {
	level := slog.LevelInfo
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// set up simulated radio
	dev := wifimgr.InitDevice("", "").(*wifimgr.LinuxDevice)
	sim := dev.Sim()
	sim.ScanDelay = viper.GetDuration("scan-delay")
	sim.JoinDelay = viper.GetDuration("join-delay")
	var nets []simNetwork
	if err := viper.UnmarshalKey("networks", &nets); err != nil {
		return fmt.Errorf("networks: %w", err)
	}
	var list []wifimgr.SimNetwork
	for _, n := range nets {
		list = append(list, wifimgr.SimNetwork{
			Network: wifimgr.Network{
				SSID:    n.SSID,
				RSSI:    n.RSSI,
				Channel: n.Channel,
			},
			Password: n.Password,
		})
	}
	sim.SetNetworks(list...)
	radio, err := dev.Radio()
	if err != nil {
		return err
	}

	// create manager
	mode, err := wifimgr.ParseMode(viper.GetString("mode"))
	if err != nil {
		return err
	}
	opts := []wifimgr.Option{wifimgr.WithLogger(log)}
	var mgr *wifimgr.Manager
	switch mode {
	case wifimgr.ModeStationAuto:
		var aps []wifimgr.APCandidate
		if err = viper.UnmarshalKey("aps", &aps); err != nil {
			return fmt.Errorf("aps: %w", err)
		}
		mgr, err = wifimgr.NewAuto(radio, aps, opts...)
	default:
		mgr, err = wifimgr.NewMesh(radio, mode,
			viper.GetString("ssid"), viper.GetString("password"),
			viper.GetString("prefix"), viper.GetString("group"), opts...)
	}
	if err != nil {
		return err
	}

	// connect/disconnect notifications
	var handler wifimgr.Handler = wifimgr.HandlerFuncs{
		Connect: func(bool) {
			log.Info("connected", slog.String("ip", mgr.IPInfo().IP.String()))
		},
		Disconnect: func(bool) {
			log.Info("disconnected")
		},
	}
	if broker := viper.GetString("mqtt.broker"); broker != "" {
		client, err := notify.Dial(broker, "wifimgr-"+strings.ReplaceAll(mgr.MAC(), ":", ""),
			viper.GetString("mqtt.user"), viper.GetString("mqtt.password"))
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		handler = notify.NewMQTT(client, mgr, viper.GetString("mqtt.topic"), log)
	}
	if drop := viper.GetDuration("drop-after"); drop > 0 {
		next := handler
		handler = wifimgr.HandlerFuncs{
			Connect: func(ok bool) {
				next.OnConnect(ok)
				time.AfterFunc(drop, func() {
					log.Info("dropping link")
					sim.Drop()
				})
			},
			Disconnect: next.OnDisconnect,
		}
	}
	mgr.SetHandler(handler)

	// serve status namespace
	if addr := viper.GetString("listen"); addr != "" {
		ns, err := wifimgr.NewStatusNamespace(mgr, "sys", "sys")
		if err != nil {
			return err
		}
		go func() {
			if err := ns.Serve(addr); err != nil {
				log.Error("9p server", slog.String("err", err.Error()))
			}
		}()
	}

	// drive the state machines
	tick := time.NewTicker(viper.GetDuration("poll"))
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			mgr.Disconnect()
			for range 3 {
				mgr.Poll()
			}
			return nil
		case <-tick.C:
			mgr.Poll()
		}
	}
}
