// Command armb-supervisor runs the ARMB coordinator: flag parsing,
// config loading, signal handling, and periodic log flush follow
// aistore's cmd/authn/main.go.
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/armb-farm/armb/internal/cfg"
	"github.com/armb-farm/armb/internal/cmn/nlog"
	"github.com/armb-farm/armb/internal/render"
	"github.com/armb-farm/armb/internal/supervisor"
)

var (
	build     string
	buildtime string

	configPath string
	logDir     string
)

func init() {
	flag.StringVar(&configPath, "config", "", "path to the supervisor's JSON config file")
	flag.StringVar(&logDir, "logdir", "", "directory for log files (default: stderr)")
	nlog.InitFlags(flag.CommandLine)
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "version" {
		printVer()
		return
	}

	flag.Parse()
	installSignalHandler()

	if logDir != "" {
		nlog.SetLogDirRole(logDir, "supervisor")
	}

	c := cfg.Default()
	if configPath != "" {
		loaded, err := cfg.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load configuration from %q: %v\n", configPath, err)
			os.Exit(1)
		}
		c = loaded
	}

	mirror, err := newMirror(c.AzureContainer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to construct output mirror: %v\n", err)
		os.Exit(1)
	}

	sup := supervisor.New(c.OutputDir, c.MsgTimeout, render.NoOp{}, mirror)
	sup.EnableSupervisorRendering()

	nlog.Infof("armb-supervisor starting (output dir %s, msg timeout %s)", c.OutputDir, c.MsgTimeout)

	go logFlush()

	if c.MetricsAddr != "" {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := sup.ServeMetrics(ctx, c.MetricsAddr); err != nil {
				nlog.Warningf("metrics server stopped: %v", err)
			}
		}()
	}

	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for range tick.C {
		sup.Update()
	}
}

func logFlush() {
	for {
		time.Sleep(time.Minute)
		nlog.Flush()
	}
}

func installSignalHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		nlog.Flush(true)
		os.Exit(0)
	}()
}

func printVer() {
	fmt.Printf("armb-supervisor version %s (build %s)\n", build, buildtime)
}
