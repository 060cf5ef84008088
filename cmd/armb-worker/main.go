// Command armb-worker runs the ARMB accepting-side worker daemon:
// flag parsing, config loading, signal handling, and periodic log
// flush follow aistore's cmd/authn/main.go.
/*
 * Copyright (c) 2024, armb-farm contributors.
 */
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/armb-farm/armb/internal/cfg"
	"github.com/armb-farm/armb/internal/cmn/cos"
	"github.com/armb-farm/armb/internal/cmn/nlog"
	"github.com/armb-farm/armb/internal/outputstore"
	"github.com/armb-farm/armb/internal/render"
	"github.com/armb-farm/armb/internal/worker"
)

var (
	build     string
	buildtime string

	configPath string
	logDir     string
)

func init() {
	flag.StringVar(&configPath, "config", "", "path to the worker's JSON config file")
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
		nlog.SetLogDirRole(logDir, "worker")
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
	store := outputstore.New(c.OutputDir, ".png", mirror)

	w := worker.New(c.ListenPort, c.MsgTimeout, render.NoOp{}, store)
	if err := w.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind listen port %d: %v\n", c.ListenPort, err)
		os.Exit(1)
	}

	if ip, err := cos.LocalIP(); err == nil {
		nlog.Infof("armb-worker listening on %s:%d", ip, c.ListenPort)
	} else {
		nlog.Infof("armb-worker listening on :%d", c.ListenPort)
	}

	go logFlush()

	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for range tick.C {
		w.Update()
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
	fmt.Printf("armb-worker version %s (build %s)\n", build, buildtime)
}
