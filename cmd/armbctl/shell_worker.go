package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/armb-farm/armb/internal/outputstore"
	"github.com/armb-farm/armb/internal/render"
	"github.com/armb-farm/armb/internal/worker"
)

func runWorkerShell(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	port := conf.ListenPort
	if c.Int("port") != 0 {
		port = c.Int("port")
	}

	store := outputstore.New(conf.OutputDir, ".png", nil)
	w := worker.New(port, conf.MsgTimeout, render.NoOp{}, store)
	if err := w.Start(); err != nil {
		return err
	}

	stop := make(chan struct{})
	go tickWorker(w, stop)
	defer close(stop)

	fmt.Printf("armb worker shell — listening on port %d; type 'help' for commands, 'quit' to exit\n", port)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("armb-worker> ")
		if !scanner.Scan() {
			return nil
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "status":
			printWorkerStatusLine(w)
		case "restart":
			if err := w.Restart(); err != nil {
				fmt.Println(err)
			}
		case "help":
			fmt.Println("commands: status, restart, quit")
		default:
			fmt.Printf("unknown command %q (try 'help')\n", fields[0])
		}
	}
}

func tickWorker(w *worker.Worker, stop <-chan struct{}) {
	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			w.Update()
		}
	}
}

// workerStatusLine color-codes the worker's own status message: green
// while it is running cleanly, red once Ok reports false.
func workerStatusLine(w *worker.Worker) string {
	msg := w.StatusMessage()
	if w.Ok() {
		return color.GreenString(msg)
	}
	return color.RedString(msg)
}

func printWorkerStatusLine(w *worker.Worker) {
	fmt.Println(workerStatusLine(w))
}
