package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/armb-farm/armb/internal/job"
	"github.com/armb-farm/armb/internal/render"
	"github.com/armb-farm/armb/internal/rsettings"
	"github.com/armb-farm/armb/internal/supervisor"
	"github.com/armb-farm/armb/internal/workerview"
)

func runSupervisorShell(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}

	sup := supervisor.New(conf.OutputDir, conf.MsgTimeout, render.NoOp{}, nil)
	sup.EnableSupervisorRendering()

	stop := make(chan struct{})
	go tickSupervisor(sup, stop)
	defer close(stop)

	fmt.Println("armb supervisor shell — type 'help' for commands, 'quit' to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("armb> ")
		if !scanner.Scan() {
			return nil
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		dispatchSupervisorCommand(sup, fields)
	}
}

func tickSupervisor(sup *supervisor.Supervisor, stop <-chan struct{}) {
	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			sup.Update()
		}
	}
}

func dispatchSupervisorCommand(sup *supervisor.Supervisor, fields []string) {
	switch fields[0] {
	case "help":
		printSupervisorHelp()
	case "status":
		printSupervisorStatus(sup)
	case "worker":
		dispatchWorkerSubcommand(sup, fields[1:])
	case "job":
		dispatchJobSubcommand(sup, fields[1:])
	case "cleanup":
		sup.CleanWorkers()
		fmt.Println("CLEANUP requested from all connected workers")
	case "render":
		dispatchRenderSubcommand(sup, fields[1:])
	default:
		fmt.Printf("unknown command %q (try 'help')\n", fields[0])
	}
}

func printSupervisorHelp() {
	fmt.Println(`commands:
  status                         show job progress and worker statuses
  worker add <host> <port>       connect to a remote worker
  worker remove <index>          disconnect and forget a worker
  worker list                    list connected workers
  job start <start> <end>        start a render job over [start,end]
  job cancel                     cancel the active job
  cleanup                        tell all workers to delete local frames
  render on|off                  enable/disable the embedded local worker
  quit                           exit the shell`)
}

func dispatchWorkerSubcommand(sup *supervisor.Supervisor, args []string) {
	if len(args) == 0 {
		fmt.Println("usage: worker add|remove|list ...")
		return
	}
	switch args[0] {
	case "add":
		if len(args) != 3 {
			fmt.Println("usage: worker add <host> <port>")
			return
		}
		port, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Printf("invalid port %q\n", args[2])
			return
		}
		sup.AddWorker(args[1], port)
		fmt.Printf("connecting to %s:%d\n", args[1], port)
	case "remove":
		if len(args) != 2 {
			fmt.Println("usage: worker remove <index>")
			return
		}
		idx, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Printf("invalid index %q\n", args[1])
			return
		}
		if err := sup.RemoveWorker(idx); err != nil {
			fmt.Println(err)
		}
	case "list":
		printWorkerList(sup)
	default:
		fmt.Printf("unknown worker subcommand %q\n", args[0])
	}
}

func dispatchJobSubcommand(sup *supervisor.Supervisor, args []string) {
	if len(args) == 0 {
		fmt.Println("usage: job start|cancel ...")
		return
	}
	switch args[0] {
	case "start":
		if len(args) != 3 {
			fmt.Println("usage: job start <frame_start> <frame_end>")
			return
		}
		start, errA := parseFrame(args[1])
		end, errB := parseFrame(args[2])
		if errA != nil || errB != nil {
			fmt.Println("frame_start and frame_end must be integers")
			return
		}
		j := job.New(start, end, rsettings.Default())
		if !sup.StartJob(j) {
			fmt.Println("refused: a job is already active and has not finished uploading")
			return
		}
		fmt.Printf("started job: frames %d-%d\n", start, end)
	case "cancel":
		sup.StopJob()
		fmt.Println("job cancelled")
	default:
		fmt.Printf("unknown job subcommand %q\n", args[0])
	}
}

func dispatchRenderSubcommand(sup *supervisor.Supervisor, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: render on|off")
		return
	}
	switch args[0] {
	case "on":
		sup.EnableSupervisorRendering()
	case "off":
		sup.DisableSupervisorRendering()
	default:
		fmt.Printf("unknown render subcommand %q\n", args[0])
	}
}

func printSupervisorStatus(sup *supervisor.Supervisor) {
	j := sup.Job()
	if j == nil {
		fmt.Println("no active job")
	} else {
		fmt.Printf("job: frames_rendered=%d frames_uploaded=%d frame_count=%d progress=%.1f%%\n",
			j.FramesRendered, j.FramesUploaded, j.FrameCount(), j.Progress()*100)
		for _, ws := range j.WorkerStatistics() {
			fmt.Printf("  %s: %d frame(s), %.2fs mean\n", ws.Identity, ws.Count, ws.MeanElapsedSeconds)
		}
	}
	printWorkerList(sup)
}

func printWorkerList(sup *supervisor.Supervisor) {
	workers := sup.Workers()
	if len(workers) == 0 {
		fmt.Println("no workers")
		return
	}
	for i, w := range workers {
		fmt.Printf("  [%d] %s\n", i, formatWorkerStatus(w))
	}
}

// formatWorkerStatus color-codes a WorkerView's status for a list row:
// green when ready to work, yellow while busy, red on error.
func formatWorkerStatus(w *workerview.WorkerView) string {
	identity := w.Identity()
	if identity == "" {
		identity = "(unverified)"
	}

	status := w.Status()
	var painted string
	switch status {
	case workerview.StatusReady:
		painted = color.GreenString(string(status))
	case workerview.StatusRendering, workerview.StatusUploading, workerview.StatusSynchronizing:
		painted = color.YellowString(string(status))
	case workerview.StatusError:
		painted = color.RedString(string(status))
		return fmt.Sprintf("%s — %s (%s)", identity, painted, w.ErrorDescription())
	default:
		painted = string(status)
	}
	return fmt.Sprintf("%s — %s", identity, painted)
}
