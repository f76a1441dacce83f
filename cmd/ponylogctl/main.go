// ponylogctl is the operator console for a running ponylogd.
//
// Run with a command for one-shot use, or with no arguments on a
// terminal for an interactive prompt:
//
//	ponylogctl status
//	ponylogctl start mylap
//	ponylogctl
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/openpony/ponylog/config"
	"github.com/openpony/ponylog/internal/control"
)

// Version is set at build time via ldflags
var Version = "dev"

var commands = []prompt.Suggest{
	{Text: "status", Description: "Daemon status report"},
	{Text: "snapshot", Description: "Latest telemetry snapshot"},
	{Text: "start", Description: "Start a session (optional name)"},
	{Text: "stop", Description: "Stop the active session"},
	{Text: "list", Description: "List session files"},
	{Text: "delete", Description: "Delete a session file by name"},
	{Text: "reset", Description: "Reset buffer counters"},
	{Text: "help", Description: "Show commands"},
	{Text: "exit", Description: "Leave the console"},
}

type console struct {
	client *control.Client
}

func main() {
	addr := flag.String("addr", config.DefaultControlAddress, "control address of ponylogd")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ponylogctl %s\n", Version)
		return
	}

	client, err := control.Dial(*addr, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ponylogctl: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	c := &console{client: client}

	if flag.NArg() > 0 {
		if !c.execute(flag.Args()) {
			os.Exit(1)
		}
		return
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "ponylogctl: no command given and stdin is not a terminal")
		os.Exit(2)
	}

	fmt.Printf("ponylogctl %s connected to %s\n", Version, *addr)
	p := prompt.New(
		c.executeLine,
		completer,
		prompt.OptionTitle("ponylogctl"),
		prompt.OptionPrefix("ponylog> "),
	)
	p.Run()
}

func completer(d prompt.Document) []prompt.Suggest {
	if strings.Contains(d.TextBeforeCursor(), " ") {
		return nil
	}
	return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
}

func (c *console) executeLine(line string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}
	if args[0] == "exit" || args[0] == "quit" {
		os.Exit(0)
	}
	c.execute(args)
}

// execute runs one command, printing the result. Returns false on error.
func (c *console) execute(args []string) bool {
	cmd := args[0]
	var arg string
	if len(args) > 1 {
		arg = args[1]
	}

	var req control.Request
	switch cmd {
	case "status":
		req = control.Request{Op: control.OpStatus}
	case "snapshot":
		req = control.Request{Op: control.OpSnapshot}
	case "start":
		req = control.Request{Op: control.OpStartSession, Name: arg}
	case "stop":
		req = control.Request{Op: control.OpStopSession}
	case "list":
		req = control.Request{Op: control.OpListSessions}
	case "delete":
		if arg == "" {
			fmt.Fprintln(os.Stderr, "usage: delete <session-file>")
			return false
		}
		req = control.Request{Op: control.OpDeleteSession, Name: arg}
	case "reset":
		req = control.Request{Op: control.OpResetCounters}
	case "help":
		for _, s := range commands {
			fmt.Printf("  %-10s %s\n", s.Text, s.Description)
		}
		return true
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (try help)\n", cmd)
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ponylogctl: %v\n", err)
		return false
	}
	if !resp.OK {
		fmt.Fprintf(os.Stderr, "error: %s\n", resp.Error)
		return false
	}

	printResponse(req.Op, resp)
	return true
}

func printResponse(op string, resp control.Response) {
	switch {
	case resp.Status != nil:
		printStatus(resp.Status)
	case resp.Snapshot != nil:
		s := resp.Snapshot
		fmt.Printf("seq %d  at %s\n", s.Seq, s.Time.Format(time.RFC3339))
		fmt.Printf("  accel   %+.3f %+.3f %+.3f g  (total %.3f g)\n",
			s.Accel.X, s.Accel.Y, s.Accel.Z, s.GTotal)
		fmt.Printf("  gyro    %+.1f %+.1f %+.1f deg/s\n", s.Gyro.X, s.Gyro.Y, s.Gyro.Z)
		if s.Fix.Valid {
			fmt.Printf("  fix     %s  %.6f,%.6f  alt %.0fm  %.1f m/s  sats %d\n",
				s.Fix.Type, s.Fix.Latitude, s.Fix.Longitude,
				s.Fix.Altitude, s.Fix.Speed, s.Fix.Sats)
		} else {
			fmt.Println("  fix     none")
		}
		if len(s.Satellites) > 0 {
			fmt.Printf("  sats    %d in view\n", len(s.Satellites))
		}
		if s.DropCount > 0 {
			fmt.Printf("  drops   %d\n", s.DropCount)
		}
	case resp.Sessions != nil:
		for _, f := range resp.Sessions {
			marker := " "
			if f.Active {
				marker = "*"
			}
			fmt.Printf("%s %-28s %10d  %s\n",
				marker, f.Name, f.Size, f.ModTime.Format("2006-01-02 15:04:05"))
		}
		if len(resp.Sessions) == 0 {
			fmt.Println("no sessions")
		}
	case resp.Session != nil:
		s := resp.Session
		if op == control.OpStartSession {
			fmt.Printf("started %s\n", s.Name)
			return
		}
		fmt.Printf("stopped %s: %d frames, %d blocks, %d bytes in %.1fs\n",
			s.Name, s.Frames, s.Blocks, s.Bytes, s.Duration)
		if s.GForce.Count > 0 {
			fmt.Printf("  g-force min %.3f  avg %.3f  max %.3f  p99 %.3f\n",
				s.GForce.Min, s.GForce.Avg, s.GForce.Max, s.GForce.P99)
		}
	default:
		fmt.Println("ok")
	}
}

func printStatus(s *control.Status) {
	fmt.Printf("uptime %.0fs\n", s.UptimeSec)
	fmt.Printf("buffer  %d/%d (%.0f%%)  pushed %d  popped %d  dropped %d\n",
		s.Buffer.Count, s.Buffer.Capacity, s.Buffer.UsageRatio*100,
		s.Buffer.PushCount, s.Buffer.PopCount, s.Buffer.DropCount)
	if s.Session.Open {
		fmt.Printf("session %s  %d frames  %d blocks  %d bytes\n",
			s.Session.Name, s.Session.Frames, s.Session.Blocks, s.Session.Bytes)
	} else {
		fmt.Println("session idle")
	}
	fmt.Printf("storage %.1f%% used  %d evicted (%d bytes) in %d passes\n",
		s.Storage.UsagePct, s.Storage.SessionsDeleted,
		s.Storage.BytesFreed, s.Storage.Passes)
	if s.GForce.Count > 0 {
		fmt.Printf("g-force n=%d  min %.3f  avg %.3f  max %.3f  p95 %.3f  p99 %.3f\n",
			s.GForce.Count, s.GForce.Min, s.GForce.Avg,
			s.GForce.Max, s.GForce.P95, s.GForce.P99)
	}
	for _, t := range s.Tasks {
		line := fmt.Sprintf("task    %-12s %6dms  runs %-8d errs %-4d overruns %d",
			t.Name, t.PeriodMs, t.Runs, t.Errors, t.Overruns)
		if t.LastError != "" {
			line += "  last: " + t.LastError
		}
		fmt.Println(line)
	}
}
