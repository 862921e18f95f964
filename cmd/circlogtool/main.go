// circlogtool is a small demo/ops CLI over a circlog-mounted region: mount
// (or create) a simulated flash image, append lines, tail them, search by
// substring or by exact timestamp, or follow the log the way `tail -f` does.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"circlog/internal/circlog"
	"circlog/internal/toolconfig"
)

func main() {
	var configPath string
	var showVersion bool

	pflag.StringVarP(&configPath, "config", "c", filepath.Join("config", "circlogtool.json"), "Path to the region config (JSONC)")
	pflag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Println(circlog.GetVersion().String())
		return
	}

	args := pflag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := toolconfig.Load(configPath)
	if err != nil {
		log.Printf("FATAL: load config %q: %v", configPath, err)
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	cmd := strings.ToLower(args[0])
	rest := args[1:]

	l, dev, err := mount(cfg)
	if err != nil {
		log.Printf("FATAL: mount %q: %v", cfg.ImagePath, err)
		fmt.Fprintln(os.Stderr, "Failed to mount:", err)
		os.Exit(1)
	}
	defer dev.Close()

	switch cmd {
	case "init":
		if st := l.Clear(); st != circlog.StatusNone {
			fmt.Fprintln(os.Stderr, "clear failed:", st)
			os.Exit(1)
		}
		fmt.Println("OK: region cleared")

	case "write":
		if len(rest) < 1 {
			fmt.Println("write <text>")
			os.Exit(2)
		}
		line := strings.Join(rest, " ")
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		if cfg.IndexEnabled {
			line = time.Now().Format(cfg.TimeLayout) + " " + line
		}
		n, st := l.Write([]byte(line))
		if st != circlog.StatusNone {
			fmt.Fprintln(os.Stderr, "write failed:", st)
			os.Exit(1)
		}
		fmt.Printf("OK: wrote %d bytes\n", n)

	case "tail":
		n := uint32(20)
		if len(rest) > 0 {
			if v, err := strconv.ParseUint(rest[0], 10, 32); err == nil {
				n = uint32(v)
			}
		}
		buf := make([]byte, 64*1024)
		m := l.ReadLines(buf, n, "", 0)
		os.Stdout.Write(buf[:m])

	case "cat":
		cur, st := l.Open(circlog.FlagsOldest)
		if st != circlog.StatusNone {
			fmt.Fprintln(os.Stderr, "open failed:", st)
			os.Exit(1)
		}
		buf := make([]byte, 64*1024)
		n := l.Read(cur, buf, circlog.DirForward, circlog.LinesReadAll, nil)
		os.Stdout.Write(buf[:n])

	case "search":
		if len(rest) < 1 {
			fmt.Println("search <substring>")
			os.Exit(2)
		}
		buf := make([]byte, 256*1024)
		n := l.ReadLines(buf, 100000, rest[0], 0)
		os.Stdout.Write(buf[:n])

	case "find-time":
		if len(rest) < 1 {
			fmt.Println("find-time <unix-seconds>")
			os.Exit(2)
		}
		v, err := strconv.ParseUint(rest[0], 10, 32)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad timestamp:", err)
			os.Exit(2)
		}
		buf := make([]byte, 4096)
		n := l.IndexedSearch(buf, uint32(v))
		if n == 0 {
			fmt.Println("(no exact match)")
			return
		}
		os.Stdout.Write(buf[:n])

	case "follow":
		if err := runFollow(l); err != nil {
			fmt.Fprintln(os.Stderr, "follow:", err)
			os.Exit(1)
		}

	case "version":
		fmt.Println(circlog.GetVersion().String())

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "circlogtool [-c config] <command> [args]")
	fmt.Fprintln(os.Stderr, "commands: init | write <text> | tail [n] | cat | search <substr> | find-time <unix> | follow | version")
}
