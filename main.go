package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/verlauf/internal/applog"
	"github.com/lotas/verlauf/internal/config"
	"github.com/lotas/verlauf/internal/export"
	"github.com/lotas/verlauf/internal/frequency"
	"github.com/lotas/verlauf/internal/history"
	"github.com/lotas/verlauf/internal/organize"
	"github.com/lotas/verlauf/internal/server"
	"github.com/lotas/verlauf/internal/storage"
	"github.com/lotas/verlauf/internal/tui"
	"github.com/lotas/verlauf/internal/types"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "organize":
			runOrganize(os.Args[2:])
			return
		case "export":
			runExport(os.Args[2:])
			return
		case "import":
			runImport(os.Args[2:])
			return
		case "profiles":
			runProfiles()
			return
		case "cleanup":
			runCleanup(os.Args[2:])
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}

	fs := flag.NewFlagSet("verlauf", flag.ExitOnError)
	profileName := fs.String("profile", "", "Firefox profile name (skip picker)")
	liveMode := fs.Bool("live", false, "Start in live mode (connect to extension)")
	port := fs.Int("port", 19191, "WebSocket port for live mode")
	dbPath := fs.String("db", "", "database path (default: ~/.local/share/verlauf/verlauf.db)")
	configPath := fs.String("config", "", "settings path (default: ~/.config/verlauf/settings.json)")
	fs.Parse(os.Args[1:])

	db := mustOpenDB(*dbPath)
	defer db.Close()
	defer applog.Close()

	cfg := mustOpenConfig(*configPath)
	if err := cfg.Watch(); err != nil {
		applog.Warn("config.watch", "err", err)
	}
	defer cfg.Close()

	profiles, err := history.DiscoverProfiles()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error discovering Firefox profiles: %v\n", err)
		os.Exit(1)
	}
	if len(profiles) == 0 && !*liveMode {
		fmt.Fprintln(os.Stderr, "No Firefox profiles found. Try --live to use the browser extension.")
		os.Exit(1)
	}

	// --profile flag or VERLAUF_PROFILE env var narrows the picker to one
	// profile.
	if resolved := resolveProfileName(*profileName); resolved != "" {
		p, err := findProfile(profiles, resolved)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		profiles = []types.Profile{p}
	}

	tracker := frequency.NewTracker(db, frequency.DefaultThresholds(), frequency.DefaultLimits())
	tracker.Cleanup(false) // interval-gated; usually a no-op
	org := organize.New(tracker)

	// Always create the server — it's cheap (just a struct + channel).
	// ListenAndServe is only called when the user actually enters live mode.
	srv := server.New(*port)

	model := tui.NewModel(cfg, db, org, srv, profiles, *liveMode)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`verlauf — browser history organizer

Usage:
  verlauf                                  Start the TUI (default)
    --profile <name>     Firefox profile name (skips picker)
    --live               Start in live mode (connect to extension)
    --port <n>           WebSocket port for live mode (default: 19191)
    --db <path>          Database path (default: ~/.local/share/verlauf/verlauf.db)
    --config <path>      Settings path (default: ~/.config/verlauf/settings.json)

  verlauf organize                         Organize history once, print the result
    --profile <name>     Firefox profile name
    --json               Print JSON instead of markdown
    --sort <mode>        frequency or time (default: frequency)
    --live               Read history from the extension instead of places.sqlite
    --port <n>           WebSocket port for live mode (default: 19191)
    --out <file>         Output file path (default: stdout)

  verlauf export                           Export group definitions as JSON
    --out <file>         Output file path (default: stdout)

  verlauf import <file>                    Import group definitions
    --yes                Replace current groups without confirmation

  verlauf profiles                         List Firefox profiles

  verlauf cleanup                          Prune stored frequency data now

Environment:
  VERLAUF_PROFILE    Default Firefox profile (overridden by --profile flag)
`)
}

func runOrganize(args []string) {
	fs := flag.NewFlagSet("organize", flag.ExitOnError)
	profileName := fs.String("profile", "", "Firefox profile name")
	jsonFlag := fs.Bool("json", false, "Print JSON instead of markdown")
	sortFlag := fs.String("sort", "frequency", "Sort mode: frequency or time")
	liveMode := fs.Bool("live", false, "Read history from the extension")
	port := fs.Int("port", 19191, "WebSocket port for live mode")
	outFile := fs.String("out", "", "Output file path (default: stdout)")
	dbPath := fs.String("db", "", "Database path")
	configPath := fs.String("config", "", "Settings path")
	fs.Parse(args)

	mode := types.SortByFrequency
	if *sortFlag == "time" {
		mode = types.SortByTime
	}

	db := mustOpenDB(*dbPath)
	defer db.Close()
	defer applog.Close()
	cfg := mustOpenConfig(*configPath)

	var src organize.Source
	profileLabel := "live"
	if *liveMode {
		entries, err := fetchLive(*port)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		src = history.StaticSource(entries)
	} else {
		profile, err := resolveProfile(resolveProfileName(*profileName))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		profileLabel = profile.Name
		src = history.FirefoxSource{Profile: profile}
	}

	tracker := frequency.NewTracker(db, frequency.DefaultThresholds(), frequency.DefaultLimits())
	org := organize.New(tracker)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// One-shot run: the process exits right after printing, so persist
	// frequency data before the deferred db.Close instead of in the
	// background.
	res := org.OrganizeAndWait(ctx, src, cfg.Settings().WebsiteGroups, mode)
	if res.Unavailable {
		fmt.Fprintln(os.Stderr, "Error: history source unavailable")
		os.Exit(1)
	}

	var output string
	if *jsonFlag {
		var err error
		output, err = export.ResultJSON(&res, profileLabel, tracker.Thresholds())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating JSON: %v\n", err)
			os.Exit(1)
		}
	} else {
		output = export.Markdown(&res, profileLabel)
	}

	writeOutput(*outFile, output)
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	outFile := fs.String("out", "", "Output file path (default: stdout)")
	configPath := fs.String("config", "", "Settings path")
	fs.Parse(args)

	cfg := mustOpenConfig(*configPath)

	output, err := export.Groups(cfg.Settings().WebsiteGroups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	writeOutput(*outFile, output)
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Replace current groups without confirmation")
	configPath := fs.String("config", "", "Settings path")
	fs.Parse(reorderArgs(args))

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: verlauf import <file>")
		os.Exit(1)
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	defs, err := export.ImportGroups(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import rejected: %v\n", err)
		os.Exit(1)
	}
	if len(defs) == 0 {
		fmt.Fprintln(os.Stderr, "Import rejected: no valid group definitions in file")
		os.Exit(1)
	}

	cfg := mustOpenConfig(*configPath)

	if !*yes {
		fmt.Printf("Replace %d current groups with %d imported groups? [y/N] ", len(cfg.Settings().WebsiteGroups), len(defs))
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	s := cfg.Settings()
	s.WebsiteGroups = defs
	if err := cfg.Save(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving settings: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported %d groups.\n", len(defs))
}

func runProfiles() {
	profiles, err := history.DiscoverProfiles()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error discovering Firefox profiles: %v\n", err)
		os.Exit(1)
	}
	if len(profiles) == 0 {
		fmt.Fprintln(os.Stderr, "No Firefox profiles found.")
		os.Exit(1)
	}

	for _, p := range profiles {
		suffix := ""
		if p.IsDefault {
			suffix = " [default]"
		}
		fmt.Printf("%s (%s)%s\n", p.Name, p.Path, suffix)
	}
}

func runCleanup(args []string) {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path")
	fs.Parse(args)

	db := mustOpenDB(*dbPath)
	defer db.Close()
	defer applog.Close()

	tracker := frequency.NewTracker(db, frequency.DefaultThresholds(), frequency.DefaultLimits())
	tracker.Cleanup(true)
	fmt.Println("Frequency data pruned.")
}

// fetchLive waits for one history snapshot from the browser extension.
func fetchLive(port int) ([]types.HistoryEntry, error) {
	srv := server.New(port)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.ListenAndServe(ctx)

	fmt.Fprintf(os.Stderr, "Waiting for browser extension on port %d...\n", port)

	timeout := time.After(10 * time.Second)
	for {
		select {
		case msg := <-srv.Messages():
			if msg.Type == "history" {
				return server.ParseHistory(msg)
			}
		case <-timeout:
			return nil, fmt.Errorf("timed out waiting for extension (10s)")
		}
	}
}

// resolveProfile finds the named profile, or the default one when name
// is empty.
func resolveProfile(name string) (types.Profile, error) {
	profiles, err := history.DiscoverProfiles()
	if err != nil {
		return types.Profile{}, fmt.Errorf("discover profiles: %w", err)
	}
	if len(profiles) == 0 {
		return types.Profile{}, fmt.Errorf("no Firefox profiles found")
	}

	if name != "" {
		return findProfile(profiles, name)
	}

	profile := profiles[0]
	for _, p := range profiles {
		if p.IsDefault {
			profile = p
			break
		}
	}
	return profile, nil
}

func findProfile(profiles []types.Profile, name string) (types.Profile, error) {
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return types.Profile{}, fmt.Errorf("profile %q not found", name)
}

// resolveProfileName returns the profile name from the flag if set,
// otherwise falls back to the VERLAUF_PROFILE environment variable.
func resolveProfileName(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("VERLAUF_PROFILE")
}

func mustOpenDB(path string) *sql.DB {
	var err error
	if path == "" {
		path, err = storage.DefaultDBPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving database path: %v\n", err)
			os.Exit(1)
		}
	}
	if err := applog.Init(filepath.Dir(path)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open log file: %v\n", err)
	}
	db, err := storage.OpenDB(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	return db
}

func mustOpenConfig(path string) *config.Store {
	var err error
	if path == "" {
		path, err = config.DefaultPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error resolving settings path: %v\n", err)
			os.Exit(1)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading settings: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func writeOutput(path, output string) {
	if path == "" {
		fmt.Print(output)
		return
	}
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}
}

// reorderArgs moves flag arguments before positional arguments so that
// flag.Parse handles them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			flags = append(flags, args[i])
			if args[i] != "-yes" && args[i] != "--yes" && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
