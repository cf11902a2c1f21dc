package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/lipgloss"

	"txnstore/pkg/database"
	"txnstore/pkg/logging"
)

// Configuration holds the flags used to start the storage core as a
// standalone process: where its data and log files live, and whether to
// run recovery and a small demo workload on startup.
type Configuration struct {
	ConfigFile string
	DataDir    string
	LogPath    string
	Recover    bool
	Demo       bool
}

func main() {
	config := parseArguments()
	showSplashScreen()

	logging.InitDefault()

	db, err := initializeDatabase(config)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close()

	if config.Recover {
		if err := db.Recover(); err != nil {
			log.Fatalf("recovery failed: %v", err)
		}
	}

	if config.Demo {
		if err := runDemo(db); err != nil {
			log.Fatalf("demo workload failed: %v", err)
		}
	}
}

func parseArguments() Configuration {
	var config Configuration

	flag.StringVar(&config.ConfigFile, "config", "", "path to a YAML/TOML/JSON config file")
	flag.StringVar(&config.DataDir, "data", "./data", "data directory for table files")
	flag.StringVar(&config.LogPath, "log", "./data/wal.log", "write-ahead log path")
	flag.BoolVar(&config.Recover, "recover", true, "run recovery before accepting transactions")
	flag.BoolVar(&config.Demo, "demo", false, "run a small insert/commit/scan workload after startup")

	flag.Parse()
	return config
}

func showSplashScreen() {
	splash := `
╔══════════════════════════════════════════════╗
║               txnstore                       ║
║   transactional storage core                 ║
╚══════════════════════════════════════════════╝
`
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7C3AED")).
		Bold(true)

	fmt.Println(style.Render(splash))
}

func initializeDatabase(config Configuration) (*database.Database, error) {
	cfg, err := database.LoadConfig(config.ConfigFile)
	if err != nil {
		return nil, err
	}
	if config.DataDir != "" {
		cfg.DataDir = config.DataDir
	}
	if config.LogPath != "" {
		cfg.LogPath = config.LogPath
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// runDemo exercises begin/insert/commit/scan against a scratch table so
// a fresh checkout has something to observe besides an empty log. It
// aborts only when an insert fails.
func runDemo(db *database.Database) error {
	tableID, err := db.CreateTable("demo")
	if err != nil {
		return err
	}

	tid, err := db.Begin()
	if err != nil {
		return err
	}
	for _, v := range []int64{1, 2, 3} {
		if _, err := db.InsertTuple(tid, tableID, v); err != nil {
			_ = db.Abort(tid)
			return err
		}
	}
	if err := db.Commit(tid); err != nil {
		return err
	}

	scanTid, err := db.Begin()
	if err != nil {
		return err
	}
	values, err := db.ScanTable(scanTid, tableID)
	if err != nil {
		return err
	}
	if err := db.Commit(scanTid); err != nil {
		return err
	}

	fmt.Printf("demo table now holds: %v\n", values)
	time.Sleep(50 * time.Millisecond)
	return nil
}
