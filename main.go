// Command removetrace-collector receives removal events from shimmed
// processes, enriches them with process metadata, journals them to
// SQLite, and matches them against Sigma file_delete rules. A small
// web UI exposes the journal; on Linux, kernel-side counters show how
// much removal activity the shim coverage is missing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/filetrack/removetrace/config"
	"github.com/filetrack/removetrace/database"
	"github.com/filetrack/removetrace/dedup"
	"github.com/filetrack/removetrace/dispatch"
	"github.com/filetrack/removetrace/platform"
	"github.com/filetrack/removetrace/procmeta"
	"github.com/filetrack/removetrace/sigma"
	"github.com/filetrack/removetrace/web"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Printf("Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Kernel counters need root, so attach them before dropping it
	var monitor platform.Monitor
	if cfg.KernelStats {
		m, err := platform.NewMonitor()
		if err == nil {
			err = m.Start()
		}
		if err != nil {
			fmt.Printf("Warning: kernel counters unavailable: %v\n", err)
		} else {
			monitor = m
		}
	}

	if err := dropPrivileges(); err != nil {
		fmt.Printf("Warning: Failed to drop privileges: %v\n", err)
	}

	db, err := database.NewDB(cfg.DataDir)
	if err != nil {
		fmt.Printf("Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	receiver, err := dispatch.NewReceiver(cfg.SocketPath, cfg.EventBuffer)
	if err != nil {
		fmt.Printf("Failed to bind event socket: %v\n", err)
		os.Exit(1)
	}

	detector, err := sigma.NewDetector(cfg.RulesDir, db.Db)
	if err != nil {
		fmt.Printf("Warning: rule detection disabled: %v\n", err)
		detector = nil
	}

	seen, err := dedup.NewCache(cfg.DedupSize, cfg.DedupWindow())
	if err != nil {
		fmt.Printf("Failed to create dedup cache: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	go receiver.Run()
	go processEvents(receiver.Events(), db, detector, seen)
	if detector != nil {
		go detector.Run(ctx)
	}

	go func() {
		if err := web.NewServer(db, detector, monitor, cfg.WebAddr).Start(ctx); err != nil {
			fmt.Printf("Web server error: %v\n", err)
		}
	}()
	fmt.Printf("Web interface available at http://localhost%s\n", cfg.WebAddr)

	fmt.Printf("Listening for removal events on %s... Press Ctrl+C to stop\n", cfg.SocketPath)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Println("Shutting down...")

	cancel()
	receiver.Close()
	if detector != nil {
		detector.Close()
	}
	if monitor != nil {
		monitor.Stop()
	}
}

func processEvents(events <-chan dispatch.Event, db *database.DB, detector *sigma.Detector, seen *dedup.Cache) {
	fmt.Println("Starting event processor...")
	count := 0
	for event := range events {
		if event.Type != dispatch.EventRemove {
			continue
		}
		if seen.Seen(event.Dev, event.Ino) {
			continue
		}

		record := buildRecord(event)
		rowID, err := db.InsertRemoval(record)
		if err != nil {
			fmt.Printf("\nError inserting removal record: %v\n", err)
			continue
		}

		count++
		fmt.Print(".")
		if count%100 == 0 {
			fmt.Printf(" [%d]\n", count)
		}

		if detector != nil {
			fields := eventFields(rowID, record)
			for _, match := range detector.CheckEvent(context.Background(), fields) {
				if err := detector.StoreMatch(match, fields); err != nil {
					log.Printf("Error storing match: %v", err)
				}
			}
		}
	}
}

// buildRecord enriches an event with whatever /proc still knows about
// the sender. The process may have exited already; the event's own
// fields are all that is guaranteed.
func buildRecord(event dispatch.Event) *database.RemovalRecord {
	record := &database.RemovalRecord{
		Timestamp: time.Unix(0, event.Timestamp),
		PID:       event.PID,
		Dev:       event.Dev,
		Ino:       event.Ino,
		Path:      event.Path,
	}

	if info, ok := procmeta.Collect(event.PID); ok {
		record.Comm = info.Comm
		record.CmdLine = info.CmdLine
		record.ExePath = info.ExePath
		record.Username = info.Username
	}

	return record
}

// eventFields maps a journal record onto the field names Sigma
// file_delete rules match against.
func eventFields(rowID int64, record *database.RemovalRecord) map[string]interface{} {
	image := record.ExePath
	if image == "" {
		image = record.Comm
	}

	return map[string]interface{}{
		"id":             rowID,
		"TargetFilename": record.Path,
		"Image":          image,
		"CommandLine":    record.CmdLine,
		"User":           record.Username,
		"ProcessId":      int64(record.PID),
	}
}
