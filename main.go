package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"lotero/internal/app"
	"lotero/internal/config"
	"lotero/internal/ingest"
	"lotero/internal/snapshot"

	log "github.com/sirupsen/logrus"
)

const usage = `usage: lotero <command> [flags]

commands:
  sync             fetch new prize notifications once
  stats            print totals as JSON
  export -o FILE   write a snapshot document ("-" for stdout)
  import -i FILE   merge a snapshot document ("-" for stdin)
  backup           save a snapshot to the configured backend
  restore          merge the snapshot stored in the backend
  clear -yes       delete every prize, setting and sync log
  watch -every D   sync now and then every D
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	app.SetupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer a.Close()

	if err := run(ctx, a, os.Args[1], os.Args[2:]); err != nil {
		log.Errorf("%s: %v", os.Args[1], err)
		a.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	output := fs.String("o", "-", "output file")
	input := fs.String("i", "-", "input file")
	every := fs.Duration("every", a.Config.Sync.Interval, "sync interval")
	yes := fs.Bool("yes", false, "confirm destructive commands")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch cmd {
	case "sync":
		res, err := a.Sync(ctx)
		if errors.Is(err, ingest.ErrSyncInProgress) {
			log.Println("Another sync is running")
			return nil
		}
		if res != nil {
			printJSON(os.Stdout, res)
		}
		return err

	case "stats":
		summary, err := a.Stats(ctx)
		if err != nil {
			return err
		}
		printJSON(os.Stdout, summary)
		return nil

	case "export":
		doc, err := a.Snapshot.Export(ctx)
		if err != nil {
			return err
		}
		data, err := snapshot.Encode(doc)
		if err != nil {
			return err
		}
		if *output == "-" {
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		}
		if err := os.WriteFile(*output, data, 0o644); err != nil {
			return err
		}
		log.Printf("Exported %d records to %s", len(doc.Records), *output)
		return nil

	case "import":
		var data []byte
		var err error
		if *input == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(*input)
		}
		if err != nil {
			return err
		}
		doc, err := snapshot.Decode(data)
		if err != nil {
			return err
		}
		res, err := a.Snapshot.Import(ctx, doc)
		if err != nil {
			return err
		}
		printJSON(os.Stdout, res)
		return nil

	case "backup":
		doc, err := a.Snapshot.Backup(ctx)
		if err != nil {
			return err
		}
		log.Printf("Backed up %d records", len(doc.Records))
		return nil

	case "restore":
		res, err := a.Snapshot.Restore(ctx)
		if err != nil {
			return err
		}
		printJSON(os.Stdout, res)
		return nil

	case "clear":
		if !*yes {
			return fmt.Errorf("refusing to delete all data without -yes")
		}
		if err := a.Store.Clear(ctx); err != nil {
			return err
		}
		log.Println("All local data deleted")
		return nil

	case "watch":
		return a.Watch(ctx, *every)
	}

	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("failed to encode output: %v", err)
	}
}
