package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/chaturanga-session/internal/adapter/presenter"
	"github.com/park285/chaturanga-session/internal/engine"
	"github.com/park285/chaturanga-session/internal/engine/bridge"
	"github.com/park285/chaturanga-session/internal/engine/memengine"
	"github.com/park285/chaturanga-session/internal/httpapi"
	"github.com/park285/chaturanga-session/internal/msgcat"
	"github.com/park285/chaturanga-session/internal/notation"
	"github.com/park285/chaturanga-session/internal/session"
)

func main() {
	dialect := flag.String("dialect", "ja", "export dialect (ja|en)")
	enginePath := flag.String("engine", os.Getenv("ENGINE_PATH"), "engine binary; built-in engine when empty")
	serverURL := flag.String("server", "", "also upload the kifu to a running server at this URL")
	messagesDir := flag.String("messages", os.Getenv("MESSAGES_DIR"), "message override directory")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: kifucheck [flags] <kifu file>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("read kifu: %v", err)
	}
	d, ok := notation.ParseDialect(*dialect)
	if !ok {
		log.Fatalf("unknown dialect %q", *dialect)
	}
	catalog, err := msgcat.New(*messagesDir)
	if err != nil {
		log.Fatalf("messages: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var eng engine.Engine = memengine.New()
	if p := strings.TrimSpace(*enginePath); p != "" {
		b, err := bridge.Start(ctx, p, nil)
		if err != nil {
			log.Fatalf("engine: %v", err)
		}
		defer b.Close()
		eng = b
	}

	cfg := session.DefaultConfig()
	cfg.Dialect = d
	sess, err := session.New(eng, cfg, catalog, nil)
	if err != nil {
		log.Fatalf("session: %v", err)
	}

	exit := 0
	n, err := sess.ImportKifu(data)
	var ie *session.ImportError
	switch {
	case errors.As(err, &ie):
		fmt.Printf("NG: move %d %q rejected: %v\n", ie.Index+1, ie.Text, ie.Err)
		fmt.Printf("   %d moves replayed before the error\n", n)
		exit = 1
	case err != nil:
		log.Fatalf("import: %v", err)
	default:
		fmt.Printf("OK: %d moves replayed\n", n)
	}

	f := presenter.NewFormatter(catalog, d)
	fmt.Println()
	fmt.Print(f.View(sess.View()))
	fmt.Println()

	text, err := sess.ExportKifu(time.Now())
	if err != nil {
		log.Fatalf("export: %v", err)
	}
	fmt.Print(text)

	if *serverURL != "" && exit == 0 {
		client := httpapi.NewClient(*serverURL, httpapi.WithTimeout(10*time.Second))
		resp, err := client.ImportKifu(ctx, data)
		if err != nil {
			log.Fatalf("upload: %v", err)
		}
		fmt.Printf("\nuploaded: %d moves, server session %s\n", resp.Applied, resp.State.SessionID)
	}
	os.Exit(exit)
}
