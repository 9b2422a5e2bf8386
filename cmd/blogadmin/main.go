// Command blogadmin is the interactive user-management tool for the blog
// database. It talks to SQLite directly, so run it on the host that owns the
// database file.
//
// Usage:
//
//	blogadmin [-db data/blog.db]
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/sakif/markdown-blog/internal/auth"
	"github.com/sakif/markdown-blog/internal/logger"
	sqliteRepo "github.com/sakif/markdown-blog/internal/repository/sqlite"
	"github.com/sakif/markdown-blog/internal/service"
	"github.com/sakif/markdown-blog/internal/validation"
)

func main() {
	defaultDB := os.Getenv("DB_PATH")
	if defaultDB == "" {
		defaultDB = "data/blog.db"
	}
	dbPath := flag.String("db", defaultDB, "Path to the SQLite database")
	flag.Parse()

	// Service logs go to stderr and stay quiet unless something goes wrong.
	log := logger.New(os.Stderr, envOr("LOG_LEVEL", "warn"), "", "")

	db, err := sqliteRepo.New(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	admin := service.NewAdminService(db, auth.NewPasswordService(), validation.New(), log)

	// Ctrl+C exits cleanly even while a prompt is blocked on stdin.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		fmt.Println("\nBye.")
		db.Close()
		os.Exit(0)
	}()

	c := &cli{
		admin: admin,
		in:    bufio.NewReader(os.Stdin),
		out:   os.Stdout,
	}
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		c.readSecret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stdout)
			return string(b), err
		}
	}

	c.run(context.Background())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
