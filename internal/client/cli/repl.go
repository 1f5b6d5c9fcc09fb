package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context, args []string) error

	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	New(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Pin(ctx context.Context, args []string) error

	Cover(ctx context.Context, args []string) error
	Attach(ctx context.Context, args []string) error
	Detach(ctx context.Context, args []string) error
	Image(ctx context.Context, args []string) error

	Sync(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	Evict(ctx context.Context, args []string) error
	Reset(ctx context.Context, args []string) error
}

const helpText = `Available commands:
  (l)ist                 list notes, pinned first
  show <id>              show a note
  new                    create a note
  edit <id>              edit title, content or color
  delete <id>            delete a note
  pin <id>               pin or unpin a note
  cover <id> <file>      set the cover image (online)
  attach <id> <file>     attach a file (online)
  detach <id> <attId>    remove an attachment (online)
  image <id>             resolve the cover through the image cache
  sync                   replay pending changes now
  status                 connection, pending changes, last sync
  evict [days]           drop cached images older than days
  reset                  discard pending changes
  login | logout         change the session token
  exit | quit            leave the program`

// runREPL reads commands line by line from reader and dispatches them to a.
// Errors from handlers are printed and the loop goes on. The loop exits on
// EOF, when ctx is done, or when the user types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("nk %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "login":
			cmdErr = a.Login(ctx, args)
		case "logout":
			cmdErr = a.Logout(ctx, args)
		case "l", "list":
			cmdErr = a.List(ctx, args)
		case "show":
			cmdErr = a.Show(ctx, args)
		case "new":
			cmdErr = a.New(ctx, args)
		case "edit":
			cmdErr = a.Edit(ctx, args)
		case "delete":
			cmdErr = a.Delete(ctx, args)
		case "pin":
			cmdErr = a.Pin(ctx, args)
		case "cover":
			cmdErr = a.Cover(ctx, args)
		case "attach":
			cmdErr = a.Attach(ctx, args)
		case "detach":
			cmdErr = a.Detach(ctx, args)
		case "image":
			cmdErr = a.Image(ctx, args)
		case "sync":
			cmdErr = a.Sync(ctx, args)
		case "status":
			cmdErr = a.Status(ctx, args)
		case "evict":
			cmdErr = a.Evict(ctx, args)
		case "reset":
			cmdErr = a.Reset(ctx, args)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
	}
}
