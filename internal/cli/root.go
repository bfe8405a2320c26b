package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) getStatus() string {
	s := ""
	if a.userID != "" {
		s = a.userID + " "
	}
	if a.coupleID != "" {
		s = s + a.coupleID
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", strings.TrimSpace(s))
	}
	return s
}

func (a *App) Root(ctx context.Context) {

	fmt.Println("Welcome to the diary vault CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("diary %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.hasCouple() {
				fmt.Println("Available commands: init, status, add, (l)ist, show, update, rotate, export, import, breakup, recover, purge, exit")
			} else {
				fmt.Println("Available commands: use <couple-id>, recover, exit")
			}

		case "use":
			if len(args) < 1 {
				fmt.Println("Usage: use <couple-id> [user-id]")
				continue
			}
			a.coupleID = args[0]
			if len(args) > 1 {
				a.userID = args[1]
			}
			if err := a.ensureCouple(ctx); err != nil {
				fmt.Println(err.Error())
			}

		case "init":
			a.initKeys(ctx)
		case "status":
			a.status(ctx)
		case "add":
			a.add(ctx)
		case "l", "list":
			a.list(ctx)
		case "show":
			a.show(ctx, args)
		case "update":
			a.update(ctx, args)
		case "rotate":
			a.rotate(ctx)
		case "export":
			a.exportData(ctx)
		case "import":
			a.importData(ctx, args)
		case "breakup":
			a.breakup(ctx)
		case "recover":
			a.recoverArchive(ctx, args)
		case "purge":
			a.purge(ctx)

		case "exit", "quit":
			fmt.Println("Bye!")
			return

		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}

// requireCouple nags the user when no couple is selected yet.
func (a *App) requireCouple() bool {
	if !a.hasCouple() {
		fmt.Println("Select a couple first: use <couple-id>")
		return false
	}
	return true
}
