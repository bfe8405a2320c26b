package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/couplesdiary/cryptocore/internal/archive"
	"github.com/couplesdiary/cryptocore/internal/common"
)

func (a *App) breakup(ctx context.Context) {
	if !a.requireCouple() {
		return
	}

	confirm, err := GetSimpleText(a.reader,
		"This ends the relationship and locks shared data. Type 'yes' to continue", os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	if confirm != "yes" {
		fmt.Println("Cancelled")
		return
	}

	opts := archive.DefaultBreakupOptions()
	opts.RecoveryPeriodDays = a.config.RecoveryPeriodDays

	answer, err := GetSimpleText(a.reader, "Allow recovery within the grace period? (Y/n)", os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	if answer == "n" || answer == "N" {
		opts.AllowDataRecovery = false
	}

	result, err := a.archive.ActivateBreakupMode(ctx, a.userID, a.coupleID, opts)
	if err != nil {
		fmt.Println(err.Error())
		return
	}

	fmt.Println("Breakup mode activated")
	if result.ArchiveID != "" {
		fmt.Println("Archive id:", result.ArchiveID)
		fmt.Println("Archive password (shown once, store it safely):", result.ArchivePassword)
	}
	a.coupleID = ""
}

func (a *App) recoverArchive(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: recover <archive-id>")
		return
	}
	archiveID := args[0]

	// An empty password lets the service fall back to the session cache or
	// the persisted recovery envelope.
	answer, err := GetSimpleText(a.reader, "Do you have the archive password? (y/N)", os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return
	}

	password := ""
	if answer == "y" || answer == "Y" {
		pw, perr := GetPassword(os.Stdout, "Enter archive password")
		if perr != nil {
			fmt.Println(perr.Error())
			return
		}
		password = string(pw)
		common.WipeByteArray(pw)
	}

	if err := a.archive.RecoverFromBreakup(ctx, archiveID, password); err != nil {
		fmt.Println(err.Error())
		return
	}
	fmt.Println("Recovered. Re-initialize keys with 'init' to resume writing.")
}

func (a *App) purge(ctx context.Context) {
	if !a.requireCouple() {
		return
	}

	confirm, err := GetSimpleText(a.reader,
		"This permanently deletes all shared data and keys. Type 'delete' to continue", os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	if confirm != "delete" {
		fmt.Println("Cancelled")
		return
	}

	if err := a.archive.PermanentlyDeleteData(ctx, a.coupleID, a.userID); err != nil {
		fmt.Println(err.Error())
		return
	}
	fmt.Println("All shared data deleted")
	a.coupleID = ""
}
