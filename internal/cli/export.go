package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/couplesdiary/cryptocore/internal/common"
	"github.com/couplesdiary/cryptocore/internal/export"
)

func (a *App) exportData(ctx context.Context) {
	if !a.requireCouple() {
		return
	}

	opts := export.Options{IncludePartnerData: true, IncludeMedia: true}

	answer, err := GetSimpleText(a.reader, "Encrypt the export with a password? (y/N)", os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	if answer == "y" || answer == "Y" {
		pw, err := GetPassword(os.Stdout, "Enter export password")
		if err != nil {
			fmt.Println(err.Error())
			return
		}
		opts.EncryptExport = true
		opts.ExportPassword = string(pw)
		common.WipeByteArray(pw)
	}

	result, err := a.export.ExportCoupleData(ctx, a.userID, a.coupleID, opts)
	if err != nil {
		fmt.Println(err.Error())
		return
	}

	path, err := a.export.WriteExportFile(result, a.config.ExportDir)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	fmt.Printf("Exported to %s (checksum %s)\n", path, result.Checksum)
}

func (a *App) importData(ctx context.Context, args []string) {
	if !a.requireCouple() {
		return
	}
	if len(args) == 0 {
		fmt.Println("Usage: import <file>")
		return
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Println(err.Error())
		return
	}

	bundle, err := a.export.ImportCoupleData(ctx, data, "")
	if errors.Is(err, common.ErrPasswordRequired) {
		pw, perr := GetPassword(os.Stdout, "Enter export password")
		if perr != nil {
			fmt.Println(perr.Error())
			return
		}
		bundle, err = a.export.ImportCoupleData(ctx, data, string(pw))
		common.WipeByteArray(pw)
	}
	if err != nil {
		fmt.Println(err.Error())
		return
	}

	if err := a.export.Restore(ctx, bundle); err != nil {
		fmt.Println(err.Error())
		return
	}
	fmt.Printf("Imported %d entries, %d plans, %d memories\n",
		len(bundle.Entries), len(bundle.Plans), len(bundle.Memories))
}
