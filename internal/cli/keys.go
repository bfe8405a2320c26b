package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/couplesdiary/cryptocore/internal/common"
	"github.com/couplesdiary/cryptocore/internal/keys"
)

func (a *App) initKeys(ctx context.Context) {
	if !a.requireCouple() {
		return
	}

	answer, err := GetSimpleText(a.reader, "Derive keys from a shared passphrase? (y/N)", os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return
	}

	p := keys.InitParams{UserID: a.userID, CoupleID: a.coupleID}
	if answer == "y" || answer == "Y" {
		pw, err := GetPassword(os.Stdout, "Enter shared passphrase")
		if err != nil {
			fmt.Println(err.Error())
			return
		}
		defer common.WipeByteArray(pw)
		p.MasterPassword = pw
	}

	set, err := a.keys.InitializeCoupleKeys(ctx, p)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	fmt.Printf("Keys initialized (version %d)\n", set.Version)
}

func (a *App) status(ctx context.Context) {
	if !a.requireCouple() {
		return
	}

	enabled, version, err := a.keys.Status(ctx, a.coupleID)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	if !enabled {
		fmt.Println("Encryption: not initialized")
		return
	}
	fmt.Printf("Encryption: enabled (key version %d)\n", version)
}

func (a *App) rotate(ctx context.Context) {
	if !a.requireCouple() {
		return
	}

	rotation, err := a.keys.RotateKeys(ctx, a.coupleID)
	if err != nil {
		fmt.Println(err.Error())
		return
	}

	report, err := a.content.ReencryptAllEntries(ctx, a.coupleID, rotation)
	if err != nil {
		fmt.Println(err.Error())
		return
	}

	if !report.Clean() {
		fmt.Printf("Rotation incomplete: %d of %d entries failed, old keys retained\n",
			report.Errors, report.Processed)
		for _, id := range report.Failed {
			fmt.Println("  failed:", id)
		}
		return
	}

	rotation.Discard()
	fmt.Printf("Rotated keys and re-encrypted %d entries (now version %d)\n",
		report.Processed, rotation.New.Version)
}
