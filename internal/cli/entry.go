package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/couplesdiary/cryptocore/internal/content"
)

func (a *App) add(ctx context.Context) {
	if !a.requireCouple() {
		return
	}

	text, err := GetMultiline(a.reader, "Enter diary entry:", os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	if text == "" {
		fmt.Println("Nothing to save")
		return
	}

	mood, err := GetSimpleText(a.reader, "Mood (optional):", os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return
	}

	entry, err := a.content.CreateSecureEntry(ctx, a.coupleID, a.userID, text, mood, nil)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	fmt.Println("Saved entry", entry.ID)
}

func (a *App) show(ctx context.Context, args []string) {
	if !a.requireCouple() {
		return
	}
	if len(args) == 0 {
		fmt.Println("Usage: show <entry-id>")
		return
	}

	rows, err := a.content.SecureEntries(ctx, a.coupleID, 0)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	for _, e := range rows {
		if e.ID != args[0] {
			continue
		}
		fmt.Printf("Created: %s\nAuthor: %s\nMood: %s\n\n%s\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.AuthorID, e.Mood, e.Content)
		for _, m := range e.Media {
			fmt.Printf("Media: %s (%s)\n", m.Filename, m.OriginURL)
		}
		return
	}
	fmt.Println("No such entry")
}

func (a *App) update(ctx context.Context, args []string) {
	if !a.requireCouple() {
		return
	}
	if len(args) == 0 {
		fmt.Println("Usage: update <entry-id>")
		return
	}

	text, err := GetMultiline(a.reader, "New entry text (empty to keep):", os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	mood, err := GetSimpleText(a.reader, "New mood (empty to keep):", os.Stdout)
	if err != nil {
		fmt.Println(err.Error())
		return
	}

	var updates content.EntryUpdate
	if text != "" {
		updates.Content = &text
	}
	if mood != "" {
		updates.Mood = &mood
	}
	if updates.Content == nil && updates.Mood == nil {
		fmt.Println("Nothing to change")
		return
	}

	entry, err := a.content.UpdateSecureEntry(ctx, args[0], a.coupleID, updates)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	fmt.Println("Updated entry", entry.ID)
}

func (a *App) list(ctx context.Context) {
	if !a.requireCouple() {
		return
	}

	entries, err := a.content.SecureEntries(ctx, a.coupleID, 20)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	if len(entries) == 0 {
		fmt.Println("No entries yet")
		return
	}

	for _, e := range entries {
		preview := e.Content
		if e.IsEncrypted {
			preview = "<undecryptable>"
		} else if len(preview) > 60 {
			preview = preview[:60] + "..."
		}
		fmt.Printf("%s  %s  %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.ID, preview)
	}
}
