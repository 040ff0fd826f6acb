package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/runnerr0/timesheet/internal/storage"
)

// setStore allows tests to inject a store.
func (c *PurgeCommand) setStore(s storage.Store) {
	c.store = s
}

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	return c.execute(os.Stdin)
}

func (c *PurgeCommand) execute(in io.Reader) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	// Confirmation prompt unless --force
	if !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete ALL timesheet data.")
		fmt.Println("  - All recorded activities")
		fmt.Println("  - The cached summary")
		fmt.Println()
		fmt.Println("This action cannot be undone.")
		fmt.Println()
		fmt.Print(`Type "PURGE" to confirm: `)

		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		input := strings.TrimSpace(scanner.Text())
		if input != "PURGE" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	// Open or use injected store
	store := c.store
	if store == nil {
		a, err := openApp(c.globals)
		if err != nil {
			return err
		}
		defer a.Close()
		store = a.store
	}

	ctx := context.Background()
	if err := store.Purge(ctx); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	// Output
	if c.globals != nil && c.globals.JSON {
		return printJSON(map[string]interface{}{
			"purged":  true,
			"message": "all data deleted",
		})
	}

	fmt.Println("Purged all data. The activity log is empty.")
	return nil
}
