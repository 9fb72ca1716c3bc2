package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pdxmph/todo-tui/internal/tasks"
)

// CreateFixturesDatabase creates a database with realistic sample todos
func CreateFixturesDatabase(driver, dbPath string) error {
	if err := Initialize(driver, dbPath); err != nil {
		return fmt.Errorf("initializing fixtures database: %w", err)
	}

	database, err := Open(driver, dbPath)
	if err != nil {
		return fmt.Errorf("opening fixtures database: %w", err)
	}
	defer database.Close()

	now := time.Now()
	day := 24 * time.Hour
	at := func(d time.Duration) int64 { return now.Add(d).UnixMilli() }

	fixtures := []tasks.Document{
		{Title: "Buy milk", DueDate: tasks.Epoch(at(6 * time.Hour))},
		{Title: "Renew passport", DueDate: tasks.Epoch(at(14 * day))},
		{Title: "Call the plumber", DueDate: tasks.Epoch(at(-day))},
		{Title: "Water the plants", DueDate: tasks.Epoch(at(-2 * day)), IsDone: true},
		{Title: "File expense report", DueDate: tasks.Epoch(at(-5 * day)), IsDone: true},

		// Written by an older client that stored dates as text
		{Title: "Book dentist appointment", DueDate: tasks.LegacyString(now.Add(3 * day).UTC().Format(time.RFC3339))},
		{Title: "Return library books", DueDate: tasks.LegacyString("sometime next week")},
	}

	for i, doc := range fixtures {
		doc.ID = uuid.NewString()
		doc.CreatedAt = now.Add(time.Duration(i-len(fixtures)) * time.Minute).UnixMilli()
		if err := database.AddTodo(doc); err != nil {
			return fmt.Errorf("adding fixture todo %s: %w", doc.Title, err)
		}
	}

	return nil
}
