package db

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meme-party/internal/game"
)

// LoadCatalog reads the template table into an in-memory catalog so that no
// catalog query ever runs inside a session transaction.
func LoadCatalog(ctx context.Context, conn *gorm.DB, choices int, seed uint64) (*game.StaticCatalog, error) {
	var records []Template
	if err := conn.WithContext(ctx).Order("name ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return game.NewStaticCatalog(toGameTemplates(records), choices, seed), nil
}

// ReadCatalogFile builds a catalog straight from a template CSV for runs
// without a database.
func ReadCatalogFile(path string, choices int, seed uint64) (*game.StaticCatalog, error) {
	records, err := readTemplates(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return game.NewStaticCatalog(toGameTemplates(records), choices, seed), nil
}

func toGameTemplates(records []Template) []game.Template {
	templates := make([]game.Template, 0, len(records))
	for _, record := range records {
		templates = append(templates, game.Template{
			Name:     record.Name,
			ImageURL: record.ImageURL,
			Slots:    record.Slots,
			Example:  []string(record.Example),
		})
	}
	return templates
}

// LoadTemplates reads templates from a CSV (name, image_url, slots, example
// texts separated by "|") and upserts them by name.
func LoadTemplates(ctx context.Context, conn *gorm.DB, path string) (int, error) {
	if conn == nil {
		return 0, nil
	}
	records, err := readTemplates(path)
	if err != nil {
		return 0, err
	}
	upserted := 0
	for _, record := range records {
		err := conn.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"image_url", "slots", "example", "updated_at"}),
		}).Create(&record).Error
		if err != nil {
			return upserted, fmt.Errorf("upsert template %q: %w", record.Name, err)
		}
		upserted++
	}
	return upserted, nil
}

func readTemplates(path string) ([]Template, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var records []Template
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			continue
		}
		record := Template{Name: name, Slots: 2, Example: datatypes.JSONSlice[string]{}}
		if len(row) > 1 {
			record.ImageURL = strings.TrimSpace(row[1])
		}
		if len(row) > 2 && strings.TrimSpace(row[2]) != "" {
			slots, err := strconv.Atoi(strings.TrimSpace(row[2]))
			if err != nil || slots < 1 {
				return nil, fmt.Errorf("line %d: invalid slot count %q", i+1, row[2])
			}
			record.Slots = slots
		}
		if len(row) > 3 && strings.TrimSpace(row[3]) != "" {
			for _, text := range strings.Split(row[3], "|") {
				record.Example = append(record.Example, strings.TrimSpace(text))
			}
		}
		records = append(records, record)
	}
	return records, nil
}
