package templates

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
)

const maxImportRows = 1000

var importColumns = []string{"title", "slug", "category", "description", "price", "file_url", "published"}

// Import inserts each valid CSV row independently and reports the rest by
// line number.
func (s *service) Import(ctx context.Context, actorID uuid.UUID, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "csv header row is required")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read csv header")
	}
	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: []ImportError{}}
	seen := map[string]int{}
	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read csv")
			}
			result.skip(parseErr.StartLine, "malformed csv row")
			continue
		}
		line, _ := reader.FieldPos(0)
		rows++
		if rows > maxImportRows {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("imports are limited to %d rows", maxImportRows))
		}

		input, err := parseRow(record, columns)
		if err != nil {
			result.skip(line, err.Error())
			continue
		}
		tpl, err := buildTemplate(input)
		if err != nil {
			result.skip(line, publicMessage(err))
			continue
		}
		if first, dup := seen[tpl.Slug]; dup {
			result.skip(line, fmt.Sprintf("duplicate slug %q (first seen on line %d)", tpl.Slug, first))
			continue
		}
		seen[tpl.Slug] = line
		if actorID != uuid.Nil {
			tpl.CreatedBy = &actorID
		}
		if err := s.insert(ctx, tpl); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
				result.skip(line, fmt.Sprintf("slug %q already exists", tpl.Slug))
				continue
			}
			return nil, err
		}
		result.Imported++
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"imported": result.Imported,
		"skipped":  result.Skipped,
	}), "templates.imported")
	return result, nil
}

func (r *ImportResult) skip(line int, message string) {
	r.Skipped++
	r.Errors = append(r.Errors, ImportError{Line: line, Message: message})
}

func mapColumns(header []string) (map[string]int, error) {
	columns := map[string]int{}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		for _, known := range importColumns {
			if key == known {
				columns[key] = i
			}
		}
	}
	if _, ok := columns["title"]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "csv header must include a title column").
			WithDetails(map[string]any{"columns": importColumns})
	}
	return columns, nil
}

func parseRow(record []string, columns map[string]int) (CreateInput, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	input := CreateInput{
		Title:    field("title"),
		Slug:     field("slug"),
		Category: field("category"),
	}
	if input.Title == "" {
		return input, errors.New("title is required")
	}
	if v := field("description"); v != "" {
		input.Description = &v
	}
	if v := field("file_url"); v != "" {
		input.FileURL = &v
	}
	if v := field("price"); v != "" {
		price, err := decimal.NewFromString(strings.TrimPrefix(v, "$"))
		if err != nil {
			return input, fmt.Errorf("invalid price %q", v)
		}
		input.Price = &price
	}
	if v := field("published"); v != "" {
		published, err := parseBool(v)
		if err != nil {
			return input, fmt.Errorf("invalid published value %q", v)
		}
		input.Published = published
	}
	return input, nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return strconv.ParseBool(v)
}

func publicMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return typed.Message()
	}
	return err.Error()
}
