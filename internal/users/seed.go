package users

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/querypipe/internal/fault"
	"github.com/roach88/querypipe/internal/record"
	"github.com/roach88/querypipe/internal/store"
)

// User is one row to insert.
type User struct {
	ID    string
	Name  string
	Email string
	Age   float64
}

// ReadCSV parses rows of name,email,age. A header row whose first cell is
// "name" is skipped. Names and emails are stored in NFC form. Each user is
// given a fresh random id.
func ReadCSV(r io.Reader) ([]User, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	var users []User
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fault.Configuration("read csv", err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "name") {
			continue
		}
		age, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, fault.Configurationf("read csv", "line %d: age %q is not a number", line, row[2])
		}
		users = append(users, User{
			ID:    uuid.NewString(),
			Name:  norm.NFC.String(strings.TrimSpace(row[0])),
			Email: norm.NFC.String(strings.TrimSpace(row[1])),
			Age:   age,
		})
	}
	return users, nil
}

func ageValue(age float64) record.Value {
	if n, ok := record.AsInt64(record.Float(age)); ok {
		return record.Int(n)
	}
	return record.Float(age)
}

// Insert writes users in a single transaction. Either every row lands or
// none do.
func (r *Repository) Insert(ctx context.Context, users []User) (int, error) {
	if len(users) == 0 {
		return 0, nil
	}
	queries := make([]record.Query, len(users))
	for i, u := range users {
		q, err := toQuery(r.sql.Insert(Table).Columns(Columns...).
			Values(u.ID, u.Name, u.Email, ageValue(u.Age)))
		if err != nil {
			return 0, err
		}
		queries[i] = q
	}

	return store.Within(ctx, r.scope, func(ctx context.Context, h *store.Handle) (int, error) {
		return store.InTx(ctx, h, func(ctx context.Context, h *store.Handle) (int, error) {
			for i, q := range queries {
				if _, err := h.Exec(ctx, q); err != nil {
					return i, fmt.Errorf("insert %s: %w", users[i].Email, err)
				}
			}
			return len(queries), nil
		})
	})
}

// SeedCSV creates the table and inserts the users parsed from r.
func (r *Repository) SeedCSV(ctx context.Context, in io.Reader) (int, error) {
	users, err := ReadCSV(in)
	if err != nil {
		return 0, err
	}
	if err := r.CreateTable(ctx); err != nil {
		return 0, err
	}
	n, err := r.Insert(ctx, users)
	if err != nil {
		return 0, err
	}
	r.logger.Info("seeded users", "count", n)
	return n, nil
}
