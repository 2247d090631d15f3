/*
seed.go - Demo data seeding

PURPOSE:
  Populates a fresh database with a manager, two employees, the Portuguese
  bank holidays for 2025-2026, and one pre-approved winter vacation with
  its ledger debit. Idempotent: existing rows are left alone.
*/
package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/absence-engine/absence"
)

// SeedStore is what the demo seeder needs from the backing store.
type SeedStore interface {
	absence.Store
	absence.AdminStore
}

// SeedDemoData loads the demo dataset. Safe to call on every startup.
func SeedDemoData(ctx context.Context, store SeedStore, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.Info("seeding demo data")

	manager := absence.User{ID: "manager", Email: "manager@example.com"}
	johnSmith := absence.User{ID: "john.smith", Email: "john.smith@example.com"}
	johnDoe := absence.User{ID: "john.doe", Email: "john.doe@example.com"}

	users := []absence.User{manager, johnSmith, johnDoe}
	for _, u := range users {
		if err := store.CreateUser(ctx, u); err != nil {
			return err
		}
	}

	profiles := []absence.Profile{
		{UserID: manager.ID, FullName: "Manager User", JobTitle: "Manager"},
		{UserID: johnSmith.ID, ManagerID: manager.ID, FullName: "John Smith", JobTitle: "Software Developer"},
		{UserID: johnDoe.ID, ManagerID: manager.ID, FullName: "John Doe", JobTitle: "Business Analyst"},
	}
	for _, p := range profiles {
		if err := store.CreateProfile(ctx, p); err != nil {
			return err
		}
	}

	if err := seedHolidays(ctx, store); err != nil {
		return err
	}

	// One pre-approved winter vacation with its ledger backing, unless a
	// previous run already created it.
	existing, err := store.FindOverlapping(ctx,
		johnSmith.ID, absence.NewDate(2025, time.December, 22), absence.NewDate(2025, time.December, 29), "")
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		now := time.Now().UTC()
		winter := absence.AbsenceRequest{
			ID:         uuid.NewString(),
			EmployeeID: johnSmith.ID,
			StartDate:  absence.NewDate(2025, time.December, 22),
			EndDate:    absence.NewDate(2025, time.December, 29),
			Reason:     "Winter Vacation",
			Status:     absence.StatusApproved,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := store.SaveRequest(ctx, &winter); err != nil {
			return err
		}
		if err := store.AppendEntry(ctx, absence.LedgerEntry{
			ID:          uuid.NewString(),
			EmployeeID:  johnSmith.ID,
			RequestID:   winter.ID,
			Year:        2025,
			Amount:      -5,
			Description: "Winter Vacation 2025",
			CreatedAt:   now,
		}); err != nil {
			return err
		}
	}

	log.Info("demo data ready")
	return nil
}

func seedHolidays(ctx context.Context, store SeedStore) error {
	type holiday struct {
		year  int
		month time.Month
		day   int
		name  string
	}

	// Portuguese bank holidays, 2025-2026.
	holidays := []holiday{
		{2025, time.January, 1, "New Year's Day"},
		{2025, time.April, 18, "Good Friday"},
		{2025, time.April, 20, "Easter Sunday"},
		{2025, time.April, 25, "Freedom Day"},
		{2025, time.May, 1, "Labor Day"},
		{2025, time.June, 10, "Portugal Day"},
		{2025, time.June, 19, "Corpus Christi"},
		{2025, time.August, 15, "Assumption of Mary"},
		{2025, time.October, 5, "Republic Day"},
		{2025, time.November, 1, "All Saints' Day"},
		{2025, time.December, 1, "Restoration of Independence"},
		{2025, time.December, 8, "Immaculate Conception"},
		{2025, time.December, 25, "Christmas Day"},

		{2026, time.January, 1, "New Year's Day"},
		{2026, time.April, 3, "Good Friday"},
		{2026, time.April, 5, "Easter Sunday"},
		{2026, time.April, 25, "Freedom Day"},
		{2026, time.May, 1, "Labor Day"},
		{2026, time.June, 4, "Corpus Christi"},
		{2026, time.June, 10, "Portugal Day"},
		{2026, time.August, 15, "Assumption of Mary"},
		{2026, time.October, 5, "Republic Day"},
		{2026, time.November, 1, "All Saints' Day"},
		{2026, time.December, 1, "Restoration of Independence"},
		{2026, time.December, 8, "Immaculate Conception"},
		{2026, time.December, 25, "Christmas Day"},
	}

	for _, h := range holidays {
		err := store.AddHoliday(ctx, absence.BankHoliday{
			Date: absence.NewDate(h.year, h.month, h.day),
			Name: h.name,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
