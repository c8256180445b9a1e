package services

import (
	"testing"
	"time"

	"backoffice/internal/pagination"
	"backoffice/internal/testutil"
)

func TestPositionSnapshotList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewPositionSnapshotService(db)

	org := testutil.CreateTestOrganization(t, db)
	ctx := orgContext(org.ID)
	portfolio := testutil.CreateTestPortfolio(t, db, org.ID, "USD")
	apple := testutil.CreateTestInstrument(t, db, org.ID, "US0378331005", "AAPL")
	msft := testutil.CreateTestInstrument(t, db, org.ID, "US5949181045", "MSFT")

	earlier := testutil.AsOf.AddDate(0, -1, 0)
	testutil.CreateTestSnapshot(t, db, org.ID, portfolio.ID, apple.ID, earlier)
	testutil.CreateTestSnapshot(t, db, org.ID, portfolio.ID, apple.ID, testutil.AsOf)
	testutil.CreateTestSnapshot(t, db, org.ID, portfolio.ID, msft.ID, testutil.AsOf)

	t.Run("newest_first_with_instrument", func(t *testing.T) {
		page, err := svc.List(ctx, portfolio.ID, nil, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 3 {
			t.Fatalf("expected 3 snapshots, got %d", page.TotalItems)
		}
		if !page.Data[0].AsOfDate.Equal(testutil.AsOf) || !page.Data[2].AsOfDate.Equal(earlier) {
			t.Errorf("expected newest date first, got %v and %v", page.Data[0].AsOfDate, page.Data[2].AsOfDate)
		}
		if page.Data[0].Instrument == nil {
			t.Error("expected instrument to be loaded")
		}
	})

	t.Run("filtered_by_date", func(t *testing.T) {
		asOf := testutil.AsOf.Add(15 * time.Hour)
		page, err := svc.List(ctx, portfolio.ID, &asOf, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 2 {
			t.Errorf("expected 2 snapshots on the as-of date, got %d", page.TotalItems)
		}
	})

	t.Run("other_organization", func(t *testing.T) {
		other := testutil.CreateTestOrganization(t, db)
		page, err := svc.List(orgContext(other.ID), portfolio.ID, nil, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.TotalItems != 0 {
			t.Errorf("expected no snapshots, got %d", page.TotalItems)
		}
	})

	t.Run("existing_instrument_ids", func(t *testing.T) {
		ids, err := svc.ExistingInstrumentIDs(ctx, portfolio.ID, testutil.AsOf)
		testutil.AssertNoError(t, err)
		if len(ids) != 2 || !ids[apple.ID] || !ids[msft.ID] {
			t.Errorf("expected both instruments, got %v", ids)
		}

		ids, err = svc.ExistingInstrumentIDs(ctx, portfolio.ID, earlier.AddDate(0, 0, -1))
		testutil.AssertNoError(t, err)
		if len(ids) != 0 {
			t.Errorf("expected none, got %v", ids)
		}
	})
}
