package sampledata_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/spendseg/internal/domain/features"
	"github.com/okian/spendseg/internal/sampledata"
)

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		start := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
		txs := sampledata.New(7, sampledata.WithStart(start), sampledata.WithSpan(30*24*time.Hour)).Transactions(200)

		Convey("Then it produces the requested number of well formed records", func() {
			So(txs, ShouldHaveLength, 200)
			table := features.DefaultCategories()
			ids := map[string]bool{}
			for _, tx := range txs {
				So(tx.Amount.IsPositive(), ShouldBeTrue)
				So(table.Recognized(tx.Category), ShouldBeTrue)
				So(tx.Date.Before(start), ShouldBeFalse)
				So(tx.Date.Before(start.Add(31*24*time.Hour)), ShouldBeTrue)
				ids[tx.ID] = true
			}
			So(ids, ShouldHaveLength, 200)
		})

		Convey("And dates never go backwards", func() {
			for i := 1; i < len(txs); i++ {
				So(txs[i].Date.Before(txs[i-1].Date), ShouldBeFalse)
			}
		})

		Convey("And the same seed repeats the sequence", func() {
			again := sampledata.New(7, sampledata.WithStart(start), sampledata.WithSpan(30*24*time.Hour)).Transactions(200)
			So(again, ShouldResemble, txs)
		})
	})

	Convey("Given two different seeds", t, func() {
		a := sampledata.Transactions(1, 50)
		b := sampledata.Transactions(2, 50)

		Convey("Then the histories differ", func() {
			So(a, ShouldNotResemble, b)
		})
	})
}
