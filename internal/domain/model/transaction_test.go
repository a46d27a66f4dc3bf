package model_test

import (
	"errors"
	"testing"
	"time"

	model "github.com/okian/spendseg/internal/domain/model"
	"github.com/shopspring/decimal"
	"github.com/smartystreets/goconvey/convey"
)

func TestTransaction(t *testing.T) {
	convey.Convey("Given a Transaction", t, func() {
		tx := model.Transaction{
			ID:       "tx-1",
			Amount:   decimal.RequireFromString("1234.56"),
			Category: "Shopping",
			Date:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		}

		convey.Convey("Then the float amount matches the decimal", func() {
			convey.So(tx.AmountFloat(), convey.ShouldAlmostEqual, 1234.56, 1e-9)
		})

		convey.Convey("When the category is blank", func() {
			tx.Category = "  "

			convey.Convey("Then it is reported as Other", func() {
				convey.So(tx.CategoryOrOther(), convey.ShouldEqual, model.OtherCategory)
			})
		})

		convey.Convey("When extracting amounts from a slice", func() {
			amounts := model.Amounts([]model.Transaction{tx, {Amount: decimal.NewFromInt(7)}})

			convey.Convey("Then order is preserved", func() {
				convey.So(amounts, convey.ShouldHaveLength, 2)
				convey.So(amounts[1], convey.ShouldEqual, 7.0)
			})
		})
	})
}

func TestParseDate(t *testing.T) {
	convey.Convey("Given date strings in accepted layouts", t, func() {
		for _, s := range []string{"2025-03-01", "2025-03-01T10:00:00Z", "2025-03-01 10:00:00", "01/03/2025"} {
			ts, err := model.ParseDate(s)
			convey.So(err, convey.ShouldBeNil)
			convey.So(ts.Year(), convey.ShouldEqual, 2025)
			convey.So(ts.Month(), convey.ShouldEqual, time.March)
			convey.So(ts.Day(), convey.ShouldEqual, 1)
		}

		convey.Convey("When the layout is unknown", func() {
			_, err := model.ParseDate("March first")

			convey.Convey("Then ErrInvalidDate is returned", func() {
				convey.So(errors.Is(err, model.ErrInvalidDate), convey.ShouldBeTrue)
			})
		})
	})
}

func TestParseAmount(t *testing.T) {
	convey.Convey("Given amount strings", t, func() {
		d, err := model.ParseAmount("12,50")
		convey.So(err, convey.ShouldBeNil)
		convey.So(d.String(), convey.ShouldEqual, "12.5")

		_, err = model.ParseAmount("twelve")
		convey.So(err, convey.ShouldNotBeNil)
	})
}
