package labeling_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/okian/spendseg/internal/domain/features"
	"github.com/okian/spendseg/internal/domain/labeling"
	"github.com/okian/spendseg/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func tx(amount int64, category string) model.Transaction {
	return model.Transaction{Amount: decimal.NewFromInt(amount), Category: category}
}

func TestLabeler_Label(t *testing.T) {
	Convey("Given the default labeler", t, func() {
		l := labeling.NewLabeler()

		Convey("Amounts fall into the first bracket they exceed", func() {
			So(l.Label(decimal.NewFromInt(6000), "Other"), ShouldEqual, "Premium Expenses")
			So(l.Label(decimal.NewFromInt(5000), "Other"), ShouldEqual, "High-Value Purchases")
			So(l.Label(decimal.NewFromInt(2001), "Other"), ShouldEqual, "High-Value Purchases")
			So(l.Label(decimal.NewFromInt(1500), "Other"), ShouldEqual, "Regular Expenses")
			So(l.Label(decimal.RequireFromString("500.01"), "Other"), ShouldEqual, "Daily Essentials")
			So(l.Label(decimal.NewFromInt(500), "Other"), ShouldEqual, "Small Expenses")
		})

		Convey("Recognized categories are appended", func() {
			So(l.Label(decimal.NewFromInt(6000), "Travel"), ShouldEqual, "Premium Expenses (Travel)")
			So(l.Label(decimal.NewFromInt(10), "Groceries"), ShouldEqual, "Small Expenses (Groceries)")
		})

		Convey("Unrecognized categories are treated as Other", func() {
			So(l.Label(decimal.NewFromInt(10), "groceries"), ShouldEqual, "Small Expenses")
			So(l.Label(decimal.NewFromInt(10), "Personal Care"), ShouldEqual, "Small Expenses")
		})

		Convey("The compact table recognizes its own entries", func() {
			compact := labeling.NewLabeler(labeling.WithCategoryTable(features.CompactCategories()))
			So(compact.Label(decimal.NewFromInt(10), "Personal Care"), ShouldEqual, "Small Expenses (Personal Care)")
			So(compact.Label(decimal.NewFromInt(10), "Rent"), ShouldEqual, "Small Expenses")
		})
	})
}

func TestSummarize(t *testing.T) {
	Convey("Given cluster members", t, func() {
		members := []model.Transaction{
			tx(100, "Shopping"),
			tx(300, "Travel"),
			tx(200, "Travel"),
			tx(400, "Shopping"),
			tx(500, "unknown"),
		}
		st := labeling.Summarize(members, features.DefaultCategories())

		Convey("Then totals and averages are exact", func() {
			So(st.Count, ShouldEqual, 5)
			So(st.Total.Equal(decimal.NewFromInt(1500)), ShouldBeTrue)
			So(st.Average.Equal(decimal.NewFromInt(300)), ShouldBeTrue)
		})

		Convey("And a frequency tie goes to the category seen first", func() {
			So(st.DominantCategory, ShouldEqual, "Shopping")
		})
	})

	Convey("Given no members", t, func() {
		st := labeling.Summarize(nil, features.DefaultCategories())

		Convey("Then the stats are zero with an Other category", func() {
			So(st.Count, ShouldEqual, 0)
			So(st.Average.IsZero(), ShouldBeTrue)
			So(st.DominantCategory, ShouldEqual, model.OtherCategory)
		})
	})
}

func TestLabeler_LabelCluster(t *testing.T) {
	Convey("Given a mixed cluster", t, func() {
		members := []model.Transaction{
			tx(6000, "Travel"),
			tx(100, "Groceries"),
			tx(200, "Groceries"),
		}
		st := labeling.Summarize(members, features.DefaultCategories())

		Convey("When labeling by aggregate", func() {
			label := labeling.NewLabeler().LabelCluster(st, members)

			Convey("Then the average and dominant category decide", func() {
				So(label, ShouldEqual, "High-Value Purchases (Groceries)")
			})
		})

		Convey("When labeling by representative", func() {
			l := labeling.NewLabeler(labeling.WithStrategy(labeling.StrategyRepresentative))
			label := l.LabelCluster(st, members)

			Convey("Then the first member decides", func() {
				So(label, ShouldEqual, "Premium Expenses (Travel)")
			})

			Convey("And an empty cluster falls back to its stats", func() {
				So(l.LabelCluster(labeling.Summarize(nil, features.DefaultCategories()), nil), ShouldEqual, "Small Expenses")
			})
		})
	})
}

func TestParseStrategy(t *testing.T) {
	Convey("Strategy names are parsed", t, func() {
		s, err := labeling.ParseStrategy("")
		So(err, ShouldBeNil)
		So(s, ShouldEqual, labeling.StrategyAggregate)

		s, err = labeling.ParseStrategy("representative")
		So(err, ShouldBeNil)
		So(s, ShouldEqual, labeling.StrategyRepresentative)

		_, err = labeling.ParseStrategy("median")
		So(errors.Is(err, labeling.ErrUnknownStrategy), ShouldBeTrue)
	})
}
