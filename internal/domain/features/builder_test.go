package features_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/spendseg/internal/domain/features"
	"github.com/okian/spendseg/internal/domain/model"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func tx(amount int64, category string, day int) model.Transaction {
	return model.Transaction{
		Amount:   decimal.NewFromInt(amount),
		Category: category,
		Date:     time.Date(2025, 1, day, 12, 0, 0, 0, time.UTC),
	}
}

func TestBuilder_Build(t *testing.T) {
	Convey("Given a feature builder with the default table", t, func() {
		ctx := context.Background()
		b := features.NewBuilder()

		Convey("When building default features for varied records", func() {
			records := []model.Transaction{
				tx(100, "Shopping", 1),
				tx(600, "Travel", 11),
				tx(1100, "Unknown Thing", 21),
			}
			vectors, nc, err := b.Build(ctx, records, nil)

			Convey("Then one vector per record is produced in order", func() {
				So(err, ShouldBeNil)
				So(vectors, ShouldHaveLength, 3)
				for _, v := range vectors {
					So(v, ShouldHaveLength, 3)
				}
			})

			Convey("And the observed min and max amounts map to exactly 0 and 1", func() {
				So(vectors[0][0], ShouldEqual, 0.0)
				So(vectors[2][0], ShouldEqual, 1.0)
				So(vectors[1][0], ShouldAlmostEqual, 0.5, 1e-12)
			})

			Convey("And dates are normalized over the observed range", func() {
				So(vectors[0][2], ShouldEqual, 0.0)
				So(vectors[2][2], ShouldEqual, 1.0)
				So(vectors[1][2], ShouldAlmostEqual, 0.5, 1e-12)
			})

			Convey("And categories use the fixed semantic table", func() {
				So(vectors[0][1], ShouldAlmostEqual, 3.0/14.0, 1e-12)
				So(vectors[1][1], ShouldAlmostEqual, 8.0/14.0, 1e-12)
				So(vectors[2][1], ShouldEqual, 1.0) // fallback 14/14
			})

			Convey("And the context records first-seen category codes", func() {
				So(nc.SeenCategories["Shopping"], ShouldEqual, 1)
				So(nc.SeenCategories["Travel"], ShouldEqual, 2)
				So(nc.SeenCategories["Unknown Thing"], ShouldEqual, 3)
				So(nc.MinAmount, ShouldEqual, 100.0)
				So(nc.MaxAmount, ShouldEqual, 1100.0)
				So(nc.AmountWidened, ShouldBeFalse)
			})
		})

		Convey("When every record shares one amount and one date", func() {
			records := []model.Transaction{tx(250, "Rent", 5), tx(250, "Rent", 5), tx(250, "Rent", 5)}
			vectors, nc, err := b.Build(ctx, records, []string{"amount", "date"})

			Convey("Then the widened midpoint 0.5 is produced instead of NaN", func() {
				So(err, ShouldBeNil)
				So(nc.AmountWidened, ShouldBeTrue)
				So(nc.DateWidened, ShouldBeTrue)
				for _, v := range vectors {
					So(math.IsNaN(v[0]), ShouldBeFalse)
					So(v[0], ShouldEqual, 0.5)
					So(v[1], ShouldEqual, 0.5)
				}
			})
		})

		Convey("When a shared amount does not round cleanly around its widened range", func() {
			for _, amount := range []string{"2047.8", "1023.9"} {
				same := decimal.RequireFromString(amount)
				records := []model.Transaction{
					{Amount: same, Category: "Travel", Date: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)},
					{Amount: same, Category: "Travel", Date: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)},
				}
				vectors, nc, err := b.Build(ctx, records, []string{"amount", "date"})

				So(err, ShouldBeNil)
				So(nc.AmountWidened, ShouldBeTrue)
				for _, v := range vectors {
					So(v[0], ShouldEqual, 0.5)
					So(v[1], ShouldEqual, 0.5)
				}
			}
		})

		Convey("When every record has the same category", func() {
			records := []model.Transaction{tx(10, "Groceries", 1), tx(90, "Groceries", 2), tx(40, "Groceries", 3)}
			vectors, _, err := b.Build(ctx, records, []string{"category"})

			Convey("Then the category feature is constant code/14", func() {
				So(err, ShouldBeNil)
				for _, v := range vectors {
					So(v[0], ShouldAlmostEqual, 9.0/14.0, 1e-12)
				}
			})
		})

		Convey("When requesting log_amount and an unknown feature", func() {
			records := []model.Transaction{tx(0, "Other", 1), tx(99, "Other", 2)}
			vectors, _, err := b.Build(ctx, records, []string{"log_amount", "velocity"})

			Convey("Then log_amount is ln(1+amount) unnormalized", func() {
				So(err, ShouldBeNil)
				So(vectors[0][0], ShouldEqual, 0.0)
				So(vectors[1][0], ShouldAlmostEqual, math.Log(100), 1e-12)
			})

			Convey("And the unknown name falls back to normalized amount", func() {
				So(vectors[0][1], ShouldEqual, 0.0)
				So(vectors[1][1], ShouldEqual, 1.0)
			})
		})

		Convey("When log_amount normalization is enabled", func() {
			nb := features.NewBuilder(features.WithNormalizedLogAmount(true))
			records := []model.Transaction{tx(0, "Other", 1), tx(99, "Other", 2), tx(9, "Other", 3)}
			vectors, _, err := nb.Build(ctx, records, []string{"log_amount"})

			Convey("Then the values fall inside [0,1]", func() {
				So(err, ShouldBeNil)
				So(vectors[0][0], ShouldEqual, 0.0)
				So(vectors[1][0], ShouldEqual, 1.0)
				So(vectors[2][0], ShouldAlmostEqual, 0.5, 1e-12)
			})
		})

		Convey("When the input is empty", func() {
			vectors, nc, err := b.Build(ctx, nil, nil)

			Convey("Then an empty list and nil context are returned", func() {
				So(err, ShouldBeNil)
				So(vectors, ShouldBeEmpty)
				So(nc, ShouldBeNil)
			})
		})

		Convey("When an explicit empty feature list is given", func() {
			_, _, err := b.Build(ctx, []model.Transaction{tx(1, "Rent", 1)}, []string{})

			Convey("Then ErrNoFeatures is returned", func() {
				So(errors.Is(err, features.ErrNoFeatures), ShouldBeTrue)
			})
		})
	})
}

func TestCategoryTable(t *testing.T) {
	Convey("Given the category presets", t, func() {
		def := features.DefaultCategories()
		compact := features.CompactCategories()

		Convey("Then the default table has 14 codes with Other last", func() {
			So(def.Size(), ShouldEqual, 14)
			So(def.Code("Other"), ShouldEqual, 14)
			So(def.Code("Food & Dining"), ShouldEqual, 1)
			So(def.Code("food & dining"), ShouldEqual, 14)
		})

		Convey("And the compact table has 11 codes", func() {
			So(compact.Size(), ShouldEqual, 11)
			So(compact.Code("Personal Care"), ShouldEqual, 10)
			So(compact.Code("Rent"), ShouldEqual, 11)
		})

		Convey("And canonical names collapse unknown categories to Other", func() {
			So(def.Canonical("Shopping"), ShouldEqual, "Shopping")
			So(def.Canonical("Crypto"), ShouldEqual, "Other")
			So(def.Recognized("Other"), ShouldBeFalse)
			So(def.Recognized("Travel"), ShouldBeTrue)
		})

		Convey("And presets resolve by name", func() {
			tbl, err := features.TableByName("compact")
			So(err, ShouldBeNil)
			So(tbl.Name(), ShouldEqual, "compact")

			_, err = features.TableByName("huge")
			So(errors.Is(err, features.ErrUnknownCategoryTable), ShouldBeTrue)
		})
	})
}
