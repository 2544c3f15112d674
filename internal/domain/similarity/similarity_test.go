package similarity_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/similarity"
	. "github.com/smartystreets/goconvey/convey"
)

func randomDescriptor(seed int64) model.Descriptor {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test data
	d := make(model.Descriptor, model.DescriptorLength)
	for i := range d {
		d[i] = float64(rng.Intn(256))
	}
	return d
}

func constantDescriptor(v float64) model.Descriptor {
	d := make(model.Descriptor, model.DescriptorLength)
	for i := range d {
		d[i] = v
	}
	return d
}

func TestCorrelation(t *testing.T) {
	Convey("Given descriptors built from seeded noise", t, func() {
		a := randomDescriptor(1)
		b := randomDescriptor(2)

		Convey("When correlating a descriptor with itself", func() {
			r, err := similarity.Correlation(a, a)

			Convey("Then the score is 1", func() {
				So(err, ShouldBeNil)
				So(r, ShouldAlmostEqual, 1.0, 1e-9)
			})
		})

		Convey("When correlating a descriptor with a linear transform of itself", func() {
			scaled := make(model.Descriptor, len(a))
			for i, v := range a {
				scaled[i] = v*0.5 + 20
			}
			r, err := similarity.Correlation(a, scaled)

			Convey("Then brightness and contrast changes do not matter", func() {
				So(err, ShouldBeNil)
				So(r, ShouldAlmostEqual, 1.0, 1e-9)
			})
		})

		Convey("When correlating a descriptor with its inverse", func() {
			inv := make(model.Descriptor, len(a))
			for i, v := range a {
				inv[i] = 255 - v
			}
			r, err := similarity.Correlation(a, inv)

			Convey("Then the score is -1", func() {
				So(err, ShouldBeNil)
				So(r, ShouldAlmostEqual, -1.0, 1e-9)
			})
		})

		Convey("When correlating independent descriptors", func() {
			r, err := similarity.Correlation(a, b)

			Convey("Then the score is near zero", func() {
				So(err, ShouldBeNil)
				So(r, ShouldBeBetween, -0.1, 0.1)
			})
		})

		Convey("When lengths differ", func() {
			_, err := similarity.Correlation(a, a[:10])

			Convey("Then a length mismatch error is returned", func() {
				So(errors.Is(err, similarity.ErrLengthMismatch), ShouldBeTrue)
			})
		})

		Convey("When a descriptor is absent", func() {
			_, err := similarity.Correlation(nil, a)

			Convey("Then a missing descriptor error is returned", func() {
				So(err, ShouldEqual, similarity.ErrMissingDescriptor)
			})
		})

		Convey("When both descriptors are constant", func() {
			var err error
			So(func() {
				_, err = similarity.Correlation(constantDescriptor(7), constantDescriptor(200))
			}, ShouldNotPanic)

			Convey("Then the comparison is degenerate", func() {
				So(err, ShouldEqual, similarity.ErrDegenerate)
			})
		})
	})
}

func TestIsMatch(t *testing.T) {
	Convey("Given a pool of descriptors", t, func() {
		pool := []model.Descriptor{randomDescriptor(3), randomDescriptor(4), randomDescriptor(5)}
		// a noisy copy of pool[0]
		noisy := make(model.Descriptor, len(pool[0]))
		rng := rand.New(rand.NewSource(9)) //nolint:gosec // deterministic test data
		for i, v := range pool[0] {
			noisy[i] = v + float64(rng.Intn(60)) - 30
		}
		pool = append(pool, noisy)
		thresholds := []float64{-0.5, 0, 0.3, 0.7, 0.8, 0.95}

		Convey("Then the decision is symmetric", func() {
			for _, a := range pool {
				for _, b := range pool {
					for _, th := range thresholds {
						So(similarity.IsMatch(a, b, th), ShouldEqual, similarity.IsMatch(b, a, th))
					}
				}
			}
		})

		Convey("Then every non-degenerate descriptor matches itself below 1", func() {
			for _, a := range pool {
				So(similarity.IsMatch(a, a, 0.999), ShouldBeTrue)
			}
		})

		Convey("Then lowering the threshold never loses a match", func() {
			for _, a := range pool {
				for _, b := range pool {
					for i, hi := range thresholds {
						if !similarity.IsMatch(a, b, hi) {
							continue
						}
						for _, lo := range thresholds[:i] {
							So(similarity.IsMatch(a, b, lo), ShouldBeTrue)
						}
					}
				}
			}
		})

		Convey("Then the noisy copy matches at recognition but uncorrelated noise does not", func() {
			So(similarity.IsMatch(pool[0], noisy, similarity.RecognizeThreshold), ShouldBeTrue)
			So(similarity.IsMatch(pool[0], pool[1], similarity.RecognizeThreshold), ShouldBeFalse)
		})

		Convey("Then degenerate and absent inputs are never a match", func() {
			So(similarity.IsMatch(constantDescriptor(1), constantDescriptor(1), -1), ShouldBeFalse)
			So(similarity.IsMatch(nil, pool[0], -1), ShouldBeFalse)
			So(similarity.IsMatch(pool[0], nil, -1), ShouldBeFalse)
		})

		Convey("Then the score must be strictly above the threshold", func() {
			r, err := similarity.Correlation(pool[0], noisy)
			So(err, ShouldBeNil)
			So(similarity.IsMatch(pool[0], noisy, r), ShouldBeFalse)
		})
	})
}
