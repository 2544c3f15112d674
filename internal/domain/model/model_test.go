package model_test

import (
	"testing"

	"github.com/okian/rollcall/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestIdentity_Primary(t *testing.T) {
	Convey("Given identities with and without encodings", t, func() {
		Convey("When an identity has several encodings", func() {
			id := model.Identity{Roll: "101", Encodings: []model.Descriptor{{1, 2}, {3, 4}}}

			Convey("Then only the first is returned", func() {
				So(id.Primary(), ShouldResemble, model.Descriptor{1, 2})
			})
		})

		Convey("When an identity has no encodings", func() {
			id := model.Identity{Roll: "102"}

			Convey("Then Primary returns nil", func() {
				So(id.Primary(), ShouldBeNil)
			})
		})
	})
}
