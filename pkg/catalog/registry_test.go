package catalog

import (
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()

	Convey("Given a new registry", t, func() {
		Convey("Should have an empty map of capabilities", func() {
			So(registry.capabilities, ShouldResemble, &sync.Map{})
		})
	})
}

func TestRegister(t *testing.T) {
	registry := NewRegistry()

	Convey("Given a new registry", t, func() {
		Convey("When a valid capability is registered", func() {
			err := registry.Register(Capability{
				Name:        "echo",
				Description: "echoes the message back",
			})

			Convey("It should be retrievable by name", func() {
				So(err, ShouldBeNil)

				capability, ok := registry.Get("echo")

				So(ok, ShouldBeTrue)
				So(capability.Description, ShouldEqual, "echoes the message back")
			})
		})

		Convey("When a capability without a name is registered", func() {
			err := registry.Register(Capability{Description: "nameless"})

			Convey("It should be rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When a capability is registered twice", func() {
			registry.Register(Capability{Name: "echo", Description: "first"})
			registry.Register(Capability{Name: "echo", Description: "second"})

			Convey("The later registration should win", func() {
				capability, _ := registry.Get("echo")

				So(capability.Description, ShouldEqual, "second")
			})
		})
	})
}

func TestRegistryList(t *testing.T) {
	registry := NewRegistry()

	Convey("Given a registry with capabilities", t, func() {
		registry.Register(Capability{Name: "translate"})
		registry.Register(Capability{Name: "echo"})
		registry.Register(Capability{Name: "summarize"})

		Convey("When listing", func() {
			capabilities := registry.List()

			Convey("It should return every capability sorted by name", func() {
				So(len(capabilities), ShouldEqual, 3)
				So(capabilities[0].Name, ShouldEqual, "echo")
				So(capabilities[1].Name, ShouldEqual, "summarize")
				So(capabilities[2].Name, ShouldEqual, "translate")
			})
		})
	})
}

func TestRegistryRemove(t *testing.T) {
	registry := NewRegistry()

	Convey("Given a registry with a capability", t, func() {
		registry.Register(Capability{Name: "echo"})

		Convey("When the capability is removed", func() {
			registry.Remove("echo")

			Convey("It should no longer be retrievable", func() {
				_, ok := registry.Get("echo")

				So(ok, ShouldBeFalse)
				So(registry.List(), ShouldBeEmpty)
			})
		})
	})
}
