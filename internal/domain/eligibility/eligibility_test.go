package eligibility_test

import (
	"testing"

	"github.com/rebooked/apsmatch/internal/domain/eligibility"
	"github.com/rebooked/apsmatch/internal/domain/subject"
	. "github.com/smartystreets/goconvey/convey"
)

func TestValidateLevel(t *testing.T) {
	Convey("Given levels on the 1-7 scale", t, func() {
		Convey("Then validity is exactly user >= required", func() {
			for u := eligibility.MinLevel; u <= eligibility.MaxLevel; u++ {
				for r := eligibility.MinLevel; r <= eligibility.MaxLevel; r++ {
					lc := eligibility.ValidateLevel(u, r, "Mathematics")
					So(lc.IsValid, ShouldEqual, u >= r)
					if u >= r {
						So(lc.Outcome, ShouldEqual, eligibility.LevelSufficient)
						So(lc.Gap, ShouldEqual, 0)
					} else {
						So(lc.Outcome, ShouldEqual, eligibility.LevelInsufficient)
						So(lc.Gap, ShouldEqual, r-u)
					}
				}
			}
		})
	})

	Convey("Given a level outside the scale", t, func() {
		for _, pair := range [][2]int{{0, 4}, {8, 4}, {4, 0}, {4, 8}, {-1, -1}} {
			lc := eligibility.ValidateLevel(pair[0], pair[1], "History")
			So(lc.IsValid, ShouldBeFalse)
			So(lc.Outcome, ShouldEqual, eligibility.LevelInvalid)
			So(lc.Gap, ShouldEqual, 0)
			So(lc.Reason, ShouldContainSubstring, "outside the 1-7 scale")
		}
	})

	Convey("Given an insufficient level", t, func() {
		lc := eligibility.ValidateLevel(3, 5, "Mathematics")
		So(lc.Reason, ShouldEqual, "Mathematics level 3 is below required level 5 (gap 2)")
	})
}

func TestCheck(t *testing.T) {
	Convey("Given a strong science learner", t, func() {
		user := []eligibility.UserSubject{
			{Name: "Mathematics", Level: 6},
			{Name: "English Home Language", Level: 5},
			{Name: "Physical Sciences", Level: 5},
			{Name: "Life Sciences", Level: 5},
		}
		required := []eligibility.RequiredSubject{
			{Name: "Mathematics", Level: 5, IsRequired: true},
			{Name: "English", Level: 4, IsRequired: true},
		}

		Convey("When checking maths and generic English", func() {
			res := eligibility.Check(user, required)

			Convey("Then the learner is eligible", func() {
				So(res.IsEligible, ShouldBeTrue)
				So(res.RequiredCount, ShouldEqual, 2)
				So(res.MissingSubjects, ShouldBeEmpty)
				So(len(res.MatchedSubjects), ShouldEqual, 2)
				So(res.MatchedSubjects[0].Matched, ShouldEqual, "Mathematics")
				So(res.MatchedSubjects[0].Confidence, ShouldEqual, 100)
				So(res.MatchedSubjects[1].Matched, ShouldEqual, "English Home Language")
				So(res.MatchedSubjects[1].Confidence, ShouldEqual, subject.ConfidenceGenericRequired)
				So(res.Details, ShouldEqual, "All 2 required subjects met")
			})
		})

		Convey("When a non-required entry is added", func() {
			withOptional := append(append([]eligibility.RequiredSubject(nil), required...),
				eligibility.RequiredSubject{Name: "Accounting", Level: 7, IsRequired: false},
				eligibility.RequiredSubject{Name: "Underwater Basket Weaving", Level: 7, IsRequired: false},
			)
			res := eligibility.Check(user, withOptional)

			Convey("Then the verdict does not change", func() {
				So(res.IsEligible, ShouldBeTrue)
				So(res.RequiredCount, ShouldEqual, 2)
				So(len(res.MatchedSubjects), ShouldEqual, 2)
			})
		})
	})

	Convey("Given a learner with Mathematical Literacy only", t, func() {
		user := []eligibility.UserSubject{{Name: "Mathematical Literacy", Level: 7}}
		required := []eligibility.RequiredSubject{{Name: "Mathematics", Level: 4, IsRequired: true}}

		res := eligibility.Check(user, required)

		Convey("Then Mathematics is reported missing", func() {
			So(res.IsEligible, ShouldBeFalse)
			So(res.MatchedSubjects, ShouldBeEmpty)
			So(len(res.MissingSubjects), ShouldEqual, 1)
			So(res.MissingSubjects[0].Name, ShouldEqual, "Mathematics")
			So(res.MissingSubjects[0].Level, ShouldEqual, 4)
			So(res.MissingSubjects[0].Alternatives, ShouldContain, "Maths")
			So(res.Details, ShouldEqual, "Missing: Mathematics")
		})
	})

	Convey("Given a learner whose maths level is too low", t, func() {
		user := []eligibility.UserSubject{{Name: "Mathematics", Level: 3}}
		required := []eligibility.RequiredSubject{{Name: "Mathematics", Level: 5, IsRequired: true}}

		res := eligibility.Check(user, required)

		Convey("Then the subject is matched but the level fails", func() {
			So(res.IsEligible, ShouldBeFalse)
			So(res.MissingSubjects, ShouldBeEmpty)
			So(len(res.MatchedSubjects), ShouldEqual, 1)
			d := res.MatchedSubjects[0]
			So(d.LevelValid, ShouldBeFalse)
			So(d.LevelOutcome, ShouldEqual, eligibility.LevelInsufficient)
			So(d.Gap, ShouldEqual, 2)
			So(d.UserLevel, ShouldEqual, 3)
			So(d.RequiredLevel, ShouldEqual, 5)
			So(res.Details, ShouldEqual, "Insufficient levels: Mathematics (have 3, need 5)")
		})
	})

	Convey("Given a learner with a recorded level out of range", t, func() {
		user := []eligibility.UserSubject{{Name: "Maths", Level: 9}}
		required := []eligibility.RequiredSubject{{Name: "Mathematics", Level: 5, IsRequired: true}}

		res := eligibility.Check(user, required)

		Convey("Then the match is flagged invalid rather than insufficient", func() {
			So(res.IsEligible, ShouldBeFalse)
			So(res.MatchedSubjects[0].LevelOutcome, ShouldEqual, eligibility.LevelInvalid)
			So(res.Details, ShouldEqual, "Invalid levels: Mathematics (have 9, need 5)")
		})
	})

	Convey("Given several candidates for one requirement", t, func() {
		Convey("When one candidate is a stronger match", func() {
			user := []eligibility.UserSubject{
				{Name: "English First Additional Language", Level: 4},
				{Name: "English Home Language", Level: 6},
			}
			required := []eligibility.RequiredSubject{{Name: "English Home Language", Level: 5, IsRequired: true}}
			res := eligibility.Check(user, required)

			Convey("Then the highest confidence wins", func() {
				So(res.IsEligible, ShouldBeTrue)
				So(res.MatchedSubjects[0].Matched, ShouldEqual, "English Home Language")
				So(res.MatchedSubjects[0].Confidence, ShouldEqual, 100)
			})
		})

		Convey("When candidates tie on confidence", func() {
			user := []eligibility.UserSubject{
				{Name: "English Home Language", Level: 3},
				{Name: "English First Additional Language", Level: 6},
			}
			required := []eligibility.RequiredSubject{{Name: "English", Level: 4, IsRequired: true}}
			res := eligibility.Check(user, required)

			Convey("Then the first one seen is kept", func() {
				So(res.MatchedSubjects[0].Matched, ShouldEqual, "English Home Language")
				So(res.IsEligible, ShouldBeFalse)
			})
		})
	})

	Convey("Given a requirement only a fuzzy match can satisfy", t, func() {
		user := []eligibility.UserSubject{{Name: "Marine Science", Level: 5}}
		required := []eligibility.RequiredSubject{{Name: "Marine Sciences", Level: 4, IsRequired: true}}

		Convey("When the fallback pass accepts low confidence", func() {
			res := eligibility.Check(user, required)

			Convey("Then the fuzzy match is used", func() {
				So(res.IsEligible, ShouldBeTrue)
				So(res.MatchedSubjects[0].Confidence, ShouldEqual, 45)
			})
		})

		Convey("When the fallback threshold is raised above the fuzzy confidence", func() {
			c := eligibility.NewChecker(eligibility.WithFallbackThreshold(46))
			res := c.Check(user, required)

			Convey("Then the requirement is missing", func() {
				So(res.IsEligible, ShouldBeFalse)
				So(res.MissingSubjects[0].Name, ShouldEqual, "Marine Sciences")
				So(res.MissingSubjects[0].Alternatives, ShouldBeNil)
			})
		})
	})

	Convey("Given one subject that covers two requirements", t, func() {
		user := []eligibility.UserSubject{{Name: "Physical Sciences", Level: 6}}
		required := []eligibility.RequiredSubject{
			{Name: "Physical Science", Level: 5, IsRequired: true},
			{Name: "Physics", Level: 4, IsRequired: true},
		}

		Convey("Then both requirements are met", func() {
			So(eligibility.Check(user, required).IsEligible, ShouldBeTrue)
		})
	})

	Convey("Given no required entries", t, func() {
		res := eligibility.Check(nil, []eligibility.RequiredSubject{{Name: "Music", Level: 3}})

		Convey("Then the learner is eligible by default", func() {
			So(res.IsEligible, ShouldBeTrue)
			So(res.RequiredCount, ShouldEqual, 0)
			So(res.Details, ShouldEqual, "No subject requirements to meet")
		})
	})

	Convey("Given checker options", t, func() {
		Convey("When the fallback threshold exceeds the primary", func() {
			c := eligibility.NewChecker(eligibility.WithPrimaryThreshold(60), eligibility.WithFallbackThreshold(80))
			p, f := c.Thresholds()

			Convey("Then the fallback is capped at the primary", func() {
				So(p, ShouldEqual, 60)
				So(f, ShouldEqual, 60)
			})
		})

		Convey("When invalid thresholds are supplied", func() {
			c := eligibility.NewChecker(eligibility.WithPrimaryThreshold(0), eligibility.WithFallbackThreshold(101))
			p, f := c.Thresholds()

			Convey("Then the defaults are kept", func() {
				So(p, ShouldEqual, eligibility.DefaultPrimaryThreshold)
				So(f, ShouldEqual, eligibility.DefaultFallbackThreshold)
			})
		})
	})
}
