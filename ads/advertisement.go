package ads

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
)

// MaxTitleLength bounds the persisted title.
const MaxTitleLength = 255

// AgeRange is inclusive on both ends.
type AgeRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether age lies inside the range.
func (r AgeRange) Contains(age int) bool {
	return age >= r.From && age <= r.To
}

// Validate implements validation.Validatable.
func (r AgeRange) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.From, validation.Min(0)),
		validation.Field(&r.To, validation.By(func(value interface{}) error {
			if to, _ := value.(int); to < r.From {
				return errors.New("must not be less than from")
			}
			return nil
		})),
	)
}

// Advertisement is a campaign as written by the insert path.
// It is immutable once persisted.
type Advertisement struct {
	Title    string    `json:"title"`
	AgeRange AgeRange  `json:"age_range"`
	Country  *Country  `json:"country,omitempty"`
	Platform *Platform `json:"platform,omitempty"`
	Gender   *Gender   `json:"gender,omitempty"`
	EndAt    time.Time `json:"end_at"`
}

// Validate implements validation.Validatable.
func (a Advertisement) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Title, validation.Required, validation.RuneLength(1, MaxTitleLength)),
		validation.Field(&a.AgeRange),
		validation.Field(&a.Country, validation.By(validEnum)),
		validation.Field(&a.Platform, validation.By(validEnum)),
		validation.Field(&a.Gender, validation.By(validEnum)),
		validation.Field(&a.EndAt, validation.Required),
	)
}

// Active reports whether the advertisement is still served at now.
func (a Advertisement) Active(now time.Time) bool {
	return a.EndAt.After(now)
}

// Matches reports whether the advertisement satisfies cond at now.
// It is the in-memory reference of the predicate the statement matrix
// compiles to SQL.
func (a Advertisement) Matches(cond Condition, now time.Time) bool {
	if !a.Active(now) {
		return false
	}
	if cond.Country != nil && a.Country != nil && *cond.Country != *a.Country {
		return false
	}
	if cond.Platform != nil && a.Platform != nil && *cond.Platform != *a.Platform {
		return false
	}
	if cond.Age != nil && !a.AgeRange.Contains(*cond.Age) {
		return false
	}
	if cond.Gender != nil && a.Gender != nil && *cond.Gender != *a.Gender {
		return false
	}
	return true
}

// Condition is the read side filter. A nil field places no constraint on
// that attribute. Expired advertisements are always excluded.
type Condition struct {
	Age      *int      `json:"age,omitempty"`
	Country  *Country  `json:"country,omitempty"`
	Platform *Platform `json:"platform,omitempty"`
	Gender   *Gender   `json:"gender,omitempty"`
}

// Validate implements validation.Validatable.
func (c Condition) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Age, validation.Min(0)),
		validation.Field(&c.Country, validation.By(validEnum)),
		validation.Field(&c.Platform, validation.By(validEnum)),
		validation.Field(&c.Gender, validation.By(validEnum)),
	)
}

// Page selects a window of the ordered result. A zero Limit requests
// nothing and never reaches the store.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Validate implements validation.Validatable.
func (p Page) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Limit, validation.Min(0)),
		validation.Field(&p.Offset, validation.Min(0)),
	)
}

// Empty reports whether the page requests no rows.
func (p Page) Empty() bool {
	return p.Limit == 0
}

// PartialAdvertisement is the read projection returned to consumers.
type PartialAdvertisement struct {
	ID    int64     `json:"id"`
	Title string    `json:"title"`
	EndAt time.Time `json:"end_at"`
}

type enum interface {
	Valid() bool
}

func validEnum(value interface{}) error {
	var e enum
	switch v := value.(type) {
	case *Country:
		if v == nil {
			return nil
		}
		e = *v
	case *Platform:
		if v == nil {
			return nil
		}
		e = *v
	case *Gender:
		if v == nil {
			return nil
		}
		e = *v
	default:
		return nil
	}
	if !e.Valid() {
		return errors.New("unknown value")
	}
	return nil
}
