package api

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-targeted-ads/ads"
	"github.com/pkg/errors"
)

// naiveLayout is accepted for end_at values without a zone; they are UTC.
const naiveLayout = "2006-01-02T15:04:05"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("country", func(fl validator.FieldLevel) bool {
		_, err := ads.ParseCountry(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("platform", func(fl validator.FieldLevel) bool {
		_, err := ads.ParsePlatform(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
		_, err := ads.ParseGender(fl.Field().String())
		return err == nil
	})
	return v
}

// Timestamp decodes RFC 3339 or a naive "2006-01-02T15:04:05" as UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "end_at must be a string")
	}
	for _, layout := range []string{time.RFC3339Nano, naiveLayout + ".999999999"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return errors.Errorf("end_at %q is not a timestamp", s)
}

// TargetingFields are the optional attributes shared by both requests.
type TargetingFields struct {
	Country  *string `json:"country,omitempty" validate:"omitempty,country"`
	Platform *string `json:"platform,omitempty" validate:"omitempty,platform"`
	Gender   *string `json:"gender,omitempty" validate:"omitempty,gender"`
}

func (f TargetingFields) parse() (*ads.Country, *ads.Platform, *ads.Gender, error) {
	var (
		country  *ads.Country
		platform *ads.Platform
		gender   *ads.Gender
	)
	if f.Country != nil {
		c, err := ads.ParseCountry(*f.Country)
		if err != nil {
			return nil, nil, nil, err
		}
		country = &c
	}
	if f.Platform != nil {
		p, err := ads.ParsePlatform(*f.Platform)
		if err != nil {
			return nil, nil, nil, err
		}
		platform = &p
	}
	if f.Gender != nil {
		g, err := ads.ParseGender(*f.Gender)
		if err != nil {
			return nil, nil, nil, err
		}
		gender = g
	}
	return country, platform, gender, nil
}

// ReadRequest is the body of POST /ads.
type ReadRequest struct {
	TargetingFields
	Age    *int `json:"age,omitempty" validate:"omitempty,min=0"`
	Limit  int  `json:"limit" validate:"min=0"`
	Offset int  `json:"offset" validate:"min=0"`
}

func (r ReadRequest) toQuery() (ads.Condition, ads.Page, error) {
	country, platform, gender, err := r.parse()
	if err != nil {
		return ads.Condition{}, ads.Page{}, err
	}
	cond := ads.Condition{Age: r.Age, Country: country, Platform: platform, Gender: gender}
	return cond, ads.Page{Limit: r.Limit, Offset: r.Offset}, nil
}

// InsertRequest is the body of POST /ad.
type InsertRequest struct {
	TargetingFields
	Title   string    `json:"title" validate:"required,max=255"`
	FromAge int       `json:"from_age" validate:"min=0"`
	ToAge   int       `json:"to_age" validate:"gtefield=FromAge"`
	EndAt   Timestamp `json:"end_at"`
}

func (r InsertRequest) toAdvertisement() (ads.Advertisement, error) {
	country, platform, gender, err := r.parse()
	if err != nil {
		return ads.Advertisement{}, err
	}
	ad := ads.Advertisement{
		Title:    r.Title,
		AgeRange: ads.AgeRange{From: r.FromAge, To: r.ToAge},
		Country:  country,
		Platform: platform,
		Gender:   gender,
		EndAt:    r.EndAt.Time,
	}
	return ad, ad.Validate()
}
