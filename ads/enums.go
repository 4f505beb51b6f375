package ads

import (
	"strings"

	"github.com/biter777/countries"
	"github.com/pkg/errors"
)

// ErrUnknownValue is returned when a code cannot be parsed into an enum.
var ErrUnknownValue = errors.New("unknown value")

// Country is an ISO 3166-1 country persisted by its numeric code.
type Country countries.CountryCode

// ParseCountry accepts an alpha-2 or alpha-3 code in any case.
func ParseCountry(s string) (Country, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2 && len(s) != 3 {
		return 0, errors.Wrapf(ErrUnknownValue, "country %q", s)
	}
	code := countries.ByName(strings.ToUpper(s))
	if code == countries.Unknown {
		return 0, errors.Wrapf(ErrUnknownValue, "country %q", s)
	}
	return Country(code), nil
}

// Code is the persisted ISO numeric code.
func (c Country) Code() int16 { return int16(c) }

// Valid reports whether c is a known country.
func (c Country) Valid() bool {
	cc := countries.CountryCode(c)
	return cc != countries.Unknown && cc.IsValid()
}

// String returns the alpha-3 code.
func (c Country) String() string {
	return countries.CountryCode(c).Alpha3()
}

// Platform is the device family an advertisement targets.
type Platform int16

const (
	PlatformAndroid Platform = iota + 1
	PlatformIOS
	PlatformWeb
	PlatformDesktop
	PlatformMobile
	PlatformTablet
	PlatformConsole
	PlatformSmartTV
	PlatformOther
)

var platformNames = map[Platform]string{
	PlatformAndroid: "android",
	PlatformIOS:     "ios",
	PlatformWeb:     "web",
	PlatformDesktop: "desktop",
	PlatformMobile:  "mobile",
	PlatformTablet:  "tablet",
	PlatformConsole: "console",
	PlatformSmartTV: "smarttv",
	PlatformOther:   "other",
}

// ParsePlatform accepts a platform name in any case.
func ParsePlatform(s string) (Platform, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for p, n := range platformNames {
		if n == name {
			return p, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownValue, "platform %q", s)
}

// Code is the persisted platform code.
func (p Platform) Code() int16 { return int16(p) }

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	_, ok := platformNames[p]
	return ok
}

func (p Platform) String() string {
	if n, ok := platformNames[p]; ok {
		return n
	}
	return "unknown"
}

// Gender of the targeted audience. Unspecified is modelled as absence.
type Gender int16

const (
	GenderMale Gender = iota + 1
	GenderFemale
)

// ParseGender returns nil for the unspecified forms "u" and "unspecified".
func ParseGender(s string) (*Gender, error) {
	var g Gender
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "u", "unspecified":
		return nil, nil
	case "m", "male":
		g = GenderMale
	case "f", "female":
		g = GenderFemale
	default:
		return nil, errors.Wrapf(ErrUnknownValue, "gender %q", s)
	}
	return &g, nil
}

// Code is the persisted gender code.
func (g Gender) Code() int16 { return int16(g) }

// Valid reports whether g is male or female.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	}
	return "unknown"
}
