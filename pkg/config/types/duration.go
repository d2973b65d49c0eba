package types

import (
	"time"
)

// Duration is a time.Duration that reads and writes as a duration string
// such as "3s" or "10m".
type Duration time.Duration

func (d Duration) AsTimeDuration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalText(text []byte) error {
	out, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(out)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}
