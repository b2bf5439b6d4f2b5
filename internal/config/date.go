package config

import (
	"strings"
	"time"

	"covid-waves/internal/models"
)

// Date is a calendar date readable from environment variables and YAML
type Date struct {
	time.Time
}

// ParseDate parses an ISO-8601 calendar date
func ParseDate(s string) (Date, error) {
	var d Date
	err := d.Decode(s)
	return d, err
}

// Decode implements envconfig.Decoder
func (d *Date) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Date) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.Decode(s)
}

// String formats the date, empty when unset
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(models.DateLayout)
}
