package driver

import "time"

type DriverOpt func(*Driver)

func WithTickLength(tickLength time.Duration) DriverOpt {
	return func(d *Driver) {
		d.tickLength = tickLength
	}
}

func WithName(name string) DriverOpt {
	return func(d *Driver) {
		d.name = name
	}
}
