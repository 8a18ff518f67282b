package sqlite

import (
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// dsn appends _pragma=key(value) query parameters to path.
func dsn(path string, pragmas [][2]string) string {
	s := path
	for i, p := range pragmas {
		if i == 0 {
			s += "?"
		} else {
			s += "&"
		}
		s += "_pragma=" + p[0] + "(" + p[1] + ")"
	}
	return s
}
