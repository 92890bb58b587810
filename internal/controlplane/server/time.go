package server

import "time"

const timeLayout = time.RFC3339Nano

func now() time.Time {
	return time.Now().UTC()
}
