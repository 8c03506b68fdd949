package api

import "time"

type Health struct {
	Status      string    `json:"status"`
	Environment string    `json:"env"`
	Uptime      float64   `json:"uptime"`
	Timestamp   time.Time `json:"timestamp"`
}

type BusLocation struct {
	BusID     string    `json:"busId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

type LiveStats struct {
	Rooms       int `json:"rooms"`
	Subscribers int `json:"subscribers"`
	Cached      int `json:"cached"`
	Sessions    int `json:"sessions"`
	Connections int `json:"connections"`
}
